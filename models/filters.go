package models

// Tri-state values of the is_active filter.
const (
	ActiveAny   = ""
	ActiveTrue  = "true"
	ActiveFalse = "false"
)

// LeadFilters are the criteria of the lead listing. An empty string means no
// constraint on that field.
type LeadFilters struct {
	ID       string `json:"id" form:"id"`
	Name     string `json:"name" form:"name"`
	IsActive string `json:"is_active" form:"is_active"`
	Status   string `json:"status" form:"status"`
}

// IsZero reports whether no field is constrained.
func (f LeadFilters) IsZero() bool {
	return f == LeadFilters{}
}

// ActiveValue converts the tri-state filter. ok is false unless the value is
// exactly "true" or "false".
func (f LeadFilters) ActiveValue() (active bool, ok bool) {
	switch f.IsActive {
	case ActiveTrue:
		return true, true
	case ActiveFalse:
		return false, true
	default:
		return false, false
	}
}
