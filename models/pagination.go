package models

// Pagination describes the current cursor over the lead listing. Page is
// zero-based.
type Pagination struct {
	Page  int `json:"page"`
	Limit int `json:"limit"`
	Total int `json:"total"`
}

// Skip is the number of records before the current page.
func (p Pagination) Skip() int {
	return p.Page * p.Limit
}

// TotalPages is ceil(Total/Limit).
func (p Pagination) TotalPages() int {
	if p.Limit <= 0 {
		return 0
	}
	return (p.Total + p.Limit - 1) / p.Limit
}

// HasNext reports whether another page follows the current one.
func (p Pagination) HasNext() bool {
	return (p.Page+1)*p.Limit < p.Total
}

// HasPrev reports whether the current page is not the first one.
func (p Pagination) HasPrev() bool {
	return p.Page > 0
}

// Number is the one-based page number shown to users.
func (p Pagination) Number() int {
	return p.Page + 1
}

// ListQuery selects one page of leads
type ListQuery struct {
	Filters LeadFilters
	Skip    int
	Limit   int
}
