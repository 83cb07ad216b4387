package forms

import "leadsdash/models"

// NewLoginForm builds the username and password form of the login screen
func NewLoginForm() *Form {
	return &Form{Fields: []*Field{
		{
			Name:    "username",
			Label:   "field_username",
			Kind:    KindText,
			Rule:    "required",
			Message: "validation_username_required",
		},
		{
			Name:    "password",
			Label:   "field_password",
			Kind:    KindPassword,
			Rule:    "required",
			Message: "validation_password_required",
		},
	}}
}

// NewRegisterForm builds the registration form
func NewRegisterForm() *Form {
	f := NewLoginForm()
	f.Field("username").Rule = "required,max=64"
	f.Field("username").Message = ""
	return f
}

// statusOptions lists the known statuses plus current when the API uses a
// status this version does not know yet.
func statusOptions(current string) []Option {
	opts := make([]Option, 0, len(models.Statuses)+1)
	known := false
	for _, s := range models.Statuses {
		opts = append(opts, Option{Value: s, Label: "status_option_" + s})
		known = known || s == current
	}
	if current != "" && !known {
		opts = append(opts, Option{Value: current, Text: current})
	}
	return opts
}

// NewLeadForm builds the edit modal form seeded from lead. current is the
// status the lead has upstream; it stays selectable even when unknown.
func NewLeadForm(lead models.LeadUpdate, current string) *Form {
	return &Form{Fields: []*Field{
		{
			Name:    "name",
			Label:   "field_name",
			Kind:    KindText,
			Value:   lead.Name,
			Rule:    "required,max=200",
			Message: "validation_name_required",
		},
		{
			Name:    "is_active",
			Label:   "field_active",
			Kind:    KindSwitch,
			Checked: lead.IsActive,
		},
		{
			Name:    "status",
			Label:   "field_status",
			Kind:    KindSelect,
			Value:   lead.Status,
			Options: statusOptions(current),
			Rule:    "required",
		},
	}}
}

// LeadUpdate reads the edit form back into an update
func (f *Form) LeadUpdate(id string) models.LeadUpdate {
	return models.LeadUpdate{
		ID:       id,
		Name:     f.Value("name"),
		IsActive: f.Checked("is_active"),
		Status:   f.Value("status"),
	}
}

// NewFilterForm builds the filter bar seeded from filters
func NewFilterForm(filters models.LeadFilters) *Form {
	statuses := append([]Option{{Value: "", Label: "filter_status_any"}}, statusOptions(filters.Status)...)
	return &Form{Fields: []*Field{
		{
			Name:        "id",
			Kind:        KindText,
			Value:       filters.ID,
			Placeholder: "filter_id_placeholder",
			Rule:        "max=64",
		},
		{
			Name:        "name",
			Kind:        KindText,
			Value:       filters.Name,
			Placeholder: "filter_name_placeholder",
			Rule:        "max=200",
		},
		{
			Name:  "is_active",
			Kind:  KindSelect,
			Value: filters.IsActive,
			Options: []Option{
				{Value: models.ActiveAny, Label: "filter_active_any"},
				{Value: models.ActiveTrue, Label: "filter_active_true"},
				{Value: models.ActiveFalse, Label: "filter_active_false"},
			},
			Rule: "omitempty,oneof=true false",
		},
		{
			Name:    "status",
			Kind:    KindSelect,
			Value:   filters.Status,
			Options: statuses,
			Rule:    "omitempty,max=64",
		},
	}}
}

// Filters reads the filter bar back into filters
func (f *Form) Filters() models.LeadFilters {
	return models.LeadFilters{
		ID:       f.Value("id"),
		Name:     f.Value("name"),
		IsActive: f.Value("is_active"),
		Status:   f.Value("status"),
	}
}
