// Package forms describes the input forms of the dashboard as typed fields
// that templates render through a single partial.
package forms

import (
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/nicksnyder/go-i18n/v2/i18n"

	"leadsdash/utils"
)

// Kind selects how a field is rendered
type Kind string

const (
	KindText     Kind = "text"
	KindPassword Kind = "password"
	KindSelect   Kind = "select"
	KindSwitch   Kind = "switch"
)

// Option is one choice of a select field. Label is a message id.
type Option struct {
	Value string
	Label string // message id
	Text  string // shown as is instead of Label when set
}

// Field is a single form input. Label, Placeholder and Message are message
// ids; Error holds the translated validation error after Validate.
type Field struct {
	Name        string
	Label       string
	Placeholder string
	Kind        Kind
	Value       string
	Checked     bool
	Options     []Option
	Rule        string // validator tag, empty for none
	Message     string // message id used when Rule fails
	ErrorID     string
	Error       string
}

// Selected reports whether opt is the field's current value
func (f *Field) Selected(opt Option) bool {
	return f.Value == opt.Value
}

func (f *Field) offers(value string) bool {
	for _, opt := range f.Options {
		if opt.Value == value {
			return true
		}
	}
	return false
}

// Form is an ordered set of fields
type Form struct {
	Fields []*Field
}

var validate = validator.New()

// Field returns the field called name, or nil
func (f *Form) Field(name string) *Field {
	for _, field := range f.Fields {
		if field.Name == name {
			return field
		}
	}
	return nil
}

// Value returns the trimmed value of the field called name
func (f *Form) Value(name string) string {
	if field := f.Field(name); field != nil {
		return field.Value
	}
	return ""
}

// Checked returns the state of the switch called name
func (f *Form) Checked(name string) bool {
	if field := f.Field(name); field != nil {
		return field.Checked
	}
	return false
}

// Bind copies submitted values into the fields. Passwords are kept as typed;
// other text is trimmed.
func (f *Form) Bind(lookup func(key string) string) {
	for _, field := range f.Fields {
		raw := lookup(field.Name)
		switch field.Kind {
		case KindSwitch:
			field.Checked = isOn(raw)
		case KindPassword:
			field.Value = raw
		default:
			field.Value = strings.TrimSpace(raw)
		}
	}
}

func isOn(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "on", "true", "1", "yes":
		return true
	}
	return false
}

// Validate runs every field rule and fills the translated errors. A select
// also rejects values it does not offer. It reports whether the form is valid.
func (f *Form) Validate(localizer *i18n.Localizer) bool {
	valid := true
	for _, field := range f.Fields {
		field.ErrorID, field.Error = "", ""
		if field.Rule == "" || field.Kind == KindSwitch {
			continue
		}

		var id string
		if err := validate.Var(field.Value, field.Rule); err != nil {
			id = field.Message
			var verrs validator.ValidationErrors
			if id == "" && errors.As(err, &verrs) && len(verrs) > 0 {
				id = "validation_" + verrs[0].Tag()
			}
			if id == "" {
				id = "validation_required"
			}
		} else if field.Kind == KindSelect && len(field.Options) > 0 && !field.offers(field.Value) {
			id = "validation_oneof"
		} else {
			continue
		}
		valid = false

		field.ErrorID = id
		field.Error = utils.T(localizer, id)
	}
	return valid
}

// Errors maps field names to the message ids of their errors
func (f *Form) Errors() map[string]string {
	out := map[string]string{}
	for _, field := range f.Fields {
		if field.ErrorID != "" {
			out[field.Name] = field.ErrorID
		}
	}
	return out
}

// SetErrors restores errors recorded by Errors
func (f *Form) SetErrors(ids map[string]string, localizer *i18n.Localizer) {
	for name, id := range ids {
		if field := f.Field(name); field != nil {
			field.ErrorID = id
			field.Error = utils.T(localizer, id)
		}
	}
}
