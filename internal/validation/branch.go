// Package validation holds input checks shared by services and repositories.
package validation

import (
	"fmt"
	"net/url"
	"strings"

	"chif/internal/models"
)

const (
	maxNameLen     = 160
	maxPhoneLen    = 64
	maxLocationLen = 255
	maxTimeLen     = 64
)

// Errors collects every failing field so callers can report them together.
type Errors []models.FieldError

// Add records a failing field.
func (e *Errors) Add(field, message string) {
	*e = append(*e, models.FieldError{Field: field, Message: message})
}

// Err returns a validation AppError listing every field, or nil when empty.
func (e Errors) Err() error {
	if len(e) == 0 {
		return nil
	}
	return models.NewFieldValidationError(e)
}

// Required adds an error when value is blank.
func (e *Errors) Required(field, value string) {
	if strings.TrimSpace(value) == "" {
		e.Add(field, "is required")
	}
}

// MaxLen adds an error when value exceeds n bytes.
func (e *Errors) MaxLen(field, value string, n int) {
	if len(value) > n {
		e.Add(field, fmt.Sprintf("must be at most %d characters", n))
	}
}

// BranchScalars checks the required scalar fields of a branch.
func BranchScalars(b *models.Branch) Errors {
	var errs Errors
	BranchName(&errs, b.Name)
	BranchAddress(&errs, b.Address)
	BranchPhone(&errs, b.Phone)
	return errs
}

func BranchName(errs *Errors, name string) {
	errs.Required("name", name)
	errs.MaxLen("name", name, maxNameLen)
}

func BranchAddress(errs *Errors, address string) {
	errs.Required("address", address)
}

func BranchPhone(errs *Errors, phone string) {
	errs.Required("phone", phone)
	errs.MaxLen("phone", phone, maxPhoneLen)
}

// Branch checks a full branch including its service slots.
func Branch(b *models.Branch) Errors {
	errs := BranchScalars(b)
	errs = append(errs, Services(b.Services)...)
	return errs
}

// Services checks each slot, naming failures services[i].field.
func Services(services []models.Service) Errors {
	var errs Errors
	for i := range services {
		s := &services[i]
		prefix := fmt.Sprintf("services[%d].", i)

		if !IsWeekday(s.Day) {
			errs.Add(prefix+"day", "must be a weekday name such as Sunday")
		}
		switch s.Type {
		case models.ServiceModeInPerson, models.ServiceModeOnline:
		default:
			errs.Add(prefix+"type", fmt.Sprintf("must be %q or %q", models.ServiceModeInPerson, models.ServiceModeOnline))
		}
		errs.Required(prefix+"time", s.Time)
		errs.MaxLen(prefix+"time", s.Time, maxTimeLen)
		errs.Required(prefix+"location", s.Location)
		errs.MaxLen(prefix+"location", s.Location, maxLocationLen)

		if s.Link != nil && *s.Link != "" {
			if !isHTTPURL(*s.Link) {
				errs.Add(prefix+"link", "must be a valid http(s) URL")
			}
		}
	}
	return errs
}

// IsWeekday reports whether day is one of models.Weekdays, matched exactly.
func IsWeekday(day string) bool {
	for _, d := range models.Weekdays {
		if day == d {
			return true
		}
	}
	return false
}

// NormalizeWeekday title-cases common spellings ("sunday", " SUNDAY ") so
// stored days sort consistently.
func NormalizeWeekday(day string) string {
	d := strings.ToLower(strings.TrimSpace(day))
	for _, w := range models.Weekdays {
		if strings.ToLower(w) == d {
			return w
		}
	}
	return strings.TrimSpace(day)
}

func isHTTPURL(raw string) bool {
	u, err := url.ParseRequestURI(raw)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}
