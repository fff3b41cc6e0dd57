// Package bulkaction validates and serializes the doctor-side bulk forms:
// shifting every booking at a workplace by a time offset and/or a new date,
// and cancelling a whole day. Validation runs entirely locally, before any
// request is built.
package bulkaction

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// DateOption selects how the target date of a bulk action is chosen.
type DateOption string

const (
	DateNone     DateOption = "none"
	DateToday    DateOption = "today"
	DateTomorrow DateOption = "tomorrow"
	DateCustom   DateOption = "custom"
)

// ReasonOther is the free-text escape hatch in every reason list.
const ReasonOther = "Other"

// Form is the partially-filled doctor-side form as the UI hands it over.
// Extend fields stay strings here because the UI cannot guarantee numerics;
// conversion happens during validation.
type Form struct {
	ExtendHours   string     `json:"extend_hours"`
	ExtendMinutes string     `json:"extend_minutes"`
	DateOption    DateOption `json:"date_option"`
	CustomDate    string     `json:"custom_date"` // YYYY-MM-DD
	Reason        string     `json:"reason"`
	CustomReason  string     `json:"custom_reason"`
}

// ReschedulePayload is the exact wire shape of a bulk reschedule. The
// backend requires numeric extend fields (0 when unset) and an explicit
// empty string, not an omitted field, when no date change is requested.
type ReschedulePayload struct {
	ExtendHours   int    `json:"extendHours"`
	ExtendMinutes int    `json:"extendMinutes"`
	NewDate       string `json:"newDate"`
	Reason        string `json:"reason"`
}

// CancelDayPayload is the wire shape of a cancel-day request.
type CancelDayPayload struct {
	Date   string `json:"date"` // YYYY-MM-DD
	Reason string `json:"reason"`
}

// ValidationError flags one invalid field.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationErrors aggregates every failed rule so the form can highlight
// all of them at once.
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	msgs := make([]string, len(e))
	for i, err := range e {
		msgs[i] = err.Error()
	}
	return strings.Join(msgs, "; ")
}

// ValidateBulkReschedule checks a bulk-reschedule form and, when valid,
// serializes it into the exact payload shape. At least one of the time
// extension and the date change must be present.
func ValidateBulkReschedule(form Form, now time.Time) (*ReschedulePayload, error) {
	var errs ValidationErrors

	hours, hoursSet, hoursErr := parseExtend(form.ExtendHours)
	minutes, minutesSet, minutesErr := parseExtend(form.ExtendMinutes)
	if hoursErr != nil {
		errs = append(errs, ValidationError{"extend_hours", "must be a number"})
	}
	if minutesErr != nil {
		errs = append(errs, ValidationError{"extend_minutes", "must be a number"})
	}

	dateOption := form.DateOption
	if dateOption == "" {
		dateOption = DateNone
	}
	if !hoursSet && !minutesSet && dateOption == DateNone {
		errs = append(errs, ValidationError{"form", "set a time extension or a date change"})
	}

	errs = append(errs, checkReason(form)...)
	errs = append(errs, checkCustomDate(dateOption, form.CustomDate, now)...)
	if len(errs) > 0 {
		return nil, errs
	}

	return &ReschedulePayload{
		ExtendHours:   hours,
		ExtendMinutes: minutes,
		NewDate:       ResolveDate(dateOption, form.CustomDate, now),
		Reason:        resolveReason(form),
	}, nil
}

// ValidateCancelDay checks a cancel-day form. The date option defaults to
// today; "none" is not a valid choice for a cancellation.
func ValidateCancelDay(form Form, now time.Time) (*CancelDayPayload, error) {
	dateOption := form.DateOption
	if dateOption == "" || dateOption == DateNone {
		dateOption = DateToday
	}

	var errs ValidationErrors
	errs = append(errs, checkReason(form)...)
	errs = append(errs, checkCustomDate(dateOption, form.CustomDate, now)...)
	if len(errs) > 0 {
		return nil, errs
	}

	return &CancelDayPayload{
		Date:   ResolveDate(dateOption, form.CustomDate, now),
		Reason: resolveReason(form),
	}, nil
}

// ResolveDate turns a date option into the wire date string. Today and
// tomorrow are computed from local calendar components; formatting an
// instant through UTC shifts the day near midnight, so that path is never
// taken. Custom returns the stored value verbatim; none returns "".
func ResolveDate(option DateOption, customDate string, now time.Time) string {
	switch option {
	case DateToday:
		return localDateString(now)
	case DateTomorrow:
		return localDateString(now.AddDate(0, 0, 1))
	case DateCustom:
		return strings.TrimSpace(customDate)
	default:
		return ""
	}
}

func localDateString(t time.Time) string {
	y, m, d := t.Date()
	return fmt.Sprintf("%04d-%02d-%02d", y, m, d)
}

func checkReason(form Form) ValidationErrors {
	var errs ValidationErrors
	if strings.TrimSpace(form.Reason) == "" {
		errs = append(errs, ValidationError{"reason", "required"})
	} else if form.Reason == ReasonOther && strings.TrimSpace(form.CustomReason) == "" {
		errs = append(errs, ValidationError{"custom_reason", "required when reason is Other"})
	}
	return errs
}

func checkCustomDate(option DateOption, customDate string, now time.Time) ValidationErrors {
	if option != DateCustom {
		return nil
	}
	trimmed := strings.TrimSpace(customDate)
	if trimmed == "" {
		return ValidationErrors{{"custom_date", "required when date option is custom"}}
	}
	parsed, err := time.Parse("2006-01-02", trimmed)
	if err != nil {
		return ValidationErrors{{"custom_date", "must be YYYY-MM-DD"}}
	}
	if beforeLocalDay(parsed, now) {
		return ValidationErrors{{"custom_date", "must not be in the past"}}
	}
	return nil
}

// beforeLocalDay compares calendar days by explicit y/m/d fields.
func beforeLocalDay(date, now time.Time) bool {
	dy, dm, dd := date.Date()
	ny, nm, nd := now.Date()
	if dy != ny {
		return dy < ny
	}
	if dm != nm {
		return dm < nm
	}
	return dd < nd
}

func resolveReason(form Form) string {
	if form.Reason == ReasonOther {
		return strings.TrimSpace(form.CustomReason)
	}
	return form.Reason
}

// parseExtend interprets a raw extend field: empty means unset, anything
// else must be an integer number of hours/minutes.
func parseExtend(raw string) (value int, set bool, err error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return 0, false, nil
	}
	n, err := strconv.Atoi(trimmed)
	if err != nil {
		return 0, false, err
	}
	return n, true, nil
}
