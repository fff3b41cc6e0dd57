// Package cancellation builds and validates single-appointment cancellation
// requests. A cancellation always carries a reason chosen from a fixed
// list; "Other" opens a mandatory free-text field.
package cancellation

import (
	"strings"

	"github.com/wolfman30/clinic-booking/internal/bulkaction"
)

// Appointment statuses the backend reports. Only the two terminal ones
// matter here.
const (
	StatusCancelled = "CANCELLED"
	StatusCompleted = "COMPLETED"
)

// Reasons is the fixed patient-facing reason list. The last entry unlocks
// the free-text field.
var Reasons = []string{
	"Schedule conflict",
	"Feeling better",
	"Found another doctor",
	"Transport issues",
	bulkaction.ReasonOther,
}

// Request is the validated cancellation payload.
type Request struct {
	AppointmentID string `json:"appointment_id"`
	Reason        string `json:"reason"`
	CustomReason  string `json:"custom_reason,omitempty"`
}

// Appointment is the subset of an appointment record the predicate needs.
type Appointment struct {
	ID     string
	Status string
}

// CanCancel reports whether an appointment may still be cancelled. The UI
// hides the action for terminal appointments instead of letting the
// backend reject the call silently.
func CanCancel(appt Appointment) bool {
	switch appt.Status {
	case StatusCancelled, StatusCompleted:
		return false
	}
	return true
}

// Validate checks a cancellation selection and builds the request. The
// reason must be one of Reasons; "Other" requires non-empty free text.
func Validate(appointmentID, reason, customReason string) (*Request, error) {
	var errs bulkaction.ValidationErrors
	if strings.TrimSpace(appointmentID) == "" {
		errs = append(errs, bulkaction.ValidationError{Field: "appointment_id", Message: "required"})
	}
	if !validReason(reason) {
		errs = append(errs, bulkaction.ValidationError{Field: "reason", Message: "must be one of the listed reasons"})
	} else if reason == bulkaction.ReasonOther && strings.TrimSpace(customReason) == "" {
		errs = append(errs, bulkaction.ValidationError{Field: "custom_reason", Message: "required when reason is Other"})
	}
	if len(errs) > 0 {
		return nil, errs
	}

	req := &Request{AppointmentID: appointmentID, Reason: reason}
	if reason == bulkaction.ReasonOther {
		req.CustomReason = strings.TrimSpace(customReason)
	}
	return req, nil
}

func validReason(reason string) bool {
	for _, r := range Reasons {
		if r == reason {
			return true
		}
	}
	return false
}
