// Package wizard drives the multi-step booking and reschedule flows as
// explicit state machines. State lives in plain serializable structs and
// every transition is an ordinary method, so the flows are testable without
// any rendering harness. Each wizard instance is owned by exactly one
// screen/session; nothing in here is shared between instances.
package wizard

import (
	"context"
	"errors"

	"github.com/wolfman30/clinic-booking/internal/clinicapi"
)

// Step names one stage of a wizard.
type Step string

const (
	StepSearch            Step = "search"
	StepWorkplaces        Step = "workplaces"
	StepSlots             Step = "slots"
	StepConfirm           Step = "confirm"
	StepSelectAppointment Step = "selectAppointment"
	StepSelectReason      Step = "selectReason"
	StepDone              Step = "done"
)

var (
	// ErrBusy is returned while a previous call is still in flight.
	// Requests within one wizard instance are strictly sequential; the
	// double-submit guard is this error, not request cancellation.
	ErrBusy = errors.New("wizard: request already in flight")

	// ErrInvalidStep is returned when a transition is attempted from the
	// wrong step.
	ErrInvalidStep = errors.New("wizard: not valid at this step")

	// ErrMissingSelection is returned when a forward transition lacks the
	// previous step's selection.
	ErrMissingSelection = errors.New("wizard: selection required")
)

// Collaborator interfaces. The wizards depend on exactly the operations
// they use; *clinicapi.Client satisfies all of them.

type SlotFetcher interface {
	FetchAvailableSlots(ctx context.Context, req clinicapi.SlotsRequest) (*clinicapi.SlotsResponse, error)
}

type DoctorSearcher interface {
	SearchDoctors(ctx context.Context, keyword string) ([]clinicapi.Doctor, error)
}

type AppointmentBooker interface {
	BookAppointment(ctx context.Context, userID string, req clinicapi.BookingRequest) (*clinicapi.BookingResponse, error)
}

type AppointmentGetter interface {
	GetAppointment(ctx context.Context, appointmentID string) (*clinicapi.Appointment, error)
}

type AppointmentLister interface {
	ListActiveAppointments(ctx context.Context, userID string) ([]clinicapi.Appointment, error)
}

type Rescheduler interface {
	RescheduleAppointment(ctx context.Context, appointmentID string, req clinicapi.RescheduleRequest) (*clinicapi.RescheduleResponse, error)
}

type AppointmentCompleter interface {
	CompleteAppointment(ctx context.Context, appointmentID string) error
}

// BookingBackend is everything the booking wizard needs from the API.
type BookingBackend interface {
	DoctorSearcher
	SlotFetcher
	AppointmentBooker
}

// RescheduleBackend is everything the reschedule wizard needs from the API.
type RescheduleBackend interface {
	AppointmentGetter
	AppointmentLister
	SlotFetcher
	Rescheduler
	AppointmentCompleter
}
