package wizard

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"

	"github.com/wolfman30/clinic-booking/internal/bulkaction"
	"github.com/wolfman30/clinic-booking/internal/clinicapi"
	"github.com/wolfman30/clinic-booking/internal/slots"
	"github.com/wolfman30/clinic-booking/pkg/logging"
)

// Mode selects how a reschedule flow is entered.
type Mode string

const (
	// ModeDirect starts from a known appointment ID.
	ModeDirect Mode = "direct"
	// ModePickOne makes the patient choose from their active bookings.
	ModePickOne Mode = "pickOne"
	// ModeRevisit is the doctor-initiated follow-up: the appointment
	// object is supplied directly, reason selection is skipped, and the
	// original appointment is completed after the reschedule.
	ModeRevisit Mode = "revisit"
)

// RevisitReason is the fixed system reason used by revisit reschedules.
const RevisitReason = "Doctor scheduled a follow-up visit"

// RescheduleReasons is the patient-facing reason list; Other unlocks the
// free-text field.
var RescheduleReasons = []string{
	"Schedule conflict",
	"Need a different time",
	"Doctor requested change",
	bulkaction.ReasonOther,
}

// RescheduleState is the serializable state of a reschedule flow.
type RescheduleState struct {
	SessionID string `json:"session_id"`
	Mode      Mode   `json:"mode"`
	Step      Step   `json:"step"`

	Appointments []clinicapi.Appointment `json:"appointments,omitempty"` // pick-one only
	Appointment  *clinicapi.Appointment  `json:"appointment,omitempty"`

	Slots       slots.View    `json:"slots"`
	CurrentDate string        `json:"current_date,omitempty"`
	CursorValid bool          `json:"cursor_valid"`
	Selected    *slots.Record `json:"selected,omitempty"`

	Reason       string `json:"reason,omitempty"`
	CustomReason string `json:"custom_reason,omitempty"`

	FetchFailed bool   `json:"fetch_failed,omitempty"`
	LastError   string `json:"last_error,omitempty"`
	Abandoned   bool   `json:"abandoned,omitempty"`

	Result *clinicapi.RescheduleResponse `json:"result,omitempty"`
	// CompleteFailed is set when the revisit flow's secondary
	// complete-original call failed. The reschedule result stands.
	CompleteFailed bool `json:"complete_failed,omitempty"`
}

// RescheduleWizard orchestrates rescheduling an existing appointment.
// All state is guarded by mu; operations that call the backend hold it
// for their full duration and reject overlap with ErrBusy.
type RescheduleWizard struct {
	backend RescheduleBackend
	logger  *logging.Logger
	now     func() time.Time

	mu    sync.Mutex
	state RescheduleState
}

// NewRescheduleWizard creates a reschedule flow in the given mode.
func NewRescheduleWizard(backend RescheduleBackend, mode Mode, logger *logging.Logger) *RescheduleWizard {
	if backend == nil {
		panic("wizard: reschedule backend required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	step := StepSlots
	if mode == ModePickOne {
		step = StepSelectAppointment
	}
	return &RescheduleWizard{
		backend: backend,
		logger:  logger,
		now:     time.Now,
		state: RescheduleState{
			SessionID: uuid.NewString(),
			Mode:      mode,
			Step:      step,
			Slots:     slots.View{Buckets: map[string][]slots.Record{}},
		},
	}
}

// State returns a snapshot of the wizard state.
func (w *RescheduleWizard) State() RescheduleState {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.state
}

// StartWithAppointmentID enters a direct-mode flow: the appointment is
// looked up and its slot alternatives fetched.
func (w *RescheduleWizard) StartWithAppointmentID(ctx context.Context, appointmentID string) error {
	if err := w.begin(); err != nil {
		return err
	}
	defer w.end()
	if w.state.Mode != ModeDirect || w.state.Appointment != nil {
		return ErrInvalidStep
	}

	appt, err := w.backend.GetAppointment(ctx, appointmentID)
	if err != nil {
		return w.fail(err, "appointment lookup failed")
	}
	w.state.Appointment = appt
	return w.loadSlots(ctx, "", true)
}

// StartWithAppointment enters a revisit flow with the appointment object
// the doctor already holds.
func (w *RescheduleWizard) StartWithAppointment(ctx context.Context, appt clinicapi.Appointment) error {
	if err := w.begin(); err != nil {
		return err
	}
	defer w.end()
	if w.state.Mode != ModeRevisit || w.state.Appointment != nil {
		return ErrInvalidStep
	}

	w.state.Appointment = &appt
	return w.loadSlots(ctx, "", true)
}

// LoadAppointments fills the pick-one list with the patient's active
// bookings.
func (w *RescheduleWizard) LoadAppointments(ctx context.Context, userID string) error {
	if err := w.begin(); err != nil {
		return err
	}
	defer w.end()
	if w.state.Mode != ModePickOne || w.state.Step != StepSelectAppointment {
		return ErrInvalidStep
	}

	appts, err := w.backend.ListActiveAppointments(ctx, userID)
	if err != nil {
		return w.fail(err, "appointment list failed")
	}
	w.state.Appointments = appts
	w.state.LastError = ""
	return nil
}

// SelectAppointment picks one of the loaded bookings and fetches its slot
// alternatives.
func (w *RescheduleWizard) SelectAppointment(ctx context.Context, appointmentID string) error {
	if err := w.begin(); err != nil {
		return err
	}
	defer w.end()
	if w.state.Mode != ModePickOne || w.state.Step != StepSelectAppointment {
		return ErrInvalidStep
	}
	var appt *clinicapi.Appointment
	for i := range w.state.Appointments {
		if w.state.Appointments[i].ID == appointmentID {
			appt = &w.state.Appointments[i]
			break
		}
	}
	if appt == nil {
		return fmt.Errorf("%w: appointment %q", ErrMissingSelection, appointmentID)
	}

	w.state.Appointment = appt
	w.state.Step = StepSlots
	return w.loadSlots(ctx, "", true)
}

// PickDate fetches slot alternatives for an explicit date, invalidating
// the Previous/Next cursor.
func (w *RescheduleWizard) PickDate(ctx context.Context, date string) error {
	if err := w.begin(); err != nil {
		return err
	}
	defer w.end()
	// A failed direct-mode start leaves the flow at the slots step with no
	// appointment to scope the fetch to.
	if w.state.Step != StepSlots || w.state.Appointment == nil {
		return ErrInvalidStep
	}
	return w.loadSlots(ctx, date, false)
}

// RetryFetch re-issues the last slot fetch after a failure.
func (w *RescheduleWizard) RetryFetch(ctx context.Context) error {
	if err := w.begin(); err != nil {
		return err
	}
	defer w.end()
	if w.state.Step != StepSlots || w.state.Appointment == nil {
		return ErrInvalidStep
	}
	date := ""
	if !w.state.CursorValid {
		date = w.state.CurrentDate
	}
	return w.loadSlots(ctx, date, date == "")
}

// loadSlots fetches alternatives scoped to the original appointment's
// doctor/workplace. The appointment's current slot is excluded so the
// patient cannot reschedule onto the slot they already hold.
func (w *RescheduleWizard) loadSlots(ctx context.Context, date string, cursorValid bool) error {
	appt := w.state.Appointment
	w.state.Selected = nil
	w.state.Step = StepSlots

	resp, err := w.backend.FetchAvailableSlots(ctx, clinicapi.SlotsRequest{
		DoctorID:    appt.DoctorID,
		WorkplaceID: appt.WorkplaceID,
		Date:        date,
	})
	if err != nil {
		w.state.Slots = slots.View{Buckets: map[string][]slots.Record{}}
		w.state.CurrentDate = date
		w.state.CursorValid = false
		return w.fail(err, "slot fetch failed")
	}

	view := slots.Build(resp.SlotsByDate, w.now(),
		slots.WithMeta(appt.DoctorID, appt.DoctorName, appt.WorkplaceID, appt.WorkplaceName),
		slots.WithExcludeTime(appt.AppointmentDate, appt.Slot),
	)
	w.state.Slots = view
	w.state.FetchFailed = false
	w.state.LastError = ""
	w.state.CursorValid = cursorValid && !view.Empty()
	if date != "" {
		w.state.CurrentDate = date
	} else if !view.Empty() {
		w.state.CurrentDate = view.Dates[0]
	} else {
		w.state.CurrentDate = ""
	}
	return nil
}

// NextDay moves the date cursor forward within the fetched window.
func (w *RescheduleWizard) NextDay() string {
	return w.moveCursor(func(c *slots.Cursor) string { return c.Next() })
}

// PrevDay moves the date cursor backward within the fetched window.
func (w *RescheduleWizard) PrevDay() string {
	return w.moveCursor(func(c *slots.Cursor) string { return c.Prev() })
}

func (w *RescheduleWizard) moveCursor(move func(*slots.Cursor) string) string {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.state.Step != StepSlots || !w.state.CursorValid {
		return w.state.CurrentDate
	}
	cursor := slots.NewCursor(w.state.Slots.Dates, w.state.CurrentDate)
	next := move(cursor)
	if next != w.state.CurrentDate {
		w.state.CurrentDate = next
		w.state.Selected = nil
	}
	return w.state.CurrentDate
}

// SelectSlot picks the new slot. Revisit flows go straight to confirm;
// patient flows select a reason first.
func (w *RescheduleWizard) SelectSlot(id string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.state.Step != StepSlots {
		return ErrInvalidStep
	}
	rec, ok := w.state.Slots.Find(id)
	if !ok {
		return fmt.Errorf("%w: slot %q", ErrMissingSelection, id)
	}
	w.state.Selected = &rec
	if w.state.Mode == ModeRevisit {
		w.state.Reason = RevisitReason
		w.state.Step = StepConfirm
	} else {
		w.state.Step = StepSelectReason
	}
	return nil
}

// SetReason records the reschedule reason. Other requires non-empty free
// text before the flow advances to confirm.
func (w *RescheduleWizard) SetReason(reason, customReason string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.state.Step != StepSelectReason {
		return ErrInvalidStep
	}
	valid := false
	for _, r := range RescheduleReasons {
		if r == reason {
			valid = true
			break
		}
	}
	if !valid {
		return fmt.Errorf("%w: reason %q", ErrMissingSelection, reason)
	}
	if reason == bulkaction.ReasonOther && strings.TrimSpace(customReason) == "" {
		return fmt.Errorf("%w: custom reason", ErrMissingSelection)
	}
	w.state.Reason = reason
	w.state.CustomReason = strings.TrimSpace(customReason)
	w.state.Step = StepConfirm
	return nil
}

// Confirm submits the reschedule. In revisit mode a successful reschedule
// is followed by completing the original appointment; if that secondary
// call fails, the failure is recorded and reported but the reschedule
// stands — the two systems reconcile eventually.
func (w *RescheduleWizard) Confirm(ctx context.Context) error {
	if err := w.begin(); err != nil {
		return err
	}
	defer w.end()
	if w.state.Step != StepConfirm {
		return ErrInvalidStep
	}
	if w.state.Selected == nil {
		return fmt.Errorf("%w: slot", ErrMissingSelection)
	}

	ctx, span := wizardTracer.Start(ctx, "wizard.reschedule.confirm")
	defer span.End()
	span.SetAttributes(
		attribute.String("clinicbook.session_id", w.state.SessionID),
		attribute.String("clinicbook.mode", string(w.state.Mode)),
		attribute.String("clinicbook.appointment_id", w.state.Appointment.ID),
	)

	reason := w.state.Reason
	if reason == bulkaction.ReasonOther {
		reason = w.state.CustomReason
	}
	resp, err := w.backend.RescheduleAppointment(ctx, w.state.Appointment.ID, clinicapi.RescheduleRequest{
		Reason:             reason,
		NewAppointmentDate: w.state.Selected.Date,
		NewTimeSlot:        w.state.Selected.SlotTime,
	})
	if err != nil {
		span.RecordError(err)
		return w.fail(err, "reschedule submission failed")
	}

	w.state.Result = resp
	w.state.LastError = ""
	w.state.Step = StepDone
	w.logger.Info("appointment rescheduled",
		"session_id", w.state.SessionID,
		"appointment_id", w.state.Appointment.ID,
		"new_date", w.state.Selected.Date,
		"new_slot", w.state.Selected.SlotTime,
	)

	if w.state.Mode == ModeRevisit {
		if err := w.backend.CompleteAppointment(ctx, w.state.Appointment.ID); err != nil {
			w.state.CompleteFailed = true
			w.logger.Error("complete-original failed after revisit reschedule",
				"session_id", w.state.SessionID,
				"appointment_id", w.state.Appointment.ID,
				"error", err,
			)
		}
	}
	return nil
}

// Back steps to the previous stage, clearing only what the abandoned step
// captured.
func (w *RescheduleWizard) Back() {
	w.mu.Lock()
	defer w.mu.Unlock()
	switch w.state.Step {
	case StepConfirm:
		if w.state.Mode == ModeRevisit {
			w.state.Selected = nil
			w.state.Step = StepSlots
		} else {
			w.state.Reason = ""
			w.state.CustomReason = ""
			w.state.Step = StepSelectReason
		}
	case StepSelectReason:
		w.state.Selected = nil
		w.state.Step = StepSlots
	case StepSlots:
		if w.state.Mode == ModePickOne {
			w.state.Appointment = nil
			w.state.Slots = slots.View{Buckets: map[string][]slots.Record{}}
			w.state.CurrentDate = ""
			w.state.CursorValid = false
			w.state.FetchFailed = false
			w.state.Step = StepSelectAppointment
		}
	}
	w.state.LastError = ""
}

// begin claims the wizard for a remote operation. An overlapping call
// gets ErrBusy instead of queueing, so the first submission always wins.
func (w *RescheduleWizard) begin() error {
	if !w.mu.TryLock() {
		return ErrBusy
	}
	return nil
}

func (w *RescheduleWizard) end() { w.mu.Unlock() }

func (w *RescheduleWizard) fail(err error, logMsg string) error {
	if errors.Is(err, clinicapi.ErrUnauthorized) {
		w.state.Abandoned = true
		w.state.Step = StepDone
		w.logger.Warn("flow abandoned: unauthenticated", "session_id", w.state.SessionID)
		return err
	}
	if w.state.Step == StepSlots {
		w.state.FetchFailed = true
	}
	w.state.LastError = clinicapi.UserMessage(err)
	w.logger.Warn(logMsg, "session_id", w.state.SessionID, "error", err)
	return err
}
