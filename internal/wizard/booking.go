package wizard

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/wolfman30/clinic-booking/internal/clinicapi"
	"github.com/wolfman30/clinic-booking/internal/slots"
	"github.com/wolfman30/clinic-booking/internal/timeparse"
	"github.com/wolfman30/clinic-booking/pkg/logging"
)

var wizardTracer = otel.Tracer("clinicbook.internal.wizard")

// BookingState is the full, serializable state of a booking flow:
// search → workplaces → slots → confirm → done.
type BookingState struct {
	SessionID string `json:"session_id"`
	Step      Step   `json:"step"`

	Query        string             `json:"query"`
	Doctors      []clinicapi.Doctor `json:"doctors,omitempty"`
	NoWorkplaces bool               `json:"no_workplaces,omitempty"` // doctors found, zero bookable locations

	SelectedDoctor    *clinicapi.Doctor    `json:"selected_doctor,omitempty"`
	SelectedWorkplace *clinicapi.Workplace `json:"selected_workplace,omitempty"`

	Slots       slots.View    `json:"slots"`
	CurrentDate string        `json:"current_date,omitempty"`
	CursorValid bool          `json:"cursor_valid"` // false after an explicit date pick
	Selected    *slots.Record `json:"selected,omitempty"`

	FetchFailed bool   `json:"fetch_failed,omitempty"` // retryable
	LastError   string `json:"last_error,omitempty"`   // user-facing
	Abandoned   bool   `json:"abandoned,omitempty"`    // unauthenticated signal received

	Result *clinicapi.BookingResponse `json:"result,omitempty"`
}

// BookingWizard orchestrates the patient booking flow against the clinic
// backend. All state is guarded by mu; operations that call the backend
// hold it for their full duration and reject overlap with ErrBusy, so a
// second submission cannot start while one is in flight.
type BookingWizard struct {
	backend BookingBackend
	logger  *logging.Logger
	now     func() time.Time

	mu    sync.Mutex
	state BookingState
}

// NewBookingWizard starts a booking flow at the search step.
func NewBookingWizard(backend BookingBackend, logger *logging.Logger) *BookingWizard {
	if backend == nil {
		panic("wizard: booking backend required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &BookingWizard{
		backend: backend,
		logger:  logger,
		now:     time.Now,
		state: BookingState{
			SessionID: uuid.NewString(),
			Step:      StepSearch,
			Slots:     slots.View{Buckets: map[string][]slots.Record{}},
		},
	}
}

// State returns a snapshot of the wizard state.
func (w *BookingWizard) State() BookingState {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.state
}

// Search runs the doctor search. Zero results keep the wizard at the
// search step with a diagnostic; results advance to workplace selection.
// Doctors without any workplace still advance, flagged NoWorkplaces, so
// the UI can tell "no doctors" from "no bookable locations".
func (w *BookingWizard) Search(ctx context.Context, query string) error {
	if err := w.begin(); err != nil {
		return err
	}
	defer w.end()
	if w.state.Step != StepSearch {
		return ErrInvalidStep
	}
	query = strings.TrimSpace(query)
	if query == "" {
		return fmt.Errorf("%w: search query", ErrMissingSelection)
	}

	w.state.Query = query
	doctors, err := w.backend.SearchDoctors(ctx, query)
	if err != nil {
		return w.fail(err, "doctor search failed")
	}

	w.state.LastError = ""
	w.state.Doctors = doctors
	if len(doctors) == 0 {
		w.state.NoWorkplaces = false
		return nil
	}

	w.state.NoWorkplaces = true
	for _, d := range doctors {
		if len(d.Workplaces) > 0 {
			w.state.NoWorkplaces = false
			break
		}
	}
	w.state.Step = StepWorkplaces
	return nil
}

// SelectWorkplace picks a doctor/workplace pair and fetches its slot data
// for the backend's default window. A fetch failure still advances to the
// slots step, with an empty view and the retryable FetchFailed flag set.
func (w *BookingWizard) SelectWorkplace(ctx context.Context, doctorID, workplaceID string) error {
	return w.selectWorkplace(ctx, doctorID, workplaceID, "")
}

// SelectWorkplaceOn is SelectWorkplace for a caller-specified date instead
// of the default window.
func (w *BookingWizard) SelectWorkplaceOn(ctx context.Context, doctorID, workplaceID, date string) error {
	return w.selectWorkplace(ctx, doctorID, workplaceID, date)
}

func (w *BookingWizard) selectWorkplace(ctx context.Context, doctorID, workplaceID, date string) error {
	if err := w.begin(); err != nil {
		return err
	}
	defer w.end()
	if w.state.Step != StepWorkplaces {
		return ErrInvalidStep
	}
	doctor, workplace := w.findWorkplace(doctorID, workplaceID)
	if doctor == nil || workplace == nil {
		return fmt.Errorf("%w: workplace", ErrMissingSelection)
	}

	w.state.SelectedDoctor = doctor
	w.state.SelectedWorkplace = workplace
	w.state.Step = StepSlots
	return w.loadSlots(ctx, date, date == "")
}

// PickDate fetches slots for an explicit date chosen in the date picker.
// This bypasses the default window, so the Previous/Next cursor becomes
// invalid until the next default-window fetch.
func (w *BookingWizard) PickDate(ctx context.Context, date string) error {
	if err := w.begin(); err != nil {
		return err
	}
	defer w.end()
	if w.state.Step != StepSlots {
		return ErrInvalidStep
	}
	return w.loadSlots(ctx, date, false)
}

// RetryFetch re-issues the last slot fetch after a failure.
func (w *BookingWizard) RetryFetch(ctx context.Context) error {
	if err := w.begin(); err != nil {
		return err
	}
	defer w.end()
	if w.state.Step != StepSlots {
		return ErrInvalidStep
	}
	date := ""
	if !w.state.CursorValid {
		date = w.state.CurrentDate
	}
	return w.loadSlots(ctx, date, date == "")
}

func (w *BookingWizard) loadSlots(ctx context.Context, date string, cursorValid bool) error {
	w.state.Selected = nil
	resp, err := w.backend.FetchAvailableSlots(ctx, clinicapi.SlotsRequest{
		DoctorID:    w.state.SelectedDoctor.ID,
		WorkplaceID: w.state.SelectedWorkplace.ID,
		Date:        date,
	})
	if err != nil {
		// Never fatal: the wizard stays on the slots step with an empty
		// but valid view so the user can retry.
		w.state.Slots = slots.View{Buckets: map[string][]slots.Record{}}
		w.state.CurrentDate = date
		w.state.CursorValid = false
		return w.fail(err, "slot fetch failed")
	}

	view := slots.Build(resp.SlotsByDate, w.now(), slots.WithMeta(
		w.state.SelectedDoctor.ID,
		firstNonEmpty(resp.DoctorName, w.state.SelectedDoctor.Name),
		w.state.SelectedWorkplace.ID,
		firstNonEmpty(resp.WorkplaceName, w.state.SelectedWorkplace.Name),
	))
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

// NextDay moves the date cursor forward within the fetched window. At the
// last date, or after an explicit date pick, it is a no-op.
func (w *BookingWizard) NextDay() string {
	return w.moveCursor(func(c *slots.Cursor) string { return c.Next() })
}

// PrevDay moves the date cursor backward within the fetched window.
func (w *BookingWizard) PrevDay() string {
	return w.moveCursor(func(c *slots.Cursor) string { return c.Prev() })
}

func (w *BookingWizard) moveCursor(move func(*slots.Cursor) string) string {
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

// SelectSlot picks a slot by record ID and advances to confirmation.
func (w *BookingWizard) SelectSlot(id string) error {
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
	w.state.Step = StepConfirm
	return nil
}

// Confirm books the selected {workplace, date, slot} triple. On a
// submission failure the wizard stays on the confirm step with the
// backend's message, so the user can retry without re-selecting anything.
func (w *BookingWizard) Confirm(ctx context.Context, userID, notes string) error {
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

	ctx, span := wizardTracer.Start(ctx, "wizard.booking.confirm")
	defer span.End()
	span.SetAttributes(
		attribute.String("clinicbook.session_id", w.state.SessionID),
		attribute.String("clinicbook.workplace_id", w.state.SelectedWorkplace.ID),
		attribute.String("clinicbook.date", w.state.Selected.Date),
	)

	resp, err := w.backend.BookAppointment(ctx, userID, clinicapi.BookingRequest{
		DoctorID:      w.state.SelectedDoctor.ID,
		WorkplaceID:   w.state.SelectedWorkplace.ID,
		RequestedTime: slotStartDateTime(w.state.Selected.Date, w.state.Selected.SlotTime),
		Slot:          w.state.Selected.SlotTime,
		Notes:         notes,
	})
	if err != nil {
		span.RecordError(err)
		return w.fail(err, "booking submission failed")
	}

	w.state.Result = resp
	w.state.LastError = ""
	w.state.Step = StepDone
	w.logger.Info("appointment booked",
		"session_id", w.state.SessionID,
		"workplace", w.state.SelectedWorkplace.ID,
		"date", w.state.Selected.Date,
		"slot", w.state.Selected.SlotTime,
	)
	return nil
}

// Back steps to the previous stage, clearing only what the abandoned step
// captured. Returning to search keeps the query text.
func (w *BookingWizard) Back() {
	w.mu.Lock()
	defer w.mu.Unlock()
	switch w.state.Step {
	case StepConfirm:
		w.state.Selected = nil
		w.state.Step = StepSlots
	case StepSlots:
		w.state.Slots = slots.View{Buckets: map[string][]slots.Record{}}
		w.state.CurrentDate = ""
		w.state.CursorValid = false
		w.state.FetchFailed = false
		w.state.SelectedDoctor = nil
		w.state.SelectedWorkplace = nil
		w.state.Step = StepWorkplaces
	case StepWorkplaces:
		w.state.Step = StepSearch
	}
	w.state.LastError = ""
}

// begin claims the wizard for a remote operation. An overlapping call
// gets ErrBusy instead of queueing, so the first submission always wins.
func (w *BookingWizard) begin() error {
	if !w.mu.TryLock() {
		return ErrBusy
	}
	return nil
}

func (w *BookingWizard) end() { w.mu.Unlock() }

// fail records a user-facing message and maps the unauthenticated signal
// to flow abandonment.
func (w *BookingWizard) fail(err error, logMsg string) error {
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

func (w *BookingWizard) findWorkplace(doctorID, workplaceID string) (*clinicapi.Doctor, *clinicapi.Workplace) {
	for i := range w.state.Doctors {
		if w.state.Doctors[i].ID != doctorID {
			continue
		}
		for j := range w.state.Doctors[i].Workplaces {
			if w.state.Doctors[i].Workplaces[j].ID == workplaceID {
				return &w.state.Doctors[i], &w.state.Doctors[i].Workplaces[j]
			}
		}
	}
	return nil, nil
}

// slotStartDateTime combines a slot's date and the start of its time range
// into the ISO date-time the booking endpoint expects.
func slotStartDateTime(date, slotTime string) string {
	start := slotTime
	if idx := strings.Index(slotTime, " - "); idx >= 0 {
		start = slotTime[:idx]
	}
	return date + "T" + timeparse.Parse(start).APIString() + ":00"
}

func firstNonEmpty(a, b string) string {
	if a != "" {
		return a
	}
	return b
}
