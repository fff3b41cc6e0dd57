package wizard

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/clinic-booking/internal/clinicapi"
)

var testNow = time.Date(2026, 3, 15, 10, 0, 0, 0, time.Local)

// fakeBackend scripts the API boundary for wizard tests.
type fakeBackend struct {
	doctors    []clinicapi.Doctor
	searchErr  error
	slots      map[string][]string
	slotsErr   error
	slotsCalls []clinicapi.SlotsRequest

	bookResp *clinicapi.BookingResponse
	bookErr  error
	booked   []clinicapi.BookingRequest

	appointment    *clinicapi.Appointment
	getApptErr     error
	appointments   []clinicapi.Appointment
	rescheduleResp *clinicapi.RescheduleResponse
	rescheduleErr  error
	rescheduled    []clinicapi.RescheduleRequest
	completeErr    error
	completedIDs   []string

	// entered/release let a test hold a call open mid-flight.
	entered chan struct{}
	release chan struct{}
}

func (f *fakeBackend) hold() {
	if f.entered != nil {
		f.entered <- struct{}{}
	}
	if f.release != nil {
		<-f.release
	}
}

func (f *fakeBackend) SearchDoctors(ctx context.Context, keyword string) ([]clinicapi.Doctor, error) {
	f.hold()
	return f.doctors, f.searchErr
}

func (f *fakeBackend) FetchAvailableSlots(ctx context.Context, req clinicapi.SlotsRequest) (*clinicapi.SlotsResponse, error) {
	f.slotsCalls = append(f.slotsCalls, req)
	if f.slotsErr != nil {
		return nil, f.slotsErr
	}
	return &clinicapi.SlotsResponse{
		SlotsByDate:   f.slots,
		DoctorName:    "Dr. Khan",
		WorkplaceName: "City Clinic",
	}, nil
}

func (f *fakeBackend) BookAppointment(ctx context.Context, userID string, req clinicapi.BookingRequest) (*clinicapi.BookingResponse, error) {
	f.hold()
	f.booked = append(f.booked, req)
	return f.bookResp, f.bookErr
}

func (f *fakeBackend) GetAppointment(ctx context.Context, id string) (*clinicapi.Appointment, error) {
	if f.getApptErr != nil {
		return nil, f.getApptErr
	}
	return f.appointment, nil
}

func (f *fakeBackend) ListActiveAppointments(ctx context.Context, userID string) ([]clinicapi.Appointment, error) {
	return f.appointments, nil
}

func (f *fakeBackend) RescheduleAppointment(ctx context.Context, id string, req clinicapi.RescheduleRequest) (*clinicapi.RescheduleResponse, error) {
	f.rescheduled = append(f.rescheduled, req)
	return f.rescheduleResp, f.rescheduleErr
}

func (f *fakeBackend) CompleteAppointment(ctx context.Context, id string) error {
	f.completedIDs = append(f.completedIDs, id)
	return f.completeErr
}

func twoWorkplaceDoctors() []clinicapi.Doctor {
	return []clinicapi.Doctor{
		{
			ID:   "doc-1",
			Name: "Dr. Khan",
			Workplaces: []clinicapi.Workplace{
				{ID: "wp-1", Name: "City Clinic"},
				{ID: "wp-2", Name: "Valley Hospital"},
			},
		},
	}
}

func newTestBookingWizard(backend *fakeBackend) *BookingWizard {
	w := NewBookingWizard(backend, nil)
	w.now = func() time.Time { return testNow }
	return w
}

func TestBookingSearchAdvances(t *testing.T) {
	backend := &fakeBackend{doctors: twoWorkplaceDoctors()}
	w := newTestBookingWizard(backend)

	require.NoError(t, w.Search(context.Background(), "khan"))
	st := w.State()
	assert.Equal(t, StepWorkplaces, st.Step)
	assert.Len(t, st.Doctors, 1)
	assert.False(t, st.NoWorkplaces)
}

func TestBookingSearchRequiresQuery(t *testing.T) {
	w := newTestBookingWizard(&fakeBackend{})
	err := w.Search(context.Background(), "   ")
	assert.ErrorIs(t, err, ErrMissingSelection)
	assert.Equal(t, StepSearch, w.State().Step)
}

func TestBookingSearchZeroDoctorsStays(t *testing.T) {
	w := newTestBookingWizard(&fakeBackend{})
	require.NoError(t, w.Search(context.Background(), "nobody"))
	st := w.State()
	assert.Equal(t, StepSearch, st.Step)
	assert.Empty(t, st.Doctors)
}

func TestBookingSearchNoWorkplacesDiagnostic(t *testing.T) {
	backend := &fakeBackend{doctors: []clinicapi.Doctor{
		{ID: "doc-1", Name: "Dr. Khan", Workplaces: []clinicapi.Workplace{}},
	}}
	w := newTestBookingWizard(backend)

	require.NoError(t, w.Search(context.Background(), "khan"))
	st := w.State()
	// Doctors exist but there is nowhere to book: still advances, flagged.
	assert.Equal(t, StepWorkplaces, st.Step)
	assert.True(t, st.NoWorkplaces)
}

func TestBookingSelectWorkplaceFetchesDefaultWindow(t *testing.T) {
	backend := &fakeBackend{
		doctors: twoWorkplaceDoctors(),
		slots: map[string][]string{
			"2026-03-15": {"9:00 AM", "9:30 AM"},
			"2026-03-16": {"10:00 AM"},
			"2026-03-17": {},
		},
	}
	w := newTestBookingWizard(backend)
	require.NoError(t, w.Search(context.Background(), "khan"))
	require.NoError(t, w.SelectWorkplace(context.Background(), "doc-1", "wp-1"))

	st := w.State()
	assert.Equal(t, StepSlots, st.Step)
	assert.Equal(t, []string{"2026-03-15", "2026-03-16", "2026-03-17"}, st.Slots.Dates)
	assert.Equal(t, "2026-03-15", st.CurrentDate)
	assert.True(t, st.CursorValid)

	require.Len(t, backend.slotsCalls, 1)
	assert.Empty(t, backend.slotsCalls[0].Date, "default window fetch must omit the date")
}

func TestBookingSelectUnknownWorkplace(t *testing.T) {
	backend := &fakeBackend{doctors: twoWorkplaceDoctors()}
	w := newTestBookingWizard(backend)
	require.NoError(t, w.Search(context.Background(), "khan"))

	err := w.SelectWorkplace(context.Background(), "doc-1", "wp-99")
	assert.ErrorIs(t, err, ErrMissingSelection)
	assert.Equal(t, StepWorkplaces, w.State().Step)
}

func TestBookingFetchFailureIsRetryable(t *testing.T) {
	backend := &fakeBackend{
		doctors:  twoWorkplaceDoctors(),
		slotsErr: errors.New("timeout"),
	}
	w := newTestBookingWizard(backend)
	require.NoError(t, w.Search(context.Background(), "khan"))

	err := w.SelectWorkplace(context.Background(), "doc-1", "wp-1")
	require.Error(t, err)

	st := w.State()
	assert.Equal(t, StepSlots, st.Step, "fetch failure must not be fatal to the flow")
	assert.True(t, st.FetchFailed)
	assert.True(t, st.Slots.Empty())
	assert.NotEmpty(t, st.LastError)

	// Retry succeeds and clears the flag.
	backend.slotsErr = nil
	backend.slots = map[string][]string{"2026-03-16": {"10:00 AM"}}
	require.NoError(t, w.RetryFetch(context.Background()))
	st = w.State()
	assert.False(t, st.FetchFailed)
	assert.Equal(t, []string{"2026-03-16"}, st.Slots.Dates)
}

func TestBookingCursorNavigation(t *testing.T) {
	backend := &fakeBackend{
		doctors: twoWorkplaceDoctors(),
		slots: map[string][]string{
			"2026-03-15": {"9:00 AM"},
			"2026-03-16": {"10:00 AM"},
			"2026-03-17": {"11:00 AM"},
		},
	}
	w := newTestBookingWizard(backend)
	require.NoError(t, w.Search(context.Background(), "khan"))
	require.NoError(t, w.SelectWorkplace(context.Background(), "doc-1", "wp-1"))

	assert.Equal(t, "2026-03-15", w.PrevDay(), "prev at first date is a no-op")
	assert.Equal(t, "2026-03-16", w.NextDay())
	assert.Equal(t, "2026-03-17", w.NextDay())
	assert.Equal(t, "2026-03-17", w.NextDay(), "next at last date is a no-op")
}

func TestBookingPickDateInvalidatesCursor(t *testing.T) {
	backend := &fakeBackend{
		doctors: twoWorkplaceDoctors(),
		slots: map[string][]string{
			"2026-03-15": {"9:00 AM"},
			"2026-03-16": {"10:00 AM"},
		},
	}
	w := newTestBookingWizard(backend)
	require.NoError(t, w.Search(context.Background(), "khan"))
	require.NoError(t, w.SelectWorkplace(context.Background(), "doc-1", "wp-1"))

	backend.slots = map[string][]string{"2026-03-20": {"2:00 PM"}}
	require.NoError(t, w.PickDate(context.Background(), "2026-03-20"))

	st := w.State()
	assert.Equal(t, "2026-03-20", st.CurrentDate)
	assert.False(t, st.CursorValid)
	assert.Equal(t, "2026-03-20", w.NextDay(), "cursor is dead after an explicit pick")
}

func TestBookingConfirm(t *testing.T) {
	backend := &fakeBackend{
		doctors: twoWorkplaceDoctors(),
		slots:   map[string][]string{"2026-03-16": {"10:00AM - 10:30AM"}},
		bookResp: &clinicapi.BookingResponse{
			AppointmentID: "appt-1",
			WorkplaceName: "City Clinic",
			Slot:          "10:00AM - 10:30AM",
		},
	}
	w := newTestBookingWizard(backend)
	require.NoError(t, w.Search(context.Background(), "khan"))
	require.NoError(t, w.SelectWorkplace(context.Background(), "doc-1", "wp-1"))
	require.NoError(t, w.SelectSlot("2026-03-16-0"))
	assert.Equal(t, StepConfirm, w.State().Step)

	require.NoError(t, w.Confirm(context.Background(), "user-9", "first visit"))

	st := w.State()
	assert.Equal(t, StepDone, st.Step)
	require.NotNil(t, st.Result)
	assert.Equal(t, "appt-1", st.Result.AppointmentID)

	require.Len(t, backend.booked, 1)
	req := backend.booked[0]
	assert.Equal(t, "2026-03-16T10:00:00", req.RequestedTime)
	assert.Equal(t, "10:00AM - 10:30AM", req.Slot)
	assert.Equal(t, "first visit", req.Notes)
}

func TestBookingSubmissionFailureKeepsSelections(t *testing.T) {
	backend := &fakeBackend{
		doctors: twoWorkplaceDoctors(),
		slots:   map[string][]string{"2026-03-16": {"10:00AM - 10:30AM"}},
		bookErr: &clinicapi.APIError{Status: 409, Message: "Slot already booked"},
	}
	w := newTestBookingWizard(backend)
	require.NoError(t, w.Search(context.Background(), "khan"))
	require.NoError(t, w.SelectWorkplace(context.Background(), "doc-1", "wp-1"))
	require.NoError(t, w.SelectSlot("2026-03-16-0"))

	err := w.Confirm(context.Background(), "user-9", "")
	require.Error(t, err)

	st := w.State()
	assert.Equal(t, StepConfirm, st.Step, "wizard stays on confirm for retry")
	assert.NotNil(t, st.Selected)
	assert.Equal(t, "Slot already booked", st.LastError)
}

func TestBookingUnauthorizedAbandonsFlow(t *testing.T) {
	backend := &fakeBackend{doctors: twoWorkplaceDoctors(), searchErr: clinicapi.ErrUnauthorized}
	w := newTestBookingWizard(backend)

	err := w.Search(context.Background(), "khan")
	assert.ErrorIs(t, err, clinicapi.ErrUnauthorized)
	st := w.State()
	assert.True(t, st.Abandoned)
	assert.Equal(t, StepDone, st.Step)
}

func TestBookingBackPreservesQuery(t *testing.T) {
	backend := &fakeBackend{
		doctors: twoWorkplaceDoctors(),
		slots:   map[string][]string{"2026-03-16": {"10:00 AM"}},
	}
	w := newTestBookingWizard(backend)
	require.NoError(t, w.Search(context.Background(), "khan"))
	require.NoError(t, w.SelectWorkplace(context.Background(), "doc-1", "wp-1"))
	require.NoError(t, w.SelectSlot("2026-03-16-0"))

	w.Back() // confirm → slots
	st := w.State()
	assert.Equal(t, StepSlots, st.Step)
	assert.Nil(t, st.Selected)
	assert.False(t, st.Slots.Empty(), "slot view survives leaving confirm")

	w.Back() // slots → workplaces
	st = w.State()
	assert.Equal(t, StepWorkplaces, st.Step)
	assert.Nil(t, st.SelectedWorkplace)
	assert.True(t, st.Slots.Empty())

	w.Back() // workplaces → search
	st = w.State()
	assert.Equal(t, StepSearch, st.Step)
	assert.Equal(t, "khan", st.Query, "query text survives the reset")
}

func TestBookingDoubleSubmitGuard(t *testing.T) {
	backend := &fakeBackend{
		doctors: twoWorkplaceDoctors(),
		slots:   map[string][]string{"2026-03-16": {"10:00AM - 10:30AM"}},
	}
	w := newTestBookingWizard(backend)
	require.NoError(t, w.Search(context.Background(), "khan"))
	require.NoError(t, w.SelectWorkplace(context.Background(), "doc-1", "wp-1"))
	require.NoError(t, w.SelectSlot("2026-03-16-0"))

	// Hold the first Confirm open inside the backend call; every
	// network-touching call issued meanwhile must refuse to start.
	backend.entered = make(chan struct{}, 1)
	backend.release = make(chan struct{})
	done := make(chan error, 1)
	go func() { done <- w.Confirm(context.Background(), "user-9", "") }()
	<-backend.entered

	assert.ErrorIs(t, w.Confirm(context.Background(), "user-9", ""), ErrBusy)
	assert.ErrorIs(t, w.PickDate(context.Background(), "2026-03-20"), ErrBusy)
	assert.ErrorIs(t, w.RetryFetch(context.Background()), ErrBusy)

	close(backend.release)
	require.NoError(t, <-done)
	require.Len(t, backend.booked, 1, "exactly one booking reaches the backend")
	assert.Equal(t, StepDone, w.State().Step)
}

func TestBookingConcurrentSearchRejected(t *testing.T) {
	backend := &fakeBackend{
		doctors: twoWorkplaceDoctors(),
		entered: make(chan struct{}, 1),
		release: make(chan struct{}),
	}
	w := newTestBookingWizard(backend)

	done := make(chan error, 1)
	go func() { done <- w.Search(context.Background(), "khan") }()
	<-backend.entered

	assert.ErrorIs(t, w.Search(context.Background(), "khan"), ErrBusy)

	close(backend.release)
	require.NoError(t, <-done)
	st := w.State()
	assert.Equal(t, StepWorkplaces, st.Step)
	assert.Equal(t, "khan", st.Query)
}
