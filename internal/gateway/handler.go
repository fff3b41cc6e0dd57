package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/wolfman30/clinic-booking/internal/bulkaction"
	"github.com/wolfman30/clinic-booking/internal/cancellation"
	"github.com/wolfman30/clinic-booking/internal/clinicapi"
	"github.com/wolfman30/clinic-booking/internal/observability/metrics"
	"github.com/wolfman30/clinic-booking/internal/wizard"
	"github.com/wolfman30/clinic-booking/pkg/logging"
)

// Backend is the full clinic API surface the gateway needs.
// *clinicapi.Client satisfies it.
type Backend interface {
	wizard.BookingBackend
	wizard.RescheduleBackend
	BulkRescheduleAppointments(ctx context.Context, doctorID string, req clinicapi.BulkRescheduleRequest) (*clinicapi.MessageResponse, error)
	CancelWorkspaceDayAppointments(ctx context.Context, workspaceID string, req clinicapi.CancelDayRequest) (*clinicapi.CancelDayResponse, error)
	CancelAppointment(ctx context.Context, appointmentID string, req clinicapi.CancelRequest) error
}

// Handler provides the wizard-session HTTP endpoints.
type Handler struct {
	backend  Backend
	sessions *SessionStore
	logger   *logging.Logger
	metrics  *metrics.BookingMetrics
	now      func() time.Time
}

// NewHandler creates a gateway handler.
func NewHandler(backend Backend, sessions *SessionStore, m *metrics.BookingMetrics, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{
		backend:  backend,
		sessions: sessions,
		logger:   logger,
		metrics:  m,
		now:      time.Now,
	}
}

// Routes returns the chi router for all wizard/session endpoints.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Post("/booking", h.CreateBooking)
	r.Route("/booking/{sessionID}", func(r chi.Router) {
		r.Get("/", h.BookingState)
		r.Post("/search", h.BookingSearch)
		r.Post("/workplace", h.BookingSelectWorkplace)
		r.Post("/date", h.BookingPickDate)
		r.Post("/navigate", h.BookingNavigate)
		r.Post("/slot", h.BookingSelectSlot)
		r.Post("/confirm", h.BookingConfirm)
		r.Post("/back", h.BookingBack)
		r.Post("/retry", h.BookingRetry)
	})

	r.Post("/reschedule", h.CreateReschedule)
	r.Route("/reschedule/{sessionID}", func(r chi.Router) {
		r.Get("/", h.RescheduleState)
		r.Post("/appointment", h.RescheduleSelectAppointment)
		r.Post("/date", h.ReschedulePickDate)
		r.Post("/navigate", h.RescheduleNavigate)
		r.Post("/slot", h.RescheduleSelectSlot)
		r.Post("/reason", h.RescheduleSetReason)
		r.Post("/confirm", h.RescheduleConfirm)
		r.Post("/back", h.RescheduleBack)
		r.Post("/retry", h.RescheduleRetry)
	})

	r.Post("/bulk/reschedule", h.BulkReschedule)
	r.Post("/bulk/cancel-day", h.CancelDay)
	r.Post("/appointments/{appointmentID}/cancel", h.CancelAppointment)

	return r
}

// CreateBooking starts a booking session.
// POST /booking
func (h *Handler) CreateBooking(w http.ResponseWriter, r *http.Request) {
	bw := wizard.NewBookingWizard(h.backend, h.logger)
	id := h.sessions.PutBooking(bw)
	writeJSON(w, http.StatusCreated, map[string]any{
		"session_id": id,
		"state":      bw.State(),
	})
}

// BookingState returns the session's current wizard state.
// GET /booking/{sessionID}
func (h *Handler) BookingState(w http.ResponseWriter, r *http.Request) {
	bw, ok := h.sessions.Booking(chi.URLParam(r, "sessionID"))
	if !ok {
		writeError(w, http.StatusNotFound, "session not found")
		return
	}
	writeJSON(w, http.StatusOK, bw.State())
}

// BookingSearch runs the doctor search.
// POST /booking/{sessionID}/search
func (h *Handler) BookingSearch(w http.ResponseWriter, r *http.Request) {
	h.bookingStep(w, r, func(ctx context.Context, bw *wizard.BookingWizard, body stepRequest) error {
		start := h.now()
		err := bw.Search(ctx, body.Query)
		h.metrics.ObserveDoctorSearch(statusLabel(err), h.now().Sub(start).Seconds())
		return err
	})
}

// BookingSelectWorkplace picks a doctor/workplace pair.
// POST /booking/{sessionID}/workplace
func (h *Handler) BookingSelectWorkplace(w http.ResponseWriter, r *http.Request) {
	h.bookingStep(w, r, func(ctx context.Context, bw *wizard.BookingWizard, body stepRequest) error {
		start := h.now()
		var err error
		if body.Date != "" {
			err = bw.SelectWorkplaceOn(ctx, body.DoctorID, body.WorkplaceID, body.Date)
		} else {
			err = bw.SelectWorkplace(ctx, body.DoctorID, body.WorkplaceID)
		}
		h.metrics.ObserveSlotFetch("booking", statusLabel(err), h.now().Sub(start).Seconds())
		return err
	})
}

// BookingPickDate fetches slots for an explicit date.
// POST /booking/{sessionID}/date
func (h *Handler) BookingPickDate(w http.ResponseWriter, r *http.Request) {
	h.bookingStep(w, r, func(ctx context.Context, bw *wizard.BookingWizard, body stepRequest) error {
		start := h.now()
		err := bw.PickDate(ctx, body.Date)
		h.metrics.ObserveSlotFetch("booking", statusLabel(err), h.now().Sub(start).Seconds())
		return err
	})
}

// BookingNavigate moves the date cursor.
// POST /booking/{sessionID}/navigate
func (h *Handler) BookingNavigate(w http.ResponseWriter, r *http.Request) {
	h.bookingStep(w, r, func(ctx context.Context, bw *wizard.BookingWizard, body stepRequest) error {
		if body.Direction == "prev" {
			bw.PrevDay()
		} else {
			bw.NextDay()
		}
		return nil
	})
}

// BookingSelectSlot picks a slot by record ID.
// POST /booking/{sessionID}/slot
func (h *Handler) BookingSelectSlot(w http.ResponseWriter, r *http.Request) {
	h.bookingStep(w, r, func(ctx context.Context, bw *wizard.BookingWizard, body stepRequest) error {
		return bw.SelectSlot(body.SlotID)
	})
}

// BookingConfirm books the selected slot and ends the session.
// POST /booking/{sessionID}/confirm
func (h *Handler) BookingConfirm(w http.ResponseWriter, r *http.Request) {
	h.bookingStep(w, r, func(ctx context.Context, bw *wizard.BookingWizard, body stepRequest) error {
		err := bw.Confirm(ctx, body.UserID, body.Notes)
		h.metrics.ObserveSubmission("book", statusLabel(err))
		if err == nil {
			h.sessions.Drop(chi.URLParam(r, "sessionID"))
		}
		return err
	})
}

// BookingBack steps the wizard back one stage.
// POST /booking/{sessionID}/back
func (h *Handler) BookingBack(w http.ResponseWriter, r *http.Request) {
	h.bookingStep(w, r, func(ctx context.Context, bw *wizard.BookingWizard, body stepRequest) error {
		bw.Back()
		return nil
	})
}

// BookingRetry re-issues the last failed slot fetch.
// POST /booking/{sessionID}/retry
func (h *Handler) BookingRetry(w http.ResponseWriter, r *http.Request) {
	h.bookingStep(w, r, func(ctx context.Context, bw *wizard.BookingWizard, body stepRequest) error {
		start := h.now()
		err := bw.RetryFetch(ctx)
		h.metrics.ObserveSlotFetch("booking", statusLabel(err), h.now().Sub(start).Seconds())
		return err
	})
}

// stepRequest is the union body of every wizard-step endpoint.
type stepRequest struct {
	Query       string `json:"query,omitempty"`
	DoctorID    string `json:"doctor_id,omitempty"`
	WorkplaceID string `json:"workplace_id,omitempty"`
	Date        string `json:"date,omitempty"`
	Direction   string `json:"direction,omitempty"`
	SlotID      string `json:"slot_id,omitempty"`
	UserID      string `json:"user_id,omitempty"`
	Notes       string `json:"notes,omitempty"`

	// Reschedule-only fields
	Mode          string                 `json:"mode,omitempty"`
	AppointmentID string                 `json:"appointment_id,omitempty"`
	Appointment   *clinicapi.Appointment `json:"appointment,omitempty"`
	Reason        string                 `json:"reason,omitempty"`
	CustomReason  string                 `json:"custom_reason,omitempty"`
}

func (h *Handler) bookingStep(w http.ResponseWriter, r *http.Request, step func(context.Context, *wizard.BookingWizard, stepRequest) error) {
	sessionID := chi.URLParam(r, "sessionID")
	bw, ok := h.sessions.Booking(sessionID)
	if !ok {
		writeError(w, http.StatusNotFound, "session not found")
		return
	}
	body, err := decodeStep(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	stepErr := step(r.Context(), bw, body)
	h.writeStepResult(w, sessionID, bw.State(), stepErr)
}

// CreateReschedule starts a reschedule session in one of the three modes.
// POST /reschedule
func (h *Handler) CreateReschedule(w http.ResponseWriter, r *http.Request) {
	body, err := decodeStep(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	mode := wizard.Mode(body.Mode)
	switch mode {
	case wizard.ModeDirect, wizard.ModePickOne, wizard.ModeRevisit:
	default:
		writeError(w, http.StatusBadRequest, "mode must be direct, pickOne or revisit")
		return
	}

	rw := wizard.NewRescheduleWizard(h.backend, mode, h.logger)
	var stepErr error
	switch mode {
	case wizard.ModeDirect:
		if body.AppointmentID == "" {
			writeError(w, http.StatusBadRequest, "appointment_id required for direct mode")
			return
		}
		stepErr = rw.StartWithAppointmentID(r.Context(), body.AppointmentID)
	case wizard.ModePickOne:
		if body.UserID == "" {
			writeError(w, http.StatusBadRequest, "user_id required for pickOne mode")
			return
		}
		stepErr = rw.LoadAppointments(r.Context(), body.UserID)
	case wizard.ModeRevisit:
		if body.Appointment == nil {
			writeError(w, http.StatusBadRequest, "appointment required for revisit mode")
			return
		}
		stepErr = rw.StartWithAppointment(r.Context(), *body.Appointment)
	}

	if stepErr != nil && errors.Is(stepErr, clinicapi.ErrUnauthorized) {
		writeError(w, http.StatusGone, "session no longer authenticated")
		return
	}
	id := h.sessions.PutReschedule(rw)
	writeJSON(w, http.StatusCreated, map[string]any{
		"session_id": id,
		"state":      rw.State(),
	})
}

// RescheduleState returns the session's current wizard state.
// GET /reschedule/{sessionID}
func (h *Handler) RescheduleState(w http.ResponseWriter, r *http.Request) {
	rw, ok := h.sessions.Reschedule(chi.URLParam(r, "sessionID"))
	if !ok {
		writeError(w, http.StatusNotFound, "session not found")
		return
	}
	writeJSON(w, http.StatusOK, rw.State())
}

// RescheduleSelectAppointment picks a booking in pick-one mode.
// POST /reschedule/{sessionID}/appointment
func (h *Handler) RescheduleSelectAppointment(w http.ResponseWriter, r *http.Request) {
	h.rescheduleStep(w, r, func(ctx context.Context, rw *wizard.RescheduleWizard, body stepRequest) error {
		return rw.SelectAppointment(ctx, body.AppointmentID)
	})
}

// ReschedulePickDate fetches alternatives for an explicit date.
// POST /reschedule/{sessionID}/date
func (h *Handler) ReschedulePickDate(w http.ResponseWriter, r *http.Request) {
	h.rescheduleStep(w, r, func(ctx context.Context, rw *wizard.RescheduleWizard, body stepRequest) error {
		start := h.now()
		err := rw.PickDate(ctx, body.Date)
		h.metrics.ObserveSlotFetch("reschedule", statusLabel(err), h.now().Sub(start).Seconds())
		return err
	})
}

// RescheduleNavigate moves the date cursor.
// POST /reschedule/{sessionID}/navigate
func (h *Handler) RescheduleNavigate(w http.ResponseWriter, r *http.Request) {
	h.rescheduleStep(w, r, func(ctx context.Context, rw *wizard.RescheduleWizard, body stepRequest) error {
		if body.Direction == "prev" {
			rw.PrevDay()
		} else {
			rw.NextDay()
		}
		return nil
	})
}

// RescheduleSelectSlot picks the new slot.
// POST /reschedule/{sessionID}/slot
func (h *Handler) RescheduleSelectSlot(w http.ResponseWriter, r *http.Request) {
	h.rescheduleStep(w, r, func(ctx context.Context, rw *wizard.RescheduleWizard, body stepRequest) error {
		return rw.SelectSlot(body.SlotID)
	})
}

// RescheduleSetReason records the reschedule reason.
// POST /reschedule/{sessionID}/reason
func (h *Handler) RescheduleSetReason(w http.ResponseWriter, r *http.Request) {
	h.rescheduleStep(w, r, func(ctx context.Context, rw *wizard.RescheduleWizard, body stepRequest) error {
		return rw.SetReason(body.Reason, body.CustomReason)
	})
}

// RescheduleConfirm submits the reschedule and ends the session.
// POST /reschedule/{sessionID}/confirm
func (h *Handler) RescheduleConfirm(w http.ResponseWriter, r *http.Request) {
	h.rescheduleStep(w, r, func(ctx context.Context, rw *wizard.RescheduleWizard, body stepRequest) error {
		err := rw.Confirm(ctx)
		h.metrics.ObserveSubmission("reschedule", statusLabel(err))
		if err == nil {
			h.sessions.Drop(chi.URLParam(r, "sessionID"))
		}
		return err
	})
}

// RescheduleBack steps the wizard back one stage.
// POST /reschedule/{sessionID}/back
func (h *Handler) RescheduleBack(w http.ResponseWriter, r *http.Request) {
	h.rescheduleStep(w, r, func(ctx context.Context, rw *wizard.RescheduleWizard, body stepRequest) error {
		rw.Back()
		return nil
	})
}

// RescheduleRetry re-issues the last failed slot fetch.
// POST /reschedule/{sessionID}/retry
func (h *Handler) RescheduleRetry(w http.ResponseWriter, r *http.Request) {
	h.rescheduleStep(w, r, func(ctx context.Context, rw *wizard.RescheduleWizard, body stepRequest) error {
		start := h.now()
		err := rw.RetryFetch(ctx)
		h.metrics.ObserveSlotFetch("reschedule", statusLabel(err), h.now().Sub(start).Seconds())
		return err
	})
}

func (h *Handler) rescheduleStep(w http.ResponseWriter, r *http.Request, step func(context.Context, *wizard.RescheduleWizard, stepRequest) error) {
	sessionID := chi.URLParam(r, "sessionID")
	rw, ok := h.sessions.Reschedule(sessionID)
	if !ok {
		writeError(w, http.StatusNotFound, "session not found")
		return
	}
	body, err := decodeStep(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	stepErr := step(r.Context(), rw, body)
	h.writeStepResult(w, sessionID, rw.State(), stepErr)
}

// bulkRequest is the body of the doctor-side bulk endpoints.
type bulkRequest struct {
	DoctorID    string          `json:"doctor_id,omitempty"`
	WorkspaceID string          `json:"workspace_id"`
	Form        bulkaction.Form `json:"form"`
}

// BulkReschedule validates and submits a bulk-reschedule form.
// POST /bulk/reschedule
func (h *Handler) BulkReschedule(w http.ResponseWriter, r *http.Request) {
	var req bulkRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	payload, err := bulkaction.ValidateBulkReschedule(req.Form, h.now())
	if err != nil {
		h.metrics.ObserveValidationReject("bulkReschedule")
		writeValidationError(w, err)
		return
	}

	resp, err := h.backend.BulkRescheduleAppointments(r.Context(), req.DoctorID, clinicapi.BulkRescheduleRequest{
		WorkspaceID:   req.WorkspaceID,
		ExtendHours:   payload.ExtendHours,
		ExtendMinutes: payload.ExtendMinutes,
		NewDate:       payload.NewDate,
		Reason:        payload.Reason,
	})
	h.metrics.ObserveSubmission("bulkReschedule", statusLabel(err))
	if err != nil {
		h.writeBackendError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// CancelDay validates and submits a cancel-day form.
// POST /bulk/cancel-day
func (h *Handler) CancelDay(w http.ResponseWriter, r *http.Request) {
	var req bulkRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	payload, err := bulkaction.ValidateCancelDay(req.Form, h.now())
	if err != nil {
		h.metrics.ObserveValidationReject("cancelDay")
		writeValidationError(w, err)
		return
	}

	resp, err := h.backend.CancelWorkspaceDayAppointments(r.Context(), req.WorkspaceID, clinicapi.CancelDayRequest{
		Date:   payload.Date,
		Reason: payload.Reason,
	})
	h.metrics.ObserveSubmission("cancelDay", statusLabel(err))
	if err != nil {
		h.writeBackendError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// CancelAppointment validates and submits a single-appointment
// cancellation. The appointment's state is checked first so terminal
// appointments are refused here, not silently by the backend.
// POST /appointments/{appointmentID}/cancel
func (h *Handler) CancelAppointment(w http.ResponseWriter, r *http.Request) {
	appointmentID := chi.URLParam(r, "appointmentID")
	body, err := decodeStep(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	appt, err := h.backend.GetAppointment(r.Context(), appointmentID)
	if err != nil {
		h.writeBackendError(w, err)
		return
	}
	if !cancellation.CanCancel(cancellation.Appointment{ID: appt.ID, Status: appt.Status}) {
		writeError(w, http.StatusConflict, "appointment can no longer be cancelled")
		return
	}

	req, err := cancellation.Validate(appointmentID, body.Reason, body.CustomReason)
	if err != nil {
		h.metrics.ObserveValidationReject("cancel")
		writeValidationError(w, err)
		return
	}

	err = h.backend.CancelAppointment(r.Context(), appointmentID, clinicapi.CancelRequest{
		Reason:       req.Reason,
		CustomReason: req.CustomReason,
	})
	h.metrics.ObserveSubmission("cancel", statusLabel(err))
	if err != nil {
		h.writeBackendError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "appointment cancelled"})
}

// writeStepResult maps wizard errors onto HTTP statuses. The wizard state
// is always included so the client can re-render whatever happened.
func (h *Handler) writeStepResult(w http.ResponseWriter, sessionID string, state any, err error) {
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, state)
	case errors.Is(err, clinicapi.ErrUnauthorized):
		h.sessions.Drop(sessionID)
		writeError(w, http.StatusGone, "session no longer authenticated")
	case errors.Is(err, wizard.ErrBusy):
		writeError(w, http.StatusConflict, "a request is already in flight")
	case errors.Is(err, wizard.ErrInvalidStep):
		writeError(w, http.StatusConflict, "not valid at this step")
	case errors.Is(err, wizard.ErrMissingSelection):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		// Remote failure: the wizard already recorded a user-facing
		// message and stayed retryable; surface state alongside it.
		writeJSON(w, http.StatusBadGateway, map[string]any{
			"error": clinicapi.UserMessage(err),
			"state": state,
		})
	}
}

func (h *Handler) writeBackendError(w http.ResponseWriter, err error) {
	if errors.Is(err, clinicapi.ErrUnauthorized) {
		writeError(w, http.StatusGone, "session no longer authenticated")
		return
	}
	writeError(w, http.StatusBadGateway, clinicapi.UserMessage(err))
}

func decodeStep(r *http.Request) (stepRequest, error) {
	var body stepRequest
	if r.Body == nil || r.ContentLength == 0 {
		return body, nil
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		return body, err
	}
	return body, nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func writeValidationError(w http.ResponseWriter, err error) {
	var verrs bulkaction.ValidationErrors
	if errors.As(err, &verrs) {
		fields := make([]map[string]string, 0, len(verrs))
		for _, v := range verrs {
			fields = append(fields, map[string]string{"field": v.Field, "message": v.Message})
		}
		writeJSON(w, http.StatusUnprocessableEntity, map[string]any{
			"error":  "validation failed",
			"fields": fields,
		})
		return
	}
	writeError(w, http.StatusUnprocessableEntity, err.Error())
}

func statusLabel(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
