// Package clinicapi is the REST client for the clinic backend. Exact
// routes are backend-owned; this package pins the request/response shapes
// the rest of the module depends on and validates/defaults responses at
// this edge so internal logic never re-checks optionality.
package clinicapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/wolfman30/clinic-booking/pkg/logging"
)

const defaultTimeout = 15 * time.Second

// Client wraps the clinic backend's appointment, slot, and doctor
// endpoints.
type Client struct {
	httpClient *http.Client
	baseURL    string
	authToken  string
	logger     *logging.Logger
	now        func() time.Time
}

// Option configures a Client.
type Option func(*Client)

// WithTimeout overrides the per-request HTTP timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.httpClient.Timeout = d
		}
	}
}

// NewClient constructs a clinic API client. The auth token is optional;
// when set it is sent as a bearer token and pre-checked for expiry.
func NewClient(baseURL, authToken string, logger *logging.Logger, opts ...Option) *Client {
	if logger == nil {
		logger = logging.Default()
	}
	c := &Client{
		httpClient: &http.Client{Timeout: defaultTimeout},
		baseURL:    strings.TrimRight(baseURL, "/"),
		authToken:  authToken,
		logger:     logger,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// FetchAvailableSlots returns raw slot data for a doctor at a workplace.
// Omitting the date yields the backend's default window (next 3 days).
// Response fields are defaulted here: SlotsByDate is never nil.
func (c *Client) FetchAvailableSlots(ctx context.Context, req SlotsRequest) (*SlotsResponse, error) {
	q := url.Values{}
	q.Set("doctorId", req.DoctorID)
	q.Set("workplaceId", req.WorkplaceID)
	if req.Date != "" {
		q.Set("date", req.Date)
	}
	path := "/api/v1/slots?" + q.Encode()

	var resp SlotsResponse
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, fmt.Errorf("fetch slots: %w", err)
	}
	if resp.SlotsByDate == nil {
		resp.SlotsByDate = map[string][]string{}
	}
	return &resp, nil
}

// SearchDoctors looks up doctors by keyword. Each result carries its
// embedded workplaces; a doctor with none is returned with an empty,
// non-nil slice.
func (c *Client) SearchDoctors(ctx context.Context, keyword string) ([]Doctor, error) {
	q := url.Values{}
	q.Set("keyword", keyword)

	var wrapped struct {
		Doctors []Doctor `json:"doctors"`
	}
	if err := c.doJSON(ctx, http.MethodGet, "/api/v1/doctors/search?"+q.Encode(), nil, &wrapped); err != nil {
		return nil, fmt.Errorf("search doctors: %w", err)
	}
	for i := range wrapped.Doctors {
		if wrapped.Doctors[i].Workplaces == nil {
			wrapped.Doctors[i].Workplaces = []Workplace{}
		}
	}
	return wrapped.Doctors, nil
}

// GetAppointment fetches a single appointment by ID.
func (c *Client) GetAppointment(ctx context.Context, appointmentID string) (*Appointment, error) {
	var appt Appointment
	path := "/api/v1/appointments/" + url.PathEscape(appointmentID)
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &appt); err != nil {
		return nil, fmt.Errorf("get appointment: %w", err)
	}
	return &appt, nil
}

// ListActiveAppointments returns the patient's non-terminal bookings.
func (c *Client) ListActiveAppointments(ctx context.Context, userID string) ([]Appointment, error) {
	var wrapped struct {
		Appointments []Appointment `json:"appointments"`
	}
	path := fmt.Sprintf("/api/v1/users/%s/appointments?status=active", url.PathEscape(userID))
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &wrapped); err != nil {
		return nil, fmt.Errorf("list appointments: %w", err)
	}
	return wrapped.Appointments, nil
}

// BookAppointment creates a new appointment for a user.
func (c *Client) BookAppointment(ctx context.Context, userID string, req BookingRequest) (*BookingResponse, error) {
	var resp BookingResponse
	path := fmt.Sprintf("/api/v1/users/%s/appointments", url.PathEscape(userID))
	if err := c.doJSON(ctx, http.MethodPost, path, req, &resp); err != nil {
		return nil, fmt.Errorf("book appointment: %w", err)
	}
	return &resp, nil
}

// RescheduleAppointment moves an appointment to a new date/slot.
func (c *Client) RescheduleAppointment(ctx context.Context, appointmentID string, req RescheduleRequest) (*RescheduleResponse, error) {
	var resp RescheduleResponse
	path := fmt.Sprintf("/api/v1/appointments/%s/reschedule", url.PathEscape(appointmentID))
	if err := c.doJSON(ctx, http.MethodPut, path, req, &resp); err != nil {
		return nil, fmt.Errorf("reschedule appointment: %w", err)
	}
	return &resp, nil
}

// CompleteAppointment marks an appointment completed. The revisit flow
// calls this after a successful reschedule.
func (c *Client) CompleteAppointment(ctx context.Context, appointmentID string) error {
	path := fmt.Sprintf("/api/v1/appointments/%s/complete", url.PathEscape(appointmentID))
	if err := c.doJSON(ctx, http.MethodPut, path, nil, nil); err != nil {
		return fmt.Errorf("complete appointment: %w", err)
	}
	return nil
}

// BulkRescheduleAppointments shifts every booking at one of the doctor's
// workspaces.
func (c *Client) BulkRescheduleAppointments(ctx context.Context, doctorID string, req BulkRescheduleRequest) (*MessageResponse, error) {
	var resp MessageResponse
	path := fmt.Sprintf("/api/v1/doctors/%s/appointments/bulk-reschedule", url.PathEscape(doctorID))
	if err := c.doJSON(ctx, http.MethodPost, path, req, &resp); err != nil {
		return nil, fmt.Errorf("bulk reschedule: %w", err)
	}
	return &resp, nil
}

// CancelWorkspaceDayAppointments cancels every booking at a workspace on
// one date.
func (c *Client) CancelWorkspaceDayAppointments(ctx context.Context, workspaceID string, req CancelDayRequest) (*CancelDayResponse, error) {
	var resp CancelDayResponse
	path := fmt.Sprintf("/api/v1/workspaces/%s/appointments/cancel-day", url.PathEscape(workspaceID))
	if err := c.doJSON(ctx, http.MethodPost, path, req, &resp); err != nil {
		return nil, fmt.Errorf("cancel day: %w", err)
	}
	return &resp, nil
}

// CancelAppointment cancels a single appointment.
func (c *Client) CancelAppointment(ctx context.Context, appointmentID string, req CancelRequest) error {
	path := fmt.Sprintf("/api/v1/appointments/%s/cancel", url.PathEscape(appointmentID))
	if err := c.doJSON(ctx, http.MethodPut, path, req, nil); err != nil {
		return fmt.Errorf("cancel appointment: %w", err)
	}
	return nil
}

func (c *Client) doJSON(ctx context.Context, method, path string, body interface{}, out interface{}) error {
	if c.authToken != "" && tokenExpired(c.authToken, c.now()) {
		return ErrUnauthorized
	}

	endpoint := c.baseURL + path

	var bodyReader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		bodyReader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, bodyReader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.authToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.authToken)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode == http.StatusUnauthorized {
		c.logger.Warn("clinic API rejected credentials", "path", path)
		return ErrUnauthorized
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg := extractMessage(respBody)
		c.logger.Warn("clinic API non-2xx response",
			"status", resp.StatusCode,
			"path", path,
			"message", msg,
		)
		return &APIError{Status: resp.StatusCode, Message: msg}
	}

	if len(respBody) == 0 || out == nil {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// extractMessage pulls the backend's error message out of its {message} or
// {error} envelope; raw bodies are truncated and passed through.
func extractMessage(body []byte) string {
	var envelope struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if err := json.Unmarshal(body, &envelope); err == nil {
		if envelope.Message != "" {
			return envelope.Message
		}
		if envelope.Error != "" {
			return envelope.Error
		}
	}
	msg := strings.TrimSpace(string(body))
	if len(msg) > 300 {
		msg = msg[:300]
	}
	return msg
}
