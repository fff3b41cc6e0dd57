package clinicapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/wolfman30/clinic-booking/pkg/logging"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	ts := httptest.NewServer(handler)
	t.Cleanup(ts.Close)
	return NewClient(ts.URL, "", logging.Default())
}

func TestFetchAvailableSlots_DefaultWindow(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			t.Fatalf("method = %s, want GET", r.Method)
		}
		if r.URL.Path != "/api/v1/slots" {
			t.Fatalf("path = %s", r.URL.Path)
		}
		if r.URL.Query().Get("doctorId") != "doc-1" {
			t.Fatalf("doctorId = %s", r.URL.Query().Get("doctorId"))
		}
		if r.URL.Query().Has("date") {
			t.Fatal("date must be omitted for the default window")
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"slots_by_date":{"2026-03-16":["9:00 AM"]},"doctor_name":"Dr. Khan","workplace_name":"City Clinic"}`))
	})

	resp, err := client.FetchAvailableSlots(context.Background(), SlotsRequest{DoctorID: "doc-1", WorkplaceID: "wp-1"})
	if err != nil {
		t.Fatalf("FetchAvailableSlots() error = %v", err)
	}
	if resp.DoctorName != "Dr. Khan" {
		t.Fatalf("doctor name = %s", resp.DoctorName)
	}
	if len(resp.SlotsByDate["2026-03-16"]) != 1 {
		t.Fatalf("slots = %v", resp.SlotsByDate)
	}
}

func TestFetchAvailableSlots_NilMapDefaulted(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"doctor_name":"Dr. Khan"}`))
	})
	resp, err := client.FetchAvailableSlots(context.Background(), SlotsRequest{DoctorID: "doc-1", WorkplaceID: "wp-1"})
	if err != nil {
		t.Fatalf("FetchAvailableSlots() error = %v", err)
	}
	if resp.SlotsByDate == nil {
		t.Fatal("SlotsByDate must never be nil")
	}
}

func TestSearchDoctors_EmptyWorkplacesDefaulted(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("keyword") != "cardio" {
			t.Fatalf("keyword = %s", r.URL.Query().Get("keyword"))
		}
		_, _ = w.Write([]byte(`{"doctors":[{"id":"doc-1","name":"Dr. Khan"}]}`))
	})
	doctors, err := client.SearchDoctors(context.Background(), "cardio")
	if err != nil {
		t.Fatalf("SearchDoctors() error = %v", err)
	}
	if len(doctors) != 1 {
		t.Fatalf("len(doctors) = %d", len(doctors))
	}
	if doctors[0].Workplaces == nil {
		t.Fatal("Workplaces must be defaulted at the edge")
	}
}

func TestBookAppointment(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/users/user-9/appointments" {
			t.Fatalf("path = %s", r.URL.Path)
		}
		var req BookingRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if req.Slot != "10:00AM - 10:30AM" {
			t.Fatalf("slot = %s", req.Slot)
		}
		_, _ = w.Write([]byte(`{"appointmentId":"appt-1","workplaceName":"City Clinic","slot":"10:00AM - 10:30AM"}`))
	})

	resp, err := client.BookAppointment(context.Background(), "user-9", BookingRequest{
		DoctorID:      "doc-1",
		WorkplaceID:   "wp-1",
		RequestedTime: "2026-03-16T10:00:00",
		Slot:          "10:00AM - 10:30AM",
	})
	if err != nil {
		t.Fatalf("BookAppointment() error = %v", err)
	}
	if resp.AppointmentID != "appt-1" {
		t.Fatalf("appointment id = %s", resp.AppointmentID)
	}
}

func TestBulkReschedule_PayloadShape(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		var raw map[string]any
		if err := json.NewDecoder(r.Body).Decode(&raw); err != nil {
			t.Fatalf("decode: %v", err)
		}
		// The backend needs every field present, newDate as "" when unset.
		for _, key := range []string{"workspaceId", "extendHours", "extendMinutes", "newDate", "reason"} {
			if _, ok := raw[key]; !ok {
				t.Fatalf("missing key %q in payload %v", key, raw)
			}
		}
		if raw["newDate"] != "" {
			t.Fatalf("newDate = %v, want empty string", raw["newDate"])
		}
		_, _ = w.Write([]byte(`{"message":"12 appointments rescheduled"}`))
	})

	resp, err := client.BulkRescheduleAppointments(context.Background(), "doc-1", BulkRescheduleRequest{
		WorkspaceID:   "wp-1",
		ExtendHours:   1,
		ExtendMinutes: 0,
		NewDate:       "",
		Reason:        "Schedule change",
	})
	if err != nil {
		t.Fatalf("BulkRescheduleAppointments() error = %v", err)
	}
	if resp.Message != "12 appointments rescheduled" {
		t.Fatalf("message = %s", resp.Message)
	}
}

func TestDoJSON_BackendMessagePassthrough(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
		_, _ = w.Write([]byte(`{"message":"Slot already booked"}`))
	})
	_, err := client.BookAppointment(context.Background(), "user-9", BookingRequest{})
	if err == nil {
		t.Fatal("expected error")
	}
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("error type = %T", err)
	}
	if apiErr.Status != http.StatusConflict {
		t.Fatalf("status = %d", apiErr.Status)
	}
	if got := UserMessage(err); got != "Slot already booked" {
		t.Fatalf("UserMessage = %q", got)
	}
}

func TestUserMessage_GenericFallback(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})
	_, err := client.SearchDoctors(context.Background(), "x")
	if err == nil {
		t.Fatal("expected error")
	}
	if got := UserMessage(err); got != "Something went wrong. Please try again." {
		t.Fatalf("UserMessage = %q", got)
	}
}

func TestDoJSON_UnauthorizedSentinel(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	})
	_, err := client.SearchDoctors(context.Background(), "x")
	if !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("error = %v, want ErrUnauthorized", err)
	}
}

func TestExpiredTokenShortCircuits(t *testing.T) {
	called := false
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))
	t.Cleanup(ts.Close)

	token := signedToken(t, time.Now().Add(-time.Hour))
	client := NewClient(ts.URL, token, logging.Default())

	_, err := client.SearchDoctors(context.Background(), "x")
	if !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("error = %v, want ErrUnauthorized", err)
	}
	if called {
		t.Fatal("request must not be issued with an expired token")
	}
}

func TestLiveTokenSentAsBearer(t *testing.T) {
	token := signedToken(t, time.Now().Add(time.Hour))
	var gotAuth string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		_, _ = w.Write([]byte(`{"doctors":[]}`))
	}))
	t.Cleanup(ts.Close)

	client := NewClient(ts.URL, token, logging.Default())
	if _, err := client.SearchDoctors(context.Background(), "x"); err != nil {
		t.Fatalf("SearchDoctors() error = %v", err)
	}
	if gotAuth != "Bearer "+token {
		t.Fatalf("Authorization = %q", gotAuth)
	}
}

func signedToken(t *testing.T, exp time.Time) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "user-9",
		"exp": exp.Unix(),
	})
	signed, err := token.SignedString([]byte("test-secret"))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return signed
}
