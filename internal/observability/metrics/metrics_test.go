package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
)

func TestBookingMetricsObserve(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewBookingMetrics(reg)
	m.ObserveSlotFetch("booking", "ok", 0.2)
	m.ObserveDoctorSearch("ok", 0.05)
	m.ObserveSubmission("book", "error")
	m.ObserveValidationReject("bulkReschedule")
}

func TestBookingMetricsNilSafe(t *testing.T) {
	var m *BookingMetrics
	m.ObserveSlotFetch("booking", "ok", 0.1)
	m.ObserveDoctorSearch("error", 0.1)
	m.ObserveSubmission("cancel", "ok")
	m.ObserveValidationReject("cancelDay")
}
