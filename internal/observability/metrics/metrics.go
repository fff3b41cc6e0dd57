package metrics

import "github.com/prometheus/client_golang/prometheus"

// BookingMetrics exposes counters/histograms for the booking flows.
type BookingMetrics struct {
	slotFetchTotal    *prometheus.CounterVec
	searchTotal       *prometheus.CounterVec
	submissionsTotal  *prometheus.CounterVec
	validationRejects *prometheus.CounterVec
	slotFetchLatency  *prometheus.HistogramVec
	searchLatency     prometheus.Histogram
}

func NewBookingMetrics(reg prometheus.Registerer) *BookingMetrics {
	m := &BookingMetrics{
		slotFetchTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "clinicbook",
			Subsystem: "slots",
			Name:      "fetch_total",
			Help:      "Total slot fetches against the clinic backend",
		}, []string{"flow", "status"}),
		searchTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "clinicbook",
			Subsystem: "search",
			Name:      "doctor_total",
			Help:      "Total doctor searches against the clinic backend",
		}, []string{"status"}),
		submissionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "clinicbook",
			Subsystem: "booking",
			Name:      "submissions_total",
			Help:      "Total booking/reschedule/cancel submissions",
		}, []string{"kind", "status"}),
		validationRejects: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "clinicbook",
			Subsystem: "forms",
			Name:      "validation_rejects_total",
			Help:      "Forms rejected locally before any network call",
		}, []string{"mode"}),
		slotFetchLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "clinicbook",
			Subsystem: "slots",
			Name:      "fetch_latency_seconds",
			Help:      "Latency of slot fetches",
			Buckets:   prometheus.DefBuckets,
		}, []string{"flow"}),
		searchLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "clinicbook",
			Subsystem: "search",
			Name:      "doctor_latency_seconds",
			Help:      "Latency of doctor searches",
			Buckets:   prometheus.DefBuckets,
		}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.slotFetchTotal, m.searchTotal, m.submissionsTotal, m.validationRejects, m.slotFetchLatency, m.searchLatency)
	return m
}

func (m *BookingMetrics) ObserveSlotFetch(flow, status string, seconds float64) {
	if m == nil {
		return
	}
	m.slotFetchTotal.WithLabelValues(flow, status).Inc()
	m.slotFetchLatency.WithLabelValues(flow).Observe(seconds)
}

func (m *BookingMetrics) ObserveDoctorSearch(status string, seconds float64) {
	if m == nil {
		return
	}
	m.searchTotal.WithLabelValues(status).Inc()
	m.searchLatency.Observe(seconds)
}

func (m *BookingMetrics) ObserveSubmission(kind, status string) {
	if m == nil {
		return
	}
	m.submissionsTotal.WithLabelValues(kind, status).Inc()
}

func (m *BookingMetrics) ObserveValidationReject(mode string) {
	if m == nil {
		return
	}
	m.validationRejects.WithLabelValues(mode).Inc()
}
