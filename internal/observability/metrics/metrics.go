package metrics

import "github.com/prometheus/client_golang/prometheus"

// BookingMetrics exposes counters/histograms for availability and booking flows.
type BookingMetrics struct {
	slotRequests   *prometheus.CounterVec
	slotLatency    *prometheus.HistogramVec
	webhookEvents  *prometheus.CounterVec
	bookingOps     *prometheus.CounterVec
	localDivergent prometheus.Counter
}

func NewBookingMetrics(reg prometheus.Registerer) *BookingMetrics {
	m := &BookingMetrics{
		slotRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "slotline",
			Subsystem: "availability",
			Name:      "slot_requests_total",
			Help:      "Total availability slot queries",
		}, []string{"status"}),
		slotLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "slotline",
			Subsystem: "availability",
			Name:      "slot_request_seconds",
			Help:      "Latency of availability slot computation",
			Buckets:   prometheus.DefBuckets,
		}, []string{"status"}),
		webhookEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "slotline",
			Subsystem: "bookings",
			Name:      "webhook_events_total",
			Help:      "Total inbound scheduling webhook events",
		}, []string{"trigger", "status"}),
		bookingOps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "slotline",
			Subsystem: "bookings",
			Name:      "operations_total",
			Help:      "Total booking mutations by operation and outcome",
		}, []string{"operation", "outcome"}),
		localDivergent: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "slotline",
			Subsystem: "bookings",
			Name:      "local_divergence_total",
			Help:      "Operations where the external call succeeded but the local write failed",
		}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.slotRequests, m.slotLatency, m.webhookEvents, m.bookingOps, m.localDivergent)
	return m
}

func (m *BookingMetrics) ObserveSlotRequest(status string, seconds float64) {
	if m == nil {
		return
	}
	m.slotRequests.WithLabelValues(status).Inc()
	m.slotLatency.WithLabelValues(status).Observe(seconds)
}

func (m *BookingMetrics) ObserveWebhookEvent(trigger, status string) {
	if m == nil {
		return
	}
	m.webhookEvents.WithLabelValues(trigger, status).Inc()
}

func (m *BookingMetrics) ObserveBookingOp(operation, outcome string) {
	if m == nil {
		return
	}
	m.bookingOps.WithLabelValues(operation, outcome).Inc()
}

func (m *BookingMetrics) ObserveLocalDivergence() {
	if m == nil {
		return
	}
	m.localDivergent.Inc()
}
