package metrics

import "github.com/prometheus/client_golang/prometheus"

// PortalMetrics exposes counters/histograms for booking and admin flows.
type PortalMetrics struct {
	bookingSubmissions  *prometheus.CounterVec
	statusChanges       *prometheus.CounterVec
	slotToggles         *prometheus.CounterVec
	imageUploads        *prometheus.CounterVec
	notifications       *prometheus.CounterVec
	availabilityLatency prometheus.Histogram
}

func NewPortalMetrics(reg prometheus.Registerer) *PortalMetrics {
	m := &PortalMetrics{
		bookingSubmissions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "dentacare",
			Subsystem: "booking",
			Name:      "submissions_total",
			Help:      "Booking wizard submissions by outcome",
		}, []string{"outcome"}),
		statusChanges: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "dentacare",
			Subsystem: "appointments",
			Name:      "status_changes_total",
			Help:      "Admin appointment status changes",
		}, []string{"to", "outcome"}),
		slotToggles: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "dentacare",
			Subsystem: "schedule",
			Name:      "slot_toggles_total",
			Help:      "Admin blocked-slot toggles by outcome",
		}, []string{"outcome"}),
		imageUploads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "dentacare",
			Subsystem: "media",
			Name:      "image_uploads_total",
			Help:      "Image uploads by destination and outcome",
		}, []string{"kind", "outcome"}),
		notifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "dentacare",
			Subsystem: "notify",
			Name:      "emails_total",
			Help:      "Patient notification emails by kind and outcome",
		}, []string{"kind", "outcome"}),
		availabilityLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "dentacare",
			Subsystem: "booking",
			Name:      "availability_lookup_seconds",
			Help:      "Latency of unavailable-slot lookups",
			Buckets:   prometheus.DefBuckets,
		}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(
		m.bookingSubmissions,
		m.statusChanges,
		m.slotToggles,
		m.imageUploads,
		m.notifications,
		m.availabilityLatency,
	)
	return m
}

func (m *PortalMetrics) ObserveBookingSubmission(outcome string) {
	if m == nil {
		return
	}
	m.bookingSubmissions.WithLabelValues(outcome).Inc()
}

func (m *PortalMetrics) ObserveStatusChange(to, outcome string) {
	if m == nil {
		return
	}
	m.statusChanges.WithLabelValues(to, outcome).Inc()
}

func (m *PortalMetrics) ObserveSlotToggle(outcome string) {
	if m == nil {
		return
	}
	m.slotToggles.WithLabelValues(outcome).Inc()
}

func (m *PortalMetrics) ObserveImageUpload(kind string, ok bool) {
	if m == nil {
		return
	}
	outcome := "ok"
	if !ok {
		outcome = "failed"
	}
	m.imageUploads.WithLabelValues(kind, outcome).Inc()
}

func (m *PortalMetrics) ObserveNotification(kind, outcome string) {
	if m == nil {
		return
	}
	m.notifications.WithLabelValues(kind, outcome).Inc()
}

func (m *PortalMetrics) ObserveAvailabilityLatency(seconds float64) {
	if m == nil {
		return
	}
	m.availabilityLatency.Observe(seconds)
}
