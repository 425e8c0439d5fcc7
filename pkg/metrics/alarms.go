package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// AlarmMetrics records the alarm pipeline counters, from outbox publish
// through consume and live delivery. A nil receiver is a no-op so callers
// can run without a registry in tests.
type AlarmMetrics struct {
	published       *prometheus.CounterVec
	consumed        *prometheus.CounterVec
	delivered       *prometheus.CounterVec
	evictions       *prometheus.CounterVec
	openConnections prometheus.Gauge
	publishLatency  *prometheus.HistogramVec
}

// NewAlarmMetrics registers the alarm pipeline metrics on the provided registerer.
func NewAlarmMetrics(reg prometheus.Registerer) *AlarmMetrics {
	if reg == nil {
		return &AlarmMetrics{}
	}
	published := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "alarm_events_published",
		Help: "Outbox events published to the alarm topic.",
	}, []string{"event_type"})
	consumed := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "alarm_events_consumed",
		Help: "Alarm events consumed from the subscription by outcome.",
	}, []string{"result"})
	delivered := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "alarm_notifications_delivered",
		Help: "Live notifications pushed to connected clients.",
	}, []string{"alarm_type"})
	evictions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "alarm_connection_evictions",
		Help: "Live connections evicted by reason.",
	}, []string{"reason"})
	openConnections := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "alarm_open_connections",
		Help: "Currently registered live connections.",
	})
	publishLatency := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "alarm_publish_latency_seconds",
		Help:    "Time from outbox row creation to broker publish.",
		Buckets: prometheus.DefBuckets,
	}, []string{"event_type"})
	reg.MustRegister(published, consumed, delivered, evictions, openConnections, publishLatency)
	return &AlarmMetrics{
		published:       published,
		consumed:        consumed,
		delivered:       delivered,
		evictions:       evictions,
		openConnections: openConnections,
		publishLatency:  publishLatency,
	}
}

// IncPublished increments the published counter for the event type.
func (m *AlarmMetrics) IncPublished(eventType string) {
	if m == nil || m.published == nil {
		return
	}
	m.published.WithLabelValues(normalizeLabel(eventType)).Inc()
}

// IncConsumed increments the consumed counter for the given outcome.
func (m *AlarmMetrics) IncConsumed(result string) {
	if m == nil || m.consumed == nil {
		return
	}
	m.consumed.WithLabelValues(normalizeLabel(result)).Inc()
}

// IncDelivered increments the delivered counter for the alarm type.
func (m *AlarmMetrics) IncDelivered(alarmType string) {
	if m == nil || m.delivered == nil {
		return
	}
	m.delivered.WithLabelValues(normalizeLabel(alarmType)).Inc()
}

// IncEviction increments the eviction counter for the given reason.
func (m *AlarmMetrics) IncEviction(reason string) {
	if m == nil || m.evictions == nil {
		return
	}
	m.evictions.WithLabelValues(normalizeLabel(reason)).Inc()
}

// ConnectionOpened bumps the open connection gauge.
func (m *AlarmMetrics) ConnectionOpened() {
	if m == nil || m.openConnections == nil {
		return
	}
	m.openConnections.Inc()
}

// ConnectionClosed lowers the open connection gauge.
func (m *AlarmMetrics) ConnectionClosed() {
	if m == nil || m.openConnections == nil {
		return
	}
	m.openConnections.Dec()
}

// ObservePublishLatency records the outbox-to-broker latency for the event type.
func (m *AlarmMetrics) ObservePublishLatency(eventType string, latency time.Duration) {
	if m == nil || m.publishLatency == nil {
		return
	}
	m.publishLatency.WithLabelValues(normalizeLabel(eventType)).Observe(latency.Seconds())
}

func normalizeLabel(value string) string {
	if value == "" {
		return "unknown"
	}
	return value
}
