package observability

import (
	"strings"
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"prism/core/events"
)

type eventMetrics struct {
	emitted *prometheus.CounterVec
}

var (
	eventMetricsOnce sync.Once
	eventRegistry    *eventMetrics
)

// Events returns the metrics registry tracking structured domain events.
func Events() *eventMetrics {
	eventMetricsOnce.Do(func() {
		eventRegistry = &eventMetrics{
			emitted: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "prism",
				Subsystem: "events",
				Name:      "emitted_total",
				Help:      "Count of emitted domain events segmented by type.",
			}, []string{"type"}),
		}
		prometheus.MustRegister(eventRegistry.emitted)
	})
	return eventRegistry
}

// RecordEvent increments the counter for the supplied event type.
func (m *eventMetrics) RecordEvent(eventType string) {
	if m == nil {
		return
	}
	trimmed := strings.TrimSpace(eventType)
	if trimmed == "" {
		trimmed = "unknown"
	}
	m.emitted.WithLabelValues(trimmed).Inc()
}

// MetricsEmitter forwards events to an inner emitter while counting them.
// A nil inner emitter is allowed; events are then only counted.
type MetricsEmitter struct {
	Inner events.Emitter
}

// Emit implements events.Emitter.
func (m MetricsEmitter) Emit(evt events.Event) {
	if evt == nil {
		return
	}
	Events().RecordEvent(evt.EventType())
	switch e := evt.(type) {
	case events.OperationExecuted:
		Router().SetNonce(e.Nonce)
	case events.RouterPaused:
		Router().SetPause(true)
	case events.RouterUnpaused:
		Router().SetPause(false)
	}
	if m.Inner != nil {
		m.Inner.Emit(evt)
	}
}
