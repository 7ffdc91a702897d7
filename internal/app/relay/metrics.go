package relay

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "callrelay"

// Metrics are the prometheus collectors for relay dispatch.
type Metrics struct {
	messages *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

// NewMetrics creates the dispatch collectors and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		messages: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "relay",
			Name:      "messages_total",
			Help:      "Messages dispatched, by hook and whether a handler claimed them.",
		}, []string{"hook", "handled"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "relay",
			Name:      "dispatch_duration_seconds",
			Help:      "Time spent offering a message to its handlers.",
			Buckets:   prometheus.ExponentialBuckets(0.0005, 4, 8),
		}, []string{"hook"}),
	}

	reg.MustRegister(m.messages, m.duration)

	return m
}

func (m *Metrics) observe(hook string, handled bool, d time.Duration) {
	m.messages.WithLabelValues(hook, strconv.FormatBool(handled)).Inc()
	m.duration.WithLabelValues(hook).Observe(d.Seconds())
}

// StoreStats is the read side of the call store exported as gauges.
type StoreStats interface {
	Len() int
}

// WatchStore registers a gauge tracking the number of calls registered by
// one module.
func WatchStore(reg prometheus.Registerer, module string, s StoreStats) {
	reg.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace:   namespace,
		Subsystem:   "callstate",
		Name:        "registered_calls",
		Help:        "Calls currently held in the correlation registry.",
		ConstLabels: prometheus.Labels{"module": module},
	}, func() float64 { return float64(s.Len()) }))
}

// WatchHandles registers a gauge tracking live call-leg handles.
func WatchHandles(reg prometheus.Registerer, h *Handles) {
	reg.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "relay",
		Name:      "live_handles",
		Help:      "Call-leg handles with at least one reference.",
	}, func() float64 { return float64(h.Len()) }))
}
