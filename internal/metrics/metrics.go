package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Link holds the device-link collectors. A nil *Link is valid and records nothing,
// which keeps instrumentation optional for callers and tests.
type Link struct {
	FramesSent     *prometheus.CounterVec
	FramesReceived *prometheus.CounterVec
	Retries        *prometheus.CounterVec
	Dropped        *prometheus.CounterVec
	Malformed      prometheus.Counter
	ReplyTimeouts  *prometheus.CounterVec
	Reachable      prometheus.Gauge
}

// NewLink creates the link collectors and registers them with reg.
func NewLink(reg prometheus.Registerer) *Link {
	m := &Link{
		FramesSent: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "swimsync_link_frames_sent_total",
				Help: "Frames written to the link by message kind and result",
			},
			[]string{"kind", "result"},
		),
		FramesReceived: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "swimsync_link_frames_received_total",
				Help: "Inbound frames dispatched by message kind",
			},
			[]string{"kind"},
		),
		Retries: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "swimsync_link_retries_total",
				Help: "Reliable delivery attempts after the first",
			},
			[]string{"key"},
		),
		Dropped: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "swimsync_link_dropped_total",
				Help: "Reliable deliveries abandoned after exhausting attempts",
			},
			[]string{"key"},
		),
		Malformed: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "swimsync_link_malformed_total",
				Help: "Inbound frames dropped because they could not be decoded",
			},
		),
		ReplyTimeouts: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "swimsync_link_reply_timeouts_total",
				Help: "Requests whose reply did not arrive in time",
			},
			[]string{"kind"},
		),
		Reachable: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "swimsync_link_reachable",
				Help: "1 while the counterpart device is reachable",
			},
		),
	}

	reg.MustRegister(
		m.FramesSent,
		m.FramesReceived,
		m.Retries,
		m.Dropped,
		m.Malformed,
		m.ReplyTimeouts,
		m.Reachable,
	)
	return m
}

func (m *Link) Sent(kind, result string) {
	if m == nil {
		return
	}
	m.FramesSent.WithLabelValues(kind, result).Inc()
}

func (m *Link) Received(kind string) {
	if m == nil {
		return
	}
	m.FramesReceived.WithLabelValues(kind).Inc()
}

func (m *Link) Retry(key string) {
	if m == nil {
		return
	}
	m.Retries.WithLabelValues(key).Inc()
}

func (m *Link) Drop(key string) {
	if m == nil {
		return
	}
	m.Dropped.WithLabelValues(key).Inc()
}

func (m *Link) MalformedFrame() {
	if m == nil {
		return
	}
	m.Malformed.Inc()
}

func (m *Link) ReplyTimeout(kind string) {
	if m == nil {
		return
	}
	m.ReplyTimeouts.WithLabelValues(kind).Inc()
}

func (m *Link) SetReachable(reachable bool) {
	if m == nil {
		return
	}
	if reachable {
		m.Reachable.Set(1)
	} else {
		m.Reachable.Set(0)
	}
}

// Handler serves the collectors registered with g.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
