// Package metrics exports client activity to prometheus. A Metrics value
// satisfies the decoder, world and connection hook interfaces.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/zeusync/noodles/internal/core/protocol"
)

const namespace = "noodles"

type Metrics struct {
	framesReceived  prometheus.Counter
	framesRejected  *prometheus.CounterVec
	pairsSkipped    *prometheus.CounterVec
	messagesDecoded prometheus.Counter
	messagesApplied *prometheus.CounterVec
	reconnects      prometheus.Counter
	pendingInvokes  prometheus.Gauge
	queueDepth      prometheus.Gauge
	connectionState *prometheus.GaugeVec
	bytesReceived   prometheus.Counter
	resourceFetches *prometheus.CounterVec

	mu        sync.Mutex
	lastState string
}

// New creates the collectors and registers them with reg. A nil reg means
// the prometheus default registerer.
func New(reg prometheus.Registerer) (*Metrics, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	m := &Metrics{
		framesReceived: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "decoder",
			Name:      "frames_received_total",
			Help:      "Frames that decoded into a message batch.",
		}),
		framesRejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "decoder",
			Name:      "frames_rejected_total",
			Help:      "Frames dropped as structurally invalid.",
		}, []string{"reason"}),
		pairsSkipped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "decoder",
			Name:      "pairs_skipped_total",
			Help:      "Message pairs skipped inside otherwise valid frames.",
		}, []string{"reason"}),
		messagesDecoded: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "decoder",
			Name:      "messages_decoded_total",
			Help:      "Messages produced by the decoder.",
		}),
		messagesApplied: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "world",
			Name:      "messages_applied_total",
			Help:      "Messages applied to the world, by kind.",
		}, []string{"kind"}),
		reconnects: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "connection",
			Name:      "reconnect_attempts_total",
			Help:      "Scheduled reconnect attempts.",
		}),
		pendingInvokes: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "world",
			Name:      "pending_invocations",
			Help:      "Method calls waiting for a reply.",
		}),
		queueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "connection",
			Name:      "apply_queue_depth",
			Help:      "Jobs waiting for the world writer.",
		}),
		connectionState: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "connection",
			Name:      "state",
			Help:      "1 for the current connection state, 0 otherwise.",
		}, []string{"state"}),
		bytesReceived: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "connection",
			Name:      "received_bytes_total",
			Help:      "Binary frame bytes received from the server.",
		}),
		resourceFetches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "resource",
			Name:      "fetches_total",
			Help:      "Resource fetches, by outcome.",
		}, []string{"result"}),
	}

	for _, c := range []prometheus.Collector{
		m.framesReceived, m.framesRejected, m.pairsSkipped, m.messagesDecoded,
		m.messagesApplied, m.reconnects, m.pendingInvokes, m.queueDepth,
		m.connectionState, m.bytesReceived, m.resourceFetches,
	} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// Decoder hooks

func (m *Metrics) FrameDecoded(messages int) {
	m.framesReceived.Inc()
	m.messagesDecoded.Add(float64(messages))
}

func (m *Metrics) FrameRejected(reason string) {
	m.framesRejected.WithLabelValues(reason).Inc()
}

func (m *Metrics) PairSkipped(reason string) {
	m.pairsSkipped.WithLabelValues(reason).Inc()
}

// World hooks

func (m *Metrics) MessageApplied(kind protocol.MessageKind) {
	m.messagesApplied.WithLabelValues(kind.String()).Inc()
}

func (m *Metrics) PendingInvocations(n int) {
	m.pendingInvokes.Set(float64(n))
}

// Connection hooks

func (m *Metrics) ReconnectScheduled(_ int) {
	m.reconnects.Inc()
}

func (m *Metrics) QueueDepth(n int) {
	m.queueDepth.Set(float64(n))
}

func (m *Metrics) FrameReceived(size int) {
	m.bytesReceived.Add(float64(size))
}

// StateChanged moves the state gauge from the previous state to state.
func (m *Metrics) StateChanged(state string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.lastState != "" && m.lastState != state {
		m.connectionState.WithLabelValues(m.lastState).Set(0)
	}
	m.connectionState.WithLabelValues(state).Set(1)
	m.lastState = state
}

// Resource hooks

func (m *Metrics) ResourceFetched(cached bool, err error) {
	switch {
	case err != nil:
		m.resourceFetches.WithLabelValues("error").Inc()
	case cached:
		m.resourceFetches.WithLabelValues("cache_hit").Inc()
	default:
		m.resourceFetches.WithLabelValues("network").Inc()
	}
}
