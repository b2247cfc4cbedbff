package infra

import (
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds process counters. Updates are atomic; Register exposes them
// to Prometheus without a second source of truth.
type Metrics struct {
	// Counters
	commandsProcessed atomic.Uint64
	envelopesDropped  atomic.Uint64
	unknownPairs      atomic.Uint64
	validationErrors  atomic.Uint64
	ticksEmitted      atomic.Uint64
	statsEmitted      atomic.Uint64
	errorsTotal       atomic.Uint64

	// Latency tracking
	latencySumNs atomic.Int64
	latencyCount atomic.Uint64

	// Gauges
	activeConnections atomic.Int32
	activeStreams     atomic.Int64
	tokens            atomic.Int64
}

// NewMetrics returns a zeroed metrics set.
func NewMetrics() *Metrics {
	return &Metrics{}
}

// RecordCommand records a reduced command with its latency.
func (m *Metrics) RecordCommand(latencyNs int64) {
	m.commandsProcessed.Add(1)
	m.latencySumNs.Add(latencyNs)
	m.latencyCount.Add(1)
}

// RecordDropped records an envelope the mapper could not use.
func (m *Metrics) RecordDropped() {
	m.envelopesDropped.Add(1)
}

// RecordUnknownPair records a tick or stats update for an unknown pair.
func (m *Metrics) RecordUnknownPair() {
	m.unknownPairs.Add(1)
}

// RecordValidationErrors records rejected snapshot items.
func (m *Metrics) RecordValidationErrors(n int) {
	m.validationErrors.Add(uint64(n))
}

// RecordTick records an emitted tick event.
func (m *Metrics) RecordTick() {
	m.ticksEmitted.Add(1)
}

// RecordStats records an emitted pair-stats event.
func (m *Metrics) RecordStats() {
	m.statsEmitted.Add(1)
}

// RecordError records an error occurrence.
func (m *Metrics) RecordError() {
	m.errorsTotal.Add(1)
}

// IncrementConnections increments active connections by 1.
func (m *Metrics) IncrementConnections() {
	m.activeConnections.Add(1)
}

// DecrementConnections decrements active connections by 1.
func (m *Metrics) DecrementConnections() {
	m.activeConnections.Add(-1)
}

// AddStreams adjusts the number of running per-pair emitters.
func (m *Metrics) AddStreams(delta int64) {
	m.activeStreams.Add(delta)
}

// SetTokens sets the number of tokens in the published state.
func (m *Metrics) SetTokens(n int64) {
	m.tokens.Store(n)
}

// MetricsSnapshot is a point-in-time view of all metrics.
type MetricsSnapshot struct {
	CommandsProcessed uint64
	EnvelopesDropped  uint64
	UnknownPairs      uint64
	ValidationErrors  uint64
	TicksEmitted      uint64
	StatsEmitted      uint64
	ErrorsTotal       uint64
	AvgLatencyNs      int64
	ActiveConnections int32
	ActiveStreams     int64
	Tokens            int64
	Timestamp         time.Time
}

// Snapshot returns current metrics as a snapshot.
func (m *Metrics) Snapshot() MetricsSnapshot {
	var avgLatency int64
	count := m.latencyCount.Load()
	if count > 0 {
		avgLatency = m.latencySumNs.Load() / int64(count)
	}

	return MetricsSnapshot{
		CommandsProcessed: m.commandsProcessed.Load(),
		EnvelopesDropped:  m.envelopesDropped.Load(),
		UnknownPairs:      m.unknownPairs.Load(),
		ValidationErrors:  m.validationErrors.Load(),
		TicksEmitted:      m.ticksEmitted.Load(),
		StatsEmitted:      m.statsEmitted.Load(),
		ErrorsTotal:       m.errorsTotal.Load(),
		AvgLatencyNs:      avgLatency,
		ActiveConnections: m.activeConnections.Load(),
		ActiveStreams:     m.activeStreams.Load(),
		Tokens:            m.tokens.Load(),
		Timestamp:         time.Now(),
	}
}

// Reset clears all metrics (for testing).
func (m *Metrics) Reset() {
	m.commandsProcessed.Store(0)
	m.envelopesDropped.Store(0)
	m.unknownPairs.Store(0)
	m.validationErrors.Store(0)
	m.ticksEmitted.Store(0)
	m.statsEmitted.Store(0)
	m.errorsTotal.Store(0)
	m.latencySumNs.Store(0)
	m.latencyCount.Store(0)
	m.activeConnections.Store(0)
	m.activeStreams.Store(0)
	m.tokens.Store(0)
}

// Register exposes the counters on reg under the scanner namespace.
func (m *Metrics) Register(reg prometheus.Registerer) error {
	counter := func(name, help string, v *atomic.Uint64) prometheus.Collector {
		return prometheus.NewCounterFunc(prometheus.CounterOpts{
			Namespace: "scanner", Name: name, Help: help,
		}, func() float64 { return float64(v.Load()) })
	}
	gauge := func(name, help string, f func() float64) prometheus.Collector {
		return prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: "scanner", Name: name, Help: help,
		}, f)
	}

	collectors := []prometheus.Collector{
		counter("commands_processed_total", "Commands reduced by the sequencer.", &m.commandsProcessed),
		counter("envelopes_dropped_total", "Inbound envelopes that mapped to no command.", &m.envelopesDropped),
		counter("unknown_pair_updates_total", "Tick or stats updates for pairs not in state.", &m.unknownPairs),
		counter("validation_errors_total", "Snapshot items rejected by validation.", &m.validationErrors),
		counter("ticks_emitted_total", "Tick events emitted by stream schedulers.", &m.ticksEmitted),
		counter("stats_emitted_total", "Pair-stats events emitted by stream schedulers.", &m.statsEmitted),
		counter("errors_total", "Errors of any kind.", &m.errorsTotal),
		gauge("active_connections", "Open websocket connections.", func() float64 { return float64(m.activeConnections.Load()) }),
		gauge("active_streams", "Running per-pair emitters.", func() float64 { return float64(m.activeStreams.Load()) }),
		gauge("tokens", "Tokens in the published state.", func() float64 { return float64(m.tokens.Load()) }),
		gauge("command_latency_avg_seconds", "Average reduce latency.", func() float64 {
			return float64(m.Snapshot().AvgLatencyNs) / float64(time.Second)
		}),
	}
	for _, c := range collectors {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}
