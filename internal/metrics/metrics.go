package metrics

import (
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
)

// Pipeline holds the diagnostic counters of one metering pipeline. The
// counters are plain atomics so the hot path never touches a lock; the
// prometheus collectors read the same atomics, so /metrics and the status
// endpoint report identical values at each scrape.
type Pipeline struct {
	Packets      atomic.Uint64
	ParseErrors  atomic.Uint64
	OutOfOrder   atomic.Uint64
	EmitRetries  atomic.Uint64
	EmittedTCP   atomic.Uint64
	EmittedIdle  atomic.Uint64
	EmittedAge   atomic.Uint64
	EmittedDrain atomic.Uint64

	// ActiveFlows is set by the meter after each table operation.
	ActiveFlows atomic.Int64
}

// Snapshot is a consistent point-in-time view of the pipeline counters.
type Snapshot struct {
	Packets      uint64 `json:"packets"`
	ParseErrors  uint64 `json:"parse_errors"`
	OutOfOrder   uint64 `json:"out_of_order"`
	EmitRetries  uint64 `json:"emit_retries"`
	EmittedTCP   uint64 `json:"emitted_tcp"`
	EmittedIdle  uint64 `json:"emitted_idle"`
	EmittedAge   uint64 `json:"emitted_max_age"`
	EmittedDrain uint64 `json:"emitted_shutdown"`
	Emitted      uint64 `json:"emitted_total"`
	ActiveFlows  int64  `json:"active_flows"`
}

// NewPipeline creates the counter set and registers its collectors.
func NewPipeline(reg prometheus.Registerer) *Pipeline {
	p := &Pipeline{}

	counter := func(name, help string, v *atomic.Uint64) prometheus.CounterFunc {
		return prometheus.NewCounterFunc(prometheus.CounterOpts{
			Namespace: "fs", Name: name, Help: help,
		}, func() float64 { return float64(v.Load()) })
	}

	reg.MustRegister(
		counter("packets_total", "Raw packets read from the source.", &p.Packets),
		counter("parse_errors_total", "Frames dropped by the dissector.", &p.ParseErrors),
		counter("out_of_order_total", "Packets that would regress a flow clock.", &p.OutOfOrder),
		counter("emit_retries_total", "Retries caused by a saturated output channel.", &p.EmitRetries),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: "fs", Name: "active_flows", Help: "Flows currently open in the table.",
		}, func() float64 { return float64(p.ActiveFlows.Load()) }),
	)

	emitted := func(reason string, v *atomic.Uint64) prometheus.CounterFunc {
		return prometheus.NewCounterFunc(prometheus.CounterOpts{
			Namespace:   "fs",
			Name:        "flows_emitted_total",
			Help:        "Flow records emitted, by termination reason.",
			ConstLabels: prometheus.Labels{"reason": reason},
		}, func() float64 { return float64(v.Load()) })
	}
	reg.MustRegister(
		emitted("tcp", &p.EmittedTCP),
		emitted("idle", &p.EmittedIdle),
		emitted("max_age", &p.EmittedAge),
		emitted("shutdown", &p.EmittedDrain),
	)

	return p
}

// Snapshot returns the current counter values.
func (p *Pipeline) Snapshot() Snapshot {
	s := Snapshot{
		Packets:      p.Packets.Load(),
		ParseErrors:  p.ParseErrors.Load(),
		OutOfOrder:   p.OutOfOrder.Load(),
		EmitRetries:  p.EmitRetries.Load(),
		EmittedTCP:   p.EmittedTCP.Load(),
		EmittedIdle:  p.EmittedIdle.Load(),
		EmittedAge:   p.EmittedAge.Load(),
		EmittedDrain: p.EmittedDrain.Load(),
		ActiveFlows:  p.ActiveFlows.Load(),
	}
	s.Emitted = s.EmittedTCP + s.EmittedIdle + s.EmittedAge + s.EmittedDrain
	return s
}
