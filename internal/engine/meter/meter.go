package meter

import (
	"log"
	"sync"
	"time"

	"FlowSentry/internal/config"
	"FlowSentry/internal/metrics"
	"FlowSentry/internal/model"
)

// Defaults applied when the config leaves metering fields unset.
const (
	DefaultIdleTimeout       = 60 * time.Second
	DefaultActiveTimeout     = 120 * time.Second
	DefaultFinGrace          = 5 * time.Second
	DefaultScanInterval      = time.Second
	DefaultActivityThreshold = 5 * time.Second
	DefaultInputChannelSize  = 10000
	DefaultOutputChannelSize = 1000
	DefaultEmitRetries       = 20
	DefaultEmitRetryDelay    = 5 * time.Millisecond
)

// Meter is the stream-processing engine: one ingestion loop driving the flow
// table, one periodic eviction scanner, and an emitter publishing terminated
// flows on a bounded output channel.
type Meter struct {
	table *Table
	met   *metrics.Pipeline

	input  chan *model.PacketInfo
	output chan *model.FlowRecord

	scanInterval   time.Duration
	emitRetries    int
	emitRetryDelay time.Duration

	done     chan struct{}
	ingestWg sync.WaitGroup
	scanWg   sync.WaitGroup
	stopOnce sync.Once
}

// New creates a meter from the config section. met may not be nil.
func New(cfg config.MeterConfig, met *metrics.Pipeline) *Meter {
	inSize := cfg.InputChannelSize
	if inSize <= 0 {
		inSize = DefaultInputChannelSize
	}
	outSize := cfg.OutputChannelSize
	if outSize <= 0 {
		outSize = DefaultOutputChannelSize
	}
	retries := cfg.EmitRetries
	if retries <= 0 {
		retries = DefaultEmitRetries
	}

	return &Meter{
		table: NewTable(
			config.Duration(cfg.IdleTimeout, DefaultIdleTimeout),
			config.Duration(cfg.ActiveTimeout, DefaultActiveTimeout),
			config.Duration(cfg.FinGrace, DefaultFinGrace),
			config.Duration(cfg.ActivityThreshold, DefaultActivityThreshold),
			cfg.BulkPayloadFloor,
		),
		met:            met,
		input:          make(chan *model.PacketInfo, inSize),
		output:         make(chan *model.FlowRecord, outSize),
		scanInterval:   config.Duration(cfg.ScanInterval, DefaultScanInterval),
		emitRetries:    retries,
		emitRetryDelay: config.Duration(cfg.EmitRetryDelay, DefaultEmitRetryDelay),
		done:           make(chan struct{}),
	}
}

// Input returns the channel packets are sent to for metering. The caller must
// stop sending before calling Stop.
func (m *Meter) Input() chan<- *model.PacketInfo { return m.input }

// Output returns the ordered channel of terminated flow records. It is closed
// after Stop has drained the table.
func (m *Meter) Output() <-chan *model.FlowRecord { return m.output }

// ActiveFlows returns the current open-flow count.
func (m *Meter) ActiveFlows() int { return m.table.Len() }

// Start launches the ingestion loop and the eviction scanner.
func (m *Meter) Start() {
	m.ingestWg.Add(1)
	go m.ingest()

	m.scanWg.Add(1)
	go m.scanner()
}

// StartReplay launches the ingestion loop without the wall-clock eviction
// scanner. Replayed captures carry historical timestamps, so scanning against
// time.Now() would force-close every in-progress flow; timeouts are instead
// applied on the packet clock inside Update, and Stop drains the remainder.
func (m *Meter) StartReplay() {
	m.ingestWg.Add(1)
	go m.ingest()
}

// Stop halts ingestion, lets the scanner finish, drains every remaining flow
// through the emitter and closes the output channel. It is idempotent and
// safe to call from any goroutine once packet producers have stopped.
func (m *Meter) Stop() {
	m.stopOnce.Do(func() {
		close(m.input)
		m.ingestWg.Wait()

		close(m.done)
		m.scanWg.Wait()

		drained := m.table.Drain()
		for _, acc := range drained {
			m.emit(acc)
		}
		m.met.ActiveFlows.Store(0)
		if len(drained) > 0 {
			log.Printf("meter: drained %d open flows on shutdown", len(drained))
		}
		close(m.output)
	})
}

func (m *Meter) ingest() {
	defer m.ingestWg.Done()
	for pkt := range m.input {
		m.met.Packets.Add(1)
		closed, ooo := m.table.Update(pkt)
		if ooo {
			m.met.OutOfOrder.Add(1)
		}
		for _, acc := range closed {
			m.emit(acc)
		}
		m.met.ActiveFlows.Store(int64(m.table.Len()))
	}
}

func (m *Meter) scanner() {
	defer m.scanWg.Done()
	ticker := time.NewTicker(m.scanInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			closed := m.table.Evict(time.Now())
			for _, acc := range closed {
				m.emit(acc)
			}
			if len(closed) > 0 {
				m.met.ActiveFlows.Store(int64(m.table.Len()))
			}
		case <-m.done:
			return
		}
	}
}

// emit finalizes a closed accumulator and publishes the record. A saturated
// output channel degrades via bounded retry and finally a blocking send; a
// completed record is never dropped.
func (m *Meter) emit(acc *Accumulator) {
	rec := acc.Finalize()

	switch rec.EndReason {
	case model.EndReasonTCP:
		m.met.EmittedTCP.Add(1)
	case model.EndReasonIdle:
		m.met.EmittedIdle.Add(1)
	case model.EndReasonMaxAge:
		m.met.EmittedAge.Add(1)
	default:
		m.met.EmittedDrain.Add(1)
	}

	select {
	case m.output <- rec:
		return
	default:
	}

	for i := 0; i < m.emitRetries; i++ {
		m.met.EmitRetries.Add(1)
		select {
		case m.output <- rec:
			return
		case <-time.After(m.emitRetryDelay):
		}
	}
	m.output <- rec
}
