package meter

import (
	"sync"
	"time"

	"FlowSentry/internal/model"
)

// Table owns all mutable per-flow state. Every access goes through its
// Update/Evict/Drain API under one mutex, so flow mutation is atomic with
// respect to both packet arrival and eviction and each flow leaves the table
// exactly once.
type Table struct {
	mu    sync.Mutex
	flows map[Key]*Accumulator

	idleTimeout       time.Duration
	activeTimeout     time.Duration
	finGrace          time.Duration
	activityThreshold time.Duration
	bulkFloor         int
}

// NewTable creates an empty flow table.
func NewTable(idleTimeout, activeTimeout, finGrace, activityThreshold time.Duration, bulkFloor int) *Table {
	return &Table{
		flows:             make(map[Key]*Accumulator, 4096),
		idleTimeout:       idleTimeout,
		activeTimeout:     activeTimeout,
		finGrace:          finGrace,
		activityThreshold: activityThreshold,
		bulkFloor:         bulkFloor,
	}
}

// Update resolves the packet to its flow, creating one if needed, and folds
// the packet in. It returns any flows terminated by this packet, already
// removed from the table: the packet's own flow on FIN/RST completion, plus a
// stale same-key flow whose timeout elapsed on the packet clock (replayed
// captures never see wall-clock eviction).
func (t *Table) Update(pkt *model.PacketInfo) (closed []*Accumulator, outOfOrder bool) {
	key, srcIsA := KeyOf(pkt.FiveTuple)

	t.mu.Lock()
	defer t.mu.Unlock()

	acc, ok := t.flows[key]
	if ok {
		ts := pkt.Timestamp
		if !ts.Before(acc.lastSeen) {
			if age := ts.Sub(acc.start); t.activeTimeout > 0 && age >= t.activeTimeout {
				acc.close(model.EndReasonMaxAge)
			} else if gap := ts.Sub(acc.lastSeen); t.idleTimeout > 0 && gap >= t.idleTimeout {
				acc.close(model.EndReasonIdle)
			}
		}
		if acc.state == StateClosed {
			delete(t.flows, key)
			closed = append(closed, acc)
			acc = nil
			ok = false
		}
	}

	if !ok {
		acc = newAccumulator(key, srcIsA, pkt, t.activityThreshold, t.bulkFloor)
		t.flows[key] = acc
	} else {
		before := acc.outOfOrder
		acc.update(pkt, acc.forward(srcIsA))
		outOfOrder = acc.outOfOrder > before
	}

	if acc.state == StateClosed {
		delete(t.flows, key)
		closed = append(closed, acc)
	}
	return closed, outOfOrder
}

// Evict force-closes flows idle past the idle timeout, older than the active
// timeout, or stuck in CLOSING past the FIN grace window. Closed flows are
// removed and returned for emission.
func (t *Table) Evict(now time.Time) []*Accumulator {
	t.mu.Lock()
	defer t.mu.Unlock()

	var closed []*Accumulator
	for key, acc := range t.flows {
		switch acc.state {
		case StateOpen:
			if t.activeTimeout > 0 && now.Sub(acc.start) >= t.activeTimeout {
				acc.close(model.EndReasonMaxAge)
			} else if t.idleTimeout > 0 && now.Sub(acc.lastSeen) >= t.idleTimeout {
				acc.close(model.EndReasonIdle)
			}
		case StateClosing:
			if now.Sub(acc.closingAt) >= t.finGrace {
				acc.close(model.EndReasonTCP)
			} else if t.idleTimeout > 0 && now.Sub(acc.lastSeen) >= t.idleTimeout {
				acc.close(model.EndReasonIdle)
			}
		}
		if acc.state == StateClosed {
			delete(t.flows, key)
			closed = append(closed, acc)
		}
	}
	return closed
}

// Drain force-closes and removes every remaining flow. Used by the shutdown
// path only.
func (t *Table) Drain() []*Accumulator {
	t.mu.Lock()
	defer t.mu.Unlock()

	closed := make([]*Accumulator, 0, len(t.flows))
	for key, acc := range t.flows {
		acc.close(model.EndReasonShutdown)
		delete(t.flows, key)
		closed = append(closed, acc)
	}
	return closed
}

// Len returns the number of open flows.
func (t *Table) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.flows)
}
