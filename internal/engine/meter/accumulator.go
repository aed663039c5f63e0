package meter

import (
	"fmt"
	"time"

	"FlowSentry/internal/model"
)

// State is the termination state of a flow.
type State uint8

const (
	StateOpen State = iota
	StateClosing
	StateClosed
)

// bulkMinPackets is the minimum run length for a burst of same-direction
// payload packets to count as a bulk transfer.
const bulkMinPackets = 4

// bulkGap breaks a bulk run when same-direction packets are further apart.
const bulkGap = time.Second

// subflowGap separates sub-windows used for rate normalization.
const subflowGap = time.Second

// bulkState tracks one direction's current bulk run and the committed bulk
// statistics.
type bulkState struct {
	runStart   time.Time
	runLast    time.Time
	runPackets uint64
	runBytes   uint64

	states   uint64
	packets  uint64
	bytes    uint64
	duration time.Duration
}

// add extends the current run with a payload-carrying packet.
func (b *bulkState) add(payload int, ts time.Time) {
	if b.runPackets > 0 && ts.Sub(b.runLast) > bulkGap {
		b.flush()
	}
	if b.runPackets == 0 {
		b.runStart = ts
	}
	b.runPackets++
	b.runBytes += uint64(payload)
	b.runLast = ts
}

// flush commits the current run if it qualifies as a bulk transfer and
// resets the run either way.
func (b *bulkState) flush() {
	if b.runPackets >= bulkMinPackets {
		b.states++
		b.packets += b.runPackets
		b.bytes += b.runBytes
		b.duration += b.runLast.Sub(b.runStart)
	}
	b.runPackets = 0
	b.runBytes = 0
}

// Accumulator holds the running statistics of one open flow. It is owned
// exclusively by the Table while open; after Finalize it is never touched
// again.
type Accumulator struct {
	key    Key
	tuple  model.FiveTuple // first-seen orientation
	srcIsA bool

	state     State
	closingAt time.Time
	endReason model.EndReason

	start       time.Time
	lastSeen    time.Time
	fwdLastSeen time.Time
	bwdLastSeen time.Time

	fwdPkts, bwdPkts     uint64
	fwdBytes, bwdBytes   uint64
	fwdHeader, bwdHeader uint64

	fwdPktLen, bwdPktLen, pktLen RunningStats
	flowIAT, fwdIAT, bwdIAT      RunningStats

	flagCnt                        [8]uint64
	fwdPSH, bwdPSH, fwdURG, bwdURG uint64
	initWinFwd, initWinBwd         uint16
	initWinFwdSet, initWinBwdSet   bool
	fwdActDataPkts                 uint64
	fwdSegSizeMin                  uint64

	activeStart, activeEnd time.Time
	active, idle           RunningStats
	activityThreshold      time.Duration

	fbulk, bbulk bulkState
	bulkFloor    int

	sfCount  uint64
	sfLastTS time.Time

	finSeen    uint64
	outOfOrder uint64
}

func newAccumulator(key Key, srcIsA bool, pkt *model.PacketInfo, activityThreshold time.Duration, bulkFloor int) *Accumulator {
	acc := &Accumulator{
		key:               key,
		tuple:             pkt.FiveTuple,
		srcIsA:            srcIsA,
		start:             pkt.Timestamp,
		lastSeen:          pkt.Timestamp,
		activityThreshold: activityThreshold,
		bulkFloor:         bulkFloor,
	}
	acc.update(pkt, true)
	return acc
}

// forward reports whether a packet whose source is the A side of the key
// travels in the flow's defining direction.
func (a *Accumulator) forward(srcIsA bool) bool {
	return srcIsA == a.srcIsA
}

// update folds one packet into the flow. The caller (the Table) has already
// resolved direction and holds the table lock.
func (a *Accumulator) update(pkt *model.PacketInfo, fwd bool) {
	ts := pkt.Timestamp
	regressed := ts.Before(a.lastSeen)
	if regressed {
		a.outOfOrder++
	}

	payload := pkt.PayloadLength
	a.pktLen.Add(float64(payload))

	if pkt.HasTCP {
		for bit := 0; bit < 8; bit++ {
			if pkt.TCPFlags&(1<<bit) != 0 {
				a.flagCnt[bit]++
			}
		}
	}

	first := a.fwdPkts+a.bwdPkts == 0
	if !first && !regressed {
		a.flowIAT.Add(float64(ts.Sub(a.lastSeen).Microseconds()))
	}

	if fwd {
		if a.fwdPkts > 0 && !ts.Before(a.fwdLastSeen) {
			a.fwdIAT.Add(float64(ts.Sub(a.fwdLastSeen).Microseconds()))
		}
		if !ts.Before(a.fwdLastSeen) {
			a.fwdLastSeen = ts
		}
		a.fwdPkts++
		a.fwdBytes += uint64(payload)
		a.fwdHeader += uint64(pkt.HeaderLength)
		a.fwdPktLen.Add(float64(payload))
		if payload > 0 {
			a.fwdActDataPkts++
		}
		if a.fwdSegSizeMin == 0 || uint64(pkt.HeaderLength) < a.fwdSegSizeMin {
			a.fwdSegSizeMin = uint64(pkt.HeaderLength)
		}
		if pkt.HasTCP {
			if pkt.TCPFlags&model.TCPFlagPSH != 0 {
				a.fwdPSH++
			}
			if pkt.TCPFlags&model.TCPFlagURG != 0 {
				a.fwdURG++
			}
			if !a.initWinFwdSet {
				a.initWinFwd = pkt.Window
				a.initWinFwdSet = true
			}
		}
	} else {
		if a.bwdPkts > 0 && !ts.Before(a.bwdLastSeen) {
			a.bwdIAT.Add(float64(ts.Sub(a.bwdLastSeen).Microseconds()))
		}
		if !ts.Before(a.bwdLastSeen) {
			a.bwdLastSeen = ts
		}
		a.bwdPkts++
		a.bwdBytes += uint64(payload)
		a.bwdHeader += uint64(pkt.HeaderLength)
		a.bwdPktLen.Add(float64(payload))
		if pkt.HasTCP {
			if pkt.TCPFlags&model.TCPFlagPSH != 0 {
				a.bwdPSH++
			}
			if pkt.TCPFlags&model.TCPFlagURG != 0 {
				a.bwdURG++
			}
			if !a.initWinBwdSet {
				a.initWinBwd = pkt.Window
				a.initWinBwdSet = true
			}
		}
	}

	if !regressed {
		a.updateActiveIdle(ts)
		a.updateSubflows(ts)
		a.updateBulk(payload, ts, fwd)
		a.lastSeen = ts
	}

	if pkt.HasTCP {
		a.updateState(pkt, ts)
	}
}

// updateActiveIdle closes the current active period and records an idle gap
// whenever silence exceeds the activity threshold.
func (a *Accumulator) updateActiveIdle(ts time.Time) {
	if a.activeStart.IsZero() {
		a.activeStart = ts
		a.activeEnd = ts
		return
	}
	gap := ts.Sub(a.activeEnd)
	if gap < 0 {
		return
	}
	if a.activityThreshold > 0 && gap > a.activityThreshold {
		if d := a.activeEnd.Sub(a.activeStart); d > 0 {
			a.active.Add(float64(d.Microseconds()))
		}
		a.idle.Add(float64(gap.Microseconds()))
		a.activeStart = ts
	}
	a.activeEnd = ts
}

func (a *Accumulator) updateSubflows(ts time.Time) {
	if a.sfLastTS.IsZero() {
		a.sfCount = 1
		a.sfLastTS = ts
		return
	}
	if ts.Sub(a.sfLastTS) > subflowGap {
		a.sfCount++
	}
	a.sfLastTS = ts
}

// updateBulk extends the same-direction run; a direction change or a packet
// below the payload floor flushes the pending run.
func (a *Accumulator) updateBulk(payload int, ts time.Time, fwd bool) {
	floor := a.bulkFloor
	if floor < 1 {
		floor = 1
	}
	if fwd {
		a.bbulk.flush()
		if payload >= floor {
			a.fbulk.add(payload, ts)
		} else {
			a.fbulk.flush()
		}
	} else {
		a.fbulk.flush()
		if payload >= floor {
			a.bbulk.add(payload, ts)
		} else {
			a.bbulk.flush()
		}
	}
}

// updateState drives OPEN -> CLOSING -> CLOSED. RST closes immediately; the
// first FIN opens the grace window, a second FIN closes immediately.
func (a *Accumulator) updateState(pkt *model.PacketInfo, ts time.Time) {
	if pkt.TCPFlags&model.TCPFlagRST != 0 {
		a.close(model.EndReasonTCP)
		return
	}
	if pkt.TCPFlags&model.TCPFlagFIN != 0 {
		a.finSeen++
		switch a.state {
		case StateOpen:
			a.state = StateClosing
			a.closingAt = ts
		case StateClosing:
			a.close(model.EndReasonTCP)
		}
	}
}

func (a *Accumulator) close(reason model.EndReason) {
	if a.state == StateClosed {
		return
	}
	a.state = StateClosed
	a.endReason = reason
}

// Finalize converts the accumulator into an immutable flow record. It must be
// called exactly once, after the flow has left the table.
func (a *Accumulator) Finalize() *model.FlowRecord {
	// Close the trailing active period and pending bulk runs.
	if !a.activeStart.IsZero() {
		if d := a.activeEnd.Sub(a.activeStart); d > 0 {
			a.active.Add(float64(d.Microseconds()))
		}
	}
	a.fbulk.flush()
	a.bbulk.flush()

	durMicros := a.lastSeen.Sub(a.start).Microseconds()
	if durMicros < 0 {
		durMicros = 0
	}
	// Duration floor keeps single-packet flow rates defined.
	rateMicros := durMicros
	if rateMicros < 1 {
		rateMicros = 1
	}
	durSec := float64(rateMicros) / 1e6

	totPkts := a.fwdPkts + a.bwdPkts
	totBytes := a.fwdBytes + a.bwdBytes

	r := &model.FlowRecord{
		FlowID: fmt.Sprintf("%s-%s-%d-%d-%d",
			a.tuple.SrcIP, a.tuple.DstIP, a.tuple.SrcPort, a.tuple.DstPort, a.tuple.Protocol),
		Tuple:     a.tuple,
		StartTime: a.start,
		EndReason: a.endReason,

		FlowDuration: durMicros,

		TotFwdPkts: a.fwdPkts,
		TotBwdPkts: a.bwdPkts,
		TotLenFwd:  a.fwdBytes,
		TotLenBwd:  a.bwdBytes,

		FwdPktLenMax:  a.fwdPktLen.Max(),
		FwdPktLenMin:  a.fwdPktLen.Min(),
		FwdPktLenMean: a.fwdPktLen.Mean(),
		FwdPktLenStd:  a.fwdPktLen.Std(),
		BwdPktLenMax:  a.bwdPktLen.Max(),
		BwdPktLenMin:  a.bwdPktLen.Min(),
		BwdPktLenMean: a.bwdPktLen.Mean(),
		BwdPktLenStd:  a.bwdPktLen.Std(),

		FlowBytsPerSec: float64(totBytes) / durSec,
		FlowPktsPerSec: float64(totPkts) / durSec,

		FlowIATMean: a.flowIAT.Mean(),
		FlowIATStd:  a.flowIAT.Std(),
		FlowIATMax:  a.flowIAT.Max(),
		FlowIATMin:  a.flowIAT.Min(),
		FwdIATTot:   a.fwdIAT.Sum(),
		FwdIATMean:  a.fwdIAT.Mean(),
		FwdIATStd:   a.fwdIAT.Std(),
		FwdIATMax:   a.fwdIAT.Max(),
		FwdIATMin:   a.fwdIAT.Min(),
		BwdIATTot:   a.bwdIAT.Sum(),
		BwdIATMean:  a.bwdIAT.Mean(),
		BwdIATStd:   a.bwdIAT.Std(),
		BwdIATMax:   a.bwdIAT.Max(),
		BwdIATMin:   a.bwdIAT.Min(),

		FwdPSHFlags: a.fwdPSH,
		BwdPSHFlags: a.bwdPSH,
		FwdURGFlags: a.fwdURG,
		BwdURGFlags: a.bwdURG,

		FwdHeaderLen:  a.fwdHeader,
		BwdHeaderLen:  a.bwdHeader,
		FwdPktsPerSec: float64(a.fwdPkts) / durSec,
		BwdPktsPerSec: float64(a.bwdPkts) / durSec,

		PktLenMin:  a.pktLen.Min(),
		PktLenMax:  a.pktLen.Max(),
		PktLenMean: a.pktLen.Mean(),
		PktLenStd:  a.pktLen.Std(),
		PktLenVar:  a.pktLen.Variance(),

		FINFlagCnt: a.flagCnt[0],
		SYNFlagCnt: a.flagCnt[1],
		RSTFlagCnt: a.flagCnt[2],
		PSHFlagCnt: a.flagCnt[3],
		ACKFlagCnt: a.flagCnt[4],
		URGFlagCnt: a.flagCnt[5],
		ECEFlagCnt: a.flagCnt[6],
		CWEFlagCnt: a.flagCnt[7],

		PktSizeAvg: a.pktLen.Mean(),

		InitFwdWinByts: uint64(a.initWinFwd),
		InitBwdWinByts: uint64(a.initWinBwd),
		FwdActDataPkts: a.fwdActDataPkts,
		FwdSegSizeMin:  a.fwdSegSizeMin,

		ActiveMean: a.active.Mean(),
		ActiveStd:  a.active.Std(),
		ActiveMax:  a.active.Max(),
		ActiveMin:  a.active.Min(),
		IdleMean:   a.idle.Mean(),
		IdleStd:    a.idle.Std(),
		IdleMax:    a.idle.Max(),
		IdleMin:    a.idle.Min(),

		OutOfOrderPkts: a.outOfOrder,
	}

	if a.fwdPkts > 0 {
		r.DownUpRatio = float64(a.bwdPkts) / float64(a.fwdPkts)
		r.FwdSegSizeAvg = float64(a.fwdBytes) / float64(a.fwdPkts)
	}
	if a.bwdPkts > 0 {
		r.BwdSegSizeAvg = float64(a.bwdBytes) / float64(a.bwdPkts)
	}

	if a.fbulk.states > 0 {
		r.FwdBytsBlkAvg = float64(a.fbulk.bytes) / float64(a.fbulk.states)
		r.FwdPktsBlkAvg = float64(a.fbulk.packets) / float64(a.fbulk.states)
		if sec := a.fbulk.duration.Seconds(); sec > 0 {
			r.FwdBlkRateAvg = float64(a.fbulk.bytes) / sec
		}
	}
	if a.bbulk.states > 0 {
		r.BwdBytsBlkAvg = float64(a.bbulk.bytes) / float64(a.bbulk.states)
		r.BwdPktsBlkAvg = float64(a.bbulk.packets) / float64(a.bbulk.states)
		if sec := a.bbulk.duration.Seconds(); sec > 0 {
			r.BwdBlkRateAvg = float64(a.bbulk.bytes) / sec
		}
	}

	if a.sfCount > 0 {
		r.SubflowFwdPkts = a.fwdPkts / a.sfCount
		r.SubflowFwdByts = a.fwdBytes / a.sfCount
		r.SubflowBwdPkts = a.bwdPkts / a.sfCount
		r.SubflowBwdByts = a.bwdBytes / a.sfCount
	}

	return r
}
