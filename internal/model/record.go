package model

import (
	"strconv"
	"time"
)

// DefaultColumns is the canonical header of the emitted record format,
// following the common flow-metering CSV convention. The exact set and order
// is a dataset convention, so sinks treat it as configuration; this is the
// default when the config does not select its own column list.
var DefaultColumns = []string{
	"Flow ID", "Src IP", "Src Port", "Dst IP", "Dst Port", "Protocol",
	"Timestamp", "Flow Duration",
	"Tot Fwd Pkts", "Tot Bwd Pkts", "TotLen Fwd Pkts", "TotLen Bwd Pkts",
	"Fwd Pkt Len Max", "Fwd Pkt Len Min", "Fwd Pkt Len Mean", "Fwd Pkt Len Std",
	"Bwd Pkt Len Max", "Bwd Pkt Len Min", "Bwd Pkt Len Mean", "Bwd Pkt Len Std",
	"Flow Byts/s", "Flow Pkts/s",
	"Flow IAT Mean", "Flow IAT Std", "Flow IAT Max", "Flow IAT Min",
	"Fwd IAT Tot", "Fwd IAT Mean", "Fwd IAT Std", "Fwd IAT Max", "Fwd IAT Min",
	"Bwd IAT Tot", "Bwd IAT Mean", "Bwd IAT Std", "Bwd IAT Max", "Bwd IAT Min",
	"Fwd PSH Flags", "Bwd PSH Flags", "Fwd URG Flags", "Bwd URG Flags",
	"Fwd Header Len", "Bwd Header Len", "Fwd Pkts/s", "Bwd Pkts/s",
	"Pkt Len Min", "Pkt Len Max", "Pkt Len Mean", "Pkt Len Std", "Pkt Len Var",
	"FIN Flag Cnt", "SYN Flag Cnt", "RST Flag Cnt", "PSH Flag Cnt",
	"ACK Flag Cnt", "URG Flag Cnt", "CWE Flag Cnt", "ECE Flag Cnt",
	"Down/Up Ratio", "Pkt Size Avg", "Fwd Seg Size Avg", "Bwd Seg Size Avg",
	"Fwd Byts/b Avg", "Fwd Pkts/b Avg", "Fwd Blk Rate Avg",
	"Bwd Byts/b Avg", "Bwd Pkts/b Avg", "Bwd Blk Rate Avg",
	"Subflow Fwd Pkts", "Subflow Fwd Byts", "Subflow Bwd Pkts", "Subflow Bwd Byts",
	"Init Fwd Win Byts", "Init Bwd Win Byts", "Fwd Act Data Pkts", "Fwd Seg Size Min",
	"Active Mean", "Active Std", "Active Max", "Active Min",
	"Idle Mean", "Idle Std", "Idle Max", "Idle Min",
}

// FlowRecord is the immutable snapshot of a terminated flow plus its derived
// statistics. All time-valued features are in microseconds.
type FlowRecord struct {
	FlowID    string
	Tuple     FiveTuple
	StartTime time.Time
	EndReason EndReason

	FlowDuration int64

	TotFwdPkts uint64
	TotBwdPkts uint64
	TotLenFwd  uint64
	TotLenBwd  uint64

	FwdPktLenMax, FwdPktLenMin, FwdPktLenMean, FwdPktLenStd float64
	BwdPktLenMax, BwdPktLenMin, BwdPktLenMean, BwdPktLenStd float64

	FlowBytsPerSec, FlowPktsPerSec float64

	FlowIATMean, FlowIATStd, FlowIATMax, FlowIATMin        float64
	FwdIATTot, FwdIATMean, FwdIATStd, FwdIATMax, FwdIATMin float64
	BwdIATTot, BwdIATMean, BwdIATStd, BwdIATMax, BwdIATMin float64

	FwdPSHFlags, BwdPSHFlags, FwdURGFlags, BwdURGFlags uint64

	FwdHeaderLen, BwdHeaderLen   uint64
	FwdPktsPerSec, BwdPktsPerSec float64

	PktLenMin, PktLenMax, PktLenMean, PktLenStd, PktLenVar float64

	FINFlagCnt, SYNFlagCnt, RSTFlagCnt, PSHFlagCnt uint64
	ACKFlagCnt, URGFlagCnt, CWEFlagCnt, ECEFlagCnt uint64

	DownUpRatio   float64
	PktSizeAvg    float64
	FwdSegSizeAvg float64
	BwdSegSizeAvg float64

	FwdBytsBlkAvg, FwdPktsBlkAvg, FwdBlkRateAvg float64
	BwdBytsBlkAvg, BwdPktsBlkAvg, BwdBlkRateAvg float64

	SubflowFwdPkts, SubflowFwdByts uint64
	SubflowBwdPkts, SubflowBwdByts uint64

	InitFwdWinByts, InitBwdWinByts uint64
	FwdActDataPkts                 uint64
	FwdSegSizeMin                  uint64

	ActiveMean, ActiveStd, ActiveMax, ActiveMin float64
	IdleMean, IdleStd, IdleMax, IdleMin         float64

	// Diagnostics, not part of the column convention.
	OutOfOrderPkts uint64
}

// Fields renders the record as one row matching the given column order.
// Unknown column names render as "0" so a configured header never produces a
// ragged row.
func (r *FlowRecord) Fields(columns []string) []string {
	row := make([]string, len(columns))
	for i, col := range columns {
		row[i] = r.value(col)
	}
	return row
}

func f(v float64) string { return strconv.FormatFloat(v, 'f', 6, 64) }
func u(v uint64) string  { return strconv.FormatUint(v, 10) }

func (r *FlowRecord) value(col string) string {
	switch col {
	case "Flow ID":
		return r.FlowID
	case "Src IP":
		return r.Tuple.SrcIP.String()
	case "Src Port":
		return strconv.Itoa(int(r.Tuple.SrcPort))
	case "Dst IP":
		return r.Tuple.DstIP.String()
	case "Dst Port":
		return strconv.Itoa(int(r.Tuple.DstPort))
	case "Protocol":
		return strconv.Itoa(int(r.Tuple.Protocol))
	case "Timestamp":
		return r.StartTime.Format("2006-01-02 15:04:05.000000")
	case "Flow Duration":
		return strconv.FormatInt(r.FlowDuration, 10)
	case "Tot Fwd Pkts":
		return u(r.TotFwdPkts)
	case "Tot Bwd Pkts":
		return u(r.TotBwdPkts)
	case "TotLen Fwd Pkts":
		return u(r.TotLenFwd)
	case "TotLen Bwd Pkts":
		return u(r.TotLenBwd)
	case "Fwd Pkt Len Max":
		return f(r.FwdPktLenMax)
	case "Fwd Pkt Len Min":
		return f(r.FwdPktLenMin)
	case "Fwd Pkt Len Mean":
		return f(r.FwdPktLenMean)
	case "Fwd Pkt Len Std":
		return f(r.FwdPktLenStd)
	case "Bwd Pkt Len Max":
		return f(r.BwdPktLenMax)
	case "Bwd Pkt Len Min":
		return f(r.BwdPktLenMin)
	case "Bwd Pkt Len Mean":
		return f(r.BwdPktLenMean)
	case "Bwd Pkt Len Std":
		return f(r.BwdPktLenStd)
	case "Flow Byts/s":
		return f(r.FlowBytsPerSec)
	case "Flow Pkts/s":
		return f(r.FlowPktsPerSec)
	case "Flow IAT Mean":
		return f(r.FlowIATMean)
	case "Flow IAT Std":
		return f(r.FlowIATStd)
	case "Flow IAT Max":
		return f(r.FlowIATMax)
	case "Flow IAT Min":
		return f(r.FlowIATMin)
	case "Fwd IAT Tot":
		return f(r.FwdIATTot)
	case "Fwd IAT Mean":
		return f(r.FwdIATMean)
	case "Fwd IAT Std":
		return f(r.FwdIATStd)
	case "Fwd IAT Max":
		return f(r.FwdIATMax)
	case "Fwd IAT Min":
		return f(r.FwdIATMin)
	case "Bwd IAT Tot":
		return f(r.BwdIATTot)
	case "Bwd IAT Mean":
		return f(r.BwdIATMean)
	case "Bwd IAT Std":
		return f(r.BwdIATStd)
	case "Bwd IAT Max":
		return f(r.BwdIATMax)
	case "Bwd IAT Min":
		return f(r.BwdIATMin)
	case "Fwd PSH Flags":
		return u(r.FwdPSHFlags)
	case "Bwd PSH Flags":
		return u(r.BwdPSHFlags)
	case "Fwd URG Flags":
		return u(r.FwdURGFlags)
	case "Bwd URG Flags":
		return u(r.BwdURGFlags)
	case "Fwd Header Len":
		return u(r.FwdHeaderLen)
	case "Bwd Header Len":
		return u(r.BwdHeaderLen)
	case "Fwd Pkts/s":
		return f(r.FwdPktsPerSec)
	case "Bwd Pkts/s":
		return f(r.BwdPktsPerSec)
	case "Pkt Len Min":
		return f(r.PktLenMin)
	case "Pkt Len Max":
		return f(r.PktLenMax)
	case "Pkt Len Mean":
		return f(r.PktLenMean)
	case "Pkt Len Std":
		return f(r.PktLenStd)
	case "Pkt Len Var":
		return f(r.PktLenVar)
	case "FIN Flag Cnt":
		return u(r.FINFlagCnt)
	case "SYN Flag Cnt":
		return u(r.SYNFlagCnt)
	case "RST Flag Cnt":
		return u(r.RSTFlagCnt)
	case "PSH Flag Cnt":
		return u(r.PSHFlagCnt)
	case "ACK Flag Cnt":
		return u(r.ACKFlagCnt)
	case "URG Flag Cnt":
		return u(r.URGFlagCnt)
	case "CWE Flag Cnt":
		return u(r.CWEFlagCnt)
	case "ECE Flag Cnt":
		return u(r.ECEFlagCnt)
	case "Down/Up Ratio":
		return f(r.DownUpRatio)
	case "Pkt Size Avg":
		return f(r.PktSizeAvg)
	case "Fwd Seg Size Avg":
		return f(r.FwdSegSizeAvg)
	case "Bwd Seg Size Avg":
		return f(r.BwdSegSizeAvg)
	case "Fwd Byts/b Avg":
		return f(r.FwdBytsBlkAvg)
	case "Fwd Pkts/b Avg":
		return f(r.FwdPktsBlkAvg)
	case "Fwd Blk Rate Avg":
		return f(r.FwdBlkRateAvg)
	case "Bwd Byts/b Avg":
		return f(r.BwdBytsBlkAvg)
	case "Bwd Pkts/b Avg":
		return f(r.BwdPktsBlkAvg)
	case "Bwd Blk Rate Avg":
		return f(r.BwdBlkRateAvg)
	case "Subflow Fwd Pkts":
		return u(r.SubflowFwdPkts)
	case "Subflow Fwd Byts":
		return u(r.SubflowFwdByts)
	case "Subflow Bwd Pkts":
		return u(r.SubflowBwdPkts)
	case "Subflow Bwd Byts":
		return u(r.SubflowBwdByts)
	case "Init Fwd Win Byts":
		return u(r.InitFwdWinByts)
	case "Init Bwd Win Byts":
		return u(r.InitBwdWinByts)
	case "Fwd Act Data Pkts":
		return u(r.FwdActDataPkts)
	case "Fwd Seg Size Min":
		return u(r.FwdSegSizeMin)
	case "Active Mean":
		return f(r.ActiveMean)
	case "Active Std":
		return f(r.ActiveStd)
	case "Active Max":
		return f(r.ActiveMax)
	case "Active Min":
		return f(r.ActiveMin)
	case "Idle Mean":
		return f(r.IdleMean)
	case "Idle Std":
		return f(r.IdleStd)
	case "Idle Max":
		return f(r.IdleMax)
	case "Idle Min":
		return f(r.IdleMin)
	default:
		return "0"
	}
}
