package export

import (
	"bytes"
	"encoding/csv"
	"net"
	"testing"
	"time"

	"FlowSentry/internal/model"
)

func sampleRecord() *model.FlowRecord {
	return &model.FlowRecord{
		FlowID: "192.168.0.10-93.184.216.34-44821-443-6",
		Tuple: model.FiveTuple{
			SrcIP:    net.ParseIP("192.168.0.10"),
			DstIP:    net.ParseIP("93.184.216.34"),
			SrcPort:  44821,
			DstPort:  443,
			Protocol: 6,
		},
		StartTime:    time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC),
		FlowDuration: 50000,
		TotFwdPkts:   4,
		TotBwdPkts:   3,
		TotLenFwd:    592,
		TotLenBwd:    1240,
		SYNFlagCnt:   2,
	}
}

func TestCSVWriterHeaderAndRow(t *testing.T) {
	var buf bytes.Buffer
	w, err := NewCSVWriterTo(&buf, nil)
	if err != nil {
		t.Fatalf("NewCSVWriterTo failed: %v", err)
	}
	if err := w.Write(sampleRecord()); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	rows, err := csv.NewReader(&buf).ReadAll()
	if err != nil {
		t.Fatalf("output is not valid CSV: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("got %d rows, want header + 1 record", len(rows))
	}

	header, row := rows[0], rows[1]
	if len(header) != len(model.DefaultColumns) {
		t.Fatalf("header has %d columns, want %d", len(header), len(model.DefaultColumns))
	}
	if header[0] != "Flow ID" || header[len(header)-1] != "Idle Min" {
		t.Errorf("header bounds = %q..%q", header[0], header[len(header)-1])
	}
	if len(row) != len(header) {
		t.Fatalf("record row has %d fields, header has %d", len(row), len(header))
	}

	byCol := make(map[string]string, len(header))
	for i, col := range header {
		byCol[col] = row[i]
	}
	if byCol["Src IP"] != "192.168.0.10" || byCol["Dst Port"] != "443" {
		t.Errorf("identity fields = %q/%q", byCol["Src IP"], byCol["Dst Port"])
	}
	if byCol["Tot Fwd Pkts"] != "4" || byCol["TotLen Bwd Pkts"] != "1240" {
		t.Errorf("counters = %q/%q", byCol["Tot Fwd Pkts"], byCol["TotLen Bwd Pkts"])
	}
	if byCol["Flow Duration"] != "50000" {
		t.Errorf("duration = %q, want 50000", byCol["Flow Duration"])
	}
}

func TestCSVWriterColumnSubset(t *testing.T) {
	var buf bytes.Buffer
	columns := []string{"Dst Port", "Protocol", "SYN Flag Cnt"}
	w, err := NewCSVWriterTo(&buf, columns)
	if err != nil {
		t.Fatalf("NewCSVWriterTo failed: %v", err)
	}
	if err := w.Write(sampleRecord()); err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	rows, err := csv.NewReader(&buf).ReadAll()
	if err != nil {
		t.Fatalf("output is not valid CSV: %v", err)
	}
	if got := rows[0]; got[0] != "Dst Port" || got[2] != "SYN Flag Cnt" {
		t.Errorf("header = %v", got)
	}
	if got := rows[1]; got[0] != "443" || got[1] != "6" || got[2] != "2" {
		t.Errorf("row = %v, want [443 6 2]", got)
	}
}

func TestCSVWriterUnknownColumnRendersZero(t *testing.T) {
	var buf bytes.Buffer
	w, err := NewCSVWriterTo(&buf, []string{"Dst Port", "Label"})
	if err != nil {
		t.Fatalf("NewCSVWriterTo failed: %v", err)
	}
	if err := w.Write(sampleRecord()); err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	rows, err := csv.NewReader(&buf).ReadAll()
	if err != nil {
		t.Fatalf("output is not valid CSV: %v", err)
	}
	if got := rows[1]; got[1] != "0" {
		t.Errorf("unknown column rendered %q, want 0", got[1])
	}
}
