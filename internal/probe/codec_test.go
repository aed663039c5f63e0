package probe

import (
	"net"
	"testing"
	"time"

	"FlowSentry/internal/model"
)

func TestCodecRoundTrip(t *testing.T) {
	in := &model.PacketInfo{
		Timestamp: time.Date(2024, 3, 1, 12, 0, 0, 123456000, time.UTC),
		FiveTuple: model.FiveTuple{
			SrcIP:    net.ParseIP("192.168.0.10"),
			DstIP:    net.ParseIP("93.184.216.34"),
			SrcPort:  44821,
			DstPort:  443,
			Protocol: 6,
		},
		WireLength:    154,
		PayloadLength: 100,
		HeaderLength:  40,
		HasTCP:        true,
		TCPFlags:      model.TCPFlagPSH | model.TCPFlagACK,
		Window:        64240,
	}

	data, err := Encode(in)
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	out, err := Decode(data)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}

	if !out.Timestamp.Equal(in.Timestamp) {
		t.Errorf("timestamp = %v, want %v", out.Timestamp, in.Timestamp)
	}
	if !out.FiveTuple.SrcIP.Equal(in.FiveTuple.SrcIP) || !out.FiveTuple.DstIP.Equal(in.FiveTuple.DstIP) {
		t.Errorf("addresses = %s -> %s", out.FiveTuple.SrcIP, out.FiveTuple.DstIP)
	}
	if out.FiveTuple.SrcPort != in.FiveTuple.SrcPort || out.FiveTuple.DstPort != in.FiveTuple.DstPort || out.FiveTuple.Protocol != in.FiveTuple.Protocol {
		t.Errorf("tuple = %s, want %s", out.FiveTuple, in.FiveTuple)
	}
	if out.WireLength != in.WireLength || out.PayloadLength != in.PayloadLength || out.HeaderLength != in.HeaderLength {
		t.Errorf("lengths = %d/%d/%d", out.WireLength, out.PayloadLength, out.HeaderLength)
	}
	if !out.HasTCP || out.TCPFlags != in.TCPFlags || out.Window != in.Window {
		t.Errorf("tcp fields = %v/%#x/%d", out.HasTCP, out.TCPFlags, out.Window)
	}
}

func TestDecodeGarbage(t *testing.T) {
	if _, err := Decode([]byte("not a gob stream")); err == nil {
		t.Error("decoding garbage should fail")
	}
}
