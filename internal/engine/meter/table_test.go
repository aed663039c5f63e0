package meter

import (
	"net"
	"testing"
	"time"

	"FlowSentry/internal/model"
)

var testStart = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func testTable() *Table {
	return NewTable(60*time.Second, 120*time.Second, 5*time.Second, 5*time.Second, 1)
}

func tcpPacket(ft model.FiveTuple, ts time.Time, payload int, flags uint8, window uint16) *model.PacketInfo {
	return &model.PacketInfo{
		Timestamp:     ts,
		FiveTuple:     ft,
		WireLength:    54 + payload,
		PayloadLength: payload,
		HeaderLength:  40,
		HasTCP:        true,
		TCPFlags:      flags,
		Window:        window,
	}
}

func udpPacket(ft model.FiveTuple, ts time.Time, payload int) *model.PacketInfo {
	return &model.PacketInfo{
		Timestamp:     ts,
		FiveTuple:     ft,
		WireLength:    42 + payload,
		PayloadLength: payload,
		HeaderLength:  28,
	}
}

func tcpTuple() model.FiveTuple {
	return model.FiveTuple{
		SrcIP:    net.ParseIP("192.168.0.10"),
		DstIP:    net.ParseIP("93.184.216.34"),
		SrcPort:  44821,
		DstPort:  443,
		Protocol: 6,
	}
}

func udpTuple() model.FiveTuple {
	return model.FiveTuple{
		SrcIP:    net.ParseIP("192.168.0.10"),
		DstIP:    net.ParseIP("8.8.8.8"),
		SrcPort:  51334,
		DstPort:  53,
		Protocol: 17,
	}
}

func TestTableBidirectionalAttribution(t *testing.T) {
	tab := testTable()
	ft := tcpTuple()

	tab.Update(tcpPacket(ft, testStart, 100, model.TCPFlagSYN, 64240))
	tab.Update(tcpPacket(ft.Reverse(), testStart.Add(time.Millisecond), 200, model.TCPFlagSYN|model.TCPFlagACK, 65535))

	if tab.Len() != 1 {
		t.Fatalf("expected 1 flow for both directions, got %d", tab.Len())
	}

	closed := tab.Drain()
	if len(closed) != 1 {
		t.Fatalf("expected 1 drained flow, got %d", len(closed))
	}
	rec := closed[0].Finalize()
	if rec.TotFwdPkts != 1 || rec.TotBwdPkts != 1 {
		t.Errorf("direction split = %d/%d, want 1/1", rec.TotFwdPkts, rec.TotBwdPkts)
	}
	// Direction resolves relative to the first-seen orientation.
	if !rec.Tuple.SrcIP.Equal(ft.SrcIP) || rec.Tuple.SrcPort != ft.SrcPort {
		t.Errorf("forward tuple should match the first packet, got %s", rec.Tuple)
	}
	if rec.InitFwdWinByts != 64240 || rec.InitBwdWinByts != 65535 {
		t.Errorf("init windows = %d/%d, want 64240/65535", rec.InitFwdWinByts, rec.InitBwdWinByts)
	}
}

func icmpPacket(ft model.FiveTuple, ts time.Time, payload int) *model.PacketInfo {
	return &model.PacketInfo{
		Timestamp:     ts,
		FiveTuple:     ft,
		WireLength:    42 + payload,
		PayloadLength: payload,
		HeaderLength:  28,
	}
}

func icmpTuple(typ uint8) model.FiveTuple {
	return model.FiveTuple{
		SrcIP:    net.ParseIP("192.168.0.10"),
		DstIP:    net.ParseIP("8.8.8.8"),
		DstPort:  uint16(typ) << 8,
		Protocol: 1,
	}
}

func TestTableICMPEchoPairOneFlow(t *testing.T) {
	tab := testTable()
	request := icmpTuple(8)
	// The reply carries the same folded discriminator with the addresses
	// swapped, exactly as the dissector emits it.
	reply := icmpTuple(8)
	reply.SrcIP, reply.DstIP = reply.DstIP, reply.SrcIP

	tab.Update(icmpPacket(request, testStart, 56))
	tab.Update(icmpPacket(reply, testStart.Add(time.Millisecond), 56))

	if tab.Len() != 1 {
		t.Fatalf("echo request and reply should share one flow, got %d", tab.Len())
	}

	closed := tab.Drain()
	rec := closed[0].Finalize()
	if rec.TotFwdPkts != 1 || rec.TotBwdPkts != 1 {
		t.Errorf("direction split = %d/%d, want 1/1", rec.TotFwdPkts, rec.TotBwdPkts)
	}
	if !rec.Tuple.SrcIP.Equal(request.SrcIP) {
		t.Errorf("forward tuple should match the request, got %s", rec.Tuple)
	}
}

func TestTableRSTClosesImmediately(t *testing.T) {
	tab := testTable()
	ft := tcpTuple()

	tab.Update(tcpPacket(ft, testStart, 10, model.TCPFlagSYN, 1000))
	closed, _ := tab.Update(tcpPacket(ft, testStart.Add(time.Millisecond), 0, model.TCPFlagRST, 0))

	if len(closed) != 1 {
		t.Fatalf("RST should close the flow, got %d closed", len(closed))
	}
	if tab.Len() != 0 {
		t.Errorf("closed flow should leave the table, %d flows remain", tab.Len())
	}
	rec := closed[0].Finalize()
	if rec.EndReason != model.EndReasonTCP {
		t.Errorf("end reason = %s, want tcp", rec.EndReason)
	}
	if rec.RSTFlagCnt != 1 {
		t.Errorf("RST count = %d, want 1", rec.RSTFlagCnt)
	}
}

func TestTableSecondFINClosesImmediately(t *testing.T) {
	tab := testTable()
	ft := tcpTuple()

	tab.Update(tcpPacket(ft, testStart, 10, model.TCPFlagACK, 1000))
	closed, _ := tab.Update(tcpPacket(ft, testStart.Add(time.Millisecond), 0, model.TCPFlagFIN|model.TCPFlagACK, 0))
	if len(closed) != 0 {
		t.Fatal("first FIN should open the grace window, not close")
	}

	// The peer's final packets are admitted during the grace window.
	closed, _ = tab.Update(tcpPacket(ft.Reverse(), testStart.Add(2*time.Millisecond), 0, model.TCPFlagACK, 0))
	if len(closed) != 0 {
		t.Fatal("ACK during grace window should not close the flow")
	}

	closed, _ = tab.Update(tcpPacket(ft.Reverse(), testStart.Add(3*time.Millisecond), 0, model.TCPFlagFIN|model.TCPFlagACK, 0))
	if len(closed) != 1 {
		t.Fatalf("second FIN should close immediately, got %d closed", len(closed))
	}
	rec := closed[0].Finalize()
	if rec.FINFlagCnt != 2 {
		t.Errorf("FIN count = %d, want 2", rec.FINFlagCnt)
	}
	if rec.EndReason != model.EndReasonTCP {
		t.Errorf("end reason = %s, want tcp", rec.EndReason)
	}
}

func TestTableFinGraceEviction(t *testing.T) {
	tab := testTable()
	ft := tcpTuple()

	tab.Update(tcpPacket(ft, testStart, 10, model.TCPFlagACK, 1000))
	tab.Update(tcpPacket(ft, testStart.Add(time.Millisecond), 0, model.TCPFlagFIN, 0))

	// Within the grace window nothing is evicted.
	if closed := tab.Evict(testStart.Add(2 * time.Second)); len(closed) != 0 {
		t.Fatalf("eviction inside grace window closed %d flows", len(closed))
	}

	closed := tab.Evict(testStart.Add(10 * time.Second))
	if len(closed) != 1 {
		t.Fatalf("grace-window timeout should close the flow, got %d", len(closed))
	}
	if rec := closed[0].Finalize(); rec.EndReason != model.EndReasonTCP {
		t.Errorf("end reason = %s, want tcp", rec.EndReason)
	}
}

func TestTableIdleAndAgeEviction(t *testing.T) {
	tab := testTable()

	tab.Update(udpPacket(udpTuple(), testStart, 64))

	if closed := tab.Evict(testStart.Add(30 * time.Second)); len(closed) != 0 {
		t.Fatalf("flow evicted before idle threshold: %d", len(closed))
	}
	closed := tab.Evict(testStart.Add(61 * time.Second))
	if len(closed) != 1 {
		t.Fatalf("idle flow not evicted, got %d", len(closed))
	}
	if rec := closed[0].Finalize(); rec.EndReason != model.EndReasonIdle {
		t.Errorf("end reason = %s, want idle", rec.EndReason)
	}

	// Max age beats idleness for a steadily chattering flow.
	ft := tcpTuple()
	for i := 0; i < 5; i++ {
		tab.Update(tcpPacket(ft, testStart.Add(time.Duration(i)*25*time.Second), 10, model.TCPFlagACK, 100))
	}
	closed = tab.Evict(testStart.Add(125 * time.Second))
	if len(closed) != 1 {
		t.Fatalf("aged flow not evicted, got %d", len(closed))
	}
	if rec := closed[0].Finalize(); rec.EndReason != model.EndReasonMaxAge {
		t.Errorf("end reason = %s, want max_age", rec.EndReason)
	}
}

func TestTablePacketClockTimeout(t *testing.T) {
	// Replayed captures never see wall-clock eviction; a stale flow is cut
	// when the next same-key packet arrives past the idle timeout.
	tab := testTable()
	ft := udpTuple()

	tab.Update(udpPacket(ft, testStart, 64))
	closed, _ := tab.Update(udpPacket(ft, testStart.Add(90*time.Second), 128))

	if len(closed) != 1 {
		t.Fatalf("stale flow should be closed by the packet clock, got %d", len(closed))
	}
	rec := closed[0].Finalize()
	if rec.TotFwdPkts != 1 {
		t.Errorf("stale flow packets = %d, want 1", rec.TotFwdPkts)
	}
	if tab.Len() != 1 {
		t.Errorf("late packet should start a fresh flow, table has %d", tab.Len())
	}
}

func TestTableOutOfOrderDoesNotRegressClock(t *testing.T) {
	tab := testTable()
	ft := udpTuple()

	tab.Update(udpPacket(ft, testStart, 100))
	tab.Update(udpPacket(ft, testStart.Add(10*time.Millisecond), 100))
	_, ooo := tab.Update(udpPacket(ft, testStart.Add(5*time.Millisecond), 100))
	if !ooo {
		t.Fatal("regressed timestamp should be reported out of order")
	}

	closed := tab.Drain()
	rec := closed[0].Finalize()
	if rec.TotFwdPkts != 3 {
		t.Errorf("out-of-order packet must still be counted: %d packets", rec.TotFwdPkts)
	}
	if rec.FlowDuration != 10*1000 {
		t.Errorf("duration = %dus, want 10000us (no regression)", rec.FlowDuration)
	}
	if rec.OutOfOrderPkts != 1 {
		t.Errorf("out-of-order count = %d, want 1", rec.OutOfOrderPkts)
	}
}

func TestTableDrainEmitsEverythingOnce(t *testing.T) {
	tab := testTable()
	for i := 0; i < 7; i++ {
		ft := udpTuple()
		ft.SrcPort = uint16(50000 + i)
		tab.Update(udpPacket(ft, testStart, 64))
	}

	closed := tab.Drain()
	if len(closed) != 7 {
		t.Fatalf("drain returned %d flows, want 7", len(closed))
	}
	for _, acc := range closed {
		if rec := acc.Finalize(); rec.EndReason != model.EndReasonShutdown {
			t.Errorf("end reason = %s, want shutdown", rec.EndReason)
		}
	}
	if tab.Len() != 0 {
		t.Errorf("table not empty after drain: %d", tab.Len())
	}
	if again := tab.Drain(); len(again) != 0 {
		t.Errorf("second drain returned %d flows, want 0", len(again))
	}
}
