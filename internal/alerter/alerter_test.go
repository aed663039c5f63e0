package alerter

import (
	"net"
	"strings"
	"sync"
	"testing"

	"FlowSentry/internal/config"
	"FlowSentry/internal/model"
)

type fakeNotifier struct {
	mu       sync.Mutex
	subjects []string
	bodies   []string
}

func (n *fakeNotifier) Send(subject, body string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.subjects = append(n.subjects, subject)
	n.bodies = append(n.bodies, body)
	return nil
}

func record(synCount, bytes uint64, dstPort uint16) *model.FlowRecord {
	return &model.FlowRecord{
		FlowID: "10.0.0.1-10.0.0.2-40000-445-6",
		Tuple: model.FiveTuple{
			SrcIP:    net.ParseIP("10.0.0.1"),
			DstIP:    net.ParseIP("10.0.0.2"),
			SrcPort:  40000,
			DstPort:  dstPort,
			Protocol: 6,
		},
		TotFwdPkts: 10,
		TotLenFwd:  bytes,
		SYNFlagCnt: synCount,
		EndReason:  model.EndReasonIdle,
	}
}

func TestAlerterRuleMatching(t *testing.T) {
	notifier := &fakeNotifier{}
	a, err := NewAlerter(config.AlerterConfig{
		CheckInterval: "1h",
		Rules: []config.AlerterRule{
			{Name: "syn-scan", MinSynCount: 50},
			{Name: "smb-flow", DstPort: 445},
		},
	}, notifier)
	if err != nil {
		t.Fatalf("NewAlerter failed: %v", err)
	}

	a.Observe(record(100, 1000, 445)) // matches both rules
	a.Observe(record(1, 1000, 80))    // matches neither
	a.flush()

	if len(notifier.bodies) != 1 {
		t.Fatalf("got %d notifications, want 1 consolidated", len(notifier.bodies))
	}
	body := notifier.bodies[0]
	if !strings.Contains(body, "syn-scan") || !strings.Contains(body, "smb-flow") {
		t.Errorf("body missing triggered rule names:\n%s", body)
	}
	if !strings.Contains(notifier.subjects[0], "2 Triggered") {
		t.Errorf("subject = %q, want 2 triggered", notifier.subjects[0])
	}
}

func TestAlerterNoMatchesNoNotification(t *testing.T) {
	notifier := &fakeNotifier{}
	a, err := NewAlerter(config.AlerterConfig{
		CheckInterval: "1h",
		Rules:         []config.AlerterRule{{Name: "large", MinBytes: 1 << 30}},
	}, notifier)
	if err != nil {
		t.Fatalf("NewAlerter failed: %v", err)
	}

	a.Observe(record(1, 100, 80))
	a.flush()

	if len(notifier.bodies) != 0 {
		t.Errorf("got %d notifications, want none", len(notifier.bodies))
	}
}

func TestAlerterStopFlushesPending(t *testing.T) {
	notifier := &fakeNotifier{}
	a, err := NewAlerter(config.AlerterConfig{
		CheckInterval: "1h",
		Rules:         []config.AlerterRule{{Name: "any", MinPackets: 1}},
	}, notifier)
	if err != nil {
		t.Fatalf("NewAlerter failed: %v", err)
	}
	a.Start()

	a.Observe(record(1, 100, 80))
	a.Stop()

	if len(notifier.bodies) != 1 {
		t.Fatalf("Stop should flush pending alerts, got %d notifications", len(notifier.bodies))
	}
}

func TestAlerterInvalidInterval(t *testing.T) {
	if _, err := NewAlerter(config.AlerterConfig{CheckInterval: "soon"}, &fakeNotifier{}); err == nil {
		t.Error("invalid check_interval should fail")
	}
}

func TestRuleEndReasonCriterion(t *testing.T) {
	rule := config.AlerterRule{Name: "idle-only", EndReason: "idle"}
	rec := record(0, 0, 80)
	if !matches(&rule, rec) {
		t.Error("idle record should match an idle end_reason rule")
	}
	rec.EndReason = model.EndReasonTCP
	if matches(&rule, rec) {
		t.Error("tcp record should not match an idle end_reason rule")
	}
}
