package alerter

import (
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"FlowSentry/internal/config"
	"FlowSentry/internal/model"
)

// Alerter evaluates terminated flow records against the configured rules and
// sends consolidated notifications on a fixed interval. Matches between checks
// are batched into one message so a scan burst does not become a mail storm.
type Alerter struct {
	rules         []config.AlerterRule
	notifier      model.Notifier
	checkInterval time.Duration

	mu      sync.Mutex
	pending []string

	stopChan chan struct{}
	wg       sync.WaitGroup
}

// NewAlerter creates a new Alerter instance.
func NewAlerter(cfg config.AlerterConfig, notifier model.Notifier) (*Alerter, error) {
	interval, err := time.ParseDuration(cfg.CheckInterval)
	if err != nil {
		return nil, fmt.Errorf("invalid check_interval for alerter: %w", err)
	}

	return &Alerter{
		rules:         cfg.Rules,
		notifier:      notifier,
		checkInterval: interval,
		stopChan:      make(chan struct{}),
	}, nil
}

// Start begins the periodic delivery of batched alerts.
func (a *Alerter) Start() {
	log.Println("Alerter started")

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()

		ticker := time.NewTicker(a.checkInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				a.flush()
			case <-a.stopChan:
				return
			}
		}
	}()
}

// Stop gracefully stops the delivery loop, sending any remaining alerts.
func (a *Alerter) Stop() {
	log.Println("Stopping Alerter...")
	close(a.stopChan)
	a.wg.Wait()
	a.flush()
}

// Observe matches one terminated flow against the rules. Safe to call from
// the record consumer goroutine.
func (a *Alerter) Observe(rec *model.FlowRecord) {
	for i := range a.rules {
		rule := &a.rules[i]
		if !matches(rule, rec) {
			continue
		}
		msg := fmt.Sprintf("- **%s**: flow `%s` (%s), %d pkts / %d bytes, SYN=%d RST=%d, duration %.3fs",
			rule.Name, rec.FlowID, rec.EndReason,
			rec.TotFwdPkts+rec.TotBwdPkts, rec.TotLenFwd+rec.TotLenBwd,
			rec.SYNFlagCnt, rec.RSTFlagCnt,
			float64(rec.FlowDuration)/1e6)

		a.mu.Lock()
		a.pending = append(a.pending, msg)
		a.mu.Unlock()
	}
}

// matches reports whether every set criterion of the rule holds for the
// record.
func matches(rule *config.AlerterRule, rec *model.FlowRecord) bool {
	if rule.DstPort != 0 && rec.Tuple.DstPort != rule.DstPort {
		return false
	}
	if rule.Protocol != 0 && rec.Tuple.Protocol != rule.Protocol {
		return false
	}
	if rec.TotLenFwd+rec.TotLenBwd < rule.MinBytes {
		return false
	}
	if rec.TotFwdPkts+rec.TotBwdPkts < rule.MinPackets {
		return false
	}
	if rec.SYNFlagCnt < rule.MinSynCount {
		return false
	}
	if rec.RSTFlagCnt < rule.MinRstCount {
		return false
	}
	if rule.EndReason != "" && rec.EndReason.String() != rule.EndReason {
		return false
	}
	return true
}

// flush sends all batched alert messages as one consolidated notification.
func (a *Alerter) flush() {
	a.mu.Lock()
	messages := a.pending
	a.pending = nil
	a.mu.Unlock()

	if len(messages) == 0 {
		return
	}

	log.Printf("Alerter evaluation completed. %d alert(s) triggered.", len(messages))

	body := "# FlowSentry Alert Summary\n\n" +
		"The following flows matched alert rules during the last check:\n\n" +
		strings.Join(messages, "\n")

	if a.notifier != nil {
		subject := fmt.Sprintf("FlowSentry Alert Summary (%d Triggered)", len(messages))
		if err := a.notifier.Send(subject, body); err != nil {
			log.Printf("ERROR: Failed to send consolidated alert notification: %v", err)
		} else {
			log.Printf("INFO: Consolidated alert notification sent successfully.")
		}
	}
}
