package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadConfig(t *testing.T) {
	content := `
capture:
  interface: "eth1"
  snapshot_len: 2048
  promiscuous: true
  bpf: "tcp or udp"
meter:
  idle_timeout: "30s"
  output_channel_size: 256
output:
  csv:
    enabled: true
    path: "flows.csv"
  columns: ["Dst Port", "Protocol"]
  clickhouse:
    enabled: true
    host: "ch.internal"
    port: 9000
alerter:
  enabled: true
  check_interval: "2m"
  rules:
    - name: "syn-scan"
      min_syn_count: 50
probe:
  enabled: true
  nats_url: "nats://broker:4222"
  subject: "fs.packets.v1"
`
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}

	if cfg.Capture.Interface != "eth1" || cfg.Capture.SnapshotLen != 2048 || cfg.Capture.BPF != "tcp or udp" {
		t.Errorf("capture section = %+v", cfg.Capture)
	}
	if cfg.Meter.IdleTimeout != "30s" || cfg.Meter.OutputChannelSize != 256 {
		t.Errorf("meter section = %+v", cfg.Meter)
	}
	if !cfg.Output.CSV.Enabled || cfg.Output.CSV.Path != "flows.csv" {
		t.Errorf("csv section = %+v", cfg.Output.CSV)
	}
	if len(cfg.Output.Columns) != 2 || cfg.Output.Columns[0] != "Dst Port" {
		t.Errorf("columns = %v", cfg.Output.Columns)
	}
	if !cfg.Output.ClickHouse.Enabled || cfg.Output.ClickHouse.Host != "ch.internal" {
		t.Errorf("clickhouse section = %+v", cfg.Output.ClickHouse)
	}
	if !cfg.Alerter.Enabled || cfg.Alerter.CheckInterval != "2m" {
		t.Errorf("alerter section = %+v", cfg.Alerter)
	}
	if len(cfg.Alerter.Rules) != 1 || cfg.Alerter.Rules[0].MinSynCount != 50 {
		t.Errorf("alerter rules = %+v", cfg.Alerter.Rules)
	}
	if !cfg.Probe.Enabled || cfg.Probe.Subject != "fs.packets.v1" {
		t.Errorf("probe section = %+v", cfg.Probe)
	}
}

func TestLoadConfigMissingFile(t *testing.T) {
	if _, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("loading a missing file should fail")
	}
}

func TestLoadConfigInvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	if err := os.WriteFile(path, []byte("meter: [not a map"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadConfig(path); err == nil {
		t.Error("loading invalid YAML should fail")
	}
}

func TestDurationFallback(t *testing.T) {
	if got := Duration("", 5*time.Second); got != 5*time.Second {
		t.Errorf("empty duration = %v, want fallback", got)
	}
	if got := Duration("250ms", time.Second); got != 250*time.Millisecond {
		t.Errorf("parsed duration = %v, want 250ms", got)
	}
	if got := Duration("bogus", time.Second); got != time.Second {
		t.Errorf("invalid duration = %v, want fallback", got)
	}
	if got := Duration("-3s", time.Second); got != time.Second {
		t.Errorf("negative duration = %v, want fallback", got)
	}
}
