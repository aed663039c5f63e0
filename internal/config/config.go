package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// CaptureConfig holds the live capture settings.
type CaptureConfig struct {
	Interface   string `yaml:"interface"`
	SnapshotLen int32  `yaml:"snapshot_len"`
	Promiscuous bool   `yaml:"promiscuous"`
	BPF         string `yaml:"bpf"`
	PollTimeout string `yaml:"poll_timeout"`
}

// MeterConfig holds the flow metering settings.
type MeterConfig struct {
	IdleTimeout       string `yaml:"idle_timeout"`
	ActiveTimeout     string `yaml:"active_timeout"`
	FinGrace          string `yaml:"fin_grace"`
	ScanInterval      string `yaml:"scan_interval"`
	ActivityThreshold string `yaml:"activity_threshold"`
	BulkPayloadFloor  int    `yaml:"bulk_payload_floor"`
	InputChannelSize  int    `yaml:"input_channel_size"`
	OutputChannelSize int    `yaml:"output_channel_size"`
	EmitRetries       int    `yaml:"emit_retries"`
	EmitRetryDelay    string `yaml:"emit_retry_delay"`
}

// CSVConfig holds the CSV sink settings. An empty path means stdout.
type CSVConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// ClickHouseConfig holds the ClickHouse sink settings.
type ClickHouseConfig struct {
	Enabled       bool   `yaml:"enabled"`
	Host          string `yaml:"host"`
	Port          int    `yaml:"port"`
	Database      string `yaml:"database"`
	Username      string `yaml:"username"`
	Password      string `yaml:"password"`
	BatchSize     int    `yaml:"batch_size"`
	FlushInterval string `yaml:"flush_interval"`
}

// OutputConfig holds the record sink settings. Columns optionally overrides
// the default column header; an empty list keeps the full default set.
type OutputConfig struct {
	CSV        CSVConfig        `yaml:"csv"`
	Columns    []string         `yaml:"columns"`
	ClickHouse ClickHouseConfig `yaml:"clickhouse"`
}

// AlerterRule matches terminated flows. Zero-valued fields are not checked;
// all set fields must match for the rule to trigger.
type AlerterRule struct {
	Name        string `yaml:"name"`
	DstPort     uint16 `yaml:"dst_port"`
	Protocol    uint8  `yaml:"protocol"`
	MinBytes    uint64 `yaml:"min_bytes"`
	MinPackets  uint64 `yaml:"min_packets"`
	MinSynCount uint64 `yaml:"min_syn_count"`
	MinRstCount uint64 `yaml:"min_rst_count"`
	EndReason   string `yaml:"end_reason"`
}

// SMTPConfig holds the email notification settings.
type SMTPConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	From     string `yaml:"from"`
	To       string `yaml:"to"`
}

// AlerterConfig holds the flow alerting settings.
type AlerterConfig struct {
	Enabled       bool          `yaml:"enabled"`
	CheckInterval string        `yaml:"check_interval"`
	SMTP          SMTPConfig    `yaml:"smtp"`
	Rules         []AlerterRule `yaml:"rules"`
}

// ProbeConfig holds the NATS packet transport settings.
type ProbeConfig struct {
	Enabled bool   `yaml:"enabled"`
	NATSURL string `yaml:"nats_url"`
	Subject string `yaml:"subject"`
}

// APIConfig holds the diagnostics HTTP server settings.
type APIConfig struct {
	Enabled    bool   `yaml:"enabled"`
	ListenAddr string `yaml:"listen_addr"`
}

// Config is the top-level configuration struct for the entire application.
type Config struct {
	Capture CaptureConfig `yaml:"capture"`
	Meter   MeterConfig   `yaml:"meter"`
	Output  OutputConfig  `yaml:"output"`
	Alerter AlerterConfig `yaml:"alerter"`
	Probe   ProbeConfig   `yaml:"probe"`
	API     APIConfig     `yaml:"api"`
}

// LoadConfig reads the configuration from a YAML file and returns a Config struct.
func LoadConfig(filePath string) (*Config, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config YAML: %w", err)
	}

	return &cfg, nil
}

// Duration parses a duration field, falling back to def when the field is
// empty or invalid.
func Duration(s string, def time.Duration) time.Duration {
	if s == "" {
		return def
	}
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return def
	}
	return d
}
