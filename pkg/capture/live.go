package capture

import (
	"fmt"
	"time"

	"FlowSentry/internal/config"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcap"
)

const (
	defaultSnapshotLen int32 = 1600
	defaultPollTimeout       = 500 * time.Millisecond
)

// LiveSource reads from a live capture handle bound to one interface.
type LiveSource struct {
	handle *pcap.Handle
}

// NewLiveSource opens the configured interface. Open failures are fatal to
// the caller; there is no capture to fall back to.
func NewLiveSource(cfg config.CaptureConfig) (*LiveSource, error) {
	snaplen := cfg.SnapshotLen
	if snaplen <= 0 {
		snaplen = defaultSnapshotLen
	}
	timeout := config.Duration(cfg.PollTimeout, defaultPollTimeout)

	handle, err := pcap.OpenLive(cfg.Interface, snaplen, cfg.Promiscuous, timeout)
	if err != nil {
		return nil, fmt.Errorf("failed to open device %s: %w", cfg.Interface, err)
	}
	if cfg.BPF != "" {
		if err := handle.SetBPFFilter(cfg.BPF); err != nil {
			handle.Close()
			return nil, fmt.Errorf("failed to set BPF filter %q: %w", cfg.BPF, err)
		}
	}
	return &LiveSource{handle: handle}, nil
}

// ReadPacket returns the next frame or ErrTimeout after the poll interval.
func (s *LiveSource) ReadPacket() ([]byte, gopacket.CaptureInfo, error) {
	data, ci, err := s.handle.ReadPacketData()
	if err == pcap.NextErrorTimeoutExpired {
		return nil, ci, ErrTimeout
	}
	return data, ci, err
}

func (s *LiveSource) LinkType() layers.LinkType {
	return s.handle.LinkType()
}

func (s *LiveSource) Close() {
	s.handle.Close()
}
