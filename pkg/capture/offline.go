package capture

import (
	"fmt"
	"os"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"
)

// OfflineSource replays frames from a pcap file. It uses the pure-Go pcap
// reader so replay does not depend on libpcap.
type OfflineSource struct {
	file   *os.File
	reader *pcapgo.Reader
}

// NewOfflineSource opens a pcap file for replay.
func NewOfflineSource(path string) (*OfflineSource, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open pcap file: %w", err)
	}
	reader, err := pcapgo.NewReader(file)
	if err != nil {
		file.Close()
		return nil, fmt.Errorf("failed to read pcap header: %w", err)
	}
	return &OfflineSource{file: file, reader: reader}, nil
}

// ReadPacket returns the next recorded frame or io.EOF at end of file.
func (s *OfflineSource) ReadPacket() ([]byte, gopacket.CaptureInfo, error) {
	return s.reader.ReadPacketData()
}

func (s *OfflineSource) LinkType() layers.LinkType {
	return s.reader.LinkType()
}

func (s *OfflineSource) Close() {
	s.file.Close()
}
