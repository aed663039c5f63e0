package model

import (
	"fmt"
	"net"
	"time"
)

// TCP flag bits as they appear in the TCP header, low byte first.
const (
	TCPFlagFIN uint8 = 1 << iota
	TCPFlagSYN
	TCPFlagRST
	TCPFlagPSH
	TCPFlagACK
	TCPFlagURG
	TCPFlagECE
	TCPFlagCWR
)

// FiveTuple represents the transport 5-tuple of a network packet.
// For protocols without ports (ICMP) the port fields carry a
// protocol-specific discriminator instead.
type FiveTuple struct {
	SrcIP    net.IP
	DstIP    net.IP
	SrcPort  uint16
	DstPort  uint16
	Protocol uint8
}

func (ft FiveTuple) String() string {
	return fmt.Sprintf("%s:%d-%s:%d-%d", ft.SrcIP, ft.SrcPort, ft.DstIP, ft.DstPort, ft.Protocol)
}

// Reverse returns the tuple with source and destination swapped.
func (ft FiveTuple) Reverse() FiveTuple {
	return FiveTuple{
		SrcIP:    ft.DstIP,
		DstIP:    ft.SrcIP,
		SrcPort:  ft.DstPort,
		DstPort:  ft.SrcPort,
		Protocol: ft.Protocol,
	}
}

// PacketInfo holds the metadata extracted from a single packet by the
// dissector. It is immutable once produced; direction relative to a flow is
// resolved later by the flow table.
type PacketInfo struct {
	Timestamp time.Time
	FiveTuple FiveTuple

	// WireLength is the length of the frame on the wire, PayloadLength the
	// transport payload only, HeaderLength the IP+transport headers.
	WireLength    int
	PayloadLength int
	HeaderLength  int

	// TCP metadata; zero for UDP/ICMP.
	HasTCP   bool
	TCPFlags uint8
	Window   uint16
}

// EndReason records which of the mutually exclusive paths terminated a flow.
type EndReason uint8

const (
	EndReasonTCP EndReason = iota + 1 // FIN handshake or RST
	EndReasonIdle
	EndReasonMaxAge
	EndReasonShutdown
)

func (r EndReason) String() string {
	switch r {
	case EndReasonTCP:
		return "tcp"
	case EndReasonIdle:
		return "idle"
	case EndReasonMaxAge:
		return "max_age"
	case EndReasonShutdown:
		return "shutdown"
	default:
		return "unknown"
	}
}
