package protocol

import (
	"FlowSentry/internal/model"
	"errors"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
)

// Dissection errors. All of them mean "count and skip": malformed input never
// reaches flow state and never aborts the pipeline.
var (
	ErrNotIP       = errors.New("not an IP packet")
	ErrUnsupported = errors.New("unsupported transport layer")
	ErrTruncated   = errors.New("truncated packet")
)

// Parse decodes a raw frame and extracts the normalized packet descriptor.
// Supported: Ethernet + IPv4/IPv6 + TCP/UDP/ICMPv4/ICMPv6. ICMP has no ports,
// so the destination port field carries the ICMP type/code discriminator and
// the source port is zero, which keeps request/reply pairs in one flow.
func Parse(data []byte, ts time.Time) (*model.PacketInfo, error) {
	packet := gopacket.NewPacket(data, layers.LayerTypeEthernet, gopacket.NoCopy)
	if errLayer := packet.ErrorLayer(); errLayer != nil && packet.NetworkLayer() == nil {
		return nil, ErrTruncated
	}

	info := &model.PacketInfo{
		Timestamp:  ts,
		WireLength: len(data),
	}

	var tuple model.FiveTuple
	ipHeaderLen := 0

	switch {
	case packet.Layer(layers.LayerTypeIPv4) != nil:
		ip := packet.Layer(layers.LayerTypeIPv4).(*layers.IPv4)
		tuple.SrcIP = ip.SrcIP
		tuple.DstIP = ip.DstIP
		tuple.Protocol = uint8(ip.Protocol)
		ipHeaderLen = int(ip.IHL) * 4
	case packet.Layer(layers.LayerTypeIPv6) != nil:
		ip := packet.Layer(layers.LayerTypeIPv6).(*layers.IPv6)
		tuple.SrcIP = ip.SrcIP
		tuple.DstIP = ip.DstIP
		tuple.Protocol = uint8(ip.NextHeader)
		ipHeaderLen = 40
	default:
		return nil, ErrNotIP
	}

	switch {
	case packet.Layer(layers.LayerTypeTCP) != nil:
		tcp := packet.Layer(layers.LayerTypeTCP).(*layers.TCP)
		tuple.SrcPort = uint16(tcp.SrcPort)
		tuple.DstPort = uint16(tcp.DstPort)
		info.HasTCP = true
		info.TCPFlags = tcpFlagBits(tcp)
		info.Window = tcp.Window
		info.HeaderLength = ipHeaderLen + int(tcp.DataOffset)*4
		info.PayloadLength = len(tcp.Payload)
	case packet.Layer(layers.LayerTypeUDP) != nil:
		udp := packet.Layer(layers.LayerTypeUDP).(*layers.UDP)
		tuple.SrcPort = uint16(udp.SrcPort)
		tuple.DstPort = uint16(udp.DstPort)
		info.HeaderLength = ipHeaderLen + 8
		info.PayloadLength = len(udp.Payload)
	case packet.Layer(layers.LayerTypeICMPv4) != nil:
		icmp := packet.Layer(layers.LayerTypeICMPv4).(*layers.ICMPv4)
		tuple.DstPort = icmpDiscriminator(uint8(icmp.TypeCode>>8), uint8(icmp.TypeCode))
		info.HeaderLength = ipHeaderLen + 8
		info.PayloadLength = len(icmp.Payload)
	case packet.Layer(layers.LayerTypeICMPv6) != nil:
		icmp := packet.Layer(layers.LayerTypeICMPv6).(*layers.ICMPv6)
		tuple.DstPort = icmpDiscriminator(uint8(icmp.TypeCode>>8), uint8(icmp.TypeCode))
		info.HeaderLength = ipHeaderLen + 8
		info.PayloadLength = len(icmp.Payload)
	default:
		return nil, ErrUnsupported
	}

	info.FiveTuple = tuple
	return info, nil
}

// icmpDiscriminator folds echo request/reply style pairs onto one value so
// both directions land in the same flow entry.
func icmpDiscriminator(typ, code uint8) uint16 {
	switch typ {
	case 0: // echo reply -> echo request
		typ = 8
	case 129: // v6 echo reply -> echo request
		typ = 128
	case 14: // timestamp reply
		typ = 13
	}
	return uint16(typ)<<8 | uint16(code)
}

func tcpFlagBits(tcp *layers.TCP) uint8 {
	var flags uint8
	if tcp.FIN {
		flags |= model.TCPFlagFIN
	}
	if tcp.SYN {
		flags |= model.TCPFlagSYN
	}
	if tcp.RST {
		flags |= model.TCPFlagRST
	}
	if tcp.PSH {
		flags |= model.TCPFlagPSH
	}
	if tcp.ACK {
		flags |= model.TCPFlagACK
	}
	if tcp.URG {
		flags |= model.TCPFlagURG
	}
	if tcp.ECE {
		flags |= model.TCPFlagECE
	}
	if tcp.CWR {
		flags |= model.TCPFlagCWR
	}
	return flags
}
