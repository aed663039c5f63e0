package meter

import (
	"bytes"

	"FlowSentry/internal/model"
)

// Key is the canonical transport identity of a bidirectional flow. The
// (address, port) pairs are stored in sorted order so a packet and its reply
// hash to the same table entry. Key is comparable and used directly as the
// flow map key.
type Key struct {
	AddrA, AddrB [16]byte
	PortA, PortB uint16
	Proto        uint8
}

// KeyOf canonicalizes a 5-tuple. The second return value reports whether the
// packet's source is the A side of the key, which the accumulator uses to
// resolve direction against the first-seen orientation.
func KeyOf(ft model.FiveTuple) (Key, bool) {
	var src, dst [16]byte
	copy(src[:], ft.SrcIP.To16())
	copy(dst[:], ft.DstIP.To16())

	srcPort, dstPort := ft.SrcPort, ft.DstPort
	if portless(ft.Protocol) {
		// ICMP has no transport ports; the dissector carries the type/code
		// discriminator in the destination port. Mirror it onto both sides
		// so address ordering cannot separate a request from its reply.
		srcPort = dstPort
	}

	srcIsA := true
	switch bytes.Compare(src[:], dst[:]) {
	case 1:
		srcIsA = false
	case 0:
		srcIsA = srcPort <= dstPort
	}

	if srcIsA {
		return Key{AddrA: src, AddrB: dst, PortA: srcPort, PortB: dstPort, Proto: ft.Protocol}, true
	}
	return Key{AddrA: dst, AddrB: src, PortA: dstPort, PortB: srcPort, Proto: ft.Protocol}, false
}

// portless reports whether the protocol addresses endpoints without transport
// ports (ICMPv4 and ICMPv6).
func portless(proto uint8) bool { return proto == 1 || proto == 58 }
