// Package capture abstracts where raw frames come from: a live capture
// handle bound to one interface, or a replayed pcap file. Both present the
// same pull-based contract ("next packet or timeout"), so the pipeline does
// not care whether the platform delivers packets by callback or by polling.
package capture

import (
	"errors"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
)

// ErrTimeout is returned by a live source when no packet arrived within the
// poll timeout. Callers use it as the point to observe a stop signal.
var ErrTimeout = errors.New("capture: read timeout")

// Source yields raw frame bytes with their capture metadata.
type Source interface {
	// ReadPacket returns the next frame, ErrTimeout when the poll interval
	// elapsed, or io.EOF when a replayed source is exhausted.
	ReadPacket() (data []byte, ci gopacket.CaptureInfo, err error)

	// LinkType reports the link layer of the frames.
	LinkType() layers.LinkType

	Close()
}
