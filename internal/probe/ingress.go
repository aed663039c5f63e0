package probe

import (
	"sync"

	"FlowSentry/internal/model"
)

// Ingress forwards subscriber deliveries into a meter input channel and
// supports a clean cut-off: once Stop returns, no further packet is forwarded
// and every in-flight Handle call has finished, so the caller may close the
// channel.
type Ingress struct {
	input   chan<- *model.PacketInfo
	stopped chan struct{}
	wg      sync.WaitGroup
}

// NewIngress wraps a meter input channel.
func NewIngress(input chan<- *model.PacketInfo) *Ingress {
	return &Ingress{input: input, stopped: make(chan struct{})}
}

// Handle forwards one packet. Safe to call concurrently; after Stop it is a
// no-op.
func (g *Ingress) Handle(info *model.PacketInfo) {
	g.wg.Add(1)
	defer g.wg.Done()

	select {
	case <-g.stopped:
		return
	default:
	}
	g.input <- info
}

// Stop blocks until in-flight Handle calls return.
func (g *Ingress) Stop() {
	close(g.stopped)
	g.wg.Wait()
}
