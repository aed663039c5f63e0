package probe

import (
	"log"

	"FlowSentry/internal/config"
	"FlowSentry/internal/model"

	"github.com/nats-io/nats.go"
)

// Publisher publishes dissected packet descriptors to a NATS subject so a
// remote collector can meter them.
type Publisher struct {
	nc      *nats.Conn
	subject string
}

// NewPublisher creates a new NATS publisher.
func NewPublisher(cfg config.ProbeConfig) (*Publisher, error) {
	nc, err := nats.Connect(cfg.NATSURL)
	if err != nil {
		return nil, err
	}
	log.Printf("Connected to NATS server at %s", cfg.NATSURL)
	return &Publisher{nc: nc, subject: cfg.Subject}, nil
}

// Publish serializes a PacketInfo and publishes it to the configured subject.
func (p *Publisher) Publish(info *model.PacketInfo) error {
	data, err := Encode(info)
	if err != nil {
		return err
	}
	return p.nc.Publish(p.subject, data)
}

// Close drains and closes the NATS connection.
func (p *Publisher) Close() {
	if p.nc != nil {
		p.nc.Drain()
		log.Println("NATS connection drained and closed.")
	}
}
