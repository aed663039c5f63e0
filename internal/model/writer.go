package model

// Writer defines a generic interface for sinks consuming terminated flow
// records. Implementations own their buffering and flushing.
type Writer interface {
	// Write persists a single flow record.
	Write(record *FlowRecord) error

	// Close flushes any buffered records and releases resources.
	Close() error
}

// Notifier delivers alert messages to an external channel.
type Notifier interface {
	// Send delivers one message. body is markdown.
	Send(subject, body string) error
}
