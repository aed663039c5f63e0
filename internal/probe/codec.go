package probe

import (
	"bytes"
	"encoding/gob"

	"FlowSentry/internal/model"
)

// The wire codec is gob: PacketInfo is a small flat struct and both ends of
// the transport are this module.

// Encode serializes a PacketInfo for publishing.
func Encode(info *model.PacketInfo) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(info); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Decode deserializes a published packet.
func Decode(data []byte) (*model.PacketInfo, error) {
	var info model.PacketInfo
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&info); err != nil {
		return nil, err
	}
	return &info, nil
}
