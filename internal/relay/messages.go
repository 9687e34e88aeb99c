package relay

import (
	"encoding/json"
	"time"

	"munnies/internal/core"
)

// RemoteChangeMessage announces that a record changed remotely. It carries
// only the scope, entity type and record id; the receiver consults its own
// partition for the data itself.
type RemoteChangeMessage struct {
	Scope     core.Scope `json:"scope"`
	Entity    string     `json:"entity"`
	RecordID  string     `json:"record_id"`
	Timestamp time.Time  `json:"timestamp"`
}

// NewRemoteChangeMessage builds an announcement for one changed record.
func NewRemoteChangeMessage(scope core.Scope, entity, recordID string) *RemoteChangeMessage {
	return &RemoteChangeMessage{
		Scope:     scope,
		Entity:    entity,
		RecordID:  recordID,
		Timestamp: time.Now(),
	}
}

// ToJSON converts the message to JSON bytes.
func (m *RemoteChangeMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// RemoteChangeMessageFromJSON creates a message from JSON bytes.
func RemoteChangeMessageFromJSON(data []byte) (*RemoteChangeMessage, error) {
	var msg RemoteChangeMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
