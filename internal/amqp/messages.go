package amqp

import (
	"encoding/json"
	"errors"
	"time"
)

// SnapshotSavedMessage announces that a ledger snapshot was written.
// The worker reads the snapshot itself from the primary store.
type SnapshotSavedMessage struct {
	Key       string    `json:"key"`
	Revision  int64     `json:"revision"`
	Timestamp time.Time `json:"timestamp"`
}

func NewSnapshotSavedMessage(key string, revision int64) *SnapshotSavedMessage {
	return &SnapshotSavedMessage{
		Key:       key,
		Revision:  revision,
		Timestamp: time.Now(),
	}
}

func (m *SnapshotSavedMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// SnapshotSavedMessageFromJSON decodes a message and rejects one without a key.
func SnapshotSavedMessageFromJSON(data []byte) (*SnapshotSavedMessage, error) {
	var msg SnapshotSavedMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if msg.Key == "" {
		return nil, errors.New("snapshot message without key")
	}
	return &msg, nil
}
