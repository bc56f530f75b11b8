package amqp

import (
	"encoding/json"
	"fmt"
	"time"

	"budgetdash/internal/core"
	"budgetdash/internal/store"
)

// ChangeMessage announces a committed write to other processes. It carries
// no field data: receivers re-read the collection.
type ChangeMessage struct {
	Collection core.Collection `json:"collection"`
	ID         string          `json:"id"`
	Op         store.Op        `json:"op"`
	Timestamp  time.Time       `json:"timestamp"`
	Source     string          `json:"source"`
}

func NewChangeMessage(ch store.Change, source string) *ChangeMessage {
	ts := ch.At
	if ts.IsZero() {
		ts = time.Now()
	}
	return &ChangeMessage{
		Collection: ch.Collection,
		ID:         ch.ID,
		Op:         ch.Op,
		Timestamp:  ts,
		Source:     source,
	}
}

// Change converts the message back into a store change.
func (m *ChangeMessage) Change() store.Change {
	return store.Change{Collection: m.Collection, ID: m.ID, Op: m.Op, At: m.Timestamp}
}

// ToJSON converts the message to JSON bytes
func (m *ChangeMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// ChangeMessageFromJSON decodes a message and rejects unknown collections.
func ChangeMessageFromJSON(data []byte) (*ChangeMessage, error) {
	var msg ChangeMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	c, ok := core.ParseCollection(string(msg.Collection))
	if !ok {
		return nil, fmt.Errorf("unknown collection %q", msg.Collection)
	}
	msg.Collection = c
	return &msg, nil
}
