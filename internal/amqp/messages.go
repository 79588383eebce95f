package amqp

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Ledger event types. They double as routing keys on the topic exchange.
const (
	EventPersonCreated      = "person.created"
	EventPersonUpdated      = "person.updated"
	EventPersonDeleted      = "person.deleted"
	EventCategoryCreated    = "category.created"
	EventTransactionCreated = "transaction.created"
	EventTransactionUpdated = "transaction.updated"
	EventTransactionDeleted = "transaction.deleted"
)

// LedgerEvent announces a committed change to the ledger. Data carries the
// entity as it was after the change, or a small summary for deletes.
type LedgerEvent struct {
	ID        string          `json:"id"`
	Type      string          `json:"type"`
	EntityID  int64           `json:"entityId"`
	Timestamp time.Time       `json:"timestamp"`
	Data      json.RawMessage `json:"data,omitempty"`
}

// NewLedgerEvent builds an event with a fresh ID, marshaling data as the
// payload. A nil data leaves the payload empty.
func NewLedgerEvent(eventType string, entityID int64, data any) (*LedgerEvent, error) {
	ev := &LedgerEvent{
		ID:        uuid.NewString(),
		Type:      eventType,
		EntityID:  entityID,
		Timestamp: time.Now().UTC(),
	}
	if data != nil {
		raw, err := json.Marshal(data)
		if err != nil {
			return nil, fmt.Errorf("marshal %s payload: %w", eventType, err)
		}
		ev.Data = raw
	}
	return ev, nil
}

// ToJSON converts the event to JSON bytes
func (e *LedgerEvent) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}

// LedgerEventFromJSON decodes an event and checks it carries a type.
func LedgerEventFromJSON(data []byte) (*LedgerEvent, error) {
	var ev LedgerEvent
	if err := json.Unmarshal(data, &ev); err != nil {
		return nil, err
	}
	if ev.Type == "" {
		return nil, fmt.Errorf("ledger event without type")
	}
	return &ev, nil
}
