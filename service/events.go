package service

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"orderledger/domain/ledger"
)

const (
	eventVersion       = 1
	EventOrderAccepted = "order.accepted"
)

// Event is the outbox payload published for every accepted order.
type Event struct {
	V       int         `json:"v"`
	Type    string      `json:"type"`
	EventID string      `json:"event_id"`
	RunID   string      `json:"run_id"`
	ID      uint64      `json:"id"`
	Side    ledger.Side `json:"side"`
	Amount  float64     `json:"amount"`
	Price   float64     `json:"price"`
	Time    time.Time   `json:"ts"`
}

func newAcceptedEvent(runID string, o ledger.Order) Event {
	return Event{
		V:       eventVersion,
		Type:    EventOrderAccepted,
		EventID: uuid.NewString(),
		RunID:   runID,
		ID:      o.ID,
		Side:    o.Side,
		Amount:  o.Amount,
		Price:   o.Price,
		Time:    time.Now().UTC(),
	}
}

func (e Event) Marshal() ([]byte, error) {
	return json.Marshal(e)
}
