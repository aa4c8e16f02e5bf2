package amqp

import (
	"encoding/json"
	"time"

	"finboard/internal/ledger"
)

// LedgerEventMessage is the wire form of one ledger mutation.
// Amounts travel as integer cents.
type LedgerEventMessage struct {
	Type          string    `json:"type"`
	TransactionID int64     `json:"transaction_id"`
	AmountCents   int64     `json:"amount_cents"`
	Kind          string    `json:"kind"`
	Category      string    `json:"category"`
	BalanceCents  int64     `json:"balance_cents"`
	Revision      uint64    `json:"revision"`
	Timestamp     time.Time `json:"timestamp"`
}

// NewLedgerEventMessage flattens a ledger event for publishing
func NewLedgerEventMessage(ev ledger.Event) *LedgerEventMessage {
	return &LedgerEventMessage{
		Type:          string(ev.Type),
		TransactionID: ev.Transaction.ID,
		AmountCents:   ev.Transaction.Amount.Cents,
		Kind:          string(ev.Transaction.Kind),
		Category:      ev.Transaction.Category,
		BalanceCents:  ev.Balance.Cents,
		Revision:      ev.Revision,
		Timestamp:     time.Now().UTC(),
	}
}

// ToJSON converts the message to JSON bytes
func (m *LedgerEventMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// LedgerEventMessageFromJSON creates a message from JSON bytes
func LedgerEventMessageFromJSON(data []byte) (*LedgerEventMessage, error) {
	var msg LedgerEventMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
