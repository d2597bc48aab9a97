package amqp

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"fintrack/internal/core"
)

type MessageType string

const (
	TypeTransactionCreated MessageType = "transaction.created"
	TypeTransactionUpdated MessageType = "transaction.updated"
	TypeTransactionDeleted MessageType = "transaction.deleted"
	// TypeImportRequested carries raw records to normalize and store.
	TypeImportRequested MessageType = "import.requested"
)

var changeTypes = map[core.ChangeKind]MessageType{
	core.ChangeCreated: TypeTransactionCreated,
	core.ChangeUpdated: TypeTransactionUpdated,
	core.ChangeDeleted: TypeTransactionDeleted,
}

// Envelope is the single message shape on the queue. Change events carry
// only IDs; the worker reloads current state from the store.
type Envelope struct {
	Type          MessageType           `json:"type"`
	OwnerID       string                `json:"owner_id"`
	TransactionID string                `json:"transaction_id,omitempty"`
	Records       []core.RawTransaction `json:"records,omitempty"`
	Timestamp     time.Time             `json:"timestamp"`
}

// NewChangeEnvelope wraps a committed change.
func NewChangeEnvelope(ev core.ChangeEvent) *Envelope {
	ts := ev.At
	if ts.IsZero() {
		ts = time.Now()
	}
	return &Envelope{
		Type:          changeTypes[ev.Kind],
		OwnerID:       ev.OwnerID,
		TransactionID: ev.TransactionID,
		Timestamp:     ts,
	}
}

// NewImportEnvelope wraps a batch to be imported by the worker.
func NewImportEnvelope(ownerID string, records []core.RawTransaction) *Envelope {
	return &Envelope{
		Type:      TypeImportRequested,
		OwnerID:   ownerID,
		Records:   records,
		Timestamp: time.Now(),
	}
}

// IsChange reports whether the envelope describes a committed write.
func (e *Envelope) IsChange() bool {
	switch e.Type {
	case TypeTransactionCreated, TypeTransactionUpdated, TypeTransactionDeleted:
		return true
	}
	return false
}

func (e *Envelope) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}

// EnvelopeFromJSON decodes and validates a message. Numbers in records are
// kept as json.Number so amounts stay exact.
func EnvelopeFromJSON(data []byte) (*Envelope, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var env Envelope
	if err := dec.Decode(&env); err != nil {
		return nil, err
	}
	if env.OwnerID == "" {
		return nil, fmt.Errorf("message without owner_id")
	}
	if !env.IsChange() && env.Type != TypeImportRequested {
		return nil, fmt.Errorf("unknown message type %q", env.Type)
	}
	return &env, nil
}
