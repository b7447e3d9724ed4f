package model

import "time"

type EventType string

const (
	EventVaultCreated EventType = "vault_created"
	EventDeposited    EventType = "deposited"
	EventWithdrawn    EventType = "withdrawn"
	EventRebalanced   EventType = "rebalanced"
	EventFeeCollected EventType = "fee_collected"
	EventExecution    EventType = "execution_receipt"
)

// Event is the audit trail record emitted by the ledger and executor.
// ActionHash keys rebalance events to the raw signed action bytes so a
// tampered payload is detectable from the event stream alone.
type Event struct {
	Type       EventType      `json:"type"`
	VaultID    uint64         `json:"vault_id,omitempty"`
	Account    string         `json:"account,omitempty"`
	ActionHash string         `json:"action_hash,omitempty"`
	At         time.Time      `json:"at"`
	Fields     map[string]any `json:"fields,omitempty"`
}

// EventSink receives ledger/executor events. Publish must not block.
type EventSink interface {
	Publish(evt Event)
}

// EventSinkFunc adapts a function to the EventSink interface.
type EventSinkFunc func(evt Event)

func (f EventSinkFunc) Publish(evt Event) { f(evt) }

// NopSink discards events.
type NopSink struct{}

func (NopSink) Publish(Event) {}
