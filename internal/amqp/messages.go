package amqp

import (
	"encoding/json"
	"fmt"
	"time"

	"expenses/internal/core"
)

// EventKind names a committed ledger mutation.
type EventKind string

const (
	EventExpenseAdded   EventKind = "expense_added"
	EventExpenseDeleted EventKind = "expense_deleted"
	EventFixedAdded     EventKind = "fixed_added"
	EventFixedDeleted   EventKind = "fixed_deleted"
	EventFixedToggled   EventKind = "fixed_toggled"
	EventSalarySet      EventKind = "salary_set"
)

func (k EventKind) valid() bool {
	switch k {
	case EventExpenseAdded, EventExpenseDeleted, EventFixedAdded,
		EventFixedDeleted, EventFixedToggled, EventSalarySet:
		return true
	}
	return false
}

// LedgerEvent is a lightweight notification that the ledger changed.
// It carries no amounts; consumers re-read the store.
type LedgerEvent struct {
	Kind      EventKind  `json:"kind"`
	Month     core.Month `json:"month,omitempty"`
	ID        int64      `json:"id,omitempty"`
	Timestamp time.Time  `json:"timestamp"`
}

// NewLedgerEvent stamps a new event with the current time.
func NewLedgerEvent(kind EventKind, month core.Month, id int64) *LedgerEvent {
	return &LedgerEvent{
		Kind:      kind,
		Month:     month,
		ID:        id,
		Timestamp: time.Now().UTC(),
	}
}

// AffectsAllMonths reports whether the event can change the report of
// any month rather than a single one. Fixed rules and the salary span
// every month.
func (e *LedgerEvent) AffectsAllMonths() bool {
	return e.Month.IsZero()
}

// ToJSON converts the event to JSON bytes
func (e *LedgerEvent) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}

// LedgerEventFromJSON decodes and checks an event body.
func LedgerEventFromJSON(data []byte) (*LedgerEvent, error) {
	var ev LedgerEvent
	if err := json.Unmarshal(data, &ev); err != nil {
		return nil, err
	}
	if !ev.Kind.valid() {
		return nil, fmt.Errorf("unknown event kind %q", ev.Kind)
	}
	if !ev.Month.IsZero() {
		if err := ev.Month.Validate(); err != nil {
			return nil, err
		}
	}
	return &ev, nil
}
