package amqp

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"

	"saldo/internal/core"
)

// Entities named in ledger events.
const (
	EntityTransaction      = "transaction"
	EntityAccount          = "account"
	EntityBudget           = "budget"
	EntityGoal             = "goal"
	EntityRecurringPayment = "recurring_payment"
	EntityCategory         = "category"
	EntityLedger           = "ledger"
)

// Actions named in ledger events.
const (
	ActionCreated      = "created"
	ActionUpdated      = "updated"
	ActionDeleted      = "deleted"
	ActionTransferred  = "transferred"
	ActionRecalculated = "recalculated"
	ActionRestored     = "restored"
)

// LedgerEvent announces one applied ledger mutation. It carries ids only;
// consumers read the entities from the snapshot with the same or a later version.
type LedgerEvent struct {
	Entity    string    `json:"entity"`
	Action    string    `json:"action"`
	IDs       []string  `json:"ids,omitempty"`
	Version   int64     `json:"version"`
	Timestamp time.Time `json:"timestamp"`
}

func NewLedgerEvent(entity, action string, version int64, ids ...string) *LedgerEvent {
	return &LedgerEvent{
		Entity:    entity,
		Action:    action,
		IDs:       ids,
		Version:   version,
		Timestamp: time.Now(),
	}
}

// RoutingKey is entity.action, e.g. transaction.created.
func (e *LedgerEvent) RoutingKey() string {
	return e.Entity + "." + e.Action
}

// ToJSON converts the message to JSON bytes
func (e *LedgerEvent) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}

func LedgerEventFromJSON(data []byte) (*LedgerEvent, error) {
	var msg LedgerEvent
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

// ReminderMessage tells a notifier that a recurring payment is coming up.
type ReminderMessage struct {
	PaymentID  string               `json:"payment_id"`
	Name       string               `json:"name"`
	Type       core.TransactionType `json:"type"`
	Occurrence core.Date            `json:"occurrence"`
	Amount     decimal.Decimal      `json:"amount"`
	Currency   string               `json:"currency"`
	DaysLeft   int                  `json:"days_left"`
	Timestamp  time.Time            `json:"timestamp"`
}

func NewReminderMessage(p core.RecurringPayment, occurrence, today core.Date) *ReminderMessage {
	return &ReminderMessage{
		PaymentID:  p.ID,
		Name:       p.Name,
		Type:       p.Type,
		Occurrence: occurrence,
		Amount:     p.Amount,
		Currency:   p.Currency,
		DaysLeft:   today.DaysUntil(occurrence),
		Timestamp:  time.Now(),
	}
}

func (m *ReminderMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func ReminderMessageFromJSON(data []byte) (*ReminderMessage, error) {
	var msg ReminderMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
