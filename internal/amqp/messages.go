package amqp

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"spendly/internal/core"
)

// Change operations.
const (
	OpCreated = "created"
	OpUpdated = "updated"
	OpDeleted = "deleted"
)

// ExpenseChangeMessage describes one write to a user's expenses. Deletions
// carry only the identifiers.
type ExpenseChangeMessage struct {
	Op          string    `json:"op"`
	ExpenseID   string    `json:"expense_id"`
	UserID      string    `json:"user_id"`
	Amount      string    `json:"amount,omitempty"`
	Category    string    `json:"category,omitempty"`
	Description string    `json:"description,omitempty"`
	TimestampMs int64     `json:"timestamp_ms,omitempty"`
	PublishedAt time.Time `json:"published_at"`
}

// NewExpenseChangeMessage builds a message for op on e.
func NewExpenseChangeMessage(op string, e core.Expense) *ExpenseChangeMessage {
	msg := &ExpenseChangeMessage{
		Op:          op,
		ExpenseID:   e.ID,
		UserID:      e.UserID,
		PublishedAt: time.Now(),
	}
	if op != OpDeleted {
		msg.Amount = core.FormatAmount(e.Amount)
		msg.Category = string(e.Category)
		msg.Description = e.Description
		msg.TimestampMs = core.Millis(e.Timestamp)
	}
	return msg
}

func (m *ExpenseChangeMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// Expense rebuilds the expense carried by a created or updated message.
func (m *ExpenseChangeMessage) Expense() (core.Expense, error) {
	amount, err := core.ParseAmount(m.Amount)
	if err != nil {
		return core.Expense{}, fmt.Errorf("message amount: %w", err)
	}
	e := core.Expense{
		ID:          m.ExpenseID,
		UserID:      m.UserID,
		Amount:      amount,
		Category:    core.Category(m.Category),
		Description: m.Description,
		Timestamp:   core.FromMillis(m.TimestampMs),
	}
	return e, nil
}

// ExpenseChangeMessageFromJSON decodes and checks a message.
func ExpenseChangeMessageFromJSON(data []byte) (*ExpenseChangeMessage, error) {
	var msg ExpenseChangeMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	switch msg.Op {
	case OpCreated, OpUpdated, OpDeleted:
	default:
		return nil, fmt.Errorf("unknown op %q", msg.Op)
	}
	if msg.ExpenseID == "" {
		return nil, errors.New("missing expense_id")
	}
	return &msg, nil
}
