package amqp

import (
	"encoding/json"
	"time"
)

// BudgetAlertMessage notifies the alert worker that a budget crossed its
// spending threshold. Contains the budget ID and the spend snapshot at
// publish time; the worker recomputes and records the final numbers.
type BudgetAlertMessage struct {
	BudgetID    int64     `json:"budget_id"`
	SpentCents  int64     `json:"spent_cents"`
	Percentage  float64   `json:"percentage"`
	PeriodStart string    `json:"period_start"`
	PeriodEnd   string    `json:"period_end"`
	Timestamp   time.Time `json:"timestamp"`
}

// NewBudgetAlertMessage creates an alert message for a threshold crossing
func NewBudgetAlertMessage(budgetID, spentCents int64, percentage float64, periodStart, periodEnd string) *BudgetAlertMessage {
	return &BudgetAlertMessage{
		BudgetID:    budgetID,
		SpentCents:  spentCents,
		Percentage:  percentage,
		PeriodStart: periodStart,
		PeriodEnd:   periodEnd,
		Timestamp:   time.Now(),
	}
}

// ToJSON converts the message to JSON bytes
func (m *BudgetAlertMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// BudgetAlertMessageFromJSON creates a message from JSON bytes
func BudgetAlertMessageFromJSON(data []byte) (*BudgetAlertMessage, error) {
	var msg BudgetAlertMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
