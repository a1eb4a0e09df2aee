package models

import (
	"encoding/json"
	"time"
)

type Transaction struct {
	ID          string    `json:"id,omitempty"`
	Description string    `json:"description"`
	Category    string    `json:"category"`
	Date        time.Time `json:"date"`
	Amount      float64   `json:"amount"`
	Type        string    `json:"type"` // revenue, expense
}

func (t *Transaction) SetID(id string) { t.ID = id }

func (t *Transaction) UnmarshalJSON(data []byte) error {
	type plain Transaction
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	*t = Transaction(p)
	t.Type = NormalizeTransactionType(t.Type)
	return nil
}

func (t *Transaction) IsRevenue() bool { return t.Type == TransactionRevenue }
func (t *Transaction) IsExpense() bool { return t.Type == TransactionExpense }
