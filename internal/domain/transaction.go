package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Transaction represents one normalized bank transaction as loaded from the
// store. This is a domain struct, not a BigQuery row; the infra layer maps it
// out of the subwatch.transactions table schema.
type Transaction struct {
	ID          string
	UserID      string
	Date        time.Time       // calendar date, midnight UTC
	Description string          // raw statement description
	Amount      decimal.Decimal // negative = debit (expense), positive = credit

	Category    string // rule-based category, may be empty until categorized
	IsRecurring bool   // set once the transaction joins a detected subscription
}

// IsDebit reports whether the transaction is an expense.
func (t Transaction) IsDebit() bool {
	return t.Amount.IsNegative()
}
