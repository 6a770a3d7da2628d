package bigquery

import (
	"math/big"
	"time"

	"cloud.google.com/go/bigquery"
	"cloud.google.com/go/civil"
	"github.com/shopspring/decimal"

	"github.com/dvloznov/subwatch/internal/domain"
)

const transactionsTable = "transactions"

// TransactionRow is the subwatch.transactions table schema.
type TransactionRow struct {
	TransactionID string `bigquery:"transaction_id"` // REQUIRED

	UserID string `bigquery:"user_id"` // REQUIRED

	TransactionDate civil.Date `bigquery:"transaction_date"` // REQUIRED
	Description     string     `bigquery:"description"`      // REQUIRED
	Amount          *big.Rat   `bigquery:"amount"`           // REQUIRED NUMERIC, negative = debit

	Category    bigquery.NullString `bigquery:"category"`     // NULLABLE
	IsRecurring bigquery.NullBool   `bigquery:"is_recurring"` // NULLABLE, set by detection

	CreatedTS time.Time              `bigquery:"created_ts"` // REQUIRED
	UpdatedTS bigquery.NullTimestamp `bigquery:"updated_ts"` // NULLABLE
}

// ToDomain maps a row into the domain struct the engine works on.
func (r *TransactionRow) ToDomain() domain.Transaction {
	tx := domain.Transaction{
		ID:          r.TransactionID,
		UserID:      r.UserID,
		Date:        r.TransactionDate.In(time.UTC),
		Description: r.Description,
		Amount:      decimal.NewFromBigRat(r.Amount, 2),
	}
	if r.Category.Valid {
		tx.Category = r.Category.StringVal
	}
	if r.IsRecurring.Valid {
		tx.IsRecurring = r.IsRecurring.Bool
	}
	return tx
}

// TransactionRowFromDomain maps a domain transaction into its storage row.
func TransactionRowFromDomain(tx domain.Transaction) *TransactionRow {
	row := &TransactionRow{
		TransactionID:   tx.ID,
		UserID:          tx.UserID,
		TransactionDate: civil.DateOf(tx.Date),
		Description:     tx.Description,
		Amount:          tx.Amount.Rat(),
		IsRecurring:     bigquery.NullBool{Bool: tx.IsRecurring, Valid: true},
		CreatedTS:       time.Now(),
	}
	if tx.Category != "" {
		row.Category = bigquery.NullString{StringVal: tx.Category, Valid: true}
	}
	return row
}
