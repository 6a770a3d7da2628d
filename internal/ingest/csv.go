package ingest

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/dvloznov/subwatch/internal/domain"
)

// Supported statement layouts:
//
//	Date, Description, Amount
//	Date, Description, Debit, Credit
//
// Header matching is case-insensitive and whitespace-tolerant.
var dateLayouts = []string{"2006-01-02", "02/01/2006", "02 Jan 2006"}

// ParseStatement reads a CSV bank statement into domain transactions for the
// given user. Duplicate rows within the file (same date, description and
// amount) are dropped.
func ParseStatement(r io.Reader, userID string) ([]domain.Transaction, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("ParseStatement: reading header: %w", err)
	}

	cols := make(map[string]int, len(header))
	for i, name := range header {
		cols[strings.ToLower(strings.TrimSpace(name))] = i
	}

	dateCol, ok := cols["date"]
	if !ok {
		return nil, fmt.Errorf("ParseStatement: statement must have a Date column")
	}
	descCol, ok := cols["description"]
	if !ok {
		return nil, fmt.Errorf("ParseStatement: statement must have a Description column")
	}
	amountCol, hasAmount := cols["amount"]
	debitCol, hasDebit := cols["debit"]
	creditCol, hasCredit := cols["credit"]
	if !hasAmount && !(hasDebit && hasCredit) {
		return nil, fmt.Errorf("ParseStatement: statement must have an Amount column or Debit and Credit columns")
	}

	var txs []domain.Transaction
	seen := make(map[string]bool)
	line := 1

	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			return nil, fmt.Errorf("ParseStatement: line %d: %w", line, err)
		}

		date, err := parseDate(record[dateCol])
		if err != nil {
			return nil, fmt.Errorf("ParseStatement: line %d: %w", line, err)
		}
		description := strings.TrimSpace(record[descCol])

		var amount decimal.Decimal
		if hasAmount {
			amount, err = parseAmount(record[amountCol])
		} else {
			amount, err = parseDebitCredit(record[debitCol], record[creditCol])
		}
		if err != nil {
			return nil, fmt.Errorf("ParseStatement: line %d: %w", line, err)
		}

		key := TransactionKey(date.Format("2006-01-02"), description, amount.StringFixed(2))
		if seen[key] {
			continue
		}
		seen[key] = true

		txs = append(txs, domain.Transaction{
			ID:          uuid.NewString(),
			UserID:      userID,
			Date:        date,
			Description: description,
			Amount:      amount,
		})
	}

	return txs, nil
}

// TransactionKey is the dedupe identity of a statement row: same date,
// description and amount means the same transaction. The amount must be
// fixed to two decimal places.
func TransactionKey(day, description, amount string) string {
	return day + "|" + description + "|" + amount
}

func parseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized date %q", s)
}

func parseAmount(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	amount, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid amount %q", s)
	}
	return amount, nil
}

// parseDebitCredit maps bank-format rows to a signed amount: debits become
// negative, credits positive, both blank means zero.
func parseDebitCredit(debit, credit string) (decimal.Decimal, error) {
	debit = strings.TrimSpace(debit)
	credit = strings.TrimSpace(credit)

	if debit != "" {
		amount, err := decimal.NewFromString(debit)
		if err != nil {
			return decimal.Zero, fmt.Errorf("invalid debit %q", debit)
		}
		return amount.Neg(), nil
	}
	if credit != "" {
		amount, err := decimal.NewFromString(credit)
		if err != nil {
			return decimal.Zero, fmt.Errorf("invalid credit %q", credit)
		}
		return amount, nil
	}
	return decimal.Zero, nil
}
