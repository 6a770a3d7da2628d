package forecast

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/dvloznov/subwatch/internal/domain"
)

const trailingWindowDays = 90

// AverageMonthlyIncome returns the mean monthly credit volume over the
// trailing 90 days ending at now.
func AverageMonthlyIncome(txs []domain.Transaction, now time.Time) decimal.Decimal {
	return trailingMonthlyAverage(txs, now, false)
}

// AverageMonthlyExpenses returns the mean monthly absolute debit volume over
// the trailing 90 days ending at now.
func AverageMonthlyExpenses(txs []domain.Transaction, now time.Time) decimal.Decimal {
	return trailingMonthlyAverage(txs, now, true)
}

func trailingMonthlyAverage(txs []domain.Transaction, now time.Time, debits bool) decimal.Decimal {
	cutoff := now.AddDate(0, 0, -trailingWindowDays)
	total := decimal.Zero
	for _, tx := range txs {
		if tx.Date.Before(cutoff) {
			continue
		}
		if tx.IsDebit() == debits {
			total = total.Add(tx.Amount)
		}
	}
	return total.Abs().Div(three)
}
