package forecast

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/dvloznov/subwatch/internal/domain"
)

func TestTrailingMonthlyAverages(t *testing.T) {
	now := day("2025-06-01")

	txs := []domain.Transaction{
		tx(30000, "2025-04-01"), // salary credit
		tx(30000, "2025-05-01"),
		tx(-900, "2025-04-15"),
		tx(-600, "2025-05-20"),
		tx(99999, "2024-01-01"), // outside the trailing window
		tx(-99999, "2024-01-02"),
	}

	income := AverageMonthlyIncome(txs, now)
	assert.True(t, income.Equal(decimal.NewFromInt(20000)), "income = %s", income)

	expenses := AverageMonthlyExpenses(txs, now)
	assert.True(t, expenses.Equal(decimal.NewFromInt(500)), "expenses = %s", expenses)
}

func TestTrailingMonthlyAveragesEmpty(t *testing.T) {
	assert.True(t, AverageMonthlyIncome(nil, day("2025-06-01")).IsZero())
	assert.True(t, AverageMonthlyExpenses(nil, day("2025-06-01")).IsZero())
}
