package ingest

import (
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseStatementAmountColumn(t *testing.T) {
	statement := `Date,Description,Amount
2025-01-01,SALARY CREDIT,30000
2025-01-05,NETFLIX.COM,-199.00
2025-01-05,NETFLIX.COM,-199.00
`

	txs, err := ParseStatement(strings.NewReader(statement), "user-1")
	require.NoError(t, err)
	require.Len(t, txs, 2, "exact duplicate row is dropped")

	assert.Equal(t, "user-1", txs[0].UserID)
	assert.Equal(t, "SALARY CREDIT", txs[0].Description)
	assert.True(t, txs[0].Amount.Equal(decimal.NewFromInt(30000)))
	assert.False(t, txs[0].IsDebit())

	assert.Equal(t, "NETFLIX.COM", txs[1].Description)
	assert.True(t, txs[1].Amount.Equal(decimal.NewFromFloat(-199)))
	assert.True(t, txs[1].IsDebit())
	assert.NotEmpty(t, txs[1].ID)
}

func TestParseStatementDebitCreditColumns(t *testing.T) {
	statement := `Date, Description, Debit, Credit
02/01/2025, NETFLIX.COM, 199.00,
05/01/2025, SALARY, , 30000
07/01/2025, ZERO ROW, ,
`

	txs, err := ParseStatement(strings.NewReader(statement), "user-1")
	require.NoError(t, err)
	require.Len(t, txs, 3)

	assert.True(t, txs[0].Amount.Equal(decimal.NewFromInt(-199)), "debit becomes negative")
	assert.True(t, txs[1].Amount.Equal(decimal.NewFromInt(30000)), "credit stays positive")
	assert.True(t, txs[2].Amount.IsZero(), "both blank is zero")
}

func TestParseStatementDateLayouts(t *testing.T) {
	tests := []struct {
		name string
		date string
	}{
		{"iso", "2025-01-05"},
		{"slashed", "05/01/2025"},
		{"written month", "05 Jan 2025"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			statement := "Date,Description,Amount\n" + tt.date + ",NETFLIX.COM,-199\n"
			txs, err := ParseStatement(strings.NewReader(statement), "user-1")
			require.NoError(t, err)
			require.Len(t, txs, 1)
			assert.Equal(t, "2025-01-05", txs[0].Date.Format("2006-01-02"))
		})
	}
}

func TestParseStatementErrors(t *testing.T) {
	tests := []struct {
		name      string
		statement string
		wantErr   string
	}{
		{
			name:      "missing date column",
			statement: "Description,Amount\nNETFLIX.COM,-199\n",
			wantErr:   "Date column",
		},
		{
			name:      "missing description column",
			statement: "Date,Amount\n2025-01-05,-199\n",
			wantErr:   "Description column",
		},
		{
			name:      "no amount columns",
			statement: "Date,Description\n2025-01-05,NETFLIX.COM\n",
			wantErr:   "Amount column",
		},
		{
			name:      "bad date",
			statement: "Date,Description,Amount\nsoon,NETFLIX.COM,-199\n",
			wantErr:   "line 2",
		},
		{
			name:      "bad amount",
			statement: "Date,Description,Amount\n2025-01-05,NETFLIX.COM,lots\n",
			wantErr:   "line 2",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseStatement(strings.NewReader(tt.statement), "user-1")
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestTransactionKey(t *testing.T) {
	key := TransactionKey("2025-01-05", "NETFLIX.COM", "-199.00")
	assert.Equal(t, "2025-01-05|NETFLIX.COM|-199.00", key)
}
