package domain

import "github.com/shopspring/decimal"

// ForecastSeries is a combined historical + projected daily balance series.
// All three slices are aligned by position; LowBalanceDates is the subset of
// Dates whose balance fell below the configured risk threshold. Fully derived,
// recomputed on every call, never persisted.
type ForecastSeries struct {
	Dates           []string          `json:"dates"`             // YYYY-MM-DD
	Balances        []decimal.Decimal `json:"predicted_balance"` // rounded to 2dp at emission
	LowBalanceDates []string          `json:"low_balance_dates"`
}
