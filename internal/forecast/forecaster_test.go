package forecast

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dvloznov/subwatch/internal/config"
	"github.com/dvloznov/subwatch/internal/domain"
)

func day(s string) time.Time {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return t
}

func tx(amount float64, date string) domain.Transaction {
	return domain.Transaction{
		ID:     "tx-" + date,
		UserID: "user-1",
		Date:   day(date),
		Amount: decimal.NewFromFloat(amount),
	}
}

func newTestForecaster(cfg config.ForecastConfig, now string) *Forecaster {
	f := NewForecaster(cfg, nil, nil)
	f.Now = func() time.Time { return day(now) }
	return f
}

func TestBuildSeriesEmptyHistory(t *testing.T) {
	f := newTestForecaster(config.Default().Forecast, "2025-05-01")

	series := f.BuildSeries(nil, nil, 0)
	assert.Empty(t, series.Dates)
	assert.Empty(t, series.Balances)
	assert.Empty(t, series.LowBalanceDates)
}

func TestBuildSeriesCumulativeHistory(t *testing.T) {
	f := newTestForecaster(config.ForecastConfig{LowBalanceThreshold: 1000, HorizonDays: 1}, "2025-05-03")

	// Unordered input, two transactions on the same day.
	txs := []domain.Transaction{
		tx(-500, "2025-05-02"),
		tx(5000, "2025-05-01"),
		tx(-300, "2025-05-02"),
	}

	series := f.BuildSeries(txs, nil, 1)
	require.Equal(t, []string{"2025-05-01", "2025-05-02", "2025-05-04"}, series.Dates)
	assert.True(t, series.Balances[0].Equal(decimal.NewFromInt(5000)))
	assert.True(t, series.Balances[1].Equal(decimal.NewFromInt(4200)), "same-day transactions aggregate")
	assert.True(t, series.Balances[2].Equal(decimal.NewFromInt(4200)), "projection carries last balance")
	assert.Empty(t, series.LowBalanceDates)
}

func TestBuildSeriesLowBalanceBoundary(t *testing.T) {
	f := newTestForecaster(config.Default().Forecast, "2025-05-03")

	// Exactly at the threshold is not low; a paisa under it is.
	txs := []domain.Transaction{
		tx(1000, "2025-05-01"),
		tx(-0.01, "2025-05-02"),
	}

	series := f.BuildSeries(txs, nil, 1)
	require.Equal(t, []string{"2025-05-02", "2025-05-04"}, series.LowBalanceDates)
	assert.True(t, series.Balances[1].Equal(decimal.NewFromFloat(999.99)))
}

func TestBuildSeriesProjectsSubscriptionCharges(t *testing.T) {
	f := newTestForecaster(config.Default().Forecast, "2025-05-01")

	txs := []domain.Transaction{tx(1300, "2025-05-01")}
	subs := []domain.Subscription{
		{
			Name:            "Netflix",
			Amount:          decimal.NewFromInt(1200),
			Frequency:       domain.FrequencyMonthly,
			NextPaymentDate: day("2025-05-05"),
			Status:          domain.SubscriptionActive,
		},
		{
			Name:            "Gym",
			Amount:          decimal.NewFromInt(500),
			Frequency:       domain.FrequencyMonthly,
			NextPaymentDate: day("2025-07-15"), // outside the horizon
			Status:          domain.SubscriptionActive,
		},
	}

	series := f.BuildSeries(txs, subs, 0)

	// 1 historical point + the configured 30-day horizon.
	require.Len(t, series.Dates, 31)

	balanceOn := func(date string) decimal.Decimal {
		for i, d := range series.Dates {
			if d == date {
				return series.Balances[i]
			}
		}
		t.Fatalf("date %s not in series", date)
		return decimal.Zero
	}

	assert.True(t, balanceOn("2025-05-04").Equal(decimal.NewFromInt(1300)))
	assert.True(t, balanceOn("2025-05-05").Equal(decimal.NewFromInt(100)), "charge lands on its due date")
	assert.True(t, balanceOn("2025-05-31").Equal(decimal.NewFromInt(100)), "charged at most once in the horizon")

	require.NotEmpty(t, series.LowBalanceDates)
	assert.Equal(t, "2025-05-05", series.LowBalanceDates[0])
}

type stubTransactionSource struct {
	txs []domain.Transaction
	err error
}

func (s *stubTransactionSource) TransactionsByUser(ctx context.Context, userID string) ([]domain.Transaction, error) {
	return s.txs, s.err
}

type stubSubscriptionSource struct {
	subs []domain.Subscription
	err  error
}

func (s *stubSubscriptionSource) ActiveSubscriptionsByUser(ctx context.Context, userID string) ([]domain.Subscription, error) {
	return s.subs, s.err
}

func TestForecastBalanceDefaultHorizon(t *testing.T) {
	f := NewForecaster(
		config.ForecastConfig{LowBalanceThreshold: 1000, HorizonDays: 7},
		&stubTransactionSource{txs: []domain.Transaction{tx(5000, "2025-05-01")}},
		&stubSubscriptionSource{},
	)
	f.Now = func() time.Time { return day("2025-05-01") }

	series, err := f.ForecastBalance(context.Background(), "user-1", 0)
	require.NoError(t, err)
	assert.Len(t, series.Dates, 8, "1 historical point + 7 projected days")
}
