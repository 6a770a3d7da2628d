package forecast

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/dvloznov/subwatch/internal/config"
	"github.com/dvloznov/subwatch/internal/domain"
)

const dateFormat = "2006-01-02"

// TransactionSource provides a user's full transaction history, in any order.
type TransactionSource interface {
	TransactionsByUser(ctx context.Context, userID string) ([]domain.Transaction, error)
}

// SubscriptionSource provides a user's active subscriptions.
type SubscriptionSource interface {
	ActiveSubscriptionsByUser(ctx context.Context, userID string) ([]domain.Subscription, error)
}

// Forecaster builds daily balance series and projects them forward using
// known recurring charges. Read-only and side-effect free: safe to run
// concurrently for different users or repeatedly for the same user.
type Forecaster struct {
	cfg           config.ForecastConfig
	transactions  TransactionSource
	subscriptions SubscriptionSource

	// Now is the wall clock the projection starts from. Overridable in tests.
	Now func() time.Time
}

// NewForecaster creates a Forecaster.
func NewForecaster(cfg config.ForecastConfig, transactions TransactionSource, subscriptions SubscriptionSource) *Forecaster {
	return &Forecaster{
		cfg:           cfg,
		transactions:  transactions,
		subscriptions: subscriptions,
		Now:           time.Now,
	}
}

// ForecastBalance produces the combined historical + projected series for a
// user. daysAhead <= 0 falls back to the configured horizon.
func (f *Forecaster) ForecastBalance(ctx context.Context, userID string, daysAhead int) (domain.ForecastSeries, error) {
	txs, err := f.transactions.TransactionsByUser(ctx, userID)
	if err != nil {
		return domain.ForecastSeries{}, fmt.Errorf("ForecastBalance: loading transactions: %w", err)
	}

	subs, err := f.subscriptions.ActiveSubscriptionsByUser(ctx, userID)
	if err != nil {
		return domain.ForecastSeries{}, fmt.Errorf("ForecastBalance: loading subscriptions: %w", err)
	}

	return f.BuildSeries(txs, subs, daysAhead), nil
}

// BuildSeries is the pure projection over an already-loaded snapshot.
//
// The historical part has one point per distinct transaction date (days with
// no transactions produce no point). The projected part runs daysAhead days
// starting tomorrow relative to Now, subtracting each active subscription's
// amount on the day its next payment falls. A subscription is charged at
// most once in the horizon since its next payment date is never advanced
// here. Balances stay unrounded while accumulating and are rounded to two
// decimal places only at emission.
func (f *Forecaster) BuildSeries(txs []domain.Transaction, subs []domain.Subscription, daysAhead int) domain.ForecastSeries {
	if len(txs) == 0 {
		// No history is not an error; the series is just empty.
		return domain.ForecastSeries{}
	}
	if daysAhead <= 0 {
		daysAhead = f.cfg.HorizonDays
	}

	perDay := make(map[string]decimal.Decimal)
	for _, tx := range txs {
		key := tx.Date.Format(dateFormat)
		perDay[key] = perDay[key].Add(tx.Amount)
	}
	days := make([]string, 0, len(perDay))
	for day := range perDay {
		days = append(days, day)
	}
	sort.Strings(days)

	series := domain.ForecastSeries{
		Dates:    make([]string, 0, len(days)+daysAhead),
		Balances: make([]decimal.Decimal, 0, len(days)+daysAhead),
	}
	threshold := decimal.NewFromFloat(f.cfg.LowBalanceThreshold)

	running := decimal.Zero
	for _, day := range days {
		running = running.Add(perDay[day])
		f.emit(&series, day, running, threshold)
	}

	now := f.Now()
	balance := running
	for i := 1; i <= daysAhead; i++ {
		day := now.AddDate(0, 0, i)
		for _, sub := range subs {
			if sameDate(sub.NextPaymentDate, day) {
				balance = balance.Sub(sub.Amount)
			}
		}
		f.emit(&series, day.Format(dateFormat), balance, threshold)
	}

	return series
}

// emit appends one rounded point to the series and flags it when the emitted
// balance is below the low-balance threshold.
func (f *Forecaster) emit(series *domain.ForecastSeries, day string, balance, threshold decimal.Decimal) {
	rounded := balance.Round(2)
	series.Dates = append(series.Dates, day)
	series.Balances = append(series.Balances, rounded)
	if rounded.LessThan(threshold) {
		series.LowBalanceDates = append(series.LowBalanceDates, day)
	}
}

func sameDate(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}
