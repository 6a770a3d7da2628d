package forecast

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/dvloznov/subwatch/internal/domain"
)

// weeksPerMonth converts a weekly charge to a monthly equivalent.
var weeksPerMonth = decimal.NewFromFloat(4.33)

var three = decimal.NewFromInt(3)

// MonthlyCost normalizes a set of subscriptions to a total monthly spend:
// monthly amounts as-is, weekly ones times 4.33, quarterly ones divided by 3.
func MonthlyCost(subs []domain.Subscription) decimal.Decimal {
	total := decimal.Zero
	for _, sub := range subs {
		switch sub.Frequency {
		case domain.FrequencyMonthly:
			total = total.Add(sub.Amount)
		case domain.FrequencyWeekly:
			total = total.Add(sub.Amount.Mul(weeksPerMonth))
		case domain.FrequencyQuarterly:
			total = total.Add(sub.Amount.Div(three))
		}
	}
	return total
}

// CalculateMonthlySubscriptionCost loads the user's active subscriptions and
// returns their normalized monthly total.
func (f *Forecaster) CalculateMonthlySubscriptionCost(ctx context.Context, userID string) (decimal.Decimal, error) {
	subs, err := f.subscriptions.ActiveSubscriptionsByUser(ctx, userID)
	if err != nil {
		return decimal.Zero, fmt.Errorf("CalculateMonthlySubscriptionCost: loading subscriptions: %w", err)
	}
	return MonthlyCost(subs), nil
}
