package alert

import (
	"fmt"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/shopspring/decimal"

	"github.com/dvloznov/subwatch/internal/domain"
)

const (
	// upcomingWindowDays bounds which subscriptions count as "upcoming".
	upcomingWindowDays = 30

	dateFormat = "2006-01-02"
)

// Composer renders plain-language summaries of upcoming subscription cost
// and cash-flow risk. Pure and stateless apart from the injectable clock.
type Composer struct {
	// Now anchors the upcoming-payment window. Overridable in tests.
	Now func() time.Time
}

// NewComposer creates a Composer using the wall clock.
func NewComposer() *Composer {
	return &Composer{Now: time.Now}
}

// Compose builds an alert from the user's active subscriptions and current
// forecast. Returns nil when no subscription is due within the window; the
// caller emits nothing in that case.
//
// Severity is applied last-wins in the fixed order info, warning,
// savings_opportunity, so a savings opportunity masks a low-balance warning
// severity even though both clauses can appear in the message.
func (c *Composer) Compose(subs []domain.Subscription, forecast domain.ForecastSeries) *domain.Alert {
	upcoming := c.upcoming(subs)
	if len(upcoming) == 0 {
		return nil
	}

	total := decimal.Zero
	names := make([]string, len(upcoming))
	for i, sub := range upcoming {
		total = total.Add(sub.Amount)
		names[i] = sub.Name
	}

	var message string
	switch len(names) {
	case 1:
		message = fmt.Sprintf("Your %s subscription will cost ₹%s soon", names[0], formatAmount(total))
	case 2:
		message = fmt.Sprintf("Your %s + %s will cost ₹%s this month", names[0], names[1], formatAmount(total))
	default:
		message = fmt.Sprintf("Your %s will cost ₹%s this month", strings.Join(names[:3], " + "), formatAmount(total))
	}

	severity := domain.SeverityInfo

	if len(forecast.LowBalanceDates) > 0 {
		if day, err := time.Parse(dateFormat, forecast.LowBalanceDates[0]); err == nil {
			message += fmt.Sprintf(". ⚠️ Risk of low balance on %dth", day.Day())
			severity = domain.SeverityWarning
		}
	}

	if len(upcoming) > 1 {
		costliest := upcoming[0]
		for _, sub := range upcoming[1:] {
			if sub.Amount.GreaterThan(costliest.Amount) {
				costliest = sub
			}
		}
		message += fmt.Sprintf(". Cancelling %s saves ₹%s", costliest.Name, formatAmount(costliest.Amount))
		severity = domain.SeveritySavingsOpportunity
	}

	return &domain.Alert{Message: message, Severity: severity}
}

// upcoming filters to active subscriptions whose next payment falls within
// the window (past-due ones count: they are still about to be charged).
func (c *Composer) upcoming(subs []domain.Subscription) []domain.Subscription {
	horizon := c.Now().AddDate(0, 0, upcomingWindowDays)
	var due []domain.Subscription
	for _, sub := range subs {
		if sub.Status != domain.SubscriptionActive {
			continue
		}
		if sub.NextPaymentDate.IsZero() || sub.NextPaymentDate.After(horizon) {
			continue
		}
		due = append(due, sub)
	}
	return due
}

// formatAmount renders a money amount with thousands separators and no
// decimal places, e.g. 4320.40 -> "4,320".
func formatAmount(amount decimal.Decimal) string {
	return humanize.Comma(amount.Round(0).IntPart())
}
