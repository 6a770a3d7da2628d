package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Frequency is the detected payment cadence of a subscription.
type Frequency string

const (
	FrequencyWeekly    Frequency = "weekly"
	FrequencyMonthly   Frequency = "monthly"
	FrequencyQuarterly Frequency = "quarterly"
)

// PaymentOffset returns the fixed projection offset for the next payment.
// This is deliberately not calendar-month-aware: a monthly subscription is
// projected 30 days out regardless of month length.
func (f Frequency) PaymentOffset() time.Duration {
	switch f {
	case FrequencyWeekly:
		return 7 * 24 * time.Hour
	case FrequencyQuarterly:
		return 90 * 24 * time.Hour
	default:
		return 30 * 24 * time.Hour
	}
}

// SubscriptionStatus is the lifecycle state of a subscription. Detection
// re-runs never touch it; only an explicit cancel from the API does.
type SubscriptionStatus string

const (
	SubscriptionActive    SubscriptionStatus = "active"
	SubscriptionCancelled SubscriptionStatus = "cancelled"
)

// Subscription is a recurring charge synthesized from a qualifying cluster
// of transactions. Persisted and looked up by (UserID, Name).
type Subscription struct {
	ID              string
	UserID          string
	Name            string
	Amount          decimal.Decimal // average absolute charge
	Frequency       Frequency
	LastPaymentDate time.Time
	NextPaymentDate time.Time
	Confidence      float64 // [0,1], from gap-interval dispersion
	Status          SubscriptionStatus
}
