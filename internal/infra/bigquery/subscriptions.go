package bigquery

import (
	"math/big"
	"time"

	"cloud.google.com/go/bigquery"
	"cloud.google.com/go/civil"
	"github.com/shopspring/decimal"

	"github.com/dvloznov/subwatch/internal/domain"
)

const subscriptionsTable = "subscriptions"

// SubscriptionRow is the subwatch.subscriptions table schema. Rows are keyed
// by subscription_id but the detection upsert matches on (user_id, name).
type SubscriptionRow struct {
	SubscriptionID string `bigquery:"subscription_id"` // REQUIRED

	UserID string `bigquery:"user_id"` // REQUIRED
	Name   string `bigquery:"name"`    // REQUIRED, de-duplication key with user_id

	Amount    *big.Rat `bigquery:"amount"`    // REQUIRED NUMERIC, average absolute charge
	Frequency string   `bigquery:"frequency"` // REQUIRED: weekly | monthly | quarterly

	LastPaymentDate civil.Date `bigquery:"last_payment_date"` // REQUIRED
	NextPaymentDate civil.Date `bigquery:"next_payment_date"` // REQUIRED

	ConfidenceScore float64 `bigquery:"confidence_score"` // REQUIRED
	Status          string  `bigquery:"status"`           // REQUIRED: active | cancelled

	CreatedTS time.Time              `bigquery:"created_ts"` // REQUIRED
	UpdatedTS bigquery.NullTimestamp `bigquery:"updated_ts"` // NULLABLE
}

// ToDomain maps a row into the domain struct.
func (r *SubscriptionRow) ToDomain() domain.Subscription {
	return domain.Subscription{
		ID:              r.SubscriptionID,
		UserID:          r.UserID,
		Name:            r.Name,
		Amount:          decimal.NewFromBigRat(r.Amount, 2),
		Frequency:       domain.Frequency(r.Frequency),
		LastPaymentDate: r.LastPaymentDate.In(time.UTC),
		NextPaymentDate: r.NextPaymentDate.In(time.UTC),
		Confidence:      r.ConfidenceScore,
		Status:          domain.SubscriptionStatus(r.Status),
	}
}

// subscriptionParam is the STRUCT shape passed to the detection batch script
// through UNNEST query parameters.
type subscriptionParam struct {
	SubscriptionID  string     `bigquery:"subscription_id"`
	UserID          string     `bigquery:"user_id"`
	Name            string     `bigquery:"name"`
	Amount          *big.Rat   `bigquery:"amount"`
	Frequency       string     `bigquery:"frequency"`
	LastPaymentDate civil.Date `bigquery:"last_payment_date"`
	NextPaymentDate civil.Date `bigquery:"next_payment_date"`
	ConfidenceScore float64    `bigquery:"confidence_score"`
	Status          string     `bigquery:"status"`
}

func subscriptionParamFromDomain(sub domain.Subscription) subscriptionParam {
	return subscriptionParam{
		SubscriptionID:  sub.ID,
		UserID:          sub.UserID,
		Name:            sub.Name,
		Amount:          sub.Amount.Rat(),
		Frequency:       string(sub.Frequency),
		LastPaymentDate: civil.DateOf(sub.LastPaymentDate),
		NextPaymentDate: civil.DateOf(sub.NextPaymentDate),
		ConfidenceScore: sub.Confidence,
		Status:          string(sub.Status),
	}
}
