package bigquery

import (
	"context"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/bigquery"
	"google.golang.org/api/iterator"

	"github.com/dvloznov/subwatch/internal/detect"
	"github.com/dvloznov/subwatch/internal/domain"
)

// QuerySubscriptionsByUser returns a user's subscriptions, optionally
// filtered to active ones.
func QuerySubscriptionsByUser(ctx context.Context, client *bigquery.Client, dataset, userID string, activeOnly bool) ([]*SubscriptionRow, error) {
	sql := fmt.Sprintf(`
		SELECT
			subscription_id,
			user_id,
			name,
			amount,
			frequency,
			last_payment_date,
			next_payment_date,
			confidence_score,
			status,
			created_ts,
			updated_ts
		FROM %s.%s
		WHERE user_id = @user_id
	`, dataset, subscriptionsTable)
	if activeOnly {
		sql += " AND status = 'active'"
	}
	sql += " ORDER BY name"

	q := client.Query(sql)
	q.Parameters = []bigquery.QueryParameter{
		{Name: "user_id", Value: userID},
	}

	it, err := q.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("QuerySubscriptionsByUser: query read: %w", err)
	}

	var rows []*SubscriptionRow
	for {
		var r SubscriptionRow
		err := it.Next(&r)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("QuerySubscriptionsByUser: iter next: %w", err)
		}
		rows = append(rows, &r)
	}
	return rows, nil
}

// ApplyDetectionBatch persists one detection result as a single BigQuery
// multi-statement transaction. Either every statement commits or the whole
// batch rolls back; partial subscription writes never reach the table.
func ApplyDetectionBatch(ctx context.Context, client *bigquery.Client, dataset, userID string, result detect.Result) error {
	if result.Empty() {
		return nil
	}

	stmts := []string{"BEGIN TRANSACTION;"}
	params := []bigquery.QueryParameter{
		{Name: "user_id", Value: userID},
	}

	if len(result.New) > 0 {
		stmts = append(stmts, fmt.Sprintf(`
			INSERT INTO %s.%s (
				subscription_id, user_id, name, amount, frequency,
				last_payment_date, next_payment_date, confidence_score, status, created_ts
			)
			SELECT
				s.subscription_id, s.user_id, s.name, s.amount, s.frequency,
				s.last_payment_date, s.next_payment_date, s.confidence_score, s.status, CURRENT_TIMESTAMP()
			FROM UNNEST(@new_subscriptions) AS s;
		`, dataset, subscriptionsTable))
		params = append(params, bigquery.QueryParameter{
			Name: "new_subscriptions", Value: subscriptionParams(result.New),
		})
	}

	if len(result.Updated) > 0 {
		// Detection overwrites amount/frequency/confidence/dates only;
		// status is owned by the user and survives re-runs untouched.
		stmts = append(stmts, fmt.Sprintf(`
			UPDATE %s.%s AS s
			SET
				amount = u.amount,
				frequency = u.frequency,
				last_payment_date = u.last_payment_date,
				next_payment_date = u.next_payment_date,
				confidence_score = u.confidence_score,
				updated_ts = CURRENT_TIMESTAMP()
			FROM UNNEST(@updated_subscriptions) AS u
			WHERE s.subscription_id = u.subscription_id;
		`, dataset, subscriptionsTable))
		params = append(params, bigquery.QueryParameter{
			Name: "updated_subscriptions", Value: subscriptionParams(result.Updated),
		})
	}

	if len(result.RecurringTransactionIDs) > 0 {
		stmts = append(stmts, fmt.Sprintf(`
			UPDATE %s.%s
			SET is_recurring = TRUE, updated_ts = CURRENT_TIMESTAMP()
			WHERE user_id = @user_id AND transaction_id IN UNNEST(@recurring_ids);
		`, dataset, transactionsTable))
		params = append(params, bigquery.QueryParameter{
			Name: "recurring_ids", Value: result.RecurringTransactionIDs,
		})
	}

	stmts = append(stmts, "COMMIT TRANSACTION;")

	q := client.Query(strings.Join(stmts, "\n"))
	q.Parameters = params

	job, err := q.Run(ctx)
	if err != nil {
		return fmt.Errorf("ApplyDetectionBatch: running batch: %w", err)
	}
	status, err := job.Wait(ctx)
	if err != nil {
		return fmt.Errorf("ApplyDetectionBatch: waiting for batch: %w", err)
	}
	if err := status.Err(); err != nil {
		return fmt.Errorf("ApplyDetectionBatch: batch error: %w", err)
	}
	return nil
}

// UpdateSubscriptionStatus flips a subscription's lifecycle status, e.g. the
// user cancelling it from the API.
func UpdateSubscriptionStatus(ctx context.Context, client *bigquery.Client, dataset, userID, subscriptionID string, status domain.SubscriptionStatus) error {
	q := client.Query(fmt.Sprintf(`
		UPDATE %s.%s
		SET status = @status, updated_ts = @updated_ts
		WHERE user_id = @user_id AND subscription_id = @subscription_id
	`, dataset, subscriptionsTable))
	q.Parameters = []bigquery.QueryParameter{
		{Name: "status", Value: string(status)},
		{Name: "updated_ts", Value: time.Now()},
		{Name: "user_id", Value: userID},
		{Name: "subscription_id", Value: subscriptionID},
	}

	job, err := q.Run(ctx)
	if err != nil {
		return fmt.Errorf("UpdateSubscriptionStatus: running update: %w", err)
	}
	jobStatus, err := job.Wait(ctx)
	if err != nil {
		return fmt.Errorf("UpdateSubscriptionStatus: waiting for job: %w", err)
	}
	if err := jobStatus.Err(); err != nil {
		return fmt.Errorf("UpdateSubscriptionStatus: job error: %w", err)
	}
	return nil
}

func subscriptionParams(subs []domain.Subscription) []subscriptionParam {
	out := make([]subscriptionParam, len(subs))
	for i, sub := range subs {
		out[i] = subscriptionParamFromDomain(sub)
	}
	return out
}

// SubscriptionsByUser implements the detector's subscription store read side.
func (r *Repository) SubscriptionsByUser(ctx context.Context, userID string) ([]domain.Subscription, error) {
	rows, err := QuerySubscriptionsByUser(ctx, r.client, r.dataset, userID, false)
	if err != nil {
		return nil, err
	}
	return subscriptionRowsToDomain(rows), nil
}

// ActiveSubscriptionsByUser implements the forecaster's and notifier's
// subscription source.
func (r *Repository) ActiveSubscriptionsByUser(ctx context.Context, userID string) ([]domain.Subscription, error) {
	rows, err := QuerySubscriptionsByUser(ctx, r.client, r.dataset, userID, true)
	if err != nil {
		return nil, err
	}
	return subscriptionRowsToDomain(rows), nil
}

// ApplyDetection implements the detector's atomic write side.
func (r *Repository) ApplyDetection(ctx context.Context, userID string, result detect.Result) error {
	return ApplyDetectionBatch(ctx, r.client, r.dataset, userID, result)
}

// CancelSubscription marks a subscription cancelled. Detection re-runs never
// reactivate it.
func (r *Repository) CancelSubscription(ctx context.Context, userID, subscriptionID string) error {
	return UpdateSubscriptionStatus(ctx, r.client, r.dataset, userID, subscriptionID, domain.SubscriptionCancelled)
}

func subscriptionRowsToDomain(rows []*SubscriptionRow) []domain.Subscription {
	subs := make([]domain.Subscription, len(rows))
	for i, row := range rows {
		subs[i] = row.ToDomain()
	}
	return subs
}
