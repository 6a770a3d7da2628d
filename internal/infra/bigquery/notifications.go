package bigquery

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/bigquery"
	"google.golang.org/api/iterator"

	"github.com/dvloznov/subwatch/internal/domain"
)

const notificationsTable = "notifications"

// NotificationRow is the subwatch.notifications table schema.
type NotificationRow struct {
	NotificationID string    `bigquery:"notification_id"` // REQUIRED
	UserID         string    `bigquery:"user_id"`         // REQUIRED
	Message        string    `bigquery:"message"`         // REQUIRED
	Type           string    `bigquery:"type"`            // REQUIRED: info | warning | savings_opportunity
	CreatedTS      time.Time `bigquery:"created_ts"`      // REQUIRED
}

// InsertNotificationRow inserts one row into subwatch.notifications.
func InsertNotificationRow(ctx context.Context, client *bigquery.Client, dataset string, row *NotificationRow) error {
	inserter := client.Dataset(dataset).Table(notificationsTable).Inserter()
	if err := inserter.Put(ctx, row); err != nil {
		return fmt.Errorf("InsertNotificationRow: inserting row: %w", err)
	}
	return nil
}

// QueryNotificationsByUser returns a user's notifications, newest first.
func QueryNotificationsByUser(ctx context.Context, client *bigquery.Client, dataset, userID string, limit int) ([]*NotificationRow, error) {
	q := client.Query(fmt.Sprintf(`
		SELECT notification_id, user_id, message, type, created_ts
		FROM %s.%s
		WHERE user_id = @user_id
		ORDER BY created_ts DESC
		LIMIT @limit
	`, dataset, notificationsTable))
	q.Parameters = []bigquery.QueryParameter{
		{Name: "user_id", Value: userID},
		{Name: "limit", Value: int64(limit)},
	}

	it, err := q.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("QueryNotificationsByUser: query read: %w", err)
	}

	var rows []*NotificationRow
	for {
		var r NotificationRow
		err := it.Next(&r)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("QueryNotificationsByUser: iter next: %w", err)
		}
		rows = append(rows, &r)
	}
	return rows, nil
}

// InsertNotification implements the notifier's store.
func (r *Repository) InsertNotification(ctx context.Context, n domain.Notification) error {
	return InsertNotificationRow(ctx, r.client, r.dataset, &NotificationRow{
		NotificationID: n.ID,
		UserID:         n.UserID,
		Message:        n.Message,
		Type:           string(n.Type),
		CreatedTS:      n.CreatedAt,
	})
}

// NotificationsByUser returns a user's recent notifications.
func (r *Repository) NotificationsByUser(ctx context.Context, userID string, limit int) ([]domain.Notification, error) {
	rows, err := QueryNotificationsByUser(ctx, r.client, r.dataset, userID, limit)
	if err != nil {
		return nil, err
	}
	out := make([]domain.Notification, len(rows))
	for i, row := range rows {
		out[i] = domain.Notification{
			ID:        row.NotificationID,
			UserID:    row.UserID,
			Message:   row.Message,
			Type:      domain.Severity(row.Type),
			CreatedAt: row.CreatedTS,
		}
	}
	return out, nil
}
