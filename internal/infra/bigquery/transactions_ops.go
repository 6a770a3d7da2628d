package bigquery

import (
	"context"
	"fmt"

	"cloud.google.com/go/bigquery"
	"google.golang.org/api/iterator"

	"github.com/dvloznov/subwatch/internal/domain"
	"github.com/dvloznov/subwatch/internal/ingest"
)

// InsertTransactionRows streams a batch of rows into subwatch.transactions.
func InsertTransactionRows(ctx context.Context, client *bigquery.Client, dataset string, rows []*TransactionRow) error {
	if len(rows) == 0 {
		return nil
	}

	inserter := client.Dataset(dataset).Table(transactionsTable).Inserter()
	if err := inserter.Put(ctx, rows); err != nil {
		return fmt.Errorf("InsertTransactionRows: inserting rows: %w", err)
	}
	return nil
}

// QueryTransactionsByUser returns all of a user's transactions ordered by
// date.
func QueryTransactionsByUser(ctx context.Context, client *bigquery.Client, dataset, userID string) ([]*TransactionRow, error) {
	return queryTransactions(ctx, client, dataset, userID, false)
}

// QueryDebitTransactionsByUser returns only the user's debit (expense)
// transactions ordered by date.
func QueryDebitTransactionsByUser(ctx context.Context, client *bigquery.Client, dataset, userID string) ([]*TransactionRow, error) {
	return queryTransactions(ctx, client, dataset, userID, true)
}

func queryTransactions(ctx context.Context, client *bigquery.Client, dataset, userID string, debitsOnly bool) ([]*TransactionRow, error) {
	sql := fmt.Sprintf(`
		SELECT
			transaction_id,
			user_id,
			transaction_date,
			description,
			amount,
			category,
			is_recurring,
			created_ts,
			updated_ts
		FROM %s.%s
		WHERE user_id = @user_id
	`, dataset, transactionsTable)
	if debitsOnly {
		sql += " AND amount < 0"
	}
	sql += " ORDER BY transaction_date, created_ts"

	q := client.Query(sql)
	q.Parameters = []bigquery.QueryParameter{
		{Name: "user_id", Value: userID},
	}

	it, err := q.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("queryTransactions: query read: %w", err)
	}

	var rows []*TransactionRow
	for {
		var r TransactionRow
		err := it.Next(&r)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("queryTransactions: iter next: %w", err)
		}
		rows = append(rows, &r)
	}
	return rows, nil
}

// QueryTransactionKeys returns the (date, description, amount) dedupe keys of
// a user's existing transactions, for CSV ingestion to skip duplicates.
func QueryTransactionKeys(ctx context.Context, client *bigquery.Client, dataset, userID string) (map[string]bool, error) {
	q := client.Query(fmt.Sprintf(`
		SELECT
			FORMAT_DATE('%%F', transaction_date) AS day,
			description,
			FORMAT('%%.2f', CAST(amount AS FLOAT64)) AS amount
		FROM %s.%s
		WHERE user_id = @user_id
	`, dataset, transactionsTable))
	q.Parameters = []bigquery.QueryParameter{
		{Name: "user_id", Value: userID},
	}

	it, err := q.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("QueryTransactionKeys: query read: %w", err)
	}

	keys := make(map[string]bool)
	for {
		var r struct {
			Day         string `bigquery:"day"`
			Description string `bigquery:"description"`
			Amount      string `bigquery:"amount"`
		}
		err := it.Next(&r)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("QueryTransactionKeys: iter next: %w", err)
		}
		keys[ingest.TransactionKey(r.Day, r.Description, r.Amount)] = true
	}
	return keys, nil
}

// ListUserIDs returns every user with at least one stored transaction.
func ListUserIDs(ctx context.Context, client *bigquery.Client, dataset string) ([]string, error) {
	q := client.Query(fmt.Sprintf(`
		SELECT DISTINCT user_id FROM %s.%s ORDER BY user_id
	`, dataset, transactionsTable))

	it, err := q.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("ListUserIDs: query read: %w", err)
	}

	var ids []string
	for {
		var r struct {
			UserID string `bigquery:"user_id"`
		}
		err := it.Next(&r)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("ListUserIDs: iter next: %w", err)
		}
		ids = append(ids, r.UserID)
	}
	return ids, nil
}

// InsertTransactions maps domain transactions to rows and streams them in.
func (r *Repository) InsertTransactions(ctx context.Context, txs []domain.Transaction) error {
	rows := make([]*TransactionRow, len(txs))
	for i, tx := range txs {
		rows[i] = TransactionRowFromDomain(tx)
	}
	return InsertTransactionRows(ctx, r.client, r.dataset, rows)
}

// TransactionsByUser implements the forecaster's transaction source.
func (r *Repository) TransactionsByUser(ctx context.Context, userID string) ([]domain.Transaction, error) {
	rows, err := QueryTransactionsByUser(ctx, r.client, r.dataset, userID)
	if err != nil {
		return nil, err
	}
	return transactionRowsToDomain(rows), nil
}

// DebitTransactionsByUser implements the detector's transaction source.
func (r *Repository) DebitTransactionsByUser(ctx context.Context, userID string) ([]domain.Transaction, error) {
	rows, err := QueryDebitTransactionsByUser(ctx, r.client, r.dataset, userID)
	if err != nil {
		return nil, err
	}
	return transactionRowsToDomain(rows), nil
}

// ExistingTransactionKeys implements the ingester's dedupe lookup.
func (r *Repository) ExistingTransactionKeys(ctx context.Context, userID string) (map[string]bool, error) {
	return QueryTransactionKeys(ctx, r.client, r.dataset, userID)
}

// ListUserIDs implements the notifier's user source.
func (r *Repository) ListUserIDs(ctx context.Context) ([]string, error) {
	return ListUserIDs(ctx, r.client, r.dataset)
}

func transactionRowsToDomain(rows []*TransactionRow) []domain.Transaction {
	txs := make([]domain.Transaction, len(rows))
	for i, row := range rows {
		txs[i] = row.ToDomain()
	}
	return txs
}
