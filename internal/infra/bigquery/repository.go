package bigquery

import (
	"context"
	"fmt"

	"cloud.google.com/go/bigquery"

	"github.com/dvloznov/subwatch/internal/config"
)

// Repository is the BigQuery-backed store for transactions, subscriptions
// and notifications. It holds a shared client so individual operations do
// not open a new connection each time.
type Repository struct {
	client  *bigquery.Client
	dataset string
}

// NewRepository creates a Repository for the configured project and dataset.
func NewRepository(ctx context.Context, cfg config.BigQueryConfig) (*Repository, error) {
	client, err := bigquery.NewClient(ctx, cfg.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("NewRepository: creating client: %w", err)
	}
	return &Repository{client: client, dataset: cfg.DatasetID}, nil
}

// NewRepositoryWithClient wraps an existing client; used by tests and tools
// that manage the client lifecycle themselves.
func NewRepositoryWithClient(client *bigquery.Client, dataset string) *Repository {
	return &Repository{client: client, dataset: dataset}
}

// Close releases the underlying client. Call when the repository is no
// longer needed.
func (r *Repository) Close() error {
	if r.client != nil {
		return r.client.Close()
	}
	return nil
}
