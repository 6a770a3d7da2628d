package ingest

import (
	"bytes"
	"context"
	"fmt"

	"github.com/dvloznov/subwatch/internal/detect"
	"github.com/dvloznov/subwatch/internal/domain"
	"github.com/dvloznov/subwatch/internal/logger"
)

// Storage fetches uploaded statement bytes.
type Storage interface {
	Fetch(ctx context.Context, gcsURI string) ([]byte, error)
}

// TransactionStore persists parsed transactions and exposes the dedupe keys
// of what is already stored.
type TransactionStore interface {
	ExistingTransactionKeys(ctx context.Context, userID string) (map[string]bool, error)
	InsertTransactions(ctx context.Context, txs []domain.Transaction) error
}

// Service turns an uploaded CSV statement into stored transactions.
type Service struct {
	storage     Storage
	store       TransactionStore
	categorizer *detect.Categorizer
}

// NewService creates an ingest Service.
func NewService(storage Storage, store TransactionStore) *Service {
	return &Service{
		storage:     storage,
		store:       store,
		categorizer: detect.NewCategorizer(),
	}
}

// IngestFromGCS fetches the statement at gcsURI, parses it, drops rows the
// user already has, categorizes the rest and inserts them. Returns how many
// transactions were stored.
func (s *Service) IngestFromGCS(ctx context.Context, userID, gcsURI string) (int, error) {
	log := logger.ForUser(logger.FromContext(ctx), userID)

	data, err := s.storage.Fetch(ctx, gcsURI)
	if err != nil {
		return 0, fmt.Errorf("IngestFromGCS: fetching statement: %w", err)
	}

	parsed, err := ParseStatement(bytes.NewReader(data), userID)
	if err != nil {
		return 0, fmt.Errorf("IngestFromGCS: parsing statement: %w", err)
	}

	existing, err := s.store.ExistingTransactionKeys(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("IngestFromGCS: loading existing keys: %w", err)
	}

	fresh := make([]domain.Transaction, 0, len(parsed))
	for _, tx := range parsed {
		key := TransactionKey(tx.Date.Format("2006-01-02"), tx.Description, tx.Amount.StringFixed(2))
		if existing[key] {
			continue
		}
		tx.Category = s.categorizer.Categorize(tx.Description)
		fresh = append(fresh, tx)
	}

	if len(fresh) > 0 {
		if err := s.store.InsertTransactions(ctx, fresh); err != nil {
			return 0, fmt.Errorf("IngestFromGCS: inserting transactions: %w", err)
		}
	}

	log.Info().
		Str("gcs_uri", gcsURI).
		Int("parsed", len(parsed)).
		Int("inserted", len(fresh)).
		Msg("Statement ingested")

	return len(fresh), nil
}
