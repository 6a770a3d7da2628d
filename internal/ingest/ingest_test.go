package ingest

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dvloznov/subwatch/internal/domain"
)

type stubStorage struct {
	data []byte
	err  error
}

func (s *stubStorage) Fetch(ctx context.Context, gcsURI string) ([]byte, error) {
	return s.data, s.err
}

type stubTransactionStore struct {
	existing  map[string]bool
	inserted  []domain.Transaction
	insertErr error
}

func (s *stubTransactionStore) ExistingTransactionKeys(ctx context.Context, userID string) (map[string]bool, error) {
	return s.existing, nil
}

func (s *stubTransactionStore) InsertTransactions(ctx context.Context, txs []domain.Transaction) error {
	if s.insertErr != nil {
		return s.insertErr
	}
	s.inserted = append(s.inserted, txs...)
	return nil
}

const statement = `Date,Description,Amount
2025-01-01,SALARY CREDIT,30000
2025-01-05,NETFLIX.COM,-199.00
2025-01-07,SWIGGY ORDER 8812,-450.00
`

func TestIngestFromGCS(t *testing.T) {
	store := &stubTransactionStore{existing: map[string]bool{}}
	svc := NewService(&stubStorage{data: []byte(statement)}, store)

	count, err := svc.IngestFromGCS(context.Background(), "user-1", "gs://bucket/statement.csv")
	require.NoError(t, err)
	assert.Equal(t, 3, count)
	require.Len(t, store.inserted, 3)

	// Categories assigned on the way in.
	assert.Equal(t, "Other", store.inserted[0].Category)
	assert.Equal(t, "Streaming", store.inserted[1].Category)
	assert.Equal(t, "Food", store.inserted[2].Category)
}

func TestIngestFromGCSSkipsStoredRows(t *testing.T) {
	store := &stubTransactionStore{existing: map[string]bool{
		TransactionKey("2025-01-05", "NETFLIX.COM", "-199.00"): true,
	}}
	svc := NewService(&stubStorage{data: []byte(statement)}, store)

	count, err := svc.IngestFromGCS(context.Background(), "user-1", "gs://bucket/statement.csv")
	require.NoError(t, err)
	assert.Equal(t, 2, count)
	for _, tx := range store.inserted {
		assert.NotEqual(t, "NETFLIX.COM", tx.Description)
	}
}

func TestIngestFromGCSNothingNew(t *testing.T) {
	store := &stubTransactionStore{
		existing: map[string]bool{
			TransactionKey("2025-01-01", "SALARY CREDIT", "30000.00"): true,
			TransactionKey("2025-01-05", "NETFLIX.COM", "-199.00"):   true,
			TransactionKey("2025-01-07", "SWIGGY ORDER 8812", "-450.00"): true,
		},
		insertErr: errors.New("insert must not be called"),
	}
	svc := NewService(&stubStorage{data: []byte(statement)}, store)

	count, err := svc.IngestFromGCS(context.Background(), "user-1", "gs://bucket/statement.csv")
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestIngestFromGCSFetchFailure(t *testing.T) {
	svc := NewService(&stubStorage{err: errors.New("object not found")}, &stubTransactionStore{})

	_, err := svc.IngestFromGCS(context.Background(), "user-1", "gs://bucket/missing.csv")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "fetching statement")
}
