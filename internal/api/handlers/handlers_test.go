package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dvloznov/subwatch/internal/alert"
	"github.com/dvloznov/subwatch/internal/config"
	"github.com/dvloznov/subwatch/internal/detect"
	"github.com/dvloznov/subwatch/internal/domain"
	"github.com/dvloznov/subwatch/internal/forecast"
	"github.com/dvloznov/subwatch/internal/jobs"
	"github.com/dvloznov/subwatch/internal/notify"
)

type stubStore struct {
	subs          []domain.Subscription
	notifications []domain.Notification
	cancelled     []string
	err           error
	applyErr      error
}

func (s *stubStore) SubscriptionsByUser(ctx context.Context, userID string) ([]domain.Subscription, error) {
	return s.subs, s.err
}

func (s *stubStore) ActiveSubscriptionsByUser(ctx context.Context, userID string) ([]domain.Subscription, error) {
	var active []domain.Subscription
	for _, sub := range s.subs {
		if sub.Status == domain.SubscriptionActive {
			active = append(active, sub)
		}
	}
	return active, s.err
}

func (s *stubStore) CancelSubscription(ctx context.Context, userID, subscriptionID string) error {
	if s.err != nil {
		return s.err
	}
	s.cancelled = append(s.cancelled, subscriptionID)
	return nil
}

func (s *stubStore) NotificationsByUser(ctx context.Context, userID string, limit int) ([]domain.Notification, error) {
	return s.notifications, s.err
}

func (s *stubStore) ApplyDetection(ctx context.Context, userID string, result detect.Result) error {
	return s.applyErr
}

type stubTxSource struct {
	txs []domain.Transaction
}

func (s *stubTxSource) TransactionsByUser(ctx context.Context, userID string) ([]domain.Transaction, error) {
	return s.txs, nil
}

func (s *stubTxSource) DebitTransactionsByUser(ctx context.Context, userID string) ([]domain.Transaction, error) {
	var debits []domain.Transaction
	for _, tx := range s.txs {
		if tx.IsDebit() {
			debits = append(debits, tx)
		}
	}
	return debits, nil
}

type stubUploader struct {
	uri string
	err error
}

func (s *stubUploader) Upload(ctx context.Context, objectName string, r io.Reader) (string, error) {
	return s.uri, s.err
}

type stubPublisher struct {
	published []*jobs.ProcessStatementJob
	err       error
}

func (s *stubPublisher) PublishProcessStatement(ctx context.Context, job *jobs.ProcessStatementJob) error {
	if s.err != nil {
		return s.err
	}
	job.JobID = "job-1"
	s.published = append(s.published, job)
	return nil
}

func (s *stubPublisher) Close() error { return nil }

func activeSub(id, name string) domain.Subscription {
	return domain.Subscription{
		ID:              id,
		UserID:          "user-1",
		Name:            name,
		Amount:          decimal.NewFromInt(199),
		Frequency:       domain.FrequencyMonthly,
		NextPaymentDate: time.Now().AddDate(0, 0, 10),
		Status:          domain.SubscriptionActive,
	}
}

func TestListSubscriptions(t *testing.T) {
	store := &stubStore{subs: []domain.Subscription{activeSub("sub-1", "Netflix")}}
	h := NewSubscriptionsHandler(store, nil, nil, zerolog.Nop())

	req := httptest.NewRequest(http.MethodGet, "/api/subscriptions?user_id=user-1", nil)
	rec := httptest.NewRecorder()
	h.ListSubscriptions(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Subscriptions []domain.Subscription `json:"subscriptions"`
		Count         int                   `json:"count"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, 1, body.Count)
	assert.Equal(t, "Netflix", body.Subscriptions[0].Name)
}

func TestListSubscriptionsRequiresUserID(t *testing.T) {
	h := NewSubscriptionsHandler(&stubStore{}, nil, nil, zerolog.Nop())

	req := httptest.NewRequest(http.MethodGet, "/api/subscriptions", nil)
	rec := httptest.NewRecorder()
	h.ListSubscriptions(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCancelSubscription(t *testing.T) {
	store := &stubStore{}
	h := NewSubscriptionsHandler(store, nil, nil, zerolog.Nop())

	req := httptest.NewRequest(http.MethodPost, "/api/subscriptions/cancel?user_id=user-1&subscription_id=sub-1", nil)
	rec := httptest.NewRecorder()
	h.CancelSubscription(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{"sub-1"}, store.cancelled)
}

func TestCancelSubscriptionRequiresID(t *testing.T) {
	h := NewSubscriptionsHandler(&stubStore{}, nil, nil, zerolog.Nop())

	req := httptest.NewRequest(http.MethodPost, "/api/subscriptions/cancel?user_id=user-1", nil)
	rec := httptest.NewRecorder()
	h.CancelSubscription(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDetectSubscriptionsPersistenceFailure(t *testing.T) {
	now := time.Now()
	store := &stubStore{applyErr: errors.New("bigquery unavailable")}
	txSource := &stubTxSource{txs: []domain.Transaction{
		{ID: "t1", UserID: "user-1", Date: now.AddDate(0, 0, -60), Description: "NETFLIX.COM", Amount: decimal.NewFromInt(-199)},
		{ID: "t2", UserID: "user-1", Date: now.AddDate(0, 0, -30), Description: "NETFLIX.COM", Amount: decimal.NewFromInt(-199)},
		{ID: "t3", UserID: "user-1", Date: now, Description: "NETFLIX.COM", Amount: decimal.NewFromInt(-199)},
	}}
	svc := detect.NewService(config.Default().Detection, txSource, store)
	h := NewSubscriptionsHandler(store, svc, nil, zerolog.Nop())

	req := httptest.NewRequest(http.MethodPost, "/api/subscriptions/detect?user_id=user-1", nil)
	rec := httptest.NewRecorder()
	h.DetectSubscriptions(rec, req)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), "could not be persisted")
}

func TestForecastBalance(t *testing.T) {
	forecaster := forecast.NewForecaster(
		config.Default().Forecast,
		&stubTxSource{txs: []domain.Transaction{{
			ID: "t1", UserID: "user-1",
			Date:   time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC),
			Amount: decimal.NewFromInt(5000),
		}}},
		&stubStore{},
	)
	h := NewForecastHandler(forecaster, zerolog.Nop())

	req := httptest.NewRequest(http.MethodGet, "/api/forecast?user_id=user-1&days=7", nil)
	rec := httptest.NewRecorder()
	h.ForecastBalance(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var series domain.ForecastSeries
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &series))
	assert.Len(t, series.Dates, 8, "1 historical point + 7 projected days")
}

func TestForecastBalanceRejectsBadDays(t *testing.T) {
	h := NewForecastHandler(forecast.NewForecaster(config.Default().Forecast, &stubTxSource{}, &stubStore{}), zerolog.Nop())

	for _, days := range []string{"abc", "0", "-3"} {
		req := httptest.NewRequest(http.MethodGet, "/api/forecast?user_id=user-1&days="+days, nil)
		rec := httptest.NewRecorder()
		h.ForecastBalance(rec, req)
		assert.Equal(t, http.StatusBadRequest, rec.Code, "days=%s", days)
	}
}

func TestComposeAlertNoContent(t *testing.T) {
	store := &stubStore{}
	notifier := notify.NewService(store, forecast.NewForecaster(config.Default().Forecast, &stubTxSource{}, store), alert.NewComposer(), nil)
	h := NewAlertsHandler(notifier, store, zerolog.Nop())

	req := httptest.NewRequest(http.MethodGet, "/api/alerts?user_id=user-1", nil)
	rec := httptest.NewRecorder()
	h.ComposeAlert(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestComposeAlert(t *testing.T) {
	store := &stubStore{subs: []domain.Subscription{activeSub("sub-1", "Netflix")}}
	notifier := notify.NewService(store, forecast.NewForecaster(config.Default().Forecast, &stubTxSource{}, store), alert.NewComposer(), nil)
	h := NewAlertsHandler(notifier, store, zerolog.Nop())

	req := httptest.NewRequest(http.MethodGet, "/api/alerts?user_id=user-1", nil)
	rec := httptest.NewRecorder()
	h.ComposeAlert(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var a domain.Alert
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &a))
	assert.Contains(t, a.Message, "Netflix")
	assert.Equal(t, domain.SeverityInfo, a.Severity)
}

func TestUploadStatement(t *testing.T) {
	publisher := &stubPublisher{}
	h := NewStatementsHandler(&stubUploader{uri: "gs://bucket/statements/x.csv"}, publisher, zerolog.Nop())

	req := httptest.NewRequest(http.MethodPost, "/api/statements/upload?user_id=user-1&filename=may.csv",
		strings.NewReader("Date,Description,Amount\n"))
	rec := httptest.NewRecorder()
	h.UploadStatement(rec, req)

	require.Equal(t, http.StatusAccepted, rec.Code)
	require.Len(t, publisher.published, 1)
	assert.Equal(t, "user-1", publisher.published[0].UserID)
	assert.Equal(t, "gs://bucket/statements/x.csv", publisher.published[0].GCSURI)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "job-1", body["job_id"])
}

func TestUploadStatementPublishFailure(t *testing.T) {
	h := NewStatementsHandler(
		&stubUploader{uri: "gs://bucket/statements/x.csv"},
		&stubPublisher{err: errors.New("queue closed")},
		zerolog.Nop(),
	)

	req := httptest.NewRequest(http.MethodPost, "/api/statements/upload?user_id=user-1", strings.NewReader("csv"))
	rec := httptest.NewRecorder()
	h.UploadStatement(rec, req)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}
