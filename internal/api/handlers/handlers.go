package handlers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/dvloznov/subwatch/internal/api/middleware"
	"github.com/dvloznov/subwatch/internal/detect"
	"github.com/dvloznov/subwatch/internal/domain"
	"github.com/dvloznov/subwatch/internal/forecast"
	"github.com/dvloznov/subwatch/internal/jobs"
	"github.com/dvloznov/subwatch/internal/notify"
)

// SubscriptionStore is the read/cancel surface the API needs on top of the
// detection engine.
type SubscriptionStore interface {
	SubscriptionsByUser(ctx context.Context, userID string) ([]domain.Subscription, error)
	ActiveSubscriptionsByUser(ctx context.Context, userID string) ([]domain.Subscription, error)
	CancelSubscription(ctx context.Context, userID, subscriptionID string) error
	NotificationsByUser(ctx context.Context, userID string, limit int) ([]domain.Notification, error)
}

// SubscriptionsHandler handles subscription-related endpoints.
type SubscriptionsHandler struct {
	store      SubscriptionStore
	detector   *detect.Service
	forecaster *forecast.Forecaster
	log        zerolog.Logger
}

// NewSubscriptionsHandler creates a new subscriptions handler.
func NewSubscriptionsHandler(store SubscriptionStore, detector *detect.Service, forecaster *forecast.Forecaster, log zerolog.Logger) *SubscriptionsHandler {
	return &SubscriptionsHandler{
		store:      store,
		detector:   detector,
		forecaster: forecaster,
		log:        log,
	}
}

// ListSubscriptions handles GET /api/subscriptions
func (h *SubscriptionsHandler) ListSubscriptions(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	subs, err := h.store.SubscriptionsByUser(r.Context(), userID)
	if err != nil {
		h.log.Error().Err(err).Str("user_id", userID).Msg("Failed to list subscriptions")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to list subscriptions")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"subscriptions": subs,
		"count":         len(subs),
	})
}

// DetectSubscriptions handles POST /api/subscriptions/detect
func (h *SubscriptionsHandler) DetectSubscriptions(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	created, err := h.detector.DetectSubscriptions(r.Context(), userID)
	if err != nil {
		var perr *detect.PersistenceError
		if errors.As(err, &perr) {
			h.log.Error().Err(err).Str("user_id", userID).Msg("Detection batch rolled back")
			middleware.WriteError(w, http.StatusInternalServerError, "Detection results could not be persisted")
			return
		}
		h.log.Error().Err(err).Str("user_id", userID).Msg("Detection failed")
		middleware.WriteError(w, http.StatusInternalServerError, "Detection failed")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"new_subscriptions": created,
		"count":             len(created),
	})
}

// CancelSubscription handles POST /api/subscriptions/cancel
func (h *SubscriptionsHandler) CancelSubscription(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}
	subscriptionID := r.URL.Query().Get("subscription_id")
	if subscriptionID == "" {
		middleware.WriteError(w, http.StatusBadRequest, "subscription_id is required")
		return
	}

	if err := h.store.CancelSubscription(r.Context(), userID, subscriptionID); err != nil {
		h.log.Error().Err(err).Str("subscription_id", subscriptionID).Msg("Failed to cancel subscription")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to cancel subscription")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]string{
		"subscription_id": subscriptionID,
		"status":          string(domain.SubscriptionCancelled),
	})
}

// MonthlyCost handles GET /api/subscriptions/cost
func (h *SubscriptionsHandler) MonthlyCost(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	cost, err := h.forecaster.CalculateMonthlySubscriptionCost(r.Context(), userID)
	if err != nil {
		h.log.Error().Err(err).Str("user_id", userID).Msg("Failed to calculate monthly cost")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to calculate monthly cost")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"monthly_cost": cost,
	})
}

// ForecastHandler handles balance forecast endpoints.
type ForecastHandler struct {
	forecaster *forecast.Forecaster
	log        zerolog.Logger
}

// NewForecastHandler creates a new forecast handler.
func NewForecastHandler(forecaster *forecast.Forecaster, log zerolog.Logger) *ForecastHandler {
	return &ForecastHandler{forecaster: forecaster, log: log}
}

// ForecastBalance handles GET /api/forecast
func (h *ForecastHandler) ForecastBalance(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	daysAhead := 0
	if raw := r.URL.Query().Get("days"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			middleware.WriteError(w, http.StatusBadRequest, "days must be a positive integer")
			return
		}
		daysAhead = parsed
	}

	series, err := h.forecaster.ForecastBalance(r.Context(), userID, daysAhead)
	if err != nil {
		h.log.Error().Err(err).Str("user_id", userID).Msg("Forecast failed")
		middleware.WriteError(w, http.StatusInternalServerError, "Forecast failed")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, series)
}

// AlertsHandler handles alert and notification endpoints.
type AlertsHandler struct {
	notifier *notify.Service
	store    SubscriptionStore
	log      zerolog.Logger
}

// NewAlertsHandler creates a new alerts handler.
func NewAlertsHandler(notifier *notify.Service, store SubscriptionStore, log zerolog.Logger) *AlertsHandler {
	return &AlertsHandler{notifier: notifier, store: store, log: log}
}

// ComposeAlert handles GET /api/alerts
func (h *AlertsHandler) ComposeAlert(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	a, err := h.notifier.ComposeAlert(r.Context(), userID)
	if err != nil {
		h.log.Error().Err(err).Str("user_id", userID).Msg("Alert composition failed")
		middleware.WriteError(w, http.StatusInternalServerError, "Alert composition failed")
		return
	}
	if a == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	middleware.WriteJSON(w, http.StatusOK, a)
}

// ListNotifications handles GET /api/notifications
func (h *AlertsHandler) ListNotifications(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	notifications, err := h.store.NotificationsByUser(r.Context(), userID, 50)
	if err != nil {
		h.log.Error().Err(err).Str("user_id", userID).Msg("Failed to list notifications")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to list notifications")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"notifications": notifications,
		"count":         len(notifications),
	})
}

// Uploader stores statement bytes and returns the resulting GCS URI.
type Uploader interface {
	Upload(ctx context.Context, objectName string, r io.Reader) (string, error)
}

// StatementsHandler handles CSV statement uploads.
type StatementsHandler struct {
	uploader  Uploader
	publisher jobs.Publisher
	log       zerolog.Logger
}

// NewStatementsHandler creates a new statements handler.
func NewStatementsHandler(uploader Uploader, publisher jobs.Publisher, log zerolog.Logger) *StatementsHandler {
	return &StatementsHandler{
		uploader:  uploader,
		publisher: publisher,
		log:       log,
	}
}

// UploadStatement handles POST /api/statements/upload
// The request body is the raw CSV; ingestion and detection run asynchronously.
func (h *StatementsHandler) UploadStatement(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}
	ctx := r.Context()

	filename := r.URL.Query().Get("filename")
	if filename == "" {
		filename = "statement.csv"
	}
	objectName := fmt.Sprintf("statements/%s/%s/%s-%s", userID, time.Now().Format("2006/01/02"), uuid.NewString(), filename)

	gcsURI, err := h.uploader.Upload(ctx, objectName, r.Body)
	if err != nil {
		h.log.Error().Err(err).Str("user_id", userID).Msg("Failed to upload statement")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to upload statement")
		return
	}

	job := &jobs.ProcessStatementJob{
		UserID: userID,
		GCSURI: gcsURI,
	}
	if err := h.publisher.PublishProcessStatement(ctx, job); err != nil {
		h.log.Error().Err(err).Str("gcs_uri", gcsURI).Msg("Failed to enqueue statement job")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to enqueue statement processing")
		return
	}

	h.log.Info().
		Str("user_id", userID).
		Str("gcs_uri", gcsURI).
		Str("job_id", job.JobID).
		Msg("Statement uploaded")

	middleware.WriteJSON(w, http.StatusAccepted, map[string]string{
		"job_id":  job.JobID,
		"gcs_uri": gcsURI,
	})
}

// JobsHandler exposes statement job status.
type JobsHandler struct {
	store jobs.JobStore
	log   zerolog.Logger
}

// NewJobsHandler creates a new jobs handler.
func NewJobsHandler(store jobs.JobStore, log zerolog.Logger) *JobsHandler {
	return &JobsHandler{store: store, log: log}
}

// ListJobs handles GET /api/jobs
func (h *JobsHandler) ListJobs(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	list, err := h.store.ListJobs(r.Context(), jobs.JobFilter{UserID: userID, Limit: 50})
	if err != nil {
		h.log.Error().Err(err).Str("user_id", userID).Msg("Failed to list jobs")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to list jobs")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"jobs":  list,
		"count": len(list),
	})
}

// GetJob handles GET /api/jobs/{id}
func (h *JobsHandler) GetJob(w http.ResponseWriter, r *http.Request, jobID string) {
	job, err := h.store.GetJob(r.Context(), jobID)
	if err != nil {
		middleware.WriteError(w, http.StatusNotFound, "Job not found")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, job)
}

func requireUserID(w http.ResponseWriter, r *http.Request) (string, bool) {
	userID := r.URL.Query().Get("user_id")
	if userID == "" {
		middleware.WriteError(w, http.StatusBadRequest, "user_id is required")
		return "", false
	}
	return userID, true
}
