package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/dvloznov/subwatch/internal/alert"
	"github.com/dvloznov/subwatch/internal/domain"
	"github.com/dvloznov/subwatch/internal/logger"
)

// SubscriptionSource provides a user's active subscriptions.
type SubscriptionSource interface {
	ActiveSubscriptionsByUser(ctx context.Context, userID string) ([]domain.Subscription, error)
}

// BalanceForecaster produces the forecast the composer reads risk dates from.
type BalanceForecaster interface {
	ForecastBalance(ctx context.Context, userID string, daysAhead int) (domain.ForecastSeries, error)
}

// NotificationStore persists in-app notifications.
type NotificationStore interface {
	InsertNotification(ctx context.Context, n domain.Notification) error
}

// UserSource lists the users the daily check iterates over.
type UserSource interface {
	ListUserIDs(ctx context.Context) ([]string, error)
}

// Service composes alerts and records notifications for them.
type Service struct {
	subscriptions SubscriptionSource
	forecaster    BalanceForecaster
	composer      *alert.Composer
	store         NotificationStore
}

// NewService creates a notify Service.
func NewService(subscriptions SubscriptionSource, forecaster BalanceForecaster, composer *alert.Composer, store NotificationStore) *Service {
	return &Service{
		subscriptions: subscriptions,
		forecaster:    forecaster,
		composer:      composer,
		store:         store,
	}
}

// ComposeAlert builds the alert for one user, or nil when no subscription is
// due within the window.
func (s *Service) ComposeAlert(ctx context.Context, userID string) (*domain.Alert, error) {
	subs, err := s.subscriptions.ActiveSubscriptionsByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("ComposeAlert: loading subscriptions: %w", err)
	}
	if len(subs) == 0 {
		return nil, nil
	}

	forecast, err := s.forecaster.ForecastBalance(ctx, userID, 0)
	if err != nil {
		return nil, fmt.Errorf("ComposeAlert: forecasting balance: %w", err)
	}

	return s.composer.Compose(subs, forecast), nil
}

// CheckAndNotify composes the user's alert and, if one fires, persists an
// in-app notification. Email delivery is out of scope; the alert is logged
// instead.
func (s *Service) CheckAndNotify(ctx context.Context, userID string) (*domain.Alert, error) {
	log := logger.ForUser(logger.FromContext(ctx), userID)

	a, err := s.ComposeAlert(ctx, userID)
	if err != nil {
		return nil, err
	}
	if a == nil {
		return nil, nil
	}

	n := domain.Notification{
		ID:        uuid.NewString(),
		UserID:    userID,
		Message:   a.Message,
		Type:      a.Severity,
		CreatedAt: time.Now(),
	}
	if err := s.store.InsertNotification(ctx, n); err != nil {
		return nil, fmt.Errorf("CheckAndNotify: saving notification: %w", err)
	}

	log.Info().
		Str("severity", string(a.Severity)).
		Str("message", a.Message).
		Msg("Alert raised")

	return a, nil
}

// CheckAllUsers runs the daily notification sweep. Failures for one user are
// logged and do not stop the sweep.
func (s *Service) CheckAllUsers(ctx context.Context, users UserSource) error {
	log := logger.FromContext(ctx)

	ids, err := users.ListUserIDs(ctx)
	if err != nil {
		return fmt.Errorf("CheckAllUsers: listing users: %w", err)
	}

	for _, userID := range ids {
		if _, err := s.CheckAndNotify(ctx, userID); err != nil {
			log.Error().Err(err).Str("user_id", userID).Msg("Notification check failed")
		}
	}
	return nil
}
