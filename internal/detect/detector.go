package detect

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/dvloznov/subwatch/internal/config"
	"github.com/dvloznov/subwatch/internal/domain"
	"github.com/dvloznov/subwatch/internal/logger"
)

// TransactionSource provides a user's debit transactions for a detection run.
type TransactionSource interface {
	DebitTransactionsByUser(ctx context.Context, userID string) ([]domain.Transaction, error)
}

// SubscriptionStore persists detection output. ApplyDetection must apply the
// whole result as a single atomic unit: if any write fails the batch rolls
// back and nothing is persisted.
type SubscriptionStore interface {
	SubscriptionsByUser(ctx context.Context, userID string) ([]domain.Subscription, error)
	ApplyDetection(ctx context.Context, userID string, result Result) error
}

// Result describes everything one detection run wants to change. The engine
// itself mutates nothing; the store applies the result atomically.
type Result struct {
	New                     []domain.Subscription
	Updated                 []domain.Subscription
	RecurringTransactionIDs []string
}

// Empty reports whether the run found nothing to persist.
func (r Result) Empty() bool {
	return len(r.New) == 0 && len(r.Updated) == 0 && len(r.RecurringTransactionIDs) == 0
}

// PersistenceError marks a failed detection batch write. The batch was rolled
// back as a whole; no partial subscription state reached the store.
type PersistenceError struct {
	Err error
}

func (e *PersistenceError) Error() string {
	return "detection batch not persisted: " + e.Err.Error()
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// Detector synthesizes subscriptions from a snapshot of transactions.
// Pure computation: safe to call concurrently with distinct inputs.
type Detector struct {
	cfg       config.DetectionConfig
	clusterer *Clusterer
}

// NewDetector creates a Detector with the given tuning parameters.
func NewDetector(cfg config.DetectionConfig) *Detector {
	return &Detector{
		cfg:       cfg,
		clusterer: NewClusterer(cfg),
	}
}

// Detect runs clustering and periodicity classification over the user's
// debit transactions and returns the create/update set. existing is the
// user's current subscriptions (any status); matching is by derived name.
//
// Fewer than MinOccurrences debit transactions yields an empty result, which
// is not an error.
func (d *Detector) Detect(debits []domain.Transaction, existing []domain.Subscription) Result {
	var result Result
	if len(debits) < d.cfg.MinOccurrences {
		return result
	}

	byName := make(map[string]*domain.Subscription, len(existing))
	for i := range existing {
		sub := existing[i]
		byName[sub.Name] = &sub
	}

	// A later cluster deriving a name already touched this run updates the
	// same record instead of forking a duplicate.
	var created, updated []*domain.Subscription
	touched := make(map[string]*domain.Subscription)

	for _, cluster := range d.clusterer.Cluster(debits) {
		if len(cluster.Members) < d.cfg.MinOccurrences {
			continue
		}

		avgAmount, ok := d.consistentAmount(cluster.Members)
		if !ok {
			continue
		}

		dates := make([]time.Time, len(cluster.Members))
		for i, tx := range cluster.Members {
			dates[i] = tx.Date
		}
		periodicity := ClassifyPeriodicity(dates, d.cfg.MinOccurrences, d.cfg.BandShare)
		if !periodicity.IsPeriodic || periodicity.Confidence <= d.cfg.MinConfidence {
			continue
		}

		name := ExtractSubscriptionName(cluster.Members[0].Description)
		lastPayment := latestDate(dates)
		nextPayment := lastPayment.Add(periodicity.Frequency.PaymentOffset())

		if sub, found := touched[name]; found {
			applyDetectedFields(sub, avgAmount, periodicity, lastPayment, nextPayment)
		} else if sub, found := byName[name]; found {
			applyDetectedFields(sub, avgAmount, periodicity, lastPayment, nextPayment)
			updated = append(updated, sub)
			touched[name] = sub
		} else {
			sub := &domain.Subscription{
				ID:     uuid.NewString(),
				UserID: cluster.Members[0].UserID,
				Name:   name,
				Status: domain.SubscriptionActive,
			}
			applyDetectedFields(sub, avgAmount, periodicity, lastPayment, nextPayment)
			created = append(created, sub)
			touched[name] = sub
		}

		for _, tx := range cluster.Members {
			result.RecurringTransactionIDs = append(result.RecurringTransactionIDs, tx.ID)
		}
	}

	for _, sub := range created {
		result.New = append(result.New, *sub)
	}
	for _, sub := range updated {
		result.Updated = append(result.Updated, *sub)
	}
	return result
}

// consistentAmount returns the mean absolute amount of the cluster and
// whether the amounts are consistent enough to be one recurring charge
// (coefficient of variation at most AmountVariationCap; exactly at the cap
// still passes).
func (d *Detector) consistentAmount(members []domain.Transaction) (decimal.Decimal, bool) {
	abs := make([]float64, len(members))
	sum := decimal.Zero
	for i, tx := range members {
		a := tx.Amount.Abs()
		sum = sum.Add(a)
		abs[i] = a.InexactFloat64()
	}
	avg := sum.Div(decimal.NewFromInt(int64(len(members))))

	avgFloat := mean(abs)
	if avgFloat <= 0 {
		// Zero average amount carries no signal.
		return decimal.Zero, false
	}
	variation := stddev(abs, avgFloat) / avgFloat
	if variation > d.cfg.AmountVariationCap {
		return decimal.Zero, false
	}
	return avg.Round(2), true
}

func applyDetectedFields(sub *domain.Subscription, amount decimal.Decimal, p PeriodicityResult, last, next time.Time) {
	sub.Amount = amount
	sub.Frequency = p.Frequency
	sub.Confidence = p.Confidence
	sub.LastPaymentDate = last
	sub.NextPaymentDate = next
}

func latestDate(dates []time.Time) time.Time {
	latest := dates[0]
	for _, d := range dates[1:] {
		if d.After(latest) {
			latest = d
		}
	}
	return latest
}

// Service runs detection end to end for a user: load the snapshot, compute
// the result, persist it atomically. Detection runs for the same user are
// serialized with a per-user lock; the name-keyed upsert is read-then-write
// and is not safe against concurrent runs for one user.
type Service struct {
	detector      *Detector
	transactions  TransactionSource
	subscriptions SubscriptionStore

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewService creates a detection Service.
func NewService(cfg config.DetectionConfig, transactions TransactionSource, subscriptions SubscriptionStore) *Service {
	return &Service{
		detector:      NewDetector(cfg),
		transactions:  transactions,
		subscriptions: subscriptions,
		locks:         make(map[string]*sync.Mutex),
	}
}

// DetectSubscriptions runs detection for one user and returns only the newly
// created subscriptions; updates are applied but not returned.
func (s *Service) DetectSubscriptions(ctx context.Context, userID string) ([]domain.Subscription, error) {
	lock := s.userLock(userID)
	lock.Lock()
	defer lock.Unlock()

	log := logger.ForUser(logger.FromContext(ctx), userID)

	debits, err := s.transactions.DebitTransactionsByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("DetectSubscriptions: loading debit transactions: %w", err)
	}

	existing, err := s.subscriptions.SubscriptionsByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("DetectSubscriptions: loading subscriptions: %w", err)
	}

	result := s.detector.Detect(debits, existing)
	if result.Empty() {
		log.Debug().Int("debit_count", len(debits)).Msg("Detection found nothing to persist")
		return nil, nil
	}

	if err := s.subscriptions.ApplyDetection(ctx, userID, result); err != nil {
		return nil, &PersistenceError{Err: err}
	}

	log.Info().
		Int("new", len(result.New)).
		Int("updated", len(result.Updated)).
		Int("recurring_transactions", len(result.RecurringTransactionIDs)).
		Msg("Detection run persisted")

	return result.New, nil
}

func (s *Service) userLock(userID string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	lock, ok := s.locks[userID]
	if !ok {
		lock = &sync.Mutex{}
		s.locks[userID] = lock
	}
	return lock
}
