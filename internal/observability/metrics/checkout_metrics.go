package metrics

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus"
	"gorm.io/gorm"
)

const (
	CheckoutResultPlaced    = "placed"
	CheckoutResultReplayed  = "replayed"
	CheckoutResultRejected  = "rejected"
	CheckoutResultFailed    = "failed"
	CheckoutResultLockBusy  = "lock_busy"
	CheckoutReasonUnknown   = "unknown"
	CheckoutReasonDeadline  = "deadline_exceeded"
	CheckoutReasonSerialize = "serialization_failure"
	CheckoutReasonDeadlock  = "deadlock"
	CheckoutReasonLockWait  = "db_lock_timeout"
	CheckoutReasonUnique    = "unique_violation"
)

// CheckoutMetrics captures order placement health: outcomes, retries and
// time spent waiting on the idempotency lock.
type CheckoutMetrics struct {
	placements *prometheus.CounterVec
	retries    *prometheus.CounterVec
	duration   prometheus.Histogram
	lockWait   prometheus.Histogram
}

func NewCheckoutMetrics(cfg Config) (*CheckoutMetrics, error) {
	return newCheckoutMetrics(prometheus.DefaultRegisterer, cfg)
}

func newCheckoutMetrics(registerer prometheus.Registerer, cfg Config) (*CheckoutMetrics, error) {
	constLabels := serviceLabels(cfg)

	placements := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:        "storefront_checkout_placements_total",
		Help:        "Order placement attempts by result.",
		ConstLabels: constLabels,
	}, []string{"result"})
	retries := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:        "storefront_checkout_retries_total",
		Help:        "Order placement transaction retries by reason.",
		ConstLabels: constLabels,
	}, []string{"reason"})
	duration := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:        "storefront_checkout_duration_seconds",
		Help:        "Order placement latency including retries.",
		ConstLabels: constLabels,
		Buckets:     []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
	})
	lockWait := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:        "storefront_checkout_lock_wait_seconds",
		Help:        "Time spent acquiring the checkout idempotency lock.",
		ConstLabels: constLabels,
		Buckets:     []float64{0.001, 0.01, 0.05, 0.1, 0.5, 1, 3},
	})

	var err error
	if placements, err = registerOrReuse(registerer, placements); err != nil {
		return nil, err
	}
	if retries, err = registerOrReuse(registerer, retries); err != nil {
		return nil, err
	}
	if duration, err = registerOrReuse(registerer, duration); err != nil {
		return nil, err
	}
	if lockWait, err = registerOrReuse(registerer, lockWait); err != nil {
		return nil, err
	}

	return &CheckoutMetrics{
		placements: placements,
		retries:    retries,
		duration:   duration,
		lockWait:   lockWait,
	}, nil
}

func (m *CheckoutMetrics) ObservePlacement(result string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.placements.WithLabelValues(result).Inc()
	m.duration.Observe(elapsed.Seconds())
}

func (m *CheckoutMetrics) IncRetry(err error) {
	if m == nil {
		return
	}
	m.retries.WithLabelValues(ClassifyCheckoutFailure(err)).Inc()
}

func (m *CheckoutMetrics) ObserveLockWait(elapsed time.Duration) {
	if m == nil {
		return
	}
	m.lockWait.Observe(elapsed.Seconds())
}

// ClassifyCheckoutFailure maps a storage error to a low-cardinality reason.
func ClassifyCheckoutFailure(err error) string {
	if err == nil {
		return CheckoutReasonUnknown
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return CheckoutReasonDeadline
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return CheckoutReasonUnique
	}

	code := ""
	var pgErr *pgconn.PgError
	var pqErr *pq.Error
	switch {
	case errors.As(err, &pgErr):
		code = pgErr.Code
	case errors.As(err, &pqErr):
		code = string(pqErr.Code)
	}

	switch code {
	case "40001":
		return CheckoutReasonSerialize
	case "40P01":
		return CheckoutReasonDeadlock
	case "55P03":
		return CheckoutReasonLockWait
	case "23505":
		return CheckoutReasonUnique
	default:
		return CheckoutReasonUnknown
	}
}
