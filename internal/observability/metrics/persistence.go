package metrics

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/prometheus/client_golang/prometheus"
)

const (
	RetryReasonLockContention       = "lock_contention"
	RetryReasonStaleWrite           = "stale_write"
	RetryReasonSerializationFailure = "serialization_failure"
	RetryReasonDeadlock             = "deadlock"
	RetryReasonLockTimeout          = "db_lock_timeout"
	RetryReasonBusy                 = "busy"
	RetryReasonUnknown              = "unknown"
)

// PersistenceMetrics tracks lock waits and conflict retries on the booking
// and ledger write paths.
type PersistenceMetrics struct {
	lockWait  *prometheus.HistogramVec
	retries   *prometheus.CounterVec
	exhausted *prometheus.CounterVec
}

var (
	persistenceOnce    sync.Once
	persistenceMetrics *PersistenceMetrics
)

// Persistence returns the process-wide persistence metrics registry.
func Persistence() *PersistenceMetrics {
	persistenceOnce.Do(func() {
		persistenceMetrics = newPersistenceMetrics(prometheus.DefaultRegisterer)
	})
	return persistenceMetrics
}

func newPersistenceMetrics(registerer prometheus.Registerer) *PersistenceMetrics {
	m := &PersistenceMetrics{
		lockWait: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "appointly_lock_wait_seconds",
			Help:    "Time spent waiting for per-key write locks.",
			Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		}, []string{"resource"}),
		retries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "appointly_persistence_retries_total",
			Help: "Transient persistence conflicts that triggered a retry.",
		}, []string{"resource", "reason"}),
		exhausted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "appointly_persistence_retries_exhausted_total",
			Help: "Operations that gave up after exhausting retries.",
		}, []string{"resource"}),
	}
	registerOrReuse(registerer, &m.retries, &m.lockWait)
	registerOrReuse(registerer, &m.exhausted, nil)
	return m
}

func (m *PersistenceMetrics) ObserveLockWait(resource string, d time.Duration) {
	if m == nil {
		return
	}
	if d < 0 {
		d = 0
	}
	m.lockWait.WithLabelValues(resource).Observe(d.Seconds())
}

func (m *PersistenceMetrics) IncRetry(resource string, err error) {
	if m == nil || err == nil {
		return
	}
	m.retries.WithLabelValues(resource, ClassifyRetryReason(err)).Inc()
}

func (m *PersistenceMetrics) IncExhausted(resource string) {
	if m == nil {
		return
	}
	m.exhausted.WithLabelValues(resource).Inc()
}

// ClassifyRetryReason maps a transient error onto a low-cardinality reason label.
func ClassifyRetryReason(err error) string {
	if err == nil {
		return RetryReasonUnknown
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "40001":
			return RetryReasonSerializationFailure
		case "40P01":
			return RetryReasonDeadlock
		case "55P03":
			return RetryReasonLockTimeout
		}
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return RetryReasonLockTimeout
	}
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "lock_contention"):
		return RetryReasonLockContention
	case strings.Contains(msg, "stale_write"):
		return RetryReasonStaleWrite
	case strings.Contains(msg, "database is locked"), strings.Contains(msg, "sqlite_busy"):
		return RetryReasonBusy
	case strings.Contains(msg, "deadlock"):
		return RetryReasonDeadlock
	}
	return RetryReasonUnknown
}
