package scheduler

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/appointly/internal/clock"
	ledgerdomain "github.com/smallbiznis/appointly/internal/ledger/domain"
	"github.com/smallbiznis/appointly/internal/locking"
	obsmetrics "github.com/smallbiznis/appointly/internal/observability/metrics"
	paymentdomain "github.com/smallbiznis/appointly/internal/payment/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	JobLedgerAudit        = "ledger_audit"
	JobStalePaymentEvents = "stale_payment_events"
)

var ErrInvalidConfig = errors.New("invalid_scheduler_config")

type Params struct {
	fx.In

	DB          *gorm.DB
	Log         *zap.Logger
	LedgerSvc   ledgerdomain.Service
	PaymentRepo paymentdomain.Repository
	GenID       *snowflake.Node
	Clock       clock.Clock
	Config      Config              `optional:"true"`
	Locker      locking.Locker      `optional:"true"`
	ObsMetrics  *obsmetrics.Metrics `optional:"true"`
}

// Scheduler runs periodic maintenance jobs: the credit ledger drift audit and
// the sweep for payment events that never finished applying.
type Scheduler struct {
	db          *gorm.DB
	log         *zap.Logger
	cfg         Config
	genID       *snowflake.Node
	clock       clock.Clock
	ledgerSvc   ledgerdomain.Service
	paymentRepo paymentdomain.Repository
	locker      locking.Locker
	metrics     *obsmetrics.Metrics

	// auditCursor resumes the ledger audit where the previous run stopped.
	auditCursor snowflake.ID
}

func New(p Params) (*Scheduler, error) {
	if p.DB == nil || p.Log == nil || p.LedgerSvc == nil || p.PaymentRepo == nil || p.GenID == nil || p.Clock == nil {
		return nil, ErrInvalidConfig
	}
	return &Scheduler{
		db:          p.DB,
		log:         p.Log.Named("scheduler").With(zap.String("component", "scheduler")),
		cfg:         p.Config.withDefaults(),
		genID:       p.GenID,
		clock:       p.Clock,
		ledgerSvc:   p.LedgerSvc,
		paymentRepo: p.PaymentRepo,
		locker:      p.Locker,
		metrics:     p.ObsMetrics,
	}, nil
}

func (s *Scheduler) runJob(parent context.Context, name string, fn func(ctx context.Context) error) error {
	ctx, cancel := context.WithTimeout(parent, s.cfg.JobTimeout)
	defer cancel()

	ctx, run := s.startJobRun(ctx, name, s.cfg.BatchSize)
	s.logJobStart(ctx, run)

	var err error
	if s.locker != nil {
		err = locking.WithLock(ctx, s.locker, "scheduler", "scheduler:job:"+name, func() error {
			return fn(ctx)
		})
	} else {
		err = fn(ctx)
	}
	if err != nil && run.errorCount == 0 {
		run.IncError()
	}
	s.logJobFinish(ctx, run)

	switch {
	case err == nil:
		s.metrics.RecordSchedulerJob(ctx, name, "ok")
		return nil
	case errors.Is(err, locking.ErrLockContention):
		// another replica holds the job
		s.metrics.RecordSchedulerJob(ctx, name, "skipped")
		return nil
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		s.metrics.RecordSchedulerJob(ctx, name, "timeout")
		s.logger(ctx).Warn("job timed out",
			zap.String("job", name),
			zap.Duration("timeout", s.cfg.JobTimeout),
			zap.Error(err),
		)
		return nil
	default:
		s.metrics.RecordSchedulerJob(ctx, name, "failed")
		return fmt.Errorf("%s: %w", name, err)
	}
}

func (s *Scheduler) RunOnce(parent context.Context) error {
	var err error

	jobs := []struct {
		Name string
		Run  func(context.Context) error
	}{
		{JobLedgerAudit, s.LedgerAuditJob},
		{JobStalePaymentEvents, s.StalePaymentEventsJob},
	}

	for _, job := range jobs {
		if s.isJobEnabled(job.Name) {
			err = errors.Join(err, s.runJob(parent, job.Name, job.Run))
		}
	}
	return err
}

func (s *Scheduler) RunForever(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.RunInterval)
	defer ticker.Stop()

	for {
		if err := s.RunOnce(ctx); err != nil {
			s.log.Warn("scheduler run failed", zap.Error(err))
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (s *Scheduler) isJobEnabled(jobName string) bool {
	// empty means every job
	if len(s.cfg.EnabledJobs) == 0 {
		return true
	}
	for _, enabled := range s.cfg.EnabledJobs {
		if strings.EqualFold(enabled, jobName) {
			return true
		}
	}
	return false
}

// LedgerAuditJob replays one batch of accounts per run and reports any whose
// cached balance or chain has drifted. It never repairs; drift needs a human.
func (s *Scheduler) LedgerAuditJob(ctx context.Context) error {
	run := jobRunFromContext(ctx)

	ids, err := s.fetchAccountsForAudit(ctx, s.auditCursor, s.cfg.BatchSize)
	if err != nil {
		return err
	}
	if len(ids) < s.cfg.BatchSize {
		s.auditCursor = 0
	} else {
		s.auditCursor = ids[len(ids)-1]
	}

	var drifted int
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return err
		}
		result, err := s.ledgerSvc.Verify(ctx, id)
		switch {
		case err == nil:
		case errors.Is(err, ledgerdomain.ErrLedgerDrift):
			drifted++
			s.metrics.RecordLedgerDrift(ctx)
			fields := []zap.Field{
				zap.String("user_id", id.String()),
				zap.Int64("stored_balance", result.StoredBalance),
				zap.Int64("replayed_balance", result.ReplayedBalance),
				zap.Int("transactions", result.Transactions),
			}
			if result.BrokenAtSequence != nil {
				fields = append(fields, zap.Int64("broken_at_sequence", *result.BrokenAtSequence))
			}
			s.logger(ctx).Error("credit ledger drift detected", fields...)
		case errors.Is(err, ledgerdomain.ErrAccountNotFound):
			// deleted between listing and verifying
		default:
			run.IncError()
			s.logger(ctx).Warn("ledger verify failed", zap.String("user_id", id.String()), zap.Error(err))
		}
		run.AddProcessed(1)
	}

	if drifted > 0 {
		s.logger(ctx).Warn("ledger audit found drift", zap.Int("accounts", drifted))
	}
	return nil
}

// StalePaymentEventsJob surfaces events the reconciler accepted but never
// applied. The processor keeps redelivering them; this makes the backlog visible.
func (s *Scheduler) StalePaymentEventsJob(ctx context.Context) error {
	run := jobRunFromContext(ctx)
	cutoff := s.clock.Now().UTC().Add(-s.cfg.StaleEventAfter)

	events, err := s.paymentRepo.ListUnprocessed(ctx, s.db, cutoff, s.cfg.BatchSize)
	if err != nil {
		return err
	}

	perProvider := map[string]int{}
	for _, event := range events {
		perProvider[event.Provider]++
		s.logger(ctx).Warn("payment event not applied",
			zap.String("provider", event.Provider),
			zap.String("provider_event_id", event.ProviderEventID),
			zap.String("event_type", event.EventType),
			zap.Time("received_at", event.ReceivedAt),
		)
	}
	for provider, count := range perProvider {
		s.metrics.RecordStalePaymentEvents(ctx, provider, count)
	}
	run.AddProcessed(len(events))
	return nil
}

// fetchAccountsForAudit lists accounts holding credits or ledger history, by id.
func (s *Scheduler) fetchAccountsForAudit(ctx context.Context, afterID snowflake.ID, limit int) ([]snowflake.ID, error) {
	var rows []int64
	err := s.db.WithContext(ctx).Raw(
		`SELECT u.id
		 FROM users u
		 WHERE u.id > ?
		   AND (u.credits <> 0 OR EXISTS (
			   SELECT 1 FROM credit_transactions ct WHERE ct.user_id = u.id
		   ))
		 ORDER BY u.id
		 LIMIT ?`,
		afterID,
		limit,
	).Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	ids := make([]snowflake.ID, 0, len(rows))
	for _, row := range rows {
		ids = append(ids, snowflake.ID(row))
	}
	return ids, nil
}
