package service

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	auditdomain "github.com/smallbiznis/appointly/internal/audit/domain"
	"github.com/smallbiznis/appointly/internal/clock"
	"github.com/smallbiznis/appointly/internal/config"
	ledgerdomain "github.com/smallbiznis/appointly/internal/ledger/domain"
	"github.com/smallbiznis/appointly/internal/locking"
	obsmetrics "github.com/smallbiznis/appointly/internal/observability/metrics"
	"github.com/smallbiznis/appointly/pkg/db"
	"github.com/smallbiznis/appointly/pkg/db/pagination"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const lockResource = "ledger"

type Params struct {
	fx.In

	DB         *gorm.DB
	Log        *zap.Logger
	GenID      *snowflake.Node
	Repo       ledgerdomain.Repository
	Locker     locking.Locker
	Clock      clock.Clock          `optional:"true"`
	Policy     *config.PolicyHolder `optional:"true"`
	AuditSvc   auditdomain.Service  `optional:"true"`
	ObsMetrics *obsmetrics.Metrics  `optional:"true"`
}

type Service struct {
	db         *gorm.DB
	log        *zap.Logger
	genID      *snowflake.Node
	repo       ledgerdomain.Repository
	locker     locking.Locker
	clock      clock.Clock
	policy     *config.PolicyHolder
	auditSvc   auditdomain.Service
	obsMetrics *obsmetrics.Metrics
}

func NewService(p Params) ledgerdomain.Service {
	c := p.Clock
	if c == nil {
		c = clock.SystemClock{}
	}
	return &Service{
		db:         p.DB,
		log:        p.Log.Named("ledger.service"),
		genID:      p.GenID,
		repo:       p.Repo,
		locker:     p.Locker,
		clock:      c,
		policy:     p.Policy,
		auditSvc:   p.AuditSvc,
		obsMetrics: p.ObsMetrics,
	}
}

// AdjustBalance applies a signed credit delta and appends the matching ledger row.
// The balance update and the row insert commit together under the user's lock.
func (s *Service) AdjustBalance(ctx context.Context, req ledgerdomain.AdjustRequest) (ledgerdomain.AdjustResult, error) {
	if req.UserID == 0 {
		return ledgerdomain.AdjustResult{}, ledgerdomain.ErrInvalidUser
	}
	if req.Amount == 0 {
		return ledgerdomain.AdjustResult{}, ledgerdomain.ErrInvalidAmount
	}
	if !req.Type.Valid() {
		return ledgerdomain.AdjustResult{}, ledgerdomain.ErrInvalidType
	}
	req.Description = strings.TrimSpace(req.Description)
	req.RelatedID = normalizePointer(req.RelatedID)
	req.IdempotencyKey = normalizePointer(req.IdempotencyKey)

	if req.IdempotencyKey != nil {
		existing, err := s.repo.FindByIdempotencyKey(ctx, s.db, req.UserID, *req.IdempotencyKey)
		if err != nil {
			return ledgerdomain.AdjustResult{}, err
		}
		if existing != nil {
			return s.replay(ctx, req, existing)
		}
	}

	var (
		result   ledgerdomain.AdjustResult
		replayed *ledgerdomain.CreditTransaction
	)
	err := locking.Retry(ctx, locking.PolicyFrom(s.policy.Get().Retry), lockResource, func() error {
		return locking.WithLock(ctx, s.locker, lockResource, locking.UserKey(req.UserID), func() error {
			var err error
			result, replayed, err = s.adjustTx(ctx, req)
			return err
		})
	})
	if err != nil {
		switch {
		case errors.Is(err, ledgerdomain.ErrInsufficientFunds):
			s.obsMetrics.RecordLedgerRejection(ctx, "insufficient_funds")
		case errors.Is(err, ledgerdomain.ErrAccountNotFound):
			s.obsMetrics.RecordLedgerRejection(ctx, "account_not_found")
		case errors.Is(err, locking.ErrPersistenceConflict):
			s.obsMetrics.RecordLedgerRejection(ctx, "persistence_conflict")
			s.log.Warn("ledger adjustment gave up after retries",
				zap.String("user_id", req.UserID.String()),
				zap.Error(err),
			)
		}
		return ledgerdomain.AdjustResult{}, err
	}
	if replayed != nil {
		return s.replay(ctx, req, replayed)
	}

	s.obsMetrics.RecordLedgerAdjustment(ctx, string(req.Type), false)
	s.audit(ctx, result.Transaction)
	return result, nil
}

func (s *Service) adjustTx(ctx context.Context, req ledgerdomain.AdjustRequest) (ledgerdomain.AdjustResult, *ledgerdomain.CreditTransaction, error) {
	var (
		result   ledgerdomain.AdjustResult
		replayed *ledgerdomain.CreditTransaction
	)
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if req.IdempotencyKey != nil {
			existing, err := s.repo.FindByIdempotencyKey(ctx, tx, req.UserID, *req.IdempotencyKey)
			if err != nil {
				return err
			}
			if existing != nil {
				replayed = existing
				return nil
			}
		}

		balance, found, err := s.repo.LockBalance(ctx, tx, req.UserID)
		if err != nil {
			return err
		}
		if !found {
			return ledgerdomain.ErrAccountNotFound
		}

		next := balance + req.Amount
		if next < 0 {
			return ledgerdomain.ErrInsufficientFunds
		}

		seq, err := s.repo.LastSequence(ctx, tx, req.UserID)
		if err != nil {
			return err
		}

		now := s.clock.Now().UTC()
		ok, err := s.repo.CompareAndSetBalance(ctx, tx, req.UserID, balance, next, now)
		if err != nil {
			return err
		}
		if !ok {
			return locking.ErrStaleWrite
		}

		item := ledgerdomain.CreditTransaction{
			ID:             s.genID.Generate(),
			UserID:         req.UserID,
			Sequence:       seq + 1,
			Amount:         req.Amount,
			Type:           req.Type,
			Description:    req.Description,
			RelatedID:      req.RelatedID,
			IdempotencyKey: req.IdempotencyKey,
			BalanceAfter:   next,
			CreatedAt:      now,
		}
		if err := s.repo.Insert(ctx, tx, &item); err != nil {
			if db.IsDuplicateKeyErr(err) {
				return locking.ErrStaleWrite
			}
			return err
		}

		result = ledgerdomain.AdjustResult{NewBalance: next, Transaction: item}
		return nil
	})
	return result, replayed, err
}

func (s *Service) replay(ctx context.Context, req ledgerdomain.AdjustRequest, existing *ledgerdomain.CreditTransaction) (ledgerdomain.AdjustResult, error) {
	if existing.Amount != req.Amount || existing.Type != req.Type {
		return ledgerdomain.AdjustResult{}, ledgerdomain.ErrIdempotencyMismatch
	}
	s.obsMetrics.RecordLedgerAdjustment(ctx, string(req.Type), true)
	s.log.Debug("ledger adjustment replayed",
		zap.String("user_id", req.UserID.String()),
		zap.String("idempotency_key", *req.IdempotencyKey),
	)
	return ledgerdomain.AdjustResult{
		NewBalance:  existing.BalanceAfter,
		Transaction: *existing,
		Replayed:    true,
	}, nil
}

func (s *Service) audit(ctx context.Context, item ledgerdomain.CreditTransaction) {
	if s.auditSvc == nil {
		return
	}
	userID := item.UserID.String()
	metadata := map[string]any{
		"transaction_id": item.ID.String(),
		"amount":         item.Amount,
		"type":           string(item.Type),
		"balance_after":  item.BalanceAfter,
	}
	if item.RelatedID != nil {
		metadata["related_id"] = *item.RelatedID
	}
	if err := s.auditSvc.AuditLog(ctx, "", nil, "credits.adjusted", "user", &userID, metadata); err != nil {
		s.log.Warn("failed to write ledger audit log", zap.Error(err))
	}
}

func (s *Service) Balance(ctx context.Context, userID snowflake.ID) (int64, error) {
	if userID == 0 {
		return 0, ledgerdomain.ErrInvalidUser
	}
	balance, found, err := s.repo.Balance(ctx, s.db, userID)
	if err != nil {
		return 0, err
	}
	if !found {
		return 0, ledgerdomain.ErrAccountNotFound
	}
	return balance, nil
}

func (s *Service) History(ctx context.Context, req ledgerdomain.HistoryRequest) (ledgerdomain.HistoryResponse, error) {
	if req.UserID == 0 {
		return ledgerdomain.HistoryResponse{}, ledgerdomain.ErrInvalidUser
	}

	var before int64
	if token := strings.TrimSpace(req.PageToken); token != "" {
		cursor, err := pagination.DecodeCursor(token)
		if err != nil {
			return ledgerdomain.HistoryResponse{}, ledgerdomain.ErrInvalidPageToken
		}
		before, err = strconv.ParseInt(cursor.ID, 10, 64)
		if err != nil || before <= 0 {
			return ledgerdomain.HistoryResponse{}, ledgerdomain.ErrInvalidPageToken
		}
	}

	limit := req.Limit()
	items, err := s.repo.List(ctx, s.db, req.UserID, before, limit)
	if err != nil {
		return ledgerdomain.HistoryResponse{}, err
	}

	items, pageInfo := pagination.Page(items, limit, func(item ledgerdomain.CreditTransaction) pagination.Cursor {
		return pagination.Cursor{
			ID:        strconv.FormatInt(item.Sequence, 10),
			CreatedAt: item.CreatedAt.Format(time.RFC3339),
		}
	})
	if items == nil {
		items = []ledgerdomain.CreditTransaction{}
	}
	return ledgerdomain.HistoryResponse{PageInfo: pageInfo, Transactions: items}, nil
}

// Verify replays the user's history from zero and compares each BalanceAfter and the
// cached balance against the running total.
func (s *Service) Verify(ctx context.Context, userID snowflake.ID) (ledgerdomain.VerifyResult, error) {
	if userID == 0 {
		return ledgerdomain.VerifyResult{}, ledgerdomain.ErrInvalidUser
	}

	stored, found, err := s.repo.Balance(ctx, s.db, userID)
	if err != nil {
		return ledgerdomain.VerifyResult{}, err
	}
	if !found {
		return ledgerdomain.VerifyResult{}, ledgerdomain.ErrAccountNotFound
	}

	items, err := s.repo.ListAll(ctx, s.db, userID)
	if err != nil {
		return ledgerdomain.VerifyResult{}, err
	}

	result := ledgerdomain.VerifyResult{
		UserID:        userID,
		StoredBalance: stored,
		Transactions:  len(items),
	}
	var running int64
	for _, item := range items {
		running += item.Amount
		if item.BalanceAfter != running && result.BrokenAtSequence == nil {
			seq := item.Sequence
			result.BrokenAtSequence = &seq
		}
	}
	result.ReplayedBalance = running
	result.Consistent = result.BrokenAtSequence == nil && stored == running

	if !result.Consistent {
		s.log.Error("ledger drift detected",
			zap.String("user_id", userID.String()),
			zap.Int64("stored_balance", stored),
			zap.Int64("replayed_balance", running),
		)
		return result, ledgerdomain.ErrLedgerDrift
	}
	return result, nil
}

func normalizePointer(value *string) *string {
	if value == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*value)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}
