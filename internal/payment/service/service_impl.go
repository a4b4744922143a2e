package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	accountdomain "github.com/smallbiznis/appointly/internal/account/domain"
	auditdomain "github.com/smallbiznis/appointly/internal/audit/domain"
	bookingdomain "github.com/smallbiznis/appointly/internal/booking/domain"
	"github.com/smallbiznis/appointly/internal/breakdown"
	"github.com/smallbiznis/appointly/internal/clock"
	"github.com/smallbiznis/appointly/internal/config"
	ledgerdomain "github.com/smallbiznis/appointly/internal/ledger/domain"
	notificationdomain "github.com/smallbiznis/appointly/internal/notification/domain"
	obsmetrics "github.com/smallbiznis/appointly/internal/observability/metrics"
	paymentdomain "github.com/smallbiznis/appointly/internal/payment/domain"
	"github.com/smallbiznis/appointly/internal/payment/processor"
	"github.com/smallbiznis/appointly/internal/sideeffect"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	outcomeProcessed = "processed"
	outcomeDuplicate = "duplicate"
	outcomeFailed    = "failed"
)

type Params struct {
	fx.In

	DB          *gorm.DB
	Log         *zap.Logger
	GenID       *snowflake.Node
	Repo        paymentdomain.Repository
	LedgerSvc   ledgerdomain.Service
	BookingSvc  bookingdomain.Service
	BookingRepo bookingdomain.Repository
	Accounts    accountdomain.Repository
	Cfg         config.Config
	Processor   processor.Client            `optional:"true"`
	Notifier    notificationdomain.Notifier `optional:"true"`
	Breakdown   breakdown.Trigger           `optional:"true"`
	AuditSvc    auditdomain.Service         `optional:"true"`
	ObsMetrics  *obsmetrics.Metrics         `optional:"true"`
	Policy      *config.PolicyHolder        `optional:"true"`
	Clock       clock.Clock                 `optional:"true"`
	Runner      *sideeffect.Runner          `optional:"true"`
}

type Service struct {
	db          *gorm.DB
	log         *zap.Logger
	genID       *snowflake.Node
	repo        paymentdomain.Repository
	ledgerSvc   ledgerdomain.Service
	bookingSvc  bookingdomain.Service
	bookingRepo bookingdomain.Repository
	accounts    accountdomain.Repository
	processor   processor.Client
	notifier    notificationdomain.Notifier
	breakdown   breakdown.Trigger
	auditSvc    auditdomain.Service
	obsMetrics  *obsmetrics.Metrics
	policy      *config.PolicyHolder
	clock       clock.Clock
	runner      *sideeffect.Runner

	proPriceID      string
	businessPriceID string
	externalTimeout time.Duration
}

func NewService(p Params) paymentdomain.Reconciler {
	c := p.Clock
	if c == nil {
		c = clock.SystemClock{}
	}
	runner := p.Runner
	if runner == nil {
		runner = sideeffect.NewRunner(p.Log, p.Cfg.ExternalCallTimeout, p.ObsMetrics)
	}
	timeout := p.Cfg.ExternalCallTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Service{
		db:              p.DB,
		log:             p.Log.Named("payment.service"),
		genID:           p.GenID,
		repo:            p.Repo,
		ledgerSvc:       p.LedgerSvc,
		bookingSvc:      p.BookingSvc,
		bookingRepo:     p.BookingRepo,
		accounts:        p.Accounts,
		processor:       p.Processor,
		notifier:        p.Notifier,
		breakdown:       p.Breakdown,
		auditSvc:        p.AuditSvc,
		obsMetrics:      p.ObsMetrics,
		policy:          p.Policy,
		clock:           c,
		runner:          runner,
		proPriceID:      strings.TrimSpace(p.Cfg.Payment.ProPriceID),
		businessPriceID: strings.TrimSpace(p.Cfg.Payment.BusinessPriceID),
		externalTimeout: timeout,
	}
}

// Handle records the event and applies it. A redelivered event whose first
// delivery finished returns ErrEventAlreadyProcessed without touching state. An
// event whose first delivery failed stays unprocessed and is applied again; every
// mutation below is idempotent on its own so the retry cannot double-apply.
func (s *Service) Handle(ctx context.Context, event paymentdomain.Event, payload []byte) error {
	if event == nil {
		return paymentdomain.ErrInvalidEvent
	}
	meta := event.Meta()
	meta.Provider = strings.ToLower(strings.TrimSpace(meta.Provider))
	meta.ID = strings.TrimSpace(meta.ID)
	if meta.Provider == "" {
		return paymentdomain.ErrInvalidProvider
	}
	if meta.ID == "" {
		return paymentdomain.ErrInvalidEvent
	}
	if !json.Valid(payload) {
		return paymentdomain.ErrInvalidPayload
	}

	now := s.clock.Now().UTC()
	received := paymentdomain.EventRecord{
		ID:              s.genID.Generate(),
		Provider:        meta.Provider,
		ProviderEventID: meta.ID,
		EventType:       meta.Type,
		Payload:         datatypes.JSON(payload),
		ReceivedAt:      now,
	}

	inserted, err := s.repo.InsertEvent(ctx, s.db, &received)
	if err != nil {
		return err
	}
	stored := &received
	if !inserted {
		stored, err = s.repo.FindEvent(ctx, s.db, meta.Provider, meta.ID)
		if err != nil {
			return err
		}
		if stored == nil {
			return paymentdomain.ErrInvalidEvent
		}
		if stored.ProcessedAt != nil {
			s.obsMetrics.RecordPaymentEvent(ctx, meta.Provider, meta.Type, outcomeDuplicate)
			return paymentdomain.ErrEventAlreadyProcessed
		}
	}

	effects, err := s.apply(ctx, event, now)
	if err != nil {
		s.obsMetrics.RecordPaymentEvent(ctx, meta.Provider, meta.Type, outcomeFailed)
		s.log.Warn("payment event not applied",
			zap.String("provider", meta.Provider),
			zap.String("event_id", meta.ID),
			zap.String("event_type", meta.Type),
			zap.Error(err),
		)
		return err
	}

	if err := s.repo.MarkProcessed(ctx, s.db, stored.ID, s.clock.Now().UTC()); err != nil {
		return err
	}
	s.obsMetrics.RecordPaymentEvent(ctx, meta.Provider, meta.Type, outcomeProcessed)

	s.runner.Run(ctx, effects...)
	return nil
}

// apply performs the authoritative mutation for one event and returns the
// best-effort work to run once the event is marked processed.
func (s *Service) apply(ctx context.Context, event paymentdomain.Event, now time.Time) ([]sideeffect.Effect, error) {
	switch e := event.(type) {
	case paymentdomain.CheckoutSubscriptionCompleted:
		return nil, s.applySubscriptionCheckout(ctx, e, now)
	case paymentdomain.CheckoutBookingCompleted:
		return s.applyBookingCheckout(ctx, e, now)
	case paymentdomain.CheckoutCreditsCompleted:
		return s.applyCreditPurchase(ctx, e)
	case paymentdomain.SubscriptionChanged:
		return nil, s.applySubscriptionChange(ctx, e, now)
	case paymentdomain.InvoicePaid:
		return s.applyInvoicePaid(ctx, e)
	case paymentdomain.PaymentFailed:
		s.log.Info("payment failed",
			zap.String("event_id", e.ID),
			zap.String("customer_id", e.CustomerID),
			zap.String("reference", e.Reference),
			zap.String("reason", e.Reason),
		)
		return []sideeffect.Effect{s.auditEffect("payment.failed", "customer", e.CustomerID, map[string]any{
			"event_id":  e.ID,
			"reference": e.Reference,
			"reason":    e.Reason,
		})}, nil
	default:
		return nil, fmt.Errorf("%w: unsupported event %T", paymentdomain.ErrInvalidEvent, event)
	}
}

func (s *Service) applySubscriptionCheckout(ctx context.Context, e paymentdomain.CheckoutSubscriptionCompleted, now time.Time) error {
	account, err := s.accounts.FindByID(ctx, s.db, e.UserID)
	if err != nil {
		return err
	}
	if account == nil {
		s.log.Warn("subscription checkout for unknown user", zap.String("user_id", e.UserID.String()), zap.String("event_id", e.ID))
		return nil
	}

	update := accountdomain.SubscriptionUpdate{
		Status:         accountdomain.SubscriptionActive,
		CustomerID:     nonEmpty(e.CustomerID),
		SubscriptionID: nonEmpty(e.SubscriptionID),
	}
	priceID := e.PlanID

	if s.processor != nil {
		callCtx, cancel := context.WithTimeout(ctx, s.externalTimeout)
		sub, err := s.processor.GetSubscription(callCtx, e.SubscriptionID)
		cancel()
		if errors.Is(err, processor.ErrNotFound) {
			s.log.Warn("checkout references unknown subscription", zap.String("subscription_id", e.SubscriptionID), zap.String("event_id", e.ID))
			return nil
		}
		if err != nil {
			return err
		}
		update.Status = accountdomain.ParseSubscriptionStatus(sub.Status)
		update.PeriodEnd = sub.CurrentPeriodEnd
		if sub.CustomerID != "" {
			update.CustomerID = nonEmpty(sub.CustomerID)
		}
		if sub.PriceID != "" {
			priceID = sub.PriceID
		}
	} else {
		s.log.Warn("payment processor not configured; trusting checkout status", zap.String("event_id", e.ID))
	}

	if tier, ok := s.tierForPrice(priceID); ok {
		update.Tier = &tier
	} else if priceID != "" {
		s.log.Warn("unknown plan; tier left unchanged", zap.String("plan_id", priceID), zap.String("event_id", e.ID))
	}

	return s.accounts.UpdateSubscription(ctx, s.db, account.ID, update, now)
}

func (s *Service) applyBookingCheckout(ctx context.Context, e paymentdomain.CheckoutBookingCompleted, now time.Time) ([]sideeffect.Effect, error) {
	b, updated, err := s.bookingSvc.MarkPaid(ctx, e.BookingID, e.PaymentReference, now)
	if errors.Is(err, bookingdomain.ErrNotFound) {
		s.log.Warn("booking checkout for unknown booking", zap.String("booking_id", e.BookingID.String()), zap.String("event_id", e.ID))
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if !updated {
		return nil, nil
	}

	tech, err := s.bookingRepo.FindTechProfile(ctx, s.db, b.TechProfileID)
	if err != nil {
		s.log.Warn("failed to load tech for paid booking", zap.String("booking_id", b.ID.String()), zap.Error(err))
	}

	var effects []sideeffect.Effect
	bookingID := b.ID.String()
	if tech != nil {
		effects = append(effects, s.notifyEffect(notificationdomain.Message{
			UserID:    tech.UserID,
			Type:      notificationdomain.TypeBookingPaid,
			Title:     "Booking paid",
			Message:   fmt.Sprintf("Payment received for the booking on %s.", b.AppointmentStart.UTC().Format("Jan 2 15:04")),
			RelatedID: &bookingID,
		}))
	}
	if b.DesignID != nil && s.breakdown != nil {
		designID := *b.DesignID
		effects = append(effects, sideeffect.Effect{
			Name: "breakdown.request",
			Run: func(ctx context.Context) error {
				return s.breakdown.RequestBreakdown(ctx, b.ID, designID)
			},
		})
	}
	return effects, nil
}

func (s *Service) applyCreditPurchase(ctx context.Context, e paymentdomain.CheckoutCreditsCompleted) ([]sideeffect.Effect, error) {
	return s.grantCredits(ctx, e.EventMeta, e.UserID, e.Credits, ledgerdomain.TransactionTypePurchase,
		fmt.Sprintf("Purchased %d credits", e.Credits), e.PaymentReference)
}

func (s *Service) applySubscriptionChange(ctx context.Context, e paymentdomain.SubscriptionChanged, now time.Time) error {
	account, err := s.accountForProcessor(ctx, e.SubscriptionID, e.CustomerID)
	if err != nil {
		return err
	}
	if account == nil {
		s.log.Warn("subscription change for unknown account",
			zap.String("subscription_id", e.SubscriptionID),
			zap.String("customer_id", e.CustomerID),
			zap.String("event_id", e.ID),
		)
		return nil
	}

	update := accountdomain.SubscriptionUpdate{
		Status:         accountdomain.ParseSubscriptionStatus(e.Status),
		PeriodEnd:      e.CurrentPeriodEnd,
		CustomerID:     nonEmpty(e.CustomerID),
		SubscriptionID: nonEmpty(e.SubscriptionID),
	}
	if e.Deleted {
		free := accountdomain.TierFree
		update.Status = accountdomain.SubscriptionCanceled
		update.Tier = &free
	} else if tier, ok := s.tierForPrice(e.PriceID); ok {
		update.Tier = &tier
	}
	return s.accounts.UpdateSubscription(ctx, s.db, account.ID, update, now)
}

func (s *Service) applyInvoicePaid(ctx context.Context, e paymentdomain.InvoicePaid) ([]sideeffect.Effect, error) {
	account, err := s.accountForProcessor(ctx, e.SubscriptionID, e.CustomerID)
	if err != nil {
		return nil, err
	}
	if account == nil {
		// the subscription checkout that links the customer may still be in flight
		return nil, fmt.Errorf("invoice %s for customer %s: %w", e.InvoiceID, e.CustomerID, paymentdomain.ErrAccountNotLinked)
	}

	credits := s.policy.Get().CreditsForTier(string(account.SubscriptionTier))
	if credits <= 0 {
		return nil, nil
	}
	return s.grantCredits(ctx, e.EventMeta, account.ID, credits, ledgerdomain.TransactionTypeSubscription,
		fmt.Sprintf("Monthly %s credits", account.SubscriptionTier), e.InvoiceID)
}

// grantCredits keys the ledger row on the event id, so a second delivery replays
// the first row instead of adding to the balance.
func (s *Service) grantCredits(ctx context.Context, meta paymentdomain.EventMeta, userID snowflake.ID, credits int64, txType ledgerdomain.TransactionType, description, reference string) ([]sideeffect.Effect, error) {
	key := meta.Provider + ":" + meta.ID
	res, err := s.ledgerSvc.AdjustBalance(ctx, ledgerdomain.AdjustRequest{
		UserID:         userID,
		Amount:         credits,
		Type:           txType,
		Description:    description,
		RelatedID:      nonEmpty(reference),
		IdempotencyKey: &key,
	})
	if errors.Is(err, ledgerdomain.ErrAccountNotFound) {
		s.log.Warn("credit grant for unknown account", zap.String("user_id", userID.String()), zap.String("event_id", meta.ID))
		return nil, nil
	}
	if errors.Is(err, ledgerdomain.ErrIdempotencyMismatch) {
		s.log.Warn("credit grant already recorded with a different amount", zap.String("user_id", userID.String()), zap.String("event_id", meta.ID))
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if res.Replayed {
		return nil, nil
	}
	txID := res.Transaction.ID.String()
	return []sideeffect.Effect{s.notifyEffect(notificationdomain.Message{
		UserID:    userID,
		Type:      notificationdomain.TypeCreditsGranted,
		Title:     "Credits added",
		Message:   fmt.Sprintf("%d credits were added to your balance.", credits),
		RelatedID: &txID,
	})}, nil
}

func (s *Service) accountForProcessor(ctx context.Context, subscriptionID, customerID string) (*accountdomain.Account, error) {
	if subscriptionID != "" {
		account, err := s.accounts.FindByProcessorSubscriptionID(ctx, s.db, subscriptionID)
		if err != nil || account != nil {
			return account, err
		}
	}
	if customerID == "" {
		return nil, nil
	}
	return s.accounts.FindByProcessorCustomerID(ctx, s.db, customerID)
}

func (s *Service) tierForPrice(priceID string) (accountdomain.Tier, bool) {
	priceID = strings.TrimSpace(priceID)
	switch {
	case priceID == "":
		return "", false
	case s.proPriceID != "" && priceID == s.proPriceID:
		return accountdomain.TierPro, true
	case s.businessPriceID != "" && priceID == s.businessPriceID:
		return accountdomain.TierBusiness, true
	}
	switch accountdomain.Tier(strings.ToLower(priceID)) {
	case accountdomain.TierPro:
		return accountdomain.TierPro, true
	case accountdomain.TierBusiness:
		return accountdomain.TierBusiness, true
	}
	return "", false
}

func (s *Service) notifyEffect(msg notificationdomain.Message) sideeffect.Effect {
	return sideeffect.Effect{
		Name: "notify." + string(msg.Type),
		Run: func(ctx context.Context) error {
			if s.notifier == nil {
				return nil
			}
			return s.notifier.Notify(ctx, msg)
		},
	}
}

func (s *Service) auditEffect(action, targetType, targetID string, metadata map[string]any) sideeffect.Effect {
	return sideeffect.Effect{
		Name: "audit." + action,
		Run: func(ctx context.Context) error {
			if s.auditSvc == nil {
				return nil
			}
			return s.auditSvc.AuditLog(ctx, auditdomain.ActorTypeProcessor, nil, action, targetType, nonEmpty(targetID), metadata)
		},
	}
}

func nonEmpty(value string) *string {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil
	}
	return &value
}
