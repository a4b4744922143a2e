package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/appointly/internal/actor"
	accountdomain "github.com/smallbiznis/appointly/internal/account/domain"
	auditdomain "github.com/smallbiznis/appointly/internal/audit/domain"
	"github.com/smallbiznis/appointly/internal/authorization"
	bookingdomain "github.com/smallbiznis/appointly/internal/booking/domain"
	"github.com/smallbiznis/appointly/internal/clock"
	"github.com/smallbiznis/appointly/internal/config"
	"github.com/smallbiznis/appointly/internal/fee"
	"github.com/smallbiznis/appointly/internal/locking"
	notificationdomain "github.com/smallbiznis/appointly/internal/notification/domain"
	obsmetrics "github.com/smallbiznis/appointly/internal/observability/metrics"
	"github.com/smallbiznis/appointly/internal/payment/processor"
	"github.com/smallbiznis/appointly/internal/sideeffect"
	"github.com/smallbiznis/appointly/pkg/db/pagination"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const lockResource = "booking"

type Params struct {
	fx.In

	DB         *gorm.DB
	Log        *zap.Logger
	GenID      *snowflake.Node
	Repo       bookingdomain.Repository
	Accounts   accountdomain.Repository
	Locker     locking.Locker
	Cfg        config.Config
	Clock      clock.Clock                 `optional:"true"`
	Policy     *config.PolicyHolder        `optional:"true"`
	Authorizer authorization.Service       `optional:"true"`
	Processor  processor.Client            `optional:"true"`
	Notifier   notificationdomain.Notifier `optional:"true"`
	AuditSvc   auditdomain.Service         `optional:"true"`
	ObsMetrics *obsmetrics.Metrics         `optional:"true"`
	Runner     *sideeffect.Runner          `optional:"true"`
}

type Service struct {
	db         *gorm.DB
	log        *zap.Logger
	genID      *snowflake.Node
	repo       bookingdomain.Repository
	accounts   accountdomain.Repository
	locker     locking.Locker
	clock      clock.Clock
	policy     *config.PolicyHolder
	authorizer authorization.Service
	processor  processor.Client
	notifier   notificationdomain.Notifier
	auditSvc   auditdomain.Service
	obsMetrics *obsmetrics.Metrics
	runner     *sideeffect.Runner

	externalTimeout time.Duration
}

func NewService(p Params) bookingdomain.Service {
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
		log:             p.Log.Named("booking.service"),
		genID:           p.GenID,
		repo:            p.Repo,
		accounts:        p.Accounts,
		locker:          p.Locker,
		clock:           c,
		policy:          p.Policy,
		authorizer:      p.Authorizer,
		processor:       p.Processor,
		notifier:        p.Notifier,
		auditSvc:        p.AuditSvc,
		obsMetrics:      p.ObsMetrics,
		runner:          runner,
		externalTimeout: timeout,
	}
}

// Create validates the request, prices it from the service catalog, and inserts a
// pending booking. The overlap check and the insert run in one transaction under
// the tech's lock, so two requests for the same slot cannot both succeed.
func (s *Service) Create(ctx context.Context, req bookingdomain.CreateBookingRequest) (*bookingdomain.Booking, error) {
	a := req.Actor
	if err := s.authorize(ctx, a, bookingdomain.ActionCreate); err != nil {
		return nil, err
	}

	booking := bookingdomain.Booking{
		TechProfileID: req.TechProfileID,
		ServiceID:     req.ServiceID,
		DesignID:      req.DesignID,
		Notes:         normalizePointer(req.Notes),
		PaymentStatus: bookingdomain.PaymentStatusPending,
		Status:        bookingdomain.StatusPending,
	}

	switch a.Type {
	case actor.TypeClient:
		if a.UserID == 0 {
			return nil, bookingdomain.ErrInvalidClient
		}
		clientID := a.UserID
		booking.ClientID = &clientID
	case actor.TypeGuest:
		guest, err := normalizeGuest(req.Guest)
		if err != nil {
			return nil, err
		}
		booking.GuestEmail = &guest.Email
		booking.GuestPhone = &guest.Phone
		booking.GuestName = &guest.Name
	}

	now := s.clock.Now().UTC()
	start, err := validateStart(req.AppointmentStart)
	if err != nil {
		return nil, err
	}
	if !start.After(now) {
		return nil, bookingdomain.ErrInvalidStart
	}

	if req.TechProfileID == 0 {
		return nil, bookingdomain.ErrTechNotFound
	}
	tech, err := s.repo.FindTechProfile(ctx, s.db, req.TechProfileID)
	if err != nil {
		return nil, err
	}
	if tech == nil {
		return nil, bookingdomain.ErrTechNotFound
	}

	catalog, err := s.repo.FindService(ctx, s.db, req.ServiceID)
	if err != nil {
		return nil, err
	}
	if catalog == nil || catalog.TechProfileID != tech.ID {
		return nil, bookingdomain.ErrServiceNotFound
	}
	if !catalog.Active {
		return nil, bookingdomain.ErrServiceInactive
	}
	if catalog.DurationMinutes <= 0 {
		return nil, bookingdomain.ErrInvalidDuration
	}

	fees, err := fee.ComputeBookingFees(catalog.Price)
	if err != nil {
		return nil, err
	}

	candidate := bookingdomain.NewInterval(start, catalog.DurationMinutes)
	booking.ID = s.genID.Generate()
	booking.AppointmentStart = candidate.Start
	booking.AppointmentEnd = candidate.End
	booking.DurationMinutes = catalog.DurationMinutes
	booking.ServicePrice = fees.ServicePrice
	booking.ServiceFee = fees.ServiceFee
	booking.TotalPrice = fees.TotalPrice
	booking.CreatedAt = now
	booking.UpdatedAt = now

	err = locking.Retry(ctx, locking.PolicyFrom(s.policy.Get().Retry), lockResource, func() error {
		return locking.WithLock(ctx, s.locker, lockResource, locking.TechKey(tech.ID), func() error {
			return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
				locked, err := s.repo.LockTechProfile(ctx, tx, tech.ID)
				if err != nil {
					return err
				}
				if locked == nil {
					return bookingdomain.ErrTechNotFound
				}
				if err := s.checkConflicts(ctx, tx, tech.ID, candidate); err != nil {
					return err
				}
				return s.repo.Insert(ctx, tx, &booking)
			})
		})
	})
	if err != nil {
		if isConflict(err) {
			s.obsMetrics.RecordBookingConflict(ctx)
		}
		return nil, err
	}

	s.obsMetrics.RecordBookingCreated(ctx, string(a.Type))
	s.log.Info("booking created",
		zap.String("booking_id", booking.ID.String()),
		zap.String("tech_profile_id", tech.ID.String()),
		zap.String("actor_type", string(a.Type)),
	)

	created := booking
	s.runner.Run(ctx,
		s.auditEffect(a, "booking.created", created, map[string]any{
			"status":      string(created.Status),
			"total_price": created.TotalPrice.StringFixed(2),
		}),
		s.notifyEffect(tech.UserID, notificationdomain.TypeBookingRequested,
			"New booking request",
			fmt.Sprintf("You have a new booking request for %s.", created.AppointmentStart.Format(time.RFC1123)),
			created.ID),
	)
	return &created, nil
}

func (s *Service) Confirm(ctx context.Context, req bookingdomain.TransitionRequest) (bookingdomain.TransitionResult, error) {
	return s.Transition(ctx, bookingdomain.ActionConfirm, req)
}

func (s *Service) Decline(ctx context.Context, req bookingdomain.TransitionRequest) (bookingdomain.TransitionResult, error) {
	return s.Transition(ctx, bookingdomain.ActionDecline, req)
}

func (s *Service) Cancel(ctx context.Context, req bookingdomain.TransitionRequest) (bookingdomain.TransitionResult, error) {
	return s.Transition(ctx, bookingdomain.ActionCancel, req)
}

func (s *Service) Complete(ctx context.Context, req bookingdomain.TransitionRequest) (bookingdomain.TransitionResult, error) {
	return s.Transition(ctx, bookingdomain.ActionComplete, req)
}

func (s *Service) MarkNoShow(ctx context.Context, req bookingdomain.TransitionRequest) (bookingdomain.TransitionResult, error) {
	return s.Transition(ctx, bookingdomain.ActionNoShow, req)
}

// Transition applies action to an existing booking. The status write commits before
// any side effect runs; a no-show fee is charged afterwards with no lock held.
func (s *Service) Transition(ctx context.Context, action bookingdomain.Action, req bookingdomain.TransitionRequest) (bookingdomain.TransitionResult, error) {
	t, ok := bookingdomain.LookupTransition(action)
	if !ok || action == bookingdomain.ActionCreate {
		return bookingdomain.TransitionResult{}, bookingdomain.ErrInvalidAction
	}
	if req.BookingID == 0 {
		return bookingdomain.TransitionResult{}, bookingdomain.ErrNotFound
	}
	if err := s.authorize(ctx, req.Actor, action); err != nil {
		return bookingdomain.TransitionResult{}, err
	}

	var reason *string
	if action == bookingdomain.ActionCancel || action == bookingdomain.ActionDecline {
		reason = normalizePointer(req.Reason)
	}

	var (
		from    bookingdomain.Status
		updated bookingdomain.Booking
		tech    *bookingdomain.TechProfile
	)
	err := locking.Retry(ctx, locking.PolicyFrom(s.policy.Get().Retry), lockResource, func() error {
		return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			b, err := s.repo.LockByID(ctx, tx, req.BookingID)
			if err != nil {
				return err
			}
			if b == nil {
				return bookingdomain.ErrNotFound
			}

			tech, err = s.repo.FindTechProfile(ctx, tx, b.TechProfileID)
			if err != nil {
				return err
			}
			if tech == nil {
				return bookingdomain.ErrTechNotFound
			}
			if !isParty(req.Actor, b, tech) {
				return &bookingdomain.TransitionError{
					Action: action,
					From:   b.Status,
					Reason: "actor is not a party to this booking",
				}
			}
			if !t.AllowsFrom(b.Status) {
				return &bookingdomain.TransitionError{
					Action: action,
					From:   b.Status,
					Reason: "not allowed from the current status",
				}
			}

			now := s.clock.Now().UTC()
			ok, err := s.repo.UpdateStatus(ctx, tx, b.ID, b.Status, t.To, reason, now)
			if err != nil {
				return err
			}
			if !ok {
				return locking.ErrStaleWrite
			}

			from = b.Status
			updated = *b
			updated.Status = t.To
			updated.UpdatedAt = now
			if reason != nil {
				updated.CancellationReason = reason
			}
			return nil
		})
	})
	if err != nil {
		return bookingdomain.TransitionResult{}, err
	}

	s.obsMetrics.RecordBookingTransition(ctx, string(action), string(t.To))
	s.log.Info("booking transitioned",
		zap.String("booking_id", updated.ID.String()),
		zap.String("action", string(action)),
		zap.String("from", string(from)),
		zap.String("to", string(t.To)),
	)

	result := bookingdomain.TransitionResult{}
	if action == bookingdomain.ActionNoShow {
		result.FeeChargeError = s.chargeNoShowFee(ctx, &updated, tech)
	}
	result.Booking = updated

	metadata := map[string]any{
		"from": string(from),
		"to":   string(t.To),
	}
	if reason != nil {
		metadata["reason"] = *reason
	}
	effects := []sideeffect.Effect{
		s.auditEffect(req.Actor, "booking."+string(action), updated, metadata),
	}
	effects = append(effects, s.transitionNotifications(action, req.Actor, updated, tech)...)
	s.runner.Run(ctx, effects...)

	return result, nil
}

// chargeNoShowFee collects the tech's no-show fee from the client's stored payment
// method. The returned error is reported to the caller; the booking stays no_show.
func (s *Service) chargeNoShowFee(ctx context.Context, b *bookingdomain.Booking, tech *bookingdomain.TechProfile) error {
	if tech == nil || !tech.NoShowFeeEnabled || tech.NoShowFeePercent <= 0 {
		return nil
	}
	amount, err := fee.ComputeNoShowFee(b.TotalPrice, tech.NoShowFeePercent)
	if err != nil {
		return fmt.Errorf("%w: %w", bookingdomain.ErrFeeChargeFailed, err)
	}
	if !amount.IsPositive() {
		return nil
	}
	if b.IsGuest() {
		return fmt.Errorf("%w: %w", bookingdomain.ErrFeeChargeFailed, bookingdomain.ErrNoPaymentMethod)
	}
	if s.processor == nil {
		return fmt.Errorf("%w: %w", bookingdomain.ErrFeeChargeFailed, processor.ErrNotConfigured)
	}

	account, err := s.accounts.FindByID(ctx, s.db, *b.ClientID)
	if err != nil {
		return fmt.Errorf("%w: %w", bookingdomain.ErrFeeChargeFailed, err)
	}
	if account == nil || account.ProcessorCustomerID == nil || account.DefaultPaymentMethodID == nil {
		return fmt.Errorf("%w: %w", bookingdomain.ErrFeeChargeFailed, bookingdomain.ErrNoPaymentMethod)
	}

	chargeCtx, cancel := context.WithTimeout(ctx, s.externalTimeout)
	defer cancel()

	bookingID := b.ID.String()
	charge, err := s.processor.ChargeOffSession(chargeCtx, processor.ChargeRequest{
		CustomerID:      *account.ProcessorCustomerID,
		PaymentMethodID: *account.DefaultPaymentMethodID,
		AmountMinor:     fee.MinorUnits(amount),
		Currency:        processor.DefaultCurrency,
		Description:     "No-show fee for booking " + bookingID,
		IdempotencyKey:  "no_show:" + bookingID,
		Metadata:        map[string]string{"booking_id": bookingID, "kind": "no_show_fee"},
	})
	if err != nil {
		s.log.Warn("no-show fee charge failed",
			zap.String("booking_id", bookingID),
			zap.String("amount", amount.StringFixed(2)),
			zap.Error(err),
		)
		return fmt.Errorf("%w: %w", bookingdomain.ErrFeeChargeFailed, err)
	}

	now := s.clock.Now().UTC()
	recorded, err := s.repo.RecordNoShowFee(ctx, s.db, b.ID, amount, now)
	if err != nil {
		s.log.Error("no-show fee charged but not recorded",
			zap.String("booking_id", bookingID),
			zap.String("charge_id", charge.ID),
			zap.Error(err),
		)
		return fmt.Errorf("%w: %w", bookingdomain.ErrFeeChargeFailed, err)
	}
	if recorded {
		b.NoShowFeeCharged = true
		b.NoShowFeeAmount = &amount
		b.UpdatedAt = now
	}
	s.log.Info("no-show fee charged",
		zap.String("booking_id", bookingID),
		zap.String("charge_id", charge.ID),
		zap.String("amount", amount.StringFixed(2)),
	)
	return nil
}

func (s *Service) transitionNotifications(action bookingdomain.Action, a actor.Actor, b bookingdomain.Booking, tech *bookingdomain.TechProfile) []sideeffect.Effect {
	when := b.AppointmentStart.Format(time.RFC1123)
	var out []sideeffect.Effect
	switch action {
	case bookingdomain.ActionConfirm:
		if b.ClientID != nil {
			out = append(out, s.notifyEffect(*b.ClientID, notificationdomain.TypeBookingConfirmed,
				"Booking confirmed", "Your booking for "+when+" is confirmed.", b.ID))
		}
	case bookingdomain.ActionCancel, bookingdomain.ActionDecline:
		message := "The booking for " + when + " was cancelled."
		if a.Type == actor.TypeClient && tech != nil {
			out = append(out, s.notifyEffect(tech.UserID, notificationdomain.TypeBookingCancelled,
				"Booking cancelled", message, b.ID))
		} else if b.ClientID != nil {
			out = append(out, s.notifyEffect(*b.ClientID, notificationdomain.TypeBookingCancelled,
				"Booking cancelled", message, b.ID))
		}
	case bookingdomain.ActionComplete:
		if b.ClientID != nil {
			out = append(out, s.notifyEffect(*b.ClientID, notificationdomain.TypeReviewRequest,
				"How was your appointment?", "Leave a review for your appointment on "+when+".", b.ID))
		}
	case bookingdomain.ActionNoShow:
		if b.ClientID != nil {
			message := "You were marked as a no-show for your appointment on " + when + "."
			if b.NoShowFeeCharged && b.NoShowFeeAmount != nil {
				message += " A no-show fee of " + b.NoShowFeeAmount.StringFixed(2) + " was charged."
			}
			out = append(out, s.notifyEffect(*b.ClientID, notificationdomain.TypeBookingNoShow,
				"Missed appointment", message, b.ID))
		}
	}
	return out
}

// MarkPaid flips payment_status from pending to paid. It never touches status.
func (s *Service) MarkPaid(ctx context.Context, id snowflake.ID, reference string, paidAt time.Time) (*bookingdomain.Booking, bool, error) {
	if id == 0 {
		return nil, false, bookingdomain.ErrNotFound
	}
	existing, err := s.repo.FindByID(ctx, s.db, id)
	if err != nil {
		return nil, false, err
	}
	if existing == nil {
		return nil, false, bookingdomain.ErrNotFound
	}
	if existing.PaymentStatus == bookingdomain.PaymentStatusPaid {
		return existing, false, nil
	}

	updated, err := s.repo.MarkPaid(ctx, s.db, id, strings.TrimSpace(reference), paidAt.UTC())
	if err != nil {
		return nil, false, err
	}
	current, err := s.repo.FindByID(ctx, s.db, id)
	if err != nil {
		return nil, false, err
	}
	if current == nil {
		return nil, false, bookingdomain.ErrNotFound
	}
	if updated {
		s.runner.Run(ctx, s.auditEffect(actor.System(), "booking.paid", *current, map[string]any{
			"payment_reference": reference,
		}))
	}
	return current, updated, nil
}

// Get returns the booking to one of its parties. Everyone else sees not found.
func (s *Service) Get(ctx context.Context, a actor.Actor, id snowflake.ID) (*bookingdomain.Booking, error) {
	if id == 0 {
		return nil, bookingdomain.ErrNotFound
	}
	if s.authorizer != nil {
		if err := s.authorizer.Authorize(ctx, a, bookingdomain.ObjectBooking, authorization.ActionView); err != nil {
			return nil, bookingdomain.ErrNotFound
		}
	}
	b, err := s.repo.FindByID(ctx, s.db, id)
	if err != nil {
		return nil, err
	}
	if b == nil {
		return nil, bookingdomain.ErrNotFound
	}
	if a.Type == actor.TypeSystem {
		return b, nil
	}
	var tech *bookingdomain.TechProfile
	if a.Type == actor.TypeTech {
		tech, err = s.repo.FindTechProfile(ctx, s.db, b.TechProfileID)
		if err != nil {
			return nil, err
		}
	}
	if !isParty(a, b, tech) {
		return nil, bookingdomain.ErrNotFound
	}
	return b, nil
}

func (s *Service) ListForTech(ctx context.Context, req bookingdomain.ListForTechRequest) (bookingdomain.ListResponse, error) {
	if req.TechProfileID == 0 {
		return bookingdomain.ListResponse{}, bookingdomain.ErrTechNotFound
	}
	if s.authorizer != nil {
		if err := s.authorizer.Authorize(ctx, req.Actor, bookingdomain.ObjectBooking, authorization.ActionList); err != nil {
			return bookingdomain.ListResponse{}, bookingdomain.ErrForbidden
		}
	}
	tech, err := s.repo.FindTechProfile(ctx, s.db, req.TechProfileID)
	if err != nil {
		return bookingdomain.ListResponse{}, err
	}
	if tech == nil {
		return bookingdomain.ListResponse{}, bookingdomain.ErrTechNotFound
	}
	switch req.Actor.Type {
	case actor.TypeSystem:
	case actor.TypeTech:
		if req.Actor.UserID == 0 || tech.UserID != req.Actor.UserID {
			return bookingdomain.ListResponse{}, bookingdomain.ErrForbidden
		}
	default:
		return bookingdomain.ListResponse{}, bookingdomain.ErrForbidden
	}

	for _, status := range req.Statuses {
		if !status.Valid() {
			return bookingdomain.ListResponse{}, fmt.Errorf("%w: %q", bookingdomain.ErrInvalidStatus, status)
		}
	}

	filter := bookingdomain.ListFilter{
		TechProfileID: tech.ID,
		Statuses:      req.Statuses,
		From:          req.From,
		To:            req.To,
		Limit:         req.Limit(),
	}
	if token := strings.TrimSpace(req.PageToken); token != "" {
		cursor, err := pagination.DecodeCursor(token)
		if err != nil {
			return bookingdomain.ListResponse{}, bookingdomain.ErrInvalidPageToken
		}
		afterStart, err := time.Parse(time.RFC3339, cursor.CreatedAt)
		if err != nil {
			return bookingdomain.ListResponse{}, bookingdomain.ErrInvalidPageToken
		}
		afterID, err := strconv.ParseInt(cursor.ID, 10, 64)
		if err != nil || afterID <= 0 {
			return bookingdomain.ListResponse{}, bookingdomain.ErrInvalidPageToken
		}
		afterStart = afterStart.UTC()
		filter.AfterStart = &afterStart
		filter.AfterID = snowflake.ID(afterID)
	}

	items, err := s.repo.List(ctx, s.db, filter)
	if err != nil {
		return bookingdomain.ListResponse{}, err
	}
	items, pageInfo := pagination.Page(items, filter.Limit, func(b bookingdomain.Booking) pagination.Cursor {
		return pagination.Cursor{
			ID:        b.ID.String(),
			CreatedAt: b.AppointmentStart.UTC().Format(time.RFC3339),
		}
	})
	if items == nil {
		items = []bookingdomain.Booking{}
	}
	return bookingdomain.ListResponse{PageInfo: pageInfo, Bookings: items}, nil
}

// authorize checks the role policy for action. A refused actor gets an
// InvalidTransition so callers see one error for every "not yours to do".
func (s *Service) authorize(ctx context.Context, a actor.Actor, action bookingdomain.Action) error {
	t, ok := bookingdomain.LookupTransition(action)
	if !ok {
		return bookingdomain.ErrInvalidAction
	}
	if s.authorizer != nil {
		if err := s.authorizer.Authorize(ctx, a, bookingdomain.ObjectBooking, string(action)); err != nil {
			if errors.Is(err, authorization.ErrForbidden) || errors.Is(err, authorization.ErrInvalidActor) {
				return &bookingdomain.TransitionError{Action: action, Reason: "actor " + string(a.Type) + " may not " + string(action)}
			}
			return err
		}
		return nil
	}
	if !t.AllowsActor(a.Type) {
		return &bookingdomain.TransitionError{Action: action, Reason: "actor " + string(a.Type) + " may not " + string(action)}
	}
	return nil
}

func (s *Service) auditEffect(a actor.Actor, action string, b bookingdomain.Booking, metadata map[string]any) sideeffect.Effect {
	return sideeffect.Effect{
		Name: "audit." + action,
		Run: func(ctx context.Context) error {
			if s.auditSvc == nil {
				return nil
			}
			var actorID *string
			if id := a.ID(); id != "" {
				actorID = &id
			}
			targetID := b.ID.String()
			if metadata == nil {
				metadata = map[string]any{}
			}
			metadata["tech_profile_id"] = b.TechProfileID.String()
			return s.auditSvc.AuditLog(ctx, auditdomain.ActorType(a.Type), actorID, action, "booking", &targetID, metadata)
		},
	}
}

func (s *Service) notifyEffect(userID snowflake.ID, kind notificationdomain.Type, title, message string, bookingID snowflake.ID) sideeffect.Effect {
	return sideeffect.Effect{
		Name: "notify." + string(kind),
		Run: func(ctx context.Context) error {
			if s.notifier == nil || userID == 0 {
				return nil
			}
			related := bookingID.String()
			return s.notifier.Notify(ctx, notificationdomain.Message{
				UserID:    userID,
				Type:      kind,
				Title:     title,
				Message:   message,
				RelatedID: &related,
			})
		},
	}
}

func isParty(a actor.Actor, b *bookingdomain.Booking, tech *bookingdomain.TechProfile) bool {
	if a.UserID == 0 {
		return false
	}
	switch a.Type {
	case actor.TypeTech:
		return tech != nil && tech.ID == b.TechProfileID && tech.UserID == a.UserID
	case actor.TypeClient:
		return b.ClientID != nil && *b.ClientID == a.UserID
	}
	return false
}

func isConflict(err error) bool {
	return errors.Is(err, bookingdomain.ErrConflict)
}

func normalizeGuest(g *bookingdomain.GuestDetails) (bookingdomain.GuestDetails, error) {
	if g == nil {
		return bookingdomain.GuestDetails{}, bookingdomain.ErrGuestDetailsRequired
	}
	out := bookingdomain.GuestDetails{
		Email: strings.ToLower(strings.TrimSpace(g.Email)),
		Phone: strings.TrimSpace(g.Phone),
		Name:  strings.TrimSpace(g.Name),
	}
	if out.Email == "" || out.Phone == "" || out.Name == "" || !strings.Contains(out.Email, "@") {
		return bookingdomain.GuestDetails{}, bookingdomain.ErrGuestDetailsRequired
	}
	return out, nil
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
