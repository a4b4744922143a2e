package service_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	accountdomain "github.com/smallbiznis/appointly/internal/account/domain"
	accountrepo "github.com/smallbiznis/appointly/internal/account/repository"
	"github.com/smallbiznis/appointly/internal/actor"
	"github.com/smallbiznis/appointly/internal/authorization"
	bookingdomain "github.com/smallbiznis/appointly/internal/booking/domain"
	"github.com/smallbiznis/appointly/internal/booking/repository"
	"github.com/smallbiznis/appointly/internal/booking/service"
	"github.com/smallbiznis/appointly/internal/clock"
	"github.com/smallbiznis/appointly/internal/config"
	"github.com/smallbiznis/appointly/internal/locking"
	notificationdomain "github.com/smallbiznis/appointly/internal/notification/domain"
	"github.com/smallbiznis/appointly/internal/payment/processor"
	dbpkg "github.com/smallbiznis/appointly/pkg/db"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var (
	testNow = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	slot10  = time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
)

type fakeProcessor struct {
	mu       sync.Mutex
	requests []processor.ChargeRequest
	err      error
}

func (p *fakeProcessor) GetSubscription(ctx context.Context, id string) (*processor.Subscription, error) {
	return nil, processor.ErrNotFound
}

func (p *fakeProcessor) ChargeOffSession(ctx context.Context, req processor.ChargeRequest) (*processor.Charge, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.requests = append(p.requests, req)
	if p.err != nil {
		return nil, p.err
	}
	return &processor.Charge{ID: "pi_test", Status: "succeeded", AmountMinor: req.AmountMinor}, nil
}

type recordingNotifier struct {
	mu       sync.Mutex
	messages []notificationdomain.Message
}

func (n *recordingNotifier) Notify(ctx context.Context, msg notificationdomain.Message) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.messages = append(n.messages, msg)
	return nil
}

func (n *recordingNotifier) types(userID snowflake.ID) []notificationdomain.Type {
	n.mu.Lock()
	defer n.mu.Unlock()
	var out []notificationdomain.Type
	for _, m := range n.messages {
		if m.UserID == userID {
			out = append(out, m.Type)
		}
	}
	return out
}

type fixture struct {
	db        *gorm.DB
	node      *snowflake.Node
	svc       bookingdomain.Service
	processor *fakeProcessor
	notifier  *recordingNotifier
}

type techFixture struct {
	userID    snowflake.ID
	profileID snowflake.ID
	serviceID snowflake.ID
}

func (t techFixture) actor() actor.Actor {
	return actor.Actor{Type: actor.TypeTech, UserID: t.userID}
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	conn, err := dbpkg.NewTest()
	require.NoError(t, err)
	require.NoError(t, conn.AutoMigrate(
		&accountdomain.Account{},
		&bookingdomain.TechProfile{},
		&bookingdomain.Offering{},
		&bookingdomain.Booking{},
	))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	enforcer, err := authorization.NewEnforcer(nil)
	require.NoError(t, err)
	authz := authorization.NewService(authorization.Params{Log: zap.NewNop(), Enforcer: enforcer})

	policy := config.DefaultPolicy()
	policy.Retry = config.RetryPolicy{MaxAttempts: 3, InitialInterval: time.Millisecond, MaxInterval: 5 * time.Millisecond}

	proc := &fakeProcessor{}
	notifier := &recordingNotifier{}
	svc := service.NewService(service.Params{
		DB:         conn,
		Log:        zap.NewNop(),
		GenID:      node,
		Repo:       repository.Provide(),
		Accounts:   accountrepo.Provide(),
		Locker:     locking.NewKeyedMutex(),
		Cfg:        config.Config{ExternalCallTimeout: time.Second},
		Clock:      clock.NewFakeClock(testNow),
		Policy:     config.NewStaticPolicyHolder(policy),
		Authorizer: authz,
		Processor:  proc,
		Notifier:   notifier,
	})
	return &fixture{db: conn, node: node, svc: svc, processor: proc, notifier: notifier}
}

func (f *fixture) createAccount(t *testing.T, withPaymentMethod bool) snowflake.ID {
	t.Helper()
	id := f.node.Generate()
	account := accountdomain.Account{
		ID:                 id,
		Email:              id.String() + "@example.test",
		Name:               "user " + id.String(),
		SubscriptionTier:   accountdomain.TierFree,
		SubscriptionStatus: accountdomain.SubscriptionInactive,
		CreatedAt:          testNow,
		UpdatedAt:          testNow,
	}
	if withPaymentMethod {
		customer, method := "cus_"+id.String(), "pm_"+id.String()
		account.ProcessorCustomerID = &customer
		account.DefaultPaymentMethodID = &method
	}
	require.NoError(t, f.db.Create(&account).Error)
	return id
}

func (f *fixture) createTech(t *testing.T, price string, feePercent int) techFixture {
	t.Helper()
	userID := f.createAccount(t, false)
	profile := bookingdomain.TechProfile{
		ID:               f.node.Generate(),
		UserID:           userID,
		DisplayName:      "Nails by " + userID.String(),
		NoShowFeeEnabled: feePercent > 0,
		NoShowFeePercent: feePercent,
		CreatedAt:        testNow,
		UpdatedAt:        testNow,
	}
	require.NoError(t, f.db.Create(&profile).Error)
	svc := bookingdomain.Offering{
		ID:              f.node.Generate(),
		TechProfileID:   profile.ID,
		Name:            "Gel manicure",
		Price:           decimal.RequireFromString(price),
		DurationMinutes: 60,
		Active:          true,
		CreatedAt:       testNow,
		UpdatedAt:       testNow,
	}
	require.NoError(t, f.db.Create(&svc).Error)
	return techFixture{userID: userID, profileID: profile.ID, serviceID: svc.ID}
}

func (f *fixture) book(t *testing.T, a actor.Actor, tech techFixture, start time.Time) (*bookingdomain.Booking, error) {
	t.Helper()
	req := bookingdomain.CreateBookingRequest{
		Actor:            a,
		TechProfileID:    tech.profileID,
		ServiceID:        tech.serviceID,
		AppointmentStart: start,
	}
	if a.Type == actor.TypeGuest {
		req.Guest = &bookingdomain.GuestDetails{Email: "guest@example.test", Phone: "+15550100", Name: "Guest"}
	}
	return f.svc.Create(context.Background(), req)
}

func client(id snowflake.ID) actor.Actor {
	return actor.Actor{Type: actor.TypeClient, UserID: id}
}

func TestOverlapsMatchesMinuteSets(t *testing.T) {
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	// deterministic pseudo-random walk over start offsets and durations
	seed := uint32(7)
	next := func(n uint32) int {
		seed = seed*1664525 + 1013904223
		return int(seed % n)
	}

	for i := 0; i < 500; i++ {
		a := bookingdomain.NewInterval(base.Add(time.Duration(next(240))*time.Minute), 1+next(120))
		b := bookingdomain.NewInterval(base.Add(time.Duration(next(240))*time.Minute), 1+next(120))

		shared := false
		for m := a.Start; m.Before(a.End); m = m.Add(time.Minute) {
			if !m.Before(b.Start) && m.Before(b.End) {
				shared = true
				break
			}
		}
		assert.Equal(t, shared, service.Overlaps(a, b), "a=%v b=%v", a, b)
		assert.Equal(t, service.Overlaps(a, b), service.Overlaps(b, a))
	}
}

func TestFindConflictsIgnoresInactiveBookings(t *testing.T) {
	candidate := bookingdomain.NewInterval(slot10, 60)
	existing := []bookingdomain.Booking{
		{ID: 1, Status: bookingdomain.StatusConfirmed, AppointmentStart: slot10.Add(30 * time.Minute), AppointmentEnd: slot10.Add(90 * time.Minute)},
		{ID: 2, Status: bookingdomain.StatusCancelled, AppointmentStart: slot10, AppointmentEnd: slot10.Add(time.Hour)},
		{ID: 3, Status: bookingdomain.StatusPending, AppointmentStart: slot10.Add(time.Hour), AppointmentEnd: slot10.Add(2 * time.Hour)},
	}
	conflicts := service.FindConflicts(candidate, existing)
	require.Len(t, conflicts, 1)
	assert.Equal(t, snowflake.ID(1), conflicts[0].ID)
}

func TestCreateComputesFeesAndNotifiesTech(t *testing.T) {
	f := newFixture(t)
	tech := f.createTech(t, "100.00", 0)
	clientID := f.createAccount(t, false)

	b, err := f.book(t, client(clientID), tech, slot10)
	require.NoError(t, err)

	assert.Equal(t, bookingdomain.StatusPending, b.Status)
	assert.Equal(t, bookingdomain.PaymentStatusPending, b.PaymentStatus)
	assert.Equal(t, slot10, b.AppointmentStart)
	assert.Equal(t, slot10.Add(time.Hour), b.AppointmentEnd)
	assert.True(t, b.ServiceFee.Equal(decimal.RequireFromString("15.00")))
	assert.True(t, b.TotalPrice.Equal(decimal.RequireFromString("115.00")))
	require.NotNil(t, b.ClientID)
	assert.Equal(t, clientID, *b.ClientID)
	assert.Equal(t, []notificationdomain.Type{notificationdomain.TypeBookingRequested}, f.notifier.types(tech.userID))
}

func TestCreateValidation(t *testing.T) {
	f := newFixture(t)
	tech := f.createTech(t, "40.00", 0)
	clientID := f.createAccount(t, false)
	ctx := context.Background()

	_, err := f.book(t, client(clientID), tech, testNow.Add(-time.Hour))
	assert.ErrorIs(t, err, bookingdomain.ErrInvalidStart)

	_, err = f.svc.Create(ctx, bookingdomain.CreateBookingRequest{
		Actor:            actor.Guest(),
		TechProfileID:    tech.profileID,
		ServiceID:        tech.serviceID,
		AppointmentStart: slot10,
		Guest:            &bookingdomain.GuestDetails{Email: "guest@example.test"},
	})
	assert.ErrorIs(t, err, bookingdomain.ErrGuestDetailsRequired)

	other := f.createTech(t, "40.00", 0)
	_, err = f.svc.Create(ctx, bookingdomain.CreateBookingRequest{
		Actor:            client(clientID),
		TechProfileID:    tech.profileID,
		ServiceID:        other.serviceID,
		AppointmentStart: slot10,
	})
	assert.ErrorIs(t, err, bookingdomain.ErrServiceNotFound)

	_, err = f.book(t, tech.actor(), tech, slot10)
	assert.ErrorIs(t, err, bookingdomain.ErrInvalidTransition)
}

func TestSubMinuteStartsAreRejected(t *testing.T) {
	f := newFixture(t)
	tech := f.createTech(t, "40.00", 0)
	clientID := f.createAccount(t, false)
	ctx := context.Background()

	_, err := f.book(t, client(clientID), tech, slot10.Add(30*time.Second))
	assert.ErrorIs(t, err, bookingdomain.ErrInvalidStart)

	_, err = f.svc.TryReserve(ctx, tech.profileID, slot10.Add(time.Millisecond), 60)
	assert.ErrorIs(t, err, bookingdomain.ErrInvalidStart)

	var count int64
	require.NoError(t, f.db.Model(&bookingdomain.Booking{}).Count(&count).Error)
	assert.Zero(t, count)

	b, err := f.book(t, client(clientID), tech, slot10.In(time.FixedZone("UTC+7", 7*3600)))
	require.NoError(t, err)
	assert.Equal(t, slot10, b.AppointmentStart)
}

func TestBackToBackSlots(t *testing.T) {
	f := newFixture(t)
	tech := f.createTech(t, "50.00", 0)
	clientID := f.createAccount(t, false)
	ctx := context.Background()

	first, err := f.book(t, client(clientID), tech, slot10)
	require.NoError(t, err)
	_, err = f.svc.Confirm(ctx, bookingdomain.TransitionRequest{Actor: tech.actor(), BookingID: first.ID})
	require.NoError(t, err)

	_, err = f.svc.TryReserve(ctx, tech.profileID, slot10.Add(30*time.Minute), 60)
	var conflict *bookingdomain.ConflictError
	require.ErrorAs(t, err, &conflict)
	assert.Equal(t, 1, conflict.Count())
	assert.Equal(t, []snowflake.ID{first.ID}, conflict.BookingIDs)

	_, err = f.book(t, client(clientID), tech, slot10.Add(30*time.Minute))
	assert.ErrorIs(t, err, bookingdomain.ErrConflict)

	reservation, err := f.svc.TryReserve(ctx, tech.profileID, slot10.Add(time.Hour), 60)
	require.NoError(t, err)
	assert.Equal(t, slot10.Add(2*time.Hour), reservation.End)

	_, err = f.book(t, client(clientID), tech, slot10.Add(time.Hour))
	assert.NoError(t, err)
}

func TestConcurrentCreatesForSameSlot(t *testing.T) {
	f := newFixture(t)
	tech := f.createTech(t, "50.00", 0)

	const callers = 8
	clients := make([]snowflake.ID, callers)
	for i := range clients {
		clients[i] = f.createAccount(t, false)
	}

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
		conflicts int
	)
	for _, id := range clients {
		wg.Add(1)
		go func(id snowflake.ID) {
			defer wg.Done()
			_, err := f.book(t, client(id), tech, slot10)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				succeeded++
			case errors.Is(err, bookingdomain.ErrConflict):
				conflicts++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}(id)
	}
	wg.Wait()

	assert.Equal(t, 1, succeeded)
	assert.Equal(t, callers-1, conflicts)

	var count int64
	require.NoError(t, f.db.Model(&bookingdomain.Booking{}).Where("tech_profile_id = ?", tech.profileID).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestCancelledBookingFreesSlot(t *testing.T) {
	f := newFixture(t)
	tech := f.createTech(t, "50.00", 0)
	clientID := f.createAccount(t, false)
	ctx := context.Background()

	first, err := f.book(t, client(clientID), tech, slot10)
	require.NoError(t, err)

	reason := "  running late  "
	res, err := f.svc.Cancel(ctx, bookingdomain.TransitionRequest{Actor: client(clientID), BookingID: first.ID, Reason: &reason})
	require.NoError(t, err)
	assert.Equal(t, bookingdomain.StatusCancelled, res.Booking.Status)
	require.NotNil(t, res.Booking.CancellationReason)
	assert.Equal(t, "running late", *res.Booking.CancellationReason)
	assert.Equal(t, []notificationdomain.Type{
		notificationdomain.TypeBookingRequested,
		notificationdomain.TypeBookingCancelled,
	}, f.notifier.types(tech.userID))

	_, err = f.book(t, client(clientID), tech, slot10)
	assert.NoError(t, err)
}

func TestTransitionRules(t *testing.T) {
	f := newFixture(t)
	tech := f.createTech(t, "50.00", 0)
	otherTech := f.createTech(t, "50.00", 0)
	clientID := f.createAccount(t, false)
	strangerID := f.createAccount(t, false)
	ctx := context.Background()

	b, err := f.book(t, client(clientID), tech, slot10)
	require.NoError(t, err)
	req := func(a actor.Actor) bookingdomain.TransitionRequest {
		return bookingdomain.TransitionRequest{Actor: a, BookingID: b.ID}
	}

	_, err = f.svc.Confirm(ctx, req(client(clientID)))
	assert.ErrorIs(t, err, bookingdomain.ErrInvalidTransition, "clients cannot confirm")

	_, err = f.svc.Confirm(ctx, req(otherTech.actor()))
	assert.ErrorIs(t, err, bookingdomain.ErrInvalidTransition, "only the booked tech can confirm")

	_, err = f.svc.Cancel(ctx, req(client(strangerID)))
	assert.ErrorIs(t, err, bookingdomain.ErrInvalidTransition, "only the booking's client can cancel")

	_, err = f.svc.Complete(ctx, req(tech.actor()))
	var terr *bookingdomain.TransitionError
	require.ErrorAs(t, err, &terr)
	assert.Equal(t, bookingdomain.StatusPending, terr.From)

	res, err := f.svc.Confirm(ctx, req(tech.actor()))
	require.NoError(t, err)
	assert.Equal(t, bookingdomain.StatusConfirmed, res.Booking.Status)
	assert.Equal(t, []notificationdomain.Type{notificationdomain.TypeBookingConfirmed}, f.notifier.types(clientID))

	_, err = f.svc.Confirm(ctx, req(tech.actor()))
	assert.ErrorIs(t, err, bookingdomain.ErrInvalidTransition, "confirm is not repeatable")

	res, err = f.svc.Complete(ctx, req(tech.actor()))
	require.NoError(t, err)
	assert.Equal(t, bookingdomain.StatusCompleted, res.Booking.Status)
	assert.Equal(t, bookingdomain.PaymentStatusPending, res.Booking.PaymentStatus)
	assert.Contains(t, f.notifier.types(clientID), notificationdomain.TypeReviewRequest)

	_, err = f.svc.Cancel(ctx, req(client(clientID)))
	assert.ErrorIs(t, err, bookingdomain.ErrInvalidTransition, "terminal states are final")

	_, err = f.svc.Transition(ctx, bookingdomain.ActionCreate, req(client(clientID)))
	assert.ErrorIs(t, err, bookingdomain.ErrInvalidAction)
}

func TestNoShowChargesConfiguredFee(t *testing.T) {
	f := newFixture(t)
	// 86.96 + 13.04 platform fee = 100.00 total
	tech := f.createTech(t, "86.96", 50)
	clientID := f.createAccount(t, true)
	ctx := context.Background()

	b, err := f.book(t, client(clientID), tech, slot10)
	require.NoError(t, err)
	require.True(t, b.TotalPrice.Equal(decimal.RequireFromString("100.00")), "total %s", b.TotalPrice)

	_, err = f.svc.Confirm(ctx, bookingdomain.TransitionRequest{Actor: tech.actor(), BookingID: b.ID})
	require.NoError(t, err)

	res, err := f.svc.MarkNoShow(ctx, bookingdomain.TransitionRequest{Actor: tech.actor(), BookingID: b.ID})
	require.NoError(t, err)
	require.NoError(t, res.FeeChargeError)
	assert.Equal(t, bookingdomain.StatusNoShow, res.Booking.Status)
	assert.True(t, res.Booking.NoShowFeeCharged)
	require.NotNil(t, res.Booking.NoShowFeeAmount)
	assert.True(t, res.Booking.NoShowFeeAmount.Equal(decimal.RequireFromString("50.00")))

	require.Len(t, f.processor.requests, 1)
	charge := f.processor.requests[0]
	assert.Equal(t, int64(5000), charge.AmountMinor)
	assert.Equal(t, "no_show:"+b.ID.String(), charge.IdempotencyKey)
	assert.Equal(t, "cus_"+clientID.String(), charge.CustomerID)

	var stored bookingdomain.Booking
	require.NoError(t, f.db.First(&stored, "id = ?", b.ID).Error)
	assert.True(t, stored.NoShowFeeCharged)
	assert.Equal(t, bookingdomain.StatusNoShow, stored.Status)
}

func TestNoShowFeeFailureKeepsStatus(t *testing.T) {
	f := newFixture(t)
	tech := f.createTech(t, "60.00", 25)
	ctx := context.Background()

	guestBooking, err := f.book(t, actor.Guest(), tech, slot10)
	require.NoError(t, err)
	_, err = f.svc.Confirm(ctx, bookingdomain.TransitionRequest{Actor: tech.actor(), BookingID: guestBooking.ID})
	require.NoError(t, err)

	res, err := f.svc.MarkNoShow(ctx, bookingdomain.TransitionRequest{Actor: tech.actor(), BookingID: guestBooking.ID})
	require.NoError(t, err)
	assert.ErrorIs(t, res.FeeChargeError, bookingdomain.ErrFeeChargeFailed)
	assert.ErrorIs(t, res.FeeChargeError, bookingdomain.ErrNoPaymentMethod)
	assert.Equal(t, bookingdomain.StatusNoShow, res.Booking.Status)
	assert.False(t, res.Booking.NoShowFeeCharged)
	assert.Empty(t, f.processor.requests)

	clientID := f.createAccount(t, true)
	f.processor.err = processor.ErrChargeDeclined
	declined, err := f.book(t, client(clientID), tech, slot10.Add(2*time.Hour))
	require.NoError(t, err)
	_, err = f.svc.Confirm(ctx, bookingdomain.TransitionRequest{Actor: tech.actor(), BookingID: declined.ID})
	require.NoError(t, err)

	res, err = f.svc.MarkNoShow(ctx, bookingdomain.TransitionRequest{Actor: tech.actor(), BookingID: declined.ID})
	require.NoError(t, err)
	assert.ErrorIs(t, res.FeeChargeError, processor.ErrChargeDeclined)

	var stored bookingdomain.Booking
	require.NoError(t, f.db.First(&stored, "id = ?", declined.ID).Error)
	assert.Equal(t, bookingdomain.StatusNoShow, stored.Status)
	assert.False(t, stored.NoShowFeeCharged)
}

func TestMarkPaidIsIdempotent(t *testing.T) {
	f := newFixture(t)
	tech := f.createTech(t, "50.00", 0)
	clientID := f.createAccount(t, false)
	ctx := context.Background()

	b, err := f.book(t, client(clientID), tech, slot10)
	require.NoError(t, err)

	paid, updated, err := f.svc.MarkPaid(ctx, b.ID, "cs_123", testNow)
	require.NoError(t, err)
	assert.True(t, updated)
	assert.Equal(t, bookingdomain.PaymentStatusPaid, paid.PaymentStatus)
	assert.Equal(t, bookingdomain.StatusPending, paid.Status)

	_, updated, err = f.svc.MarkPaid(ctx, b.ID, "cs_123", testNow.Add(time.Minute))
	require.NoError(t, err)
	assert.False(t, updated)

	_, _, err = f.svc.MarkPaid(ctx, f.node.Generate(), "cs_404", testNow)
	assert.ErrorIs(t, err, bookingdomain.ErrNotFound)
}

func TestGetIsLimitedToParties(t *testing.T) {
	f := newFixture(t)
	tech := f.createTech(t, "50.00", 0)
	clientID := f.createAccount(t, false)
	strangerID := f.createAccount(t, false)
	ctx := context.Background()

	b, err := f.book(t, client(clientID), tech, slot10)
	require.NoError(t, err)

	for _, a := range []actor.Actor{client(clientID), tech.actor(), actor.System()} {
		got, err := f.svc.Get(ctx, a, b.ID)
		require.NoError(t, err, "actor %s", a.Type)
		assert.Equal(t, b.ID, got.ID)
	}
	for _, a := range []actor.Actor{client(strangerID), actor.Guest()} {
		_, err := f.svc.Get(ctx, a, b.ID)
		assert.ErrorIs(t, err, bookingdomain.ErrNotFound, "actor %s", a.Type)
	}
}

func TestListForTechPages(t *testing.T) {
	f := newFixture(t)
	tech := f.createTech(t, "50.00", 0)
	otherTech := f.createTech(t, "50.00", 0)
	clientID := f.createAccount(t, false)
	ctx := context.Background()

	var ids []snowflake.ID
	for i := 0; i < 3; i++ {
		b, err := f.book(t, client(clientID), tech, slot10.Add(time.Duration(i)*time.Hour))
		require.NoError(t, err)
		ids = append(ids, b.ID)
	}

	page, err := f.svc.ListForTech(ctx, bookingdomain.ListForTechRequest{
		Actor:         tech.actor(),
		TechProfileID: tech.profileID,
	})
	require.NoError(t, err)
	require.Len(t, page.Bookings, 3)
	assert.False(t, page.HasMore)

	req := bookingdomain.ListForTechRequest{Actor: tech.actor(), TechProfileID: tech.profileID}
	req.PageSize = 2
	page, err = f.svc.ListForTech(ctx, req)
	require.NoError(t, err)
	require.Len(t, page.Bookings, 2)
	assert.True(t, page.HasMore)
	assert.Equal(t, ids[:2], []snowflake.ID{page.Bookings[0].ID, page.Bookings[1].ID})

	req.PageToken = page.NextPageToken
	page, err = f.svc.ListForTech(ctx, req)
	require.NoError(t, err)
	require.Len(t, page.Bookings, 1)
	assert.Equal(t, ids[2], page.Bookings[0].ID)

	_, err = f.svc.ListForTech(ctx, bookingdomain.ListForTechRequest{Actor: otherTech.actor(), TechProfileID: tech.profileID})
	assert.ErrorIs(t, err, bookingdomain.ErrForbidden)

	req.PageToken = "not-a-token"
	_, err = f.svc.ListForTech(ctx, req)
	assert.ErrorIs(t, err, bookingdomain.ErrInvalidPageToken)
}
