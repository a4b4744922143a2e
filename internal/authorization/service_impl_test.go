package authorization

import (
	"context"
	"testing"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/appointly/internal/actor"
	auditdomain "github.com/smallbiznis/appointly/internal/audit/domain"
	bookingdomain "github.com/smallbiznis/appointly/internal/booking/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type recordingAudit struct {
	actions []string
}

func (r *recordingAudit) AuditLog(ctx context.Context, actorType auditdomain.ActorType, actorID *string, action string, targetType string, targetID *string, metadata map[string]any) error {
	r.actions = append(r.actions, action)
	return nil
}

func (r *recordingAudit) List(ctx context.Context, req auditdomain.ListAuditLogRequest) (auditdomain.ListAuditLogResponse, error) {
	return auditdomain.ListAuditLogResponse{}, nil
}

func newTestService(t *testing.T, audit auditdomain.Service) Service {
	t.Helper()
	enforcer, err := NewEnforcer(nil)
	require.NoError(t, err)
	return NewService(Params{Log: zap.NewNop(), Enforcer: enforcer, AuditSvc: audit})
}

func TestAuthorizeBookingActionsFollowTransitionTable(t *testing.T) {
	svc := newTestService(t, nil)
	ctx := context.Background()
	tech := actor.Actor{Type: actor.TypeTech, UserID: snowflake.ID(1)}
	client := actor.Actor{Type: actor.TypeClient, UserID: snowflake.ID(2)}

	for _, tr := range bookingdomain.Transitions() {
		for _, a := range []actor.Actor{tech, client, actor.Guest()} {
			err := svc.Authorize(ctx, a, bookingdomain.ObjectBooking, string(tr.Action))
			if tr.AllowsActor(a.Type) {
				assert.NoError(t, err, "%s should be allowed to %s", a.Type, tr.Action)
			} else {
				assert.ErrorIs(t, err, ErrForbidden, "%s should not be allowed to %s", a.Type, tr.Action)
			}
		}
	}
}

func TestAuthorizeCreditsAdjustIsSystemOnly(t *testing.T) {
	svc := newTestService(t, nil)
	ctx := context.Background()

	assert.NoError(t, svc.Authorize(ctx, actor.System(), ObjectCredits, ActionAdjust))
	assert.ErrorIs(t, svc.Authorize(ctx, actor.Actor{Type: actor.TypeClient, UserID: 5}, ObjectCredits, ActionAdjust), ErrForbidden)
	assert.NoError(t, svc.Authorize(ctx, actor.Actor{Type: actor.TypeClient, UserID: 5}, ObjectCredits, ActionView))
}

func TestAuthorizeRejectsMalformedActors(t *testing.T) {
	svc := newTestService(t, nil)
	ctx := context.Background()

	assert.ErrorIs(t, svc.Authorize(ctx, actor.Actor{Type: "admin"}, ObjectCredits, ActionView), ErrInvalidActor)
	assert.ErrorIs(t, svc.Authorize(ctx, actor.Actor{Type: actor.TypeTech}, ObjectCredits, ActionView), ErrInvalidActor)
	assert.ErrorIs(t, svc.Authorize(ctx, actor.System(), "", ActionView), ErrInvalidObject)
	assert.ErrorIs(t, svc.Authorize(ctx, actor.System(), ObjectCredits, " "), ErrInvalidAction)
}

func TestAuthorizeAuditsDenials(t *testing.T) {
	audit := &recordingAudit{}
	svc := newTestService(t, audit)

	err := svc.Authorize(context.Background(), actor.Guest(), bookingdomain.ObjectBooking, string(bookingdomain.ActionConfirm))
	require.ErrorIs(t, err, ErrForbidden)
	assert.Equal(t, []string{"authorization.denied"}, audit.actions)

	require.NoError(t, svc.Authorize(context.Background(), actor.Guest(), ObjectAvailability, ActionView))
	assert.Len(t, audit.actions, 1)
}
