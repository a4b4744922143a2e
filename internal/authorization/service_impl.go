package authorization

import (
	"context"
	_ "embed"
	"strings"

	"github.com/casbin/casbin/v2"
	"github.com/casbin/casbin/v2/model"
	gormadapter "github.com/casbin/gorm-adapter/v3"
	"github.com/smallbiznis/appointly/internal/actor"
	auditdomain "github.com/smallbiznis/appointly/internal/audit/domain"
	bookingdomain "github.com/smallbiznis/appointly/internal/booking/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

//go:embed model.conf
var modelText string

const (
	ObjectCredits      = "credits"
	ObjectAvailability = "availability"
	ObjectSubscription = "subscription"
)

const (
	ActionView     = "view"
	ActionList     = "list"
	ActionAdjust   = "adjust"
	ActionVerify   = "verify"
	ActionMarkPaid = "mark_paid"
	ActionCheckout = "checkout"
)

type Params struct {
	fx.In

	Log      *zap.Logger
	Enforcer *casbin.SyncedEnforcer
	AuditSvc auditdomain.Service `optional:"true"`
}

type ServiceImpl struct {
	log      *zap.Logger
	enforcer *casbin.SyncedEnforcer
	auditSvc auditdomain.Service
}

// NewEnforcer stores policies through the gorm adapter. A nil db keeps them in memory.
func NewEnforcer(db *gorm.DB) (*casbin.SyncedEnforcer, error) {
	m, err := model.NewModelFromString(modelText)
	if err != nil {
		return nil, err
	}

	var enforcer *casbin.SyncedEnforcer
	if db == nil {
		enforcer, err = casbin.NewSyncedEnforcer(m)
		if err != nil {
			return nil, err
		}
	} else {
		adapter, err := gormadapter.NewAdapterByDB(db)
		if err != nil {
			return nil, err
		}
		enforcer, err = casbin.NewSyncedEnforcer(m, adapter)
		if err != nil {
			return nil, err
		}
		enforcer.EnableAutoSave(true)
		if err := enforcer.LoadPolicy(); err != nil {
			return nil, err
		}
	}

	if err := seedPolicies(enforcer); err != nil {
		return nil, err
	}
	return enforcer, nil
}

func NewService(p Params) Service {
	return &ServiceImpl{
		log:      p.Log.Named("authorization.service"),
		enforcer: p.Enforcer,
		auditSvc: p.AuditSvc,
	}
}

func (s *ServiceImpl) Authorize(ctx context.Context, a actor.Actor, object string, action string) error {
	if !a.Type.Valid() {
		return ErrInvalidActor
	}
	object = strings.TrimSpace(object)
	if object == "" {
		return ErrInvalidObject
	}
	action = strings.TrimSpace(action)
	if action == "" {
		return ErrInvalidAction
	}
	if (a.Type == actor.TypeTech || a.Type == actor.TypeClient) && a.UserID == 0 {
		s.auditDenied(ctx, a, object, action)
		return ErrInvalidActor
	}

	allowed, err := s.enforcer.Enforce(a.Subject(), object, action)
	if err != nil {
		return err
	}
	if !allowed {
		s.log.Debug("authorization denied",
			zap.String("subject", a.Subject()),
			zap.String("object", object),
			zap.String("action", action),
		)
		s.auditDenied(ctx, a, object, action)
		return ErrForbidden
	}
	return nil
}

func (s *ServiceImpl) auditDenied(ctx context.Context, a actor.Actor, object string, action string) {
	if s.auditSvc == nil {
		return
	}
	var actorID *string
	if id := a.ID(); id != "" {
		actorID = &id
	}
	targetID := object
	_ = s.auditSvc.AuditLog(ctx, auditdomain.ActorType(a.Type), actorID, "authorization.denied", "authorization", &targetID, map[string]any{
		"object":  object,
		"action":  action,
		"subject": a.Subject(),
	})
}

func seedPolicies(enforcer *casbin.SyncedEnforcer) error {
	policies := bookingdomain.ActorPolicies()
	policies = append(policies,
		[]string{"role:tech", bookingdomain.ObjectBooking, ActionView},
		[]string{"role:tech", bookingdomain.ObjectBooking, ActionList},
		[]string{"role:client", bookingdomain.ObjectBooking, ActionView},
		[]string{"role:system", bookingdomain.ObjectBooking, ActionView},
		[]string{"role:system", bookingdomain.ObjectBooking, ActionList},
		[]string{"role:system", bookingdomain.ObjectBooking, ActionMarkPaid},

		[]string{"role:client", ObjectCredits, ActionView},
		[]string{"role:tech", ObjectCredits, ActionView},
		[]string{"role:system", ObjectCredits, ActionView},
		[]string{"role:system", ObjectCredits, ActionAdjust},
		[]string{"role:system", ObjectCredits, ActionVerify},

		[]string{"role:guest", ObjectAvailability, ActionView},
		[]string{"role:client", ObjectAvailability, ActionView},
		[]string{"role:tech", ObjectAvailability, ActionView},

		[]string{"role:tech", ObjectSubscription, ActionCheckout},
	)

	for _, policy := range policies {
		if len(policy) < 3 {
			continue
		}
		has, err := enforcer.HasPolicy(policy)
		if err != nil {
			return err
		}
		if has {
			continue
		}
		if _, err := enforcer.AddPolicy(policy); err != nil {
			return err
		}
	}
	return nil
}
