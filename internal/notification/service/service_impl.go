package service

import (
	"context"
	"errors"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/appointly/internal/clock"
	notificationdomain "github.com/smallbiznis/appointly/internal/notification/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var ErrInvalidMessage = errors.New("invalid_notification")

type Params struct {
	fx.In

	DB        *gorm.DB
	Log       *zap.Logger
	GenID     *snowflake.Node
	Repo      notificationdomain.Repository
	Publisher notificationdomain.Publisher `optional:"true"`
	Clock     clock.Clock                  `optional:"true"`
}

type Service struct {
	db        *gorm.DB
	log       *zap.Logger
	genID     *snowflake.Node
	repo      notificationdomain.Repository
	publisher notificationdomain.Publisher
	clock     clock.Clock
}

func NewService(p Params) notificationdomain.Notifier {
	c := p.Clock
	if c == nil {
		c = clock.SystemClock{}
	}
	return &Service{
		db:        p.DB,
		log:       p.Log.Named("notification.service"),
		genID:     p.GenID,
		repo:      p.Repo,
		publisher: p.Publisher,
		clock:     c,
	}
}

// Notify stores the inbox row, then forwards it to the bus when one is configured.
// A publish failure does not undo the stored row.
func (s *Service) Notify(ctx context.Context, msg notificationdomain.Message) error {
	if msg.UserID == 0 || msg.Type == "" {
		return ErrInvalidMessage
	}

	item := notificationdomain.Notification{
		ID:        s.genID.Generate(),
		UserID:    msg.UserID,
		Type:      msg.Type,
		Title:     strings.TrimSpace(msg.Title),
		Message:   strings.TrimSpace(msg.Message),
		RelatedID: msg.RelatedID,
		CreatedAt: s.clock.Now().UTC(),
	}
	if err := s.repo.Insert(ctx, s.db, &item); err != nil {
		return err
	}

	if s.publisher == nil {
		return nil
	}
	if err := s.publisher.PublishJSON(ctx, "notification."+string(item.Type), item); err != nil {
		s.log.Warn("failed to publish notification",
			zap.String("notification_id", item.ID.String()),
			zap.String("type", string(item.Type)),
			zap.Error(err),
		)
	}
	return nil
}
