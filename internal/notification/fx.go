package notification

import (
	"context"

	"github.com/smallbiznis/appointly/internal/config"
	notificationdomain "github.com/smallbiznis/appointly/internal/notification/domain"
	"github.com/smallbiznis/appointly/internal/notification/repository"
	"github.com/smallbiznis/appointly/internal/notification/service"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("notification.service",
	fx.Provide(repository.Provide),
	fx.Provide(newPublisher),
	fx.Provide(service.NewService),
)

// newPublisher returns nil when no AMQP broker is configured; the notifier then
// only writes the in-app inbox.
func newPublisher(lc fx.Lifecycle, cfg config.Config, log *zap.Logger) (notificationdomain.Publisher, error) {
	if cfg.Notify.AMQPURL == "" {
		return nil, nil
	}
	pub, err := service.NewAMQPPublisher(cfg.Notify.AMQPURL, cfg.Notify.AMQPExchange)
	if err != nil {
		return nil, err
	}
	log.Info("notification bus connected", zap.String("exchange", cfg.Notify.AMQPExchange))
	lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			return pub.Close()
		},
	})
	return pub, nil
}
