package processor

import (
	"github.com/smallbiznis/appointly/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("payment.processor",
	fx.Provide(NewClient),
)

// NewClient returns nil without a secret key; callers report ErrNotConfigured.
func NewClient(cfg config.Config, log *zap.Logger) Client {
	if cfg.Payment.StripeSecretKey == "" {
		log.Warn("payment processor client disabled: no secret key configured")
		return nil
	}
	return NewStripeClient(cfg.Payment.StripeAPIBase, cfg.Payment.StripeSecretKey, cfg.ExternalCallTimeout, log)
}
