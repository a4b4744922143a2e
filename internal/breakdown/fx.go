package breakdown

import (
	"github.com/smallbiznis/appointly/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("breakdown",
	fx.Provide(NewTrigger),
)

// NewTrigger returns nil when no breakdown endpoint is configured.
func NewTrigger(cfg config.Config, log *zap.Logger) Trigger {
	if cfg.Breakdown.URL == "" {
		return nil
	}
	return NewHTTPTrigger(DefaultSettings(cfg.Breakdown.URL, cfg.Breakdown.Token, cfg.ExternalCallTimeout), log)
}
