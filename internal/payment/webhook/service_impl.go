package webhook

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/smallbiznis/appointly/internal/clock"
	"github.com/smallbiznis/appointly/internal/config"
	"github.com/smallbiznis/appointly/internal/payment/adapters"
	paymentdomain "github.com/smallbiznis/appointly/internal/payment/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

type Params struct {
	fx.In

	Log        *zap.Logger
	Reconciler paymentdomain.Reconciler
	Adapters   *adapters.Registry
	Cfg        config.Config
	Clock      clock.Clock `optional:"true"`
}

type Service struct {
	log        *zap.Logger
	reconciler paymentdomain.Reconciler
	adapters   *adapters.Registry
	provider   string
	adapterCfg paymentdomain.AdapterConfig
}

func NewService(p Params) paymentdomain.Service {
	c := p.Clock
	if c == nil {
		c = clock.SystemClock{}
	}
	provider := strings.ToLower(strings.TrimSpace(p.Cfg.Payment.Provider))
	return &Service{
		log:        p.Log.Named("payment.webhook"),
		reconciler: p.Reconciler,
		adapters:   p.Adapters,
		provider:   provider,
		adapterCfg: paymentdomain.AdapterConfig{
			Provider:      provider,
			WebhookSecret: p.Cfg.Payment.WebhookSecret,
			Tolerance:     p.Cfg.Payment.WebhookTolerance,
			Now:           c.Now,
		},
	}
}

// IngestWebhook verifies the signature before looking at the body at all.
// Ignored and already processed events return nil so the processor stops
// redelivering them.
func (s *Service) IngestWebhook(ctx context.Context, provider string, payload []byte, headers http.Header) error {
	provider = strings.ToLower(strings.TrimSpace(provider))
	if provider == "" {
		return paymentdomain.ErrInvalidProvider
	}
	if provider != s.provider || !s.adapters.ProviderExists(provider) {
		return paymentdomain.ErrProviderNotFound
	}
	adapter, err := s.adapters.NewAdapter(provider, s.adapterCfg)
	if err != nil {
		s.log.Error("payment adapter misconfigured", zap.String("provider", provider), zap.Error(err))
		return err
	}

	if err := adapter.Verify(ctx, payload, headers); err != nil {
		s.log.Warn("payment webhook rejected", zap.String("provider", provider), zap.Error(err))
		return err
	}
	if !json.Valid(payload) {
		return paymentdomain.ErrInvalidPayload
	}

	event, err := adapter.Parse(ctx, payload)
	if errors.Is(err, paymentdomain.ErrEventIgnored) {
		s.log.Debug("payment webhook ignored", zap.String("provider", provider))
		return nil
	}
	if err != nil {
		return err
	}

	err = s.reconciler.Handle(ctx, event, payload)
	if errors.Is(err, paymentdomain.ErrEventAlreadyProcessed) {
		s.log.Info("payment webhook already processed",
			zap.String("provider", provider),
			zap.String("event_id", event.Meta().ID),
		)
		return nil
	}
	return err
}
