package config

import (
	"errors"
	"strings"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// Policy is the platform policy that operators may change without a deploy.
type Policy struct {
	CreditsPerTier map[string]int64 `mapstructure:"creditsPerTier"`
	Retry          RetryPolicy      `mapstructure:"retry"`
}

type RetryPolicy struct {
	MaxAttempts     uint          `mapstructure:"maxAttempts"`
	InitialInterval time.Duration `mapstructure:"initialInterval"`
	MaxInterval     time.Duration `mapstructure:"maxInterval"`
}

func DefaultPolicy() Policy {
	return Policy{
		CreditsPerTier: map[string]int64{
			"pro":      20,
			"business": 60,
		},
		Retry: RetryPolicy{
			MaxAttempts:     5,
			InitialInterval: 20 * time.Millisecond,
			MaxInterval:     500 * time.Millisecond,
		},
	}
}

// CreditsForTier returns the monthly credit grant for a subscription tier.
func (p Policy) CreditsForTier(tier string) int64 {
	return p.CreditsPerTier[strings.ToLower(strings.TrimSpace(tier))]
}

type PolicyHolder struct {
	current atomic.Value // holds Policy
}

func NewPolicyHolder(log *zap.Logger) (*PolicyHolder, error) {
	v := viper.New()

	v.SetConfigName("policy")
	v.SetConfigType("yml")
	v.AddConfigPath("/var/lib/appointly/config")
	v.AddConfigPath("/etc/appointly")
	v.AddConfigPath(".")

	v.SetEnvPrefix("APPOINTLY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	return newPolicyHolder(v, log)
}

// NewStaticPolicyHolder returns a holder that never reloads.
func NewStaticPolicyHolder(p Policy) *PolicyHolder {
	holder := &PolicyHolder{}
	holder.current.Store(p)
	return holder
}

func newPolicyHolder(v *viper.Viper, log *zap.Logger) (*PolicyHolder, error) {
	if log == nil {
		log = zap.NewNop()
	}
	log = log.Named("config.policy")

	defaults := DefaultPolicy()
	v.SetDefault("policy.creditsPerTier", defaults.CreditsPerTier)
	v.SetDefault("policy.retry.maxAttempts", defaults.Retry.MaxAttempts)
	v.SetDefault("policy.retry.initialInterval", defaults.Retry.InitialInterval)
	v.SetDefault("policy.retry.maxInterval", defaults.Retry.MaxInterval)

	fileLoaded := true
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
		fileLoaded = false
	}

	var cfg Policy
	if err := v.UnmarshalKey("policy", &cfg); err != nil {
		return nil, err
	}
	if err := validatePolicy(cfg); err != nil {
		return nil, err
	}

	holder := &PolicyHolder{}
	holder.current.Store(cfg)

	if !fileLoaded {
		return holder, nil
	}

	v.WatchConfig()
	v.OnConfigChange(func(e fsnotify.Event) {
		var updated Policy
		if err := v.UnmarshalKey("policy", &updated); err != nil {
			log.Warn("policy reload failed", zap.Error(err))
			return
		}
		if err := validatePolicy(updated); err != nil {
			log.Warn("invalid policy ignored", zap.Error(err))
			return
		}
		holder.current.Store(updated)
		log.Info("policy reloaded", zap.String("file", e.Name))
	})

	return holder, nil
}

func (h *PolicyHolder) Get() Policy {
	if h == nil {
		return DefaultPolicy()
	}
	return h.current.Load().(Policy)
}

func validatePolicy(cfg Policy) error {
	for tier, credits := range cfg.CreditsPerTier {
		if credits < 0 {
			return errors.New("policy.creditsPerTier." + tier + " cannot be negative")
		}
	}
	if cfg.Retry.MaxAttempts == 0 {
		return errors.New("policy.retry.maxAttempts must be positive")
	}
	if cfg.Retry.InitialInterval <= 0 || cfg.Retry.MaxInterval < cfg.Retry.InitialInterval {
		return errors.New("policy.retry intervals are invalid")
	}
	return nil
}
