package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestPolicyDefaultsWithoutFile(t *testing.T) {
	v := viper.New()
	v.SetConfigName("policy")
	v.SetConfigType("yml")
	v.AddConfigPath(t.TempDir())

	holder, err := newPolicyHolder(v, zap.NewNop())
	require.NoError(t, err)

	policy := holder.Get()
	assert.Equal(t, int64(20), policy.CreditsForTier("pro"))
	assert.Equal(t, int64(60), policy.CreditsForTier("Business"))
	assert.Equal(t, int64(0), policy.CreditsForTier("free"))
	assert.Equal(t, uint(5), policy.Retry.MaxAttempts)
}

func TestPolicyLoadsFromFile(t *testing.T) {
	dir := t.TempDir()
	content := []byte(`policy:
  creditsPerTier:
    pro: 25
    business: 80
  retry:
    maxAttempts: 3
    initialInterval: 10ms
    maxInterval: 100ms
`)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "policy.yml"), content, 0o600))

	v := viper.New()
	v.SetConfigName("policy")
	v.SetConfigType("yml")
	v.AddConfigPath(dir)

	holder, err := newPolicyHolder(v, zap.NewNop())
	require.NoError(t, err)

	policy := holder.Get()
	assert.Equal(t, int64(25), policy.CreditsForTier("pro"))
	assert.Equal(t, int64(80), policy.CreditsForTier("business"))
	assert.Equal(t, uint(3), policy.Retry.MaxAttempts)
	assert.Equal(t, 10*time.Millisecond, policy.Retry.InitialInterval)
}

func TestPolicyRejectsInvalidRetry(t *testing.T) {
	dir := t.TempDir()
	content := []byte(`policy:
  retry:
    maxAttempts: 0
`)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "policy.yml"), content, 0o600))

	v := viper.New()
	v.SetConfigName("policy")
	v.SetConfigType("yml")
	v.AddConfigPath(dir)

	_, err := newPolicyHolder(v, zap.NewNop())
	assert.Error(t, err)
}

func TestStaticPolicyHolder(t *testing.T) {
	holder := NewStaticPolicyHolder(Policy{CreditsPerTier: map[string]int64{"pro": 1}})
	assert.Equal(t, int64(1), holder.Get().CreditsForTier("pro"))

	var nilHolder *PolicyHolder
	assert.Equal(t, int64(20), nilHolder.Get().CreditsForTier("pro"))
}
