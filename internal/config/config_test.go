package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadMergesFileOverDefaults(t *testing.T) {
	path := writeConfig(t, `
mode = "once"
log_level = "debug"

[workflow]
schedule = "30m"
decision_budget = 5
watch_assets = ["123", "456"]

[[wallets.agents]]
series = "alpha"
private_key = "4c0883a69102937d6231471b5dbb6204fe512961708279feb1be6ae5538da033"
model = "gpt-5"
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "once", cfg.Mode)
	assert.Equal(t, 30*time.Minute, cfg.Workflow.Schedule.Duration)
	assert.Equal(t, 5, cfg.Workflow.DecisionBudget)
	assert.Equal(t, []string{"123", "456"}, cfg.Workflow.WatchAssets)

	// Untouched sections keep their defaults.
	assert.Equal(t, "https://clob.polymarket.com", cfg.Polymarket.ClobHost)
	assert.Equal(t, int64(8453), cfg.Chains.BaseChainID)
	assert.Equal(t, uint32(6), cfg.Bridge.BaseDomain)
	assert.Equal(t, "signals:market", cfg.Workflow.SignalChannel)

	require.Len(t, cfg.Wallets.Agents, 1)
	assert.Equal(t, "alpha", cfg.Wallets.Agents[0].Series)
}

func TestLoadAppliesEnvOverrides(t *testing.T) {
	path := writeConfig(t, `mode = "server"`)

	t.Setenv("AGENTRADER_POSTGRES_PASSWORD", "sekrit")
	t.Setenv("AGENTRADER_WORKFLOW_SCHEDULE", "2h")
	t.Setenv("AGENTRADER_SERVER_CORS_ORIGINS", "https://a.example, https://b.example")
	t.Setenv("AGENTRADER_REDIS_TLS_ENABLED", "true")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "sekrit", cfg.Postgres.Password)
	assert.Equal(t, 2*time.Hour, cfg.Workflow.Schedule.Duration)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.Server.CORSOrigins)
	assert.True(t, cfg.Redis.TLSEnabled)
}

func TestLoadRejectsMalformedDuration(t *testing.T) {
	path := writeConfig(t, `
[workflow]
schedule = "ten minutes"
`)
	_, err := Load(path)
	require.Error(t, err)
}

func TestValidateDefaultsNeedWallets(t *testing.T) {
	cfg := Defaults() // mode "full" requires at least one agent key
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "at least one agent key")
}

func TestValidateServerModeNeedsNoWallets(t *testing.T) {
	cfg := Defaults()
	cfg.Mode = "server"
	assert.NoError(t, cfg.Validate())
}

func TestValidateRejectsUnknownMode(t *testing.T) {
	cfg := Defaults()
	cfg.Mode = "backtest"
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown mode")
}

func TestValidateEncryptedKeyNeedsPassword(t *testing.T) {
	cfg := Defaults()
	cfg.Mode = "once"
	cfg.Wallets.Agents = []AgentKey{{
		Series:           "alpha",
		EncryptedKeyPath: "/keys/alpha.json",
	}}
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "key_password")
}
