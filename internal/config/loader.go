package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load reads a TOML configuration file at path, merges it on top of the
// built-in defaults, applies AGENTRADER_* environment variable overrides,
// and returns the final Config. The returned Config has NOT been
// validated; the caller should invoke Config.Validate() after Load.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return nil, err
	}

	// Load .env file if present (silently ignore if missing).
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)

	return &cfg, nil
}

// applyEnvOverrides reads well-known AGENTRADER_* environment variables
// and overwrites the corresponding Config fields when a variable is set.
// This lets operators inject secrets at deploy time without touching the
// TOML file.
func applyEnvOverrides(cfg *Config) {
	// ── Polymarket ──
	setStr(&cfg.Polymarket.ClobHost, "AGENTRADER_POLYMARKET_CLOB_HOST")
	setStr(&cfg.Polymarket.BridgeHost, "AGENTRADER_POLYMARKET_BRIDGE_HOST")
	setStr(&cfg.Polymarket.WsHost, "AGENTRADER_POLYMARKET_WS_HOST")
	setInt(&cfg.Polymarket.ChainID, "AGENTRADER_POLYMARKET_CHAIN_ID")
	setInt(&cfg.Polymarket.SignatureType, "AGENTRADER_POLYMARKET_SIGNATURE_TYPE")

	// ── Limitless ──
	setStr(&cfg.Limitless.BaseURL, "AGENTRADER_LIMITLESS_BASE_URL")

	// ── Chains ──
	setStr(&cfg.Chains.BaseRPC, "AGENTRADER_CHAINS_BASE_RPC")
	setStr(&cfg.Chains.PolygonRPC, "AGENTRADER_CHAINS_POLYGON_RPC")
	setInt64(&cfg.Chains.BaseChainID, "AGENTRADER_CHAINS_BASE_CHAIN_ID")
	setInt64(&cfg.Chains.PolygonChainID, "AGENTRADER_CHAINS_POLYGON_CHAIN_ID")
	setStr(&cfg.Chains.BaseUSDC, "AGENTRADER_CHAINS_BASE_USDC")
	setStr(&cfg.Chains.PolygonUSDC, "AGENTRADER_CHAINS_POLYGON_USDC")

	// ── Bridge ──
	setFloat64(&cfg.Bridge.MinTransferUSDC, "AGENTRADER_BRIDGE_MIN_TRANSFER_USDC")
	setDuration(&cfg.Bridge.DepositPollInterval, "AGENTRADER_BRIDGE_DEPOSIT_POLL_INTERVAL")
	setDuration(&cfg.Bridge.DepositPollBudget, "AGENTRADER_BRIDGE_DEPOSIT_POLL_BUDGET")
	setStr(&cfg.Bridge.IrisHost, "AGENTRADER_BRIDGE_IRIS_HOST")
	setDuration(&cfg.Bridge.AttestationInterval, "AGENTRADER_BRIDGE_ATTESTATION_INTERVAL")
	setDuration(&cfg.Bridge.AttestationBudget, "AGENTRADER_BRIDGE_ATTESTATION_BUDGET")
	setStr(&cfg.Bridge.PolygonTokenMessenger, "AGENTRADER_BRIDGE_POLYGON_TOKEN_MESSENGER")
	setStr(&cfg.Bridge.BaseTransmitter, "AGENTRADER_BRIDGE_BASE_TRANSMITTER")

	// ── Rebalance ──
	setBool(&cfg.Rebalance.Enabled, "AGENTRADER_REBALANCE_ENABLED")
	setFloat64(&cfg.Rebalance.MinChainUSDC, "AGENTRADER_REBALANCE_MIN_CHAIN_USDC")
	setFloat64(&cfg.Rebalance.TargetChainUSDC, "AGENTRADER_REBALANCE_TARGET_CHAIN_USDC")

	// ── Workflow ──
	setDuration(&cfg.Workflow.Schedule, "AGENTRADER_WORKFLOW_SCHEDULE")
	setInt(&cfg.Workflow.DecisionBudget, "AGENTRADER_WORKFLOW_DECISION_BUDGET")
	setStr(&cfg.Workflow.SignalChannel, "AGENTRADER_WORKFLOW_SIGNAL_CHANNEL")
	setStringSlice(&cfg.Workflow.WatchAssets, "AGENTRADER_WORKFLOW_WATCH_ASSETS")
	setDuration(&cfg.Workflow.RunLockTTL, "AGENTRADER_WORKFLOW_RUN_LOCK_TTL")

	// ── Postgres ──
	setStr(&cfg.Postgres.DSN, "AGENTRADER_POSTGRES_DSN")
	setStr(&cfg.Postgres.Host, "AGENTRADER_POSTGRES_HOST")
	setInt(&cfg.Postgres.Port, "AGENTRADER_POSTGRES_PORT")
	setStr(&cfg.Postgres.Database, "AGENTRADER_POSTGRES_DATABASE")
	setStr(&cfg.Postgres.User, "AGENTRADER_POSTGRES_USER")
	setStr(&cfg.Postgres.Password, "AGENTRADER_POSTGRES_PASSWORD")
	setStr(&cfg.Postgres.SSLMode, "AGENTRADER_POSTGRES_SSLMODE")
	setInt(&cfg.Postgres.PoolMaxConns, "AGENTRADER_POSTGRES_POOL_MAX_CONNS")
	setInt(&cfg.Postgres.PoolMinConns, "AGENTRADER_POSTGRES_POOL_MIN_CONNS")
	setBool(&cfg.Postgres.RunMigrations, "AGENTRADER_POSTGRES_RUN_MIGRATIONS")

	// ── Redis ──
	setStr(&cfg.Redis.Addr, "AGENTRADER_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "AGENTRADER_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "AGENTRADER_REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "AGENTRADER_REDIS_POOL_SIZE")
	setInt(&cfg.Redis.MaxRetries, "AGENTRADER_REDIS_MAX_RETRIES")
	setBool(&cfg.Redis.TLSEnabled, "AGENTRADER_REDIS_TLS_ENABLED")

	// ── S3 ──
	setStr(&cfg.S3.Endpoint, "AGENTRADER_S3_ENDPOINT")
	setStr(&cfg.S3.Region, "AGENTRADER_S3_REGION")
	setStr(&cfg.S3.Bucket, "AGENTRADER_S3_BUCKET")
	setStr(&cfg.S3.AccessKey, "AGENTRADER_S3_ACCESS_KEY")
	setStr(&cfg.S3.SecretKey, "AGENTRADER_S3_SECRET_KEY")
	setBool(&cfg.S3.UseSSL, "AGENTRADER_S3_USE_SSL")
	setBool(&cfg.S3.ForcePathStyle, "AGENTRADER_S3_FORCE_PATH_STYLE")
	setInt(&cfg.S3.RetentionDays, "AGENTRADER_S3_RETENTION_DAYS")

	// ── Server ──
	setBool(&cfg.Server.Enabled, "AGENTRADER_SERVER_ENABLED")
	setInt(&cfg.Server.Port, "AGENTRADER_SERVER_PORT")
	setStr(&cfg.Server.APIKey, "AGENTRADER_SERVER_API_KEY")
	setStringSlice(&cfg.Server.CORSOrigins, "AGENTRADER_SERVER_CORS_ORIGINS")

	// ── Notify ──
	setStr(&cfg.Notify.TelegramToken, "AGENTRADER_NOTIFY_TELEGRAM_TOKEN")
	setStr(&cfg.Notify.TelegramChatID, "AGENTRADER_NOTIFY_TELEGRAM_CHAT_ID")
	setStr(&cfg.Notify.DiscordWebhookURL, "AGENTRADER_NOTIFY_DISCORD_WEBHOOK_URL")
	setStringSlice(&cfg.Notify.Events, "AGENTRADER_NOTIFY_EVENTS")

	// ── Top-level ──
	setStr(&cfg.Mode, "AGENTRADER_MODE")
	setStr(&cfg.LogLevel, "AGENTRADER_LOG_LEVEL")
}

// ---------------------------------------------------------------------------
// Typed env-var helpers. Each only mutates the target when the environment
// variable is present and non-empty.
// ---------------------------------------------------------------------------

func setStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setInt64(dst *int64, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			*dst = n
		}
	}
}

func setFloat64(dst *float64, key string) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			dst.Duration = d
		}
	}
}

func setStringSlice(dst *[]string, key string) {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		cleaned := make([]string, 0, len(parts))
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p != "" {
				cleaned = append(cleaned, p)
			}
		}
		if len(cleaned) > 0 {
			*dst = cleaned
		}
	}
}
