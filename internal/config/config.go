// Package config defines the top-level configuration for the agent
// trading orchestrator and provides validation helpers.
package config

import (
	"fmt"
	"strings"
	"time"
)

// Config is the root configuration structure. Fields are populated from a
// TOML file and then optionally overridden by AGENTRADER_* environment
// variables.
type Config struct {
	Wallets    WalletsConfig    `toml:"wallets"`
	Polymarket PolymarketConfig `toml:"polymarket"`
	Limitless  LimitlessConfig  `toml:"limitless"`
	Chains     ChainsConfig     `toml:"chains"`
	Bridge     BridgeConfig     `toml:"bridge"`
	Rebalance  RebalanceConfig  `toml:"rebalance"`
	Workflow   WorkflowConfig   `toml:"workflow"`
	Postgres   PostgresConfig   `toml:"postgres"`
	Redis      RedisConfig      `toml:"redis"`
	S3         S3Config         `toml:"s3"`
	Server     ServerConfig     `toml:"server"`
	Notify     NotifyConfig     `toml:"notify"`
	Mode       string           `toml:"mode"`
	LogLevel   string           `toml:"log_level"`
}

// AgentKey is one entry of the private key registry, keyed by agent
// series. The same key signs on both chains (both are EVM).
type AgentKey struct {
	Series           string `toml:"series"`
	PrivateKey       string `toml:"private_key"`
	EncryptedKeyPath string `toml:"encrypted_key_path"`
	KeyPassword      string `toml:"key_password"`
	Model            string `toml:"model"`
}

// WalletsConfig holds the agent key registry.
type WalletsConfig struct {
	Agents []AgentKey `toml:"agents"`
}

// PolymarketConfig holds Polymarket API endpoints and chain parameters.
type PolymarketConfig struct {
	ClobHost      string `toml:"clob_host"`
	BridgeHost    string `toml:"bridge_host"`
	WsHost        string `toml:"ws_host"`
	ChainID       int    `toml:"chain_id"`
	SignatureType int    `toml:"signature_type"`
}

// LimitlessConfig holds Limitless API endpoints. Requests authenticate
// by wallet signature, so no API key is needed.
type LimitlessConfig struct {
	BaseURL string `toml:"base_url"`
}

// ChainsConfig holds RPC endpoints and the USDC token addresses for the
// two chains.
type ChainsConfig struct {
	BaseRPC        string `toml:"base_rpc"`
	PolygonRPC     string `toml:"polygon_rpc"`
	BaseChainID    int64  `toml:"base_chain_id"`
	PolygonChainID int64  `toml:"polygon_chain_id"`
	BaseUSDC       string `toml:"base_usdc"`
	PolygonUSDC    string `toml:"polygon_usdc"`
}

// BridgeConfig holds bridge contract addresses, endpoints, and limits.
type BridgeConfig struct {
	MinTransferUSDC       float64  `toml:"min_transfer_usdc"`
	DepositPollInterval   duration `toml:"deposit_poll_interval"`
	DepositPollBudget     duration `toml:"deposit_poll_budget"`
	IrisHost              string   `toml:"iris_host"`
	AttestationInterval   duration `toml:"attestation_interval"`
	AttestationBudget     duration `toml:"attestation_budget"`
	PolygonTokenMessenger string   `toml:"polygon_token_messenger"`
	BaseTransmitter       string   `toml:"base_transmitter"`
	BaseDomain            uint32   `toml:"base_domain"`
}

// RebalanceConfig holds the per-chain balance policy.
type RebalanceConfig struct {
	Enabled         bool    `toml:"enabled"`
	MinChainUSDC    float64 `toml:"min_chain_usdc"`
	TargetChainUSDC float64 `toml:"target_chain_usdc"`
}

// WorkflowConfig holds orchestrator parameters.
type WorkflowConfig struct {
	Schedule        duration `toml:"schedule"`
	DecisionBudget  int      `toml:"decision_budget"` // max reasoning/tool steps per cycle
	SignalChannel   string   `toml:"signal_channel"`
	WatchAssets     []string `toml:"watch_assets"` // CLOB token IDs for the market data feed
	RunLockTTL duration `toml:"run_lock_ttl"`
}

// PostgresConfig holds PostgreSQL connection parameters.
type PostgresConfig struct {
	DSN           string `toml:"dsn"`
	Host          string `toml:"host"`
	Port          int    `toml:"port"`
	Database      string `toml:"database"`
	User          string `toml:"user"`
	Password      string `toml:"password"`
	SSLMode       string `toml:"ssl_mode"`
	PoolMaxConns  int    `toml:"pool_max_conns"`
	PoolMinConns  int    `toml:"pool_min_conns"`
	RunMigrations bool   `toml:"run_migrations"`
}

// RedisConfig holds Redis connection parameters.
type RedisConfig struct {
	Addr       string `toml:"addr"`
	Password   string `toml:"password"`
	DB         int    `toml:"db"`
	PoolSize   int    `toml:"pool_size"`
	MaxRetries int    `toml:"max_retries"`
	TLSEnabled bool   `toml:"tls_enabled"`
}

// S3Config holds S3-compatible object storage parameters for archival.
type S3Config struct {
	Endpoint       string `toml:"endpoint"`
	Region         string `toml:"region"`
	Bucket         string `toml:"bucket"`
	AccessKey      string `toml:"access_key"`
	SecretKey      string `toml:"secret_key"`
	UseSSL         bool   `toml:"use_ssl"`
	ForcePathStyle bool   `toml:"force_path_style"`
	RetentionDays  int    `toml:"retention_days"`
}

// ServerConfig holds HTTP read-surface parameters.
type ServerConfig struct {
	Enabled     bool     `toml:"enabled"`
	Port        int      `toml:"port"`
	APIKey      string   `toml:"api_key"`
	CORSOrigins []string `toml:"cors_origins"`
}

// NotifyConfig holds notification channel credentials.
type NotifyConfig struct {
	TelegramToken     string   `toml:"telegram_token"`
	TelegramChatID    string   `toml:"telegram_chat_id"`
	DiscordWebhookURL string   `toml:"discord_webhook_url"`
	Events            []string `toml:"events"`
}

// duration is a wrapper around time.Duration that supports TOML string
// decoding (e.g. "5m", "30s").
type duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler so the TOML decoder
// can parse duration strings like "5m" or "30s".
func (d *duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

// MarshalText implements encoding.TextMarshaler for round-trip encoding.
func (d duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Defaults returns a Config populated with reasonable default values.
func Defaults() Config {
	return Config{
		Polymarket: PolymarketConfig{
			ClobHost:      "https://clob.polymarket.com",
			BridgeHost:    "https://bridge.polymarket.com",
			WsHost:        "wss://ws-subscriptions-clob.polymarket.com/ws/market",
			ChainID:       137,
			SignatureType: 0,
		},
		Limitless: LimitlessConfig{
			BaseURL: "https://api.limitless.exchange",
		},
		Chains: ChainsConfig{
			BaseRPC:        "https://mainnet.base.org",
			PolygonRPC:     "https://polygon-rpc.com",
			BaseChainID:    8453,
			PolygonChainID: 137,
			BaseUSDC:       "0x833589fCD6eDb6E08f4c7C32D4f71b54bdA02913",
			PolygonUSDC:    "0x3c499c542cEF5E3811e1192ce70d8cC03d5c3359",
		},
		Bridge: BridgeConfig{
			MinTransferUSDC:       1.0,
			DepositPollInterval:   duration{10 * time.Second},
			DepositPollBudget:     duration{10 * time.Minute},
			IrisHost:              "https://iris-api.circle.com",
			AttestationInterval:   duration{30 * time.Second},
			AttestationBudget:     duration{30 * time.Minute},
			PolygonTokenMessenger: "0x9daF8c91AEFAE50b9c0E69629D3F6Ca40cA3B3FE",
			BaseTransmitter:       "0xAD09780d193884d503182aD4588450C416D6F9D4",
			BaseDomain:            6,
		},
		Rebalance: RebalanceConfig{
			Enabled:         true,
			MinChainUSDC:    25.0,
			TargetChainUSDC: 100.0,
		},
		Workflow: WorkflowConfig{
			Schedule:       duration{time.Hour},
			DecisionBudget: 12,
			SignalChannel:  "signals:market",
			RunLockTTL:     duration{15 * time.Minute},
		},
		Postgres: PostgresConfig{
			Host:          "localhost",
			Port:          5432,
			Database:      "agentrader",
			User:          "postgres",
			SSLMode:       "disable",
			PoolMaxConns:  10,
			PoolMinConns:  2,
			RunMigrations: true,
		},
		Redis: RedisConfig{
			Addr:       "localhost:6379",
			PoolSize:   20,
			MaxRetries: 3,
		},
		S3: S3Config{
			Endpoint:       "http://localhost:9000",
			Region:         "us-east-1",
			Bucket:         "agentrader-archive",
			ForcePathStyle: true,
			RetentionDays:  90,
		},
		Server: ServerConfig{
			Enabled: true,
			Port:    8000,
		},
		Notify: NotifyConfig{
			Events: []string{"trade_executed", "bridge_completed", "attestation_timeout", "run_failed"},
		},
		Mode:     "full",
		LogLevel: "info",
	}
}

// validModes enumerates the accepted values for Config.Mode.
var validModes = map[string]bool{
	"run":    true,
	"once":   true,
	"server": true,
	"full":   true,
}

// validLogLevels enumerates the accepted values for Config.LogLevel.
var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// Validate checks Config for obviously invalid or missing values and
// returns a combined error describing every problem found.
func (c *Config) Validate() error {
	var errs []string

	if !validModes[strings.ToLower(c.Mode)] {
		errs = append(errs, fmt.Sprintf("unknown mode %q (valid: run, once, server, full)", c.Mode))
	}
	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Sprintf("unknown log_level %q (valid: debug, info, warn, error)", c.LogLevel))
	}

	needsWallets := c.Mode == "run" || c.Mode == "once" || c.Mode == "full"
	if needsWallets {
		if len(c.Wallets.Agents) == 0 {
			errs = append(errs, "wallets: at least one agent key is required for mode "+c.Mode)
		}
		for i, a := range c.Wallets.Agents {
			if a.Series == "" {
				errs = append(errs, fmt.Sprintf("wallets.agents[%d]: series must not be empty", i))
			}
			if a.PrivateKey == "" && a.EncryptedKeyPath == "" {
				errs = append(errs, fmt.Sprintf("wallets.agents[%d]: either private_key or encrypted_key_path must be set", i))
			}
			if a.EncryptedKeyPath != "" && a.KeyPassword == "" {
				errs = append(errs, fmt.Sprintf("wallets.agents[%d]: key_password is required when encrypted_key_path is set", i))
			}
		}
	}

	if c.Polymarket.ClobHost == "" {
		errs = append(errs, "polymarket: clob_host must not be empty")
	}
	if c.Polymarket.ChainID <= 0 {
		errs = append(errs, "polymarket: chain_id must be positive")
	}
	if c.Limitless.BaseURL == "" {
		errs = append(errs, "limitless: base_url must not be empty")
	}

	if c.Chains.BaseRPC == "" || c.Chains.PolygonRPC == "" {
		errs = append(errs, "chains: base_rpc and polygon_rpc must not be empty")
	}
	if c.Chains.BaseUSDC == "" || c.Chains.PolygonUSDC == "" {
		errs = append(errs, "chains: base_usdc and polygon_usdc token addresses must not be empty")
	}

	if c.Bridge.MinTransferUSDC <= 0 {
		errs = append(errs, "bridge: min_transfer_usdc must be > 0")
	}
	if c.Bridge.DepositPollInterval.Duration <= 0 || c.Bridge.DepositPollBudget.Duration <= 0 {
		errs = append(errs, "bridge: deposit poll interval and budget must be > 0")
	}
	if c.Bridge.AttestationInterval.Duration <= 0 || c.Bridge.AttestationBudget.Duration <= 0 {
		errs = append(errs, "bridge: attestation interval and budget must be > 0")
	}
	if c.Bridge.IrisHost == "" {
		errs = append(errs, "bridge: iris_host must not be empty")
	}

	if c.Rebalance.Enabled {
		if c.Rebalance.MinChainUSDC <= 0 {
			errs = append(errs, "rebalance: min_chain_usdc must be > 0 when enabled")
		}
		if c.Rebalance.TargetChainUSDC < c.Rebalance.MinChainUSDC {
			errs = append(errs, "rebalance: target_chain_usdc must be >= min_chain_usdc")
		}
	}

	if c.Workflow.DecisionBudget < 1 {
		errs = append(errs, "workflow: decision_budget must be >= 1")
	}
	if c.Workflow.Schedule.Duration <= 0 {
		errs = append(errs, "workflow: schedule must be > 0")
	}

	if strings.TrimSpace(c.Postgres.DSN) == "" {
		if c.Postgres.Host == "" {
			errs = append(errs, "postgres: host must not be empty (or set postgres.dsn)")
		}
		if c.Postgres.Port <= 0 || c.Postgres.Port > 65535 {
			errs = append(errs, fmt.Sprintf("postgres: port must be 1-65535, got %d", c.Postgres.Port))
		}
		if c.Postgres.Database == "" {
			errs = append(errs, "postgres: database must not be empty")
		}
	}
	if c.Postgres.PoolMaxConns < 1 {
		errs = append(errs, "postgres: pool_max_conns must be >= 1")
	}
	if c.Postgres.PoolMinConns > c.Postgres.PoolMaxConns {
		errs = append(errs, "postgres: pool_min_conns must not exceed pool_max_conns")
	}

	if c.Redis.Addr == "" {
		errs = append(errs, "redis: addr must not be empty")
	}
	if c.Redis.PoolSize < 1 {
		errs = append(errs, "redis: pool_size must be >= 1")
	}

	if c.Server.Enabled {
		if c.Server.Port <= 0 || c.Server.Port > 65535 {
			errs = append(errs, fmt.Sprintf("server: port must be 1-65535, got %d", c.Server.Port))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
