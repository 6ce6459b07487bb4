package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/shopspring/decimal"

	s3blob "github.com/alanyoungcy/agentrader/internal/blob/s3"
	"github.com/alanyoungcy/agentrader/internal/bridge"
	"github.com/alanyoungcy/agentrader/internal/cache/redis"
	"github.com/alanyoungcy/agentrader/internal/chain"
	"github.com/alanyoungcy/agentrader/internal/config"
	"github.com/alanyoungcy/agentrader/internal/crypto"
	"github.com/alanyoungcy/agentrader/internal/domain"
	"github.com/alanyoungcy/agentrader/internal/notify"
	"github.com/alanyoungcy/agentrader/internal/platform/limitless"
	"github.com/alanyoungcy/agentrader/internal/platform/polymarket"
	"github.com/alanyoungcy/agentrader/internal/rebalance"
	"github.com/alanyoungcy/agentrader/internal/settle"
	"github.com/alanyoungcy/agentrader/internal/store/postgres"
	"github.com/alanyoungcy/agentrader/internal/venue"
	"github.com/alanyoungcy/agentrader/internal/wallet"
)

// Dependencies bundles every dependency the application modes need to
// operate. It is constructed by Wire and torn down by the returned
// cleanup function.
type Dependencies struct {
	// Wallets
	Registry *wallet.Registry

	// Stores
	Sessions      domain.TradingSessionStore
	AgentSessions domain.AgentSessionStore
	Decisions     domain.DecisionStore
	Trades        domain.TradeStore
	Positions     domain.PositionStore
	Runs          domain.WorkflowStore

	// Caches
	LockManager domain.LockManager
	SignalBus   domain.SignalBus
	PriceCache  domain.PriceCache

	// Chains
	Base    *chain.Client
	Polygon *chain.Client

	// Execution
	Router   *venue.Router
	PolyExec *venue.PolymarketExecutor
	Monitor  *settle.Monitor

	// Bridge
	Depositor  *bridge.DepositCoordinator
	Withdrawer *bridge.WithdrawCoordinator
	Rebalancer *rebalance.Rebalancer

	// Blob storage
	Archiver   domain.Archiver
	BlobReader domain.BlobReader

	// Notifications
	Notifier *notify.Notifier
}

// needsRedis returns true for every mode: workflow modes need locks and
// the signal bus, and the read surface serves cached prices.
func needsRedis(mode string) bool {
	switch mode {
	case "run", "once", "server", "full":
		return true
	default:
		return false
	}
}

// needsS3 returns true for modes that archive to object storage.
func needsS3(mode string) bool {
	return mode == "full"
}

// needsExecution returns true for modes that place orders and move funds.
func needsExecution(mode string) bool {
	switch mode {
	case "run", "once", "full":
		return true
	default:
		return false
	}
}

// Wire constructs all concrete dependency implementations from the given
// configuration and returns them together with a cleanup function that
// should be called on shutdown to release resources.
func Wire(ctx context.Context, cfg *config.Config) (*Dependencies, func(), error) {
	logger := slog.Default()

	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	deps := &Dependencies{}

	// --- Wallet registry ---
	registry, err := wallet.NewRegistry(cfg.Wallets.Agents, cfg.Chains.BaseChainID, cfg.Chains.PolygonChainID)
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("wire: wallet registry: %w", err)
	}
	deps.Registry = registry

	// --- PostgreSQL ---
	pgClient, err := postgres.New(ctx, postgres.ClientConfig{
		DSN:      cfg.Postgres.DSN,
		Host:     cfg.Postgres.Host,
		Port:     cfg.Postgres.Port,
		Database: cfg.Postgres.Database,
		User:     cfg.Postgres.User,
		Password: cfg.Postgres.Password,
		SSLMode:  cfg.Postgres.SSLMode,
		MaxConns: cfg.Postgres.PoolMaxConns,
		MinConns: cfg.Postgres.PoolMinConns,
	})
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("wire: postgres: %w", err)
	}
	closers = append(closers, pgClient.Close)

	if cfg.Postgres.RunMigrations {
		if err := pgClient.RunMigrations(ctx); err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: postgres migrations: %w", err)
		}
	}

	pool := pgClient.Pool()
	tradeStore := postgres.NewTradeStore(pool)
	runStore := postgres.NewWorkflowStore(pool)
	deps.Sessions = postgres.NewTradingSessionStore(pool)
	deps.AgentSessions = postgres.NewAgentSessionStore(pool)
	deps.Decisions = postgres.NewDecisionStore(pool)
	deps.Trades = tradeStore
	deps.Positions = postgres.NewPositionStore(pool)
	deps.Runs = runStore

	// --- Redis (only for modes that run workflows) ---
	if needsRedis(cfg.Mode) {
		redisClient, err := redis.New(ctx, redis.ClientConfig{
			Addr:       cfg.Redis.Addr,
			Password:   cfg.Redis.Password,
			DB:         cfg.Redis.DB,
			PoolSize:   cfg.Redis.PoolSize,
			MaxRetries: cfg.Redis.MaxRetries,
			TLSEnabled: cfg.Redis.TLSEnabled,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: redis: %w", err)
		}
		closers = append(closers, func() { _ = redisClient.Close() })

		deps.LockManager = redis.NewLockManager(redisClient)
		deps.SignalBus = redis.NewSignalBus(redisClient)
		deps.PriceCache = redis.NewPriceCache(redisClient)
	}

	// --- Chain clients (all modes: the read surface serves live balances) ---
	baseClient, err := chain.NewClient(ctx, domain.ChainBase, cfg.Chains.BaseRPC, cfg.Chains.BaseChainID, cfg.Chains.BaseUSDC, logger)
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("wire: base chain: %w", err)
	}
	closers = append(closers, baseClient.Close)
	deps.Base = baseClient

	polygonClient, err := chain.NewClient(ctx, domain.ChainPolygon, cfg.Chains.PolygonRPC, cfg.Chains.PolygonChainID, cfg.Chains.PolygonUSDC, logger)
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("wire: polygon chain: %w", err)
	}
	closers = append(closers, polygonClient.Close)
	deps.Polygon = polygonClient

	deps.Monitor = settle.NewMonitor(logger)

	// --- Notifications (built early so execution paths can report) ---
	var senders []notify.Sender
	if cfg.Notify.TelegramToken != "" && cfg.Notify.TelegramChatID != "" {
		senders = append(senders, notify.NewTelegramSender(cfg.Notify.TelegramToken, cfg.Notify.TelegramChatID))
	}
	if cfg.Notify.DiscordWebhookURL != "" {
		senders = append(senders, notify.NewDiscordSender(cfg.Notify.DiscordWebhookURL))
	}
	deps.Notifier = notify.NewNotifier(senders, cfg.Notify.Events, logger)

	// --- Venue execution stack (signing modes only) ---
	if needsExecution(cfg.Mode) {
		primary, err := registry.Capabilities(cfg.Wallets.Agents[0].Series)
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: primary agent: %w", err)
		}

		clobClient := polymarket.NewClobClient(cfg.Polymarket.ClobHost, primary.Polygon, nil)
		if err := clobClient.DeriveAPIKey(ctx); err != nil {
			logger.WarnContext(ctx, "derive CLOB API key failed; order submission may fail",
				slog.String("error", err.Error()))
		}
		limitlessClient := limitless.NewClient(cfg.Limitless.BaseURL, primary.Base)

		polyExec := venue.NewPolymarketExecutor(clobClient, primary.Polygon, logger).
			WithSignatureType(cfg.Polymarket.SignatureType)
		lmtlExec := venue.NewLimitlessExecutor(limitlessClient, logger)
		deps.PolyExec = polyExec
		deps.Router = venue.NewRouter(lmtlExec, polyExec, logger)

		// Bridge pathways.
		bridgeAPI := polymarket.NewBridgeClient(cfg.Polymarket.BridgeHost)
		deps.Depositor = bridge.NewDepositCoordinator(
			bridgeAPI, baseClient, polygonClient, deps.Monitor,
			decimal.NewFromFloat(cfg.Bridge.MinTransferUSDC),
			cfg.Bridge.DepositPollInterval.Duration,
			cfg.Bridge.DepositPollBudget.Duration,
			logger,
		)
		deps.Withdrawer = bridge.NewWithdrawCoordinator(
			bridge.NewIrisClient(cfg.Bridge.IrisHost),
			polygonClient, baseClient, deps.Monitor,
			bridge.WithdrawConfig{
				MinAmount:           decimal.NewFromFloat(cfg.Bridge.MinTransferUSDC),
				TokenMessenger:      cfg.Bridge.PolygonTokenMessenger,
				Transmitter:         cfg.Bridge.BaseTransmitter,
				PolygonUSDC:         cfg.Chains.PolygonUSDC,
				BaseDomain:          cfg.Bridge.BaseDomain,
				AttestationInterval: cfg.Bridge.AttestationInterval.Duration,
				AttestationBudget:   cfg.Bridge.AttestationBudget.Duration,
			},
			logger,
		)

		policy := rebalance.Policy{}
		if cfg.Rebalance.Enabled {
			policy = rebalance.Policy{
				Min:    decimal.NewFromFloat(cfg.Rebalance.MinChainUSDC),
				Target: decimal.NewFromFloat(cfg.Rebalance.TargetChainUSDC),
			}
		}
		deps.Rebalancer = rebalance.NewRebalancer(
			&notifyingDepositor{inner: deps.Depositor, notifier: deps.Notifier},
			&notifyingWithdrawer{inner: deps.Withdrawer, notifier: deps.Notifier},
			policy, logger,
		)
	}

	// --- S3 blob storage (archival modes only) ---
	if needsS3(cfg.Mode) {
		s3Client, err := s3blob.New(ctx, s3blob.ClientConfig{
			Endpoint:       cfg.S3.Endpoint,
			Region:         cfg.S3.Region,
			Bucket:         cfg.S3.Bucket,
			AccessKey:      cfg.S3.AccessKey,
			SecretKey:      cfg.S3.SecretKey,
			UseSSL:         cfg.S3.UseSSL,
			ForcePathStyle: cfg.S3.ForcePathStyle,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: s3: %w", err)
		}
		if err := s3Client.Health(ctx); err != nil {
			logger.WarnContext(ctx, "s3 bucket unreachable; archival will fail until it recovers",
				slog.String("bucket", cfg.S3.Bucket),
				slog.String("error", err.Error()))
		}
		deps.Archiver = s3blob.NewArchiver(s3blob.NewWriter(s3Client), tradeStore, runStore, logger)
		deps.BlobReader = s3blob.NewReader(s3Client)
	}

	return deps, cleanup, nil
}

// notifyingDepositor reports deposit completion through the notifier.
type notifyingDepositor struct {
	inner    rebalance.Depositor
	notifier *notify.Notifier
}

func (d *notifyingDepositor) Deposit(ctx context.Context, baseSigner *crypto.Signer, polygonWallet string, amount decimal.Decimal) (domain.BridgeTransfer, error) {
	transfer, err := d.inner.Deposit(ctx, baseSigner, polygonWallet, amount)
	if err == nil && transfer.State == domain.BridgeStateCompleted {
		_ = d.notifier.BridgeCompleted(ctx, transfer)
	}
	return transfer, err
}

// notifyingWithdrawer reports withdrawal completion and attestation
// timeouts. A timeout means funds are burned on the source chain, so it
// always pages regardless of the event filter.
type notifyingWithdrawer struct {
	inner    rebalance.Withdrawer
	notifier *notify.Notifier
}

func (w *notifyingWithdrawer) Withdraw(ctx context.Context, polygonSigner, baseSigner *crypto.Signer, amount decimal.Decimal) (domain.BridgeTransfer, error) {
	transfer, err := w.inner.Withdraw(ctx, polygonSigner, baseSigner, amount)
	switch {
	case err == nil && transfer.State == domain.BridgeStateCompleted:
		_ = w.notifier.BridgeCompleted(ctx, transfer)
	case transfer.State == domain.BridgeStateTimeout:
		_ = w.notifier.AttestationTimeout(ctx, transfer)
	}
	return transfer, err
}
