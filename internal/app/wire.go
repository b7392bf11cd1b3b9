package app

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	s3blob "github.com/alanyoungcy/roundkeeper/internal/blob/s3"
	"github.com/alanyoungcy/roundkeeper/internal/cache/redis"
	"github.com/alanyoungcy/roundkeeper/internal/chain/evm"
	"github.com/alanyoungcy/roundkeeper/internal/chain/solana"
	"github.com/alanyoungcy/roundkeeper/internal/config"
	"github.com/alanyoungcy/roundkeeper/internal/crypto"
	"github.com/alanyoungcy/roundkeeper/internal/domain"
	"github.com/alanyoungcy/roundkeeper/internal/notify"
	"github.com/alanyoungcy/roundkeeper/internal/oracle"
	"github.com/alanyoungcy/roundkeeper/internal/server/handler"
	"github.com/alanyoungcy/roundkeeper/internal/store/postgres"
	"github.com/alanyoungcy/roundkeeper/internal/store/sqlite"
)

// Dependencies bundles everything the modes need. It is built by Wire and
// torn down by the returned cleanup function.
type Dependencies struct {
	Chain  domain.Chain
	Oracle *oracle.HermesClient

	// Nil when storage.driver is "none".
	TickStore  domain.TickStore
	AuditStore domain.AuditStore

	// Nil unless redis is enabled.
	LockManager domain.LockManager
	EventBus    domain.EventBus

	// Nil unless s3 is enabled.
	Archiver domain.RoundArchiver

	Notifier *notify.Notifier

	// HealthChecks feed GET /api/health.
	HealthChecks map[string]handler.Pinger
}

type pingFunc func(ctx context.Context) error

func (f pingFunc) Ping(ctx context.Context) error { return f(ctx) }

// Wire builds every dependency from cfg. Keys are loaded only when
// withSigner is set; otherwise the chain client is read-only.
func Wire(ctx context.Context, cfg *config.Config, withSigner bool, logger *slog.Logger) (*Dependencies, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}
	fail := func(err error) (*Dependencies, func(), error) {
		cleanup()
		return nil, nil, err
	}

	deps := &Dependencies{HealthChecks: map[string]handler.Pinger{}}

	chain, err := OpenChain(ctx, cfg, withSigner, logger)
	if err != nil {
		return fail(err)
	}
	closers = append(closers, chain.Close)
	deps.Chain = chain

	deps.Oracle = oracle.NewHermesClient(oracle.Config{
		BaseURL: cfg.Oracle.HermesURL,
		FeedID:  cfg.Oracle.FeedID,
		Timeout: cfg.Oracle.Timeout.Duration,
	}, logger)

	// --- History store ---
	hist, err := OpenHistory(ctx, cfg)
	if err != nil {
		return fail(err)
	}
	closers = append(closers, hist.Close)
	deps.TickStore = hist.Ticks
	deps.AuditStore = hist.Audit
	if hist.Ping != nil {
		deps.HealthChecks[cfg.Storage.Driver] = hist.Ping
	}

	// --- Redis ---
	if cfg.Redis.Enabled {
		redisClient, err := redis.New(ctx, redis.ClientConfig{
			Addr:       cfg.Redis.Addr,
			Password:   cfg.Redis.Password,
			DB:         cfg.Redis.DB,
			PoolSize:   cfg.Redis.PoolSize,
			MaxRetries: cfg.Redis.MaxRetries,
			TLSEnabled: cfg.Redis.TLSEnabled,
		})
		if err != nil {
			return fail(fmt.Errorf("wire: redis: %w", err))
		}
		closers = append(closers, func() { _ = redisClient.Close() })

		if cfg.Keeper.DistributedLock {
			deps.LockManager = redis.NewLockManager(redisClient)
		}
		deps.EventBus = redis.NewEventBus(redisClient)
		deps.HealthChecks["redis"] = redisClient
	}

	// --- S3 round archive ---
	if cfg.S3.Enabled {
		archiver, health, err := OpenArchive(ctx, cfg)
		if err != nil {
			return fail(err)
		}
		deps.Archiver = archiver
		deps.HealthChecks["s3"] = health
	}

	deps.Notifier = NewNotifier(cfg, logger)

	return deps, cleanup, nil
}

// OpenChain builds the configured chain client. Key loading failures are
// configuration errors.
func OpenChain(ctx context.Context, cfg *config.Config, withSigner bool, logger *slog.Logger) (domain.Chain, error) {
	keyCfg := crypto.KeyConfig{
		Secret:           cfg.Wallet.Secret,
		Keyfile:          cfg.Wallet.Keyfile,
		EncryptedKeyPath: cfg.Wallet.EncryptedKeyPath,
		KeyPassword:      cfg.Wallet.KeyPassword,
	}

	switch strings.ToLower(cfg.Chain) {
	case "evm":
		var key []byte
		if withSigner {
			k, err := crypto.LoadKey(keyCfg, crypto.ParseHexKey)
			if err != nil {
				return nil, err
			}
			key = k
		}
		c, err := evm.New(ctx, evm.Options{
			RPCURL:          cfg.EVM.RPCURL,
			ChainID:         cfg.EVM.ChainID,
			ContractAddress: cfg.EVM.ContractAddress,
			ConfirmTimeout:  cfg.Keeper.ConfirmTimeout.Duration,
			Key:             key,
		}, logger)
		if err != nil {
			return nil, fmt.Errorf("wire: evm: %w", err)
		}
		return c, nil

	default:
		var key []byte
		if withSigner {
			k, err := crypto.LoadKey(keyCfg, solana.ParseSecret)
			if err != nil {
				return nil, err
			}
			key = k
		}
		c, err := solana.New(solana.Options{
			RPCURL:         cfg.Solana.RPCURL,
			ProgramID:      cfg.Solana.ProgramID,
			USDCMint:       cfg.Solana.USDCMint,
			UrimMint:       cfg.Solana.UrimMint,
			Treasury:       cfg.Solana.Treasury,
			RatePerSec:     cfg.Solana.RPCRatePerSec,
			ConfirmTimeout: cfg.Keeper.ConfirmTimeout.Duration,
			Key:            key,
		}, logger)
		if err != nil {
			return nil, fmt.Errorf("wire: solana: %w", err)
		}
		return c, nil
	}
}

// History is the opened tick and audit storage. Ticks and Audit are nil when
// storage.driver is "none".
type History struct {
	Ticks domain.TickStore
	Audit domain.AuditStore
	Ping  handler.Pinger
	Close func()
}

// OpenHistory opens the configured history store.
func OpenHistory(ctx context.Context, cfg *config.Config) (*History, error) {
	switch strings.ToLower(cfg.Storage.Driver) {
	case "postgres":
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
			return nil, fmt.Errorf("wire: postgres: %w", err)
		}
		if cfg.Postgres.RunMigrations {
			if err := pgClient.RunMigrations(ctx); err != nil {
				pgClient.Close()
				return nil, fmt.Errorf("wire: postgres migrations: %w", err)
			}
		}
		return &History{
			Ticks: postgres.NewTickStore(pgClient.Pool()),
			Audit: postgres.NewAuditStore(pgClient.Pool()),
			Ping:  pgClient,
			Close: pgClient.Close,
		}, nil

	case "sqlite":
		store, err := sqlite.Open(cfg.SQLite.Path)
		if err != nil {
			return nil, fmt.Errorf("wire: sqlite: %w", err)
		}
		return &History{
			Ticks: store,
			Audit: store,
			Close: func() { _ = store.Close() },
		}, nil

	default:
		return &History{Close: func() {}}, nil
	}
}

// OpenArchive connects to the configured bucket and returns the round
// archiver plus a health probe.
func OpenArchive(ctx context.Context, cfg *config.Config) (*s3blob.RoundArchiver, handler.Pinger, error) {
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
		return nil, nil, fmt.Errorf("wire: s3: %w", err)
	}
	objects := s3blob.NewObjects(s3Client)
	archiver := s3blob.NewRoundArchiver(objects, objects, cfg.S3.Prefix)
	return archiver, pingFunc(s3Client.Health), nil
}

// NewNotifier builds the operator notifier from the configured channels.
// Titles carry the chain and network.
func NewNotifier(cfg *config.Config, logger *slog.Logger) *notify.Notifier {
	var senders []notify.Sender
	if cfg.Notify.TelegramToken != "" && cfg.Notify.TelegramChatID != "" {
		senders = append(senders, notify.NewTelegramSender(cfg.Notify.TelegramToken, cfg.Notify.TelegramChatID))
	}
	if cfg.Notify.DiscordWebhookURL != "" {
		senders = append(senders, notify.NewDiscordSender(cfg.Notify.DiscordWebhookURL))
	}
	return notify.NewNotifier(senders, cfg.Notify.Events, logger).WithLabel(cfg.Chain + "/" + cfg.Network)
}
