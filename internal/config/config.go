// Package config defines the top-level configuration for the round keeper
// and provides validation helpers.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/alanyoungcy/roundkeeper/internal/domain"
)

// Config is the root configuration structure. Fields are populated from a TOML
// file and then optionally overridden by KEEPER_* environment variables.
type Config struct {
	Mode    string `toml:"mode"`
	Chain   string `toml:"chain"`
	Network string `toml:"network"`

	Log      LogConfig      `toml:"log"`
	Keeper   KeeperConfig   `toml:"keeper"`
	Wallet   WalletConfig   `toml:"wallet"`
	Solana   SolanaConfig   `toml:"solana"`
	EVM      EVMConfig      `toml:"evm"`
	Oracle   OracleConfig   `toml:"oracle"`
	Storage  StorageConfig  `toml:"storage"`
	Postgres PostgresConfig `toml:"postgres"`
	SQLite   SQLiteConfig   `toml:"sqlite"`
	Redis    RedisConfig    `toml:"redis"`
	S3       S3Config       `toml:"s3"`
	Server   ServerConfig   `toml:"server"`
	Notify   NotifyConfig   `toml:"notify"`
}

// LogConfig controls the slog handler and the optional rotating file sink.
type LogConfig struct {
	Level      string `toml:"level"`
	Format     string `toml:"format"`
	File       string `toml:"file"`
	MaxSizeMB  int    `toml:"max_size_mb"`
	MaxBackups int    `toml:"max_backups"`
	MaxAgeDays int    `toml:"max_age_days"`
	Compress   bool   `toml:"compress"`
}

// KeeperConfig parameterises the lifecycle driver and its scheduler.
type KeeperConfig struct {
	TickInterval      Duration `toml:"tick_interval"`
	RoundDuration     Duration `toml:"round_duration"`
	AutoStartNewRound bool     `toml:"auto_start_new_round"`
	AutoCollectFees   bool     `toml:"auto_collect_fees"`
	ConfirmTimeout    Duration `toml:"confirm_timeout"`
	DistributedLock   bool     `toml:"distributed_lock"`
	LockTTL           Duration `toml:"lock_ttl"`
}

// WalletConfig holds the admin signing credential. Exactly one source is used,
// in order: secret, keyfile, encrypted_key_path.
type WalletConfig struct {
	Secret           string `toml:"secret"`
	Keyfile          string `toml:"keyfile"`
	EncryptedKeyPath string `toml:"encrypted_key_path"`
	KeyPassword      string `toml:"key_password"`
}

// SolanaConfig holds Solana program parameters.
type SolanaConfig struct {
	RPCURL        string  `toml:"rpc_url"`
	ProgramID     string  `toml:"program_id"`
	USDCMint      string  `toml:"usdc_mint"`
	UrimMint      string  `toml:"urim_mint"`
	Treasury      string  `toml:"treasury"`
	RPCRatePerSec float64 `toml:"rpc_rate_per_sec"`
}

// EVMConfig holds EVM contract parameters.
type EVMConfig struct {
	RPCURL          string `toml:"rpc_url"`
	ChainID         int64  `toml:"chain_id"`
	ContractAddress string `toml:"contract_address"`
}

// OracleConfig points at a Pyth Hermes price service.
type OracleConfig struct {
	HermesURL string   `toml:"hermes_url"`
	FeedID    string   `toml:"feed_id"`
	Timeout   Duration `toml:"timeout"`
}

// StorageConfig selects the tick history backend.
type StorageConfig struct {
	Driver string `toml:"driver"`
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

// SQLiteConfig holds the embedded database path.
type SQLiteConfig struct {
	Path string `toml:"path"`
}

// RedisConfig holds Redis connection parameters.
type RedisConfig struct {
	Enabled    bool   `toml:"enabled"`
	Addr       string `toml:"addr"`
	Password   string `toml:"password"`
	DB         int    `toml:"db"`
	PoolSize   int    `toml:"pool_size"`
	MaxRetries int    `toml:"max_retries"`
	TLSEnabled bool   `toml:"tls_enabled"`
}

// S3Config holds S3-compatible object storage parameters for the round archive.
type S3Config struct {
	Enabled        bool   `toml:"enabled"`
	Endpoint       string `toml:"endpoint"`
	Region         string `toml:"region"`
	Bucket         string `toml:"bucket"`
	AccessKey      string `toml:"access_key"`
	SecretKey      string `toml:"secret_key"`
	UseSSL         bool   `toml:"use_ssl"`
	ForcePathStyle bool   `toml:"force_path_style"`
	Prefix         string `toml:"prefix"`
}

// ServerConfig holds HTTP status server parameters.
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

// Duration is a wrapper around time.Duration that supports TOML string
// decoding (e.g. "30s", "3m").
type Duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler so the TOML decoder can
// parse duration strings like "5m" or "30s".
func (d *Duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Public RPC endpoints used when rpc_url is left empty.
var (
	solanaRPCByNetwork = map[string]string{
		"devnet":   "https://api.devnet.solana.com",
		"mainnet":  "https://api.mainnet-beta.solana.com",
		"localnet": "http://127.0.0.1:8899",
	}
	evmRPCByNetwork = map[string]string{
		"devnet":   "https://sepolia.base.org",
		"mainnet":  "https://mainnet.base.org",
		"localnet": "http://127.0.0.1:8545",
	}
	evmChainIDByNetwork = map[string]int64{
		"devnet":   84532,
		"mainnet":  8453,
		"localnet": 31337,
	}
)

// SolUSDFeedID is the Pyth SOL/USD price feed.
const SolUSDFeedID = "0xef0d8b6fda2ceba41da15d4095d1da392a0d2f8ed0c6c7bc0f4cfac8c280b56d"

// Defaults returns a Config populated with reasonable default values.
// These match the values in config.example.toml.
func Defaults() Config {
	return Config{
		Mode:    "keeper",
		Chain:   "solana",
		Network: "devnet",
		Log: LogConfig{
			Level:      "info",
			Format:     "text",
			MaxSizeMB:  100,
			MaxBackups: 5,
			MaxAgeDays: 30,
			Compress:   true,
		},
		Keeper: KeeperConfig{
			TickInterval:      Duration{30 * time.Second},
			RoundDuration:     Duration{180 * time.Second},
			AutoStartNewRound: true,
			AutoCollectFees:   true,
			ConfirmTimeout:    Duration{60 * time.Second},
			LockTTL:           Duration{5 * time.Minute},
		},
		Solana: SolanaConfig{
			RPCRatePerSec: 10,
		},
		Oracle: OracleConfig{
			HermesURL: "https://hermes.pyth.network",
			FeedID:    SolUSDFeedID,
			Timeout:   Duration{10 * time.Second},
		},
		Storage: StorageConfig{
			Driver: "none",
		},
		Postgres: PostgresConfig{
			Host:          "localhost",
			Port:          5432,
			Database:      "postgres",
			User:          "postgres",
			SSLMode:       "disable",
			PoolMaxConns:  5,
			PoolMinConns:  1,
			RunMigrations: true,
		},
		SQLite: SQLiteConfig{
			Path: "keeper.db",
		},
		Redis: RedisConfig{
			Addr:       "localhost:6379",
			PoolSize:   10,
			MaxRetries: 3,
		},
		S3: S3Config{
			Endpoint:       "http://localhost:9000",
			Region:         "us-east-1",
			Bucket:         "round-keeper",
			ForcePathStyle: true,
			Prefix:         "rounds",
		},
		Server: ServerConfig{
			Enabled:     false,
			Port:        8080,
			CORSOrigins: []string{"http://localhost:3000", "http://localhost:5173"},
		},
		Notify: NotifyConfig{
			Events: []string{"round_started", "round_resolved", "fees_failed", "tick_failed", "admin_action"},
		},
	}
}

// ApplyNetworkDefaults fills empty RPC endpoints and chain ids from the
// network preset. Load calls it after environment overrides.
func (c *Config) ApplyNetworkDefaults() {
	network := strings.ToLower(c.Network)
	if c.Solana.RPCURL == "" {
		c.Solana.RPCURL = solanaRPCByNetwork[network]
	}
	if c.EVM.RPCURL == "" {
		c.EVM.RPCURL = evmRPCByNetwork[network]
	}
	if c.EVM.ChainID == 0 {
		c.EVM.ChainID = evmChainIDByNetwork[network]
	}
}

// RPCURL returns the endpoint of the selected chain.
func (c *Config) RPCURL() string {
	if strings.EqualFold(c.Chain, "evm") {
		return c.EVM.RPCURL
	}
	return c.Solana.RPCURL
}

// ProgramAddress returns the program id or contract address of the selected
// chain. It also keys the distributed tick lock.
func (c *Config) ProgramAddress() string {
	if strings.EqualFold(c.Chain, "evm") {
		return c.EVM.ContractAddress
	}
	return c.Solana.ProgramID
}

var (
	validModes     = map[string]bool{"keeper": true, "once": true}
	validChains    = map[string]bool{"solana": true, "evm": true}
	validNetworks  = map[string]bool{"devnet": true, "mainnet": true, "localnet": true}
	validLogLevels = map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	validFormats   = map[string]bool{"text": true, "json": true}
	validDrivers   = map[string]bool{"none": true, "postgres": true, "sqlite": true}
)

// Validate checks Config for obviously invalid or missing values and returns a
// combined error describing every problem found.
func (c *Config) Validate() error {
	return c.validate(true)
}

// ValidateReadOnly is Validate without the signing credential requirement.
// Inspection commands use it.
func (c *Config) ValidateReadOnly() error {
	return c.validate(false)
}

func (c *Config) validate(needSigner bool) error {
	var errs []string

	if !validModes[strings.ToLower(c.Mode)] {
		errs = append(errs, fmt.Sprintf("unknown mode %q (valid: keeper, once)", c.Mode))
	}
	if !validChains[strings.ToLower(c.Chain)] {
		errs = append(errs, fmt.Sprintf("unknown chain %q (valid: solana, evm)", c.Chain))
	}
	if !validNetworks[strings.ToLower(c.Network)] {
		errs = append(errs, fmt.Sprintf("unknown network %q (valid: devnet, mainnet, localnet)", c.Network))
	}

	// Log
	if !validLogLevels[strings.ToLower(c.Log.Level)] {
		errs = append(errs, fmt.Sprintf("log: unknown level %q (valid: debug, info, warn, error)", c.Log.Level))
	}
	if !validFormats[strings.ToLower(c.Log.Format)] {
		errs = append(errs, fmt.Sprintf("log: unknown format %q (valid: text, json)", c.Log.Format))
	}

	// Keeper
	if c.Keeper.TickInterval.Duration <= 0 {
		errs = append(errs, "keeper: tick_interval must be > 0")
	}
	if c.Keeper.RoundDuration.Duration < time.Second {
		errs = append(errs, "keeper: round_duration must be at least 1s")
	}
	if c.Keeper.ConfirmTimeout.Duration <= 0 {
		errs = append(errs, "keeper: confirm_timeout must be > 0")
	}
	if c.Keeper.DistributedLock {
		if !c.Redis.Enabled {
			errs = append(errs, "keeper: distributed_lock requires redis.enabled")
		}
		if c.Keeper.LockTTL.Duration <= 0 {
			errs = append(errs, "keeper: lock_ttl must be > 0 when distributed_lock is set")
		}
	}

	// Wallet
	if needSigner {
		if c.Wallet.Secret == "" && c.Wallet.Keyfile == "" && c.Wallet.EncryptedKeyPath == "" {
			errs = append(errs, "wallet: one of secret, keyfile or encrypted_key_path must be set")
		}
		if c.Wallet.EncryptedKeyPath != "" && c.Wallet.KeyPassword == "" {
			errs = append(errs, "wallet: key_password is required when encrypted_key_path is set")
		}
	}

	// Chain
	switch strings.ToLower(c.Chain) {
	case "solana":
		if c.Solana.RPCURL == "" {
			errs = append(errs, "solana: rpc_url must not be empty")
		}
		if c.Solana.ProgramID == "" {
			errs = append(errs, "solana: program_id must not be empty")
		}
		if c.Solana.USDCMint == "" {
			errs = append(errs, "solana: usdc_mint must not be empty")
		}
		if c.Solana.UrimMint == "" {
			errs = append(errs, "solana: urim_mint must not be empty")
		}
		if c.Solana.RPCRatePerSec < 0 {
			errs = append(errs, "solana: rpc_rate_per_sec must be >= 0")
		}
	case "evm":
		if c.EVM.RPCURL == "" {
			errs = append(errs, "evm: rpc_url must not be empty")
		}
		if c.EVM.ChainID <= 0 {
			errs = append(errs, "evm: chain_id must be positive")
		}
		if c.EVM.ContractAddress == "" {
			errs = append(errs, "evm: contract_address must not be empty")
		}
	}

	// Oracle
	if c.Oracle.HermesURL == "" {
		errs = append(errs, "oracle: hermes_url must not be empty")
	}
	if c.Oracle.FeedID == "" {
		errs = append(errs, "oracle: feed_id must not be empty")
	}
	if c.Oracle.Timeout.Duration <= 0 {
		errs = append(errs, "oracle: timeout must be > 0")
	}

	// Storage
	driver := strings.ToLower(c.Storage.Driver)
	if !validDrivers[driver] {
		errs = append(errs, fmt.Sprintf("storage: unknown driver %q (valid: none, postgres, sqlite)", c.Storage.Driver))
	}
	if driver == "postgres" {
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
	}
	if driver == "sqlite" && c.SQLite.Path == "" {
		errs = append(errs, "sqlite: path must not be empty")
	}

	// Redis
	if c.Redis.Enabled {
		if c.Redis.Addr == "" {
			errs = append(errs, "redis: addr must not be empty")
		}
		if c.Redis.PoolSize < 1 {
			errs = append(errs, "redis: pool_size must be >= 1")
		}
	}

	// S3
	if c.S3.Enabled {
		if c.S3.Endpoint == "" {
			errs = append(errs, "s3: endpoint must not be empty")
		}
		if c.S3.Bucket == "" {
			errs = append(errs, "s3: bucket must not be empty")
		}
	}

	// Server
	if c.Server.Enabled {
		if c.Server.Port <= 0 || c.Server.Port > 65535 {
			errs = append(errs, fmt.Sprintf("server: port must be 1-65535, got %d", c.Server.Port))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w: config validation failed:\n  - %s", domain.ErrConfiguration, strings.Join(errs, "\n  - "))
	}
	return nil
}
