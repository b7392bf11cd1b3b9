package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"

	"github.com/alanyoungcy/roundkeeper/internal/domain"
)

// Load reads a TOML configuration file at path, merges it on top of the
// built-in defaults, applies KEEPER_* environment variable overrides and the
// network RPC presets, and returns the final Config. An empty path skips the
// file. The returned Config has NOT been validated; the caller should invoke
// Config.Validate() after Load.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if path != "" {
		if _, err := toml.DecodeFile(path, &cfg); err != nil {
			return nil, fmt.Errorf("%w: read %s: %v", domain.ErrConfiguration, path, err)
		}
	}

	// Load .env file if present (silently ignore if missing).
	_ = godotenv.Load()

	if err := applyEnvOverrides(&cfg); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrConfiguration, err)
	}
	cfg.ApplyNetworkDefaults()

	return &cfg, nil
}

// applyEnvOverrides reads well-known KEEPER_* environment variables and
// overwrites the corresponding Config fields when a variable is set. Values
// that do not parse are collected and returned together.
func applyEnvOverrides(cfg *Config) error {
	env := &envParser{}

	// ── Top-level ──
	env.setStr(&cfg.Mode, "KEEPER_MODE")
	env.setStr(&cfg.Chain, "KEEPER_CHAIN")
	env.setStr(&cfg.Network, "KEEPER_NETWORK")

	// ── Log ──
	env.setStr(&cfg.Log.Level, "KEEPER_LOG_LEVEL")
	env.setStr(&cfg.Log.Format, "KEEPER_LOG_FORMAT")
	env.setStr(&cfg.Log.File, "KEEPER_LOG_FILE")

	// ── Keeper ──
	env.setDuration(&cfg.Keeper.TickInterval, "KEEPER_TICK_INTERVAL")
	env.setDuration(&cfg.Keeper.RoundDuration, "KEEPER_ROUND_DURATION")
	env.setBool(&cfg.Keeper.AutoStartNewRound, "KEEPER_AUTO_START_NEW_ROUND")
	env.setBool(&cfg.Keeper.AutoCollectFees, "KEEPER_AUTO_COLLECT_FEES")
	env.setDuration(&cfg.Keeper.ConfirmTimeout, "KEEPER_CONFIRM_TIMEOUT")
	env.setBool(&cfg.Keeper.DistributedLock, "KEEPER_DISTRIBUTED_LOCK")
	env.setDuration(&cfg.Keeper.LockTTL, "KEEPER_LOCK_TTL")

	// ── Wallet ──
	env.setStr(&cfg.Wallet.Secret, "KEEPER_WALLET_SECRET")
	env.setStr(&cfg.Wallet.Keyfile, "KEEPER_WALLET_KEYFILE")
	env.setStr(&cfg.Wallet.EncryptedKeyPath, "KEEPER_WALLET_ENCRYPTED_KEY_PATH")
	env.setStr(&cfg.Wallet.KeyPassword, "KEEPER_WALLET_KEY_PASSWORD")

	// ── Solana ──
	env.setStr(&cfg.Solana.RPCURL, "KEEPER_SOLANA_RPC_URL")
	env.setStr(&cfg.Solana.ProgramID, "KEEPER_SOLANA_PROGRAM_ID")
	env.setStr(&cfg.Solana.USDCMint, "KEEPER_SOLANA_USDC_MINT")
	env.setStr(&cfg.Solana.UrimMint, "KEEPER_SOLANA_URIM_MINT")
	env.setStr(&cfg.Solana.Treasury, "KEEPER_SOLANA_TREASURY")
	env.setFloat64(&cfg.Solana.RPCRatePerSec, "KEEPER_SOLANA_RPC_RATE_PER_SEC")

	// ── EVM ──
	env.setStr(&cfg.EVM.RPCURL, "KEEPER_EVM_RPC_URL")
	env.setInt64(&cfg.EVM.ChainID, "KEEPER_EVM_CHAIN_ID")
	env.setStr(&cfg.EVM.ContractAddress, "KEEPER_EVM_CONTRACT_ADDRESS")

	// ── Oracle ──
	env.setStr(&cfg.Oracle.HermesURL, "KEEPER_ORACLE_HERMES_URL")
	env.setStr(&cfg.Oracle.FeedID, "KEEPER_ORACLE_FEED_ID")
	env.setDuration(&cfg.Oracle.Timeout, "KEEPER_ORACLE_TIMEOUT")

	// ── Storage ──
	env.setStr(&cfg.Storage.Driver, "KEEPER_STORAGE_DRIVER")
	env.setStr(&cfg.Postgres.DSN, "KEEPER_POSTGRES_DSN")
	env.setStr(&cfg.Postgres.Host, "KEEPER_POSTGRES_HOST")
	env.setInt(&cfg.Postgres.Port, "KEEPER_POSTGRES_PORT")
	env.setStr(&cfg.Postgres.Database, "KEEPER_POSTGRES_DATABASE")
	env.setStr(&cfg.Postgres.User, "KEEPER_POSTGRES_USER")
	env.setStr(&cfg.Postgres.Password, "KEEPER_POSTGRES_PASSWORD")
	env.setStr(&cfg.Postgres.SSLMode, "KEEPER_POSTGRES_SSL_MODE")
	env.setBool(&cfg.Postgres.RunMigrations, "KEEPER_POSTGRES_RUN_MIGRATIONS")
	env.setStr(&cfg.SQLite.Path, "KEEPER_SQLITE_PATH")

	// ── Redis ──
	env.setBool(&cfg.Redis.Enabled, "KEEPER_REDIS_ENABLED")
	env.setStr(&cfg.Redis.Addr, "KEEPER_REDIS_ADDR")
	env.setStr(&cfg.Redis.Password, "KEEPER_REDIS_PASSWORD")
	env.setInt(&cfg.Redis.DB, "KEEPER_REDIS_DB")
	env.setBool(&cfg.Redis.TLSEnabled, "KEEPER_REDIS_TLS_ENABLED")

	// ── S3 ──
	env.setBool(&cfg.S3.Enabled, "KEEPER_S3_ENABLED")
	env.setStr(&cfg.S3.Endpoint, "KEEPER_S3_ENDPOINT")
	env.setStr(&cfg.S3.Region, "KEEPER_S3_REGION")
	env.setStr(&cfg.S3.Bucket, "KEEPER_S3_BUCKET")
	env.setStr(&cfg.S3.AccessKey, "KEEPER_S3_ACCESS_KEY")
	env.setStr(&cfg.S3.SecretKey, "KEEPER_S3_SECRET_KEY")

	// ── Server ──
	env.setBool(&cfg.Server.Enabled, "KEEPER_SERVER_ENABLED")
	env.setInt(&cfg.Server.Port, "KEEPER_SERVER_PORT")
	env.setStr(&cfg.Server.APIKey, "KEEPER_SERVER_API_KEY")
	env.setStringSlice(&cfg.Server.CORSOrigins, "KEEPER_SERVER_CORS_ORIGINS")

	// ── Notify ──
	env.setStr(&cfg.Notify.TelegramToken, "KEEPER_NOTIFY_TELEGRAM_TOKEN")
	env.setStr(&cfg.Notify.TelegramChatID, "KEEPER_NOTIFY_TELEGRAM_CHAT_ID")
	env.setStr(&cfg.Notify.DiscordWebhookURL, "KEEPER_NOTIFY_DISCORD_WEBHOOK_URL")
	env.setStringSlice(&cfg.Notify.Events, "KEEPER_NOTIFY_EVENTS")

	if len(env.errs) > 0 {
		return fmt.Errorf("environment: %s", strings.Join(env.errs, "; "))
	}
	return nil
}

// ---------------------------------------------------------------------------
// Typed env-var helpers. Each only mutates the target when the environment
// variable is present and non-empty; parse failures are recorded.
// ---------------------------------------------------------------------------

// envParser records every malformed variable instead of dropping it.
type envParser struct {
	errs []string
}

func (e *envParser) fail(key, value string, err error) {
	e.errs = append(e.errs, fmt.Sprintf("%s=%q: %v", key, value, err))
}

func (e *envParser) setStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func (e *envParser) setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			e.fail(key, v, err)
			return
		}
		*dst = n
	}
}

func (e *envParser) setInt64(dst *int64, key string) {
	if v := os.Getenv(key); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			e.fail(key, v, err)
			return
		}
		*dst = n
	}
}

func (e *envParser) setFloat64(dst *float64, key string) {
	if v := os.Getenv(key); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			e.fail(key, v, err)
			return
		}
		*dst = f
	}
}

func (e *envParser) setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			e.fail(key, v, err)
			return
		}
		*dst = b
	}
}

func (e *envParser) setDuration(dst *Duration, key string) {
	if v := os.Getenv(key); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			e.fail(key, v, err)
			return
		}
		dst.Duration = d
	}
}

func (e *envParser) setStringSlice(dst *[]string, key string) {
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
