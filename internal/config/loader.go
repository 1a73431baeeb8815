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
// built-in defaults, applies INVKEEPER_* environment variable overrides, and
// returns the final Config. The returned Config has NOT been validated; the
// caller should invoke Config.Validate() after Load.
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

// applyEnvOverrides reads well-known INVKEEPER_* environment variables and
// overwrites the corresponding Config fields when a variable is set (i.e. not
// empty). This lets operators inject secrets at deploy time without touching
// the TOML file.
func applyEnvOverrides(cfg *Config) {
	// ── Chain ──
	setStr(&cfg.Chain.RPCURL, "INVKEEPER_CHAIN_RPC_URL")
	setInt64(&cfg.Chain.GasPriceWei, "INVKEEPER_CHAIN_GAS_PRICE_WEI")
	setInt64(&cfg.Chain.GasPriceMaxWei, "INVKEEPER_CHAIN_GAS_PRICE_MAX_WEI")
	setDuration(&cfg.Chain.TxTimeout, "INVKEEPER_CHAIN_TX_TIMEOUT")

	// ── Wallet ──
	setStr(&cfg.Wallet.PrivateKey, "INVKEEPER_WALLET_PRIVATE_KEY")
	setStr(&cfg.Wallet.EncryptedKeyPath, "INVKEEPER_WALLET_ENCRYPTED_KEY_PATH")
	setStr(&cfg.Wallet.KeyPassword, "INVKEEPER_WALLET_KEY_PASSWORD")

	// ── Keeper ──
	setStr(&cfg.Keeper.InventoryPath, "INVKEEPER_KEEPER_INVENTORY_PATH")
	setDuration(&cfg.Keeper.RebalanceInterval, "INVKEEPER_KEEPER_REBALANCE_INTERVAL")
	setInt(&cfg.Keeper.MaxReadAttempts, "INVKEEPER_KEEPER_MAX_READ_ATTEMPTS")
	setBool(&cfg.Keeper.ApproveOnStart, "INVKEEPER_KEEPER_APPROVE_ON_START")
	setBool(&cfg.Keeper.LeaderLock, "INVKEEPER_KEEPER_LEADER_LOCK")

	// ── Dump ──
	setBool(&cfg.Dump.Enabled, "INVKEEPER_DUMP_ENABLED")
	setStr(&cfg.Dump.Path, "INVKEEPER_DUMP_PATH")
	setDuration(&cfg.Dump.Interval, "INVKEEPER_DUMP_INTERVAL")
	setBool(&cfg.Dump.Upload, "INVKEEPER_DUMP_UPLOAD")
	setStr(&cfg.Dump.Prefix, "INVKEEPER_DUMP_PREFIX")

	// ── Postgres ──
	setBool(&cfg.Postgres.Enabled, "INVKEEPER_POSTGRES_ENABLED")
	setStr(&cfg.Postgres.DSN, "INVKEEPER_POSTGRES_DSN")
	setStr(&cfg.Postgres.Host, "INVKEEPER_POSTGRES_HOST")
	setInt(&cfg.Postgres.Port, "INVKEEPER_POSTGRES_PORT")
	setStr(&cfg.Postgres.Database, "INVKEEPER_POSTGRES_DATABASE")
	setStr(&cfg.Postgres.User, "INVKEEPER_POSTGRES_USER")
	setStr(&cfg.Postgres.Password, "INVKEEPER_POSTGRES_PASSWORD")
	setStr(&cfg.Postgres.SSLMode, "INVKEEPER_POSTGRES_SSLMODE")
	setInt(&cfg.Postgres.PoolMaxConns, "INVKEEPER_POSTGRES_POOL_MAX_CONNS")
	setInt(&cfg.Postgres.PoolMinConns, "INVKEEPER_POSTGRES_POOL_MIN_CONNS")
	setBool(&cfg.Postgres.RunMigrations, "INVKEEPER_POSTGRES_RUN_MIGRATIONS")

	// ── Redis ──
	setStr(&cfg.Redis.Addr, "INVKEEPER_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "INVKEEPER_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "INVKEEPER_REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "INVKEEPER_REDIS_POOL_SIZE")
	setInt(&cfg.Redis.MaxRetries, "INVKEEPER_REDIS_MAX_RETRIES")
	setBool(&cfg.Redis.TLSEnabled, "INVKEEPER_REDIS_TLS_ENABLED")

	// ── S3 ──
	setStr(&cfg.S3.Endpoint, "INVKEEPER_S3_ENDPOINT")
	setStr(&cfg.S3.Region, "INVKEEPER_S3_REGION")
	setStr(&cfg.S3.Bucket, "INVKEEPER_S3_BUCKET")
	setStr(&cfg.S3.AccessKey, "INVKEEPER_S3_ACCESS_KEY")
	setStr(&cfg.S3.SecretKey, "INVKEEPER_S3_SECRET_KEY")
	setBool(&cfg.S3.UseSSL, "INVKEEPER_S3_USE_SSL")
	setBool(&cfg.S3.ForcePathStyle, "INVKEEPER_S3_FORCE_PATH_STYLE")

	// ── Notify ──
	setStr(&cfg.Notify.TelegramToken, "INVKEEPER_NOTIFY_TELEGRAM_TOKEN")
	setStr(&cfg.Notify.TelegramChatID, "INVKEEPER_NOTIFY_TELEGRAM_CHAT_ID")
	setStr(&cfg.Notify.DiscordWebhookURL, "INVKEEPER_NOTIFY_DISCORD_WEBHOOK_URL")
	setStringSlice(&cfg.Notify.Events, "INVKEEPER_NOTIFY_EVENTS")

	// ── Top-level ──
	setStr(&cfg.LogLevel, "INVKEEPER_LOG_LEVEL")
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
