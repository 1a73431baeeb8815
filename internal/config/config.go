// Package config defines the top-level configuration for the inventory
// keeper and provides validation helpers.
package config

import (
	"fmt"
	"strings"
	"time"
)

// Config is the root configuration structure. Fields are populated from a TOML
// file and then optionally overridden by INVKEEPER_* environment variables.
type Config struct {
	Chain    ChainConfig    `toml:"chain"`
	Wallet   WalletConfig   `toml:"wallet"`
	Keeper   KeeperConfig   `toml:"keeper"`
	Dump     DumpConfig     `toml:"dump"`
	Postgres PostgresConfig `toml:"postgres"`
	Redis    RedisConfig    `toml:"redis"`
	S3       S3Config       `toml:"s3"`
	Notify   NotifyConfig   `toml:"notify"`
	LogLevel string         `toml:"log_level"`
}

// ChainConfig holds RPC endpoint and transaction parameters.
type ChainConfig struct {
	RPCURL string `toml:"rpc_url"`
	// GasPriceWei pins every transaction to a fixed gas price; 0 lets the
	// node suggest one.
	GasPriceWei    int64    `toml:"gas_price_wei"`
	GasPriceMaxWei int64    `toml:"gas_price_max_wei"`
	TxTimeout      duration `toml:"tx_timeout"`
}

// WalletConfig holds the base account key material.
type WalletConfig struct {
	PrivateKey       string `toml:"private_key"`
	EncryptedKeyPath string `toml:"encrypted_key_path"`
	KeyPassword      string `toml:"key_password"`
}

// KeeperConfig holds the rebalancing loop parameters.
type KeeperConfig struct {
	InventoryPath     string   `toml:"inventory_path"`
	RebalanceInterval duration `toml:"rebalance_interval"`
	// MaxReadAttempts bounds the consistent-read loop on composite balances.
	MaxReadAttempts int  `toml:"max_read_attempts"`
	ApproveOnStart  bool `toml:"approve_on_start"`
	// LeaderLock requires Redis and makes rebalance cycles mutually
	// exclusive across keeper instances.
	LeaderLock bool `toml:"leader_lock"`
}

// DumpConfig holds the inventory report dump parameters.
type DumpConfig struct {
	Enabled  bool     `toml:"enabled"`
	Path     string   `toml:"path"`
	Interval duration `toml:"interval"`
	// Upload pushes a timestamped copy of every dump to S3.
	Upload bool   `toml:"upload"`
	Prefix string `toml:"prefix"`
}

// PostgresConfig holds PostgreSQL connection parameters for the transfer
// audit trail.
type PostgresConfig struct {
	Enabled       bool   `toml:"enabled"`
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

// RedisConfig holds Redis connection parameters for the leader lock.
type RedisConfig struct {
	Addr       string `toml:"addr"`
	Password   string `toml:"password"`
	DB         int    `toml:"db"`
	PoolSize   int    `toml:"pool_size"`
	MaxRetries int    `toml:"max_retries"`
	TLSEnabled bool   `toml:"tls_enabled"`
}

// S3Config holds S3-compatible object storage parameters.
type S3Config struct {
	Endpoint       string `toml:"endpoint"`
	Region         string `toml:"region"`
	Bucket         string `toml:"bucket"`
	AccessKey      string `toml:"access_key"`
	SecretKey      string `toml:"secret_key"`
	UseSSL         bool   `toml:"use_ssl"`
	ForcePathStyle bool   `toml:"force_path_style"`
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

// UnmarshalText implements encoding.TextUnmarshaler so the TOML decoder can
// parse duration strings like "5m" or "30s".
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
// These match the values in config.example.toml.
func Defaults() Config {
	return Config{
		Chain: ChainConfig{
			RPCURL:         "http://localhost:8545",
			GasPriceWei:    0,
			GasPriceMaxWei: 0,
			TxTimeout:      duration{3 * time.Minute},
		},
		Keeper: KeeperConfig{
			InventoryPath:     "inventory.json",
			RebalanceInterval: duration{time.Minute},
			MaxReadAttempts:   5,
			ApproveOnStart:    true,
		},
		Dump: DumpConfig{
			Enabled:  true,
			Path:     "inventory.txt",
			Interval: duration{30 * time.Second},
			Prefix:   "dumps",
		},
		Postgres: PostgresConfig{
			Port:          5432,
			SSLMode:       "disable",
			PoolMaxConns:  4,
			PoolMinConns:  1,
			RunMigrations: true,
		},
		Redis: RedisConfig{
			Addr:     "localhost:6379",
			PoolSize: 10,
		},
		S3: S3Config{
			Region: "us-east-1",
			UseSSL: true,
		},
		LogLevel: "info",
	}
}

// validLogLevels enumerates the accepted values for Config.LogLevel.
var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// Validate checks Config for obviously invalid or missing values and returns
// a combined error describing every problem found.
func (c *Config) Validate() error {
	var errs []string

	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Sprintf("unknown log_level %q (valid: debug, info, warn, error)", c.LogLevel))
	}

	// Chain
	if c.Chain.RPCURL == "" {
		errs = append(errs, "chain: rpc_url must not be empty")
	}
	if c.Chain.GasPriceWei < 0 {
		errs = append(errs, "chain: gas_price_wei must be >= 0")
	}
	if c.Chain.GasPriceMaxWei < 0 {
		errs = append(errs, "chain: gas_price_max_wei must be >= 0")
	}
	if c.Chain.TxTimeout.Duration <= 0 {
		errs = append(errs, "chain: tx_timeout must be positive")
	}

	// Wallet
	if c.Wallet.PrivateKey == "" && c.Wallet.EncryptedKeyPath == "" {
		errs = append(errs, "wallet: either private_key or encrypted_key_path must be set")
	}
	if c.Wallet.EncryptedKeyPath != "" && c.Wallet.KeyPassword == "" {
		errs = append(errs, "wallet: key_password is required when encrypted_key_path is set")
	}

	// Keeper
	if c.Keeper.InventoryPath == "" {
		errs = append(errs, "keeper: inventory_path must not be empty")
	}
	if c.Keeper.RebalanceInterval.Duration <= 0 {
		errs = append(errs, "keeper: rebalance_interval must be positive")
	}
	if c.Keeper.MaxReadAttempts < 2 {
		errs = append(errs, "keeper: max_read_attempts must be >= 2")
	}
	if c.Keeper.LeaderLock && c.Redis.Addr == "" {
		errs = append(errs, "keeper: leader_lock requires redis.addr")
	}

	// Dump
	if c.Dump.Enabled {
		if c.Dump.Path == "" {
			errs = append(errs, "dump: path must not be empty when enabled")
		}
		if c.Dump.Interval.Duration <= 0 {
			errs = append(errs, "dump: interval must be positive when enabled")
		}
	}
	if c.Dump.Upload && !c.Dump.Enabled {
		errs = append(errs, "dump: upload requires dump.enabled")
	}

	// Postgres
	if c.Postgres.Enabled {
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
		if c.Postgres.PoolMinConns < 0 {
			errs = append(errs, "postgres: pool_min_conns must be >= 0")
		}
		if c.Postgres.PoolMinConns > c.Postgres.PoolMaxConns {
			errs = append(errs, "postgres: pool_min_conns must not exceed pool_max_conns")
		}
	}

	// Redis
	if c.Keeper.LeaderLock {
		if c.Redis.PoolSize < 1 {
			errs = append(errs, "redis: pool_size must be >= 1")
		}
	}

	// S3
	if c.Dump.Upload {
		if c.S3.Bucket == "" {
			errs = append(errs, "s3: bucket must not be empty when dump.upload is set")
		}
		if c.S3.Region == "" {
			errs = append(errs, "s3: region must not be empty when dump.upload is set")
		}
	}

	// A Telegram token without a chat ID (or vice versa) is a
	// misconfiguration, not a disabled channel.
	tt := c.Notify.TelegramToken != ""
	tc := c.Notify.TelegramChatID != ""
	if tt != tc {
		errs = append(errs, "notify: telegram_token and telegram_chat_id must be set together")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
