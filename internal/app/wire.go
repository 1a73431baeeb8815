package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/ethereum/go-ethereum/common"

	s3blob "github.com/keeperhq/invkeeper/internal/blob/s3"
	"github.com/keeperhq/invkeeper/internal/cache/redis"
	"github.com/keeperhq/invkeeper/internal/chain"
	"github.com/keeperhq/invkeeper/internal/chain/keys"
	"github.com/keeperhq/invkeeper/internal/config"
	"github.com/keeperhq/invkeeper/internal/domain"
	"github.com/keeperhq/invkeeper/internal/inventory"
	"github.com/keeperhq/invkeeper/internal/keeper"
	"github.com/keeperhq/invkeeper/internal/notify"
	"github.com/keeperhq/invkeeper/internal/store/postgres"
	"github.com/keeperhq/invkeeper/internal/venue"
)

// Dependencies bundles everything the keeper needs to run. It is constructed
// by Wire and torn down by the returned cleanup function.
type Dependencies struct {
	Chain        *chain.Client
	Orchestrator *keeper.Orchestrator

	TransferStore domain.TransferStore
	LockManager   domain.LockManager
	BlobWriter    domain.BlobWriter
	Notifier      *notify.Notifier
}

// Wire constructs all concrete dependency implementations from the given
// configuration and returns them together with a cleanup function that
// should be called on shutdown to release resources.
func Wire(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Dependencies, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	deps := &Dependencies{}

	// --- Base account key and ledger client ---
	key, err := keys.Load(keys.Config{
		RawPrivateKey:    cfg.Wallet.PrivateKey,
		EncryptedKeyPath: cfg.Wallet.EncryptedKeyPath,
		KeyPassword:      cfg.Wallet.KeyPassword,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("wire: base account key: %w", err)
	}

	chainClient, err := chain.New(ctx, chain.Config{
		RPCURL:         cfg.Chain.RPCURL,
		GasPriceWei:    cfg.Chain.GasPriceWei,
		GasPriceMaxWei: cfg.Chain.GasPriceMaxWei,
		TxTimeout:      cfg.Chain.TxTimeout.Duration,
	}, key, logger)
	if err != nil {
		return nil, nil, fmt.Errorf("wire: chain: %w", err)
	}
	closers = append(closers, chainClient.Close)
	deps.Chain = chainClient

	// --- PostgreSQL transfer audit trail (optional) ---
	if cfg.Postgres.Enabled {
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
		deps.TransferStore = postgres.NewTransferStore(pgClient.Pool())
	}

	// --- Redis leader lock (optional) ---
	if cfg.Keeper.LeaderLock {
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
	}

	// --- S3 dump uploads (optional) ---
	if cfg.Dump.Upload {
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
		deps.BlobWriter = s3blob.NewWriter(s3Client)
	}

	// --- Notifications ---
	var senders []notify.Sender
	if cfg.Notify.TelegramToken != "" && cfg.Notify.TelegramChatID != "" {
		senders = append(senders, notify.NewTelegramSender(cfg.Notify.TelegramToken, cfg.Notify.TelegramChatID))
	}
	if cfg.Notify.DiscordWebhookURL != "" {
		senders = append(senders, notify.NewDiscordSender(cfg.Notify.DiscordWebhookURL))
	}
	deps.Notifier = notify.NewNotifier(senders, cfg.Notify.Events, logger)

	// --- Keeper ---
	snapshots := inventory.NewReloadable(cfg.Keeper.InventoryPath, logger)
	factory := keeper.NewAdapterFactory(chainClient, func(addr common.Address) venue.EscrowReader {
		return chainClient.OrderBook(addr)
	}, cfg.Keeper.MaxReadAttempts, logger)
	engine := keeper.NewEngine(snapshots, factory, chainClient, deps.TransferStore, deps.Notifier, logger)

	var approvals *keeper.ApprovalTask
	if cfg.Keeper.ApproveOnStart {
		approvals = keeper.NewApprovalTask(chainClient, logger)
	}

	var dumper *keeper.Dumper
	if cfg.Dump.Enabled {
		dumper = keeper.NewDumper(engine, cfg.Dump.Path, deps.BlobWriter, cfg.Dump.Prefix, logger)
	}

	deps.Orchestrator = keeper.NewOrchestrator(
		engine,
		approvals,
		dumper,
		deps.LockManager,
		cfg.Keeper.RebalanceInterval.Duration,
		cfg.Dump.Interval.Duration,
		logger,
	)

	return deps, cleanup, nil
}
