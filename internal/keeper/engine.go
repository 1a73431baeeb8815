package keeper

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/keeperhq/invkeeper/internal/domain"
	"github.com/keeperhq/invkeeper/internal/inventory"
	"github.com/keeperhq/invkeeper/internal/notify"
	"github.com/keeperhq/invkeeper/internal/venue"
	"github.com/keeperhq/invkeeper/internal/wad"
)

// Notification event types emitted by the engine.
const (
	EventTransfer       = "transfer"
	EventTransferFailed = "transfer_failed"
)

// Engine runs rebalancing cycles. One cycle walks every member-token pair in
// the current inventory snapshot, decides whether it needs a transfer, and
// executes it. Failures are isolated per pair: a member whose venue is down
// never blocks the others.
type Engine struct {
	snapshots *inventory.Reloadable
	cache     *adapterCache
	chain     venue.ChainReader
	transfers domain.TransferStore // nil disables the audit trail
	notifier  *notify.Notifier     // nil disables notifications
	logger    *slog.Logger
}

func NewEngine(snapshots *inventory.Reloadable, factory *AdapterFactory, chain venue.ChainReader, transfers domain.TransferStore, notifier *notify.Notifier, logger *slog.Logger) *Engine {
	return &Engine{
		snapshots: snapshots,
		cache:     newAdapterCache(factory),
		chain:     chain,
		transfers: transfers,
		notifier:  notifier,
		logger:    logger.With(slog.String("component", "engine")),
	}
}

// RunCycle executes one full rebalancing pass. It returns an error only when
// no inventory snapshot is available at all; per-member failures are logged
// and recorded but do not fail the cycle.
func (e *Engine) RunCycle(ctx context.Context) error {
	snap, changed, err := e.snapshots.Current()
	if err != nil {
		if snap == nil {
			return fmt.Errorf("load inventory: %w", err)
		}
		e.logger.WarnContext(ctx, "inventory reload failed, keeping previous snapshot",
			slog.String("error", err.Error()),
		)
	}
	if changed {
		e.cache.Invalidate()
		e.logger.InfoContext(ctx, "inventory config reloaded",
			slog.Uint64("checksum", uint64(snap.Checksum)),
			slog.Int("members", len(snap.Config.Members)),
		)
	}

	cfg := snap.Config
	for _, m := range cfg.Members {
		e.runMember(ctx, cfg, m)
	}
	return nil
}

func (e *Engine) runMember(ctx context.Context, cfg *inventory.InventoryConfig, m inventory.Member) {
	adapter, err := e.cache.Get(m)
	if err != nil {
		e.logger.ErrorContext(ctx, "adapter construction failed",
			slog.String("member", m.Name),
			slog.String("error", err.Error()),
		)
		return
	}

	for _, mt := range m.Tokens {
		if err := ctx.Err(); err != nil {
			return
		}
		token, err := cfg.TokenByName(mt.TokenName)
		if err != nil {
			e.logger.ErrorContext(ctx, "unknown token in member range",
				slog.String("member", m.Name),
				slog.String("token", mt.TokenName),
			)
			continue
		}

		balance, err := adapter.Balance(ctx, token)
		if err != nil {
			e.logger.ErrorContext(ctx, "balance read failed",
				slog.String("member", m.Name),
				slog.String("token", token.Name),
				slog.String("error", err.Error()),
			)
			continue
		}

		decision, ok := Decide(balance, mt.Range)
		if !ok {
			continue
		}
		e.execute(ctx, cfg.Base, m, token, adapter, balance, decision)
	}
}

func (e *Engine) execute(ctx context.Context, base domain.BaseAccount, m inventory.Member, token domain.Token, adapter domain.Account, balance wad.Wad, decision Decision) {
	log := e.logger.With(
		slog.String("member", m.Name),
		slog.String("token", token.Name),
		slog.String("direction", string(decision.Direction)),
	)

	switch decision.Direction {
	case domain.TransferDeposit:
		if !adapter.SupportsDeposit() {
			log.InfoContext(ctx, "balance below minimum but venue does not accept deposits",
				slog.String("balance", balance.String()),
			)
			return
		}
	case domain.TransferWithdraw:
		if !adapter.SupportsWithdraw() {
			log.InfoContext(ctx, "balance above maximum but venue does not accept withdrawals",
				slog.String("balance", balance.String()),
			)
			return
		}
	}

	log.InfoContext(ctx, "rebalancing",
		slog.String("balance", balance.String()),
		slog.String("amount", decision.Amount.String()),
	)

	var (
		ok  bool
		err error
	)
	if decision.Direction == domain.TransferDeposit {
		ok, err = adapter.Deposit(ctx, base, token, decision.Amount)
	} else {
		ok, err = adapter.Withdraw(ctx, base, token, decision.Amount)
	}

	record := domain.Transfer{
		ID:        uuid.NewString(),
		Member:    m.Name,
		Token:     token.Name,
		Direction: decision.Direction,
		Requested: decision.Amount,
		Success:   ok && err == nil,
		CreatedAt: time.Now().UTC(),
	}
	switch {
	case err != nil:
		record.Failure = err.Error()
	case !ok:
		record.Failure = "venue reported failure"
	}

	if record.Success {
		log.InfoContext(ctx, "transfer complete", slog.String("amount", decision.Amount.String()))
		e.notify(ctx, EventTransfer, "Inventory rebalanced", fmt.Sprintf(
			"%s %s %s for member %s", decision.Direction, decision.Amount, token.Name, m.Name,
		))
	} else {
		log.ErrorContext(ctx, "transfer failed", slog.String("reason", record.Failure))
		e.notify(ctx, EventTransferFailed, "Inventory transfer failed", fmt.Sprintf(
			"%s %s %s for member %s: %s", decision.Direction, decision.Amount, token.Name, m.Name, record.Failure,
		))
	}

	if e.transfers != nil {
		if err := e.transfers.Record(ctx, record); err != nil {
			log.ErrorContext(ctx, "transfer audit record failed", slog.String("error", err.Error()))
		}
	}
}

func (e *Engine) notify(ctx context.Context, event, title, message string) {
	if e.notifier == nil {
		return
	}
	if err := e.notifier.Notify(ctx, event, title, message); err != nil {
		e.logger.WarnContext(ctx, "notification failed", slog.String("error", err.Error()))
	}
}
