package keeper

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/keeperhq/invkeeper/internal/domain"
)

const leaderLockKey = "invkeeper:leader"

// Orchestrator owns the keeper's long-running goroutines: the rebalancing
// loop and the dump loop. When a lock manager is configured, each rebalance
// cycle runs under a distributed leader lock so two keeper instances never
// move the same funds.
type Orchestrator struct {
	engine            *Engine
	approvals         *ApprovalTask // nil skips the startup grant pass
	dumper            *Dumper       // nil disables dumping
	locks             domain.LockManager
	rebalanceInterval time.Duration
	dumpInterval      time.Duration
	logger            *slog.Logger
}

func NewOrchestrator(
	engine *Engine,
	approvals *ApprovalTask,
	dumper *Dumper,
	locks domain.LockManager,
	rebalanceInterval time.Duration,
	dumpInterval time.Duration,
	logger *slog.Logger,
) *Orchestrator {
	return &Orchestrator{
		engine:            engine,
		approvals:         approvals,
		dumper:            dumper,
		locks:             locks,
		rebalanceInterval: rebalanceInterval,
		dumpInterval:      dumpInterval,
		logger:            logger.With(slog.String("component", "orchestrator")),
	}
}

// Run starts the loops and blocks until ctx is cancelled or a loop fails
// fatally. Single cycle failures are logged and retried on the next tick;
// only a missing inventory document on the very first cycle is fatal.
func (o *Orchestrator) Run(ctx context.Context) error {
	o.logger.Info("keeper starting",
		slog.Duration("rebalance_interval", o.rebalanceInterval),
		slog.Duration("dump_interval", o.dumpInterval),
	)

	if o.approvals != nil {
		snap, _, err := o.engine.snapshots.Current()
		if err != nil && snap == nil {
			return fmt.Errorf("load inventory: %w", err)
		}
		if err := o.approvals.Ensure(ctx, snap.Config); err != nil {
			o.logger.Warn("startup approvals incomplete", slog.String("error", err.Error()))
		}
	}

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		err := o.rebalanceLoop(ctx)
		if ctx.Err() != nil {
			return nil // clean shutdown
		}
		return fmt.Errorf("rebalance loop: %w", err)
	})

	if o.dumper != nil {
		g.Go(func() error {
			err := o.dumpLoop(ctx)
			if ctx.Err() != nil {
				return nil // clean shutdown
			}
			return fmt.Errorf("dump loop: %w", err)
		})
	}

	err := g.Wait()
	if err != nil {
		o.logger.Error("keeper stopped with error", slog.String("error", err.Error()))
		return err
	}
	o.logger.Info("keeper stopped cleanly")
	return nil
}

func (o *Orchestrator) rebalanceLoop(ctx context.Context) error {
	// First cycle runs immediately so a restart does not sit idle for a
	// full interval with breached ranges.
	if err := o.runGuardedCycle(ctx); err != nil {
		return err
	}

	ticker := time.NewTicker(o.rebalanceInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := o.runGuardedCycle(ctx); err != nil {
				return err
			}
		}
	}
}

// runGuardedCycle wraps one cycle in the leader lock when configured. A held
// lock means another instance is rebalancing; skip the tick.
func (o *Orchestrator) runGuardedCycle(ctx context.Context) error {
	if o.locks != nil {
		unlock, err := o.locks.Acquire(ctx, leaderLockKey, 2*o.rebalanceInterval)
		if errors.Is(err, domain.ErrLockHeld) {
			o.logger.DebugContext(ctx, "leader lock held elsewhere, skipping cycle")
			return nil
		}
		if err != nil {
			o.logger.ErrorContext(ctx, "leader lock unavailable, skipping cycle",
				slog.String("error", err.Error()),
			)
			return nil
		}
		defer unlock()
	}
	return o.engine.RunCycle(ctx)
}

func (o *Orchestrator) dumpLoop(ctx context.Context) error {
	if err := o.dumper.Run(ctx); err != nil {
		o.logger.ErrorContext(ctx, "dump failed", slog.String("error", err.Error()))
	}

	ticker := time.NewTicker(o.dumpInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := o.dumper.Run(ctx); err != nil {
				o.logger.ErrorContext(ctx, "dump failed", slog.String("error", err.Error()))
			}
		}
	}
}
