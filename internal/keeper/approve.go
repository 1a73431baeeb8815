package keeper

import (
	"context"
	"fmt"
	"log/slog"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/keeperhq/invkeeper/internal/inventory"
	"github.com/keeperhq/invkeeper/internal/wad"
)

// Approver is the slice of the ledger client the approval task needs.
type Approver interface {
	Allowance(ctx context.Context, token, owner, spender common.Address) (wad.Wad, error)
	Approve(ctx context.Context, token, spender common.Address, amount *big.Int) (bool, error)
}

var (
	maxApproval = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 256), big.NewInt(1))
	// Re-approve once the remaining allowance drops below half the range.
	approvalFloor = new(big.Int).Lsh(big.NewInt(1), 255)
)

// ApprovalTask grants each deposit-capable on-chain member an unlimited
// token allowance from the base account, so venue contracts that fund
// themselves by pulling can draw base inventory directly. It runs once at
// startup and is idempotent: members already holding a large allowance are
// skipped.
type ApprovalTask struct {
	chain  Approver
	logger *slog.Logger
}

func NewApprovalTask(chain Approver, logger *slog.Logger) *ApprovalTask {
	return &ApprovalTask{
		chain:  chain,
		logger: logger.With(slog.String("component", "approvals")),
	}
}

// Ensure walks every on-chain deposit-capable member and tops up missing
// allowances. Individual failures are logged and counted but do not stop
// the walk.
func (t *ApprovalTask) Ensure(ctx context.Context, cfg *inventory.InventoryConfig) error {
	failed := 0
	for _, m := range cfg.Members {
		if m.Type != inventory.TypeOrderBookMaker && m.Type != inventory.TypeP2PMaker {
			continue
		}
		raw, ok := m.Config["accountAddress"]
		if !ok {
			t.logger.ErrorContext(ctx, "member missing accountAddress", slog.String("member", m.Name))
			failed++
			continue
		}
		resolved, err := inventory.ResolveEnv(raw)
		if err != nil || !common.IsHexAddress(resolved) {
			t.logger.ErrorContext(ctx, "member accountAddress unusable", slog.String("member", m.Name))
			failed++
			continue
		}
		member := common.HexToAddress(resolved)

		for _, mt := range m.Tokens {
			token, err := cfg.TokenByName(mt.TokenName)
			if err != nil || token.IsNative() {
				continue
			}
			if err := t.ensureOne(ctx, cfg.Base.Address, token.Address, member, m.Name, token.Name); err != nil {
				t.logger.ErrorContext(ctx, "approval failed",
					slog.String("member", m.Name),
					slog.String("token", token.Name),
					slog.String("error", err.Error()),
				)
				failed++
			}
		}
	}
	if failed > 0 {
		return fmt.Errorf("approvals: %d grant(s) failed", failed)
	}
	return nil
}

func (t *ApprovalTask) ensureOne(ctx context.Context, base, token, member common.Address, memberName, tokenName string) error {
	allowance, err := t.chain.Allowance(ctx, token, base, member)
	if err != nil {
		return fmt.Errorf("read allowance: %w", err)
	}
	if allowance.BigInt().Cmp(approvalFloor) >= 0 {
		return nil
	}
	t.logger.InfoContext(ctx, "granting allowance",
		slog.String("member", memberName),
		slog.String("token", tokenName),
	)
	ok, err := t.chain.Approve(ctx, token, member, maxApproval)
	if err != nil {
		return fmt.Errorf("approve: %w", err)
	}
	if !ok {
		return fmt.Errorf("approve transaction reverted")
	}
	return nil
}
