// Package venue implements the account capability for each supported venue:
// a plain ledger account, the on-chain order-book market maker, the
// peer-to-peer exchange maker, and the centralized-exchange API account.
//
// Adapters depend on small interfaces rather than concrete clients so the
// rebalancing logic can be exercised against fakes.
package venue

import (
	"context"

	"github.com/ethereum/go-ethereum/common"

	"github.com/keeperhq/invkeeper/internal/domain"
	"github.com/keeperhq/invkeeper/internal/platform/cex"
	"github.com/keeperhq/invkeeper/internal/wad"
)

// ChainReader reads balances from the ledger.
type ChainReader interface {
	NativeBalance(ctx context.Context, addr common.Address) (wad.Wad, error)
	TokenBalance(ctx context.Context, token, owner common.Address) (wad.Wad, error)
}

// Transferor submits ledger transfers signed by the base account key.
type Transferor interface {
	ChainReader
	TransferNative(ctx context.Context, to common.Address, amount wad.Wad) (bool, error)
	TransferToken(ctx context.Context, token, to common.Address, amount wad.Wad) (bool, error)
	TransferTokenFrom(ctx context.Context, token, from, to common.Address, amount wad.Wad) (bool, error)
}

// EscrowReader reads the funds a maker has escrowed in open sell orders on
// the market contract.
type EscrowReader interface {
	SellEscrow(ctx context.Context, maker, payToken common.Address) (wad.Wad, error)
}

// BalanceSource lists account balances on a centralized exchange.
type BalanceSource interface {
	Balances(ctx context.Context) ([]cex.Balance, error)
}

// clampToBase caps a deposit at what the base account can actually supply:
// for the native unit the base balance minus its configured floor, for
// tokens the full base token balance. A non-positive result means the base
// account cannot fund the transfer at all.
func clampToBase(ctx context.Context, r ChainReader, base domain.BaseAccount, token domain.Token, requested wad.Wad) (wad.Wad, error) {
	var available wad.Wad
	if token.IsNative() {
		bal, err := r.NativeBalance(ctx, base.Address)
		if err != nil {
			return wad.Zero, err
		}
		available = bal.Sub(base.MinNativeBalance)
	} else {
		bal, err := r.TokenBalance(ctx, token.Address, base.Address)
		if err != nil {
			return wad.Zero, err
		}
		available = bal
	}

	amount := wad.Min(requested, available)
	if amount.Sign() <= 0 {
		return wad.Zero, domain.ErrInsufficientBaseBalance
	}
	return amount, nil
}
