package venue

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/ethereum/go-ethereum/common"

	"github.com/keeperhq/invkeeper/internal/domain"
	"github.com/keeperhq/invkeeper/internal/wad"
)

// P2PMaker is a maker on a peer-to-peer exchange. Its holdings sit directly
// at the account address, so balances read like a plain ledger account, but
// the keeper can top it up and drain it.
type P2PMaker struct {
	name   string
	addr   common.Address
	ledger *LedgerAccount
	chain  Transferor
	logger *slog.Logger
}

var _ domain.Account = (*P2PMaker)(nil)

func NewP2PMaker(name string, addr common.Address, chain Transferor, logger *slog.Logger) *P2PMaker {
	return &P2PMaker{
		name:   name,
		addr:   addr,
		ledger: NewLedgerAccount(name, addr, chain),
		chain:  chain,
		logger: logger.With(slog.String("component", "p2p_maker"), slog.String("member", name)),
	}
}

func (a *P2PMaker) Balance(ctx context.Context, token domain.Token) (wad.Wad, error) {
	return a.ledger.Balance(ctx, token)
}

func (a *P2PMaker) SupportsDeposit() bool  { return true }
func (a *P2PMaker) SupportsWithdraw() bool { return true }

func (a *P2PMaker) Deposit(ctx context.Context, base domain.BaseAccount, token domain.Token, amount wad.Wad) (bool, error) {
	amount, err := clampToBase(ctx, a.chain, base, token, amount)
	if err != nil {
		return false, err
	}
	a.logger.Info("depositing to maker", slog.String("token", token.Name), slog.String("amount", amount.String()))
	if token.IsNative() {
		return a.chain.TransferNative(ctx, a.addr, amount)
	}
	return a.chain.TransferToken(ctx, token.Address, a.addr, amount)
}

func (a *P2PMaker) Withdraw(ctx context.Context, base domain.BaseAccount, token domain.Token, amount wad.Wad) (bool, error) {
	if token.IsNative() {
		return false, fmt.Errorf("p2p maker %s: native withdraw: %w", a.name, domain.ErrUnsupportedOperation)
	}
	a.logger.Info("withdrawing from maker", slog.String("token", token.Name), slog.String("amount", amount.String()))
	return a.chain.TransferTokenFrom(ctx, token.Address, a.addr, base.Address, amount)
}
