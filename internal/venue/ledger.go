package venue

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"

	"github.com/keeperhq/invkeeper/internal/domain"
	"github.com/keeperhq/invkeeper/internal/wad"
)

// LedgerAccount is a plain on-ledger address the keeper observes but never
// moves funds for.
type LedgerAccount struct {
	name  string
	addr  common.Address
	chain ChainReader
}

var _ domain.Account = (*LedgerAccount)(nil)

func NewLedgerAccount(name string, addr common.Address, chain ChainReader) *LedgerAccount {
	return &LedgerAccount{name: name, addr: addr, chain: chain}
}

// Address returns the observed ledger address.
func (a *LedgerAccount) Address() common.Address { return a.addr }

func (a *LedgerAccount) Balance(ctx context.Context, token domain.Token) (wad.Wad, error) {
	if token.IsNative() {
		return a.chain.NativeBalance(ctx, a.addr)
	}
	return a.chain.TokenBalance(ctx, token.Address, a.addr)
}

func (a *LedgerAccount) SupportsDeposit() bool  { return false }
func (a *LedgerAccount) SupportsWithdraw() bool { return false }

func (a *LedgerAccount) Deposit(ctx context.Context, base domain.BaseAccount, token domain.Token, amount wad.Wad) (bool, error) {
	return false, fmt.Errorf("ledger account %s: deposit: %w", a.name, domain.ErrUnsupportedOperation)
}

func (a *LedgerAccount) Withdraw(ctx context.Context, base domain.BaseAccount, token domain.Token, amount wad.Wad) (bool, error) {
	return false, fmt.Errorf("ledger account %s: withdraw: %w", a.name, domain.ErrUnsupportedOperation)
}
