package venue

import (
	"context"
	"fmt"

	"github.com/keeperhq/invkeeper/internal/domain"
	"github.com/keeperhq/invkeeper/internal/wad"
)

// CexAccount observes an account on a centralized exchange over its REST
// API. Exchange deposits and withdrawals require off-keeper approval flows,
// so the adapter is read only.
type CexAccount struct {
	name string
	api  BalanceSource
}

var _ domain.Account = (*CexAccount)(nil)

func NewCexAccount(name string, api BalanceSource) *CexAccount {
	return &CexAccount{name: name, api: api}
}

// Balance matches tokens by symbol and reports free plus locked funds, so
// amounts tied up in open exchange orders still count toward inventory.
func (a *CexAccount) Balance(ctx context.Context, token domain.Token) (wad.Wad, error) {
	balances, err := a.api.Balances(ctx)
	if err != nil {
		return wad.Zero, err
	}
	for _, b := range balances {
		if b.Symbol == token.Name {
			return b.Total(), nil
		}
	}
	return wad.Zero, fmt.Errorf("cex account %s: symbol %s: %w", a.name, token.Name, domain.ErrTokenNotFound)
}

func (a *CexAccount) SupportsDeposit() bool  { return false }
func (a *CexAccount) SupportsWithdraw() bool { return false }

func (a *CexAccount) Deposit(ctx context.Context, base domain.BaseAccount, token domain.Token, amount wad.Wad) (bool, error) {
	return false, fmt.Errorf("cex account %s: deposit: %w", a.name, domain.ErrUnsupportedOperation)
}

func (a *CexAccount) Withdraw(ctx context.Context, base domain.BaseAccount, token domain.Token, amount wad.Wad) (bool, error) {
	return false, fmt.Errorf("cex account %s: withdraw: %w", a.name, domain.ErrUnsupportedOperation)
}
