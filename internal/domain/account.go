// Package domain defines the venue-agnostic types and interfaces shared by
// the inventory keeper: the account capability surface implemented by each
// venue adapter, the base-account value type, and the persistence and
// infrastructure interfaces the engine consumes.
package domain

import (
	"context"

	"github.com/ethereum/go-ethereum/common"

	"github.com/keeperhq/invkeeper/internal/wad"
)

// NativeToken is the sentinel address that denotes the ledger's native
// currency rather than a contract-based token.
var NativeToken = common.Address{}

// Token identifies a token by its configured name and ledger address.
type Token struct {
	Name    string
	Address common.Address
}

// IsNative reports whether the token is the ledger's native currency.
func (t Token) IsNative() bool {
	return t.Address == NativeToken
}

// BaseAccount is the funding/sink account that deposits into and withdraws
// from members. MinNativeBalance is the native-unit floor that must never be
// drawn below when funding deposits, so the base account can always pay its
// own transaction fees.
type BaseAccount struct {
	Name             string
	Address          common.Address
	MinNativeBalance wad.Wad
}

// Account is the capability surface of one venue-managed account.
//
// Balance must be safe to call repeatedly, may block on network I/O, and
// must not mutate venue state. It includes funds escrowed in the venue's
// open orders.
//
// Deposit and Withdraw submit a ledger or API transaction. The bool result
// reports venue-observed success (transaction mined and not reverted); a
// returned error means the attempt could not be completed at all (network
// failure, unsupported operation, precondition violated). The two failure
// signals are not equivalent and callers treat them separately.
type Account interface {
	Balance(ctx context.Context, token Token) (wad.Wad, error)

	// SupportsDeposit and SupportsWithdraw are static capability flags.
	SupportsDeposit() bool
	SupportsWithdraw() bool

	// Deposit moves amount of token from the base account into this account.
	Deposit(ctx context.Context, base BaseAccount, token Token, amount wad.Wad) (bool, error)

	// Withdraw moves amount of token from this account back to base.
	Withdraw(ctx context.Context, base BaseAccount, token Token, amount wad.Wad) (bool, error)
}
