// Package keeper contains the rebalancing engine: it reads member balances
// through their venue adapters, compares them to the configured target
// ranges, and moves funds between the base account and the members to steer
// every holding back toward its average.
package keeper

import (
	"github.com/keeperhq/invkeeper/internal/domain"
	"github.com/keeperhq/invkeeper/internal/inventory"
	"github.com/keeperhq/invkeeper/internal/wad"
)

// Decision is a single rebalancing step for one member-token pair.
type Decision struct {
	Direction domain.TransferDirection
	Amount    wad.Wad
}

// Decide compares a balance against its target range. A balance strictly
// below Min yields a deposit up to Avg; a balance strictly above Max yields
// a withdrawal down to Avg. A balance inside [Min, Max], including the
// boundaries, yields nothing. Bounds without a configured Avg are inert.
func Decide(balance wad.Wad, r inventory.TokenRange) (Decision, bool) {
	if r.Min != nil && r.Avg != nil && balance.LessThan(*r.Min) {
		return Decision{
			Direction: domain.TransferDeposit,
			Amount:    r.Avg.Sub(balance),
		}, true
	}
	if r.Max != nil && r.Avg != nil && balance.GreaterThan(*r.Max) {
		return Decision{
			Direction: domain.TransferWithdraw,
			Amount:    balance.Sub(*r.Avg),
		}, true
	}
	return Decision{}, false
}
