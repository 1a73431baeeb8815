package domain

import (
	"context"
	"time"

	"github.com/keeperhq/invkeeper/internal/wad"
)

// TransferDirection distinguishes deposits (base -> member) from withdrawals
// (member -> base).
type TransferDirection string

const (
	TransferDeposit  TransferDirection = "deposit"
	TransferWithdraw TransferDirection = "withdraw"
)

// Transfer is one attempted rebalancing transfer, recorded for audit.
type Transfer struct {
	ID        string
	Member    string
	Token     string
	Direction TransferDirection
	Requested wad.Wad
	Success   bool
	Failure   string // empty on success
	CreatedAt time.Time
}

// ListOpts narrows a TransferStore listing.
type ListOpts struct {
	Since  *time.Time
	Until  *time.Time
	Limit  int
	Offset int
}

// TransferStore persists the audit trail of attempted transfers.
type TransferStore interface {
	Record(ctx context.Context, t Transfer) error
	List(ctx context.Context, opts ListOpts) ([]Transfer, error)
}
