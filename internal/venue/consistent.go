package venue

import (
	"context"
	"fmt"

	"github.com/keeperhq/invkeeper/internal/domain"
	"github.com/keeperhq/invkeeper/internal/wad"
)

// ConsistentRead reads a balance repeatedly until two consecutive reads
// agree, which guards against a transfer landing between the partial reads
// a composite balance is built from. maxAttempts bounds the total number of
// reads; when it is exhausted without agreement the call fails with
// domain.ErrInconsistentRead.
func ConsistentRead(ctx context.Context, maxAttempts int, read func(context.Context) (wad.Wad, error)) (wad.Wad, error) {
	if maxAttempts < 2 {
		maxAttempts = 2
	}

	prev, err := read(ctx)
	if err != nil {
		return wad.Zero, err
	}
	for attempt := 1; attempt < maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return wad.Zero, err
		}
		cur, err := read(ctx)
		if err != nil {
			return wad.Zero, err
		}
		if cur.Equal(prev) {
			return cur, nil
		}
		prev = cur
	}
	return wad.Zero, fmt.Errorf("no stable value after %d reads: %w", maxAttempts, domain.ErrInconsistentRead)
}
