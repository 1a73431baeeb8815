package postgres

import (
	"context"
	"fmt"
	"math/big"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/keeperhq/invkeeper/internal/domain"
	"github.com/keeperhq/invkeeper/internal/wad"
)

// TransferStore implements domain.TransferStore using PostgreSQL. Amounts
// are stored as raw fixed-point integers so no precision is lost.
type TransferStore struct {
	pool *pgxpool.Pool
}

// NewTransferStore creates a TransferStore backed by the given pool.
func NewTransferStore(pool *pgxpool.Pool) *TransferStore {
	return &TransferStore{pool: pool}
}

var _ domain.TransferStore = (*TransferStore)(nil)

// Record appends one attempted transfer to the audit trail.
func (s *TransferStore) Record(ctx context.Context, t domain.Transfer) error {
	const query = `
		INSERT INTO transfers (id, member, token, direction, requested, success, failure, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`
	_, err := s.pool.Exec(ctx, query,
		t.ID, t.Member, t.Token, string(t.Direction),
		t.Requested.BigInt().String(), t.Success, t.Failure, t.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: record transfer %s: %w", t.ID, err)
	}
	return nil
}

// List returns transfers newest first, with pagination and optional time
// filtering.
func (s *TransferStore) List(ctx context.Context, opts domain.ListOpts) ([]domain.Transfer, error) {
	query := `SELECT id, member, token, direction, requested::text, success, failure, created_at
		FROM transfers WHERE 1=1`
	args := []any{}
	argIdx := 1

	if opts.Since != nil {
		query += fmt.Sprintf(" AND created_at >= $%d", argIdx)
		args = append(args, *opts.Since)
		argIdx++
	}
	if opts.Until != nil {
		query += fmt.Sprintf(" AND created_at <= $%d", argIdx)
		args = append(args, *opts.Until)
		argIdx++
	}

	query += " ORDER BY created_at DESC"

	if opts.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", argIdx)
		args = append(args, opts.Limit)
		argIdx++
	}
	if opts.Offset > 0 {
		query += fmt.Sprintf(" OFFSET $%d", argIdx)
		args = append(args, opts.Offset)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list transfers: %w", err)
	}
	defer rows.Close()

	var transfers []domain.Transfer
	for rows.Next() {
		var (
			t         domain.Transfer
			direction string
			requested string
		)
		if err := rows.Scan(&t.ID, &t.Member, &t.Token, &direction, &requested, &t.Success, &t.Failure, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("postgres: scan transfer: %w", err)
		}
		t.Direction = domain.TransferDirection(direction)

		raw, ok := new(big.Int).SetString(requested, 10)
		if !ok {
			return nil, fmt.Errorf("postgres: transfer %s: bad requested amount %q", t.ID, requested)
		}
		t.Requested = wad.FromRaw(raw)

		transfers = append(transfers, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: list transfers rows: %w", err)
	}
	return transfers, nil
}
