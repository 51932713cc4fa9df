package db

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Sequences hands out per-scope monotonically increasing counters backed by
// the sequence_counters table. The increment is a single atomic statement, so
// two concurrent callers can never observe the same value for a scope. When
// called inside a transaction the increment commits or rolls back with it.
type Sequences struct {
	pool *pgxpool.Pool
}

func NewSequences(pool *pgxpool.Pool) *Sequences {
	return &Sequences{pool: pool}
}

// Next returns the next value of the named counter, starting at 1.
func (s *Sequences) Next(ctx context.Context, scope string) (int64, error) {
	var v int64
	err := Conn(ctx, s.pool).QueryRow(ctx, `
		INSERT INTO sequence_counters (scope, value) VALUES ($1, 1)
		ON CONFLICT (scope) DO UPDATE SET value = sequence_counters.value + 1
		RETURNING value`, scope).Scan(&v)
	if err != nil {
		return 0, fmt.Errorf("next sequence %q: %w", scope, err)
	}
	return v, nil
}
