package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/xilian/asset-registry/cmd/assetd/apperrors"
	"github.com/xilian/asset-registry/common/db"
)

// SequenceRepository handles the per-scope monotonic counters.
//
// The increment is a single upsert so concurrent allocations for the same
// scope serialize on the row lock; two callers can never observe the same
// value:
//
//	CREATE TABLE sequence_counter (
//	    scope      TEXT PRIMARY KEY,
//	    last_value BIGINT NOT NULL DEFAULT 0,
//	    created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
//	    updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
//	);
type SequenceRepository struct {
	db *db.DB
}

// NewSequenceRepository creates a new sequence repository
func NewSequenceRepository(db *db.DB) *SequenceRepository {
	return &SequenceRepository{db: db}
}

// Increment atomically advances the counter for a scope and returns the
// new value. The counter row is created lazily on first allocation.
func (r *SequenceRepository) Increment(ctx context.Context, scope string) (int64, error) {
	query := `
		INSERT INTO sequence_counter (scope, last_value)
		VALUES ($1, 1)
		ON CONFLICT (scope) DO UPDATE
		SET last_value = sequence_counter.last_value + 1,
		    updated_at = now()
		RETURNING last_value
	`

	var value int64
	err := r.db.QueryRow(ctx, query, scope).Scan(&value)
	if err != nil {
		if isTransient(err) {
			return 0, apperrors.Wrap(apperrors.KindAllocationConflict, err,
				"contention while allocating for scope %q", scope)
		}
		return 0, fmt.Errorf("failed to increment counter for scope %q: %w", scope, err)
	}

	return value, nil
}

// Current returns the last issued value for a scope, 0 when the scope has
// never allocated. Read-only; used by preview.
func (r *SequenceRepository) Current(ctx context.Context, scope string) (int64, error) {
	query := `
		SELECT COALESCE(
			(SELECT last_value FROM sequence_counter WHERE scope = $1), 0
		)
	`

	var value int64
	if err := r.db.QueryRow(ctx, query, scope).Scan(&value); err != nil {
		return 0, fmt.Errorf("failed to read counter for scope %q: %w", scope, err)
	}

	return value, nil
}

// isTransient reports whether err is retryable storage contention
// (serialization failure or deadlock)
func isTransient(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	return pgErr.Code == "40001" || pgErr.Code == "40P01"
}
