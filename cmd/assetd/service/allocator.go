package service

import (
	"context"
	"fmt"
	"time"

	"github.com/xilian/asset-registry/cmd/assetd/apperrors"
	"github.com/xilian/asset-registry/common/logger"
)

// CounterStore is the persistence surface the allocator needs. Increment
// must be atomic with respect to concurrent callers sharing a scope.
type CounterStore interface {
	Increment(ctx context.Context, scope string) (int64, error)
	Current(ctx context.Context, scope string) (int64, error)
}

// SequenceAllocator issues per-scope monotonic integers. Values are never
// reused: an integer consumed by a commit that later fails is forfeited,
// not recycled, so uniqueness holds under crash recovery.
type SequenceAllocator struct {
	store      CounterStore
	maxRetries int
	retryDelay time.Duration
	log        *logger.Logger
}

// NewSequenceAllocator creates a new allocator. maxRetries bounds the
// internal retries on transient storage contention.
func NewSequenceAllocator(store CounterStore, maxRetries int, retryDelay time.Duration, log *logger.Logger) *SequenceAllocator {
	return &SequenceAllocator{
		store:      store,
		maxRetries: maxRetries,
		retryDelay: retryDelay,
		log:        log,
	}
}

// Allocate reserves and returns the next integer for a scope. Transient
// conflicts are retried internally; retrying a pure increment is safe.
// Business-rule errors are surfaced verbatim.
func (a *SequenceAllocator) Allocate(ctx context.Context, scope string) (int64, error) {
	if scope == "" {
		return 0, apperrors.New(apperrors.KindInvalidInput, "allocation scope is required")
	}

	var lastErr error
	for attempt := 1; attempt <= a.maxRetries; attempt++ {
		value, err := a.store.Increment(ctx, scope)
		if err == nil {
			a.log.Debug("allocated sequence", "scope", scope, "value", value, "attempt", attempt)
			return value, nil
		}

		if !apperrors.IsKind(err, apperrors.KindAllocationConflict) {
			return 0, err
		}

		lastErr = err
		a.log.Warn("allocation conflict, retrying",
			"scope", scope,
			"attempt", attempt,
			"max_retries", a.maxRetries,
		)

		select {
		case <-ctx.Done():
			return 0, fmt.Errorf("allocation cancelled for scope %q: %w", scope, ctx.Err())
		case <-time.After(a.retryDelay):
		}
	}

	return 0, fmt.Errorf("allocation for scope %q failed after %d attempts: %w",
		scope, a.maxRetries, lastErr)
}

// PeekNext returns the integer the next allocation would yield. Advisory
// only: a concurrent allocation may claim the value first.
func (a *SequenceAllocator) PeekNext(ctx context.Context, scope string) (int64, error) {
	if scope == "" {
		return 0, apperrors.New(apperrors.KindInvalidInput, "allocation scope is required")
	}

	current, err := a.store.Current(ctx, scope)
	if err != nil {
		return 0, err
	}

	return current + 1, nil
}

// Forfeit records that an allocated integer was consumed by a commit that
// failed. The counter is deliberately not decremented; the gap is the
// logged anomaly operators audit later.
func (a *SequenceAllocator) Forfeit(scope string, value int64, cause error) {
	a.log.Warn("sequence value forfeited",
		"scope", scope,
		"value", value,
		"cause", cause,
	)
}
