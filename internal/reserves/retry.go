package reserves

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"

	"liquidityEngine/internal/dex"
	"liquidityEngine/internal/model"
)

// retrying runs one upstream fetch for pool, bounding each attempt by
// FetchTimeout. Failed attempts are retried up to MaxRetries times with a
// doubling backoff, unless the provider reports a deterministic error.
func (s *Synchronizer) retrying(ctx context.Context, pool model.Pool, stage string, fn func(context.Context) error) error {
	policy := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(
		backoff.WithInitialInterval(s.cfg.RetryBackoff),
		backoff.WithMultiplier(2),
		backoff.WithRandomizationFactor(0),
		backoff.WithMaxElapsedTime(0),
	), uint64(s.cfg.MaxRetries)), ctx)

	attempt := 0
	err := backoff.RetryNotify(func() error {
		attemptCtx, cancel := context.WithTimeout(ctx, s.cfg.FetchTimeout)
		defer cancel()
		err := fn(attemptCtx)
		if err != nil && !retryable(err) {
			return backoff.Permanent(err)
		}
		return err
	}, policy, func(err error, wait time.Duration) {
		attempt++
		s.logger.Debug("retrying pool fetch",
			zap.Int64("pool_id", pool.ID),
			zap.String("stage", stage),
			zap.Int("attempt", attempt),
			zap.Duration("backoff", wait),
			zap.Error(err),
		)
	})
	if err != nil {
		return &SyncError{PoolID: pool.ID, Stage: stage, Err: fmt.Errorf("%w: %w", ErrUpstream, err)}
	}
	return nil
}

// retryable is false for provider errors that another attempt cannot change.
func retryable(err error) bool {
	return !errors.Is(err, dex.ErrInvalidPool) &&
		!errors.Is(err, dex.ErrNoPriceSource) &&
		!errors.Is(err, dex.ErrInsufficientLiquidity)
}
