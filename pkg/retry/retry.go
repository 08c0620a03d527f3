// Package retry provides a bounded, fixed-delay retry helper driven by
// semantic error kinds. Only errors matching one of the given kinds are
// retried; anything else aborts immediately.
package retry

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"paperboy/pkg/logger"
	"paperboy/pkg/serrors"
)

// Do runs op up to attempts times, sleeping delay between attempts. A failed
// attempt is retried only when its error matches one of the kinds in `on`;
// with no kinds given every error is retried. The last error is returned when
// attempts are exhausted. Context cancellation aborts the wait between
// attempts.
func Do(ctx context.Context,
	attempts int,
	delay time.Duration,
	op func(ctx context.Context) error,
	on ...serrors.Kind) error {
	if attempts < 1 {
		attempts = 1
	}

	var err error
	for attempt := 1; ; attempt++ {
		err = op(ctx)
		if err == nil {
			return nil
		}
		if attempt >= attempts || !matches(err, on) {
			return err
		}

		logger.Info(ctx, "retrying after error",
			zap.Int("attempt", attempt),
			zap.Duration("delay", delay),
			zap.Error(err))

		select {
		case <-ctx.Done():
			return serrors.Wrap(serrors.ErrTimeout, ctx.Err(), "retry aborted")
		case <-time.After(delay):
		}
	}
}

func matches(err error, on []serrors.Kind) bool {
	if len(on) == 0 {
		return true
	}
	for _, k := range on {
		if errors.Is(err, k) {
			return true
		}
	}

	return false
}
