package application

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/cespare/xxhash/v2"
	"go.uber.org/zap"

	"github.com/SARVESHVARADKAR123/RealChat/services/messenger/internal/observability"
	"github.com/SARVESHVARADKAR123/RealChat/services/messenger/internal/partition"
)

// retry runs op up to RetryAttempts times with exponential backoff. Only
// transient store errors are retried; anything else is returned at once.
func (s *Service) retry(ctx context.Context, step string, op func(ctx context.Context) error) error {
	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = s.cfg.InitialBackoff
	eb.MaxInterval = s.cfg.MaxBackoff
	eb.MaxElapsedTime = 0

	policy := backoff.WithContext(
		backoff.WithMaxRetries(eb, uint64(s.cfg.RetryAttempts-1)),
		ctx,
	)

	var last error
	err := backoff.RetryNotify(func() error {
		last = op(ctx)
		if last != nil && !partition.IsTransient(last) {
			return backoff.Permanent(last)
		}
		return last
	}, policy, func(err error, wait time.Duration) {
		observability.RetriesTotal.WithLabelValues(step).Inc()
		s.log.Warn("retrying store step",
			zap.String("step", step),
			zap.Duration("backoff", wait),
			zap.Error(err),
		)
	})

	// The policy reports the context error once the caller gives up; the
	// store error is the more useful one.
	if err != nil && last != nil && (errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)) {
		return last
	}
	return err
}

const lockStripes = 64

type keyedLocks struct {
	stripes [lockStripes]sync.Mutex
}

func (l *keyedLocks) lock(key []byte) func() {
	mu := &l.stripes[xxhash.Sum64(key)%lockStripes]
	mu.Lock()
	return mu.Unlock
}
