package fastpath

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/beachsh/beach/internal/errs"
	"github.com/beachsh/beach/internal/logging"
)

// Reconnector retries a connect function on loss, following
// backoffSequence, giving up after DefaultMaxAttempts. The connect
// function itself is supplied by the caller (Transport.Connect in
// production, a fake in tests) so this loop has no pion dependency.
type Reconnector struct {
	connect     func(ctx context.Context) error
	cap         time.Duration
	maxAttempts int
	log         *zap.Logger

	sleep func(time.Duration) // overridable for tests
}

// NewReconnector builds a Reconnector around connect.
func NewReconnector(connect func(ctx context.Context) error, log *zap.Logger) *Reconnector {
	return &Reconnector{
		connect:     connect,
		cap:         DefaultReconnectCap,
		maxAttempts: DefaultMaxAttempts,
		log:         logging.OrNop(log),
		sleep:       time.Sleep,
	}
}

// Run attempts to connect up to maxAttempts times, sleeping the
// backoff delay between attempts. Returns nil on the first success, or
// the last error after exhausting all attempts.
func (r *Reconnector) Run(ctx context.Context) error {
	delays := backoffSequence(r.maxAttempts, r.cap)
	var lastErr error
	for i := 0; i < r.maxAttempts; i++ {
		if i > 0 {
			select {
			case <-ctx.Done():
				return errs.Wrap(errs.KindTimeout, "reconnect canceled", ctx.Err())
			default:
			}
			r.sleep(delays[i-1])
		}
		if err := r.connect(ctx); err != nil {
			lastErr = err
			r.log.Warn("fastpath connect attempt failed", zap.Int("attempt", i+1), zap.Error(err))
			continue
		}
		return nil
	}
	return errs.Wrap(errs.KindNetwork, "exhausted reconnect attempts", lastErr)
}
