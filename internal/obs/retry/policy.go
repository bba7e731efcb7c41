package retry

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
)

// FetchPolicy governs outbound EA fetches. The caller decides what counts
// as retryable so auth failures can bail out early.
func FetchPolicy(log *zap.Logger, retryable func(error) bool) Policy {
	return Policy{
		Name:      "ea_fetch",
		Attempts:  3,
		Backoff:   ExpoJitter{Base: 500 * time.Millisecond, Max: 10 * time.Second, Jitter: 0.2},
		Retryable: retryable,
		OnAttempt: func(i int, err error) {
			if log != nil {
				log.Warn("fetch retry", zap.Int("attempt", i+1), zap.Error(err))
			}
		},
		OnExhaust: func(err error) {
			if log != nil && !errors.Is(err, context.Canceled) {
				log.Error("fetch retries exhausted", zap.Error(err))
			}
		},
	}
}

func SinkPolicy(name string, log *zap.Logger) Policy {
	return Policy{
		Name:     name,
		Attempts: 4,
		Backoff:  ExpoJitter{Base: 200 * time.Millisecond, Max: 15 * time.Second, Jitter: 0.2},
		Retryable: func(err error) bool {
			return err != nil && !errors.Is(err, context.Canceled)
		},
		OnAttempt: func(i int, err error) {
			if log != nil {
				log.Warn("sink retry", zap.String("sink", name), zap.Int("attempt", i+1), zap.Error(err))
			}
		},
		OnExhaust: func(err error) {
			if log != nil && !errors.Is(err, context.Canceled) {
				log.Error("sink retries exhausted", zap.String("sink", name), zap.Error(err))
			}
		},
	}
}
