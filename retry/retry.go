// ABOUTME: Bounded retry-with-backoff for calls to flaky external services
// ABOUTME: Wraps cenkalti/backoff with attempt limits and permanent-error detection
package retry

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/harperreed/sponsordesk/apperr"
	"go.uber.org/zap"
)

// Config bounds a retry loop.
type Config struct {
	MaxTries       uint
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
}

func DefaultConfig() Config {
	return Config{
		MaxTries:       3,
		InitialBackoff: 500 * time.Millisecond,
		MaxBackoff:     10 * time.Second,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.MaxTries == 0 {
		c.MaxTries = d.MaxTries
	}
	if c.InitialBackoff <= 0 {
		c.InitialBackoff = d.InitialBackoff
	}
	if c.MaxBackoff <= 0 {
		c.MaxBackoff = d.MaxBackoff
	}
	return c
}

// Permanent marks err as not worth retrying.
func Permanent(err error) error {
	return backoff.Permanent(err)
}

// Do runs op until it succeeds, returns a permanent error, or MaxTries is
// reached. Operations must be safe to repeat.
func Do(ctx context.Context, cfg Config, logger *zap.Logger, name string, op func(ctx context.Context) error) error {
	_, err := Value(ctx, cfg, logger, name, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, op(ctx)
	})
	return err
}

// Value is Do for operations that return a result.
func Value[T any](ctx context.Context, cfg Config, logger *zap.Logger, name string, op func(ctx context.Context) (T, error)) (T, error) {
	cfg = cfg.withDefaults()
	if logger == nil {
		logger = zap.NewNop()
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = cfg.InitialBackoff
	b.MaxInterval = cfg.MaxBackoff

	attempt := 0
	return backoff.Retry(ctx, func() (T, error) {
		attempt++
		v, err := op(ctx)
		if err != nil && !Retryable(err) {
			return v, backoff.Permanent(err)
		}
		return v, err
	},
		backoff.WithBackOff(b),
		backoff.WithMaxTries(cfg.MaxTries),
		backoff.WithNotify(func(err error, wait time.Duration) {
			logger.Warn("retrying after failure",
				zap.String("operation", name),
				zap.Int("attempt", attempt),
				zap.Duration("wait", wait),
				zap.Error(err))
		}),
	)
}

// Retryable reports whether err may succeed on another attempt. Validation,
// not-found and configuration errors never do; provider errors are retried
// only for timeouts, throttling and server-side failures.
func Retryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	var appErr *apperr.Error
	if !errors.As(err, &appErr) {
		return true
	}

	switch appErr.Kind {
	case apperr.KindValidation, apperr.KindNotFound, apperr.KindConfiguration, apperr.KindAuthentication:
		return false
	case apperr.KindProvider:
		if appErr.Status == 0 {
			return true
		}
		return appErr.Status == http.StatusRequestTimeout ||
			appErr.Status == http.StatusTooManyRequests ||
			appErr.Status >= 500
	}
	return true
}
