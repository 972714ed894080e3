// Package throttle paces outbound calls to the record store and retries throttled ones.
package throttle

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"
	"golang.org/x/time/rate"

	"github.com/cuongbtq/grow-sync/internal/domain"
)

const (
	DefaultMinInterval    = 333 * time.Millisecond
	DefaultMaxRetries     = 5
	DefaultInitialBackoff = time.Second
	DefaultMaxBackoff     = 32 * time.Second
)

// Config controls call spacing and retry behaviour
type Config struct {
	MinInterval    time.Duration
	MaxRetries     int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
}

// SleepFunc waits for d or until ctx is done
type SleepFunc func(ctx context.Context, d time.Duration) error

// Option customises a Controller
type Option func(*Controller)

// WithSleep replaces the delay function used between retries
func WithSleep(sleep SleepFunc) Option {
	return func(c *Controller) {
		c.sleep = sleep
	}
}

// Controller is the single shared gate for outbound store calls.
// It is safe for concurrent use.
type Controller struct {
	limiter *rate.Limiter
	cfg     Config
	sleep   SleepFunc
	logger  *slog.Logger
}

// New creates a controller; zero config values fall back to defaults
func New(cfg Config, logger *slog.Logger, opts ...Option) *Controller {
	if cfg.MinInterval <= 0 {
		cfg.MinInterval = DefaultMinInterval
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if cfg.InitialBackoff <= 0 {
		cfg.InitialBackoff = DefaultInitialBackoff
	}
	if cfg.MaxBackoff <= 0 {
		cfg.MaxBackoff = DefaultMaxBackoff
	}

	c := &Controller{
		limiter: rate.NewLimiter(rate.Every(cfg.MinInterval), 1),
		cfg:     cfg,
		sleep:   sleepContext,
		logger:  logger,
	}
	for _, opt := range opts {
		opt(c)
	}

	return c
}

// Do runs fn behind the spacing gate. Throttled failures are retried after the
// server supplied delay or an exponential backoff; any other error is returned as is.
func (c *Controller) Do(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	bo := c.newBackOff()

	for attempt := 0; ; attempt++ {
		if err := c.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("%s: waiting for rate limiter: %w", op, err)
		}

		err := fn(ctx)
		if err == nil {
			return nil
		}

		var throttled *domain.ThrottledError
		if !errors.As(err, &throttled) {
			return err
		}

		if attempt >= c.cfg.MaxRetries {
			return fmt.Errorf("%s: giving up after %d retries: %w", op, attempt, err)
		}

		delay := min(bo.NextBackOff(), c.cfg.MaxBackoff)
		if throttled.RetryAfter > 0 {
			delay = throttled.RetryAfter
		}

		c.logger.Warn("Store call throttled, retrying",
			slog.String("operation", op),
			slog.Int("attempt", attempt+1),
			slog.Duration("delay", delay),
		)

		if err := c.sleep(ctx, delay); err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
	}
}

func (c *Controller) newBackOff() *backoff.ExponentialBackOff {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = c.cfg.InitialBackoff
	bo.Multiplier = 2
	bo.RandomizationFactor = 0.5
	bo.MaxInterval = c.cfg.MaxBackoff
	bo.MaxElapsedTime = 0
	bo.Reset()
	return bo
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
