// Package resilience wraps calls to flaky external services with retries and
// a circuit breaker.
package resilience

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/sony/gobreaker"
)

// ErrCircuitOpen is returned without calling the operation while the breaker is open.
var ErrCircuitOpen = gobreaker.ErrOpenState

// Config tunes a Guard.
type Config struct {
	Name string
	// Attempts is the total number of tries per call, including the first.
	Attempts uint
	// Delay is the initial backoff between tries; it doubles on each retry.
	Delay time.Duration
	// MaxFailures consecutive failed calls open the breaker.
	MaxFailures uint32
	// Cooldown is how long the breaker stays open before letting a trial request through.
	Cooldown time.Duration
	// Retryable decides whether an error is worth retrying. Errors it rejects
	// are returned at once and do not count against the breaker.
	Retryable func(error) bool
}

// Guard runs operations under a retry policy inside a circuit breaker.
type Guard struct {
	cfg    Config
	cb     *gobreaker.CircuitBreaker
	logger *slog.Logger
}

// New creates a Guard, filling unset fields with defaults.
func New(cfg Config, logger *slog.Logger) *Guard {
	if cfg.Attempts == 0 {
		cfg.Attempts = 1
	}
	if cfg.Delay <= 0 {
		cfg.Delay = 200 * time.Millisecond
	}
	if cfg.MaxFailures == 0 {
		cfg.MaxFailures = 5
	}
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = time.Minute
	}
	if cfg.Retryable == nil {
		cfg.Retryable = func(error) bool { return true }
	}
	if logger == nil {
		logger = slog.Default()
	}
	log := logger.With("component", "resilience", "name", cfg.Name)

	settings := gobreaker.Settings{
		Name:    cfg.Name,
		Timeout: cfg.Cooldown,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.MaxFailures
		},
		IsSuccessful: func(err error) bool {
			return err == nil || !cfg.Retryable(err)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn("Circuit breaker state changed", "from", from.String(), "to", to.String())
		},
	}

	return &Guard{
		cfg:    cfg,
		cb:     gobreaker.NewCircuitBreaker(settings),
		logger: log,
	}
}

// Do runs op, retrying retryable errors with exponential backoff. The whole
// retried call counts as one breaker request.
func (g *Guard) Do(ctx context.Context, op func(context.Context) error) error {
	_, err := g.cb.Execute(func() (any, error) {
		return nil, retry.Do(
			func() error { return op(ctx) },
			retry.Context(ctx),
			retry.Attempts(g.cfg.Attempts),
			retry.Delay(g.cfg.Delay),
			retry.DelayType(retry.BackOffDelay),
			retry.LastErrorOnly(true),
			retry.RetryIf(func(err error) bool {
				return ctx.Err() == nil && g.cfg.Retryable(err)
			}),
			retry.OnRetry(func(n uint, err error) {
				g.logger.DebugContext(ctx, "Retrying operation", "attempt", n+1, "max_attempts", g.cfg.Attempts, "error", err)
			}),
		)
	})
	if errors.Is(err, gobreaker.ErrTooManyRequests) {
		return ErrCircuitOpen
	}
	return err
}

// State returns the breaker state: "closed", "half-open" or "open".
func (g *Guard) State() string {
	return g.cb.State().String()
}
