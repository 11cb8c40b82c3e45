package metadata

import (
	"context"
	"errors"
	"net"
	"net/http"

	"github.com/edgard/readwiser/internal/resilience"
)

// GuardedFetcher retries transient failures of another Fetcher and skips the
// network entirely while its circuit breaker is open.
type GuardedFetcher struct {
	next  Fetcher
	guard *resilience.Guard
}

// NewGuardedFetcher wraps next. The guard should use IsTransient as its Retryable func.
func NewGuardedFetcher(next Fetcher, guard *resilience.Guard) *GuardedFetcher {
	return &GuardedFetcher{next: next, guard: guard}
}

// Fetch behaves like the wrapped Fetcher; the domain is filled even when the breaker is open.
func (f *GuardedFetcher) Fetch(ctx context.Context, rawURL string) (Metadata, error) {
	md := Metadata{Domain: Domain(rawURL)}
	err := f.guard.Do(ctx, func(ctx context.Context) error {
		got, err := f.next.Fetch(ctx, rawURL)
		if err != nil {
			return err
		}
		md = got
		return nil
	})
	return md, err
}

// IsTransient reports whether a fetch error may succeed on retry:
// network failures, 5xx and 429 responses.
func IsTransient(err error) bool {
	var statusErr *StatusError
	switch {
	case err == nil:
		return false
	case errors.As(err, &statusErr):
		return statusErr.Code >= http.StatusInternalServerError || statusErr.Code == http.StatusTooManyRequests
	case errors.Is(err, ErrInvalidURL), errors.Is(err, ErrNotHTML), errors.Is(err, context.Canceled):
		return false
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}
