package metadata

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/edgard/readwiser/internal/resilience"
)

func newGuard(attempts uint, maxFailures uint32) *resilience.Guard {
	return resilience.New(resilience.Config{
		Name:        "metadata",
		Attempts:    attempts,
		Delay:       time.Millisecond,
		MaxFailures: maxFailures,
		Cooldown:    time.Hour,
		Retryable:   IsTransient,
	}, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestIsTransient(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"server error", &StatusError{Code: 503}, true},
		{"rate limited", fmt.Errorf("wrapped: %w", &StatusError{Code: 429}), true},
		{"not found", &StatusError{Code: 404}, false},
		{"not html", fmt.Errorf("%w: image/png", ErrNotHTML), false},
		{"bad url", fmt.Errorf("%w: parse error", ErrInvalidURL), false},
		{"cancelled", context.Canceled, false},
		{"network", &net.OpError{Op: "dial", Err: errors.New("refused")}, true},
		{"other", errors.New("boom"), false},
	}
	for _, tt := range tests {
		if got := IsTransient(tt.err); got != tt.want {
			t.Errorf("IsTransient(%s) = %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestGuardedFetcherRetriesServerErrors(t *testing.T) {
	t.Parallel()

	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if hits.Add(1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Header().Set("Content-Type", "text/html")
		_, _ = io.WriteString(w, "<html><head><title>Second try</title></head></html>")
	}))
	defer srv.Close()

	f := NewGuardedFetcher(NewHTTPFetcher(Config{UserAgent: "TestAgent/1.0"}, nil), newGuard(2, 5))
	md, err := f.Fetch(context.Background(), srv.URL)
	if err != nil || md.Title != "Second try" {
		t.Errorf("Fetch() = %+v, %v", md, err)
	}
	if hits.Load() != 2 {
		t.Errorf("server hit %d times, want 2", hits.Load())
	}
}

func TestGuardedFetcherSkipsNetworkWhenOpen(t *testing.T) {
	t.Parallel()

	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	f := NewGuardedFetcher(NewHTTPFetcher(Config{}, nil), newGuard(1, 1))
	if _, err := f.Fetch(context.Background(), srv.URL); err == nil {
		t.Fatal("Fetch() against failing server returned nil error")
	}

	md, err := f.Fetch(context.Background(), srv.URL+"/again")
	if !errors.Is(err, resilience.ErrCircuitOpen) {
		t.Errorf("Fetch() with open breaker error = %v", err)
	}
	if md.Domain != Domain(srv.URL) {
		t.Errorf("Domain = %q, want %q", md.Domain, Domain(srv.URL))
	}
	if hits.Load() != 1 {
		t.Errorf("server hit %d times, want 1", hits.Load())
	}
}
