// Package metrics exposes Prometheus collectors for the bot and an optional /metrics server.
package metrics

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Label values.
const (
	ModeWeighted = "weighted"
	ModeUniform  = "uniform"

	StatusSent    = "sent"
	StatusSkipped = "skipped"
	StatusFailed  = "failed"

	StatusOK    = "ok"
	StatusError = "error"
)

var (
	registerOnce sync.Once

	quotesSaved = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "readwiser_quotes_saved_total",
		Help: "Quotes saved by users.",
	})

	quotesDeleted = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "readwiser_quotes_deleted_total",
		Help: "Quotes deleted by users.",
	})

	quotesSelected = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "readwiser_quotes_selected_total",
		Help: "Quotes surfaced by the selection engine.",
	}, []string{"mode"})

	scheduledSends = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "readwiser_scheduled_sends_total",
		Help: "Per-recipient outcomes of scheduled jobs.",
	}, []string{"job", "status"})

	metadataFetches = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "readwiser_metadata_fetch_total",
		Help: "Article metadata fetch attempts.",
	}, []string{"status"})

	jobDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "readwiser_scheduled_job_seconds",
		Help:    "Duration of scheduled job runs.",
		Buckets: prometheus.DefBuckets,
	}, []string{"job"})
)

// MustRegister registers the package collectors with registerer once per process.
func MustRegister(registerer prometheus.Registerer) {
	registerOnce.Do(func() {
		registerer.MustRegister(
			quotesSaved,
			quotesDeleted,
			quotesSelected,
			scheduledSends,
			metadataFetches,
			jobDuration,
		)
	})
}

// QuoteSaved counts a saved quote.
func QuoteSaved() { quotesSaved.Inc() }

// QuoteDeleted counts a deleted quote.
func QuoteDeleted() { quotesDeleted.Inc() }

// QuotesSelected counts n quotes returned by a selection in the given mode.
func QuotesSelected(weighted bool, n int) {
	mode := ModeUniform
	if weighted {
		mode = ModeWeighted
	}
	quotesSelected.WithLabelValues(mode).Add(float64(n))
}

// ScheduledSend records the outcome of one recipient of a scheduled job.
func ScheduledSend(job, status string) {
	scheduledSends.WithLabelValues(job, status).Inc()
}

// MetadataFetch records a metadata fetch outcome.
func MetadataFetch(err error) {
	status := StatusOK
	if err != nil {
		status = StatusError
	}
	metadataFetches.WithLabelValues(status).Inc()
}

// ObserveJob records how long a scheduled job took.
func ObserveJob(job string, d time.Duration) {
	jobDuration.WithLabelValues(job).Observe(d.Seconds())
}

// Handler returns the HTTP handler serving the default registry.
func Handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	return mux
}

// Serve runs the metrics HTTP server on addr until ctx is cancelled.
// It returns nil after a clean shutdown.
func Serve(ctx context.Context, addr string, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}
	log := logger.With("component", "metrics")

	srv := &http.Server{
		Addr:              addr,
		Handler:           Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      5 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("Metrics server started", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		log.Error("Metrics server stopped", "error", err)
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Error("Metrics server graceful shutdown failed", "error", err)
		return err
	}
	log.Info("Metrics server stopped")
	return nil
}
