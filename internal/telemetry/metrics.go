// Package telemetry exposes the indexing pipeline's Prometheus metrics and
// the HTTP endpoint that serves them, following the metrics-addr pattern
// other pack CLIs use to make an indexing run observable without a
// dedicated monitoring stack.
package telemetry

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the collectors the indexing pipeline reports to. A nil
// *Metrics is valid everywhere it's used; every method is a no-op, so
// callers that don't want metrics don't have to special-case it.
type Metrics struct {
	FilesIndexed  prometheus.Counter
	FilesSkipped  prometheus.Counter
	FilesErrored  prometheus.Counter
	ExtractSecs   prometheus.Histogram
	ResolveSecs   prometheus.Histogram
	SymbolsTotal  prometheus.Gauge
	ReferencesLag prometheus.Gauge // unresolved refs remaining after Resolve
}

// NewMetrics registers a fresh set of collectors with the given registerer.
// Pass prometheus.DefaultRegisterer for the process-wide default registry.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		FilesIndexed: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "tethys",
			Subsystem: "index",
			Name:      "files_indexed_total",
			Help:      "Files successfully extracted and committed.",
		}),
		FilesSkipped: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "tethys",
			Subsystem: "index",
			Name:      "files_skipped_total",
			Help:      "Files skipped because their content hash was unchanged.",
		}),
		FilesErrored: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "tethys",
			Subsystem: "index",
			Name:      "files_errored_total",
			Help:      "Files that failed extraction or commit.",
		}),
		ExtractSecs: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: "tethys",
			Subsystem: "index",
			Name:      "extract_duration_seconds",
			Help:      "Wall-clock time of the extraction phase per IndexDirectory call.",
			Buckets:   prometheus.DefBuckets,
		}),
		ResolveSecs: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: "tethys",
			Subsystem: "index",
			Name:      "resolve_duration_seconds",
			Help:      "Wall-clock time of the cross-file resolution phase per Resolve call.",
			Buckets:   prometheus.DefBuckets,
		}),
		SymbolsTotal: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "tethys",
			Subsystem: "store",
			Name:      "symbols_total",
			Help:      "Symbols currently in the index.",
		}),
		ReferencesLag: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "tethys",
			Subsystem: "store",
			Name:      "unresolved_references",
			Help:      "References with no resolved symbol_id after the last Resolve call.",
		}),
	}
}

// ObserveReport records an IndexReport's counts. Accepts plain ints so
// callers don't need to import the tethys package's report type here.
func (m *Metrics) ObserveReport(indexed, skipped, errored int) {
	if m == nil {
		return
	}
	m.FilesIndexed.Add(float64(indexed))
	m.FilesSkipped.Add(float64(skipped))
	m.FilesErrored.Add(float64(errored))
}

// ObserveExtractDuration records the extraction phase's duration.
func (m *Metrics) ObserveExtractDuration(d time.Duration) {
	if m == nil {
		return
	}
	m.ExtractSecs.Observe(d.Seconds())
}

// ObserveResolveDuration records the resolution phase's duration.
func (m *Metrics) ObserveResolveDuration(d time.Duration) {
	if m == nil {
		return
	}
	m.ResolveSecs.Observe(d.Seconds())
}

// SetSymbolsTotal sets the current symbol count gauge.
func (m *Metrics) SetSymbolsTotal(n int) {
	if m == nil {
		return
	}
	m.SymbolsTotal.Set(float64(n))
}

// SetUnresolvedReferences sets the current unresolved-reference count gauge.
func (m *Metrics) SetUnresolvedReferences(n int) {
	if m == nil {
		return
	}
	m.ReferencesLag.Set(float64(n))
}

// Serve starts an HTTP server exposing the default registry's collectors at
// /metrics on addr, logging failures through logger rather than returning
// them: the indexing run it's attached to should proceed whether or not the
// metrics endpoint comes up. The server shuts down when ctx is canceled.
func Serve(ctx context.Context, addr string, logger *slog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 10 * time.Second}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	logger.Info("metrics endpoint starting", "addr", addr, "path", "/metrics")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Warn("metrics endpoint failed", "error", err)
	}
}
