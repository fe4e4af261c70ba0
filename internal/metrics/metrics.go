// Package metrics exposes Prometheus instruments for the onboarding wizard
// and the learning-hub migration. A nil *Recorder is valid and records nothing.
package metrics

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Advance outcomes
const (
	OutcomeAdvanced  = "advanced"
	OutcomeCompleted = "completed"
	OutcomeNotReady  = "not_ready"
	OutcomeFailed    = "failed"
	OutcomeBusy      = "busy"
)

// Migration outcomes
const (
	MigrationComplete        = "complete"
	MigrationSkipped         = "skipped"
	MigrationEmpty           = "empty"
	MigrationFailed          = "failed"
	MigrationUnauthenticated = "unauthenticated"
)

// Recorder groups the collectors registered on one registry.
type Recorder struct {
	registry           *prometheus.Registry
	advances           *prometheus.CounterVec
	enrichmentDuration prometheus.Histogram
	enrichmentFailures prometheus.Counter
	migrations         *prometheus.CounterVec
	migratedRecords    *prometheus.CounterVec
}

// New registers the collectors on a fresh registry.
func New() *Recorder {
	reg := prometheus.NewRegistry()
	r := &Recorder{
		registry: reg,
		advances: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "propfolio",
			Subsystem: "wizard",
			Name:      "advances_total",
			Help:      "Wizard advance attempts by outcome.",
		}, []string{"step", "outcome"}),
		enrichmentDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "propfolio",
			Subsystem: "wizard",
			Name:      "enrichment_duration_seconds",
			Help:      "Latency of market-data enrichment calls.",
			Buckets:   prometheus.ExponentialBuckets(0.05, 2, 10),
		}),
		enrichmentFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "propfolio",
			Subsystem: "wizard",
			Name:      "enrichment_failures_total",
			Help:      "Enrichment calls that failed and were skipped.",
		}),
		migrations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "propfolio",
			Subsystem: "learning",
			Name:      "migrations_total",
			Help:      "Learning-hub migration attempts by outcome.",
		}, []string{"outcome"}),
		migratedRecords: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "propfolio",
			Subsystem: "learning",
			Name:      "migrated_records_total",
			Help:      "Staged records transferred to the durable store, by kind.",
		}, []string{"kind"}),
	}
	reg.MustRegister(r.advances, r.enrichmentDuration, r.enrichmentFailures, r.migrations, r.migratedRecords)
	return r
}

// Registry returns the underlying registry.
func (r *Recorder) Registry() *prometheus.Registry {
	if r == nil {
		return nil
	}
	return r.registry
}

// Advance counts one wizard advance attempt.
func (r *Recorder) Advance(step int, outcome string) {
	if r == nil {
		return
	}
	r.advances.WithLabelValues(stepLabel(step), outcome).Inc()
}

// Enrichment records an enrichment call.
func (r *Recorder) Enrichment(d time.Duration, err error) {
	if r == nil {
		return
	}
	r.enrichmentDuration.Observe(d.Seconds())
	if err != nil {
		r.enrichmentFailures.Inc()
	}
}

// Migration counts one migration attempt and the records it moved.
func (r *Recorder) Migration(outcome string, perKind map[string]int) {
	if r == nil {
		return
	}
	r.migrations.WithLabelValues(outcome).Inc()
	for kind, n := range perKind {
		r.migratedRecords.WithLabelValues(kind).Add(float64(n))
	}
}

// Serve exposes /metrics on addr until ctx is cancelled.
func (r *Recorder) Serve(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{}))
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func stepLabel(step int) string {
	if step < 1 || step > 99 {
		return "other"
	}
	return strconv.Itoa(step)
}
