// Package metrics exposes polling and batch submission counters to
// Prometheus.
package metrics

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "nids_console"

// Metrics holds the console's collectors on a private registry.
type Metrics struct {
	registry *prometheus.Registry

	polls          *prometheus.CounterVec
	pollRecords    prometheus.Gauge
	submissions    *prometheus.CounterVec
	submissionTime prometheus.Histogram
}

// New creates and registers all collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		polls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "polls_total",
			Help:      "Attack log polls by result.",
		}, []string{"result"}),
		pollRecords: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "poll_records",
			Help:      "Records returned by the last successful poll.",
		}),
		submissions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "batch_submissions_total",
			Help:      "Batch submissions by result.",
		}, []string{"result"}),
		submissionTime: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "batch_submission_duration_seconds",
			Help:      "Time from submit to classifier response.",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120},
		}),
	}

	m.registry.MustRegister(m.polls, m.pollRecords, m.submissions, m.submissionTime)
	return m
}

// ObservePoll records one poll outcome.
func (m *Metrics) ObservePoll(result string, records int) {
	m.polls.WithLabelValues(result).Inc()
	if result == "success" {
		m.pollRecords.Set(float64(records))
	}
}

// ObserveSubmission records one batch submission outcome.
func (m *Metrics) ObserveSubmission(result string, elapsed time.Duration) {
	m.submissions.WithLabelValues(result).Inc()
	if elapsed > 0 {
		m.submissionTime.Observe(elapsed.Seconds())
	}
}

// ArchiveStats are cumulative report archive upload counters.
type ArchiveStats struct {
	Bytes   int64
	Objects int64
	Errors  int64
}

// RegisterArchive exports the counters returned by stats, read on every
// scrape.
func (m *Metrics) RegisterArchive(stats func() ArchiveStats) {
	counter := func(name, help string, read func(ArchiveStats) int64) prometheus.Collector {
		return prometheus.NewCounterFunc(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "archive",
			Name:      name,
			Help:      help,
		}, func() float64 { return float64(read(stats())) })
	}

	m.registry.MustRegister(
		counter("uploaded_bytes_total", "Report bytes uploaded to object storage.",
			func(s ArchiveStats) int64 { return s.Bytes }),
		counter("uploaded_objects_total", "Reports uploaded to object storage.",
			func(s ArchiveStats) int64 { return s.Objects }),
		counter("upload_errors_total", "Failed report uploads.",
			func(s ArchiveStats) int64 { return s.Errors }),
	)
}

// Registry returns the private registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Serve exposes /metrics on addr until ctx is done.
func (m *Metrics) Serve(ctx context.Context, addr string, logger *slog.Logger) error {
	mux := http.NewServeMux()
	mux.Handle("GET /metrics", m.Handler())

	server := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("starting metrics server", "address", addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("metrics server shutdown error", "error", err)
		return err
	}
	return nil
}
