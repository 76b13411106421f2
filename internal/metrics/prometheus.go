// Package metrics exposes the merged timeline as Prometheus metrics.
package metrics

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"hstress/internal/report"
	"hstress/internal/stats"
)

// Exporter is a report.Sink that mirrors every merged interval into
// Prometheus collectors.
type Exporter struct {
	registry *prometheus.Registry
	labels   []string

	outcomes  *prometheus.CounterVec
	latency   *prometheus.CounterVec
	closes    prometheus.Counter
	rate      prometheus.Gauge
	intervals prometheus.Counter
	lastMerge prometheus.Gauge
}

// NewExporter registers the hstress collectors on a private registry.
// Latency bucket counters are labeled with the classifier's bucket labels.
func NewExporter(buckets stats.Buckets, runID string) *Exporter {
	constLabels := prometheus.Labels{"run_id": runID}

	e := &Exporter{
		registry: prometheus.NewRegistry(),
		labels:   buckets.Labels(),
		outcomes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name:        "hstress_requests_total",
				Help:        "Completed requests by outcome",
				ConstLabels: constLabels,
			},
			[]string{"outcome"},
		),
		latency: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name:        "hstress_latency_bucket_total",
				Help:        "Successful requests by latency bucket in milliseconds",
				ConstLabels: constLabels,
			},
			[]string{"bucket"},
		),
		closes: prometheus.NewCounter(prometheus.CounterOpts{
			Name:        "hstress_peer_closes_total",
			Help:        "Connections closed by the server",
			ConstLabels: constLabels,
		}),
		rate: prometheus.NewGauge(prometheus.GaugeOpts{
			Name:        "hstress_success_rate_hz",
			Help:        "Successful requests per second over the last merged interval",
			ConstLabels: constLabels,
		}),
		intervals: prometheus.NewCounter(prometheus.CounterOpts{
			Name:        "hstress_intervals_total",
			Help:        "Merged report intervals",
			ConstLabels: constLabels,
		}),
		lastMerge: prometheus.NewGauge(prometheus.GaugeOpts{
			Name:        "hstress_last_interval_timestamp_seconds",
			Help:        "Unix time of the last merged interval",
			ConstLabels: constLabels,
		}),
	}

	e.registry.MustRegister(
		e.outcomes,
		e.latency,
		e.closes,
		e.rate,
		e.intervals,
		e.lastMerge,
	)

	return e
}

// Observe implements report.Sink.
func (e *Exporter) Observe(m report.Merged) {
	c := m.Counters

	e.outcomes.WithLabelValues("success").Add(float64(c.Successes()))
	e.outcomes.WithLabelValues("error").Add(float64(c.Errors))
	e.outcomes.WithLabelValues("timeout").Add(float64(c.Timeouts))
	e.closes.Add(float64(c.Closes))

	for i, n := range c.Buckets {
		if i < len(e.labels) {
			e.latency.WithLabelValues(e.labels[i]).Add(float64(n))
		}
	}

	e.rate.Set(float64(m.Rate))
	e.intervals.Inc()
	e.lastMerge.Set(float64(m.Time.Unix()))
}

// Registry exposes the collectors, mainly for tests.
func (e *Exporter) Registry() *prometheus.Registry {
	return e.registry
}

func (e *Exporter) Handler() http.Handler {
	return promhttp.HandlerFor(e.registry, promhttp.HandlerOpts{})
}

// Serve runs the /metrics endpoint until ctx is done.
func (e *Exporter) Serve(ctx context.Context, addr string, logger *slog.Logger) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", e.Handler())

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		logger.Info("metrics endpoint listening", "addr", addr)
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		if err := <-errc; !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
}
