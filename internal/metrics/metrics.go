// Package metrics exposes run counters to Prometheus.
package metrics

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "tablespectre"

var (
	QueriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "warehouse",
		Name:      "queries_total",
		Help:      "Warehouse queries by outcome (ok, transient, fatal).",
	}, []string{"outcome"})

	RetriesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "warehouse",
		Name:      "retries_total",
		Help:      "Query attempts retried after a transient failure.",
	})

	QueryDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "warehouse",
		Name:      "query_duration_seconds",
		Help:      "Duration of individual query attempts.",
		Buckets:   prometheus.ExponentialBuckets(0.05, 2, 12),
	})

	CheckResults = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "checks",
		Name:      "results_total",
		Help:      "Check results by kind and status.",
	}, []string{"kind", "status"})

	InsertErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "sink",
		Name:      "row_errors_total",
		Help:      "Rows rejected by the sink, by table.",
	}, []string{"table"})

	RunsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "runs",
		Name:      "total",
		Help:      "Completed runs by status.",
	}, []string{"status"})
)

// Handler serves /metrics and /healthz.
func Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		if _, err := fmt.Fprint(w, "OK"); err != nil {
			slog.Debug("failed to write healthz response", slog.String("error", err.Error()))
		}
	})
	mux.Handle("/metrics", promhttp.Handler())
	return mux
}

// Serve exposes Handler on addr in the background. Listen errors are logged.
func Serve(addr string) *http.Server {
	srv := &http.Server{Addr: addr, Handler: Handler()}
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("metrics endpoint stopped", slog.String("addr", addr), slog.String("error", err.Error()))
		}
	}()
	return srv
}
