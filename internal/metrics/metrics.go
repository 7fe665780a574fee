package metrics

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	SearchesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "patentscout_searches_total",
			Help: "Patent searches by outcome",
		},
		[]string{"outcome"},
	)

	SearchDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "patentscout_search_duration_seconds",
			Help:    "End-to-end duration of a search including enrichment",
			Buckets: []float64{0.5, 1, 2, 5, 10, 20, 30, 60},
		},
	)

	EnrichmentsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "patentscout_enrichments_total",
			Help: "Patent page enrichment attempts by outcome",
		},
		[]string{"outcome"},
	)

	FetchRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "patentscout_fetch_requests_total",
			Help: "Total number of patent page fetches executed",
		},
		[]string{"domain", "status", "detection_src"},
	)

	FetchDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "patentscout_fetch_duration_seconds",
			Help:    "Duration of patent page fetches in seconds",
			Buckets: []float64{0.1, 0.5, 1, 2, 5, 10},
		},
		[]string{"domain"},
	)

	FetchBytesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "patentscout_fetch_bytes_total",
			Help: "Total bytes downloaded across all patent page fetches",
		},
		[]string{"domain"},
	)

	ProxyFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "patentscout_proxy_failures_total",
			Help: "Total number of proxy failures during fetches",
		},
		[]string{"proxy_url"},
	)

	ReportsSaved = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "patentscout_reports_saved_total",
			Help: "Reports written to the history backend by result",
		},
		[]string{"result"},
	)
)

// RecordSearch counts a finished search and observes its duration.
func RecordSearch(outcome string, d time.Duration) {
	SearchesTotal.WithLabelValues(outcome).Inc()
	SearchDuration.Observe(d.Seconds())
}

// RecordEnrichment counts one enrichment outcome ("enriched" or a failure reason).
func RecordEnrichment(outcome string) {
	EnrichmentsTotal.WithLabelValues(outcome).Inc()
}

// RecordFetch updates the fetch metrics. A zero status means the request
// failed before a response arrived.
func RecordFetch(domain string, status int, size int, d time.Duration, detectionSrc string) {
	statusStr := strconv.Itoa(status)
	if status == 0 {
		statusStr = "error"
	}

	FetchRequestsTotal.WithLabelValues(domain, statusStr, detectionSrc).Inc()
	FetchDuration.WithLabelValues(domain).Observe(d.Seconds())
	FetchBytesTotal.WithLabelValues(domain).Add(float64(size))
}

// RecordSave counts a history write.
func RecordSave(err error) {
	if err != nil {
		ReportsSaved.WithLabelValues("error").Inc()
		return
	}
	ReportsSaved.WithLabelValues("ok").Inc()
}

// Handler exposes the default registry in the Prometheus text format.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Server encapsulates an HTTP server for Prometheus metrics.
type Server struct {
	srv *http.Server
}

// Start begins listening on addr (e.g. ":9090") and exposes /metrics.
func Start(addr string, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler())

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server failed", "addr", addr, "err", err)
		}
	}()

	return &Server{srv: srv}
}

// Stop gracefully shuts down the metrics server.
func (s *Server) Stop(ctx context.Context) error {
	if s == nil || s.srv == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return s.srv.Shutdown(ctx)
}
