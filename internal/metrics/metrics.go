// Package metrics exposes Prometheus metrics and the health endpoint
// for the EOD cache service.
package metrics

import (
	"context"
	"database/sql"
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the EOD engine. A nil
// *Metrics is valid and records nothing, so core packages can be
// exercised without a registry.
type Metrics struct {
	SeriesCacheHits   prometheus.Counter
	SeriesCacheMisses prometheus.Counter
	SeriesMerges      prometheus.Counter

	UpstreamRequests prometheus.Counter
	UpstreamErrors   prometheus.Counter
	UpstreamDur      prometheus.Histogram

	ReportCacheHits prometheus.Counter
	ReportBuilds    prometheus.Counter
	ReportBuildDur  prometheus.Histogram
}

// NewMetrics registers and returns all Prometheus metrics.
func NewMetrics() *Metrics {
	m := &Metrics{
		SeriesCacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "eod_series_cache_hits_total",
			Help: "Range lookups fully satisfied from the day-series cache",
		}),
		SeriesCacheMisses: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "eod_series_cache_misses_total",
			Help: "Range lookups requiring an upstream fetch",
		}),
		SeriesMerges: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "eod_series_merges_total",
			Help: "Fetched datasets merged into the day-series cache",
		}),
		UpstreamRequests: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "eod_upstream_requests_total",
			Help: "Requests issued to the upstream EOD provider",
		}),
		UpstreamErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "eod_upstream_errors_total",
			Help: "Failed upstream provider requests",
		}),
		UpstreamDur: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "eod_upstream_request_duration_seconds",
			Help:    "Upstream provider request latency",
			Buckets: prometheus.DefBuckets,
		}),
		ReportCacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "eod_report_cache_hits_total",
			Help: "Derived reports served from a same-day snapshot",
		}),
		ReportBuilds: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "eod_report_builds_total",
			Help: "Derived report series computed (full or extension)",
		}),
		ReportBuildDur: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "eod_report_build_duration_seconds",
			Help:    "Derived report computation latency",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
		}),
	}

	prometheus.MustRegister(
		m.SeriesCacheHits,
		m.SeriesCacheMisses,
		m.SeriesMerges,
		m.UpstreamRequests,
		m.UpstreamErrors,
		m.UpstreamDur,
		m.ReportCacheHits,
		m.ReportBuilds,
		m.ReportBuildDur,
	)

	return m
}

// CacheHit records a day-series cache hit.
func (m *Metrics) CacheHit() {
	if m != nil {
		m.SeriesCacheHits.Inc()
	}
}

// CacheMiss records a day-series cache miss.
func (m *Metrics) CacheMiss() {
	if m != nil {
		m.SeriesCacheMisses.Inc()
	}
}

// Merge records a dataset merge.
func (m *Metrics) Merge() {
	if m != nil {
		m.SeriesMerges.Inc()
	}
}

// Upstream records one upstream round trip.
func (m *Metrics) Upstream(dur time.Duration, err error) {
	if m == nil {
		return
	}
	m.UpstreamRequests.Inc()
	m.UpstreamDur.Observe(dur.Seconds())
	if err != nil {
		m.UpstreamErrors.Inc()
	}
}

// ReportHit records a same-day report snapshot reuse.
func (m *Metrics) ReportHit() {
	if m != nil {
		m.ReportCacheHits.Inc()
	}
}

// ReportBuild records a report computation.
func (m *Metrics) ReportBuild(dur time.Duration) {
	if m == nil {
		return
	}
	m.ReportBuilds.Inc()
	m.ReportBuildDur.Observe(dur.Seconds())
}

// HealthStatus represents the service health.
type HealthStatus struct {
	mu sync.RWMutex

	TickerDBOK      bool
	TickerDBLatency float64
	LastUpstreamOK  time.Time
	LastUpstreamErr time.Time
	LastCheckAt     time.Time
	StartedAt       time.Time
}

// NewHealthStatus returns a default health status.
func NewHealthStatus() *HealthStatus {
	return &HealthStatus{StartedAt: time.Now()}
}

// RecordUpstream notes the outcome of the latest upstream call.
func (h *HealthStatus) RecordUpstream(err error) {
	h.mu.Lock()
	if err != nil {
		h.LastUpstreamErr = time.Now()
	} else {
		h.LastUpstreamOK = time.Now()
	}
	h.mu.Unlock()
}

// CheckTickerDB runs a trivial query and records latency + health.
func (h *HealthStatus) CheckTickerDB(ctx context.Context, db *sql.DB) {
	start := time.Now()
	err := db.PingContext(ctx)
	latency := time.Since(start)

	h.mu.Lock()
	h.TickerDBOK = err == nil
	h.TickerDBLatency = float64(latency.Microseconds()) / 1000.0
	h.LastCheckAt = time.Now()
	h.mu.Unlock()
}

// StartLivenessChecker runs periodic dependency checks.
func (h *HealthStatus) StartLivenessChecker(ctx context.Context, db *sql.DB, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				probeCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
				if db != nil {
					h.CheckTickerDB(probeCtx, db)
				}
				cancel()
			}
		}
	}()
}

// ServeHTTP handles the /healthz endpoint.
func (h *HealthStatus) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	overallStatus := "healthy"
	httpCode := http.StatusOK
	if !h.TickerDBOK {
		overallStatus = "degraded"
		httpCode = http.StatusServiceUnavailable
	}

	status := struct {
		Status            string  `json:"status"`
		Uptime            string  `json:"uptime"`
		TickerDBOK        bool    `json:"ticker_db_ok"`
		TickerDBLatencyMs float64 `json:"ticker_db_latency_ms"`
		LastUpstreamOK    string  `json:"last_upstream_ok"`
		LastUpstreamErr   string  `json:"last_upstream_err"`
		LastCheckAt       string  `json:"last_check_at"`
	}{
		Status:            overallStatus,
		Uptime:            time.Since(h.StartedAt).Round(time.Second).String(),
		TickerDBOK:        h.TickerDBOK,
		TickerDBLatencyMs: h.TickerDBLatency,
		LastUpstreamOK:    h.LastUpstreamOK.Format(time.RFC3339),
		LastUpstreamErr:   h.LastUpstreamErr.Format(time.RFC3339),
		LastCheckAt:       h.LastCheckAt.Format(time.RFC3339),
	}

	w.Header().Set("Content-Type", "application/json")
	if httpCode != http.StatusOK {
		w.WriteHeader(httpCode)
	}
	json.NewEncoder(w).Encode(status)
}

// Server runs an HTTP server exposing /metrics and /healthz.
type Server struct {
	addr string
	srv  *http.Server
}

// NewServer creates a metrics and health server.
func NewServer(addr string, health *HealthStatus) *Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", health.ServeHTTP)

	return &Server{
		addr: addr,
		srv:  &http.Server{Addr: addr, Handler: mux},
	}
}

// Start launches the HTTP server in a goroutine.
func (s *Server) Start() {
	go func() {
		log.Printf("[metrics] server listening on %s", s.addr)
		if err := s.srv.ListenAndServe(); err != http.ErrServerClosed {
			log.Printf("[metrics] server error: %v", err)
		}
	}()
}

// Stop gracefully shuts down the metrics server.
func (s *Server) Stop(ctx context.Context) {
	s.srv.Shutdown(ctx)
}
