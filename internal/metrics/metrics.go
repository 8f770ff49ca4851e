// Package metrics exposes Prometheus metrics and a health endpoint for the
// market watch service.
package metrics

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	goredis "github.com/go-redis/redis/v8"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the service.
type Metrics struct {
	registry *prometheus.Registry

	// Refresh loop
	PassesTotal      prometheus.Counter
	PassDur          prometheus.Histogram
	BatchDur         prometheus.Histogram
	SymbolsRefreshed *prometheus.CounterVec // labels: group
	FetchFailures    *prometheus.CounterVec // labels: provider
	PanicsRecovered  prometheus.Counter
	CacheEntries     prometheus.Gauge

	// Indicator engine
	IndicatorComputeDur prometheus.Histogram
	IndicatorFailures   prometheus.Counter

	// Alerts & notifications
	AlertsFired          *prometheus.CounterVec // labels: kind
	NotificationsSent    *prometheus.CounterVec // labels: channel
	NotificationFailures *prometheus.CounterVec // labels: channel
	NotificationsDropped prometheus.Counter

	// Distribution
	Subscribers     prometheus.Gauge
	BroadcastBytes  prometheus.Counter
	BroadcastDrops  prometheus.Counter
	PublishFailures prometheus.Counter

	// Circuit breakers
	CircuitBreakerState *prometheus.GaugeVec   // labels: provider; 0=closed, 1=open, 2=half-open
	CircuitBreakerTrips *prometheus.CounterVec // labels: provider

	// Market session
	MarketState prometheus.Gauge // 0=closed, 1=open
}

// New creates all metrics and registers them on reg. A nil reg gets a fresh
// registry, so several instances can coexist in tests.
func New(reg *prometheus.Registry) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	m := &Metrics{
		registry: reg,

		PassesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "marketpulse_refresh_passes_total",
			Help: "Completed refresh passes over the instrument universe",
		}),
		PassDur: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "marketpulse_refresh_pass_duration_seconds",
			Help:    "Wall time of one refresh pass, pauses included",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 300},
		}),
		BatchDur: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "marketpulse_refresh_batch_duration_seconds",
			Help:    "Fetch + compute time of one batch",
			Buckets: prometheus.DefBuckets,
		}),
		SymbolsRefreshed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "marketpulse_symbols_refreshed_total",
			Help: "Cache entries written by the refresh loop",
		}, []string{"group"}),
		FetchFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "marketpulse_fetch_failures_total",
			Help: "Upstream fetch failures by provider",
		}, []string{"provider"}),
		PanicsRecovered: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "marketpulse_refresh_panics_total",
			Help: "Panics recovered inside a refresh batch",
		}),
		CacheEntries: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "marketpulse_cache_entries",
			Help: "Symbols currently held in the price cache",
		}),

		IndicatorComputeDur: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "marketpulse_indicator_compute_duration_seconds",
			Help:    "Indicator engine compute latency per series",
			Buckets: []float64{0.00001, 0.00005, 0.0001, 0.0005, 0.001, 0.005, 0.01},
		}),
		IndicatorFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "marketpulse_indicator_failures_total",
			Help: "Series that produced an empty indicator set",
		}),

		AlertsFired: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "marketpulse_alerts_fired_total",
			Help: "Alert events appended to history by kind",
		}, []string{"kind"}),
		NotificationsSent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "marketpulse_notifications_sent_total",
			Help: "Notifications delivered by channel",
		}, []string{"channel"}),
		NotificationFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "marketpulse_notification_failures_total",
			Help: "Notification deliveries that returned an error",
		}, []string{"channel"}),
		NotificationsDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "marketpulse_notifications_dropped_total",
			Help: "Notifications dropped because the queue was full",
		}),

		Subscribers: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "marketpulse_ws_subscribers",
			Help: "Connected push subscribers",
		}),
		BroadcastBytes: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "marketpulse_broadcast_bytes_total",
			Help: "Snapshot payload bytes serialized for broadcast",
		}),
		BroadcastDrops: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "marketpulse_broadcast_drops_total",
			Help: "Snapshots skipped for a subscriber with a full buffer",
		}),
		PublishFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "marketpulse_publish_failures_total",
			Help: "Snapshot publishes to external sinks that failed",
		}),

		CircuitBreakerState: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "marketpulse_circuit_breaker_state",
			Help: "Upstream circuit breaker state (0=closed, 1=open, 2=half-open)",
		}, []string{"provider"}),
		CircuitBreakerTrips: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "marketpulse_circuit_breaker_trips_total",
			Help: "Times an upstream circuit breaker tripped open",
		}, []string{"provider"}),

		MarketState: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "marketpulse_market_state",
			Help: "Exchange session state (0=closed, 1=open)",
		}),
	}

	reg.MustRegister(
		m.PassesTotal,
		m.PassDur,
		m.BatchDur,
		m.SymbolsRefreshed,
		m.FetchFailures,
		m.PanicsRecovered,
		m.CacheEntries,
		m.IndicatorComputeDur,
		m.IndicatorFailures,
		m.AlertsFired,
		m.NotificationsSent,
		m.NotificationFailures,
		m.NotificationsDropped,
		m.Subscribers,
		m.BroadcastBytes,
		m.BroadcastDrops,
		m.PublishFailures,
		m.CircuitBreakerState,
		m.CircuitBreakerTrips,
		m.MarketState,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return m
}

// ObserveHistoryEvictions exports evicted, the running total of indicator
// history points dropped to stay within the per-key limit, as a counter.
func (m *Metrics) ObserveHistoryEvictions(evicted func() uint64) {
	m.registry.MustRegister(prometheus.NewCounterFunc(prometheus.CounterOpts{
		Name: "marketpulse_history_evictions_total",
		Help: "Indicator history points evicted by the per-key limit",
	}, func() float64 { return float64(evicted()) }))
}

// Registry returns the registry the metrics are registered on.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// HealthStatus represents the system health.
type HealthStatus struct {
	mu sync.RWMutex

	LastPassAt     time.Time
	PassesDone     uint64
	RedisEnabled   bool
	RedisConnected bool
	RedisLatencyMs float64
	LastCheckAt    time.Time
	StartedAt      time.Time
}

// NewHealthStatus returns a default health status.
func NewHealthStatus() *HealthStatus {
	return &HealthStatus{
		StartedAt: time.Now(),
	}
}

// PassCompleted records the end of a refresh pass.
func (h *HealthStatus) PassCompleted(at time.Time) {
	h.mu.Lock()
	h.LastPassAt = at
	h.PassesDone++
	h.mu.Unlock()
}

// CheckRedis pings Redis and records latency + connectivity.
func (h *HealthStatus) CheckRedis(ctx context.Context, rdb *goredis.Client) {
	start := time.Now()
	err := rdb.Ping(ctx).Err()
	latency := time.Since(start)

	h.mu.Lock()
	h.RedisEnabled = true
	h.RedisConnected = err == nil
	h.RedisLatencyMs = float64(latency.Microseconds()) / 1000.0
	h.LastCheckAt = time.Now()
	h.mu.Unlock()
}

// StartLivenessChecker runs periodic dependency checks until ctx is done.
// rdb may be nil when no publish sink is configured.
func (h *HealthStatus) StartLivenessChecker(ctx context.Context, rdb *goredis.Client, interval time.Duration) {
	if rdb == nil {
		return
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
				h.CheckRedis(pingCtx, rdb)
				cancel()
			}
		}
	}()
}

// Report is the JSON body of the health endpoint.
type Report struct {
	Status         string  `json:"status"`
	Uptime         string  `json:"uptime"`
	Passes         uint64  `json:"passes"`
	LastPassAt     string  `json:"last_pass_at,omitempty"`
	RedisEnabled   bool    `json:"redis_enabled"`
	RedisConnected bool    `json:"redis_connected"`
	RedisLatencyMs float64 `json:"redis_latency_ms"`
}

// Report summarizes health. Status is "starting" until the first pass
// completes and "degraded" while a configured Redis sink is unreachable.
// The Redis sink is an optional mirror of the websocket push, so the code
// stays 200 in either case.
func (h *HealthStatus) Report() (Report, int) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	status := "healthy"
	switch {
	case h.PassesDone == 0:
		status = "starting"
	case h.RedisEnabled && !h.RedisConnected:
		status = "degraded"
	}

	r := Report{
		Status:         status,
		Uptime:         time.Since(h.StartedAt).Round(time.Second).String(),
		Passes:         h.PassesDone,
		RedisEnabled:   h.RedisEnabled,
		RedisConnected: h.RedisConnected,
		RedisLatencyMs: h.RedisLatencyMs,
	}
	if !h.LastPassAt.IsZero() {
		r.LastPassAt = h.LastPassAt.Format(time.RFC3339)
	}
	return r, http.StatusOK
}

// ServeHTTP handles the /healthz endpoint.
func (h *HealthStatus) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	report, code := h.Report()
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(report)
}

// Server runs a standalone HTTP server exposing /metrics and /healthz.
type Server struct {
	addr string
	srv  *http.Server
	log  *slog.Logger
}

// NewServer creates a metrics and health server.
func NewServer(addr string, m *Metrics, health *HealthStatus, log *slog.Logger) *Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	mux.Handle("/healthz", health)

	return &Server{
		addr: addr,
		log:  log.With("component", "metrics"),
		srv: &http.Server{
			Addr:              addr,
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		},
	}
}

// Start launches the HTTP server in a goroutine.
func (s *Server) Start() {
	go func() {
		s.log.Info("server listening", "addr", s.addr)
		if err := s.srv.ListenAndServe(); err != http.ErrServerClosed {
			s.log.Error("server error", "error", err)
		}
	}()
}

// Stop gracefully shuts down the metrics server.
func (s *Server) Stop(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}
