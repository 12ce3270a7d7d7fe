// Package metrics exposes Prometheus metrics and a small health endpoint
// for long-running download jobs.
package metrics

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the downloader.
type Metrics struct {
	HTTPRequests  *prometheus.CounterVec // labels: status
	Retries       prometheus.Counter
	BreakerTrips  prometheus.Counter
	DaysCompleted *prometheus.CounterVec // labels: result = ok|failed
	TicksWritten  prometheus.Counter
	RowsWritten   prometheus.Counter
	SymbolDur     prometheus.Histogram
}

// New registers and returns the downloader metrics.
func New() *Metrics {
	m := &Metrics{
		HTTPRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "dukadump_http_requests_total",
			Help: "Archive HTTP responses by status code",
		}, []string{"status"}),
		Retries: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "dukadump_retries_total",
			Help: "Retry attempts across all requests",
		}),
		BreakerTrips: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "dukadump_breaker_trips_total",
			Help: "Times the throttling circuit breaker opened",
		}),
		DaysCompleted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "dukadump_days_total",
			Help: "Processed (symbol, day) work items by result",
		}, []string{"result"}),
		TicksWritten: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "dukadump_ticks_written_total",
			Help: "Tick rows written to final output files",
		}),
		RowsWritten: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "dukadump_rows_written_total",
			Help: "All rows (tick or candle) written to final output files",
		}),
		SymbolDur: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "dukadump_symbol_duration_seconds",
			Help:    "Wall time to finish one symbol",
			Buckets: []float64{1, 5, 15, 60, 300, 900, 3600},
		}),
	}

	prometheus.MustRegister(
		m.HTTPRequests,
		m.Retries,
		m.BreakerTrips,
		m.DaysCompleted,
		m.TicksWritten,
		m.RowsWritten,
		m.SymbolDur,
	)
	return m
}

// ObserveStatus records one HTTP response. Wire it to fetch.Fetcher.OnRequest.
func (m *Metrics) ObserveStatus(status int) {
	m.HTTPRequests.WithLabelValues(strconv.Itoa(status)).Inc()
}

// HealthStatus is the state served on /healthz.
type HealthStatus struct {
	mu sync.RWMutex

	Running      bool      `json:"running"`
	ActiveSymbol string    `json:"active_symbol"`
	LastProgress time.Time `json:"last_progress"`
	StartedAt    time.Time `json:"started_at"`
}

// NewHealthStatus returns a default health status.
func NewHealthStatus() *HealthStatus {
	return &HealthStatus{StartedAt: time.Now()}
}

func (h *HealthStatus) SetRunning(v bool) {
	h.mu.Lock()
	h.Running = v
	h.mu.Unlock()
}

func (h *HealthStatus) SetActiveSymbol(symbol string) {
	h.mu.Lock()
	h.ActiveSymbol = symbol
	h.LastProgress = time.Now()
	h.mu.Unlock()
}

func (h *HealthStatus) Touch() {
	h.mu.Lock()
	h.LastProgress = time.Now()
	h.mu.Unlock()
}

// ServeHTTP handles /healthz.
func (h *HealthStatus) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	status := struct {
		Status       string `json:"status"`
		Uptime       string `json:"uptime"`
		Running      bool   `json:"running"`
		ActiveSymbol string `json:"active_symbol"`
		LastProgress string `json:"last_progress"`
	}{
		Status:       "ok",
		Uptime:       time.Since(h.StartedAt).Round(time.Second).String(),
		Running:      h.Running,
		ActiveSymbol: h.ActiveSymbol,
	}
	if !h.LastProgress.IsZero() {
		status.LastProgress = h.LastProgress.Format(time.RFC3339)
	}

	w.Header().Set("Content-Type", "application/json")
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
