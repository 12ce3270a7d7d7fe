// Package config holds environment-tunable download settings. Defaults are
// conservative to stay under the archive's rate limiting.
package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Limits on the orchestrator worker pool.
const (
	DefaultThreads = 5
	MaxThreads     = 30
)

// Tunables are the knobs that rarely change per run. Everything request-
// specific (symbols, dates, timeframe) lives in service.Request instead.
type Tunables struct {
	// Fetcher retry policy
	DownloadAttempts int           `env:"DUKA_DOWNLOAD_ATTEMPTS" envDefault:"10"`
	RetryBaseDelay   time.Duration `env:"DUKA_RETRY_BASE_DELAY" envDefault:"1s"`
	RetryMaxDelay    time.Duration `env:"DUKA_RETRY_MAX_DELAY" envDefault:"30s"`

	// Per-day hourly fan-out
	HourlyConcurrency int           `env:"DUKA_HOURLY_CONCURRENCY" envDefault:"8"`
	RequestDelay      time.Duration `env:"DUKA_REQUEST_DELAY" envDefault:"100ms"`

	// HTTP timeouts
	HTTPTimeout    time.Duration `env:"DUKA_HTTP_TIMEOUT" envDefault:"60s"`
	ConnectTimeout time.Duration `env:"DUKA_CONNECT_TIMEOUT" envDefault:"10s"`

	// Circuit breaker hold time after persistent throttling
	BreakerResetDelay time.Duration `env:"DUKA_BREAKER_RESET" envDefault:"60s"`

	// Metrics/health endpoint; empty disables the listener
	MetricsAddr string `env:"DUKA_METRICS_ADDR" envDefault:""`
}

// Load reads tunables from the environment.
func Load() (*Tunables, error) {
	var t Tunables
	if err := env.Parse(&t); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	if t.DownloadAttempts < 1 {
		return nil, fmt.Errorf("config: DUKA_DOWNLOAD_ATTEMPTS must be >= 1")
	}
	if t.HourlyConcurrency < 1 {
		return nil, fmt.Errorf("config: DUKA_HOURLY_CONCURRENCY must be >= 1")
	}
	return &t, nil
}
