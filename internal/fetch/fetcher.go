// Package fetch downloads bi5 blobs from the Dukascopy archive with
// retry/backoff, browser-like headers and bounded per-host concurrency.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"math/rand"
	"net"
	"net/http"
	"strings"
	"time"

	"dukadump/config"
)

// ErrThrottled signals retry exhaustion dominated by 503 responses. The
// orchestrator reacts by opening its circuit breaker; any other exhaustion
// degrades to an empty blob so a lost hour never aborts the job.
var ErrThrottled = errors.New("persistent throttling from archive")

// The archive 503s bare library user agents; present a desktop browser.
var httpHeaders = map[string]string{
	"User-Agent": "Mozilla/5.0 (Windows NT 10.0; Win64; x64) " +
		"AppleWebKit/537.36 (KHTML, like Gecko) " +
		"Chrome/120.0.0.0 Safari/537.36",
	"Accept":          "*/*",
	"Accept-Language": "en-US,en;q=0.9",
	"Accept-Encoding": "gzip, deflate, br",
	"Referer":         "https://www.dukascopy.com/swiss/english/marketwatch/historical/",
}

// outcome classifies one attempt for the retry state machine.
type outcome int

const (
	outcomeOK outcome = iota
	outcomeEmpty
	outcomeTransient // 5xx / timeout / connection error: exponential backoff
	outcomeSlow      // other non-2xx: linear backoff
)

// Fetcher downloads single blobs with an internal retry loop.
// Safe for concurrent use.
type Fetcher struct {
	client    *http.Client
	attempts  int
	baseDelay time.Duration
	maxDelay  time.Duration
	timeout   time.Duration

	// Metrics hooks (optional, set externally)
	OnRequest func(status int)
	OnRetry   func()
}

// New creates a Fetcher with keep-alive connections capped per host at the
// hourly concurrency limit.
func New(cfg *config.Tunables) *Fetcher {
	transport := &http.Transport{
		DialContext: (&net.Dialer{
			Timeout:   cfg.ConnectTimeout,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxConnsPerHost:     cfg.HourlyConcurrency,
		MaxIdleConnsPerHost: cfg.HourlyConcurrency,
		IdleConnTimeout:     30 * time.Second,
	}
	return &Fetcher{
		client:    &http.Client{Transport: transport},
		attempts:  cfg.DownloadAttempts,
		baseDelay: cfg.RetryBaseDelay,
		maxDelay:  cfg.RetryMaxDelay,
		timeout:   cfg.HTTPTimeout,
	}
}

// Get downloads one URL. Returns the body on 200, nil on 404 (a missing
// blob is normal for weekends and holidays) and nil after exhausted retries
// on anything else — except a 503-dominated history, which returns
// ErrThrottled.
func (f *Fetcher) Get(ctx context.Context, url string) ([]byte, error) {
	var lastStatus int
	var lastErr error
	failed, count503 := 0, 0

	for attempt := 0; attempt < f.attempts; attempt++ {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		status, body, err := f.do(ctx, url)
		if f.OnRequest != nil {
			f.OnRequest(status)
		}

		var kind outcome
		switch {
		case err == nil && status == http.StatusOK:
			kind = outcomeOK
		case err == nil && status == http.StatusNotFound:
			kind = outcomeEmpty
		case err != nil, status == 500, status == 502, status == 503, status == 504:
			kind = outcomeTransient
		default:
			kind = outcomeSlow
		}

		switch kind {
		case outcomeOK:
			return body, nil
		case outcomeEmpty:
			return nil, nil
		}

		failed++
		if status == http.StatusServiceUnavailable {
			count503++
		}
		lastStatus, lastErr = status, err
		if f.OnRetry != nil {
			f.OnRetry()
		}

		var delay time.Duration
		if kind == outcomeTransient {
			delay = f.baseDelay<<uint(attempt) + jitter(500*time.Millisecond, 2*time.Second)
			if delay > f.maxDelay {
				delay = f.maxDelay
			}
		} else {
			delay = f.baseDelay*time.Duration(attempt+1) + jitter(0, time.Second)
		}
		if !sleepCtx(ctx, delay) {
			return nil, ctx.Err()
		}
	}

	if failed > 0 && count503*2 >= failed {
		return nil, fmt.Errorf("%w: %s", ErrThrottled, url)
	}

	log.Printf("[fetch] skipped %s after %d attempts (status=%d err=%v)",
		trimURL(url), f.attempts, lastStatus, lastErr)
	return nil, nil
}

// do performs one HTTP attempt with a jittered total timeout. The jitter
// keeps concurrent retries from realigning into a thundering herd.
func (f *Fetcher) do(ctx context.Context, url string) (int, []byte, error) {
	reqCtx, cancel := context.WithTimeout(ctx, f.timeout+jitter(0, 5*time.Second))
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, url, nil)
	if err != nil {
		return 0, nil, err
	}
	for k, v := range httpHeaders {
		req.Header.Set(k, v)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, resp.Body) // drain so keep-alive can reuse the conn
		return resp.StatusCode, nil, nil
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, err
	}
	return resp.StatusCode, body, nil
}

func jitter(lo, hi time.Duration) time.Duration {
	return lo + time.Duration(rand.Int63n(int64(hi-lo)+1))
}

// sleepCtx sleeps for d, returning false if ctx was cancelled first.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	select {
	case <-ctx.Done():
		return false
	case <-time.After(d):
		return true
	}
}

func trimURL(url string) string {
	if i := strings.Index(url, "/datafeed/"); i >= 0 {
		return url[i+len("/datafeed/"):]
	}
	return url
}
