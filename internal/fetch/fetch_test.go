package fetch

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"dukadump/config"
	"dukadump/internal/model"
)

func testTunables() *config.Tunables {
	return &config.Tunables{
		DownloadAttempts:  10,
		RetryBaseDelay:    time.Millisecond,
		RetryMaxDelay:     10 * time.Millisecond,
		HourlyConcurrency: 8,
		RequestDelay:      0,
		HTTPTimeout:       5 * time.Second,
		ConnectTimeout:    time.Second,
	}
}

func TestFetcher_RetryThen200(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) <= 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte("payload"))
	}))
	defer srv.Close()

	f := New(testTunables())
	body, err := f.Get(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if string(body) != "payload" {
		t.Errorf("body=%q, want %q", body, "payload")
	}
	if n := calls.Load(); n != 4 {
		t.Errorf("issued %d requests, want exactly 4", n)
	}
}

func TestFetcher_404IsEmpty(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	f := New(testTunables())
	body, err := f.Get(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("404 must not be an error, got %v", err)
	}
	if body != nil {
		t.Errorf("expected nil body, got %d bytes", len(body))
	}
	if n := calls.Load(); n != 1 {
		t.Errorf("404 must not retry, issued %d requests", n)
	}
}

func TestFetcher_PersistentThrottling(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	cfg := testTunables()
	f := New(cfg)
	_, err := f.Get(context.Background(), srv.URL)
	if !errors.Is(err, ErrThrottled) {
		t.Fatalf("expected ErrThrottled, got %v", err)
	}
	if n := calls.Load(); int(n) != cfg.DownloadAttempts {
		t.Errorf("issued %d requests, want %d", n, cfg.DownloadAttempts)
	}
}

func TestFetcher_NonThrottleExhaustionReturnsEmpty(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	cfg := testTunables()
	cfg.DownloadAttempts = 2
	f := New(cfg)
	body, err := f.Get(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("isolated loss must not error, got %v", err)
	}
	if body != nil {
		t.Errorf("expected empty body after exhaustion")
	}
}

func TestFetcher_BrowserHeaders(t *testing.T) {
	headerCh := make(chan http.Header, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		headerCh <- r.Header.Clone()
		w.Write([]byte("ok"))
	}))
	defer srv.Close()

	f := New(testTunables())
	if _, err := f.Get(context.Background(), srv.URL); err != nil {
		t.Fatalf("get: %v", err)
	}

	h := <-headerCh
	if ua := h.Get("User-Agent"); !strings.Contains(ua, "Mozilla/5.0") {
		t.Errorf("user agent %q does not look like a browser", ua)
	}
	if ref := h.Get("Referer"); !strings.Contains(ref, "dukascopy.com") {
		t.Errorf("missing archive referer, got %q", ref)
	}
	if enc := h.Get("Accept-Encoding"); !strings.Contains(enc, "gzip") {
		t.Errorf("missing accept-encoding, got %q", enc)
	}
}

func TestFetcher_CancelDuringBackoff(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	cfg := testTunables()
	cfg.RetryBaseDelay = time.Hour // would hang without the cancellation check
	cfg.RetryMaxDelay = time.Hour
	f := New(cfg)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := f.Get(ctx, srv.URL)
		done <- err
	}()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("expected context.Canceled, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("retry loop did not honor cancellation")
	}
}

func TestDayDriver_FetchDay(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		// Serve data only for hour 05, 404 the rest.
		if strings.HasSuffix(r.URL.Path, "/05h_ticks.bi5") {
			w.Write([]byte("blob-5"))
			return
		}
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	d := newTestDriver(srv.URL)
	blobs, err := d.FetchDay(context.Background(), "EURUSD", time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("fetch day: %v", err)
	}
	if len(blobs) != 24 {
		t.Fatalf("expected 24 blobs, got %d", len(blobs))
	}
	if n := calls.Load(); n != 24 {
		t.Errorf("issued %d requests, want 24", n)
	}
	for hour, b := range blobs {
		if b.Hour != hour {
			t.Fatalf("blob %d carries hour %d", hour, b.Hour)
		}
		if hour == 5 && string(b.Data) != "blob-5" {
			t.Errorf("hour 5 data=%q", b.Data)
		}
		if hour != 5 && b.Data != nil {
			t.Errorf("hour %d should be empty", hour)
		}
	}
}

func TestDayDriver_ThrottlePropagates(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	d := newTestDriver(srv.URL)
	_, err := d.FetchDay(context.Background(), "EURUSD", time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC))
	if !errors.Is(err, ErrThrottled) {
		t.Fatalf("expected ErrThrottled, got %v", err)
	}
}

// newTestDriver points tick URLs at a local test server by rewriting the
// fetcher through a transport shim.
func newTestDriver(target string) *DayDriver {
	cfg := testTunables()
	cfg.DownloadAttempts = 3
	f := New(cfg)
	orig := f.client.Transport
	f.client.Transport = rewriteTransport{target: target, inner: orig}
	return NewDayDriver(f, cfg)
}

type rewriteTransport struct {
	target string
	inner  http.RoundTripper
}

func (t rewriteTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	redirected, err := http.NewRequestWithContext(req.Context(), req.Method,
		t.target+req.URL.Path, nil)
	if err != nil {
		return nil, err
	}
	redirected.Header = req.Header
	return t.inner.RoundTrip(redirected)
}

func TestTickURL_ZeroIndexedMonth(t *testing.T) {
	day := time.Date(2024, time.January, 15, 0, 0, 0, 0, time.UTC)
	got := TickURL("EURUSD", day, 7)
	want := "https://www.dukascopy.com/datafeed/EURUSD/2024/00/15/07h_ticks.bi5"
	if got != want {
		t.Errorf("got %s\nwant %s", got, want)
	}

	dec := time.Date(2023, time.December, 1, 0, 0, 0, 0, time.UTC)
	if got := TickURL("GBPUSD", dec, 0); !strings.Contains(got, "/2023/11/01/") {
		t.Errorf("december must encode as 11: %s", got)
	}
}

func TestCandleURLs(t *testing.T) {
	day := time.Date(2024, time.March, 5, 0, 0, 0, 0, time.UTC)

	cases := []struct{ got, want string }{
		{
			MinuteCandleURL("EURUSD", day, model.SideBid),
			"https://www.dukascopy.com/datafeed/EURUSD/2024/02/05/BID_candles_min_1.bi5",
		},
		{
			HourCandleURL("EURUSD", 2024, time.March, model.SideAsk),
			"https://www.dukascopy.com/datafeed/EURUSD/2024/02/ASK_candles_hour_1.bi5",
		},
		{
			DayCandleURL("EURUSD", 2024, model.SideBid),
			"https://www.dukascopy.com/datafeed/EURUSD/2024/BID_candles_day_1.bi5",
		},
	}
	for i, c := range cases {
		if c.got != c.want {
			t.Errorf("case %d:\n got %s\nwant %s", i, c.got, c.want)
		}
	}
}

func TestFetchNativeCandles_RejectsMid(t *testing.T) {
	d := newTestDriver("http://unused.invalid")
	_, err := d.FetchNativeCandles(context.Background(), "EURUSD",
		time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC),
		"M1", model.SideMid)
	if err == nil {
		t.Error("expected error for MID native candles")
	}
}
