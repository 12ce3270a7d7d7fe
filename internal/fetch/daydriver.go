package fetch

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"dukadump/config"
)

// HourBlob is one hour's compressed tick payload. Data is nil for hours the
// archive has nothing for.
type HourBlob struct {
	Hour int
	Data []byte
}

// DayDriver fans a trading day out into 24 hourly fetches under a
// concurrency cap, spacing request starts to defeat burst detection.
type DayDriver struct {
	fetcher     *Fetcher
	concurrency int
	limiter     *rate.Limiter
}

// NewDayDriver wires a DayDriver over the given fetcher.
func NewDayDriver(f *Fetcher, cfg *config.Tunables) *DayDriver {
	lim := rate.NewLimiter(rate.Inf, 1)
	if cfg.RequestDelay > 0 {
		lim = rate.NewLimiter(rate.Every(cfg.RequestDelay), 1)
	}
	return &DayDriver{
		fetcher:     f,
		concurrency: cfg.HourlyConcurrency,
		limiter:     lim,
	}
}

// FetchDay downloads all 24 hourly blobs for symbol on day, at most
// `concurrency` in flight. Individual hour failures yield empty blobs; only
// ErrThrottled (or cancellation) is returned as an error.
func (d *DayDriver) FetchDay(ctx context.Context, symbol string, day time.Time) ([]HourBlob, error) {
	blobs := make([]HourBlob, 24)
	sem := make(chan struct{}, d.concurrency)

	var wg sync.WaitGroup
	var mu sync.Mutex
	var throttled error

	for hour := 0; hour < 24; hour++ {
		if err := d.limiter.Wait(ctx); err != nil {
			break
		}

		wg.Add(1)
		go func(hour int) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			data, err := d.fetcher.Get(ctx, TickURL(symbol, day, hour))
			if err != nil {
				mu.Lock()
				if throttled == nil {
					throttled = err
				}
				mu.Unlock()
				return
			}
			blobs[hour] = HourBlob{Hour: hour, Data: data}
		}(hour)
	}
	wg.Wait()

	if throttled != nil {
		return nil, throttled
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	for hour := range blobs {
		blobs[hour].Hour = hour
	}
	return blobs, nil
}
