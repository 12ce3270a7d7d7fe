package fetch

import (
	"context"
	"fmt"
	"log"
	"sort"
	"sync"
	"time"

	"dukadump/internal/codec"
	"dukadump/internal/model"
)

// nativeBlob pairs a candle blob URL with the base instant its record
// offsets are relative to.
type nativeBlob struct {
	base time.Time
	url  string
}

// FetchNativeCandles downloads pre-computed candles for M1, H1 or D1 and
// returns them decoded, filtered to [start, end] and sorted by timestamp.
// The archive only serves BID and ASK candle files.
func (d *DayDriver) FetchNativeCandles(ctx context.Context, symbol string, start, end time.Time, tfName string, side model.PriceSide) ([]model.Candle, error) {
	if side == model.SideMid {
		return nil, fmt.Errorf("native candles are only published per side (BID or ASK)")
	}

	var blobs []nativeBlob
	switch tfName {
	case "M1":
		blobs = minuteBlobs(symbol, start, end, side)
	case "H1":
		blobs = hourBlobs(symbol, start, end, side)
	case "D1":
		blobs = dayBlobs(symbol, start, end, side)
	default:
		return nil, fmt.Errorf("native candles not available for timeframe %s", tfName)
	}

	results := make([][]model.Candle, len(blobs))
	sem := make(chan struct{}, d.concurrency)

	var wg sync.WaitGroup
	var mu sync.Mutex
	var throttled error

	for i, b := range blobs {
		if err := d.limiter.Wait(ctx); err != nil {
			break
		}

		wg.Add(1)
		go func(i int, b nativeBlob) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			data, err := d.fetcher.Get(ctx, b.url)
			if err != nil {
				mu.Lock()
				if throttled == nil {
					throttled = err
				}
				mu.Unlock()
				return
			}
			if len(data) == 0 {
				return
			}

			raw, err := codec.Decompress(data)
			if err != nil {
				log.Printf("[fetch] %s: bad candle blob %s: %v", symbol, trimURL(b.url), err)
				return
			}
			results[i] = codec.DecodeCandles(symbol, b.base, raw)
		}(i, b)
	}
	wg.Wait()

	if throttled != nil {
		return nil, throttled
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// Monthly and yearly blobs overshoot the requested range; clamp.
	lo := time.Date(start.Year(), start.Month(), start.Day(), 0, 0, 0, 0, time.UTC)
	hi := time.Date(end.Year(), end.Month(), end.Day(), 23, 59, 59, 0, time.UTC)

	var all []model.Candle
	for _, cs := range results {
		for _, c := range cs {
			if !c.TS.Before(lo) && !c.TS.After(hi) {
				all = append(all, c)
			}
		}
	}
	sort.Slice(all, func(i, j int) bool { return all[i].TS.Before(all[j].TS) })
	return all, nil
}

// minuteBlobs yields one blob per day, skipping Saturdays and today like the
// tick path does.
func minuteBlobs(symbol string, start, end time.Time, side model.PriceSide) []nativeBlob {
	today := time.Now().UTC().Truncate(24 * time.Hour)
	var blobs []nativeBlob
	for day := start; !day.After(end); day = day.AddDate(0, 0, 1) {
		if day.Weekday() == time.Saturday || day.Equal(today) {
			continue
		}
		base := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, time.UTC)
		blobs = append(blobs, nativeBlob{base: base, url: MinuteCandleURL(symbol, day, side)})
	}
	return blobs
}

// hourBlobs yields one blob per month.
func hourBlobs(symbol string, start, end time.Time, side model.PriceSide) []nativeBlob {
	var blobs []nativeBlob
	cur := time.Date(start.Year(), start.Month(), 1, 0, 0, 0, 0, time.UTC)
	last := time.Date(end.Year(), end.Month(), 1, 0, 0, 0, 0, time.UTC)
	for !cur.After(last) {
		blobs = append(blobs, nativeBlob{base: cur, url: HourCandleURL(symbol, cur.Year(), cur.Month(), side)})
		cur = cur.AddDate(0, 1, 0)
	}
	return blobs
}

// dayBlobs yields one blob per year.
func dayBlobs(symbol string, start, end time.Time, side model.PriceSide) []nativeBlob {
	var blobs []nativeBlob
	for year := start.Year(); year <= end.Year(); year++ {
		base := time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC)
		blobs = append(blobs, nativeBlob{base: base, url: DayCandleURL(symbol, year, side)})
	}
	return blobs
}
