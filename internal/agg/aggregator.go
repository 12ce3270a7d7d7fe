// Package agg buckets ticks into fixed-period OHLCV candles and merges
// candle fragments that span a day boundary.
package agg

import (
	"time"

	"dukadump/internal/model"
)

// Aggregator builds candles of a fixed period from one day's ticks.
// Bucketing is pure UTC epoch arithmetic; no local-timezone call ever
// participates, so the same ticks bucket identically on any host.
type Aggregator struct {
	period int64 // seconds, > 0
	side   model.PriceSide
	kind   model.VolumeKind
}

// New creates an Aggregator. period is the candle duration in seconds.
func New(period int64, side model.PriceSide, kind model.VolumeKind) *Aggregator {
	return &Aggregator{period: period, side: side, kind: kind}
}

// bucketState accumulates one in-progress candle.
type bucketState struct {
	key    int64 // bucket start, Unix seconds
	open   float64
	high   float64
	low    float64
	close_ float64
	volume float64
}

// Aggregate buckets ticks (ascending ts) into candles. When consecutive
// ticks skip one or more whole periods, zero-OHLC empty candles are emitted
// for the gap so output timestamps progress by exactly one period. The final
// open bucket is flushed at the end.
func (a *Aggregator) Aggregate(ticks []model.Tick) []model.Candle {
	var out []model.Candle
	var cur *bucketState

	for _, t := range ticks {
		ts := t.TS.Unix()
		key := ts - ts%a.period
		price := t.Price(a.side)
		vol := t.SelectedVolume(a.kind)

		if cur != nil && key != cur.key {
			out = append(out, a.finish(cur))
			// Fill skipped periods with empty candles.
			for k := cur.key + a.period; k < key; k += a.period {
				out = append(out, model.Candle{TS: time.Unix(k, 0).UTC()})
			}
			cur = nil
		}

		if cur == nil {
			cur = &bucketState{key: key, open: price, high: price, low: price, close_: price, volume: vol}
			continue
		}

		if price > cur.high {
			cur.high = price
		}
		if price < cur.low {
			cur.low = price
		}
		cur.close_ = price
		cur.volume += vol
	}

	if cur != nil {
		out = append(out, a.finish(cur))
	}
	return out
}

func (a *Aggregator) finish(b *bucketState) model.Candle {
	return model.Candle{
		TS:     time.Unix(b.key, 0).UTC(),
		Open:   b.open,
		High:   b.high,
		Low:    b.low,
		Close:  b.close_,
		Volume: b.volume,
	}
}
