package fetch

import (
	"fmt"
	"time"

	"dukadump/internal/model"
)

const baseURL = "https://www.dukascopy.com/datafeed"

// The archive encodes months 0-indexed (January = 00) in tick and
// minute/hour candle paths.

// TickURL returns the per-hour tick blob URL for a symbol/day/hour.
func TickURL(symbol string, day time.Time, hour int) string {
	return fmt.Sprintf("%s/%s/%04d/%02d/%02d/%02dh_ticks.bi5",
		baseURL, symbol, day.Year(), int(day.Month())-1, day.Day(), hour)
}

// MinuteCandleURL returns the per-day minute candle blob URL.
func MinuteCandleURL(symbol string, day time.Time, side model.PriceSide) string {
	return fmt.Sprintf("%s/%s/%04d/%02d/%02d/%s_candles_min_1.bi5",
		baseURL, symbol, day.Year(), int(day.Month())-1, day.Day(), side)
}

// HourCandleURL returns the per-month hour candle blob URL.
func HourCandleURL(symbol string, year int, month time.Month, side model.PriceSide) string {
	return fmt.Sprintf("%s/%s/%04d/%02d/%s_candles_hour_1.bi5",
		baseURL, symbol, year, int(month)-1, side)
}

// DayCandleURL returns the per-year day candle blob URL.
func DayCandleURL(symbol string, year int, side model.PriceSide) string {
	return fmt.Sprintf("%s/%s/%04d/%s_candles_day_1.bi5",
		baseURL, symbol, year, side)
}
