package codec

import (
	"encoding/binary"
	"log"
	"math"
	"time"

	"dukadump/internal/model"
)

// CandleRecordSize is the fixed width of one native candle record:
// { time_offset_s u32, open u32, close u32, low u32, high u32, volume f32 },
// big-endian. Note the open/close/low/high field order.
const CandleRecordSize = 24

// DecodeCandles parses decompressed native candle records. time_offset_s is
// relative to base: midnight of the day for minute candles, first of the
// month for hour candles, January 1st for day candles. Volumes are passed
// through as reported by the archive, rounded to 2 decimals.
func DecodeCandles(symbol string, base time.Time, raw []byte) []model.Candle {
	if len(raw)%CandleRecordSize != 0 {
		log.Printf("[codec] %s candles: discarding %d trailing bytes",
			symbol, len(raw)%CandleRecordSize)
	}

	point := model.PointValue(symbol)

	n := len(raw) / CandleRecordSize
	candles := make([]model.Candle, 0, n)
	for i := 0; i < n; i++ {
		rec := raw[i*CandleRecordSize : (i+1)*CandleRecordSize]
		offset := binary.BigEndian.Uint32(rec[0:4])
		openRaw := binary.BigEndian.Uint32(rec[4:8])
		closeRaw := binary.BigEndian.Uint32(rec[8:12])
		lowRaw := binary.BigEndian.Uint32(rec[12:16])
		highRaw := binary.BigEndian.Uint32(rec[16:20])
		vol := math.Float32frombits(binary.BigEndian.Uint32(rec[20:24]))

		candles = append(candles, model.Candle{
			TS:     base.Add(time.Duration(offset) * time.Second),
			Open:   float64(openRaw) / point,
			High:   float64(highRaw) / point,
			Low:    float64(lowRaw) / point,
			Close:  float64(closeRaw) / point,
			Volume: math.Round(float64(vol)*100) / 100,
		})
	}
	return candles
}
