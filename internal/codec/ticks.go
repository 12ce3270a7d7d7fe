package codec

import (
	"encoding/binary"
	"log"
	"math"
	"time"

	"dukadump/internal/model"
)

// TickRecordSize is the fixed width of one tick record:
// { time_ms u32, ask u32, bid u32, ask_vol f32, bid_vol f32 }, big-endian.
const TickRecordSize = 20

// DecodeTicks parses decompressed tick records for one hour of one day.
// time_ms offsets the start of the HOUR, not the day. A trailing partial
// record is discarded.
func DecodeTicks(symbol string, day time.Time, hour int, raw []byte) []model.Tick {
	if len(raw)%TickRecordSize != 0 {
		log.Printf("[codec] %s %s %02dh: discarding %d trailing bytes",
			symbol, day.Format("2006-01-02"), hour, len(raw)%TickRecordSize)
	}

	point := model.PointValue(symbol)
	base := time.Date(day.Year(), day.Month(), day.Day(), hour, 0, 0, 0, time.UTC)

	n := len(raw) / TickRecordSize
	ticks := make([]model.Tick, 0, n)
	for i := 0; i < n; i++ {
		rec := raw[i*TickRecordSize : (i+1)*TickRecordSize]
		ms := binary.BigEndian.Uint32(rec[0:4])
		askRaw := binary.BigEndian.Uint32(rec[4:8])
		bidRaw := binary.BigEndian.Uint32(rec[8:12])
		askVol := math.Float32frombits(binary.BigEndian.Uint32(rec[12:16]))
		bidVol := math.Float32frombits(binary.BigEndian.Uint32(rec[16:20]))

		ticks = append(ticks, model.Tick{
			TS:     base.Add(time.Duration(ms) * time.Millisecond),
			Ask:    float64(askRaw) / point,
			Bid:    float64(bidRaw) / point,
			AskVol: int64(math.Round(float64(askVol) * model.VolumeMultiplier)),
			BidVol: int64(math.Round(float64(bidVol) * model.VolumeMultiplier)),
		})
	}
	return ticks
}

// EncodeTicks is the inverse of DecodeTicks. It exists for synthetic test
// fixtures and round-trip checks; the downloader itself never re-encodes.
func EncodeTicks(symbol string, day time.Time, hour int, ticks []model.Tick) []byte {
	point := model.PointValue(symbol)
	base := time.Date(day.Year(), day.Month(), day.Day(), hour, 0, 0, 0, time.UTC)

	out := make([]byte, 0, len(ticks)*TickRecordSize)
	var rec [TickRecordSize]byte
	for _, t := range ticks {
		ms := uint32(t.TS.Sub(base) / time.Millisecond)
		binary.BigEndian.PutUint32(rec[0:4], ms)
		binary.BigEndian.PutUint32(rec[4:8], uint32(math.Round(t.Ask*point)))
		binary.BigEndian.PutUint32(rec[8:12], uint32(math.Round(t.Bid*point)))
		binary.BigEndian.PutUint32(rec[12:16], math.Float32bits(float32(t.AskVol)/model.VolumeMultiplier))
		binary.BigEndian.PutUint32(rec[16:20], math.Float32bits(float32(t.BidVol)/model.VolumeMultiplier))
		out = append(out, rec[:]...)
	}
	return out
}
