package dump

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"dukadump/internal/model"
)

// Output time layout, always UTC. Tick rows append a .mmm fraction when the
// instant carries sub-second precision.
const timeLayout = "02.01.2006 15:04:05"

// TickHeader and CandleHeader are the optional CSV header rows.
const (
	TickHeader   = "time,ask,bid,ask_volume,bid_volume"
	CandleHeader = "time,open,high,low,close,volume"
)

func formatTime(ts time.Time, withMillis bool) string {
	s := ts.UTC().Format(timeLayout)
	if withMillis {
		if ms := ts.Nanosecond() / int(time.Millisecond); ms > 0 {
			s += fmt.Sprintf(".%03d", ms)
		}
	}
	return s
}

func formatTickRow(t model.Tick) string {
	return fmt.Sprintf("%s,%.5f,%.5f,%d,%d",
		formatTime(t.TS, true), t.Ask, t.Bid, t.AskVol, t.BidVol)
}

func formatCandleRow(c model.Candle, kind model.VolumeKind) string {
	var vol string
	if kind == model.VolTicks {
		vol = strconv.FormatInt(int64(math.Round(c.Volume)), 10)
	} else {
		vol = strconv.FormatFloat(c.Volume, 'f', 2, 64)
	}
	return fmt.Sprintf("%s,%.5f,%.5f,%.5f,%.5f,%s",
		formatTime(c.TS, false), c.Open, c.High, c.Low, c.Close, vol)
}

func parseTime(s string) (time.Time, error) {
	if len(s) > len(timeLayout) {
		return time.ParseInLocation(timeLayout+".000", s, time.UTC)
	}
	return time.ParseInLocation(timeLayout, s, time.UTC)
}

func parseCandleRow(line string) (model.Candle, error) {
	parts := strings.Split(line, ",")
	if len(parts) != 6 {
		return model.Candle{}, fmt.Errorf("candle row has %d fields", len(parts))
	}
	ts, err := parseTime(parts[0])
	if err != nil {
		return model.Candle{}, err
	}
	var vals [5]float64
	for i, p := range parts[1:] {
		v, err := strconv.ParseFloat(p, 64)
		if err != nil {
			return model.Candle{}, fmt.Errorf("field %d: %w", i+1, err)
		}
		vals[i] = v
	}
	return model.Candle{
		TS: ts, Open: vals[0], High: vals[1], Low: vals[2], Close: vals[3], Volume: vals[4],
	}, nil
}

func parseTickRow(line string) (model.Tick, error) {
	parts := strings.Split(line, ",")
	if len(parts) != 5 {
		return model.Tick{}, fmt.Errorf("tick row has %d fields", len(parts))
	}
	ts, err := parseTime(parts[0])
	if err != nil {
		return model.Tick{}, err
	}
	ask, err := strconv.ParseFloat(parts[1], 64)
	if err != nil {
		return model.Tick{}, err
	}
	bid, err := strconv.ParseFloat(parts[2], 64)
	if err != nil {
		return model.Tick{}, err
	}
	askVol, err := strconv.ParseInt(parts[3], 10, 64)
	if err != nil {
		return model.Tick{}, err
	}
	bidVol, err := strconv.ParseInt(parts[4], 10, 64)
	if err != nil {
		return model.Tick{}, err
	}
	return model.Tick{TS: ts, Ask: ask, Bid: bid, AskVol: askVol, BidVol: bidVol}, nil
}
