package model

import (
	"fmt"
	"strings"
	"time"
)

// Candle is one OHLCV bar. TS is the bucket start, aligned to the
// timeframe boundary in UTC.
type Candle struct {
	TS     time.Time
	Open   float64
	High   float64
	Low    float64
	Close  float64
	Volume float64
}

// PriceSide selects which quoted price feeds candle OHLC.
type PriceSide int

const (
	SideBid PriceSide = iota
	SideAsk
	SideMid
)

func (s PriceSide) String() string {
	switch s {
	case SideAsk:
		return "ASK"
	case SideMid:
		return "MID"
	default:
		return "BID"
	}
}

// ParsePriceSide parses BID, ASK or MID (case-insensitive).
func ParsePriceSide(s string) (PriceSide, error) {
	switch strings.ToUpper(s) {
	case "BID":
		return SideBid, nil
	case "ASK":
		return SideAsk, nil
	case "MID":
		return SideMid, nil
	}
	return SideBid, fmt.Errorf("unknown price side %q (want BID, ASK or MID)", s)
}

// VolumeKind selects how a tick contributes volume to its bucket.
type VolumeKind int

const (
	VolTotal VolumeKind = iota // ask volume + bid volume
	VolBid
	VolAsk
	VolTicks // 1 per tick
)

func (v VolumeKind) String() string {
	switch v {
	case VolBid:
		return "BID"
	case VolAsk:
		return "ASK"
	case VolTicks:
		return "TICKS"
	default:
		return "TOTAL"
	}
}

// ParseVolumeKind parses TOTAL, BID, ASK or TICKS (case-insensitive).
func ParseVolumeKind(s string) (VolumeKind, error) {
	switch strings.ToUpper(s) {
	case "TOTAL":
		return VolTotal, nil
	case "BID":
		return VolBid, nil
	case "ASK":
		return VolAsk, nil
	case "TICKS":
		return VolTicks, nil
	}
	return VolTotal, fmt.Errorf("unknown volume kind %q (want TOTAL, BID, ASK or TICKS)", s)
}
