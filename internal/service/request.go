package service

import (
	"fmt"
	"strings"
	"time"

	"dukadump/config"
	"dukadump/internal/model"
)

// DataSource selects where candle data comes from.
type DataSource int

const (
	// SourceAuto fetches pre-computed candles when the timeframe has them
	// and the price side is not MID, ticks otherwise.
	SourceAuto DataSource = iota
	// SourceTick always fetches ticks and aggregates locally.
	SourceTick
	// SourceNative requires a timeframe Dukascopy serves natively.
	SourceNative
)

// ParseDataSource parses auto|tick|native.
func ParseDataSource(s string) (DataSource, error) {
	switch strings.ToLower(s) {
	case "auto":
		return SourceAuto, nil
	case "tick":
		return SourceTick, nil
	case "native":
		return SourceNative, nil
	}
	return 0, fmt.Errorf("unknown data source %q (want auto, tick or native)", s)
}

// Request describes one download job. Build it once up front; the
// orchestrator never mutates it.
type Request struct {
	Symbols   []string
	Start     time.Time
	End       time.Time
	Timeframe string // resolved name: "TICK", "M5", "CUSTOM", ...
	Period    int64  // seconds, 0 = tick output
	Source    DataSource
	Side      model.PriceSide
	VolKind   model.VolumeKind
	Header    bool
	Resume    bool
	Threads   int
	OutDir    string
}

// Validate checks the request before any work starts.
func (r *Request) Validate() error {
	if len(r.Symbols) == 0 {
		return fmt.Errorf("no symbols given")
	}
	for _, s := range r.Symbols {
		if !model.ValidSymbol(s) {
			return fmt.Errorf("invalid symbol %q", s)
		}
	}
	if r.Start.IsZero() || r.End.IsZero() {
		return fmt.Errorf("start and end dates are required")
	}
	if r.End.Before(r.Start) {
		return fmt.Errorf("end date %s precedes start date %s",
			r.End.Format(dayKey), r.Start.Format(dayKey))
	}
	if r.Threads < 1 || r.Threads > config.MaxThreads {
		return fmt.Errorf("thread count %d out of range 1..%d", r.Threads, config.MaxThreads)
	}
	if r.Period < 0 {
		return fmt.Errorf("negative period")
	}
	if r.Source == SourceNative {
		if !model.NativeTimeframes[r.Timeframe] {
			return fmt.Errorf("native data source supports M1, H1 and D1 only, got %s", r.Timeframe)
		}
		if r.Side == model.SideMid {
			return fmt.Errorf("native candles are published per side, MID is not available")
		}
	}
	if r.OutDir == "" {
		return fmt.Errorf("output directory is required")
	}
	return nil
}
