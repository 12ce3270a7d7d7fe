package model

import "time"

// Tick represents a single quote update from the Dukascopy archive.
// Ask/Bid are decimal prices (raw integer / point value); volumes are
// already normalized to integer units (raw float * 1e6, rounded).
type Tick struct {
	TS     time.Time // UTC, millisecond resolution
	Ask    float64
	Bid    float64
	AskVol int64
	BidVol int64
}

// Price returns the tick price for the given side.
func (t Tick) Price(side PriceSide) float64 {
	switch side {
	case SideAsk:
		return t.Ask
	case SideMid:
		return (t.Ask + t.Bid) / 2
	default:
		return t.Bid
	}
}

// SelectedVolume returns the tick's volume contribution for the given kind.
func (t Tick) SelectedVolume(kind VolumeKind) float64 {
	switch kind {
	case VolBid:
		return float64(t.BidVol)
	case VolAsk:
		return float64(t.AskVol)
	case VolTicks:
		return 1
	default:
		return float64(t.AskVol + t.BidVol)
	}
}
