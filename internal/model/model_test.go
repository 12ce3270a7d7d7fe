package model

import (
	"testing"
	"time"
)

func TestResolveTimeframe(t *testing.T) {
	cases := []struct {
		name string
		want int64
	}{
		{"TICK", 0}, {"S1", 1}, {"S30", 30},
		{"M1", 60}, {"M5", 300}, {"m15", 900},
		{"H1", 3600}, {"H4", 14400}, {"D1", 86400},
	}
	for _, c := range cases {
		got, err := ResolveTimeframe(c.name, "")
		if err != nil || got != c.want {
			t.Errorf("ResolveTimeframe(%q) = %d, %v; want %d", c.name, got, err, c.want)
		}
	}

	if _, err := ResolveTimeframe("M7", ""); err == nil {
		t.Error("expected error for unknown timeframe")
	}
	if _, err := ResolveTimeframe("CUSTOM", ""); err == nil {
		t.Error("CUSTOM without a value must fail")
	}
	if got, err := ResolveTimeframe("CUSTOM", "90"); err != nil || got != 90 {
		t.Errorf("CUSTOM 90 = %d, %v", got, err)
	}
}

func TestParseCustomTimeframe(t *testing.T) {
	cases := []struct {
		in   string
		want int64
	}{
		{"120", 120},
		{"30s", 30},
		{"5m", 300},
		{"2h", 7200},
		{"1d", 86400},
		{" 10M ", 600},
	}
	for _, c := range cases {
		got, err := ParseCustomTimeframe(c.in)
		if err != nil || got != c.want {
			t.Errorf("ParseCustomTimeframe(%q) = %d, %v; want %d", c.in, got, err, c.want)
		}
	}

	for _, bad := range []string{"", "0", "-5m", "5x", "m", "1.5h"} {
		if _, err := ParseCustomTimeframe(bad); err == nil {
			t.Errorf("ParseCustomTimeframe(%q) should fail", bad)
		}
	}
}

func TestPointValue(t *testing.T) {
	if got := PointValue("EURUSD"); got != 100000 {
		t.Errorf("EURUSD point=%v, want 100000", got)
	}
	for _, s := range []string{"XAUUSD", "xauusd", "USDRUB", "XAGGBP"} {
		if got := PointValue(s); got != 1000 {
			t.Errorf("%s point=%v, want 1000", s, got)
		}
	}
}

func TestValidSymbol(t *testing.T) {
	for _, ok := range []string{"EURUSD", "XAUUSD", "USA500IDXUSD"} {
		if !ValidSymbol(ok) {
			t.Errorf("%s should be valid", ok)
		}
	}
	for _, bad := range []string{"", "eurusd", "EUR/USD", "EUR USD"} {
		if ValidSymbol(bad) {
			t.Errorf("%q should be invalid", bad)
		}
	}
}

func TestTickPriceAndVolume(t *testing.T) {
	tk := Tick{
		TS:     time.Date(2024, 1, 15, 12, 0, 0, 0, time.UTC),
		Ask:    1.5,
		Bid:    1.0,
		AskVol: 3,
		BidVol: 5,
	}

	if got := tk.Price(SideBid); got != 1.0 {
		t.Errorf("bid=%v", got)
	}
	if got := tk.Price(SideAsk); got != 1.5 {
		t.Errorf("ask=%v", got)
	}
	if got := tk.Price(SideMid); got != 1.25 {
		t.Errorf("mid=%v", got)
	}

	if got := tk.SelectedVolume(VolTotal); got != 8 {
		t.Errorf("total=%v", got)
	}
	if got := tk.SelectedVolume(VolBid); got != 5 {
		t.Errorf("bid vol=%v", got)
	}
	if got := tk.SelectedVolume(VolAsk); got != 3 {
		t.Errorf("ask vol=%v", got)
	}
	if got := tk.SelectedVolume(VolTicks); got != 1 {
		t.Errorf("ticks vol=%v", got)
	}
}

func TestParseEnums(t *testing.T) {
	if side, err := ParsePriceSide("mid"); err != nil || side != SideMid {
		t.Errorf("ParsePriceSide(mid) = %v, %v", side, err)
	}
	if _, err := ParsePriceSide("middle"); err == nil {
		t.Error("expected error for bad side")
	}
	if kind, err := ParseVolumeKind("ticks"); err != nil || kind != VolTicks {
		t.Errorf("ParseVolumeKind(ticks) = %v, %v", kind, err)
	}
	if _, err := ParseVolumeKind("net"); err == nil {
		t.Error("expected error for bad volume kind")
	}

	if SideMid.String() != "MID" || VolTicks.String() != "TICKS" {
		t.Error("String() round trip broken")
	}
}
