package model

import (
	"fmt"
	"strconv"
	"strings"
)

// Timeframe durations in seconds. TICK (0) means no aggregation.
const (
	TFTick int64 = 0
	TFS1   int64 = 1
	TFS10  int64 = 10
	TFS30  int64 = 30
	TFM1   int64 = 60
	TFM2   int64 = 120
	TFM3   int64 = 180
	TFM4   int64 = 240
	TFM5   int64 = 300
	TFM10  int64 = 600
	TFM15  int64 = 900
	TFM30  int64 = 1800
	TFH1   int64 = 3600
	TFH4   int64 = 14400
	TFD1   int64 = 86400
)

var timeframes = map[string]int64{
	"TICK": TFTick,
	"S1":   TFS1,
	"S10":  TFS10,
	"S30":  TFS30,
	"M1":   TFM1,
	"M2":   TFM2,
	"M3":   TFM3,
	"M4":   TFM4,
	"M5":   TFM5,
	"M10":  TFM10,
	"M15":  TFM15,
	"M30":  TFM30,
	"H1":   TFH1,
	"H4":   TFH4,
	"D1":   TFD1,
}

// TimeframeChoices lists the recognized timeframe names for help output.
var TimeframeChoices = []string{
	"TICK", "S1", "S10", "S30",
	"M1", "M2", "M3", "M4", "M5", "M10", "M15", "M30",
	"H1", "H4", "D1", "CUSTOM",
}

// NativeTimeframes are the periods Dukascopy serves as pre-computed candles.
var NativeTimeframes = map[string]bool{"M1": true, "H1": true, "D1": true}

// ResolveTimeframe maps a timeframe name to its duration in seconds.
// For CUSTOM the custom string is parsed via ParseCustomTimeframe.
func ResolveTimeframe(name, custom string) (int64, error) {
	u := strings.ToUpper(name)
	if u == "CUSTOM" {
		if custom == "" {
			return 0, fmt.Errorf("timeframe CUSTOM requires a custom value")
		}
		return ParseCustomTimeframe(custom)
	}
	tf, ok := timeframes[u]
	if !ok {
		return 0, fmt.Errorf("unknown timeframe %q", name)
	}
	return tf, nil
}

// ParseCustomTimeframe parses a custom timeframe: a plain number of seconds
// ("120") or a suffixed value ("30s", "5m", "2h", "1d").
func ParseCustomTimeframe(s string) (int64, error) {
	s = strings.TrimSpace(strings.ToLower(s))
	if s == "" {
		return 0, fmt.Errorf("empty custom timeframe")
	}

	mult := int64(1)
	switch s[len(s)-1] {
	case 's':
		s = s[:len(s)-1]
	case 'm':
		mult = 60
		s = s[:len(s)-1]
	case 'h':
		mult = 3600
		s = s[:len(s)-1]
	case 'd':
		mult = 86400
		s = s[:len(s)-1]
	}

	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("invalid custom timeframe %q", s)
	}
	return n * mult, nil
}
