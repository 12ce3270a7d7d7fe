package model

import "regexp"

// DefaultPointValue divides the archive's packed integer prices for most
// symbols. Precious metals and the rouble use a coarser point.
const DefaultPointValue = 100000

// VolumeMultiplier scales the archive's float tick volumes to integer units.
const VolumeMultiplier = 1_000_000

var specialPoints = map[string]int64{
	"usdrub": 1000,
	"xagusd": 1000,
	"xauusd": 1000,
	"xaugbp": 1000,
	"xaueur": 1000,
	"xageur": 1000,
	"xaggbp": 1000,
}

// PointValue returns the per-symbol price divisor.
func PointValue(symbol string) float64 {
	if p, ok := specialPoints[lower(symbol)]; ok {
		return float64(p)
	}
	return DefaultPointValue
}

// KnownSymbols lists commonly requested instruments for help output.
// The archive serves many more; any uppercase alphanumeric name is accepted.
var KnownSymbols = []string{
	"EURUSD", "GBPUSD", "USDJPY", "USDCHF",
	"AUDUSD", "USDCAD", "NZDUSD",
	"EURGBP", "EURJPY", "GBPJPY", "EURAUD",
	"EURCAD", "EURCHF", "GBPCHF", "GBPAUD",
	"AUDCAD", "AUDCHF", "AUDJPY", "AUDNZD",
	"CADJPY", "CADCHF", "CHFJPY", "NZDJPY",
	"NZDCAD", "NZDCHF", "GBPCAD", "GBPNZD",
	"XAUUSD", "XAGUSD",
	"USDRUB",
}

var symbolRe = regexp.MustCompile(`^[A-Z0-9]+$`)

// ValidSymbol reports whether s is a well-formed symbol name.
func ValidSymbol(s string) bool {
	return symbolRe.MatchString(s)
}

func lower(s string) string {
	b := []byte(s)
	for i, c := range b {
		if c >= 'A' && c <= 'Z' {
			b[i] = c - 'A' + 'a'
		}
	}
	return string(b)
}
