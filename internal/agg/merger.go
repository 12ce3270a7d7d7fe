package agg

import "dukadump/internal/model"

// Merger folds a chronologically sorted candle stream, merging consecutive
// candles that share a timestamp. Aggregation runs per day, so a period that
// spans midnight yields two fragments with the same bucket key on adjacent
// days; this one-row lookahead buffer joins them during the final merge.
type Merger struct {
	last    *model.Candle
	started bool
}

// Feed accepts the next candle. It returns a completed candle once the
// stream moves past its timestamp, or ok=false while one is still pending.
func (m *Merger) Feed(c model.Candle) (model.Candle, bool) {
	if !m.started {
		m.last = &c
		m.started = true
		return model.Candle{}, false
	}

	if c.TS.Equal(m.last.TS) {
		// Fragment of the same candle: open stays, close advances.
		if c.High > m.last.High {
			m.last.High = c.High
		}
		if c.Low < m.last.Low {
			m.last.Low = c.Low
		}
		m.last.Close = c.Close
		m.last.Volume += c.Volume
		return model.Candle{}, false
	}

	done := *m.last
	m.last = &c
	return done, true
}

// Flush returns the buffered candle, if any.
func (m *Merger) Flush() (model.Candle, bool) {
	if !m.started || m.last == nil {
		return model.Candle{}, false
	}
	done := *m.last
	m.last = nil
	return done, true
}
