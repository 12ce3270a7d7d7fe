// Package validate runs a streamed integrity scan over a finished output
// file. The scan is advisory: it reports anomalies but never fails the job.
package validate

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

const timeLayout = "02.01.2006 15:04:05"

// Report summarizes one scanned file.
type Report struct {
	Path string
	Rows int64

	FirstTS time.Time
	LastTS  time.Time

	MinPrice float64
	MaxPrice float64

	OutOfOrder  int64 // timestamp earlier than the previous row
	Duplicates  int64 // timestamp equal to the previous row
	InvalidOHLC int64 // high < max(open,close) or low > min(open,close)
	NonPositive int64 // any price field <= 0
	Malformed   int64 // rows that did not parse
}

// Clean reports whether the scan found no anomalies.
func (r *Report) Clean() bool {
	return r.OutOfOrder == 0 && r.Duplicates == 0 && r.InvalidOHLC == 0 &&
		r.NonPositive == 0 && r.Malformed == 0
}

// Summary renders a one-line report for the log.
func (r *Report) Summary() string {
	if r.Rows == 0 {
		return fmt.Sprintf("%s: 0 rows", r.Path)
	}
	s := fmt.Sprintf("%s: %d rows, %s .. %s, price %.5f .. %.5f",
		r.Path, r.Rows,
		r.FirstTS.Format(timeLayout), r.LastTS.Format(timeLayout),
		r.MinPrice, r.MaxPrice)
	if !r.Clean() {
		s += fmt.Sprintf(" [anomalies: %d out-of-order, %d duplicate, %d bad-ohlc, %d non-positive, %d malformed]",
			r.OutOfOrder, r.Duplicates, r.InvalidOHLC, r.NonPositive, r.Malformed)
	}
	return s
}

// Scan reads the file once, row by row. tickMode selects the 5-field tick
// layout over the 6-field candle layout; header skips the first line.
func Scan(path string, tickMode, header bool) (*Report, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("validate %s: %w", path, err)
	}
	defer f.Close()

	r := &Report{Path: path}
	var prev time.Time

	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 64*1024), 1024*1024)
	first := true
	for sc.Scan() {
		line := sc.Text()
		if first && header {
			first = false
			continue
		}
		first = false
		if line == "" {
			continue
		}

		ts, prices, bad := parseRow(line, tickMode)
		if bad {
			r.Malformed++
			continue
		}

		r.Rows++
		if r.Rows == 1 {
			r.FirstTS = ts
			r.MinPrice, r.MaxPrice = prices[0], prices[0]
		} else {
			if ts.Before(prev) {
				r.OutOfOrder++
			} else if ts.Equal(prev) {
				r.Duplicates++
			}
		}
		r.LastTS = ts
		prev = ts

		for _, p := range prices {
			if p <= 0 {
				r.NonPositive++
				break
			}
		}
		for _, p := range prices {
			if p < r.MinPrice {
				r.MinPrice = p
			}
			if p > r.MaxPrice {
				r.MaxPrice = p
			}
		}

		if !tickMode {
			o, h, l, c := prices[0], prices[1], prices[2], prices[3]
			if h < o || h < c || l > o || l > c {
				r.InvalidOHLC++
			}
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("validate %s: %w", path, err)
	}
	return r, nil
}

// parseRow extracts the timestamp and price fields. For ticks prices are
// {ask, bid}; for candles {open, high, low, close}.
func parseRow(line string, tickMode bool) (time.Time, []float64, bool) {
	parts := strings.Split(line, ",")
	want, nPrices := 6, 4
	if tickMode {
		want, nPrices = 5, 2
	}
	if len(parts) != want {
		return time.Time{}, nil, true
	}

	layout := timeLayout
	if len(parts[0]) > len(timeLayout) {
		layout += ".000"
	}
	ts, err := time.ParseInLocation(layout, parts[0], time.UTC)
	if err != nil {
		return time.Time{}, nil, true
	}

	prices := make([]float64, nPrices)
	for i := 0; i < nPrices; i++ {
		v, err := strconv.ParseFloat(parts[i+1], 64)
		if err != nil {
			return time.Time{}, nil, true
		}
		prices[i] = v
	}
	return ts, prices, false
}
