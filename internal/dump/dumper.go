// Package dump spills per-day partial files and merges them into the final
// CSV, keeping memory constant regardless of the requested range.
package dump

import (
	"bufio"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"time"

	"dukadump/internal/agg"
	"dukadump/internal/model"
)

// Dumper writes one output file for one symbol. Phase A spills a sorted,
// header-less partial per completed day (safe to call concurrently across
// days: each day owns a distinct file). Phase B concatenates the partials in
// date order, merging midnight-spanning candle fragments on the way.
type Dumper struct {
	symbol  string
	period  int64 // 0 = tick pass-through
	side    model.PriceSide
	volKind model.VolumeKind
	start   time.Time
	end     time.Time
	dir     string
	header  bool
	partDir string

	// Row hooks (optional, set externally): invoked for every row emitted
	// into the final file during the merge phase.
	OnCandle func(model.Candle)
	OnTick   func(model.Tick)
}

// New creates a Dumper and its partial-spill directory.
func New(symbol string, period int64, side model.PriceSide, kind model.VolumeKind, start, end time.Time, dir string, header bool) (*Dumper, error) {
	partDir := filepath.Join(dir, fmt.Sprintf(".parts-%s", symbol))
	if err := os.MkdirAll(partDir, 0o755); err != nil {
		return nil, fmt.Errorf("spill dir: %w", err)
	}
	return &Dumper{
		symbol:  symbol,
		period:  period,
		side:    side,
		volKind: kind,
		start:   start,
		end:     end,
		dir:     dir,
		header:  header,
		partDir: partDir,
	}, nil
}

// AppendDay spills one day's ticks: pass-through rows in tick mode,
// aggregated candles otherwise. An empty day still produces a (zero-byte)
// partial so the merge knows the day completed.
func (d *Dumper) AppendDay(day time.Time, ticks []model.Tick) error {
	var lines []string
	if d.period == model.TFTick {
		lines = make([]string, 0, len(ticks))
		for _, t := range ticks {
			lines = append(lines, formatTickRow(t))
		}
	} else if len(ticks) > 0 {
		candles := agg.New(d.period, d.side, d.volKind).Aggregate(ticks)
		lines = make([]string, 0, len(candles))
		for _, c := range candles {
			lines = append(lines, formatCandleRow(c, d.volKind))
		}
	}
	return d.writePart(day, lines)
}

// AppendCandles spills pre-decoded native candles under the given part key.
func (d *Dumper) AppendCandles(key time.Time, candles []model.Candle) error {
	lines := make([]string, 0, len(candles))
	for _, c := range candles {
		lines = append(lines, formatCandleRow(c, d.volKind))
	}
	return d.writePart(key, lines)
}

func (d *Dumper) writePart(key time.Time, lines []string) error {
	path := filepath.Join(d.partDir, key.UTC().Format("20060102")+".part")
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("spill %s: %w", path, err)
	}
	w := bufio.NewWriter(f)
	for _, line := range lines {
		if _, err := w.WriteString(line + "\n"); err != nil {
			f.Close()
			return fmt.Errorf("spill %s: %w", path, err)
		}
	}
	if err := w.Flush(); err != nil {
		f.Close()
		return fmt.Errorf("spill %s: %w", path, err)
	}
	return f.Close()
}

// OutputPath returns the final file path:
// SYMBOL-YYYY_MM_DD-YYYY_MM_DD.csv under the output directory.
func (d *Dumper) OutputPath() string {
	name := fmt.Sprintf("%s-%04d_%02d_%02d-%04d_%02d_%02d.csv",
		d.symbol,
		d.start.Year(), int(d.start.Month()), d.start.Day(),
		d.end.Year(), int(d.end.Month()), d.end.Day())
	return filepath.Join(d.dir, name)
}

// Dump performs the phase-B merge over whatever partials exist and removes
// them on success. Partials are already internally sorted and days are
// disjoint, so ticks concatenate directly; candles run through the
// one-row-lookahead merger to join fragments that share a bucket timestamp.
func (d *Dumper) Dump() (string, error) {
	parts, err := d.partFiles()
	if err != nil {
		return "", err
	}

	outPath := d.OutputPath()
	out, err := os.Create(outPath)
	if err != nil {
		return "", fmt.Errorf("output %s: %w", outPath, err)
	}
	w := bufio.NewWriter(out)

	if d.header {
		h := CandleHeader
		if d.period == model.TFTick {
			h = TickHeader
		}
		if _, err := w.WriteString(h + "\n"); err != nil {
			out.Close()
			return "", err
		}
	}

	if d.period == model.TFTick {
		err = d.mergeTicks(w, parts)
	} else {
		err = d.mergeCandles(w, parts)
	}
	if err != nil {
		out.Close()
		return "", err
	}

	if err := w.Flush(); err != nil {
		out.Close()
		return "", err
	}
	if err := out.Close(); err != nil {
		return "", err
	}

	if err := os.RemoveAll(d.partDir); err != nil {
		log.Printf("[dump] %s: could not remove spill dir: %v", d.symbol, err)
	}
	return outPath, nil
}

// Abandon drops the spill directory without merging.
func (d *Dumper) Abandon() {
	os.RemoveAll(d.partDir)
}

func (d *Dumper) partFiles() ([]string, error) {
	entries, err := os.ReadDir(d.partDir)
	if err != nil {
		return nil, fmt.Errorf("spill dir: %w", err)
	}
	var parts []string
	for _, e := range entries {
		if !e.IsDir() && filepath.Ext(e.Name()) == ".part" {
			parts = append(parts, filepath.Join(d.partDir, e.Name()))
		}
	}
	sort.Strings(parts) // names are YYYYMMDD, lexicographic = chronological
	return parts, nil
}

func (d *Dumper) mergeTicks(w *bufio.Writer, parts []string) error {
	for _, p := range parts {
		if err := d.scanPart(p, func(line string) error {
			if d.OnTick != nil {
				if t, err := parseTickRow(line); err == nil {
					d.OnTick(t)
				}
			}
			_, err := w.WriteString(line + "\n")
			return err
		}); err != nil {
			return err
		}
	}
	return nil
}

func (d *Dumper) mergeCandles(w *bufio.Writer, parts []string) error {
	var m agg.Merger

	emit := func(c model.Candle) error {
		if d.OnCandle != nil {
			d.OnCandle(c)
		}
		_, err := w.WriteString(formatCandleRow(c, d.volKind) + "\n")
		return err
	}

	for _, p := range parts {
		if err := d.scanPart(p, func(line string) error {
			c, err := parseCandleRow(line)
			if err != nil {
				return fmt.Errorf("%s: %w", p, err)
			}
			if done, ok := m.Feed(c); ok {
				return emit(done)
			}
			return nil
		}); err != nil {
			return err
		}
	}

	if done, ok := m.Flush(); ok {
		return emit(done)
	}
	return nil
}

func (d *Dumper) scanPart(path string, fn func(line string) error) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("partial %s: %w", path, err)
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 64*1024), 1024*1024)
	for sc.Scan() {
		if len(sc.Bytes()) == 0 {
			continue
		}
		if err := fn(sc.Text()); err != nil {
			return err
		}
	}
	return sc.Err()
}
