// Package service runs download jobs: it turns a Request into one CSV per
// symbol, spreading (symbol, day) work items over a bounded pool while a
// shared circuit breaker and cancellation flag keep the whole job polite.
package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"dukadump/config"
	"dukadump/internal/codec"
	"dukadump/internal/dump"
	"dukadump/internal/fetch"
	"dukadump/internal/markethours"
	"dukadump/internal/model"
	"dukadump/internal/validate"
)

// ErrCancelled is returned by Run after a cooperative cancellation. Output
// files for already-merged symbols are still on disk.
var ErrCancelled = errors.New("download cancelled")

// Fetch is the slice of the download layer the orchestrator consumes.
// *fetch.DayDriver satisfies it.
type Fetch interface {
	FetchDay(ctx context.Context, symbol string, day time.Time) ([]fetch.HourBlob, error)
	FetchNativeCandles(ctx context.Context, symbol string, start, end time.Time, tfName string, side model.PriceSide) ([]model.Candle, error)
}

// Orchestrator coordinates one job at a time. Symbols run sequentially;
// days within a symbol run on Threads workers.
type Orchestrator struct {
	cfg   *config.Tunables
	fetch Fetch
	obs   Observer

	brk       breaker
	cancelled atomic.Bool
	stagger   time.Duration

	// Row hooks, forwarded to every symbol's writer. Useful for metrics
	// and secondary sinks.
	OnCandle func(symbol string, c model.Candle)
	OnTick   func(symbol string, t model.Tick)
}

// New builds an orchestrator. A nil observer is replaced with NopObserver.
func New(cfg *config.Tunables, f Fetch, obs Observer) *Orchestrator {
	if obs == nil {
		obs = NopObserver{}
	}
	return &Orchestrator{
		cfg:     cfg,
		fetch:   f,
		obs:     obs,
		stagger: 500 * time.Millisecond,
	}
}

// Cancel flips the shared cancellation flag. In-flight work items finish;
// each symbol's partials are still merged into an output file.
func (o *Orchestrator) Cancel() { o.cancelled.Store(true) }

// Cancelled reports whether Cancel has been called.
func (o *Orchestrator) Cancelled() bool { return o.cancelled.Load() }

// Run executes the request and returns the output path per symbol. A symbol
// that fails is reported through the observer and skipped; Run only errors
// on an invalid request or cancellation.
func (o *Orchestrator) Run(ctx context.Context, req *Request) (map[string]string, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	var state *JobState
	if req.Resume {
		var err error
		if state, err = LoadJobState(req.OutDir); err != nil {
			return nil, err
		}
	}

	out := make(map[string]string)
	for _, symbol := range req.Symbols {
		if o.cancelled.Load() || ctx.Err() != nil {
			break
		}
		path, err := o.runSymbol(ctx, req, state, symbol)
		if err != nil {
			log.Printf("[service] %s: %v", symbol, err)
			o.obs.OnError(symbol, err)
			continue
		}
		out[symbol] = path
	}

	if o.cancelled.Load() || ctx.Err() != nil {
		return out, ErrCancelled
	}
	return out, nil
}

func (o *Orchestrator) runSymbol(ctx context.Context, req *Request, state *JobState, symbol string) (string, error) {
	useNative := req.Source == SourceNative
	if req.Source == SourceAuto {
		useNative = model.NativeTimeframes[req.Timeframe] && req.Side != model.SideMid
	}

	d, err := dump.New(symbol, req.Period, req.Side, req.VolKind, req.Start, req.End, req.OutDir, req.Header)
	if err != nil {
		return "", err
	}
	if o.OnCandle != nil {
		d.OnCandle = func(c model.Candle) { o.OnCandle(symbol, c) }
	}
	if o.OnTick != nil {
		d.OnTick = func(t model.Tick) { o.OnTick(symbol, t) }
	}

	if useNative {
		return o.runNative(ctx, req, symbol, d)
	}
	return o.runTicks(ctx, req, state, symbol, d)
}

// runNative pulls the pre-computed candle blobs in one shot; there is no
// per-day bookkeeping because a whole month or year arrives per blob.
func (o *Orchestrator) runNative(ctx context.Context, req *Request, symbol string, d *dump.Dumper) (string, error) {
	o.obs.OnStart(symbol, 1)
	candles, err := o.fetch.FetchNativeCandles(ctx, symbol, req.Start, req.End, req.Timeframe, req.Side)
	if err != nil {
		if errors.Is(err, fetch.ErrThrottled) {
			o.brk.Trip(o.cfg.BreakerResetDelay)
		}
		d.Abandon()
		o.obs.OnUpdate(symbol, 0, 1, false)
		return "", err
	}
	if err := d.AppendCandles(req.Start, candles); err != nil {
		return "", err
	}
	o.obs.OnUpdate(symbol, 1, 1, true)
	return o.finishSymbol(req, nil, symbol, d)
}

func (o *Orchestrator) runTicks(ctx context.Context, req *Request, state *JobState, symbol string, d *dump.Dumper) (string, error) {
	now := time.Now()
	var want []time.Time
	for _, day := range markethours.Days(req.Start, req.End) {
		if reason := markethours.SkipReason(day, now); reason != "" {
			log.Printf("[service] %s: skipping %s (%s)", symbol, day.Format(dayKey), reason)
			continue
		}
		want = append(want, day)
	}

	done := 0
	pending := want
	if state != nil {
		completed := state.Completed(symbol)
		pending = nil
		for _, day := range want {
			if completed[day.Format(dayKey)] {
				done++
			} else {
				pending = append(pending, day)
			}
		}
		state.Begin(symbol, want)
	}

	total := len(want)
	o.obs.OnStart(symbol, total)

	if len(pending) == 0 {
		return o.finishSymbol(req, state, symbol, d)
	}

	symCtx, symCancel := context.WithCancel(ctx)
	defer symCancel()

	work := make(chan time.Time)
	go func() {
		defer close(work)
		for i, day := range pending {
			if o.cancelled.Load() {
				return
			}
			// Stagger bursts: pause after every full batch of submissions.
			if i > 0 && i%req.Threads == 0 {
				if !sleepCtx(symCtx, o.stagger) {
					return
				}
			}
			select {
			case work <- day:
			case <-symCtx.Done():
				return
			}
		}
	}()

	workers := req.Threads
	if workers > len(pending) {
		workers = len(pending)
	}

	var (
		wg    sync.WaitGroup
		mu    sync.Mutex
		count = done
		fatal error
	)
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for day := range work {
				ok, ferr := o.processDay(symCtx, symbol, day, d)
				mu.Lock()
				if ferr != nil && fatal == nil {
					fatal = ferr
					symCancel()
				}
				if ok {
					count++
					if state != nil {
						state.MarkCompleted(symbol, day)
					}
				}
				n := count
				mu.Unlock()
				o.obs.OnUpdate(symbol, n, total, ok)
			}
		}()
	}
	wg.Wait()

	if state != nil {
		state.Save()
	}
	if fatal != nil {
		// Leave the partials on disk: the next resume picks them up.
		return "", fatal
	}
	return o.finishSymbol(req, state, symbol, d)
}

// processDay handles one work item. ok means the day completed and may be
// marked in the resume state; a non-nil error is fatal for the symbol.
func (o *Orchestrator) processDay(ctx context.Context, symbol string, day time.Time, d *dump.Dumper) (bool, error) {
	if o.cancelled.Load() || ctx.Err() != nil {
		return false, nil
	}
	if o.brk.Open() {
		return false, nil
	}

	blobs, err := o.fetch.FetchDay(ctx, symbol, day)
	if err != nil {
		if errors.Is(err, fetch.ErrThrottled) {
			log.Printf("[service] %s: throttled, backing off %s", symbol, o.cfg.BreakerResetDelay)
			o.brk.Trip(o.cfg.BreakerResetDelay)
		}
		return false, nil
	}

	ticks, err := decodeDay(symbol, day, blobs)
	if err != nil {
		log.Printf("[service] %s %s: %v", symbol, day.Format(dayKey), err)
		return false, nil
	}

	if err := d.AppendDay(day, ticks); err != nil {
		return false, fmt.Errorf("spill %s: %w", day.Format(dayKey), err)
	}
	return true, nil
}

func (o *Orchestrator) finishSymbol(req *Request, state *JobState, symbol string, d *dump.Dumper) (string, error) {
	path, err := d.Dump()
	if err != nil {
		return "", err
	}
	if state != nil && !o.cancelled.Load() {
		state.Clear(symbol)
	}

	if rep, err := validate.Scan(path, req.Period == model.TFTick, req.Header); err != nil {
		log.Printf("[service] %s: validation scan failed: %v", symbol, err)
	} else {
		log.Printf("[service] %s", rep.Summary())
	}

	o.obs.OnFinish(symbol, path)
	return path, nil
}

// decodeDay decompresses and decodes the hourly blobs into one sorted tick
// slice. Any decode failure fails the whole day so a resume refetches it.
func decodeDay(symbol string, day time.Time, blobs []fetch.HourBlob) ([]model.Tick, error) {
	var ticks []model.Tick
	for _, b := range blobs {
		if len(b.Data) == 0 {
			continue
		}
		raw, err := codec.Decompress(b.Data)
		if err != nil {
			return nil, fmt.Errorf("hour %02d: %w", b.Hour, err)
		}
		ticks = append(ticks, codec.DecodeTicks(symbol, day, b.Hour, raw)...)
	}
	sort.SliceStable(ticks, func(i, j int) bool { return ticks[i].TS.Before(ticks[j].TS) })
	return ticks, nil
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}
