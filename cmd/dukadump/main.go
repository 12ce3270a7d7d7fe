// cmd/dukadump downloads historical tick and candle data from the Dukascopy
// archive into CSV files.
//
// Usage:
//
//	go run ./cmd/dukadump -symbols EURUSD,GBPUSD -start 2024-01-02 -end 2024-01-31 -timeframe M5
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"dukadump/config"
	"dukadump/internal/fetch"
	"dukadump/internal/logger"
	"dukadump/internal/metrics"
	"dukadump/internal/model"
	"dukadump/internal/service"
	sqlitestore "dukadump/internal/store/sqlite"
)

func main() {
	os.Exit(run())
}

func run() int {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds)

	// Flags
	symbolsStr := flag.String("symbols", "", "Comma-separated symbols, e.g. EURUSD,GBPUSD")
	startStr := flag.String("start", "", "Start date, YYYY-MM-DD (inclusive)")
	endStr := flag.String("end", "", "End date, YYYY-MM-DD (inclusive)")
	tfName := flag.String("timeframe", "TICK", "Timeframe: "+strings.Join(model.TimeframeChoices, ", "))
	custom := flag.String("custom", "", "Custom timeframe when -timeframe CUSTOM: seconds or <n>{s|m|h|d}")
	sourceStr := flag.String("source", "auto", "Data source: auto, tick or native")
	sideStr := flag.String("side", "BID", "Price side: BID, ASK or MID")
	volumeStr := flag.String("volume", "TOTAL", "Candle volume: TOTAL, BID, ASK or TICKS")
	header := flag.Bool("header", true, "Write the CSV header row")
	resume := flag.Bool("resume", true, "Resume an interrupted download from the state file")
	threads := flag.Int("threads", config.DefaultThreads, fmt.Sprintf("Worker count (1..%d)", config.MaxThreads))
	outDir := flag.String("outdir", ".", "Output directory")
	sqlitePath := flag.String("sqlite", "", "Also mirror output rows into this SQLite database")
	logLevel := flag.String("log-level", "info", "Log level: debug, info, warn, error")
	flag.Parse()

	level, err := logger.ParseLevel(*logLevel)
	if err != nil {
		log.Printf("[dukadump] %v", err)
		return 1
	}
	logger.Init("dukadump", level)

	cfg, err := config.Load()
	if err != nil {
		log.Printf("[dukadump] %v", err)
		return 1
	}

	req, err := buildRequest(*symbolsStr, *startStr, *endStr, *tfName, *custom,
		*sourceStr, *sideStr, *volumeStr, *header, *resume, *threads, *outDir)
	if err != nil {
		log.Printf("[dukadump] %v", err)
		flag.Usage()
		return 1
	}

	fetcher := fetch.New(cfg)
	driver := fetch.NewDayDriver(fetcher, cfg)

	obs := &consoleObserver{}
	orch := service.New(cfg, driver, obs)

	// Optional metrics endpoint.
	if cfg.MetricsAddr != "" {
		m := metrics.New()
		health := metrics.NewHealthStatus()
		health.SetRunning(true)
		fetcher.OnRequest = m.ObserveStatus
		fetcher.OnRetry = m.Retries.Inc
		orch.OnTick = func(string, model.Tick) {
			m.TicksWritten.Inc()
			m.RowsWritten.Inc()
		}
		orch.OnCandle = func(string, model.Candle) { m.RowsWritten.Inc() }
		srv := metrics.NewServer(cfg.MetricsAddr, health)
		srv.Start()
		defer srv.Stop(context.Background())
	}

	// Optional SQLite mirror, chained after any metrics hooks.
	if *sqlitePath != "" {
		sink, err := sqlitestore.New(*sqlitePath)
		if err != nil {
			log.Printf("[dukadump] %v", err)
			return 1
		}
		defer sink.Close()

		prevTick, prevCandle := orch.OnTick, orch.OnCandle
		orch.OnTick = func(symbol string, t model.Tick) {
			if prevTick != nil {
				prevTick(symbol, t)
			}
			sink.AddTick(symbol, t)
		}
		orch.OnCandle = func(symbol string, c model.Candle) {
			if prevCandle != nil {
				prevCandle(symbol, c)
			}
			sink.AddCandle(symbol, req.Period, c)
		}
	}

	// First signal cancels cooperatively, a second one exits hard.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		fmt.Fprintln(os.Stderr, "\ninterrupt: finishing in-flight work, ^C again to abort")
		orch.Cancel()
		<-sigCh
		os.Exit(1)
	}()

	out, err := orch.Run(context.Background(), req)
	for symbol, path := range out {
		log.Printf("[dukadump] %s -> %s", symbol, path)
	}
	if err != nil {
		log.Printf("[dukadump] %v", err)
		return 1
	}
	return 0
}

func buildRequest(symbolsStr, startStr, endStr, tfName, custom, sourceStr, sideStr, volumeStr string,
	header, resume bool, threads int, outDir string) (*service.Request, error) {

	var symbols []string
	for _, s := range strings.Split(symbolsStr, ",") {
		if s = strings.ToUpper(strings.TrimSpace(s)); s != "" {
			symbols = append(symbols, s)
		}
	}

	start, err := time.ParseInLocation("2006-01-02", startStr, time.UTC)
	if err != nil {
		return nil, fmt.Errorf("start date: %w", err)
	}
	end, err := time.ParseInLocation("2006-01-02", endStr, time.UTC)
	if err != nil {
		return nil, fmt.Errorf("end date: %w", err)
	}

	tf := strings.ToUpper(tfName)
	period, err := model.ResolveTimeframe(tf, custom)
	if err != nil {
		return nil, err
	}
	source, err := service.ParseDataSource(sourceStr)
	if err != nil {
		return nil, err
	}
	side, err := model.ParsePriceSide(sideStr)
	if err != nil {
		return nil, err
	}
	volKind, err := model.ParseVolumeKind(volumeStr)
	if err != nil {
		return nil, err
	}

	req := &service.Request{
		Symbols:   symbols,
		Start:     start,
		End:       end,
		Timeframe: tf,
		Period:    period,
		Source:    source,
		Side:      side,
		VolKind:   volKind,
		Header:    header,
		Resume:    resume,
		Threads:   threads,
		OutDir:    outDir,
	}
	return req, req.Validate()
}

// consoleObserver renders one \r-overwritten progress line per symbol.
type consoleObserver struct {
	mu sync.Mutex
}

func (o *consoleObserver) OnStart(symbol string, totalDays int) {
	o.mu.Lock()
	defer o.mu.Unlock()
	fmt.Printf("%s: %d days to fetch\n", symbol, totalDays)
}

func (o *consoleObserver) OnUpdate(symbol string, done, total int, success bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	pct := 0.0
	if total > 0 {
		pct = float64(done) / float64(total) * 100
	}
	fmt.Printf("\r%s: %d/%d days (%.1f%%)", symbol, done, total, pct)
}

func (o *consoleObserver) OnFinish(symbol, path string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	fmt.Printf("\r%s: done -> %s\n", symbol, path)
}

func (o *consoleObserver) OnError(symbol string, err error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	fmt.Printf("\r%s: failed: %v\n", symbol, err)
}
