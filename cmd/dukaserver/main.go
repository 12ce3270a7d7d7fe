// cmd/dukaserver exposes the downloader over HTTP: POST /api/download starts
// a job, /ws streams progress, /api/status answers polls.
//
// Usage:
//
//	go run ./cmd/dukaserver -addr :8080 -outdir ./data
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"dukadump/config"
	"dukadump/internal/fetch"
	"dukadump/internal/logger"
	"dukadump/internal/metrics"
	"dukadump/internal/service"
	"dukadump/internal/webui"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds)

	addr := flag.String("addr", ":8080", "HTTP listen address")
	outDir := flag.String("outdir", ".", "Default output directory for jobs")
	logLevel := flag.String("log-level", "info", "Log level: debug, info, warn, error")
	flag.Parse()

	level, err := logger.ParseLevel(*logLevel)
	if err != nil {
		log.Fatalf("[dukaserver] %v", err)
	}
	logger.Init("dukaserver", level)

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("[dukaserver] %v", err)
	}

	fetcher := fetch.New(cfg)
	driver := fetch.NewDayDriver(fetcher, cfg)

	if cfg.MetricsAddr != "" {
		m := metrics.New()
		health := metrics.NewHealthStatus()
		health.SetRunning(true)
		fetcher.OnRequest = m.ObserveStatus
		fetcher.OnRetry = m.Retries.Inc
		msrv := metrics.NewServer(cfg.MetricsAddr, health)
		msrv.Start()
		defer msrv.Stop(context.Background())
	}

	srv := webui.NewServer(*addr, *outDir, func(obs service.Observer) webui.Runner {
		return service.New(cfg, driver, obs)
	})
	srv.Start()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	log.Printf("[dukaserver] shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	srv.Stop(ctx)
}
