package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/evanofslack/dnsupdate/internal/config"
	"github.com/evanofslack/dnsupdate/internal/httpclient"
	"github.com/evanofslack/dnsupdate/internal/ipsource"
	"github.com/evanofslack/dnsupdate/internal/logger"
	"github.com/evanofslack/dnsupdate/internal/metrics"
	"github.com/evanofslack/dnsupdate/internal/provider"
	"github.com/evanofslack/dnsupdate/internal/provider/cloudflare"
	"github.com/evanofslack/dnsupdate/internal/provider/ydns"
	"github.com/evanofslack/dnsupdate/internal/updater"
)

// errUpdateFailed marks a run in which at least one subdomain ended in Fail.
var errUpdateFailed = errors.New("one or more updates failed")

func main() {
	configPath := flag.String("config", "", "path to config file")
	once := flag.Bool("once", false, "run a single update and exit, even if an interval is configured")
	summary := flag.Bool("summary", false, "print an outcome table after each run")
	flag.Parse()

	path, err := config.Find(*configPath, config.SearchPaths)
	if err != nil {
		slog.Error("Failed to find config", "error", err)
		os.Exit(1)
	}

	cfg, err := config.Load(path)
	if err != nil {
		slog.Error("Failed to load config", "path", path, "error", err)
		os.Exit(1)
	}
	logger.Configure(cfg.Log.Level, cfg.Log.Env)
	slog.Info("Loaded config", "path", path)

	// Initialize metrics
	metrics := metrics.New(true)

	ips, err := ipsource.New(cfg.IP, httpclient.New(cfg.Timeout), metrics)
	if err != nil {
		slog.Error("Failed to initialize ip source", "error", err)
		os.Exit(1)
	}

	backends, err := buildBackends(cfg, metrics)
	if err != nil {
		slog.Error("Failed to initialize DNS provider", "error", err)
		os.Exit(1)
	}

	engine := updater.NewEngine(backends, os.Stdout, cfg.FailFast, metrics)
	r := &runner{
		ips:      ips,
		engine:   engine,
		metrics:  metrics,
		textfile: cfg.Metrics.Textfile,
		summary:  *summary,
	}

	if *once || cfg.Interval == 0 {
		if err := r.run(context.Background()); err != nil {
			slog.Error("Update failed", "error", err)
			os.Exit(1)
		}
		return
	}

	// Set up HTTP server for metrics and health checks
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())

	server := &http.Server{
		Addr:    cfg.Metrics.Address,
		Handler: mux,
	}

	// Start http server in background
	go func() {
		slog.Info("Starting metrics server", "address", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("Metrics server failed", "error", err)
		}
	}()

	// Graceful shutdown handling
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	slog.Info("Starting dnsupdate service", "interval", cfg.Interval, "backends", len(backends))

	wg := &sync.WaitGroup{}
	wg.Add(1)
	go runSyncLoop(ctx, wg, r, cfg.Interval)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	slog.Info("Shutdown signal received")
	cancel()

	serverShutdownCtx, cancelServer := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelServer()
	if err := server.Shutdown(serverShutdownCtx); err != nil {
		slog.Error("Metrics server shutdown error", "error", err)
	}

	// Wait for sync loop to finish
	wg.Wait()
	slog.Info("Service shutdown complete")
}

// buildBackends creates one authenticated client per configured backend,
// Cloudflare first.
func buildBackends(cfg *config.Config, metrics *metrics.Metrics) ([]updater.Backend, error) {
	backends := []updater.Backend{}

	if cfg.Cloudflare != nil {
		cf, err := cloudflare.New(*cfg.Cloudflare, httpclient.New(cfg.Timeout), metrics)
		if err != nil {
			return nil, err
		}
		backends = append(backends, updater.Backend{Provider: cf, Domains: cfg.Cloudflare.Domains})
	}

	if cfg.YDNS != nil {
		y, err := ydns.New(*cfg.YDNS, httpclient.New(cfg.Timeout), metrics)
		if err != nil {
			return nil, err
		}
		backends = append(backends, updater.Backend{Provider: y, Domains: cfg.YDNS.Domains})
	}
	return backends, nil
}

func runSyncLoop(ctx context.Context, wg *sync.WaitGroup, r *runner, interval time.Duration) {
	defer wg.Done()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if err := r.run(ctx); err != nil {
			slog.Error("Update run failed", "error", err)
		}

		select {
		case <-ticker.C:
			continue
		case <-ctx.Done():
			slog.Info("Stopping update loop")
			return
		}
	}
}

type runner struct {
	ips      ipsource.Source
	engine   updater.Engine
	metrics  *metrics.Metrics
	textfile string
	summary  bool
}

// run performs one full update: public IP lookup, then every backend.
func (r *runner) run(ctx context.Context) (err error) {
	slog.Info("Starting update run")
	start := time.Now()
	defer func() {
		r.metrics.SetRunDuration(time.Since(start))
		r.metrics.IncRun(err == nil)
		if r.textfile != "" {
			if werr := r.metrics.WriteTextfile(r.textfile); werr != nil {
				slog.Warn("fail write metrics textfile", "path", r.textfile, "error", werr)
			}
		}
	}()

	ip, err := r.ips.Lookup(ctx)
	if err != nil {
		return fmt.Errorf("lookup public ip: %w", err)
	}
	slog.Info("Public ip", "ip", ip)

	results, err := r.engine.Run(ctx, ip)
	if r.summary {
		results.WriteTable(os.Stdout)
	}
	if err != nil {
		return err
	}

	slog.Info("Update run completed",
		"success", results.Count(provider.Success),
		"fail", results.Count(provider.Fail),
		"skipped", results.Count(provider.Skipped),
		"duration", time.Since(start))
	if results.Failed() {
		return errUpdateFailed
	}
	return nil
}
