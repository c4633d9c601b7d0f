package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"ratewatch/internal/config"
	"ratewatch/internal/monitor"
	"ratewatch/internal/probe"
	"ratewatch/internal/report"
	"ratewatch/internal/server"
	"ratewatch/internal/storage"
)

func main() {
	var (
		configPath = flag.String("config", "config.yaml", "path to configuration file (YAML)")
		jsonOut    = flag.String("json-out", "", "write the JSON report to this path")
		noHTML     = flag.Bool("no-html", false, "skip generating the HTML dashboard")
		dbPath     = flag.String("db", "", "keep history in a sqlite database at this path instead of the JSON file")
		serveAddr  = flag.String("serve", "", "run continuously and serve the dashboard on this address")
	)
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("config: %v", err)
	}

	store, err := openStore(cfg, *dbPath)
	if err != nil {
		log.Fatalf("initialise history store: %v", err)
	}
	defer store.Close()

	prober, err := probe.New(cfg.BaseURL, cfg.APIKey, cfg.Prompt, time.Duration(cfg.TimeoutSeconds)*time.Second)
	if err != nil {
		log.Fatalf("configure prober: %v", err)
	}

	mon := monitor.New(monitor.Options{
		Interval:      time.Duration(cfg.IntervalMinutes) * time.Minute,
		Models:        cfg.Models,
		ExcludeModels: cfg.ExcludeModels,
		QuotaPatterns: cfg.QuotaPatterns,
		ProbeDelay:    time.Duration(cfg.ProbeDelayMS) * time.Millisecond,
		Prober:        prober,
		Store:         store,
		Progress:      os.Stdout,
	})

	if *serveAddr != "" {
		runServe(cfg, *serveAddr, store, mon)
		return
	}

	entry, err := mon.RunOnce(context.Background())
	if err != nil {
		log.Fatalf("record run: %v", err)
	}

	entries := store.History()
	rep := report.Build(&entry, entries, cfg.RecentRuns)

	if !*noHTML {
		if err := report.WriteHTML(cfg.ReportPath, rep, entries, time.Now()); err != nil {
			log.Fatalf("write html report: %v", err)
		}
		log.Printf("HTML dashboard written to %s", cfg.ReportPath)
	}
	if *jsonOut != "" {
		if err := report.WriteJSON(*jsonOut, rep); err != nil {
			log.Fatalf("write json report: %v", err)
		}
		log.Printf("JSON report written to %s", *jsonOut)
	}

	log.Printf("run complete: %d/%d successful", entry.Succeeded, entry.Total)
}

func openStore(cfg config.Config, dbPath string) (storage.Store, error) {
	if dbPath != "" {
		return storage.NewSQLiteStore(dbPath)
	}
	return storage.NewHistoryStore(cfg.HistoryPath)
}

func runServe(cfg config.Config, addr string, store storage.Store, mon *monitor.Monitor) {
	mon.Start()
	defer mon.Stop()

	connectivity := monitor.NewConnectivityMonitor(cfg.Connectivity)
	connectivity.Start()
	defer connectivity.Stop()

	var source monitor.ConnectivitySource
	if cfg.Connectivity.Enabled {
		source = connectivity
	}
	srv := server.New(addr, store, source, cfg.RecentRuns)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Printf("server shutdown: %v", err)
		}
	}()

	log.Printf("ratewatch listening on %s (interval %d minutes)", addr, cfg.IntervalMinutes)
	if err := srv.Run(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatalf("server error: %v", err)
	}
}
