package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/jwaldner/strikemap/internal/audit"
	"github.com/jwaldner/strikemap/internal/config"
	"github.com/jwaldner/strikemap/internal/handlers"
	"github.com/jwaldner/strikemap/internal/heatmap"
	"github.com/jwaldner/strikemap/internal/logger"
	"github.com/jwaldner/strikemap/internal/pricing"
	"github.com/jwaldner/strikemap/internal/sec"
	"github.com/jwaldner/strikemap/internal/session"
	"github.com/jwaldner/strikemap/internal/stock"
)

func main() {
	if err := config.LoadDotEnv(".env"); err != nil {
		log.Fatalf("Failed to load .env: %v", err)
	}
	cfg := config.Load()

	// Initialize proper logging with config level and file path
	if err := logger.InitWithConfig(cfg.Logging.LogLevel, cfg.Logging.LogFile); err != nil {
		log.Fatalf("Failed to initialize logging: %v", err)
	}
	logger.Always.Printf("Strikemap starting - Port: %s", cfg.Port)

	if cfg.Pricing.BaseURL == "" {
		log.Fatal("PRICING_BASE_URL is required (set in config.yaml or environment variable)")
	}

	baseClient := pricing.NewClient(cfg.Pricing.BaseURL, cfg.Pricing.RequestTimeout)
	pricer := pricing.NewPerformanceWrapper(baseClient)
	defer pricer.Close()
	logger.Info.Printf("Pricing client created - Base URL: %s, timeout %s, concurrency %d",
		cfg.Pricing.BaseURL, cfg.Pricing.RequestTimeout, cfg.Pricing.MaxConcurrency)

	var recorder audit.Recorder = audit.Discard
	if cfg.Audit.Enabled {
		worker, err := audit.OpenFile(cfg.Audit.File, 100)
		if err != nil {
			log.Fatalf("Failed to open audit file %s: %v", cfg.Audit.File, err)
		}
		defer worker.Close()
		recorder = worker
		logger.Info.Printf("Recording grid builds to %s", cfg.Audit.File)
	}

	builder := heatmap.NewBuilder(pricer, cfg.Pricing.MaxConcurrency, cfg.HeatMap.FailureWarnRatio)
	sessions := session.NewStore(builder, recorder, cfg.Session.TTL)
	defer sessions.Close()

	var stocks handlers.StockLookup
	if cfg.Stock.BaseURL != "" {
		stocks = stock.NewClient(cfg.Stock.BaseURL, cfg.Pricing.RequestTimeout)
	}

	ctx, cancel := context.WithCancel(context.Background())
	var wg sync.WaitGroup
	sessions.Start(ctx, &wg, time.Minute)

	// Setup router
	r := mux.NewRouter()
	handlers.NewOptionsHandler(cfg, pricer, builder, sessions, stocks).Register(r)
	if stocks != nil {
		handlers.NewStockHandler(stocks).Register(r)
	}
	if cfg.SEC.TickersURL != "" {
		filings := sec.NewClient(cfg.SEC.TickersURL, cfg.SEC.SubmissionsURL, cfg.SEC.UserAgent, cfg.Pricing.RequestTimeout)
		handlers.NewSECHandler(filings).Register(r)
		logger.Info.Printf("SEC routes enabled - directory %s", cfg.SEC.TickersURL)
	}

	srv := &http.Server{
		Handler: otelhttp.NewHandler(r, "strikemap"),
		Addr:    "0.0.0.0:" + cfg.Port,
	}

	go func() {
		fmt.Printf("Server starting on http://localhost:%s\n", cfg.Port)
		logger.Always.Printf("Server starting on http://localhost:%s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("Server failed to start:", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error.Printf("error shutting down server: %v", err)
	} else {
		logger.Always.Printf("Server gracefully stopped")
	}

	cancel()
	wg.Wait()
}
