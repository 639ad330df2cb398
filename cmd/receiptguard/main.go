package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kvasquez/receiptguard/internal/config"
	"github.com/kvasquez/receiptguard/internal/domain"
	"github.com/kvasquez/receiptguard/internal/handler"
	"github.com/kvasquez/receiptguard/internal/infra/cache"
	"github.com/kvasquez/receiptguard/internal/infra/observability"
	"github.com/kvasquez/receiptguard/internal/infra/ocr"
	"github.com/kvasquez/receiptguard/internal/infra/postgrest"
	"github.com/kvasquez/receiptguard/internal/infra/resilience"
	"github.com/kvasquez/receiptguard/internal/service"

	"go.uber.org/zap"
)

func main() {
	// --- Load .env file (for local development) ---
	_ = config.LoadDotEnv(".env")

	// --- Config ---
	cfg := config.Load()

	// --- Logger ---
	logger := observability.NewLogger(cfg.LogLevel)
	defer logger.Sync()

	logger.Info("configuration loaded",
		zap.Int("port", cfg.Port),
		zap.String("log_level", cfg.LogLevel),
		zap.Duration("http_timeout", cfg.HTTPTimeout),
		zap.Duration("ocr_timeout", cfg.OCRTimeout),
		zap.Duration("cache_ttl", cfg.CacheTTL),
		zap.Int("max_retries", cfg.MaxRetries),
		zap.Duration("initial_backoff", cfg.InitialBackoff),
		zap.Duration("report_poll_interval", cfg.ReportPollInterval),
	)

	// --- Tracing ---
	shutdownTracer, err := observability.InitTracer(cfg.OTLPEndpoint, "receiptguard")
	if err != nil {
		logger.Fatal("failed to init tracer", zap.Error(err))
	}
	defer shutdownTracer(context.Background())

	// --- Metrics ---
	metrics := observability.NewMetrics()

	// --- Cache ---
	reportCache := cache.New[*domain.ReconciliationReport](cfg.CacheTTL)

	// --- Resilience ---
	resilienceCfg := resilience.Config{
		MaxRetries:     cfg.MaxRetries,
		InitialBackoff: cfg.InitialBackoff,
		MaxConcurrency: cfg.MaxConcurrency,
	}
	storeCB := resilience.NewCircuitBreaker("postgrest")
	ocrCB := resilience.NewCircuitBreaker("ocr")
	ocrBulkhead := resilience.NewBulkhead(cfg.MaxConcurrency)

	// --- Clients ---
	httpClient := &http.Client{Timeout: cfg.HTTPTimeout}

	if cfg.StoreURL == "" {
		logger.Fatal("STORE_API_URL is required")
	}
	store := postgrest.NewClient(
		httpClient,
		cfg.StoreURL,
		cfg.StoreAnonKey,
		cfg.StoreServiceKey,
		storeCB,
		resilienceCfg,
		logger,
		metrics,
	)

	if cfg.OCRAPIURL == "" {
		logger.Warn("OCR_API_URL not configured, verification requests will fail until it is set")
	}
	// OCR gets a client with a longer timeout than the store calls.
	ocrHTTPClient := &http.Client{Timeout: cfg.OCRTimeout}
	extractor := ocr.NewClient(ocrHTTPClient, cfg.OCRAPIURL, cfg.OCRAPIKey, ocrCB, resilienceCfg, metrics)

	// --- Services ---
	verificationSvc := service.NewVerificationService(
		extractor,
		store,
		ocrBulkhead,
		cfg.OCRTimeout,
		logger,
		metrics,
	)
	reconSvc := service.NewReconciliationService(store, store, reportCache, logger, metrics)
	investSvc := service.NewInvestmentService(store, store, store, logger, metrics)
	ordersSvc := service.NewOrdersService(store, reconSvc, logger)
	settingsSvc := service.NewSettingsService(store, reconSvc, logger)

	// --- Report poller ---
	poller := service.NewReportPoller(reconSvc, cfg.ReportPollInterval, logger)
	poller.Start(context.Background())
	defer poller.Stop()

	// --- Router ---
	router := handler.NewRouter(handler.Services{
		Verification:   verificationSvc,
		Orders:         ordersSvc,
		Reconciliation: reconSvc,
		Investment:     investSvc,
		Settings:       settingsSvc,
	}, metrics, logger)

	// --- Server ---
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// --- Graceful shutdown ---
	go func() {
		logger.Info("server starting", zap.Int("port", cfg.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("server shutting down...")
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Fatal("server forced shutdown", zap.Error(err))
	}

	logger.Info("server stopped")
}
