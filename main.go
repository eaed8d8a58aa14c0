package main

import (
	"context"
	"database/sql"
	"log"
	"net/http"
	"os"
	"time"

	"water-billing/internal/auth"
	"water-billing/internal/billing/application"
	"water-billing/internal/billing/infrastructure/chargingengine"
	billingrepo "water-billing/internal/billing/infrastructure/postgres"
	"water-billing/internal/billing/interfaces"
	billinghttp "water-billing/internal/billing/interfaces/http"
	"water-billing/internal/observability/metrics"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	cfg := loadConfig()
	logger := log.New(os.Stdout, "", log.LstdFlags)

	billingCfg, err := application.LoadConfig()
	if err != nil {
		logger.Fatalf("billing config error: %v", err)
	}

	db, err := sql.Open("pgx", cfg.DatabaseURL)
	if err != nil {
		logger.Fatalf("db open error: %v", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		logger.Fatalf("db ping error: %v", err)
	}

	metrics.Init(db, logger)

	batchRepo := billingrepo.NewBatchRepository(db)
	eventRepo := billingrepo.NewEventRepository(db)
	chargeVersionRepo := billingrepo.NewChargeVersionRepository(db)
	invoiceRepo := billingrepo.NewInvoiceRepository(db)
	transactionRepo := billingrepo.NewTransactionRepository(db)
	licenceRepo := billingrepo.NewLicenceRepository(db)
	cleanser, err := billingrepo.NewHistoryCleanser(transactionRepo)
	if err != nil {
		logger.Fatalf("history cleanser error: %v", err)
	}

	engine, err := chargingengine.NewClient(cfg.EngineBaseURL, cfg.EngineToken)
	if err != nil {
		logger.Fatalf("charging engine client error: %v", err)
	}

	guard, err := application.NewLiveBatchGuard(batchRepo)
	if err != nil {
		logger.Fatalf("live batch guard error: %v", err)
	}
	initiator, err := application.NewBatchInitiator(guard, batchRepo, eventRepo, engine, billingCfg.Ruleset, nil, logger)
	if err != nil {
		logger.Fatalf("batch initiator error: %v", err)
	}
	processor, err := application.NewBillingPeriodProcessor(invoiceRepo, transactionRepo, engine, cleanser, nil, logger)
	if err != nil {
		logger.Fatalf("period processor error: %v", err)
	}

	var legacy application.LegacyNotifier
	if billingCfg.LegacyRefresh != "" {
		legacy = interfaces.NewLegacyRefreshNotifier(billingCfg.LegacyRefresh)
	}
	finalizer, err := application.NewBatchFinalizer(batchRepo, licenceRepo, chargeVersionRepo, engine, legacy, logger)
	if err != nil {
		logger.Fatalf("batch finalizer error: %v", err)
	}

	var reissuer application.InvoiceReissuer
	if billingCfg.ReissueEnabled {
		reissuer, err = billingrepo.NewReissuer(db)
		if err != nil {
			logger.Fatalf("reissuer error: %v", err)
		}
	}
	orchestrator, err := application.NewBatchOrchestrator(batchRepo, chargeVersionRepo, processor, finalizer, reissuer, nil, logger)
	if err != nil {
		logger.Fatalf("batch orchestrator error: %v", err)
	}
	runner, err := application.NewBatchRunner(initiator, orchestrator, nil, logger)
	if err != nil {
		logger.Fatalf("batch runner error: %v", err)
	}

	if billingCfg.Schedule.DailyAt != "" && len(billingCfg.Schedule.Regions) > 0 {
		scheduler := application.NewScheduler(runner, billingCfg.Schedule.Regions, billingCfg.Schedule.DailyAt, "scheduler", logger)
		go scheduler.Start(context.Background())
	}

	billRunHandler, err := billinghttp.NewHandler(runner, batchRepo, invoiceRepo, transactionRepo, logger)
	if err != nil {
		logger.Fatalf("bill run handler error: %v", err)
	}

	policy := auth.NewDefaultPolicy([]string{"/healthz", "/metrics"}, nil)
	authMiddleware := auth.NewMiddleware([]byte(cfg.JWTSecret), policy)

	mux := http.NewServeMux()
	mux.Handle("/api/v1/bill-runs", billRunHandler)
	mux.Handle("/api/v1/bill-runs/", billRunHandler)
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	server := &http.Server{Addr: cfg.HTTPAddr, Handler: loggingMiddleware(authMiddleware.Wrap(mux), logger)}
	logger.Printf("http listening on %s", cfg.HTTPAddr)
	logger.Fatal(server.ListenAndServe())
}

type config struct {
	DatabaseURL   string
	HTTPAddr      string
	EngineBaseURL string
	EngineToken   string
	JWTSecret     string
}

func loadConfig() config {
	cfg := config{
		DatabaseURL:   getenvDefault("DATABASE_URL", getenvDefault("PG_DSN", "")),
		HTTPAddr:      getenvDefault("HTTP_ADDR", ":8080"),
		EngineBaseURL: getenvDefault("CHARGING_ENGINE_BASE_URL", ""),
		EngineToken:   getenvDefault("CHARGING_ENGINE_TOKEN", ""),
		JWTSecret:     getenvDefault("AUTH_JWT_SECRET", getenvDefault("JWT_SECRET", "")),
	}
	if cfg.DatabaseURL == "" {
		log.Fatal("DATABASE_URL or PG_DSN is required")
	}
	if cfg.EngineBaseURL == "" {
		log.Fatal("CHARGING_ENGINE_BASE_URL is required")
	}
	if cfg.JWTSecret == "" {
		log.Fatal("AUTH_JWT_SECRET is required")
	}
	return cfg
}

func getenvDefault(key, fallback string) string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	return value
}

func loggingMiddleware(next http.Handler, logger *log.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		resp := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(resp, r)
		logger.Printf("http %s %s %d %s", r.Method, r.URL.Path, resp.status, time.Since(start))
	})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}
