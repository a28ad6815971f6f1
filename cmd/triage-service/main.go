package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/safetyflow/icsr-triage/pkg/caseflow"
	"github.com/safetyflow/icsr-triage/pkg/casestore"
	"github.com/safetyflow/icsr-triage/pkg/common/config"
	"github.com/safetyflow/icsr-triage/pkg/common/database"
	"github.com/safetyflow/icsr-triage/pkg/common/kafka"
	"github.com/safetyflow/icsr-triage/pkg/common/logger"
	"github.com/safetyflow/icsr-triage/pkg/gateway/middleware"
	"github.com/safetyflow/icsr-triage/pkg/intake"
	"github.com/safetyflow/icsr-triage/pkg/llm"
	"github.com/safetyflow/icsr-triage/pkg/observability/metrics"
	"github.com/safetyflow/icsr-triage/pkg/questions"
	"github.com/safetyflow/icsr-triage/pkg/redact"
	"github.com/safetyflow/icsr-triage/pkg/terminology"
	"golang.org/x/sync/errgroup"
)

func main() {
	cfg := config.Load()
	logger.Init(cfg.LogLevel, cfg.LogFormat)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.GetPostgres(cfg)
	if err != nil {
		logger.Log.WithError(err).Fatal("Failed to connect to Postgres")
	}
	defer database.ClosePostgres()

	repo := casestore.NewRepository(db)
	if err := repo.AutoMigrate(); err != nil {
		logger.Log.WithError(err).Fatal("Failed to migrate case store")
	}

	redisClient, err := database.NewRedis(ctx, cfg)
	if err != nil {
		logger.Log.WithError(err).Warn("Draft cache unavailable, reading cases from Postgres")
	} else {
		logger.Log.Info("Connected to Redis")
	}
	defer redisClient.Close()
	drafts := casestore.NewDraftStore(redisClient, cfg.DraftTTL)

	producer := kafka.NewProducer(cfg, cfg.CasesTopic, "triage-service")
	defer producer.Close()
	consumer := kafka.NewConsumer(cfg, cfg.CasesTopic, "")
	defer consumer.Close()

	feed := casestore.NewFeed(metrics.ObserveDashboard)
	if err := feed.Load(ctx, repo); err != nil {
		logger.Log.WithError(err).Warn("Dashboard started without stored cases")
	}

	library := questions.DefaultTemplates()
	if cfg.QuestionTemplatesPath != "" {
		if library, err = questions.LoadTemplates(cfg.QuestionTemplatesPath); err != nil {
			logger.Log.WithError(err).Fatal("Failed to load question templates")
		}
	}

	rules := redact.DefaultRules()
	if cfg.RedactionRulesPath != "" {
		if rules, err = redact.LoadRules(cfg.RedactionRulesPath); err != nil {
			logger.Log.WithError(err).Fatal("Failed to load redaction rules")
		}
	}
	redactor, err := redact.New(rules)
	if err != nil {
		logger.Log.WithError(err).Fatal("Invalid redaction rules")
	}

	drugs, err := terminology.Load(cfg.DrugCatalogPath)
	if err != nil {
		logger.Log.WithError(err).Fatal("Failed to load drug catalog")
	}

	client := llm.NewClient(cfg)
	if cfg.LLMAPIKey == "" {
		logger.Log.Warn("LLM_API_KEY not set: extraction disabled, questions and outreach use templates")
	}

	service := intake.NewService(intake.Dependencies{
		Lifecycle: caseflow.NewLifecycle(),
		Validator: intake.NewValidator(cfg.NarrativeMinLength),
		Redactor:  redactor,
		Extractor: client,
		Questions: client,
		Fallback:  questions.NewGenerator(library),
		Outreach:  client,
		Repo:      repo,
		Drafts:    drafts,
		Publisher: casestore.NewChangePublisher(producer),
	})

	router := mux.NewRouter()
	router.Use(middleware.Recovery)
	router.Use(middleware.Logging)
	router.Use(middleware.CORS)
	router.Use(middleware.BodyLimit(cfg.MaxRequestBody))
	router.Use(middleware.RateLimit(cfg.GatewayRateLimitRPS, cfg.GatewayRateLimitBurst))

	router.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"healthy"}`))
	}).Methods(http.MethodGet)
	router.HandleFunc("/ready", func(w http.ResponseWriter, r *http.Request) {
		sqlDB, err := db.DB()
		if err == nil {
			err = sqlDB.PingContext(r.Context())
		}
		if err != nil {
			http.Error(w, `{"status":"unavailable"}`, http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ready"}`))
	}).Methods(http.MethodGet)
	router.HandleFunc("/metrics", func(w http.ResponseWriter, r *http.Request) {
		metrics.WritePrometheus(w)
	}).Methods(http.MethodGet)

	apiRouter := router.PathPrefix("/api/v1").Subrouter()
	intake.NewHTTPHandler(service, feed, drugs).Register(apiRouter)

	g, gCtx := errgroup.WithContext(ctx)

	// Request contexts end with the service so dashboard streams close on shutdown.
	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%s", cfg.ServerHost, cfg.ServerPort),
		Handler:      router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  120 * time.Second,
		BaseContext:  func(net.Listener) context.Context { return gCtx },
	}

	g.Go(func() error {
		logger.Log.WithFields(map[string]interface{}{
			"host": cfg.ServerHost,
			"port": cfg.ServerPort,
		}).Info("Triage Service started")

		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		if err := consumer.Consume(gCtx, feed.Handle); err != nil && !errors.Is(err, context.Canceled) {
			return fmt.Errorf("case feed: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gCtx.Done()
		logger.Log.Info("Shutting down Triage Service...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Log.WithError(err).Error("Triage Service stopped with error")
		return
	}
	logger.Log.Info("Triage Service stopped")
}
