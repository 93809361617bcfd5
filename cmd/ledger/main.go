package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"ledger/internal/app/accounts"
	"ledger/internal/config"
	accounts_http "ledger/internal/handler/http/accounts"
	"ledger/internal/infrastructure/database"
	kafka_infra "ledger/internal/infrastructure/kafka"
	"ledger/internal/outbox"
	"ledger/internal/store"
	"ledger/internal/store/memory"
	"ledger/internal/store/postgres"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func newLogger(level string) (*zap.Logger, error) {
	zapConfig := zap.NewProductionConfig()
	zapConfig.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	zapConfig.EncoderConfig.TimeKey = "timestamp"

	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("invalid LOG_LEVEL %q: %w", level, err)
	}
	zapConfig.Level = zap.NewAtomicLevelAt(lvl)
	return zapConfig.Build()
}

func openStore(ctx context.Context, cfg *config.Config, logger *zap.Logger) (store.Store, error) {
	if cfg.StoreDriver == config.StoreDriverMemory {
		logger.Warn("Using in-memory store; state is lost on restart")
		return memory.New(), nil
	}

	logger.Info("Waiting for database to be available...")
	db, err := database.ConnectWithRetry(ctx, database.DBConfig{
		Host:            cfg.DBConfig.Host,
		Port:            cfg.DBConfig.Port,
		User:            cfg.DBConfig.User,
		Password:        cfg.DBConfig.Password,
		DBName:          cfg.DBConfig.Name,
		SSLMode:         cfg.DBConfig.SSLMode,
		MaxOpenConns:    cfg.DBConfig.MaxOpenConns,
		MaxIdleConns:    cfg.DBConfig.MaxIdleConns,
		ConnMaxLifetime: cfg.DBConfig.ConnMaxLifetime,
	}, 10, 5*time.Second, logger)
	if err != nil {
		return nil, err
	}

	logger.Info("Running database migrations...", zap.String("source", cfg.MigrationsPath))
	if err := database.RunMigrations(cfg.MigrationsPath, cfg.GetDBMigrationConnectionString(), logger); err != nil {
		db.Close()
		return nil, err
	}
	return postgres.NewStore(db, logger), nil
}

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading configuration: %v\n", err)
		os.Exit(1)
	}

	appLogger, err := newLogger(cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create zap logger: %v\n", err)
		os.Exit(1)
	}
	defer appLogger.Sync()
	appLogger.Info("Ledger service starting...", zap.String("store", cfg.StoreDriver))

	ctxMain, cancelMain := context.WithCancel(context.Background())
	defer cancelMain()

	st, err := openStore(ctxMain, cfg, appLogger.With(zap.String("component", "Store")))
	if err != nil {
		appLogger.Fatal("Failed to open store", zap.Error(err))
	}
	defer func() {
		if err := st.Close(); err != nil {
			appLogger.Error("Error closing store", zap.Error(err))
		} else {
			appLogger.Info("Store closed.")
		}
	}()

	serviceOpts := []accounts.Option{accounts.WithMaxAttempts(cfg.MaxAttempts)}
	if cfg.EventsEnabled {
		serviceOpts = append(serviceOpts, accounts.WithEventsTopic(cfg.KafkaLedgerEventsTopic))
	}
	accountService := accounts.NewAccountService(
		st,
		appLogger.With(zap.String("component", "AccountService")),
		serviceOpts...,
	)
	appLogger.Info("Account Service initialized.")

	processorDone := make(chan struct{})
	if cfg.EventsEnabled {
		topicCtx, cancelTopics := context.WithTimeout(ctxMain, 10*time.Second)
		err := kafka_infra.EnsureTopics(topicCtx, cfg.GetKafkaBrokers(), []string{cfg.KafkaLedgerEventsTopic}, 3,
			appLogger.With(zap.String("component", "KafkaAdmin")))
		cancelTopics()
		if err != nil {
			appLogger.Fatal("Failed to ensure Kafka topics", zap.Error(err))
		}

		kafkaProducer := kafka_infra.NewProducer(cfg.GetKafkaBrokers(), appLogger.With(zap.String("component", "KafkaProducer")))
		defer kafkaProducer.Close()

		outboxProcessor := outbox.NewProcessor(
			st,
			kafkaProducer,
			cfg.OutboxPollInterval,
			cfg.OutboxPollTimeout,
			cfg.OutboxBatchSize,
			appLogger.With(zap.String("component", "OutboxProcessor")),
		)
		go func() {
			defer close(processorDone)
			outboxProcessor.Start(ctxMain)
		}()
	} else {
		close(processorDone)
		appLogger.Info("Ledger events disabled; outbox processor not started.")
	}

	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(middleware.Logger)
	router.Use(middleware.Recoverer)
	router.Use(middleware.Timeout(cfg.RequestTimeout))
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins: cfg.CORSAllowedOrigins,
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", "X-Request-Id"},
		MaxAge:         300,
	}))
	accounts_http.RegisterRoutes(
		router,
		accountService,
		accounts_http.NewAuthenticator(cfg.JWTSecret, cfg.JWTIssuer, appLogger.With(zap.String("component", "Auth"))),
		st,
		appLogger,
	)

	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		appLogger.Info("Starting HTTP server", zap.String("address", httpServer.Addr))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			appLogger.Fatal("HTTP server failed", zap.Error(err))
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan
	appLogger.Info("Shutting down application...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		appLogger.Error("HTTP server graceful shutdown failed", zap.Error(err))
	} else {
		appLogger.Info("HTTP server gracefully shut down.")
	}

	cancelMain()
	select {
	case <-processorDone:
	case <-shutdownCtx.Done():
		appLogger.Warn("Outbox processor did not stop before the shutdown deadline")
	}

	appLogger.Info("Application gracefully shut down.")
}
