package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"

	"github.com/cuongbtq/grow-sync/internal/api/handler"
	"github.com/cuongbtq/grow-sync/internal/api/router"
	"github.com/cuongbtq/grow-sync/internal/batch"
	"github.com/cuongbtq/grow-sync/internal/config"
	"github.com/cuongbtq/grow-sync/internal/events"
	"github.com/cuongbtq/grow-sync/internal/ledger"
	"github.com/cuongbtq/grow-sync/internal/notion"
	"github.com/cuongbtq/grow-sync/internal/throttle"
	"github.com/cuongbtq/grow-sync/internal/upsert"
	"github.com/cuongbtq/grow-sync/shared/logger"
	"github.com/cuongbtq/grow-sync/shared/postgresql"
	"github.com/cuongbtq/grow-sync/shared/rabbitmq"
)

// attribute keys that must never reach the log output
var redactedKeys = []string{"hmac_secret", "api_token", "password", "x-signature", "authorization"}

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables or flags")
	}

	// Parse command-line flags
	defaultConfigPath := os.Getenv("API_SERVICE_CONFIG_PATH")
	if defaultConfigPath == "" {
		defaultConfigPath = "configs/api-service/config.yaml"
	}
	configPath := flag.String("config", defaultConfigPath, "Path to configuration file")
	flag.Parse()

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	// Initialize logger
	appLogger, err := initLogger(&cfg.Logging)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer appLogger.Close()

	appLogger.Info("Starting API service",
		slog.String("app", cfg.App.Name),
		slog.String("version", cfg.App.Version),
		slog.String("environment", cfg.App.Environment),
	)

	if cfg.Notion.HistoryDBID == "" {
		appLogger.Warn("notion.history_db_id is not set; every batch will be rejected with a configuration error")
	}

	checks := make(map[string]handler.HealthChecker)
	var opts []batch.Option
	var runs handler.RunLister

	// Optional sync ledger
	var dbClient *postgresql.Client
	if cfg.Database.Enabled {
		dbClient, err = initPostgreSQL(&cfg.Database, appLogger.Logger)
		if err != nil {
			return fmt.Errorf("failed to initialize database: %w", err)
		}

		store := ledger.NewStorage(dbClient, appLogger.Logger)
		if cfg.Database.AutoMigrate {
			if err := store.Migrate(context.Background()); err != nil {
				dbClient.Close()
				return fmt.Errorf("failed to migrate database: %w", err)
			}
		}

		opts = append(opts, batch.WithRecorder(store))
		checks["database"] = dbClient
		runs = store
		appLogger.Info("Sync ledger enabled")
	}

	// Optional result events
	var rabbitClient *rabbitmq.Client
	if cfg.RabbitMQ.Enabled {
		rabbitClient, err = initRabbitMQ(&cfg.RabbitMQ, appLogger.Logger)
		if err != nil {
			if dbClient != nil {
				dbClient.Close()
			}
			return fmt.Errorf("failed to initialize RabbitMQ: %w", err)
		}

		opts = append(opts, batch.WithNotifier(events.NewPublisher(rabbitClient, appLogger.Logger)))
		checks["rabbitmq"] = rabbitClient
		appLogger.Info("Result events enabled")
	}

	// Sync engine
	orchestrator := initOrchestrator(cfg, appLogger.Logger, opts...)

	// Initialize router
	r := initRouter(cfg, appLogger.Logger, orchestrator, checks, runs)

	// Create HTTP server
	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	appLogger.Info("Starting HTTP server",
		slog.String("address", addr),
		slog.Duration("read_timeout", cfg.Server.ReadTimeout),
		slog.Duration("write_timeout", cfg.Server.WriteTimeout),
	)

	serverErr := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	// Wait for interrupt signal or a listener failure
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	var runErr error
	select {
	case <-quit:
		appLogger.Info("Shutting down server...")
	case runErr = <-serverErr:
		appLogger.Error("Server failed", slog.Any("error", runErr))
	}

	// Graceful shutdown with timeout
	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)

	// Cleanup function to close all resources
	cleanup := func() {
		cancel()
		if dbClient != nil {
			dbClient.Close()
		}
		if rabbitClient != nil {
			rabbitClient.Close()
		}
	}
	defer cleanup()

	if err := srv.Shutdown(ctx); err != nil {
		appLogger.Error("Server forced to shutdown",
			slog.Any("error", err),
		)
		return err
	}

	appLogger.Info("Server shutdown complete")
	return runErr
}

// initLogger initializes and configures the application logger
func initLogger(cfg *config.LoggingConfig) (*logger.Logger, error) {
	loggerCfg := &logger.Config{
		Level:        cfg.Level,
		Format:       cfg.Format,
		Output:       cfg.Output,
		EnableSource: cfg.EnableCaller,
		TimeFormat:   time.RFC3339,
		NoColor:      cfg.NoColor,
		Redact:       redactedKeys,
	}

	return logger.New(loggerCfg)
}

// initPostgreSQL initializes the PostgreSQL database client
func initPostgreSQL(cfg *config.DatabaseConfig, logger *slog.Logger) (*postgresql.Client, error) {
	dbConfig := &postgresql.Config{
		Host:            cfg.Host,
		Port:            cfg.Port,
		User:            cfg.User,
		Password:        cfg.Password,
		Database:        cfg.Database,
		SSLMode:         cfg.SSLMode,
		MaxOpenConns:    cfg.MaxOpenConns,
		MaxIdleConns:    cfg.MaxIdleConns,
		ConnMaxLifetime: cfg.ConnMaxLifetime,
		ConnMaxIdleTime: cfg.ConnMaxIdleTime,
		ConnectTimeout:  cfg.ConnectTimeout,
	}

	return postgresql.NewClient(context.Background(), dbConfig, logger)
}

// initRabbitMQ initializes the RabbitMQ client used for result events
func initRabbitMQ(cfg *config.RabbitMQConfig, logger *slog.Logger) (*rabbitmq.Client, error) {
	rabbitConfig := &rabbitmq.Config{
		Host:               cfg.Host,
		Port:               cfg.Port,
		User:               cfg.User,
		Password:           cfg.Password,
		VHost:              cfg.VHost,
		ExchangeName:       cfg.Exchange.Name,
		ExchangeType:       cfg.Exchange.Type,
		ExchangeDurable:    cfg.Exchange.Durable,
		ExchangeAutoDelete: cfg.Exchange.AutoDelete,
		QueueName:          cfg.Queue.Name,
		QueueDurable:       cfg.Queue.Durable,
		BindingKey:         cfg.Queue.BindingKey,
		RetryAttempts:      cfg.Connection.RetryAttempts,
		RetryInterval:      cfg.Connection.RetryInterval,
		Heartbeat:          cfg.Connection.Heartbeat,
		PublishRetries:     cfg.Publish.RetryAttempts,
		PublishRetryDelay:  cfg.Publish.RetryInterval,
		PublishMaxDelay:    cfg.Publish.MaxInterval,
	}

	return rabbitmq.NewClient(rabbitConfig, logger)
}

// initOrchestrator wires the store client, the shared throttle and the upsert coordinator
func initOrchestrator(cfg *config.Config, logger *slog.Logger, opts ...batch.Option) *batch.Orchestrator {
	client := notion.NewClient(&notion.Config{
		BaseURL: cfg.Notion.BaseURL,
		Token:   cfg.Notion.APIToken,
		Version: cfg.Notion.Version,
		Timeout: cfg.Notion.RequestTimeout,
	}, logger)

	controller := throttle.New(throttle.Config{
		MinInterval:    cfg.Notion.MinInterval,
		MaxRetries:     cfg.Notion.MaxRetries,
		InitialBackoff: cfg.Notion.InitialBackoff,
		MaxBackoff:     cfg.Notion.MaxBackoff,
	}, logger)

	coordinator := upsert.NewCoordinator(client, controller, cfg.Notion.HistoryDBID, logger)

	return batch.NewOrchestrator(batch.Config{
		Timeout:             cfg.Batch.Timeout,
		HistoryCollectionID: cfg.Notion.HistoryDBID,
		MaxJobs:             cfg.Batch.MaxJobs,
		ReportTimeout:       cfg.Batch.ReportTimeout,
	}, coordinator, logger, opts...)
}

// initRouter initializes the Gin router with all routes and middleware
func initRouter(cfg *config.Config, logger *slog.Logger, processor handler.BatchProcessor, checks map[string]handler.HealthChecker, runs handler.RunLister) *gin.Engine {
	// Set Gin mode based on environment
	if cfg.App.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	} else {
		gin.SetMode(gin.DebugMode)
	}

	handlerDeps := &handler.Dependencies{
		Logger:       logger,
		ServiceName:  cfg.App.Name,
		Version:      cfg.App.Version,
		HMACSecret:   cfg.Security.HMACSecret,
		MaxBodyBytes: cfg.Server.MaxBodyBytes,
		Processor:    processor,
		Checks:       checks,
		Runs:         runs,
		RateLimit: handler.RateLimitConfig{
			RPS:         cfg.Security.InboundRPS,
			Burst:       cfg.Security.InboundBurst,
			BypassToken: cfg.Security.RateLimitBypassToken,
		},
	}

	return router.SetupRouter(handlerDeps)
}
