// cmd/bot/main.go
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"

	"github.com/ammerola/inventory-bot/internal/adapters/db"
	"github.com/ammerola/inventory-bot/internal/adapters/filestore"
	redis_a "github.com/ammerola/inventory-bot/internal/adapters/redis_adapter"
	"github.com/ammerola/inventory-bot/internal/adapters/storage"
	"github.com/ammerola/inventory-bot/internal/core/ports"
	"github.com/ammerola/inventory-bot/internal/core/services"
	"github.com/ammerola/inventory-bot/internal/handlers"
	"github.com/ammerola/inventory-bot/internal/handlers/middleware"
	"github.com/ammerola/inventory-bot/internal/pkg/config"
	"github.com/ammerola/inventory-bot/internal/pkg/logger"
	"github.com/ammerola/inventory-bot/internal/workers"
)

// Build information injected at compile time
var (
	Version   = "dev"
	BuildTime = "unknown"
	GoVersion = "unknown"
)

const maxImportSize = 10 << 20

func main() {
	slogger := logger.SetupLogger("debug", "json").Logger

	slogger.Info("starting inventory bot",
		slog.String("version", Version),
		slog.String("build_time", BuildTime),
		slog.String("go_version", GoVersion),
	)

	cfg, err := config.Load(slogger)
	if err != nil {
		slogger.Error("failed to load configuration", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slogger = logger.SetupLogger(cfg.App.LogLevel, cfg.App.LogFormat).Logger
	slogger.Info("configuration loaded",
		slog.String("environment", cfg.App.Environment),
		slog.String("store_driver", cfg.Bot.StoreDriver),
		slog.Bool("redis", cfg.Redis.Enabled),
		slog.Bool("asynq", cfg.Asynq.Enabled),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	secrets, err := config.NewSecretsManager(ctx, cfg, slogger)
	if err != nil {
		slogger.Error("failed to initialize secrets manager", slog.String("error", err.Error()))
		os.Exit(1)
	}
	if err := cfg.ResolveBotToken(ctx, secrets); err != nil {
		slogger.Error("failed to resolve bot token", slog.String("error", err.Error()))
		os.Exit(1)
	}

	deps, err := initializeDependencies(ctx, cfg, slogger)
	if err != nil {
		slogger.Error("failed to initialize dependencies", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer deps.cleanup()

	go deps.engine.RunJanitor(ctx, cfg.Bot.SessionSweepInterval)

	server := setupHTTPServer(cfg, deps, slogger)

	serverErrors := make(chan error, 1)
	go func() {
		slogger.Info("starting HTTP server",
			slog.String("address", cfg.GetServerAddress()),
			slog.String("webhook", cfg.Bot.WebhookPath),
			slog.Bool("tls", cfg.Server.TLSEnabled),
		)

		if cfg.Server.TLSEnabled {
			serverErrors <- server.ListenAndServeTLS(cfg.Server.TLSCertFile, cfg.Server.TLSKeyFile)
		} else {
			serverErrors <- server.ListenAndServe()
		}
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM, syscall.SIGQUIT)

	select {
	case err := <-serverErrors:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			slogger.Error("server error", slog.String("error", err.Error()))
		}
	case sig := <-shutdown:
		slogger.Info("shutdown signal received", slog.String("signal", sig.String()))

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.GracefulTimeout)
		defer shutdownCancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			slogger.Error("failed to gracefully shutdown server", slog.String("error", err.Error()))
			server.Close()
		}

		slogger.Info("server shutdown complete")
	}
}

// dependencies holds all application dependencies
type dependencies struct {
	database       *db.Database
	redisClient    *redis.Client
	asynqClient    *asynq.Client
	asynqInspector *asynq.Inspector
	engine         *services.Engine
	webhookHandler *handlers.WebhookHandler
	healthHandler  *handlers.HealthHandler
	importHandler  *handlers.ImportHandler
}

func (d *dependencies) cleanup() {
	if d.database != nil {
		d.database.Close()
	}
	if d.redisClient != nil {
		d.redisClient.Close()
	}
	if d.asynqClient != nil {
		d.asynqClient.Close()
	}
	if d.asynqInspector != nil {
		d.asynqInspector.Close()
	}
}

func initializeDependencies(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*dependencies, error) {
	deps := &dependencies{}

	repo, err := openDocumentRepository(ctx, cfg, deps, logger)
	if err != nil {
		return nil, err
	}

	store := services.NewInventoryService(repo, logger)
	if _, err := store.EnsureAdmins(ctx, cfg.Bot.BootstrapAdmins); err != nil {
		return nil, fmt.Errorf("failed to seed bootstrap admins: %w", err)
	}

	gate := services.NewAdminGate(store, logger)
	sessions := services.NewMemorySessionStore(cfg.Bot.SessionTTL, logger)
	deps.engine = services.NewEngine(store, gate, sessions, logger)
	reports := services.NewReportService(store, logger)

	var (
		guard    ports.DeliveryGuard
		throttle ports.Throttle
		exports  []handlers.ExportOption
	)

	if cfg.Redis.Enabled {
		logger.Info("connecting to Redis", slog.String("address", cfg.GetRedisAddress()))

		redisClient := redis.NewClient(&redis.Options{
			Addr:         cfg.GetRedisAddress(),
			Password:     cfg.Redis.Password,
			DB:           cfg.Redis.DB,
			DialTimeout:  cfg.Redis.DialTimeout,
			ReadTimeout:  cfg.Redis.ReadTimeout,
			WriteTimeout: cfg.Redis.WriteTimeout,
			PoolSize:     cfg.Redis.PoolSize,
			MinIdleConns: cfg.Redis.MinIdleConns,
		})
		if err := redisClient.Ping(ctx).Err(); err != nil {
			redisClient.Close()
			return nil, fmt.Errorf("failed to connect to Redis: %w", err)
		}
		deps.redisClient = redisClient

		cache := redis_a.NewCache(redisClient, cfg.Security.DedupeTTL, logger)
		guard = redis_a.NewDeliveryGuard(cache, cfg.Security.DedupeTTL, logger)
		throttle = redis_a.NewThrottle(cache, cfg.Security.RequesterLimit, cfg.Security.RequesterWindow, logger)
		exports = append(exports, handlers.WithExportDedupe(cache, 0))
	}

	var healthInspector handlers.QueueInspector
	if cfg.Asynq.Enabled {
		logger.Info("initializing Asynq client", slog.String("queue", cfg.Asynq.Queue))

		redisOpt := asynq.RedisClientOpt{
			Addr:     cfg.Asynq.RedisAddr,
			Password: cfg.Asynq.RedisPassword,
			DB:       cfg.Asynq.RedisDB,
		}
		deps.asynqClient = asynq.NewClient(redisOpt)
		deps.asynqInspector = asynq.NewInspector(redisOpt)
		healthInspector = deps.asynqInspector

		taskClient := workers.NewTaskClient(deps.asynqClient, cfg.Asynq.Queue, logger)
		exports = append(exports, handlers.WithTaskQueue(taskClient))

		backups, err := openBackupStorage(ctx, cfg, logger)
		if err != nil {
			return nil, err
		}
		deps.importHandler = handlers.NewImportHandler(taskClient, deps.asynqInspector, backups, gate, cfg.Asynq.Queue, maxImportSize, logger)
	}

	dispatcher := handlers.NewDispatcher(
		deps.engine,
		gate,
		handlers.NewQueryHandler(store, reports, logger),
		handlers.NewExportHandler(reports, logger, exports...),
		logger,
	)
	deps.webhookHandler = handlers.NewWebhookHandler(dispatcher, guard, throttle, logger)

	var database ports.Database
	if deps.database != nil {
		database = deps.database
	}
	deps.healthHandler = handlers.NewHealthHandler(store, database, deps.redisClient, healthInspector, cfg, logger)

	logger.Info("all dependencies initialized successfully")
	return deps, nil
}

func openDocumentRepository(ctx context.Context, cfg *config.Config, deps *dependencies, logger *slog.Logger) (ports.DocumentRepository, error) {
	if cfg.Bot.StoreDriver != config.StoreDriverPostgres {
		logger.Info("using file document store", slog.String("path", cfg.Bot.DataFile))
		return filestore.NewDocumentStore(cfg.Bot.DataFile, logger)
	}

	logger.Info("connecting to database",
		slog.String("host", cfg.Database.Host),
		slog.String("database", cfg.Database.Name),
	)

	database, err := db.NewDatabase(ctx, &db.Config{
		Host:               cfg.Database.Host,
		Port:               cfg.Database.Port,
		User:               cfg.Database.User,
		Password:           cfg.Database.Password,
		Database:           cfg.Database.Name,
		SSLMode:            cfg.Database.SSLMode,
		MaxConnections:     cfg.Database.MaxConnections,
		MinConnections:     cfg.Database.MinConnections,
		MaxConnLifetime:    cfg.Database.MaxConnLifetime,
		MaxConnIdleTime:    cfg.Database.MaxConnIdleTime,
		HealthCheckPeriod:  cfg.Database.HealthCheckPeriod,
		ConnectTimeout:     cfg.Database.ConnectTimeout,
		EnableQueryLogging: cfg.Database.EnableQueryLogging,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	deps.database = database

	if err := db.RunMigrationsWithRetry(ctx, database.SQL(), logger, 3); err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return db.NewDocumentRepository(database.SQL(), logger, db.WithDocumentName(cfg.Database.DocumentName)), nil
}

func openBackupStorage(ctx context.Context, cfg *config.Config, logger *slog.Logger) (ports.BackupStorage, error) {
	if cfg.Storage.Driver == config.StorageDriverS3 {
		s3, err := storage.NewS3Storage(ctx, &storage.S3Config{
			Region:          cfg.AWS.Region,
			Bucket:          cfg.AWS.S3Bucket,
			AccessKeyID:     cfg.AWS.AccessKeyID,
			SecretAccessKey: cfg.AWS.SecretAccessKey,
			Endpoint:        cfg.AWS.S3Endpoint,
			UsePathStyle:    cfg.AWS.UsePathStyle,
		}, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize S3 storage: %w", err)
		}
		return s3, nil
	}

	local, err := storage.NewLocalStorage(cfg.Storage.LocalDir, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize local storage: %w", err)
	}
	return local, nil
}

func setupHTTPServer(cfg *config.Config, deps *dependencies, logger *slog.Logger) *http.Server {
	mux := http.NewServeMux()

	var handler http.Handler = mux

	// innermost first
	if cfg.App.Environment != "test" {
		handler = middleware.RequestID(handler)
		handler = middleware.Logger(logger)(handler)
		handler = middleware.Recovery(logger)(handler)
	}

	if cfg.Security.RateLimitRequests > 0 {
		handler = middleware.RateLimit(cfg.Security.RateLimitRequests, cfg.Security.RateLimitDuration)(handler)
	}

	if len(cfg.Security.AllowedOrigins) > 0 {
		handler = middleware.CORS(cfg.Security.AllowedOrigins)(handler)
	}

	if cfg.Security.SecureHeaders {
		handler = middleware.SecureHeaders(handler)
	}

	registerRoutes(mux, deps, cfg)

	return &http.Server{
		Addr:         cfg.GetServerAddress(),
		Handler:      handler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
		ErrorLog:     slog.NewLogLogger(logger.Handler(), slog.LevelError),
	}
}

func registerRoutes(mux *http.ServeMux, deps *dependencies, cfg *config.Config) {
	apiV1 := "/api/v1"
	authorized := middleware.BotToken(cfg.Bot.Token)

	mux.HandleFunc("GET /health", deps.healthHandler.Health)
	mux.HandleFunc("GET /ready", deps.healthHandler.Readiness)
	mux.HandleFunc("GET "+apiV1+"/health", deps.healthHandler.Health)

	webhook := middleware.ContentTypeJSON(http.HandlerFunc(deps.webhookHandler.HandleEvent))
	mux.Handle("POST "+cfg.Bot.WebhookPath, middleware.Timeout(cfg.Server.HandlerTimeout)(authorized(webhook)))

	if deps.importHandler != nil {
		mux.Handle("POST "+apiV1+"/import/xlsx", authorized(http.HandlerFunc(deps.importHandler.ImportExcel)))
		mux.Handle("GET "+apiV1+"/import/{jobId}", authorized(http.HandlerFunc(deps.importHandler.ImportStatus)))
	}
}
