// cmd/worker/main.go
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"github.com/ammerola/inventory-bot/internal/adapters/db"
	"github.com/ammerola/inventory-bot/internal/adapters/filestore"
	"github.com/ammerola/inventory-bot/internal/adapters/storage"
	"github.com/ammerola/inventory-bot/internal/core/ports"
	"github.com/ammerola/inventory-bot/internal/core/services"
	"github.com/ammerola/inventory-bot/internal/pkg/config"
	"github.com/ammerola/inventory-bot/internal/pkg/logger"
	"github.com/ammerola/inventory-bot/internal/workers"
)

func main() {
	slogger := logger.SetupLogger("info", "json").Logger

	cfg, err := config.Load(slogger)
	if err != nil {
		slogger.Error("failed to load configuration", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slogger = logger.SetupLogger(cfg.App.LogLevel, cfg.App.LogFormat).Logger
	slogger.Info("starting worker",
		slog.String("environment", cfg.App.Environment),
		slog.String("redis_addr", cfg.Asynq.RedisAddr),
		slog.String("store_driver", cfg.Bot.StoreDriver))

	ctx := context.Background()

	repo, closeRepo, err := openDocumentRepository(ctx, cfg, slogger)
	if err != nil {
		slogger.Error("failed to open document repository", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer closeRepo()

	backups, err := openBackupStorage(ctx, cfg, slogger)
	if err != nil {
		slogger.Error("failed to initialize backup storage", slog.String("error", err.Error()))
		os.Exit(1)
	}

	store := services.NewInventoryService(repo, slogger)
	reports := services.NewReportService(store, slogger)

	redisOpt := asynq.RedisClientOpt{
		Addr:     cfg.Asynq.RedisAddr,
		Password: cfg.Asynq.RedisPassword,
		DB:       cfg.Asynq.RedisDB,
	}

	srv := asynq.NewServer(redisOpt, asynq.Config{
		Concurrency:     cfg.Asynq.Concurrency,
		Queues:          cfg.Asynq.Queues,
		StrictPriority:  cfg.Asynq.StrictPriority,
		ErrorHandler:    asynq.ErrorHandlerFunc(handleError),
		RetryDelayFunc:  exponentialBackoff,
		ShutdownTimeout: cfg.Asynq.ShutdownTimeout,
		HealthCheckFunc: healthCheck,
		Logger:          newAsynqLogger(slogger),
	})

	mux := asynq.NewServeMux()

	backupProcessor := workers.NewBackupProcessor(store, backups, slogger)
	mux.HandleFunc(workers.TypeBackupSnapshot, backupProcessor.ProcessBackup)

	reportProcessor := workers.NewReportProcessor(reports, backups, slogger)
	mux.HandleFunc(workers.TypeSpreadsheetReport, reportProcessor.ProcessSpreadsheet)

	cleanupProcessor := workers.NewCleanupProcessor(backups, cfg.Asynq.BackupRetention, slogger)
	mux.HandleFunc(workers.TypeBackupPrune, cleanupProcessor.PruneBackups)

	excelProcessor := workers.NewExcelProcessor(workers.NewExcelImporter(store, slogger), backups, slogger)
	mux.HandleFunc(workers.TypeExcelImport, excelProcessor.ProcessImport)

	scheduler, err := newScheduler(redisOpt, cfg, slogger)
	if err != nil {
		slogger.Error("failed to register scheduled tasks", slog.String("error", err.Error()))
		os.Exit(1)
	}

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		if err := srv.Run(mux); err != nil {
			slogger.Error("failed to run worker server", slog.String("error", err.Error()))
			shutdown <- syscall.SIGTERM
		}
	}()

	if scheduler != nil {
		if err := scheduler.Start(); err != nil {
			slogger.Error("failed to start scheduler", slog.String("error", err.Error()))
			os.Exit(1)
		}
	}

	slogger.Info("worker started successfully",
		slog.Int("concurrency", cfg.Asynq.Concurrency),
		slog.Any("queues", cfg.Asynq.Queues))

	sig := <-shutdown
	slogger.Info("shutdown signal received", slog.String("signal", sig.String()))

	if scheduler != nil {
		scheduler.Shutdown()
	}
	srv.Shutdown()
	slogger.Info("worker shutdown complete")
}

// newScheduler registers the periodic backup and retention tasks. It returns
// nil when neither cron expression is configured.
func newScheduler(redisOpt asynq.RedisClientOpt, cfg *config.Config, logger *slog.Logger) (*asynq.Scheduler, error) {
	if cfg.Asynq.BackupCron == "" && cfg.Asynq.RetentionCron == "" {
		return nil, nil
	}

	scheduler := asynq.NewScheduler(redisOpt, &asynq.SchedulerOpts{
		Location: time.UTC,
		Logger:   newAsynqLogger(logger),
		PostEnqueueFunc: func(info *asynq.TaskInfo, err error) {
			if err != nil {
				logger.Error("scheduled enqueue failed", slog.String("error", err.Error()))
				return
			}
			logger.Info("scheduled task enqueued",
				slog.String("task_id", info.ID),
				slog.String("type", info.Type))
		},
	})

	if cfg.Asynq.BackupCron != "" {
		task, err := workers.NewBackupTask(0)
		if err != nil {
			return nil, err
		}
		if _, err := scheduler.Register(cfg.Asynq.BackupCron, task, asynq.Queue(cfg.Asynq.Queue)); err != nil {
			return nil, fmt.Errorf("register backup cron %q: %w", cfg.Asynq.BackupCron, err)
		}
	}

	if cfg.Asynq.RetentionCron != "" {
		task, err := workers.NewPruneTask(cfg.Asynq.BackupRetention)
		if err != nil {
			return nil, err
		}
		if _, err := scheduler.Register(cfg.Asynq.RetentionCron, task, asynq.Queue("low")); err != nil {
			return nil, fmt.Errorf("register retention cron %q: %w", cfg.Asynq.RetentionCron, err)
		}
	}

	return scheduler, nil
}

func openDocumentRepository(ctx context.Context, cfg *config.Config, logger *slog.Logger) (ports.DocumentRepository, func(), error) {
	if cfg.Bot.StoreDriver != config.StoreDriverPostgres {
		store, err := filestore.NewDocumentStore(cfg.Bot.DataFile, logger)
		if err != nil {
			return nil, nil, err
		}
		return store, func() {}, nil
	}

	database, err := db.NewDatabase(ctx, &db.Config{
		Host:               cfg.Database.Host,
		Port:               cfg.Database.Port,
		User:               cfg.Database.User,
		Password:           cfg.Database.Password,
		Database:           cfg.Database.Name,
		SSLMode:            cfg.Database.SSLMode,
		MaxConnections:     4, // fewer connections for worker
		MinConnections:     1,
		MaxConnLifetime:    cfg.Database.MaxConnLifetime,
		MaxConnIdleTime:    cfg.Database.MaxConnIdleTime,
		HealthCheckPeriod:  cfg.Database.HealthCheckPeriod,
		ConnectTimeout:     cfg.Database.ConnectTimeout,
		EnableQueryLogging: cfg.Database.EnableQueryLogging,
	}, logger)
	if err != nil {
		return nil, nil, err
	}

	return db.NewDocumentRepository(database.SQL(), logger, db.WithDocumentName(cfg.Database.DocumentName)), database.Close, nil
}

func openBackupStorage(ctx context.Context, cfg *config.Config, logger *slog.Logger) (ports.BackupStorage, error) {
	if cfg.Storage.Driver == config.StorageDriverS3 {
		return storage.NewS3Storage(ctx, &storage.S3Config{
			Region:          cfg.AWS.Region,
			Bucket:          cfg.AWS.S3Bucket,
			AccessKeyID:     cfg.AWS.AccessKeyID,
			SecretAccessKey: cfg.AWS.SecretAccessKey,
			Endpoint:        cfg.AWS.S3Endpoint,
			UsePathStyle:    cfg.AWS.UsePathStyle,
		}, logger)
	}
	return storage.NewLocalStorage(cfg.Storage.LocalDir, logger)
}

func handleError(ctx context.Context, task *asynq.Task, err error) {
	slog.ErrorContext(ctx, "task processing failed",
		slog.String("type", task.Type()),
		slog.String("payload", string(task.Payload())),
		slog.String("error", err.Error()))
}

func exponentialBackoff(n int, e error, t *asynq.Task) time.Duration {
	baseDelay := time.Second
	maxDelay := 10 * time.Minute
	delay := baseDelay * time.Duration(1<<uint(n))
	if delay > maxDelay {
		delay = maxDelay
	}
	return delay
}

func healthCheck(err error) {
	if err != nil {
		slog.Error("worker health check failed", slog.String("error", err.Error()))
	}
}

// asynqLogger adapts slog for Asynq
type asynqLogger struct {
	logger *slog.Logger
}

func newAsynqLogger(logger *slog.Logger) *asynqLogger {
	return &asynqLogger{
		logger: logger.With(slog.String("component", "asynq")),
	}
}

func (l *asynqLogger) Debug(args ...interface{}) {
	l.logger.Debug(fmt.Sprint(args...))
}

func (l *asynqLogger) Info(args ...interface{}) {
	l.logger.Info(fmt.Sprint(args...))
}

func (l *asynqLogger) Warn(args ...interface{}) {
	l.logger.Warn(fmt.Sprint(args...))
}

func (l *asynqLogger) Error(args ...interface{}) {
	l.logger.Error(fmt.Sprint(args...))
}

func (l *asynqLogger) Fatal(args ...interface{}) {
	l.logger.Error(fmt.Sprint(args...))
	os.Exit(1)
}
