// cmd/seeder/main.go
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/ammerola/inventory-bot/internal/adapters/db"
	"github.com/ammerola/inventory-bot/internal/adapters/filestore"
	"github.com/ammerola/inventory-bot/internal/core/domain"
	"github.com/ammerola/inventory-bot/internal/core/ports"
	"github.com/ammerola/inventory-bot/internal/core/services"
	"github.com/ammerola/inventory-bot/internal/pkg/config"
	"github.com/ammerola/inventory-bot/internal/pkg/logger"
	"github.com/ammerola/inventory-bot/internal/workers"
)

func main() {
	var (
		dataFile  = flag.String("data", "", "Document file to seed (overrides BOT_DATA_FILE, file driver only)")
		admins    = flag.String("admins", "", "Comma separated admin ids to seed into an empty registry")
		xlsxFile  = flag.String("xlsx", "", "Spreadsheet of products to import")
		restore   = flag.String("restore", "", "JSON backup to restore before anything else")
		threshold = flag.Int("threshold", -1, "Low stock threshold to set (negative leaves it unchanged)")
		logLevel  = flag.String("log-level", "info", "Log level (debug, info, warn, error)")
	)
	flag.Parse()

	slogger := logger.SetupLogger(*logLevel, "text").Logger

	cfg, err := config.Load(slogger)
	if err != nil {
		slogger.Error("failed to load configuration", slog.String("error", err.Error()))
		os.Exit(1)
	}
	if *dataFile != "" {
		cfg.Bot.DataFile = *dataFile
	}

	ctx := context.Background()

	repo, closeRepo, err := openDocumentRepository(ctx, cfg, slogger)
	if err != nil {
		slogger.Error("failed to open document repository", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer closeRepo()

	if *restore != "" {
		if err := restoreBackup(ctx, repo, *restore); err != nil {
			slogger.Error("failed to restore backup", slog.String("file", *restore), slog.String("error", err.Error()))
			os.Exit(1)
		}
		fmt.Printf("Restored backup from %s\n", *restore)
	}

	store := services.NewInventoryService(repo, slogger)

	ids := cfg.Bot.BootstrapAdmins
	if *admins != "" {
		ids, err = parseAdmins(*admins)
		if err != nil {
			slogger.Error("invalid -admins", slog.String("error", err.Error()))
			os.Exit(1)
		}
	}
	added, err := store.EnsureAdmins(ctx, ids)
	if err != nil {
		slogger.Error("failed to seed admins", slog.String("error", err.Error()))
		os.Exit(1)
	}
	fmt.Printf("Admins seeded: %d\n", added)

	if *threshold >= 0 {
		if err := store.SetThreshold(ctx, *threshold); err != nil {
			slogger.Error("failed to set threshold", slog.String("error", err.Error()))
			os.Exit(1)
		}
		fmt.Printf("Low stock threshold: %d\n", *threshold)
	}

	if *xlsxFile != "" {
		result, err := workers.NewExcelImporter(store, slogger).ImportFile(ctx, *xlsxFile)
		if err != nil {
			slogger.Error("failed to import spreadsheet", slog.String("file", *xlsxFile), slog.String("error", err.Error()))
			os.Exit(1)
		}

		fmt.Println(strings.Repeat("=", 40))
		fmt.Printf("Products added:   %d\n", result.Added)
		fmt.Printf("Existing skipped: %d\n", result.Skipped)
		fmt.Printf("Invalid rows:     %d\n", result.Invalid)
		for _, e := range result.Errors {
			fmt.Printf("  - %s\n", e)
		}
	}

	slogger.Info("seed operation completed", slog.String("store_driver", cfg.Bot.StoreDriver))
}

func parseAdmins(s string) ([]int64, error) {
	var ids []int64
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := domain.ParseIdentity(part)
		if err != nil {
			return nil, fmt.Errorf("%q: %w", part, err)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func restoreBackup(ctx context.Context, repo ports.DocumentRepository, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	doc, _, err := domain.DecodeDocument(data)
	if err != nil {
		return err
	}

	// the restored document replaces whatever is stored at the current version
	current, err := repo.Load(ctx)
	if err != nil {
		return err
	}
	doc.Version = current.Version
	return repo.Save(ctx, doc)
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
		Host:              cfg.Database.Host,
		Port:              cfg.Database.Port,
		User:              cfg.Database.User,
		Password:          cfg.Database.Password,
		Database:          cfg.Database.Name,
		SSLMode:           cfg.Database.SSLMode,
		MaxConnections:    2,
		MinConnections:    1,
		MaxConnLifetime:   cfg.Database.MaxConnLifetime,
		MaxConnIdleTime:   cfg.Database.MaxConnIdleTime,
		HealthCheckPeriod: cfg.Database.HealthCheckPeriod,
		ConnectTimeout:    cfg.Database.ConnectTimeout,
	}, logger)
	if err != nil {
		return nil, nil, err
	}

	if err := db.RunMigrationsWithRetry(ctx, database.SQL(), logger, 1); err != nil {
		database.Close()
		return nil, nil, err
	}

	return db.NewDocumentRepository(database.SQL(), logger, db.WithDocumentName(cfg.Database.DocumentName)), database.Close, nil
}
