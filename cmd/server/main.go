package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/skin-lesion-advisor/internal/api"
	"github.com/skin-lesion-advisor/internal/cache"
	"github.com/skin-lesion-advisor/internal/config"
	"github.com/skin-lesion-advisor/internal/database"
	"github.com/skin-lesion-advisor/internal/inference"
	"github.com/skin-lesion-advisor/internal/reporting"
	"github.com/skin-lesion-advisor/internal/results"
	"github.com/skin-lesion-advisor/internal/service"
)

func main() {
	// .env is optional
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Printf("Failed to read .env file: %v", err)
	}

	// Load configuration
	configManager, err := config.NewManager()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Validate configuration
	if err := configManager.Validate(); err != nil {
		log.Fatalf("Configuration validation failed: %v", err)
	}

	cfg := configManager.GetConfig()

	logger, err := config.NewLogger(cfg.Logging)
	if err != nil {
		log.Fatalf("Failed to configure logging: %v", err)
	}

	// Setup graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, configManager, logger); err != nil {
		logger.WithError(err).Fatal("Server failed")
	}

	logger.Info("Server stopped")
}

func run(ctx context.Context, configManager *config.Manager, logger *logrus.Logger) error {
	cfg := configManager.GetConfig()

	catalog, err := service.LoadCatalog(cfg.Catalog.Path)
	if err != nil {
		return err
	}
	logger.WithField("conditions", catalog.Len()).Info("Condition catalog loaded")

	deps := api.Dependencies{
		Catalog:   catalog,
		Resolver:  service.NewResolver(logger, catalog),
		Inference: inference.NewClient(cfg.Inference, logger),
		Verifier:  api.NewTokenVerifier(cfg.Auth.JWTSecret),
		Logger:    logger,
	}

	store, db, err := openStore(ctx, configManager, logger)
	if err != nil {
		return err
	}
	defer store.Close()
	if db != nil {
		defer db.Close()
		deps.Database = db
	}
	deps.Store = store

	summaryCache, err := cache.New(cfg.Cache)
	if err != nil {
		return fmt.Errorf("failed to create cache: %w", err)
	}
	defer summaryCache.Close()

	statistics := reporting.NewStatisticsService(store, summaryCache, catalog, logger, cfg.Cache.TTL,
		reporting.WithRecentWindow(cfg.Reporting.RecentWindow))
	if err := statistics.StartWarmer(ctx, cfg.Reporting.WarmSchedule); err != nil {
		return fmt.Errorf("failed to start statistics warmer: %w", err)
	}
	defer statistics.Stop()
	deps.Statistics = statistics

	logger.WithFields(logrus.Fields{
		"host":        cfg.Server.Host,
		"port":        cfg.Server.Port,
		"environment": cfg.Environment,
		"driver":      cfg.Database.Driver,
	}).Info("Starting skin lesion advisor API")

	return api.NewServer(configManager, deps).Start(ctx)
}

// openStore opens the results store selected by the database driver. For
// postgres the schema is migrated first and a pgx pool is kept for health checks.
func openStore(ctx context.Context, configManager *config.Manager, logger *logrus.Logger) (results.Store, *database.DB, error) {
	dbCfg := configManager.GetDatabaseConfig()

	if dbCfg.Driver != "postgres" {
		store, err := results.NewSQLiteStore(dbCfg.SQLitePath)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open sqlite results store: %w", err)
		}
		logger.WithField("path", dbCfg.SQLitePath).Info("Using SQLite results store")
		return store, nil, nil
	}

	databaseURL := configManager.GetDatabaseURL()

	runner, err := database.NewMigrationRunner(databaseURL, dbCfg.MigrationsPath, logger)
	if err != nil {
		return nil, nil, err
	}
	migrateErr := runner.Up(ctx)
	if err := runner.Close(); err != nil {
		logger.WithError(err).Warn("Failed to close migration runner")
	}
	if migrateErr != nil {
		return nil, nil, migrateErr
	}

	db, err := database.NewConnection(ctx, database.ConfigFrom(*dbCfg), logger)
	if err != nil {
		return nil, nil, err
	}

	store, err := results.NewPostgresStoreFromURL(databaseURL, *dbCfg)
	if err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("failed to open postgres results store: %w", err)
	}

	return store, db, nil
}
