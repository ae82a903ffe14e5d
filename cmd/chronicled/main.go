package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/meridianotes/chronicle/internal/config"
	"github.com/meridianotes/chronicle/internal/database"
	"github.com/meridianotes/chronicle/internal/logger"
	"github.com/meridianotes/chronicle/internal/repository"
	"github.com/meridianotes/chronicle/internal/service"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	log := logger.New(cfg.Log.Level, cfg.Log.Format)
	log.Info().Str("version", "0.1.0").Msg("starting chronicled")

	// Open storage
	var port database.Port
	switch cfg.Storage.Driver {
	case "postgres":
		db, err := database.NewPostgres(cfg.Storage.Postgres)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to connect to database")
		}
		defer db.Close()
		port = db
		log.Info().Msg("connected to PostgreSQL")
	case "sqlite":
		db, err := database.NewSQLite(cfg.Storage.Path)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to open database")
		}
		defer db.Close()
		port = db
		log.Info().Str("path", cfg.Storage.Path).Msg("opened SQLite database")
	default:
		log.Fatal().Str("driver", cfg.Storage.Driver).Msg("unknown storage driver")
	}

	// Connect to Redis (optional, used for the sweep lease)
	var rdb *database.Redis
	if cfg.Redis.Enabled {
		rdb, err = database.NewRedis(cfg.Redis)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to connect to Redis")
		}
		defer rdb.Close()
		log.Info().Msg("connected to Redis")
	}

	// Initialize repositories
	auditRepo := repository.NewAuditRepository(port)
	undoRepo := repository.NewUndoRepository(port)

	// Initialize services
	auditSvc := service.NewAuditService(auditRepo, cfg, log)
	defer auditSvc.Close()
	undoSvc := service.NewUndoService(undoRepo, cfg, log)
	sessionSvc := service.NewSessionService(auditRepo, undoSvc, log)
	sweeper := service.NewSweeper(auditSvc, sessionSvc, rdb, cfg, log)

	// Run maintenance sweeps until shutdown
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	sweeper.Run(ctx)
	log.Info().Msg("chronicled stopped")
}
