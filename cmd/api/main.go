package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/contrib/otelfiber"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	_ "github.com/joho/godotenv/autoload"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"photostore/internal/cache"
	"photostore/internal/config"
	"photostore/internal/database"
	"photostore/internal/database/migration"
	handlers "photostore/internal/http/handler"
	"photostore/internal/http/middleware"
	"photostore/internal/otel"
	"photostore/internal/quota"
	"photostore/internal/repository/postgres"
	"photostore/internal/service"
	"photostore/internal/storage"
)

func main() {
	log := zerolog.New(os.Stdout).With().Timestamp().Logger()

	// Load configuration from environment variables (.env auto-loaded if present)
	cfg := config.Load()

	ctx := context.Background()

	shutdownTracing, err := otel.Init(ctx, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize tracing")
	}

	// PostgreSQL connection with pooling via database/sql
	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer db.Close()

	if err := migration.EnsureMigrated(ctx, db, log); err != nil {
		log.Fatal().Err(err).Msg("failed to migrate database schema")
	}

	backend, err := newBackend(cfg)
	if err != nil {
		log.Fatal().Err(err).Str("backend", cfg.Storage.Backend).Msg("failed to initialize storage backend")
	}
	log.Info().Str("backend", cfg.Storage.Backend).Msg("storage backend ready")

	photoRepo := postgres.NewPhotoPostgres(db)
	photoCache := cache.New(cfg.Cache.MaxEntries, time.Duration(cfg.Cache.TTLMinutes)*time.Minute)
	tracker := quota.New(photoRepo, cfg.Storage.CapacityBytes)
	photoSvc := service.NewPhotoService(backend, photoRepo, photoCache, tracker, cfg, log)

	retention := service.NewRetentionScheduler(photoSvc, cfg.Retention, log)
	if err := retention.Start(); err != nil {
		log.Fatal().Err(err).Msg("failed to start retention scheduler")
	}

	app := fiber.New(fiber.Config{
		ErrorHandler: handlers.ErrorHandler(),
		BodyLimit:    int(cfg.Storage.MaxFileSizeBytes) * cfg.Storage.MaxFilesPerUpload,
	})

	promMiddleware, err := middleware.NewPrometheusMiddleware(prometheus.DefaultRegisterer)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to register http metrics")
	}

	app.Use(middleware.RequestID())
	app.Use(middleware.Logger(log))
	app.Use(otelfiber.Middleware())
	app.Use(promMiddleware.Handler())

	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	handlers.RegisterRoutes(app, db, photoSvc)

	go func() {
		if err := app.Listen(":" + cfg.Port); err != nil {
			log.Fatal().Err(err).Msg("failed to start server")
		}
	}()
	log.Info().Str("port", cfg.Port).Msg("server started")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down")
	retention.Stop()
	if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
		log.Error().Err(err).Msg("server shutdown failed")
	}
	if err := shutdownTracing(ctx); err != nil {
		log.Error().Err(err).Msg("tracing shutdown failed")
	}
}

func newBackend(cfg *config.AppConfig) (storage.Backend, error) {
	if cfg.Storage.Backend == "minio" {
		return storage.NewMinIO(cfg.MinIO)
	}
	return storage.NewFilesystem(cfg.Storage.BasePath)
}
