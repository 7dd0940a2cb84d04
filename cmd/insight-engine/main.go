package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/counselkit/insight-engine/internal/app"
	"github.com/counselkit/insight-engine/internal/ingest"
	"github.com/counselkit/insight-engine/internal/observability"
	"github.com/counselkit/insight-engine/internal/platform/config"
	db "github.com/counselkit/insight-engine/internal/storage"
)

func main() {
	mode := flag.String("mode", "worker", "Service mode (worker, analyze, import)")
	file := flag.String("file", "", "JSONL transcript export to import (import mode)")

	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger := newLogger(cfg.AppEnv)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	poolOpts := db.PoolOptions{
		MaxConns:          cfg.DBMaxConnections,
		MinConns:          cfg.DBMinConnections,
		MaxConnIdleTime:   cfg.DBMaxConnIdleTime,
		MaxConnLifetime:   cfg.DBMaxConnLifetime,
		HealthCheckPeriod: cfg.DBHealthCheckPeriod,
	}

	database, err := db.NewWithOptions(ctx, cfg.PostgresDSN, poolOpts, &logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer database.Close()

	if err := database.Migrate(ctx); err != nil {
		logger.Fatal().Err(err).Msg("failed to run migrations")
	}

	engine := app.New(cfg, database, &logger)

	go func() {
		server := observability.NewServer(database.Pool, cfg.MetricsPort, &logger)
		if err := server.Start(ctx); err != nil {
			logger.Error().Err(err).Msg("metrics server error")
		}
	}()

	if err := runMode(ctx, engine, &logger, *mode, *file); err != nil {
		if errors.Is(err, context.Canceled) {
			logger.Info().Msg("engine stopped")
			return
		}

		logger.Fatal().Err(err).Msg("engine error")
	}
}

func newLogger(appEnv string) zerolog.Logger {
	if appEnv == "local" {
		return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).With().Timestamp().Logger()
	}

	return zerolog.New(os.Stderr).With().Timestamp().Logger()
}

func runMode(ctx context.Context, engine *app.Engine, logger *zerolog.Logger, mode, file string) error {
	switch mode {
	case "worker":
		return engine.RunAnalysisLoop(ctx)
	case "analyze":
		return engine.RunAnalysisOnce(ctx)
	case "import":
		if file == "" {
			return errors.New("import mode requires --file")
		}

		_, err := ingest.NewImporter(engine, logger).ImportFile(ctx, file)

		return err
	default:
		log.Fatalf("Usage: %s --mode=[worker|analyze|import]", os.Args[0])

		return nil
	}
}
