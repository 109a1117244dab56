package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/afero"

	"fetcharr/internal/health"
	"fetcharr/internal/http/handlers"
	httpapi "fetcharr/internal/http/httpapi"
	"fetcharr/internal/infra"
	"fetcharr/internal/queue"
	"fetcharr/internal/search"
	"fetcharr/internal/source"
	"fetcharr/internal/source/gutendex"
	"fetcharr/internal/source/httpfetch"
	"fetcharr/internal/source/openlibrary"
)

func main() {
	// Load .env (optional)
	_ = godotenv.Load()

	cfg, err := infra.LoadConfig()
	if err != nil {
		panic(err)
	}
	logger := infra.NewLogger(cfg.AppEnv)

	fs := afero.NewOsFs()

	// Durable queue store + manager with crash recovery
	store, err := queue.NewStore(fs, filepath.Join(cfg.DataDir, "queue.json"))
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to open queue store")
	}

	// Static source list, enabled per config
	sources := []source.Source{
		gutendex.New(logger),
		openlibrary.New(logger),
	}
	fetchers := []source.Fetcher{
		httpfetch.New(fs, nil, []string{"gutendex", "openlibrary"}, logger),
	}
	registry := source.NewRegistry(sources, fetchers, cfg.EnabledSources)

	manager, err := queue.NewManager(store, registry, cfg.DownloadDir, cfg.QueueInterval, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to restore queue")
	}

	monitor := health.NewMonitor(registry, &http.Client{Timeout: cfg.ProbeTimeout}, fs, os.TempDir(), logger)
	manager.SetNotify(monitor.LogActivity)

	aggregator := search.NewAggregator(registry, monitor, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go manager.Run(ctx)
	monitor.RunStartupChecks(ctx, cfg.SourceEndpoints)

	app := handlers.NewApp(cfg, logger, registry, aggregator, manager, monitor)
	router := httpapi.NewRouter(app)
	server := infra.NewHTTPServer(cfg, router)

	go func() {
		logger.Info().Msgf("fetcharr listening on :%s", cfg.Port)
		if err := server.Start(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("http server failed")
		}
	}()

	<-ctx.Done()

	if err := server.Shutdown(context.Background()); err != nil {
		logger.Error().Err(err).Msg("failed to shutdown server")
	}
	logger.Info().Msg("server stopped")
}
