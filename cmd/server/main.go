package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	apihttp "moviefinder/internal/api/http"
	"moviefinder/internal/app"
	"moviefinder/internal/domain/ports"
	"moviefinder/internal/metrics"
	"moviefinder/internal/providers/tmdb"
	"moviefinder/internal/telemetry"
	"moviefinder/internal/usecase"
)

const serviceName = "moviefinder"

var version = "dev"

func main() {
	cfg := app.LoadConfig()
	logger := newLogger(cfg.LogLevel, cfg.LogFormat)
	slog.SetDefault(logger)
	metrics.Register(prometheus.DefaultRegisterer)

	shutdownTracer, err := telemetry.Init(context.Background(), telemetry.Options{
		ServiceName: serviceName,
		Version:     version,
		Endpoint:    cfg.OTELEndpoint,
		SampleRatio: cfg.OTELSampleRatio,
	})
	if err != nil {
		logger.Warn("otel init failed", slog.String("error", err.Error()))
	}
	defer func() {
		if shutdownTracer != nil {
			_ = shutdownTracer(context.Background())
		}
	}()

	logger.Info("configuration loaded",
		slog.String("service", serviceName),
		slog.String("httpAddr", cfg.HTTPAddr),
		slog.String("logLevel", cfg.LogLevel),
		slog.String("storeBackend", cfg.StoreBackend),
		slog.String("counterBackend", cfg.CounterBackend),
		slog.Bool("hasRedis", cfg.RedisURL != ""),
		slog.Bool("hasTMDBKey", cfg.TMDBAPIKey != ""),
		slog.Duration("debounce", cfg.DebounceQuiet),
	)

	rootCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	redisClient := buildRedisClient(rootCtx, cfg, logger)
	if redisClient != nil {
		defer redisClient.Close()
	}

	stores, err := buildStores(rootCtx, cfg, redisClient, logger)
	if err != nil {
		logger.Error("store init failed",
			slog.String("backend", cfg.StoreBackend),
			slog.String("error", err.Error()),
		)
		os.Exit(1)
	}
	defer stores.Close()

	recorder := usecase.NewSearchRecorder(stores.Counters,
		usecase.WithRecorderLogger(logger),
		usecase.WithRecorderTimeout(cfg.StoreTimeout),
	)
	trending := usecase.NewTrendingRanker(recorder)
	catalog := buildCatalog(cfg, redisClient, logger)
	favorites := usecase.NewFavorites(stores.Favorites,
		usecase.WithFavoritesLogger(logger),
		usecase.WithFavoritesTimeout(cfg.StoreTimeout),
		usecase.WithFavoritesCatalog(catalog),
	)

	serverOpts := []apihttp.ServerOption{
		apihttp.WithLogger(logger),
		apihttp.WithTrending(trending),
		apihttp.WithFavorites(favorites),
		apihttp.WithDebounce(cfg.DebounceQuiet, nil),
		apihttp.WithCORSOrigins(cfg.CORSAllowedOrigins),
		apihttp.WithRateLimit(float64(cfg.HTTPRateLimitRPS), cfg.HTTPRateLimitBurst),
	}
	if catalog != nil {
		serverOpts = append(serverOpts,
			apihttp.WithHome(usecase.NewHome(catalog, trending)),
			apihttp.WithSearch(usecase.NewSearchMovies(catalog, recorder)),
			apihttp.WithDetails(usecase.NewDetails(catalog, favorites)),
		)
	} else {
		logger.Warn("TMDB_API_KEY not set, catalog endpoints disabled")
	}

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           apihttp.NewServer(serverOpts...).Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		// Live-search websockets stay open; handlers bound their own work.
		WriteTimeout: 0,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	logger.Info("server started", slog.String("addr", cfg.HTTPAddr))

	select {
	case <-rootCtx.Done():
		logger.Info("shutdown signal received")
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", slog.String("error", err.Error()))
			os.Exit(1)
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http shutdown error", slog.String("error", err.Error()))
	}
	logger.Info("server stopped")
}

func buildRedisClient(ctx context.Context, cfg app.Config, logger *slog.Logger) *redis.Client {
	redisURL := strings.TrimSpace(cfg.RedisURL)
	if redisURL == "" {
		return nil
	}
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		logger.Warn("invalid redis url, redis disabled", slog.String("error", err.Error()))
		return nil
	}
	client := redis.NewClient(opts)
	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		logger.Warn("redis not reachable, redis disabled", slog.String("error", err.Error()))
		_ = client.Close()
		return nil
	}
	logger.Info("redis connected", slog.String("addr", opts.Addr))
	return client
}

// buildCatalog returns nil when no API key is configured.
func buildCatalog(cfg app.Config, redisClient *redis.Client, logger *slog.Logger) ports.Catalog {
	if cfg.TMDBAPIKey == "" {
		return nil
	}
	return tmdb.NewClient(tmdb.Config{
		APIKey:    cfg.TMDBAPIKey,
		BaseURL:   cfg.TMDBBaseURL,
		Language:  cfg.TMDBLanguage,
		Timeout:   cfg.CatalogTimeout,
		Redis:     redisClient,
		CacheTTL:  cfg.CatalogTTL,
		RateLimit: float64(cfg.TMDBRateLimit),
		Logger:    logger,
	})
}

func newLogger(levelRaw, formatRaw string) *slog.Logger {
	level := parseLogLevel(levelRaw)
	options := &slog.HandlerOptions{Level: level}
	format := strings.ToLower(strings.TrimSpace(formatRaw))
	if format == "json" {
		return slog.New(slog.NewJSONHandler(os.Stdout, options))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, options))
}

func parseLogLevel(raw string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
