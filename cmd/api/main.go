package main

import (
	"context"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"linkbio/internal/httpapi"
	"linkbio/internal/obs"
	"linkbio/internal/page"
	"linkbio/internal/ratelimit"
	"linkbio/pkg/blobstore"
	"linkbio/pkg/config"
	"linkbio/pkg/db"
)

func main() {
	cfg := config.Load()
	logger := newLogger(cfg)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	conn, err := db.Open(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("db open failed")
	}
	defer conn.Close()

	if cfg.RunMigrations {
		if err := db.Migrate(cfg.MigrationsPath, cfg); err != nil {
			logger.Fatal().Err(err).Msg("migrate failed")
		}
		logger.Info().Msg("migrations applied")
	}

	blobs, err := blobstore.OpenBbolt(cfg.BlobPath)
	if err != nil {
		logger.Fatal().Err(err).Str("path", cfg.BlobPath).Msg("blob store open failed")
	}
	defer blobs.Close()

	rateStore, err := newRateStore(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("rate limit store unavailable")
	}

	// Periodic sweeps: one loop evicts lapsed rate windows for every scope
	// sharing the store (no-op on Redis, which expires natively); another
	// clears long-dead preview tokens.
	janitor := ratelimit.New(rateStore, ratelimit.Config{Scope: "janitor", Window: time.Minute, Logger: logger})
	go janitor.SweepLoop(ctx)
	go sweepPreviewTokens(ctx, page.NewRepository(conn), logger)

	router := httpapi.NewRouter(httpapi.Dependencies{
		Cfg:       cfg,
		DB:        conn,
		Blobs:     blobs,
		RateStore: rateStore,
		Reporter:  obs.LogReporter{Logger: logger},
		Log:       logger,
	})

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info().Str("addr", cfg.HTTPAddr).Str("env", cfg.AppEnv).Msg("http listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("http serve failed")
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_ = srv.Shutdown(shutdownCtx)
}

// newLogger gives human-readable console output in dev and JSON in prod.
func newLogger(cfg config.Config) zerolog.Logger {
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	var w io.Writer = os.Stderr
	if !cfg.IsProd() {
		w = zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen}
	}
	return zerolog.New(w).Level(level).With().Timestamp().Logger()
}

// newRateStore picks Redis when configured (shared counters across
// instances), in-process memory otherwise.
func newRateStore(ctx context.Context, cfg config.Config) (ratelimit.Store, error) {
	if cfg.RedisURL == "" {
		return ratelimit.NewMemoryStore(), nil
	}
	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, err
	}
	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		return nil, err
	}
	return ratelimit.NewRedisStore(client), nil
}

func sweepPreviewTokens(ctx context.Context, pages *page.Repository, logger zerolog.Logger) {
	t := time.NewTicker(time.Hour)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if err := pages.SweepPreviewTokens(ctx, time.Now().Add(-24*time.Hour)); err != nil {
				logger.Warn().Err(err).Msg("preview token sweep failed")
			}
		}
	}
}
