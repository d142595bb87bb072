package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/romariotrain/reelwork/internal/config"
	"github.com/romariotrain/reelwork/internal/log"
	pg "github.com/romariotrain/reelwork/internal/storage/postgres"
	"github.com/romariotrain/reelwork/internal/video/httpapi"
	"github.com/romariotrain/reelwork/internal/video/ledger"
	"github.com/romariotrain/reelwork/internal/video/repository"
	"github.com/romariotrain/reelwork/internal/video/service"
	"github.com/romariotrain/reelwork/internal/video/videohost"
)

func run(ctx context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	log.Configure(log.Config{Level: cfg.LogLevel, Service: "reelwork"})
	logger := log.WithComponent("api")

	// Dependencies
	var (
		repo  repository.UploadRepository
		ready httpapi.Checks
	)
	if cfg.Database.URL == "" {
		logger.Warn().Msg("DATABASE_URL is empty, using in-memory store (data is lost on restart)")
		repo = repository.NewMemoryRepository()
	} else {
		db, err := pg.Connect(ctx, cfg.Database.URL)
		if err != nil {
			return fmt.Errorf("db connect: %w", err)
		}
		defer db.Close()

		if err := pg.Migrate(ctx, db); err != nil {
			return fmt.Errorf("db migrate: %w", err)
		}
		uploads := pg.NewUploadRepo(db, pg.NewOutboxRepo(db))
		repo = uploads
		ready = append(ready, uploads.Ping)
	}

	host, inspector, err := videohost.New(ctx, cfg.VideoHost, logger)
	if err != nil {
		return fmt.Errorf("video host: %w", err)
	}

	svcCfg := service.Config{
		Repo:      repo,
		Host:      host,
		Inspector: inspector,
		Logger:    logger,
	}
	if l := openLedger(cfg.Redis, logger); l != nil {
		defer l.Close()
		svcCfg.Ledger = l
		ready = append(ready, l.HealthCheck)
	}

	svc, err := service.New(svcCfg)
	if err != nil {
		return fmt.Errorf("service: %w", err)
	}

	h := httpapi.New(svc, ready, logger)
	router := httpapi.NewRouter(h, httpapi.RouterConfig{
		CredentialRatePerMinute: cfg.HTTP.CredentialRatePerMinute,
	})

	srv := &http.Server{
		Addr:              cfg.HTTP.Addr,
		Handler:           router,
		ReadHeaderTimeout: cfg.HTTP.ReadHeaderTimeout,
	}

	errCh := make(chan error, 1)

	go func() {
		logger.Info().
			Str("addr", cfg.HTTP.Addr).
			Str("video_host", host.Name()).
			Bool("feed_enrichment", inspector != nil).
			Msg("http server listening")
		if err := srv.ListenAndServe(); err != nil {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown: %w", err)
		}
		return nil

	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("listen and serve: %w", err)
	}
}

// openLedger returns nil when Redis is not configured or unreachable; the API works without it.
func openLedger(cfg config.RedisConfig, logger zerolog.Logger) *ledger.Ledger {
	if cfg.Addr == "" {
		return nil
	}
	l, err := ledger.NewRedisLedger(ledger.RedisConfig{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	}, cfg.CredentialTTL, logger)
	if err != nil {
		logger.Warn().Err(err).Str("addr", cfg.Addr).Msg("credential ledger disabled")
		return nil
	}
	return l
}
