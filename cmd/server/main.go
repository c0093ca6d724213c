package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/info-evry/astro-join/internal/admin"
	memmetrics "github.com/info-evry/astro-join/internal/member/metrics"
	"github.com/info-evry/astro-join/internal/member/service"
	"github.com/info-evry/astro-join/internal/member/store"
	"github.com/info-evry/astro-join/internal/platform/config"
	"github.com/info-evry/astro-join/internal/platform/httpserver"
	"github.com/info-evry/astro-join/internal/platform/logger"
	"github.com/info-evry/astro-join/internal/platform/postgres"
	platformredis "github.com/info-evry/astro-join/internal/platform/redis"
	"github.com/info-evry/astro-join/internal/ratelimit"
	"github.com/info-evry/astro-join/internal/settings"
	httptransport "github.com/info-evry/astro-join/internal/transport/http"
)

// main wires dependencies and owns the server lifecycle. Business logic lives
// in the internal service packages.
func main() {
	cfg := config.FromEnv()
	log := logger.New()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var (
		memberStore   store.Store
		settingsStore settings.Store
	)
	if cfg.DatabaseURL != "" {
		db, err := postgres.Open(ctx, cfg.DatabaseURL)
		if err != nil {
			log.Error("postgres unavailable", "error", err)
			os.Exit(1)
		}
		defer db.Close()
		if err := postgres.Migrate(ctx, db); err != nil {
			log.Error("migration failed", "error", err)
			os.Exit(1)
		}
		memberStore = store.NewPostgres(db)
		settingsStore = settings.NewPostgres(db)
		log.Info("using postgres storage")
	} else {
		memberStore = store.NewInMemory()
		settingsStore = settings.NewInMemory()
		log.Warn("DATABASE_URL not set, using in-memory storage")
	}

	var limiter ratelimit.Limiter = ratelimit.NewMemoryLimiter(cfg.ApplyRateLimit, cfg.ApplyRateWindow)
	redisClient, err := platformredis.New(ctx, cfg.RedisURL)
	if err != nil {
		log.Error("redis unavailable", "error", err)
		os.Exit(1)
	}
	if redisClient != nil {
		defer redisClient.Close()
		limiter = ratelimit.NewRedisLimiter(redisClient.Client, cfg.ApplyRateLimit, cfg.ApplyRateWindow)
		log.Info("using redis rate limiting")
	}

	settingsSvc := settings.NewService(settingsStore, log)
	memberSvc := service.New(memberStore, settingsSvc, log, memmetrics.New())
	auth := admin.NewAuthenticator(cfg.AdminPasswordHash, cfg.JWTSigningKey)

	handler := httptransport.NewHandler(memberSvc, settingsSvc, auth, limiter, log, cfg.TrustProxy)
	srv := httpserver.New(cfg.Addr, httptransport.NewRouter(handler))

	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("starting astro-join", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gCtx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Error("server error", "error", err)
		os.Exit(1)
	}
	log.Info("shutdown complete")
}
