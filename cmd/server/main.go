package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/openblog/backend/internal/api"
	"github.com/openblog/backend/internal/auth"
	"github.com/openblog/backend/internal/blog"
	"github.com/openblog/backend/internal/cache"
	"github.com/openblog/backend/internal/config"
	"github.com/openblog/backend/internal/db"
	apperrors "github.com/openblog/backend/internal/errors"
	"github.com/openblog/backend/internal/health"
	"github.com/openblog/backend/internal/logger"
	"github.com/openblog/backend/internal/metrics"
	"github.com/openblog/backend/internal/middleware"
	"github.com/openblog/backend/internal/storage"
)

var version = "dev"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		logger.Error(context.Background(), "server exited", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	log := logger.New(&logger.Config{Output: os.Stdout, Level: logger.ParseLevel(cfg.LogLevel)})
	logger.SetDefault(log)

	database, err := db.New(ctx, cfg.DSN())
	if err != nil {
		return err
	}
	defer database.Close()

	if err := database.Migrate(ctx); err != nil {
		return err
	}

	uploader, err := storage.New(cfg)
	if err != nil {
		return err
	}
	if m, ok := uploader.(*storage.MinioUploader); ok {
		if err := m.EnsureBucket(ctx); err != nil {
			return err
		}
	}

	checks := map[string]health.CheckFunc{}
	if p, ok := uploader.(storage.Pinger); ok {
		checks["storage"] = p.Ping
	}

	var blogOpts []blog.Option
	if cfg.RedisAddr != "" {
		c, err := cache.New(ctx, cfg.RedisAddr, log)
		if err != nil {
			return err
		}
		defer c.Close()
		blogOpts = append(blogOpts, blog.WithCache(c, cfg.BlogCacheTTL))
		checks["redis"] = c.Ping
	}

	m := metrics.Default()
	userRepo := db.NewUserRepository(database)
	blogRepo := db.NewBlogRepository(database)

	tokens := auth.NewTokenService(auth.TokenConfig{
		AccessSecret:  cfg.AccessTokenSecret,
		RefreshSecret: cfg.RefreshTokenSecret,
		AccessTTL:     cfg.AccessTokenExpiry,
		RefreshTTL:    cfg.RefreshTokenExpiry,
	}, userRepo)
	blogService := blog.NewService(blogRepo, uploader, log, blogOpts...)
	authService := auth.NewService(userRepo, auth.NewBcryptHasher(), tokens, uploader, m, log,
		auth.WithProfileListener(blogService))

	router := api.NewRouter(api.Deps{
		Users:   auth.NewHandlers(authService, auth.CookieWriter{Secure: cfg.IsProduction()}, cfg.MaxUploadBytes),
		Blogs:   blog.NewHandlers(blogService, cfg.MaxUploadBytes),
		Gate:    auth.NewGate(tokens, userRepo, auth.WithRejectHook(m.RecordGateRejection)),
		Health:  health.NewHandler(health.NewChecker(&health.CheckerConfig{DB: database.DB, Checks: checks, Version: version})),
		Metrics: m,
		Logger:  log,
	})

	handler := middleware.Chain(router,
		apperrors.RequestIDMiddleware,
		logger.RecoveryMiddleware(log),
		logger.LoggingMiddleware(log),
		m.Middleware(router.Route),
		middleware.CORS(cfg.CORSOrigins),
		middleware.SlowRequests(log, cfg.SlowRequestThreshold),
		middleware.Gzip,
		middleware.Timeout(cfg.RequestTimeout),
	)

	srv := &http.Server{
		Addr:              cfg.ServerAddr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      cfg.RequestTimeout + 5*time.Second,
		IdleTimeout:       120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info(ctx, "starting server", logger.Fields{"addr": cfg.ServerAddr, "env": cfg.Env, "storage": cfg.StorageBackend})
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info(context.Background(), "shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
