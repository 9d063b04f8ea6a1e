package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"github.com/harentsoaR/doctors-portal/internal/auth"
	"github.com/harentsoaR/doctors-portal/internal/booking"
	"github.com/harentsoaR/doctors-portal/internal/config"
	"github.com/harentsoaR/doctors-portal/internal/handlers"
	"github.com/harentsoaR/doctors-portal/internal/logger"
	"github.com/harentsoaR/doctors-portal/internal/metrics"
	"github.com/harentsoaR/doctors-portal/internal/middleware"
	"github.com/harentsoaR/doctors-portal/internal/services"
	"github.com/harentsoaR/doctors-portal/internal/store"
	"github.com/harentsoaR/doctors-portal/internal/users"
)

const shutdownTimeout = 10 * time.Second

func serve(ctx context.Context, configPath, port string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if port != "" {
		cfg.Port = port
	}

	log := logger.New(logger.Config{Level: cfg.LogLevel, Format: cfg.LogFormat})
	slog.SetDefault(log)

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, err := openStore(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := st.Close(closeCtx); err != nil {
			log.Error("close store", "error", err)
		}
	}()

	tokens, err := auth.NewTokenService(cfg.TokenSecret, auth.WithTTL(cfg.TokenTTL))
	if err != nil {
		return err
	}
	m := metrics.New()

	catalogOpts := []services.CatalogOption{services.WithMetrics(m)}
	var rdb *redis.Client
	if cfg.RedisAddr != "" {
		rdb = redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		defer rdb.Close()
		if err := rdb.Ping(ctx).Err(); err != nil {
			log.Warn("redis unreachable, catalog reads go to the store until it recovers", "addr", cfg.RedisAddr, "error", err)
		}
		catalogOpts = append(catalogOpts, services.WithCache(rdb, cfg.CatalogCacheTTL))
	}
	catalog := services.NewCatalog(st.Collection(store.Services), log, catalogOpts...)

	var registryOpts []booking.Option
	var notifier *services.NotificationService
	if cfg.MailEnabled() {
		notifier = services.NewNotificationService(services.SMTPConfig{
			Host:     cfg.SMTPHost,
			Port:     cfg.SMTPPort,
			Username: cfg.SMTPUser,
			Password: cfg.SMTPPass,
			From:     cfg.MailFrom,
		}, log)
		registryOpts = append(registryOpts, booking.WithNotifier(notifier))
	} else {
		log.Info("SMTP not configured, booking confirmations are disabled")
	}

	dir := users.NewDirectory(st.Collection(store.Users), cfg.BcryptCost)
	reg := booking.NewRegistry(st.Collection(store.Bookings), registryOpts...)
	limiter := middleware.NewRateLimiter(cfg.RateLimitPerMinute, cfg.RateLimitBurst)

	scheduler := services.NewScheduler(log, cfg.StoreTimeout)
	if err := scheduler.Add("rate-limiter-sweep", "@every 10m", func(context.Context) error {
		limiter.Sweep()
		return nil
	}); err != nil {
		return fmt.Errorf("schedule rate limiter sweep: %w", err)
	}
	if rdb != nil {
		if err := scheduler.Add("catalog-refresh", cfg.CatalogRefreshSchedule, catalog.Refresh); err != nil {
			return fmt.Errorf("schedule catalog refresh %q: %w", cfg.CatalogRefreshSchedule, err)
		}
	}
	scheduler.Start()

	h := handlers.NewHandler(st, tokens, dir, reg, catalog, m)
	router := newRouter(cfg, log, m)
	h.Register(router, middleware.NewGate(tokens, dir), limiter)

	if configPath != "" {
		w, err := config.NewWatcher(configPath, log, func(next *config.Config) {
			logger.SetLevel(next.LogLevel)
			log.Info("log level changed", "level", logger.Level())
		})
		if err != nil {
			log.Warn("config watcher disabled", "error", err)
		} else {
			go w.Run()
			defer w.Close()
		}
	}

	srv := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("starting server", "addr", srv.Addr, "store", cfg.StoreDriver)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("listen: %w", err)
		}
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("server shutdown", "error", err)
	}
	scheduler.Stop(shutdownCtx)
	if notifier != nil {
		notifier.Wait()
	}
	return nil
}

func openStore(ctx context.Context, cfg *config.Config, log *slog.Logger) (store.Store, error) {
	if cfg.StoreDriver == config.DriverMemory {
		mem := store.NewMemory()
		svcs := store.DefaultServices()
		docs := make([]any, len(svcs))
		for i := range svcs {
			docs[i] = svcs[i]
		}
		if err := mem.Seed(store.Services, docs...); err != nil {
			return nil, fmt.Errorf("seed services: %w", err)
		}
		log.Warn("using the in-memory store, data is lost on exit")
		return mem, nil
	}

	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	db, err := store.NewMongo(connectCtx, cfg.MongoURI, cfg.MongoDatabase, cfg.StoreTimeout)
	if err != nil {
		return nil, fmt.Errorf("connect to MongoDB: %w", err)
	}
	if err := db.EnsureIndexes(connectCtx, log); err != nil {
		_ = db.Close(context.Background())
		return nil, fmt.Errorf("ensure indexes: %w", err)
	}
	log.Info("connected to MongoDB", "database", cfg.MongoDatabase)
	return db, nil
}

func newRouter(cfg *config.Config, log *slog.Logger, m *metrics.Metrics) *gin.Engine {
	if logger.ParseLevel(cfg.LogLevel) > slog.LevelDebug {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(
		gin.Recovery(),
		middleware.RequestID(log),
		middleware.AccessLog(m),
		cors.New(corsConfig(cfg.AllowedOrigins)),
	)
	return r
}

func corsConfig(origins []string) cors.Config {
	c := cors.Config{
		AllowMethods:  []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Authorization", middleware.RequestIDHeader},
		ExposeHeaders: []string{middleware.RequestIDHeader},
		MaxAge:        12 * time.Hour,
	}
	for _, o := range origins {
		if o == "*" {
			c.AllowAllOrigins = true
			return c
		}
	}
	c.AllowOrigins = origins
	c.AllowCredentials = true
	return c
}
