package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog/log"

	"github.com/dispatchly/dispatch-api/internal/config"
	"github.com/dispatchly/dispatch-api/internal/domain/catalog"
	"github.com/dispatchly/dispatch-api/internal/domain/deposit"
	"github.com/dispatchly/dispatch-api/internal/middleware"
	"github.com/dispatchly/dispatch-api/internal/pkg/database"
	"github.com/dispatchly/dispatch-api/internal/pkg/jwt"
	"github.com/dispatchly/dispatch-api/internal/pkg/logger"
	pkgresponse "github.com/dispatchly/dispatch-api/internal/pkg/response"
)

func main() {
	cfg := config.Load()
	if err := logger.Init(logger.Config{Level: cfg.LogLevel, Environment: cfg.Env}); err != nil {
		log.Fatal().Err(err).Msg("Failed to init logger")
	}

	log.Info().
		Str("env", cfg.Env).
		Str("port", cfg.Port).
		Str("store", cfg.StoreDriver).
		Msg("Starting Dispatch deposit API")

	if cfg.IsProduction() && cfg.JWTSecret == config.DefaultJWTSecret {
		log.Fatal().Msg("JWT_SECRET must be set in production")
	}
	if cfg.StoreDriver == config.StoreDriverMemory && !cfg.IsDevelopment() {
		log.Warn().Msg("memory store loses all refunds on restart")
	}

	ctx := context.Background()

	be, err := openBackend(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Str("store", cfg.StoreDriver).Msg("Failed to open store")
	}
	defer be.close()

	// Redis is optional: without it history is uncached and the archiver polls.
	rdb, err := database.NewRedis(cfg.RedisURL)
	if err != nil {
		log.Warn().Err(err).Msg("Redis unavailable, running without cache")
		rdb = nil
	}
	defer database.CloseRedis(rdb)

	var (
		cache     deposit.HistoryCache
		catalogs  = be.catalogs
		notifiers notifierChain
	)
	if rdb != nil {
		cache = deposit.NewRedisHistoryCache(rdb, cfg.HistoryCacheTTL)
		catalogs = catalog.NewCached(be.catalogs, rdb, cfg.CatalogCacheTTL)
		notifiers = append(notifiers, deposit.NewRedisCommitNotifier(rdb))
	}
	if be.inlineAudit != nil {
		notifiers = append(notifiers, be.inlineAudit)
	}

	depositService := deposit.NewService(be.store, cache, be.orders, catalogs, notifiers.orNil(), deposit.ServiceConfig{
		HistoryAttempts: cfg.HistoryRetryAttempts,
		RetryBackoff:    cfg.HistoryRetryBackoff,
	})
	depositHandler := deposit.NewHandler(depositService)

	jwtService := jwt.NewService(cfg.JWTSecret, cfg.JWTAccessTTL)
	authMiddleware := middleware.Auth(jwtService)

	r := newRouter(cfg, be.ping, depositHandler.Routes(authMiddleware))

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().Str("addr", server.Addr).Msg("HTTP server listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("HTTP server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
		return
	}

	log.Info().Msg("Server exited properly")
}

// newRouter builds the HTTP surface. ping reports store health.
func newRouter(cfg *config.Config, ping func(ctx context.Context) error, deposits http.Handler) chi.Router {
	r := chi.NewRouter()

	r.Use(chimw.RealIP)
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recover)
	r.Use(middleware.CORSHandler(cfg.AllowedOrigins))
	r.Use(middleware.Timeout(10 * time.Second))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		if err := ping(ctx); err != nil {
			log.Warn().Err(err).Msg("health check failed")
			pkgresponse.ServiceUnavailable(w, "STORE_UNAVAILABLE", "store is not reachable")
			return
		}
		pkgresponse.OK(w, map[string]string{
			"status": "ok",
			"store":  cfg.StoreDriver,
		})
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/ping", func(w http.ResponseWriter, r *http.Request) {
			pkgresponse.OK(w, map[string]string{"message": "pong"})
		})
		r.Mount("/deposits", deposits)
	})

	return r
}

// notifierChain fans a commit out to several notifiers.
type notifierChain []deposit.CommitNotifier

func (c notifierChain) CommitRecorded(ctx context.Context, rec *deposit.CommitRecord) {
	for _, n := range c {
		n.CommitRecorded(ctx, rec)
	}
}

func (c notifierChain) orNil() deposit.CommitNotifier {
	if len(c) == 0 {
		return nil
	}
	return c
}
