// Command server runs the communication orchestrator HTTP API.
//
// Startup order: env + config, logging, tracing, storage, channel
// capabilities, services, router, HTTP server. Shutdown drains in-flight
// HTTP requests first, then waits for background message dispatch to reach
// terminal states, then flushes traces.
package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/rzilem/Community-Intelligence-sub005/internal/channels"
	"github.com/rzilem/Community-Intelligence-sub005/internal/config"
	"github.com/rzilem/Community-Intelligence-sub005/internal/dispatch"
	"github.com/rzilem/Community-Intelligence-sub005/internal/domain"
	httpapi "github.com/rzilem/Community-Intelligence-sub005/internal/http"
	"github.com/rzilem/Community-Intelligence-sub005/internal/observability"
	"github.com/rzilem/Community-Intelligence-sub005/internal/ratelimit"
	"github.com/rzilem/Community-Intelligence-sub005/internal/repo"
	"github.com/rzilem/Community-Intelligence-sub005/internal/routing"
	"github.com/rzilem/Community-Intelligence-sub005/internal/services"
	"github.com/rzilem/Community-Intelligence-sub005/internal/sysutil"
)

// version is stamped at build time via -ldflags.
var version = "dev"

func main() {
	_ = godotenv.Load()
	cfg := config.MustLoad()
	sysutil.SetLogLevel(cfg.LogLevel)
	gin.SetMode(cfg.GinMode)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := observability.SetupOTel(ctx, cfg.OTEL, version)
	if err != nil {
		log.Fatal().Err(err).Msg("otel setup")
	}

	db, err := repo.OpenSQLite(cfg.DBPath)
	if err != nil {
		log.Fatal().Err(err).Str("path", cfg.DBPath).Msg("open database")
	}
	if err := repo.AutoMigrate(db); err != nil {
		log.Fatal().Err(err).Msg("migrate database")
	}
	if cfg.OTEL.Enabled {
		if err := repo.EnableTracing(db); err != nil {
			log.Warn().Err(err).Msg("gorm tracing disabled")
		}
	}

	limiter, err := buildLimiter(cfg.ChannelLimit, db)
	if err != nil {
		log.Fatal().Err(err).Msg("rate limiter setup")
	}

	reg := buildRegistry(db)
	cache := channels.NewActiveCache(db, cfg.RegistryCacheTTL)
	dispatcher := &dispatch.Dispatcher{
		Registry:        reg,
		Limiter:         limiter,
		MaxConcurrent:   cfg.Dispatch.MaxConcurrent,
		SendTimeout:     cfg.Dispatch.SendTimeout,
		FallbackOnLimit: cfg.Dispatch.FallbackOnLimit,
		FallbackOnError: cfg.Dispatch.FallbackOnError,
	}

	svcs := httpapi.Services{
		Messages: services.NewMessageService(db, cache, dispatcher),
		Channels: services.NewChannelService(db, reg, cache),
		Routing:  services.NewRoutingService(db, routing.NewEngine(routing.NewActionRegistry())),
	}

	// Trim the usage log so rate-limit windows stay cheap to count.
	purgeDone := make(chan struct{})
	go purgeUsageLoop(ctx, db, cfg.UsagePurgeEvery, purgeDone)

	r := gin.New()
	httpapi.RegisterRoutes(r, db, svcs, cfg)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadTimeout:       cfg.ReadTimeout,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
		MaxHeaderBytes:    cfg.MaxHeaderBytes,
	}

	go func() {
		log.Info().Str("addr", srv.Addr).Str("version", version).Msg("server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server failed")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("http shutdown")
	}
	if err := svcs.Messages.Close(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("dispatch drain")
	}
	<-purgeDone
	if err := shutdownTracing(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("tracing shutdown")
	}
	log.Info().Msg("shutdown complete")
}

// buildLimiter selects the per-channel rate-limit backend.
func buildLimiter(cfg config.ChannelLimitConfig, db *gorm.DB) (ratelimit.Limiter, error) {
	switch cfg.Backend {
	case "redis":
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return nil, err
		}
		return ratelimit.NewRedisLimiter(redis.NewClient(opts), cfg.FailOpen), nil
	default:
		return ratelimit.NewStoreLimiter(db, cfg.FailOpen), nil
	}
}

// buildRegistry binds every supported channel type to its send capability.
// Provider-backed capabilities are wrapped in a circuit breaker so a failing
// provider short-circuits instead of timing out every recipient.
func buildRegistry(db *gorm.DB) *channels.Registry {
	reg := channels.NewRegistry()

	gateway := channels.NewGatewayCapability()
	for _, t := range []string{domain.ChannelEmail, domain.ChannelSMS, domain.ChannelPush} {
		reg.Register(t, channels.WithBreaker(t, gateway))
	}

	webhook := channels.NewWebhookCapability()
	for _, t := range []string{domain.ChannelSlack, domain.ChannelTeams} {
		reg.Register(t, channels.WithBreaker(t, webhook))
	}

	// In-app delivery is a local inbox write; no breaker needed.
	reg.Register(domain.ChannelInApp, channels.NewInAppCapability(db))
	return reg
}

// purgeUsageLoop deletes usage rows older than the longest rate-limit window
// every interval until ctx is cancelled.
func purgeUsageLoop(ctx context.Context, db *gorm.DB, every time.Duration, done chan<- struct{}) {
	defer close(done)
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			cutoff := time.Now().UTC().Add(-24 * time.Hour)
			n, err := repo.PurgeUsageBefore(ctx, db, cutoff)
			if err != nil {
				log.Warn().Err(err).Msg("usage purge failed")
				continue
			}
			if n > 0 {
				log.Debug().Int64("rows", n).Msg("usage log trimmed")
			}
		}
	}
}
