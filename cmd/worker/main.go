package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/extra/redisotel/v9"
	redis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/andeantrade/cotiza-api/internal/config"
	"github.com/andeantrade/cotiza-api/internal/fx"
	"github.com/andeantrade/cotiza-api/internal/obs"
	"github.com/andeantrade/cotiza-api/internal/resilience"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logFormat := envOrDefault("OBS_LOG_FORMAT", "json")
	logLevel := envOrDefault("OBS_LOG_LEVEL", "info")
	logger := obs.NewLogger(logFormat, logLevel).With().Str("component", "worker").Logger()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	redisClient := mustInitRedis(ctx, cfg, logger)
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Error().Err(err).Msg("close redis")
		}
	}()

	fxClient := &fx.Client{
		Endpoint: cfg.FxEndpoint,
		APIKey:   cfg.FxAPIKey,
		HTTP: &resilience.HTTPClient{
			Client: &http.Client{
				Transport: otelhttp.NewTransport(http.DefaultTransport),
				Timeout:   cfg.FxRequestTimeout,
			},
			Breaker:     resilience.NewBreaker(cfg.FxBreakerFailures, 0.5, cfg.FxBreakerCooldown).WithTarget("fx-provider").WithLogger(logger),
			BaseBackoff: 200 * time.Millisecond,
			MaxAttempts: cfg.FxMaxAttempts,
			Timeout:     cfg.FxRequestTimeout,
			Target:      "fx-provider",
			Logger:      &logger,
		},
	}
	fxService := &fx.Service{
		Source:       cfg.SourceCurrency,
		Target:       cfg.TargetCurrency,
		FallbackRate: cfg.FallbackRate,
		Provider:     fxClient,
		Cache:        &fx.Cache{R: redisClient, TTL: cfg.FxCacheTTL},
		Logger:       logger,
	}

	redisOpt, err := asynq.ParseRedisURI(cfg.RedisURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("parse redis url for asynq")
	}

	scheduler := asynq.NewScheduler(redisOpt, &asynq.SchedulerOpts{
		Logger: asynqLogger{logger},
	})
	interval := cfg.FxRefreshInterval
	if interval <= 0 {
		interval = 30 * time.Minute
	}
	if _, err := scheduler.Register("@every "+interval.String(), fx.NewRefreshTask()); err != nil {
		logger.Fatal().Err(err).Msg("register rate refresh schedule")
	}
	if err := scheduler.Start(); err != nil {
		logger.Fatal().Err(err).Msg("start scheduler")
	}
	defer scheduler.Shutdown()

	srv := asynq.NewServer(redisOpt, asynq.Config{
		Concurrency: 2,
		Logger:      asynqLogger{logger},
	})
	mux := asynq.NewServeMux()
	mux.Handle(fx.TaskRateRefresh, fx.RefreshHandler{Service: fxService, Logger: logger})

	if err := srv.Start(mux); err != nil {
		logger.Fatal().Err(err).Msg("start task server")
	}

	// Warm the cache once on boot so the first render after a deploy does
	// not have to pay the provider round-trip.
	if err := fxService.Refresh(ctx); err != nil {
		logger.Warn().Err(err).Msg("initial rate refresh failed")
	}

	logger.Info().Msg("worker starting")
	<-ctx.Done()
	srv.Shutdown()
	logger.Info().Msg("worker shutdown complete")
}

func mustInitRedis(ctx context.Context, cfg *config.Config, logger zerolog.Logger) *redis.Client {
	redisOpts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("parse redis url")
	}
	redisClient := redis.NewClient(redisOpts)
	if err := redisotel.InstrumentTracing(redisClient); err != nil {
		logger.Error().Err(err).Msg("instrument redis tracing")
	}
	if err := redisClient.Ping(ctx).Err(); err != nil {
		logger.Fatal().Err(err).Msg("ping redis")
	}
	return redisClient
}

// asynqLogger adapts zerolog to asynq's logging interface.
type asynqLogger struct {
	l zerolog.Logger
}

func (a asynqLogger) Debug(args ...interface{}) { a.l.Debug().Msg(fmt.Sprint(args...)) }
func (a asynqLogger) Info(args ...interface{})  { a.l.Info().Msg(fmt.Sprint(args...)) }
func (a asynqLogger) Warn(args ...interface{})  { a.l.Warn().Msg(fmt.Sprint(args...)) }
func (a asynqLogger) Error(args ...interface{}) { a.l.Error().Msg(fmt.Sprint(args...)) }
func (a asynqLogger) Fatal(args ...interface{}) { a.l.Fatal().Msg(fmt.Sprint(args...)) }

func envOrDefault(key, fallback string) string {
	if val, ok := os.LookupEnv(key); ok {
		trimmed := strings.TrimSpace(val)
		if trimmed != "" {
			return trimmed
		}
	}
	return fallback
}
