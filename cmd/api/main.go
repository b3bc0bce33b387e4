package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	validator "github.com/go-playground/validator/v10"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/extra/redisotel/v9"
	redis "github.com/redis/go-redis/v9"
	limiter "github.com/ulule/limiter/v3"
	limiterhttp "github.com/ulule/limiter/v3/drivers/middleware/stdlib"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/andeantrade/cotiza-api/internal/app"
	"github.com/andeantrade/cotiza-api/internal/cart"
	"github.com/andeantrade/cotiza-api/internal/common"
	"github.com/andeantrade/cotiza-api/internal/config"
	"github.com/andeantrade/cotiza-api/internal/events"
	"github.com/andeantrade/cotiza-api/internal/fx"
	"github.com/andeantrade/cotiza-api/internal/health"
	"github.com/andeantrade/cotiza-api/internal/lock"
	"github.com/andeantrade/cotiza-api/internal/obs"
	"github.com/andeantrade/cotiza-api/internal/quote"
	"github.com/andeantrade/cotiza-api/internal/ratelimit"
	"github.com/andeantrade/cotiza-api/internal/resilience"
	"github.com/andeantrade/cotiza-api/internal/security"
	"github.com/andeantrade/cotiza-api/internal/store"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logFormat := envOrDefault("OBS_LOG_FORMAT", "json")
	logLevel := envOrDefault("OBS_LOG_LEVEL", "info")
	logger := obs.NewLogger(logFormat, logLevel).With().Str("env", cfg.AppEnv).Logger()

	metricsNamespace := envOrDefault("OBS_METRICS_NAMESPACE", "cotiza")
	metricsEnabled := envBool("OBS_ENABLE_PROMETHEUS", true)
	obs.MustRegisterDomainMetrics(metricsNamespace, nil)

	tracingEnabled := envBool("OBS_ENABLE_TRACING", true)
	if tracingEnabled {
		sampling := envFloat("OBS_TRACING_SAMPLING_RATIO", 1.0)
		shutdown, err := obs.InitTracer(context.Background(), obs.TracingConfig{
			ServiceName:   "cotiza-api",
			Endpoint:      envOrDefault("OBS_OTLP_ENDPOINT", ""),
			Exporter:      envOrDefault("OBS_TRACING_EXPORTER", "otlp"),
			SamplingRatio: sampling,
			Environment:   cfg.AppEnv,
		})
		if err != nil {
			logger.Error().Err(err).Msg("initialise tracing")
			tracingEnabled = false
		} else {
			defer func() {
				ctx := context.Background()
				if err := shutdown(ctx); err != nil {
					logger.Error().Err(err).Msg("shutdown tracer")
				}
			}()
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if cfg.MigrateOnStart {
		if err := store.Migrate(cfg.MigrateURL); err != nil {
			logger.Fatal().Err(err).Msg("apply migrations")
		}
	}

	poolConfig, err := pgxpool.ParseConfig(cfg.DatabaseURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("parse database config")
	}
	poolConfig.ConnConfig.Tracer = obs.PGXTracer{}
	if poolConfig.ConnConfig.RuntimeParams == nil {
		poolConfig.ConnConfig.RuntimeParams = map[string]string{}
	}
	poolConfig.ConnConfig.RuntimeParams["application_name"] = "cotiza-api"

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		logger.Fatal().Err(err).Msg("connect database")
	}
	defer pool.Close()

	if err := pool.Ping(ctx); err != nil {
		logger.Fatal().Err(err).Msg("ping database")
	}

	redisOpts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("parse redis url")
	}
	redisClient := redis.NewClient(redisOpts)
	if err := redisotel.InstrumentTracing(redisClient); err != nil {
		logger.Error().Err(err).Msg("instrument redis tracing")
	}
	if metricsEnabled {
		if err := redisotel.InstrumentMetrics(redisClient); err != nil {
			logger.Error().Err(err).Msg("instrument redis metrics")
		}
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Error().Err(err).Msg("close redis")
		}
	}()
	if err := redisClient.Ping(ctx).Err(); err != nil {
		logger.Fatal().Err(err).Msg("ping redis")
	}

	limiterStore, err := app.NewLimiterStore(redisClient)
	if err != nil {
		logger.Fatal().Err(err).Msg("initialise limiter store")
	}
	deps := app.Dependencies{
		Context:      context.Background(),
		DB:           pool,
		Redis:        redisClient,
		Validator:    validator.New(),
		LimiterStore: limiterStore,
		Limiter: limiter.New(limiterStore, limiter.Rate{
			Period: time.Minute,
			Limit:  int64(envInt("API_RATE_LIMIT", 600)),
		}),
	}

	st := store.New(pool)

	bus := &events.Bus{
		Store:     st,
		Notifiers: []events.Notifier{events.LogNotifier{Logger: logger}},
	}

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
		Events:       bus,
	}

	engine := &quote.Engine{
		Store:  st,
		Writer: st,
		Rates:  fxService,
		Events: bus,
		Logger: logger,
	}
	quoteHandler := quote.NewHandler(quote.HandlerConfig{Engine: engine})

	cartManager := &cart.Manager{
		Store:   st,
		States:  cart.NewArena(),
		Locks:   lock.Locker{R: redisClient},
		LockTTL: cfg.CartLockTTL,
		Rates:   fxService,
		Events:  bus,
		Logger:  logger,
	}
	cartHandler := cart.NewHandler(cart.HandlerConfig{
		Manager:  cartManager,
		Validate: deps.Validator,
	})

	idem := common.Idem{R: redisClient, TTL: cfg.IdempotencyTTL}
	shareLimiter := ratelimit.Handler{
		Limiter: ratelimit.Limiter{Client: redisClient},
		Config: ratelimit.Config{
			Key:    ratelimit.ShareKey(func(r *http.Request) string { return chi.URLParam(r, "token") }),
			Window: cfg.PublicRateLimitWindow,
			Max:    int(cfg.PublicRateLimit),
		},
		OnError: func(err error) { logger.Error().Err(err).Msg("rate limiter") },
	}

	var httpMetrics *obs.HTTPMetrics
	if metricsEnabled {
		buckets := obs.ParseBucketsCSV(envOrDefault("OBS_METRICS_BUCKETS_MS", ""))
		httpMetrics = obs.NewHTTPMetrics(metricsNamespace, buckets, nil)
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(obs.RoutePatternMiddleware)
	if tracingEnabled {
		r.Use(obs.TracingMiddleware)
	}
	if metricsEnabled && httpMetrics != nil {
		r.Use(obs.HTTPObs{Metrics: httpMetrics}.Middleware)
	}
	r.Use(obs.RequestLogger{Logger: logger}.Middleware)
	r.Use(security.Headers{Enable: true, EnableHSTS: envBool("SECURE_ENABLE_HSTS", false)}.Middleware)
	r.Use(security.BodyLimit{Max: 1 << 16}.Middleware)
	r.Use(limiterhttp.NewMiddleware(deps.Limiter).Handler)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins(cfg),
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "Idempotency-Key"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	if metricsEnabled {
		r.Handle("/metrics", promhttp.Handler())
	}

	healthHandler := health.Handler{
		Checker:      readinessChecker{db: pool, redis: redisClient},
		Rates:        rateProbe{svc: fxService},
		DBTimeout:    envDurationMillis("HEALTH_READY_DB_TIMEOUT_MS", 500),
		RedisTimeout: envDurationMillis("HEALTH_READY_REDIS_TIMEOUT_MS", 300),
	}
	r.Get("/health/live", healthHandler.Live)
	r.Get("/health/ready", healthHandler.Ready)

	r.Route("/api/v1", func(v chi.Router) {
		v.Route("/quotes/{quoteID}", func(q chi.Router) {
			q.Get("/", quoteHandler.Detail)
			q.Get("/print", quoteHandler.Print)
			q.With(idem.Middleware).Post("/recalculate", quoteHandler.Recalculate)
		})

		v.Route("/public/quotes/{token}", func(p chi.Router) {
			p.Use(security.ShareSurface)
			p.Use(shareLimiter.Middleware)
			p.Get("/", quoteHandler.Public)
		})

		v.Route("/carts/{cartID}", func(c chi.Router) {
			c.Get("/", cartHandler.Summary)
			c.Group(func(g chi.Router) {
				g.Use(idem.Middleware)
				g.Patch("/items/{itemID}", cartHandler.UpdateQuantity)
				g.Delete("/items/{itemID}", cartHandler.RemoveItem)
			})
		})
	})

	srv := &http.Server{
		Addr:    cfg.HTTPAddr(),
		Handler: r,
	}

	go func() {
		stopCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()
		<-stopCtx.Done()
		health.SetReady(false)
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error().Err(err).Msg("shutdown http server")
		}
	}()

	logger.Info().Str("addr", srv.Addr).Msg("server starting")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Fatal().Err(err).Msg("server exited unexpectedly")
	}
}

func allowedOrigins(cfg *config.Config) []string {
	if len(cfg.CORSAllowedOrigins) == 0 {
		return []string{"*"}
	}
	return cfg.CORSAllowedOrigins
}

type readinessChecker struct {
	db    *pgxpool.Pool
	redis *redis.Client
}

func (c readinessChecker) PingDB(ctx context.Context, timeout time.Duration) error {
	if c.db == nil {
		return errors.New("db not configured")
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return c.db.Ping(ctx)
}

func (c readinessChecker) PingRedis(ctx context.Context, timeout time.Duration) error {
	if c.redis == nil {
		return errors.New("redis not configured")
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return c.redis.Ping(ctx).Err()
}

type rateProbe struct {
	svc *fx.Service
}

func (p rateProbe) Stale(ctx context.Context) bool {
	return p.svc.Resolve(ctx).Fallback
}

func envOrDefault(key, fallback string) string {
	if val, ok := os.LookupEnv(key); ok {
		trimmed := strings.TrimSpace(val)
		if trimmed != "" {
			return trimmed
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if val, ok := os.LookupEnv(key); ok {
		switch strings.ToLower(strings.TrimSpace(val)) {
		case "1", "t", "true", "yes", "on":
			return true
		case "0", "f", "false", "no", "off":
			return false
		}
	}
	return fallback
}

func envFloat(key string, fallback float64) float64 {
	if val, ok := os.LookupEnv(key); ok {
		if parsed, err := strconv.ParseFloat(strings.TrimSpace(val), 64); err == nil {
			return parsed
		}
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if val, ok := os.LookupEnv(key); ok {
		if parsed, err := strconv.Atoi(strings.TrimSpace(val)); err == nil {
			return parsed
		}
	}
	return fallback
}

func envDurationMillis(key string, fallback int) time.Duration {
	return time.Duration(envInt(key, fallback)) * time.Millisecond
}
