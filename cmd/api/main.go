package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/extra/redisotel/v9"
	redis "github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/rockettradeline/backend-market/internal/auth"
	"github.com/rockettradeline/backend-market/internal/cart"
	"github.com/rockettradeline/backend-market/internal/catalog"
	"github.com/rockettradeline/backend-market/internal/checkout"
	"github.com/rockettradeline/backend-market/internal/common"
	"github.com/rockettradeline/backend-market/internal/config"
	"github.com/rockettradeline/backend-market/internal/events"
	"github.com/rockettradeline/backend-market/internal/health"
	"github.com/rockettradeline/backend-market/internal/obs"
	"github.com/rockettradeline/backend-market/internal/payment"
	"github.com/rockettradeline/backend-market/internal/paymethod"
	"github.com/rockettradeline/backend-market/internal/ratelimit"
	"github.com/rockettradeline/backend-market/internal/resilience"
	"github.com/rockettradeline/backend-market/internal/store"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logFormat := envOrDefault("OBS_LOG_FORMAT", "json")
	logLevel := envOrDefault("OBS_LOG_LEVEL", "info")
	logger := obs.NewLogger(logFormat, logLevel).With().Str("env", cfg.AppEnv).Logger()

	metricsNamespace := envOrDefault("OBS_METRICS_NAMESPACE", "market")
	obs.MustRegisterDomainMetrics(metricsNamespace, nil)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	tracingEnabled := cfg.OTLPEndpoint != ""
	if tracingEnabled {
		shutdown, err := obs.InitTracer(ctx, obs.TracingConfig{
			ServiceName:   "market-api",
			Endpoint:      cfg.OTLPEndpoint,
			SamplingRatio: 1.0,
			Environment:   cfg.AppEnv,
		})
		if err != nil {
			logger.Error().Err(err).Msg("initialise tracing")
			tracingEnabled = false
		} else {
			defer func() {
				if err := shutdown(context.Background()); err != nil {
					logger.Error().Err(err).Msg("shutdown tracer")
				}
			}()
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
	poolConfig.ConnConfig.RuntimeParams["application_name"] = "market-api"

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		logger.Fatal().Err(err).Msg("connect database")
	}
	defer pool.Close()
	if err := pool.Ping(ctx); err != nil {
		logger.Fatal().Err(err).Msg("ping database")
	}

	if err := store.Migrate(cfg.DatabaseURL); err != nil {
		logger.Fatal().Err(err).Msg("run migrations")
	}

	redisOpts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("parse redis url")
	}
	redisClient := redis.NewClient(redisOpts)
	if err := redisotel.InstrumentTracing(redisClient); err != nil {
		logger.Error().Err(err).Msg("instrument redis tracing")
	}
	if err := redisotel.InstrumentMetrics(redisClient); err != nil {
		logger.Error().Err(err).Msg("instrument redis metrics")
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Error().Err(err).Msg("close redis")
		}
	}()
	if err := redisClient.Ping(ctx).Err(); err != nil {
		logger.Fatal().Err(err).Msg("ping redis")
	}

	st := store.New(pool)

	catalogService, err := catalog.NewService(catalog.ServiceConfig{
		Store:  st,
		Cache:  catalog.NewCache(redisClient, 5*time.Minute),
		Logger: logger,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("initialise catalog service")
	}
	catalogHandler := catalog.NewHandler(catalogService)

	authService, err := auth.NewService(auth.Config{
		Store:          st,
		Secret:         cfg.JWTSecret,
		AccessTokenTTL: cfg.AccessTokenTTL,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("initialise auth service")
	}
	authHandler := auth.NewHandler(authService)
	authMiddleware := auth.Middleware{Service: authService}

	bus := events.NewBus(st, logger,
		events.LogNotifier{Log: logger},
		events.RedisNotifier{R: redisClient, Log: logger},
	)

	cartService, err := cart.NewService(cart.ServiceConfig{
		Store:   cart.StoreAdapter{Store: st},
		Catalog: catalogService,
		CartTTL: cfg.CartTTL,
		Logger:  logger,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("initialise cart service")
	}
	cartHandler := cart.NewHandler(cartService)

	paypalHTTP := &resilience.HTTPClient{
		Client:      &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport)},
		Breaker:     resilience.NewBreaker(5, 0.5, 30*time.Second).WithTarget("paypal").WithLogger(logger),
		BaseBackoff: 200 * time.Millisecond,
		MaxAttempts: 3,
		Timeout:     15 * time.Second,
	}
	paypalProvider := &payment.PayPal{
		BaseURL:  cfg.PayPalBaseURL,
		ClientID: cfg.PayPalClientID,
		Secret:   cfg.PayPalSecret,
		HTTP:     paypalHTTP,
	}
	providers := func(method paymethod.Method, mcfg paymethod.Config) payment.Provider {
		if method == paymethod.PayPal && !mcfg.SandboxMode {
			return paypalProvider
		}
		return payment.Manual{
			MethodName:   method.String(),
			AccountEmail: mcfg.AccountEmail,
			PhoneNumber:  mcfg.PhoneNumber,
			AccountID:    mcfg.AccountID,
		}
	}

	paymentService, err := payment.NewService(payment.ServiceConfig{
		Store:      st,
		Events:     bus,
		Providers:  providers,
		RequestTTL: cfg.PaymentTTL,
		Currency:   cfg.Currency,
		Logger:     logger,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("initialise payment service")
	}
	paymentHandler := payment.NewHandler(paymentService)

	checkoutService, err := checkout.NewService(checkout.ServiceConfig{
		Store:    checkout.StoreAdapter{Store: st},
		Events:   bus,
		Currency: cfg.Currency,
		Logger:   logger,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("initialise checkout service")
	}
	checkoutHandler := checkout.NewHandler(checkoutService)

	idem := common.Idem{R: redisClient, TTL: 24 * time.Hour}

	limiter, err := ratelimit.New(redisClient, cfg.RateLimit)
	if err != nil {
		logger.Fatal().Err(err).Msg("initialise rate limiter")
	}
	rateLimit := ratelimit.Middleware{Limiter: limiter, Log: logger}

	buckets := obs.ParseBucketsCSV(cfg.MetricsBucketsCSV)
	httpMetrics := obs.NewHTTPMetrics(metricsNamespace, buckets, nil)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(obs.RoutePatternMiddleware)
	if tracingEnabled {
		r.Use(obs.TracingMiddleware)
	}
	r.Use(obs.HTTPObs{Metrics: httpMetrics}.Middleware)
	r.Use(obs.RequestLogger{Logger: logger}.Middleware)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins(cfg),
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "Idempotency-Key"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	r.Use(rateLimit.Handle)

	r.Handle("/metrics", promhttp.Handler())

	healthHandler := health.Handler{
		Checker: health.Probes{DB: pool, Redis: redisClient},
	}
	r.Get("/health/live", healthHandler.Live)
	r.Get("/health/ready", healthHandler.Ready)

	r.Route("/api/v1", func(v chi.Router) {
		v.Get("/tradelines", catalogHandler.Tradelines)
		v.Get("/tradelines/{id}", catalogHandler.TradelineDetail)

		v.Route("/auth", func(a chi.Router) {
			a.Post("/register", authHandler.Register)
			a.Post("/login", authHandler.Login)
			a.Group(func(protected chi.Router) {
				protected.Use(authMiddleware.RequireAuth)
				protected.Get("/me", authHandler.Me)
			})
		})

		v.Route("/carts", func(c chi.Router) {
			c.Use(authMiddleware.Authenticate)
			c.Get("/{id}", cartHandler.Get)
			c.Group(func(g chi.Router) {
				g.Use(idem.Middleware)
				g.Post("/", cartHandler.Create)
				g.Post("/{id}/items", cartHandler.AddItem)
				g.Patch("/{id}/items/{itemId}", cartHandler.UpdateItem)
				g.Delete("/{id}/items/{itemId}", cartHandler.RemoveItem)
				g.Post("/{id}/clear", cartHandler.Clear)
				g.Put("/{id}/adjustments", cartHandler.SetAdjustments)
				g.Put("/{id}/payment-mode", cartHandler.SetPaymentMode)
				g.With(authMiddleware.RequireAuth).Post("/{id}/checkout", checkoutHandler.Checkout)
			})
		})

		v.Route("/payments", func(p chi.Router) {
			p.Use(authMiddleware.RequireAuth)
			p.Post("/fees", paymentHandler.Fees)
			p.Get("/{id}", paymentHandler.Get)
			p.Group(func(g chi.Router) {
				g.Use(idem.Middleware)
				g.Post("/", paymentHandler.Create)
				g.Post("/{id}/complete", paymentHandler.Complete)
				g.Post("/{id}/cancel", paymentHandler.Cancel)
			})
		})

		v.Route("/admin", func(admin chi.Router) {
			admin.Use(authMiddleware.RequireRole("admin"))
			admin.Get("/payment-configs", paymentHandler.ListConfigs)
			admin.Put("/payment-configs/{method}", paymentHandler.SaveConfig)
			admin.Post("/payment-configs/{method}/test", paymentHandler.TestConfig)
			admin.Post("/payment-configs/{method}/sample", paymentHandler.SamplePayment)
			admin.Post("/payments/{id}/verify", paymentHandler.Verify)
		})
	})

	watcher := payment.Watcher{
		Service:  paymentService,
		Interval: cfg.WatcherInterval,
		Logger:   logger,
	}
	go watcher.Run(ctx)

	srv := &http.Server{
		Addr:              cfg.HTTPAddr(),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", srv.Addr).Msg("server starting")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		logger.Info().Msg("shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error().Err(err).Msg("graceful shutdown failed")
		}
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("server exited unexpectedly")
		}
	}
}

func allowedOrigins(cfg *config.Config) []string {
	if len(cfg.CORSAllowedOrigins) == 0 {
		return []string{"*"}
	}
	return cfg.CORSAllowedOrigins
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
