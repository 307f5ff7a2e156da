package main

import (
	"context"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/extra/redisotel/v9"
	redis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/rockettradeline/backend-market/internal/cart"
	"github.com/rockettradeline/backend-market/internal/catalog"
	"github.com/rockettradeline/backend-market/internal/config"
	"github.com/rockettradeline/backend-market/internal/events"
	"github.com/rockettradeline/backend-market/internal/lock"
	"github.com/rockettradeline/backend-market/internal/obs"
	"github.com/rockettradeline/backend-market/internal/payment"
	"github.com/rockettradeline/backend-market/internal/store"
)

const (
	taskCartSweep     = "cart:sweep"
	taskPaymentExpire = "payment:expire"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logFormat := envOrDefault("OBS_LOG_FORMAT", "json")
	logLevel := envOrDefault("OBS_LOG_LEVEL", "info")
	logger := obs.NewLogger(logFormat, logLevel).With().Str("component", "worker").Logger()
	obs.MustRegisterDomainMetrics(envOrDefault("OBS_METRICS_NAMESPACE", "market"), nil)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool := mustInitDatabase(ctx, cfg, logger)
	defer pool.Close()

	redisOpts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("parse redis url")
	}
	redisClient := redis.NewClient(redisOpts)
	if err := redisotel.InstrumentTracing(redisClient); err != nil {
		logger.Error().Err(err).Msg("instrument redis tracing")
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
	cartService, err := cart.NewService(cart.ServiceConfig{
		Store:   cart.StoreAdapter{Store: st},
		Catalog: catalogService,
		CartTTL: cfg.CartTTL,
		Logger:  logger,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("initialise cart service")
	}
	bus := events.NewBus(st, logger, events.LogNotifier{Log: logger},
		events.RedisNotifier{R: redisClient, Log: logger})

	paymentService, err := payment.NewService(payment.ServiceConfig{
		Store:      st,
		Events:     bus,
		RequestTTL: cfg.PaymentTTL,
		Currency:   cfg.Currency,
		Logger:     logger,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("initialise payment service")
	}

	locker := lock.Locker{R: redisClient, RetryBackoff: 250 * time.Millisecond}

	asynqOpt := asynq.RedisClientOpt{
		Addr:     redisOpts.Addr,
		Username: redisOpts.Username,
		Password: redisOpts.Password,
		DB:       redisOpts.DB,
	}

	mux := asynq.NewServeMux()
	mux.HandleFunc(taskCartSweep, func(jobCtx context.Context, _ *asynq.Task) error {
		return locker.WithLock(jobCtx, "lock:"+taskCartSweep, time.Minute, func(lockCtx context.Context) error {
			n, err := cartService.SweepExpired(lockCtx)
			if err != nil {
				return err
			}
			logger.Debug().Int64("expired", n).Msg("cart sweep complete")
			return nil
		})
	})
	mux.HandleFunc(taskPaymentExpire, func(jobCtx context.Context, _ *asynq.Task) error {
		return locker.WithLock(jobCtx, "lock:"+taskPaymentExpire, time.Minute, func(lockCtx context.Context) error {
			n, err := paymentService.ExpireOverdue(lockCtx)
			if err != nil {
				return err
			}
			logger.Debug().Int64("expired", n).Msg("payment expiry sweep complete")
			return nil
		})
	})

	srv := asynq.NewServer(asynqOpt, asynq.Config{Concurrency: 4})
	scheduler := asynq.NewScheduler(asynqOpt, &asynq.SchedulerOpts{})
	if _, err := scheduler.Register("@every 5m", asynq.NewTask(taskCartSweep, nil)); err != nil {
		logger.Fatal().Err(err).Msg("register cart sweep")
	}
	if _, err := scheduler.Register("@every 1m", asynq.NewTask(taskPaymentExpire, nil)); err != nil {
		logger.Fatal().Err(err).Msg("register payment expiry sweep")
	}

	if err := scheduler.Start(); err != nil {
		logger.Fatal().Err(err).Msg("start scheduler")
	}
	if err := srv.Start(mux); err != nil {
		logger.Fatal().Err(err).Msg("start worker")
	}

	logger.Info().Msg("worker started")
	<-ctx.Done()
	logger.Info().Msg("shutdown signal received")
	scheduler.Shutdown()
	srv.Shutdown()
	logger.Info().Msg("worker shutdown complete")
}

func mustInitDatabase(ctx context.Context, cfg *config.Config, logger zerolog.Logger) *pgxpool.Pool {
	poolConfig, err := pgxpool.ParseConfig(cfg.DatabaseURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("parse database config")
	}
	poolConfig.ConnConfig.Tracer = obs.PGXTracer{}
	if poolConfig.ConnConfig.RuntimeParams == nil {
		poolConfig.ConnConfig.RuntimeParams = map[string]string{}
	}
	poolConfig.ConnConfig.RuntimeParams["application_name"] = "market-worker"

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		logger.Fatal().Err(err).Msg("connect database")
	}
	if err := pool.Ping(ctx); err != nil {
		logger.Fatal().Err(err).Msg("ping database")
	}
	return pool
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
