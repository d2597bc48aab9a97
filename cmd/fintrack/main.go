package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"fintrack/internal/amqp"
	"fintrack/internal/auth"
	"fintrack/internal/backend"
	"fintrack/internal/cache"
	"fintrack/internal/cli"
	"fintrack/internal/core"
	"fintrack/internal/filter"
	apphttp "fintrack/internal/http"
	applog "fintrack/internal/log"
	"fintrack/internal/search"
	"fintrack/internal/services"
)

func main() {
	cli.LoadEnvFile()
	cfg := cli.LoadAndValidateConfig()
	logger := cli.SetupLogger(cfg.LogLevel, applog.ComponentApp)
	ctx := context.Background()

	backendCfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		logger.ErrorContext(ctx, "Invalid backend configuration", "error", err)
		os.Exit(1)
	}
	res, err := backend.NewFactory(logger.Logger).CreateBackend(ctx, backendCfg)
	if err != nil {
		logger.ErrorContext(ctx, "Failed to initialize backend", "error", err, "backend", cfg.DataBackend)
		os.Exit(1)
	}

	opts := []services.Option{}

	cacheManager := cache.NewManager()
	if cfg.RedisAddr != "" {
		rdb, err := cache.NewRedisClient(ctx, cfg.RedisAddr)
		if err != nil {
			logger.ErrorContext(ctx, "Failed to connect to Redis", "error", err, "addr", cfg.RedisAddr)
			os.Exit(1)
		}
		defer rdb.Close()
		opts = append(opts, services.WithCache(cache.NewRedisCache[[]core.Transaction](rdb, "fintrack", cfg.CacheTTL)))
		logger.InfoContext(ctx, "Using Redis cache", "addr", cfg.RedisAddr)
	} else {
		lru := cache.NewLRUCache[[]core.Transaction](cfg.CacheSize, cfg.CacheTTL)
		cacheManager.Register(lru)
		cacheManager.StartCleanup(cfg.CacheTTL)
		opts = append(opts, services.WithCache(lru))
	}

	var publisher *amqp.Client
	if cfg.AMQPEnabled() {
		publisher, err = amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			// Writes still succeed without events; exports just lag.
			logger.WarnContext(ctx, "Failed to initialize AMQP client, continuing without events", "error", err)
			publisher = nil
		} else {
			opts = append(opts, services.WithPublisher(publisher))
			logger.InfoContext(ctx, "Initialized AMQP publisher", "exchange", cfg.AMQPExchange, "queue", cfg.AMQPQueue)
		}
	}

	scorer, err := search.GetScorer(cfg.SearchScorer)
	if err != nil {
		logger.ErrorContext(ctx, "Unknown search scorer", "error", err, "available", search.Scorers())
		os.Exit(1)
	}

	transactions := services.NewTransactionService(res.Store, opts...)
	deps := apphttp.Deps{
		Auth:         auth.NewService(res.Store, auth.NewTokenIssuer(cfg.JWTSecret, cfg.SessionTTL)),
		Transactions: transactions,
		Imports:      services.NewImportService(transactions),
		Views:        services.NewViewService(transactions, filter.NewEngine(search.NewMatcher(scorer))),
		Ready:        res.Ready,
	}
	if publisher != nil {
		deps.ImportQueue = publisher
	}

	srv := apphttp.NewServer(":"+cfg.Port, deps, apphttp.Options{
		RateLimitPerMinute: cfg.RateLimitPerMinute,
		Logger:             logger,
		SecureCookies:      cfg.SecureCookies,
	})

	shutdownCtx, done := cli.GracefulShutdown(logger, 30*time.Second, func(ctx context.Context) {
		if err := srv.Shutdown(ctx); err != nil {
			logger.ErrorContext(ctx, "Server shutdown error", "error", err)
		}
		cacheManager.Stop()
		if publisher != nil {
			if err := publisher.Close(); err != nil {
				logger.WarnContext(ctx, "Failed to close AMQP client", "error", err)
			}
		}
		if res.Cleanup != nil {
			if err := res.Cleanup(); err != nil {
				logger.WarnContext(ctx, "Failed to close backend", "error", err)
			}
		}
	})

	logger.InfoContext(ctx, "Starting fintrack server",
		"port", cfg.Port,
		"backend", cfg.DataBackend,
		"amqp_enabled", publisher != nil,
		"redis_enabled", cfg.RedisAddr != "",
		"scorer", cfg.SearchScorer)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.ErrorContext(ctx, "Server error", "error", err, "port", cfg.Port)
		os.Exit(1)
	}

	cli.WaitForShutdown(shutdownCtx, done)
	metrics, limited, suspicious := srv.Metrics()
	logger.InfoContext(ctx, "Server stopped gracefully",
		"requests", metrics.TotalRequests,
		"avg_response_us", metrics.AverageResponseMicros,
		"rate_limited", limited,
		"suspicious", suspicious)
}
