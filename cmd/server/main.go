package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"recipebox/internal/cache"
	"recipebox/internal/config"
	"recipebox/internal/handlers"
	"recipebox/internal/metrics"
	"recipebox/internal/middleware"
	"recipebox/internal/reconciler"
	"recipebox/internal/store"
	"recipebox/internal/store/memory"
	"recipebox/internal/store/postgres"
)

func main() {
	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Configure logger
	logger, err := setupLogger(&cfg.Logger)
	if err != nil {
		fmt.Printf("Failed to setup logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Starting recipebox server",
		zap.String("address", cfg.Server.GetAddress()),
		zap.String("cache_backend", cfg.Cache.Backend),
		zap.String("store_driver", cfg.Store.Driver),
	)

	var collector *metrics.Collector
	if cfg.Metrics.Enabled {
		collector = metrics.NewCollector(cfg.Metrics.Namespace)
	}

	// Initialize store
	startupCtx, cancelStartup := context.WithTimeout(context.Background(), 30*time.Second)
	st, err := setupStore(startupCtx, &cfg.Store, logger, collector)
	cancelStartup()
	if err != nil {
		logger.Fatal("Failed to initialize store", zap.Error(err))
	}
	defer func() {
		if err := st.Close(); err != nil {
			logger.Error("Failed to close store", zap.Error(err))
		}
	}()

	// Initialize cache
	backend, err := cache.NewBackend(&cfg.Cache, logger)
	if err != nil {
		logger.Fatal("Failed to initialize cache", zap.Error(err))
	}
	responseCache := cache.NewResponseCache(backend, logger)

	pingCtx, cancelPing := context.WithTimeout(context.Background(), 5*time.Second)
	if err := responseCache.Ping(pingCtx); err != nil {
		// the cache fails open, serve from the store until it recovers
		logger.Warn("Cache is not reachable, serving uncached", zap.Error(err))
	} else {
		logger.Info("Cache connection established successfully")
	}
	cancelPing()

	sweepCtx, stopSweep := context.WithCancel(context.Background())
	defer stopSweep()
	go responseCache.Run(sweepCtx, cfg.Cache.SweepInterval)

	var opts []reconciler.Option
	opts = append(opts, reconciler.WithBasePath(cfg.Server.BasePath))
	if collector != nil {
		collector.RegisterCache(cfg.Metrics.Namespace, responseCache)
		opts = append(opts, reconciler.WithRecorder(collector))
	}
	rec := reconciler.New(st, responseCache, logger, opts...)

	// Configure Gin
	if cfg.Logger.Level == "debug" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	// Create router
	router := gin.New()

	// Middlewares
	router.Use(middleware.Recovery(logger))
	router.Use(middleware.RequestID())
	router.Use(middleware.Logger(logger))
	router.Use(middleware.CORS())
	if collector != nil {
		router.Use(middleware.Metrics(collector))
		router.GET(cfg.Metrics.Path, gin.WrapH(collector.Handler()))
	}

	api := handlers.NewAPI(st, rec, responseCache, handlers.Config{
		BasePath:   cfg.Server.BasePath,
		ListingTTL: cfg.Cache.ListingTTL,
		DetailTTL:  cfg.Cache.DetailTTL,
		StatsTTL:   cfg.Cache.StatsTTL,
	}, logger)
	api.Register(router)

	// Configure HTTP server
	server := &http.Server{
		Addr:         cfg.Server.GetAddress(),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Start server in goroutine
	go func() {
		logger.Info("Server starting", zap.String("address", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("Shutting down server...")

	// Graceful shutdown
	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	}

	stopSweep()
	if err := responseCache.Shutdown(ctx); err != nil {
		logger.Error("Failed to shut down cache", zap.Error(err))
	}

	logger.Info("Server exited")
}

// setupStore opens the configured store and wraps it in the circuit breaker
func setupStore(ctx context.Context, cfg *config.StoreConfig, logger *zap.Logger, collector *metrics.Collector) (store.Store, error) {
	var st store.Store

	switch cfg.Driver {
	case config.StorePostgres:
		if cfg.Postgres.AutoMigrate {
			if err := postgres.RunMigrations(ctx, cfg.Postgres.DSN); err != nil {
				return nil, fmt.Errorf("failed to migrate database: %w", err)
			}
			logger.Info("Database migrations applied")
		}

		pool, err := postgres.NewPool(ctx, cfg.Postgres)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to postgres: %w", err)
		}
		st = postgres.NewStore(pool)
		logger.Info("Postgres store connected")
	default:
		st = memory.New()
		logger.Info("Using in-memory store")
	}

	if !cfg.Breaker.Enabled {
		return st, nil
	}

	var onStateChange func(from, to string)
	if collector != nil {
		onStateChange = collector.RecordBreakerTransition
	}
	return store.NewGuarded(st, cfg.Breaker, logger, onStateChange), nil
}

// setupLogger configures the logger according to the configuration
func setupLogger(cfg *config.LoggerConfig) (*zap.Logger, error) {
	var level zapcore.Level
	switch cfg.Level {
	case "debug":
		level = zapcore.DebugLevel
	case "info":
		level = zapcore.InfoLevel
	case "warn":
		level = zapcore.WarnLevel
	case "error":
		level = zapcore.ErrorLevel
	default:
		level = zapcore.InfoLevel
	}

	config := zap.Config{
		Level:       zap.NewAtomicLevelAt(level),
		Development: false,
		Sampling: &zap.SamplingConfig{
			Initial:    100,
			Thereafter: 100,
		},
		Encoding: cfg.Format,
		EncoderConfig: zapcore.EncoderConfig{
			TimeKey:        "timestamp",
			LevelKey:       "level",
			NameKey:        "logger",
			CallerKey:      "caller",
			FunctionKey:    zapcore.OmitKey,
			MessageKey:     "message",
			StacktraceKey:  "stacktrace",
			LineEnding:     zapcore.DefaultLineEnding,
			EncodeLevel:    zapcore.LowercaseLevelEncoder,
			EncodeTime:     zapcore.ISO8601TimeEncoder,
			EncodeDuration: zapcore.SecondsDurationEncoder,
			EncodeCaller:   zapcore.ShortCallerEncoder,
		},
		OutputPaths:      []string{cfg.OutputPath},
		ErrorOutputPaths: []string{cfg.OutputPath},
	}

	return config.Build()
}
