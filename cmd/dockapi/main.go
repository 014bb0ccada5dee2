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

	"go.uber.org/zap"

	"github.com/kailas-cloud/dockapi/internal/config"
	dbRedis "github.com/kailas-cloud/dockapi/internal/db/redis"
	logpkg "github.com/kailas-cloud/dockapi/internal/logger"
	"github.com/kailas-cloud/dockapi/internal/metrics"
	"github.com/kailas-cloud/dockapi/internal/repository/dockcache"
	chiTransport "github.com/kailas-cloud/dockapi/internal/transport/chi"
	"github.com/kailas-cloud/dockapi/internal/transport/process"
	"github.com/kailas-cloud/dockapi/internal/transport/remote"
	"github.com/kailas-cloud/dockapi/internal/transport/wire"
	"github.com/kailas-cloud/dockapi/internal/usecase/docking"
	healthuc "github.com/kailas-cloud/dockapi/internal/usecase/health"
	"github.com/kailas-cloud/dockapi/internal/version"
)

// engine is what the composition root needs from an engine transport.
type engine interface {
	docking.Engine
	healthuc.EngineChecker
}

func main() {
	// Load configuration based on ENV
	env := config.GetEnv()

	cfg, err := config.Load(env)
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	logger, err := logpkg.NewLogger(env, cfg.Logging.Level)
	if err != nil {
		panic("failed to create logger: " + err.Error())
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Starting dockapi server",
		zap.String("version", version.Version),
		zap.String("commit", version.Commit),
		zap.String("env", env),
		zap.Int("http_port", cfg.HTTP.Port),
		zap.String("engine_driver", cfg.Engine.Driver),
		zap.Int("engine_max_concurrent", cfg.Engine.MaxConcurrent),
		zap.Bool("cache_enabled", cfg.CacheEnabled()),
	)

	// Register docking metrics explicitly (no init())
	metrics.RegisterDockingMetrics()

	base, err := buildEngine(cfg, logger)
	if err != nil {
		logger.Fatal("Failed to create docking engine", zap.Error(err))
	}

	// Pass nil interfaces (not typed nil pointers) when the store is absent.
	var dbPinger healthuc.DBPinger
	var dockEngine engine = base

	if len(cfg.Database.Addrs) > 0 {
		store, err := dbRedis.NewStore(dbRedis.Config{
			Addrs:    cfg.Database.Addrs,
			Password: cfg.Database.Password,
		})
		if err != nil {
			logger.Fatal("Failed to create database store", zap.Error(err))
		}
		defer store.Close()

		ctx := context.Background()
		if err := store.WaitForReady(ctx, time.Duration(cfg.Database.ReadinessTimeout)*time.Second); err != nil {
			logger.Fatal("Database not ready", zap.Error(err))
		}
		logger.Info("Connected to database",
			zap.String("driver", cfg.Database.Driver),
			zap.Strings("addrs", cfg.Database.Addrs),
		)
		dbPinger = store

		if cfg.CacheEnabled() {
			dockEngine = dockcache.New(base, store, dockcache.Config{
				KeyPrefix: cfg.Cache.KeyPrefix,
				TTL:       time.Duration(cfg.Cache.TTLSec) * time.Second,
				PH:        cfg.Engine.PH,
				Seed:      cfg.Engine.Seed,
			}, metrics.DockingCacheTotal, logger)
		}
	}

	dockSvc := docking.New(dockEngine, docking.Config{
		Driver:        cfg.Engine.Driver,
		Timeout:       time.Duration(cfg.Engine.TimeoutSec) * time.Second,
		MaxConcurrent: cfg.Engine.MaxConcurrent,
	}, logger)
	healthSvc := healthuc.New(dbPinger, dockEngine, healthuc.Config{
		CheckTimeout:   time.Duration(cfg.Engine.HealthTimeoutSec) * time.Second,
		EngineCacheTTL: time.Duration(cfg.Engine.HealthCacheSec) * time.Second,
	})

	server := chiTransport.NewServer(dockSvc, healthSvc, logger)

	addr := fmt.Sprintf(":%d", cfg.HTTP.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           chiTransport.NewRouter(server, cfg.Auth.APIKeys, logger),
		ReadTimeout:       time.Duration(cfg.HTTP.ReadTimeoutSec) * time.Second,
		ReadHeaderTimeout: time.Duration(cfg.HTTP.ReadTimeoutSec) * time.Second,
		WriteTimeout:      time.Duration(cfg.HTTP.WriteTimeoutSec) * time.Second,
	}

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	go func() {
		logger.Info("Starting HTTP server", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("HTTP server error", zap.Error(err))
		}
	}()

	<-quit
	logger.Info("Received shutdown signal")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.HTTP.ShutdownSec)*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Error during shutdown", zap.Error(err))
	}

	logger.Info("Server stopped gracefully")
}

// buildEngine creates the engine transport selected by engine.driver.
func buildEngine(cfg config.Config, logger *zap.Logger) (engine, error) {
	params := wire.DockParams{
		PH:      cfg.Engine.PH,
		NumCPUs: cfg.Engine.NumCPUs,
		Seed:    cfg.Engine.Seed,
	}

	switch cfg.Engine.Driver {
	case config.EngineDriverProcess:
		e, err := process.NewEngine(process.Config{
			Command: cfg.Engine.Command,
			WorkDir: cfg.Engine.WorkDir,
			Params:  params,
			Logger:  logger,
		})
		if err != nil {
			return nil, fmt.Errorf("process engine: %w", err)
		}
		return e, nil
	case config.EngineDriverRemote:
		e, err := remote.NewEngine(remote.Config{
			BaseURL:    cfg.Engine.BaseURL,
			MaxRetries: cfg.Engine.MaxRetries,
			Params:     params,
			Logger:     logger,
		})
		if err != nil {
			return nil, fmt.Errorf("remote engine: %w", err)
		}
		return e, nil
	default:
		return nil, fmt.Errorf("unknown engine driver %q", cfg.Engine.Driver)
	}
}
