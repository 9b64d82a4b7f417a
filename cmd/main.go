package main

import (
	"context"
	"fmt"
	"net/http"
	_ "net/http/pprof"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/opsbed/fibsvc/cmd/handler"
	"github.com/opsbed/fibsvc/pkg/config"
	"github.com/opsbed/fibsvc/pkg/fibonacci"
	"github.com/opsbed/fibsvc/pkg/logger"
	"github.com/opsbed/fibsvc/pkg/metrics"
	"github.com/opsbed/fibsvc/pkg/telemetry"
	"github.com/opsbed/fibsvc/pkg/tracing"
)

const serviceName = "fibsvc"

func main() {
	ctx := context.Background()

	logger.Init()
	log := logger.Get()

	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "/etc/config/config.yaml"
	}

	cfgManager, err := config.NewConfigManager(configPath)
	if err != nil {
		log.Fatal().Err(err).Str("path", configPath).Msg("Failed to load config")
	}
	handler.SetConfigManager(cfgManager)

	cfg := cfgManager.Get()

	logger.SetLogLevel(cfg.Logging.Level)
	if cfg.Features.EnableDebugLogging {
		logger.SetLogLevel("debug")
	}
	if cfg.Logging.Loki.Enabled && cfg.Logging.Loki.URL != "" {
		lw := logger.NewLokiWriter(cfg.Logging.Loki.URL, cfg.Logging.Loki.Labels)
		defer lw.Close()
		logger.AddSink(lw)
		log = logger.Get()
	}

	cfgManager.OnChange(func(cfg *config.Config) {
		log.Info().
			Bool("debug", cfg.Features.EnableDebugLogging).
			Bool("profiling", cfg.Features.EnableProfiling).
			Bool("tracing", cfg.Features.EnableTracing).
			Msg("Configuration updated")

		if cfg.Features.EnableDebugLogging {
			logger.SetLogLevel("debug")
		} else {
			logger.SetLogLevel(cfg.Logging.Level)
		}
	})

	if cfg.Features.EnableTracing {
		shutdownTracer, err := tracing.InitTracer(ctx, serviceName, cfg.Telemetry, cfg.Features.EnableProfiling)
		if err != nil {
			log.Error().Err(err).Msg("Failed to initialize tracer")
		} else {
			defer func() {
				if err := shutdownTracer(context.Background()); err != nil {
					log.Error().Err(err).Msg("Failed to shut down tracer")
				}
			}()
		}
	}

	if cfg.Features.EnableMetrics {
		shutdownMeter, err := telemetry.InitMeter(ctx, serviceName, cfg.Telemetry)
		if err != nil {
			log.Error().Err(err).Msg("Failed to initialize meter")
		} else {
			defer func() {
				if err := shutdownMeter(context.Background()); err != nil {
					log.Error().Err(err).Msg("Failed to shut down meter")
				}
			}()
		}
	}

	// The computer binds to whatever providers are registered at this point;
	// with telemetry disabled it falls back to the no-op globals.
	computer, err := fibonacci.NewComputer()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create fibonacci computer")
	}
	handler.SetComputer(computer)

	metrics.RecordApplicationInfo(os.Getenv("SERVICE_VERSION"), runtime.Version())

	if cfg.Features.EnableProfiling {
		pprofPort := os.Getenv("PPROF_PORT")
		if pprofPort == "" {
			pprofPort = "6060"
		}
		go func() {
			log.Info().Str("port", pprofPort).Msg("Starting pprof server")
			if err := http.ListenAndServe(":"+pprofPort, nil); err != nil {
				log.Error().Err(err).Msg("pprof server error")
			}
		}()
	}

	r := newRouter()

	port := fmt.Sprintf("%d", cfg.Server.Port)
	if envPort := os.Getenv("PORT"); envPort != "" {
		port = envPort
	}

	srv := &http.Server{
		Addr:         ":" + port,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	log.Info().
		Str("port", port).
		Dur("readTimeout", cfg.Server.ReadTimeout).
		Dur("writeTimeout", cfg.Server.WriteTimeout).
		Msg("Starting fibsvc")

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Server failed to start")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	if err := logger.Shutdown(); err != nil {
		log.Error().Err(err).Msg("Failed to flush logs")
	}

	log.Info().Msg("Server exited")
}
