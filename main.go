package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"precipitation-forecast-service/api"
	"precipitation-forecast-service/cache"
	"precipitation-forecast-service/config"
	"precipitation-forecast-service/forecast"
	"precipitation-forecast-service/metrics"
	"precipitation-forecast-service/model"

	"github.com/sirupsen/logrus"
)

func main() {
	cfg, err := config.Load("config.json")
	if err != nil {
		logrus.Fatalf("Failed to load configuration: %v", err)
	}

	logger := newLogger(cfg.Logging)
	logger.Info("Starting precipitation forecast service")

	// Load the model artifact if one exists. The service still comes up
	// without it; prediction endpoints report the model as not loaded
	// until /model/load succeeds.
	store := model.NewStore(cfg.Model.ArtifactPath, logger)
	if rec, err := store.Load(); err != nil {
		if errors.Is(err, model.ErrModelNotFound) {
			logger.WithField("path", cfg.Model.ArtifactPath).
				Warn("No model artifact found; train one with cmd/train")
		} else {
			logger.WithError(err).Warn("Failed to load model artifact")
		}
	} else {
		metrics.ModelLoaded.Set(1)
		metrics.ModelAIC.Set(rec.AIC)
	}

	engine := forecast.NewEngine(logger)
	hybrid := forecast.NewHybridSynthesizer(time.Now().UnixNano())

	var pc *cache.PredictionCache
	if cfg.Cache.Enabled {
		pc, err = cache.New(cfg.Cache.Addr, cfg.Cache.Password, cfg.Cache.DB, cfg.Cache.TTL.Duration, logger)
		if err != nil {
			logger.WithError(err).Warn("Prediction cache unavailable; serving without it")
			pc = nil
		} else {
			defer pc.Close()
		}
	}

	apiServer := api.NewServer(cfg, store, engine, hybrid, pc, logger)

	server := &http.Server{
		Addr:         cfg.Server.Port,
		Handler:      apiServer,
		ReadTimeout:  cfg.Server.ReadTimeout.Duration,
		WriteTimeout: cfg.Server.WriteTimeout.Duration,
		IdleTimeout:  cfg.Server.IdleTimeout.Duration,
	}

	go func() {
		logger.WithField("addr", cfg.Server.Port).Info("HTTP server listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatalf("HTTP server failed: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Error("Server forced to shutdown")
	}

	logger.Info("Server gracefully stopped")
}

func newLogger(cfg config.LoggingConfig) *logrus.Logger {
	logger := logrus.New()

	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)

	if cfg.Format == "json" {
		logger.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}

	return logger
}
