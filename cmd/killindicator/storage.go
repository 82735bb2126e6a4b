package main

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/killindicator/extension/internal/api"
	"github.com/killindicator/extension/internal/config"
	"github.com/killindicator/extension/internal/influx"
	"github.com/killindicator/extension/internal/logging"
	"github.com/killindicator/extension/internal/storage"
	"github.com/killindicator/extension/internal/storage/memory"
	"github.com/killindicator/extension/internal/worker"
)

// metricsSink is the worker's metrics interface plus shutdown.
type metricsSink interface {
	worker.Metrics
	Close() error
}

// initStorage builds the configured backend. A backend that cannot be
// created or initialised falls back to the in-memory feed so kills are
// still exported at :SAVE:.
func initStorage(cfg config.StorageConfig) storage.Backend {
	cfg.Memory.OutputDir = resolveDir(cfg.Memory.OutputDir)
	cfg.SQLite.OutputDir = resolveDir(cfg.SQLite.OutputDir)

	deps := storage.Deps{Logger: Logger, Version: CurrentExtensionVersion}
	backend, err := storage.NewBackend(cfg, deps)
	if err == nil {
		err = backend.Init()
	}
	if err != nil {
		Logger.Error("Failed to initialize storage backend, falling back to memory", "type", cfg.Type, "error", err)
		backend = memory.New(cfg.Memory, CurrentExtensionVersion)
		if err := backend.Init(); err != nil {
			Logger.Error("Failed to initialize memory backend", "error", err)
			return nil
		}
		return backend
	}
	Logger.Info("Storage backend initialized", "type", cfg.Type)
	return backend
}

// initInflux connects the delay metrics sink. Nil when disabled.
func initInflux(cfg config.InfluxConfig) metricsSink {
	if !cfg.Enabled {
		return nil
	}
	backupPath := filepath.Join(
		filepath.Dir(LogFilePath),
		fmt.Sprintf("%s_influx_%s.log.gz", ExtensionName, SessionStartTime.Format("20060102_150405")),
	)
	m := influx.NewManager(cfg, logging.NewZerolog(logWriter(), config.GetString("logLevel")), backupPath)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := m.Connect(ctx); err != nil {
		Logger.Error("Failed to set up influx", "error", err)
		return nil
	}
	Logger.Info("Influx metrics enabled", "valid", m.IsValid, "backup", backupPath)
	return m
}

// newUploader returns the feed server client when uploads are enabled.
func newUploader(cfg config.APIConfig) worker.Uploader {
	if !cfg.Upload || cfg.ServerURL == "" {
		return nil
	}
	client := api.New(cfg.ServerURL, cfg.APIKey)
	go func() {
		if err := client.Healthcheck(); err != nil {
			Logger.Info("Feed server is offline", "url", cfg.ServerURL, "error", err)
		} else {
			Logger.Info("Feed server is online", "url", cfg.ServerURL)
		}
	}()
	return client
}
