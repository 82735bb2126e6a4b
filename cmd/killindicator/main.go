package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/killindicator/extension/internal/config"
	"github.com/killindicator/extension/internal/dispatcher"
	"github.com/killindicator/extension/internal/logging"
	"github.com/killindicator/extension/internal/monitor"
	intOtel "github.com/killindicator/extension/internal/otel"
	"github.com/killindicator/extension/internal/storage"
	"github.com/killindicator/extension/internal/worker"
	"github.com/killindicator/extension/pkg/hostinterface"

	sdklog "go.opentelemetry.io/otel/sdk/log"
)

// module defs - BuildDate can be set at build time via ldflags
var (
	CurrentExtensionVersion string = "0.1.0"
	BuildDate               string = "unknown"

	ExtensionName string = "killindicator"
)

// file paths
var (
	// ModuleFolder holds the shared library and its config file.
	ModuleFolder string

	LogFilePath string
	LogFile     *os.File
)

var (
	// SlogManager handles all slog-based logging
	SlogManager *logging.SlogManager

	// Logger is the slog logger (convenience reference)
	Logger *slog.Logger

	// OTelProvider handles OpenTelemetry
	OTelProvider *intOtel.Provider

	SessionStartTime time.Time = time.Now()

	workerManager   *worker.Manager
	monitorService  *monitor.Service
	eventDispatcher *dispatcher.Dispatcher
	storageBackend  storage.Backend
	influxManager   metricsSink
)

// init is run automatically when the module is loaded
func init() {
	ModuleFolder = hostinterface.ModuleDir()

	SlogManager = logging.NewSlogManager()
	SlogManager.Setup(logging.Options{Level: "info"})
	Logger = SlogManager.Logger()

	if err := config.Load(ModuleFolder); err != nil {
		Logger.Warn("Failed to load config, using defaults!", "error", err)
	} else {
		Logger.Info("Loaded config", "dir", ModuleFolder)
	}

	setupLogging()

	if err := setupHostInterface(); err != nil {
		Logger.Error("Failed to set up host interface!", "error", err)
		panic(err)
	}
	Logger.Info("Extension ready", "version", CurrentExtensionVersion, "build", BuildDate)
}

func resolveDir(dir string) string {
	if filepath.IsAbs(dir) {
		return dir
	}
	return filepath.Join(ModuleFolder, dir)
}

// logWriter is the log file, or stdout when it could not be opened.
func logWriter() io.Writer {
	if LogFile == nil {
		return os.Stdout
	}
	return LogFile
}

func setupLogging() {
	var err error
	LogFilePath, LogFile, err = logging.OpenSessionLog(resolveDir(config.GetString("logsDir")), ExtensionName, SessionStartTime)
	if err != nil {
		Logger.Error("Failed to create/open log file!", "error", err, "path", LogFilePath)
	}

	// Initialize OTel provider if enabled (after log file is created)
	var otelLogProvider *sdklog.LoggerProvider
	otelCfg := config.GetOTelConfig()
	if otelCfg.Enabled && LogFile != nil {
		OTelProvider, err = intOtel.New(otelCfg, LogFile, CurrentExtensionVersion)
		if err != nil {
			Logger.Error("Failed to initialize OTel provider", "error", err)
			OTelProvider = nil
		} else {
			otelLogProvider = OTelProvider.LoggerProvider()
			Logger.Info("OTel provider initialized", "file", LogFilePath, "endpoint", otelCfg.Endpoint)
		}
	}

	var extra []slog.Handler
	level := config.GetString("logLevel")
	if gl := config.GetGraylogConfig(); gl.Enabled {
		w, err := logging.NewGELFWriter(gl.Address)
		if err != nil {
			Logger.Warn("Graylog forwarding disabled", "error", err)
		} else {
			var lv slog.Level
			if err := lv.UnmarshalText([]byte(level)); err != nil {
				lv = slog.LevelInfo
			}
			extra = append(extra, logging.NewGELFHandler(w, lv, ExtensionName))
		}
	}

	opts := logging.Options{
		File:     logWriter(),
		Level:    level,
		Debug:    config.GetBool("debug"),
		Provider: otelLogProvider,
		Extra:    extra,
		Context: logging.SessionContext(func() (string, uint64) {
			if workerManager == nil {
				return "", 0
			}
			return workerManager.SessionInfo()
		}),
	}
	SlogManager.Setup(opts)
	Logger = SlogManager.Logger()
	Logger.Info("Logging to file", "path", LogFilePath)
}

func setupHostInterface() error {
	hostinterface.SetVersion(CurrentExtensionVersion)

	d, err := dispatcher.New(logging.NewDispatcherLogger(
		logging.NewZerolog(logWriter(), config.GetString("logLevel")),
	))
	if err != nil {
		return fmt.Errorf("failed to create dispatcher: %w", err)
	}
	eventDispatcher = d

	registerLifecycleHandlers(d)

	reconcileCfg := config.GetReconcileConfig()
	storageBackend = initStorage(config.GetStorageConfig())
	influxManager = initInflux(config.GetInfluxConfig())

	deps := worker.Dependencies{
		Logger:    Logger,
		Reconcile: reconcileCfg,
		Uploader:  newUploader(config.GetStorageConfig().API),
	}
	if influxManager != nil {
		deps.Metrics = influxManager
	}
	workerManager = worker.NewManager(deps, storageBackend)
	workerManager.RegisterHandlers(d)

	monitorService = monitor.NewService(monitor.Dependencies{
		Worker: workerManager,
		Outbox: workerManager.Outbox(),
		Logger: Logger,
		Dir:    filepath.Dir(LogFilePath),
	})
	if err := monitorService.Start(); err != nil {
		Logger.Warn("Status monitor not started", "error", err)
	}

	hostinterface.SetDispatcher(d)
	Logger.Info("Dispatcher initialized", "commands", d.Commands())
	return nil
}

// registerLifecycleHandlers adds the commands that do not touch a session.
func registerLifecycleHandlers(d *dispatcher.Dispatcher) {
	d.Register(":VERSION:", func(e dispatcher.Event) (any, error) {
		return []string{CurrentExtensionVersion, BuildDate}, nil
	})

	d.Register(":STATUS:", func(e dispatcher.Event) (any, error) {
		if monitorService == nil {
			return nil, fmt.Errorf("status monitor not running")
		}
		return monitorService.GetStatus(), nil
	})

	d.Register(":FLUSH:", func(e dispatcher.Event) (any, error) {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := SlogManager.Flush(ctx); err != nil {
			Logger.Warn("Failed to flush logs", "error", err)
		}
		if OTelProvider != nil {
			if err := OTelProvider.Flush(ctx); err != nil {
				return nil, err
			}
		}
		return "flushed", nil
	}, dispatcher.Logged())

	d.Register(":SHUTDOWN:", func(e dispatcher.Event) (any, error) {
		shutdown()
		return "stopped", nil
	}, dispatcher.Logged())
}

// shutdown ends the active session and releases every sink.
func shutdown() {
	if monitorService != nil {
		monitorService.Stop()
	}
	if workerManager != nil {
		if err := workerManager.Close(); err != nil {
			Logger.Error("Failed to close worker", "error", err)
		}
	}
	if influxManager != nil {
		if err := influxManager.Close(); err != nil {
			Logger.Warn("Failed to close influx", "error", err)
		}
	}
	if OTelProvider != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := OTelProvider.Shutdown(ctx); err != nil {
			Logger.Warn("Failed to shut down OTel", "error", err)
		}
	}
}
