// internal/storage/factory.go
package storage

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/killindicator/extension/internal/config"
	gormstorage "github.com/killindicator/extension/internal/storage/gorm"
	"github.com/killindicator/extension/internal/storage/memory"
	"github.com/killindicator/extension/internal/storage/postgres"
	sqlitestorage "github.com/killindicator/extension/internal/storage/sqlite"
	"github.com/killindicator/extension/internal/storage/websocket"
)

// Deps are shared by every backend.
type Deps struct {
	Logger  *slog.Logger
	Version string
}

const defaultFlushInterval = 5 * time.Second

// NewBackend creates a storage backend based on configuration
func NewBackend(cfg config.StorageConfig, deps Deps) (Backend, error) {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	gormDeps := gormstorage.Dependencies{
		Logger:        deps.Logger,
		Version:       deps.Version,
		FlushInterval: cfg.SQLite.FlushInterval,
	}
	if gormDeps.FlushInterval <= 0 {
		gormDeps.FlushInterval = defaultFlushInterval
	}

	switch cfg.Type {
	case "postgres":
		return postgres.New(cfg.Postgres, gormDeps), nil
	case "sqlite":
		return sqlitestorage.New(sqlitestorage.Config{
			Path:     cfg.SQLite.Path,
			DumpDir:  filepath.Clean(cfg.SQLite.OutputDir),
			Interval: cfg.SQLite.FlushInterval,
		}, gormDeps), nil
	case "websocket":
		return websocket.New(websocket.Config{
			URL:     WebSocketURL(cfg.API.ServerURL),
			Secret:  cfg.API.APIKey,
			Version: deps.Version,
		}, deps.Logger), nil
	case "memory", "":
		return memory.New(cfg.Memory, deps.Version), nil
	default:
		return nil, fmt.Errorf("unknown storage type: %s", cfg.Type)
	}
}

// WebSocketURL turns the feed server base URL into its live feed endpoint.
func WebSocketURL(serverURL string) string {
	u := strings.TrimRight(serverURL, "/")
	switch {
	case strings.HasPrefix(u, "https://"):
		u = "wss://" + strings.TrimPrefix(u, "https://")
	case strings.HasPrefix(u, "http://"):
		u = "ws://" + strings.TrimPrefix(u, "http://")
	}
	return u + "/api/v1/killfeed/ws"
}
