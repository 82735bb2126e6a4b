// Package postgres implements the storage.Backend interface on PostgreSQL
// through the GORM backend.
package postgres

import (
	"fmt"

	"github.com/killindicator/extension/internal/config"
	"github.com/killindicator/extension/internal/database"
	gormstorage "github.com/killindicator/extension/internal/storage/gorm"
	"gorm.io/gorm"
)

const maxOpenConns = 10

// Backend is the GORM backend bound to a Postgres connection.
type Backend struct {
	*gormstorage.Backend
	cfg  config.DBConfig
	open func(config.DBConfig) (*gorm.DB, error)
}

// New creates a Postgres backend. The connection is made by Init.
func New(cfg config.DBConfig, deps gormstorage.Dependencies) *Backend {
	return &Backend{
		Backend: gormstorage.New(deps),
		cfg:     cfg,
		open:    database.OpenPostgres,
	}
}

// Init connects, validates the connection and migrates the schema.
func (b *Backend) Init() error {
	db, err := b.open(b.cfg)
	if err != nil {
		return fmt.Errorf("failed to connect to postgres: %w", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("failed to access sql interface: %w", err)
	}
	if err = sqlDB.Ping(); err != nil {
		return fmt.Errorf("failed to validate connection: %w", err)
	}
	sqlDB.SetMaxOpenConns(maxOpenConns)

	b.SetDB(db)
	return b.Backend.Init()
}
