package database

import (
	"fmt"
	"os"
	"path/filepath"

	"ghedit-go/internal/config"
	"ghedit-go/internal/ws"
)

// NewDatabaseFromConfig creates a SQLiteDatabase based on the database config type.
// A database that did not exist before is migrated to the latest schema.
func NewDatabaseFromConfig(cfg config.DatabaseConfig, clock ws.Clock) (*SQLiteDatabase, error) {
	var (
		path  string
		fresh bool
	)
	switch cfg.Type {
	case "sqlite":
		if cfg.DataDir == "" {
			return nil, fmt.Errorf("data_dir required for sqlite database")
		}
		if err := os.MkdirAll(cfg.DataDir, 0700); err != nil {
			return nil, fmt.Errorf("creating data dir: %w", err)
		}
		path = filepath.Join(cfg.DataDir, "ghedit.db")
		if _, err := os.Stat(path); os.IsNotExist(err) {
			fresh = true
		}
	case "memory":
		path = ":memory:"
		fresh = true
	default:
		return nil, fmt.Errorf("unknown database type: %s", cfg.Type)
	}

	db, err := NewSQLiteDatabase(path, clock)
	if err != nil {
		return nil, err
	}
	if fresh {
		if err := db.Migrate(); err != nil {
			db.Close()
			return nil, fmt.Errorf("initializing schema: %w", err)
		}
	}
	return db, nil
}
