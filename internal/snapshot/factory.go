package snapshot

import (
	"context"
	"fmt"

	"ghedit-go/internal/config"
	"ghedit-go/internal/database"
	"ghedit-go/internal/ws"
)

// NewStorageFromConfig creates the WorkspaceStorage selected by cfg. The
// sqlite medium shares db with the operation journal.
func NewStorageFromConfig(ctx context.Context, cfg config.WorkspaceStorageConfig, db *database.SQLiteDatabase) (ws.WorkspaceStorage, error) {
	key := cfg.Key
	if key == "" {
		key = config.DefaultStorageKey
	}

	switch cfg.Type {
	case "sqlite", "":
		if db == nil {
			return nil, fmt.Errorf("sqlite workspace storage requires a database")
		}
		return database.NewWorkspaceStorage(db, key), nil
	case "memory":
		return NewMemoryStorage(), nil
	case "s3":
		if cfg.S3Bucket == "" {
			return nil, fmt.Errorf("s3 workspace storage requires s3_bucket to be set")
		}
		return NewS3StorageFromConfig(ctx, cfg)
	default:
		return nil, fmt.Errorf("unknown workspace storage type: %s", cfg.Type)
	}
}
