package session

import (
	"fmt"

	"ghedit-go/internal/config"
	"ghedit-go/internal/encryption"
	"ghedit-go/internal/ws"
)

// NewStorageFromConfig creates the SessionStorage selected by cfg.SessionStorage.
func NewStorageFromConfig(cfg *config.Config, clock ws.Clock, logger ws.Logger) (ws.SessionStorage, error) {
	switch cfg.SessionStorage.Type {
	case "file", "":
		retention, err := cfg.SessionStorage.RetentionDuration()
		if err != nil {
			return nil, err
		}
		sealer, err := encryption.NewSealerFromConfig(cfg.Encryption)
		if err != nil {
			return nil, fmt.Errorf("creating sealer: %w", err)
		}
		allowed := !cfg.SessionStorage.SecureOnly || cfg.GitHub.SecureTransport()
		return NewFileStore(cfg.SessionStorage.Path, sealer, clock, retention, allowed, logger), nil
	case "memory":
		return NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unknown session storage type: %s", cfg.SessionStorage.Type)
	}
}
