package encryption

import (
	"fmt"

	"ghedit-go/internal/config"
)

// NewSealerFromConfig creates a Sealer based on the configuration type.
func NewSealerFromConfig(cfg config.EncryptionConfig) (Sealer, error) {
	switch cfg.Type {
	case "age", "":
		if cfg.IdentityPath == "" {
			return nil, fmt.Errorf("age encryption requires identity_path to be set")
		}
		return NewAgeSealer(cfg.IdentityPath), nil
	case "test":
		return NewTestSealer(), nil
	default:
		return nil, fmt.Errorf("unknown encryption type: %q", cfg.Type)
	}
}
