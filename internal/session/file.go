// Package session stores the restricted session state: credentials and the
// pending login nonce. Stored state expires after a retention period and is
// only kept when the API is reached over a secure transport.
package session

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/fxamacker/cbor/v2"

	"ghedit-go/internal/encryption"
	"ghedit-go/internal/ws"
)

var (
	encMode cbor.EncMode
	decMode cbor.DecMode
)

func init() {
	var err error

	encOptions := cbor.CoreDetEncOptions()
	encOptions.Time = cbor.TimeRFC3339Nano
	encMode, err = encOptions.EncMode()
	if err != nil {
		panic("session: CBOR encoder initialization failed: " + err.Error())
	}

	decMode, err = cbor.DecOptions{}.DecMode()
	if err != nil {
		panic("session: CBOR decoder initialization failed: " + err.Error())
	}
}

// envelope is the sealed payload of the session file.
type envelope struct {
	State     ws.SessionState `json:"state"`
	ExpiresAt time.Time       `json:"expires_at"`
}

// FileStore keeps the session in a single age-sealed file.
type FileStore struct {
	path      string
	sealer    encryption.Sealer
	clock     ws.Clock
	retention time.Duration
	allowed   bool
	logger    ws.Logger
}

var _ ws.SessionStorage = (*FileStore)(nil)

// NewFileStore creates a FileStore. When allowed is false the store neither
// loads nor saves; callers pass false when the session would be used over an
// insecure transport.
func NewFileStore(path string, sealer encryption.Sealer, clock ws.Clock, retention time.Duration, allowed bool, logger ws.Logger) *FileStore {
	return &FileStore{
		path:      path,
		sealer:    sealer,
		clock:     clock,
		retention: retention,
		allowed:   allowed,
		logger:    logger,
	}
}

// Load returns the stored session, or nil when none is stored, it has
// expired, or transport policy forbids using it. Expired files are deleted.
func (s *FileStore) Load(_ context.Context) (*ws.SessionState, error) {
	if !s.allowed {
		s.logger.Warn("session not loaded: api is not reached over https")
		return nil, nil
	}

	sealed, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading session file: %w", err)
	}

	plaintext, err := s.sealer.Open(sealed)
	if err != nil {
		return nil, fmt.Errorf("opening session file: %w", err)
	}

	var env envelope
	if err := decMode.Unmarshal(plaintext, &env); err != nil {
		return nil, fmt.Errorf("decoding session file: %w", err)
	}

	if !s.clock.Now().Before(env.ExpiresAt) {
		s.logger.Info("session expired", "expired_at", env.ExpiresAt.Format(time.RFC3339))
		if err := s.remove(); err != nil {
			return nil, err
		}
		return nil, nil
	}
	return &env.State, nil
}

// Save seals state with a fresh expiry and replaces the file atomically.
func (s *FileStore) Save(_ context.Context, state ws.SessionState) error {
	if !s.allowed {
		s.logger.Warn("session not saved: api is not reached over https")
		return nil
	}

	plaintext, err := encMode.Marshal(envelope{
		State:     state,
		ExpiresAt: s.clock.Now().Add(s.retention).UTC(),
	})
	if err != nil {
		return fmt.Errorf("encoding session: %w", err)
	}
	sealed, err := s.sealer.Seal(plaintext)
	if err != nil {
		return fmt.Errorf("sealing session: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(s.path), 0700); err != nil {
		return fmt.Errorf("creating session directory: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".session-*")
	if err != nil {
		return fmt.Errorf("creating session file: %w", err)
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(sealed); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("writing session file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("writing session file: %w", err)
	}
	if err := os.Rename(tmpPath, s.path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("replacing session file: %w", err)
	}
	return nil
}

// Clear deletes the session file. Clearing an absent session is not an error.
func (s *FileStore) Clear(_ context.Context) error {
	return s.remove()
}

func (s *FileStore) remove() error {
	if err := os.Remove(s.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("removing session file: %w", err)
	}
	return nil
}
