package encryption

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"filippo.io/age"
)

// Sealer encrypts small blobs at rest.
type Sealer interface {
	Seal(plaintext []byte) ([]byte, error)
	Open(ciphertext []byte) ([]byte, error)
}

// AgeSealer seals blobs to an X25519 identity kept in a key file readable
// only by its owner. The key file is generated on first use.
type AgeSealer struct {
	identityPath string

	mu       sync.Mutex
	identity *age.X25519Identity
}

var _ Sealer = (*AgeSealer)(nil)

// NewAgeSealer creates an AgeSealer backed by the key file at identityPath.
func NewAgeSealer(identityPath string) *AgeSealer {
	return &AgeSealer{identityPath: identityPath}
}

// Seal encrypts plaintext to the identity's recipient.
func (s *AgeSealer) Seal(plaintext []byte) ([]byte, error) {
	identity, err := s.loadOrCreate()
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	w, err := age.Encrypt(&buf, identity.Recipient())
	if err != nil {
		return nil, fmt.Errorf("creating encrypted writer: %w", err)
	}
	if _, err := w.Write(plaintext); err != nil {
		return nil, fmt.Errorf("encrypting data: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("finalizing encryption: %w", err)
	}
	return buf.Bytes(), nil
}

// Open decrypts a blob produced by Seal.
func (s *AgeSealer) Open(ciphertext []byte) ([]byte, error) {
	identity, err := s.loadOrCreate()
	if err != nil {
		return nil, err
	}

	r, err := age.Decrypt(bytes.NewReader(ciphertext), identity)
	if err != nil {
		return nil, fmt.Errorf("creating decrypted reader: %w", err)
	}
	plaintext, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("decrypting data: %w", err)
	}
	return plaintext, nil
}

// IsConfigured returns true if the key file exists.
func (s *AgeSealer) IsConfigured() bool {
	_, err := os.Stat(s.identityPath)
	return err == nil
}

// Recipient returns the public half of the identity, creating it if needed.
func (s *AgeSealer) Recipient() (string, error) {
	identity, err := s.loadOrCreate()
	if err != nil {
		return "", err
	}
	return identity.Recipient().String(), nil
}

func (s *AgeSealer) loadOrCreate() (*age.X25519Identity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.identity != nil {
		return s.identity, nil
	}

	data, err := os.ReadFile(s.identityPath)
	switch {
	case err == nil:
		identity, err := age.ParseX25519Identity(strings.TrimSpace(string(data)))
		if err != nil {
			return nil, fmt.Errorf("parsing identity %s: %w", s.identityPath, err)
		}
		s.identity = identity
		return identity, nil
	case !errors.Is(err, os.ErrNotExist):
		return nil, fmt.Errorf("reading identity: %w", err)
	}

	identity, err := age.GenerateX25519Identity()
	if err != nil {
		return nil, fmt.Errorf("generating identity: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(s.identityPath), 0700); err != nil {
		return nil, fmt.Errorf("creating key directory: %w", err)
	}
	// O_EXCL so two processes racing to create the key cannot overwrite each other.
	f, err := os.OpenFile(s.identityPath, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0600)
	if err != nil {
		return nil, fmt.Errorf("creating identity file: %w", err)
	}
	defer f.Close()
	if _, err := io.WriteString(f, identity.String()+"\n"); err != nil {
		return nil, fmt.Errorf("writing identity: %w", err)
	}

	s.identity = identity
	return identity, nil
}
