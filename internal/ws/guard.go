package ws

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/zeebo/blake3"
)

// Guard wraps a WorkspaceStorage and detects writes made by other instances.
// It remembers the digest of the last document it loaded or saved; a stored
// document with a different digest was written by someone else, and this
// instance's copy must be reloaded rather than written back.
type Guard struct {
	inner  WorkspaceStorage
	logger Logger

	mu     sync.Mutex
	digest [32]byte
	seen   bool
}

func NewGuard(inner WorkspaceStorage, logger Logger) *Guard {
	if logger == nil {
		logger = NewNopLogger()
	}
	return &Guard{inner: inner, logger: logger}
}

func (g *Guard) Load(ctx context.Context) ([]byte, error) {
	data, err := g.inner.Load(ctx)
	if err != nil {
		return nil, err
	}
	g.remember(data)
	return data, nil
}

// Save refuses with ErrSnapshotChanged when the stored document is not the one
// this instance last saw.
func (g *Guard) Save(ctx context.Context, data []byte) error {
	changed, err := g.Check(ctx)
	if err != nil {
		return err
	}
	if changed {
		return ErrSnapshotChanged
	}
	if err := g.inner.Save(ctx, data); err != nil {
		return err
	}
	g.remember(data)
	return nil
}

// Check reports whether the stored document changed since this instance last
// loaded or saved it.
func (g *Guard) Check(ctx context.Context) (bool, error) {
	data, err := g.inner.Load(ctx)
	if err != nil {
		return false, fmt.Errorf("checking workspaces: %w", err)
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	return g.seen && blake3.Sum256(data) != g.digest, nil
}

// Watch polls the stored document every interval until ctx is done and calls
// onChange once per external change. onChange is expected to reload state.
func (g *Guard) Watch(ctx context.Context, interval time.Duration, onChange func(context.Context) error) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}

		changed, err := g.Check(ctx)
		if err != nil {
			g.logger.Warn("watch check failed", "error", err)
			continue
		}
		if !changed {
			continue
		}

		g.logger.Info("persisted workspaces changed externally")
		if err := onChange(ctx); err != nil {
			return fmt.Errorf("reloading after external change: %w", err)
		}
		// onChange normally reloads through Load; cover callers that don't.
		if still, err := g.Check(ctx); err == nil && still {
			if _, err := g.Load(ctx); err != nil {
				g.logger.Warn("watch reload failed", "error", err)
			}
		}
	}
}

func (g *Guard) remember(data []byte) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.digest = blake3.Sum256(data)
	g.seen = true
}
