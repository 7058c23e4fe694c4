package ws

import "context"

// WorkspaceStorage persists the workspace document as opaque bytes.
// Load returns nil data and a nil error when nothing has been saved yet.
type WorkspaceStorage interface {
	Load(ctx context.Context) ([]byte, error)
	Save(ctx context.Context, data []byte) error
}

// SessionStorage persists the session state. Implementations apply their own
// retention and transport policy; Load returns nil when nothing usable is stored.
type SessionStorage interface {
	Load(ctx context.Context) (*SessionState, error)
	Save(ctx context.Context, state SessionState) error
	Clear(ctx context.Context) error
}
