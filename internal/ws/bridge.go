package ws

import (
	"context"
	"fmt"
)

// Bridge moves state between the in-memory Store and Auth and their two
// persistence ports.
type Bridge struct {
	workspaces WorkspaceStorage
	sessions   SessionStorage
	logger     Logger
}

func NewBridge(workspaces WorkspaceStorage, sessions SessionStorage, logger Logger) *Bridge {
	if logger == nil {
		logger = NewNopLogger()
	}
	return &Bridge{workspaces: workspaces, sessions: sessions, logger: logger}
}

// Restore loads and migrates the workspace document and loads the session.
// Missing data yields an empty store and a logged-out session.
func (b *Bridge) Restore(ctx context.Context) (*Store, SessionState, error) {
	store, err := b.RestoreWorkspaces(ctx)
	if err != nil {
		return nil, SessionState{}, err
	}

	session, err := b.sessions.Load(ctx)
	if err != nil {
		return nil, SessionState{}, fmt.Errorf("loading session: %w", err)
	}
	if session == nil {
		return store, SessionState{}, nil
	}
	return store, *session, nil
}

// RestoreWorkspaces loads and migrates the workspace document only.
func (b *Bridge) RestoreWorkspaces(ctx context.Context) (*Store, error) {
	data, err := b.workspaces.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading workspaces: %w", err)
	}
	if len(data) == 0 {
		b.logger.Debug("no persisted workspaces")
		return NewStore(b.logger), nil
	}

	doc, migrated, err := DecodeDocument(data)
	if err != nil {
		return nil, err
	}
	if migrated {
		b.logger.Info("migrated persisted workspaces")
	}
	return NewStoreFromDocument(doc, b.logger), nil
}

// Persist writes both the workspace document and the session.
func (b *Bridge) Persist(ctx context.Context, store *Store, session SessionState) error {
	if err := b.PersistWorkspaces(ctx, store); err != nil {
		return err
	}
	return b.PersistSession(ctx, session)
}

// PersistWorkspaces writes the workspace document.
func (b *Bridge) PersistWorkspaces(ctx context.Context, store *Store) error {
	data, err := EncodeDocument(store.Document())
	if err != nil {
		return err
	}
	if err := b.workspaces.Save(ctx, data); err != nil {
		return fmt.Errorf("saving workspaces: %w", err)
	}
	return nil
}

// PersistSession writes the session, or clears it when it holds neither a
// token nor a pending login.
func (b *Bridge) PersistSession(ctx context.Context, session SessionState) error {
	if session.Token == "" && session.OAuthState == "" {
		if err := b.sessions.Clear(ctx); err != nil {
			return fmt.Errorf("clearing session: %w", err)
		}
		return nil
	}
	if err := b.sessions.Save(ctx, session); err != nil {
		return fmt.Errorf("saving session: %w", err)
	}
	return nil
}
