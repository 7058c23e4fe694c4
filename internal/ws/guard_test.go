package ws_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"ghedit-go/internal/snapshot"
	"ghedit-go/internal/ws"
)

func TestGuard_SaveRefusesExternalChange(t *testing.T) {
	ctx := context.Background()
	inner := snapshot.NewMemoryStorage()
	inner.Save(ctx, []byte(`{"v":1}`))
	g := ws.NewGuard(inner, nil)

	if _, err := g.Load(ctx); err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if err := g.Save(ctx, []byte(`{"v":2}`)); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	// Another instance writes.
	inner.Save(ctx, []byte(`{"v":"other"}`))

	changed, err := g.Check(ctx)
	if err != nil {
		t.Fatalf("Check() error = %v", err)
	}
	if !changed {
		t.Fatal("Check() = false after external write")
	}
	if err := g.Save(ctx, []byte(`{"v":3}`)); !errors.Is(err, ws.ErrSnapshotChanged) {
		t.Fatalf("Save() error = %v, want ErrSnapshotChanged", err)
	}
	data, _ := inner.Load(ctx)
	if string(data) != `{"v":"other"}` {
		t.Errorf("stored document = %s, stale copy was written back", data)
	}

	// After reloading, saving works again.
	if _, err := g.Load(ctx); err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if err := g.Save(ctx, []byte(`{"v":4}`)); err != nil {
		t.Fatalf("Save() after reload error = %v", err)
	}
}

func TestGuard_NothingPersistedYet(t *testing.T) {
	ctx := context.Background()
	g := ws.NewGuard(snapshot.NewMemoryStorage(), nil)

	data, err := g.Load(ctx)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if data != nil {
		t.Errorf("Load() = %s, want nil", data)
	}
	if changed, _ := g.Check(ctx); changed {
		t.Error("Check() = true with nothing stored")
	}
	if err := g.Save(ctx, []byte("{}")); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
}

func TestGuard_SaveWithoutLoad(t *testing.T) {
	ctx := context.Background()
	inner := snapshot.NewMemoryStorage()
	inner.Save(ctx, []byte(`{"v":1}`))
	g := ws.NewGuard(inner, nil)

	if changed, _ := g.Check(ctx); changed {
		t.Error("Check() = true before anything was seen")
	}
	if err := g.Save(ctx, []byte(`{"v":2}`)); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
}

func TestGuard_Watch(t *testing.T) {
	inner := snapshot.NewMemoryStorage()
	g := ws.NewGuard(inner, nil)
	bridge := ws.NewBridge(g, nil, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if _, err := bridge.RestoreWorkspaces(ctx); err != nil {
		t.Fatalf("RestoreWorkspaces() error = %v", err)
	}

	other := ws.NewStore(nil)
	other.Apply(ws.LoadedFile{Ref: fileRef, Content: "from elsewhere", SHA: "h1"})
	data, _ := ws.EncodeDocument(other.Document())
	inner.Save(ctx, data)

	var calls atomic.Int32
	var reloaded *ws.Store
	err := g.Watch(ctx, 10*time.Millisecond, func(ctx context.Context) error {
		calls.Add(1)
		store, err := bridge.RestoreWorkspaces(ctx)
		if err != nil {
			return err
		}
		reloaded = store
		cancel()
		return nil
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Watch() error = %v, want context.Canceled", err)
	}
	if calls.Load() != 1 {
		t.Errorf("onChange called %d times, want 1", calls.Load())
	}
	f, _, ok := reloaded.ActiveFile()
	if !ok || f.Content != "from elsewhere" {
		t.Errorf("reloaded active file = %+v", f)
	}
	if changed, _ := g.Check(context.Background()); changed {
		t.Error("Check() = true after reload")
	}
}

func TestGuard_WatchPropagatesReloadError(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	inner := snapshot.NewMemoryStorage()
	g := ws.NewGuard(inner, nil)
	g.Load(ctx)
	inner.Save(ctx, []byte(`{}`))

	boom := errors.New("reload failed")
	err := g.Watch(ctx, 10*time.Millisecond, func(context.Context) error { return boom })
	if !errors.Is(err, boom) {
		t.Fatalf("Watch() error = %v, want reload error", err)
	}
}
