package ws_test

import (
	"context"
	"errors"
	"testing"

	"ghedit-go/internal/codec"
	"ghedit-go/internal/testutil"
	"ghedit-go/internal/ws"
)

const fileURL = "https://github.com/o/r/blob/main/f.txt"

var fileRef = ws.Ref{Owner: "o", Repo: "r", Branch: "main", Path: "f.txt"}

func newEditor(t *testing.T) (*ws.Editor, *testutil.FakeGateway) {
	t.Helper()
	gw := testutil.NewFakeGateway()
	return ws.NewEditor(ws.NewStore(nil), gw, nil, ""), gw
}

// hookGateway runs a callback before delegating, to interleave store changes
// with an in-flight request.
type hookGateway struct {
	*testutil.FakeGateway
	beforePut func()
	getFile   func(ref ws.Ref) (ws.RemoteFile, error)
}

func (g *hookGateway) PutFile(ctx context.Context, ref ws.Ref, req ws.PutFileRequest) (ws.PutFileResult, error) {
	if g.beforePut != nil {
		g.beforePut()
	}
	return g.FakeGateway.PutFile(ctx, ref, req)
}

func (g *hookGateway) GetFile(ctx context.Context, ref ws.Ref) (ws.RemoteFile, error) {
	if g.getFile != nil {
		return g.getFile(ref)
	}
	return g.FakeGateway.GetFile(ctx, ref)
}

func TestEditor_LoadFile(t *testing.T) {
	ctx := context.Background()

	t.Run("malformed reference is ignored", func(t *testing.T) {
		e, gw := newEditor(t)
		for _, raw := range []string{"", "not a url", "https://github.com/o/r", "https://github.com/o/r/tree/main/f.txt"} {
			res, err := e.LoadFile(ctx, raw)
			if err != nil {
				t.Fatalf("LoadFile(%q) error = %v", raw, err)
			}
			if res.Status != ws.LoadIgnored {
				t.Errorf("LoadFile(%q) Status = %v, want LoadIgnored", raw, res.Status)
			}
		}
		if gw.Gets != 0 {
			t.Errorf("gateway called %d times, want 0", gw.Gets)
		}
	})

	t.Run("loads and activates", func(t *testing.T) {
		e, gw := newEditor(t)
		gw.SetFile(fileRef, "héllo 🌍", "h1")

		res, err := e.LoadFile(ctx, fileURL)
		if err != nil {
			t.Fatalf("LoadFile() error = %v", err)
		}
		if res.Status != ws.LoadLoaded || res.SHA != "h1" || res.Ref != fileRef {
			t.Errorf("LoadFile() = %+v", res)
		}
		f, ref, ok := e.Store().ActiveFile()
		if !ok || ref != fileRef {
			t.Fatalf("ActiveFile() = %v, %v", ref, ok)
		}
		if f.Content != "héllo 🌍" || f.Original != f.Content {
			t.Errorf("file = %+v", f)
		}
	})

	t.Run("loading twice does not duplicate", func(t *testing.T) {
		e, gw := newEditor(t)
		gw.SetFile(fileRef, "v1", "h1")
		if _, err := e.LoadFile(ctx, fileURL); err != nil {
			t.Fatalf("LoadFile() error = %v", err)
		}
		e.Store().Apply(ws.MarkConflict{Ref: fileRef})
		gw.SetFile(fileRef, "v2", "h2")

		if _, err := e.LoadFile(ctx, fileURL); err != nil {
			t.Fatalf("LoadFile() error = %v", err)
		}
		w, _ := e.Store().ActiveWorkspace()
		if len(w.Files) != 1 {
			t.Fatalf("len(Files) = %d, want 1", len(w.Files))
		}
		if w.Files[0].Conflict || w.Files[0].Content != "v2" {
			t.Errorf("file = %+v", w.Files[0])
		}
	})

	t.Run("directory is not loaded", func(t *testing.T) {
		e, gw := newEditor(t)
		gw.SetDirectory(fileRef)

		res, err := e.LoadFile(ctx, fileURL)
		if err != nil {
			t.Fatalf("LoadFile() error = %v", err)
		}
		if res.Status != ws.LoadNotBlob {
			t.Errorf("Status = %v, want LoadNotBlob", res.Status)
		}
		if _, _, ok := e.Store().ActiveFile(); ok {
			t.Error("ActiveFile() ok = true after non-blob load")
		}
	})

	t.Run("transport error", func(t *testing.T) {
		e, gw := newEditor(t)
		gw.Err = errors.New("connection reset")

		_, err := e.LoadFile(ctx, fileURL)
		var te *ws.TransportError
		if !errors.As(err, &te) || te.Op != "load" || te.Ref != fileRef {
			t.Fatalf("LoadFile() error = %v, want *TransportError", err)
		}
	})

	t.Run("undecodable content", func(t *testing.T) {
		gw := &hookGateway{FakeGateway: testutil.NewFakeGateway()}
		gw.getFile = func(ws.Ref) (ws.RemoteFile, error) {
			return ws.RemoteFile{Kind: ws.BlobKindFile, Encoding: codec.Encoding, Content: "!!!", SHA: "h"}, nil
		}
		e := ws.NewEditor(ws.NewStore(nil), gw, nil, "")

		_, err := e.LoadFile(ctx, fileURL)
		var de *codec.DecodeError
		if !errors.As(err, &de) {
			t.Fatalf("LoadFile() error = %v, want *codec.DecodeError", err)
		}
		if _, _, ok := e.Store().ActiveFile(); ok {
			t.Error("store changed after failed decode")
		}
	})
}

func TestEditor_SaveActiveFile(t *testing.T) {
	ctx := context.Background()

	t.Run("no active file", func(t *testing.T) {
		e, gw := newEditor(t)
		res, err := e.SaveActiveFile(ctx)
		if err != nil {
			t.Fatalf("SaveActiveFile() error = %v", err)
		}
		if res.Status != ws.SaveNoActiveFile {
			t.Errorf("Status = %v, want SaveNoActiveFile", res.Status)
		}
		if len(gw.Puts) != 0 {
			t.Errorf("gateway called %d times", len(gw.Puts))
		}
	})

	t.Run("saves", func(t *testing.T) {
		e, gw := newEditor(t)
		gw.SetFile(fileRef, "v1", "h1")
		e.LoadFile(ctx, fileURL)
		e.EditActiveFile("v2")

		res, err := e.SaveActiveFile(ctx)
		if err != nil {
			t.Fatalf("SaveActiveFile() error = %v", err)
		}
		if res.Status != ws.SaveSaved || res.SHA == "" {
			t.Fatalf("SaveActiveFile() = %+v", res)
		}

		f, _ := e.Store().File(fileRef)
		if f.Original != f.Content || f.Content != "v2" {
			t.Errorf("file = %+v, want original == content == v2", f)
		}
		if f.Conflict {
			t.Error("Conflict = true after save")
		}
		if f.SHA != res.SHA || !f.OldSHAs["h1"] {
			t.Errorf("SHA = %q OldSHAs = %v", f.SHA, f.OldSHAs)
		}

		if len(gw.Puts) != 1 {
			t.Fatalf("len(Puts) = %d, want 1", len(gw.Puts))
		}
		put := gw.Puts[0]
		if put.SHA != "h1" || put.Message != "Update f.txt" {
			t.Errorf("put = %+v", put)
		}
		remote, _, _ := gw.File(fileRef)
		if remote != "v2" {
			t.Errorf("remote content = %q, want v2", remote)
		}
	})

	t.Run("custom commit message", func(t *testing.T) {
		gw := testutil.NewFakeGateway()
		e := ws.NewEditor(ws.NewStore(nil), gw, nil, "docs: edit {path} via ghedit")
		gw.SetFile(fileRef, "v1", "h1")
		e.LoadFile(ctx, fileURL)

		if _, err := e.SaveActiveFile(ctx); err != nil {
			t.Fatalf("SaveActiveFile() error = %v", err)
		}
		if msg := gw.Puts[0].Message; msg != "docs: edit f.txt via ghedit" {
			t.Errorf("Message = %q", msg)
		}
	})

	t.Run("stale hash marks conflict", func(t *testing.T) {
		e, gw := newEditor(t)
		gw.SetFile(fileRef, "v1", "h1")
		e.LoadFile(ctx, fileURL)
		e.EditActiveFile("mine")
		gw.SetFile(fileRef, "theirs", "h2")

		res, err := e.SaveActiveFile(ctx)
		if err != nil {
			t.Fatalf("SaveActiveFile() error = %v", err)
		}
		if res.Status != ws.SaveConflicted {
			t.Errorf("Status = %v, want SaveConflicted", res.Status)
		}
		f, _ := e.Store().File(fileRef)
		if !f.Conflict {
			t.Error("Conflict = false after stale write")
		}
		if f.Content != "mine" || f.SHA != "h1" || f.Original != "v1" {
			t.Errorf("file = %+v, want untouched apart from conflict", f)
		}
		if remote, _, _ := gw.File(fileRef); remote != "theirs" {
			t.Errorf("remote content = %q, want theirs", remote)
		}
	})

	t.Run("transport error", func(t *testing.T) {
		e, gw := newEditor(t)
		gw.SetFile(fileRef, "v1", "h1")
		e.LoadFile(ctx, fileURL)
		gw.PutErr = errors.New("503")

		_, err := e.SaveActiveFile(ctx)
		var te *ws.TransportError
		if !errors.As(err, &te) || te.Op != "save" {
			t.Fatalf("SaveActiveFile() error = %v, want *TransportError", err)
		}
		f, _ := e.Store().File(fileRef)
		if f.Conflict || f.SHA != "h1" {
			t.Errorf("file = %+v, want unchanged", f)
		}
	})

	t.Run("unauthorized passes through", func(t *testing.T) {
		e, gw := newEditor(t)
		gw.SetFile(fileRef, "v1", "h1")
		e.LoadFile(ctx, fileURL)
		gw.PutErr = ws.ErrUnauthorized

		_, err := e.SaveActiveFile(ctx)
		if !errors.Is(err, ws.ErrUnauthorized) {
			t.Fatalf("SaveActiveFile() error = %v, want ErrUnauthorized", err)
		}
	})

	t.Run("file closed while save in flight", func(t *testing.T) {
		gw := &hookGateway{FakeGateway: testutil.NewFakeGateway()}
		store := ws.NewStore(nil)
		e := ws.NewEditor(store, gw, nil, "")
		gw.SetFile(fileRef, "v1", "h1")
		e.LoadFile(ctx, fileURL)
		gw.beforePut = func() { store.Apply(ws.ClearFile{Workspace: 0, File: 0}) }

		res, err := e.SaveActiveFile(ctx)
		if err != nil {
			t.Fatalf("SaveActiveFile() error = %v", err)
		}
		if res.Status != ws.SaveSaved {
			t.Errorf("Status = %v, want SaveSaved", res.Status)
		}
		if _, ok := store.File(fileRef); ok {
			t.Error("closed file was recreated by the save response")
		}
	})
}

func TestEditor_CheckConflict(t *testing.T) {
	ctx := context.Background()

	t.Run("no active file", func(t *testing.T) {
		e, _ := newEditor(t)
		res, err := e.CheckConflict(ctx)
		if err != nil {
			t.Fatalf("CheckConflict() error = %v", err)
		}
		if res.Status != ws.CheckNoActiveFile {
			t.Errorf("Status = %v, want CheckNoActiveFile", res.Status)
		}
	})

	t.Run("unchanged remote", func(t *testing.T) {
		e, gw := newEditor(t)
		gw.SetFile(fileRef, "v1", "h1")
		e.LoadFile(ctx, fileURL)
		e.EditActiveFile("draft")

		res, err := e.CheckConflict(ctx)
		if err != nil {
			t.Fatalf("CheckConflict() error = %v", err)
		}
		if res.Status != ws.CheckChecked || res.Conflict || res.RemoteSHA != "h1" {
			t.Errorf("CheckConflict() = %+v", res)
		}
		f, _ := e.Store().File(fileRef)
		if f.Content != "draft" {
			t.Errorf("Content = %q, check must not touch content", f.Content)
		}
	})

	t.Run("external change", func(t *testing.T) {
		e, gw := newEditor(t)
		gw.SetFile(fileRef, "v1", "h1")
		e.LoadFile(ctx, fileURL)
		gw.SetFile(fileRef, "theirs", "h9")

		res, err := e.CheckConflict(ctx)
		if err != nil {
			t.Fatalf("CheckConflict() error = %v", err)
		}
		if !res.Conflict {
			t.Error("Conflict = false for external change")
		}
		f, _ := e.Store().File(fileRef)
		if !f.Conflict || f.State() != ws.StateConflicted {
			t.Errorf("file = %+v, want conflicted", f)
		}
	})

	t.Run("own superseded hash is not a conflict", func(t *testing.T) {
		e, gw := newEditor(t)
		gw.SetFile(fileRef, "v1", "h1")
		e.LoadFile(ctx, fileURL)
		e.EditActiveFile("v2")
		if _, err := e.SaveActiveFile(ctx); err != nil {
			t.Fatalf("SaveActiveFile() error = %v", err)
		}
		// A lagging read replica still serves the pre-save hash.
		gw.SetFile(fileRef, "v1", "h1")

		res, err := e.CheckConflict(ctx)
		if err != nil {
			t.Fatalf("CheckConflict() error = %v", err)
		}
		if res.Conflict {
			t.Error("Conflict = true for our own superseded hash")
		}
	})

	t.Run("remote hash equal to saved hash", func(t *testing.T) {
		e, gw := newEditor(t)
		gw.SetFile(fileRef, "v1", "h1")
		e.LoadFile(ctx, fileURL)
		saved, err := e.SaveActiveFile(ctx)
		if err != nil {
			t.Fatalf("SaveActiveFile() error = %v", err)
		}

		res, err := e.CheckConflict(ctx)
		if err != nil {
			t.Fatalf("CheckConflict() error = %v", err)
		}
		if res.Conflict || res.RemoteSHA != saved.SHA {
			t.Errorf("CheckConflict() = %+v", res)
		}
	})

	t.Run("remote became a directory", func(t *testing.T) {
		e, gw := newEditor(t)
		gw.SetFile(fileRef, "v1", "h1")
		e.LoadFile(ctx, fileURL)
		gw.SetDirectory(fileRef)

		res, err := e.CheckConflict(ctx)
		if err != nil {
			t.Fatalf("CheckConflict() error = %v", err)
		}
		if res.Status != ws.CheckNotBlob {
			t.Errorf("Status = %v, want CheckNotBlob", res.Status)
		}
	})

	t.Run("transport error", func(t *testing.T) {
		e, gw := newEditor(t)
		gw.SetFile(fileRef, "v1", "h1")
		e.LoadFile(ctx, fileURL)
		gw.Err = errors.New("timeout")

		_, err := e.CheckConflict(ctx)
		var te *ws.TransportError
		if !errors.As(err, &te) || te.Op != "check" {
			t.Fatalf("CheckConflict() error = %v, want *TransportError", err)
		}
	})
}

func TestEditor_ReloadActiveFile(t *testing.T) {
	ctx := context.Background()
	e, gw := newEditor(t)

	res, err := e.ReloadActiveFile(ctx)
	if err != nil {
		t.Fatalf("ReloadActiveFile() error = %v", err)
	}
	if res.Status != ws.LoadNoActiveFile {
		t.Errorf("Status = %v, want LoadNoActiveFile", res.Status)
	}

	gw.SetFile(fileRef, "v1", "h1")
	e.LoadFile(ctx, fileURL)
	e.EditActiveFile("local")
	gw.SetFile(fileRef, "remote", "h2")
	e.Store().Apply(ws.MarkConflict{Ref: fileRef})

	if _, err := e.ReloadActiveFile(ctx); err != nil {
		t.Fatalf("ReloadActiveFile() error = %v", err)
	}
	f, _ := e.Store().File(fileRef)
	if f.Content != "remote" || f.SHA != "h2" || f.Conflict {
		t.Errorf("file = %+v, want reloaded remote state", f)
	}
}

func TestEditor_EditActiveFile(t *testing.T) {
	e, _ := newEditor(t)
	if e.EditActiveFile("x") {
		t.Error("EditActiveFile() = true with no active file")
	}
}

func TestEditor_Status(t *testing.T) {
	ctx := context.Background()
	e, gw := newEditor(t)
	other := ws.Ref{Owner: "o", Repo: "r", Branch: "main", Path: "g.txt"}
	gw.SetFile(fileRef, "v1", "h1")
	gw.SetFile(other, "g", "hg")
	e.LoadFile(ctx, fileURL)
	e.EditActiveFile("dirty")
	e.LoadFile(ctx, "https://github.com/o/r/edit/main/g.txt")

	statuses := e.Status()
	if len(statuses) != 2 {
		t.Fatalf("len(Status()) = %d, want 2", len(statuses))
	}
	if statuses[0].Path != "f.txt" || statuses[0].State != ws.StateDirty || statuses[0].Active {
		t.Errorf("Status()[0] = %+v", statuses[0])
	}
	if statuses[1].Path != "g.txt" || statuses[1].State != ws.StateClean || !statuses[1].Active {
		t.Errorf("Status()[1] = %+v", statuses[1])
	}
}
