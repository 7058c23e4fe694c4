package ws

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"ghedit-go/internal/codec"
)

// DefaultCommitMessage is used when no template is configured. {path} is
// replaced with the path of the saved file.
const DefaultCommitMessage = "Update {path}"

// LoadStatus says what a load request did.
type LoadStatus int

const (
	// LoadIgnored means the reference was not a repository file URL.
	LoadIgnored LoadStatus = iota
	// LoadNotBlob means the remote path is not a loadable file.
	LoadNotBlob
	// LoadNoActiveFile means a reload was requested with nothing selected.
	LoadNoActiveFile
	// LoadLoaded means the file was recorded in the store and made active.
	LoadLoaded
)

// LoadResult is returned by LoadFile and ReloadActiveFile.
type LoadResult struct {
	Status LoadStatus
	Ref    Ref
	SHA    string
}

// SaveStatus says what a save request did.
type SaveStatus int

const (
	SaveNoActiveFile SaveStatus = iota
	SaveSaved
	SaveConflicted
)

// SaveResult is returned by SaveActiveFile.
type SaveResult struct {
	Status SaveStatus
	Ref    Ref
	SHA    string
}

// CheckStatus says what a conflict check did.
type CheckStatus int

const (
	CheckNoActiveFile CheckStatus = iota
	CheckNotBlob
	CheckChecked
)

// CheckResult is returned by CheckConflict.
type CheckResult struct {
	Status    CheckStatus
	Ref       Ref
	RemoteSHA string
	Conflict  bool
}

// Editor runs the load, edit, save and conflict-check operations against a
// Store and a Gateway.
//
// The store lock is not held across network calls. Responses are applied to
// the file addressed by its Ref, so a file closed while a request is in
// flight is reported and left alone.
type Editor struct {
	store          *Store
	gateway        Gateway
	logger         Logger
	commitTemplate string
}

// NewEditor creates an Editor. An empty commitTemplate selects DefaultCommitMessage.
func NewEditor(store *Store, gateway Gateway, logger Logger, commitTemplate string) *Editor {
	if commitTemplate == "" {
		commitTemplate = DefaultCommitMessage
	}
	if logger == nil {
		logger = NewNopLogger()
	}
	return &Editor{
		store:          store,
		gateway:        gateway,
		logger:         logger,
		commitTemplate: commitTemplate,
	}
}

// LoadFile fetches the file a repository URL points at and makes it active.
// A string that is not such a URL is ignored and reported as LoadIgnored.
func (e *Editor) LoadFile(ctx context.Context, raw string) (LoadResult, error) {
	ref, err := ParseRef(raw)
	if err != nil {
		e.logger.Debug("ignoring load request", "error", err)
		return LoadResult{Status: LoadIgnored}, nil
	}
	return e.load(ctx, ref)
}

// ReloadActiveFile refetches the active file, discarding local edits.
func (e *Editor) ReloadActiveFile(ctx context.Context) (LoadResult, error) {
	_, ref, ok := e.store.ActiveFile()
	if !ok {
		return LoadResult{Status: LoadNoActiveFile}, nil
	}
	return e.load(ctx, ref)
}

func (e *Editor) load(ctx context.Context, ref Ref) (LoadResult, error) {
	remote, err := e.gateway.GetFile(ctx, ref)
	if err != nil {
		return LoadResult{Ref: ref}, &TransportError{Op: "load", Ref: ref, Err: err}
	}
	if !isBlob(remote) {
		e.logger.Info("not a loadable file", "ref", ref.String(), "encoding", remote.Encoding)
		return LoadResult{Status: LoadNotBlob, Ref: ref}, nil
	}

	content, err := codec.Decode(remote.Content)
	if err != nil {
		return LoadResult{Ref: ref}, fmt.Errorf("loading %s: %w", ref, err)
	}

	e.store.Apply(LoadedFile{Ref: ref, Content: content, SHA: remote.SHA})
	e.logger.Info("file loaded", "ref", ref.String(), "sha", remote.SHA)
	return LoadResult{Status: LoadLoaded, Ref: ref, SHA: remote.SHA}, nil
}

// EditActiveFile replaces the active buffer. It reports false when no file
// is active.
func (e *Editor) EditActiveFile(text string) bool {
	return e.store.Apply(UpdateActiveFileContent{Content: text}).Applied
}

// SaveActiveFile writes the active buffer to the remote, conditional on the
// file's recorded hash. A stale hash marks the file conflicted and is not an
// error. Any other failure is returned as a *TransportError.
func (e *Editor) SaveActiveFile(ctx context.Context) (SaveResult, error) {
	file, ref, ok := e.store.ActiveFile()
	if !ok {
		return SaveResult{Status: SaveNoActiveFile}, nil
	}

	req := PutFileRequest{
		Content: codec.Encode(file.Content),
		SHA:     file.SHA,
		Message: strings.ReplaceAll(e.commitTemplate, "{path}", file.Path),
	}
	res, err := e.gateway.PutFile(ctx, ref, req)
	if err != nil {
		if errors.Is(err, ErrConflict) {
			e.store.Apply(MarkConflict{Ref: ref})
			e.logger.Warn("save rejected: remote changed", "ref", ref.String(), "sha", file.SHA)
			return SaveResult{Status: SaveConflicted, Ref: ref}, nil
		}
		return SaveResult{Ref: ref}, &TransportError{Op: "save", Ref: ref, Err: err}
	}

	e.store.Apply(SaveComplete{Ref: ref, SHA: res.SHA, Content: file.Content})
	e.logger.Info("file saved", "ref", ref.String(), "sha", res.SHA)
	return SaveResult{Status: SaveSaved, Ref: ref, SHA: res.SHA}, nil
}

// CheckConflict fetches the active file's remote hash and records whether it
// diverged from the local one. Content is never touched.
func (e *Editor) CheckConflict(ctx context.Context) (CheckResult, error) {
	_, ref, ok := e.store.ActiveFile()
	if !ok {
		return CheckResult{Status: CheckNoActiveFile}, nil
	}

	remote, err := e.gateway.GetFile(ctx, ref)
	if err != nil {
		return CheckResult{Ref: ref}, &TransportError{Op: "check", Ref: ref, Err: err}
	}
	if !isBlob(remote) {
		return CheckResult{Status: CheckNotBlob, Ref: ref}, nil
	}

	e.store.Apply(RecordRemoteSHA{Ref: ref, SHA: remote.SHA})

	res := CheckResult{Status: CheckChecked, Ref: ref, RemoteSHA: remote.SHA}
	if f, ok := e.store.File(ref); ok {
		res.Conflict = f.Conflict
	}
	if res.Conflict {
		e.logger.Warn("remote changed", "ref", ref.String(), "remote_sha", remote.SHA)
	}
	return res, nil
}

func isBlob(f RemoteFile) bool {
	return f.Kind == BlobKindFile && f.Encoding == codec.Encoding
}
