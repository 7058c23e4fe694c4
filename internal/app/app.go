package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"reflect"
	"time"

	"ghedit-go/internal/config"
	"ghedit-go/internal/database"
	"ghedit-go/internal/github"
	"ghedit-go/internal/session"
	"ghedit-go/internal/snapshot"
	"ghedit-go/internal/ws"
)

// ErrNoActiveFile is returned by commands that act on the active file when
// none is selected.
var ErrNoActiveFile = errors.New("no active file")

var (
	// ErrNotFileURL is returned by Open for a string that is not a repository
	// file URL.
	ErrNotFileURL = errors.New("not a repository file URL")
	// ErrNotFile is returned when the remote path is a directory or another
	// non-file entry.
	ErrNotFile = errors.New("not a file")
)

// EditorApp is the application layer between the CLI and the workspace core.
// It constructs all dependencies from config, restores persisted state, and
// writes it back on Close.
type EditorApp struct {
	cfg      *config.Config
	db       *database.SQLiteDatabase
	guard    *ws.Guard
	bridge   *ws.Bridge
	store    *ws.Store
	editor   *ws.Editor
	auth     *ws.Auth
	gateway  ws.Gateway
	rates    rateSource
	logger   ws.Logger
	op       *SyncOperation
	interval time.Duration
	logFile  *os.File

	restored ws.SessionState
	changed  bool
}

// rateSource is implemented by gateways that track the quota headers of
// their responses.
type rateSource interface {
	LastRateLimit() (ws.RateLimit, bool)
}

// deps are the collaborators that NewEditorApp derives from config and the
// environment.
type deps struct {
	gateway   ws.Gateway
	exchanger ws.TokenExchanger
	nonces    ws.NonceSource
	clock     ws.Clock
	logger    ws.Logger
	logFile   *os.File
	runID     string
}

// NewEditorApp creates a fully wired EditorApp from the given config.
// ids names this run in the log and the operation journal. operation
// identifies the CLI command being run (e.g. "Open", "Save").
// The caller must call Close when done.
func NewEditorApp(ctx context.Context, cfg *config.Config, ids ws.IDGenerator, operation, parameters string) (*EditorApp, error) {
	runID := ids.New()
	logger, logFile, err := newLogger(cfg.LogDir, runID, parseLevel(cfg.LogLevel))
	if err != nil {
		return nil, fmt.Errorf("creating logger: %w", err)
	}
	wsLogger := &slogAdapter{l: logger}

	a := &EditorApp{}
	// The gateway reads the token through a; auth is wired after the gateway exists.
	gw, err := github.NewClient(github.Config{
		BaseURL: cfg.GitHub.APIURL,
		Token:   a.token,
		Logger:  wsLogger,
	})
	if err != nil {
		logFile.Close()
		return nil, fmt.Errorf("creating github client: %w", err)
	}

	err = a.init(ctx, cfg, operation, parameters, deps{
		gateway:   gw,
		exchanger: github.NewExchanger(cfg.GitHub, nil),
		nonces:    ws.CryptoNonceSource{},
		clock:     ws.RealClock{},
		logger:    wsLogger,
		logFile:   logFile,
		runID:     runID,
	})
	if err != nil {
		logFile.Close()
		return nil, err
	}
	return a, nil
}

func (a *EditorApp) init(ctx context.Context, cfg *config.Config, operation, parameters string, d deps) error {
	interval, err := cfg.Editor.WatchIntervalDuration()
	if err != nil {
		return err
	}

	db, err := database.NewDatabaseFromConfig(cfg.Database, d.clock)
	if err != nil {
		return fmt.Errorf("creating database: %w", err)
	}
	if err := db.CheckMigrations(); err != nil {
		db.Close()
		return fmt.Errorf("database schema out of date: %w", err)
	}

	workspaces, err := snapshot.NewStorageFromConfig(ctx, cfg.WorkspaceStorage, db)
	if err != nil {
		db.Close()
		return fmt.Errorf("creating workspace storage: %w", err)
	}
	sessions, err := session.NewStorageFromConfig(cfg, d.clock, d.logger)
	if err != nil {
		db.Close()
		return fmt.Errorf("creating session storage: %w", err)
	}

	guard := ws.NewGuard(workspaces, d.logger)
	bridge := ws.NewBridge(guard, sessions, d.logger)
	store, state, err := bridge.Restore(ctx)
	if err != nil {
		db.Close()
		return fmt.Errorf("restoring state: %w", err)
	}

	a.cfg = cfg
	a.db = db
	a.guard = guard
	a.bridge = bridge
	a.store = store
	a.gateway = d.gateway
	if rs, ok := d.gateway.(rateSource); ok {
		a.rates = rs
	}
	a.logger = d.logger
	a.editor = ws.NewEditor(store, d.gateway, d.logger, cfg.Editor.CommitMessage)
	a.auth = ws.NewAuth(state, d.gateway, d.exchanger, d.nonces, d.logger)
	a.restored = a.auth.State()
	a.op = NewSyncOperation(d.runID, operation, parameters)
	a.interval = interval
	a.logFile = d.logFile
	return nil
}

func (a *EditorApp) token() string {
	if a.auth == nil {
		return ""
	}
	return a.auth.Token()
}

// persistOperation saves the sync operation to the database, giving it an auto-increment ID.
// This should only be called for mutating commands.
func (a *EditorApp) persistOperation(ctx context.Context) error {
	if a.op.Persisted() {
		return nil
	}
	dbOp, err := a.db.CreateSyncOperation(ctx, a.op.RunID, a.op.Operation, a.op.Parameters)
	if err != nil {
		return fmt.Errorf("persisting sync operation: %w", err)
	}
	a.op.ID = dbOp.ID
	return nil
}

// observe records a failed remote call. Rejected credentials are dropped so
// the next command starts logged out.
func (a *EditorApp) observe(err error) error {
	if err == nil {
		return nil
	}
	a.op.Fail(err)
	if errors.Is(err, ws.ErrUnauthorized) {
		a.auth.InvalidCredentials()
	}
	return err
}

// Open loads the file a repository URL points at and makes it active.
func (a *EditorApp) Open(ctx context.Context, rawURL string) (ws.LoadResult, error) {
	if err := a.persistOperation(ctx); err != nil {
		return ws.LoadResult{}, err
	}
	res, err := a.editor.LoadFile(ctx, rawURL)
	if err := a.observe(err); err != nil {
		return res, err
	}
	switch res.Status {
	case ws.LoadIgnored:
		err = fmt.Errorf("%w: %s", ErrNotFileURL, rawURL)
	case ws.LoadNotBlob:
		err = fmt.Errorf("%s: %w", res.Ref, ErrNotFile)
	case ws.LoadLoaded:
		a.changed = true
	}
	a.op.Fail(err)
	return res, err
}

// Reload refetches the active file, discarding local edits.
func (a *EditorApp) Reload(ctx context.Context) (ws.LoadResult, error) {
	if err := a.persistOperation(ctx); err != nil {
		return ws.LoadResult{}, err
	}
	res, err := a.editor.ReloadActiveFile(ctx)
	if err := a.observe(err); err != nil {
		return res, err
	}
	switch res.Status {
	case ws.LoadNoActiveFile:
		err = ErrNoActiveFile
	case ws.LoadNotBlob:
		err = fmt.Errorf("%s: %w", res.Ref, ErrNotFile)
	case ws.LoadLoaded:
		a.changed = true
	}
	a.op.Fail(err)
	return res, err
}

// Edit replaces the active buffer.
func (a *EditorApp) Edit(ctx context.Context, text string) error {
	if err := a.persistOperation(ctx); err != nil {
		return err
	}
	if !a.editor.EditActiveFile(text) {
		a.op.Fail(ErrNoActiveFile)
		return ErrNoActiveFile
	}
	a.changed = true
	return nil
}

// Save writes the active buffer to the remote. A stale version is reported
// through the result, not as an error.
func (a *EditorApp) Save(ctx context.Context) (ws.SaveResult, error) {
	if err := a.persistOperation(ctx); err != nil {
		return ws.SaveResult{}, err
	}
	res, err := a.editor.SaveActiveFile(ctx)
	if err := a.observe(err); err != nil {
		return res, err
	}
	switch res.Status {
	case ws.SaveNoActiveFile:
		a.op.Fail(ErrNoActiveFile)
		return res, ErrNoActiveFile
	case ws.SaveConflicted:
		a.op.Status = database.StatusConflict
	}
	a.changed = true
	return res, nil
}

// Check compares the active file's hash with the remote.
func (a *EditorApp) Check(ctx context.Context) (ws.CheckResult, error) {
	if err := a.persistOperation(ctx); err != nil {
		return ws.CheckResult{}, err
	}
	res, err := a.editor.CheckConflict(ctx)
	if err := a.observe(err); err != nil {
		return res, err
	}
	if res.Status == ws.CheckNoActiveFile {
		a.op.Fail(ErrNoActiveFile)
		return res, ErrNoActiveFile
	}
	if res.Conflict {
		a.op.Status = database.StatusConflict
	}
	a.changed = a.changed || res.Status == ws.CheckChecked
	return res, nil
}

// Select makes a file active.
func (a *EditorApp) Select(ctx context.Context, workspace, file int) error {
	return a.apply(ctx, ws.SelectFile{Workspace: workspace, File: file},
		"no file %d in workspace %d", file, workspace)
}

// SelectWorkspace makes a workspace active.
func (a *EditorApp) SelectWorkspace(ctx context.Context, workspace int) error {
	return a.apply(ctx, ws.SelectWorkspace{Index: workspace}, "no workspace %d", workspace)
}

// CloseFile removes a file from a workspace. Unsaved edits are discarded.
func (a *EditorApp) CloseFile(ctx context.Context, workspace, file int) error {
	return a.apply(ctx, ws.ClearFile{Workspace: workspace, File: file},
		"no file %d in workspace %d", file, workspace)
}

// CloseWorkspace removes a workspace and all its files.
func (a *EditorApp) CloseWorkspace(ctx context.Context, workspace int) error {
	return a.apply(ctx, ws.ClearWorkspace{Index: workspace}, "no workspace %d", workspace)
}

func (a *EditorApp) apply(ctx context.Context, t ws.Transition, format string, args ...any) error {
	if err := a.persistOperation(ctx); err != nil {
		return err
	}
	if !a.store.Apply(t).Applied {
		err := fmt.Errorf(format, args...)
		a.op.Fail(err)
		return err
	}
	a.changed = true
	return nil
}

// Status returns one entry per loaded file.
func (a *EditorApp) Status() []*ws.FileStatus {
	return a.editor.Status()
}

// Workspaces returns a copy of the workspace tree and the active index.
func (a *EditorApp) Workspaces() ([]*ws.Workspace, int) {
	return a.store.Workspaces(), a.store.ActiveIndex()
}

// ActiveFile returns a copy of the active file.
func (a *EditorApp) ActiveFile() (*ws.File, ws.Ref, error) {
	f, ref, ok := a.store.ActiveFile()
	if !ok {
		return nil, ws.Ref{}, ErrNoActiveFile
	}
	return f, ref, nil
}

// History returns the most recent sync operations.
func (a *EditorApp) History(ctx context.Context, limit int) ([]*database.SyncOperation, error) {
	return a.db.ListSyncOperations(ctx, limit)
}

// BeginLogin starts an OAuth login and returns the URL to visit. The pending
// state is persisted on Close so the callback can be completed by a later command.
func (a *EditorApp) BeginLogin() (string, error) {
	return a.auth.BeginLogin()
}

// CompleteLogin finishes the login with the code and state from the callback.
func (a *EditorApp) CompleteLogin(ctx context.Context, code, state string) (*ws.User, error) {
	if err := a.persistOperation(ctx); err != nil {
		return nil, err
	}
	if err := a.observe(a.auth.CompleteLogin(ctx, code, state)); err != nil {
		return nil, err
	}
	return a.auth.State().User, nil
}

// Logout forgets the token.
func (a *EditorApp) Logout() {
	a.auth.Logout()
}

// WhoAmI refreshes and returns the logged-in user's profile.
func (a *EditorApp) WhoAmI(ctx context.Context) (*ws.User, error) {
	if err := a.observe(a.auth.RefreshUser(ctx)); err != nil {
		return nil, err
	}
	return a.auth.State().User, nil
}

// RateLimit fetches the API quota.
func (a *EditorApp) RateLimit(ctx context.Context) (ws.RateLimit, error) {
	rl, err := a.auth.RefreshRateLimit(ctx)
	return rl, a.observe(err)
}

// Watch blocks until ctx is done, reloading the workspaces whenever another
// instance changes them and passing the reloaded store to onChange.
func (a *EditorApp) Watch(ctx context.Context, onChange func(*ws.Store)) error {
	return a.guard.Watch(ctx, a.interval, func(ctx context.Context) error {
		store, err := a.bridge.RestoreWorkspaces(ctx)
		if err != nil {
			return err
		}
		a.store = store
		a.editor = ws.NewEditor(store, a.gateway, a.logger, a.cfg.Editor.CommitMessage)
		a.changed = false
		if onChange != nil {
			onChange(store)
		}
		return nil
	})
}

// Close persists changed state, finalizes the operation record and closes all
// resources. Workspaces are written only when the command changed them; a
// write refused because another instance changed them first is returned.
// Quota counters seen on the gateway's responses are kept with the session.
func (a *EditorApp) Close(ctx context.Context) error {
	var firstErr error

	if a.changed {
		if err := a.bridge.PersistWorkspaces(ctx, a.store); err != nil {
			if errors.Is(err, ws.ErrSnapshotChanged) {
				err = fmt.Errorf("changes not saved: %w", err)
			}
			firstErr = err
			a.op.Fail(err)
		}
	}

	if a.rates != nil {
		if rl, ok := a.rates.LastRateLimit(); ok {
			a.auth.RecordRateLimit(rl)
		}
	}
	if state := a.auth.State(); !reflect.DeepEqual(state, a.restored) {
		if err := a.bridge.PersistSession(ctx, state); err != nil && firstErr == nil {
			firstErr = err
		}
	}

	if a.op.Persisted() {
		if err := a.db.FinishSyncOperation(ctx, a.op.ID, a.op.Status); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("finishing sync operation: %w", err)
		}
	}

	if err := a.db.Close(); err != nil && firstErr == nil {
		firstErr = fmt.Errorf("closing database: %w", err)
	}

	if a.logFile != nil {
		a.logFile.Close()
	}

	return firstErr
}
