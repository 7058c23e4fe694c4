package ws

// Transition is one of the closed set of state changes a Store accepts.
// Every transition is applied through Store.Apply.
type Transition interface {
	transition()
}

// SwitchWorkspace selects the workspace with Key, creating it when absent.
type SwitchWorkspace struct {
	Key WorkspaceKey
}

// SelectWorkspace selects the workspace at Index.
type SelectWorkspace struct {
	Index int
}

// ClearWorkspace removes the workspace at Index and renumbers the active index.
type ClearWorkspace struct {
	Index int
}

// SelectFile makes the file at File in workspace Workspace active.
type SelectFile struct {
	Workspace int
	File      int
}

// ClearFile removes a file from a workspace and renumbers its active index.
type ClearFile struct {
	Workspace int
	File      int
}

// LoadedFile records a successful fetch of Ref. Loading always wins over
// unsaved local edits.
type LoadedFile struct {
	Ref     Ref
	Content string
	SHA     string
}

// UpdateActiveFileContent replaces the buffer of the active file.
type UpdateActiveFileContent struct {
	Content string
}

// RecordRemoteSHA records the hash observed on the remote for Ref during a
// conflict check.
type RecordRemoteSHA struct {
	Ref Ref
	SHA string
}

// MarkConflict records that a write to Ref was rejected as stale.
type MarkConflict struct {
	Ref Ref
}

// SaveComplete records a successful write of Content to Ref that produced SHA.
type SaveComplete struct {
	Ref     Ref
	SHA     string
	Content string
}

func (SwitchWorkspace) transition()         {}
func (SelectWorkspace) transition()         {}
func (ClearWorkspace) transition()          {}
func (SelectFile) transition()              {}
func (ClearFile) transition()               {}
func (LoadedFile) transition()              {}
func (UpdateActiveFileContent) transition() {}
func (RecordRemoteSHA) transition()         {}
func (MarkConflict) transition()            {}
func (SaveComplete) transition()            {}

// Outcome reports what a transition did. Applied is false when the transition
// was a no-op, e.g. an edit with no active file or a response for a file that
// has since been closed.
type Outcome struct {
	Applied bool
}
