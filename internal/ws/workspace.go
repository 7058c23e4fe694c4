package ws

// NoActive marks the absence of an active workspace or file.
const NoActive = -1

// FileState is the derived lifecycle state of a loaded file.
type FileState int

const (
	// StateClean means the buffer equals the content last known to be on the remote.
	StateClean FileState = iota
	// StateDirty means the buffer has unsaved edits.
	StateDirty
	// StateConflicted means a remote change was detected that the buffer has not reconciled.
	StateConflicted
)

func (s FileState) String() string {
	switch s {
	case StateClean:
		return "clean"
	case StateDirty:
		return "dirty"
	case StateConflicted:
		return "conflict"
	default:
		return "unknown"
	}
}

// File is an editable buffer for one remote path.
//
// Content is changed by user edits only. Original, SHA and OldSHAs change only
// when a load or save response arrives.
type File struct {
	Path     string
	Content  string
	Original string
	SHA      string
	// OldSHAs holds hashes this client superseded with its own saves. A remote
	// hash found here is our own stale read, not someone else's change.
	OldSHAs  map[string]bool
	Conflict bool

	extra extraFields
}

// State derives the file's lifecycle state. A conflict dominates dirtiness.
func (f *File) State() FileState {
	switch {
	case f.Conflict:
		return StateConflicted
	case f.Content != f.Original:
		return StateDirty
	default:
		return StateClean
	}
}

func (f *File) clone() *File {
	c := *f
	c.OldSHAs = make(map[string]bool, len(f.OldSHAs))
	for k, v := range f.OldSHAs {
		c.OldSHAs[k] = v
	}
	return &c
}

// Workspace is the set of files opened from one branch of one repository.
type Workspace struct {
	Owner      string
	Repo       string
	Branch     string
	Files      []*File
	ActiveFile int

	extra extraFields
}

// Key returns the workspace's identity.
func (w *Workspace) Key() WorkspaceKey {
	return WorkspaceKey{Owner: w.Owner, Repo: w.Repo, Branch: w.Branch}
}

// RefFor returns the Ref of a file path inside this workspace.
func (w *Workspace) RefFor(path string) Ref {
	return Ref{Owner: w.Owner, Repo: w.Repo, Branch: w.Branch, Path: path}
}

func (w *Workspace) fileIndex(path string) int {
	for i, f := range w.Files {
		if f.Path == path {
			return i
		}
	}
	return NoActive
}

func (w *Workspace) clone() *Workspace {
	c := *w
	c.Files = make([]*File, len(w.Files))
	for i, f := range w.Files {
		c.Files[i] = f.clone()
	}
	return &c
}
