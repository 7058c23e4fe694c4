package ws

import (
	"fmt"
	"sync"
)

// Store is the in-memory tree of workspaces, files and buffers. Every mutation
// goes through Apply.
type Store struct {
	mu              sync.Mutex
	workspaces      []*Workspace
	activeWorkspace int
	logger          Logger

	// extra holds top-level document members this version does not model.
	extra extraFields
}

// NewStore returns an empty Store with no active workspace.
func NewStore(logger Logger) *Store {
	if logger == nil {
		logger = NewNopLogger()
	}
	return &Store{activeWorkspace: NoActive, logger: logger}
}

// Apply performs a single transition.
func (s *Store) Apply(t Transition) Outcome {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch t := t.(type) {
	case SwitchWorkspace:
		s.switchWorkspace(t.Key)
		return Outcome{Applied: true}
	case SelectWorkspace:
		return s.selectWorkspace(t.Index)
	case ClearWorkspace:
		return s.clearWorkspace(t.Index)
	case SelectFile:
		return s.selectFile(t.Workspace, t.File)
	case ClearFile:
		return s.clearFile(t.Workspace, t.File)
	case LoadedFile:
		s.loadedFile(t)
		return Outcome{Applied: true}
	case UpdateActiveFileContent:
		return s.updateActiveFileContent(t.Content)
	case RecordRemoteSHA:
		return s.recordRemoteSHA(t)
	case MarkConflict:
		return s.markConflict(t.Ref)
	case SaveComplete:
		return s.saveComplete(t)
	default:
		panic(fmt.Sprintf("ws: unknown transition %T", t))
	}
}

func (s *Store) switchWorkspace(key WorkspaceKey) int {
	for i, w := range s.workspaces {
		if w.Key() == key {
			s.activeWorkspace = i
			return i
		}
	}
	s.workspaces = append(s.workspaces, &Workspace{
		Owner:      key.Owner,
		Repo:       key.Repo,
		Branch:     key.Branch,
		ActiveFile: NoActive,
	})
	s.activeWorkspace = len(s.workspaces) - 1
	return s.activeWorkspace
}

func (s *Store) selectWorkspace(index int) Outcome {
	if index < 0 || index >= len(s.workspaces) {
		s.logger.Warn("cannot select workspace: index out of range", "index", index)
		return Outcome{}
	}
	s.activeWorkspace = index
	return Outcome{Applied: true}
}

func (s *Store) clearWorkspace(index int) Outcome {
	if index < 0 || index >= len(s.workspaces) {
		s.logger.Warn("cannot clear workspace: index out of range", "index", index)
		return Outcome{}
	}
	s.workspaces = append(s.workspaces[:index], s.workspaces[index+1:]...)
	s.activeWorkspace = shiftActive(s.activeWorkspace, index, len(s.workspaces))
	return Outcome{Applied: true}
}

func (s *Store) selectFile(wi, fi int) Outcome {
	if wi < 0 || wi >= len(s.workspaces) {
		s.logger.Warn("cannot select file: workspace index out of range", "workspace", wi)
		return Outcome{}
	}
	w := s.workspaces[wi]
	if fi < 0 || fi >= len(w.Files) {
		s.logger.Warn("cannot select file: index out of range", "workspace", w.Key().String(), "file", fi)
		return Outcome{}
	}
	s.activeWorkspace = wi
	w.ActiveFile = fi
	return Outcome{Applied: true}
}

func (s *Store) clearFile(wi, fi int) Outcome {
	if wi < 0 || wi >= len(s.workspaces) {
		s.logger.Warn("cannot clear file: workspace index out of range", "workspace", wi)
		return Outcome{}
	}
	w := s.workspaces[wi]
	if fi < 0 || fi >= len(w.Files) {
		s.logger.Warn("cannot clear file: index out of range", "workspace", w.Key().String(), "file", fi)
		return Outcome{}
	}
	w.Files = append(w.Files[:fi], w.Files[fi+1:]...)
	w.ActiveFile = shiftActive(w.ActiveFile, fi, len(w.Files))
	return Outcome{Applied: true}
}

// shiftActive renumbers an active index after the item at removed was taken
// out of a list that now has n items.
func shiftActive(active, removed, n int) int {
	if n == 0 {
		return NoActive
	}
	if removed <= active && active > 0 {
		active--
	}
	if active >= n {
		active = n - 1
	}
	return active
}

func (s *Store) loadedFile(t LoadedFile) {
	w := s.workspaces[s.switchWorkspace(t.Ref.Key())]

	if i := w.fileIndex(t.Ref.Path); i != NoActive {
		f := w.Files[i]
		f.Content = t.Content
		f.Original = t.Content
		f.SHA = t.SHA
		f.OldSHAs = map[string]bool{}
		f.Conflict = false
		w.ActiveFile = i
		return
	}

	w.Files = append(w.Files, &File{
		Path:     t.Ref.Path,
		Content:  t.Content,
		Original: t.Content,
		SHA:      t.SHA,
		OldSHAs:  map[string]bool{},
	})
	w.ActiveFile = len(w.Files) - 1
}

func (s *Store) updateActiveFileContent(content string) Outcome {
	f := s.activeFile()
	if f == nil {
		return Outcome{}
	}
	f.Content = content
	return Outcome{Applied: true}
}

func (s *Store) recordRemoteSHA(t RecordRemoteSHA) Outcome {
	f := s.lookup(t.Ref, "remote sha")
	if f == nil {
		return Outcome{}
	}
	if t.SHA == f.SHA {
		f.Conflict = false
		f.OldSHAs = map[string]bool{}
		return Outcome{Applied: true}
	}
	// Our own superseded hash is a stale read and says nothing new, so a
	// conflict already recorded stays.
	if !f.OldSHAs[t.SHA] {
		f.Conflict = true
	}
	return Outcome{Applied: true}
}

func (s *Store) markConflict(ref Ref) Outcome {
	f := s.lookup(ref, "conflict")
	if f == nil {
		return Outcome{}
	}
	f.Conflict = true
	return Outcome{Applied: true}
}

func (s *Store) saveComplete(t SaveComplete) Outcome {
	f := s.lookup(t.Ref, "save")
	if f == nil {
		return Outcome{}
	}
	if f.OldSHAs == nil {
		f.OldSHAs = map[string]bool{}
	}
	if f.SHA != "" {
		f.OldSHAs[f.SHA] = true
	}
	f.SHA = t.SHA
	f.Original = t.Content
	f.Conflict = false
	return Outcome{Applied: true}
}

// lookup finds the file addressed by ref, logging when it has been closed
// since the request was issued.
func (s *Store) lookup(ref Ref, what string) *File {
	if f := s.find(ref); f != nil {
		return f
	}
	s.logger.Error("cannot record "+what+": file not found", "ref", ref.String())
	return nil
}

func (s *Store) find(ref Ref) *File {
	for _, w := range s.workspaces {
		if w.Key() != ref.Key() {
			continue
		}
		if i := w.fileIndex(ref.Path); i != NoActive {
			return w.Files[i]
		}
		return nil
	}
	return nil
}

func (s *Store) activeFile() *File {
	if s.activeWorkspace == NoActive {
		return nil
	}
	w := s.workspaces[s.activeWorkspace]
	if w.ActiveFile == NoActive {
		return nil
	}
	return w.Files[w.ActiveFile]
}

// Workspaces returns a deep copy of the workspace tree.
func (s *Store) Workspaces() []*Workspace {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]*Workspace, len(s.workspaces))
	for i, w := range s.workspaces {
		out[i] = w.clone()
	}
	return out
}

// ActiveIndex returns the index of the active workspace, or NoActive.
func (s *Store) ActiveIndex() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.activeWorkspace
}

// ActiveWorkspace returns a copy of the active workspace.
func (s *Store) ActiveWorkspace() (*Workspace, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.activeWorkspace == NoActive {
		return nil, false
	}
	return s.workspaces[s.activeWorkspace].clone(), true
}

// ActiveFile returns a copy of the active file together with its Ref.
func (s *Store) ActiveFile() (*File, Ref, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	f := s.activeFile()
	if f == nil {
		return nil, Ref{}, false
	}
	return f.clone(), s.workspaces[s.activeWorkspace].RefFor(f.Path), true
}

// File returns a copy of the file addressed by ref.
func (s *Store) File(ref Ref) (*File, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	f := s.find(ref)
	if f == nil {
		return nil, false
	}
	return f.clone(), true
}
