package ws

import (
	"encoding/json"
	"fmt"
)

// Document is the persisted form of a Store.
//
// Each level keeps the members it does not model in Extra and writes them
// back unchanged, so a document written by another version survives a
// restore and save.
type Document struct {
	ActiveWorkspace *int                `json:"activeWorkspace"`
	Workspaces      []WorkspaceDocument `json:"workspaces"`
	Extra           extraFields         `json:"-"`
}

type WorkspaceDocument struct {
	Owner      string         `json:"owner"`
	Repo       string         `json:"repo"`
	Branch     string         `json:"branch"`
	Files      []FileDocument `json:"files"`
	ActiveFile *int           `json:"activeFile"`
	Extra      extraFields    `json:"-"`
}

type FileDocument struct {
	Path     string          `json:"path"`
	Content  string          `json:"content"`
	Original string          `json:"original"`
	SHA      string          `json:"sha"`
	OldSHAs  map[string]bool `json:"oldShas"`
	Conflict bool            `json:"conflict"`
	Extra    extraFields     `json:"-"`
}

// extraFields are raw JSON members keyed by name.
type extraFields map[string]json.RawMessage

func (d Document) MarshalJSON() ([]byte, error) {
	type plain Document
	return marshalWithExtra(plain(d), d.Extra)
}

func (d *Document) UnmarshalJSON(data []byte) error {
	type plain Document
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	extra, err := unknownFields(data, p)
	if err != nil {
		return err
	}
	*d = Document(p)
	d.Extra = extra
	return nil
}

func (w WorkspaceDocument) MarshalJSON() ([]byte, error) {
	type plain WorkspaceDocument
	return marshalWithExtra(plain(w), w.Extra)
}

func (w *WorkspaceDocument) UnmarshalJSON(data []byte) error {
	type plain WorkspaceDocument
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	extra, err := unknownFields(data, p)
	if err != nil {
		return err
	}
	*w = WorkspaceDocument(p)
	w.Extra = extra
	return nil
}

func (f FileDocument) MarshalJSON() ([]byte, error) {
	type plain FileDocument
	return marshalWithExtra(plain(f), f.Extra)
}

func (f *FileDocument) UnmarshalJSON(data []byte) error {
	type plain FileDocument
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	extra, err := unknownFields(data, p)
	if err != nil {
		return err
	}
	*f = FileDocument(p)
	f.Extra = extra
	return nil
}

// unknownFields returns the members of the JSON object data that known does
// not marshal.
func unknownFields(data []byte, known any) (extraFields, error) {
	var all extraFields
	if err := json.Unmarshal(data, &all); err != nil {
		return nil, err
	}
	knownData, err := json.Marshal(known)
	if err != nil {
		return nil, err
	}
	var modelled map[string]json.RawMessage
	if err := json.Unmarshal(knownData, &modelled); err != nil {
		return nil, err
	}
	for name := range modelled {
		delete(all, name)
	}
	if len(all) == 0 {
		return nil, nil
	}
	return all, nil
}

// marshalWithExtra encodes v and adds the extra members it does not already
// have.
func marshalWithExtra(v any, extra extraFields) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil || len(extra) == 0 {
		return data, err
	}
	var members map[string]json.RawMessage
	if err := json.Unmarshal(data, &members); err != nil {
		return nil, err
	}
	for name, value := range extra {
		if _, ok := members[name]; !ok {
			members[name] = value
		}
	}
	return json.Marshal(members)
}

// legacyFileFields are keys older versions wrote on files and no longer read.
var legacyFileFields = []string{"lastReadSha"}

// MigrateSnapshot upgrades a decoded document in place: files without
// oldShas get an empty set and legacy fields are removed. It reports whether
// anything changed; running it twice changes nothing the second time.
func MigrateSnapshot(doc map[string]any) bool {
	changed := false

	workspaces, _ := doc["workspaces"].([]any)
	for _, w := range workspaces {
		workspace, ok := w.(map[string]any)
		if !ok {
			continue
		}
		files, _ := workspace["files"].([]any)
		for _, f := range files {
			file, ok := f.(map[string]any)
			if !ok {
				continue
			}
			if _, ok := file["oldShas"].(map[string]any); !ok {
				file["oldShas"] = map[string]any{}
				changed = true
			}
			for _, field := range legacyFileFields {
				if _, ok := file[field]; ok {
					delete(file, field)
					changed = true
				}
			}
		}
	}
	return changed
}

// DecodeDocument parses and migrates a persisted document.
func DecodeDocument(data []byte) (*Document, bool, error) {
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, false, fmt.Errorf("parsing workspace document: %w", err)
	}
	migrated := MigrateSnapshot(raw)

	// Round trip through the generic form so migrated fields land in the typed one.
	normalized, err := json.Marshal(raw)
	if err != nil {
		return nil, false, fmt.Errorf("re-encoding workspace document: %w", err)
	}
	var doc Document
	if err := json.Unmarshal(normalized, &doc); err != nil {
		return nil, false, fmt.Errorf("parsing workspace document: %w", err)
	}
	return &doc, migrated, nil
}

// EncodeDocument serialises a document for storage.
func EncodeDocument(doc *Document) ([]byte, error) {
	data, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("encoding workspace document: %w", err)
	}
	return data, nil
}

// Document captures the store's state for persisting.
func (s *Store) Document() *Document {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc := &Document{
		ActiveWorkspace: indexPtr(s.activeWorkspace),
		Workspaces:      make([]WorkspaceDocument, 0, len(s.workspaces)),
		Extra:           s.extra,
	}
	for _, w := range s.workspaces {
		wd := WorkspaceDocument{
			Owner:      w.Owner,
			Repo:       w.Repo,
			Branch:     w.Branch,
			Files:      make([]FileDocument, 0, len(w.Files)),
			ActiveFile: indexPtr(w.ActiveFile),
			Extra:      w.extra,
		}
		for _, f := range w.Files {
			c := f.clone()
			wd.Files = append(wd.Files, FileDocument{
				Path:     c.Path,
				Content:  c.Content,
				Original: c.Original,
				SHA:      c.SHA,
				OldSHAs:  c.OldSHAs,
				Conflict: c.Conflict,
				Extra:    c.extra,
			})
		}
		doc.Workspaces = append(doc.Workspaces, wd)
	}
	return doc
}

// NewStoreFromDocument rebuilds a store from a persisted document. Active
// indices that do not point at an existing entry are repaired and logged.
func NewStoreFromDocument(doc *Document, logger Logger) *Store {
	s := NewStore(logger)

	for _, wd := range doc.Workspaces {
		w := &Workspace{Owner: wd.Owner, Repo: wd.Repo, Branch: wd.Branch, extra: wd.Extra}
		for _, fd := range wd.Files {
			oldSHAs := make(map[string]bool, len(fd.OldSHAs))
			for k, v := range fd.OldSHAs {
				oldSHAs[k] = v
			}
			w.Files = append(w.Files, &File{
				Path:     fd.Path,
				Content:  fd.Content,
				Original: fd.Original,
				SHA:      fd.SHA,
				OldSHAs:  oldSHAs,
				Conflict: fd.Conflict,
				extra:    fd.Extra,
			})
		}
		w.ActiveFile = s.normalizeIndex(wd.ActiveFile, len(w.Files), "activeFile", w.Key().String())
		s.workspaces = append(s.workspaces, w)
	}
	s.extra = doc.Extra
	s.activeWorkspace = s.normalizeIndex(doc.ActiveWorkspace, len(s.workspaces), "activeWorkspace", "")
	return s
}

func (s *Store) normalizeIndex(p *int, n int, field, owner string) int {
	switch {
	case n == 0:
		if p != nil && *p != NoActive {
			s.logger.Warn("restored index points into empty list", "field", field, "workspace", owner, "index", *p)
		}
		return NoActive
	case p == nil || *p == NoActive:
		return 0
	case *p < 0 || *p >= n:
		s.logger.Warn("restored index out of range", "field", field, "workspace", owner, "index", *p, "len", n)
		return n - 1
	default:
		return *p
	}
}

func indexPtr(i int) *int {
	if i == NoActive {
		return nil
	}
	return &i
}
