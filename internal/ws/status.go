package ws

// FileStatus summarises one loaded file.
type FileStatus struct {
	Workspace WorkspaceKey
	Path      string
	State     FileState
	SHA       string
	Active    bool
}

// Status returns one entry per loaded file, workspaces in order. Active is
// set only for the active file of the active workspace.
func (e *Editor) Status() []*FileStatus {
	workspaces := e.store.Workspaces()
	activeWS := e.store.ActiveIndex()

	var statuses []*FileStatus
	for wi, w := range workspaces {
		for fi, f := range w.Files {
			statuses = append(statuses, &FileStatus{
				Workspace: w.Key(),
				Path:      f.Path,
				State:     f.State(),
				SHA:       f.SHA,
				Active:    wi == activeWS && fi == w.ActiveFile,
			})
		}
	}
	return statuses
}
