package ws

// Store exposes the editor's store to the external test package.
func (e *Editor) Store() *Store {
	return e.store
}
