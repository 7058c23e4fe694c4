package app

import "ghedit-go/internal/database"

// SyncOperation tracks a CLI operation that may touch workspace state or the
// remote. Operations are created in memory with ID=0. Only mutating commands
// persist them (giving them an auto-increment ID from the database).
type SyncOperation struct {
	ID         int64
	RunID      string
	Operation  string
	Parameters string
	Status     string // "success", "conflict" or "error"
}

// NewSyncOperation creates a new in-memory sync operation.
func NewSyncOperation(runID, operation, parameters string) *SyncOperation {
	return &SyncOperation{
		RunID:      runID,
		Operation:  operation,
		Parameters: parameters,
		Status:     database.StatusSuccess,
	}
}

// Persisted returns true if this operation has been saved to the database.
func (op *SyncOperation) Persisted() bool {
	return op.ID != 0
}

// Fail marks the operation as errored when err is non-nil.
func (op *SyncOperation) Fail(err error) {
	if err != nil {
		op.Status = database.StatusError
	}
}
