// Package models defines server-side data models persisted in the database.
package models

import "time"

// BatchStatus is the closed set of states an upload batch moves through.
//
// The lifecycle is initiated -> zipping -> completed | failed. Transitions are
// enforced at the SQL level with status predicates on the UPDATE statements,
// so a stale writer affects zero rows instead of corrupting state.
type BatchStatus string

const (
	BatchStatusInitiated BatchStatus = "initiated"
	BatchStatusZipping   BatchStatus = "zipping"
	BatchStatusCompleted BatchStatus = "completed"
	BatchStatusFailed    BatchStatus = "failed"
)

var batchTransitions = map[BatchStatus][]BatchStatus{
	BatchStatusInitiated: {BatchStatusZipping},
	BatchStatusZipping:   {BatchStatusCompleted, BatchStatusFailed},
}

// Valid reports whether s is a known status value.
func (s BatchStatus) Valid() bool {
	switch s {
	case BatchStatusInitiated, BatchStatusZipping, BatchStatusCompleted, BatchStatusFailed:
		return true
	}
	return false
}

// Terminal reports whether s is an end state.
func (s BatchStatus) Terminal() bool {
	return s == BatchStatusCompleted || s == BatchStatusFailed
}

// CanTransitionTo reports whether the transition s -> next is allowed.
func (s BatchStatus) CanTransitionTo(next BatchStatus) bool {
	for _, allowed := range batchTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Batch is one user-initiated group of files uploaded and archived together.
type Batch struct {
	ID        int64
	UserID    int64
	TargetID  int64
	ProjectID int64

	// TotalFilesExpected is fixed at initiation; FilesConfirmedCount is
	// incremented by the confirmation processor and never exceeds it.
	TotalFilesExpected  int
	FilesConfirmedCount int

	Status        BatchStatus
	StatusMessage *string

	// Location of the archival container once zipping completes.
	ZippedLocation *string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// ManifestFile is one entry of the file manifest handed to the archival
// worker. JSON tags match the FILE_LIST environment payload.
type ManifestFile struct {
	StorageKey       string `json:"s3_key"`
	OriginalFilename string `json:"original_filename"`
}
