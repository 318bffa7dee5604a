package models

import "time"

// PendingUpload reserves one file slot in a batch. Created at initiation
// with an unguessable storage key, locked FOR UPDATE and deleted when the
// file-landed notification promotes it to an Image. Never updated in place.
type PendingUpload struct {
	ID        int64
	UserID    int64
	TargetID  int64
	ProjectID int64
	BatchID   int64

	ImageType ImageType

	StorageBucket    string
	StorageKey       string
	OriginalFilename string

	FocalLength   *int64
	ExposureTime  *float64
	FiltersUsed   *string
	TelescopeType *string
	CameraModel   *string

	Status    string
	CreatedAt time.Time
}

// PendingUploadStatusAwaiting is the only status a pending row ever holds;
// promotion deletes the row instead of flipping the status.
const PendingUploadStatusAwaiting = "pending_confirmation"
