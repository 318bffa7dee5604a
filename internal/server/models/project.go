package models

import "time"

// Project is the (user, target) pairing under which batches are grouped.
// The has_* flags record which calibration frame types have been confirmed
// for the project.
type Project struct {
	ID       int64
	UserID   int64
	TargetID int64

	Name        string
	Description *string

	HasDarks     bool
	HasFlats     bool
	HasBiases    bool
	HasDarkFlats bool

	CreatedAt time.Time
	UpdatedAt time.Time
}
