package models

import "time"

// Target is an astronomical subject. Names are unique case-insensitively;
// targets are created lazily on first batch referencing them.
type Target struct {
	ID          int64
	Name        string
	Description *string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}
