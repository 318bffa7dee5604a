package models

import "time"

// ImageType classifies a frame within an imaging session. Calibration types
// flip the corresponding has_* flag on the owning project when confirmed.
type ImageType string

const (
	ImageTypeLight    ImageType = "light"
	ImageTypeDark     ImageType = "dark"
	ImageTypeFlat     ImageType = "flat"
	ImageTypeBias     ImageType = "bias"
	ImageTypeDarkFlat ImageType = "dark_flat"
)

// Valid reports whether t is a known image type.
func (t ImageType) Valid() bool {
	switch t {
	case ImageTypeLight, ImageTypeDark, ImageTypeFlat, ImageTypeBias, ImageTypeDarkFlat:
		return true
	}
	return false
}

// projectFlags maps calibration types to the project column they set.
// Light frames carry no flag.
var projectFlags = map[ImageType]string{
	ImageTypeDark:     "has_darks",
	ImageTypeFlat:     "has_flats",
	ImageTypeBias:     "has_biases",
	ImageTypeDarkFlat: "has_dark_flats",
}

// ProjectFlagColumn returns the projects column set when a frame of this
// type is confirmed, or "" if the type carries no flag.
func (t ImageType) ProjectFlagColumn() string {
	return projectFlags[t]
}

// Image is the durable record of a successfully landed file. Immutable after
// confirmation except for storage-class transitions performed by the
// archival worker.
type Image struct {
	ID        int64
	UserID    int64
	TargetID  int64
	ProjectID int64
	BatchID   int64

	ImageType ImageType

	StorageBucket    string
	StorageKey       string
	OriginalFilename string
	FileSizeBytes    int64
	ContentType      *string

	// Optical metadata denormalized from the pending row at confirmation.
	FocalLength   *int64
	ExposureTime  *float64
	FiltersUsed   *string
	TelescopeType *string
	CameraModel   *string

	StorageClass     string
	IsZippedOriginal bool

	CreatedAt time.Time
	UpdatedAt time.Time
}

// ImageWithTarget is an image row joined with its target for list views.
type ImageWithTarget struct {
	Image
	TargetName        string
	TargetDescription *string
}

