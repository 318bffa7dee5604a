package projects

import (
	"context"

	"github.com/mvasilkovs/astrobatch/internal/server/models"
)

type Repository interface {
	// FindByUserTarget resolves the project for a (user, target) pair.
	// Returns common.ErrorNotFound when none exists.
	FindByUserTarget(ctx context.Context, userID, targetID int64) (*models.Project, error)
	Create(ctx context.Context, userID, targetID int64, name string) (*models.Project, error)
	// SetCalibrationFlag marks the project as having confirmed frames of the
	// given type. A no-op for types that carry no flag (lights).
	SetCalibrationFlag(ctx context.Context, projectID int64, imageType models.ImageType) error
}
