package targets

import (
	"context"

	"github.com/mvasilkovs/astrobatch/internal/server/models"
)

type Repository interface {
	// FindByName resolves a target by case-insensitive name match.
	// Returns common.ErrorNotFound when no target exists.
	FindByName(ctx context.Context, name string) (*models.Target, error)
	Create(ctx context.Context, name string) (*models.Target, error)
	List(ctx context.Context) ([]*models.Target, error)
}
