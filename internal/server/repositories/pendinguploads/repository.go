package pendinguploads

import (
	"context"

	"github.com/mvasilkovs/astrobatch/internal/server/models"
)

type Repository interface {
	// Create inserts one pending upload row and fills in its generated id.
	Create(ctx context.Context, upload *models.PendingUpload) error

	// GetForUpdateByKey locks the pending row for a storage key. Returns
	// common.ErrorNotFound when no pending row exists (already promoted or
	// never created) so duplicate notifications degrade to a no-op.
	GetForUpdateByKey(ctx context.Context, storageKey string) (*models.PendingUpload, error)

	// Delete removes the pending row on promotion. Exactly one row must be
	// affected.
	Delete(ctx context.Context, id int64) error

	ListByBatch(ctx context.Context, batchID int64) ([]*models.PendingUpload, error)
}
