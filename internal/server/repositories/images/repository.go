package images

import (
	"context"

	"github.com/mvasilkovs/astrobatch/internal/server/models"
)

// ListFilter narrows and paginates image listings.
type ListFilter struct {
	TargetName  *string
	FocalLength *int64
	Limit       int
	Offset      int
}

type Repository interface {
	// Create inserts the durable image record produced by a confirmation.
	Create(ctx context.Context, image *models.Image) (int64, error)

	// ManifestByBatch returns the ordered file manifest of a batch.
	ManifestByBatch(ctx context.Context, batchID int64) ([]models.ManifestFile, error)

	// TotalSizeByBatch sums the confirmed file sizes of a batch.
	TotalSizeByBatch(ctx context.Context, batchID int64) (int64, error)

	List(ctx context.Context, filter ListFilter) ([]*models.ImageWithTarget, error)
	CountFiltered(ctx context.Context, filter ListFilter) (int64, error)
	Count(ctx context.Context) (int64, error)

	// OwnerByKey returns the owning user id for a storage key.
	// Returns common.ErrorNotFound when no image record exists.
	OwnerByKey(ctx context.Context, storageKey string) (int64, error)

	// DeleteByKey removes the image record; reports rows affected so
	// deleting an already-deleted key stays idempotent.
	DeleteByKey(ctx context.Context, storageKey string) (int64, error)

	// MarkArchivedByBatch records the storage relocation performed by the
	// archival worker for every original file of the batch.
	MarkArchivedByBatch(ctx context.Context, batchID int64, bucket, storageClass string) error
}
