package batches

import (
	"context"

	"github.com/mvasilkovs/astrobatch/internal/server/models"
)

type Repository interface {
	// Create inserts a new batch in status 'initiated'. Returns
	// common.ErrActiveBatchExists when the (user, target) pair already has
	// a non-terminal batch.
	Create(ctx context.Context, batch *models.Batch) (int64, error)

	GetByID(ctx context.Context, batchID int64) (*models.Batch, error)

	// IncrementConfirmed bumps files_confirmed_count by one at the SQL level
	// and returns the post-increment counter alongside the expected total,
	// read in the same statement.
	IncrementConfirmed(ctx context.Context, batchID int64) (confirmed, expected int, err error)

	// MarkZipping transitions initiated -> zipping. Reports whether this
	// caller performed the transition; false means another confirmation
	// already advanced the batch.
	MarkZipping(ctx context.Context, batchID int64) (bool, error)

	// MarkCompleted transitions zipping -> completed, recording the archival
	// container location. False when the batch was not in 'zipping'.
	MarkCompleted(ctx context.Context, batchID int64, zippedLocation string) (bool, error)

	// MarkFailed transitions zipping -> failed, recording the error message.
	MarkFailed(ctx context.Context, batchID int64, message string) (bool, error)
}
