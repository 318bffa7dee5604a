package services

import (
	"context"
	"database/sql"

	"github.com/mvasilkovs/astrobatch/internal/common"
	"github.com/mvasilkovs/astrobatch/internal/dbx"
	"github.com/mvasilkovs/astrobatch/internal/logging"
	"github.com/mvasilkovs/astrobatch/internal/server/config"
	"github.com/mvasilkovs/astrobatch/internal/server/models"
	"github.com/mvasilkovs/astrobatch/internal/server/repositories/repomanager"
)

// BatchService finishes the batch lifecycle when the archival worker
// reports back.
type BatchService struct {
	db     *sql.DB
	repos  repomanager.RepositoryManager
	config *config.Config
	logger logging.Logger
}

func NewBatchService(db *sql.DB, repos repomanager.RepositoryManager, cfg *config.Config, logger logging.Logger) *BatchService {
	return &BatchService{db: db, repos: repos, config: cfg, logger: logger.With("module", "batches")}
}

// CompleteBatchParams is the archival worker callback payload.
type CompleteBatchParams struct {
	BatchID        int64
	Status         models.BatchStatus
	ZippedLocation string
	ErrorMessage   string
}

// CompleteBatch applies the worker's outcome report. Only zipping batches
// accept the report; a batch already in a terminal state makes the call a
// no-op so callback retries stay idempotent. On success the batch's image
// records are stamped with their cold-storage relocation.
func (s *BatchService) CompleteBatch(ctx context.Context, p CompleteBatchParams) error {
	if p.BatchID == 0 {
		return common.ErrMissingField
	}
	if p.Status != models.BatchStatusCompleted && p.Status != models.BatchStatusFailed {
		return common.ErrInvalidStatusTransition
	}

	var applied bool

	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		batchRepo := s.repos.Batches(tx)
		imageRepo := s.repos.Images(tx)

		var err error
		switch p.Status {
		case models.BatchStatusCompleted:
			applied, err = batchRepo.MarkCompleted(ctx, p.BatchID, p.ZippedLocation)
			if err != nil || !applied {
				return err
			}
			return imageRepo.MarkArchivedByBatch(ctx, p.BatchID, s.config.S3ColdBucket, s.config.ColdStorageClass)
		default:
			applied, err = batchRepo.MarkFailed(ctx, p.BatchID, p.ErrorMessage)
			return err
		}
	})
	if err != nil {
		return err
	}

	if !applied {
		s.logger.Info(ctx, "batch completion report ignored, batch not in zipping",
			"batch_id", p.BatchID, "reported_status", string(p.Status))
		return nil
	}

	if p.Status == models.BatchStatusFailed {
		s.logger.Error(ctx, "batch archival failed",
			"batch_id", p.BatchID, "message", p.ErrorMessage)
	} else {
		s.logger.Info(ctx, "batch archival completed",
			"batch_id", p.BatchID, "zipped_location", p.ZippedLocation)
	}
	return nil
}
