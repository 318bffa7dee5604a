// Package services implements the application logic between the HTTP
// handlers and the repositories: batch initiation, upload confirmation,
// archival completion, and the supporting read paths.
package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/mvasilkovs/astrobatch/internal/blobstore"
	"github.com/mvasilkovs/astrobatch/internal/common"
	"github.com/mvasilkovs/astrobatch/internal/dbx"
	"github.com/mvasilkovs/astrobatch/internal/dispatch"
	"github.com/mvasilkovs/astrobatch/internal/logging"
	"github.com/mvasilkovs/astrobatch/internal/server/config"
	"github.com/mvasilkovs/astrobatch/internal/server/models"
	"github.com/mvasilkovs/astrobatch/internal/server/repositories/repomanager"
)

// UploadService owns the batch upload lifecycle: initiation and the
// confirmation state machine that detects batch completion and dispatches
// the archival task.
type UploadService struct {
	db         *sql.DB
	repos      repomanager.RepositoryManager
	config     *config.Config
	blobs      blobstore.Gateway
	dispatcher dispatch.Dispatcher
	logger     logging.Logger
}

func NewUploadService(db *sql.DB, repos repomanager.RepositoryManager, cfg *config.Config,
	blobs blobstore.Gateway, dispatcher dispatch.Dispatcher, logger logging.Logger) *UploadService {
	return &UploadService{
		db:         db,
		repos:      repos,
		config:     cfg,
		blobs:      blobs,
		dispatcher: dispatcher,
		logger:     logger.With("module", "uploads"),
	}
}

// InitiateBatchParams describes one batch initiation request.
type InitiateBatchParams struct {
	UserID      int64
	Username    string
	TargetName  string
	ProjectName string
	ImageType   models.ImageType
	Filenames   []string
}

// BatchUploadSlot pairs an original filename with its reserved storage key
// and presigned upload URL.
type BatchUploadSlot struct {
	OriginalFilename string `json:"originalFilename"`
	StorageKey       string `json:"storageKey"`
	UploadURL        string `json:"uploadUrl"`
}

type InitiateBatchResult struct {
	BatchID   int64
	ProjectID int64
	Uploads   []BatchUploadSlot
}

// newStorageKey builds a globally unique, unguessable object key namespaced
// by stage, user, project and batch.
func (s *UploadService) newStorageKey(userID, projectID, batchID int64, filename string) string {
	return fmt.Sprintf("%s/uploads/%d/%d/%d/%s-%s",
		s.config.Stage, userID, projectID, batchID, uuid.New(), filename)
}

// InitiateBatch resolves (or lazily creates) the target and project, creates
// the batch row with its expected file count, reserves one pending upload
// slot per filename, and returns presigned upload URLs.
//
// All rows are written in a single transaction; URL issuance happens after
// commit since it does not mutate the ledger. When presigning fails the
// batch is left 'initiated' with orphaned pending rows, which are harmless.
func (s *UploadService) InitiateBatch(ctx context.Context, p InitiateBatchParams) (*InitiateBatchResult, error) {
	if p.TargetName == "" {
		return nil, common.ErrMissingField
	}
	if !p.ImageType.Valid() {
		return nil, common.ErrInvalidImageType
	}
	if len(p.Filenames) == 0 {
		return nil, common.ErrEmptyFileList
	}
	if len(p.Filenames) > s.config.MaxBatchFiles {
		return nil, common.ErrBatchTooLarge
	}

	var (
		batchID   int64
		projectID int64
		pending   []*models.PendingUpload
	)

	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		targetRepo := s.repos.Targets(tx)
		projectRepo := s.repos.Projects(tx)
		batchRepo := s.repos.Batches(tx)
		pendingRepo := s.repos.PendingUploads(tx)

		target, err := targetRepo.FindByName(ctx, p.TargetName)
		if errors.Is(err, common.ErrorNotFound) {
			target, err = targetRepo.Create(ctx, p.TargetName)
		}
		if err != nil {
			return err
		}

		project, err := projectRepo.FindByUserTarget(ctx, p.UserID, target.ID)
		if errors.Is(err, common.ErrorNotFound) {
			name := p.ProjectName
			if name == "" {
				name = fmt.Sprintf("%s's %s Project", p.Username, p.TargetName)
			}
			project, err = projectRepo.Create(ctx, p.UserID, target.ID, name)
		}
		if err != nil {
			return err
		}
		projectID = project.ID

		batchID, err = batchRepo.Create(ctx, &models.Batch{
			UserID:             p.UserID,
			TargetID:           target.ID,
			ProjectID:          project.ID,
			TotalFilesExpected: len(p.Filenames),
		})
		if err != nil {
			return err
		}

		for _, filename := range p.Filenames {
			upload := &models.PendingUpload{
				UserID:           p.UserID,
				TargetID:         target.ID,
				ProjectID:        project.ID,
				BatchID:          batchID,
				ImageType:        p.ImageType,
				StorageBucket:    s.config.S3Bucket,
				StorageKey:       s.newStorageKey(p.UserID, project.ID, batchID, filename),
				OriginalFilename: filename,
			}
			if err := pendingRepo.Create(ctx, upload); err != nil {
				return err
			}
			pending = append(pending, upload)
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	result := &InitiateBatchResult{BatchID: batchID, ProjectID: projectID}
	for _, upload := range pending {
		url, err := s.blobs.PresignPut(ctx, upload.StorageBucket, upload.StorageKey, s.config.UploadURLExpiry)
		if err != nil {
			return nil, fmt.Errorf("presign upload url: %w", err)
		}
		result.Uploads = append(result.Uploads, BatchUploadSlot{
			OriginalFilename: upload.OriginalFilename,
			StorageKey:       upload.StorageKey,
			UploadURL:        url,
		})
	}

	s.logger.Info(ctx, "batch initiated",
		"batch_id", batchID, "project_id", projectID, "files", len(pending))
	return result, nil
}

// ConfirmUploadParams is the payload of one file-landed notification.
type ConfirmUploadParams struct {
	StorageBucket string
	StorageKey    string
	Size          int64
	ContentType   *string
}

// ConfirmUpload promotes a pending upload to a confirmed image and advances
// the owning batch. The whole step runs in one transaction with the pending
// row locked FOR UPDATE:
//
//   - no pending row for the key: commit a no-op so duplicate notifications
//     stay harmless (at-least-once delivery is assumed);
//   - otherwise insert the image, delete the pending row, flip the project
//     calibration flag, and increment the batch counter at the SQL level;
//   - exactly the transaction that observes confirmed >= expected AND wins
//     the guarded initiated->zipping transition prepares the archival task.
//
// The task launches only after commit; holding a row lock across a slow
// external call would serialize every confirmation behind it.
func (s *UploadService) ConfirmUpload(ctx context.Context, p ConfirmUploadParams) error {
	if p.StorageKey == "" || p.StorageBucket == "" {
		return common.ErrMissingField
	}

	var task *dispatch.Task

	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		pendingRepo := s.repos.PendingUploads(tx)
		imageRepo := s.repos.Images(tx)
		projectRepo := s.repos.Projects(tx)
		batchRepo := s.repos.Batches(tx)

		pending, err := pendingRepo.GetForUpdateByKey(ctx, p.StorageKey)
		if errors.Is(err, common.ErrorNotFound) {
			// Already promoted or never existed. Commit releases nothing
			// and the notification sender gets a success either way.
			return nil
		}
		if err != nil {
			return err
		}

		_, err = imageRepo.Create(ctx, &models.Image{
			UserID:           pending.UserID,
			TargetID:         pending.TargetID,
			ProjectID:        pending.ProjectID,
			BatchID:          pending.BatchID,
			ImageType:        pending.ImageType,
			StorageBucket:    p.StorageBucket,
			StorageKey:       pending.StorageKey,
			OriginalFilename: pending.OriginalFilename,
			FileSizeBytes:    p.Size,
			ContentType:      p.ContentType,
			FocalLength:      pending.FocalLength,
			ExposureTime:     pending.ExposureTime,
			FiltersUsed:      pending.FiltersUsed,
			TelescopeType:    pending.TelescopeType,
			CameraModel:      pending.CameraModel,
		})
		if err != nil {
			return err
		}

		if err := pendingRepo.Delete(ctx, pending.ID); err != nil {
			return err
		}

		if err := projectRepo.SetCalibrationFlag(ctx, pending.ProjectID, pending.ImageType); err != nil {
			return err
		}

		confirmed, expected, err := batchRepo.IncrementConfirmed(ctx, pending.BatchID)
		if err != nil {
			return err
		}

		if confirmed < expected {
			return nil
		}

		// MarkZipping only succeeds from 'initiated'; if a racing
		// confirmation got here first, advanced is false and this
		// transaction commits without preparing a task.
		advanced, err := batchRepo.MarkZipping(ctx, pending.BatchID)
		if err != nil {
			return err
		}
		if !advanced {
			return nil
		}

		manifest, err := imageRepo.ManifestByBatch(ctx, pending.BatchID)
		if err != nil {
			return err
		}
		totalSize, err := imageRepo.TotalSizeByBatch(ctx, pending.BatchID)
		if err != nil {
			return err
		}

		task = &dispatch.Task{
			BatchID:        pending.BatchID,
			Files:          manifest,
			TotalSizeBytes: totalSize,
			CallbackURL:    s.config.AppBaseURL + "/batch-complete",
			WebhookSecret:  s.config.WebhookSecret,
		}
		return nil
	})
	if err != nil {
		return err
	}

	if task == nil {
		return nil
	}

	s.logger.Info(ctx, "batch complete, dispatching archival task",
		"batch_id", task.BatchID, "files", len(task.Files), "total_bytes", task.TotalSizeBytes)

	if err := s.dispatcher.Launch(ctx, *task); err != nil {
		// The ledger already committed; the batch sits in 'zipping' with no
		// task running. That is an operational alert, not a retryable
		// notification failure, so the confirmation still succeeds.
		s.logger.Error(ctx, "archival task launch failed, batch stuck in zipping",
			"batch_id", task.BatchID, "error", err.Error())
	}
	return nil
}
