package services

import (
	"context"
	"database/sql"
	"errors"
	"path"

	"github.com/mvasilkovs/astrobatch/internal/blobstore"
	"github.com/mvasilkovs/astrobatch/internal/common"
	"github.com/mvasilkovs/astrobatch/internal/logging"
	"github.com/mvasilkovs/astrobatch/internal/server/config"
	"github.com/mvasilkovs/astrobatch/internal/server/models"
	"github.com/mvasilkovs/astrobatch/internal/server/repositories/images"
	"github.com/mvasilkovs/astrobatch/internal/server/repositories/repomanager"
)

const (
	defaultPageSize = 25
	maxPageSize     = 100
)

// ImageService serves the confirmed-image read paths and single-file
// deletion.
type ImageService struct {
	db     *sql.DB
	repos  repomanager.RepositoryManager
	config *config.Config
	blobs  blobstore.Gateway
	logger logging.Logger
}

func NewImageService(db *sql.DB, repos repomanager.RepositoryManager, cfg *config.Config,
	blobs blobstore.Gateway, logger logging.Logger) *ImageService {
	return &ImageService{db: db, repos: repos, config: cfg, blobs: blobs, logger: logger.With("module", "images")}
}

// ListImagesParams filters and paginates the image gallery.
type ListImagesParams struct {
	TargetName  *string
	FocalLength *int64
	Page        int
	Limit       int
}

type ImagePage struct {
	Images     []*models.ImageWithTarget
	Total      int64
	Page       int
	Limit      int
	TotalPages int
}

// List returns one page of confirmed images, newest first, optionally
// filtered by target name and focal length.
func (s *ImageService) List(ctx context.Context, p ListImagesParams) (*ImagePage, error) {
	if p.Page < 1 {
		p.Page = 1
	}
	if p.Limit < 1 {
		p.Limit = defaultPageSize
	}
	if p.Limit > maxPageSize {
		p.Limit = maxPageSize
	}

	filter := images.ListFilter{
		TargetName:  p.TargetName,
		FocalLength: p.FocalLength,
		Limit:       p.Limit,
		Offset:      (p.Page - 1) * p.Limit,
	}

	repo := s.repos.Images(s.db)
	total, err := repo.CountFiltered(ctx, filter)
	if err != nil {
		return nil, err
	}
	items, err := repo.List(ctx, filter)
	if err != nil {
		return nil, err
	}

	totalPages := int(total) / p.Limit
	if int(total)%p.Limit != 0 {
		totalPages++
	}

	return &ImagePage{
		Images:     items,
		Total:      total,
		Page:       p.Page,
		Limit:      p.Limit,
		TotalPages: totalPages,
	}, nil
}

// Count returns the total number of confirmed images.
func (s *ImageService) Count(ctx context.Context) (int64, error) {
	return s.repos.Images(s.db).Count(ctx)
}

// PresignDownload issues a short-lived download URL that forces a file
// attachment named after the object's final path segment.
func (s *ImageService) PresignDownload(ctx context.Context, storageKey string) (string, error) {
	if storageKey == "" {
		return "", common.ErrMissingField
	}
	disposition := `attachment; filename="` + path.Base(storageKey) + `"`
	return s.blobs.PresignGet(ctx, s.config.S3Bucket, storageKey, s.config.DownloadURLExpiry, disposition)
}

// Delete removes one file from the hot bucket and its image record. Only
// the owner or an admin may delete; a key with no record succeeds so
// repeated deletes stay idempotent. The object is removed before the record
// so a failure leaves the record pointing at a missing object rather than
// an orphaned object with no record.
func (s *ImageService) Delete(ctx context.Context, userID int64, isAdmin bool, storageKey string) error {
	if storageKey == "" {
		return common.ErrMissingField
	}

	repo := s.repos.Images(s.db)
	owner, err := repo.OwnerByKey(ctx, storageKey)
	if errors.Is(err, common.ErrorNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if owner != userID && !isAdmin {
		return common.ErrorForbidden
	}

	if err := s.blobs.Delete(ctx, s.config.S3Bucket, storageKey); err != nil {
		return err
	}
	if _, err := repo.DeleteByKey(ctx, storageKey); err != nil {
		return err
	}

	s.logger.Info(ctx, "image deleted", "storage_key", storageKey, "user_id", userID)
	return nil
}
