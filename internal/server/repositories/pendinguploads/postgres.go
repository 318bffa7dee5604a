package pendinguploads

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/mvasilkovs/astrobatch/internal/common"
	"github.com/mvasilkovs/astrobatch/internal/dbx"
	"github.com/mvasilkovs/astrobatch/internal/server/models"
)

// PostgresRepository implements pending upload storage over a dbx.DBTX
// (*sql.DB or *sql.Tx).
type PostgresRepository struct {
	db dbx.DBTX
}

// NewPostgresRepository constructs a repository bound to the given DBTX.
func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Create(ctx context.Context, upload *models.PendingUpload) error {
	query := `
		INSERT INTO temporary_uploads
			(user_id, target_id, project_id, batch_id, image_type,
			s3_bucket, s3_key, original_filename,
			focal_length, exposure_time, filters_used, telescope_type, camera_model, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, 'pending_confirmation')
		RETURNING temp_id
	`
	err := r.db.QueryRowContext(ctx, query,
		upload.UserID, upload.TargetID, upload.ProjectID, upload.BatchID, upload.ImageType,
		upload.StorageBucket, upload.StorageKey, upload.OriginalFilename,
		upload.FocalLength, upload.ExposureTime, upload.FiltersUsed,
		upload.TelescopeType, upload.CameraModel,
	).Scan(&upload.ID)
	if err != nil {
		return fmt.Errorf("failed to insert pending upload: %w", err)
	}
	return nil
}

// GetForUpdateByKey takes a row lock that is held until the surrounding
// transaction commits; concurrent confirmations for the same key serialize
// here.
func (r *PostgresRepository) GetForUpdateByKey(ctx context.Context, storageKey string) (*models.PendingUpload, error) {
	query := `
		SELECT temp_id, user_id, target_id, project_id, batch_id, image_type,
			s3_bucket, s3_key, original_filename,
			focal_length, exposure_time, filters_used, telescope_type, camera_model,
			status, created_at
		FROM temporary_uploads
		WHERE s3_key = $1 AND status = 'pending_confirmation'
		FOR UPDATE
	`
	result := &models.PendingUpload{}
	err := r.db.QueryRowContext(ctx, query, storageKey).Scan(
		&result.ID, &result.UserID, &result.TargetID, &result.ProjectID, &result.BatchID,
		&result.ImageType, &result.StorageBucket, &result.StorageKey, &result.OriginalFilename,
		&result.FocalLength, &result.ExposureTime, &result.FiltersUsed,
		&result.TelescopeType, &result.CameraModel,
		&result.Status, &result.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.ErrorNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to select pending upload: %w", err)
	}
	return result, nil
}

func (r *PostgresRepository) Delete(ctx context.Context, id int64) error {
	query := `DELETE FROM temporary_uploads WHERE temp_id = $1`
	res, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to delete pending upload: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected error: %w", err)
	}
	if n != 1 {
		return fmt.Errorf("wrong rows affected count: %d", n)
	}
	return nil
}

func (r *PostgresRepository) ListByBatch(ctx context.Context, batchID int64) ([]*models.PendingUpload, error) {
	query := `
		SELECT temp_id, s3_bucket, s3_key, original_filename
		FROM temporary_uploads
		WHERE batch_id = $1
		ORDER BY temp_id
	`
	rows, err := r.db.QueryContext(ctx, query, batchID)
	if err != nil {
		return nil, fmt.Errorf("failed to select pending uploads: %w", err)
	}
	defer rows.Close()

	var result []*models.PendingUpload
	for rows.Next() {
		var item models.PendingUpload
		if err := rows.Scan(&item.ID, &item.StorageBucket, &item.StorageKey, &item.OriginalFilename); err != nil {
			return nil, err
		}
		item.BatchID = batchID
		result = append(result, &item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}
