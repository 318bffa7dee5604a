package images

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/mvasilkovs/astrobatch/internal/common"
	"github.com/mvasilkovs/astrobatch/internal/dbx"
	"github.com/mvasilkovs/astrobatch/internal/server/models"
)

// PostgresRepository implements image storage over a dbx.DBTX (*sql.DB or *sql.Tx).
type PostgresRepository struct {
	db dbx.DBTX
}

// NewPostgresRepository constructs a repository bound to the given DBTX.
func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Create(ctx context.Context, image *models.Image) (int64, error) {
	query := `
		INSERT INTO images
			(user_id, target_id, project_id, batch_id, image_type,
			s3_bucket, s3_key, original_filename, file_size_bytes, content_type,
			focal_length, exposure_time, filters_used, telescope_type, camera_model)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		RETURNING image_id
	`
	var id int64
	err := r.db.QueryRowContext(ctx, query,
		image.UserID, image.TargetID, image.ProjectID, image.BatchID, image.ImageType,
		image.StorageBucket, image.StorageKey, image.OriginalFilename,
		image.FileSizeBytes, image.ContentType,
		image.FocalLength, image.ExposureTime, image.FiltersUsed,
		image.TelescopeType, image.CameraModel,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("failed to insert image: %w", err)
	}
	return id, nil
}

func (r *PostgresRepository) ManifestByBatch(ctx context.Context, batchID int64) ([]models.ManifestFile, error) {
	query := `
		SELECT s3_key, original_filename
		FROM images
		WHERE batch_id = $1
		ORDER BY image_id
	`
	rows, err := r.db.QueryContext(ctx, query, batchID)
	if err != nil {
		return nil, fmt.Errorf("failed to select manifest: %w", err)
	}
	defer rows.Close()

	var result []models.ManifestFile
	for rows.Next() {
		var item models.ManifestFile
		if err := rows.Scan(&item.StorageKey, &item.OriginalFilename); err != nil {
			return nil, err
		}
		result = append(result, item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (r *PostgresRepository) TotalSizeByBatch(ctx context.Context, batchID int64) (int64, error) {
	query := `SELECT COALESCE(SUM(file_size_bytes), 0) FROM images WHERE batch_id = $1`
	var total int64
	if err := r.db.QueryRowContext(ctx, query, batchID).Scan(&total); err != nil {
		return 0, fmt.Errorf("failed to sum batch size: %w", err)
	}
	return total, nil
}

func listPredicates(filter ListFilter) (string, []any) {
	where := ""
	var args []any
	if filter.TargetName != nil {
		args = append(args, *filter.TargetName)
		where += fmt.Sprintf(" AND t.target_name = $%d", len(args))
	}
	if filter.FocalLength != nil {
		args = append(args, *filter.FocalLength)
		where += fmt.Sprintf(" AND i.focal_length = $%d", len(args))
	}
	return where, args
}

func (r *PostgresRepository) List(ctx context.Context, filter ListFilter) ([]*models.ImageWithTarget, error) {
	where, args := listPredicates(filter)
	args = append(args, filter.Limit, filter.Offset)
	query := fmt.Sprintf(`
		SELECT i.image_id, i.user_id, i.target_id, i.project_id, i.batch_id, i.image_type,
			i.s3_bucket, i.s3_key, i.original_filename, i.file_size_bytes, i.content_type,
			i.focal_length, i.exposure_time, i.filters_used, i.telescope_type, i.camera_model,
			i.storage_class, i.created_at,
			t.target_name, t.description
		FROM images i
		JOIN targets t ON i.target_id = t.target_id
		WHERE TRUE%s
		ORDER BY i.created_at DESC
		LIMIT $%d OFFSET $%d
	`, where, len(args)-1, len(args))

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to select images: %w", err)
	}
	defer rows.Close()

	var result []*models.ImageWithTarget
	for rows.Next() {
		var item models.ImageWithTarget
		var batchID sql.NullInt64
		var sizeBytes sql.NullInt64
		if err := rows.Scan(
			&item.ID, &item.UserID, &item.TargetID, &item.ProjectID, &batchID, &item.ImageType,
			&item.StorageBucket, &item.StorageKey, &item.OriginalFilename, &sizeBytes, &item.ContentType,
			&item.FocalLength, &item.ExposureTime, &item.FiltersUsed, &item.TelescopeType, &item.CameraModel,
			&item.StorageClass, &item.CreatedAt,
			&item.TargetName, &item.TargetDescription,
		); err != nil {
			return nil, err
		}
		if batchID.Valid {
			item.BatchID = batchID.Int64
		}
		if sizeBytes.Valid {
			item.FileSizeBytes = sizeBytes.Int64
		}
		result = append(result, &item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (r *PostgresRepository) CountFiltered(ctx context.Context, filter ListFilter) (int64, error) {
	where, args := listPredicates(filter)
	query := fmt.Sprintf(`
		SELECT COUNT(*)
		FROM images i
		JOIN targets t ON i.target_id = t.target_id
		WHERE TRUE%s
	`, where)
	var n int64
	if err := r.db.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count images: %w", err)
	}
	return n, nil
}

func (r *PostgresRepository) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM images`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count images: %w", err)
	}
	return n, nil
}

func (r *PostgresRepository) OwnerByKey(ctx context.Context, storageKey string) (int64, error) {
	query := `SELECT user_id FROM images WHERE s3_key = $1 LIMIT 1`
	var userID int64
	err := r.db.QueryRowContext(ctx, query, storageKey).Scan(&userID)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, common.ErrorNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("failed to select image owner: %w", err)
	}
	return userID, nil
}

func (r *PostgresRepository) DeleteByKey(ctx context.Context, storageKey string) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM images WHERE s3_key = $1`, storageKey)
	if err != nil {
		return 0, fmt.Errorf("failed to delete image: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected error: %w", err)
	}
	return n, nil
}

func (r *PostgresRepository) MarkArchivedByBatch(ctx context.Context, batchID int64, bucket, storageClass string) error {
	query := `
		UPDATE images
		SET s3_bucket = $2, storage_class = $3, is_zipped_original = TRUE, updated_at = now()
		WHERE batch_id = $1
	`
	if _, err := r.db.ExecContext(ctx, query, batchID, bucket, storageClass); err != nil {
		return fmt.Errorf("failed to mark images archived: %w", err)
	}
	return nil
}
