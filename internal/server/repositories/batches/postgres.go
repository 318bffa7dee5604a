package batches

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/mvasilkovs/astrobatch/internal/common"
	"github.com/mvasilkovs/astrobatch/internal/dbx"
	"github.com/mvasilkovs/astrobatch/internal/server/models"
)

const pgUniqueViolation = "23505"

// PostgresRepository implements batch storage over a dbx.DBTX (*sql.DB or *sql.Tx).
//
// Status transitions are guarded by predicates on the current status, so a
// transition attempted from the wrong state affects zero rows and is reported
// to the caller instead of silently overwriting.
type PostgresRepository struct {
	db dbx.DBTX
}

// NewPostgresRepository constructs a repository bound to the given DBTX.
func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Create(ctx context.Context, batch *models.Batch) (int64, error) {
	query := `
		INSERT INTO upload_batches (user_id, target_id, project_id, total_files_expected, status)
		VALUES ($1, $2, $3, $4, 'initiated')
		RETURNING batch_id
	`
	var id int64
	err := r.db.QueryRowContext(ctx, query,
		batch.UserID, batch.TargetID, batch.ProjectID, batch.TotalFilesExpected).Scan(&id)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			return 0, common.ErrActiveBatchExists
		}
		return 0, fmt.Errorf("failed to insert batch: %w", err)
	}
	return id, nil
}

func (r *PostgresRepository) GetByID(ctx context.Context, batchID int64) (*models.Batch, error) {
	query := `
		SELECT batch_id, user_id, target_id, project_id,
			total_files_expected, files_confirmed_count,
			status, status_message, zipped_location, created_at, updated_at
		FROM upload_batches
		WHERE batch_id = $1
	`
	result := &models.Batch{}
	err := r.db.QueryRowContext(ctx, query, batchID).Scan(
		&result.ID, &result.UserID, &result.TargetID, &result.ProjectID,
		&result.TotalFilesExpected, &result.FilesConfirmedCount,
		&result.Status, &result.StatusMessage, &result.ZippedLocation,
		&result.CreatedAt, &result.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.ErrorNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to select batch: %w", err)
	}
	return result, nil
}

func (r *PostgresRepository) IncrementConfirmed(ctx context.Context, batchID int64) (int, int, error) {
	// The increment and the readback happen in one statement; combined with
	// the FOR UPDATE lock on the pending row this rules out lost updates.
	query := `
		UPDATE upload_batches
		SET files_confirmed_count = files_confirmed_count + 1, updated_at = now()
		WHERE batch_id = $1
		RETURNING files_confirmed_count, total_files_expected
	`
	var confirmed, expected int
	err := r.db.QueryRowContext(ctx, query, batchID).Scan(&confirmed, &expected)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, 0, common.ErrorNotFound
	}
	if err != nil {
		return 0, 0, fmt.Errorf("failed to increment confirmed count: %w", err)
	}
	return confirmed, expected, nil
}

func (r *PostgresRepository) MarkZipping(ctx context.Context, batchID int64) (bool, error) {
	query := `
		UPDATE upload_batches
		SET status = 'zipping', updated_at = now()
		WHERE batch_id = $1 AND status = 'initiated'
	`
	return r.execTransition(ctx, query, batchID)
}

func (r *PostgresRepository) MarkCompleted(ctx context.Context, batchID int64, zippedLocation string) (bool, error) {
	query := `
		UPDATE upload_batches
		SET status = 'completed', zipped_location = $2, updated_at = now()
		WHERE batch_id = $1 AND status = 'zipping'
	`
	return r.execTransition(ctx, query, batchID, zippedLocation)
}

func (r *PostgresRepository) MarkFailed(ctx context.Context, batchID int64, message string) (bool, error) {
	query := `
		UPDATE upload_batches
		SET status = 'failed', status_message = $2, updated_at = now()
		WHERE batch_id = $1 AND status = 'zipping'
	`
	return r.execTransition(ctx, query, batchID, message)
}

func (r *PostgresRepository) execTransition(ctx context.Context, query string, args ...any) (bool, error) {
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return false, fmt.Errorf("failed to update batch status: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected error: %w", err)
	}
	switch n {
	case 0:
		return false, nil
	case 1:
		return true, nil
	default:
		return false, fmt.Errorf("unexpected rows affected: %d", n)
	}
}
