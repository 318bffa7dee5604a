package projects

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/mvasilkovs/astrobatch/internal/common"
	"github.com/mvasilkovs/astrobatch/internal/dbx"
	"github.com/mvasilkovs/astrobatch/internal/server/models"
)

// PostgresRepository implements project storage over a dbx.DBTX (*sql.DB or *sql.Tx).
type PostgresRepository struct {
	db dbx.DBTX
}

// NewPostgresRepository constructs a repository bound to the given DBTX.
func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) FindByUserTarget(ctx context.Context, userID, targetID int64) (*models.Project, error) {
	query := `
		SELECT project_id, user_id, target_id, project_name, description,
			has_darks, has_flats, has_biases, has_dark_flats
		FROM projects
		WHERE user_id = $1 AND target_id = $2
		LIMIT 1
	`
	result := &models.Project{}
	err := r.db.QueryRowContext(ctx, query, userID, targetID).Scan(
		&result.ID, &result.UserID, &result.TargetID, &result.Name, &result.Description,
		&result.HasDarks, &result.HasFlats, &result.HasBiases, &result.HasDarkFlats,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.ErrorNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to select project: %w", err)
	}
	return result, nil
}

func (r *PostgresRepository) Create(ctx context.Context, userID, targetID int64, name string) (*models.Project, error) {
	query := `
		INSERT INTO projects (user_id, target_id, project_name)
		VALUES ($1, $2, $3)
		RETURNING project_id
	`
	result := &models.Project{UserID: userID, TargetID: targetID, Name: name}
	if err := r.db.QueryRowContext(ctx, query, userID, targetID, name).Scan(&result.ID); err != nil {
		return nil, fmt.Errorf("failed to insert project: %w", err)
	}
	return result, nil
}

func (r *PostgresRepository) SetCalibrationFlag(ctx context.Context, projectID int64, imageType models.ImageType) error {
	column := imageType.ProjectFlagColumn()
	if column == "" {
		return nil
	}
	// column comes from the closed ImageType mapping, never from user input
	query := fmt.Sprintf(`UPDATE projects SET %s = TRUE, updated_at = now() WHERE project_id = $1`, column)
	if _, err := r.db.ExecContext(ctx, query, projectID); err != nil {
		return fmt.Errorf("failed to set calibration flag: %w", err)
	}
	return nil
}
