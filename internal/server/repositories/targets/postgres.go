package targets

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/mvasilkovs/astrobatch/internal/common"
	"github.com/mvasilkovs/astrobatch/internal/dbx"
	"github.com/mvasilkovs/astrobatch/internal/server/models"
)

// PostgresRepository implements target storage over a dbx.DBTX (*sql.DB or *sql.Tx).
type PostgresRepository struct {
	db dbx.DBTX
}

// NewPostgresRepository constructs a repository bound to the given DBTX.
func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) FindByName(ctx context.Context, name string) (*models.Target, error) {
	query := `
		SELECT target_id, target_name, description
		FROM targets
		WHERE LOWER(target_name) = LOWER($1)
		LIMIT 1
	`
	result := &models.Target{}
	err := r.db.QueryRowContext(ctx, query, name).Scan(&result.ID, &result.Name, &result.Description)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.ErrorNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to select target: %w", err)
	}
	return result, nil
}

func (r *PostgresRepository) Create(ctx context.Context, name string) (*models.Target, error) {
	query := `
		INSERT INTO targets (target_name)
		VALUES ($1)
		RETURNING target_id
	`
	result := &models.Target{Name: name}
	if err := r.db.QueryRowContext(ctx, query, name).Scan(&result.ID); err != nil {
		return nil, fmt.Errorf("failed to insert target: %w", err)
	}
	return result, nil
}

func (r *PostgresRepository) List(ctx context.Context) ([]*models.Target, error) {
	query := `
		SELECT target_id, target_name, description
		FROM targets
		ORDER BY target_name ASC
	`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to select targets: %w", err)
	}
	defer rows.Close()

	var result []*models.Target
	for rows.Next() {
		var item models.Target
		if err := rows.Scan(&item.ID, &item.Name, &item.Description); err != nil {
			return nil, err
		}
		result = append(result, &item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}
