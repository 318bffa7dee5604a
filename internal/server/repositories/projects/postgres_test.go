package projects

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/mvasilkovs/astrobatch/internal/common"
	"github.com/mvasilkovs/astrobatch/internal/server/models"
)

func newRepoWithMock(t *testing.T) (*PostgresRepository, sqlmock.Sqlmock, *sql.DB) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("sqlmock.New error: %v", err)
	}
	return NewPostgresRepository(db), mock, db
}

func TestFindByUserTarget(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	rows := sqlmock.NewRows([]string{
		"project_id", "user_id", "target_id", "project_name", "description",
		"has_darks", "has_flats", "has_biases", "has_dark_flats",
	}).AddRow(int64(8), int64(5), int64(3), "vera's M31 Project", nil, true, false, false, false)

	mock.ExpectQuery(`SELECT .* FROM projects WHERE user_id = \$1 AND target_id = \$2 LIMIT 1`).
		WithArgs(int64(5), int64(3)).
		WillReturnRows(rows)

	project, err := repo.FindByUserTarget(context.Background(), 5, 3)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if project.ID != 8 || !project.HasDarks || project.HasFlats {
		t.Fatalf("unexpected project: %+v", project)
	}

	mock.ExpectQuery(`SELECT .* FROM projects`).
		WithArgs(int64(5), int64(4)).
		WillReturnError(sql.ErrNoRows)

	if _, err := repo.FindByUserTarget(context.Background(), 5, 4); !errors.Is(err, common.ErrorNotFound) {
		t.Fatalf("want ErrorNotFound, got %v", err)
	}
}

func TestCreate(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(`INSERT INTO projects \(user_id, target_id, project_name\) VALUES \(\$1, \$2, \$3\) RETURNING project_id`).
		WithArgs(int64(5), int64(3), "vera's M31 Project").
		WillReturnRows(sqlmock.NewRows([]string{"project_id"}).AddRow(int64(8)))

	project, err := repo.Create(context.Background(), 5, 3, "vera's M31 Project")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if project.ID != 8 || project.Name != "vera's M31 Project" {
		t.Fatalf("unexpected project: %+v", project)
	}
}

func TestSetCalibrationFlag(t *testing.T) {
	tests := []struct {
		imageType models.ImageType
		column    string
	}{
		{models.ImageTypeDark, "has_darks"},
		{models.ImageTypeFlat, "has_flats"},
		{models.ImageTypeBias, "has_biases"},
		{models.ImageTypeDarkFlat, "has_dark_flats"},
	}
	for _, tt := range tests {
		t.Run(string(tt.imageType), func(t *testing.T) {
			repo, mock, db := newRepoWithMock(t)
			defer db.Close()

			mock.ExpectExec(`UPDATE projects SET ` + tt.column + ` = TRUE, updated_at = now\(\) WHERE project_id = \$1`).
				WithArgs(int64(8)).
				WillReturnResult(sqlmock.NewResult(0, 1))

			if err := repo.SetCalibrationFlag(context.Background(), 8, tt.imageType); err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if err := mock.ExpectationsWereMet(); err != nil {
				t.Fatalf("unmet expectations: %v", err)
			}
		})
	}
}

func TestSetCalibrationFlag_LightIsNoOp(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	if err := repo.SetCalibrationFlag(context.Background(), 8, models.ImageTypeLight); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("light frames must not touch the database: %v", err)
	}
}
