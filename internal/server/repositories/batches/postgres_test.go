package batches

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"

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

func TestCreate_Success(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(`INSERT INTO upload_batches .* VALUES .* RETURNING batch_id`).
		WithArgs(int64(5), int64(3), int64(8), 4).
		WillReturnRows(sqlmock.NewRows([]string{"batch_id"}).AddRow(int64(99)))

	id, err := repo.Create(context.Background(), &models.Batch{
		UserID: 5, TargetID: 3, ProjectID: 8, TotalFilesExpected: 4,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if id != 99 {
		t.Fatalf("want id 99, got %d", id)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestCreate_ActiveBatchUniqueViolation(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(`INSERT INTO upload_batches`).
		WithArgs(int64(5), int64(3), int64(8), 4).
		WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: "uq_user_target_active_batch"})

	_, err := repo.Create(context.Background(), &models.Batch{
		UserID: 5, TargetID: 3, ProjectID: 8, TotalFilesExpected: 4,
	})
	if !errors.Is(err, common.ErrActiveBatchExists) {
		t.Fatalf("want ErrActiveBatchExists, got %v", err)
	}
}

func TestGetByID(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	now := time.Now()
	rows := sqlmock.NewRows([]string{
		"batch_id", "user_id", "target_id", "project_id",
		"total_files_expected", "files_confirmed_count",
		"status", "status_message", "zipped_location", "created_at", "updated_at",
	}).AddRow(int64(99), int64(5), int64(3), int64(8), 4, 2, "initiated", nil, nil, now, now)

	mock.ExpectQuery(`SELECT .* FROM upload_batches WHERE batch_id = \$1`).
		WithArgs(int64(99)).
		WillReturnRows(rows)

	batch, err := repo.GetByID(context.Background(), 99)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if batch.Status != models.BatchStatusInitiated || batch.FilesConfirmedCount != 2 {
		t.Fatalf("unexpected batch: %+v", batch)
	}

	mock.ExpectQuery(`SELECT .* FROM upload_batches WHERE batch_id = \$1`).
		WithArgs(int64(1)).
		WillReturnError(sql.ErrNoRows)

	if _, err := repo.GetByID(context.Background(), 1); !errors.Is(err, common.ErrorNotFound) {
		t.Fatalf("want ErrorNotFound, got %v", err)
	}
}

func TestIncrementConfirmed_ReturnsCounters(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(`UPDATE upload_batches SET files_confirmed_count = files_confirmed_count \+ 1.* RETURNING files_confirmed_count, total_files_expected`).
		WithArgs(int64(99)).
		WillReturnRows(sqlmock.NewRows([]string{"files_confirmed_count", "total_files_expected"}).AddRow(3, 4))

	confirmed, expected, err := repo.IncrementConfirmed(context.Background(), 99)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if confirmed != 3 || expected != 4 {
		t.Fatalf("want 3/4, got %d/%d", confirmed, expected)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestMarkZipping_WinnerAndLoser(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectExec(`UPDATE upload_batches SET status = 'zipping'.* WHERE batch_id = \$1 AND status = 'initiated'`).
		WithArgs(int64(99)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	won, err := repo.MarkZipping(context.Background(), 99)
	if err != nil || !won {
		t.Fatalf("want winner, got won=%v err=%v", won, err)
	}

	mock.ExpectExec(`UPDATE upload_batches SET status = 'zipping'`).
		WithArgs(int64(99)).
		WillReturnResult(sqlmock.NewResult(0, 0))

	won, err = repo.MarkZipping(context.Background(), 99)
	if err != nil || won {
		t.Fatalf("second attempt must lose, got won=%v err=%v", won, err)
	}
}

func TestMarkCompletedAndFailed_GuardedByZipping(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectExec(`UPDATE upload_batches SET status = 'completed', zipped_location = \$2.* AND status = 'zipping'`).
		WithArgs(int64(99), "s3://astro-hot/zips/batch_99.zip").
		WillReturnResult(sqlmock.NewResult(0, 1))

	applied, err := repo.MarkCompleted(context.Background(), 99, "s3://astro-hot/zips/batch_99.zip")
	if err != nil || !applied {
		t.Fatalf("want applied, got %v %v", applied, err)
	}

	mock.ExpectExec(`UPDATE upload_batches SET status = 'failed', status_message = \$2.* AND status = 'zipping'`).
		WithArgs(int64(99), "boom").
		WillReturnResult(sqlmock.NewResult(0, 0))

	applied, err = repo.MarkFailed(context.Background(), 99, "boom")
	if err != nil || applied {
		t.Fatalf("terminal batch must reject the report, got %v %v", applied, err)
	}
}

func TestExecTransition_UnexpectedRows(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectExec(`UPDATE upload_batches SET status = 'zipping'`).
		WithArgs(int64(99)).
		WillReturnResult(sqlmock.NewResult(0, 2))

	if _, err := repo.MarkZipping(context.Background(), 99); err == nil {
		t.Fatalf("multiple affected rows must error")
	}
}
