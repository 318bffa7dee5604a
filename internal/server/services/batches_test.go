package services

import (
	"context"
	"errors"
	"testing"

	"github.com/mvasilkovs/astrobatch/internal/common"
	"github.com/mvasilkovs/astrobatch/internal/dbx"
	"github.com/mvasilkovs/astrobatch/internal/server/models"
	"github.com/mvasilkovs/astrobatch/internal/server/repositories/batches"
	"github.com/mvasilkovs/astrobatch/internal/server/repositories/images"
	"github.com/mvasilkovs/astrobatch/internal/server/repositories/repomanager"
)

type fakeBatchesRepoCallback struct {
	batches.Repository
	completedWon bool
	completedLoc string
	failedWon    bool
	failedMsg    string
}

func (f *fakeBatchesRepoCallback) MarkCompleted(ctx context.Context, batchID int64, zippedLocation string) (bool, error) {
	f.completedLoc = zippedLocation
	return f.completedWon, nil
}

func (f *fakeBatchesRepoCallback) MarkFailed(ctx context.Context, batchID int64, message string) (bool, error) {
	f.failedMsg = message
	return f.failedWon, nil
}

type fakeImagesRepoArchive struct {
	images.Repository
	archived  []int64
	archClass string
}

func (f *fakeImagesRepoArchive) MarkArchivedByBatch(ctx context.Context, batchID int64, bucket, storageClass string) error {
	f.archived = append(f.archived, batchID)
	f.archClass = storageClass
	return nil
}

type callbackRepoManager struct {
	repomanager.RepositoryManager
	b *fakeBatchesRepoCallback
	i *fakeImagesRepoArchive
}

func (m *callbackRepoManager) Batches(db dbx.DBTX) batches.Repository { return m.b }
func (m *callbackRepoManager) Images(db dbx.DBTX) images.Repository   { return m.i }

func TestCompleteBatch_Success(t *testing.T) {
	db, mock := newSQLMockDB(t)
	defer db.Close()
	mock.ExpectBegin()
	mock.ExpectCommit()

	b := &fakeBatchesRepoCallback{completedWon: true}
	i := &fakeImagesRepoArchive{}
	svc := NewBatchService(db, &callbackRepoManager{b: b, i: i}, testConfig(), testLogger())

	err := svc.CompleteBatch(context.Background(), CompleteBatchParams{
		BatchID:        99,
		Status:         models.BatchStatusCompleted,
		ZippedLocation: "s3://astro-hot/zips/batch_99.zip",
	})
	if err != nil {
		t.Fatalf("CompleteBatch error: %v", err)
	}
	if b.completedLoc != "s3://astro-hot/zips/batch_99.zip" {
		t.Fatalf("zipped location not recorded: %q", b.completedLoc)
	}
	if len(i.archived) != 1 || i.archived[0] != 99 {
		t.Fatalf("images not marked archived: %+v", i.archived)
	}
	if i.archClass != "GLACIER_IR" {
		t.Fatalf("unexpected storage class: %q", i.archClass)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("sql expectations: %v", err)
	}
}

func TestCompleteBatch_Failed(t *testing.T) {
	db, mock := newSQLMockDB(t)
	defer db.Close()
	mock.ExpectBegin()
	mock.ExpectCommit()

	b := &fakeBatchesRepoCallback{failedWon: true}
	i := &fakeImagesRepoArchive{}
	svc := NewBatchService(db, &callbackRepoManager{b: b, i: i}, testConfig(), testLogger())

	err := svc.CompleteBatch(context.Background(), CompleteBatchParams{
		BatchID:      99,
		Status:       models.BatchStatusFailed,
		ErrorMessage: "upload to archive bucket failed",
	})
	if err != nil {
		t.Fatalf("CompleteBatch error: %v", err)
	}
	if b.failedMsg != "upload to archive bucket failed" {
		t.Fatalf("error message not recorded: %q", b.failedMsg)
	}
	if len(i.archived) != 0 {
		t.Fatalf("failed batches must not mark images archived")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("sql expectations: %v", err)
	}
}

func TestCompleteBatch_RetriedCallbackIsNoOp(t *testing.T) {
	db, mock := newSQLMockDB(t)
	defer db.Close()
	mock.ExpectBegin()
	mock.ExpectCommit()

	b := &fakeBatchesRepoCallback{completedWon: false}
	i := &fakeImagesRepoArchive{}
	svc := NewBatchService(db, &callbackRepoManager{b: b, i: i}, testConfig(), testLogger())

	err := svc.CompleteBatch(context.Background(), CompleteBatchParams{
		BatchID:        99,
		Status:         models.BatchStatusCompleted,
		ZippedLocation: "s3://astro-hot/zips/batch_99.zip",
	})
	if err != nil {
		t.Fatalf("retried callback must succeed, got %v", err)
	}
	if len(i.archived) != 0 {
		t.Fatalf("ignored callback must not touch image records")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("sql expectations: %v", err)
	}
}

func TestCompleteBatch_Validation(t *testing.T) {
	db, _ := newSQLMockDB(t)
	defer db.Close()
	svc := NewBatchService(db, &callbackRepoManager{}, testConfig(), testLogger())

	err := svc.CompleteBatch(context.Background(), CompleteBatchParams{Status: models.BatchStatusCompleted})
	if !errors.Is(err, common.ErrMissingField) {
		t.Fatalf("want ErrMissingField, got %v", err)
	}

	err = svc.CompleteBatch(context.Background(), CompleteBatchParams{BatchID: 1, Status: models.BatchStatusZipping})
	if !errors.Is(err, common.ErrInvalidStatusTransition) {
		t.Fatalf("want ErrInvalidStatusTransition, got %v", err)
	}
}
