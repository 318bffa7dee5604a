package worker

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/mvasilkovs/astrobatch/internal/logging"
	"github.com/mvasilkovs/astrobatch/internal/server/models"
)

type fakeBlobStore struct {
	mu sync.Mutex

	objects map[string]string
	getErr  error

	putBucket string
	putKey    string
	putData   []byte
	putErr    error

	copies  [][2]string
	class   string
	copyErr error
	deletes []string
}

func (f *fakeBlobStore) PresignPut(ctx context.Context, bucket, key string, expiry time.Duration) (string, error) {
	return "", nil
}

func (f *fakeBlobStore) PresignGet(ctx context.Context, bucket, key string, expiry time.Duration, disposition string) (string, error) {
	return "", nil
}

func (f *fakeBlobStore) Get(ctx context.Context, bucket, key string) (io.ReadCloser, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	content, ok := f.objects[key]
	if !ok {
		return nil, io.ErrUnexpectedEOF
	}
	return io.NopCloser(strings.NewReader(content)), nil
}

func (f *fakeBlobStore) Put(ctx context.Context, bucket, key string, body io.Reader) error {
	data, err := io.ReadAll(body)
	if err != nil {
		return err
	}
	if f.putErr != nil {
		return f.putErr
	}
	f.putBucket = bucket
	f.putKey = key
	f.putData = data
	return nil
}

func (f *fakeBlobStore) Copy(ctx context.Context, srcBucket, srcKey, dstBucket, dstKey, storageClass string) error {
	if f.copyErr != nil {
		return f.copyErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.copies = append(f.copies, [2]string{srcKey, dstBucket})
	f.class = storageClass
	return nil
}

func (f *fakeBlobStore) Delete(ctx context.Context, bucket, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deletes = append(f.deletes, key)
	return nil
}

type callbackRecorder struct {
	mu       sync.Mutex
	payloads []reportPayload
	secrets  []string
}

func (r *callbackRecorder) handler() http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		var p reportPayload
		json.NewDecoder(req.Body).Decode(&p)
		r.mu.Lock()
		r.payloads = append(r.payloads, p)
		r.secrets = append(r.secrets, req.Header.Get("X-Webhook-Secret"))
		r.mu.Unlock()
		w.WriteHeader(http.StatusOK)
	}
}

func testWorkerConfig(callbackURL string) *Config {
	return &Config{
		BatchID: 99,
		Files: []models.ManifestFile{
			{StorageKey: "dev/uploads/5/8/99/u1-m31_001.fits", OriginalFilename: "m31_001.fits"},
			{StorageKey: "dev/uploads/5/8/99/u2-m31_002.fits", OriginalFilename: "m31_002.fits"},
		},
		TotalSizeBytes:   4096,
		CallbackURL:      callbackURL,
		WebhookSecret:    "hook-secret",
		SourceBucket:     "astro-hot",
		ColdBucket:       "astro-cold",
		ColdStorageClass: "GLACIER_IR",
	}
}

func newWorkerLogger() logging.Logger {
	return logging.NewSlogLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestRun_Success(t *testing.T) {
	rec := &callbackRecorder{}
	srv := httptest.NewServer(rec.handler())
	defer srv.Close()

	blobs := &fakeBlobStore{objects: map[string]string{
		"dev/uploads/5/8/99/u1-m31_001.fits": "frame one",
		"dev/uploads/5/8/99/u2-m31_002.fits": "frame two",
	}}

	w := New(testWorkerConfig(srv.URL), blobs, srv.Client(), newWorkerLogger())
	if err := w.Run(context.Background()); err != nil {
		t.Fatalf("Run error: %v", err)
	}

	// archive landed in the hot bucket under the batch key
	if blobs.putBucket != "astro-hot" || blobs.putKey != "zips/batch_99.zip" {
		t.Fatalf("unexpected archive destination: %s/%s", blobs.putBucket, blobs.putKey)
	}

	zr, err := zip.NewReader(bytes.NewReader(blobs.putData), int64(len(blobs.putData)))
	if err != nil {
		t.Fatalf("uploaded data is not a zip: %v", err)
	}
	if len(zr.File) != 2 {
		t.Fatalf("want 2 zip entries, got %d", len(zr.File))
	}
	entry, err := zr.Open("m31_001.fits")
	if err != nil {
		t.Fatalf("entry missing: %v", err)
	}
	content, _ := io.ReadAll(entry)
	entry.Close()
	if string(content) != "frame one" {
		t.Fatalf("unexpected entry content: %q", content)
	}

	// originals copied to cold then deleted from hot
	if len(blobs.copies) != 2 || len(blobs.deletes) != 2 {
		t.Fatalf("migration incomplete: copies=%d deletes=%d", len(blobs.copies), len(blobs.deletes))
	}
	for _, c := range blobs.copies {
		if c[1] != "astro-cold" {
			t.Fatalf("copied to wrong bucket: %v", c)
		}
	}
	if blobs.class != "GLACIER_IR" {
		t.Fatalf("unexpected storage class: %q", blobs.class)
	}

	// completion reported exactly once with the secret
	if len(rec.payloads) != 1 {
		t.Fatalf("want 1 callback, got %d", len(rec.payloads))
	}
	p := rec.payloads[0]
	if p.BatchID != 99 || p.Status != "completed" ||
		p.ZipFileLocation != "s3://astro-hot/zips/batch_99.zip" {
		t.Fatalf("unexpected payload: %+v", p)
	}
	if rec.secrets[0] != "hook-secret" {
		t.Fatalf("webhook secret not sent")
	}
}

func TestRun_SourceReadFailureReportsFailed(t *testing.T) {
	rec := &callbackRecorder{}
	srv := httptest.NewServer(rec.handler())
	defer srv.Close()

	blobs := &fakeBlobStore{objects: map[string]string{}} // every Get misses

	w := New(testWorkerConfig(srv.URL), blobs, srv.Client(), newWorkerLogger())
	if err := w.Run(context.Background()); err == nil {
		t.Fatalf("Run must fail when source objects are unreadable")
	}

	if len(blobs.deletes) != 0 {
		t.Fatalf("no originals may be deleted on failure")
	}
	if len(rec.payloads) != 1 || rec.payloads[0].Status != "failed" {
		t.Fatalf("failure not reported: %+v", rec.payloads)
	}
	if rec.payloads[0].ErrorMessage == "" {
		t.Fatalf("failure report must carry the error message")
	}
}

func TestRun_MigrationFailureReportsFailed(t *testing.T) {
	rec := &callbackRecorder{}
	srv := httptest.NewServer(rec.handler())
	defer srv.Close()

	blobs := &fakeBlobStore{
		objects: map[string]string{
			"dev/uploads/5/8/99/u1-m31_001.fits": "frame one",
			"dev/uploads/5/8/99/u2-m31_002.fits": "frame two",
		},
		copyErr: io.ErrClosedPipe,
	}

	w := New(testWorkerConfig(srv.URL), blobs, srv.Client(), newWorkerLogger())
	if err := w.Run(context.Background()); err == nil {
		t.Fatalf("Run must fail when migration fails")
	}
	if len(rec.payloads) != 1 || rec.payloads[0].Status != "failed" {
		t.Fatalf("failure not reported: %+v", rec.payloads)
	}
}

func TestReport_RetriesOn5xx(t *testing.T) {
	var calls int
	var mu sync.Mutex
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		mu.Lock()
		calls++
		n := calls
		mu.Unlock()
		if n < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	cfg := testWorkerConfig(srv.URL)
	w := New(cfg, &fakeBlobStore{}, srv.Client(), newWorkerLogger())

	if err := w.report(context.Background(), "completed", "s3://astro-hot/zips/batch_99.zip", ""); err != nil {
		t.Fatalf("report should succeed after retries: %v", err)
	}
	if calls != 3 {
		t.Fatalf("want 3 attempts, got %d", calls)
	}
}

func TestReport_NoRetryOn4xx(t *testing.T) {
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		calls++
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	w := New(testWorkerConfig(srv.URL), &fakeBlobStore{}, srv.Client(), newWorkerLogger())

	if err := w.report(context.Background(), "completed", "loc", ""); err == nil {
		t.Fatalf("4xx must be an error")
	}
	if calls != 1 {
		t.Fatalf("4xx must not be retried, got %d attempts", calls)
	}
}
