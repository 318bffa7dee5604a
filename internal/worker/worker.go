package worker

import (
	"archive/zip"
	"bytes"
	"compress/flate"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sethvargo/go-retry"
	"golang.org/x/sync/errgroup"

	"github.com/mvasilkovs/astrobatch/internal/blobstore"
	"github.com/mvasilkovs/astrobatch/internal/logging"
)

// migrateConcurrency bounds parallel copy-then-delete pairs so a large
// batch does not open hundreds of S3 connections at once.
const migrateConcurrency = 8

// Worker archives one batch and exits. It never touches the database; all
// state changes flow through the callback endpoint.
type Worker struct {
	config *Config
	blobs  blobstore.Gateway
	http   *http.Client
	logger logging.Logger
}

func New(cfg *Config, blobs blobstore.Gateway, httpClient *http.Client, logger logging.Logger) *Worker {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &Worker{config: cfg, blobs: blobs, http: httpClient, logger: logger.With("batch_id", cfg.BatchID)}
}

// Run processes the batch and reports the outcome. The returned error is the
// processing error, if any; reporting errors are logged but do not mask it.
func (w *Worker) Run(ctx context.Context) error {
	w.logger.Info(ctx, "archival started", "files", len(w.config.Files), "total_bytes", w.config.TotalSizeBytes)

	location, err := w.process(ctx)
	if err != nil {
		w.logger.Error(ctx, "archival failed", "error", err.Error())
		if repErr := w.report(ctx, "failed", "", err.Error()); repErr != nil {
			w.logger.Error(ctx, "failure report not delivered", "error", repErr.Error())
		}
		return err
	}

	if err := w.report(ctx, "completed", location, ""); err != nil {
		w.logger.Error(ctx, "completion report not delivered", "error", err.Error())
		return err
	}

	w.logger.Info(ctx, "archival completed", "zip_location", location)
	return nil
}

func (w *Worker) process(ctx context.Context) (string, error) {
	zipKey := fmt.Sprintf("zips/batch_%d.zip", w.config.BatchID)

	if err := w.uploadZip(ctx, zipKey); err != nil {
		return "", err
	}

	if err := w.migrateOriginals(ctx); err != nil {
		return "", err
	}

	return fmt.Sprintf("s3://%s/%s", w.config.SourceBucket, zipKey), nil
}

// uploadZip streams source objects through a zip writer directly into the
// archive object, so the container never needs disk space for the batch.
func (w *Worker) uploadZip(ctx context.Context, zipKey string) error {
	pr, pw := io.Pipe()

	go func() {
		pw.CloseWithError(w.writeZip(ctx, pw))
	}()

	if err := w.blobs.Put(ctx, w.config.SourceBucket, zipKey, pr); err != nil {
		pr.CloseWithError(err)
		return fmt.Errorf("upload archive: %w", err)
	}
	return nil
}

func (w *Worker) writeZip(ctx context.Context, out io.Writer) error {
	zw := zip.NewWriter(out)
	zw.RegisterCompressor(zip.Deflate, func(dst io.Writer) (io.WriteCloser, error) {
		return flate.NewWriter(dst, flate.BestCompression)
	})

	for _, file := range w.config.Files {
		src, err := w.blobs.Get(ctx, w.config.SourceBucket, file.StorageKey)
		if err != nil {
			return fmt.Errorf("read %s: %w", file.StorageKey, err)
		}

		entry, err := zw.Create(file.OriginalFilename)
		if err != nil {
			src.Close()
			return fmt.Errorf("create zip entry %s: %w", file.OriginalFilename, err)
		}
		if _, err := io.Copy(entry, src); err != nil {
			src.Close()
			return fmt.Errorf("compress %s: %w", file.StorageKey, err)
		}
		src.Close()
	}

	if err := zw.Close(); err != nil {
		return fmt.Errorf("finalize archive: %w", err)
	}
	return nil
}

// migrateOriginals copies each original into the cold bucket and deletes it
// from the hot bucket. Copy before delete; a failure between the two leaves
// the object in both buckets, never in neither.
func (w *Worker) migrateOriginals(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(migrateConcurrency)

	for _, file := range w.config.Files {
		g.Go(func() error {
			err := w.blobs.Copy(ctx, w.config.SourceBucket, file.StorageKey,
				w.config.ColdBucket, file.StorageKey, w.config.ColdStorageClass)
			if err != nil {
				return fmt.Errorf("copy %s to cold storage: %w", file.StorageKey, err)
			}
			if err := w.blobs.Delete(ctx, w.config.SourceBucket, file.StorageKey); err != nil {
				return fmt.Errorf("delete %s from hot storage: %w", file.StorageKey, err)
			}
			return nil
		})
	}

	return g.Wait()
}

type reportPayload struct {
	BatchID         int64  `json:"batch_id"`
	Status          string `json:"status"`
	ZipFileLocation string `json:"zip_file_location,omitempty"`
	ErrorMessage    string `json:"error_message,omitempty"`
}

// report posts the outcome to the callback endpoint, retrying with
// exponential backoff. The endpoint is idempotent, so redelivery after a
// lost response is safe.
func (w *Worker) report(ctx context.Context, status, zipLocation, errorMessage string) error {
	payload, err := json.Marshal(reportPayload{
		BatchID:         w.config.BatchID,
		Status:          status,
		ZipFileLocation: zipLocation,
		ErrorMessage:    errorMessage,
	})
	if err != nil {
		return fmt.Errorf("marshal report: %w", err)
	}

	backoff := retry.WithMaxRetries(5, retry.NewExponential(time.Second))
	return retry.Do(ctx, backoff, func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.config.CallbackURL, bytes.NewReader(payload))
		if err != nil {
			return err
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("X-Webhook-Secret", w.config.WebhookSecret)

		resp, err := w.http.Do(req)
		if err != nil {
			return retry.RetryableError(err)
		}
		defer resp.Body.Close()
		io.Copy(io.Discard, resp.Body)

		if resp.StatusCode >= 500 {
			return retry.RetryableError(fmt.Errorf("callback answered %d", resp.StatusCode))
		}
		if resp.StatusCode >= 300 {
			return fmt.Errorf("callback answered %d", resp.StatusCode)
		}
		return nil
	})
}
