// Package worker implements the one-shot archival task: zip every file of a
// completed batch into the hot bucket, migrate the originals to cold
// storage, and report the outcome back to the API.
package worker

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"

	"github.com/mvasilkovs/astrobatch/internal/server/models"
)

// Config is populated entirely from environment variables: the per-batch
// values come from the task launch overrides, the bucket names from the task
// definition.
type Config struct {
	BatchID        int64
	Files          []models.ManifestFile
	TotalSizeBytes int64
	CallbackURL    string
	WebhookSecret  string

	SourceBucket     string
	ColdBucket       string
	ColdStorageClass string

	S3Region       string
	S3AccessKey    string
	S3SecretKey    string
	S3BaseEndpoint string
}

// LoadConfig reads and validates the environment. Missing required values
// fail fast; with no callback address there is nobody to report failure to.
func LoadConfig() (*Config, error) {
	cfg := &Config{
		CallbackURL:      os.Getenv("CALLBACK_URL"),
		WebhookSecret:    os.Getenv("WEBHOOK_SECRET"),
		SourceBucket:     os.Getenv("S3_BUCKET_NAME"),
		ColdBucket:       os.Getenv("GLACIER_BUCKET_NAME"),
		ColdStorageClass: os.Getenv("COLD_STORAGE_CLASS"),
		S3Region:         os.Getenv("AWS_REGION"),
		S3AccessKey:      os.Getenv("AWS_ACCESS_KEY_ID"),
		S3SecretKey:      os.Getenv("AWS_SECRET_ACCESS_KEY"),
		S3BaseEndpoint:   os.Getenv("S3_BASE_ENDPOINT"),
	}
	if cfg.ColdStorageClass == "" {
		cfg.ColdStorageClass = "GLACIER_IR"
	}

	rawBatchID := os.Getenv("BATCH_ID")
	if rawBatchID == "" {
		return nil, fmt.Errorf("BATCH_ID is not set")
	}
	batchID, err := strconv.ParseInt(rawBatchID, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("BATCH_ID %q: %w", rawBatchID, err)
	}
	cfg.BatchID = batchID

	rawFiles := os.Getenv("FILE_LIST")
	if rawFiles == "" {
		return nil, fmt.Errorf("FILE_LIST is not set")
	}
	if err := json.Unmarshal([]byte(rawFiles), &cfg.Files); err != nil {
		return nil, fmt.Errorf("FILE_LIST: %w", err)
	}
	if len(cfg.Files) == 0 {
		return nil, fmt.Errorf("FILE_LIST is empty")
	}

	if raw := os.Getenv("TOTAL_SIZE_BYTES"); raw != "" {
		total, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("TOTAL_SIZE_BYTES %q: %w", raw, err)
		}
		cfg.TotalSizeBytes = total
	}

	if cfg.CallbackURL == "" {
		return nil, fmt.Errorf("CALLBACK_URL is not set")
	}
	if cfg.SourceBucket == "" || cfg.ColdBucket == "" {
		return nil, fmt.Errorf("S3_BUCKET_NAME and GLACIER_BUCKET_NAME must be set")
	}

	return cfg, nil
}
