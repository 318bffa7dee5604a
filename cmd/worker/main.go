package main

import (
	"context"
	"log"
	"log/slog"
	"os"

	"github.com/mvasilkovs/astrobatch/internal/blobstore"
	"github.com/mvasilkovs/astrobatch/internal/logging"
	"github.com/mvasilkovs/astrobatch/internal/worker"
)

func main() {

	ctx := context.Background()

	cfg, err := worker.LoadConfig()
	if err != nil {
		log.Printf("%v", err)
		os.Exit(1)
	}

	logger := logging.NewSlogLogger(slog.New(slog.NewJSONHandler(os.Stdout, nil)))

	blobs, err := blobstore.NewS3Gateway(ctx, blobstore.Options{
		Region:       cfg.S3Region,
		AccessKey:    cfg.S3AccessKey,
		SecretKey:    cfg.S3SecretKey,
		BaseEndpoint: cfg.S3BaseEndpoint,
	})
	if err != nil {
		log.Printf("%v", err)
		os.Exit(1)
	}

	w := worker.New(cfg, blobs, nil, logger)
	if err := w.Run(ctx); err != nil {
		os.Exit(1)
	}

}
