package config

import (
	"flag"
	"os"
	"time"

	"github.com/mvasilkovs/astrobatch/internal/flagx"
)

// parseFlags populates selected server Config fields from command-line flags.
//
// Supported flags (short forms):
//
//	-a string   HTTP bind address (e.g., ":3001")
//	-d string   PostgreSQL DSN
//	-s string   JWT HMAC secret key
//	-w string   webhook shared secret
//	-l string   externally reachable app base URL
//	-t string   stage prefix for storage keys (dev/staging/prod)
//	-m int      max files per batch
//	-x int      upload URL expiry, minutes
//	-u string   S3 access key
//	-p string   S3 secret key
//	-b string   hot S3 bucket
//	-k string   cold S3 bucket
//	-g string   S3 region
//	-e string   S3 base endpoint (e.g., "http://127.0.0.1:9000/")
//
// ECS task identifiers are long-winded ARNs and are only configurable via
// the JSON config file.
//
// The function first filters os.Args to only the flags it recognizes using
// flagx.FilterArgs, avoiding collisions with other components.
func parseFlags(config *Config) {
	args := flagx.FilterArgs(os.Args[1:],
		[]string{"-a", "-d", "-s", "-w", "-l", "-t", "-m", "-x", "-u", "-p", "-b", "-k", "-g", "-e"})

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&config.EndpointAddr, "a", config.EndpointAddr, "address and port to run server")
	fs.StringVar(&config.DatabaseDSN, "d", config.DatabaseDSN, "database DSN")
	fs.StringVar(&config.SecretKey, "s", config.SecretKey, "secret key")
	fs.StringVar(&config.WebhookSecret, "w", config.WebhookSecret, "webhook shared secret")
	fs.StringVar(&config.AppBaseURL, "l", config.AppBaseURL, "app base URL")
	fs.StringVar(&config.Stage, "t", config.Stage, "stage prefix")

	fs.IntVar(&config.MaxBatchFiles, "m", config.MaxBatchFiles, "max files per batch")
	uploadExpiry := fs.Int("x", int(config.UploadURLExpiry.Minutes()), "upload URL expiry (in minutes)")

	fs.StringVar(&config.S3AccessKey, "u", config.S3AccessKey, "S3 access key")
	fs.StringVar(&config.S3SecretKey, "p", config.S3SecretKey, "S3 secret key")
	fs.StringVar(&config.S3Bucket, "b", config.S3Bucket, "hot S3 bucket")
	fs.StringVar(&config.S3ColdBucket, "k", config.S3ColdBucket, "cold S3 bucket")
	fs.StringVar(&config.S3Region, "g", config.S3Region, "S3 region")
	fs.StringVar(&config.S3BaseEndpoint, "e", config.S3BaseEndpoint, "S3 base endpoint")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}

	config.UploadURLExpiry = time.Duration(*uploadExpiry) * time.Minute
}
