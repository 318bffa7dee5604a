// Package blobstore wraps the object storage service behind a narrow
// gateway interface: presigned URL issuance plus the copy/delete/stream
// operations the archival worker needs.
package blobstore

import (
	"context"
	"io"
	"time"
)

// Gateway is the object-storage surface consumed by the server and the
// archival worker. Implemented by S3Gateway; fakes implement it in tests.
type Gateway interface {
	// PresignPut issues a time-limited URL for uploading one object.
	PresignPut(ctx context.Context, bucket, key string, expiry time.Duration) (string, error)

	// PresignGet issues a time-limited download URL. A non-empty disposition
	// is forwarded as the response Content-Disposition.
	PresignGet(ctx context.Context, bucket, key string, expiry time.Duration, disposition string) (string, error)

	// Copy duplicates an object into dstBucket/dstKey with the given storage
	// class. Re-copying over an existing object is safe.
	Copy(ctx context.Context, srcBucket, srcKey, dstBucket, dstKey, storageClass string) error

	// Delete removes an object. Deleting a missing object is not an error.
	Delete(ctx context.Context, bucket, key string) error

	// Get opens the object for streaming reads.
	Get(ctx context.Context, bucket, key string) (io.ReadCloser, error)

	// Put streams body into the object, without buffering it whole.
	Put(ctx context.Context, bucket, key string, body io.Reader) error
}
