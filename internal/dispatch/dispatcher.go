// Package dispatch launches the external archival task for a completed
// batch. The decision of when to launch belongs to the confirmation
// processor; this package only knows how to run one task with a given
// parameter set.
package dispatch

import (
	"context"

	"github.com/mvasilkovs/astrobatch/internal/server/models"
)

// Task carries everything the archival worker needs to process one batch.
type Task struct {
	BatchID        int64
	Files          []models.ManifestFile
	TotalSizeBytes int64
	CallbackURL    string
	WebhookSecret  string
}

// Dispatcher launches exactly one external task per call and does not wait
// for the task to finish. A launch error leaves the batch in 'zipping';
// surfacing that to operators is the caller's job.
type Dispatcher interface {
	Launch(ctx context.Context, task Task) error
}
