package repomanager

import (
	"context"
	"database/sql"

	"github.com/mvasilkovs/astrobatch/internal/dbx"
	"github.com/mvasilkovs/astrobatch/internal/server/repositories/batches"
	"github.com/mvasilkovs/astrobatch/internal/server/repositories/images"
	"github.com/mvasilkovs/astrobatch/internal/server/repositories/pendinguploads"
	"github.com/mvasilkovs/astrobatch/internal/server/repositories/projects"
	"github.com/mvasilkovs/astrobatch/internal/server/repositories/targets"
)

// RepositoryManager vends repositories bound to a DBTX, so the same
// constructors serve both plain connections and open transactions.
type RepositoryManager interface {
	RunMigrations(context.Context, *sql.DB) error
	Targets(db dbx.DBTX) targets.Repository
	Projects(db dbx.DBTX) projects.Repository
	Batches(db dbx.DBTX) batches.Repository
	PendingUploads(db dbx.DBTX) pendinguploads.Repository
	Images(db dbx.DBTX) images.Repository
}
