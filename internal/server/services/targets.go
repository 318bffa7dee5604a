package services

import (
	"context"
	"database/sql"

	"github.com/mvasilkovs/astrobatch/internal/server/models"
	"github.com/mvasilkovs/astrobatch/internal/server/repositories/repomanager"
)

// TargetService serves the astronomical target catalog.
type TargetService struct {
	db    *sql.DB
	repos repomanager.RepositoryManager
}

func NewTargetService(db *sql.DB, repos repomanager.RepositoryManager) *TargetService {
	return &TargetService{db: db, repos: repos}
}

func (s *TargetService) List(ctx context.Context) ([]*models.Target, error) {
	return s.repos.Targets(s.db).List(ctx)
}
