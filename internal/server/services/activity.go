package services

import (
	"context"
	"database/sql"

	"github.com/dmitrijs2005/bizdesk/internal/logging"
	"github.com/dmitrijs2005/bizdesk/internal/server/auth"
	"github.com/dmitrijs2005/bizdesk/internal/server/models"
	"github.com/dmitrijs2005/bizdesk/internal/server/repositories/repomanager"
)

const (
	SectorListActivity = "listActivity"

	defaultActivityLimit = 100
	maxActivityLimit     = 1000
	maxActivityMessage   = 255
)

type ActivityService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	gate        *Gate
	log         logging.Logger
}

func NewActivityService(db *sql.DB, m repomanager.RepositoryManager, gate *Gate, log logging.Logger) *ActivityService {
	return &ActivityService{db: db, repomanager: m, gate: gate, log: log.With("module", "activity")}
}

// Record stores one request entry. Failures are logged and never reach the
// request.
func (s *ActivityService) Record(ctx context.Context, entry *models.ActivityEntry) {
	if len(entry.Message) > maxActivityMessage {
		entry.Message = entry.Message[:maxActivityMessage]
	}
	if err := s.repomanager.Activity(s.db).Create(ctx, entry); err != nil {
		s.log.Error(ctx, "activity log write failed", "route", entry.Route, "error", err)
	}
}

func (s *ActivityService) Recent(ctx context.Context, id auth.Identity, limit int) ([]*models.ActivityEntry, error) {
	if err := s.gate.AuthorizeSector(ctx, id, SectorListActivity); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = defaultActivityLimit
	}
	if limit > maxActivityLimit {
		limit = maxActivityLimit
	}
	out, err := s.repomanager.Activity(s.db).ListRecent(ctx, limit)
	return out, storeError(err)
}
