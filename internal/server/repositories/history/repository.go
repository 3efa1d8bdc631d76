// Package history appends and reads the audit trail of entity kinds. Rows
// are never updated or deleted.
package history

import (
	"context"

	"github.com/dmitrijs2005/bizdesk/internal/server/kinds"
	"github.com/dmitrijs2005/bizdesk/internal/server/models"
)

type Repository interface {
	Kind() *kinds.Kind
	Record(ctx context.Context, entry *models.HistoryEntry) error
	ListByEntityID(ctx context.Context, entityID int64) ([]*models.HistoryEntry, error)
}
