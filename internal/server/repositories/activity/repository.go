// Package activity stores the per-request activity log.
package activity

import (
	"context"

	"github.com/dmitrijs2005/bizdesk/internal/server/models"
)

type Repository interface {
	Create(ctx context.Context, entry *models.ActivityEntry) error
	// ListRecent returns the newest entries first.
	ListRecent(ctx context.Context, limit int) ([]*models.ActivityEntry, error)
}
