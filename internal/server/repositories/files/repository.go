package files

import (
	"context"

	"github.com/dmitrijs2005/bizdesk/internal/server/models"
)

type Repository interface {
	Create(ctx context.Context, file *models.File) error
	// GetByID loads metadata and, for the db backend, the content.
	GetByID(ctx context.Context, id int64) (*models.File, error)
}
