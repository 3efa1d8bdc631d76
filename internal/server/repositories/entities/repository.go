// Package entities provides the generic store shared by every business
// entity kind. The kind descriptor decides table, columns and ordering.
package entities

import (
	"context"

	"github.com/dmitrijs2005/bizdesk/internal/server/kinds"
	"github.com/dmitrijs2005/bizdesk/internal/server/models"
)

type Repository interface {
	Kind() *kinds.Kind
	Create(ctx context.Context, ownerID int64, values models.Values) (*models.Record, error)
	FindByID(ctx context.Context, id int64) (*models.Record, error)
	FindByOwner(ctx context.Context, ownerID int64) (*models.Record, error)
	Update(ctx context.Context, id int64, values models.Values) error
	Delete(ctx context.Context, id int64) error
	List(ctx context.Context, filter models.Values) ([]*models.Record, error)
	ListByOwner(ctx context.Context, ownerID int64) ([]*models.Record, error)
	Reorder(ctx context.Context, ids []int64) error
}
