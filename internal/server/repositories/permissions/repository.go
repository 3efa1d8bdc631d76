// Package permissions stores sector grants and their audit trail.
package permissions

import (
	"context"

	"github.com/dmitrijs2005/bizdesk/internal/server/models"
)

type Repository interface {
	// Has reports whether userID holds sector directly or through a global
	// grant.
	Has(ctx context.Context, userID int64, sector string) (bool, error)
	Create(ctx context.Context, userID *int64, sector string) (*models.Permission, error)
	FindByID(ctx context.Context, id int64) (*models.Permission, error)
	Delete(ctx context.Context, id int64) error
	List(ctx context.Context) ([]*models.Permission, error)
	ListGlobal(ctx context.Context) ([]*models.Permission, error)
	ListByUser(ctx context.Context, userID int64) ([]*models.Permission, error)
	RecordHistory(ctx context.Context, entry *models.PermissionHistory) error
	ListHistory(ctx context.Context, permissionID int64) ([]*models.PermissionHistory, error)
}
