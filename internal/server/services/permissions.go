package services

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/dmitrijs2005/bizdesk/internal/common"
	"github.com/dmitrijs2005/bizdesk/internal/dbx"
	"github.com/dmitrijs2005/bizdesk/internal/logging"
	"github.com/dmitrijs2005/bizdesk/internal/server/auth"
	"github.com/dmitrijs2005/bizdesk/internal/server/models"
	"github.com/dmitrijs2005/bizdesk/internal/server/repositories/repomanager"
)

// Permission administration sectors.
const (
	SectorListPermissions       = "listPermissions"
	SectorListGlobalPermissions = "listGlobalPermissions"
	SectorListUserPermissions   = "listPermissionsByUser"
	SectorAddPermission         = "addPermission"
	SectorDeletePermission      = "deletePermission"
)

// PermissionService grants and revokes sectors. Both are recorded in the
// permission history and invalidate cached gate decisions.
type PermissionService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	gate        *Gate
	log         logging.Logger
}

func NewPermissionService(db *sql.DB, m repomanager.RepositoryManager, gate *Gate, log logging.Logger) *PermissionService {
	return &PermissionService{db: db, repomanager: m, gate: gate, log: log.With("module", "permissions")}
}

func (s *PermissionService) List(ctx context.Context, id auth.Identity) ([]*models.Permission, error) {
	if err := s.gate.AuthorizeSector(ctx, id, SectorListPermissions); err != nil {
		return nil, err
	}
	out, err := s.repomanager.Permissions(s.db).List(ctx)
	return out, storeError(err)
}

func (s *PermissionService) ListGlobal(ctx context.Context, id auth.Identity) ([]*models.Permission, error) {
	if err := s.gate.AuthorizeSector(ctx, id, SectorListGlobalPermissions); err != nil {
		return nil, err
	}
	out, err := s.repomanager.Permissions(s.db).ListGlobal(ctx)
	return out, storeError(err)
}

func (s *PermissionService) ListByUser(ctx context.Context, id auth.Identity, userID int64) ([]*models.Permission, error) {
	if err := s.gate.AuthorizeSector(ctx, id, SectorListUserPermissions); err != nil {
		return nil, err
	}
	out, err := s.repomanager.Permissions(s.db).ListByUser(ctx, userID)
	return out, storeError(err)
}

func (s *PermissionService) History(ctx context.Context, id auth.Identity, permissionID int64) ([]*models.PermissionHistory, error) {
	if err := s.gate.AuthorizeSector(ctx, id, SectorListPermissions); err != nil {
		return nil, err
	}
	out, err := s.repomanager.Permissions(s.db).ListHistory(ctx, permissionID)
	return out, storeError(err)
}

// Grant gives sector to userID, or to everybody when userID is nil.
func (s *PermissionService) Grant(ctx context.Context, id auth.Identity, userID *int64, sector string) (*models.Permission, error) {
	if err := s.gate.AuthorizeSector(ctx, id, SectorAddPermission); err != nil {
		return nil, err
	}
	sector = strings.TrimSpace(sector)
	if sector == "" {
		return nil, fmt.Errorf("%w: missing required fields: sector", common.ErrValidation)
	}

	p, err := dbx.WithTxValue(ctx, s.db, func(ctx context.Context, tx dbx.DBTX) (*models.Permission, error) {
		return grant(ctx, s.repomanager, tx, userID, sector, id.ID)
	})
	if err != nil {
		return nil, storeError(err)
	}

	s.gate.InvalidatePermissions(ctx)
	s.log.Info(ctx, "permission granted", "permission_id", p.ID, "sector", sector, "actor", id.ID)
	return p, nil
}

// grant inserts a permission with its CREATION history row inside tx.
func grant(ctx context.Context, m repomanager.RepositoryManager, tx dbx.DBTX, userID *int64, sector string, actorID int64) (*models.Permission, error) {
	repo := m.Permissions(tx)
	p, err := repo.Create(ctx, userID, sector)
	if err != nil {
		return nil, err
	}
	err = repo.RecordHistory(ctx, &models.PermissionHistory{
		PermissionID: p.ID,
		UserID:       p.UserID,
		Sector:       p.Sector,
		ChangedBy:    actorID,
		Operation:    models.OpCreation,
	})
	if err != nil {
		return nil, err
	}
	return p, nil
}

func (s *PermissionService) Revoke(ctx context.Context, id auth.Identity, permissionID int64) error {
	if err := s.gate.AuthorizeSector(ctx, id, SectorDeletePermission); err != nil {
		return err
	}

	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		repo := s.repomanager.Permissions(tx)
		prior, err := repo.FindByID(ctx, permissionID)
		if err != nil {
			return err
		}
		err = repo.RecordHistory(ctx, &models.PermissionHistory{
			PermissionID: prior.ID,
			UserID:       prior.UserID,
			Sector:       prior.Sector,
			ChangedBy:    id.ID,
			Operation:    models.OpDeletion,
		})
		if err != nil {
			return err
		}
		return repo.Delete(ctx, prior.ID)
	})
	if err != nil {
		return storeError(err)
	}

	s.gate.InvalidatePermissions(ctx)
	s.log.Info(ctx, "permission revoked", "permission_id", permissionID, "actor", id.ID)
	return nil
}

// Seed grants every (user, sector) pair not granted yet and reports how
// many were added. It runs with administrative rights and no gate.
func (s *PermissionService) Seed(ctx context.Context, grants []Grant, actorID int64) (int, error) {
	added := 0
	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		existing, err := s.repomanager.Permissions(tx).List(ctx)
		if err != nil {
			return err
		}
		seen := make(map[string]bool, len(existing))
		for _, p := range existing {
			seen[grantKey(p.UserID, p.Sector)] = true
		}

		for _, g := range grants {
			key := grantKey(g.UserID, g.Sector)
			if seen[key] {
				continue
			}
			if _, err := grant(ctx, s.repomanager, tx, g.UserID, g.Sector, actorID); err != nil {
				return err
			}
			seen[key] = true
			added++
		}
		return nil
	})
	if err != nil {
		return 0, storeError(err)
	}
	if added > 0 {
		s.gate.InvalidatePermissions(ctx)
	}
	return added, nil
}

// Grant is one entry of a permission seed file.
type Grant struct {
	UserID *int64
	Sector string
}

func grantKey(userID *int64, sector string) string {
	if userID == nil {
		return "*:" + sector
	}
	return fmt.Sprintf("%d:%s", *userID, sector)
}
