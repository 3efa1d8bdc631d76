package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/bizdesk/internal/common"
	"github.com/dmitrijs2005/bizdesk/internal/dbx"
	"github.com/dmitrijs2005/bizdesk/internal/logging"
	"github.com/dmitrijs2005/bizdesk/internal/server/auth"
	"github.com/dmitrijs2005/bizdesk/internal/server/kinds"
	"github.com/dmitrijs2005/bizdesk/internal/server/models"
	"github.com/dmitrijs2005/bizdesk/internal/server/obs"
	"github.com/dmitrijs2005/bizdesk/internal/server/repositories/repomanager"
)

// errHistoryWrite marks failures of the audit row so they can be counted
// after the rollback.
var errHistoryWrite = errors.New("history write failed")

// EntityService runs the entity mutation protocol for every kind. Each
// create, update and delete commits together with its history row or not
// at all.
type EntityService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	gate        *Gate
	metrics     *obs.Metrics
	log         logging.Logger
}

func NewEntityService(db *sql.DB, m repomanager.RepositoryManager, gate *Gate, metrics *obs.Metrics, log logging.Logger) *EntityService {
	return &EntityService{
		db:          db,
		repomanager: m,
		gate:        gate,
		metrics:     metrics,
		log:         log.With("module", "entities"),
	}
}

// recordHistory appends the snapshot of rec for op, acted by actorID.
func recordHistory(ctx context.Context, m repomanager.RepositoryManager, tx dbx.DBTX, k *kinds.Kind,
	entityID int64, ownerID *int64, values models.Values, actorID int64, op models.Operation) error {
	if !k.HasHistory() {
		return nil
	}
	entry := &models.HistoryEntry{
		EntityID:  entityID,
		OwnerID:   ownerID,
		Values:    values,
		ChangedBy: actorID,
		Operation: op,
	}
	if err := m.History(k, tx).Record(ctx, entry); err != nil {
		return fmt.Errorf("%w: %w", errHistoryWrite, err)
	}
	return nil
}

// createTracked inserts values owned by ownerID and writes the CREATION
// row inside tx.
func createTracked(ctx context.Context, m repomanager.RepositoryManager, tx dbx.DBTX, k *kinds.Kind,
	ownerID, actorID int64, values models.Values) (*models.Record, error) {
	rec, err := m.Entities(k, tx).Create(ctx, ownerID, values)
	if err != nil {
		return nil, err
	}
	if err := recordHistory(ctx, m, tx, k, rec.ID, rec.OwnerID, rec.Values, actorID, models.OpCreation); err != nil {
		return nil, err
	}
	return rec, nil
}

// finish classifies the outcome of a mutation transaction.
func (s *EntityService) finish(ctx context.Context, k *kinds.Kind, op models.Operation, err error) error {
	if err == nil {
		s.metrics.EntityMutation(k.Name, string(op))
		return nil
	}
	if errors.Is(err, errHistoryWrite) {
		s.metrics.HistoryFailure(k.Name)
		s.log.Error(ctx, "mutation rolled back, history row not written", "kind", k.Name, "operation", op, "error", err)
		return fmt.Errorf("%w: %v", common.ErrPersistence, err)
	}
	if !isDomainError(err) {
		s.log.Error(ctx, "entity store failure", "kind", k.Name, "operation", op, "error", err)
	}
	return storeError(err)
}

// visible hides strictly owned rows of other users.
func (s *EntityService) visible(id auth.Identity, k *kinds.Kind, ownerID *int64) error {
	if k.Ownership != kinds.OwnershipStrict || s.gate.IsSuperuser(id) {
		return nil
	}
	if ownerID == nil || *ownerID != id.ID {
		return common.ErrorNotFound
	}
	return nil
}

func (s *EntityService) Create(ctx context.Context, id auth.Identity, k *kinds.Kind, input map[string]any) (*models.Record, error) {
	if err := s.gate.AuthorizeSector(ctx, id, k.Sectors.Create); err != nil {
		return nil, err
	}
	values, err := k.Validate(input)
	if err != nil {
		return nil, err
	}

	rec, err := dbx.WithTxValue(ctx, s.db, func(ctx context.Context, tx dbx.DBTX) (*models.Record, error) {
		return createTracked(ctx, s.repomanager, tx, k, id.ID, id.ID, values)
	})
	if err := s.finish(ctx, k, models.OpCreation, err); err != nil {
		return nil, err
	}

	s.log.Info(ctx, "entity created", "kind", k.Name, "id", rec.ID, "actor", id.ID)
	return rec, nil
}

func (s *EntityService) Get(ctx context.Context, id auth.Identity, k *kinds.Kind, entityID int64) (*models.Record, error) {
	if err := s.gate.AuthorizeSector(ctx, id, k.Sectors.Get); err != nil {
		return nil, err
	}
	rec, err := s.repomanager.Entities(k, s.db).FindByID(ctx, entityID)
	if err != nil {
		return nil, storeError(err)
	}
	if err := s.visible(id, k, rec.OwnerID); err != nil {
		return nil, err
	}
	return rec, nil
}

// History returns the audit trail of an entity, newest first. It also
// works for deleted entities.
func (s *EntityService) History(ctx context.Context, id auth.Identity, k *kinds.Kind, entityID int64) ([]*models.HistoryEntry, error) {
	if !k.HasHistory() {
		return nil, common.ErrorNotFound
	}
	if err := s.gate.AuthorizeSector(ctx, id, k.Sectors.History); err != nil {
		return nil, err
	}

	rows, err := s.repomanager.History(k, s.db).ListByEntityID(ctx, entityID)
	if err != nil {
		return nil, storeError(err)
	}
	if len(rows) > 0 {
		if err := s.visible(id, k, rows[0].OwnerID); err != nil {
			return nil, err
		}
	}
	return rows, nil
}

func (s *EntityService) List(ctx context.Context, id auth.Identity, k *kinds.Kind, query map[string]string) ([]*models.Record, error) {
	if err := s.gate.AuthorizeSector(ctx, id, k.Sectors.List); err != nil {
		return nil, err
	}

	repo := s.repomanager.Entities(k, s.db)
	if k.ListByOwner && !s.gate.IsSuperuser(id) {
		rows, err := repo.ListByOwner(ctx, id.ID)
		return rows, storeError(err)
	}

	filter, err := k.Filter(query)
	if err != nil {
		return nil, err
	}
	rows, err := repo.List(ctx, filter)
	return rows, storeError(err)
}

func (s *EntityService) Update(ctx context.Context, id auth.Identity, k *kinds.Kind, entityID int64, input map[string]any) (*models.Record, error) {
	if err := s.gate.AuthorizeSector(ctx, id, k.Sectors.Update); err != nil {
		return nil, err
	}
	return s.update(ctx, id, k, input, func(ctx context.Context, tx dbx.DBTX) (*models.Record, error) {
		return s.repomanager.Entities(k, tx).FindByID(ctx, entityID)
	})
}

func (s *EntityService) Delete(ctx context.Context, id auth.Identity, k *kinds.Kind, entityID int64) error {
	if err := s.gate.AuthorizeSector(ctx, id, k.Sectors.Delete); err != nil {
		return err
	}
	return s.delete(ctx, id, k, func(ctx context.Context, tx dbx.DBTX) (*models.Record, error) {
		return s.repomanager.Entities(k, tx).FindByID(ctx, entityID)
	})
}

// update validates input, then inside one transaction loads the prior row
// with load, overwrites it and appends the UPDATE snapshot.
func (s *EntityService) update(ctx context.Context, id auth.Identity, k *kinds.Kind, input map[string]any,
	load func(context.Context, dbx.DBTX) (*models.Record, error)) (*models.Record, error) {
	values, err := k.Validate(input)
	if err != nil {
		return nil, err
	}

	rec, err := dbx.WithTxValue(ctx, s.db, func(ctx context.Context, tx dbx.DBTX) (*models.Record, error) {
		prior, err := load(ctx, tx)
		if err != nil {
			return nil, err
		}
		if err := s.visible(id, k, prior.OwnerID); err != nil {
			return nil, err
		}

		repo := s.repomanager.Entities(k, tx)
		if err := repo.Update(ctx, prior.ID, values); err != nil {
			return nil, err
		}
		if err := recordHistory(ctx, s.repomanager, tx, k, prior.ID, prior.OwnerID, values, id.ID, models.OpUpdate); err != nil {
			return nil, err
		}
		return repo.FindByID(ctx, prior.ID)
	})
	if err := s.finish(ctx, k, models.OpUpdate, err); err != nil {
		return nil, err
	}

	s.log.Info(ctx, "entity updated", "kind", k.Name, "id", rec.ID, "actor", id.ID)
	return rec, nil
}

// delete snapshots the row before removing it so the DELETION entry keeps
// its final state.
func (s *EntityService) delete(ctx context.Context, id auth.Identity, k *kinds.Kind,
	load func(context.Context, dbx.DBTX) (*models.Record, error)) error {
	var deletedID int64
	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		prior, err := load(ctx, tx)
		if err != nil {
			return err
		}
		if err := s.visible(id, k, prior.OwnerID); err != nil {
			return err
		}
		if err := recordHistory(ctx, s.repomanager, tx, k, prior.ID, prior.OwnerID, prior.Values, id.ID, models.OpDeletion); err != nil {
			return err
		}
		deletedID = prior.ID
		return s.repomanager.Entities(k, tx).Delete(ctx, prior.ID)
	})
	if err := s.finish(ctx, k, models.OpDeletion, err); err != nil {
		return err
	}

	s.log.Info(ctx, "entity deleted", "kind", k.Name, "id", deletedID, "actor", id.ID)
	return nil
}

// Mine returns the caller's own row of a one-per-user kind. No sector is
// required.
func (s *EntityService) Mine(ctx context.Context, id auth.Identity, k *kinds.Kind) (*models.Record, error) {
	if !k.OnePerOwner {
		return nil, common.ErrorNotFound
	}
	rec, err := s.repomanager.Entities(k, s.db).FindByOwner(ctx, id.ID)
	return rec, storeError(err)
}

// CreateMine stores the caller's own row; a second row is rejected.
func (s *EntityService) CreateMine(ctx context.Context, id auth.Identity, k *kinds.Kind, input map[string]any) (*models.Record, error) {
	if !k.OnePerOwner {
		return nil, common.ErrorNotFound
	}
	return s.Create(ctx, id, k, input)
}

func (s *EntityService) UpdateMine(ctx context.Context, id auth.Identity, k *kinds.Kind, input map[string]any) (*models.Record, error) {
	if !k.OnePerOwner {
		return nil, common.ErrorNotFound
	}
	return s.update(ctx, id, k, input, func(ctx context.Context, tx dbx.DBTX) (*models.Record, error) {
		return s.repomanager.Entities(k, tx).FindByOwner(ctx, id.ID)
	})
}

func (s *EntityService) DeleteMine(ctx context.Context, id auth.Identity, k *kinds.Kind) error {
	if !k.OnePerOwner {
		return common.ErrorNotFound
	}
	return s.delete(ctx, id, k, func(ctx context.Context, tx dbx.DBTX) (*models.Record, error) {
		return s.repomanager.Entities(k, tx).FindByOwner(ctx, id.ID)
	})
}

// Reorder sets the natural order of an ordered kind to the order of ids.
func (s *EntityService) Reorder(ctx context.Context, id auth.Identity, k *kinds.Kind, ids []int64) error {
	if k.Sectors.Reorder == "" {
		return common.ErrorNotFound
	}
	if err := s.gate.AuthorizeSector(ctx, id, k.Sectors.Reorder); err != nil {
		return err
	}
	if len(ids) == 0 {
		return fmt.Errorf("%w: ids must not be empty", common.ErrValidation)
	}

	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		return s.repomanager.Entities(k, tx).Reorder(ctx, ids)
	})
	if err != nil {
		return storeError(err)
	}
	s.log.Info(ctx, "entities reordered", "kind", k.Name, "count", len(ids), "actor", id.ID)
	return nil
}
