package permissions

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/bizdesk/internal/common"
	"github.com/dmitrijs2005/bizdesk/internal/dbx"
	"github.com/dmitrijs2005/bizdesk/internal/server/models"
)

const permissionColumns = `id, user_id, sector, created_at, updated_at`

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Has(ctx context.Context, userID int64, sector string) (bool, error) {
	query :=
		`SELECT EXISTS (
		   SELECT 1 FROM permissions
		    WHERE sector = $1 AND (user_id = $2 OR user_id IS NULL)
		 )`

	var ok bool
	if err := r.db.QueryRowContext(ctx, query, sector, userID).Scan(&ok); err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}
	return ok, nil
}

func (r *PostgresRepository) Create(ctx context.Context, userID *int64, sector string) (*models.Permission, error) {
	query :=
		`INSERT INTO permissions (user_id, sector) VALUES ($1, $2)
		 RETURNING ` + permissionColumns

	p, err := scanPermission(r.db.QueryRowContext(ctx, query, userID, sector))
	if err != nil {
		if dbx.IsUniqueViolation(err) {
			return nil, common.ErrAlreadyExists
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return p, nil
}

func (r *PostgresRepository) FindByID(ctx context.Context, id int64) (*models.Permission, error) {
	p, err := scanPermission(r.db.QueryRowContext(ctx, `SELECT `+permissionColumns+` FROM permissions WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return p, nil
}

func (r *PostgresRepository) Delete(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM permissions WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if n == 0 {
		return common.ErrorNotFound
	}
	return nil
}

func (r *PostgresRepository) List(ctx context.Context) ([]*models.Permission, error) {
	return r.list(ctx, `SELECT `+permissionColumns+` FROM permissions ORDER BY id`)
}

func (r *PostgresRepository) ListGlobal(ctx context.Context) ([]*models.Permission, error) {
	return r.list(ctx, `SELECT `+permissionColumns+` FROM permissions WHERE user_id IS NULL ORDER BY id`)
}

func (r *PostgresRepository) ListByUser(ctx context.Context, userID int64) ([]*models.Permission, error) {
	return r.list(ctx, `SELECT `+permissionColumns+` FROM permissions WHERE user_id = $1 ORDER BY id`, userID)
}

func (r *PostgresRepository) list(ctx context.Context, query string, args ...any) ([]*models.Permission, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	out := []*models.Permission{}
	for rows.Next() {
		p, err := scanPermission(rows)
		if err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return out, nil
}

func (r *PostgresRepository) RecordHistory(ctx context.Context, e *models.PermissionHistory) error {
	query :=
		`INSERT INTO permissions_history (permission_id, user_id, sector, changed_by, operation_type)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING history_id, changed_at`

	err := r.db.QueryRowContext(ctx, query, e.PermissionID, e.UserID, e.Sector, e.ChangedBy, string(e.Operation)).
		Scan(&e.HistoryID, &e.ChangedAt)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) ListHistory(ctx context.Context, permissionID int64) ([]*models.PermissionHistory, error) {
	query :=
		`SELECT history_id, permission_id, user_id, sector, changed_by, changed_at, operation_type
		   FROM permissions_history
		  WHERE permission_id = $1
		  ORDER BY changed_at DESC, history_id DESC`

	rows, err := r.db.QueryContext(ctx, query, permissionID)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	out := []*models.PermissionHistory{}
	for rows.Next() {
		var (
			e         models.PermissionHistory
			userID    sql.NullInt64
			changedBy sql.NullInt64
			op        string
		)
		if err := rows.Scan(&e.HistoryID, &e.PermissionID, &userID, &e.Sector, &changedBy, &e.ChangedAt, &op); err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		if userID.Valid {
			e.UserID = &userID.Int64
		}
		e.ChangedBy = changedBy.Int64
		e.Operation = models.Operation(op)
		out = append(out, &e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return out, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanPermission(s scanner) (*models.Permission, error) {
	var (
		p      models.Permission
		userID sql.NullInt64
	)
	if err := s.Scan(&p.ID, &userID, &p.Sector, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return nil, err
	}
	if userID.Valid {
		p.UserID = &userID.Int64
	}
	return &p, nil
}
