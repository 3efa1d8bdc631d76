package entities

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/dmitrijs2005/bizdesk/internal/common"
	"github.com/dmitrijs2005/bizdesk/internal/dbx"
	"github.com/dmitrijs2005/bizdesk/internal/server/kinds"
	"github.com/dmitrijs2005/bizdesk/internal/server/models"
)

type PostgresRepository struct {
	db   dbx.DBTX
	kind *kinds.Kind
}

func NewPostgresRepository(kind *kinds.Kind, db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db, kind: kind}
}

func (r *PostgresRepository) Kind() *kinds.Kind {
	return r.kind
}

// selectColumns is "id[, user_id], <fields>, created_at, updated_at".
func (r *PostgresRepository) selectColumns() string {
	cols := []string{"id"}
	if r.kind.HasOwner() {
		cols = append(cols, "user_id")
	}
	cols = append(cols, r.kind.Columns()...)
	cols = append(cols, "created_at", "updated_at")
	return strings.Join(cols, ", ")
}

func (r *PostgresRepository) Create(ctx context.Context, ownerID int64, values models.Values) (*models.Record, error) {
	cols := r.kind.Columns()
	args := r.kind.Args(values)
	if r.kind.HasOwner() {
		cols = append([]string{"user_id"}, cols...)
		args = append([]any{ownerID}, args...)
	}

	query := fmt.Sprintf(`INSERT INTO %s (%s) VALUES (%s) RETURNING id, created_at, updated_at`,
		r.kind.Table, strings.Join(cols, ", "), placeholders(1, len(cols)))

	rec := &models.Record{Values: values.Clone()}
	if r.kind.HasOwner() {
		rec.OwnerID = &ownerID
	}

	err := r.db.QueryRowContext(ctx, query, args...).Scan(&rec.ID, &rec.CreatedAt, &rec.UpdatedAt)
	if err != nil {
		if dbx.IsUniqueViolation(err) {
			return nil, common.ErrAlreadyExists
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	return rec, nil
}

func (r *PostgresRepository) FindByID(ctx context.Context, id int64) (*models.Record, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE id = $1`, r.selectColumns(), r.kind.Table)
	return r.queryOne(ctx, query, id)
}

func (r *PostgresRepository) FindByOwner(ctx context.Context, ownerID int64) (*models.Record, error) {
	if !r.kind.HasOwner() {
		return nil, common.ErrorNotFound
	}
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE user_id = $1 ORDER BY id LIMIT 1`, r.selectColumns(), r.kind.Table)
	return r.queryOne(ctx, query, ownerID)
}

func (r *PostgresRepository) queryOne(ctx context.Context, query string, args ...any) (*models.Record, error) {
	rec, err := r.scan(r.db.QueryRowContext(ctx, query, args...))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return rec, nil
}

func (r *PostgresRepository) Update(ctx context.Context, id int64, values models.Values) error {
	cols := r.kind.Columns()
	set := make([]string, 0, len(cols)+1)
	for i, c := range cols {
		set = append(set, fmt.Sprintf("%s = $%d", c, i+1))
	}
	set = append(set, "updated_at = now()")

	query := fmt.Sprintf(`UPDATE %s SET %s WHERE id = $%d`, r.kind.Table, strings.Join(set, ", "), len(cols)+1)
	args := append(r.kind.Args(values), id)

	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		if dbx.IsUniqueViolation(err) {
			return common.ErrAlreadyExists
		}
		return fmt.Errorf("db error: %w", err)
	}
	return expectAffected(res)
}

func (r *PostgresRepository) Delete(ctx context.Context, id int64) error {
	query := fmt.Sprintf(`DELETE FROM %s WHERE id = $1`, r.kind.Table)
	res, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return expectAffected(res)
}

// List returns rows matching every filter column, in the kind's natural
// order. Filter keys must be declared filter columns.
func (r *PostgresRepository) List(ctx context.Context, filter models.Values) ([]*models.Record, error) {
	keys := make([]string, 0, len(filter))
	for k := range filter {
		if !r.allowedFilter(k) {
			return nil, fmt.Errorf("%w: unknown filter %s", common.ErrValidation, k)
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	where := make([]string, len(keys))
	args := make([]any, len(keys))
	for i, k := range keys {
		where[i] = fmt.Sprintf("%s = $%d", k, i+1)
		args[i] = filter[k]
	}

	query := fmt.Sprintf(`SELECT %s FROM %s`, r.selectColumns(), r.kind.Table)
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += r.orderClause()

	return r.queryMany(ctx, query, args...)
}

func (r *PostgresRepository) ListByOwner(ctx context.Context, ownerID int64) ([]*models.Record, error) {
	if !r.kind.HasOwner() {
		return r.List(ctx, nil)
	}
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE user_id = $1%s`, r.selectColumns(), r.kind.Table, r.orderClause())
	return r.queryMany(ctx, query, ownerID)
}

// Reorder sets the order column of each id to its position in ids.
func (r *PostgresRepository) Reorder(ctx context.Context, ids []int64) error {
	if r.kind.OrderBy == "" {
		return fmt.Errorf("%w: %s cannot be reordered", common.ErrValidation, r.kind.Name)
	}

	query := fmt.Sprintf(`UPDATE %s SET %s = $1, updated_at = now() WHERE id = $2`, r.kind.Table, r.kind.OrderBy)
	for i, id := range ids {
		res, err := r.db.ExecContext(ctx, query, int64(i), id)
		if err != nil {
			return fmt.Errorf("db error: %w", err)
		}
		if err := expectAffected(res); err != nil {
			return fmt.Errorf("id %d: %w", id, err)
		}
	}
	return nil
}

func (r *PostgresRepository) orderClause() string {
	if order := r.kind.Order(); order != "id" {
		return fmt.Sprintf(" ORDER BY %s, id", order)
	}
	return " ORDER BY id"
}

func (r *PostgresRepository) allowedFilter(col string) bool {
	for _, f := range r.kind.Filters {
		if f == col {
			return true
		}
	}
	return false
}

func (r *PostgresRepository) queryMany(ctx context.Context, query string, args ...any) ([]*models.Record, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	out := []*models.Record{}
	for rows.Next() {
		rec, err := r.scan(rows)
		if err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return out, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func (r *PostgresRepository) scan(s scanner) (*models.Record, error) {
	rec := &models.Record{}
	var owner sql.NullInt64

	targets := r.kind.ScanTargets()
	dest := []any{&rec.ID}
	if r.kind.HasOwner() {
		dest = append(dest, &owner)
	}
	dest = append(dest, targets...)
	dest = append(dest, &rec.CreatedAt, &rec.UpdatedAt)

	if err := s.Scan(dest...); err != nil {
		return nil, err
	}

	if owner.Valid {
		rec.OwnerID = &owner.Int64
	}
	rec.Values = r.kind.ValuesFrom(targets)
	return rec, nil
}

func expectAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if n == 0 {
		return common.ErrorNotFound
	}
	return nil
}

func placeholders(from, n int) string {
	ph := make([]string, n)
	for i := range ph {
		ph[i] = fmt.Sprintf("$%d", from+i)
	}
	return strings.Join(ph, ", ")
}
