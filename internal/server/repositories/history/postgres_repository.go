package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/dmitrijs2005/bizdesk/internal/dbx"
	"github.com/dmitrijs2005/bizdesk/internal/server/kinds"
	"github.com/dmitrijs2005/bizdesk/internal/server/models"
)

var errNoHistory = errors.New("kind has no history table")

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

// Record appends entry and fills its HistoryID and ChangedAt.
func (r *PostgresRepository) Record(ctx context.Context, entry *models.HistoryEntry) error {
	if !r.kind.HasHistory() {
		return errNoHistory
	}

	cols := append([]string{r.kind.HistoryFK, "user_id"}, r.kind.Columns()...)
	cols = append(cols, "changed_by", "operation_type")

	args := append([]any{entry.EntityID, entry.OwnerID}, r.kind.Args(entry.Values)...)
	args = append(args, entry.ChangedBy, string(entry.Operation))

	ph := make([]string, len(cols))
	for i := range ph {
		ph[i] = fmt.Sprintf("$%d", i+1)
	}

	query := fmt.Sprintf(`INSERT INTO %s (%s) VALUES (%s) RETURNING history_id, changed_at`,
		r.kind.HistoryTable, strings.Join(cols, ", "), strings.Join(ph, ", "))

	if err := r.db.QueryRowContext(ctx, query, args...).Scan(&entry.HistoryID, &entry.ChangedAt); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

// ListByEntityID returns the entity's history, most recent first.
func (r *PostgresRepository) ListByEntityID(ctx context.Context, entityID int64) ([]*models.HistoryEntry, error) {
	if !r.kind.HasHistory() {
		return nil, errNoHistory
	}

	cols := append([]string{"history_id", r.kind.HistoryFK, "user_id"}, r.kind.Columns()...)
	cols = append(cols, "changed_by", "changed_at", "operation_type")

	query := fmt.Sprintf(`SELECT %s FROM %s WHERE %s = $1 ORDER BY changed_at DESC, history_id DESC`,
		strings.Join(cols, ", "), r.kind.HistoryTable, r.kind.HistoryFK)

	rows, err := r.db.QueryContext(ctx, query, entityID)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	out := []*models.HistoryEntry{}
	for rows.Next() {
		var (
			e         models.HistoryEntry
			owner     sql.NullInt64
			changedBy sql.NullInt64
			op        string
		)
		targets := r.kind.ScanTargets()
		dest := append([]any{&e.HistoryID, &e.EntityID, &owner}, targets...)
		dest = append(dest, &changedBy, &e.ChangedAt, &op)

		if err := rows.Scan(dest...); err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		if owner.Valid {
			e.OwnerID = &owner.Int64
		}
		e.ChangedBy = changedBy.Int64
		e.Operation = models.Operation(op)
		e.Values = r.kind.ValuesFrom(targets)
		out = append(out, &e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return out, nil
}
