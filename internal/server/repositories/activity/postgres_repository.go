package activity

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/dmitrijs2005/bizdesk/internal/dbx"
	"github.com/dmitrijs2005/bizdesk/internal/server/models"
)

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Create(ctx context.Context, e *models.ActivityEntry) error {
	query :=
		`INSERT INTO activity_log (user_id, route, method, ip_address, user_agent, status_code, message)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 RETURNING id, action_time`

	err := r.db.QueryRowContext(ctx, query,
		e.UserID, e.Route, e.Method, e.IPAddress, e.UserAgent, e.StatusCode, e.Message).
		Scan(&e.ID, &e.ActionTime)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) ListRecent(ctx context.Context, limit int) ([]*models.ActivityEntry, error) {
	query :=
		`SELECT id, user_id, route, method, ip_address, COALESCE(user_agent, ''), status_code, COALESCE(message, ''), action_time
		   FROM activity_log
		  ORDER BY action_time DESC, id DESC
		  LIMIT $1`

	rows, err := r.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	out := []*models.ActivityEntry{}
	for rows.Next() {
		var (
			e      models.ActivityEntry
			userID sql.NullInt64
		)
		if err := rows.Scan(&e.ID, &userID, &e.Route, &e.Method, &e.IPAddress, &e.UserAgent, &e.StatusCode, &e.Message, &e.ActionTime); err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		if userID.Valid {
			e.UserID = &userID.Int64
		}
		out = append(out, &e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return out, nil
}
