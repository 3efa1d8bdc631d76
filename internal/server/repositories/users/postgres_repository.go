package users

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/bizdesk/internal/common"
	"github.com/dmitrijs2005/bizdesk/internal/dbx"
	"github.com/dmitrijs2005/bizdesk/internal/server/models"
)

const userColumns = `id, username, email, password, COALESCE(api_token, ''), failed_attempts, locked_until,
		 COALESCE(password_reset_token, ''), password_reset_expires, COALESCE(activation_token, ''), activated,
		 created_at, updated_at`

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Create(ctx context.Context, user *models.User) (*models.User, error) {

	query :=
		`INSERT INTO users (username, email, password, activation_token, activated)
         VALUES ($1, $2, $3, NULLIF($4, ''), $5)
		 RETURNING id, created_at, updated_at
		 `

	err := r.db.QueryRowContext(ctx, query,
		user.Username, user.Email, user.PasswordHash, user.ActivationToken, user.Activated).
		Scan(&user.ID, &user.CreatedAt, &user.UpdatedAt)

	if err != nil {
		if dbx.IsUniqueViolation(err) {
			return nil, common.ErrAlreadyExists
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	return user, nil
}

func (r *PostgresRepository) FindByID(ctx context.Context, id int64) (*models.User, error) {
	return r.findOne(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
}

func (r *PostgresRepository) FindByUsername(ctx context.Context, username string) (*models.User, error) {
	return r.findOne(ctx, `SELECT `+userColumns+` FROM users WHERE username = $1`, username)
}

func (r *PostgresRepository) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	return r.findOne(ctx, `SELECT `+userColumns+` FROM users WHERE email = $1`, email)
}

func (r *PostgresRepository) FindByResetToken(ctx context.Context, token string, now time.Time) (*models.User, error) {
	return r.findOne(ctx,
		`SELECT `+userColumns+` FROM users WHERE password_reset_token = $1 AND password_reset_expires > $2`,
		token, now)
}

func (r *PostgresRepository) findOne(ctx context.Context, query string, args ...any) (*models.User, error) {
	var (
		u            models.User
		lockedUntil  sql.NullTime
		resetExpires sql.NullTime
	)

	err := r.db.QueryRowContext(ctx, query, args...).Scan(
		&u.ID, &u.Username, &u.Email, &u.PasswordHash, &u.APIToken, &u.FailedAttempts, &lockedUntil,
		&u.ResetToken, &resetExpires, &u.ActivationToken, &u.Activated,
		&u.CreatedAt, &u.UpdatedAt)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	if lockedUntil.Valid {
		u.LockedUntil = &lockedUntil.Time
	}
	if resetExpires.Valid {
		u.ResetExpires = &resetExpires.Time
	}

	return &u, nil
}

// Activate marks the account holding token as activated and consumes the
// token.
func (r *PostgresRepository) Activate(ctx context.Context, token string) error {
	query := `UPDATE users SET activated = TRUE, activation_token = NULL, updated_at = now()
		 WHERE activation_token = $1`
	return r.exec(ctx, query, token)
}

func (r *PostgresRepository) MarkActivated(ctx context.Context, id int64) error {
	query := `UPDATE users SET activated = TRUE, activation_token = NULL, updated_at = now() WHERE id = $1`
	return r.exec(ctx, query, id)
}

// UpdateFailedAttempts stores the counter and the lock deadline; a nil
// deadline clears the lock.
func (r *PostgresRepository) UpdateFailedAttempts(ctx context.Context, id int64, attempts int, lockedUntil *time.Time) error {
	query := `UPDATE users SET failed_attempts = $1, locked_until = $2, updated_at = now() WHERE id = $3`
	return r.exec(ctx, query, attempts, lockedUntil, id)
}

func (r *PostgresRepository) SetAPIToken(ctx context.Context, id int64, token string) error {
	query := `UPDATE users SET api_token = NULLIF($1, ''), updated_at = now() WHERE id = $2`
	return r.exec(ctx, query, token, id)
}

func (r *PostgresRepository) SetResetToken(ctx context.Context, id int64, token string, expires time.Time) error {
	query := `UPDATE users SET password_reset_token = $1, password_reset_expires = $2, updated_at = now() WHERE id = $3`
	return r.exec(ctx, query, token, expires, id)
}

func (r *PostgresRepository) ResetPassword(ctx context.Context, id int64, passwordHash string) error {
	query := `UPDATE users SET password = $1, password_reset_token = NULL, password_reset_expires = NULL,
		 failed_attempts = 0, locked_until = NULL, updated_at = now()
		 WHERE id = $2`
	return r.exec(ctx, query, passwordHash, id)
}

func (r *PostgresRepository) ListDirectory(ctx context.Context) ([]models.DirectoryEntry, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id, username, email, activated FROM users ORDER BY username ASC`)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	out := []models.DirectoryEntry{}
	for rows.Next() {
		var e models.DirectoryEntry
		if err := rows.Scan(&e.ID, &e.Username, &e.Email, &e.Activated); err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return out, nil
}

func (r *PostgresRepository) exec(ctx context.Context, query string, args ...any) error {
	res, err := r.db.ExecContext(ctx, query, args...)
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
