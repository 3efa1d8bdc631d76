// Package repomanager provides a concrete RepositoryManager for PostgreSQL,
// wiring together repository constructors and database migrations (via goose).
package repomanager

import (
	"context"
	"database/sql"

	"github.com/dmitrijs2005/bizdesk/internal/dbx"
	"github.com/dmitrijs2005/bizdesk/internal/server/kinds"
	"github.com/dmitrijs2005/bizdesk/internal/server/migrations"
	"github.com/dmitrijs2005/bizdesk/internal/server/repositories/activity"
	"github.com/dmitrijs2005/bizdesk/internal/server/repositories/entities"
	"github.com/dmitrijs2005/bizdesk/internal/server/repositories/files"
	"github.com/dmitrijs2005/bizdesk/internal/server/repositories/history"
	"github.com/dmitrijs2005/bizdesk/internal/server/repositories/permissions"
	"github.com/dmitrijs2005/bizdesk/internal/server/repositories/users"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
)

// PostgresRepositoryManager vends PostgreSQL-backed repository implementations
// and exposes schema migration hooks.
type PostgresRepositoryManager struct{}

func (m *PostgresRepositoryManager) Users(db dbx.DBTX) users.Repository {
	return users.NewPostgresRepository(db)
}

func (m *PostgresRepositoryManager) Permissions(db dbx.DBTX) permissions.Repository {
	return permissions.NewPostgresRepository(db)
}

func (m *PostgresRepositoryManager) Files(db dbx.DBTX) files.Repository {
	return files.NewPostgresRepository(db)
}

func (m *PostgresRepositoryManager) Activity(db dbx.DBTX) activity.Repository {
	return activity.NewPostgresRepository(db)
}

// Entities returns the generic store for kind bound to db.
func (m *PostgresRepositoryManager) Entities(kind *kinds.Kind, db dbx.DBTX) entities.Repository {
	return entities.NewPostgresRepository(kind, db)
}

// History returns the audit trail store for kind bound to db.
func (m *PostgresRepositoryManager) History(kind *kinds.Kind, db dbx.DBTX) history.Repository {
	return history.NewPostgresRepository(kind, db)
}

// gooseUpContext and gooseRunContext are seams for testing goose.
var gooseUpContext = func(ctx context.Context, db *sql.DB, dir string, opts ...goose.OptionsFunc) error {
	return goose.UpContext(ctx, db, dir, opts...)
}

var gooseRunContext = func(ctx context.Context, command string, db *sql.DB, dir string, args ...string) error {
	return goose.RunContext(ctx, command, db, dir, args...)
}

func setupGoose() error {
	goose.SetBaseFS(migrations.Migrations)
	return goose.SetDialect("pgx")
}

// RunMigrations sets up goose with the embedded migrations and applies all
// pending ones.
func (m *PostgresRepositoryManager) RunMigrations(ctx context.Context, db *sql.DB) error {
	if err := setupGoose(); err != nil {
		return err
	}
	if err := gooseUpContext(ctx, db, "."); err != nil {
		return err
	}
	return nil
}

// Migrate runs an arbitrary goose command (up, down, status, version, ...)
// against the embedded migrations.
func (m *PostgresRepositoryManager) Migrate(ctx context.Context, db *sql.DB, command string, args ...string) error {
	if err := setupGoose(); err != nil {
		return err
	}
	return gooseRunContext(ctx, command, db, ".", args...)
}

// NewPostgresRepositoryManager constructs a PostgreSQL-backed RepositoryManager.
func NewPostgresRepositoryManager(db *sql.DB) (RepositoryManager, error) {
	return &PostgresRepositoryManager{}, nil
}
