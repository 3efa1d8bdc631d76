package repomanager

import (
	"context"
	"database/sql"

	"github.com/dmitrijs2005/bizdesk/internal/dbx"
	"github.com/dmitrijs2005/bizdesk/internal/server/kinds"
	"github.com/dmitrijs2005/bizdesk/internal/server/repositories/activity"
	"github.com/dmitrijs2005/bizdesk/internal/server/repositories/entities"
	"github.com/dmitrijs2005/bizdesk/internal/server/repositories/files"
	"github.com/dmitrijs2005/bizdesk/internal/server/repositories/history"
	"github.com/dmitrijs2005/bizdesk/internal/server/repositories/permissions"
	"github.com/dmitrijs2005/bizdesk/internal/server/repositories/users"
)

// RepositoryManager vends repositories bound to a DBTX, so services can use
// the same factories inside and outside a transaction.
type RepositoryManager interface {
	RunMigrations(context.Context, *sql.DB) error
	Migrate(ctx context.Context, db *sql.DB, command string, args ...string) error
	Users(db dbx.DBTX) users.Repository
	Permissions(db dbx.DBTX) permissions.Repository
	Files(db dbx.DBTX) files.Repository
	Activity(db dbx.DBTX) activity.Repository
	Entities(kind *kinds.Kind, db dbx.DBTX) entities.Repository
	History(kind *kinds.Kind, db dbx.DBTX) history.Repository
}
