// Package cli implements bizctl, the administrative command line of
// bizdesk: schema migrations, superuser bootstrap, permission seeding and
// history export.
package cli

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/dmitrijs2005/bizdesk/internal/logging"
	"github.com/dmitrijs2005/bizdesk/internal/server/cache"
	"github.com/dmitrijs2005/bizdesk/internal/server/config"
	"github.com/dmitrijs2005/bizdesk/internal/server/repositories/repomanager"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/spf13/cobra"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	DSN         string
	RedisAddr   string
	SuperuserID int64
	Verbose     bool
}

// Backend opens the database the commands work on.
type Backend func(ctx context.Context, dsn string) (*sql.DB, repomanager.RepositoryManager, error)

// PostgresBackend opens dsn with pgx and checks the connection.
func PostgresBackend(ctx context.Context, dsn string) (*sql.DB, repomanager.RepositoryManager, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, nil, fmt.Errorf("db open error: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("db ping error: %w", err)
	}
	repos, err := repomanager.NewPostgresRepositoryManager(db)
	if err != nil {
		db.Close()
		return nil, nil, err
	}
	return db, repos, nil
}

// env is what a subcommand needs at run time.
type env struct {
	opts    *RootOptions
	cfg     *config.Config
	backend Backend
}

func (e *env) logger(cmd *cobra.Command) logging.Logger {
	level := slog.LevelInfo
	if e.opts.Verbose {
		level = slog.LevelDebug
	}
	return logging.NewTextLogger(cmd.ErrOrStderr(), level)
}

func (e *env) open(ctx context.Context) (*sql.DB, repomanager.RepositoryManager, error) {
	return e.backend(ctx, e.opts.DSN)
}

// permissionCache connects to the server's Redis permission cache so grants
// made here invalidate its decisions. Nil when no address is set.
func (e *env) permissionCache(ctx context.Context) (*cache.RedisPermissionCache, error) {
	if e.opts.RedisAddr == "" {
		return nil, nil
	}
	return cache.Dial(ctx, e.opts.RedisAddr, e.cfg.RedisPassword, e.cfg.RedisDB, e.cfg.PermissionCacheTTL)
}

// NewRootCommand creates the bizctl root command. Flag defaults come from
// the same environment variables the server reads.
func NewRootCommand(backend Backend) *cobra.Command {
	defaults := config.LoadEnvironment()
	e := &env{opts: &RootOptions{}, cfg: defaults, backend: backend}

	cmd := &cobra.Command{
		Use:           "bizctl",
		Short:         "bizctl - bizdesk administration",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVar(&e.opts.DSN, "dsn", defaults.DatabaseDSN, "PostgreSQL connection string")
	cmd.PersistentFlags().StringVar(&e.opts.RedisAddr, "redis-addr", defaults.RedisAddr, "Redis address of the permission cache")
	cmd.PersistentFlags().Int64Var(&e.opts.SuperuserID, "superuser-id", defaults.SuperuserID, "reserved superuser account id")
	cmd.PersistentFlags().BoolVarP(&e.opts.Verbose, "verbose", "v", false, "verbose output")

	cmd.AddCommand(newMigrateCommand(e))
	cmd.AddCommand(newCreateSuperuserCommand(e))
	cmd.AddCommand(newSeedPermissionsCommand(e))
	cmd.AddCommand(newExportHistoryCommand(e))

	return cmd
}
