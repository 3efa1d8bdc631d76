package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newMigrateCommand(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate [command] [args...]",
		Short: "Run schema migrations (default: up)",
		Long: `Run a goose command against the embedded migrations.

Commands: up, up-by-one, up-to VERSION, down, down-to VERSION, redo,
reset, status, version.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			command := "up"
			if len(args) > 0 {
				command, args = args[0], args[1:]
			}

			ctx := cmd.Context()
			db, repos, err := e.open(ctx)
			if err != nil {
				return err
			}
			defer db.Close()

			e.logger(cmd).Debug(ctx, "running migration", "command", command, "args", args)
			if err := repos.Migrate(ctx, db, command, args...); err != nil {
				return fmt.Errorf("migrate %s: %w", command, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "migrate %s: ok\n", command)
			return nil
		},
	}
}
