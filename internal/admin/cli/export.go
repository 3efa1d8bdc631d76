package cli

import (
	"fmt"
	"os"

	"github.com/dmitrijs2005/bizdesk/internal/server/kinds"
	"github.com/dmitrijs2005/bizdesk/internal/server/services"
	"github.com/spf13/cobra"
)

type exportOptions struct {
	Kind   string
	ID     int64
	Output string
}

func newExportHistoryCommand(e *env) *cobra.Command {
	opts := &exportOptions{}

	cmd := &cobra.Command{
		Use:   "export-history",
		Short: "Write the history of one entity to an Excel workbook",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExportHistory(cmd, e, opts)
		},
	}

	cmd.Flags().StringVar(&opts.Kind, "kind", "", "entity kind, e.g. clients")
	cmd.Flags().Int64Var(&opts.ID, "id", 0, "entity id")
	cmd.Flags().StringVarP(&opts.Output, "output", "o", "", "output file (default <kind>-<id>-history.xlsx)")
	_ = cmd.MarkFlagRequired("kind")
	_ = cmd.MarkFlagRequired("id")

	return cmd
}

func runExportHistory(cmd *cobra.Command, e *env, opts *exportOptions) error {
	k, ok := kinds.Lookup(opts.Kind)
	if !ok {
		return fmt.Errorf("unknown kind %q", opts.Kind)
	}
	if !k.HasHistory() {
		return fmt.Errorf("kind %q keeps no history", k.Name)
	}
	out := opts.Output
	if out == "" {
		out = fmt.Sprintf("%s-%d-history.xlsx", k.Name, opts.ID)
	}

	ctx := cmd.Context()
	db, repos, err := e.open(ctx)
	if err != nil {
		return err
	}
	defer db.Close()

	rows, err := repos.History(k, db).ListByEntityID(ctx, opts.ID)
	if err != nil {
		return err
	}
	b, err := services.HistoryWorkbook(k, rows)
	if err != nil {
		return err
	}
	if err := os.WriteFile(out, b, 0o644); err != nil {
		return err
	}

	e.logger(cmd).Debug(ctx, "history exported", "kind", k.Name, "id", opts.ID, "rows", len(rows))
	fmt.Fprintf(cmd.OutOrStdout(), "%d history rows written to %s\n", len(rows), out)
	return nil
}
