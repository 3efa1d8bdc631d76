package main

import (
	"context"
	"fmt"
	"os"

	"github.com/dmitrijs2005/bizdesk/internal/admin/cli"
)

func main() {
	cmd := cli.NewRootCommand(cli.PostgresBackend)
	if err := cmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
