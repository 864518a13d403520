package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
)

// newRunCmd creates the 'run' subcommand: one full discovery plus
// publish cycle.
func newRunCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Runs one full discover-and-publish cycle",
		Long: `Extracts every configured search page, catalogs the results,
then selects at most one pending candidate per partition and pushes
each through download and publication.`,
		RunE: runRunCommand,
	}
}

func runRunCommand(cmd *cobra.Command, _ []string) error {
	a, err := resolveApp(cmd.Context())
	if err != nil {
		return err
	}
	a.ServeDiagnostics(cmd.Context())

	summary, err := a.Pipeline().Run(cmd.Context())
	a.Server().RecordRun(summary)
	if err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("run pipeline: %w", err)
	}
	return nil
}
