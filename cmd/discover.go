package cmd

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// newDiscoverCmd creates the 'discover' subcommand: catalog refresh
// without touching the publish queue.
func newDiscoverCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "discover",
		Short: "Extracts the search pages and refreshes the catalog",
		RunE:  runDiscoverCommand,
	}
}

func runDiscoverCommand(cmd *cobra.Command, _ []string) error {
	a, err := resolveApp(cmd.Context())
	if err != nil {
		return err
	}

	n := a.Pipeline().Discover(cmd.Context())
	a.Logger().Info("discovery finished", zap.Int("discovered", n))
	return nil
}
