package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// newPublishCmd creates the 'publish' subcommand: works off whatever is
// already pending in the catalog.
func newPublishCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "publish",
		Short: "Publishes pending candidates without re-scanning",
		RunE:  runPublishCommand,
	}
}

func runPublishCommand(cmd *cobra.Command, _ []string) error {
	a, err := resolveApp(cmd.Context())
	if err != nil {
		return err
	}

	selected, published, failed, err := a.Pipeline().PublishPending(cmd.Context())
	if err != nil {
		return fmt.Errorf("publish pending: %w", err)
	}
	a.Logger().Info("publish pass finished",
		zap.Int("selected", selected),
		zap.Int("published", published),
		zap.Int("failed", failed),
	)
	return nil
}
