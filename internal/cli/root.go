package cli

import (
	"github.com/spf13/cobra"
)

// NewRootCommand returns the clinic-server command tree. Without a
// subcommand it serves the API.
func NewRootCommand() *cobra.Command {
	serve := serveCmd()
	root := &cobra.Command{
		Use:          "clinic-server",
		Short:        "Clinic management API server",
		SilenceUsage: true,
		RunE:         serve.RunE,
	}

	root.AddCommand(serve)
	root.AddCommand(migrateCmd())
	root.AddCommand(seedRankFeesCmd())
	root.AddCommand(recomputeInvoicesCmd())
	root.AddCommand(repriceInvoicesCmd())
	return root
}

// Execute runs the root command.
func Execute() error {
	return NewRootCommand().Execute()
}
