package commands

import (
	"github.com/spf13/cobra"

	"github.com/cleared-dev/billbox/internal/buildinfo"
)

// rootOptions are the persistent flags shared by every subcommand.
type rootOptions struct {
	dir  string
	user string
}

// NewRootCommand creates the root CLI command with all subcommands registered.
func NewRootCommand() *cobra.Command {
	opts := &rootOptions{}

	rootCmd := &cobra.Command{
		Use:     "billbox",
		Short:   "Capture, track and pay household bills",
		Version: buildinfo.String(),
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().StringVar(&opts.dir, "dir", ".", "project directory")
	rootCmd.PersistentFlags().StringVar(&opts.user, "user", "", "act as this user instead of the configured one")

	rootCmd.AddCommand(
		newInitCommand(opts),
		newScanCommand(opts),
		newAddCommand(opts),
		newListCommand(opts),
		newUpcomingCommand(opts),
		newSummaryCommand(opts),
		newPayCommand(opts),
		newCashbackCommand(opts),
		newServeCommand(opts),
	)

	return rootCmd
}
