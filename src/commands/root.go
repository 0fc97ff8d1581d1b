// Package commands holds the talentnest command line.
package commands

import "github.com/spf13/cobra"

func NewRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:          "talentnest",
		Short:        "TalentNest connection graph and notification service",
		SilenceUsage: true,
	}

	cmd.AddCommand(
		NewServeCommand(),
		NewMigrateCommand(),
	)
	return cmd
}
