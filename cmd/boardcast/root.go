package main

import (
	"github.com/spf13/cobra"
)

func newRootCommand() *cobra.Command {
	var serverFlag string

	rootCmd := &cobra.Command{
		Use:           "boardcast",
		Short:         "Boardcast narration pipeline CLI",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	rootCmd.PersistentFlags().StringVar(&serverFlag, "server", defaultServer, "Base URL of the boardcastd API")

	client := func() *apiClient { return newAPIClient(serverFlag) }

	rootCmd.AddCommand(newSubmitCommand(client))
	rootCmd.AddCommand(newListCommand(client))
	rootCmd.AddCommand(newShowCommand(client))
	rootCmd.AddCommand(newRetryCommand(client))
	rootCmd.AddCommand(newDeleteCommand(client))
	rootCmd.AddCommand(newRenameCommand(client))
	rootCmd.AddCommand(newStatusCommand(client))
	rootCmd.AddCommand(newConfigCommand())

	return rootCmd
}
