package main

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"
)

func newStatusCommand(client clientFactory) *cobra.Command {
	var jsonFlag bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show daemon status",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			status, err := client().status(cmd.Context())
			if err != nil {
				return err
			}
			if jsonFlag {
				return writeJSON(cmd, status)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Running:     %t\n", status.Running)
			fmt.Fprintf(out, "PID:         %d\n", status.PID)
			fmt.Fprintf(out, "Database:    %s\n", status.DBPath)
			fmt.Fprintf(out, "Subscribers: %d\n", status.Subscriber)

			if len(status.JobStats) > 0 {
				statuses := make([]string, 0, len(status.JobStats))
				for name := range status.JobStats {
					statuses = append(statuses, name)
				}
				sort.Strings(statuses)
				fmt.Fprintln(out, "Jobs:")
				for _, name := range statuses {
					fmt.Fprintf(out, "  %-10s %d\n", name, status.JobStats[name])
				}
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&jsonFlag, "json", false, "Emit JSON instead of text")
	return cmd
}
