package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"boardcast/internal/api"
	"boardcast/internal/config"
	"boardcast/internal/fileutil"
)

type clientFactory func() *apiClient

func newSubmitCommand(client clientFactory) *cobra.Command {
	var channelFlag string
	var titleFlag string
	var voiceFlag string
	var copyFlag bool

	cmd := &cobra.Command{
		Use:   "submit <image>",
		Short: "Submit a board photo for narration",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if strings.TrimSpace(channelFlag) == "" {
				return errors.New("--channel is required")
			}
			inputRef := args[0]
			if abs, err := filepath.Abs(inputRef); err == nil {
				inputRef = abs
			}
			if copyFlag {
				name, err := copyIntoUploadDir(inputRef)
				if err != nil {
					return err
				}
				inputRef = name
			}
			resp, err := client().submit(cmd.Context(), api.SubmitRequest{
				ChannelID: channelFlag,
				InputRef:  inputRef,
				Title:     titleFlag,
				VoiceID:   voiceFlag,
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Submitted job %s\n", resp.JobID)
			return nil
		},
	}
	cmd.Flags().StringVar(&channelFlag, "channel", "", "Channel the job belongs to")
	cmd.Flags().StringVar(&titleFlag, "title", "", "Display title for the job")
	cmd.Flags().StringVar(&voiceFlag, "voice", "", "Voice id for speech synthesis")
	cmd.Flags().BoolVar(&copyFlag, "copy", false, "Copy the image into the daemon's upload directory before submitting")
	return cmd
}

// copyIntoUploadDir places src in the configured upload directory and returns
// the name the daemon should resolve. Requires the CLI and daemon to share a
// filesystem.
func copyIntoUploadDir(src string) (string, error) {
	cfg, err := config.Load(os.Getenv("BOARDCAST_CONFIG"))
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(cfg.Paths.UploadDir, 0o755); err != nil {
		return "", fmt.Errorf("create upload dir: %w", err)
	}
	name := filepath.Base(src)
	if err := fileutil.CopyFile(src, filepath.Join(cfg.Paths.UploadDir, name)); err != nil {
		return "", fmt.Errorf("copy into upload dir: %w", err)
	}
	return name, nil
}

func newListCommand(client clientFactory) *cobra.Command {
	var channelFlag string
	var jsonFlag bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List narration jobs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			jobs, err := client().list(cmd.Context(), channelFlag)
			if err != nil {
				return err
			}
			if jsonFlag {
				return writeJSON(cmd, jobs)
			}
			if len(jobs) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No jobs.")
				return nil
			}
			rows := make([][]string, 0, len(jobs))
			for _, job := range jobs {
				rows = append(rows, []string{
					job.JobID,
					job.ChannelID,
					job.Status,
					fmt.Sprintf("%d%%", job.Progress),
					job.Title,
					job.CreatedAt,
				})
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable(
				[]string{"ID", "Channel", "Status", "Progress", "Title", "Created"},
				rows,
			))
			return nil
		},
	}
	cmd.Flags().StringVar(&channelFlag, "channel", "", "Only list jobs on this channel")
	cmd.Flags().BoolVar(&jsonFlag, "json", false, "Emit JSON instead of a table")
	return cmd
}

func newShowCommand(client clientFactory) *cobra.Command {
	var jsonFlag bool

	cmd := &cobra.Command{
		Use:   "show <job-id>",
		Short: "Show a job and, when finished, its narration result",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c := client()
			job, err := c.get(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			var result *api.ResultView
			if job.Status == "done" {
				r, err := c.result(cmd.Context(), args[0])
				if err == nil {
					result = &r
				}
			}
			if jsonFlag {
				payload := map[string]any{"job": job}
				if result != nil {
					payload["result"] = result
				}
				return writeJSON(cmd, payload)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Job:      %s\n", job.JobID)
			fmt.Fprintf(out, "Channel:  %s\n", job.ChannelID)
			fmt.Fprintf(out, "Status:   %s (%d%%)\n", job.Status, job.Progress)
			if job.Title != "" {
				fmt.Fprintf(out, "Title:    %s\n", job.Title)
			}
			if job.Voice != "" {
				fmt.Fprintf(out, "Voice:    %s\n", job.Voice)
			}
			if job.CreatedAt != "" {
				fmt.Fprintf(out, "Created:  %s\n", job.CreatedAt)
			}
			if result != nil {
				fmt.Fprintf(out, "Audio:    %s (%ds)\n", result.AudioURL, result.DurationSec)
				fmt.Fprintf(out, "\n%s\n", result.Narration)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&jsonFlag, "json", false, "Emit JSON instead of text")
	return cmd
}

func newRetryCommand(client clientFactory) *cobra.Command {
	return &cobra.Command{
		Use:   "retry <job-id>",
		Short: "Re-run a failed job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			job, err := client().retry(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Retrying job %s\n", job.JobID)
			return nil
		},
	}
}

func newDeleteCommand(client clientFactory) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <job-id>",
		Short: "Delete a job, its result, and its audio",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := client().remove(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted job %s\n", args[0])
			return nil
		},
	}
}

func newRenameCommand(client clientFactory) *cobra.Command {
	return &cobra.Command{
		Use:   "rename <job-id> <title>",
		Short: "Set a job's display title",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			job, err := client().rename(cmd.Context(), args[0], args[1])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Renamed job %s to %q\n", job.JobID, job.Title)
			return nil
		},
	}
}
