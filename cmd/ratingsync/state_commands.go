package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"ratingsync/internal/daemon"
	"ratingsync/internal/jobs"
)

func newStateCommand(ctx *commandContext) *cobra.Command {
	stateCmd := &cobra.Command{
		Use:   "state",
		Short: "Inspect or reset unfinished library jobs",
	}
	stateCmd.AddCommand(newStateListCommand(ctx))
	stateCmd.AddCommand(newStateClearCommand(ctx))
	return stateCmd
}

func newStateListCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List unfinished jobs from the state document",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			state, err := jobs.LoadState(cfg.StatePath())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			list := state.Jobs()
			if len(list) == 0 {
				fmt.Fprintln(out, "No unfinished jobs")
				return nil
			}

			rows := make([][]string, 0, len(list))
			for _, job := range list {
				resolved := 0
				for _, item := range job.Items {
					if item.Resolved {
						resolved++
					}
				}
				rows = append(rows, []string{
					strconv.FormatInt(job.LibraryID, 10),
					job.Library,
					humanize(string(job.LibraryType)),
					humanize(job.Stage.String()),
					fmt.Sprintf("%d/%d", resolved, len(job.Items)),
					strconv.Itoa(job.Failures.Total()),
					job.UpdatedAt.Local().Format(time.DateTime),
				})
			}
			fmt.Fprintln(out, renderTable(out,
				[]string{"ID", "Library", "Type", "Stage", "Resolved", "Failures", "Updated"},
				rows,
				[]columnAlignment{alignRight, alignLeft, alignLeft, alignLeft, alignRight, alignRight, alignLeft}))
			return nil
		},
	}
}

func newStateClearCommand(ctx *commandContext) *cobra.Command {
	var libraryIDs []int64

	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Drop unfinished jobs so they restart from the beginning",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			lock, err := daemon.AcquireLock(cfg)
			if err != nil {
				return err
			}
			defer lock.Unlock() //nolint:errcheck

			state, err := jobs.LoadState(cfg.StatePath())
			if err != nil {
				return err
			}
			before := state.Len()
			if len(libraryIDs) == 0 {
				state.Clear()
			} else {
				for _, id := range libraryIDs {
					state.Remove(id)
				}
			}
			if err := state.Save(); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Cleared %s\n", pluralize(before-state.Len(), "job"))
			return nil
		},
	}
	cmd.Flags().Int64SliceVarP(&libraryIDs, "library", "l", nil, "Only clear jobs for these library ids")
	return cmd
}
