package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"ratingsync/internal/jobs"
	"ratingsync/internal/preflight"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Check paths, provider credentials, the ratings dataset, and unfinished jobs",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			report := newStatusReport(out)

			report.section("Configuration")
			report.info("Config", ctx.configPath)
			report.info("Capabilities", cfg.Capabilities.String())
			for _, notice := range cfg.Notices {
				report.warn("Notice", notice)
			}

			report.section("Checks")
			for _, result := range preflight.RunAll(cmd.Context(), cfg) {
				report.check(result)
			}

			report.section("Unfinished jobs")
			state, err := jobs.LoadState(cfg.StatePath())
			switch {
			case err != nil:
				report.warn("State", err.Error())
			case state.Len() == 0:
				report.info("State", "none")
			default:
				for _, job := range state.Jobs() {
					report.job(job)
				}
			}

			fmt.Fprintln(out, report)
			if report.failed > 0 {
				return errors.New(pluralize(report.failed, "check") + " failed")
			}
			return nil
		},
	}
}

func pluralize(n int, noun string) string {
	if n == 1 {
		return fmt.Sprintf("1 %s", noun)
	}
	return fmt.Sprintf("%d %ss", n, noun)
}
