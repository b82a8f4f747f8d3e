package main

import (
	"errors"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"ratingsync/internal/daemon"
	"ratingsync/internal/logging"
)

func newRunCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run the batch scheduler in the foreground",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger, err := ctx.logger()
			if err != nil {
				return err
			}

			runCtx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			session, err := daemon.Open(runCtx, cfg, logger)
			if err != nil {
				return err
			}
			d, err := daemon.New(cfg, session, logger)
			if err != nil {
				return errors.Join(err, session.Close())
			}
			runErr := d.Run(runCtx)
			if runErr != nil {
				logging.ErrorWithContext(logger, "ratingsync stopped on a fatal error", "daemon_fatal",
					logging.Error(runErr),
					logging.String(logging.FieldErrorHint, "fix the cause and restart; unfinished jobs resume where they stopped"))
			}
			return errors.Join(runErr, session.Close())
		},
	}
}

func newOnceCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "once",
		Short: "Run a single batch and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger, err := ctx.logger()
			if err != nil {
				return err
			}

			runCtx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			session, err := daemon.Open(runCtx, cfg, logger)
			if err != nil {
				return err
			}
			outcome, runErr := session.RunBatch(runCtx)
			closeErr := session.Close()
			if runErr != nil {
				return errors.Join(runErr, closeErr)
			}
			if closeErr != nil {
				return closeErr
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Batch %s; %d unfinished job(s)\n", outcome, session.State().Len())
			return nil
		},
	}
}
