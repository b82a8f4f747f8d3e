package main

import (
	"fmt"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"ratingsync/internal/daemon"
	"ratingsync/internal/kvcache"
)

func newCacheCommand(ctx *commandContext) *cobra.Command {
	cacheCmd := &cobra.Command{
		Use:   "cache",
		Short: "Inspect or purge the identifier caches",
	}
	cacheCmd.AddCommand(newCacheStatsCommand(ctx))
	cacheCmd.AddCommand(newCachePurgeCommand(ctx))
	return cacheCmd
}

func newCacheStatsCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show entry counts for every cache",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			caches := kvcache.OpenSet(cfg.CacheDir(), nil)

			rows := make([][]string, 0, len(kvcache.Names()))
			for _, store := range caches.Stores() {
				notFound := 0
				var oldest time.Time
				for _, entry := range store.Entries() {
					if entry.Value == kvcache.NotFound {
						notFound++
					}
					if oldest.IsZero() || entry.UpdatedAt.Before(oldest) {
						oldest = entry.UpdatedAt
					}
				}
				oldestLabel := "-"
				if !oldest.IsZero() {
					oldestLabel = oldest.Local().Format(time.DateOnly)
				}
				rows = append(rows, []string{
					humanize(store.Name()),
					filepath.Base(store.Path()),
					strconv.Itoa(store.Len()),
					strconv.Itoa(notFound),
					oldestLabel,
				})
			}
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, renderTable(out,
				[]string{"Cache", "File", "Entries", "Not Found", "Oldest"},
				rows,
				[]columnAlignment{alignLeft, alignLeft, alignRight, alignRight, alignLeft}))
			return nil
		},
	}
}

func newCachePurgeCommand(ctx *commandContext) *cobra.Command {
	var ttlDays int

	cmd := &cobra.Command{
		Use:   "purge [cache...]",
		Short: "Expire old blacklist entries, or empty the named caches",
		Long: "Without arguments, removes blacklist entries older than --ttl days. " +
			"With cache names, empties those caches entirely. Valid names: " +
			strings.Join(kvcache.Names(), ", "),
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, name := range args {
				if !slices.Contains(kvcache.Names(), name) {
					return fmt.Errorf("unknown cache %q (valid: %s)", name, strings.Join(kvcache.Names(), ", "))
				}
			}
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			lock, err := daemon.AcquireLock(cfg)
			if err != nil {
				return err
			}
			defer lock.Unlock() //nolint:errcheck

			caches := kvcache.OpenSet(cfg.CacheDir(), nil)
			out := cmd.OutOrStdout()
			if len(args) == 0 {
				removed := caches.PurgeBlacklists(ttlDays)
				if err := caches.DumpAll(); err != nil {
					return err
				}
				fmt.Fprintf(out, "Removed %d blacklist entries older than %d days\n", removed, ttlDays)
				return nil
			}
			for _, name := range args {
				store := caches.Get(name)
				count := store.Len()
				store.Clear()
				fmt.Fprintf(out, "Cleared %d entries from %s\n", count, name)
			}
			return caches.DumpAll()
		},
	}
	cmd.Flags().IntVar(&ttlDays, "ttl", kvcache.BlacklistTTLDays, "Blacklist entry lifetime in days")
	return cmd
}
