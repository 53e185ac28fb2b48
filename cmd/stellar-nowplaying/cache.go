package main

import (
	"fmt"
	"io"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/edumarques81/stellar-nowplaying/internal/config"
	"github.com/edumarques81/stellar-nowplaying/internal/infra/cache"
)

func newCacheCmd(flags *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Inspect the offline lyrics store",
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "stats",
			Short: "Show what the offline store holds",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return withCache(cmd, flags, func(db *cache.DB) error {
					stats, err := db.Stats()
					if err != nil {
						return fmt.Errorf("read stats: %w", err)
					}
					renderStats(cmd.OutOrStdout(), db.Path(), stats)
					return nil
				})
			},
		},
		&cobra.Command{
			Use:   "clear",
			Short: "Remove all stored lyrics",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return withCache(cmd, flags, func(db *cache.DB) error {
					if err := db.Clear(); err != nil {
						return fmt.Errorf("clear cache: %w", err)
					}
					log.Info().Str("path", db.Path()).Msg("Offline lyrics cleared")
					return nil
				})
			},
		},
	)
	return cmd
}

func withCache(cmd *cobra.Command, flags *globalFlags, fn func(db *cache.DB) error) error {
	cfg, err := loadConfig(cmd, flags)
	if err != nil {
		return err
	}
	return openCache(cfg, fn)
}

func openCache(cfg config.Config, fn func(db *cache.DB) error) error {
	db := cache.NewDB(cfg.CachePath)
	if err := db.Open(); err != nil {
		return err
	}
	defer db.Close()
	return fn(db)
}

func renderStats(w io.Writer, path string, stats *cache.Stats) {
	updated := "never"
	if !stats.LastUpdated.IsZero() {
		updated = stats.LastUpdated.Local().Format("2006-01-02 15:04")
	}

	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	t.AppendRows([]table.Row{
		{"Path", path},
		{"Schema", stats.SchemaVersion},
		{"Tracks", stats.TrackCount},
		{"Lines", stats.LineCount},
		{"Last updated", updated},
	})
	t.Render()
}
