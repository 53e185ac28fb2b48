package main

import (
	"context"
	"fmt"
	"io"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/edumarques81/stellar-nowplaying/internal/domain/lyrics"
	"github.com/edumarques81/stellar-nowplaying/internal/infra/cache"
)

func newLyricsCmd(flags *globalFlags) *cobra.Command {
	var save bool

	cmd := &cobra.Command{
		Use:   "lyrics <trackId>",
		Short: "Look up the lyrics of a track",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, flags)
			if err != nil {
				return err
			}
			trackID := args[0]

			var chain lyrics.Chain
			var store *cache.LyricsStore
			db := cache.NewDB(cfg.CachePath)
			if err := db.Open(); err != nil {
				if save {
					return fmt.Errorf("open lyrics store: %w", err)
				}
				log.Warn().Err(err).Msg("Offline lyrics unavailable")
			} else {
				defer db.Close()
				store = cache.NewLyricsStore(db)
				chain.Offline = store
			}
			if cfg.Jellyfin.Enabled() {
				chain.Remote = newJellyfinClient(cfg.Jellyfin)
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), commandTimeout)
			defer cancel()

			l, ok := chain.Fetch(ctx, trackID)
			if !ok {
				return fmt.Errorf("no lyrics for %s", trackID)
			}
			printLyrics(cmd.OutOrStdout(), l)

			if save && store != nil {
				if err := store.Save(trackID, l); err != nil {
					return fmt.Errorf("save lyrics: %w", err)
				}
				log.Info().Str("track", trackID).Int("lines", len(l)).Msg("Lyrics saved for offline use")
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&save, "save", false, "Store the lyrics for offline use")
	return cmd
}

// printLyrics writes one "[mm:ss.cc] text" line per lyric in time order.
func printLyrics(w io.Writer, l lyrics.Lyrics) {
	for _, at := range l.Keys() {
		m := int(at) / 60
		s := at - float64(m*60)
		fmt.Fprintf(w, "[%02d:%05.2f] %s\n", m, s, l[at])
	}
}
