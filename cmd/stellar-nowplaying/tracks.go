package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/edumarques81/stellar-nowplaying/internal/domain/player"
)

const commandTimeout = 30 * time.Second

var errNoJellyfin = errors.New("jellyfin url and token are not configured")

func newTracksCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "tracks <albumId>",
		Short: "List the tracks of a Jellyfin album",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, flags)
			if err != nil {
				return err
			}
			if !cfg.Jellyfin.Enabled() {
				return errNoJellyfin
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), commandTimeout)
			defer cancel()

			tracks, err := newJellyfinClient(cfg.Jellyfin).Tracks(ctx, args[0])
			if err != nil {
				return fmt.Errorf("list tracks of %s: %w", args[0], err)
			}
			renderTracks(cmd.OutOrStdout(), tracks)
			return nil
		},
	}
}

func renderTracks(w io.Writer, tracks []player.Track) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"Disc", "#", "Title", "Artist", "Length", "ID"})

	var total float64
	for _, tr := range tracks {
		t.AppendRow(table.Row{tr.Disc, tr.Index, tr.Name, tr.ArtistName(), formatDuration(tr.Duration), tr.ID})
		total += tr.Duration
	}
	t.AppendFooter(table.Row{"", "", fmt.Sprintf("%d tracks", len(tracks)), "", formatDuration(total), ""})
	t.Render()
}

// formatDuration renders seconds as m:ss, or h:mm:ss from an hour up.
func formatDuration(seconds float64) string {
	if seconds <= 0 {
		return "-"
	}
	d := time.Duration(seconds * float64(time.Second)).Round(time.Second)
	h := int(d / time.Hour)
	m := int(d % time.Hour / time.Minute)
	s := int(d % time.Minute / time.Second)
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%d:%02d", m, s)
}
