// Package main is the entry point for the Stellar now-playing daemon.
package main

import (
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/edumarques81/stellar-nowplaying/internal/config"
	"github.com/edumarques81/stellar-nowplaying/internal/version"
)

// globalFlags are shared by every subcommand and override the config file.
type globalFlags struct {
	configPath string
	debug      bool
	listen     string
	mpdHost    string
	mpdPort    int
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	flags := &globalFlags{}

	root := &cobra.Command{
		Use:          "stellar-nowplaying",
		Short:        "Now-playing state daemon for Stellar players",
		Version:      version.GetInfo().String(),
		SilenceUsage: true,
	}

	pf := root.PersistentFlags()
	pf.StringVar(&flags.configPath, "config", "", "Config file (default ~/.config/stellar-nowplaying/config.toml)")
	pf.BoolVar(&flags.debug, "debug", false, "Enable debug logging")
	pf.StringVar(&flags.listen, "listen", "", "HTTP listen address")
	pf.StringVar(&flags.mpdHost, "mpd-host", "", "MPD host")
	pf.IntVar(&flags.mpdPort, "mpd-port", 0, "MPD port")

	root.AddCommand(
		newServeCmd(flags),
		newTracksCmd(flags),
		newLyricsCmd(flags),
		newCacheCmd(flags),
		newVersionCmd(),
	)
	return root
}

// loadConfig resolves the config file, .env and flags, then sets up logging.
func loadConfig(cmd *cobra.Command, flags *globalFlags) (config.Config, error) {
	if err := config.LoadDotEnv(); err != nil {
		log.Warn().Err(err).Msg("Ignoring .env")
	}

	cfg, err := config.Load(flags.configPath)
	if err != nil {
		return config.Config{}, fmt.Errorf("load config: %w", err)
	}
	applyFlags(cmd, flags, &cfg)
	setupLogging(cfg.Debug)
	return cfg, nil
}

func applyFlags(cmd *cobra.Command, flags *globalFlags, cfg *config.Config) {
	changed := cmd.Flags().Changed
	if changed("debug") {
		cfg.Debug = flags.debug
	}
	if changed("listen") && flags.listen != "" {
		cfg.Listen = flags.listen
	}
	if changed("mpd-host") && flags.mpdHost != "" {
		cfg.MPD.Host = flags.mpdHost
	}
	if changed("mpd-port") && flags.mpdPort > 0 {
		cfg.MPD.Port = flags.mpdPort
	}
}

func setupLogging(debug bool) {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	if debug {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	} else {
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), version.GetInfo().String())
		},
	}
}
