package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/edumarques81/stellar-nowplaying/internal/config"
	"github.com/edumarques81/stellar-nowplaying/internal/domain/lyrics"
	"github.com/edumarques81/stellar-nowplaying/internal/domain/nowplaying"
	"github.com/edumarques81/stellar-nowplaying/internal/domain/playback"
	"github.com/edumarques81/stellar-nowplaying/internal/domain/player"
	"github.com/edumarques81/stellar-nowplaying/internal/domain/visuals"
	"github.com/edumarques81/stellar-nowplaying/internal/infra/bus"
	"github.com/edumarques81/stellar-nowplaying/internal/infra/cache"
	"github.com/edumarques81/stellar-nowplaying/internal/infra/jellyfin"
	"github.com/edumarques81/stellar-nowplaying/internal/infra/mpd"
	"github.com/edumarques81/stellar-nowplaying/internal/infra/mpris"
	"github.com/edumarques81/stellar-nowplaying/internal/infra/uiloop"
	"github.com/edumarques81/stellar-nowplaying/internal/transport/socketio"
	"github.com/edumarques81/stellar-nowplaying/internal/version"
)

const mprisName = "stellar"

func newServeCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the now-playing daemon",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, flags)
			if err != nil {
				return err
			}
			return serve(cfg)
		},
	}
}

func serve(cfg config.Config) error {
	// Print startup banner
	log.Info().Msg("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
	log.Info().Msgf("  %s", version.GetInfo().String())
	log.Info().Msg("  Now Playing Daemon")
	log.Info().Msg("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
	log.Info().
		Str("listen", cfg.Listen).
		Str("mpd_host", cfg.MPD.Host).
		Int("mpd_port", cfg.MPD.Port).
		Bool("password_set", cfg.MPD.Password != "").
		Bool("jellyfin", cfg.Jellyfin.Enabled()).
		Bool("mpris", cfg.MPRIS).
		Dur("tick", cfg.Tick).
		Msg("Configuration")

	// MPD
	mpdClient := mpd.NewClient(cfg.MPD.Host, cfg.MPD.Port, cfg.MPD.Password)
	if err := mpdClient.Connect(); err != nil {
		return fmt.Errorf("connect to MPD: %w", err)
	}
	defer mpdClient.Close()

	if err := mpdClient.Ping(); err != nil {
		return fmt.Errorf("MPD ping: %w", err)
	}
	log.Info().Msg("MPD connection verified")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	loopCtx, stopLoop := context.WithCancel(context.Background())
	defer stopLoop()

	notifications := bus.New()
	defer notifications.Close()
	loop := uiloop.New(uiloop.DefaultQueueSize)
	go loop.Run(loopCtx)

	// Player
	var jf *jellyfin.Client
	var serviceOpts []player.ServiceOption
	if cfg.Jellyfin.Enabled() {
		jf = newJellyfinClient(cfg.Jellyfin)
		serviceOpts = append(serviceOpts, player.WithLibrary(jf))
	}

	var service *player.Service
	engine := mpd.NewEngine(mpdClient, mpdClient, mpd.WithFormatHook(func(format string) {
		service.ObserveAudioFormat(format)
	}))
	serviceOpts = append(serviceOpts, player.WithSeeker(engine))
	service = player.NewService(mpdClient, notifications, serviceOpts...)

	// Playback sampler
	display := newDisplay(cfg.MPRIS, service)
	samplerOpts := []playback.Option{
		playback.WithInterval(cfg.Tick),
		playback.WithDisplay(display),
		playback.WithSequencer(service),
		playback.WithTransport(engine),
		playback.WithMetadata(playback.PlayerMetadata{Player: service}),
	}
	var reporter *jellyfin.Reporter
	if jf != nil {
		reporter = jellyfin.NewReporter(jf, cfg.ReportInterval)
		samplerOpts = append(samplerOpts, playback.WithReporter(reporter))
	}
	sampler := playback.NewSampler(engine, notifications, samplerOpts...)
	service.SetStatusReader(sampler)
	service.OnItemFinished(sampler.HandleItemFinished)

	// Lyrics
	var chain lyrics.Chain
	var store *cache.LyricsStore
	db := cache.NewDB(cfg.CachePath)
	if err := db.Open(); err != nil {
		log.Warn().Err(err).Msg("Offline lyrics disabled")
	} else {
		defer db.Close()
		if stats, err := db.Stats(); err == nil {
			log.Info().Int("tracks", stats.TrackCount).Int("lines", stats.LineCount).Msg("Offline lyrics available")
		}
		var storeOpts []cache.StoreOption
		if jf != nil {
			storeOpts = append(storeOpts, cache.WithRefresher(jf))
		}
		store = cache.NewLyricsStore(db, storeOpts...)
		chain.Offline = store
	}
	if jf != nil {
		chain.Remote = jf
	}

	// Covers
	loader := visuals.Loader{Local: mpdClient}
	if jf != nil {
		loader.Remote = jf
	}

	// Now playing
	synchronizer := nowplaying.New(service, notifications, loop,
		nowplaying.WithLyrics(chain),
		nowplaying.WithColors(visuals.NewExtractor(loader)),
		nowplaying.WithScrollTimeout(cfg.ScrollTimeout),
	)
	synchronizer.Start()

	socketServer, err := socketio.NewServer(synchronizer, service,
		socketio.WithInterrupter(sampler),
		socketio.WithDebounce(cfg.BroadcastDebounce, 0),
	)
	if err != nil {
		return fmt.Errorf("create Socket.io server: %w", err)
	}

	if err := service.StartWatcher(ctx); err != nil {
		return fmt.Errorf("start MPD watcher: %w", err)
	}
	go sampler.Run(ctx)

	server := &http.Server{
		Addr:         cfg.Listen,
		Handler:      corsMiddleware(newMux(socketServer, mpdClient, mpdClient, synchronizer)),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	// Graceful shutdown
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh

		log.Info().Msg("Shutting down...")
		cancel()
		sampler.HandleTermination()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("Server shutdown error")
		}
	}()

	log.Info().Str("addr", cfg.Listen).Msg("HTTP server listening")
	if err := server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("HTTP server: %w", err)
	}

	socketServer.Close()
	synchronizer.Close()
	stopLoop()
	if reporter != nil {
		reporter.Wait()
	}
	if store != nil {
		store.Wait()
	}
	if d, ok := display.(*mpris.Display); ok {
		d.Close()
	}

	log.Info().Msg("Server stopped")
	return nil
}

func newJellyfinClient(cfg config.Jellyfin) *jellyfin.Client {
	return jellyfin.NewClient(
		jellyfin.WithBaseURL(cfg.URL),
		jellyfin.WithToken(cfg.Token),
		jellyfin.WithUserID(cfg.UserID),
		jellyfin.WithDeviceID(cfg.DeviceID),
	)
}

// newDisplay exports the MPRIS player, or logs track changes when there is
// no session bus.
func newDisplay(enabled bool, controls mpris.Controls) playback.Display {
	if enabled {
		d, err := mpris.Export(mprisName, controls)
		if err == nil {
			return d
		}
		log.Warn().Err(err).Msg("MPRIS unavailable, logging now playing instead")
	}
	return &mpris.LogDisplay{}
}
