// Package config loads the daemon configuration from a TOML file, an optional
// .env file and the environment.
package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	toml "github.com/pelletier/go-toml/v2"
)

const (
	defaultConfigPath = "~/.config/stellar-nowplaying/config.toml"
	defaultCachePath  = "~/.local/share/stellar-nowplaying/cache.db"
	defaultListen     = ":3001"
	defaultMPDHost    = "localhost"
	defaultMPDPort    = 6600
	defaultDeviceID   = "stellar-nowplaying"

	defaultTick              = 250 * time.Millisecond
	defaultReportInterval    = 10 * time.Second
	defaultScrollTimeout     = 4 * time.Second
	defaultBroadcastDebounce = 50 * time.Millisecond
)

// Environment variables that override file values.
const (
	EnvJellyfinToken = "STELLAR_JELLYFIN_TOKEN"
	EnvJellyfinURL   = "STELLAR_JELLYFIN_URL"
	EnvJellyfinUser  = "STELLAR_JELLYFIN_USER"
	EnvMPDPassword   = "STELLAR_MPD_PASSWORD"
)

// Config is the resolved daemon configuration.
type Config struct {
	Listen string
	Debug  bool

	MPD      MPD
	Jellyfin Jellyfin

	CachePath string

	Tick           time.Duration
	ReportInterval time.Duration

	ScrollTimeout     time.Duration
	BroadcastDebounce time.Duration

	MPRIS bool
}

// MPD locates the MPD server.
type MPD struct {
	Host     string
	Port     int
	Password string
}

// Jellyfin holds the media server credentials.
type Jellyfin struct {
	URL      string
	Token    string
	UserID   string
	DeviceID string
}

// Enabled reports whether enough is set to talk to the server.
func (j Jellyfin) Enabled() bool {
	return j.URL != "" && j.Token != ""
}

// Default returns the configuration used when no file exists.
func Default() Config {
	return Config{
		Listen:            defaultListen,
		MPD:               MPD{Host: defaultMPDHost, Port: defaultMPDPort},
		Jellyfin:          Jellyfin{DeviceID: defaultDeviceID},
		CachePath:         mustExpand(defaultCachePath),
		Tick:              defaultTick,
		ReportInterval:    defaultReportInterval,
		ScrollTimeout:     defaultScrollTimeout,
		BroadcastDebounce: defaultBroadcastDebounce,
		MPRIS:             true,
	}
}

type rawConfig struct {
	Listen string `toml:"listen"`
	Debug  bool   `toml:"debug"`
	MPD    struct {
		Host     string `toml:"host"`
		Port     int    `toml:"port"`
		Password string `toml:"password"`
	} `toml:"mpd"`
	Jellyfin struct {
		URL      string `toml:"url"`
		Token    string `toml:"token"`
		UserID   string `toml:"user_id"`
		DeviceID string `toml:"device_id"`
	} `toml:"jellyfin"`
	Cache struct {
		Path string `toml:"path"`
	} `toml:"cache"`
	Playback struct {
		TickMS          int `toml:"tick_ms"`
		ReportIntervalS int `toml:"report_interval_s"`
	} `toml:"playback"`
	NowPlaying struct {
		ScrollTimeoutMS     int `toml:"scroll_timeout_ms"`
		BroadcastDebounceMS int `toml:"broadcast_debounce_ms"`
	} `toml:"nowplaying"`
	Display struct {
		MPRIS *bool `toml:"mpris"`
	} `toml:"display"`
}

// Load reads the config at path, falling back to defaults when it is missing,
// then applies environment overrides. An empty path means the default location.
func Load(path string) (Config, error) {
	resolved, err := resolvePath(path)
	if err != nil {
		return Config{}, err
	}

	cfg, err := loadFile(resolved)
	if err != nil {
		return Config{}, err
	}
	applyEnv(&cfg)
	return cfg, nil
}

// LoadDotEnv loads a .env file from the working directory into the process
// environment. Variables already set win. A missing file is not an error.
func LoadDotEnv() error {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("load .env: %w", err)
	}
	return nil
}

func loadFile(path string) (Config, error) {
	cfg := Default()

	file, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return Config{}, fmt.Errorf("open config: %w", err)
	}
	defer file.Close()

	bytes, err := io.ReadAll(file)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}

	var raw rawConfig
	if err := toml.Unmarshal(bytes, &raw); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}

	cfg.Listen = orDefault(raw.Listen, defaultListen)
	cfg.Debug = raw.Debug

	cfg.MPD.Host = orDefault(raw.MPD.Host, defaultMPDHost)
	if raw.MPD.Port > 0 {
		cfg.MPD.Port = raw.MPD.Port
	}
	cfg.MPD.Password = strings.TrimSpace(raw.MPD.Password)

	cfg.Jellyfin.URL = strings.TrimRight(strings.TrimSpace(raw.Jellyfin.URL), "/")
	cfg.Jellyfin.Token = strings.TrimSpace(raw.Jellyfin.Token)
	cfg.Jellyfin.UserID = strings.TrimSpace(raw.Jellyfin.UserID)
	cfg.Jellyfin.DeviceID = orDefault(raw.Jellyfin.DeviceID, defaultDeviceID)

	cfg.CachePath = mustExpand(orDefault(raw.Cache.Path, defaultCachePath))

	if raw.Playback.TickMS > 0 {
		cfg.Tick = time.Duration(raw.Playback.TickMS) * time.Millisecond
	}
	if raw.Playback.ReportIntervalS > 0 {
		cfg.ReportInterval = time.Duration(raw.Playback.ReportIntervalS) * time.Second
	}
	if raw.NowPlaying.ScrollTimeoutMS > 0 {
		cfg.ScrollTimeout = time.Duration(raw.NowPlaying.ScrollTimeoutMS) * time.Millisecond
	}
	if raw.NowPlaying.BroadcastDebounceMS > 0 {
		cfg.BroadcastDebounce = time.Duration(raw.NowPlaying.BroadcastDebounceMS) * time.Millisecond
	}
	if raw.Display.MPRIS != nil {
		cfg.MPRIS = *raw.Display.MPRIS
	}

	return cfg, nil
}

func applyEnv(cfg *Config) {
	if v := strings.TrimSpace(os.Getenv(EnvJellyfinToken)); v != "" {
		cfg.Jellyfin.Token = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvJellyfinURL)); v != "" {
		cfg.Jellyfin.URL = strings.TrimRight(v, "/")
	}
	if v := strings.TrimSpace(os.Getenv(EnvJellyfinUser)); v != "" {
		cfg.Jellyfin.UserID = v
	}
	if v := os.Getenv(EnvMPDPassword); v != "" {
		cfg.MPD.Password = v
	}
}

func orDefault(v, def string) string {
	v = strings.TrimSpace(v)
	if v == "" {
		return def
	}
	return v
}

func resolvePath(path string) (string, error) {
	if strings.TrimSpace(path) == "" {
		return expandPath(defaultConfigPath)
	}
	return expandPath(path)
}

func mustExpand(path string) string {
	expanded, err := expandPath(path)
	if err != nil {
		return path
	}
	return expanded
}

func expandPath(path string) (string, error) {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return "", fmt.Errorf("path is empty")
	}
	if strings.HasPrefix(trimmed, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home dir: %w", err)
		}
		trimmed = filepath.Join(home, strings.TrimPrefix(trimmed, "~"))
	}
	return filepath.Abs(trimmed)
}
