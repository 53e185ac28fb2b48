package jellyfin

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/edumarques81/stellar-nowplaying/internal/domain/lyrics"
	"github.com/edumarques81/stellar-nowplaying/internal/domain/player"
	"github.com/edumarques81/stellar-nowplaying/internal/version"
)

const (
	// DefaultTimeout for HTTP requests
	DefaultTimeout = 15 * time.Second

	// DefaultDeviceName identifies this client in the Jellyfin dashboard
	DefaultDeviceName = "stellar-nowplaying"

	// MaxImageSize is the maximum cover size to download (10MB)
	MaxImageSize = 10 * 1024 * 1024

	imageSize = 800
)

// Client talks to a Jellyfin server on behalf of one user.
type Client struct {
	baseURL    string
	token      string
	userID     string
	deviceID   string
	deviceName string
	httpClient *http.Client
}

// Option is a functional option for configuring the client
type Option func(*Client)

// WithBaseURL sets the server URL
func WithBaseURL(u string) Option {
	return func(c *Client) {
		c.baseURL = strings.TrimRight(u, "/")
	}
}

// WithToken sets the access token
func WithToken(token string) Option {
	return func(c *Client) {
		c.token = token
	}
}

// WithUserID sets the user the library is browsed as
func WithUserID(id string) Option {
	return func(c *Client) {
		c.userID = id
	}
}

// WithDeviceID sets a stable device id; a random one is used otherwise
func WithDeviceID(id string) Option {
	return func(c *Client) {
		if id != "" {
			c.deviceID = id
		}
	}
}

// WithHTTPClient sets a custom HTTP client
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		c.httpClient = client
	}
}

// NewClient creates a new Jellyfin client
func NewClient(opts ...Option) *Client {
	c := &Client{
		deviceID:   uuid.NewString(),
		deviceName: DefaultDeviceName,
		httpClient: &http.Client{
			Timeout: DefaultTimeout,
		},
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// BaseURL returns the server URL.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Tracks lists the tracks of an album in disc/track order.
func (c *Client) Tracks(ctx context.Context, albumID string) ([]player.Track, error) {
	q := url.Values{}
	q.Set("ParentId", albumID)
	q.Set("IncludeItemTypes", "Audio")
	q.Set("Recursive", "true")
	q.Set("SortBy", "ParentIndexNumber,IndexNumber,SortName")
	q.Set("Fields", "AudioInfo,ParentId,MediaSources")

	var resp TracksItemResponse
	if err := c.get(ctx, "/Users/"+url.PathEscape(c.userID)+"/Items", q, &resp); err != nil {
		return nil, fmt.Errorf("tracks of %s: %w", albumID, err)
	}

	return c.convert(resp.Items), nil
}

// InstantMix returns up to limit tracks similar to trackID.
func (c *Client) InstantMix(ctx context.Context, trackID string, limit int) ([]player.Track, error) {
	q := url.Values{}
	q.Set("UserId", c.userID)
	q.Set("Limit", strconv.Itoa(limit))
	q.Set("Fields", "AudioInfo,MediaSources")

	var resp TracksItemResponse
	if err := c.get(ctx, "/Items/"+url.PathEscape(trackID)+"/InstantMix", q, &resp); err != nil {
		return nil, fmt.Errorf("instant mix for %s: %w", trackID, err)
	}

	return c.convert(resp.Items), nil
}

// Lyrics fetches the lyrics of trackID. Unsynced lyrics are keyed by line number.
func (c *Client) Lyrics(ctx context.Context, trackID string) (lyrics.Lyrics, error) {
	var resp LyricsResponse
	if err := c.get(ctx, "/Audio/"+url.PathEscape(trackID)+"/Lyrics", nil, &resp); err != nil {
		return nil, fmt.Errorf("lyrics of %s: %w", trackID, err)
	}
	if len(resp.Lyrics) == 0 {
		return nil, nil
	}

	synced := false
	for _, line := range resp.Lyrics {
		if line.Start != nil {
			synced = true
			break
		}
	}

	l := make(lyrics.Lyrics, len(resp.Lyrics))
	for i, line := range resp.Lyrics {
		key := float64(i)
		if synced {
			if line.Start == nil {
				continue
			}
			key = float64(*line.Start) / ticksPerSecond
		}
		l[key] = line.Text
	}
	return l, nil
}

// Image downloads an image from the server.
func (c *Client) Image(ctx context.Context, imageURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, imageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "image/*")
	if strings.HasPrefix(imageURL, c.baseURL) {
		req.Header.Set("Authorization", c.authorization())
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	if err := checkStatus(resp); err != nil {
		return nil, err
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, MaxImageSize))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if len(data) == 0 {
		return nil, ErrNotFound
	}
	return data, nil
}

// ImageURL returns the primary image URL of an item.
func (c *Client) ImageURL(itemID string) string {
	q := url.Values{}
	q.Set("fillWidth", strconv.Itoa(imageSize))
	q.Set("fillHeight", strconv.Itoa(imageSize))
	q.Set("quality", "90")
	return c.baseURL + "/Items/" + url.PathEscape(itemID) + "/Images/Primary?" + q.Encode()
}

// StreamURL returns a direct stream URL MPD can play.
func (c *Client) StreamURL(trackID string) string {
	return c.streamURL(trackID, "")
}

func (c *Client) streamURL(trackID, container string) string {
	q := url.Values{}
	q.Set("static", "true")
	q.Set("api_key", c.token)
	q.Set("deviceId", c.deviceID)
	if container != "" {
		q.Set("container", container)
	}
	return c.baseURL + "/Audio/" + url.PathEscape(trackID) + "/stream?" + q.Encode()
}

// TrackIDFromURI extracts the item id from a stream URL of this server.
func (c *Client) TrackIDFromURI(uri string) (string, bool) {
	if c.baseURL == "" {
		return "", false
	}
	prefix := c.baseURL + "/Audio/"
	if !strings.HasPrefix(uri, prefix) {
		return "", false
	}
	rest := strings.TrimPrefix(uri, prefix)
	id, _, _ := strings.Cut(rest, "/")
	id, _, _ = strings.Cut(id, "?")
	if id == "" {
		return "", false
	}
	if unescaped, err := url.PathUnescape(id); err == nil {
		id = unescaped
	}
	return id, true
}

func (c *Client) convert(items []JellyfinTrackItem) []player.Track {
	tracks := make([]player.Track, 0, len(items))
	for _, item := range items {
		tracks = append(tracks, item.toTrack(c.streamURL, c.ImageURL))
	}
	return tracks
}

// authorization builds the MediaBrowser authorization header.
func (c *Client) authorization() string {
	parts := []string{
		fmt.Sprintf("Client=%q", version.Name),
		fmt.Sprintf("Device=%q", c.deviceName),
		fmt.Sprintf("DeviceId=%q", c.deviceID),
		fmt.Sprintf("Version=%q", version.Version),
	}
	if c.token != "" {
		parts = append(parts, fmt.Sprintf("Token=%q", c.token))
	}
	return "MediaBrowser " + strings.Join(parts, ", ")
}

func (c *Client) get(ctx context.Context, path string, query url.Values, v any) error {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	return c.do(ctx, http.MethodGet, u, nil, v)
}

func (c *Client) post(ctx context.Context, path string, body any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encode body: %w", err)
	}
	return c.do(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(data), nil)
}

func (c *Client) do(ctx context.Context, method, u string, body io.Reader, v any) error {
	req, err := http.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Authorization", c.authorization())
	req.Header.Set("User-Agent", version.UserAgent())
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	log.Debug().Str("method", method).Str("url", redact(u)).Msg("Jellyfin request")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	if err := checkStatus(resp); err != nil {
		return err
	}

	if v == nil {
		io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func checkStatus(resp *http.Response) error {
	switch resp.StatusCode {
	case http.StatusOK, http.StatusNoContent:
		return nil
	case http.StatusUnauthorized, http.StatusForbidden:
		return ErrUnauthorized
	case http.StatusNotFound:
		return ErrNotFound
	case http.StatusTooManyRequests, http.StatusServiceUnavailable, http.StatusBadGateway, http.StatusGatewayTimeout:
		return fmt.Errorf("%w: status %d", ErrTemporaryFailure, resp.StatusCode)
	default:
		return fmt.Errorf("unexpected status: %d", resp.StatusCode)
	}
}

// redact hides the api key in logged URLs.
func redact(u string) string {
	parsed, err := url.Parse(u)
	if err != nil {
		return u
	}
	q := parsed.Query()
	if q.Has("api_key") {
		q.Set("api_key", "***")
		parsed.RawQuery = q.Encode()
	}
	return parsed.String()
}
