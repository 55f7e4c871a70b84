// Spotify API implementation of [Service]
//
// Spotify API response types based on https://developer.spotify.com/documentation/web-api/reference/
package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/chartx/internal/metrics"
	"github.com/desertthunder/chartx/internal/models"
	"github.com/desertthunder/chartx/internal/shared"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
	"golang.org/x/time/rate"
)

const (
	spotifyTokenURL = "https://accounts.spotify.com/api/token"
	spotifyBaseURL  = "https://api.spotify.com/v1"

	// MaxAudioFeatureIDs is the upstream limit for one audio-features request.
	MaxAudioFeatureIDs = 100
)

// SpotifyImage represents an image resource.
type SpotifyImage struct {
	URL    string `json:"url"`
	Height int    `json:"height"`
	Width  int    `json:"width"`
}

// SpotifyTrack represents a Spotify track.
type SpotifyTrack struct {
	ID         string          `json:"id"`
	Name       string          `json:"name"`
	Artists    []SpotifyArtist `json:"artists"`
	Album      SpotifyAlbum    `json:"album"`
	DurationMS int             `json:"duration_ms"`
	Popularity int             `json:"popularity"`
	URI        string          `json:"uri"`
}

// SpotifyArtist represents a Spotify artist. Simplified artist objects inside tracks carry no genres.
type SpotifyArtist struct {
	ID     string   `json:"id"`
	Name   string   `json:"name"`
	Genres []string `json:"genres"`
	URI    string   `json:"uri"`
}

// SpotifyAlbum represents a Spotify album.
type SpotifyAlbum struct {
	ID          string         `json:"id"`
	Name        string         `json:"name"`
	ReleaseDate string         `json:"release_date"`
	Images      []SpotifyImage `json:"images"`
}

// SpotifyPlaylistTrack represents a track within a playlist context. Track is nil for removed entries.
type SpotifyPlaylistTrack struct {
	AddedAt string        `json:"added_at"`
	Track   *SpotifyTrack `json:"track"`
}

type playlistTracks struct {
	Total int                    `json:"total"`
	Items []SpotifyPlaylistTrack `json:"items"`
}

type owner struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
}

// SpotifyPlaylist represents a Spotify playlist.
type SpotifyPlaylist struct {
	ID          string         `json:"id"`
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Owner       owner          `json:"owner"`
	Tracks      playlistTracks `json:"tracks"`
}

// SpotifyAudioFeatures represents the audio analysis summary for one track.
type SpotifyAudioFeatures struct {
	ID               string  `json:"id"`
	Danceability     float64 `json:"danceability"`
	Energy           float64 `json:"energy"`
	Key              int     `json:"key"`
	Loudness         float64 `json:"loudness"`
	Mode             int     `json:"mode"`
	Speechiness      float64 `json:"speechiness"`
	Acousticness     float64 `json:"acousticness"`
	Instrumentalness float64 `json:"instrumentalness"`
	Liveness         float64 `json:"liveness"`
	Valence          float64 `json:"valence"`
	Tempo            float64 `json:"tempo"`
	DurationMS       int     `json:"duration_ms"`
}

type spotifyError struct {
	Error struct {
		Status  int    `json:"status"`
		Message string `json:"message"`
	} `json:"error"`
}

// Meta converts the track into listing metadata.
func (t SpotifyTrack) Meta() models.TrackMeta {
	artists := make([]string, 0, len(t.Artists))
	for _, a := range t.Artists {
		artists = append(artists, a.Name)
	}

	var art *string
	if len(t.Album.Images) > 0 {
		u := t.Album.Images[0].URL
		art = &u
	}

	return models.TrackMeta{
		Title:       t.Name,
		Artists:     artists,
		Album:       t.Album.Name,
		ReleaseDate: t.Album.ReleaseDate,
		Popularity:  t.Popularity,
		AlbumArtURL: art,
	}
}

// PrimaryArtistID returns the first credited artist's id, or "" when there is none.
func (t SpotifyTrack) PrimaryArtistID() string {
	if len(t.Artists) == 0 {
		return ""
	}
	return t.Artists[0].ID
}

// Features converts the response into the subset carried by chart records.
func (f SpotifyAudioFeatures) Features() models.AudioFeatures {
	return models.AudioFeatures{
		Danceability:     f.Danceability,
		Energy:           f.Energy,
		Key:              f.Key,
		Tempo:            f.Tempo,
		Acousticness:     f.Acousticness,
		Instrumentalness: f.Instrumentalness,
		Liveness:         f.Liveness,
		Valence:          f.Valence,
	}
}

// SpotifyOpts configures a [SpotifyService]. Empty URLs default to the public Spotify endpoints.
type SpotifyOpts struct {
	ClientID          string
	ClientSecret      string
	BaseURL           string
	TokenURL          string
	RequestsPerSecond float64
	Timeout           time.Duration
	HTTPClient        *http.Client // base transport for token and API calls
	Logger            *log.Logger
	Metrics           *metrics.Metrics
}

// SpotifyService implements the Service interface for Spotify API interactions.
// Uses [clientcredentials] for app-only authentication.
type SpotifyService struct {
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
	logger     *log.Logger
	metrics    *metrics.Metrics
}

// NewSpotifyService creates a new Spotify service with the given client credentials.
//
// The token is fetched lazily on the first request.
func NewSpotifyService(ctx context.Context, opts SpotifyOpts) (*SpotifyService, error) {
	if opts.ClientID == "" {
		return nil, fmt.Errorf("%w: missing client_id", shared.ErrMissingCredentials)
	}
	if opts.ClientSecret == "" {
		return nil, fmt.Errorf("%w: missing client_secret", shared.ErrMissingCredentials)
	}

	if opts.BaseURL == "" {
		opts.BaseURL = spotifyBaseURL
	}
	if opts.TokenURL == "" {
		opts.TokenURL = spotifyTokenURL
	}
	if opts.RequestsPerSecond <= 0 {
		opts.RequestsPerSecond = 10
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	if opts.HTTPClient != nil {
		ctx = context.WithValue(ctx, oauth2.HTTPClient, opts.HTTPClient)
	}

	config := &clientcredentials.Config{
		ClientID:     opts.ClientID,
		ClientSecret: opts.ClientSecret,
		TokenURL:     opts.TokenURL,
	}

	client := config.Client(ctx)
	client.Timeout = opts.Timeout

	return &SpotifyService{
		baseURL:    strings.TrimRight(opts.BaseURL, "/"),
		httpClient: client,
		limiter:    rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), 1),
		logger:     opts.Logger,
		metrics:    opts.Metrics,
	}, nil
}

func (s *SpotifyService) Name() string {
	return "Spotify"
}

// doRequest performs an authenticated GET against the Spotify API and decodes the JSON body into result.
func (s *SpotifyService) doRequest(ctx context.Context, label, endpoint string, result any) error {
	if err := s.limiter.Wait(ctx); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return ErrTransient{Err: fmt.Errorf("rate limiter: %w", err)}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+endpoint, nil)
	if err != nil {
		return ErrFatal{Err: fmt.Errorf("failed to create request: %w", err)}
	}
	req.Header.Set("Accept", "application/json")

	started := time.Now()
	resp, err := s.httpClient.Do(req)
	if err != nil {
		s.metrics.ObserveRequest(label, "error", time.Since(started))
		return transportError(ctx, err)
	}
	defer resp.Body.Close()

	s.metrics.ObserveRequest(label, strconv.Itoa(resp.StatusCode), time.Since(started))
	s.logger.Debug("spotify request", "op", label, "status", resp.StatusCode, "elapsed", time.Since(started))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return statusError(resp)
	}

	if result != nil {
		if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
			return ErrTransient{Status: resp.StatusCode, Err: fmt.Errorf("%w: failed to decode response: %w", shared.ErrAPIRequest, err)}
		}
	}

	return nil
}

func transportError(ctx context.Context, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}

	var retrieve *oauth2.RetrieveError
	if errors.As(err, &retrieve) {
		status := 0
		if retrieve.Response != nil {
			status = retrieve.Response.StatusCode
		}
		return ErrFatal{Status: status, Err: fmt.Errorf("%w: token request rejected: %w", shared.ErrAuthFailed, err)}
	}

	return ErrTransient{Err: fmt.Errorf("%w: %w", shared.ErrAPIRequest, err)}
}

func statusError(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))

	msg := http.StatusText(resp.StatusCode)
	var apiErr spotifyError
	if json.Unmarshal(body, &apiErr) == nil && apiErr.Error.Message != "" {
		msg = apiErr.Error.Message
	}
	cause := fmt.Errorf("%w: status %d: %s", shared.ErrAPIRequest, resp.StatusCode, msg)

	switch code := resp.StatusCode; {
	case code == http.StatusTooManyRequests:
		return ErrRateLimited{Wait: parseRetryAfter(resp.Header.Get("Retry-After")), Err: cause}
	case code == http.StatusUnauthorized || code == http.StatusForbidden:
		return ErrFatal{Status: code, Err: fmt.Errorf("%w: %w", shared.ErrAuthFailed, cause)}
	case code == http.StatusNotFound:
		return ErrFatal{Status: code, Err: fmt.Errorf("%w: %w", shared.ErrNotFound, cause)}
	case code >= 500:
		return ErrTransient{Status: code, Err: cause}
	default:
		return ErrFatal{Status: code, Err: cause}
	}
}

// parseRetryAfter reads a delay-seconds Retry-After value. Anything else yields zero.
func parseRetryAfter(v string) time.Duration {
	secs, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil || secs < 0 {
		return 0
	}
	return time.Duration(secs) * time.Second
}

// Playlist retrieves a playlist by ID.
func (s *SpotifyService) Playlist(ctx context.Context, playlistID string) (*SpotifyPlaylist, error) {
	endpoint := fmt.Sprintf("/playlists/%s", url.PathEscape(playlistID))

	var playlist SpotifyPlaylist
	if err := s.doRequest(ctx, "playlist", endpoint, &playlist); err != nil {
		return nil, err
	}

	return &playlist, nil
}

// Verify checks that the credentials can read the playlist and returns its name.
func (s *SpotifyService) Verify(ctx context.Context, playlistID string) (string, error) {
	playlist, err := s.Playlist(ctx, playlistID)
	if err != nil {
		s.logger.Error("credential check failed", "playlist", playlistID, "error_type", errorTypeLabel(err), "error", err)
		return "", err
	}
	return playlist.Name, nil
}

// PlaylistTracks retrieves the playlist's current track listing.
func (s *SpotifyService) PlaylistTracks(ctx context.Context, playlistID string) ([]SpotifyPlaylistTrack, error) {
	endpoint := fmt.Sprintf("/playlists/%s/tracks", url.PathEscape(playlistID))

	var response playlistTracks
	if err := s.doRequest(ctx, "playlist_tracks", endpoint, &response); err != nil {
		return nil, err
	}

	return response.Items, nil
}

// AudioFeatures retrieves audio features for up to [MaxAudioFeatureIDs] tracks.
func (s *SpotifyService) AudioFeatures(ctx context.Context, trackIDs []string) ([]*SpotifyAudioFeatures, error) {
	if len(trackIDs) == 0 {
		return nil, ErrFatal{Err: fmt.Errorf("%w: no track IDs provided", shared.ErrInvalidArgument)}
	}
	if len(trackIDs) > MaxAudioFeatureIDs {
		return nil, ErrFatal{Err: fmt.Errorf("%w: maximum %d track IDs allowed", shared.ErrInvalidArgument, MaxAudioFeatureIDs)}
	}

	ids := make([]string, len(trackIDs))
	for i, id := range trackIDs {
		ids[i] = url.QueryEscape(id)
	}
	endpoint := "/audio-features?ids=" + strings.Join(ids, ",")

	var response struct {
		AudioFeatures []*SpotifyAudioFeatures `json:"audio_features"`
	}
	if err := s.doRequest(ctx, "audio_features", endpoint, &response); err != nil {
		return nil, err
	}

	return response.AudioFeatures, nil
}

// Artist retrieves an artist by ID.
func (s *SpotifyService) Artist(ctx context.Context, artistID string) (*SpotifyArtist, error) {
	endpoint := fmt.Sprintf("/artists/%s", url.PathEscape(artistID))

	var artist SpotifyArtist
	if err := s.doRequest(ctx, "artist", endpoint, &artist); err != nil {
		return nil, err
	}

	return &artist, nil
}
