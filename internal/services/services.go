// package services defines interface Service for the chart data HTTP API
package services

import (
	"context"
)

// Service is the upstream the fetcher reads charts from.
type Service interface {
	// PlaylistTracks returns the playlist's current listing in chart order.
	// Items may carry a nil Track when the upstream has removed it.
	PlaylistTracks(ctx context.Context, playlistID string) ([]SpotifyPlaylistTrack, error)

	// AudioFeatures returns one entry per id, in the same order. Entries are nil when unavailable.
	AudioFeatures(ctx context.Context, trackIDs []string) ([]*SpotifyAudioFeatures, error)

	// Artist retrieves a single artist, including genres.
	Artist(ctx context.Context, artistID string) (*SpotifyArtist, error)

	// Name returns the name of the service (e.g., "Spotify")
	Name() string
}
