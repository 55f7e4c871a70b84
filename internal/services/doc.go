// Package services defines the [Service] interface for the chart upstream and implements it for Spotify.
//
// # Spotify Implementation
//
// [SpotifyService] authenticates with the OAuth2 client-credentials grant.
// The [clientcredentials.Config] client fetches and refreshes the app token on its own.
//
// Every request first waits on a [rate.Limiter] so the process never exceeds the configured requests per second.
//
// # Error Handling
//
// Non-2xx responses become typed errors that the retry client understands:
//   - [ErrRateLimited] : 429, carries the Retry-After hint
//   - [ErrTransient] : 5xx and network failures
//   - [ErrFatal] : 401/403 (wraps [shared.ErrAuthFailed]), 404 (wraps [shared.ErrNotFound]), other 4xx, token failures
//
// # API Mappings
//
// [SpotifyTrack.Meta] and [SpotifyAudioFeatures.Features] convert responses into [models.TrackMeta] and [models.AudioFeatures].
package services
