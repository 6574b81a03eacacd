// Package services talks to the Spotify Web API.
//
// # Fetcher
//
// [Fetcher] performs a single authenticated GET against an absolute API address and
// classifies the response status. It keeps no state between calls and never retries;
// callers inspect failures with errors.Is against the shared sentinels or errors.As
// against [*FetchError]:
//   - 200, 304 : success
//   - 401 : [OutcomeAuthExpired], unwraps to [shared.ErrTokenExpired]
//   - 429 : [OutcomeRateLimited], unwraps to [shared.ErrRateLimited]
//   - other : [OutcomeUnclassified], unwraps to [shared.ErrAPIRequest]
//
// # Library
//
// [Library] lists the current user's playlists through github.com/zmb3/spotify/v2
// with a static bearer token. It produces the [models.PlaylistRef] values the export
// pipeline consumes.
//
// # Response Types
//
// [PlaylistItemsPage] and [ArtistObject] mirror the subset of the Web API payloads the
// exporter reads. [PlaylistItem.Row] converts a listing item into a [models.TrackRow].
package services
