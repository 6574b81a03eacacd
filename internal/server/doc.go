// Package server provides HTTP routing, middleware, and the playlist download handler.
//
// # Router Infrastructure
//
// The [Router] interface defines HTTP routing with middleware support.
//
// [Middleware] wraps handlers in reverse order (last added executes first), following the standard Go pattern.
//
// The [BasicRouter] implementation uses [http.ServeMux] internally with method filtering.
//
// # Download Handler
//
// [ExportHandler] serves exports to callers that hold their own Spotify bearer token,
// sent in the Authorization header of every request:
//   - GET /playlists : the caller's playlists as JSON
//   - GET /playlists/{id}/export : one playlist as a CSV attachment
//   - GET /export : every playlist (or those named by ?ids=a,b) as a zip attachment
//
// Failed playlists in a bundle are listed in the X-Export-Failures header while the rest
// are still delivered. Pipeline errors map to statuses: an expired token is 401, a rate
// limit is 429 (with Retry-After when known), an unknown playlist is 404, and any other
// upstream failure is 502.
//
// # Handler Interface
//
// Custom handlers implement the [Handler] interface, which wraps the stdlib handler interface and adds routes,
// allowing handlers to register multiple routes to encapsulate route definitions within the implementation.
package server
