// Package tasks runs the playlist export pipeline with real-time progress reporting.
//
// # Pipeline
//
// One playlist flows through four passes, each a function over explicit arguments:
//
//  1. [CollectTracks] : fetch the listing in windows of [PageSize] items concurrently and
//     reassemble them by window index
//  2. [DistinctArtists] : collect each distinct artist address once, in first-occurrence order
//  3. [ResolveGenres] : fetch every distinct artist and fold the genres into a [models.GenreMap]
//  4. formatter.JoinGenres and formatter.Serialize : join and render the CSV
//
// # Export Operations
//
// [Exporter] sequences the passes:
//   - [Exporter.ExportOne] : one playlist, one [models.Document]
//   - [Exporter.ExportAll] : several playlists with bounded concurrency, one [Bundle]
//
// Every fetch made while serving one call shares a single rate limiter, so the combined
// request rate across windows, artists and playlists stays under the configured ceiling.
//
// # Failure Containment
//
// A failing window fails its playlist; no partial rows are returned. Artists whose lookup
// fails with an unclassified error are recorded as a [ResolutionGap] and the playlist is
// still exported. In a bundle a failed playlist becomes an [ExportError] inside a
// [BundleError] while the others are still delivered. An expired token aborts everything:
// [Exporter.ExportAll] returns no bundle and a single error wrapping shared.ErrTokenExpired.
//
// # Progress Reporting
//
// The [ProgressUpdate] struct contains phase, step counters, messages, and optional data for advanced UI rendering.
// Updates use select with default to prevent blocking.
package tasks
