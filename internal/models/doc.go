// Package models defines the value types that flow through the export pipeline and the
// persisted export history record.
//
// Pipeline types, in the order they are produced:
//   - [PlaylistRef] : immutable descriptor supplied by a collaborator (CLI, server, TUI)
//   - [TrackRow] : one listing item, in playlist order
//   - [ArtistRef] : artist identity (API address) plus display name
//   - [GenreMap] : resolved genres keyed by artist display name
//   - [ExportedRow] : a TrackRow joined with its deduplicated genres
//   - [Document] : a rendered CSV artifact
//
// [ExportRun] is the only persisted entity. It implements [Model] and is stored by
// repositories.ExportRunRepository as an audit trail of past exports.
package models
