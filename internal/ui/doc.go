// Package ui implements an interactive terminal interface using bubbletea's Elm architecture.
//
// The TUI provides a three-view workflow:
//  1. [PlaylistListView] : Browse the user's playlists, enter exports one, a exports all
//  2. [ExportView] : Monitor real-time progress updates
//  3. [ResultView] : Saved paths, playlists that failed, artists without genres
//
// The (view) [Model] implements bubbletea/Elm's standard Init/Update/View pattern, receiving messages via the Msg union type.
// Progress updates flow through a channel from tasks.Exporter, providing non-blocking status reporting during exports.
package ui
