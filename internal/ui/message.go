package ui

import (
	"github.com/ChinoUkaegbu/exportify/internal/models"
	"github.com/ChinoUkaegbu/exportify/internal/tasks"
	tea "github.com/charmbracelet/bubbletea"
)

// MsgKind enumerates all message types in the application.
type MsgKind int

// Msg represents all possible messages in the TUI (Elm-style message union).
type Msg struct {
	kind MsgKind
	data any
}

var (
	_ tea.Msg = Msg{}
)

const (
	MsgPlaylistsFetched MsgKind = iota
	MsgProgressUpdate
	MsgExportComplete
)

type playlistsFetched struct {
	playlists []models.PlaylistRef
	err       error
}

// ExportOutcome is what an export run left behind.
type ExportOutcome struct {
	Paths      []string             // Files written
	Failures   []*tasks.ExportError // Playlists left out of a bundle
	Unresolved int                  // Artists exported without genres
	Err        error                // Fatal error, nothing was written
}

// playlistsFetchedMsg is the constructor for [MsgPlaylistsFetched]
func playlistsFetchedMsg(playlists []models.PlaylistRef, err error) Msg {
	return Msg{kind: MsgPlaylistsFetched, data: playlistsFetched{playlists, err}}
}

// progressUpdateMsg is the constructor for [MsgProgressUpdate]
func progressUpdateMsg(update tasks.ProgressUpdate) Msg {
	return Msg{kind: MsgProgressUpdate, data: update}
}

// exportCompleteMsg is the constructor for [MsgExportComplete]
func exportCompleteMsg(outcome ExportOutcome) Msg {
	return Msg{kind: MsgExportComplete, data: outcome}
}
