package ui

import (
	"fmt"

	"github.com/ChinoUkaegbu/exportify/internal/models"
	"github.com/charmbracelet/bubbles/list"
)

var _ list.Item = playlistItem{}

// playlistItem wraps [models.PlaylistRef] to implement [list.Item].
type playlistItem struct {
	playlist models.PlaylistRef
}

func (i playlistItem) FilterValue() string { return i.playlist.Name }
func (i playlistItem) Title() string       { return i.playlist.Name }
func (i playlistItem) Description() string {
	desc := fmt.Sprintf("%d tracks", i.playlist.TrackTotal)
	if i.playlist.Owner != "" {
		desc = fmt.Sprintf("%s • by %s", desc, i.playlist.Owner)
	}
	if i.playlist.Collaborative {
		desc += " • collaborative"
	}
	return desc
}

func playlistItems(playlists []models.PlaylistRef) []list.Item {
	items := make([]list.Item, len(playlists))
	for i, pl := range playlists {
		items[i] = playlistItem{playlist: pl}
	}
	return items
}
