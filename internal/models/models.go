// package models defines the data model for the playlist exporter
package models

import (
	"time"
)

// Model defines the base interface for persistent models.
type Model interface {
	ID() string           // ID returns the unique identifier for this model
	CreatedAt() time.Time // CreatedAt returns when this model was created
	Validate() error      // Validate checks if the model's data is valid and returns an error if not
}

// PlaylistRef describes a playlist to export.
type PlaylistRef struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	Owner         string `json:"owner,omitempty"`
	Public        bool   `json:"public"`
	Collaborative bool   `json:"collaborative"`
	TrackTotal    int    `json:"track_total"`
	TracksURL     string `json:"tracks_url"` // listing address, query string is ignored
}

// ArtistRef identifies an artist by API address. Name is display only.
type ArtistRef struct {
	Href string `json:"href"`
	Name string `json:"name"`
}

// TrackRow is one playlist item in listing order.
type TrackRow struct {
	URI         string      `json:"uri"`
	Name        string      `json:"name"`
	AlbumName   string      `json:"album_name"`
	DurationMS  int         `json:"duration_ms"`
	Popularity  int         `json:"popularity"`
	ReleaseDate string      `json:"release_date"`
	Artists     []ArtistRef `json:"artists"`
	AddedBy     string      `json:"added_by"`
	AddedAt     string      `json:"added_at"`
}

// ArtistNames returns the display names of the row's artists in credit order.
func (t TrackRow) ArtistNames() []string {
	names := make([]string, len(t.Artists))
	for i, a := range t.Artists {
		names[i] = a.Name
	}
	return names
}

// GenreMap maps an artist display name to its genre tags.
//
// Keyed by name rather than [ArtistRef.Href], so two artists sharing a display
// name share an entry.
type GenreMap map[string][]string

// ExportedRow is a [TrackRow] with the union of its artists' genres.
type ExportedRow struct {
	TrackRow
	Genres []string `json:"genres"`
}

// Document is a rendered CSV for one playlist.
//
// Unresolved lists artists whose genres could not be fetched; their tracks are
// exported with no genres.
type Document struct {
	Playlist   PlaylistRef
	FileName   string
	Rows       int
	Data       []byte
	Unresolved []ArtistRef
}
