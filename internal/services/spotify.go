// Spotify Web API response types read by the exporter.
//
// Based on https://developer.spotify.com/documentation/web-api/reference/
package services

import (
	"github.com/ChinoUkaegbu/exportify/internal/models"
)

// SpotifyBaseURL is the default Web API root.
const SpotifyBaseURL = "https://api.spotify.com/v1"

// SimpleArtist is the artist stub embedded in a track.
type SimpleArtist struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Href string `json:"href"`
	URI  string `json:"uri"`
}

// SimpleAlbum is the album stub embedded in a track.
type SimpleAlbum struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	ReleaseDate string `json:"release_date"`
}

// TrackObject is a full track as returned inside a playlist listing.
type TrackObject struct {
	ID         string         `json:"id"`
	URI        string         `json:"uri"`
	Name       string         `json:"name"`
	Album      SimpleAlbum    `json:"album"`
	Artists    []SimpleArtist `json:"artists"`
	DurationMS int            `json:"duration_ms"`
	Popularity int            `json:"popularity"`
	IsLocal    bool           `json:"is_local"`
}

// UserRef identifies the user who added an item.
type UserRef struct {
	ID  string `json:"id"`
	URI string `json:"uri"`
}

// PlaylistItem is one entry of a playlist listing.
//
// Track is nil when the underlying track was removed from the catalog.
type PlaylistItem struct {
	AddedAt string       `json:"added_at"`
	AddedBy *UserRef     `json:"added_by"`
	Track   *TrackObject `json:"track"`
}

// PlaylistItemsPage is one window of a playlist listing.
type PlaylistItemsPage struct {
	Href   string         `json:"href"`
	Items  []PlaylistItem `json:"items"`
	Limit  int            `json:"limit"`
	Offset int            `json:"offset"`
	Total  int            `json:"total"`
	Next   *string        `json:"next"`
}

// ArtistObject is the full artist payload, the only source of genre tags.
type ArtistObject struct {
	ID     string   `json:"id"`
	Name   string   `json:"name"`
	Href   string   `json:"href"`
	Genres []string `json:"genres"`
}

// Row converts the item into a [models.TrackRow].
//
// A nil track yields a row with empty track fields so listings stay one row per item.
func (i PlaylistItem) Row() models.TrackRow {
	row := models.TrackRow{AddedAt: i.AddedAt}
	if i.AddedBy != nil {
		row.AddedBy = i.AddedBy.URI
	}

	t := i.Track
	if t == nil {
		return row
	}

	row.URI = t.URI
	row.Name = t.Name
	row.AlbumName = t.Album.Name
	row.ReleaseDate = t.Album.ReleaseDate
	row.DurationMS = t.DurationMS
	row.Popularity = t.Popularity
	row.Artists = make([]models.ArtistRef, len(t.Artists))
	for n, a := range t.Artists {
		row.Artists[n] = models.ArtistRef{Href: a.Href, Name: a.Name}
	}
	return row
}
