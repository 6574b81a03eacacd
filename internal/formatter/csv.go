package formatter

import (
	"bytes"
	"strconv"
	"strings"

	"github.com/ChinoUkaegbu/exportify/internal/models"
)

// BOM marks documents as UTF-8 for spreadsheet applications.
const BOM = "\uFEFF"

// Header is the fixed column layout of every exported document.
var Header = []string{
	"Spotify URI",
	"Track Name",
	"Album Name",
	"Duration (ms)",
	"Popularity",
	"Release Date",
	"Artist Name(s)",
	"Added By",
	"Added At",
	"Genres",
}

// Serialize renders rows as a CSV document.
func Serialize(rows []models.ExportedRow) []byte {
	var buf bytes.Buffer
	buf.WriteString(BOM)
	buf.WriteString(strings.Join(Header, ","))
	buf.WriteByte('\n')

	fields := make([]string, len(Header))
	for _, row := range rows {
		fields[0] = row.URI
		fields[1] = quote(row.Name)
		fields[2] = quote(row.AlbumName)
		fields[3] = strconv.Itoa(row.DurationMS)
		fields[4] = strconv.Itoa(row.Popularity)
		fields[5] = row.ReleaseDate
		fields[6] = quote(strings.Join(row.ArtistNames(), ","))
		fields[7] = row.AddedBy
		fields[8] = row.AddedAt
		fields[9] = quote(strings.Join(row.Genres, ","))

		buf.WriteString(strings.Join(fields, ","))
		buf.WriteByte('\n')
	}
	return buf.Bytes()
}

// NewDocument renders rows into a named [models.Document] for playlist.
func NewDocument(playlist models.PlaylistRef, rows []models.ExportedRow) *models.Document {
	return &models.Document{
		Playlist: playlist,
		FileName: FileName(playlist.Name),
		Rows:     len(rows),
		Data:     Serialize(rows),
	}
}

// quote wraps s in double quotes, dropping any it already contains.
func quote(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, "") + `"`
}
