package formatter

import "github.com/ChinoUkaegbu/exportify/internal/models"

// JoinGenres attaches to each row the union of its artists' genres.
//
// Genres keep the order of first occurrence across the row's artists. Empty tags are
// dropped and artists missing from genres contribute nothing.
func JoinGenres(rows []models.TrackRow, genres models.GenreMap) []models.ExportedRow {
	out := make([]models.ExportedRow, len(rows))
	for i, row := range rows {
		out[i] = models.ExportedRow{TrackRow: row, Genres: rowGenres(row, genres)}
	}
	return out
}

func rowGenres(row models.TrackRow, genres models.GenreMap) []string {
	seen := make(map[string]struct{})
	joined := []string{}
	for _, artist := range row.Artists {
		for _, g := range genres[artist.Name] {
			if g == "" {
				continue
			}
			if _, dup := seen[g]; dup {
				continue
			}
			seen[g] = struct{}{}
			joined = append(joined, g)
		}
	}
	return joined
}
