// Package formatter renders exported playlists.
//
// Rendering is pure and synchronous: [JoinGenres] attaches genres to track rows,
// [Serialize] produces the CSV bytes, [FileName] and [NameSet] derive artifact names,
// and [WriteArchive] packages several documents into a zip.
//
// # CSV Layout
//
// Documents start with a UTF-8 byte order mark followed by [Header]. Text fields that may
// contain commas (track, album, artists, genres) are wrapped in double quotes with any
// inner quote characters removed rather than escaped. Every line, including the last,
// ends with a single newline.
package formatter
