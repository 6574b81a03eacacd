package formatter

import (
	"fmt"
	"regexp"
	"strings"
)

const (
	csvExt         = ".csv"
	fallbackName   = "playlist"
	DefaultArchive = "spotify_playlists.zip"
)

var unsafeChars = regexp.MustCompile(`[^a-zA-Z0-9\- ]`)

// FileName derives a CSV file name from a playlist's display name.
//
// Anything outside [a-zA-Z0-9- ] is stripped, the rest is lowercased, and spaces become
// underscores. Names with nothing left fall back to "playlist.csv".
func FileName(name string) string {
	return stem(name) + csvExt
}

func stem(name string) string {
	s := strings.ToLower(unsafeChars.ReplaceAllString(name, ""))
	s = strings.ReplaceAll(s, " ", "_")
	if s == "" {
		return fallbackName
	}
	return s
}

// NameSet hands out unique file names within one bundle.
type NameSet struct {
	used map[string]struct{}
}

// NewNameSet creates an empty NameSet.
func NewNameSet() *NameSet {
	return &NameSet{used: make(map[string]struct{})}
}

// Claim returns a file name for fileName not yet handed out, appending _2, _3, ... to the stem on collision.
func (n *NameSet) Claim(fileName string) string {
	base := strings.TrimSuffix(fileName, csvExt)
	candidate := fileName
	for i := 2; ; i++ {
		if _, taken := n.used[candidate]; !taken {
			break
		}
		candidate = fmt.Sprintf("%s_%d%s", base, i, csvExt)
	}
	n.used[candidate] = struct{}{}
	return candidate
}
