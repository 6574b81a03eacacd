package testing

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"
)

// CatalogTrack is a track served by [CatalogServer]. Removed items are listed with a null track.
type CatalogTrack struct {
	Name      string
	Album     string
	ArtistIDs []string
	Removed   bool
}

type catalogArtist struct {
	name   string
	genres []string
}

type catalogPlaylist struct {
	id            string
	name          string
	collaborative bool
	tracks        []CatalogTrack
}

// CatalogServer is an httptest fake of the Spotify Web API endpoints the exporter reads:
//
//	GET /v1/me
//	GET /v1/me/playlists
//	GET /v1/playlists/{id}/tracks
//	GET /v1/artists/{id}
//
// Requests without the configured bearer token get a 401.
type CatalogServer struct {
	*httptest.Server

	token string

	mu        sync.Mutex
	playlists []catalogPlaylist
	artists   map[string]catalogArtist
	hits      map[string]int
	failures  map[string]int
	delays    map[string]time.Duration
}

// NewCatalogServer starts a CatalogServer closed by t.Cleanup.
func NewCatalogServer(t *testing.T, token string) *CatalogServer {
	t.Helper()

	c := &CatalogServer{
		token:    token,
		artists:  make(map[string]catalogArtist),
		hits:     make(map[string]int),
		failures: make(map[string]int),
		delays:   make(map[string]time.Duration),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /v1/me", c.handleMe)
	mux.HandleFunc("GET /v1/me/playlists", c.handlePlaylists)
	mux.HandleFunc("GET /v1/playlists/{id}/tracks", c.handleTracks)
	mux.HandleFunc("GET /v1/artists/{id}", c.handleArtist)

	c.Server = httptest.NewServer(c.guard(mux))
	t.Cleanup(c.Close)
	return c
}

// BaseURL is the API root to hand to clients.
func (c *CatalogServer) BaseURL() string { return c.URL + "/v1" }

// ArtistHref is the API address of the artist with id.
func (c *CatalogServer) ArtistHref(id string) string { return c.BaseURL() + "/artists/" + id }

// TracksHref is the listing address of the playlist with id.
func (c *CatalogServer) TracksHref(id string) string {
	return c.BaseURL() + "/playlists/" + id + "/tracks"
}

// AddArtist registers an artist.
func (c *CatalogServer) AddArtist(id, name string, genres ...string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.artists[id] = catalogArtist{name: name, genres: genres}
}

// AddPlaylist registers a playlist in the user's library.
func (c *CatalogServer) AddPlaylist(id, name string, tracks ...CatalogTrack) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.playlists = append(c.playlists, catalogPlaylist{id: id, name: name, tracks: tracks})
}

// MarkCollaborative lists the playlist with id as collaborative (and so not public).
func (c *CatalogServer) MarkCollaborative(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i := range c.playlists {
		if c.playlists[i].id == id {
			c.playlists[i].collaborative = true
		}
	}
}

// Fail makes every request to path (without query) answer with status.
func (c *CatalogServer) Fail(path string, status int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.failures[path] = status
}

// Delay holds every response for path by d.
func (c *CatalogServer) Delay(path string, d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.delays[path] = d
}

// Hits returns how many requests reached path, including failed ones.
func (c *CatalogServer) Hits(path string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.hits[path]
}

// HitsWithPrefix sums hits over every path starting with prefix.
func (c *CatalogServer) HitsWithPrefix(prefix string) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	n := 0
	for p, h := range c.hits {
		if strings.HasPrefix(p, prefix) {
			n += h
		}
	}
	return n
}

func (c *CatalogServer) guard(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := r.URL.Path
		if off := r.URL.Query().Get("offset"); off != "" && strings.HasSuffix(key, "/tracks") {
			key += "?offset=" + off
		}

		c.mu.Lock()
		c.hits[r.URL.Path]++
		if key != r.URL.Path {
			c.hits[key]++
		}
		status, failing := c.failures[key]
		if !failing {
			status, failing = c.failures[r.URL.Path]
		}
		delay := c.delays[r.URL.Path]
		c.mu.Unlock()

		if delay > 0 {
			select {
			case <-time.After(delay):
			case <-r.Context().Done():
				return
			}
		}

		if r.Header.Get("Authorization") != "Bearer "+c.token {
			writeError(w, http.StatusUnauthorized, "The access token expired")
			return
		}
		if failing {
			if status == http.StatusTooManyRequests {
				w.Header().Set("Retry-After", "3")
			}
			writeError(w, status, http.StatusText(status))
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (c *CatalogServer) handleMe(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]any{
		"id":           "listener",
		"display_name": "Listener",
		"uri":          "spotify:user:listener",
	})
}

func (c *CatalogServer) handlePlaylists(w http.ResponseWriter, r *http.Request) {
	limit, offset := pageParams(r, 20)

	c.mu.Lock()
	total := len(c.playlists)
	var items []map[string]any
	for i := offset; i < total && i < offset+limit; i++ {
		p := c.playlists[i]
		items = append(items, map[string]any{
			"id":   p.id,
			"name": p.name,
			"uri":  "spotify:playlist:" + p.id,
			// collaborative playlists are never public
			"public":        !p.collaborative,
			"collaborative": p.collaborative,
			"owner": map[string]any{
				"id":           "listener",
				"display_name": "Listener",
			},
			"tracks": map[string]any{
				"href":  c.TracksHref(p.id),
				"total": len(p.tracks),
			},
		})
	}
	c.mu.Unlock()

	writeJSON(w, page(r, items, limit, offset, total))
}

func (c *CatalogServer) handleTracks(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	limit, offset := pageParams(r, 100)

	c.mu.Lock()
	defer c.mu.Unlock()

	var pl *catalogPlaylist
	for i := range c.playlists {
		if c.playlists[i].id == id {
			pl = &c.playlists[i]
		}
	}
	if pl == nil {
		writeError(w, http.StatusNotFound, "Not found.")
		return
	}

	total := len(pl.tracks)
	items := make([]map[string]any, 0, limit)
	for i := offset; i < total && i < offset+limit; i++ {
		items = append(items, c.item(id, i, pl.tracks[i]))
	}
	writeJSON(w, page(r, items, limit, offset, total))
}

func (c *CatalogServer) handleArtist(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	c.mu.Lock()
	a, ok := c.artists[id]
	c.mu.Unlock()
	if !ok {
		writeError(w, http.StatusNotFound, "non existing id")
		return
	}

	genres := a.genres
	if genres == nil {
		genres = []string{}
	}
	writeJSON(w, map[string]any{
		"id":     id,
		"name":   a.name,
		"href":   c.ArtistHref(id),
		"genres": genres,
	})
}

// item renders position n of a playlist. Callers hold c.mu.
func (c *CatalogServer) item(playlistID string, n int, tr CatalogTrack) map[string]any {
	item := map[string]any{
		"added_at": fmt.Sprintf("2024-01-%02dT00:00:00Z", n%28+1),
		"added_by": map[string]any{"id": "listener", "uri": "spotify:user:listener"},
		"track":    nil,
	}
	if tr.Removed {
		return item
	}

	artists := make([]map[string]any, len(tr.ArtistIDs))
	for i, aid := range tr.ArtistIDs {
		artists[i] = map[string]any{
			"id":   aid,
			"name": c.artists[aid].name,
			"href": c.ArtistHref(aid),
		}
	}

	item["track"] = map[string]any{
		"id":          fmt.Sprintf("%s-%d", playlistID, n),
		"uri":         fmt.Sprintf("spotify:track:%s-%d", playlistID, n),
		"name":        tr.Name,
		"duration_ms": 1000 * (n + 1),
		"popularity":  n % 100,
		"album":       map[string]any{"name": tr.Album, "release_date": "2020-01-01"},
		"artists":     artists,
	}
	return item
}

func pageParams(r *http.Request, defaultLimit int) (limit, offset int) {
	limit, err := strconv.Atoi(r.URL.Query().Get("limit"))
	if err != nil || limit <= 0 {
		limit = defaultLimit
	}
	offset, _ = strconv.Atoi(r.URL.Query().Get("offset"))
	return limit, offset
}

func page(r *http.Request, items []map[string]any, limit, offset, total int) map[string]any {
	if items == nil {
		items = []map[string]any{}
	}
	var next any
	if offset+limit < total {
		u := *r.URL
		q := u.Query()
		q.Set("offset", strconv.Itoa(offset+limit))
		q.Set("limit", strconv.Itoa(limit))
		u.RawQuery = q.Encode()
		next = "http://" + r.Host + u.String()
	}
	return map[string]any{
		"href":     "http://" + r.Host + r.URL.String(),
		"items":    items,
		"limit":    limit,
		"offset":   offset,
		"total":    total,
		"next":     next,
		"previous": nil,
	}
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]any{
		"error": map[string]any{"status": status, "message": msg},
	})
}
