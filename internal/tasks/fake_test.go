package tasks

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ChinoUkaegbu/exportify/internal/models"
	"github.com/ChinoUkaegbu/exportify/internal/services"
)

const (
	testToken = "tok"
	apiRoot   = "https://api.test/v1"
)

// fakeCatalog is an in-memory [Fetcher] serving listing windows and artists.
type fakeCatalog struct {
	mu       sync.Mutex
	listings map[string][]services.PlaylistItem
	artists  map[string]services.ArtistObject
	failures map[string]int
	calls    map[string]int
	delay    func(address string) time.Duration
	// detached responses finish their delay even after cancellation, like a
	// response that was already on the wire.
	detached bool

	inFlight    atomic.Int64
	maxInFlight atomic.Int64
}

func newFakeCatalog() *fakeCatalog {
	return &fakeCatalog{
		listings: make(map[string][]services.PlaylistItem),
		artists:  make(map[string]services.ArtistObject),
		failures: make(map[string]int),
		calls:    make(map[string]int),
	}
}

func artistHref(id string) string { return apiRoot + "/artists/" + id }

func (c *fakeCatalog) addArtist(id, name string, genres ...string) models.ArtistRef {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.artists[artistHref(id)] = services.ArtistObject{ID: id, Name: name, Href: artistHref(id), Genres: genres}
	return models.ArtistRef{Href: artistHref(id), Name: name}
}

// addPlaylist registers n tracks whose artists are chosen by artistsFor.
func (c *fakeCatalog) addPlaylist(id, name string, n int, artistsFor func(i int) []models.ArtistRef) models.PlaylistRef {
	items := make([]services.PlaylistItem, n)
	for i := range items {
		var artists []services.SimpleArtist
		if artistsFor != nil {
			for _, a := range artistsFor(i) {
				artists = append(artists, services.SimpleArtist{Name: a.Name, Href: a.Href})
			}
		}
		items[i] = services.PlaylistItem{
			AddedAt: "2024-01-01T00:00:00Z",
			AddedBy: &services.UserRef{ID: "listener", URI: "spotify:user:listener"},
			Track: &services.TrackObject{
				URI:        fmt.Sprintf("spotify:track:%s-%d", id, i),
				Name:       fmt.Sprintf("Track %d", i),
				Album:      services.SimpleAlbum{Name: "Album", ReleaseDate: "2020-01-01"},
				Artists:    artists,
				DurationMS: 1000 + i,
				Popularity: i % 100,
			},
		}
	}
	return c.addItems(id, name, items)
}

func (c *fakeCatalog) addItems(id, name string, items []services.PlaylistItem) models.PlaylistRef {
	tracksURL := apiRoot + "/playlists/" + id + "/tracks"
	c.mu.Lock()
	c.listings[tracksURL] = items
	c.mu.Unlock()
	return models.PlaylistRef{ID: id, Name: name, TrackTotal: len(items), TracksURL: tracksURL}
}

func (c *fakeCatalog) fail(address string, status int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.failures[address] = status
}

func (c *fakeCatalog) callCount(address string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls[address]
}

// callsWithBase counts listing requests for a tracks address, across all windows.
func (c *fakeCatalog) callsWithBase(base string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for addr, hits := range c.calls {
		if b, _, _ := cutQuery(addr); b == base {
			n += hits
		}
	}
	return n
}

func (c *fakeCatalog) artistCalls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for addr, hits := range c.calls {
		if _, ok := c.artists[addr]; ok {
			n += hits
		}
	}
	return n
}

func cutQuery(address string) (string, url.Values, error) {
	u, err := url.Parse(address)
	if err != nil {
		return "", nil, err
	}
	q := u.Query()
	u.RawQuery = ""
	return u.String(), q, nil
}

func (c *fakeCatalog) Fetch(ctx context.Context, address, token string, v any) error {
	n := c.inFlight.Add(1)
	defer c.inFlight.Add(-1)
	for {
		m := c.maxInFlight.Load()
		if n <= m || c.maxInFlight.CompareAndSwap(m, n) {
			break
		}
	}

	c.mu.Lock()
	c.calls[address]++
	status, failing := c.failures[address]
	c.mu.Unlock()

	if c.delay != nil {
		if d := c.delay(address); d > 0 && c.detached {
			time.Sleep(d)
		} else if d > 0 {
			select {
			case <-time.After(d):
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
	if err := ctx.Err(); err != nil && !c.detached {
		return err
	}

	if token != testToken {
		status, failing = http.StatusUnauthorized, true
	}
	if failing {
		return &services.FetchError{Outcome: services.Classify(status), Status: status, URL: address}
	}

	base, q, err := cutQuery(address)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if items, ok := c.listings[base]; ok {
		offset, _ := strconv.Atoi(q.Get("offset"))
		limit, _ := strconv.Atoi(q.Get("limit"))
		end := min(offset+limit, len(items))
		page := v.(*services.PlaylistItemsPage)
		page.Offset, page.Limit, page.Total = offset, limit, len(items)
		if offset < end {
			page.Items = append([]services.PlaylistItem(nil), items[offset:end]...)
		}
		return nil
	}

	if artist, ok := c.artists[address]; ok {
		*v.(*services.ArtistObject) = artist
		return nil
	}

	return &services.FetchError{Outcome: services.OutcomeUnclassified, Status: http.StatusNotFound, URL: address}
}
