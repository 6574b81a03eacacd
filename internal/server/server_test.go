package server

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/ChinoUkaegbu/exportify/internal/formatter"
	"github.com/ChinoUkaegbu/exportify/internal/models"
	"github.com/ChinoUkaegbu/exportify/internal/services"
	"github.com/ChinoUkaegbu/exportify/internal/shared"
	"github.com/ChinoUkaegbu/exportify/internal/tasks"
	tu "github.com/ChinoUkaegbu/exportify/internal/testing"
)

func newTestRouter(t *testing.T, catalog *tu.CatalogServer) *BasicRouter {
	t.Helper()

	logger := shared.NewLogger(io.Discard)
	library := func(ctx context.Context, token string) PlaylistLister {
		return services.NewLibrary(ctx, token, catalog.BaseURL(), nil)
	}
	exporter := tasks.NewExporter(services.NewFetcher(nil), tasks.ExportOpts{RateLimit: 1000, Burst: 10}, logger)

	router := NewBasicRouter()
	router.Use(Recoverer(logger), RequestLogger(logger))
	router.Handler(NewExportHandler(library, exporter, formatter.DefaultArchive, logger))
	return router
}

func seedCatalog(t *testing.T) *tu.CatalogServer {
	t.Helper()
	catalog := tu.NewCatalogServer(t, "tok")
	catalog.AddArtist("solo", "Solo Act", "rock", "pop")
	catalog.AddPlaylist("rt", "Road Trip", tu.CatalogTrack{Name: "Highway", Album: "Open Road", ArtistIDs: []string{"solo"}})
	catalog.AddPlaylist("ch", "Chill", tu.CatalogTrack{Name: "Waves", Album: "Shore", ArtistIDs: []string{"solo"}})
	return catalog
}

func get(t *testing.T, h http.Handler, path, token string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestBasicRouter(t *testing.T) {
	t.Run("Middleware Order", func(t *testing.T) {
		var order []string
		mw := func(name string) Middleware {
			return func(next http.Handler) http.Handler {
				return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
					order = append(order, name)
					next.ServeHTTP(w, r)
				})
			}
		}

		router := NewBasicRouter()
		router.Use(mw("first"), mw("second"))
		router.HandleFunc(http.MethodGet, "/ping", func(w http.ResponseWriter, r *http.Request) {
			order = append(order, "handler")
		})

		get(t, router, "/ping", "")
		if strings.Join(order, ",") != "first,second,handler" {
			t.Errorf("unexpected order: %v", order)
		}
	})

	t.Run("Method Not Allowed", func(t *testing.T) {
		router := NewBasicRouter()
		router.HandleFunc(http.MethodGet, "/ping", func(w http.ResponseWriter, r *http.Request) {})

		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/ping", nil))
		if rec.Code != http.StatusMethodNotAllowed {
			t.Errorf("expected 405, got %d", rec.Code)
		}
	})

	t.Run("Routes", func(t *testing.T) {
		router := newTestRouter(t, seedCatalog(t))
		want := []string{routePlaylists, routeExportOne, routeExportAll}
		if got := router.Routes(); strings.Join(got, "|") != strings.Join(want, "|") {
			t.Errorf("got %v, want %v", got, want)
		}
	})

	t.Run("Recoverer", func(t *testing.T) {
		router := NewBasicRouter()
		router.Use(Recoverer(shared.NewLogger(io.Discard)))
		router.HandleFunc(http.MethodGet, "/boom", func(w http.ResponseWriter, r *http.Request) { panic("boom") })

		if rec := get(t, router, "/boom", ""); rec.Code != http.StatusInternalServerError {
			t.Errorf("expected 500, got %d", rec.Code)
		}
	})
}

func TestExportHandler(t *testing.T) {
	t.Run("Missing Token", func(t *testing.T) {
		rec := get(t, newTestRouter(t, seedCatalog(t)), "/playlists", "")
		if rec.Code != http.StatusUnauthorized {
			t.Errorf("expected 401, got %d", rec.Code)
		}
	})

	t.Run("Lists Playlists", func(t *testing.T) {
		rec := get(t, newTestRouter(t, seedCatalog(t)), "/playlists", "tok")
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body)
		}

		var playlists []models.PlaylistRef
		if err := json.Unmarshal(rec.Body.Bytes(), &playlists); err != nil {
			t.Fatalf("invalid JSON: %v", err)
		}
		if len(playlists) != 2 || playlists[0].Name != "Road Trip" || playlists[0].TrackTotal != 1 {
			t.Errorf("unexpected playlists: %+v", playlists)
		}
	})

	t.Run("Expired Token", func(t *testing.T) {
		rec := get(t, newTestRouter(t, seedCatalog(t)), "/playlists", "stale")
		if rec.Code != http.StatusUnauthorized {
			t.Errorf("expected 401, got %d", rec.Code)
		}
	})

	t.Run("Exports One Playlist", func(t *testing.T) {
		rec := get(t, newTestRouter(t, seedCatalog(t)), "/playlists/rt/export", "tok")
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body)
		}
		if got := rec.Header().Get("Content-Disposition"); got != `attachment; filename="road_trip.csv"` {
			t.Errorf("unexpected disposition: %s", got)
		}

		body := rec.Body.String()
		if !strings.HasPrefix(body, formatter.BOM+"Spotify URI,") {
			t.Errorf("expected BOM and header, got %q", body[:min(len(body), 40)])
		}
		if !strings.Contains(body, `"Highway","Open Road"`) || !strings.HasSuffix(body, `"rock,pop"`+"\n") {
			t.Errorf("unexpected CSV:\n%s", body)
		}
	})

	t.Run("Unknown Playlist", func(t *testing.T) {
		rec := get(t, newTestRouter(t, seedCatalog(t)), "/playlists/nope/export", "tok")
		if rec.Code != http.StatusNotFound {
			t.Errorf("expected 404, got %d", rec.Code)
		}
	})

	t.Run("Rate Limited", func(t *testing.T) {
		catalog := seedCatalog(t)
		catalog.Fail("/v1/artists/solo", http.StatusTooManyRequests)

		rec := get(t, newTestRouter(t, catalog), "/playlists/rt/export", "tok")
		if rec.Code != http.StatusTooManyRequests {
			t.Fatalf("expected 429, got %d", rec.Code)
		}
		if got := rec.Header().Get("Retry-After"); got != "3" {
			t.Errorf("expected Retry-After 3, got %q", got)
		}
	})

	t.Run("Upstream Failure", func(t *testing.T) {
		catalog := seedCatalog(t)
		catalog.Fail("/v1/playlists/rt/tracks", http.StatusInternalServerError)

		rec := get(t, newTestRouter(t, catalog), "/playlists/rt/export", "tok")
		if rec.Code != http.StatusBadGateway {
			t.Errorf("expected 502, got %d", rec.Code)
		}
	})

	t.Run("Bundle", func(t *testing.T) {
		rec := get(t, newTestRouter(t, seedCatalog(t)), "/export", "tok")
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body)
		}
		if rec.Header().Get(FailuresHeader) != "" {
			t.Errorf("expected no failures, got %s", rec.Header().Get(FailuresHeader))
		}

		zr, err := zip.NewReader(bytes.NewReader(rec.Body.Bytes()), int64(rec.Body.Len()))
		if err != nil {
			t.Fatalf("invalid zip: %v", err)
		}
		if len(zr.File) != 2 || zr.File[0].Name != "road_trip.csv" || zr.File[1].Name != "chill.csv" {
			t.Errorf("unexpected entries: %v", zr.File)
		}
	})

	t.Run("Bundle With Failure", func(t *testing.T) {
		catalog := seedCatalog(t)
		catalog.Fail("/v1/playlists/ch/tracks", http.StatusTooManyRequests)

		rec := get(t, newTestRouter(t, catalog), "/export", "tok")
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body)
		}
		if got := rec.Header().Get(FailuresHeader); got != "Chill" {
			t.Errorf("expected Chill listed as failed, got %q", got)
		}

		zr, err := zip.NewReader(bytes.NewReader(rec.Body.Bytes()), int64(rec.Body.Len()))
		if err != nil {
			t.Fatalf("invalid zip: %v", err)
		}
		if len(zr.File) != 1 || zr.File[0].Name != "road_trip.csv" {
			t.Errorf("unexpected entries: %v", zr.File)
		}
	})

	t.Run("Bundle With Every Playlist Failing", func(t *testing.T) {
		catalog := seedCatalog(t)
		catalog.Fail("/v1/playlists/rt/tracks", http.StatusInternalServerError)
		catalog.Fail("/v1/playlists/ch/tracks", http.StatusInternalServerError)

		rec := get(t, newTestRouter(t, catalog), "/export", "tok")
		if rec.Code != http.StatusBadGateway {
			t.Fatalf("expected 502, got %d", rec.Code)
		}
		if ct := rec.Header().Get("Content-Type"); ct == "application/zip" {
			t.Error("expected an error body, not an archive")
		}
	})

	t.Run("Bundle Selection", func(t *testing.T) {
		rec := get(t, newTestRouter(t, seedCatalog(t)), "/export?ids=ch", "tok")
		zr, err := zip.NewReader(bytes.NewReader(rec.Body.Bytes()), int64(rec.Body.Len()))
		if err != nil {
			t.Fatalf("invalid zip: %v", err)
		}
		if len(zr.File) != 1 || zr.File[0].Name != "chill.csv" {
			t.Errorf("unexpected entries: %v", zr.File)
		}
	})

	t.Run("Client Timeout", func(t *testing.T) {
		catalog := seedCatalog(t)
		catalog.Delay("/v1/playlists/rt/tracks", time.Second)

		ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
		defer cancel()

		req := httptest.NewRequest(http.MethodGet, "/playlists/rt/export", nil).WithContext(ctx)
		req.Header.Set("Authorization", "Bearer tok")
		rec := httptest.NewRecorder()
		newTestRouter(t, catalog).ServeHTTP(rec, req)

		if rec.Code != http.StatusGatewayTimeout {
			t.Errorf("expected 504, got %d", rec.Code)
		}
		if catalog.HitsWithPrefix("/v1/artists/") != 0 {
			t.Error("expected no artist lookups after the listing timed out")
		}
	})
}
