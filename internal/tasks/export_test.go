package tasks

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/ChinoUkaegbu/exportify/internal/formatter"
	"github.com/ChinoUkaegbu/exportify/internal/models"
	"github.com/ChinoUkaegbu/exportify/internal/shared"
	"github.com/google/go-cmp/cmp"
)

func newTestExporter(c *fakeCatalog) *Exporter {
	return NewExporter(c, ExportOpts{NumWorkers: 3, Concurrency: 3, RateLimit: 1000, Burst: 10}, shared.NewLogger(&discard{}))
}

func records(t *testing.T, doc *models.Document) [][]string {
	t.Helper()
	r := csv.NewReader(bytes.NewReader(bytes.TrimPrefix(doc.Data, []byte(formatter.BOM))))
	recs, err := r.ReadAll()
	if err != nil {
		t.Fatalf("failed to parse %s: %v", doc.FileName, err)
	}
	return recs
}

func TestExportOne(t *testing.T) {
	ctx := context.Background()

	t.Run("Single Track With Genres", func(t *testing.T) {
		c := newFakeCatalog()
		solo := c.addArtist("solo", "Solo Act", "rock", "pop")
		p := c.addPlaylist("rt", "Road Trip", 1, func(int) []models.ArtistRef { return []models.ArtistRef{solo} })

		doc, err := newTestExporter(c).ExportOne(ctx, p, testToken, nil)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if doc.FileName != "road_trip.csv" || doc.Rows != 1 {
			t.Errorf("unexpected document: %s (%d rows)", doc.FileName, doc.Rows)
		}

		recs := records(t, doc)
		if len(recs) != 2 {
			t.Fatalf("expected header and one row, got %d records", len(recs))
		}
		if got := recs[1][9]; got != "rock,pop" {
			t.Errorf("expected genres rock,pop, got %q", got)
		}
	})

	t.Run("Genre Union Across Artists", func(t *testing.T) {
		c := newFakeCatalog()
		a := c.addArtist("a", "A", "indie")
		b := c.addArtist("b", "B", "indie", "pop")
		p := c.addPlaylist("duo", "Duo", 1, func(int) []models.ArtistRef { return []models.ArtistRef{a, b} })

		doc, err := newTestExporter(c).ExportOne(ctx, p, testToken, nil)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if got := records(t, doc)[1][9]; got != "indie,pop" {
			t.Errorf("expected indie,pop, got %q", got)
		}
	})

	t.Run("Unresolved Artist Still Exports", func(t *testing.T) {
		c := newFakeCatalog()
		gone := c.addArtist("gone", "Gone", "blues")
		c.fail(gone.Href, http.StatusNotFound)
		p := c.addPlaylist("pl", "Partial", 2, func(int) []models.ArtistRef { return []models.ArtistRef{gone} })

		doc, err := newTestExporter(c).ExportOne(ctx, p, testToken, nil)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		recs := records(t, doc)
		if len(recs) != 3 || recs[1][9] != "" || recs[2][9] != "" {
			t.Errorf("expected rows with empty genres, got %q", recs)
		}
		if diff := cmp.Diff([]models.ArtistRef{gone}, doc.Unresolved); diff != "" {
			t.Errorf("unresolved mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("One Artist Request Per Export", func(t *testing.T) {
		c := newFakeCatalog()
		a := c.addArtist("a", "A", "house")
		b := c.addArtist("b", "B", "techno")
		p := c.addPlaylist("pl", "Club", 320, func(i int) []models.ArtistRef {
			if i%2 == 0 {
				return []models.ArtistRef{a}
			}
			return []models.ArtistRef{a, b}
		})

		if _, err := newTestExporter(c).ExportOne(ctx, p, testToken, nil); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if got := c.artistCalls(); got != 2 {
			t.Errorf("expected 2 artist requests, got %d", got)
		}
		if got := c.callsWithBase(p.TracksURL); got != 4 {
			t.Errorf("expected 4 window requests, got %d", got)
		}
	})

	t.Run("Failure Carries Stage", func(t *testing.T) {
		tests := []struct {
			name   string
			setup  func(c *fakeCatalog, p models.PlaylistRef, a models.ArtistRef)
			stage  Stage
			target error
		}{
			{
				name:   "Tracks",
				setup:  func(c *fakeCatalog, p models.PlaylistRef, _ models.ArtistRef) { c.fail(WindowURL(p.TracksURL, 0), 502) },
				stage:  StageTracks,
				target: shared.ErrAPIRequest,
			},
			{
				name:   "Artists",
				setup:  func(c *fakeCatalog, _ models.PlaylistRef, a models.ArtistRef) { c.fail(a.Href, 429) },
				stage:  StageArtists,
				target: shared.ErrRateLimited,
			},
		}

		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				c := newFakeCatalog()
				a := c.addArtist("a", "A")
				p := c.addPlaylist("pl", "Staged", 3, func(int) []models.ArtistRef { return []models.ArtistRef{a} })
				tt.setup(c, p, a)

				doc, err := newTestExporter(c).ExportOne(ctx, p, testToken, nil)
				if doc != nil {
					t.Error("expected no document")
				}
				var ee *ExportError
				if !errors.As(err, &ee) {
					t.Fatalf("expected *ExportError, got %T %v", err, err)
				}
				if ee.Stage != tt.stage || ee.Playlist.ID != "pl" {
					t.Errorf("unexpected export error: %+v", ee)
				}
				if !errors.Is(err, tt.target) {
					t.Errorf("expected %v, got %v", tt.target, err)
				}
			})
		}
	})

	t.Run("Reports Progress", func(t *testing.T) {
		c := newFakeCatalog()
		p := c.addPlaylist("pl", "Progress", 3, nil)
		progress := make(chan ProgressUpdate, 16)

		if _, err := newTestExporter(c).ExportOne(ctx, p, testToken, progress); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		close(progress)

		var phases []Phase
		for u := range progress {
			phases = append(phases, u.Phase)
		}
		want := []Phase{ExportPlaylist, FetchTracks, ResolveArtists, RenderDocument, ExportPlaylist}
		if diff := cmp.Diff(want, phases); diff != "" {
			t.Errorf("phases mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("Full Progress Channel Does Not Block", func(t *testing.T) {
		c := newFakeCatalog()
		p := c.addPlaylist("pl", "Blocked", 3, nil)
		progress := make(chan ProgressUpdate)

		if _, err := newTestExporter(c).ExportOne(ctx, p, testToken, progress); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
	})
}

func TestExportAll(t *testing.T) {
	ctx := context.Background()

	t.Run("Bundles Every Playlist In Order", func(t *testing.T) {
		c := newFakeCatalog()
		a := c.addArtist("a", "A", "ambient")
		var playlists []models.PlaylistRef
		for i := range 6 {
			playlists = append(playlists, c.addPlaylist(fmt.Sprintf("pl%d", i), fmt.Sprintf("List %d", i), 10*i,
				func(int) []models.ArtistRef { return []models.ArtistRef{a} }))
		}

		bundle, err := newTestExporter(c).ExportAll(ctx, playlists, testToken, nil)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if len(bundle.Documents) != 6 || len(bundle.Failures) != 0 {
			t.Fatalf("expected 6 documents, got %d (%d failures)", len(bundle.Documents), len(bundle.Failures))
		}
		for i, doc := range bundle.Documents {
			if want := fmt.Sprintf("list_%d.csv", i); doc.FileName != want {
				t.Errorf("document %d: expected %s, got %s", i, want, doc.FileName)
			}
			if doc.Rows != 10*i {
				t.Errorf("document %d: expected %d rows, got %d", i, 10*i, doc.Rows)
			}
		}
	})

	t.Run("Rate Limited Window Fails Only Its Playlist", func(t *testing.T) {
		c := newFakeCatalog()
		a := c.addArtist("a", "A", "rock")
		long := c.addPlaylist("long", "Long Drive", 250, func(int) []models.ArtistRef { return []models.ArtistRef{a} })
		short := c.addPlaylist("short", "Short Hop", 5, func(int) []models.ArtistRef { return []models.ArtistRef{a} })
		c.fail(WindowURL(long.TracksURL, 100), http.StatusTooManyRequests)

		bundle, err := newTestExporter(c).ExportAll(ctx, []models.PlaylistRef{long, short}, testToken, nil)
		var be *BundleError
		if !errors.As(err, &be) {
			t.Fatalf("expected *BundleError, got %T %v", err, err)
		}
		if bundle == nil || len(bundle.Documents) != 1 || bundle.Documents[0].Playlist.ID != "short" {
			t.Fatalf("expected only the short playlist bundled, got %+v", bundle)
		}
		if len(be.Failures) != 1 || be.Failures[0].Playlist.Name != "Long Drive" || be.Failures[0].Stage != StageTracks {
			t.Errorf("unexpected failures: %+v", be.Failures)
		}
		if !errors.Is(err, shared.ErrRateLimited) {
			t.Errorf("expected bundle error to wrap ErrRateLimited, got %v", err)
		}
		if be.Error() != "1 of 2 playlists failed: Long Drive" {
			t.Errorf("unexpected message: %s", be.Error())
		}
	})

	t.Run("Expired Token Produces No Bundle", func(t *testing.T) {
		c := newFakeCatalog()
		a := c.addArtist("a", "A", "rock")
		var playlists []models.PlaylistRef
		for i := range 5 {
			playlists = append(playlists, c.addPlaylist(fmt.Sprintf("pl%d", i), fmt.Sprintf("P%d", i), 30,
				func(int) []models.ArtistRef { return []models.ArtistRef{a} }))
		}
		c.fail(WindowURL(playlists[2].TracksURL, 0), http.StatusUnauthorized)

		bundle, err := newTestExporter(c).ExportAll(ctx, playlists, testToken, nil)
		if bundle != nil {
			t.Errorf("expected no bundle, got %d documents", len(bundle.Documents))
		}
		if !errors.Is(err, shared.ErrTokenExpired) {
			t.Fatalf("expected ErrTokenExpired, got %v", err)
		}
		var be *BundleError
		if errors.As(err, &be) {
			t.Error("expected a single error, not a bundle error")
		}
	})

	t.Run("Expired Token After Another Failure Produces No Bundle", func(t *testing.T) {
		c := newFakeCatalog()
		a := c.addArtist("a", "A", "rock")
		big := c.addPlaylist("big", "Big", 150, func(int) []models.ArtistRef { return []models.ArtistRef{a} })
		small := c.addPlaylist("small", "Small", 3, func(int) []models.ArtistRef { return []models.ArtistRef{a} })
		second := WindowURL(big.TracksURL, 100)
		c.fail(WindowURL(big.TracksURL, 0), http.StatusBadGateway)
		c.fail(second, http.StatusUnauthorized)
		c.detached = true
		c.delay = func(address string) time.Duration {
			if address == second {
				return 30 * time.Millisecond
			}
			return 0
		}

		bundle, err := newTestExporter(c).ExportAll(ctx, []models.PlaylistRef{big, small}, testToken, nil)
		if bundle != nil {
			t.Errorf("expected no bundle, got %d documents", len(bundle.Documents))
		}
		if !errors.Is(err, shared.ErrTokenExpired) {
			t.Fatalf("expected ErrTokenExpired, got %v", err)
		}
		var be *BundleError
		if errors.As(err, &be) {
			t.Error("expected a single error, not a bundle error")
		}
	})

	t.Run("Name Collisions Get Suffixes", func(t *testing.T) {
		c := newFakeCatalog()
		playlists := []models.PlaylistRef{
			c.addPlaylist("one", "Mix", 1, nil),
			c.addPlaylist("two", "mix!", 1, nil),
			c.addPlaylist("three", "Other", 1, nil),
			c.addPlaylist("four", "MIX", 1, nil),
		}

		bundle, err := newTestExporter(c).ExportAll(ctx, playlists, testToken, nil)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		var names []string
		for _, doc := range bundle.Documents {
			names = append(names, doc.FileName)
		}
		want := []string{"mix.csv", "mix_2.csv", "other.csv", "mix_3.csv"}
		if diff := cmp.Diff(want, names); diff != "" {
			t.Errorf("names mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("Canceled Context", func(t *testing.T) {
		c := newFakeCatalog()
		playlists := []models.PlaylistRef{c.addPlaylist("pl", "P", 10, nil)}
		cctx, cancel := context.WithCancel(ctx)
		cancel()

		bundle, err := newTestExporter(c).ExportAll(cctx, playlists, testToken, nil)
		if bundle != nil || !errors.Is(err, context.Canceled) {
			t.Errorf("expected nil bundle and context.Canceled, got %v %v", bundle, err)
		}
	})

	t.Run("Empty Input", func(t *testing.T) {
		bundle, err := newTestExporter(newFakeCatalog()).ExportAll(ctx, nil, testToken, nil)
		if err != nil || bundle == nil || len(bundle.Documents) != 0 {
			t.Errorf("expected empty bundle, got %+v %v", bundle, err)
		}
	})

	t.Run("Archive", func(t *testing.T) {
		c := newFakeCatalog()
		playlists := []models.PlaylistRef{
			c.addPlaylist("one", "First", 2, nil),
			c.addPlaylist("two", "Second", 3, nil),
		}

		bundle, err := newTestExporter(c).ExportAll(ctx, playlists, testToken, nil)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}

		var buf bytes.Buffer
		if err := bundle.WriteArchive(&buf); err != nil {
			t.Fatalf("WriteArchive failed: %v", err)
		}
		zr, err := zip.NewReader(bytes.NewReader(buf.Bytes()), int64(buf.Len()))
		if err != nil {
			t.Fatalf("invalid zip: %v", err)
		}
		if len(zr.File) != 2 || zr.File[0].Name != "first.csv" || zr.File[1].Name != "second.csv" {
			t.Errorf("unexpected entries: %v", zr.File)
		}
	})
}

func TestExportOptsDefaults(t *testing.T) {
	got := ExportOpts{NumWorkers: 50}.withDefaults()
	want := ExportOpts{NumWorkers: maxWorkers, Concurrency: defaultConcurrency, RateLimit: defaultRateLimit, Burst: 1}
	if got != want {
		t.Errorf("got %+v, want %+v", got, want)
	}
}
