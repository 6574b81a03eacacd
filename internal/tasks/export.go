package tasks

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync/atomic"

	"github.com/ChinoUkaegbu/exportify/internal/formatter"
	"github.com/ChinoUkaegbu/exportify/internal/models"
	"github.com/ChinoUkaegbu/exportify/internal/shared"
	"github.com/charmbracelet/log"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

const (
	defaultWorkers     = 4
	maxWorkers         = 10
	defaultConcurrency = 4
	defaultRateLimit   = 10.0
)

// Stage names the pipeline pass an export failed in.
type Stage string

const (
	StageTracks  Stage = "tracks"
	StageArtists Stage = "artists"
	StageRender  Stage = "render"
)

// ExportError is the failure of one playlist's pipeline.
type ExportError struct {
	Playlist models.PlaylistRef
	Stage    Stage
	Err      error
}

func (e *ExportError) Error() string {
	return fmt.Sprintf("export %q failed during %s: %v", e.Playlist.Name, e.Stage, e.Err)
}

func (e *ExportError) Unwrap() error { return e.Err }

// BundleError lists the playlists that could not be exported in a bundle.
type BundleError struct {
	Failures []*ExportError
	Total    int
}

func (e *BundleError) Error() string {
	names := make([]string, len(e.Failures))
	for i, f := range e.Failures {
		names[i] = f.Playlist.Name
	}
	return fmt.Sprintf("%d of %d playlists failed: %s", len(e.Failures), e.Total, strings.Join(names, ", "))
}

// Unwrap exposes every playlist failure to errors.Is and errors.As.
func (e *BundleError) Unwrap() []error {
	errs := make([]error, len(e.Failures))
	for i, f := range e.Failures {
		errs[i] = f
	}
	return errs
}

// Bundle holds the documents of a multi-playlist export in input order.
//
// File names are unique within the bundle.
type Bundle struct {
	Documents []*models.Document
	Failures  []*ExportError
}

// WriteArchive writes the bundle as a zip archive.
func (b *Bundle) WriteArchive(w io.Writer) error {
	return formatter.WriteArchive(w, b.Documents)
}

// ExportOpts contains configuration for playlist exports.
type ExportOpts struct {
	NumWorkers  int     // Concurrent playlists in a bundle (default: 4, max: 10)
	Concurrency int     // Concurrent requests per pass (default: 4)
	RateLimit   float64 // Requests per second across one export call (default: 10)
	Burst       int     // Limiter burst (default: 1)
}

func (o ExportOpts) withDefaults() ExportOpts {
	if o.NumWorkers <= 0 {
		o.NumWorkers = defaultWorkers
	}
	if o.NumWorkers > maxWorkers {
		o.NumWorkers = maxWorkers
	}
	if o.Concurrency <= 0 {
		o.Concurrency = defaultConcurrency
	}
	if o.RateLimit <= 0 {
		o.RateLimit = defaultRateLimit
	}
	if o.Burst <= 0 {
		o.Burst = 1
	}
	return o
}

// Exporter turns playlists into CSV documents.
type Exporter struct {
	fetcher Fetcher
	opts    ExportOpts
	logger  *log.Logger
}

// NewExporter creates an Exporter. A nil logger defaults to log.Default().
func NewExporter(f Fetcher, opts ExportOpts, logger *log.Logger) *Exporter {
	if logger == nil {
		logger = log.Default()
	}
	return &Exporter{fetcher: f, opts: opts.withDefaults(), logger: logger}
}

// sendProgress sends a progress update through the channel without blocking.
// Uses select with default to ensure progress reporting never blocks execution.
func (e *Exporter) sendProgress(progress chan<- ProgressUpdate, update ProgressUpdate) {
	if progress == nil {
		return
	}
	select {
	case progress <- update:
	default:
	}
}

func (e *Exporter) limiter() *rate.Limiter {
	return rate.NewLimiter(rate.Limit(e.opts.RateLimit), e.opts.Burst)
}

// ExportOne runs the pipeline for a single playlist.
//
// Failures are returned as [*ExportError].
func (e *Exporter) ExportOne(ctx context.Context, playlist models.PlaylistRef, token string, progress chan<- ProgressUpdate) (*models.Document, error) {
	e.sendProgress(progress, exportingPlaylistUpdate(1, 1, playlist.Name))

	doc, err := e.export(ctx, playlist, token, e.limiter(), progress)
	if err != nil {
		e.sendProgress(progress, exportFailedUpdate(1, 1, err))
		return nil, err
	}

	e.sendProgress(progress, exportCompletedUpdate(1, 1, doc))
	return doc, nil
}

// ExportAll runs the pipeline for every playlist with at most NumWorkers in flight.
//
// Failed playlists are left out of the bundle and reported through a [*BundleError]
// returned alongside it. An expired token or a canceled context stops all work and
// returns a nil bundle with that single error.
func (e *Exporter) ExportAll(ctx context.Context, playlists []models.PlaylistRef, token string, progress chan<- ProgressUpdate) (*Bundle, error) {
	total := len(playlists)
	docs := make([]*models.Document, total)
	failures := make([]*ExportError, total)
	limiter := e.limiter()

	var completed atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.opts.NumWorkers)

	for i, playlist := range playlists {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			e.sendProgress(progress, exportingPlaylistUpdate(i+1, total, playlist.Name))

			doc, err := e.export(gctx, playlist, token, limiter, progress)
			step := int(completed.Add(1))
			if err != nil {
				if fatal(err) {
					return err
				}
				failures[i] = err
				e.sendProgress(progress, exportFailedUpdate(step, total, err))
				return nil
			}

			docs[i] = doc
			e.sendProgress(progress, exportCompletedUpdate(step, total, doc))
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		e.logger.Error("export aborted", "playlists", total, "err", err)
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	bundle := &Bundle{}
	names := formatter.NewNameSet()
	for i := range playlists {
		if failures[i] != nil {
			bundle.Failures = append(bundle.Failures, failures[i])
			continue
		}
		doc := docs[i]
		doc.FileName = names.Claim(doc.FileName)
		bundle.Documents = append(bundle.Documents, doc)
	}

	if len(bundle.Failures) > 0 {
		return bundle, &BundleError{Failures: bundle.Failures, Total: total}
	}
	return bundle, nil
}

// export sequences the pipeline passes for one playlist.
func (e *Exporter) export(ctx context.Context, playlist models.PlaylistRef, token string, limiter *rate.Limiter, progress chan<- ProgressUpdate) (*models.Document, *ExportError) {
	logger := shared.WithLogger(e.logger, "playlist", playlist.Name)
	opts := FetchOpts{Concurrency: e.opts.Concurrency, Limiter: limiter, Logger: logger}

	e.sendProgress(progress, fetchTracksUpdate(playlist))
	rows, err := CollectTracks(ctx, e.fetcher, playlist, token, opts)
	if err != nil {
		return nil, &ExportError{Playlist: playlist, Stage: StageTracks, Err: err}
	}

	refs := DistinctArtists(rows)
	e.sendProgress(progress, resolveArtistsUpdate(playlist, len(refs)))
	genres, gaps, err := ResolveGenres(ctx, e.fetcher, refs, token, opts)
	if err != nil {
		return nil, &ExportError{Playlist: playlist, Stage: StageArtists, Err: err}
	}

	if err := ctx.Err(); err != nil {
		return nil, &ExportError{Playlist: playlist, Stage: StageRender, Err: err}
	}
	doc := formatter.NewDocument(playlist, formatter.JoinGenres(rows, genres))
	for _, gap := range gaps {
		doc.Unresolved = append(doc.Unresolved, gap.Artist)
	}
	e.sendProgress(progress, renderUpdate(doc))

	logger.Debug("playlist exported", "rows", doc.Rows, "artists", len(refs), "unresolved", len(gaps))
	return doc, nil
}

// fatal reports whether err must stop every playlist in a bundle.
func fatal(err error) bool {
	return errors.Is(err, shared.ErrTokenExpired) ||
		errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded)
}
