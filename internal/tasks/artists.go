package tasks

import (
	"context"
	"errors"
	"fmt"

	"github.com/ChinoUkaegbu/exportify/internal/models"
	"github.com/ChinoUkaegbu/exportify/internal/services"
	"golang.org/x/sync/errgroup"
)

// ResolutionGap records an artist whose genres could not be fetched.
//
// Gaps are not fatal; the artist simply contributes no genres.
type ResolutionGap struct {
	Artist models.ArtistRef
	Err    error
}

func (g ResolutionGap) Error() string {
	return fmt.Sprintf("artist %s unresolved: %v", g.Artist.Name, g.Err)
}

func (g ResolutionGap) Unwrap() error { return g.Err }

// DistinctArtists returns each artist address referenced by rows once, in order of first occurrence.
//
// Artists without an address (local files) are skipped.
func DistinctArtists(rows []models.TrackRow) []models.ArtistRef {
	seen := make(map[string]struct{})
	var refs []models.ArtistRef
	for _, row := range rows {
		for _, a := range row.Artists {
			if a.Href == "" {
				continue
			}
			if _, ok := seen[a.Href]; ok {
				continue
			}
			seen[a.Href] = struct{}{}
			refs = append(refs, a)
		}
	}
	return refs
}

// ResolveGenres fetches each artist once and maps display names to genres.
//
// An expired token or a rate-limited response aborts resolution; the expired token is
// reported whichever arrived first. Any other failure is returned as a [ResolutionGap].
// Entries are folded in refs order once every response is in, so when two artists share
// a display name the later one wins.
func ResolveGenres(ctx context.Context, f Fetcher, refs []models.ArtistRef, token string, opts FetchOpts) (models.GenreMap, []ResolutionGap, error) {
	artists := make([]*services.ArtistObject, len(refs))
	failures := make([]error, len(refs))
	aborts := make([]error, len(refs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(opts.concurrency())

	for i, ref := range refs {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if err := opts.wait(gctx); err != nil {
				return err
			}

			var artist services.ArtistObject
			err := f.Fetch(gctx, ref.Href, token, &artist)
			if err == nil {
				artists[i] = &artist
				return nil
			}
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return err
			}

			switch services.OutcomeOf(err) {
			case services.OutcomeAuthExpired, services.OutcomeRateLimited:
				aborts[i] = fmt.Errorf("artist %s: %w", ref.Name, err)
				return aborts[i]
			default:
				failures[i] = err
				return nil
			}
		})
	}

	if err := g.Wait(); err != nil {
		return nil, nil, authFirst(err, aborts)
	}
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}

	genres := make(models.GenreMap, len(refs))
	var gaps []ResolutionGap
	for i, ref := range refs {
		if failures[i] != nil {
			gaps = append(gaps, ResolutionGap{Artist: ref, Err: failures[i]})
			opts.logger().Warn("artist unresolved", "artist", ref.Name, "href", ref.Href, "err", failures[i])
			continue
		}

		name := artists[i].Name
		if name == "" {
			name = ref.Name
		}
		genres[name] = artists[i].Genres
	}
	return genres, gaps, nil
}
