package tasks

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/ChinoUkaegbu/exportify/internal/models"
	"github.com/ChinoUkaegbu/exportify/internal/services"
	"golang.org/x/sync/errgroup"
)

// PageSize is the number of items requested per listing window.
const PageSize = 100

// CollectTracks fetches every item of playlist's listing and returns one row per item in
// playlist order.
//
// Windows are fetched concurrently and reassembled by index. The first failing window
// cancels the rest and fails the playlist with no rows; an expired token reported by any
// window takes precedence over it. A row count that differs from
// playlist.TrackTotal is only logged.
func CollectTracks(ctx context.Context, f Fetcher, playlist models.PlaylistRef, token string, opts FetchOpts) ([]models.TrackRow, error) {
	if playlist.TrackTotal <= 0 {
		return []models.TrackRow{}, nil
	}

	base := listingBase(playlist.TracksURL)
	windows := (playlist.TrackTotal + PageSize - 1) / PageSize
	pages := make([][]models.TrackRow, windows)
	errs := make([]error, windows)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(opts.concurrency())

	for w := range windows {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if err := opts.wait(gctx); err != nil {
				return err
			}

			var page services.PlaylistItemsPage
			if err := f.Fetch(gctx, WindowURL(base, w*PageSize), token, &page); err != nil {
				errs[w] = fmt.Errorf("window %d of %d: %w", w+1, windows, err)
				return errs[w]
			}

			rows := make([]models.TrackRow, len(page.Items))
			for i, item := range page.Items {
				rows[i] = item.Row()
			}
			pages[w] = rows
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, authFirst(err, errs)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	rows := make([]models.TrackRow, 0, playlist.TrackTotal)
	for _, page := range pages {
		rows = append(rows, page...)
	}

	if len(rows) != playlist.TrackTotal {
		opts.logger().Warn("track count mismatch",
			"playlist", playlist.Name, "declared", playlist.TrackTotal, "received", len(rows))
	}
	return rows, nil
}

// WindowURL addresses the listing window starting at offset.
func WindowURL(base string, offset int) string {
	return base + "?offset=" + strconv.Itoa(offset) + "&limit=" + strconv.Itoa(PageSize)
}

// listingBase drops any query string from a listing address.
func listingBase(tracksURL string) string {
	base, _, _ := strings.Cut(tracksURL, "?")
	return base
}
