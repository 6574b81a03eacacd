package main

import (
	"context"
	"fmt"

	"github.com/ChinoUkaegbu/exportify/internal/models"
	"github.com/urfave/cli/v3"
)

// Playlists lists the playlists in the token owner's library.
func (r *Runner) Playlists(ctx context.Context, cmd *cli.Command) error {
	token, err := r.token()
	if err != nil {
		return err
	}

	library := r.library(ctx, token)
	user, err := library.CurrentUser(ctx)
	if err != nil {
		return err
	}

	playlists, err := library.Playlists(ctx)
	if err != nil {
		return fmt.Errorf("failed to list playlists: %w", err)
	}
	r.logger.Debug("fetched playlists", "user", user, "count", len(playlists))

	if cmd.Bool("json") {
		return r.writeJSON(playlists, cmd.Bool("pretty"))
	}

	r.writePlainHeader(fmt.Sprintf("Playlists of %s (%d)", user, len(playlists)))
	for _, p := range playlists {
		r.writePlain("%-24s %5d tracks  %-13s %s\n", p.ID, p.TrackTotal, visibility(p), p.Name)
	}
	return nil
}

func visibility(p models.PlaylistRef) string {
	switch {
	case p.Collaborative:
		return "collaborative"
	case p.Public:
		return "public"
	default:
		return "private"
	}
}
