package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/ChinoUkaegbu/exportify/internal/models"
	"github.com/ChinoUkaegbu/exportify/internal/shared"
	"github.com/zmb3/spotify/v2"
	"golang.org/x/oauth2"
)

// playlistPageSize is the maximum page size of the current user's playlists endpoint.
const playlistPageSize = 50

// Library lists the playlists owned or followed by the token's user.
type Library struct {
	client  *spotify.Client
	baseURL string
}

// NewLibrary creates a Library authenticated with a static bearer token.
//
// baseURL defaults to [SpotifyBaseURL]; httpClient, when non-nil, is used as the
// transport underneath the oauth2 client.
func NewLibrary(ctx context.Context, token, baseURL string, httpClient *http.Client) *Library {
	if baseURL == "" {
		baseURL = SpotifyBaseURL
	}
	baseURL = strings.TrimSuffix(baseURL, "/")

	if httpClient != nil {
		ctx = context.WithValue(ctx, oauth2.HTTPClient, httpClient)
	}
	src := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token, TokenType: "Bearer"})
	client := spotify.New(oauth2.NewClient(ctx, src), spotify.WithBaseURL(baseURL+"/"))

	return &Library{client: client, baseURL: baseURL}
}

// CurrentUser returns the token owner's ID.
func (l *Library) CurrentUser(ctx context.Context) (string, error) {
	user, err := l.client.CurrentUser(ctx)
	if err != nil {
		return "", libraryError("failed to fetch current user", err)
	}
	return user.ID, nil
}

// Playlists returns every playlist in the user's library in listing order.
func (l *Library) Playlists(ctx context.Context) ([]models.PlaylistRef, error) {
	var refs []models.PlaylistRef
	offset := 0

	for {
		page, err := l.client.CurrentUsersPlaylists(ctx, spotify.Limit(playlistPageSize), spotify.Offset(offset))
		if err != nil {
			return nil, libraryError("failed to fetch playlists", err)
		}

		for _, p := range page.Playlists {
			refs = append(refs, l.toRef(p))
		}

		if len(page.Playlists) < playlistPageSize || page.Next == "" {
			break
		}
		offset += playlistPageSize
	}

	return refs, nil
}

// Find returns the playlist whose ID or name matches key, preferring an ID match.
func (l *Library) Find(ctx context.Context, key string) (models.PlaylistRef, error) {
	playlists, err := l.Playlists(ctx)
	if err != nil {
		return models.PlaylistRef{}, err
	}
	return FindPlaylist(playlists, key)
}

// FindPlaylist searches playlists by ID, then by exact name.
func FindPlaylist(playlists []models.PlaylistRef, key string) (models.PlaylistRef, error) {
	for _, p := range playlists {
		if p.ID == key {
			return p, nil
		}
	}
	for _, p := range playlists {
		if p.Name == key {
			return p, nil
		}
	}
	return models.PlaylistRef{}, fmt.Errorf("%w: no playlist with ID or name '%s'", shared.ErrPlaylistNotFound, key)
}

func (l *Library) toRef(p spotify.SimplePlaylist) models.PlaylistRef {
	tracksURL := p.Tracks.Endpoint
	if tracksURL == "" {
		tracksURL = fmt.Sprintf("%s/playlists/%s/tracks", l.baseURL, p.ID)
	}
	return models.PlaylistRef{
		ID:            string(p.ID),
		Name:          p.Name,
		Owner:         p.Owner.DisplayName,
		Public:        p.IsPublic,
		Collaborative: p.Collaborative,
		TrackTotal:    int(p.Tracks.Total),
		TracksURL:     tracksURL,
	}
}

// libraryError maps client errors onto the shared sentinels.
func libraryError(msg string, err error) error {
	var se spotify.Error
	if errors.As(err, &se) {
		switch Classify(se.Status) {
		case OutcomeAuthExpired:
			return fmt.Errorf("%w: %s: %v", shared.ErrTokenExpired, msg, err)
		case OutcomeRateLimited:
			return fmt.Errorf("%w: %s: %v", shared.ErrRateLimited, msg, err)
		}
	}
	return fmt.Errorf("%w: %s: %v", shared.ErrAPIRequest, msg, err)
}
