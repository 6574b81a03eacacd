package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/ChinoUkaegbu/exportify/internal/models"
	"github.com/ChinoUkaegbu/exportify/internal/services"
	"github.com/ChinoUkaegbu/exportify/internal/shared"
	"github.com/ChinoUkaegbu/exportify/internal/tasks"
	"github.com/charmbracelet/log"
)

// FailuresHeader lists, comma separated, the playlists missing from a bundle.
const FailuresHeader = "X-Export-Failures"

const (
	routePlaylists = "GET /playlists"
	routeExportOne = "GET /playlists/{id}/export"
	routeExportAll = "GET /export"
)

// PlaylistLister lists the playlists visible to one token.
type PlaylistLister interface {
	Playlists(ctx context.Context) ([]models.PlaylistRef, error)
}

// LibraryFunc builds a [PlaylistLister] for a request's bearer token.
type LibraryFunc func(ctx context.Context, token string) PlaylistLister

// Exporter runs the export pipeline. Implemented by tasks.Exporter.
type Exporter interface {
	ExportOne(ctx context.Context, playlist models.PlaylistRef, token string, progress chan<- tasks.ProgressUpdate) (*models.Document, error)
	ExportAll(ctx context.Context, playlists []models.PlaylistRef, token string, progress chan<- tasks.ProgressUpdate) (*tasks.Bundle, error)
}

// ExportHandler serves playlist listings and downloads. Implements [Handler].
type ExportHandler struct {
	library     LibraryFunc
	exporter    Exporter
	archiveName string
	logger      *log.Logger
}

// NewExportHandler creates an ExportHandler serving bundles under archiveName.
func NewExportHandler(library LibraryFunc, exporter Exporter, archiveName string, logger *log.Logger) *ExportHandler {
	if logger == nil {
		logger = log.Default()
	}
	return &ExportHandler{library: library, exporter: exporter, archiveName: archiveName, logger: logger}
}

// Routes returns the HTTP routes this handler serves.
func (h *ExportHandler) Routes() []string {
	return []string{routePlaylists, routeExportOne, routeExportAll}
}

// ServeHTTP dispatches on the matched route pattern.
func (h *ExportHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	token, ok := bearerToken(r)
	if !ok {
		w.Header().Set("WWW-Authenticate", "Bearer")
		writeError(w, http.StatusUnauthorized, "missing bearer token")
		return
	}

	switch r.Pattern {
	case routePlaylists:
		h.listPlaylists(w, r, token)
	case routeExportOne:
		h.exportOne(w, r, token)
	case routeExportAll:
		h.exportAll(w, r, token)
	default:
		http.NotFound(w, r)
	}
}

func (h *ExportHandler) listPlaylists(w http.ResponseWriter, r *http.Request, token string) {
	playlists, err := h.library(r.Context(), token).Playlists(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if playlists == nil {
		playlists = []models.PlaylistRef{}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(playlists)
}

func (h *ExportHandler) exportOne(w http.ResponseWriter, r *http.Request, token string) {
	playlists, err := h.library(r.Context(), token).Playlists(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}

	playlist, err := services.FindPlaylist(playlists, r.PathValue("id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}

	doc, err := h.exporter.ExportOne(r.Context(), playlist, token, nil)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	attachment(w, "text/csv; charset=utf-8", doc.FileName, len(doc.Data))
	w.Write(doc.Data)
}

func (h *ExportHandler) exportAll(w http.ResponseWriter, r *http.Request, token string) {
	playlists, err := h.library(r.Context(), token).Playlists(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}

	if ids := r.URL.Query().Get("ids"); ids != "" {
		playlists, err = selectPlaylists(playlists, strings.Split(ids, ","))
		if err != nil {
			h.fail(w, r, err)
			return
		}
	}

	bundle, err := h.exporter.ExportAll(r.Context(), playlists, token, nil)
	var bundleErr *tasks.BundleError
	if err != nil && !errors.As(err, &bundleErr) {
		h.fail(w, r, err)
		return
	}
	if bundleErr != nil && len(bundle.Documents) == 0 {
		h.fail(w, r, bundleErr)
		return
	}

	var buf bytes.Buffer
	if err := bundle.WriteArchive(&buf); err != nil {
		h.fail(w, r, err)
		return
	}

	if bundleErr != nil {
		names := make([]string, len(bundleErr.Failures))
		for i, f := range bundleErr.Failures {
			names[i] = f.Playlist.Name
		}
		w.Header().Set(FailuresHeader, strings.Join(names, ", "))
		h.logger.Warn("bundle incomplete", "failed", len(names), "delivered", len(bundle.Documents))
	}

	attachment(w, "application/zip", h.archiveName, buf.Len())
	w.Write(buf.Bytes())
}

// fail writes the status matching err's place in the error taxonomy.
func (h *ExportHandler) fail(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status == http.StatusTooManyRequests {
		var fe *services.FetchError
		if errors.As(err, &fe) && fe.RetryAfter > 0 {
			w.Header().Set("Retry-After", strconv.Itoa(int(fe.RetryAfter.Seconds())))
		}
	}
	if status >= http.StatusInternalServerError {
		h.logger.Error("request failed", "path", r.URL.Path, "err", err)
	}
	writeError(w, status, err.Error())
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, shared.ErrTokenExpired):
		return http.StatusUnauthorized
	case errors.Is(err, shared.ErrRateLimited):
		return http.StatusTooManyRequests
	case errors.Is(err, shared.ErrPlaylistNotFound):
		return http.StatusNotFound
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusBadGateway
	}
}

func selectPlaylists(playlists []models.PlaylistRef, ids []string) ([]models.PlaylistRef, error) {
	selected := make([]models.PlaylistRef, 0, len(ids))
	for _, id := range ids {
		p, err := services.FindPlaylist(playlists, strings.TrimSpace(id))
		if err != nil {
			return nil, err
		}
		selected = append(selected, p)
	}
	return selected, nil
}

func bearerToken(r *http.Request) (string, bool) {
	scheme, token, found := strings.Cut(r.Header.Get("Authorization"), " ")
	if !found || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(token) == "" {
		return "", false
	}
	return strings.TrimSpace(token), true
}

func attachment(w http.ResponseWriter, contentType, name string, size int) {
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	w.Header().Set("Content-Length", strconv.Itoa(size))
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
