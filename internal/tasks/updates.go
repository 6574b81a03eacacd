package tasks

import (
	"fmt"

	"github.com/ChinoUkaegbu/exportify/internal/models"
)

// ProgressUpdate represents a progress event during a long-running operation.
//
// Used to send real-time updates to the CLI or UI layer for display.
type ProgressUpdate struct {
	Phase   Phase  // Operation phase
	Step    int    // Current step number within phase
	Total   int    // Total steps in this phase
	Message string // Human-readable message for display
	Data    any    // Optional phase-specific data for advanced UIs
}

// Operation phase enumeration
type Phase int

const (
	FetchTracks Phase = iota
	ResolveArtists
	RenderDocument
	ExportPlaylist
)

func (p Phase) String() string {
	switch p {
	case FetchTracks:
		return "fetch_tracks"
	case ResolveArtists:
		return "resolve_artists"
	case RenderDocument:
		return "render_document"
	case ExportPlaylist:
		return "export_playlist"
	default:
		return ""
	}
}

func fetchTracksUpdate(p models.PlaylistRef) ProgressUpdate {
	windows := (p.TrackTotal + PageSize - 1) / PageSize
	return ProgressUpdate{
		Phase:   FetchTracks,
		Step:    0,
		Total:   windows,
		Message: fmt.Sprintf("Fetching %d tracks of %s...", p.TrackTotal, p.Name),
	}
}

func resolveArtistsUpdate(p models.PlaylistRef, artists int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   ResolveArtists,
		Step:    0,
		Total:   artists,
		Message: fmt.Sprintf("Resolving genres for %d artists in %s...", artists, p.Name),
	}
}

func renderUpdate(doc *models.Document) ProgressUpdate {
	return ProgressUpdate{
		Phase:   RenderDocument,
		Step:    1,
		Total:   1,
		Message: fmt.Sprintf("Rendered %s (%d rows)", doc.FileName, doc.Rows),
		Data:    doc,
	}
}

func exportingPlaylistUpdate(step, total int, name string) ProgressUpdate {
	return ProgressUpdate{
		Phase:   ExportPlaylist,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] Exporting: %s...", step, total, name),
	}
}

func exportCompletedUpdate(step, total int, doc *models.Document) ProgressUpdate {
	return ProgressUpdate{
		Phase:   ExportPlaylist,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] ✓ %s (%d tracks)", step, total, doc.Playlist.Name, doc.Rows),
		Data:    doc,
	}
}

func exportFailedUpdate(step, total int, err *ExportError) ProgressUpdate {
	return ProgressUpdate{
		Phase:   ExportPlaylist,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] ✗ %s: %v", step, total, err.Playlist.Name, err.Err),
		Data:    err,
	}
}
