package main

import (
	"context"
	"fmt"
	"time"

	"github.com/ChinoUkaegbu/exportify/internal/models"
	"github.com/dustin/go-humanize"
	"github.com/urfave/cli/v3"
)

// History prints recorded exports, newest first.
func (r *Runner) History(ctx context.Context, cmd *cli.Command) error {
	repo, release, err := r.history()
	if err != nil {
		return err
	}
	defer release()

	var runs []*models.ExportRun
	switch id, batch := cmd.String("id"), cmd.String("batch"); {
	case id != "":
		var run *models.ExportRun
		if run, err = repo.Get(id); err == nil {
			runs = []*models.ExportRun{run}
		}
	case batch != "":
		runs, err = repo.ListBatch(batch)
	default:
		runs, err = repo.List(int(cmd.Int("limit")))
	}
	if err != nil {
		return fmt.Errorf("failed to load history: %w", err)
	}

	if cmd.Bool("json") {
		return r.writeJSON(historyJSON(runs), true)
	}

	if len(runs) == 0 {
		r.writePlain("No exports recorded yet\n")
		return nil
	}

	r.writePlainHeader(fmt.Sprintf("Exports (%d)", len(runs)))
	for _, run := range runs {
		when := humanize.Time(run.CreatedAt())
		switch run.Status {
		case models.RunSucceeded:
			r.writePlain("✓ #%-4d %-14s %s → %s (%d rows)\n", run.Sequence(), when, run.PlaylistName, run.FileName, run.Rows)
		default:
			r.writePlain("✗ #%-4d %-14s %s: %s\n", run.Sequence(), when, run.PlaylistName, run.Error)
		}
	}
	return nil
}

type historyEntry struct {
	ID           string           `json:"id"`
	Sequence     int              `json:"sequence"`
	BatchID      string           `json:"batch_id"`
	PlaylistID   string           `json:"playlist_id"`
	PlaylistName string           `json:"playlist_name"`
	FileName     string           `json:"file_name,omitempty"`
	Rows         int              `json:"rows"`
	Status       models.RunStatus `json:"status"`
	Error        string           `json:"error,omitempty"`
	CreatedAt    time.Time        `json:"created_at"`
}

func historyJSON(runs []*models.ExportRun) []historyEntry {
	entries := make([]historyEntry, len(runs))
	for i, run := range runs {
		entries[i] = historyEntry{
			ID:           run.ID(),
			Sequence:     run.Sequence(),
			BatchID:      run.BatchID,
			PlaylistID:   run.PlaylistID,
			PlaylistName: run.PlaylistName,
			FileName:     run.FileName,
			Rows:         run.Rows,
			Status:       run.Status,
			Error:        run.Error,
			CreatedAt:    run.CreatedAt(),
		}
	}
	return entries
}
