package models

import (
	"fmt"
	"time"
)

// RunStatus is the outcome recorded for one playlist in an export.
type RunStatus string

const (
	RunSucceeded RunStatus = "succeeded"
	RunFailed    RunStatus = "failed"
)

// ExportRun records the outcome of exporting one playlist.
//
// Runs created by the same command share a BatchID.
type ExportRun struct {
	id           string
	sequence     int
	createdAt    time.Time
	BatchID      string
	PlaylistID   string
	PlaylistName string
	FileName     string
	Rows         int
	Status       RunStatus
	Error        string
}

// NewExportRun creates a run stamped with the current time. The ID is assigned on insert.
func NewExportRun(batchID string, playlist PlaylistRef) *ExportRun {
	return &ExportRun{
		createdAt:    time.Now().UTC(),
		BatchID:      batchID,
		PlaylistID:   playlist.ID,
		PlaylistName: playlist.Name,
	}
}

func (r *ExportRun) ID() string           { return r.id }
func (r *ExportRun) Sequence() int        { return r.sequence }
func (r *ExportRun) CreatedAt() time.Time { return r.createdAt }

// SetID is used by repositories when inserting or scanning.
func (r *ExportRun) SetID(id string) { r.id = id }

// SetSequence is used by repositories when inserting or scanning.
func (r *ExportRun) SetSequence(seq int) { r.sequence = seq }

// SetCreatedAt is used by repositories when scanning.
func (r *ExportRun) SetCreatedAt(t time.Time) { r.createdAt = t }

// Succeed marks the run successful for the rendered document.
func (r *ExportRun) Succeed(doc *Document) {
	r.Status = RunSucceeded
	r.FileName = doc.FileName
	r.Rows = doc.Rows
	r.Error = ""
}

// Fail marks the run failed with err.
func (r *ExportRun) Fail(err error) {
	r.Status = RunFailed
	if err != nil {
		r.Error = err.Error()
	}
}

// Validate checks required fields.
func (r *ExportRun) Validate() error {
	if r.BatchID == "" {
		return fmt.Errorf("batch ID is required")
	}
	if r.PlaylistID == "" {
		return fmt.Errorf("playlist ID is required")
	}
	switch r.Status {
	case RunSucceeded, RunFailed:
	default:
		return fmt.Errorf("invalid status %q", r.Status)
	}
	return nil
}
