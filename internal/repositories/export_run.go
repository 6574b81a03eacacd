package repositories

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/ChinoUkaegbu/exportify/internal/models"
	"github.com/ChinoUkaegbu/exportify/internal/shared"
)

// ErrRunNotFound is returned by [ExportRunRepository.Get] for unknown IDs.
var ErrRunNotFound = errors.New("export run not found")

const exportRunColumns = `id, sequence, batch_id, playlist_id, playlist_name, file_name, row_count, status, error, created_at`

// ExportRunRepository persists [models.ExportRun] records.
type ExportRunRepository struct {
	db *sql.DB
}

// NewExportRunRepository creates a new ExportRunRepository with the given database connection
func NewExportRunRepository(db *sql.DB) *ExportRunRepository {
	return &ExportRunRepository{db: db}
}

// Create inserts a run with a generated ID and sequence
func (r *ExportRunRepository) Create(run *models.ExportRun) error {
	if err := run.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	sequence, err := NextSequence(r.db, "export_runs")
	if err != nil {
		return fmt.Errorf("failed to generate sequence: %w", err)
	}

	id := shared.GenerateID()

	query := `
		INSERT INTO export_runs (` + exportRunColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err = r.db.Exec(query,
		id,
		sequence,
		run.BatchID,
		run.PlaylistID,
		run.PlaylistName,
		run.FileName,
		run.Rows,
		string(run.Status),
		run.Error,
		run.CreatedAt(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert export run: %w", err)
	}

	run.SetID(id)
	run.SetSequence(sequence)
	return nil
}

// Get retrieves a run by ID
func (r *ExportRunRepository) Get(id string) (*models.ExportRun, error) {
	query := `SELECT ` + exportRunColumns + ` FROM export_runs WHERE id = ?`

	run, err := scanRun(r.db.QueryRow(query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	return run, err
}

// List returns the most recent runs, newest first. A limit of zero or less returns every run.
func (r *ExportRunRepository) List(limit int) ([]*models.ExportRun, error) {
	query := `SELECT ` + exportRunColumns + ` FROM export_runs ORDER BY sequence DESC`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	return r.query(query, args...)
}

// ListBatch returns every run of one export command in insertion order.
func (r *ExportRunRepository) ListBatch(batchID string) ([]*models.ExportRun, error) {
	query := `SELECT ` + exportRunColumns + ` FROM export_runs WHERE batch_id = ? ORDER BY sequence ASC`
	return r.query(query, batchID)
}

func (r *ExportRunRepository) query(query string, args ...any) ([]*models.ExportRun, error) {
	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query export runs: %w", err)
	}
	defer rows.Close()

	var runs []*models.ExportRun
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating export runs: %w", err)
	}
	return runs, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(s scanner) (*models.ExportRun, error) {
	var (
		id, status string
		sequence   int
		createdAt  time.Time
		run        models.ExportRun
	)

	err := s.Scan(
		&id,
		&sequence,
		&run.BatchID,
		&run.PlaylistID,
		&run.PlaylistName,
		&run.FileName,
		&run.Rows,
		&status,
		&run.Error,
		&createdAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan export run: %w", err)
	}

	run.SetID(id)
	run.SetSequence(sequence)
	run.SetCreatedAt(createdAt)
	run.Status = models.RunStatus(status)
	return &run, nil
}
