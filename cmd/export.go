package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/ChinoUkaegbu/exportify/internal/formatter"
	"github.com/ChinoUkaegbu/exportify/internal/models"
	"github.com/ChinoUkaegbu/exportify/internal/shared"
	"github.com/ChinoUkaegbu/exportify/internal/tasks"
	"github.com/charmbracelet/log"
	"github.com/dustin/go-humanize"
	"github.com/urfave/cli/v3"
)

const exportFileMode = 0644

// fileSaver writes export results below dir. Files appear only once fully written.
type fileSaver struct {
	dir         string
	archiveName string
}

func (s fileSaver) SaveDocument(doc *models.Document) (string, error) {
	return s.write(doc.FileName, doc.Data)
}

func (s fileSaver) SaveBundle(bundle *tasks.Bundle) (string, error) {
	var buf bytes.Buffer
	if err := bundle.WriteArchive(&buf); err != nil {
		return "", err
	}

	name := s.archiveName
	if name == "" {
		name = formatter.DefaultArchive
	}
	return s.write(name, buf.Bytes())
}

// write stores data through a temp file and rename so readers never see a partial file.
func (s fileSaver) write(name string, data []byte) (string, error) {
	if err := os.MkdirAll(s.dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create output directory: %w", err)
	}

	tmp, err := os.CreateTemp(s.dir, ".exportify-*")
	if err != nil {
		return "", fmt.Errorf("failed to create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return "", fmt.Errorf("failed to write %s: %w", name, err)
	}
	// CreateTemp files are owner-only
	if err := tmp.Chmod(exportFileMode); err != nil {
		tmp.Close()
		return "", fmt.Errorf("failed to set permissions on %s: %w", name, err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("failed to write %s: %w", name, err)
	}

	path := filepath.Join(s.dir, name)
	if err := os.Rename(tmp.Name(), path); err != nil {
		return "", fmt.Errorf("failed to move %s into place: %w", name, err)
	}
	return path, nil
}

func (r *Runner) saver(output string) fileSaver {
	if output == "" {
		output = r.config.Export.OutputDir
	}
	if output == "" {
		output = "."
	}
	return fileSaver{dir: output, archiveName: r.config.Export.ArchiveName}
}

// Export renders one playlist (--id or --name) to CSV, or all of them (--all) into a zip.
func (r *Runner) Export(ctx context.Context, cmd *cli.Command) error {
	id, name, all := cmd.String("id"), cmd.String("name"), cmd.Bool("all")

	selectors := 0
	for _, set := range []bool{id != "", name != "", all} {
		if set {
			selectors++
		}
	}
	switch {
	case selectors == 0:
		return fmt.Errorf("%w: one of --id, --name or --all is required", shared.ErrMissingArgument)
	case selectors > 1:
		return fmt.Errorf("%w: --id, --name and --all are mutually exclusive", shared.ErrInvalidArgument)
	}

	token, err := r.token()
	if err != nil {
		return err
	}

	library := r.library(ctx, token)
	saver := r.saver(cmd.String("output"))
	batchID := shared.GenerateID()

	if all {
		playlists, err := library.Playlists(ctx)
		if err != nil {
			return fmt.Errorf("failed to list playlists: %w", err)
		}
		return r.exportAll(ctx, playlists, token, batchID, saver)
	}

	key := id
	if key == "" {
		key = name
	}
	playlist, err := library.Find(ctx, key)
	if err != nil {
		return err
	}
	return r.exportOne(ctx, playlist, token, batchID, saver)
}

func (r *Runner) exportOne(ctx context.Context, playlist models.PlaylistRef, token, batchID string, saver fileSaver) error {
	progress, done := r.logProgress()
	doc, err := r.exporter.ExportOne(ctx, playlist, token, progress)
	close(progress)
	<-done

	if err != nil {
		r.record(batchID, []models.PlaylistRef{playlist}, nil, err)
		return err
	}

	path, err := saver.SaveDocument(doc)
	if err != nil {
		return err
	}
	r.record(batchID, nil, []*models.Document{doc}, nil)

	r.writePlain("✓ %s: %d tracks → %s (%s)\n", playlist.Name, doc.Rows, path, humanize.Bytes(uint64(len(doc.Data))))
	r.reportUnresolved(doc)
	return nil
}

func (r *Runner) exportAll(ctx context.Context, playlists []models.PlaylistRef, token, batchID string, saver fileSaver) error {
	progress, done := r.logProgress()
	bundle, err := r.exporter.ExportAll(ctx, playlists, token, progress)
	close(progress)
	<-done

	var bundleErr *tasks.BundleError
	if err != nil && !errors.As(err, &bundleErr) {
		return err
	}

	for _, f := range bundle.Failures {
		r.record(batchID, []models.PlaylistRef{f.Playlist}, nil, f)
	}

	// nothing to deliver
	if bundleErr != nil && len(bundle.Documents) == 0 {
		return bundleErr
	}

	path, err := saver.SaveBundle(bundle)
	if err != nil {
		return err
	}
	r.record(batchID, nil, bundle.Documents, nil)

	r.writePlain("✓ %d of %d playlists → %s\n", len(bundle.Documents), len(playlists), path)
	for _, doc := range bundle.Documents {
		r.reportUnresolved(doc)
	}
	if bundleErr != nil {
		r.writePlainln("✗ %d playlists could not be exported:", len(bundle.Failures))
		for _, f := range bundle.Failures {
			r.writePlain("  %s (%s): %v\n", f.Playlist.Name, f.Stage, f.Err)
			if hint := hintFor(f); hint != "" {
				r.writePlain("    hint: %s\n", hint)
			}
		}
	}
	return nil
}

func (r *Runner) reportUnresolved(doc *models.Document) {
	if len(doc.Unresolved) == 0 {
		return
	}
	r.writePlain("  ! %s: %d artists exported without genres\n", doc.FileName, len(doc.Unresolved))
}

// logProgress drains progress updates into the logger until the channel is closed.
func (r *Runner) logProgress() (chan tasks.ProgressUpdate, <-chan struct{}) {
	progress := make(chan tasks.ProgressUpdate, 64)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for u := range progress {
			level := log.DebugLevel
			if u.Phase == tasks.ExportPlaylist {
				level = log.InfoLevel
			}
			r.logger.Log(level, u.Message, "phase", u.Phase)
		}
	}()
	return progress, done
}

// record writes one history row per playlist. History is best effort; failures are logged.
func (r *Runner) record(batchID string, failed []models.PlaylistRef, docs []*models.Document, cause error) {
	repo, release, err := r.history()
	if err != nil {
		r.logger.Warn("export history unavailable", "error", err)
		return
	}
	defer release()

	var runs []*models.ExportRun
	for _, p := range failed {
		run := models.NewExportRun(batchID, p)
		run.Fail(cause)
		runs = append(runs, run)
	}
	for _, doc := range docs {
		run := models.NewExportRun(batchID, doc.Playlist)
		run.Succeed(doc)
		runs = append(runs, run)
	}

	for _, run := range runs {
		if err := repo.Create(run); err != nil {
			r.logger.Warn("failed to record export", "playlist", run.PlaylistName, "error", err)
		}
	}
}
