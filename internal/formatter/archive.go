package formatter

import (
	"archive/zip"
	"fmt"
	"io"
	"time"

	"github.com/ChinoUkaegbu/exportify/internal/models"
)

// WriteArchive writes docs to w as a zip with one entry per document, in order.
//
// Entry names are the documents' file names, so callers de-duplicate them first (see [NameSet]).
func WriteArchive(w io.Writer, docs []*models.Document) error {
	zw := zip.NewWriter(w)
	modified := time.Now()

	for _, doc := range docs {
		f, err := zw.CreateHeader(&zip.FileHeader{
			Name:     doc.FileName,
			Method:   zip.Deflate,
			Modified: modified,
		})
		if err != nil {
			return fmt.Errorf("failed to add %s to archive: %w", doc.FileName, err)
		}
		if _, err := f.Write(doc.Data); err != nil {
			return fmt.Errorf("failed to write %s to archive: %w", doc.FileName, err)
		}
	}

	if err := zw.Close(); err != nil {
		return fmt.Errorf("failed to finalize archive: %w", err)
	}
	return nil
}
