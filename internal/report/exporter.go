package report

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Archiver stores a copy of an exported report.
type Archiver interface {
	ArchiveReport(ctx context.Context, id uuid.UUID, filename string, generatedAt time.Time, data []byte) (string, error)
}

// ExportResult describes one written report.
type ExportResult struct {
	ID       uuid.UUID
	Path     string
	Location string
	Rows     int
}

// Exporter writes reports to a directory and optionally archives them.
type Exporter struct {
	dir      string
	archiver Archiver
	logger   *slog.Logger
}

// NewExporter creates an Exporter writing into dir. archiver may be nil.
func NewExporter(dir string, archiver Archiver, logger *slog.Logger) *Exporter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Exporter{dir: dir, archiver: archiver, logger: logger}
}

// Export writes the predictions as batch_predictions_<date>.csv, or
// batch_predictions_<date>_N.csv when earlier reports of that day exist. An
// archive failure is logged and does not fail the export.
func (e *Exporter) Export(ctx context.Context, predictions []Prediction, now time.Time) (*ExportResult, error) {
	var buf bytes.Buffer
	if err := WriteCSV(&buf, predictions); err != nil {
		return nil, err
	}

	if err := os.MkdirAll(e.dir, 0o755); err != nil {
		return nil, fmt.Errorf("create export dir: %w", err)
	}

	path, err := writeUnique(e.dir, Filename(now), buf.Bytes())
	if err != nil {
		return nil, err
	}
	name := filepath.Base(path)

	result := &ExportResult{
		ID:   uuid.New(),
		Path: path,
		Rows: len(predictions),
	}

	e.logger.Info("report exported", "path", path, "rows", result.Rows, "report_id", result.ID)

	if e.archiver != nil {
		location, err := e.archiver.ArchiveReport(ctx, result.ID, name, now, buf.Bytes())
		if err != nil {
			e.logger.Warn("report archive failed", "report_id", result.ID, "error", err)
		} else {
			result.Location = location
		}
	}

	return result, nil
}

// maxReportsPerDay bounds the suffix search in writeUnique.
const maxReportsPerDay = 10000

// writeUnique creates name in dir without replacing an existing file, adding
// _1, _2, ... before the extension on collision.
func writeUnique(dir, name string, data []byte) (string, error) {
	ext := filepath.Ext(name)
	base := strings.TrimSuffix(name, ext)

	for i := 0; i < maxReportsPerDay; i++ {
		candidate := name
		if i > 0 {
			candidate = fmt.Sprintf("%s_%d%s", base, i, ext)
		}
		path := filepath.Join(dir, candidate)

		f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
		if errors.Is(err, os.ErrExist) {
			continue
		}
		if err != nil {
			return "", fmt.Errorf("create report %s: %w", path, err)
		}

		_, werr := f.Write(data)
		cerr := f.Close()
		if werr == nil {
			werr = cerr
		}
		if werr != nil {
			os.Remove(path)
			return "", fmt.Errorf("write report %s: %w", path, werr)
		}
		return path, nil
	}
	return "", fmt.Errorf("create report %s: too many reports for one day", name)
}
