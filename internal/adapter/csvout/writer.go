// Package csvout writes every report table of a run as a CSV file.
package csvout

import (
	"context"
	"encoding/csv"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/gasparespejo/EFILabs/internal/domain"
	"github.com/gasparespejo/EFILabs/internal/pipeline"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// Writer implements pipeline.Loader by writing <dir>/<table>.csv.
type Writer struct {
	dir    string
	bom    bool
	logger *slog.Logger
}

// NewWriter creates a CSV writer. With bom set, files start with a UTF-8 byte
// order mark so spreadsheet tools detect the encoding.
func NewWriter(dir string, bom bool, logger *slog.Logger) *Writer {
	return &Writer{dir: dir, bom: bom, logger: logger}
}

func (w *Writer) Name() string { return "csv" }

// Load writes one file per table, replacing earlier runs' files.
func (w *Writer) Load(ctx context.Context, res *pipeline.Result) error {
	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}
	for _, t := range res.Tables() {
		if err := ctx.Err(); err != nil {
			return err
		}
		path := filepath.Join(w.dir, t.Name+".csv")
		if err := w.writeTable(path, t); err != nil {
			return err
		}
		w.logger.Debug("csv table written", "path", path, "rows", len(t.Rows))
	}
	return nil
}

func (w *Writer) writeTable(path string, t domain.Table) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("close %s: %w", path, cerr)
		}
	}()

	if w.bom {
		if _, err := f.Write(utf8BOM); err != nil {
			return fmt.Errorf("write %s: %w", path, err)
		}
	}
	cw := csv.NewWriter(f)
	if err := cw.Write(t.Columns); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := cw.WriteAll(t.Rows); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}
