// Package xlsx writes a run's report tables into a single workbook, one
// sheet per table.
package xlsx

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"

	"github.com/gasparespejo/EFILabs/internal/domain"
	"github.com/gasparespejo/EFILabs/internal/pipeline"
	"github.com/xuri/excelize/v2"
)

// FileName is the workbook written into the output directory.
const FileName = "reporte_presiones.xlsx"

// maxSheetName is Excel's limit on sheet name length.
const maxSheetName = 31

// Writer implements pipeline.Loader.
type Writer struct {
	dir    string
	logger *slog.Logger
}

// NewWriter creates a workbook writer for dir.
func NewWriter(dir string, logger *slog.Logger) *Writer {
	return &Writer{dir: dir, logger: logger}
}

func (w *Writer) Name() string { return "xlsx" }

// Load writes every table of res to <dir>/reporte_presiones.xlsx. Numeric
// cells are stored as numbers so the workbook can be filtered and charted.
func (w *Writer) Load(ctx context.Context, res *pipeline.Result) error {
	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}

	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	header, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("create header style: %w", err)
	}

	used := make(map[string]bool)
	for i, t := range res.Tables() {
		if err := ctx.Err(); err != nil {
			return err
		}
		sheet := uniqueSheetName(t.Name, used)
		if i == 0 {
			if err := f.SetSheetName(f.GetSheetName(0), sheet); err != nil {
				return fmt.Errorf("rename sheet: %w", err)
			}
		} else if _, err := f.NewSheet(sheet); err != nil {
			return fmt.Errorf("add sheet %s: %w", sheet, err)
		}
		if err := writeTable(f, sheet, t, header); err != nil {
			return err
		}
	}

	path := filepath.Join(w.dir, FileName)
	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("save %s: %w", path, err)
	}
	w.logger.Debug("workbook written", "path", path, "sheets", len(f.GetSheetList()))
	return nil
}

func writeTable(f *excelize.File, sheet string, t domain.Table, headerStyle int) error {
	header := make([]any, len(t.Columns))
	for i, c := range t.Columns {
		header[i] = c
	}
	if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
		return fmt.Errorf("write %s header: %w", sheet, err)
	}
	last, err := excelize.CoordinatesToCellName(len(t.Columns), 1)
	if err != nil {
		return err
	}
	if err := f.SetCellStyle(sheet, "A1", last, headerStyle); err != nil {
		return fmt.Errorf("style %s header: %w", sheet, err)
	}

	for r, row := range t.Rows {
		cell, err := excelize.CoordinatesToCellName(1, r+2)
		if err != nil {
			return err
		}
		values := make([]any, len(row))
		for i, v := range row {
			values[i] = cellValue(t.Columns[i], v)
		}
		if err := f.SetSheetRow(sheet, cell, &values); err != nil {
			return fmt.Errorf("write %s row %d: %w", sheet, r+1, err)
		}
	}
	return f.SetPanes(sheet, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	})
}

// textColumns are never converted to numbers, even when they look numeric.
var textColumns = map[string]bool{
	string(domain.FieldPatente):   true,
	string(domain.FieldRuta):      true,
	string(domain.FieldSede):      true,
	string(domain.FieldOperacion): true,
	string(domain.FieldPosicion):  true,
	string(domain.FieldFecha):     true,
	"archivo":                     true,
}

func cellValue(column, v string) any {
	if v == "" || textColumns[column] {
		return v
	}
	if n, err := strconv.ParseFloat(v, 64); err == nil {
		return n
	}
	return v
}

// SheetName truncates a table name to Excel's sheet name limit.
func SheetName(name string) string {
	if len(name) > maxSheetName {
		return name[:maxSheetName]
	}
	return name
}

// uniqueSheetName suffixes truncated names that collide with an earlier sheet.
func uniqueSheetName(name string, used map[string]bool) string {
	sheet := SheetName(name)
	for n := 2; used[sheet]; n++ {
		suffix := "~" + strconv.Itoa(n)
		base := SheetName(name)
		if len(base)+len(suffix) > maxSheetName {
			base = base[:maxSheetName-len(suffix)]
		}
		sheet = base + suffix
	}
	used[sheet] = true
	return sheet
}
