// Package tabular turns uploaded CSV and XLSX files into raw tables.
package tabular

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/gasparespejo/EFILabs/internal/domain"
	"github.com/xuri/excelize/v2"
	"golang.org/x/text/encoding/charmap"
)

var (
	utf8BOM  = []byte{0xEF, 0xBB, 0xBF}
	zipMagic = []byte{'P', 'K', 0x03, 0x04}
)

// delimiters are tried in order; the first one yielding more than one
// header column wins.
var delimiters = []rune{',', ';', '\t'}

// Parser implements pipeline.Parser for delimited text and XLSX workbooks.
type Parser struct{}

// NewParser creates a Parser.
func NewParser() *Parser {
	return &Parser{}
}

// Parse reads a file into a RawTable. The format is chosen by extension,
// falling back to content sniffing. Failures wrap domain.ErrMalformedFile.
func (p *Parser) Parse(f domain.SourceFile) (domain.RawTable, error) {
	var (
		rows [][]string
		err  error
	)
	switch ext := strings.ToLower(filepath.Ext(f.Name)); {
	case ext == ".xls":
		return domain.RawTable{}, fmt.Errorf("%w: legacy .xls workbooks are not supported", domain.ErrMalformedFile)
	case ext == ".xlsx" || ext == ".xlsm" || bytes.HasPrefix(f.Content, zipMagic):
		rows, err = readWorkbook(f.Content)
	default:
		rows, err = readDelimited(f.Content)
	}
	if err != nil {
		return domain.RawTable{}, fmt.Errorf("%w: %s: %w", domain.ErrMalformedFile, f.Name, err)
	}

	rows = dropBlankRows(rows)
	if len(rows) == 0 {
		return domain.RawTable{}, fmt.Errorf("%w: %s: no header row", domain.ErrMalformedFile, f.Name)
	}
	return domain.RawTable{File: f.Name, Header: rows[0], Rows: rows[1:]}, nil
}

func readDelimited(content []byte) ([][]string, error) {
	content = bytes.TrimPrefix(content, utf8BOM)
	if !utf8.Valid(content) {
		decoded, err := charmap.Windows1252.NewDecoder().Bytes(content)
		if err != nil {
			return nil, fmt.Errorf("decode windows-1252: %w", err)
		}
		content = decoded
	}
	if len(bytes.TrimSpace(content)) == 0 {
		return nil, errors.New("empty file")
	}
	if bytes.ContainsFunc(content, isBinaryControl) {
		return nil, errors.New("binary content")
	}

	var (
		best    [][]string
		lastErr error
	)
	for _, d := range delimiters {
		rows, err := readCSV(content, d)
		if err != nil {
			lastErr = err
			continue
		}
		if len(rows) > 0 && len(rows[0]) > 1 {
			return rows, nil
		}
		if best == nil {
			best = rows
		}
	}
	if best == nil {
		return nil, lastErr
	}
	return best, nil
}

// isBinaryControl matches control characters other than tab and line breaks.
// NUL bytes and the C1 range left by undefined Windows-1252 bytes fall here.
func isBinaryControl(r rune) bool {
	switch r {
	case '\t', '\n', '\r':
		return false
	}
	return unicode.IsControl(r)
}

func readCSV(content []byte, comma rune) ([][]string, error) {
	r := csv.NewReader(bytes.NewReader(content))
	r.Comma = comma
	r.FieldsPerRecord = -1
	r.LazyQuotes = true
	r.TrimLeadingSpace = true
	rows, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read csv (%q): %w", comma, err)
	}
	return rows, nil
}

// readWorkbook returns the rows of the first sheet that has any content.
// Raw cell values are used so dates arrive as serial numbers regardless of
// the workbook's display format.
func readWorkbook(content []byte) ([][]string, error) {
	wb, err := excelize.OpenReader(bytes.NewReader(content))
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	defer func() { _ = wb.Close() }()

	for _, sheet := range wb.GetSheetList() {
		rows, err := wb.GetRows(sheet, excelize.Options{RawCellValue: true})
		if err != nil {
			return nil, fmt.Errorf("read sheet %q: %w", sheet, err)
		}
		if len(dropBlankRows(rows)) > 0 {
			return rows, nil
		}
	}
	return nil, errors.New("workbook has no data")
}

func dropBlankRows(rows [][]string) [][]string {
	out := rows[:0:0]
	for _, row := range rows {
		for _, c := range row {
			if strings.TrimSpace(c) != "" {
				out = append(out, row)
				break
			}
		}
	}
	return out
}
