package domain

import (
	"math"
	"strconv"
	"strings"
	"time"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// ColumnMap records which header index feeds each canonical field.
type ColumnMap map[Field]int

// Missing lists the required fields that did not resolve.
func (m ColumnMap) Missing(required []Field) []Field {
	var out []Field
	for _, f := range required {
		if _, ok := m[f]; !ok {
			out = append(out, f)
		}
	}
	return out
}

// ejeTipoSynonyms maps folded axle labels to their canonical spelling.
var ejeTipoSynonyms = map[string]string{
	"direccion": "direccional",
	"traccion":  "traccion",
	"libre":     "arrastre",
}

// dateLayouts are tried in order. Day-first layouts precede month-first ones
// because the source systems are configured for es-CL.
var dateLayouts = []string{
	time.DateOnly,
	time.DateTime,
	time.RFC3339,
	"2006-01-02 15:04",
	"2006-01-02T15:04:05",
	"02/01/2006",
	"02/01/2006 15:04",
	"02/01/2006 15:04:05",
	"02-01-2006",
	"02-01-2006 15:04",
	"02-01-2006 15:04:05",
	"2006/01/02",
	"2/1/2006",
	"02.01.2006",
}

// FoldKey returns the matching key for a column name: accents stripped,
// lower-cased, with runs of whitespace, '_' and '-' collapsed to one space.
func FoldKey(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, s)
	if err != nil {
		folded = s
	}
	parts := strings.FieldsFunc(strings.ToLower(folded), func(r rune) bool {
		return unicode.IsSpace(r) || r == '_' || r == '-' || r == '\ufeff'
	})
	return strings.Join(parts, " ")
}

// ResolveColumns maps canonical fields to header indexes. For each field the
// aliases are tried in table order and the first one present in the header
// wins. A header column may feed several fields. Duplicate header names
// resolve to their first occurrence.
func ResolveColumns(header []string, aliases AliasTable) ColumnMap {
	index := make(map[string]int, len(header))
	for i, h := range header {
		k := FoldKey(h)
		if k == "" {
			continue
		}
		if _, dup := index[k]; !dup {
			index[k] = i
		}
	}

	cm := make(ColumnMap, len(canonicalFields))
	for _, fa := range aliases {
		if _, done := cm[fa.Field]; done {
			continue
		}
		for _, alias := range fa.Aliases {
			if i, ok := index[FoldKey(alias)]; ok {
				cm[fa.Field] = i
				break
			}
		}
	}
	return cm
}

// Normalize maps one raw row onto the canonical schema. Every canonical field
// is present on the result; unmatched or unparsable values are nil.
func Normalize(raw RawRecord, aliases AliasTable) CanonicalRecord {
	return normalizeRow(raw, ResolveColumns(raw.Header, aliases))
}

// NormalizeFile resolves the header once and normalizes every row, then
// applies the file-level operacion fallback.
func NormalizeFile(t RawTable, aliases AliasTable) []CanonicalRecord {
	return NormalizeTable(t, ResolveColumns(t.Header, aliases))
}

// NormalizeTable normalizes every row of t with a pre-resolved column map.
// When no row has operacion but some row has sede, sede is copied into
// operacion for the whole file.
func NormalizeTable(t RawTable, cm ColumnMap) []CanonicalRecord {
	records := make([]CanonicalRecord, 0, len(t.Rows))
	for _, raw := range t.Records() {
		records = append(records, normalizeRow(raw, cm))
	}
	applyOperacionFallback(records)
	return records
}

func applyOperacionFallback(records []CanonicalRecord) {
	hasSede := false
	for _, r := range records {
		if r.Operacion != nil {
			return
		}
		if r.Sede != nil {
			hasSede = true
		}
	}
	if !hasSede {
		return
	}
	for i := range records {
		if records[i].Sede != nil {
			records[i].Operacion = ptr(*records[i].Sede)
		}
	}
}

func normalizeRow(raw RawRecord, cm ColumnMap) CanonicalRecord {
	cell := func(f Field) (string, bool) {
		i, ok := cm[f]
		if !ok || i >= len(raw.Values) {
			return "", false
		}
		v := strings.TrimSpace(raw.Values[i])
		return v, v != ""
	}

	rec := CanonicalRecord{Archivo: raw.File, Fila: raw.Row}

	if v, ok := cell(FieldPatente); ok {
		rec.Patente = ptr(strings.ToUpper(v))
	}
	if v, ok := cell(FieldRuta); ok {
		rec.Ruta = ptr(v)
	}
	if v, ok := cell(FieldSede); ok {
		rec.Sede = ptr(v)
	}
	if v, ok := cell(FieldOperacion); ok {
		rec.Operacion = ptr(v)
	}
	if v, ok := cell(FieldEjeTipo); ok {
		rec.EjeTipo = ptr(normalizeEjeTipo(v))
	}
	if v, ok := cell(FieldPosicion); ok {
		rec.Posicion = ptr(v)
	}
	if v, ok := cell(FieldFecha); ok {
		if d, ok := parseDate(v); ok {
			rec.Fecha = &d
		} else {
			rec.Unparsable = append(rec.Unparsable, FieldFecha)
		}
	}
	if v, ok := cell(FieldPresionPSI); ok {
		if p, ok := parseNumber(v); ok {
			rec.PresionPSI = &p
		} else {
			rec.Unparsable = append(rec.Unparsable, FieldPresionPSI)
		}
	}
	if v, ok := cell(FieldPresionOptimaPSI); ok {
		if p, ok := parseNumber(v); ok {
			rec.PresionOptimaPSI = &p
		} else {
			rec.Unparsable = append(rec.Unparsable, FieldPresionOptimaPSI)
		}
	}
	return rec
}

func normalizeEjeTipo(v string) string {
	v = strings.ToLower(strings.TrimSpace(v))
	if canon, ok := ejeTipoSynonyms[FoldKey(v)]; ok {
		return canon
	}
	return v
}

// parseNumber accepts '.' or ',' as decimal separator, tolerates thousands
// separators and a trailing "psi" unit. Non-finite values are rejected.
func parseNumber(s string) (float64, bool) {
	raw := strings.ReplaceAll(strings.TrimSpace(s), "\u00a0", "")
	if len(raw) > 3 && strings.EqualFold(raw[len(raw)-3:], "psi") {
		raw = strings.TrimSpace(raw[:len(raw)-3])
	}
	raw = strings.ReplaceAll(raw, " ", "")
	if raw == "" {
		return 0, false
	}

	comma := strings.LastIndex(raw, ",")
	dot := strings.LastIndex(raw, ".")
	switch {
	case comma >= 0 && dot >= 0 && comma > dot:
		raw = strings.ReplaceAll(raw, ".", "")
		raw = strings.Replace(raw, ",", ".", 1)
	case comma >= 0 && dot >= 0:
		raw = strings.ReplaceAll(raw, ",", "")
	case comma >= 0:
		if strings.Count(raw, ",") > 1 {
			return 0, false
		}
		raw = strings.Replace(raw, ",", ".", 1)
	}

	v, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}

// parseDate tries the known layouts, then an Excel serial day number.
func parseDate(s string) (time.Time, bool) {
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return parseExcelSerial(s)
}

// excelEpoch is day zero of the 1900 date system, shifted for the leap-year bug.
var excelEpoch = time.Date(1899, 12, 30, 0, 0, 0, 0, time.UTC)

func parseExcelSerial(s string) (time.Time, bool) {
	days, err := strconv.ParseFloat(s, 64)
	// 1982-09-18 .. 2118-12-11
	if err != nil || days < 30000 || days > 80000 {
		return time.Time{}, false
	}
	whole := math.Floor(days)
	t := excelEpoch.AddDate(0, 0, int(whole))
	secs := math.Round((days - whole) * 86400)
	return t.Add(time.Duration(secs) * time.Second), true
}
