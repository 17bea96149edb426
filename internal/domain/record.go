package domain

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Field names a canonical column.
type Field string

const (
	FieldPatente          Field = "patente"
	FieldRuta             Field = "ruta"
	FieldSede             Field = "sede"
	FieldOperacion        Field = "operacion"
	FieldEjeTipo          Field = "eje_tipo"
	FieldPosicion         Field = "posicion"
	FieldFecha            Field = "fecha"
	FieldPresionPSI       Field = "presion_psi"
	FieldPresionOptimaPSI Field = "presion_optima_psi"
)

// canonicalFields fixes the output column order.
var canonicalFields = []Field{
	FieldPatente,
	FieldRuta,
	FieldSede,
	FieldOperacion,
	FieldEjeTipo,
	FieldPosicion,
	FieldFecha,
	FieldPresionPSI,
	FieldPresionOptimaPSI,
}

// RequiredFields must resolve in a file header for the file to be accepted.
var RequiredFields = []Field{FieldPatente, FieldPresionPSI, FieldPresionOptimaPSI}

// CanonicalFields returns the closed field set in output order.
func CanonicalFields() []Field {
	out := make([]Field, len(canonicalFields))
	copy(out, canonicalFields)
	return out
}

// ParseField validates a field name.
func ParseField(s string) (Field, error) {
	f := Field(strings.TrimSpace(strings.ToLower(s)))
	for _, c := range canonicalFields {
		if c == f {
			return f, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownField, s)
}

// SourceFile is one uploaded input: a file name plus its raw bytes.
// ReadErr is set when the file was listed but its bytes could not be read;
// the file is then rejected instead of failing the whole run.
type SourceFile struct {
	Name    string
	Content []byte
	ReadErr error
}

// RawTable is a parsed file before schema mapping.
type RawTable struct {
	File   string
	Header []string
	Rows   [][]string
}

// RawRecord is one data row of a RawTable. Row is 1-based and excludes the header.
type RawRecord struct {
	File   string
	Row    int
	Header []string
	Values []string
}

// Records splits the table into RawRecords sharing the header slice.
func (t RawTable) Records() []RawRecord {
	out := make([]RawRecord, len(t.Rows))
	for i, row := range t.Rows {
		out[i] = RawRecord{File: t.File, Row: i + 1, Header: t.Header, Values: row}
	}
	return out
}

// CanonicalRecord is a row expressed in canonical fields.
type CanonicalRecord struct {
	Archivo string `json:"archivo"`
	Fila    int    `json:"fila"`

	Patente          *string    `json:"patente"`
	Ruta             *string    `json:"ruta"`
	Sede             *string    `json:"sede"`
	Operacion        *string    `json:"operacion"`
	EjeTipo          *string    `json:"eje_tipo"`
	Posicion         *string    `json:"posicion"`
	Fecha            *time.Time `json:"fecha"`
	PresionPSI       *float64   `json:"presion_psi"`
	PresionOptimaPSI *float64   `json:"presion_optima_psi"`

	// OptimaEstimada is set when PresionOptimaPSI came from an axle reference
	// pressure instead of the source file.
	OptimaEstimada bool `json:"optima_estimada,omitempty"`

	// Unparsable lists fields whose raw value was present but invalid.
	Unparsable []Field `json:"campos_invalidos,omitempty"`
}

// Eligible reports whether the record carries both pressures.
func (r CanonicalRecord) Eligible() bool {
	return r.PresionPSI != nil && r.PresionOptimaPSI != nil
}

// Value renders a field as text. The second result is false when the value is missing.
func (r CanonicalRecord) Value(f Field) (string, bool) {
	switch f {
	case FieldPatente:
		return deref(r.Patente)
	case FieldRuta:
		return deref(r.Ruta)
	case FieldSede:
		return deref(r.Sede)
	case FieldOperacion:
		return deref(r.Operacion)
	case FieldEjeTipo:
		return deref(r.EjeTipo)
	case FieldPosicion:
		return deref(r.Posicion)
	case FieldFecha:
		if r.Fecha == nil {
			return "", false
		}
		return formatDate(*r.Fecha), true
	case FieldPresionPSI:
		return formatOptional(r.PresionPSI)
	case FieldPresionOptimaPSI:
		return formatOptional(r.PresionOptimaPSI)
	default:
		return "", false
	}
}

func deref(s *string) (string, bool) {
	if s == nil {
		return "", false
	}
	return *s, true
}

func formatOptional(v *float64) (string, bool) {
	if v == nil {
		return "", false
	}
	return formatFloat(*v), true
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func formatDate(t time.Time) string {
	if t.Hour() == 0 && t.Minute() == 0 && t.Second() == 0 {
		return t.Format(time.DateOnly)
	}
	return t.Format(time.DateTime)
}

func ptr[T any](v T) *T {
	return &v
}
