package domain

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// FieldAliases lists the source column names accepted for one canonical field,
// in priority order.
type FieldAliases struct {
	Field   Field
	Aliases []string
}

// AliasTable maps canonical fields to their ordered alias lists.
type AliasTable []FieldAliases

// DefaultAliasTable returns the built-in aliases for the Nazar and TCCU exports.
func DefaultAliasTable() AliasTable {
	return AliasTable{
		{FieldPatente, []string{"patente", "PPU", "vehiculo", "Vehículo", "camion", "camión"}},
		{FieldRuta, []string{"ruta", "tramo", "Trayecto", "origen_destino", "origen-destino", "od"}},
		{FieldSede, []string{"sede", "terminal", "site", "planta", "Flota"}},
		{FieldOperacion, []string{"operacion", "operation", "Flota"}},
		{FieldEjeTipo, []string{"eje_tipo", "Tipo de Eje", "tipo_eje", "eje"}},
		{FieldPosicion, []string{"posicion", "pos", "position"}},
		{FieldFecha, []string{"fecha", "Fecha Inspección", "date"}},
		{FieldPresionPSI, []string{"presion_psi", "Valor Presión", "presion", "PRESION CONTROLADA NEU"}},
		{FieldPresionOptimaPSI, []string{"presion_optima_psi", "Presión Correcta", "PRESION OPTIMA NEU"}},
	}
}

// Aliases returns the alias list for f, or nil.
func (t AliasTable) Aliases(f Field) []string {
	for _, fa := range t {
		if fa.Field == f {
			return fa.Aliases
		}
	}
	return nil
}

// aliasFile is the YAML override format:
//
//	replace: false
//	fields:
//	  patente: [matricula, "N° Patente"]
type aliasFile struct {
	Replace bool                `yaml:"replace"`
	Fields  map[string][]string `yaml:"fields"`
}

// LoadAliasTable applies a YAML override document to base. By default the
// listed aliases are appended after the existing ones; with replace: true the
// listed fields get exactly the given aliases. Fields absent from the document
// keep their base aliases.
func LoadAliasTable(data []byte, base AliasTable) (AliasTable, error) {
	var doc aliasFile
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidAliasTable, err)
	}

	overrides := make(map[Field][]string, len(doc.Fields))
	for name, aliases := range doc.Fields {
		f, err := ParseField(name)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidAliasTable, err)
		}
		overrides[f] = aliases
	}

	out := make(AliasTable, 0, len(canonicalFields))
	for _, f := range canonicalFields {
		existing := base.Aliases(f)
		extra, ok := overrides[f]
		switch {
		case !ok:
			out = append(out, FieldAliases{Field: f, Aliases: append([]string(nil), existing...)})
		case doc.Replace:
			out = append(out, FieldAliases{Field: f, Aliases: dedupeAliases(nil, extra)})
		default:
			out = append(out, FieldAliases{Field: f, Aliases: dedupeAliases(existing, extra)})
		}
	}
	return out, nil
}

// dedupeAliases appends extra to base, skipping aliases whose match key is
// already present.
func dedupeAliases(base, extra []string) []string {
	out := append([]string(nil), base...)
	seen := make(map[string]bool, len(base)+len(extra))
	for _, a := range base {
		seen[FoldKey(a)] = true
	}
	for _, a := range extra {
		k := FoldKey(a)
		if k == "" || seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, a)
	}
	return out
}
