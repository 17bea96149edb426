package domain

import (
	"strconv"
	"strings"
)

// Table is a named tabular view with stable column names. Missing values are
// empty cells.
type Table struct {
	Name    string
	Columns []string
	Rows    [][]string
}

var summaryColumns = []string{
	"n_registros", "delta_prom", "delta_abs_prom", "energia_total", "pct_sub", "pct_sobre",
}

// DetailColumns returns the detail table header for the given energy variant.
func DetailColumns(variant EnergyVariant) []string {
	cols := []string{"archivo", "fila"}
	for _, f := range canonicalFields {
		cols = append(cols, string(f))
	}
	cols = append(cols, "optima_estimada", "campos_invalidos", "delta_psi", "delta_pct")
	if variant == EnergyPercentage {
		cols = append(cols, "indice_energia", "mj_extra")
	} else {
		cols = append(cols, "energia_perdida")
	}
	return append(cols, "estado")
}

// DetailTable renders every record, eligible or not, in input order.
func DetailTable(records []MetricRecord, variant EnergyVariant) Table {
	t := Table{Name: "detalle", Columns: DetailColumns(variant), Rows: make([][]string, 0, len(records))}
	for _, r := range records {
		row := []string{r.Archivo, strconv.Itoa(r.Fila)}
		for _, f := range canonicalFields {
			v, _ := r.Value(f)
			row = append(row, v)
		}
		row = append(row,
			strconv.FormatBool(r.OptimaEstimada),
			joinFields(r.Unparsable),
			cell(r.DeltaPSI),
			cell(r.DeltaPct),
		)
		if variant == EnergyPercentage {
			row = append(row, cell(r.IndiceEnergia), cell(r.MJExtra))
		} else {
			row = append(row, cell(r.EnergiaPerdida))
		}
		row = append(row, string(r.Estado))
		t.Rows = append(t.Rows, row)
	}
	return t
}

// SummaryName returns the report name for a grouping: por_patente,
// patente_x_operacion, ...
func SummaryName(groupBy []Field) string {
	if len(groupBy) == 1 {
		return "por_" + string(groupBy[0])
	}
	return joinGroup(groupBy)
}

// RankingName returns the report name of an energy ranking.
func RankingName(groupBy []Field) string {
	return "ranking_energia_" + joinGroup(groupBy)
}

// SummaryTable renders aggregated groups.
func SummaryTable(name string, groupBy []Field, rows []GroupSummary) Table {
	t := Table{Name: name, Columns: groupColumns(groupBy, summaryColumns), Rows: make([][]string, 0, len(rows))}
	for _, s := range rows {
		row := keyCells(s.Keys)
		row = append(row,
			strconv.Itoa(s.NRegistros),
			cell(s.DeltaProm),
			cell(s.DeltaAbsProm),
			formatFloat(s.EnergiaTotal),
			formatFloat(s.PctSub),
			formatFloat(s.PctSobre),
		)
		t.Rows = append(t.Rows, row)
	}
	return t
}

// RankingTable renders an energy ranking.
func RankingTable(name string, groupBy []Field, ranks []EnergyRank) Table {
	cols := groupColumns(groupBy, []string{"n_registros", "energia_total", "energia_prom"})
	t := Table{Name: name, Columns: cols, Rows: make([][]string, 0, len(ranks))}
	for _, r := range ranks {
		row := keyCells(r.Keys)
		row = append(row,
			strconv.Itoa(r.NRegistros),
			formatFloat(r.EnergiaTotal),
			formatFloat(r.EnergiaProm),
		)
		t.Rows = append(t.Rows, row)
	}
	return t
}

func groupColumns(groupBy []Field, metrics []string) []string {
	cols := make([]string, 0, len(groupBy)+len(metrics))
	for _, f := range groupBy {
		cols = append(cols, string(f))
	}
	return append(cols, metrics...)
}

func keyCells(keys []*string) []string {
	out := make([]string, len(keys))
	for i, k := range keys {
		if k != nil {
			out[i] = *k
		}
	}
	return out
}

func joinGroup(groupBy []Field) string {
	parts := make([]string, len(groupBy))
	for i, f := range groupBy {
		parts[i] = string(f)
	}
	return strings.Join(parts, "_x_")
}

func joinFields(fs []Field) string {
	parts := make([]string, len(fs))
	for i, f := range fs {
		parts[i] = string(f)
	}
	return strings.Join(parts, "|")
}

func cell(v *float64) string {
	s, _ := formatOptional(v)
	return s
}
