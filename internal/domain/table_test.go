package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDetailTable(t *testing.T) {
	partial := CanonicalRecord{Archivo: testFile, Fila: 2, Patente: ptr("ZZ99"), Unparsable: []Field{FieldPresionPSI}}
	recs := ComputeMetrics([]CanonicalRecord{reading("ABC123", 100, 110), partial}, DefaultMetricConfig())

	table := DetailTable(recs, EnergyAbsolute)
	require.Len(t, table.Rows, 2)
	assert.Equal(t, "detalle", table.Name)
	assert.Len(t, table.Rows[0], len(table.Columns))

	col := func(name string) int {
		for i, c := range table.Columns {
			if c == name {
				return i
			}
		}
		t.Fatalf("column %q not found", name)
		return -1
	}
	assert.Equal(t, "-10", table.Rows[0][col("delta_psi")])
	assert.Equal(t, "10", table.Rows[0][col("energia_perdida")])
	assert.Equal(t, "SUBINFLADO", table.Rows[0][col("estado")])
	assert.Equal(t, "", table.Rows[1][col("delta_psi")])
	assert.Equal(t, "presion_psi", table.Rows[1][col("campos_invalidos")])
	assert.Equal(t, "", table.Rows[1][col("estado")])
}

func TestDetailColumns_PercentageVariant(t *testing.T) {
	cols := DetailColumns(EnergyPercentage)
	assert.Contains(t, cols, "mj_extra")
	assert.Contains(t, cols, "indice_energia")
	assert.NotContains(t, cols, "energia_perdida")
}

func TestSummaryNames(t *testing.T) {
	assert.Equal(t, "por_patente", SummaryName([]Field{FieldPatente}))
	assert.Equal(t, "patente_x_operacion", SummaryName([]Field{FieldPatente, FieldOperacion}))
	assert.Equal(t, "ranking_energia_sede", RankingName([]Field{FieldSede}))
}

func TestSummaryTable_MissingKeyIsEmptyCell(t *testing.T) {
	rows := []GroupSummary{{GroupBy: []Field{FieldOperacion}, Keys: []*string{nil}, NRegistros: 1, DeltaAbsProm: ptr(2.0), DeltaProm: ptr(-2.0)}}
	table := SummaryTable("por_operacion", []Field{FieldOperacion}, rows)

	assert.Equal(t, []string{"operacion", "n_registros", "delta_prom", "delta_abs_prom", "energia_total", "pct_sub", "pct_sobre"}, table.Columns)
	assert.Equal(t, []string{"", "1", "-2", "2", "0", "0", "0"}, table.Rows[0])
}
