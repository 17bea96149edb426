package xlsx

import (
	"context"
	"log/slog"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gasparespejo/EFILabs/internal/domain"
	"github.com/gasparespejo/EFILabs/internal/pipeline"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func TestWriter_Load(t *testing.T) {
	patente := "ABC123"
	presion, optima, delta, energia := 100.0, 105.0, -5.0, 5.0
	res := &pipeline.Result{
		Energy: domain.EnergyAbsolute,
		Detail: []domain.MetricRecord{{
			CanonicalRecord: domain.CanonicalRecord{
				Archivo:          "nazar.csv",
				Fila:             1,
				Patente:          &patente,
				PresionPSI:       &presion,
				PresionOptimaPSI: &optima,
			},
			DeltaPSI:       &delta,
			EnergiaPerdida: &energia,
			Estado:         domain.EstadoSubinflado,
		}},
		Rankings: []pipeline.Ranking{{
			Name:    "ranking_energia_patente",
			GroupBy: []domain.Field{domain.FieldPatente},
			Ranks: []domain.EnergyRank{{
				Keys: []*string{&patente}, NRegistros: 1, EnergiaTotal: 5, EnergiaProm: 5,
			}},
		}},
	}
	dir := t.TempDir()

	require.NoError(t, NewWriter(dir, slog.Default()).Load(context.Background(), res))

	f, err := excelize.OpenFile(filepath.Join(dir, FileName))
	require.NoError(t, err)
	t.Cleanup(func() { _ = f.Close() })

	assert.Equal(t, []string{"detalle", "ranking_energia_patente"}, f.GetSheetList())

	rows, err := f.GetRows("detalle")
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "archivo", rows[0][0])
	assert.Equal(t, "ABC123", rows[1][2])

	// Pressures are stored as numbers, plates as text.
	col := indexOf(domain.DetailColumns(domain.EnergyAbsolute), "presion_psi") + 1
	cell, err := excelize.CoordinatesToCellName(col, 2)
	require.NoError(t, err)
	typ, err := f.GetCellType("detalle", cell)
	require.NoError(t, err)
	assert.NotEqual(t, excelize.CellTypeSharedString, typ)
	v, err := f.GetCellValue("detalle", cell)
	require.NoError(t, err)
	assert.Equal(t, "100", v)

	typ, err = f.GetCellType("detalle", "C2")
	require.NoError(t, err)
	assert.Equal(t, excelize.CellTypeSharedString, typ)
}

func TestUniqueSheetName(t *testing.T) {
	used := map[string]bool{}
	long := "patente_x_operacion_x_ruta_x_sede_x_eje_tipo"

	first := uniqueSheetName(long, used)
	second := uniqueSheetName(long, used)
	third := uniqueSheetName("detalle", used)
	fourth := uniqueSheetName("detalle", used)

	assert.Len(t, first, 31)
	assert.Len(t, second, 31)
	assert.True(t, strings.HasSuffix(second, "~2"))
	assert.NotEqual(t, first, second)
	assert.Equal(t, "detalle", third)
	assert.Equal(t, "detalle~2", fourth)
}

func indexOf(cols []string, name string) int {
	for i, c := range cols {
		if c == name {
			return i
		}
	}
	return -1
}
