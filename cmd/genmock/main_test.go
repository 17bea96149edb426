package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/gasparespejo/EFILabs/internal/adapter/tabular"
	"github.com/gasparespejo/EFILabs/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func generate(t *testing.T, seed string) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, run([]string{"-out", dir, "-vehicles", "4", "-days", "2", "-seed", seed}))
	return dir
}

func TestRun_Deterministic(t *testing.T) {
	a, b := generate(t, "3"), generate(t, "3")
	for _, name := range []string{"nazar_inspecciones.csv", "tccu_control.csv"} {
		x, err := os.ReadFile(filepath.Join(a, name))
		require.NoError(t, err)
		y, err := os.ReadFile(filepath.Join(b, name))
		require.NoError(t, err)
		assert.Equal(t, x, y, name)
	}
}

func TestRun_FilesMapOntoSchema(t *testing.T) {
	dir := generate(t, "11")
	parser := tabular.NewParser()

	tests := []struct {
		name string
		rows int
	}{
		{"nazar_inspecciones.csv", 4 * 2 * len(axleLayout)},
		{"tccu_control.csv", -1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := os.ReadFile(filepath.Join(dir, tt.name))
			require.NoError(t, err)

			table, err := parser.Parse(domain.SourceFile{Name: tt.name, Content: data})
			require.NoError(t, err)
			if tt.rows >= 0 {
				assert.Len(t, table.Rows, tt.rows)
			} else {
				assert.NotEmpty(t, table.Rows)
			}

			cm := domain.ResolveColumns(table.Header, domain.DefaultAliasTable())
			assert.Empty(t, cm.Missing(domain.RequiredFields))
		})
	}
}

func TestRun_InvalidFlags(t *testing.T) {
	err := run([]string{"-out", t.TempDir(), "-vehicles", "0"})
	require.Error(t, err)
}
