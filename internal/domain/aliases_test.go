package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadAliasTable(t *testing.T) {
	t.Run("extends by default", func(t *testing.T) {
		doc := []byte(`
fields:
  patente: [matricula, PPU, "N° Patente"]
`)
		table, err := LoadAliasTable(doc, DefaultAliasTable())
		require.NoError(t, err)

		aliases := table.Aliases(FieldPatente)
		assert.Equal(t, "patente", aliases[0])
		assert.Contains(t, aliases, "matricula")
		assert.Contains(t, aliases, "N° Patente")
		assert.Len(t, aliases, len(DefaultAliasTable().Aliases(FieldPatente))+2)
		assert.Equal(t, DefaultAliasTable().Aliases(FieldRuta), table.Aliases(FieldRuta))
	})

	t.Run("replace overrides listed fields only", func(t *testing.T) {
		doc := []byte(`
replace: true
fields:
  sede: [centro]
`)
		table, err := LoadAliasTable(doc, DefaultAliasTable())
		require.NoError(t, err)
		assert.Equal(t, []string{"centro"}, table.Aliases(FieldSede))
		assert.NotEmpty(t, table.Aliases(FieldPatente))
	})

	t.Run("override changes resolution", func(t *testing.T) {
		doc := []byte("fields:\n  patente: [matricula]\n")
		table, err := LoadAliasTable(doc, DefaultAliasTable())
		require.NoError(t, err)

		cm := ResolveColumns([]string{"Matrícula"}, table)
		assert.Equal(t, 0, cm[FieldPatente])
	})

	t.Run("unknown field", func(t *testing.T) {
		_, err := LoadAliasTable([]byte("fields:\n  color: [x]\n"), DefaultAliasTable())
		require.ErrorIs(t, err, ErrInvalidAliasTable)
		require.ErrorIs(t, err, ErrUnknownField)
	})

	t.Run("invalid yaml", func(t *testing.T) {
		_, err := LoadAliasTable([]byte("fields: [unterminated"), DefaultAliasTable())
		require.ErrorIs(t, err, ErrInvalidAliasTable)
	})
}

func TestDefaultAliasTable_CoversEveryField(t *testing.T) {
	table := DefaultAliasTable()
	for _, f := range CanonicalFields() {
		assert.NotEmpty(t, table.Aliases(f), f)
	}
}
