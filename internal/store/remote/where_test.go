package remote

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mind-engage/mindengage-study/internal/store"
)

func TestWhereClauseComparesArraysWhole(t *testing.T) {
	where, args, err := whereClause(store.Filter{
		store.Eq("tags", []string{"a"}),
		store.Eq("disciplinaId", "d1"),
	})
	require.NoError(t, err)
	assert.Contains(t, where, "data->($1::text) = $2::jsonb")
	assert.Contains(t, where, "data @> $3::jsonb")
	assert.Equal(t, []any{"tags", `["a"]`, `{"disciplinaId":"d1"}`}, args)
}

func TestWhereClauseNullAndEmpty(t *testing.T) {
	where, args, err := whereClause(store.Filter{store.Eq("simuladoId", nil)})
	require.NoError(t, err)
	assert.Contains(t, where, "'null'::jsonb")
	assert.Equal(t, []any{"simuladoId"}, args)

	where, _, err = whereClause(nil)
	require.NoError(t, err)
	assert.Empty(t, where)
}
