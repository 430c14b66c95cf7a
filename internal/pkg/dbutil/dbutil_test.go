package dbutil

import (
	"testing"

	"github.com/didi/gendry/builder"
	"github.com/pgvector/pgvector-go"
	"github.com/stretchr/testify/require"
)

func TestFinalize(t *testing.T) {
	sqlStr, args, err := builder.BuildSelect("papers", map[string]interface{}{
		"title":  "Diffusion Models",
		"_limit": []uint{10, 20},
	}, []string{"paper_id"})
	require.NoError(t, err)
	sqlStr, args = Finalize(sqlStr, args)
	require.Contains(t, sqlStr, "$1")
	require.Contains(t, sqlStr, "LIMIT $2 OFFSET $3")
	require.NotContains(t, sqlStr, "?")
	require.Len(t, args, 3)
	require.Equal(t, "Diffusion Models", args[0])
	require.EqualValues(t, 20, args[1])
	require.EqualValues(t, 10, args[2])
}

func TestNullVector(t *testing.T) {
	require.Nil(t, NullVector(nil))
	require.Nil(t, NullVector([]float32{}))
	require.Equal(t, pgvector.NewVector([]float32{1, 2}), NullVector([]float32{1, 2}))

	require.Nil(t, VectorSlice(nil))
	v := pgvector.NewVector([]float32{0.5})
	require.Equal(t, []float32{0.5}, VectorSlice(&v))
}
