package dbutil

import (
	"errors"
	"fmt"
	"testing"

	"github.com/lib/pq"
	"github.com/pgvector/pgvector-go"
	"github.com/stretchr/testify/require"
)

func TestFinalizeRebindsPlaceholders(t *testing.T) {
	q, args := Finalize("SELECT a FROM t WHERE x=? AND y=?", []interface{}{1, 2})
	require.Equal(t, "SELECT a FROM t WHERE x=$1 AND y=$2", q)
	require.Equal(t, []interface{}{1, 2}, args)
}

func TestFinalizeRewritesMysqlLimit(t *testing.T) {
	q, args := Finalize("SELECT a FROM t WHERE x=? LIMIT ?,?", []interface{}{"v", 20, 10})
	require.Equal(t, "SELECT a FROM t WHERE x=$1 LIMIT $2 OFFSET $3", q)
	require.Equal(t, []interface{}{"v", 10, 20}, args)
}

func TestIsConflict(t *testing.T) {
	require.True(t, IsConflict(fmt.Errorf("insert: %w", &pq.Error{Code: "23505"})))
	require.False(t, IsConflict(&pq.Error{Code: "23503"}))
	require.False(t, IsConflict(errors.New("x")))
}

func TestVectorOrNull(t *testing.T) {
	require.Nil(t, VectorOrNull(nil))
	v, ok := VectorOrNull([]float32{1, 2}).(pgvector.Vector)
	require.True(t, ok)
	require.Equal(t, []float32{1, 2}, v.Slice())
}
