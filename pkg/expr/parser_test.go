package expr_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/openfroyo/dsce/pkg/expr"
	_ "github.com/openfroyo/dsce/pkg/expr/builtins"
)

func evalStatement(t *testing.T, ctx *expr.Context, source string) expr.Value {
	t.Helper()
	node, err := expr.Statement(source)
	require.NoError(t, err)
	v, err := expr.Evaluate(ctx, node)
	require.NoError(t, err)
	return v
}

func TestStatementClassification(t *testing.T) {
	ctx := expr.NewContext()

	t.Run("plain literal", func(t *testing.T) {
		v := evalStatement(t, ctx, "hello world")
		s, ok := v.AsString()
		require.True(t, ok)
		require.Equal(t, "hello world", s)
	})

	t.Run("escaped literal regardless of content", func(t *testing.T) {
		v := evalStatement(t, ctx, "[[X]")
		s, _ := v.AsString()
		require.Equal(t, "[X]", s)
	})

	t.Run("bracket in string is a plain literal", func(t *testing.T) {
		v := evalStatement(t, ctx, "see [concat('a','b')] here")
		s, _ := v.AsString()
		require.Equal(t, "see [concat('a','b')] here", s)
	})

	t.Run("expression", func(t *testing.T) {
		v := evalStatement(t, ctx, "[concat('a','b')]")
		s, _ := v.AsString()
		require.Equal(t, "ab", s)
	})

	t.Run("mismatched brackets is a parse error", func(t *testing.T) {
		_, err := expr.Statement("[concat('a','b')")
		require.Error(t, err)
	})
}

func TestMemberAccess(t *testing.T) {
	ctx := expr.NewContext()
	node, err := expr.Statement("[createObject('a', createArray(1,2,3)).a[1]]")
	require.NoError(t, err)
	v, err := expr.Evaluate(ctx, node)
	require.NoError(t, err)
	n, ok := v.AsInt()
	require.True(t, ok)
	require.EqualValues(t, 2, n)
}

func TestQuotedStringEscaping(t *testing.T) {
	ctx := expr.NewContext()
	v := evalStatement(t, ctx, "[concat('it''s', ' ok')]")
	s, _ := v.AsString()
	require.Equal(t, "it's ok", s)
}
