package invoke_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/openfroyo/dsce/pkg/expr"
	"github.com/openfroyo/dsce/pkg/invoke"
)

func obj(pairs ...interface{}) expr.Value {
	b := expr.NewObject()
	for i := 0; i < len(pairs); i += 2 {
		b.Set(pairs[i].(string), pairs[i+1].(expr.Value))
	}
	return b.Build()
}

func TestDiffIgnoresMetaKeys(t *testing.T) {
	expected := obj("_meta", expr.String("x"), "$schema", expr.String("y"), "name", expr.String("a"))
	actual := obj("name", expr.String("a"))
	require.Empty(t, invoke.Diff(expected, actual))
}

func TestDiffReportsTopLevelChange(t *testing.T) {
	expected := obj("name", expr.String("a"))
	actual := obj("name", expr.String("b"))
	require.Equal(t, []string{"name"}, invoke.Diff(expected, actual))
}

func TestDiffReportsMissingKeyAsChanged(t *testing.T) {
	expected := obj("name", expr.String("a"))
	actual := obj()
	require.Equal(t, []string{"name"}, invoke.Diff(expected, actual))
}

func TestDiffIgnoresExtraActualKeys(t *testing.T) {
	expected := obj("name", expr.String("a"))
	actual := obj("name", expr.String("a"), "extra", expr.Int(1))
	require.Empty(t, invoke.Diff(expected, actual))
}

func TestDiffRecursesIntoNestedObjectsAndReportsParentOnce(t *testing.T) {
	expected := obj("nested", obj("a", expr.Int(1), "b", expr.Int(2)))
	actual := obj("nested", obj("a", expr.Int(1), "b", expr.Int(99)))
	require.Equal(t, []string{"nested"}, invoke.Diff(expected, actual))
}

func TestDiffIsEmptyForNullExpected(t *testing.T) {
	require.Empty(t, invoke.Diff(expr.Null(), obj("name", expr.String("a"))))
}
