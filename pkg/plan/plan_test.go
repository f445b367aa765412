package plan_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/openfroyo/dsce/pkg/document"
	"github.com/openfroyo/dsce/pkg/plan"
)

func r(typ, name string, dependsOn ...string) document.ResourceInstance {
	return document.ResourceInstance{Type: typ, Name: name, DependsOn: dependsOn}
}

func names(order []document.ResourceInstance) []string {
	out := make([]string, len(order))
	for i, o := range order {
		out[i] = o.Name
	}
	return out
}

func TestSimpleOrder(t *testing.T) {
	order, err := plan.BuildOrder([]document.ResourceInstance{
		r("Test/Null", "Second", "[resourceId('Test/Null','First')]"),
		r("Test/Null", "First"),
	})
	require.NoError(t, err)
	require.Equal(t, []string{"First", "Second"}, names(order))
}

func TestDuplicateName(t *testing.T) {
	_, err := plan.BuildOrder([]document.ResourceInstance{
		r("Test/Null", "First"),
		r("Test/Null", "Second", "[resourceId('Test/Null','First')]"),
		r("Test/Null", "First"),
	})
	require.Error(t, err)
}

func TestMissingDependency(t *testing.T) {
	_, err := plan.BuildOrder([]document.ResourceInstance{
		r("Test/Null", "Second", "[resourceId('Test/Null','First')]"),
	})
	require.Error(t, err)
}

func TestMultipleSameDependency(t *testing.T) {
	order, err := plan.BuildOrder([]document.ResourceInstance{
		r("Test/Null", "Second", "[resourceId('Test/Null','First')]"),
		r("Test/Null", "First"),
		r("Test/Null", "Third", "[resourceId('Test/Null','First')]"),
	})
	require.NoError(t, err)
	require.Equal(t, []string{"First", "Second", "Third"}, names(order))
}

func TestCircularDependency(t *testing.T) {
	_, err := plan.BuildOrder([]document.ResourceInstance{
		r("Test/Null", "Second", "[resourceId('Test/Null','First')]"),
		r("Test/Null", "First", "[resourceId('Test/Null','Second')]"),
	})
	require.Error(t, err)
}

func TestMultipleDependencies(t *testing.T) {
	order, err := plan.BuildOrder([]document.ResourceInstance{
		r("Test/Null", "Third", "[resourceId('Test/Null','First')]", "[resourceId('Test/Null','Second')]"),
		r("Test/Null", "First"),
		r("Test/Null", "Second"),
	})
	require.NoError(t, err)
	require.Equal(t, []string{"First", "Second", "Third"}, names(order))
}

func TestComplexCircularDependency(t *testing.T) {
	_, err := plan.BuildOrder([]document.ResourceInstance{
		r("Test/Null", "Third", "[resourceId('Test/Null','First')]", "[resourceId('Test/Null','Second')]"),
		r("Test/Null", "First", "[resourceId('Test/Null','Second')]"),
		r("Test/Null", "Second", "[resourceId('Test/Null','Third')]"),
	})
	require.Error(t, err)
}

func TestComplexDependency(t *testing.T) {
	order, err := plan.BuildOrder([]document.ResourceInstance{
		r("Test/Null", "Third", "[resourceId('Test/Null','First')]", "[resourceId('Test/Null','Second')]"),
		r("Test/Null", "Second", "[resourceId('Test/Null','First')]"),
		r("Test/Null", "First"),
		r("Test/Null", "Fourth", "[resourceId('Test/Null','Third')]"),
	})
	require.NoError(t, err)
	require.Equal(t, []string{"First", "Second", "Third", "Fourth"}, names(order))
}

func TestBadDependsOnSyntax(t *testing.T) {
	_, err := plan.BuildOrder([]document.ResourceInstance{
		r("Test/Null", "Second", "resourceId('Test/Null','First')"),
		r("Test/Null", "First"),
	})
	require.Error(t, err)
}

func TestDependsOnTypeMismatch(t *testing.T) {
	_, err := plan.BuildOrder([]document.ResourceInstance{
		r("Test/Null", "Second", "[resourceId('Test/Other','First')]"),
		r("Test/Null", "First"),
	})
	require.Error(t, err)
}

func TestLevelsGroupsIndependentResources(t *testing.T) {
	order, err := plan.BuildOrder([]document.ResourceInstance{
		r("Test/Null", "Third", "[resourceId('Test/Null','First')]", "[resourceId('Test/Null','Second')]"),
		r("Test/Null", "First"),
		r("Test/Null", "Second"),
	})
	require.NoError(t, err)
	levels := plan.Levels(order)
	require.Len(t, levels, 2)
	require.ElementsMatch(t, []string{"Test/Null/First", "Test/Null/Second"}, levels[0])
	require.Equal(t, []string{"Test/Null/Third"}, levels[1])
}
