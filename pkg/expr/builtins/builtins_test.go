package builtins_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/openfroyo/dsce/pkg/expr"
	_ "github.com/openfroyo/dsce/pkg/expr/builtins"
)

func eval(t *testing.T, ctx *expr.Context, source string) expr.Value {
	t.Helper()
	node, err := expr.Statement(source)
	require.NoError(t, err)
	v, err := expr.Evaluate(ctx, node)
	require.NoError(t, err)
	return v
}

// Scenario 3 — parameters & format.
func TestScenarioParametersAndFormat(t *testing.T) {
	ctx := expr.NewContext()
	ctx.Parameters["name"] = expr.String("world")

	v := eval(t, ctx, "[format('hello {0}!', parameters('name'))]")
	s, _ := v.AsString()
	require.Equal(t, "hello world!", s)
}

// Scenario 4 — CIDR.
func TestScenarioCIDR(t *testing.T) {
	ctx := expr.NewContext()

	v := eval(t, ctx, "[cidrSubnet('10.144.0.0/20', 24, 0)]")
	s, _ := v.AsString()
	require.Equal(t, "10.144.0.0/24", s)

	v = eval(t, ctx, "[cidrHost('192.168.1.0/24', 0)]")
	s, _ = v.AsString()
	require.Equal(t, "192.168.1.1", s)
}

func TestCidrHostSlash31BothUsable(t *testing.T) {
	ctx := expr.NewContext()
	v := eval(t, ctx, "[cidrHost('10.0.0.0/31', 0)]")
	s, _ := v.AsString()
	require.Equal(t, "10.0.0.0", s)
	v = eval(t, ctx, "[cidrHost('10.0.0.0/31', 1)]")
	s, _ = v.AsString()
	require.Equal(t, "10.0.0.1", s)
}

func TestCidrHostSlash32Rejected(t *testing.T) {
	ctx := expr.NewContext()
	_, err := expr.Evaluate(ctx, mustParse(t, "[cidrHost('10.0.0.5/32', 0)]"))
	require.Error(t, err)
}

func mustParse(t *testing.T, s string) expr.Node {
	t.Helper()
	n, err := expr.Statement(s)
	require.NoError(t, err)
	return n
}

// Scenario 5 — map/lambda.
func TestScenarioMapLambda(t *testing.T) {
	ctx := expr.NewContext()
	v := eval(t, ctx, "[map(createArray(1,2,3), lambda(createArray('item'), mul(item, 2)))]")
	items, ok := v.AsArray()
	require.True(t, ok)
	require.Len(t, items, 3)
	for i, want := range []int64{2, 4, 6} {
		got, _ := items[i].AsInt()
		require.Equal(t, want, got)
	}
}

// Law 4 — round trips.
func TestRoundTrips(t *testing.T) {
	ctx := expr.NewContext()

	v := eval(t, ctx, "[base64ToString(base64('hello, world'))]")
	s, _ := v.AsString()
	require.Equal(t, "hello, world", s)

	v = eval(t, ctx, "[uriComponentToString(uriComponent('a b/c?d=e'))]")
	s, _ = v.AsString()
	require.Equal(t, "a b/c?d=e", s)

	v = eval(t, ctx, "[dataUriToString(dataUri('payload'))]")
	s, _ = v.AsString()
	require.Equal(t, "payload", s)
}

// Law 6 — secure value display/propagation.
func TestSecureValueDisplay(t *testing.T) {
	sv := expr.SecureString("topsecret")
	require.Equal(t, "<secureValue>", sv.Display())

	ctx := expr.NewContext()
	ctx.Parameters["pw"] = sv
	v := eval(t, ctx, "[parameters('pw')]")
	require.True(t, v.IsSecure())
	payload, _ := v.AsString()
	require.Equal(t, "topsecret", payload)
}

func TestSecurePropagationLostThroughConcat(t *testing.T) {
	ctx := expr.NewContext()
	ctx.Parameters["pw"] = expr.SecureString("topsecret")
	v := eval(t, ctx, "[concat(parameters('pw'), '-suffix')]")
	require.False(t, v.IsSecure())
}

func TestFormatNumericSpecifiers(t *testing.T) {
	ctx := expr.NewContext()
	v := eval(t, ctx, "[format('{0:x}', 255)]")
	s, _ := v.AsString()
	require.Equal(t, "ff", s)
}

func TestRangeBounds(t *testing.T) {
	ctx := expr.NewContext()
	_, err := expr.Evaluate(ctx, mustParse(t, "[range(0, 10001)]"))
	require.Error(t, err)
}

func TestTryGetMissesNull(t *testing.T) {
	ctx := expr.NewContext()
	v := eval(t, ctx, "[tryGet(createObject('a', 1), 'missing')]")
	require.True(t, v.IsNull())
}
