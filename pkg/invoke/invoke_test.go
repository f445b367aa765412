package invoke_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/openfroyo/dsce/pkg/expr"
	"github.com/openfroyo/dsce/pkg/invoke"
	"github.com/openfroyo/dsce/pkg/manifest"
)

func props(t *testing.T, pairs ...interface{}) expr.Value {
	t.Helper()
	return obj(pairs...)
}

func TestInvokeGetRoundTrip(t *testing.T) {
	m := &manifest.ResourceManifest{
		Type: "Test/Echo",
		Get: &manifest.OperationDescriptor{
			Executable: "cat",
			Input:      manifest.InputStdin,
			Return:     manifest.ReturnState,
		},
	}
	inv := &invoke.Invoker{ResourceName: "a"}
	res, err := inv.Invoke(context.Background(), m, "get", props(t, "name", expr.String("widget")))
	require.NoError(t, err)
	name, ok := res.AfterState.Field("name")
	require.True(t, ok)
	s, _ := name.AsString()
	require.Equal(t, "widget", s)
}

func TestInvokeNonZeroExitUsesManifestMessage(t *testing.T) {
	m := &manifest.ResourceManifest{
		Type: "Test/Fail",
		Get: &manifest.OperationDescriptor{
			Executable: "sh",
			Args: []manifest.ArgToken{
				{Kind: manifest.ArgLiteral, Literal: "-c"},
				{Kind: manifest.ArgLiteral, Literal: "exit 7"},
			},
			Input:  manifest.InputStdin,
			Return: manifest.ReturnState,
		},
		ExitCodes: map[int]string{7: "boom"},
	}
	inv := &invoke.Invoker{ResourceName: "a"}
	_, err := inv.Invoke(context.Background(), m, "get", props(t, "x", expr.Int(1)))
	require.ErrorContains(t, err, "boom")
}

func TestInvokeSetShortCircuitsWhenTestReportsNoDiff(t *testing.T) {
	m := &manifest.ResourceManifest{
		Type: "Test/Echo",
		Get: &manifest.OperationDescriptor{
			Executable: "cat",
			Input:      manifest.InputStdin,
			Return:     manifest.ReturnState,
		},
		Test: &manifest.OperationDescriptor{
			Executable: "cat",
			Input:      manifest.InputStdin,
			Return:     manifest.ReturnState,
		},
		Set: &manifest.OperationDescriptor{
			Executable: "false",
			Input:      manifest.InputStdin,
			Return:     manifest.ReturnState,
			PreTest:    false,
		},
	}
	inv := &invoke.Invoker{ResourceName: "a"}
	res, err := inv.Invoke(context.Background(), m, "set", props(t, "name", expr.String("widget")))
	require.NoError(t, err)
	require.Empty(t, res.ChangedProperties)
}

func TestInvokeUnsupportedOperation(t *testing.T) {
	m := &manifest.ResourceManifest{Type: "Test/GetOnly", Get: &manifest.OperationDescriptor{Executable: "cat"}}
	inv := &invoke.Invoker{ResourceName: "a"}
	_, err := inv.Invoke(context.Background(), m, "set", expr.Null())
	require.Error(t, err)
}

func TestInvokeEnvInputSetsRealValueForSecureProperty(t *testing.T) {
	m := &manifest.ResourceManifest{
		Type: "Test/EnvEcho",
		Get: &manifest.OperationDescriptor{
			Executable: "sh",
			Args: []manifest.ArgToken{
				{Kind: manifest.ArgLiteral, Literal: "-c"},
				{Kind: manifest.ArgLiteral, Literal: `printf '{"token":"%s"}' "$token"`},
			},
			Input:  manifest.InputEnv,
			Return: manifest.ReturnState,
		},
	}
	inv := &invoke.Invoker{ResourceName: "a"}
	res, err := inv.Invoke(context.Background(), m, "get", props(t, "token", expr.SecureString("sekret")))
	require.NoError(t, err)
	token, ok := res.AfterState.Field("token")
	require.True(t, ok)
	s, _ := token.AsString()
	require.Equal(t, "sekret", s)
}
