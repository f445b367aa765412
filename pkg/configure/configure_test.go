package configure_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/openfroyo/dsce/pkg/configure"
	"github.com/openfroyo/dsce/pkg/document"
	"github.com/openfroyo/dsce/pkg/manifest"
	"github.com/openfroyo/dsce/pkg/policy"
)

// stubDiscoverer resolves resource types against an in-memory map, standing
// in for pkg/discovery's directory scan in these unit tests.
type stubDiscoverer struct {
	byType map[string]*manifest.ResourceManifest
}

func (s *stubDiscoverer) Resolve(_ context.Context, resourceType string) (*manifest.ResourceManifest, error) {
	m, ok := s.byType[resourceType]
	if !ok {
		return nil, errNotFound(resourceType)
	}
	return m, nil
}

type notFoundErr string

func (e notFoundErr) Error() string { return "manifest not found: " + string(e) }
func errNotFound(t string) error    { return notFoundErr(t) }

func echoManifest() *manifest.ResourceManifest {
	return &manifest.ResourceManifest{
		Type: "Test/Echo",
		Get: &manifest.OperationDescriptor{
			Executable: "cat",
			Input:      manifest.InputStdin,
			Return:     manifest.ReturnState,
		},
	}
}

func echoSetManifest() *manifest.ResourceManifest {
	m := echoManifest()
	m.Set = &manifest.OperationDescriptor{
		Executable: "cat",
		Input:      manifest.InputStdin,
		Return:     manifest.ReturnState,
	}
	return m
}

func failManifest() *manifest.ResourceManifest {
	return &manifest.ResourceManifest{
		Type: "Test/Fail",
		Get: &manifest.OperationDescriptor{
			Executable: "sh",
			Args: []manifest.ArgToken{
				{Kind: manifest.ArgLiteral, Literal: "-c"},
				{Kind: manifest.ArgLiteral, Literal: "exit 9"},
			},
			Input:  manifest.InputStdin,
			Return: manifest.ReturnState,
		},
	}
}

func TestRunEvaluatesInPlannedOrderAndAggregatesResults(t *testing.T) {
	cfg := &document.Configuration{
		Parameters: map[string]document.ParameterSpec{
			"greeting": {Type: document.TypeString, DefaultValue: "hi"},
		},
		Resources: []document.ResourceInstance{
			{
				Type: "Test/Echo", Name: "second",
				DependsOn:  []string{"[resourceId('Test/Echo','first')]"},
				Properties: map[string]interface{}{"name": "[parameters('greeting')]"},
			},
			{
				Type: "Test/Echo", Name: "first",
				Properties: map[string]interface{}{"name": "first-value"},
			},
		},
	}

	c := &configure.Configurator{
		Discoverer: &stubDiscoverer{byType: map[string]*manifest.ResourceManifest{
			"Test/Echo": echoManifest(),
		}},
	}

	result, err := c.Run(context.Background(), "get", cfg, nil)
	require.NoError(t, err)
	require.False(t, result.HadErrors)
	require.Empty(t, result.Messages)
	require.Len(t, result.Results, 2)
	require.Equal(t, "first", result.Results[0].ResourceName)
	require.Equal(t, "second", result.Results[1].ResourceName)

	name, _ := result.Results[1].AfterState.Field("name")
	s, _ := name.AsString()
	require.Equal(t, "hi", s)
}

func TestRunSkipsTransitivelyDependentResourcesAfterFailure(t *testing.T) {
	cfg := &document.Configuration{
		Resources: []document.ResourceInstance{
			{Type: "Test/Fail", Name: "broken"},
			{
				Type: "Test/Echo", Name: "dependent",
				DependsOn:  []string{"[resourceId('Test/Fail','broken')]"},
				Properties: map[string]interface{}{"name": "x"},
			},
			{
				Type: "Test/Echo", Name: "transitive",
				DependsOn:  []string{"[resourceId('Test/Echo','dependent')]"},
				Properties: map[string]interface{}{"name": "y"},
			},
		},
	}

	c := &configure.Configurator{
		Discoverer: &stubDiscoverer{byType: map[string]*manifest.ResourceManifest{
			"Test/Echo": echoManifest(),
			"Test/Fail": failManifest(),
		}},
	}

	result, err := c.Run(context.Background(), "get", cfg, nil)
	require.NoError(t, err)
	require.True(t, result.HadErrors)
	require.Empty(t, result.Results)
	require.Len(t, result.Messages, 3)
	require.Equal(t, configure.LevelError, result.Messages[0].Level)
	require.Equal(t, "broken", result.Messages[0].ResourceName)
	require.Equal(t, configure.LevelWarn, result.Messages[1].Level)
	require.Equal(t, "dependent", result.Messages[1].ResourceName)
	require.Contains(t, result.Messages[1].Message, "skipped: dependency failed")
	require.Equal(t, "transitive", result.Messages[2].ResourceName)
}

func TestRunFailsClosedWhenParametersAreMissing(t *testing.T) {
	cfg := &document.Configuration{
		Parameters: map[string]document.ParameterSpec{
			"required": {Type: document.TypeString},
		},
	}
	c := &configure.Configurator{Discoverer: &stubDiscoverer{byType: map[string]*manifest.ResourceManifest{}}}
	_, err := c.Run(context.Background(), "get", cfg, nil)
	require.Error(t, err)
}

const denyAbsentRego = `
package dsce.policies.nodelete

deny[msg] {
	input.properties.ensure == "absent"
	msg := "deletion is not permitted by policy"
}
`

func TestRunBlocksSetWhenPolicyDenies(t *testing.T) {
	cfg := &document.Configuration{
		Resources: []document.ResourceInstance{
			{Type: "Test/Echo", Name: "first", Properties: map[string]interface{}{"ensure": "absent"}},
		},
	}

	gate := policy.NewGate()
	require.NoError(t, gate.Load("nodelete", denyAbsentRego, policy.SeverityError))

	c := &configure.Configurator{
		Discoverer: &stubDiscoverer{byType: map[string]*manifest.ResourceManifest{
			"Test/Echo": echoSetManifest(),
		}},
		Gate: gate,
	}

	result, err := c.Run(context.Background(), "set", cfg, nil)
	require.NoError(t, err)
	require.True(t, result.HadErrors)
	require.Empty(t, result.Results)
	require.Len(t, result.Messages, 1)
	require.Equal(t, configure.LevelError, result.Messages[0].Level)
	require.Contains(t, result.Messages[0].Message, "deletion is not permitted")
}

func TestRunAllowsSetWhenPolicyPasses(t *testing.T) {
	cfg := &document.Configuration{
		Resources: []document.ResourceInstance{
			{Type: "Test/Echo", Name: "first", Properties: map[string]interface{}{"ensure": "present"}},
		},
	}

	gate := policy.NewGate()
	require.NoError(t, gate.Load("nodelete", denyAbsentRego, policy.SeverityError))

	c := &configure.Configurator{
		Discoverer: &stubDiscoverer{byType: map[string]*manifest.ResourceManifest{
			"Test/Echo": echoSetManifest(),
		}},
		Gate: gate,
	}

	result, err := c.Run(context.Background(), "set", cfg, nil)
	require.NoError(t, err)
	require.False(t, result.HadErrors)
	require.Len(t, result.Results, 1)
}

func TestRunReportsUnresolvableResourceType(t *testing.T) {
	cfg := &document.Configuration{
		Resources: []document.ResourceInstance{
			{Type: "Test/Missing", Name: "a"},
		},
	}
	c := &configure.Configurator{Discoverer: &stubDiscoverer{byType: map[string]*manifest.ResourceManifest{}}}
	result, err := c.Run(context.Background(), "get", cfg, nil)
	require.NoError(t, err)
	require.True(t, result.HadErrors)
	require.Len(t, result.Messages, 1)
	require.Equal(t, configure.LevelError, result.Messages[0].Level)
}
