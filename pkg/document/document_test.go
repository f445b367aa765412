package document_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/openfroyo/dsce/pkg/document"
	"github.com/openfroyo/dsce/pkg/expr"
	_ "github.com/openfroyo/dsce/pkg/expr/builtins"
)

const sampleDoc = `{
  "$schema": "https://raw.githubusercontent.com/PowerShell/DSC/main/schemas/2024/04/config/document.json",
  "contentVersion": "1.0.0",
  "parameters": {
    "environment": {
      "type": "string",
      "allowedValues": ["dev", "prod"],
      "defaultValue": "dev"
    }
  },
  "variables": {
    "first": "hello",
    "second": "[concat(variables('first'), ' world')]"
  },
  "resources": [
    { "type": "Test/Null", "name": "a" },
    { "type": "Test/Null", "name": "b", "dependsOn": ["[resourceId('Test/Null','a')]"] }
  ]
}`

func TestParseRejectsUnrecognizedSchema(t *testing.T) {
	_, err := document.Parse([]byte(`{"$schema":"https://example.com/bogus","resources":[]}`))
	require.Error(t, err)
}

func TestParseRejectsDuplicateResourceIdentity(t *testing.T) {
	_, err := document.Parse([]byte(`{
		"$schema": "https://raw.githubusercontent.com/PowerShell/DSC/main/schemas/2024/04/config/document.json",
		"resources": [
			{"type": "Test/Null", "name": "a"},
			{"type": "Test/Null", "name": "a"}
		]
	}`))
	require.Error(t, err)
}

func TestEvalVariablesDocumentOrder(t *testing.T) {
	cfg, err := document.Parse([]byte(sampleDoc))
	require.NoError(t, err)
	require.Equal(t, []string{"first", "second"}, cfg.VariableOrder)

	ctx := expr.NewContext()
	require.NoError(t, document.EvalVariables(ctx, cfg))

	v := ctx.Variables["second"]
	s, ok := v.AsString()
	require.True(t, ok)
	require.Equal(t, "hello world", s)
}

func TestBindParametersDefaultAndAllowedValues(t *testing.T) {
	cfg, err := document.Parse([]byte(sampleDoc))
	require.NoError(t, err)

	bound, err := document.BindParameters(cfg.Parameters, map[string]interface{}{})
	require.NoError(t, err)
	s, _ := bound["environment"].AsString()
	require.Equal(t, "dev", s)

	_, err = document.BindParameters(cfg.Parameters, map[string]interface{}{"environment": "staging"})
	require.Error(t, err)
}

func TestEvalPropertiesRecurses(t *testing.T) {
	ctx := expr.NewContext()
	ctx.Variables["name"] = expr.String("widget")

	props := map[string]interface{}{
		"title": "[concat('hello ', variables('name'))]",
		"count": float64(3),
		"nested": map[string]interface{}{
			"flag": "[equals(1,1)]",
		},
	}
	v, err := document.EvalProperties(ctx, props)
	require.NoError(t, err)

	title, ok := v.Field("title")
	require.True(t, ok)
	s, _ := title.AsString()
	require.Equal(t, "hello widget", s)

	nested, ok := v.Field("nested")
	require.True(t, ok)
	flag, ok := nested.Field("flag")
	require.True(t, ok)
	b, _ := flag.AsBool()
	require.True(t, b)
}
