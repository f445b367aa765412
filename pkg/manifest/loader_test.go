package manifest_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/openfroyo/dsce/pkg/manifest"
)

const nullManifest = `
type: Test/Null
version: 1.0.0
description: a resource that does nothing, used to exercise the planner
get:
  executable: dsctestresource
  args:
    - get
  input: stdin
  return: state
set:
  executable: dsctestresource
  args:
    - set
  input: stdin
  return: stateAndDiff
  preTest: true
test:
  executable: dsctestresource
  args:
    - test
  input: stdin
  return: state
exitCodes:
  "1": "invalid input"
`

func TestLoadFromBytes(t *testing.T) {
	l := manifest.NewLoader()
	m, err := l.LoadFromBytes([]byte(nullManifest))
	require.NoError(t, err)
	require.Equal(t, "Test/Null", m.Type)
	require.Equal(t, "1.0.0", m.Version.String())
	require.NotNil(t, m.Get)
	require.NotNil(t, m.Set)
	require.True(t, m.Set.PreTest)
	require.Equal(t, "invalid input", m.ExitMessage(1))
	require.Equal(t, "Error", m.ExitMessage(99))
}

func TestLoadRejectsBadTypeName(t *testing.T) {
	l := manifest.NewLoader()
	_, err := l.LoadFromBytes([]byte(`
type: badtype
version: 1.0.0
get:
  executable: x
  input: stdin
  return: state
`))
	require.Error(t, err)
}

func TestArgTokenPlaceholders(t *testing.T) {
	l := manifest.NewLoader()
	m, err := l.LoadFromBytes([]byte(`
type: Test/File
version: 0.1.0
get:
  executable: dsctestresource
  args:
    - get
    - { file: --config }
    - { jsonInputArg: --input }
  return: state
`))
	require.NoError(t, err)
	require.Len(t, m.Get.Args, 3)
	require.Equal(t, manifest.ArgLiteral, m.Get.Args[0].Kind)
	require.Equal(t, manifest.ArgFile, m.Get.Args[1].Kind)
	require.Equal(t, "--config", m.Get.Args[1].Flag)
	require.Equal(t, manifest.ArgJSONInput, m.Get.Args[2].Kind)
}
