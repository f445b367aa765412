package discovery_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/openfroyo/dsce/pkg/discovery"
)

const nullManifestYAML = `
type: Test/Null
version: 1.0.0
get:
  executable: dsctestresource
  args: [get]
  input: stdin
  return: state
`

const echoManifestYAML = `
type: Test/Echo
version: 2.1.0
get:
  executable: cat
  input: stdin
  return: state
`

func writeManifests(t *testing.T, dir string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "null.resource.yaml"), []byte(nullManifestYAML), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "echo.resource.yaml"), []byte(echoManifestYAML), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "ignored.txt"), []byte("not a manifest"), 0o644))
}

func TestBuildIndexesByTypeAndIgnoresNonManifestFiles(t *testing.T) {
	dir := t.TempDir()
	writeManifests(t, dir)

	idx, err := discovery.Build(context.Background(), []string{dir}, nil)
	require.NoError(t, err)
	require.ElementsMatch(t, []string{"Test/Echo", "Test/Null"}, idx.Types())

	m, err := idx.Resolve(context.Background(), "Test/Null")
	require.NoError(t, err)
	require.Equal(t, "Test/Null", m.Type)
}

func TestResolveReturnsHighestVersionForDuplicateType(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "v1.resource.yaml"), []byte(`
type: Test/Multi
version: 1.0.0
get:
  executable: cat
  input: stdin
  return: state
`), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "v2.resource.yaml"), []byte(`
type: Test/Multi
version: 2.0.0
get:
  executable: cat
  input: stdin
  return: state
`), 0o644))

	idx, err := discovery.Build(context.Background(), []string{dir}, nil)
	require.NoError(t, err)
	m, err := idx.Resolve(context.Background(), "Test/Multi")
	require.NoError(t, err)
	require.Equal(t, "2.0.0", m.Version.String())
}

func TestBuildRejectsDuplicateTypeAndVersion(t *testing.T) {
	dir := t.TempDir()
	manifest := []byte(`
type: Test/Dup
version: 1.0.0
get:
  executable: cat
  input: stdin
  return: state
`)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.resource.yaml"), manifest, 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b.resource.yaml"), manifest, 0o644))

	_, err := discovery.Build(context.Background(), []string{dir}, nil)
	require.Error(t, err)
}

func TestResolveErrorsForUnknownType(t *testing.T) {
	dir := t.TempDir()
	writeManifests(t, dir)
	idx, err := discovery.Build(context.Background(), []string{dir}, nil)
	require.NoError(t, err)
	_, err = idx.Resolve(context.Background(), "Test/Nope")
	require.Error(t, err)
}

func TestCacheHitSkipsReparseAndFlushForcesRescan(t *testing.T) {
	dir := t.TempDir()
	writeManifests(t, dir)

	cache, err := discovery.OpenCache(context.Background(), filepath.Join(t.TempDir(), "cache.db"))
	require.NoError(t, err)
	defer cache.Close()

	entries, err := discovery.Scan(context.Background(), []string{dir}, cache)
	require.NoError(t, err)
	require.Len(t, entries, 2)

	// Second scan should produce identical results from the cache without
	// touching the filesystem parser again.
	entries2, err := discovery.Scan(context.Background(), []string{dir}, cache)
	require.NoError(t, err)
	require.Len(t, entries2, 2)

	require.NoError(t, cache.Flush(context.Background()))
	entries3, err := discovery.Scan(context.Background(), []string{dir}, cache)
	require.NoError(t, err)
	require.Len(t, entries3, 2)
}
