package discovery

import (
	"context"
	"sort"

	"github.com/openfroyo/dsce/pkg/dscerr"
	"github.com/openfroyo/dsce/pkg/manifest"
)

// Index is the queryable result of a scan: every discovered manifest,
// grouped by fully-qualified type name.
type Index struct {
	byType map[string][]*manifest.ResourceManifest
}

// Build scans roots and indexes the result by type, consulting cache
// (nil disables it) to skip re-parsing unchanged manifest files.
func Build(ctx context.Context, roots []string, cache *Cache) (*Index, error) {
	entries, err := Scan(ctx, roots, cache)
	if err != nil {
		return nil, err
	}

	idx := &Index{byType: make(map[string][]*manifest.ResourceManifest)}
	seen := make(map[typeVersionKey]string)
	for _, e := range entries {
		key := keyOf(e.Manifest)
		if prior, ok := seen[key]; ok {
			return nil, dscerr.Validation("duplicate resource manifest for the same type and version", nil).
				WithCode(dscerr.CodeDuplicateResource).
				WithDetail("type", key.Type).WithDetail("version", key.Version).
				WithDetail("path", e.Path).WithDetail("conflictsWith", prior)
		}
		seen[key] = e.Path
		idx.byType[e.Manifest.Type] = append(idx.byType[e.Manifest.Type], e.Manifest)
	}
	for _, versions := range idx.byType {
		sort.Slice(versions, func(i, j int) bool {
			return versions[i].Version.LT(versions[j].Version)
		})
	}
	return idx, nil
}

// Resolve returns the highest-versioned manifest registered for
// resourceType — this is the pkg/configure.Discoverer implementation
// used outside of tests. Multiple manifests declaring the same type at
// different versions is expected (spec §4.7 indexes by (type, version));
// the engine always dispatches to the newest one it found.
func (idx *Index) Resolve(_ context.Context, resourceType string) (*manifest.ResourceManifest, error) {
	versions, ok := idx.byType[resourceType]
	if !ok || len(versions) == 0 {
		return nil, dscerr.Resource("no resource manifest found for type", nil).
			WithCode(dscerr.CodeManifestNotFound).WithDetail("type", resourceType)
	}
	return versions[len(versions)-1], nil
}

// Types lists every resource type the index discovered, for the CLI's
// "list" subcommand.
func (idx *Index) Types() []string {
	out := make([]string, 0, len(idx.byType))
	for t := range idx.byType {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}
