package discovery

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/openfroyo/dsce/pkg/dscerr"
	"github.com/openfroyo/dsce/pkg/manifest"
)

// Scan walks roots for files matching "*.resource.yaml" (or .yml/.json),
// consulting cache (may be nil to disable caching, e.g. the CLI's
// --nocache flag) before parsing each one, and parses whatever the cache
// didn't already have a fresh entry for. Parsing runs on a worker pool
// bounded at GOMAXPROCS — parsing many independent manifest files
// touches no shared engine state, so it's the one place this engine
// parallelizes anything (spec §5), in the spirit of the teacher's
// worker-pool scheduler but scoped down to this single embarrassingly
// parallel step.
func Scan(ctx context.Context, roots []string, cache *Cache) ([]Entry, error) {
	var paths []string
	for _, root := range roots {
		err := filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() {
				return nil
			}
			if isManifestFile(path) {
				paths = append(paths, path)
			}
			return nil
		})
		if err != nil {
			return nil, dscerr.IO("failed to walk discovery root", err).WithDetail("root", root)
		}
	}

	entries := make([]Entry, len(paths))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))

	loader := manifest.NewLoader()
	for i, path := range paths {
		i, path := i, path
		g.Go(func() error {
			e, err := loadOne(gctx, loader, cache, path)
			if err != nil {
				return err
			}
			entries[i] = e
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return entries, nil
}

func loadOne(ctx context.Context, loader *manifest.Loader, cache *Cache, path string) (Entry, error) {
	if err := ctx.Err(); err != nil {
		return Entry{}, err
	}

	modTime, size, err := statKey(path)
	if err != nil {
		return Entry{}, dscerr.IO("failed to stat resource manifest", err).WithDetail("path", path)
	}

	if cache != nil {
		if hit, ok, err := cache.Lookup(ctx, path, modTime, size); err == nil && ok {
			return hit, nil
		}
	}

	m, err := loader.LoadFromFile(path)
	if err != nil {
		return Entry{}, dscerr.Validation("failed to parse resource manifest", err).WithDetail("path", path)
	}
	entry := Entry{Path: path, Manifest: m, ModTime: modTime, Size: size}

	if cache != nil {
		_ = cache.Put(ctx, entry)
	}
	return entry, nil
}

func isManifestFile(path string) bool {
	name := filepath.Base(path)
	for _, suffix := range []string{".resource.yaml", ".resource.yml", ".resource.json"} {
		if strings.HasSuffix(name, suffix) {
			return true
		}
	}
	return false
}
