// Package discovery implements resource discovery (L7): scanning
// configured directories for *.resource.yaml manifests, indexing them by
// (type, version), and persisting that index in a small embedded SQLite
// cache so a repeat invocation can skip re-parsing files that haven't
// changed on disk. Adapted from the teacher's
// pkg/providers/host/registry.go discovery-then-index flow, with the
// cache storage swapped for pkg/stores/sqlite_store.go's SQLite pattern
// in place of a bare directory walk cache (spec §6.5).
package discovery

import (
	"os"
	"time"

	"github.com/openfroyo/dsce/pkg/manifest"
)

// Entry is one discovered manifest: its parsed contents plus the disk
// stat the cache keys on.
type Entry struct {
	Path     string
	Manifest *manifest.ResourceManifest
	ModTime  time.Time
	Size     int64
}

func statKey(path string) (time.Time, int64, error) {
	info, err := os.Stat(path)
	if err != nil {
		return time.Time{}, 0, err
	}
	return info.ModTime(), info.Size(), nil
}

// typeVersionKey identifies one (type, version) slot in the index. Two
// manifests declaring the same type and version is rejected by Build as
// an ambiguous registration, mirroring registry.go's duplicate-register
// check.
type typeVersionKey struct {
	Type    string
	Version string
}

func keyOf(m *manifest.ResourceManifest) typeVersionKey {
	return typeVersionKey{Type: m.Type, Version: m.Version.String()}
}
