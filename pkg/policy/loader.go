package policy

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/openfroyo/dsce/pkg/dscerr"
)

// Loader discovers Rego policy files under a directory and can watch
// that directory for changes, reloading a Gate's policy set in place.
// Adapted from the teacher's pkg/policy/loader.go (LoadFromPaths,
// loadFromDirectory, Watch), narrowed to a single directory root and a
// single Gate target, since this engine has no multi-source policy
// bundle format to merge.
type Loader struct {
	gate *Gate
	dir  string
}

// NewLoader returns a Loader that (re)populates gate from the *.rego
// files found under dir.
func NewLoader(gate *Gate, dir string) *Loader {
	return &Loader{gate: gate, dir: dir}
}

// Load walks dir recursively for *.rego files and replaces the Gate's
// entire policy set with what it finds. A file named "*.warn.rego"
// loads at warn severity; every other .rego file loads at error
// severity, matching the conservative default a guardrail gate should
// have when no severity is declared explicitly.
func (l *Loader) Load() error {
	type fileSource struct {
		path   string
		source string
	}
	var found []fileSource

	err := filepath.WalkDir(l.dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.HasSuffix(path, ".rego") {
			return nil
		}
		source, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		found = append(found, fileSource{path: path, source: string(source)})
		return nil
	})
	if err != nil {
		return dscerr.IO("failed to walk policy directory", err).WithDetail("dir", l.dir)
	}

	l.gate.Reset()
	for _, f := range found {
		severity := SeverityError
		if strings.HasSuffix(f.path, ".warn.rego") {
			severity = SeverityWarn
		}
		if err := l.gate.Load(filepath.Base(f.path), f.source, severity); err != nil {
			return err
		}
	}
	return nil
}

// Watch starts an fsnotify watch on dir and every subdirectory, and
// reloads the Gate (debounced) whenever a .rego file is written,
// created, or removed. It blocks until ctx is cancelled or the watcher
// fails. Intended for long-running embedders of this package; the dsce
// CLI itself is a one-shot process and calls Load once instead.
func (l *Loader) Watch(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return dscerr.IO("failed to create policy file watcher", err)
	}
	defer watcher.Close()

	err = filepath.WalkDir(l.dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return watcher.Add(path)
		}
		return nil
	})
	if err != nil {
		return dscerr.IO("failed to watch policy directory", err).WithDetail("dir", l.dir)
	}

	const debounce = 250 * time.Millisecond
	var reloadTimer *time.Timer

	for {
		select {
		case <-ctx.Done():
			if reloadTimer != nil {
				reloadTimer.Stop()
			}
			return ctx.Err()
		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !strings.HasSuffix(ev.Name, ".rego") {
				continue
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove) == 0 {
				continue
			}
			if reloadTimer != nil {
				reloadTimer.Stop()
			}
			reloadTimer = time.AfterFunc(debounce, func() {
				_ = l.Load()
			})
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			return dscerr.IO("policy file watcher error", err)
		}
	}
}
