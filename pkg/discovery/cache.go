package discovery

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	_ "modernc.org/sqlite"

	"github.com/openfroyo/dsce/pkg/dscerr"
	"github.com/openfroyo/dsce/pkg/manifest"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Cache is the on-disk SQLite snapshot of the last successful scan,
// keyed by (manifest_path, mtime, size) per spec §6.5: a cache hit lets
// the scanner skip re-parsing a manifest file entirely by deserializing
// the manifest straight out of the row. Adapted from
// pkg/stores/sqlite_store.go's Init/Migrate pattern; this package only
// needs one table, so the rest of that store's Run/PlanUnit/Event/Fact
// machinery isn't carried over — see the top-level design notes for why.
type Cache struct {
	db *sql.DB
}

// OpenCache opens (creating if necessary) the SQLite cache at path and
// runs its migrations.
func OpenCache(ctx context.Context, path string) (*Cache, error) {
	dsn := path + "?_foreign_keys=on&_journal_mode=WAL&_busy_timeout=5000&_synchronous=NORMAL"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, dscerr.IO("failed to open discovery cache", err).WithDetail("path", path)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, dscerr.IO("failed to open discovery cache", err).WithDetail("path", path)
	}

	c := &Cache{db: db}
	if err := c.migrate(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return c, nil
}

func (c *Cache) migrate() error {
	source, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return dscerr.Internal("failed to load embedded discovery cache migrations", err)
	}
	driver, err := sqlite3.WithInstance(c.db, &sqlite3.Config{})
	if err != nil {
		return dscerr.IO("failed to create discovery cache migration driver", err)
	}
	m, err := migrate.NewWithInstance("iofs", source, "sqlite3", driver)
	if err != nil {
		return dscerr.IO("failed to prepare discovery cache migrations", err)
	}
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return dscerr.IO("failed to apply discovery cache migrations", err)
	}
	return nil
}

// Close closes the underlying database handle.
func (c *Cache) Close() error {
	return c.db.Close()
}

// Lookup returns the cached Entry for path if its recorded mtime and
// size agree with modTime/size — a disagreement (or a missing row) is
// reported as a miss, never an error, per spec §9 "discovery cache
// safety": the caller always falls back to a fresh parse.
func (c *Cache) Lookup(ctx context.Context, path string, modTime time.Time, size int64) (Entry, bool, error) {
	var blob string
	var modUnix, sizeBytes int64
	err := c.db.QueryRowContext(ctx,
		`SELECT mod_time_unix, size_bytes, manifest_json FROM manifest_cache WHERE manifest_path = ?`,
		path,
	).Scan(&modUnix, &sizeBytes, &blob)
	if errors.Is(err, sql.ErrNoRows) {
		return Entry{}, false, nil
	}
	if err != nil {
		return Entry{}, false, dscerr.IO("failed to query discovery cache", err).WithDetail("path", path)
	}
	if modUnix != modTime.Unix() || sizeBytes != size {
		return Entry{}, false, nil
	}

	var m manifest.ResourceManifest
	if err := json.Unmarshal([]byte(blob), &m); err != nil {
		// A corrupt cache row degrades to a miss rather than a fatal error.
		return Entry{}, false, nil
	}
	return Entry{Path: path, Manifest: &m, ModTime: modTime, Size: size}, true, nil
}

// Put records e in the cache, replacing any prior row for its path.
func (c *Cache) Put(ctx context.Context, e Entry) error {
	blob, err := json.Marshal(e.Manifest)
	if err != nil {
		return dscerr.Internal("failed to serialize manifest for cache", err).WithDetail("path", e.Path)
	}
	_, err = c.db.ExecContext(ctx,
		`INSERT INTO manifest_cache (manifest_path, resource_type, version, mod_time_unix, size_bytes, manifest_json, cached_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(manifest_path) DO UPDATE SET
		   resource_type = excluded.resource_type,
		   version = excluded.version,
		   mod_time_unix = excluded.mod_time_unix,
		   size_bytes = excluded.size_bytes,
		   manifest_json = excluded.manifest_json,
		   cached_at = excluded.cached_at`,
		e.Path, e.Manifest.Type, e.Manifest.Version.String(), e.ModTime.Unix(), e.Size, string(blob), time.Now().UTC(),
	)
	if err != nil {
		return dscerr.IO("failed to write discovery cache entry", err).WithDetail("path", e.Path)
	}
	return nil
}

// Flush removes every row from the cache, forcing the next scan to
// re-parse every manifest. This is what the CLI's "flushcache" command
// calls.
func (c *Cache) Flush(ctx context.Context) error {
	if _, err := c.db.ExecContext(ctx, `DELETE FROM manifest_cache`); err != nil {
		return dscerr.IO("failed to flush discovery cache", err)
	}
	return nil
}
