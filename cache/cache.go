// Package cache implements the three-namespace key/value store and media
// pool lifecycle described in §4.9, backed by an embedded SQLite database
// (modernc.org/sqlite, pure Go, no cgo). Grounded on
// original_source/dep11/datacache.py's KyotoCabinet-backed DataCache,
// restated over database/sql tables instead of three separate .kch files.
package cache

import (
	"database/sql"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	_ "modernc.org/sqlite"

	"github.com/debian-appstream/dep11gen/component"
)

const schema = `
CREATE TABLE IF NOT EXISTS packages (pkid TEXT PRIMARY KEY, value TEXT NOT NULL);
CREATE TABLE IF NOT EXISTS hints    (pkid TEXT PRIMARY KEY, doc TEXT NOT NULL);
CREATE TABLE IF NOT EXISTS metadata (gid  TEXT PRIMARY KEY, doc TEXT NOT NULL);
`

// valueIgnore and valueSeen are the two sentinel non-gid-list values the
// packages namespace can hold (§4.9).
const (
	valueIgnore = "ignore"
	valueSeen   = "seen"
)

// CacheError wraps a failed write to the packages/hints/metadata tables
// (§7). It is fatal to the worker processing the package that triggered it,
// since a swallowed write here means a package silently leaves no trace in
// either the packages namespace or the hints stream.
type CacheError struct {
	Op  string // "set-package", "set-hints", "set-metadata"
	Key string
	Err error
}

func (e *CacheError) Error() string {
	return fmt.Sprintf("cache: %s %s: %v", e.Op, e.Key, e.Err)
}

func (e *CacheError) Unwrap() error { return e.Err }

// Cache is the embedded store plus media pool described in §4.9.
type Cache struct {
	db        *sql.DB
	MediaRoot string
}

// Open opens (creating if absent) the SQLite database at
// <cacheDir>/dep11.db and ensures its schema exists.
func Open(cacheDir, mediaRoot string) (*Cache, error) {
	if err := os.MkdirAll(cacheDir, 0755); err != nil {
		return nil, err
	}
	dsn := url.URL{
		Scheme: "file",
		Opaque: filepath.Join(cacheDir, "dep11.db"),
		RawQuery: url.Values{
			"_pragma": {"journal_mode(WAL)", "foreign_keys(1)", "busy_timeout(5000)"},
		}.Encode(),
	}
	db, err := sql.Open("sqlite", dsn.String())
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, err
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("cache: schema init: %w", err)
	}
	return &Cache{db: db, MediaRoot: mediaRoot}, nil
}

// Close releases the underlying database handle. The Scheduler opens one
// Cache per job and closes it when that job ends (§4.10), so concurrent
// workers never share a single *sql.DB handle; their writes meet only in
// SQLite's own locking (see busy_timeout in Open).
func (c *Cache) Close() error {
	return c.db.Close()
}

// GetMetadataYAML implements extractor.MetadataLookup: does metadata[gid]
// already exist, and if so, what is it?
func (c *Cache) GetMetadataYAML(gid string) (string, bool) {
	var doc string
	err := c.db.QueryRow(`SELECT doc FROM metadata WHERE gid = ?`, gid).Scan(&doc)
	if err != nil {
		return "", false
	}
	return doc, true
}

// PutComponents implements extractor.ComponentStore (§4.9 put_components).
// A non-nil error is a CacheError and is fatal to the package being
// processed (§7): the caller must not treat the package as handled.
func (c *Cache) PutComponents(pkid string, cpts []*component.Component) error {
	if len(cpts) == 0 {
		return c.setPackageValue(pkid, valueIgnore)
	}

	var gids []string
	var hintsBuf strings.Builder
	for _, cpt := range cpts {
		if doc, ok := cpt.HintsYAMLDoc(pkid); ok {
			hintsBuf.WriteString(doc)
		}
		if cpt.HasIgnoreReason() {
			continue
		}
		gid := cpt.GlobalID()
		if gid == "" {
			continue
		}
		if _, exists := c.GetMetadataYAML(gid); !exists {
			doc, err := cpt.ToYAMLDoc()
			if err != nil {
				continue
			}
			if err := c.setMetadata(gid, doc); err != nil {
				return err
			}
		}
		gids = append(gids, gid)
	}

	if hintsBuf.Len() > 0 {
		if err := c.setHints(pkid, hintsBuf.String()); err != nil {
			return err
		}
	}

	switch {
	case len(gids) > 0:
		return c.setPackageValue(pkid, strings.Join(gids, "\n"))
	case hintsBuf.Len() > 0:
		return c.setPackageValue(pkid, valueSeen)
	default:
		return c.setPackageValue(pkid, valueIgnore)
	}
}

// GetComponentsYAML implements §4.9 get_components_yaml: reads the gid list
// for pkid, then concatenates each metadata[gid] document.
func (c *Cache) GetComponentsYAML(pkid string) (string, bool) {
	value, ok := c.packageValue(pkid)
	if !ok || value == valueIgnore || value == valueSeen {
		return "", false
	}
	var buf strings.Builder
	for _, gid := range strings.Split(value, "\n") {
		if doc, ok := c.GetMetadataYAML(gid); ok {
			buf.WriteString(doc)
		}
	}
	return buf.String(), buf.Len() > 0
}

// GidsForPackage returns the list of global ids pkid resolved to, if it
// resolved to any (i.e. it was neither ignored nor hints-only). Used by the
// catalog writer to enumerate which components' icons belong in a given
// icons-<WxH>.tar.gz.
func (c *Cache) GidsForPackage(pkid string) ([]string, bool) {
	value, ok := c.packageValue(pkid)
	if !ok || value == valueIgnore || value == valueSeen {
		return nil, false
	}
	return strings.Split(value, "\n"), true
}

// GetHintsYAML returns the concatenated hints document for pkid, if any.
func (c *Cache) GetHintsYAML(pkid string) (string, bool) {
	var doc string
	err := c.db.QueryRow(`SELECT doc FROM hints WHERE pkid = ?`, pkid).Scan(&doc)
	if err != nil {
		return "", false
	}
	return doc, true
}

// Forget implements §4.9 forget: removes pkid's package and hints entries.
// Orphaned metadata/media is reclaimed later by Expire.
func (c *Cache) Forget(pkid string) error {
	if _, err := c.db.Exec(`DELETE FROM packages WHERE pkid = ?`, pkid); err != nil {
		return err
	}
	_, err := c.db.Exec(`DELETE FROM hints WHERE pkid = ?`, pkid)
	return err
}

// Expire implements §4.9 expire: removes packages entries for pkids no
// longer present in validPkids, then sweeps metadata for gids no longer
// referenced by any surviving package, deleting their media subtree and
// pruning up to two levels of now-empty ancestor directories.
func (c *Cache) Expire(validPkids []string, archiveComponent string) error {
	valid := make(map[string]bool, len(validPkids))
	for _, p := range validPkids {
		valid[p] = true
	}

	rows, err := c.db.Query(`SELECT pkid FROM packages`)
	if err != nil {
		return err
	}
	var stale []string
	for rows.Next() {
		var pkid string
		if err := rows.Scan(&pkid); err != nil {
			rows.Close()
			return err
		}
		if !valid[pkid] {
			stale = append(stale, pkid)
		}
	}
	rows.Close()

	for _, pkid := range stale {
		if _, err := c.db.Exec(`DELETE FROM packages WHERE pkid = ?`, pkid); err != nil {
			return err
		}
		if _, err := c.db.Exec(`DELETE FROM hints WHERE pkid = ?`, pkid); err != nil {
			return err
		}
	}

	referenced := map[string]bool{}
	pkgRows, err := c.db.Query(`SELECT value FROM packages`)
	if err != nil {
		return err
	}
	for pkgRows.Next() {
		var value string
		if err := pkgRows.Scan(&value); err != nil {
			pkgRows.Close()
			return err
		}
		if value == valueIgnore || value == valueSeen {
			continue
		}
		for _, gid := range strings.Split(value, "\n") {
			referenced[gid] = true
		}
	}
	pkgRows.Close()

	gidRows, err := c.db.Query(`SELECT gid FROM metadata`)
	if err != nil {
		return err
	}
	var orphaned []string
	for gidRows.Next() {
		var gid string
		if err := gidRows.Scan(&gid); err != nil {
			gidRows.Close()
			return err
		}
		if !referenced[gid] {
			orphaned = append(orphaned, gid)
		}
	}
	gidRows.Close()

	for _, gid := range orphaned {
		if _, err := c.db.Exec(`DELETE FROM metadata WHERE gid = ?`, gid); err != nil {
			return err
		}
		if err := c.removeMediaTree(archiveComponent, gid); err != nil {
			return err
		}
	}
	return nil
}

func (c *Cache) removeMediaTree(archiveComponent, gid string) error {
	dir := filepath.Join(c.MediaRoot, archiveComponent, gid)
	if err := os.RemoveAll(dir); err != nil {
		return err
	}
	pruneEmptyAncestors(filepath.Dir(dir), 2)
	return nil
}

// pruneEmptyAncestors removes dir and up to depth-1 further ancestors, as
// long as each is empty, stopping at the first non-empty directory.
func pruneEmptyAncestors(dir string, depth int) {
	for i := 0; i < depth; i++ {
		entries, err := os.ReadDir(dir)
		if err != nil || len(entries) > 0 {
			return
		}
		if err := os.Remove(dir); err != nil {
			return
		}
		dir = filepath.Dir(dir)
	}
}

func (c *Cache) packageValue(pkid string) (string, bool) {
	var value string
	err := c.db.QueryRow(`SELECT value FROM packages WHERE pkid = ?`, pkid).Scan(&value)
	if err != nil {
		return "", false
	}
	return value, true
}

func (c *Cache) setPackageValue(pkid, value string) error {
	if _, err := c.db.Exec(`INSERT INTO packages (pkid, value) VALUES (?, ?)
		ON CONFLICT(pkid) DO UPDATE SET value = excluded.value`, pkid, value); err != nil {
		return &CacheError{Op: "set-package", Key: pkid, Err: err}
	}
	return nil
}

func (c *Cache) setHints(pkid, doc string) error {
	if _, err := c.db.Exec(`INSERT INTO hints (pkid, doc) VALUES (?, ?)
		ON CONFLICT(pkid) DO UPDATE SET doc = excluded.doc`, pkid, doc); err != nil {
		return &CacheError{Op: "set-hints", Key: pkid, Err: err}
	}
	return nil
}

func (c *Cache) setMetadata(gid, doc string) error {
	if _, err := c.db.Exec(`INSERT INTO metadata (gid, doc) VALUES (?, ?)
		ON CONFLICT(gid) DO UPDATE SET doc = excluded.doc`, gid, doc); err != nil {
		return &CacheError{Op: "set-metadata", Key: gid, Err: err}
	}
	return nil
}
