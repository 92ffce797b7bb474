// Package depcache stores library snapshots and run records in a sqlite
// database. A later run loads the snapshots of its dependencies instead of
// processing them again.
package depcache

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/tliron/commonlog"
	_ "modernc.org/sqlite"
)

var log = commonlog.GetLogger("ritual.depcache")

// ErrNotFound indicates the requested snapshot or run doesn't exist.
var ErrNotFound = errors.New("not found in cache")

// timeLayout has a fixed width so stored times sort as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

const schema = `
CREATE TABLE IF NOT EXISTS snapshots (
	library TEXT PRIMARY KEY,
	digest  TEXT NOT NULL,
	stored  TEXT NOT NULL,
	data    BLOB NOT NULL
);
CREATE TABLE IF NOT EXISTS runs (
	id      TEXT PRIMARY KEY,
	library TEXT NOT NULL,
	started TEXT NOT NULL,
	data    BLOB NOT NULL
);
CREATE INDEX IF NOT EXISTS runs_by_library ON runs (library, started);
`

// Cache is an open cache database.
type Cache struct {
	db   *sql.DB
	path string
}

// Open opens or creates the cache database at path.
func Open(path string) (*Cache, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating cache dir: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting busy timeout: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating tables: %w", err)
	}
	return &Cache{db: db, path: path}, nil
}

// Path returns the database file.
func (c *Cache) Path() string { return c.path }

// Close closes the database connection.
func (c *Cache) Close() error {
	if c.db != nil {
		return c.db.Close()
	}
	return nil
}

// Put stores s, replacing an earlier snapshot of the same library. It
// returns the snapshot digest.
func (c *Cache) Put(s *Snapshot) (string, error) {
	data, err := MarshalSnapshot(s)
	if err != nil {
		return "", fmt.Errorf("encoding snapshot of %s: %w", s.Library, err)
	}
	digest, err := Digest(s)
	if err != nil {
		return "", err
	}
	_, err = c.db.Exec(
		"INSERT OR REPLACE INTO snapshots (library, digest, stored, data) VALUES (?, ?, ?, ?)",
		s.Library, digest, time.Now().UTC().Format(timeLayout), data,
	)
	if err != nil {
		return "", fmt.Errorf("saving snapshot of %s: %w", s.Library, err)
	}
	log.Infof("stored snapshot of %s (%d classes, %s)", s.Library, len(s.Classes), digest[:12])
	return digest, nil
}

// Get loads the snapshot of library.
func (c *Cache) Get(library string) (*Snapshot, error) {
	var data []byte
	err := c.db.QueryRow("SELECT data FROM snapshots WHERE library = ?", library).Scan(&data)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("snapshot of %s: %w", library, ErrNotFound)
		}
		return nil, fmt.Errorf("querying snapshot of %s: %w", library, err)
	}
	return UnmarshalSnapshot(data)
}

// Entry describes a stored snapshot.
type Entry struct {
	Library string
	Digest  string
	Stored  time.Time
}

// List returns the stored snapshots ordered by library.
func (c *Cache) List() ([]Entry, error) {
	rows, err := c.db.Query("SELECT library, digest, stored FROM snapshots ORDER BY library")
	if err != nil {
		return nil, fmt.Errorf("listing snapshots: %w", err)
	}
	defer rows.Close()
	var out []Entry
	for rows.Next() {
		var e Entry
		var stored string
		if err := rows.Scan(&e.Library, &e.Digest, &stored); err != nil {
			return nil, fmt.Errorf("listing snapshots: %w", err)
		}
		e.Stored, _ = time.Parse(timeLayout, stored)
		out = append(out, e)
	}
	return out, rows.Err()
}

// Delete removes the snapshot and the runs of library.
func (c *Cache) Delete(library string) error {
	res, err := c.db.Exec("DELETE FROM snapshots WHERE library = ?", library)
	if err != nil {
		return fmt.Errorf("deleting snapshot of %s: %w", library, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("snapshot of %s: %w", library, ErrNotFound)
	}
	if _, err := c.db.Exec("DELETE FROM runs WHERE library = ?", library); err != nil {
		return fmt.Errorf("deleting runs of %s: %w", library, err)
	}
	return nil
}

// RecordRun stores a run record.
func (c *Cache) RecordRun(r *Run) error {
	data, err := MarshalRun(r)
	if err != nil {
		return fmt.Errorf("encoding run %s: %w", r.ID, err)
	}
	_, err = c.db.Exec(
		"INSERT OR REPLACE INTO runs (id, library, started, data) VALUES (?, ?, ?, ?)",
		r.ID.String(), r.Library, r.Started.UTC().Format(timeLayout), data,
	)
	if err != nil {
		return fmt.Errorf("saving run %s: %w", r.ID, err)
	}
	return nil
}

// LatestRun returns the most recent run of library.
func (c *Cache) LatestRun(library string) (*Run, error) {
	var data []byte
	err := c.db.QueryRow(
		"SELECT data FROM runs WHERE library = ? ORDER BY started DESC LIMIT 1", library,
	).Scan(&data)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("runs of %s: %w", library, ErrNotFound)
		}
		return nil, fmt.Errorf("querying runs of %s: %w", library, err)
	}
	return UnmarshalRun(data)
}

// Runs returns up to limit runs of library, newest first.
func (c *Cache) Runs(library string, limit int) ([]*Run, error) {
	rows, err := c.db.Query(
		"SELECT data FROM runs WHERE library = ? ORDER BY started DESC LIMIT ?", library, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("querying runs of %s: %w", library, err)
	}
	defer rows.Close()
	var out []*Run
	for rows.Next() {
		var data []byte
		if err := rows.Scan(&data); err != nil {
			return nil, fmt.Errorf("reading run: %w", err)
		}
		r, err := UnmarshalRun(data)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
