// Package store caches rendered translations in a SQLite database, keyed by
// the fingerprint of the script's action bytes.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/tliron/commonlog"
	_ "modernc.org/sqlite" // SQLite driver

	"github.com/diysoho/jpexs-decompiler/compiler"
	"github.com/diysoho/jpexs-decompiler/wire"
)

var log = commonlog.GetLogger("avmdec.store")

const schema = `
CREATE TABLE IF NOT EXISTS entries (
	fingerprint BLOB NOT NULL,
	variant     TEXT NOT NULL,
	script      TEXT NOT NULL,
	data        BLOB NOT NULL,
	PRIMARY KEY (fingerprint, variant)
)`

// Variant names the settings a rendering depends on. Entries rendered
// under different settings are cached separately.
func Variant(d compiler.DecompileOptions, r compiler.RenderOptions) string {
	idioms := append([]string(nil), d.DisabledIdioms...)
	sort.Strings(idioms)
	return fmt.Sprintf("flow=%t;indent=%q;pos=%t;off=%s",
		d.ControlFlow, r.Indent, r.Positions, strings.Join(idioms, ","))
}

// Store is a translation cache. It is safe for concurrent use.
type Store struct {
	db *sql.DB
}

// Open opens or creates the cache database at path.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("store: create %s: %w", dir, err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("store: open %s: %w", path, err)
	}
	// SQLite allows one writer; a single connection avoids busy errors.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: init schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close releases the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Get returns the entry cached for fingerprint under variant. The second
// result is false on a miss. An entry that no longer decodes counts as a
// miss and is removed.
func (s *Store) Get(ctx context.Context, fingerprint [32]byte, variant string) (*wire.Entry, bool, error) {
	var data []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT data FROM entries WHERE fingerprint = ? AND variant = ?`,
		fingerprint[:], variant).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("store: get: %w", err)
	}

	e, err := wire.UnmarshalEntry(data)
	if err != nil {
		log.Warningf("dropping stale entry %x: %v", fingerprint[:4], err)
		if err := s.Delete(ctx, fingerprint, variant); err != nil {
			return nil, false, err
		}
		return nil, false, nil
	}
	return e, true, nil
}

// Put stores e under its fingerprint and variant, replacing any previous
// entry.
func (s *Store) Put(ctx context.Context, variant string, e *wire.Entry) error {
	data, err := wire.MarshalEntry(e)
	if err != nil {
		return fmt.Errorf("store: encode entry: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO entries (fingerprint, variant, script, data) VALUES (?, ?, ?, ?)`,
		e.Fingerprint[:], variant, e.Script, data)
	if err != nil {
		return fmt.Errorf("store: put: %w", err)
	}
	log.Debugf("cached %s (%x)", e.Script, e.Fingerprint[:4])
	return nil
}

// Delete removes one entry.
func (s *Store) Delete(ctx context.Context, fingerprint [32]byte, variant string) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM entries WHERE fingerprint = ? AND variant = ?`, fingerprint[:], variant)
	if err != nil {
		return fmt.Errorf("store: delete: %w", err)
	}
	return nil
}

// Len returns the number of cached entries.
func (s *Store) Len(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM entries`).Scan(&n); err != nil {
		return 0, fmt.Errorf("store: count: %w", err)
	}
	return n, nil
}

// Purge removes every entry.
func (s *Store) Purge(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM entries`); err != nil {
		return fmt.Errorf("store: purge: %w", err)
	}
	return nil
}
