// Package store is the SQLite data access layer: six tables
// (files, symbols, refs, imports, file_deps, call_edges) with a mutex-guarded
// handle so it may be shared safely by cooperating pipeline stages.
package store

import (
	"database/sql"
	"fmt"
	"os"
	"sync"

	_ "github.com/mattn/go-sqlite3"
)

// Store is the SQLite data access layer for Tethys's six tables. The
// database connection is the single shared mutable resource; mu
// serializes access the way a single shared resource should be serialized,
// and MaxOpenConns(1) keeps the pool from handing out a second connection
// behind the mutex's back.
type Store struct {
	mu     sync.Mutex
	db     *sql.DB
	dbPath string
}

// NewStore opens a SQLite database at dbPath with WAL mode, foreign keys,
// and a busy timeout suitable for a single mutex-serialized writer.
func NewStore(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_foreign_keys=ON&_busy_timeout=30000")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	db.SetMaxOpenConns(1)
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return &Store{db: db, dbPath: dbPath}, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.db.Close()
}

// DB returns the underlying *sql.DB. Callers sharing the Store across
// goroutines must still respect the Store's own serialization for writes;
// DB() is exposed for read-only query building in the query layer.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Migrate creates all six tables and their indexes. Idempotent.
func (s *Store) Migrate() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.db.Exec(schemaDDL); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}

// Reset replaces the file-backed connection with an in-memory placeholder
// (releasing file locks), deletes the database file and its -wal/-shm
// sidecars, then reopens with the schema applied. The only way to apply
// schema changes.
func (s *Store) Reset() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.db.Close(); err != nil {
		return fmt.Errorf("reset: close: %w", err)
	}

	placeholder, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		return fmt.Errorf("reset: open placeholder: %w", err)
	}
	s.db = placeholder

	if s.dbPath != "" && s.dbPath != ":memory:" {
		for _, suffix := range []string{"", "-wal", "-shm"} {
			if err := os.Remove(s.dbPath + suffix); err != nil && !os.IsNotExist(err) {
				return fmt.Errorf("reset: remove %s%s: %w", s.dbPath, suffix, err)
			}
		}
	}
	placeholder.Close()

	db, err := sql.Open("sqlite3", s.dbPath+"?_journal_mode=WAL&_foreign_keys=ON&_busy_timeout=30000")
	if err != nil {
		return fmt.Errorf("reset: reopen: %w", err)
	}
	db.SetMaxOpenConns(1)
	if err := db.Ping(); err != nil {
		db.Close()
		return fmt.Errorf("reset: ping: %w", err)
	}
	s.db = db

	if _, err := s.db.Exec(schemaDDL); err != nil {
		return fmt.Errorf("reset: migrate: %w", err)
	}
	return nil
}

const schemaDDL = `
CREATE TABLE IF NOT EXISTS files (
  id              INTEGER PRIMARY KEY,
  path            TEXT NOT NULL UNIQUE,
  language        TEXT NOT NULL,
  mtime_ns        INTEGER NOT NULL DEFAULT 0,
  size            INTEGER NOT NULL DEFAULT 0,
  hash            TEXT,
  last_indexed    TIMESTAMP
);

CREATE TABLE IF NOT EXISTS symbols (
  id                INTEGER PRIMARY KEY,
  file_id           INTEGER NOT NULL REFERENCES files(id) ON DELETE CASCADE,
  name              TEXT NOT NULL,
  module_path       TEXT,
  qualified_name    TEXT,
  kind              TEXT NOT NULL,
  start_line        INTEGER NOT NULL,
  start_col         INTEGER NOT NULL,
  end_line          INTEGER NOT NULL,
  end_col           INTEGER NOT NULL,
  signature         TEXT,
  visibility        TEXT,
  parent_symbol_id  INTEGER REFERENCES symbols(id),
  is_test           BOOLEAN NOT NULL DEFAULT FALSE,
  signature_hash    TEXT,
  signature_details TEXT
);

CREATE TABLE IF NOT EXISTS refs (
  id              INTEGER PRIMARY KEY,
  file_id         INTEGER NOT NULL REFERENCES files(id) ON DELETE CASCADE,
  symbol_id       INTEGER REFERENCES symbols(id),
  reference_name  TEXT,
  kind            TEXT NOT NULL,
  start_line      INTEGER NOT NULL,
  start_col       INTEGER NOT NULL,
  end_line        INTEGER NOT NULL,
  end_col         INTEGER NOT NULL,
  in_symbol_id    INTEGER REFERENCES symbols(id)
);

CREATE TABLE IF NOT EXISTS imports (
  id              INTEGER PRIMARY KEY,
  file_id         INTEGER NOT NULL REFERENCES files(id) ON DELETE CASCADE,
  imported_name   TEXT NOT NULL,
  source          TEXT NOT NULL,
  alias           TEXT,
  line            INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS file_deps (
  from_file_id    INTEGER NOT NULL REFERENCES files(id) ON DELETE CASCADE,
  to_file_id      INTEGER NOT NULL REFERENCES files(id) ON DELETE CASCADE,
  ref_count       INTEGER NOT NULL DEFAULT 1,
  PRIMARY KEY (from_file_id, to_file_id)
);

CREATE TABLE IF NOT EXISTS call_edges (
  caller_symbol_id INTEGER NOT NULL REFERENCES symbols(id) ON DELETE CASCADE,
  callee_symbol_id INTEGER NOT NULL REFERENCES symbols(id) ON DELETE CASCADE,
  call_count       INTEGER NOT NULL DEFAULT 1,
  PRIMARY KEY (caller_symbol_id, callee_symbol_id)
);

-- pending_deps holds module-resolved import targets that don't name an
-- already-indexed file yet. Phase 3 retries these against the files table
-- to a fixed point; survivors after the last pass are typically external
-- crates/assemblies, not errors. Not one of spec.md's six core tables, but
-- the on-disk form of its deferred-resolution worklist, so incremental
-- indexing runs can resume it across process restarts.
CREATE TABLE IF NOT EXISTS pending_deps (
  id                INTEGER PRIMARY KEY,
  from_file_id      INTEGER NOT NULL REFERENCES files(id) ON DELETE CASCADE,
  target_rel_path   TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_files_language ON files(language);
CREATE INDEX IF NOT EXISTS idx_symbols_file ON symbols(file_id);
CREATE INDEX IF NOT EXISTS idx_symbols_name ON symbols(name);
CREATE INDEX IF NOT EXISTS idx_symbols_qualified_name ON symbols(qualified_name);
CREATE INDEX IF NOT EXISTS idx_symbols_kind ON symbols(kind);
CREATE INDEX IF NOT EXISTS idx_refs_file ON refs(file_id);
CREATE INDEX IF NOT EXISTS idx_refs_symbol ON refs(symbol_id);
CREATE INDEX IF NOT EXISTS idx_refs_in_symbol ON refs(in_symbol_id);
CREATE INDEX IF NOT EXISTS idx_refs_name ON refs(reference_name);
CREATE INDEX IF NOT EXISTS idx_imports_file ON imports(file_id);
CREATE INDEX IF NOT EXISTS idx_imports_source ON imports(source);
CREATE INDEX IF NOT EXISTS idx_file_deps_to ON file_deps(to_file_id);
CREATE INDEX IF NOT EXISTS idx_call_edges_caller ON call_edges(caller_symbol_id);
CREATE INDEX IF NOT EXISTS idx_call_edges_callee ON call_edges(callee_symbol_id);
CREATE INDEX IF NOT EXISTS idx_pending_deps_from ON pending_deps(from_file_id);
`

// Stats holds per-table row counts plus files partitioned by language and
// symbols by kind. Every stored language/kind string gets its own map key
// as-is; unrecognized values are not counted separately or validated.
type Stats struct {
	FileCount        int
	SymbolCount      int
	ReferenceCount   int
	ImportCount      int
	FileDepCount     int
	CallEdgeCount    int
	FilesByLanguage  map[string]int
	SymbolsByKind    map[string]int
}

// Statistics returns file/symbol/reference/dependency counts partitioned by
// language and kind.
func (s *Store) Statistics() (*Stats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := &Stats{
		FilesByLanguage: map[string]int{},
		SymbolsByKind:   map[string]int{},
	}

	for table, dst := range map[string]*int{
		"files": &st.FileCount, "symbols": &st.SymbolCount, "refs": &st.ReferenceCount,
		"imports": &st.ImportCount, "file_deps": &st.FileDepCount, "call_edges": &st.CallEdgeCount,
	} {
		if err := s.db.QueryRow("SELECT COUNT(*) FROM " + table).Scan(dst); err != nil {
			return nil, fmt.Errorf("statistics: count %s: %w", table, err)
		}
	}

	rows, err := s.db.Query("SELECT language, COUNT(*) FROM files GROUP BY language")
	if err != nil {
		return nil, fmt.Errorf("statistics: files by language: %w", err)
	}
	for rows.Next() {
		var lang string
		var n int
		if err := rows.Scan(&lang, &n); err != nil {
			rows.Close()
			return nil, fmt.Errorf("statistics: scan language: %w", err)
		}
		st.FilesByLanguage[lang] = n
	}
	rows.Close()

	rows, err = s.db.Query("SELECT kind, COUNT(*) FROM symbols GROUP BY kind")
	if err != nil {
		return nil, fmt.Errorf("statistics: symbols by kind: %w", err)
	}
	for rows.Next() {
		var kind string
		var n int
		if err := rows.Scan(&kind, &n); err != nil {
			rows.Close()
			return nil, fmt.Errorf("statistics: scan kind: %w", err)
		}
		st.SymbolsByKind[kind] = n
	}
	rows.Close()

	return st, rows.Err()
}

// DeleteFileData transactionally removes all symbols, refs, and imports for
// a file. Cascading foreign keys handle call_edges/file_deps rows that
// reference deleted symbols/files.
func (s *Store) DeleteFileData(fileID FileID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("delete file data: begin: %w", err)
	}
	defer tx.Rollback()

	for _, q := range []string{
		"DELETE FROM refs WHERE file_id = ?",
		"DELETE FROM imports WHERE file_id = ?",
		"DELETE FROM symbols WHERE file_id = ?",
	} {
		if _, err := tx.Exec(q, fileID); err != nil {
			return fmt.Errorf("delete file data: %w", err)
		}
	}
	return tx.Commit()
}
