package store

import "fmt"

// --- FileDep operations ---

// UpsertFileDep inserts a from->to file dependency edge, or bumps its
// ref_count if the edge already exists. Called once per surviving import
// during Phase 2c (only imports that resolve to an actual file on disk
// create an edge — L2 liveness) and again during Phase 3's fixed-point
// pass as pending deps resolve.
func (s *Store) UpsertFileDep(fromFileID, toFileID FileID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.Exec(
		`INSERT INTO file_deps (from_file_id, to_file_id, ref_count) VALUES (?, ?, 1)
		 ON CONFLICT (from_file_id, to_file_id) DO UPDATE SET ref_count = ref_count + 1`,
		fromFileID, toFileID,
	)
	if err != nil {
		return fmt.Errorf("upsert file dep: %w", err)
	}
	return nil
}

func (s *Store) queryFileDeps(query string, args ...any) ([]*FileDep, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var deps []*FileDep
	for rows.Next() {
		d := &FileDep{}
		if err := rows.Scan(&d.FromFileID, &d.ToFileID, &d.RefCount); err != nil {
			return nil, fmt.Errorf("scan file dep: %w", err)
		}
		deps = append(deps, d)
	}
	return deps, rows.Err()
}

const fileDepCols = `from_file_id, to_file_id, ref_count`

// DependenciesOf returns the files that fileID depends on.
func (s *Store) DependenciesOf(fileID FileID) ([]*FileDep, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.queryFileDeps("SELECT "+fileDepCols+" FROM file_deps WHERE from_file_id = ?", fileID)
}

// DependentsOf returns the files that depend on fileID.
func (s *Store) DependentsOf(fileID FileID) ([]*FileDep, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.queryFileDeps("SELECT "+fileDepCols+" FROM file_deps WHERE to_file_id = ?", fileID)
}

// AllFileDeps returns every file_deps row, used to seed in-memory cycle
// detection (the one graph query spec.md keeps in-process rather than as
// a recursive CTE).
func (s *Store) AllFileDeps() ([]*FileDep, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.queryFileDeps("SELECT " + fileDepCols + " FROM file_deps")
}

// DeleteFileDepsFrom removes all outgoing dependency edges for fileID, used
// before recomputing them on re-index.
func (s *Store) DeleteFileDepsFrom(fileID FileID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.Exec("DELETE FROM file_deps WHERE from_file_id = ?", fileID)
	if err != nil {
		return fmt.Errorf("delete file deps from: %w", err)
	}
	return nil
}

// --- PendingDep operations ---

// InsertPendingDep records an import whose module-resolved target isn't an
// indexed file yet. Phase 3 retries these on each fixed-point pass.
func (s *Store) InsertPendingDep(fromFileID FileID, targetRelPath string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	res, err := s.db.Exec(
		`INSERT INTO pending_deps (from_file_id, target_rel_path) VALUES (?, ?)`,
		fromFileID, targetRelPath,
	)
	if err != nil {
		return 0, fmt.Errorf("insert pending dep: %w", err)
	}
	return res.LastInsertId()
}

// AllPendingDeps returns every unresolved pending dependency.
func (s *Store) AllPendingDeps() ([]*PendingDep, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rows, err := s.db.Query("SELECT id, from_file_id, target_rel_path FROM pending_deps")
	if err != nil {
		return nil, fmt.Errorf("all pending deps: %w", err)
	}
	defer rows.Close()
	var deps []*PendingDep
	for rows.Next() {
		d := &PendingDep{}
		if err := rows.Scan(&d.ID, &d.FromFileID, &d.TargetRelPath); err != nil {
			return nil, fmt.Errorf("scan pending dep: %w", err)
		}
		deps = append(deps, d)
	}
	return deps, rows.Err()
}

// DeletePendingDep removes a single pending dependency, once it resolves.
func (s *Store) DeletePendingDep(id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.db.Exec("DELETE FROM pending_deps WHERE id = ?", id); err != nil {
		return fmt.Errorf("delete pending dep: %w", err)
	}
	return nil
}

// DeletePendingDepsFrom clears a file's pending dependencies, used before
// recomputing them on re-index.
func (s *Store) DeletePendingDepsFrom(fileID FileID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.db.Exec("DELETE FROM pending_deps WHERE from_file_id = ?", fileID); err != nil {
		return fmt.Errorf("delete pending deps from: %w", err)
	}
	return nil
}

// --- CallEdge operations ---

// MaterializeCallEdges groups resolved call-kind refs by (caller, callee)
// symbol and upserts the aggregate call_count. caller is the ref's
// in_symbol_id, callee is the ref's resolved symbol_id; refs missing
// either (unresolved, or a call outside any function) are skipped. This
// is Phase 5: call_edges is cleared, then rebuilt by a single
// INSERT ... SELECT that writes one row per distinct edge rather than one
// row per call site.
func (s *Store) MaterializeCallEdges() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("materialize call edges: begin: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec("DELETE FROM call_edges"); err != nil {
		return fmt.Errorf("materialize call edges: clear: %w", err)
	}

	_, err = tx.Exec(`
		INSERT INTO call_edges (caller_symbol_id, callee_symbol_id, call_count)
		SELECT in_symbol_id, symbol_id, COUNT(*)
		FROM refs
		WHERE kind = 'call' AND in_symbol_id IS NOT NULL AND symbol_id IS NOT NULL
		GROUP BY in_symbol_id, symbol_id
		ON CONFLICT (caller_symbol_id, callee_symbol_id)
		DO UPDATE SET call_count = call_count + excluded.call_count
	`)
	if err != nil {
		return fmt.Errorf("materialize call edges: insert: %w", err)
	}

	return tx.Commit()
}

func (s *Store) queryCallEdges(query string, args ...any) ([]*CallEdge, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var edges []*CallEdge
	for rows.Next() {
		e := &CallEdge{}
		if err := rows.Scan(&e.CallerSymbolID, &e.CalleeSymbolID, &e.CallCount); err != nil {
			return nil, fmt.Errorf("scan call edge: %w", err)
		}
		edges = append(edges, e)
	}
	return edges, rows.Err()
}

const callEdgeCols = `caller_symbol_id, callee_symbol_id, call_count`

// AllCallEdges returns all call graph edges, used to seed the in-memory
// cycle-detection pass.
func (s *Store) AllCallEdges() ([]*CallEdge, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.queryCallEdges("SELECT " + callEdgeCols + " FROM call_edges")
}

func (s *Store) CallersByCallee(calleeSymbolID SymbolID) ([]*CallEdge, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.queryCallEdges("SELECT "+callEdgeCols+" FROM call_edges WHERE callee_symbol_id = ?", calleeSymbolID)
}

func (s *Store) CalleesByCaller(callerSymbolID SymbolID) ([]*CallEdge, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.queryCallEdges("SELECT "+callEdgeCols+" FROM call_edges WHERE caller_symbol_id = ?", callerSymbolID)
}
