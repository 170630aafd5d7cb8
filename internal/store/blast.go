package store

import "fmt"

// FilesReferencingSymbols returns file IDs that hold a ref resolved to any
// of the given symbols. Used to expand a set of changed symbols into the
// set of files whose resolution may now be stale (blast radius).
func (s *Store) FilesReferencingSymbols(symbolIDs []SymbolID) ([]FileID, error) {
	if len(symbolIDs) == 0 {
		return nil, nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	placeholders := placeholderList(len(symbolIDs))
	query := `SELECT DISTINCT file_id FROM refs WHERE symbol_id IN (` + placeholders + `)`
	rows, err := s.db.Query(query, symbolIDsToArgs(symbolIDs)...)
	if err != nil {
		return nil, fmt.Errorf("files referencing symbols: %w", err)
	}
	defer rows.Close()
	var fileIDs []FileID
	for rows.Next() {
		var id FileID
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan file id: %w", err)
		}
		fileIDs = append(fileIDs, id)
	}
	return fileIDs, rows.Err()
}

// FilesImportingSource returns file IDs that import the given module/package
// source, exact match or path-suffix match.
func (s *Store) FilesImportingSource(source string) ([]FileID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rows, err := s.db.Query("SELECT DISTINCT file_id FROM imports WHERE source = ? OR source LIKE ?", source, "%/"+source)
	if err != nil {
		return nil, fmt.Errorf("files importing source: %w", err)
	}
	defer rows.Close()
	var fileIDs []FileID
	for rows.Next() {
		var id FileID
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan file id: %w", err)
		}
		fileIDs = append(fileIDs, id)
	}
	return fileIDs, rows.Err()
}

// UnresolveReferencesTo reverts every ref resolved to one of the given
// symbols back to unresolved (symbol_id cleared, reference_name restored
// from the symbol's own name), so Phase 4 can re-resolve them against
// whatever replaced those symbols. Called before deleting a changed
// symbol's old row.
func (s *Store) UnresolveReferencesTo(symbolIDs []SymbolID) error {
	if len(symbolIDs) == 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("unresolve references: begin: %w", err)
	}
	defer tx.Rollback()

	placeholders := placeholderList(len(symbolIDs))
	args := symbolIDsToArgs(symbolIDs)

	_, err = tx.Exec(
		`UPDATE refs SET reference_name = (SELECT name FROM symbols WHERE symbols.id = refs.symbol_id), symbol_id = NULL
		 WHERE symbol_id IN (`+placeholders+`)`,
		args...,
	)
	if err != nil {
		return fmt.Errorf("unresolve references: %w", err)
	}
	return tx.Commit()
}

// DeleteCallEdgesForSymbols removes call_edges rows where either endpoint
// is one of the given symbols, ahead of re-materializing the call graph.
func (s *Store) DeleteCallEdgesForSymbols(symbolIDs []SymbolID) error {
	if len(symbolIDs) == 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	placeholders := placeholderList(len(symbolIDs))
	args := symbolIDsToArgs(symbolIDs)
	_, err := s.db.Exec(
		"DELETE FROM call_edges WHERE caller_symbol_id IN ("+placeholders+") OR callee_symbol_id IN ("+placeholders+")",
		repeatArgs(args, 2)...,
	)
	if err != nil {
		return fmt.Errorf("delete call edges for symbols: %w", err)
	}
	return nil
}
