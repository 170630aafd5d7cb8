package store

import (
	"database/sql"
	"fmt"
)

// CommitBatch inserts all buffered data from a BatchedStore into SQLite
// within a single transaction. Fake (negative) IDs are remapped to real
// (positive, SQLite-assigned rowid) IDs, and all FK references within the batch
// are rewritten using the fakeToReal mapping.
//
// Insert order respects FK dependencies:
//  1. Symbols (depend on file_id, already real, and parent_symbol_id,
//     which may be fake for a same-file parent)
//  2. References (depend on file_id, already real, and symbol_id/
//     in_symbol_id, which may be fake for a same-file target/container)
//  3. Imports (depend on file_id only, already real)
//
// file_deps and call_edges are not part of this batch: they're derived
// from refs/imports after cross-file resolution (Phase 4/5), not known at
// per-file extraction time.
func (s *Store) CommitBatch(batch *BatchedStore) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("commit batch: begin: %w", err)
	}
	defer tx.Rollback()

	fakeToReal := make(map[SymbolID]SymbolID)

	for _, sym := range batch.Symbols {
		if sym.ParentSymbolID != nil && *sym.ParentSymbolID < 0 {
			if real, ok := fakeToReal[*sym.ParentSymbolID]; ok {
				sym.ParentSymbolID = &real
			}
		}
		realID, err := insertSymbolTx(tx, &sym)
		if err != nil {
			return fmt.Errorf("commit batch: symbol %q: %w", sym.Name, err)
		}
		fakeToReal[sym.ID] = realID
	}

	for _, ref := range batch.References {
		if ref.SymbolID != nil && *ref.SymbolID < 0 {
			if real, ok := fakeToReal[*ref.SymbolID]; ok {
				ref.SymbolID = &real
			}
		}
		if ref.InSymbolID != nil && *ref.InSymbolID < 0 {
			if real, ok := fakeToReal[*ref.InSymbolID]; ok {
				ref.InSymbolID = &real
			}
		}
		if _, err := insertReferenceTx(tx, &ref); err != nil {
			return fmt.Errorf("commit batch: reference in file %d: %w", ref.FileID, err)
		}
	}

	for _, imp := range batch.Imports {
		if _, err := insertImportTx(tx, &imp); err != nil {
			return fmt.Errorf("commit batch: import %q: %w", imp.Source, err)
		}
	}

	return tx.Commit()
}

// insertSymbolTx mirrors Store.InsertSymbol but runs inside an
// already-open transaction.
func insertSymbolTx(tx *sql.Tx, sym *Symbol) (SymbolID, error) {
	res, err := tx.Exec(
		`INSERT INTO symbols (file_id, name, module_path, qualified_name, kind,
			start_line, start_col, end_line, end_col, signature, visibility,
			parent_symbol_id, is_test, signature_hash, signature_details)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		sym.FileID, sym.Name, sym.ModulePath, sym.QualifiedName, sym.Kind,
		sym.StartLine, sym.StartCol, sym.EndLine, sym.EndCol, sym.Signature, sym.Visibility,
		sym.ParentSymbolID, sym.IsTest, sym.SignatureHash, marshalSignatureDetails(sym.SignatureDetails),
	)
	if err != nil {
		return 0, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	return SymbolID(id), nil
}
