package store

import (
	"database/sql"
	"fmt"
	"strings"
)

// UpsertFile performs the atomic per-file index: in one transaction, (1)
// upsert the file row, (2) if it existed, delete its refs, imports and
// symbols (each by file_id), (3) insert each symbol in input order,
// capturing the generated id. Returns (file_id, symbol_ids) with symbol_ids
// parallel to the input slice, so callers can wire references and
// containing-symbol links without a round-trip query.
func (s *Store) UpsertFile(f *File, symbols []*Symbol) (FileID, []SymbolID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return 0, nil, fmt.Errorf("upsert file: begin: %w", err)
	}
	defer tx.Rollback()

	var existingID sql.NullInt64
	err = tx.QueryRow("SELECT id FROM files WHERE path = ?", f.Path).Scan(&existingID)
	if err != nil && err != sql.ErrNoRows {
		return 0, nil, fmt.Errorf("upsert file: lookup: %w", err)
	}

	var fileID FileID
	if existingID.Valid {
		fileID = FileID(existingID.Int64)
		if _, err := tx.Exec(
			`UPDATE files SET language=?, mtime_ns=?, size=?, hash=?, last_indexed=? WHERE id=?`,
			f.Language, f.MTimeNS, f.Size, f.Hash, f.LastIndexed, fileID,
		); err != nil {
			return 0, nil, fmt.Errorf("upsert file: update: %w", err)
		}
		if _, err := tx.Exec("DELETE FROM refs WHERE file_id = ?", fileID); err != nil {
			return 0, nil, fmt.Errorf("upsert file: delete refs: %w", err)
		}
		if _, err := tx.Exec("DELETE FROM imports WHERE file_id = ?", fileID); err != nil {
			return 0, nil, fmt.Errorf("upsert file: delete imports: %w", err)
		}
		if _, err := tx.Exec("DELETE FROM symbols WHERE file_id = ?", fileID); err != nil {
			return 0, nil, fmt.Errorf("upsert file: delete symbols: %w", err)
		}
	} else {
		res, err := tx.Exec(
			`INSERT INTO files (path, language, mtime_ns, size, hash, last_indexed) VALUES (?, ?, ?, ?, ?, ?)`,
			f.Path, f.Language, f.MTimeNS, f.Size, f.Hash, f.LastIndexed,
		)
		if err != nil {
			return 0, nil, fmt.Errorf("upsert file: insert: %w", err)
		}
		id, err := res.LastInsertId()
		if err != nil {
			return 0, nil, fmt.Errorf("upsert file: last insert id: %w", err)
		}
		fileID = FileID(id)
	}
	f.ID = fileID

	symbolIDs := make([]SymbolID, len(symbols))
	localFake := make(map[SymbolID]SymbolID) // extractor-local parent refs resolved within this file
	for i, sym := range symbols {
		sym.FileID = fileID
		if sym.ParentSymbolID != nil {
			if real, ok := localFake[*sym.ParentSymbolID]; ok {
				sym.ParentSymbolID = &real
			}
		}
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
			return 0, nil, fmt.Errorf("upsert file: insert symbol %q: %w", sym.Name, err)
		}
		id, err := res.LastInsertId()
		if err != nil {
			return 0, nil, fmt.Errorf("upsert file: last insert id: %w", err)
		}
		sym.ID = SymbolID(id)
		symbolIDs[i] = sym.ID
		if sym.ID != 0 {
			localFake[SymbolID(-(int64(i) + 1))] = sym.ID
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, nil, fmt.Errorf("upsert file: commit: %w", err)
	}
	return fileID, symbolIDs, nil
}

// --- File queries ---

const fileCols = `id, path, language, mtime_ns, size, hash, last_indexed`

func scanFile(scanner interface{ Scan(...any) error }) (*File, error) {
	f := &File{}
	if err := scanner.Scan(&f.ID, &f.Path, &f.Language, &f.MTimeNS, &f.Size, &f.Hash, &f.LastIndexed); err != nil {
		return nil, err
	}
	lang, err := ParseLanguage(f.Language)
	if err != nil {
		return nil, fmt.Errorf("scan file %q: %w", f.Path, err)
	}
	f.Language = lang
	return f, nil
}

func (s *Store) FileByPath(path string) (*File, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	f, err := scanFile(s.db.QueryRow("SELECT "+fileCols+" FROM files WHERE path = ?", path))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("file by path: %w", err)
	}
	return f, nil
}

func (s *Store) FileByID(id FileID) (*File, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	f, err := scanFile(s.db.QueryRow("SELECT "+fileCols+" FROM files WHERE id = ?", id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("file by id: %w", err)
	}
	return f, nil
}

func (s *Store) AllFiles() ([]*File, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rows, err := s.db.Query("SELECT " + fileCols + " FROM files")
	if err != nil {
		return nil, fmt.Errorf("all files: %w", err)
	}
	defer rows.Close()
	var files []*File
	for rows.Next() {
		f, err := scanFile(rows)
		if err != nil {
			return nil, fmt.Errorf("all files: scan: %w", err)
		}
		files = append(files, f)
	}
	return files, rows.Err()
}

func (s *Store) FilesByLanguage(language string) ([]*File, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rows, err := s.db.Query("SELECT "+fileCols+" FROM files WHERE language = ?", language)
	if err != nil {
		return nil, fmt.Errorf("files by language: %w", err)
	}
	defer rows.Close()
	var files []*File
	for rows.Next() {
		f, err := scanFile(rows)
		if err != nil {
			return nil, fmt.Errorf("files by language: scan: %w", err)
		}
		files = append(files, f)
	}
	return files, rows.Err()
}

func (s *Store) DistinctLanguages() ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rows, err := s.db.Query("SELECT DISTINCT language FROM files")
	if err != nil {
		return nil, fmt.Errorf("distinct languages: %w", err)
	}
	defer rows.Close()
	var langs []string
	for rows.Next() {
		var lang string
		if err := rows.Scan(&lang); err != nil {
			return nil, fmt.Errorf("distinct languages: scan: %w", err)
		}
		langs = append(langs, lang)
	}
	return langs, rows.Err()
}

func (s *Store) DeleteFile(id FileID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.Exec("DELETE FROM files WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("delete file: %w", err)
	}
	return nil
}

// --- Symbol queries ---

const SymbolCols = `id, file_id, name, module_path, qualified_name, kind,
	start_line, start_col, end_line, end_col, signature, visibility,
	parent_symbol_id, is_test, signature_hash, signature_details`

func scanSymbol(scanner interface{ Scan(...any) error }) (*Symbol, error) {
	sym := &Symbol{}
	var signatureDetails sql.NullString
	err := scanner.Scan(
		&sym.ID, &sym.FileID, &sym.Name, &sym.ModulePath, &sym.QualifiedName, &sym.Kind,
		&sym.StartLine, &sym.StartCol, &sym.EndLine, &sym.EndCol, &sym.Signature, &sym.Visibility,
		&sym.ParentSymbolID, &sym.IsTest, &sym.SignatureHash, &signatureDetails,
	)
	if err != nil {
		return nil, err
	}
	sym.SignatureDetails = unmarshalSignatureDetails(signatureDetails.String)
	kind, err := ParseSymbolKind(sym.Kind)
	if err != nil {
		return nil, fmt.Errorf("scan symbol %q: %w", sym.Name, err)
	}
	sym.Kind = kind
	if sym.Visibility != "" {
		vis, err := ParseVisibility(sym.Visibility)
		if err != nil {
			return nil, fmt.Errorf("scan symbol %q: %w", sym.Name, err)
		}
		sym.Visibility = vis
	}
	return sym, nil
}

func (s *Store) querySymbols(query string, args ...any) ([]*Symbol, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var symbols []*Symbol
	for rows.Next() {
		sym, err := scanSymbol(rows)
		if err != nil {
			return nil, fmt.Errorf("scan symbol: %w", err)
		}
		symbols = append(symbols, sym)
	}
	return symbols, rows.Err()
}

func (s *Store) SymbolByID(id SymbolID) (*Symbol, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sym, err := scanSymbol(s.db.QueryRow("SELECT "+SymbolCols+" FROM symbols WHERE id = ?", id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("symbol by id: %w", err)
	}
	return sym, nil
}

func (s *Store) SymbolByQualifiedName(qualifiedName string) (*Symbol, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sym, err := scanSymbol(s.db.QueryRow("SELECT "+SymbolCols+" FROM symbols WHERE qualified_name = ? LIMIT 1", qualifiedName))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("symbol by qualified name: %w", err)
	}
	return sym, nil
}

func (s *Store) SymbolsByFile(fileID FileID) ([]*Symbol, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.querySymbols("SELECT "+SymbolCols+" FROM symbols WHERE file_id = ?", fileID)
}

func (s *Store) SymbolsByName(name string) ([]*Symbol, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.querySymbols("SELECT "+SymbolCols+" FROM symbols WHERE name = ?", name)
}

func (s *Store) SymbolsByKind(kind string) ([]*Symbol, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.querySymbols("SELECT "+SymbolCols+" FROM symbols WHERE kind = ?", kind)
}

// SymbolsByNameInFile finds a file's symbols by simple name, used by
// Phase 4 to look a name up inside an import's target file.
func (s *Store) SymbolsByNameInFile(fileID FileID, name string) ([]*Symbol, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.querySymbols("SELECT "+SymbolCols+" FROM symbols WHERE file_id = ? AND name = ?", fileID, name)
}

// SymbolsByQualifiedNameInFile finds symbols by qualified name within a file,
// used for Phase 4's qualified-path cross-file resolution.
func (s *Store) SymbolsByQualifiedNameInFile(fileID FileID, qualifiedName string) ([]*Symbol, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.querySymbols("SELECT "+SymbolCols+" FROM symbols WHERE file_id = ? AND qualified_name = ?", fileID, qualifiedName)
}

// SearchSymbols finds symbols whose name contains query (case-insensitive,
// SQL LIKE semantics), exact-name matches first, then shortest names first,
// capped at limit. A limit <= 0 defaults to 50.
func (s *Store) SearchSymbols(query string, limit int) ([]*Symbol, error) {
	if limit <= 0 {
		limit = 50
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.querySymbols(
		`SELECT `+SymbolCols+` FROM symbols
		 WHERE name LIKE ? ESCAPE '\'
		 ORDER BY (name != ?), LENGTH(name), name
		 LIMIT ?`,
		"%"+likeEscape(query)+"%", query, limit,
	)
}

// likeEscape escapes SQL LIKE metacharacters in a user-supplied search term.
func likeEscape(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}

// SymbolAtPosition returns the narrowest symbol whose span contains (line, col).
func (s *Store) SymbolAtPosition(fileID FileID, line, col int) (*Symbol, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sym, err := scanSymbol(s.db.QueryRow(
		`SELECT `+SymbolCols+` FROM symbols
		 WHERE file_id = ?
		   AND (start_line < ? OR (start_line = ? AND start_col <= ?))
		   AND (end_line > ? OR (end_line = ? AND end_col >= ?))
		 ORDER BY (end_line - start_line) ASC, (end_col - start_col) ASC
		 LIMIT 1`,
		fileID, line, line, col, line, line, col,
	))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("symbol at position: %w", err)
	}
	return sym, nil
}

// --- Reference queries ---

const refCols = `id, file_id, symbol_id, reference_name, kind, start_line, start_col, end_line, end_col, in_symbol_id`

func insertReferenceTx(tx *sql.Tx, ref *Reference) (ReferenceID, error) {
	res, err := tx.Exec(
		`INSERT INTO refs (file_id, symbol_id, reference_name, kind, start_line, start_col, end_line, end_col, in_symbol_id)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		ref.FileID, ref.SymbolID, ref.ReferenceName, ref.Kind,
		ref.StartLine, ref.StartCol, ref.EndLine, ref.EndCol, ref.InSymbolID,
	)
	if err != nil {
		return 0, fmt.Errorf("insert reference: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("insert reference: last insert id: %w", err)
	}
	ref.ID = ReferenceID(id)
	return ref.ID, nil
}

func scanReference(scanner interface{ Scan(...any) error }) (*Reference, error) {
	r := &Reference{}
	if err := scanner.Scan(&r.ID, &r.FileID, &r.SymbolID, &r.ReferenceName, &r.Kind,
		&r.StartLine, &r.StartCol, &r.EndLine, &r.EndCol, &r.InSymbolID); err != nil {
		return nil, err
	}
	kind, err := ParseReferenceKind(r.Kind)
	if err != nil {
		return nil, fmt.Errorf("scan reference %d: %w", r.ID, err)
	}
	r.Kind = kind
	return r, nil
}

func (s *Store) queryReferences(query string, args ...any) ([]*Reference, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var refs []*Reference
	for rows.Next() {
		r, err := scanReference(rows)
		if err != nil {
			return nil, fmt.Errorf("scan reference: %w", err)
		}
		refs = append(refs, r)
	}
	return refs, rows.Err()
}

func (s *Store) ReferencesByFile(fileID FileID) ([]*Reference, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.queryReferences("SELECT "+refCols+" FROM refs WHERE file_id = ?", fileID)
}

func (s *Store) ReferencesToSymbol(symbolID SymbolID) ([]*Reference, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.queryReferences("SELECT "+refCols+" FROM refs WHERE symbol_id = ?", symbolID)
}

func (s *Store) UnresolvedReferences() ([]*Reference, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.queryReferences("SELECT " + refCols + " FROM refs WHERE symbol_id IS NULL AND reference_name IS NOT NULL")
}

func (s *Store) UnresolvedReferencesByFile(fileID FileID) ([]*Reference, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.queryReferences("SELECT "+refCols+" FROM refs WHERE file_id = ? AND symbol_id IS NULL AND reference_name IS NOT NULL", fileID)
}

// ResolveReference sets symbol_id and clears reference_name. Idempotent.
func (s *Store) ResolveReference(tx *sql.Tx, refID ReferenceID, symbolID SymbolID) error {
	_, err := tx.Exec("UPDATE refs SET symbol_id = ?, reference_name = NULL WHERE id = ?", symbolID, refID)
	if err != nil {
		return fmt.Errorf("resolve reference: %w", err)
	}
	return nil
}

// ResolveReferenceByID is ResolveReference for callers that don't already
// hold an open transaction, e.g. Phase 4's one-ref-at-a-time cross-file walk.
func (s *Store) ResolveReferenceByID(refID ReferenceID, symbolID SymbolID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("resolve reference: begin: %w", err)
	}
	defer tx.Rollback()
	if err := s.ResolveReference(tx, refID, symbolID); err != nil {
		return err
	}
	return tx.Commit()
}

// PanicPoints returns refs named "unwrap" or "expect" (Rust-specific domain
// query), optionally filtered by file. The result is one flat list; it is
// not split by whether the owning file looks like a test file.
func (s *Store) PanicPoints(fileID *FileID) ([]*Reference, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if fileID != nil {
		return s.queryReferences(
			"SELECT "+refCols+" FROM refs WHERE file_id = ? AND reference_name IN ('unwrap', 'expect')", *fileID)
	}
	return s.queryReferences("SELECT " + refCols + " FROM refs WHERE reference_name IN ('unwrap', 'expect')")
}

// --- Import queries ---

func insertImportTx(tx *sql.Tx, imp *Import) (int64, error) {
	res, err := tx.Exec(
		`INSERT INTO imports (file_id, imported_name, source, alias, line) VALUES (?, ?, ?, ?, ?)`,
		imp.FileID, imp.ImportedName, imp.Source, imp.Alias, imp.Line,
	)
	if err != nil {
		return 0, fmt.Errorf("insert import: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("insert import: last insert id: %w", err)
	}
	imp.ID = id
	return id, nil
}

const importCols = `id, file_id, imported_name, source, alias, line`

func scanImport(scanner interface{ Scan(...any) error }) (*Import, error) {
	imp := &Import{}
	if err := scanner.Scan(&imp.ID, &imp.FileID, &imp.ImportedName, &imp.Source, &imp.Alias, &imp.Line); err != nil {
		return nil, err
	}
	return imp, nil
}

func (s *Store) ImportsByFile(fileID FileID) ([]*Import, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rows, err := s.db.Query("SELECT "+importCols+" FROM imports WHERE file_id = ?", fileID)
	if err != nil {
		return nil, fmt.Errorf("imports by file: %w", err)
	}
	defer rows.Close()
	var imports []*Import
	for rows.Next() {
		imp, err := scanImport(rows)
		if err != nil {
			return nil, fmt.Errorf("imports by file: scan: %w", err)
		}
		imports = append(imports, imp)
	}
	return imports, rows.Err()
}

// ImportsBySource returns every import row across all files matching source
// exactly or as a path suffix (e.g. "util" matches "github.com/example/util").
func (s *Store) ImportsBySource(source string) ([]*Import, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rows, err := s.db.Query("SELECT "+importCols+" FROM imports WHERE source = ? OR source LIKE ?", source, "%/"+source)
	if err != nil {
		return nil, fmt.Errorf("imports by source: %w", err)
	}
	defer rows.Close()
	var imports []*Import
	for rows.Next() {
		imp, err := scanImport(rows)
		if err != nil {
			return nil, fmt.Errorf("imports by source: scan: %w", err)
		}
		imports = append(imports, imp)
	}
	return imports, rows.Err()
}

// --- DataStore direct-write methods ---
// These satisfy the DataStore interface for callers writing straight to
// SQLite; the indexing pipeline writes through BatchedStore instead and
// lands everything via CommitBatch.

// InsertSymbol inserts a single symbol outside of UpsertFile's batch
// transaction. The indexing pipeline does not call it; tests use it to
// build store fixtures directly.
func (s *Store) InsertSymbol(sym *Symbol) (SymbolID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	res, err := s.db.Exec(
		`INSERT INTO symbols (file_id, name, module_path, qualified_name, kind,
			start_line, start_col, end_line, end_col, signature, visibility,
			parent_symbol_id, is_test, signature_hash, signature_details)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		sym.FileID, sym.Name, sym.ModulePath, sym.QualifiedName, sym.Kind,
		sym.StartLine, sym.StartCol, sym.EndLine, sym.EndCol, sym.Signature, sym.Visibility,
		sym.ParentSymbolID, sym.IsTest, sym.SignatureHash, marshalSignatureDetails(sym.SignatureDetails),
	)
	if err != nil {
		return 0, fmt.Errorf("insert symbol: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("insert symbol: last insert id: %w", err)
	}
	sym.ID = SymbolID(id)
	return sym.ID, nil
}

// InsertReference inserts a single reference in its own transaction. The
// indexing pipeline does not call it (Phase 4 updates existing refs via
// ResolveReferenceByID); tests use it to build store fixtures directly.
func (s *Store) InsertReference(ref *Reference) (ReferenceID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	tx, err := s.db.Begin()
	if err != nil {
		return 0, fmt.Errorf("insert reference: begin: %w", err)
	}
	defer tx.Rollback()
	id, err := insertReferenceTx(tx, ref)
	if err != nil {
		return 0, fmt.Errorf("insert reference: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("insert reference: commit: %w", err)
	}
	return id, nil
}

// InsertImport inserts a single import outside of UpsertFile's batch
// transaction.
func (s *Store) InsertImport(imp *Import) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	tx, err := s.db.Begin()
	if err != nil {
		return 0, fmt.Errorf("insert import: begin: %w", err)
	}
	defer tx.Rollback()
	id, err := insertImportTx(tx, imp)
	if err != nil {
		return 0, fmt.Errorf("insert import: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("insert import: commit: %w", err)
	}
	return id, nil
}
