package tethys

import (
	"fmt"

	"github.com/tethysdb/tethys/internal/store"
)

// QueryBuilder provides a read-only query API over the Store, independent
// of the Engine's indexing lifecycle.
type QueryBuilder struct {
	store *store.Store
}

// NewQueryBuilder creates a QueryBuilder from a Store. Used by the CLI for
// query commands that don't need a full Engine.
func NewQueryBuilder(s *store.Store) *QueryBuilder {
	return &QueryBuilder{store: s}
}

// Location is a source code position range. Lines and columns are 1-based,
// matching the storage layer's convention (see internal/extract.Span).
type Location struct {
	File      string
	StartLine int
	StartCol  int
	EndLine   int
	EndCol    int
}

// SymbolAt returns the narrowest symbol whose span contains the given file
// position. Returns nil with no error if no symbol exists there.
func (q *QueryBuilder) SymbolAt(file string, line, col int) (*Symbol, error) {
	f, err := q.store.FileByPath(file)
	if err != nil {
		return nil, fmt.Errorf("symbol at: lookup file: %w", err)
	}
	if f == nil {
		return nil, nil
	}
	sym, err := q.store.SymbolAtPosition(f.ID, line, col)
	if err != nil {
		return nil, fmt.Errorf("symbol at: %w", err)
	}
	return sym, nil
}

// DefinitionAt finds the definition(s) of the symbol referenced at the
// given position: it looks up refs whose span covers (line, col), and
// returns the location of each one's resolved target symbol. A reference
// that hasn't resolved (or never will — an external dependency) is skipped.
func (q *QueryBuilder) DefinitionAt(file string, line, col int) ([]Location, error) {
	f, err := q.store.FileByPath(file)
	if err != nil {
		return nil, fmt.Errorf("definition at: lookup file: %w", err)
	}
	if f == nil {
		return nil, nil
	}

	rows, err := q.store.DB().Query(
		`SELECT symbol_id FROM refs
		 WHERE file_id = ? AND symbol_id IS NOT NULL
		   AND (start_line < ? OR (start_line = ? AND start_col <= ?))
		   AND (end_line > ? OR (end_line = ? AND end_col >= ?))`,
		f.ID, line, line, col, line, line, col,
	)
	if err != nil {
		return nil, fmt.Errorf("definition at: query refs: %w", err)
	}
	defer rows.Close()

	var symbolIDs []store.SymbolID
	for rows.Next() {
		var id store.SymbolID
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("definition at: scan: %w", err)
		}
		symbolIDs = append(symbolIDs, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("definition at: rows: %w", err)
	}

	var locations []Location
	for _, id := range symbolIDs {
		loc, err := q.symbolLocation(id)
		if err != nil {
			return nil, fmt.Errorf("definition at: symbol location: %w", err)
		}
		if loc != nil {
			locations = append(locations, *loc)
		}
	}
	return locations, nil
}

// ReferencesTo finds every source location that references the given symbol.
func (q *QueryBuilder) ReferencesTo(symbolID SymbolID) ([]Location, error) {
	refs, err := q.store.ReferencesToSymbol(symbolID)
	if err != nil {
		return nil, fmt.Errorf("references to: %w", err)
	}

	var locations []Location
	for _, ref := range refs {
		loc, err := q.fileLocation(ref.FileID, ref.StartLine, ref.StartCol, ref.EndLine, ref.EndCol)
		if err != nil {
			return nil, fmt.Errorf("references to: file location: %w", err)
		}
		if loc != nil {
			locations = append(locations, *loc)
		}
	}
	return locations, nil
}

// Callers returns call graph edges where the given symbol is the callee.
func (q *QueryBuilder) Callers(symbolID SymbolID) ([]*CallEdge, error) {
	return q.store.CallersByCallee(symbolID)
}

// Callees returns call graph edges where the given symbol is the caller.
func (q *QueryBuilder) Callees(symbolID SymbolID) ([]*CallEdge, error) {
	return q.store.CalleesByCaller(symbolID)
}

// Dependencies returns every import in the given file.
func (q *QueryBuilder) Dependencies(fileID FileID) ([]*Import, error) {
	return q.store.ImportsByFile(fileID)
}

// Dependents returns every import, across all files, naming the given
// module/namespace source (exact match or path-suffix match).
func (q *QueryBuilder) Dependents(source string) ([]*Import, error) {
	return q.store.ImportsBySource(source)
}

// SearchSymbols finds symbols by fuzzy name match, exact matches first and
// shortest names first among the rest, capped at limit.
func (q *QueryBuilder) SearchSymbols(query string, limit int) ([]*Symbol, error) {
	syms, err := q.store.SearchSymbols(query, limit)
	if err != nil {
		return nil, fmt.Errorf("search symbols: %w", err)
	}
	return syms, nil
}

// symbolLocation resolves a symbol ID to its file path and span.
func (q *QueryBuilder) symbolLocation(symbolID store.SymbolID) (*Location, error) {
	sym, err := q.store.SymbolByID(symbolID)
	if err != nil {
		return nil, err
	}
	if sym == nil {
		return nil, nil
	}
	return q.fileLocation(sym.FileID, sym.StartLine, sym.StartCol, sym.EndLine, sym.EndCol)
}

func (q *QueryBuilder) fileLocation(fileID FileID, startLine, startCol, endLine, endCol int) (*Location, error) {
	f, err := q.store.FileByID(fileID)
	if err != nil {
		return nil, err
	}
	if f == nil {
		return nil, nil
	}
	return &Location{
		File:      f.Path,
		StartLine: startLine,
		StartCol:  startCol,
		EndLine:   endLine,
		EndCol:    endCol,
	}, nil
}
