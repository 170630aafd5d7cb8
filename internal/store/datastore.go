package store

// DataStore is the interface for extraction-phase data access. Both *Store
// (direct SQLite) and *BatchedStore (in-memory buffering for parallel
// extraction) implement it, so code writing extraction results doesn't
// need to know which one it's writing into.
type DataStore interface {
	InsertSymbol(sym *Symbol) (SymbolID, error)
	InsertReference(ref *Reference) (ReferenceID, error)
	InsertImport(imp *Import) (int64, error)

	// Queries needed for cross-file/same-file lookups during extraction.
	SymbolsByName(name string) ([]*Symbol, error)
	SymbolsByFile(fileID FileID) ([]*Symbol, error)
}

// Compile-time checks: both stores satisfy DataStore.
var (
	_ DataStore = (*Store)(nil)
	_ DataStore = (*BatchedStore)(nil)
)
