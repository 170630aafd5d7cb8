package store

import "sync"

// BatchedStore buffers extraction inserts in memory using fake (negative)
// IDs. It implements DataStore so extraction results can be written to it
// without knowing whether they're hitting SQLite or an in-memory buffer —
// each parallel extraction worker fills one BatchedStore per file before
// that file has a FileID; the serial commit stage then upserts the file,
// stamps the real FileID on every buffered row, and hands the buffer to
// CommitBatch.
//
// Thread safety: the mutex protects fake ID allocation and slice appends.
// Read queries (SymbolsByName, SymbolsByFile) are passed through to the
// underlying Store, which is safe for concurrent reads.
type BatchedStore struct {
	store *Store // for read passthrough
	mu    sync.Mutex

	Symbols    []Symbol
	References []Reference
	Imports    []Import

	nextFakeID int64 // starts at -1, decrements
}

// Compile-time check: *BatchedStore satisfies DataStore.
var _ DataStore = (*BatchedStore)(nil)

// NewBatchedStore creates a BatchedStore backed by the given Store for read queries.
func NewBatchedStore(s *Store) *BatchedStore {
	return &BatchedStore{
		store:      s,
		nextFakeID: -1,
	}
}

func (b *BatchedStore) allocFakeID() int64 {
	id := b.nextFakeID
	b.nextFakeID--
	return id
}

func (b *BatchedStore) InsertSymbol(sym *Symbol) (SymbolID, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	fakeID := SymbolID(b.allocFakeID())
	sym.ID = fakeID
	b.Symbols = append(b.Symbols, *sym)
	return fakeID, nil
}

func (b *BatchedStore) InsertReference(ref *Reference) (ReferenceID, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	fakeID := ReferenceID(b.allocFakeID())
	ref.ID = fakeID
	b.References = append(b.References, *ref)
	return fakeID, nil
}

func (b *BatchedStore) InsertImport(imp *Import) (int64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	fakeID := b.allocFakeID()
	imp.ID = fakeID
	b.Imports = append(b.Imports, *imp)
	return fakeID, nil
}

// SymbolsByName passes through to the underlying Store for cross-file lookups.
func (b *BatchedStore) SymbolsByName(name string) ([]*Symbol, error) {
	return b.store.SymbolsByName(name)
}

// SymbolsByFile returns symbols for a file, merging any buffered (not yet
// committed) symbols with those already in the database.
func (b *BatchedStore) SymbolsByFile(fileID FileID) ([]*Symbol, error) {
	dbSyms, err := b.store.SymbolsByFile(fileID)
	if err != nil {
		return nil, err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	for i := range b.Symbols {
		if b.Symbols[i].FileID == fileID {
			dbSyms = append(dbSyms, &b.Symbols[i])
		}
	}
	return dbSyms, nil
}
