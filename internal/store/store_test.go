package store

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	s, err := NewStore(dbPath)
	require.NoError(t, err)
	require.NoError(t, s.Migrate())
	t.Cleanup(func() { s.Close() })
	return s
}

func ptr[T any](v T) *T { return &v }

// insertTestFile upserts a file with no symbols and returns it with ID set.
func insertTestFile(t *testing.T, s *Store, path, lang string) *File {
	t.Helper()
	f := &File{Path: path, Language: lang, Hash: "abc123", LastIndexed: time.Now().Truncate(time.Second)}
	_, _, err := s.UpsertFile(f, nil)
	require.NoError(t, err)
	require.Positive(t, f.ID)
	return f
}

// insertTestSymbol inserts a single symbol into an existing file via
// UpsertFile, which replaces the file's whole symbol set — callers needing
// several symbols on one file should build the slice and upsert once.
func insertTestSymbol(t *testing.T, s *Store, fileID FileID, name, kind string) *Symbol {
	t.Helper()
	f, err := s.FileByID(fileID)
	require.NoError(t, err)
	require.NotNil(t, f)

	existing, err := s.SymbolsByFile(fileID)
	require.NoError(t, err)

	syms := make([]*Symbol, 0, len(existing)+1)
	for _, e := range existing {
		syms = append(syms, e)
	}
	sym := &Symbol{
		Name: name, Kind: kind, Visibility: "public",
		StartLine: 0, StartCol: 0, EndLine: 9, EndCol: 0,
	}
	syms = append(syms, sym)

	_, _, err = s.UpsertFile(f, syms)
	require.NoError(t, err)
	require.Positive(t, sym.ID)
	return sym
}

// =============================================================================
// Schema & Lifecycle
// =============================================================================

func TestMigrate_AllTablesExist(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)

	expectedTables := []string{"files", "symbols", "refs", "imports", "file_deps", "call_edges"}

	for _, table := range expectedTables {
		var name string
		err := s.db.QueryRow(
			"SELECT name FROM sqlite_master WHERE type='table' AND name=?", table,
		).Scan(&name)
		require.NoError(t, err, "table %s should exist", table)
		assert.Equal(t, table, name)
	}
}

func TestMigrate_Idempotent(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	require.NoError(t, s.Migrate())
}

func TestReset_ClearsAllData(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	insertTestFile(t, s, "/a.rs", "rust")

	require.NoError(t, s.Reset())

	files, err := s.AllFiles()
	require.NoError(t, err)
	assert.Empty(t, files)
}

// =============================================================================
// UpsertFile
// =============================================================================

func TestUpsertFile_InsertsNewFileAndSymbols(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)

	f := &File{Path: "/src/lib.rs", Language: "rust", Hash: "h1"}
	syms := []*Symbol{
		{Name: "foo", Kind: "function", Visibility: "public", StartLine: 1, EndLine: 3},
		{Name: "Bar", Kind: "struct", Visibility: "public", StartLine: 5, EndLine: 10},
	}

	fileID, symbolIDs, err := s.UpsertFile(f, syms)
	require.NoError(t, err)
	assert.Positive(t, fileID)
	require.Len(t, symbolIDs, 2)
	assert.NotEqual(t, symbolIDs[0], symbolIDs[1])

	stored, err := s.SymbolsByFile(fileID)
	require.NoError(t, err)
	assert.Len(t, stored, 2)
}

func TestUpsertFile_ReplacesSymbolsOnReindex(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)

	f := &File{Path: "/src/lib.rs", Language: "rust", Hash: "h1"}
	_, _, err := s.UpsertFile(f, []*Symbol{
		{Name: "old_fn", Kind: "function", Visibility: "public"},
	})
	require.NoError(t, err)

	f2 := &File{Path: "/src/lib.rs", Language: "rust", Hash: "h2"}
	fileID, _, err := s.UpsertFile(f2, []*Symbol{
		{Name: "new_fn", Kind: "function", Visibility: "public"},
	})
	require.NoError(t, err)
	assert.Equal(t, f.ID, fileID, "path is unique; re-indexing the same path reuses the file id")

	stored, err := s.SymbolsByFile(fileID)
	require.NoError(t, err)
	require.Len(t, stored, 1)
	assert.Equal(t, "new_fn", stored[0].Name)
}

func TestUpsertFile_ResolvesIntraFileParentLinks(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)

	f := &File{Path: "/src/lib.rs", Language: "rust", Hash: "h1"}
	parent := &Symbol{Name: "Widget", Kind: "struct", Visibility: "public"}
	child := &Symbol{Name: "new", Kind: "method", Visibility: "public", ParentSymbolID: ptr(SymbolID(-1))}

	_, symbolIDs, err := s.UpsertFile(f, []*Symbol{parent, child})
	require.NoError(t, err)

	stored, err := s.SymbolByID(symbolIDs[1])
	require.NoError(t, err)
	require.NotNil(t, stored.ParentSymbolID)
	assert.Equal(t, symbolIDs[0], *stored.ParentSymbolID)
}

// =============================================================================
// Symbol queries
// =============================================================================

func TestSymbolsByKind(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	f := insertTestFile(t, s, "/a.rs", "rust")
	insertTestSymbol(t, s, f.ID, "foo", "function")
	insertTestSymbol(t, s, f.ID, "Bar", "struct")

	funcs, err := s.SymbolsByKind("function")
	require.NoError(t, err)
	require.Len(t, funcs, 1)
	assert.Equal(t, "foo", funcs[0].Name)
}

func TestSymbolAtPosition_NarrowestSpanWins(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	f := &File{Path: "/a.rs", Language: "rust"}
	outer := &Symbol{Name: "outer_fn", Kind: "function", StartLine: 1, StartCol: 0, EndLine: 20, EndCol: 0}
	inner := &Symbol{Name: "outer_fn::closure", Kind: "function", StartLine: 5, StartCol: 0, EndLine: 8, EndCol: 0}
	_, _, err := s.UpsertFile(f, []*Symbol{outer, inner})
	require.NoError(t, err)

	found, err := s.SymbolAtPosition(f.ID, 6, 2)
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, "outer_fn::closure", found.Name)
}

// =============================================================================
// References
// =============================================================================

func TestReference_UnresolvedThenResolved(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	f := insertTestFile(t, s, "/a.rs", "rust")
	target := insertTestSymbol(t, s, f.ID, "helper", "function")

	tx, err := s.db.Begin()
	require.NoError(t, err)
	refID, err := insertReferenceTx(tx, &Reference{
		FileID: f.ID, ReferenceName: ptr("helper"), Kind: "call",
		StartLine: 10, EndLine: 10,
	})
	require.NoError(t, err)
	require.NoError(t, tx.Commit())

	unresolved, err := s.UnresolvedReferencesByFile(f.ID)
	require.NoError(t, err)
	require.Len(t, unresolved, 1)

	tx, err = s.db.Begin()
	require.NoError(t, err)
	require.NoError(t, s.ResolveReference(tx, refID, target.ID))
	require.NoError(t, tx.Commit())

	resolved, err := s.ReferencesToSymbol(target.ID)
	require.NoError(t, err)
	require.Len(t, resolved, 1)
	assert.Nil(t, resolved[0].ReferenceName)
}

func TestPanicPoints_MatchesUnwrapAndExpect(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	f := insertTestFile(t, s, "/a.rs", "rust")

	tx, err := s.db.Begin()
	require.NoError(t, err)
	_, err = insertReferenceTx(tx, &Reference{FileID: f.ID, ReferenceName: ptr("unwrap"), Kind: "call"})
	require.NoError(t, err)
	_, err = insertReferenceTx(tx, &Reference{FileID: f.ID, ReferenceName: ptr("expect"), Kind: "call"})
	require.NoError(t, err)
	_, err = insertReferenceTx(tx, &Reference{FileID: f.ID, ReferenceName: ptr("map"), Kind: "call"})
	require.NoError(t, err)
	require.NoError(t, tx.Commit())

	points, err := s.PanicPoints(&f.ID)
	require.NoError(t, err)
	assert.Len(t, points, 2)
}

// =============================================================================
// FileDep & CallEdge
// =============================================================================

func TestUpsertFileDep_AccumulatesRefCount(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	a := insertTestFile(t, s, "/a.rs", "rust")
	b := insertTestFile(t, s, "/b.rs", "rust")

	require.NoError(t, s.UpsertFileDep(a.ID, b.ID))
	require.NoError(t, s.UpsertFileDep(a.ID, b.ID))

	deps, err := s.DependenciesOf(a.ID)
	require.NoError(t, err)
	require.Len(t, deps, 1)
	assert.Equal(t, 2, deps[0].RefCount)
}

func TestMaterializeCallEdges_GroupsByPair(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	f := insertTestFile(t, s, "/a.rs", "rust")
	caller := insertTestSymbol(t, s, f.ID, "caller", "function")
	callee := insertTestSymbol(t, s, f.ID, "callee", "function")

	tx, err := s.db.Begin()
	require.NoError(t, err)
	for range 3 {
		_, err := insertReferenceTx(tx, &Reference{
			FileID: f.ID, Kind: "call",
			SymbolID: ptr(callee.ID), InSymbolID: ptr(caller.ID),
		})
		require.NoError(t, err)
	}
	require.NoError(t, tx.Commit())

	require.NoError(t, s.MaterializeCallEdges())

	edges, err := s.CalleesByCaller(caller.ID)
	require.NoError(t, err)
	require.Len(t, edges, 1)
	assert.Equal(t, 3, edges[0].CallCount)
}

// =============================================================================
// Statistics & cleanup
// =============================================================================

func TestStatistics_CountsByLanguageAndKind(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	f := insertTestFile(t, s, "/a.rs", "rust")
	insertTestSymbol(t, s, f.ID, "foo", "function")

	stats, err := s.Statistics()
	require.NoError(t, err)
	assert.Equal(t, 1, stats.FileCount)
	assert.Equal(t, 1, stats.SymbolCount)
	assert.Equal(t, 1, stats.FilesByLanguage["rust"])
	assert.Equal(t, 1, stats.SymbolsByKind["function"])
}

func TestDeleteFileData_RemovesSymbolsRefsImports(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	f := insertTestFile(t, s, "/a.rs", "rust")
	insertTestSymbol(t, s, f.ID, "foo", "function")

	require.NoError(t, s.DeleteFileData(f.ID))

	syms, err := s.SymbolsByFile(f.ID)
	require.NoError(t, err)
	assert.Empty(t, syms)
}
