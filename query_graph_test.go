package tethys

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tethysdb/tethys/internal/store"
)

func newTestQueryBuilder(t *testing.T) (*QueryBuilder, *store.Store) {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	s, err := store.NewStore(dbPath)
	require.NoError(t, err)
	require.NoError(t, s.Migrate())
	t.Cleanup(func() { s.Close() })
	return NewQueryBuilder(s), s
}

func insertTestFile(t *testing.T, s *store.Store, path, lang string) FileID {
	t.Helper()
	id, _, err := s.UpsertFile(&store.File{
		Path: path, Language: lang, Hash: path, LastIndexed: time.Now(),
	}, nil)
	require.NoError(t, err)
	return id
}

func insertTestSymbol(t *testing.T, s *store.Store, fileID FileID, name, kind string) SymbolID {
	t.Helper()
	id, err := s.InsertSymbol(&store.Symbol{
		FileID: fileID, Name: name, Kind: kind, Visibility: "public",
		QualifiedName: name, ModulePath: name,
	})
	require.NoError(t, err)
	return id
}

// insertCall records a resolved call-kind reference from caller to callee
// and re-materializes call_edges, mirroring Phase 5 of the real pipeline.
func insertCall(t *testing.T, s *store.Store, fileID FileID, caller, callee SymbolID) {
	t.Helper()
	_, err := s.InsertReference(&store.Reference{
		FileID: fileID, Kind: "call", SymbolID: &callee, InSymbolID: &caller,
	})
	require.NoError(t, err)
	require.NoError(t, s.MaterializeCallEdges())
}

func TestTransitiveCallers_Depth1MatchesDirectCallers(t *testing.T) {
	q, s := newTestQueryBuilder(t)
	fID := insertTestFile(t, s, "/test.rs", "rust")

	a := insertTestSymbol(t, s, fID, "A", "function")
	b := insertTestSymbol(t, s, fID, "B", "function")
	c := insertTestSymbol(t, s, fID, "C", "function")

	insertCall(t, s, fID, a, c)
	insertCall(t, s, fID, b, c)

	graph, err := q.TransitiveCallers(c, 1)
	require.NoError(t, err)
	require.NotNil(t, graph)

	assert.Equal(t, c, graph.Root)
	assert.Len(t, graph.Nodes, 3)
	assert.Len(t, graph.Edges, 2)
	assert.Equal(t, 1, graph.Depth)

	callerNames := map[string]bool{}
	for _, n := range graph.Nodes {
		if n.Depth == 1 {
			callerNames[n.Symbol.Name] = true
		}
	}
	assert.True(t, callerNames["A"])
	assert.True(t, callerNames["B"])
}

func TestTransitiveCallers_MultiHopChain(t *testing.T) {
	q, s := newTestQueryBuilder(t)
	fID := insertTestFile(t, s, "/test.rs", "rust")

	a := insertTestSymbol(t, s, fID, "A", "function")
	b := insertTestSymbol(t, s, fID, "B", "function")
	c := insertTestSymbol(t, s, fID, "C", "function")

	insertCall(t, s, fID, a, b)
	insertCall(t, s, fID, b, c)

	graph, err := q.TransitiveCallers(c, 3)
	require.NoError(t, err)
	require.NotNil(t, graph)
	assert.Len(t, graph.Nodes, 3)
	assert.Equal(t, 2, graph.Depth)

	depthByName := map[string]int{}
	for _, n := range graph.Nodes {
		depthByName[n.Symbol.Name] = n.Depth
	}
	assert.Equal(t, 0, depthByName["C"])
	assert.Equal(t, 1, depthByName["B"])
	assert.Equal(t, 2, depthByName["A"])
}

func TestTransitiveCallers_Depth0ReturnsRootOnly(t *testing.T) {
	q, s := newTestQueryBuilder(t)
	fID := insertTestFile(t, s, "/test.rs", "rust")
	a := insertTestSymbol(t, s, fID, "A", "function")
	b := insertTestSymbol(t, s, fID, "B", "function")
	insertCall(t, s, fID, a, b)

	graph, err := q.TransitiveCallers(b, 0)
	require.NoError(t, err)
	require.NotNil(t, graph)
	assert.Len(t, graph.Nodes, 1)
	assert.Empty(t, graph.Edges)
}

func TestTransitiveCallers_UnknownSymbolReturnsNil(t *testing.T) {
	q, _ := newTestQueryBuilder(t)
	graph, err := q.TransitiveCallers(999, 2)
	require.NoError(t, err)
	assert.Nil(t, graph)
}

func TestTransitiveCallers_NegativeDepthErrors(t *testing.T) {
	q, s := newTestQueryBuilder(t)
	fID := insertTestFile(t, s, "/test.rs", "rust")
	a := insertTestSymbol(t, s, fID, "A", "function")

	_, err := q.TransitiveCallers(a, -1)
	require.Error(t, err)
}

func TestTransitiveCallees_FollowsForwardChain(t *testing.T) {
	q, s := newTestQueryBuilder(t)
	fID := insertTestFile(t, s, "/test.rs", "rust")

	a := insertTestSymbol(t, s, fID, "A", "function")
	b := insertTestSymbol(t, s, fID, "B", "function")
	c := insertTestSymbol(t, s, fID, "C", "function")

	insertCall(t, s, fID, a, b)
	insertCall(t, s, fID, b, c)

	graph, err := q.TransitiveCallees(a, 3)
	require.NoError(t, err)
	require.NotNil(t, graph)

	depthByName := map[string]int{}
	for _, n := range graph.Nodes {
		depthByName[n.Symbol.Name] = n.Depth
	}
	assert.Equal(t, 0, depthByName["A"])
	assert.Equal(t, 1, depthByName["B"])
	assert.Equal(t, 2, depthByName["C"])
}

func TestShortestCallPath_FindsPathAcrossHops(t *testing.T) {
	q, s := newTestQueryBuilder(t)
	fID := insertTestFile(t, s, "/test.rs", "rust")

	a := insertTestSymbol(t, s, fID, "A", "function")
	b := insertTestSymbol(t, s, fID, "B", "function")
	c := insertTestSymbol(t, s, fID, "C", "function")
	d := insertTestSymbol(t, s, fID, "D", "function")

	insertCall(t, s, fID, a, b)
	insertCall(t, s, fID, a, d)
	insertCall(t, s, fID, d, c)
	insertCall(t, s, fID, b, c)

	path, err := q.ShortestCallPath(a, c, 5)
	require.NoError(t, err)
	require.NotNil(t, path)
	assert.Equal(t, 2, path.Depth)
	require.Len(t, path.Symbols, 3)
	assert.Equal(t, a, path.Symbols[0])
	assert.Equal(t, c, path.Symbols[2])
}

func TestShortestCallPath_SameSymbol(t *testing.T) {
	q, s := newTestQueryBuilder(t)
	fID := insertTestFile(t, s, "/test.rs", "rust")
	a := insertTestSymbol(t, s, fID, "A", "function")

	path, err := q.ShortestCallPath(a, a, 5)
	require.NoError(t, err)
	require.NotNil(t, path)
	assert.Equal(t, 0, path.Depth)
}

func TestShortestCallPath_NoPathReturnsNil(t *testing.T) {
	q, s := newTestQueryBuilder(t)
	fID := insertTestFile(t, s, "/test.rs", "rust")
	a := insertTestSymbol(t, s, fID, "A", "function")
	b := insertTestSymbol(t, s, fID, "B", "function")

	path, err := q.ShortestCallPath(a, b, 5)
	require.NoError(t, err)
	assert.Nil(t, path)
}

func TestShortestFilePath_FindsPathAcrossHops(t *testing.T) {
	q, s := newTestQueryBuilder(t)
	a := insertTestFile(t, s, "/a.rs", "rust")
	b := insertTestFile(t, s, "/b.rs", "rust")
	c := insertTestFile(t, s, "/c.rs", "rust")
	d := insertTestFile(t, s, "/d.rs", "rust")

	require.NoError(t, s.UpsertFileDep(a, b))
	require.NoError(t, s.UpsertFileDep(a, d))
	require.NoError(t, s.UpsertFileDep(d, c))
	require.NoError(t, s.UpsertFileDep(b, c))

	path, err := q.ShortestFilePath(a, c, 5)
	require.NoError(t, err)
	require.NotNil(t, path)
	assert.Equal(t, 2, path.Depth)
	require.Len(t, path.Files, 3)
	assert.Equal(t, a, path.Files[0])
	assert.Equal(t, c, path.Files[2])
}

func TestShortestFilePath_SameFile(t *testing.T) {
	q, s := newTestQueryBuilder(t)
	a := insertTestFile(t, s, "/a.rs", "rust")

	path, err := q.ShortestFilePath(a, a, 5)
	require.NoError(t, err)
	require.NotNil(t, path)
	assert.Equal(t, 0, path.Depth)
}

func TestShortestFilePath_NoPathReturnsNil(t *testing.T) {
	q, s := newTestQueryBuilder(t)
	a := insertTestFile(t, s, "/a.rs", "rust")
	b := insertTestFile(t, s, "/b.rs", "rust")

	path, err := q.ShortestFilePath(a, b, 5)
	require.NoError(t, err)
	assert.Nil(t, path)
}

func TestShortestFilePath_NegativeDepthErrors(t *testing.T) {
	q, s := newTestQueryBuilder(t)
	a := insertTestFile(t, s, "/a.rs", "rust")
	b := insertTestFile(t, s, "/b.rs", "rust")

	_, err := q.ShortestFilePath(a, b, -1)
	require.Error(t, err)
}

func TestTransitiveDependencies_FollowsFileDeps(t *testing.T) {
	q, s := newTestQueryBuilder(t)
	a := insertTestFile(t, s, "/a.rs", "rust")
	b := insertTestFile(t, s, "/b.rs", "rust")
	c := insertTestFile(t, s, "/c.rs", "rust")

	require.NoError(t, s.UpsertFileDep(a, b))
	require.NoError(t, s.UpsertFileDep(b, c))

	graph, err := q.TransitiveDependencies(a, 5)
	require.NoError(t, err)
	require.NotNil(t, graph)

	var paths []string
	for _, n := range graph.Nodes {
		paths = append(paths, n.File.Path)
	}
	assert.Contains(t, paths, "/a.rs")
	assert.Contains(t, paths, "/b.rs")
	assert.Contains(t, paths, "/c.rs")
}

func TestTransitiveDependents_ReverseOfDependencies(t *testing.T) {
	q, s := newTestQueryBuilder(t)
	a := insertTestFile(t, s, "/a.rs", "rust")
	b := insertTestFile(t, s, "/b.rs", "rust")

	require.NoError(t, s.UpsertFileDep(a, b))

	graph, err := q.TransitiveDependents(b, 5)
	require.NoError(t, err)
	require.NotNil(t, graph)

	var paths []string
	for _, n := range graph.Nodes {
		paths = append(paths, n.File.Path)
	}
	assert.Contains(t, paths, "/a.rs")
}

func TestDependencyCycles_FindsSimpleCycle(t *testing.T) {
	q, s := newTestQueryBuilder(t)
	a := insertTestFile(t, s, "/a.rs", "rust")
	b := insertTestFile(t, s, "/b.rs", "rust")

	require.NoError(t, s.UpsertFileDep(a, b))
	require.NoError(t, s.UpsertFileDep(b, a))

	cycles, err := q.DependencyCycles()
	require.NoError(t, err)
	require.Len(t, cycles, 1)
	assert.ElementsMatch(t, []FileID{a, b}, cycles[0].Files)
}

func TestDependencyCycles_NoCyclesInDAG(t *testing.T) {
	q, s := newTestQueryBuilder(t)
	a := insertTestFile(t, s, "/a.rs", "rust")
	b := insertTestFile(t, s, "/b.rs", "rust")

	require.NoError(t, s.UpsertFileDep(a, b))

	cycles, err := q.DependencyCycles()
	require.NoError(t, err)
	assert.Empty(t, cycles)
}

func TestCyclesInvolving_FiltersByFile(t *testing.T) {
	q, s := newTestQueryBuilder(t)
	a := insertTestFile(t, s, "/a.rs", "rust")
	b := insertTestFile(t, s, "/b.rs", "rust")
	c := insertTestFile(t, s, "/c.rs", "rust")

	require.NoError(t, s.UpsertFileDep(a, b))
	require.NoError(t, s.UpsertFileDep(b, a))

	cycles, err := q.CyclesInvolving(a)
	require.NoError(t, err)
	assert.Len(t, cycles, 1)

	cycles, err = q.CyclesInvolving(c)
	require.NoError(t, err)
	assert.Empty(t, cycles)
}

func TestUnusedSymbols_ExcludesReferencedAndModuleSymbols(t *testing.T) {
	q, s := newTestQueryBuilder(t)
	fID := insertTestFile(t, s, "/a.rs", "rust")

	used := insertTestSymbol(t, s, fID, "Used", "function")
	unused := insertTestSymbol(t, s, fID, "Unused", "function")
	insertTestSymbol(t, s, fID, "my_mod", "module")

	_, err := s.InsertReference(&store.Reference{FileID: fID, Kind: "call", SymbolID: &used})
	require.NoError(t, err)

	syms, err := q.UnusedSymbols()
	require.NoError(t, err)

	var names []string
	for _, sym := range syms {
		names = append(names, sym.Name)
	}
	assert.Contains(t, names, "Unused")
	assert.NotContains(t, names, "Used")
	assert.NotContains(t, names, "my_mod")
}

func TestHotspots_OrdersByReferenceCount(t *testing.T) {
	q, s := newTestQueryBuilder(t)
	fID := insertTestFile(t, s, "/a.rs", "rust")

	popular := insertTestSymbol(t, s, fID, "Popular", "function")
	rare := insertTestSymbol(t, s, fID, "Rare", "function")

	for i := 0; i < 3; i++ {
		_, err := s.InsertReference(&store.Reference{FileID: fID, Kind: "call", SymbolID: &popular})
		require.NoError(t, err)
	}
	_, err := s.InsertReference(&store.Reference{FileID: fID, Kind: "call", SymbolID: &rare})
	require.NoError(t, err)

	hotspots, err := q.Hotspots(10)
	require.NoError(t, err)
	require.Len(t, hotspots, 2)
	assert.Equal(t, "Popular", hotspots[0].Symbol.Name)
	assert.Equal(t, 3, hotspots[0].RefCount)
}

func TestHotspots_TopNZeroReturnsEmpty(t *testing.T) {
	q, _ := newTestQueryBuilder(t)
	hotspots, err := q.Hotspots(0)
	require.NoError(t, err)
	assert.Empty(t, hotspots)
}

func TestHotspots_NegativeTopNErrors(t *testing.T) {
	q, _ := newTestQueryBuilder(t)
	_, err := q.Hotspots(-1)
	require.Error(t, err)
}

func TestPanicPoints_FindsUnwrapAndExpectOnly(t *testing.T) {
	q, s := newTestQueryBuilder(t)
	fID := insertTestFile(t, s, "/a.rs", "rust")
	fn := insertTestSymbol(t, s, fID, "risky", "function")

	unwrapName := "unwrap"
	expectName := "expect"
	otherName := "parse"

	_, err := s.InsertReference(&store.Reference{
		FileID: fID, Kind: "call", ReferenceName: &unwrapName, InSymbolID: &fn,
	})
	require.NoError(t, err)
	_, err = s.InsertReference(&store.Reference{
		FileID: fID, Kind: "call", ReferenceName: &expectName, InSymbolID: &fn,
	})
	require.NoError(t, err)
	_, err = s.InsertReference(&store.Reference{
		FileID: fID, Kind: "call", ReferenceName: &otherName, InSymbolID: &fn,
	})
	require.NoError(t, err)

	points, err := q.PanicPoints("")
	require.NoError(t, err)
	require.Len(t, points, 2)

	var methods []string
	for _, p := range points {
		methods = append(methods, p.Method)
	}
	assert.ElementsMatch(t, []string{"unwrap", "expect"}, methods)
}

func TestPanicPoints_FiltersByFile(t *testing.T) {
	q, s := newTestQueryBuilder(t)
	fA := insertTestFile(t, s, "/a.rs", "rust")
	fB := insertTestFile(t, s, "/b.rs", "rust")

	unwrapName := "unwrap"
	_, err := s.InsertReference(&store.Reference{FileID: fA, Kind: "call", ReferenceName: &unwrapName})
	require.NoError(t, err)
	_, err = s.InsertReference(&store.Reference{FileID: fB, Kind: "call", ReferenceName: &unwrapName})
	require.NoError(t, err)

	points, err := q.PanicPoints("/a.rs")
	require.NoError(t, err)
	require.Len(t, points, 1)
	assert.Equal(t, "/a.rs", points[0].Location.File)
}

func TestPanicPoints_OnlyRustFiles(t *testing.T) {
	q, s := newTestQueryBuilder(t)
	fID := insertTestFile(t, s, "/a.cs", "csharp")

	unwrapName := "unwrap"
	_, err := s.InsertReference(&store.Reference{FileID: fID, Kind: "call", ReferenceName: &unwrapName})
	require.NoError(t, err)

	points, err := q.PanicPoints("")
	require.NoError(t, err)
	assert.Empty(t, points)
}
