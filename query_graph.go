package tethys

import (
	"database/sql"
	"fmt"
	"strconv"
	"strings"

	"github.com/tethysdb/tethys/internal/store"
)

// CallGraph is a transitive call graph rooted at a symbol, found with one
// recursive SQL walk; each reached symbol is then loaded by ID.
type CallGraph struct {
	Root  SymbolID
	Nodes []CallGraphNode
	Edges []CallGraphEdge
	Depth int // actual max depth reached; may be < maxDepth if the graph is shallow
}

// CallGraphNode is a symbol in the call graph with its distance from the root.
type CallGraphNode struct {
	Symbol *Symbol
	Depth  int
}

// CallGraphEdge is one caller-callee relationship, aggregated across every
// call site (call_edges carries a count, not a single location).
type CallGraphEdge struct {
	CallerID  SymbolID
	CalleeID  SymbolID
	CallCount int
}

// scanSymbolRow scans a row whose leading columns are store.SymbolCols, in
// that order, into a Symbol; any trailing columns the caller appended to the
// SELECT are scanned into the extra destinations, in order.
func scanSymbolRow(scanner interface{ Scan(...any) error }, extra ...any) (*Symbol, error) {
	sym := &Symbol{}
	var signatureDetails sql.NullString
	dest := []any{
		&sym.ID, &sym.FileID, &sym.Name, &sym.ModulePath, &sym.QualifiedName, &sym.Kind,
		&sym.StartLine, &sym.StartCol, &sym.EndLine, &sym.EndCol, &sym.Signature, &sym.Visibility,
		&sym.ParentSymbolID, &sym.IsTest, &sym.SignatureHash, &signatureDetails,
	}
	dest = append(dest, extra...)
	if err := scanner.Scan(dest...); err != nil {
		return nil, err
	}
	sym.SignatureDetails = store.UnmarshalSignatureDetails(signatureDetails.String)
	kind, err := store.ParseSymbolKind(sym.Kind)
	if err != nil {
		return nil, fmt.Errorf("scan symbol %q: %w", sym.Name, err)
	}
	sym.Kind = kind
	if sym.Visibility != "" {
		vis, err := store.ParseVisibility(sym.Visibility)
		if err != nil {
			return nil, fmt.Errorf("scan symbol %q: %w", sym.Name, err)
		}
		sym.Visibility = vis
	}
	return sym, nil
}

// TransitiveCallers returns every symbol that can reach symbolID through a
// chain of calls, up to maxDepth hops. maxDepth of 0 returns just the root;
// negative is an error; depths beyond 100 are capped. Returns nil, nil if
// symbolID doesn't exist.
func (q *QueryBuilder) TransitiveCallers(symbolID SymbolID, maxDepth int) (*CallGraph, error) {
	return q.transitiveCallGraph(symbolID, maxDepth, "caller_symbol_id", "callee_symbol_id")
}

// TransitiveCallees returns every symbol reachable from symbolID through a
// chain of calls, up to maxDepth hops. Same bounds as TransitiveCallers.
func (q *QueryBuilder) TransitiveCallees(symbolID SymbolID, maxDepth int) (*CallGraph, error) {
	return q.transitiveCallGraph(symbolID, maxDepth, "callee_symbol_id", "caller_symbol_id")
}

// transitiveCallGraph walks call_edges with a recursive CTE in the direction
// named by (selectCol, joinCol): TransitiveCallers selects caller_symbol_id
// while joining on callee_symbol_id = the frontier, and TransitiveCallees is
// the mirror image.
func (q *QueryBuilder) transitiveCallGraph(symbolID SymbolID, maxDepth int, selectCol, joinCol string) (*CallGraph, error) {
	if maxDepth < 0 {
		return nil, fmt.Errorf("call graph: maxDepth must be non-negative, got %d", maxDepth)
	}
	if maxDepth > 100 {
		maxDepth = 100
	}

	root, err := q.store.SymbolByID(symbolID)
	if err != nil {
		return nil, fmt.Errorf("call graph: %w", err)
	}
	if root == nil {
		return nil, nil
	}

	result := &CallGraph{
		Root:  symbolID,
		Nodes: []CallGraphNode{{Symbol: root, Depth: 0}},
	}
	if maxDepth == 0 {
		return result, nil
	}

	query := fmt.Sprintf(`
		WITH RECURSIVE walk(symbol_id, depth) AS (
			SELECT ?, 0
			UNION
			SELECT ce.%s, walk.depth + 1
			FROM call_edges ce
			JOIN walk ON ce.%s = walk.symbol_id
			WHERE walk.depth < ?
		)
		SELECT symbol_id, MIN(depth) FROM walk WHERE symbol_id != ? GROUP BY symbol_id`,
		selectCol, joinCol,
	)
	rows, err := q.store.DB().Query(query, symbolID, maxDepth, symbolID)
	if err != nil {
		return nil, fmt.Errorf("call graph: walk: %w", err)
	}
	depths := map[SymbolID]int{}
	for rows.Next() {
		var id SymbolID
		var depth int
		if err := rows.Scan(&id, &depth); err != nil {
			rows.Close()
			return nil, fmt.Errorf("call graph: scan: %w", err)
		}
		depths[id] = depth
		if depth > result.Depth {
			result.Depth = depth
		}
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, fmt.Errorf("call graph: rows: %w", err)
	}
	rows.Close()

	visited := map[SymbolID]bool{symbolID: true}
	for id, depth := range depths {
		visited[id] = true
		sym, err := q.store.SymbolByID(id)
		if err != nil {
			return nil, fmt.Errorf("call graph: load symbol %d: %w", id, err)
		}
		if sym != nil {
			result.Nodes = append(result.Nodes, CallGraphNode{Symbol: sym, Depth: depth})
		}
	}

	allEdges, err := q.store.AllCallEdges()
	if err != nil {
		return nil, fmt.Errorf("call graph: load edges: %w", err)
	}
	for _, e := range allEdges {
		if visited[e.CallerSymbolID] && visited[e.CalleeSymbolID] {
			result.Edges = append(result.Edges, CallGraphEdge{
				CallerID: e.CallerSymbolID, CalleeID: e.CalleeSymbolID, CallCount: e.CallCount,
			})
		}
	}
	return result, nil
}

// CallPath is one shortest chain of calls from Root to Target.
type CallPath struct {
	Symbols []SymbolID
	Depth   int
}

// ShortestCallPath finds the shortest chain of calls from fromSymbolID to
// toSymbolID, up to maxDepth hops, by threading a comma-separated path string
// through the recursion and taking the first (shallowest) row that reaches
// the target. Returns nil, nil if no path exists within maxDepth.
func (q *QueryBuilder) ShortestCallPath(fromSymbolID, toSymbolID SymbolID, maxDepth int) (*CallPath, error) {
	if maxDepth < 0 {
		return nil, fmt.Errorf("shortest call path: maxDepth must be non-negative, got %d", maxDepth)
	}
	if fromSymbolID == toSymbolID {
		return &CallPath{Symbols: []SymbolID{fromSymbolID}, Depth: 0}, nil
	}
	if maxDepth > 100 {
		maxDepth = 100
	}

	row := q.store.DB().QueryRow(`
		WITH RECURSIVE walk(symbol_id, depth, path) AS (
			SELECT ?, 0, CAST(? AS TEXT)
			UNION
			SELECT ce.callee_symbol_id, walk.depth + 1, walk.path || ',' || ce.callee_symbol_id
			FROM call_edges ce
			JOIN walk ON ce.caller_symbol_id = walk.symbol_id
			WHERE walk.depth < ?
			  AND instr(',' || walk.path || ',', ',' || ce.callee_symbol_id || ',') = 0
		)
		SELECT path, depth FROM walk WHERE symbol_id = ? ORDER BY depth ASC LIMIT 1`,
		fromSymbolID, fromSymbolID, maxDepth, toSymbolID,
	)

	var pathStr string
	var depth int
	if err := row.Scan(&pathStr, &depth); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("shortest call path: %w", err)
	}

	parts := strings.Split(pathStr, ",")
	symbols := make([]SymbolID, 0, len(parts))
	for _, p := range parts {
		id, err := strconv.ParseInt(p, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("shortest call path: parse path: %w", err)
		}
		symbols = append(symbols, SymbolID(id))
	}
	return &CallPath{Symbols: symbols, Depth: depth}, nil
}

// FilePath is one shortest chain of file dependencies from Root to Target.
type FilePath struct {
	Files []FileID
	Depth int
}

// ShortestFilePath finds the shortest chain of file_deps edges from
// fromFileID to toFileID, up to maxDepth hops, by threading a
// comma-separated path string through the recursion the same way
// ShortestCallPath does over call_edges. Returns nil, nil if no path exists
// within maxDepth.
func (q *QueryBuilder) ShortestFilePath(fromFileID, toFileID FileID, maxDepth int) (*FilePath, error) {
	if maxDepth < 0 {
		return nil, fmt.Errorf("shortest file path: maxDepth must be non-negative, got %d", maxDepth)
	}
	if fromFileID == toFileID {
		return &FilePath{Files: []FileID{fromFileID}, Depth: 0}, nil
	}
	if maxDepth > 100 {
		maxDepth = 100
	}

	row := q.store.DB().QueryRow(`
		WITH RECURSIVE walk(file_id, depth, path) AS (
			SELECT ?, 0, CAST(? AS TEXT)
			UNION
			SELECT fd.to_file_id, walk.depth + 1, walk.path || ',' || fd.to_file_id
			FROM file_deps fd
			JOIN walk ON fd.from_file_id = walk.file_id
			WHERE walk.depth < ?
			  AND instr(',' || walk.path || ',', ',' || fd.to_file_id || ',') = 0
		)
		SELECT path, depth FROM walk WHERE file_id = ? ORDER BY depth ASC LIMIT 1`,
		fromFileID, fromFileID, maxDepth, toFileID,
	)

	var pathStr string
	var depth int
	if err := row.Scan(&pathStr, &depth); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("shortest file path: %w", err)
	}

	parts := strings.Split(pathStr, ",")
	files := make([]FileID, 0, len(parts))
	for _, p := range parts {
		id, err := strconv.ParseInt(p, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("shortest file path: parse path: %w", err)
		}
		files = append(files, FileID(id))
	}
	return &FilePath{Files: files, Depth: depth}, nil
}

// FileGraph is a transitive file_deps traversal, mirroring CallGraph but
// over files instead of symbols.
type FileGraph struct {
	Root  FileID
	Nodes []FileGraphNode
	Depth int
}

// FileGraphNode is a file in a FileGraph with its distance from the root.
type FileGraphNode struct {
	File  *File
	Depth int
}

// TransitiveDependencies returns every file reachable from fileID by
// following file_deps forward (A depends on B depends on C...), up to
// maxDepth hops.
func (q *QueryBuilder) TransitiveDependencies(fileID FileID, maxDepth int) (*FileGraph, error) {
	return q.transitiveFileGraph(fileID, maxDepth, "to_file_id", "from_file_id")
}

// TransitiveDependents returns every file that transitively depends on
// fileID, up to maxDepth hops.
func (q *QueryBuilder) TransitiveDependents(fileID FileID, maxDepth int) (*FileGraph, error) {
	return q.transitiveFileGraph(fileID, maxDepth, "from_file_id", "to_file_id")
}

func (q *QueryBuilder) transitiveFileGraph(fileID FileID, maxDepth int, selectCol, joinCol string) (*FileGraph, error) {
	if maxDepth < 0 {
		return nil, fmt.Errorf("file graph: maxDepth must be non-negative, got %d", maxDepth)
	}
	if maxDepth > 100 {
		maxDepth = 100
	}

	root, err := q.store.FileByID(fileID)
	if err != nil {
		return nil, fmt.Errorf("file graph: %w", err)
	}
	if root == nil {
		return nil, nil
	}

	result := &FileGraph{Root: fileID, Nodes: []FileGraphNode{{File: root, Depth: 0}}}
	if maxDepth == 0 {
		return result, nil
	}

	query := fmt.Sprintf(`
		WITH RECURSIVE walk(file_id, depth) AS (
			SELECT ?, 0
			UNION
			SELECT fd.%s, walk.depth + 1
			FROM file_deps fd
			JOIN walk ON fd.%s = walk.file_id
			WHERE walk.depth < ?
		)
		SELECT file_id, MIN(depth) FROM walk WHERE file_id != ? GROUP BY file_id`,
		selectCol, joinCol,
	)
	rows, err := q.store.DB().Query(query, fileID, maxDepth, fileID)
	if err != nil {
		return nil, fmt.Errorf("file graph: walk: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var id FileID
		var depth int
		if err := rows.Scan(&id, &depth); err != nil {
			return nil, fmt.Errorf("file graph: scan: %w", err)
		}
		f, err := q.store.FileByID(id)
		if err != nil {
			return nil, fmt.Errorf("file graph: load file %d: %w", id, err)
		}
		if f != nil {
			result.Nodes = append(result.Nodes, FileGraphNode{File: f, Depth: depth})
		}
		if depth > result.Depth {
			result.Depth = depth
		}
	}
	return result, rows.Err()
}

// Cycle is one dependency cycle among files, starting at its smallest file
// ID with direction preserved from there.
type Cycle struct {
	Files []FileID
}

// DependencyCycles finds every cycle in the file_deps graph with a recursive
// DFS (visited set + recursion stack; a back edge into the stack yields a
// cycle), normalizes each cycle to start at its smallest file ID, and
// de-duplicates.
func (q *QueryBuilder) DependencyCycles() ([]Cycle, error) {
	adj, err := q.fileDepsAdjacency()
	if err != nil {
		return nil, fmt.Errorf("dependency cycles: %w", err)
	}

	var (
		visited  = map[FileID]bool{}
		onStack  = map[FileID]bool{}
		stack    []FileID
		found    []Cycle
		seen     = map[string]bool{}
		addCycle func(from FileID)
	)

	addCycle = func(target FileID) {
		start := -1
		for i, id := range stack {
			if id == target {
				start = i
				break
			}
		}
		if start < 0 {
			return
		}
		cyc := append([]FileID(nil), stack[start:]...)
		normalizeCycle(cyc)
		key := fmt.Sprint(cyc)
		if !seen[key] {
			seen[key] = true
			found = append(found, Cycle{Files: cyc})
		}
	}

	var dfs func(id FileID)
	dfs = func(id FileID) {
		visited[id] = true
		onStack[id] = true
		stack = append(stack, id)
		for _, next := range adj[id] {
			if onStack[next] {
				addCycle(next)
				continue
			}
			if !visited[next] {
				dfs(next)
			}
		}
		stack = stack[:len(stack)-1]
		onStack[id] = false
	}

	for id := range adj {
		if !visited[id] {
			dfs(id)
		}
	}
	return found, nil
}

// CyclesInvolving returns every dependency cycle that passes through fileID.
func (q *QueryBuilder) CyclesInvolving(fileID FileID) ([]Cycle, error) {
	all, err := q.DependencyCycles()
	if err != nil {
		return nil, err
	}
	var out []Cycle
	for _, c := range all {
		for _, id := range c.Files {
			if id == fileID {
				out = append(out, c)
				break
			}
		}
	}
	return out, nil
}

func normalizeCycle(cyc []FileID) {
	minIdx := 0
	for i, id := range cyc {
		if id < cyc[minIdx] {
			minIdx = i
		}
	}
	rotated := make([]FileID, len(cyc))
	for i := range cyc {
		rotated[i] = cyc[(minIdx+i)%len(cyc)]
	}
	copy(cyc, rotated)
}

func (q *QueryBuilder) fileDepsAdjacency() (map[FileID][]FileID, error) {
	deps, err := q.store.AllFileDeps()
	if err != nil {
		return nil, err
	}
	adj := map[FileID][]FileID{}
	for _, d := range deps {
		adj[d.FromFileID] = append(adj[d.FromFileID], d.ToFileID)
		if _, ok := adj[d.ToFileID]; !ok {
			adj[d.ToFileID] = nil
		}
	}
	return adj, nil
}

// PanicPoint is a call to unwrap/expect, the Rust idioms that turn a
// recoverable error into a process panic.
type PanicPoint struct {
	Location Location
	Method   string // "unwrap" or "expect"
	IsTest   bool
}

// PanicPoints finds every unwrap()/expect() call reference, optionally
// restricted to one file, split by whether the call sits inside a
// test-tagged function.
func (q *QueryBuilder) PanicPoints(filePath string) ([]*PanicPoint, error) {
	query := `
		SELECT r.reference_name, r.file_id, r.start_line, r.start_col, r.end_line, r.end_col,
			COALESCE(s.is_test, FALSE)
		FROM refs r
		JOIN files f ON f.id = r.file_id
		LEFT JOIN symbols s ON s.id = r.in_symbol_id
		WHERE f.language = 'rust' AND r.kind = 'call'
		  AND r.reference_name IN ('unwrap', 'expect')`
	args := []any{}
	if filePath != "" {
		query += ` AND f.path = ?`
		args = append(args, filePath)
	}

	rows, err := q.store.DB().Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("panic points: %w", err)
	}
	defer rows.Close()

	var out []*PanicPoint
	for rows.Next() {
		var (
			method                        string
			fileID                        FileID
			startLine, startCol           int
			endLine, endCol               int
			isTest                        bool
		)
		if err := rows.Scan(&method, &fileID, &startLine, &startCol, &endLine, &endCol, &isTest); err != nil {
			return nil, fmt.Errorf("panic points: scan: %w", err)
		}
		loc, err := q.fileLocation(fileID, startLine, startCol, endLine, endCol)
		if err != nil {
			return nil, fmt.Errorf("panic points: file location: %w", err)
		}
		if loc == nil {
			continue
		}
		out = append(out, &PanicPoint{Location: *loc, Method: method, IsTest: isTest})
	}
	return out, rows.Err()
}

// HotspotResult is a heavily-referenced symbol with fan-in/fan-out metrics
// from the call graph.
type HotspotResult struct {
	Symbol      *Symbol
	FilePath    string
	RefCount    int // resolved refs targeting this symbol
	CallerCount int // direct callers (fan-in from call_edges)
	CalleeCount int // direct callees (fan-out from call_edges)
}

// UnusedSymbols returns definitions with zero resolved references, excluding
// module/namespace-kind symbols (declarations, not call/use targets, so
// "unused" doesn't mean anything for them).
func (q *QueryBuilder) UnusedSymbols() ([]*Symbol, error) {
	rows, err := q.store.DB().Query(
		`SELECT ` + store.SymbolCols + ` FROM symbols s
		 WHERE s.kind != 'module'
		   AND NOT EXISTS (SELECT 1 FROM refs r WHERE r.symbol_id = s.id)
		 ORDER BY s.file_id, s.start_line`,
	)
	if err != nil {
		return nil, fmt.Errorf("unused symbols: %w", err)
	}
	defer rows.Close()

	var out []*Symbol
	for rows.Next() {
		sym, err := scanSymbolRow(rows)
		if err != nil {
			return nil, fmt.Errorf("unused symbols: scan: %w", err)
		}
		out = append(out, sym)
	}
	return out, rows.Err()
}

// Hotspots returns the topN most-referenced symbols, along with their call
// graph fan-in/fan-out, ordered by reference count descending.
func (q *QueryBuilder) Hotspots(topN int) ([]*HotspotResult, error) {
	if topN < 0 {
		return nil, fmt.Errorf("hotspots: topN must be non-negative, got %d", topN)
	}
	if topN == 0 {
		return []*HotspotResult{}, nil
	}

	query := `
		SELECT ` + store.SymbolCols + `, COALESCE(f.path, ''),
			(SELECT COUNT(*) FROM refs r WHERE r.symbol_id = s.id) AS ref_count,
			(SELECT COUNT(*) FROM call_edges ce WHERE ce.callee_symbol_id = s.id) AS caller_count,
			(SELECT COUNT(*) FROM call_edges ce WHERE ce.caller_symbol_id = s.id) AS callee_count
		FROM symbols s
		LEFT JOIN files f ON f.id = s.file_id
		WHERE EXISTS (SELECT 1 FROM refs r2 WHERE r2.symbol_id = s.id)
		ORDER BY ref_count DESC
		LIMIT ?`

	rows, err := q.store.DB().Query(query, topN)
	if err != nil {
		return nil, fmt.Errorf("hotspots: %w", err)
	}
	defer rows.Close()

	var out []*HotspotResult
	for rows.Next() {
		hr := &HotspotResult{}
		sym, err := scanSymbolRow(rows, &hr.FilePath, &hr.RefCount, &hr.CallerCount, &hr.CalleeCount)
		if err != nil {
			return nil, fmt.Errorf("hotspots: scan: %w", err)
		}
		hr.Symbol = sym
		out = append(out, hr)
	}
	if out == nil {
		out = []*HotspotResult{}
	}
	return out, rows.Err()
}
