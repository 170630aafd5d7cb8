// Package tethys indexes Rust and C# source with tree-sitter into a SQLite
// database of files, symbols, references, imports, file dependencies and
// call edges, and answers code-intelligence queries against it.
//
// # Pipeline
//
// Indexing takes two calls:
//
//  1. Extract: [Engine.IndexDirectory] (or [Engine.IndexFiles]) parses each
//     source file, runs the Go extractor for its language, writes the
//     file's symbols, references and imports, and seeds file-dependency
//     edges from the imports the file actually uses.
//
//  2. Resolve: [Engine.Resolve] retries pending file dependencies until a
//     pass makes no progress, adds C# namespace dependencies, resolves
//     references across files through each file's imports, and
//     materializes call edges.
//
// # Usage
//
// Create an Engine, index source files, resolve, and query:
//
//	e, err := tethys.New("tethys.db")
//	if err != nil { ... }
//	defer e.Close()
//
//	ctx := context.Background()
//	report, err := e.IndexDirectory(ctx, "/path/to/project")
//	err = e.Resolve(ctx)
//
//	q := e.Query()
//	locs, err := q.DefinitionAt("/path/to/project/src/main.rs", 10, 5)
//
// # Query API
//
// The [QueryBuilder] returned by [Engine.Query] covers position lookups
// ([QueryBuilder.SymbolAt], [QueryBuilder.DefinitionAt]), references
// ([QueryBuilder.ReferencesTo]), the call graph ([QueryBuilder.Callers],
// [QueryBuilder.Callees], [QueryBuilder.TransitiveCallers],
// [QueryBuilder.TransitiveCallees], [QueryBuilder.ShortestCallPath]),
// imports and file dependencies ([QueryBuilder.Dependencies],
// [QueryBuilder.Dependents], [QueryBuilder.TransitiveDependencies],
// [QueryBuilder.TransitiveDependents], [QueryBuilder.ShortestFilePath],
// [QueryBuilder.DependencyCycles], [QueryBuilder.CyclesInvolving]) and
// repository-wide reports ([QueryBuilder.SearchSymbols],
// [QueryBuilder.UnusedSymbols], [QueryBuilder.Hotspots],
// [QueryBuilder.PanicPoints]).
//
// # Incremental Indexing
//
// [Engine.IndexFiles] skips files whose content hash is unchanged. A changed
// file's rows are replaced, and references from other files to its old
// symbols revert to unresolved; the next [Engine.Resolve], which always runs
// over the whole store, resolves them again. Use [WithLanguages] to restrict
// which languages the Engine processes.
package tethys
