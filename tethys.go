// Package tethys provides deterministic, tree-sitter-based code
// intelligence for Rust and C# repositories: symbol extraction, import/
// reference resolution across files, and a SQLite-backed call graph.
package tethys

import "github.com/tethysdb/tethys/internal/store"

// Public aliases for internal store types used across the Engine/query API.
// These are Go type aliases (=), identical to the internal types at compile
// time; external consumers use these names without an internal import.

type Store = store.Store
type File = store.File
type Symbol = store.Symbol
type Reference = store.Reference
type Import = store.Import
type FileDep = store.FileDep
type CallEdge = store.CallEdge
type FileID = store.FileID
type SymbolID = store.SymbolID
