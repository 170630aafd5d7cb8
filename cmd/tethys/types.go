package main

// CLIResult is the top-level JSON envelope for all query commands.
type CLIResult struct {
	Command    string `json:"command"`
	Results    any    `json:"results"`
	TotalCount *int   `json:"total_count,omitempty"`
	Error      string `json:"error,omitempty"`
}

// CLISymbol is a JSON-friendly symbol representation.
type CLISymbol struct {
	ID         int64  `json:"id"`
	Name       string `json:"name"`
	Kind       string `json:"kind"`
	Visibility string `json:"visibility"`
	File       string `json:"file,omitempty"`
	StartLine  int    `json:"start_line"`
	StartCol   int    `json:"start_col"`
	EndLine    int    `json:"end_line"`
	EndCol     int    `json:"end_col"`
	Signature  string        `json:"signature,omitempty"`
	IsTest     bool          `json:"is_test,omitempty"`
	Details    *CLISignature `json:"signature_details,omitempty"`
}

// CLISignature is a JSON-friendly structured function/method signature.
type CLISignature struct {
	Parameters []CLIParameter `json:"parameters"`
	ReturnType string         `json:"return_type,omitempty"`
	IsAsync    bool           `json:"is_async,omitempty"`
	IsUnsafe   bool           `json:"is_unsafe,omitempty"`
	IsConst    bool           `json:"is_const,omitempty"`
	Generics   string         `json:"generics,omitempty"`
}

// CLIParameter is a JSON-friendly function parameter.
type CLIParameter struct {
	Name           string `json:"name"`
	TypeAnnotation string `json:"type_annotation,omitempty"`
}

// CLILocation extends Location with the symbol ID for chaining.
type CLILocation struct {
	File      string `json:"file"`
	StartLine int    `json:"start_line"`
	StartCol  int    `json:"start_col"`
	EndLine   int    `json:"end_line"`
	EndCol    int    `json:"end_col"`
	SymbolID  *int64 `json:"symbol_id,omitempty"`
}

// CLICallEdge is a JSON-friendly call graph edge (aggregate, not per-call-site).
type CLICallEdge struct {
	CallerID   int64  `json:"caller_id"`
	CallerName string `json:"caller_name,omitempty"`
	CalleeID   int64  `json:"callee_id"`
	CalleeName string `json:"callee_name,omitempty"`
	CallCount  int    `json:"call_count"`
}

// CLIImport is a JSON-friendly import representation.
type CLIImport struct {
	FileID       int64   `json:"file_id"`
	FilePath     string  `json:"file_path,omitempty"`
	Source       string  `json:"source"`
	ImportedName string  `json:"imported_name"`
	Alias        *string `json:"alias,omitempty"`
	Line         int     `json:"line"`
}

// CLICallGraph is a JSON-friendly transitive call graph.
type CLICallGraph struct {
	Root     int64              `json:"root"`
	Nodes    []CLICallGraphNode `json:"nodes"`
	Edges    []CLICallGraphEdge `json:"edges"`
	MaxDepth int                `json:"max_depth"`
}

// CLICallGraphNode is a node in a transitive call graph.
type CLICallGraphNode struct {
	Symbol CLISymbol `json:"symbol"`
	Depth  int       `json:"depth"`
}

// CLICallGraphEdge is an edge in a transitive call graph. No per-call-site
// location survives materialization into call_edges, so only the count is
// carried (see internal/store's aggregate-only CallEdge).
type CLICallGraphEdge struct {
	CallerID  int64 `json:"caller_id"`
	CalleeID  int64 `json:"callee_id"`
	CallCount int   `json:"call_count"`
}

// CLICallPath is a shortest call chain between two symbols.
type CLICallPath struct {
	Symbols []CLISymbol `json:"symbols"`
	Depth   int         `json:"depth"`
}

// CLIFilePath is a shortest dependency chain between two files.
type CLIFilePath struct {
	Files []string `json:"files"`
	Depth int      `json:"depth"`
}

// CLIFileGraph is a JSON-friendly transitive file dependency graph.
type CLIFileGraph struct {
	Root     int64             `json:"root"`
	Nodes    []CLIFileGraphNode `json:"nodes"`
	MaxDepth int               `json:"max_depth"`
}

// CLIFileGraphNode is a node in a transitive file dependency graph.
type CLIFileGraphNode struct {
	Path  string `json:"path"`
	Depth int    `json:"depth"`
}

// CLICycle is a circular dependency cycle of file paths.
type CLICycle struct {
	Files []string `json:"files"`
}

// CLIHotspot is a heavily-referenced symbol with fan-in/fan-out metrics.
type CLIHotspot struct {
	Symbol      CLISymbol `json:"symbol"`
	RefCount    int       `json:"ref_count"`
	CallerCount int       `json:"caller_count"`
	CalleeCount int       `json:"callee_count"`
}

// CLIPanicPoint is a call to unwrap/expect.
type CLIPanicPoint struct {
	Location CLILocation `json:"location"`
	Method   string      `json:"method"`
	IsTest   bool        `json:"is_test"`
}

// CLIStats is a JSON-friendly summary of index contents.
type CLIStats struct {
	FileCount   int            `json:"file_count"`
	SymbolCount int            `json:"symbol_count"`
	RefCount    int            `json:"ref_count"`
	KindCounts  map[string]int `json:"kind_counts"`
}
