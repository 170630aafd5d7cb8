package store

import "time"

// FileID, SymbolID, and ReferenceID are distinct domain types so that a
// SymbolID cannot be passed where a FileID is expected without an explicit
// conversion.
type FileID int64
type SymbolID int64
type ReferenceID int64

// File is one row per indexed source file.
type File struct {
	ID          FileID
	Path        string // normalized, forward-slash, unique
	Language    string
	MTimeNS     int64
	Size        int64
	Hash        string // content hash, sha256 hex
	LastIndexed time.Time
}

// Symbol is one row per definition site.
type Symbol struct {
	ID             SymbolID
	FileID         FileID
	Name           string
	ModulePath     string
	QualifiedName  string
	Kind           string // function, method, struct, class, enum, trait, interface, const, static, module, type_alias, macro
	StartLine      int
	StartCol       int
	EndLine        int
	EndCol         int
	Signature      string
	Visibility     string // public, crate, module, private
	ParentSymbolID *SymbolID
	IsTest         bool
	SignatureHash  string

	// SignatureDetails is the structured decomposition of Signature
	// (parameters, return type, async/unsafe/const, generics), populated
	// for function and method symbols when the extractor can parse one.
	SignatureDetails *FunctionSignature
}

// Reference is one row per use site. Exactly one of SymbolID or
// ReferenceName is non-null until cross-file resolution completes.
type Reference struct {
	ID             ReferenceID
	FileID         FileID
	SymbolID       *SymbolID // resolved target; nil until resolved
	ReferenceName  *string   // unresolved qualified name; nil once resolved
	Kind           string    // import, call, type, inherit, construct, field_access
	StartLine      int
	StartCol       int
	EndLine        int
	EndCol         int
	InSymbolID     *SymbolID // containing function/method; must be in same file
}

// Import is one row per imported name per file.
type Import struct {
	ID           int64
	FileID       FileID
	ImportedName string // "*" for glob/namespace imports
	Source       string // language-specific separator path
	Alias        *string
	Line         int
}

// FileDep is a directed edge from_file -> to_file with an aggregate count.
type FileDep struct {
	FromFileID FileID
	ToFileID   FileID
	RefCount   int
}

// CallEdge is a directed edge caller_symbol -> callee_symbol with an
// aggregate call count. Derivable: may be rebuilt from refs deterministically.
type CallEdge struct {
	CallerSymbolID SymbolID
	CalleeSymbolID SymbolID
	CallCount      int
}

// PendingDep is a file-dep edge whose target file was not yet indexed when
// discovered. Resolved by the Phase 3 fixed-point pass.
type PendingDep struct {
	ID             int64
	FromFileID     FileID
	TargetRelPath  string
}
