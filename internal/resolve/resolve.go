// Package resolve turns an extracted import path into concrete files on
// disk (or reports that it couldn't) and derives a file's module path.
// Matching unresolved reference names to symbols is done by the indexing
// pipeline, not here. One Resolver per language family, mirroring
// internal/extract's registry shape.
package resolve

import (
	"strings"
	"sync"

	"github.com/tethysdb/tethys/internal/store"
)

// Resolver resolves module-level imports to files. Reference-to-symbol
// resolution (the qualified/bare/glob/unmatched cases of Phase 4) is
// language-agnostic and lives in the indexing pipeline, driven by each
// Resolver's ResolveImport.
type Resolver interface {
	// ResolveImport maps an import's path segments (as extracted from a
	// use/using statement) to the file path(s) it names, built from
	// fromFile and the roots, so in the same form as the indexed paths.
	// Rust imports resolve to at most one file; C# namespace imports may
	// resolve to several (every file declaring that namespace). Returns nil
	// if the import names an external dependency or can't be resolved to
	// any file in this index.
	ResolveImport(fromFile string, pathSegments []string, roots Roots) []string

	// ModulePathOf derives the dotted/colon module path a file belongs to,
	// used to build qualified names and to group namespace members (C#) or
	// crate-relative paths (Rust).
	ModulePathOf(filePath string, roots Roots) string
}

// Roots captures per-language project layout discovered once per index run:
// Rust crate roots (from Cargo.toml) and C#'s namespace→files map (built
// from stored symbols in Phase 3, after the first extraction pass).
type Roots struct {
	RustCrateRoots  []CrateRoot
	CSharpNamespace map[string][]string // namespace -> file paths declaring it
}

// CrateRoot is one Rust crate's [lib] or [[bin]] entry point, as parsed from
// its Cargo.toml.
type CrateRoot struct {
	Dir      string // directory containing Cargo.toml
	EntryRel string // path to the lib/bin root file, relative to Dir
}

var (
	byLanguage map[string]Resolver
	once       sync.Once
)

func initRegistry() {
	once.Do(func() {
		byLanguage = map[string]Resolver{
			"rust":   rustResolver{},
			"csharp": csharpResolver{},
		}
	})
}

// ForLanguage returns the Resolver for a canonical language name.
func ForLanguage(lang string) (Resolver, bool) {
	initRegistry()
	r, ok := byLanguage[lang]
	return r, ok
}

// BuildCSharpNamespaces scans stored module-kind symbols (one per
// namespace/file-scoped-namespace declaration) and groups the files that
// declare each namespace, per spec.md's "namespace→files map built from
// module-kind symbols after the first pass."
func BuildCSharpNamespaces(s *store.Store) (map[string][]string, error) {
	symbols, err := s.SymbolsByKind("module")
	if err != nil {
		return nil, err
	}
	out := make(map[string][]string)
	for _, sym := range symbols {
		f, err := s.FileByID(sym.FileID)
		if err != nil || f == nil || f.Language != "csharp" {
			continue
		}
		out[sym.Name] = appendUnique(out[sym.Name], f.Path)
	}
	return out, nil
}

func appendUnique(slice []string, v string) []string {
	for _, existing := range slice {
		if existing == v {
			return slice
		}
	}
	return append(slice, v)
}

func joinPath(dir, rel string) string {
	if dir == "" {
		return rel
	}
	return strings.TrimSuffix(dir, "/") + "/" + rel
}
