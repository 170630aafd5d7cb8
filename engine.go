package tethys

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/tethysdb/tethys/internal/extract"
	"github.com/tethysdb/tethys/internal/resolve"
	"github.com/tethysdb/tethys/internal/store"
)

// Engine orchestrates the Tethys pipeline: file discovery, change detection,
// tree-sitter extraction, cross-file resolution, and query access.
type Engine struct {
	store     *store.Store
	languages map[string]bool // nil/empty means all supported languages
	roots     resolve.Roots
	logger    *slog.Logger
	workers   int // 0 means runtime.NumCPU()
	progress  ProgressFunc
	exclude   []string // glob patterns matched against paths relative to the indexed dir
	maxSize   int64    // 0 means no limit
	streaming bool     // false: collect every extracted file before writing any
	batchSize int      // streaming drain size; <=0 means defaultBatchSize
}

// defaultBatchSize is the streaming writer's drain threshold when
// WithBatchSize is never called or called with n<=0.
const defaultBatchSize = 100

// ProgressFunc reports indexing progress as files finish extraction.
// current and total count files, not symbols; phase is a short label such
// as "extract" or "resolve".
type ProgressFunc func(current, total int, phase string)

// Option configures an Engine.
type Option func(*Engine)

// WithProgress registers a callback invoked after every file finishes
// extraction. Callers that drive a progress bar (the CLI) or structured
// logging can use this instead of polling IndexReport.
func WithProgress(fn ProgressFunc) Option {
	return func(e *Engine) { e.progress = fn }
}

// WithLanguages restricts indexing to the given canonical language names
// ("rust", "csharp"). Without this option, all supported languages are
// indexed.
func WithLanguages(languages ...string) Option {
	return func(e *Engine) {
		e.languages = make(map[string]bool, len(languages))
		for _, lang := range languages {
			e.languages[lang] = true
		}
	}
}

// WithLogger overrides the Engine's default stderr warning-level logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) { e.logger = logger }
}

// WithWorkers fixes the extraction worker pool size. Tests that want
// deterministic single-goroutine extraction should pass WithWorkers(1).
func WithWorkers(n int) Option {
	return func(e *Engine) { e.workers = n }
}

// WithExclude skips files whose path, relative to the indexed directory,
// matches any of the given glob patterns (filepath.Match syntax, evaluated
// segment by segment against the full relative path).
func WithExclude(patterns ...string) Option {
	return func(e *Engine) { e.exclude = patterns }
}

// WithMaxFileSize skips files larger than n bytes. Zero (the default)
// means no limit.
func WithMaxFileSize(n int64) Option {
	return func(e *Engine) { e.maxSize = n }
}

// WithStreaming switches Phase 2b from batch mode (collect every extracted
// file, then write each) to streaming mode (a writer drains accumulated
// files in batches of WithBatchSize as extraction produces them, bounding
// memory to O(batch size) instead of O(file count)). Both modes call the
// same atomic per-file commit and leave identical on-disk state.
func WithStreaming(streaming bool) Option {
	return func(e *Engine) { e.streaming = streaming }
}

// WithBatchSize sets the streaming writer's drain threshold: the number of
// extracted files it accumulates before committing them. Only meaningful
// with WithStreaming(true). n<=0 resets to defaultBatchSize.
func WithBatchSize(n int) Option {
	return func(e *Engine) { e.batchSize = n }
}

// New opens (creating if necessary) the SQLite database at dbPath and
// migrates it to the current schema.
func New(dbPath string, opts ...Option) (*Engine, error) {
	s, err := store.NewStore(dbPath)
	if err != nil {
		return nil, fmt.Errorf("tethys: open store: %w", err)
	}
	if err := s.Migrate(); err != nil {
		s.Close()
		return nil, fmt.Errorf("tethys: migrate: %w", err)
	}

	e := &Engine{
		store:  s,
		logger: slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn})),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Close releases the Engine's database connection.
func (e *Engine) Close() error {
	return e.store.Close()
}

// Store returns the underlying Store for direct access by the query layer.
func (e *Engine) Store() *Store {
	return e.store
}

// Query returns a QueryBuilder over the Engine's store.
func (e *Engine) Query() *QueryBuilder {
	return NewQueryBuilder(e.store)
}

func (e *Engine) allowsLanguage(lang string) bool {
	if len(e.languages) == 0 {
		return true
	}
	return e.languages[lang]
}

// skipDirs names directories Tethys never descends into: build output and
// dependency caches across the ecosystems the pack touches, not just
// Rust/C#. Hidden directories (VCS metadata such as .git) are skipped
// separately by their leading dot.
var skipDirs = map[string]bool{
	"target":       true,
	"bin":          true,
	"obj":          true,
	"build":        true,
	"dist":         true,
	"node_modules": true,
	"vendor":       true,
	"__pycache__":  true,
}

// IndexDirectory discovers every Rust/C# file under dir and runs Phases 1-2c
// (extraction, per-file commit, file-dependency seeding) on each. Call
// Resolve afterward to run Phases 3-5 (cross-file resolution).
func (e *Engine) IndexDirectory(ctx context.Context, dir string) (*IndexReport, error) {
	if err := e.discoverRustCrateRoots(dir); err != nil {
		e.logger.Warn("crate root discovery failed", "dir", dir, "error", err)
	}

	paths, err := e.listFiles(dir)
	if err != nil {
		return nil, fmt.Errorf("tethys: index directory: %w", err)
	}
	return e.IndexFiles(ctx, paths)
}

// discoverRustCrateRoots walks dir for Cargo.toml files and records their
// [lib]/[[bin]] entry points, so rustResolver can later tell "crate::" paths
// from a file's own crate root.
func (e *Engine) discoverRustCrateRoots(dir string) error {
	var roots []resolve.CrateRoot
	err := filepath.WalkDir(dir, func(p string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if p != dir && (strings.HasPrefix(d.Name(), ".") || skipDirs[d.Name()]) {
				return filepath.SkipDir
			}
			return nil
		}
		if d.Name() != "Cargo.toml" {
			return nil
		}
		found, err := resolve.ParseCargoToml(normalizePath(p))
		if err != nil {
			e.logger.Warn("parse Cargo.toml failed", "path", p, "error", err)
			return nil
		}
		roots = append(roots, found...)
		return nil
	})
	e.roots.RustCrateRoots = roots
	return err
}

func normalizePath(p string) string {
	return filepath.ToSlash(p)
}

// listFiles enumerates candidate source files under dir: git-tracked (and
// untracked-but-not-ignored) files first, so .gitignore is respected without
// Tethys reimplementing it, falling back to a plain filesystem walk when dir
// isn't a git repository.
func (e *Engine) listFiles(dir string) ([]string, error) {
	if paths, err := e.gitListFiles(dir); err == nil && len(paths) > 0 {
		return e.filterPaths(dir, paths), nil
	}
	paths, err := e.walkListFiles(dir)
	if err != nil {
		return nil, err
	}
	return e.filterPaths(dir, paths), nil
}

func (e *Engine) filterPaths(dir string, paths []string) []string {
	out := make([]string, 0, len(paths))
	for _, p := range paths {
		lang, ok := extract.LanguageForFile(p)
		if !ok || !e.allowsLanguage(lang) {
			continue
		}
		if e.isExcluded(dir, p) {
			continue
		}
		out = append(out, p)
	}
	return out
}

// isExcluded reports whether p (relative to dir) matches any of the
// Engine's configured exclude glob patterns.
func (e *Engine) isExcluded(dir, p string) bool {
	if len(e.exclude) == 0 {
		return false
	}
	rel, err := filepath.Rel(dir, p)
	if err != nil {
		rel = p
	}
	rel = normalizePath(rel)
	for _, pattern := range e.exclude {
		if matched, _ := filepath.Match(pattern, rel); matched {
			return true
		}
		// "dir/**" should also match anything under dir/, not just a single
		// path segment; filepath.Match has no "**", so fall back to a prefix
		// check on the part before it.
		if before, ok := strings.CutSuffix(pattern, "/**"); ok && strings.HasPrefix(rel, before+"/") {
			return true
		}
	}
	return false
}

// gitListFiles uses git ls-files to discover tracked and untracked (but not
// ignored) files under dir.
func (e *Engine) gitListFiles(dir string) ([]string, error) {
	cmd := exec.Command("git", "ls-files", "--cached", "--others", "--exclude-standard")
	cmd.Dir = dir
	out, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("git ls-files: %w", err)
	}
	var paths []string
	for _, line := range strings.Split(string(out), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		paths = append(paths, normalizePath(filepath.Join(dir, line)))
	}
	return paths, nil
}

// walkListFiles discovers files by walking the filesystem, used as a
// fallback when git is unavailable. Skips hidden directories and skipDirs.
func (e *Engine) walkListFiles(dir string) ([]string, error) {
	var paths []string
	err := filepath.WalkDir(dir, func(p string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if p != dir && (strings.HasPrefix(d.Name(), ".") || skipDirs[d.Name()]) {
				return filepath.SkipDir
			}
			return nil
		}
		paths = append(paths, normalizePath(p))
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk directory: %w", err)
	}
	return paths, nil
}

// FileError records one file's indexing failure. Per-file errors never
// abort a run; they're collected and reported back in the IndexReport.
type FileError struct {
	Path string
	Err  error
}

// IndexReport summarizes one IndexFiles/IndexDirectory call.
type IndexReport struct {
	Indexed int
	Skipped int
	Errors  []FileError
}

// Resolve runs Phases 3-5 against whatever the store currently holds:
// the fixed-point file-dependency pass (plus its C# namespace supplement),
// cross-file reference resolution, and call-graph materialization. It is
// global, not scoped to a particular IndexFiles call — any reference or
// pending dependency invalidated by a prior IndexFiles run is picked up
// here regardless of which call produced it.
func (e *Engine) Resolve(ctx context.Context) error {
	if e.progress != nil {
		e.progress(0, 1, "resolve")
	}
	if err := e.resolveFileDeps(ctx); err != nil {
		return fmt.Errorf("tethys: resolve file deps: %w", err)
	}
	if err := e.resolveReferences(ctx); err != nil {
		return fmt.Errorf("tethys: resolve references: %w", err)
	}
	if err := e.store.MaterializeCallEdges(); err != nil {
		return fmt.Errorf("tethys: materialize call edges: %w", err)
	}
	if e.progress != nil {
		e.progress(1, 1, "resolve")
	}
	return nil
}

// resolveFileDeps drives Phase 3's fixed-point retry of pending_deps against
// the files table: each pass resolves whatever it can and the loop repeats
// until a pass makes no progress. Entries still pending at that point name
// files outside the index (external crates/assemblies, or a genuinely
// missing file), not bugs. Finishes with the C# namespace supplemental
// pass, which needs every file's symbols already stored to build its
// namespace map.
func (e *Engine) resolveFileDeps(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		pending, err := e.store.AllPendingDeps()
		if err != nil {
			return err
		}
		if len(pending) == 0 {
			break
		}
		progressed := false
		for _, pd := range pending {
			target, err := e.store.FileByPath(pd.TargetRelPath)
			if err != nil {
				return err
			}
			if target == nil {
				continue
			}
			if err := e.store.UpsertFileDep(pd.FromFileID, target.ID); err != nil {
				return err
			}
			if err := e.store.DeletePendingDep(pd.ID); err != nil {
				return err
			}
			progressed = true
		}
		if !progressed {
			break
		}
	}
	return e.resolveCSharpNamespaces()
}

// resolveCSharpNamespaces rebuilds the namespace->files map from stored
// module-kind symbols, then re-walks every C# file's using directives
// against it: a using names a namespace, not a file, so it can only resolve
// once every file declaring that namespace has been indexed.
func (e *Engine) resolveCSharpNamespaces() error {
	if !e.allowsLanguage("csharp") {
		return nil
	}
	namespaces, err := resolve.BuildCSharpNamespaces(e.store)
	if err != nil {
		return fmt.Errorf("build csharp namespaces: %w", err)
	}
	e.roots.CSharpNamespace = namespaces

	resolver, ok := resolve.ForLanguage("csharp")
	if !ok {
		return nil
	}
	grammar, ok := extract.GrammarFor("csharp")
	if !ok {
		return nil
	}
	extractor, _ := extract.ForLanguage("csharp")

	files, err := e.store.FilesByLanguage("csharp")
	if err != nil {
		return err
	}
	for _, f := range files {
		content, err := os.ReadFile(f.Path)
		if err != nil {
			e.logger.Warn("csharp namespace pass: read failed", "path", f.Path, "error", err)
			continue
		}
		parser := sitter.NewParser()
		parser.SetLanguage(grammar)
		tree, err := parser.ParseCtx(context.Background(), nil, content)
		if err != nil {
			e.logger.Warn("csharp namespace pass: parse failed", "path", f.Path, "error", err)
			continue
		}
		for _, imp := range extractor.ExtractImports(tree, content) {
			for _, target := range resolver.ResolveImport(f.Path, moduleSegmentsFor("csharp", imp), e.roots) {
				if target == f.Path {
					continue
				}
				targetFile, err := e.store.FileByPath(target)
				if err != nil || targetFile == nil {
					continue
				}
				if err := e.store.UpsertFileDep(f.ID, targetFile.ID); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

// resolveReferences drives Phase 4: every still-unresolved reference is
// matched against its owning file's imports (qualified path, then bare
// name, then glob/namespace fallback). A reference whose owning file has
// no matching import at all is left unresolved rather than falling back to
// a global name search, since an unmatched import means the name genuinely
// isn't reachable from this file's scope.
func (e *Engine) resolveReferences(ctx context.Context) error {
	refs, err := e.store.UnresolvedReferences()
	if err != nil {
		return err
	}
	fileCache := map[store.FileID]*store.File{}
	importCache := map[store.FileID][]*store.Import{}

	for _, ref := range refs {
		if err := ctx.Err(); err != nil {
			return err
		}
		if ref.ReferenceName == nil {
			continue
		}
		f, ok := fileCache[ref.FileID]
		if !ok {
			f, err = e.store.FileByID(ref.FileID)
			if err != nil {
				return err
			}
			fileCache[ref.FileID] = f
		}
		if f == nil {
			continue
		}
		imports, ok := importCache[ref.FileID]
		if !ok {
			imports, err = e.store.ImportsByFile(ref.FileID)
			if err != nil {
				return err
			}
			importCache[ref.FileID] = imports
		}

		sym, err := e.resolveOneReference(f, *ref.ReferenceName, imports)
		if err != nil {
			return err
		}
		if sym != nil {
			if err := e.store.ResolveReferenceByID(ref.ID, sym.ID); err != nil {
				return err
			}
		}
	}
	return nil
}

func (e *Engine) resolveOneReference(f *store.File, referenceName string, imports []*store.Import) (*store.Symbol, error) {
	resolver, ok := resolve.ForLanguage(f.Language)
	if !ok {
		return nil, nil
	}
	sep := separatorFor(f.Language)
	segments := strings.Split(referenceName, sep)
	simpleName := segments[len(segments)-1]
	prefix := segments[:len(segments)-1]

	var globImport *store.Import
	for _, imp := range imports {
		if imp.ImportedName == "*" {
			globImport = imp
			continue
		}
		localName := imp.ImportedName
		if imp.Alias != nil && *imp.Alias != "" {
			localName = *imp.Alias
		}

		var matches bool
		if len(prefix) > 0 {
			matches = localName == prefix[0]
		} else {
			matches = localName == simpleName
		}
		if !matches {
			continue
		}

		for _, target := range resolver.ResolveImport(f.Path, importSegments(f.Language, imp), e.roots) {
			targetFile, err := e.store.FileByPath(target)
			if err != nil || targetFile == nil {
				continue
			}
			if len(prefix) > 0 {
				if syms, err := e.store.SymbolsByQualifiedNameInFile(targetFile.ID, referenceName); err == nil && len(syms) > 0 {
					return syms[0], nil
				}
			}
			if syms, err := e.store.SymbolsByNameInFile(targetFile.ID, simpleName); err == nil && len(syms) > 0 {
				return syms[0], nil
			}
		}
	}

	if globImport != nil {
		for _, target := range resolver.ResolveImport(f.Path, importSegments(f.Language, globImport), e.roots) {
			targetFile, err := e.store.FileByPath(target)
			if err != nil || targetFile == nil {
				continue
			}
			if syms, err := e.store.SymbolsByNameInFile(targetFile.ID, simpleName); err == nil && len(syms) > 0 {
				return syms[0], nil
			}
		}
	}

	return nil, nil
}

// importSegments assembles the segments passed to Resolver.ResolveImport
// from an already-stored import row (Phase 4's view, where Path and
// ImportedName have already been joined into Source).
func importSegments(lang string, imp *store.Import) []string {
	segs := strings.Split(imp.Source, separatorFor(lang))
	if lang == "csharp" {
		segs = append(segs, imp.ImportedName)
	}
	return segs
}

func separatorFor(lang string) string {
	if lang == "csharp" {
		return "."
	}
	return "::"
}

// qualifiedRefName joins a reference's path and name the way its source
// language would write it, producing the same string form stored imports
// use (see separatorFor), so Phase 4 can split and match both uniformly.
func qualifiedRefName(lang string, ref extract.Reference) string {
	if len(ref.Path) == 0 {
		return ref.Name
	}
	return strings.Join(ref.Path, separatorFor(lang)) + separatorFor(lang) + ref.Name
}

// moduleSegmentsFor assembles the segments passed to Resolver.ResolveImport
// from a freshly extracted import. Rust's `use crate::storage::issue::Issue;`
// splits into Path=[crate, storage, issue] and ImportedName=Issue, where
// ImportedName is the item pulled out of the resolved module, not a path
// segment. C#'s `using System.Collections.Generic;` has no such split: the
// whole dotted name is the namespace, so ImportedName must be appended to
// Path to get the full segment list.
func moduleSegmentsFor(lang string, imp extract.Import) []string {
	if lang == "csharp" {
		return append(append([]string(nil), imp.Path...), imp.ImportedName)
	}
	return imp.Path
}

// referencedNames flattens a file's references into the set of simple names
// they mention, anywhere in a Name or a Path segment. Used by the L2
// liveness check: an import only earns a file-dep edge if something in the
// file actually names it.
func referencedNames(refs []extract.Reference) map[string]bool {
	out := make(map[string]bool, len(refs))
	for _, r := range refs {
		out[r.Name] = true
		for _, seg := range r.Path {
			out[seg] = true
		}
	}
	return out
}

func localImportName(imp extract.Import) string {
	if imp.Alias != "" {
		return imp.Alias
	}
	return imp.ImportedName
}
