// Package extract holds the pure, database-free symbol/import/reference
// extractors that turn a parsed tree-sitter tree into the intermediate
// shapes the indexing pipeline writes to storage. One Extractor per
// language family; dispatch is a static table keyed by language tag, the
// same shape canopy uses for its grammar registry.
package extract

import (
	"path/filepath"
	"strings"
	"sync"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/csharp"
	"github.com/smacker/go-tree-sitter/rust"
)

// Span is a half-open (line, col) range, 1-indexed lines and columns to
// match the storage layer's Symbol/Reference fields.
type Span struct {
	StartLine, StartCol int
	EndLine, EndCol     int
}

// ReferenceKind mirrors the extraction-time reference taxonomy; Call is
// also how unwrap()/expect() panic points are tagged (by name, not kind).
type ReferenceKind string

const (
	ReferenceCall        ReferenceKind = "call"
	ReferenceType        ReferenceKind = "type"
	ReferenceConstruct   ReferenceKind = "construct"
	ReferenceInherit     ReferenceKind = "inherit"
	ReferenceFieldAccess ReferenceKind = "field_access"
)

// Symbol is one extracted definition site, before a file id or generated
// symbol id exists.
type Symbol struct {
	Name             string
	Kind             string // function, method, struct, class, enum, trait, interface, const, static, module, type_alias, macro
	Span             Span
	Signature        string
	SignatureDetails *FunctionSignature
	Visibility       string
	ParentName       string // simple name of the lexically enclosing symbol, if any
	QualifiedName    string
	ModulePath       string
	IsTest           bool
}

// FunctionSignature is the structured decomposition of a function/method
// signature extracted from its parse tree: parameter list, return type, and
// modifiers. Mirrors store.FunctionSignature; kept as its own type here so
// extract stays database-free.
type FunctionSignature struct {
	Parameters []Parameter
	ReturnType *string
	IsAsync    bool
	IsUnsafe   bool
	IsConst    bool
	Generics   *string
}

// Parameter is one function parameter: a name and, where the source
// annotates one, its type.
type Parameter struct {
	Name           string
	TypeAnnotation *string
}

// Reference is one extracted use site.
type Reference struct {
	Name               string // simple or qualified name being referenced
	Path               []string
	Kind               ReferenceKind
	Span               Span
	ContainingFuncName string // display label ("line:col") for the innermost enclosing function/method, if any
	ContainingSpan     *Span  // exact span of that enclosing function/method symbol, for span-map lookup
}

// Import is one extracted import/use/using statement.
type Import struct {
	Path         []string
	ImportedName string // "*" for glob imports
	IsGlob       bool
	Alias        string
	Line         int
}

// Extractor is pure over its inputs: parsing and extraction must not touch
// the database. The indexing pipeline is responsible for turning these
// intermediate shapes into store.Symbol/store.Reference/store.Import rows.
type Extractor interface {
	ExtractSymbols(tree *sitter.Tree, content []byte) []Symbol
	ExtractImports(tree *sitter.Tree, content []byte) []Import
	ExtractReferences(tree *sitter.Tree, content []byte) []Reference
}

var extToLanguage = map[string]string{
	".rs": "rust",
	".cs": "csharp",
}

// LanguageForFile returns the canonical language name for a file path based
// on its extension. Returns ("", false) if unsupported.
func LanguageForFile(path string) (string, bool) {
	lang, ok := extToLanguage[strings.ToLower(filepath.Ext(path))]
	return lang, ok
}

var (
	langToGrammar map[string]*sitter.Language
	langToExtract map[string]Extractor
	registryOnce  sync.Once
)

func initRegistry() {
	registryOnce.Do(func() {
		langToGrammar = map[string]*sitter.Language{
			"rust":   rust.GetLanguage(),
			"csharp": csharp.GetLanguage(),
		}
		langToExtract = map[string]Extractor{
			"rust":   rustExtractor{},
			"csharp": csharpExtractor{},
		}
	})
}

// GrammarFor returns the tree-sitter Language for a canonical language name.
func GrammarFor(lang string) (*sitter.Language, bool) {
	initRegistry()
	l, ok := langToGrammar[lang]
	return l, ok
}

// ForLanguage returns the Extractor for a canonical language name.
func ForLanguage(lang string) (Extractor, bool) {
	initRegistry()
	e, ok := langToExtract[lang]
	return e, ok
}

// text returns a node's source text.
func text(n *sitter.Node, content []byte) string {
	if n == nil {
		return ""
	}
	return n.Content(content)
}

func nodeSpan(n *sitter.Node) Span {
	start, end := n.StartPoint(), n.EndPoint()
	return Span{
		StartLine: int(start.Row) + 1,
		StartCol:  int(start.Column) + 1,
		EndLine:   int(end.Row) + 1,
		EndCol:    int(end.Column) + 1,
	}
}

func looksLikeTest(name, signature string) bool {
	return strings.Contains(signature, "#[test]") || strings.HasPrefix(name, "test_") || strings.Contains(name, "Test")
}
