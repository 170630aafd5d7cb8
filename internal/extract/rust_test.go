package extract

import (
	"context"
	"testing"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/rust"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func parseRust(t *testing.T, src string) *sitter.Tree {
	t.Helper()
	parser := sitter.NewParser()
	parser.SetLanguage(rust.GetLanguage())
	tree, err := parser.ParseCtx(context.Background(), nil, []byte(src))
	require.NoError(t, err)
	return tree
}

func TestRustExtractSymbols_SimplePrivateFunction(t *testing.T) {
	src := "fn hello() {}"
	tree := parseRust(t, src)

	syms := (rustExtractor{}).ExtractSymbols(tree, []byte(src))

	require.Len(t, syms, 1)
	assert.Equal(t, "hello", syms[0].Name)
	assert.Equal(t, "function", syms[0].Kind)
	assert.Equal(t, "private", syms[0].Visibility)
}

func TestRustExtractSymbols_PublicFunction(t *testing.T) {
	src := "pub fn hello() {}"
	tree := parseRust(t, src)

	syms := (rustExtractor{}).ExtractSymbols(tree, []byte(src))

	require.Len(t, syms, 1)
	assert.Equal(t, "public", syms[0].Visibility)
}

func TestRustExtractSymbols_SignatureDetailsCapturesModifiersAndParams(t *testing.T) {
	src := `pub async unsafe fn transform<T: Clone>(&self, input: T, count: usize) -> Option<T> {}`
	tree := parseRust(t, src)

	syms := (rustExtractor{}).ExtractSymbols(tree, []byte(src))

	require.Len(t, syms, 1)
	sig := syms[0].SignatureDetails
	require.NotNil(t, sig)
	assert.True(t, sig.IsAsync)
	assert.True(t, sig.IsUnsafe)
	assert.False(t, sig.IsConst)
	require.NotNil(t, sig.Generics)
	assert.Contains(t, *sig.Generics, "T")
	require.NotNil(t, sig.ReturnType)
	assert.Contains(t, *sig.ReturnType, "Option")

	var names []string
	for _, p := range sig.Parameters {
		names = append(names, p.Name)
	}
	assert.Contains(t, names, "input")
	assert.Contains(t, names, "count")
}

func TestRustExtractSymbols_SignatureDetailsPlainFunctionHasNoModifiers(t *testing.T) {
	src := "fn add(a: i32, b: i32) -> i32 { a + b }"
	tree := parseRust(t, src)

	syms := (rustExtractor{}).ExtractSymbols(tree, []byte(src))

	require.Len(t, syms, 1)
	sig := syms[0].SignatureDetails
	require.NotNil(t, sig)
	assert.False(t, sig.IsAsync)
	assert.False(t, sig.IsUnsafe)
	assert.False(t, sig.IsConst)
	assert.Nil(t, sig.Generics)
	require.Len(t, sig.Parameters, 2)
	assert.Equal(t, "a", sig.Parameters[0].Name)
	assert.Equal(t, "b", sig.Parameters[1].Name)
	require.NotNil(t, sig.Parameters[0].TypeAnnotation)
	assert.Equal(t, "i32", *sig.Parameters[0].TypeAnnotation)
}

func TestRustExtractSymbols_ImplMethodsGetParentName(t *testing.T) {
	src := `
struct Widget;

impl Widget {
    pub fn new() -> Self {
        Widget
    }
}
`
	tree := parseRust(t, src)
	syms := (rustExtractor{}).ExtractSymbols(tree, []byte(src))

	var method *Symbol
	for i := range syms {
		if syms[i].Name == "new" {
			method = &syms[i]
		}
	}
	require.NotNil(t, method)
	assert.Equal(t, "method", method.Kind)
	assert.Equal(t, "Widget", method.ParentName)
	assert.Equal(t, "Widget::new", method.QualifiedName)
}

func TestRustExtractImports_SimpleUse(t *testing.T) {
	src := `use std::collections::HashMap;`
	tree := parseRust(t, src)

	imports := (rustExtractor{}).ExtractImports(tree, []byte(src))

	require.Len(t, imports, 1)
	assert.Equal(t, []string{"std", "collections"}, imports[0].Path)
	assert.Equal(t, "HashMap", imports[0].ImportedName)
}

func TestRustExtractImports_ListUse(t *testing.T) {
	src := `use std::collections::{HashMap, HashSet};`
	tree := parseRust(t, src)

	imports := (rustExtractor{}).ExtractImports(tree, []byte(src))

	require.Len(t, imports, 2)
	names := []string{imports[0].ImportedName, imports[1].ImportedName}
	assert.Contains(t, names, "HashMap")
	assert.Contains(t, names, "HashSet")
}

func TestRustExtractImports_GlobUse(t *testing.T) {
	src := `use crate::foo::*;`
	tree := parseRust(t, src)

	imports := (rustExtractor{}).ExtractImports(tree, []byte(src))

	require.Len(t, imports, 1)
	assert.True(t, imports[0].IsGlob)
	assert.Equal(t, []string{"crate", "foo"}, imports[0].Path)
}

func TestRustExtractImports_AliasUse(t *testing.T) {
	src := `use std::collections::HashMap as Map;`
	tree := parseRust(t, src)

	imports := (rustExtractor{}).ExtractImports(tree, []byte(src))

	require.Len(t, imports, 1)
	assert.Equal(t, "HashMap", imports[0].ImportedName)
	assert.Equal(t, "Map", imports[0].Alias)
}

func TestRustExtractReferences_SimpleCall(t *testing.T) {
	src := `
fn caller() {
    helper();
}
`
	tree := parseRust(t, src)
	refs := (rustExtractor{}).ExtractReferences(tree, []byte(src))

	require.Len(t, refs, 1)
	assert.Equal(t, "helper", refs[0].Name)
	assert.Equal(t, ReferenceCall, refs[0].Kind)
	assert.NotEmpty(t, refs[0].ContainingFuncName)
}

func TestRustExtractReferences_StructConstructor(t *testing.T) {
	src := `
fn make() -> Widget {
    Widget { field: 1 }
}
`
	tree := parseRust(t, src)
	refs := (rustExtractor{}).ExtractReferences(tree, []byte(src))

	var ctor *Reference
	for i := range refs {
		if refs[i].Kind == ReferenceConstruct {
			ctor = &refs[i]
		}
	}
	require.NotNil(t, ctor)
	assert.Equal(t, "Widget", ctor.Name)
}

func TestRustExtractReferences_UnwrapLooksLikeAnyOtherCall(t *testing.T) {
	src := `
fn risky() {
    maybe_value().unwrap();
}
`
	tree := parseRust(t, src)
	refs := (rustExtractor{}).ExtractReferences(tree, []byte(src))

	var names []string
	for _, r := range refs {
		names = append(names, r.Name)
	}
	assert.Contains(t, names, "unwrap")
}
