package extract

import (
	"fmt"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
)

// rustExtractor walks a tree-sitter-rust parse tree. Node kind strings are
// tree-sitter-rust's grammar.js names; see the node kinds table below.
type rustExtractor struct{}

const (
	rsFunctionItem       = "function_item"
	rsStructItem         = "struct_item"
	rsEnumItem           = "enum_item"
	rsTraitItem          = "trait_item"
	rsImplItem           = "impl_item"
	rsConstItem          = "const_item"
	rsStaticItem         = "static_item"
	rsTypeItem           = "type_item"
	rsMacroDefinition    = "macro_definition"
	rsModItem            = "mod_item"
	rsUseDeclaration     = "use_declaration"
	rsDeclarationList    = "declaration_list"
	rsVisibilityModifier = "visibility_modifier"
	rsTypeIdentifier     = "type_identifier"
	rsGenericType        = "generic_type"
	rsCallExpression     = "call_expression"
	rsStructExpression   = "struct_expression"
	rsScopedIdentifier   = "scoped_identifier"
	rsScopedTypeIdent    = "scoped_type_identifier"
	rsFieldExpression    = "field_expression"
	rsIdentifier         = "identifier"
	rsCrate              = "crate"
	rsSelf               = "self"
	rsSuper              = "super"
	rsScopedUseList      = "scoped_use_list"
	rsUseAsClause        = "use_as_clause"
	rsUseWildcard        = "use_wildcard"
	rsUseList            = "use_list"
	rsFunctionModifiers  = "function_modifiers"
	rsTypeParameters     = "type_parameters"
	rsParameter          = "parameter"
	rsSelfParameter      = "self_parameter"
	rsAsync              = "async"
	rsUnsafe             = "unsafe"
	rsConst              = "const"
)

func (rustExtractor) ExtractSymbols(tree *sitter.Tree, content []byte) []Symbol {
	var out []Symbol
	rustExtractSymbolsRecursive(tree.RootNode(), content, "", &out)
	return out
}

// rustExtractSymbolsRecursive walks the tree collecting top-level-ish item
// definitions. Methods inside an impl block are emitted with kind "method"
// and parentName set to the impl's target type, mirroring how the original
// Rust extractor flattens impl bodies into the same symbol list as free
// functions.
func rustExtractSymbolsRecursive(n *sitter.Node, content []byte, parentName string, out *[]Symbol) {
	if n == nil {
		return
	}
	switch n.Type() {
	case rsFunctionItem:
		if sym, ok := rustExtractFunction(n, content, "function", parentName); ok {
			*out = append(*out, sym)
		}
		return
	case rsStructItem:
		if sym, ok := rustExtractNamed(n, content, "struct"); ok {
			*out = append(*out, sym)
		}
	case rsEnumItem:
		if sym, ok := rustExtractNamed(n, content, "enum"); ok {
			*out = append(*out, sym)
		}
	case rsTraitItem:
		if sym, ok := rustExtractNamed(n, content, "trait"); ok {
			*out = append(*out, sym)
		}
	case rsConstItem:
		if sym, ok := rustExtractNamed(n, content, "const"); ok {
			*out = append(*out, sym)
		}
	case rsStaticItem:
		if sym, ok := rustExtractNamed(n, content, "static"); ok {
			*out = append(*out, sym)
		}
	case rsTypeItem:
		if sym, ok := rustExtractNamed(n, content, "type_alias"); ok {
			*out = append(*out, sym)
		}
	case rsMacroDefinition:
		if sym, ok := rustExtractNamed(n, content, "macro"); ok {
			sym.Visibility = "public"
			*out = append(*out, sym)
		}
	case rsModItem:
		if sym, ok := rustExtractNamed(n, content, "module"); ok {
			*out = append(*out, sym)
		}
	case rsImplItem:
		implType := rustFindImplType(n, content)
		for i := 0; i < int(n.ChildCount()); i++ {
			child := n.Child(i)
			if child.Type() != rsDeclarationList {
				continue
			}
			for j := 0; j < int(child.ChildCount()); j++ {
				item := child.Child(j)
				if item.Type() == rsFunctionItem {
					if sym, ok := rustExtractFunction(item, content, "method", implType); ok {
						*out = append(*out, sym)
					}
				} else {
					rustExtractSymbolsRecursive(item, content, implType, out)
				}
			}
		}
		return
	}

	for i := 0; i < int(n.ChildCount()); i++ {
		rustExtractSymbolsRecursive(n.Child(i), content, parentName, out)
	}
}

func rustExtractFunction(n *sitter.Node, content []byte, kind, parentName string) (Symbol, bool) {
	nameNode := n.ChildByFieldName("name")
	if nameNode == nil {
		return Symbol{}, false
	}
	name := text(nameNode, content)
	sig := rustFunctionSignature(n, content)
	sym := Symbol{
		Name:             name,
		Kind:             kind,
		Span:             nodeSpan(n),
		Signature:        sig,
		SignatureDetails: rustSignatureDetails(n, content),
		Visibility:       rustVisibility(n, content),
		ParentName:       parentName,
		IsTest:           rustHasTestAttribute(n, content),
	}
	if parentName != "" {
		sym.QualifiedName = parentName + "::" + name
	} else {
		sym.QualifiedName = name
	}
	return sym, true
}

func rustExtractNamed(n *sitter.Node, content []byte, kind string) (Symbol, bool) {
	nameNode := n.ChildByFieldName("name")
	if nameNode == nil {
		return Symbol{}, false
	}
	name := text(nameNode, content)
	return Symbol{
		Name:          name,
		Kind:          kind,
		Span:          nodeSpan(n),
		Visibility:    rustVisibility(n, content),
		QualifiedName: name,
	}, true
}

func rustVisibility(n *sitter.Node, content []byte) string {
	for i := 0; i < int(n.ChildCount()); i++ {
		child := n.Child(i)
		if child.Type() != rsVisibilityModifier {
			continue
		}
		t := text(child, content)
		switch {
		case t == "pub":
			return "public"
		case strings.HasPrefix(t, "pub(crate)"):
			return "crate"
		case strings.HasPrefix(t, "pub(super)"):
			return "module"
		case strings.HasPrefix(t, "pub(in"):
			return "module"
		default:
			return "public"
		}
	}
	return "private"
}

func rustFunctionSignature(n *sitter.Node, content []byte) string {
	params := n.ChildByFieldName("parameters")
	nameNode := n.ChildByFieldName("name")
	if params == nil || nameNode == nil {
		return ""
	}
	name := text(nameNode, content)
	paramsText := text(params, content)
	if rt := n.ChildByFieldName("return_type"); rt != nil {
		return fmt.Sprintf("fn %s%s %s", name, paramsText, text(rt, content))
	}
	return fmt.Sprintf("fn %s%s", name, paramsText)
}

// rustSignatureDetails decomposes a function_item's parameters, return
// type, and async/unsafe/const modifiers into a structured signature.
func rustSignatureDetails(n *sitter.Node, content []byte) *FunctionSignature {
	paramsNode := n.ChildByFieldName("parameters")
	if paramsNode == nil {
		return nil
	}

	fs := &FunctionSignature{Parameters: rustExtractParameters(paramsNode, content)}
	if rt := n.ChildByFieldName("return_type"); rt != nil {
		s := text(rt, content)
		fs.ReturnType = &s
	}

	for i := 0; i < int(n.ChildCount()); i++ {
		child := n.Child(i)
		switch child.Type() {
		case rsFunctionModifiers:
			for j := 0; j < int(child.ChildCount()); j++ {
				switch child.Child(j).Type() {
				case rsAsync:
					fs.IsAsync = true
				case rsUnsafe:
					fs.IsUnsafe = true
				case rsConst:
					fs.IsConst = true
				}
			}
		case rsTypeParameters:
			s := text(child, content)
			fs.Generics = &s
		}
	}
	return fs
}

// rustExtractParameters walks a parameters node collecting each regular
// parameter and &self/&mut self/self receiver in source order.
func rustExtractParameters(paramsNode *sitter.Node, content []byte) []Parameter {
	var params []Parameter
	for i := 0; i < int(paramsNode.ChildCount()); i++ {
		child := paramsNode.Child(i)
		switch child.Type() {
		case rsParameter:
			pattern := child.ChildByFieldName("pattern")
			if pattern == nil {
				continue
			}
			p := Parameter{Name: text(pattern, content)}
			if t := child.ChildByFieldName("type"); t != nil {
				s := text(t, content)
				p.TypeAnnotation = &s
			}
			params = append(params, p)
		case rsSelfParameter:
			params = append(params, Parameter{Name: text(child, content)})
		}
	}
	return params
}

// rustHasTestAttribute reports whether a preceding sibling attribute_item
// mentions "test" (#[test], #[tokio::test], ...), falling back to the
// looksLikeTest name heuristic when none does. tree-sitter-rust attaches
// attributes as prior siblings, not children, of the item they decorate.
func rustHasTestAttribute(n *sitter.Node, content []byte) bool {
	prev := n.PrevSibling()
	for prev != nil {
		if prev.Type() == "attribute_item" && strings.Contains(text(prev, content), "test") {
			return true
		}
		if prev.Type() != "attribute_item" && prev.Type() != "line_comment" {
			break
		}
		prev = prev.PrevSibling()
	}
	return looksLikeTest(text(n.ChildByFieldName("name"), content), "")
}

func rustFindImplType(n *sitter.Node, content []byte) string {
	for i := 0; i < int(n.ChildCount()); i++ {
		child := n.Child(i)
		switch child.Type() {
		case rsTypeIdentifier:
			return text(child, content)
		case rsGenericType:
			if t := child.ChildByFieldName("type"); t != nil {
				return text(t, content)
			}
		}
	}
	return ""
}

func (rustExtractor) ExtractImports(tree *sitter.Tree, content []byte) []Import {
	var out []Import
	rustExtractUsesRecursive(tree.RootNode(), content, &out)
	return out
}

func rustExtractUsesRecursive(n *sitter.Node, content []byte, out *[]Import) {
	if n == nil {
		return
	}
	if n.Type() == rsUseDeclaration {
		if imp, ok := rustParseUseDeclaration(n, content); ok {
			*out = append(*out, imp...)
		}
		return
	}
	for i := 0; i < int(n.ChildCount()); i++ {
		rustExtractUsesRecursive(n.Child(i), content, out)
	}
}

func rustParseUseDeclaration(n *sitter.Node, content []byte) ([]Import, bool) {
	line := int(n.StartPoint().Row) + 1
	for i := 0; i < int(n.ChildCount()); i++ {
		child := n.Child(i)
		switch child.Type() {
		case rsScopedIdentifier:
			path, name := rustParseScopedIdentifier(child, content)
			return []Import{{Path: path, ImportedName: name, Line: line}}, true
		case rsScopedUseList:
			return rustParseScopedUseList(child, content, line), true
		case rsUseAsClause:
			if imp, ok := rustParseUseAsClause(child, content, line); ok {
				return []Import{imp}, true
			}
		case rsIdentifier, rsCrate, rsSelf, rsSuper:
			return []Import{{ImportedName: text(child, content), Line: line}}, true
		case rsUseWildcard:
			return []Import{rustParseUseWildcard(child, content, line)}, true
		case rsUseList:
			var imports []Import
			for _, name := range rustCollectUseListNames(child, content) {
				imports = append(imports, Import{ImportedName: name, Line: line})
			}
			return imports, true
		}
	}
	return nil, false
}

func rustParseUseWildcard(n *sitter.Node, content []byte, line int) Import {
	var path []string
	for i := 0; i < int(n.ChildCount()); i++ {
		child := n.Child(i)
		if child.Type() == rsScopedIdentifier {
			rustCollectScopedPath(child, content, &path)
			break
		}
	}
	return Import{Path: path, IsGlob: true, ImportedName: "*", Line: line}
}

// rustParseScopedIdentifier splits a path like std::collections::HashMap
// into its leading segments and final name.
func rustParseScopedIdentifier(n *sitter.Node, content []byte) ([]string, string) {
	var segments []string
	rustCollectScopedPath(n, content, &segments)
	if len(segments) == 0 {
		return nil, ""
	}
	name := segments[len(segments)-1]
	return segments[:len(segments)-1], name
}

func rustCollectScopedPath(n *sitter.Node, content []byte, segments *[]string) {
	switch n.Type() {
	case rsScopedIdentifier:
		if p := n.ChildByFieldName("path"); p != nil {
			rustCollectScopedPath(p, content, segments)
		}
		if nm := n.ChildByFieldName("name"); nm != nil {
			*segments = append(*segments, text(nm, content))
		}
	case rsIdentifier, rsCrate, rsSelf, rsSuper:
		*segments = append(*segments, text(n, content))
	}
}

func rustParseScopedUseList(n *sitter.Node, content []byte, line int) []Import {
	var path []string
	if p := n.ChildByFieldName("path"); p != nil {
		rustCollectScopedPath(p, content, &path)
	}
	listNode := n.ChildByFieldName("list")
	if listNode == nil {
		return []Import{{Path: path, Line: line}}
	}
	if listNode.Type() == rsUseWildcard {
		return []Import{{Path: path, IsGlob: true, ImportedName: "*", Line: line}}
	}
	names := rustCollectUseListNames(listNode, content)
	imports := make([]Import, 0, len(names))
	for _, name := range names {
		imports = append(imports, Import{Path: path, ImportedName: name, Line: line})
	}
	if len(imports) == 0 {
		imports = append(imports, Import{Path: path, Line: line})
	}
	return imports
}

func rustCollectUseListNames(n *sitter.Node, content []byte) []string {
	var names []string
	for i := 0; i < int(n.ChildCount()); i++ {
		child := n.Child(i)
		switch child.Type() {
		case rsIdentifier, rsCrate, rsSelf, rsSuper:
			names = append(names, text(child, content))
		case rsScopedIdentifier:
			_, name := rustParseScopedIdentifier(child, content)
			if name != "" {
				names = append(names, name)
			}
		}
	}
	return names
}

func rustParseUseAsClause(n *sitter.Node, content []byte, line int) (Import, bool) {
	pathNode := n.ChildByFieldName("path")
	aliasNode := n.ChildByFieldName("alias")
	if pathNode == nil || aliasNode == nil {
		return Import{}, false
	}
	alias := text(aliasNode, content)
	var path []string
	var name string
	if pathNode.Type() == rsScopedIdentifier {
		path, name = rustParseScopedIdentifier(pathNode, content)
	} else {
		name = text(pathNode, content)
	}
	return Import{Path: path, ImportedName: name, Alias: alias, Line: line}, true
}

func (rustExtractor) ExtractReferences(tree *sitter.Tree, content []byte) []Reference {
	var out []Reference
	rustExtractReferencesRecursive(tree.RootNode(), content, nil, &out)
	return out
}

func rustExtractReferencesRecursive(n *sitter.Node, content []byte, containing *Span, out *[]Reference) {
	if n == nil {
		return
	}
	switch n.Type() {
	case rsCallExpression:
		if ref, ok := rustExtractCallReference(n, content, containing); ok {
			*out = append(*out, ref)
		}
	case rsStructExpression:
		if ref, ok := rustExtractStructConstructor(n, content, containing); ok {
			*out = append(*out, ref)
		}
	case rsTypeIdentifier:
		if !rustIsTypeDefinitionContext(n) {
			*out = append(*out, Reference{
				Name:               text(n, content),
				Kind:               ReferenceType,
				Span:               nodeSpan(n),
				ContainingFuncName: containingFuncName(containing), ContainingSpan: containing,
			})
		}
	case rsFunctionItem:
		fnSpan := nodeSpan(n)
		for i := 0; i < int(n.ChildCount()); i++ {
			rustExtractReferencesRecursive(n.Child(i), content, &fnSpan, out)
		}
		return
	case rsImplItem:
		for i := 0; i < int(n.ChildCount()); i++ {
			child := n.Child(i)
			if child.Type() == rsDeclarationList {
				for j := 0; j < int(child.ChildCount()); j++ {
					item := child.Child(j)
					if item.Type() == rsFunctionItem {
						methodSpan := nodeSpan(item)
						for k := 0; k < int(item.ChildCount()); k++ {
							rustExtractReferencesRecursive(item.Child(k), content, &methodSpan, out)
						}
					} else {
						rustExtractReferencesRecursive(item, content, containing, out)
					}
				}
			} else {
				rustExtractReferencesRecursive(child, content, containing, out)
			}
		}
		return
	case rsStructItem, rsTraitItem:
		for i := 0; i < int(n.ChildCount()); i++ {
			rustExtractReferencesRecursive(n.Child(i), content, containing, out)
		}
		return
	}

	for i := 0; i < int(n.ChildCount()); i++ {
		rustExtractReferencesRecursive(n.Child(i), content, containing, out)
	}
}

func containingFuncName(span *Span) string {
	if span == nil {
		return ""
	}
	return fmt.Sprintf("%d:%d", span.StartLine, span.StartCol)
}

func rustExtractCallReference(n *sitter.Node, content []byte, containing *Span) (Reference, bool) {
	fn := n.ChildByFieldName("function")
	if fn == nil {
		return Reference{}, false
	}
	switch fn.Type() {
	case rsIdentifier:
		return Reference{
			Name: text(fn, content), Kind: ReferenceCall,
			Span: nodeSpan(fn), ContainingFuncName: containingFuncName(containing), ContainingSpan: containing,
		}, true
	case rsScopedIdentifier:
		path, name := rustParseScopedIdentifier(fn, content)
		return Reference{
			Name: name, Path: path, Kind: ReferenceCall,
			Span: nodeSpan(fn), ContainingFuncName: containingFuncName(containing), ContainingSpan: containing,
		}, true
	case rsFieldExpression:
		field := fn.ChildByFieldName("field")
		if field == nil {
			return Reference{}, false
		}
		return Reference{
			Name: text(field, content), Kind: ReferenceCall,
			Span: nodeSpan(field), ContainingFuncName: containingFuncName(containing), ContainingSpan: containing,
		}, true
	}
	return Reference{}, false
}

func rustExtractStructConstructor(n *sitter.Node, content []byte, containing *Span) (Reference, bool) {
	nameNode := n.ChildByFieldName("name")
	if nameNode == nil {
		return Reference{}, false
	}
	switch nameNode.Type() {
	case rsTypeIdentifier:
		return Reference{
			Name: text(nameNode, content), Kind: ReferenceConstruct,
			Span: nodeSpan(nameNode), ContainingFuncName: containingFuncName(containing), ContainingSpan: containing,
		}, true
	case rsScopedIdentifier, rsScopedTypeIdent:
		path, name := rustParseScopedIdentifier(nameNode, content)
		return Reference{
			Name: name, Path: path, Kind: ReferenceConstruct,
			Span: nodeSpan(nameNode), ContainingFuncName: containingFuncName(containing), ContainingSpan: containing,
		}, true
	}
	return Reference{}, false
}

// rustIsTypeDefinitionContext reports whether a type_identifier names a
// definition (struct/enum/trait/type-alias) rather than referencing one.
func rustIsTypeDefinitionContext(n *sitter.Node) bool {
	current := n
	for {
		parent := current.Parent()
		if parent == nil {
			return false
		}
		switch parent.Type() {
		case rsStructItem, rsEnumItem, rsTraitItem, rsTypeItem:
			if nameNode := parent.ChildByFieldName("name"); nameNode != nil && nameNode == current {
				return true
			}
		case rsImplItem:
			return false
		}
		current = parent
	}
}
