package extract

import (
	"fmt"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
)

// csharpExtractor walks a tree-sitter-c-sharp parse tree. Node kind strings
// are tree-sitter-c-sharp's grammar.js names; see the node kinds table
// below.
type csharpExtractor struct{}

const (
	csClassDecl          = "class_declaration"
	csStructDecl         = "struct_declaration"
	csInterfaceDecl      = "interface_declaration"
	csEnumDecl           = "enum_declaration"
	csRecordDecl         = "record_declaration"
	csMethodDecl         = "method_declaration"
	csConstructorDecl    = "constructor_declaration"
	csNamespaceDecl      = "namespace_declaration"
	csFileScopedNsDecl   = "file_scoped_namespace_declaration"
	csUsingDirective     = "using_directive"
	csInvocationExpr     = "invocation_expression"
	csObjectCreationExpr = "object_creation_expression"
	csMemberAccessExpr   = "member_access_expression"
	csIdentifier         = "identifier"
	csQualifiedName      = "qualified_name"
	csGenericName        = "generic_name"
	csDeclarationList    = "declaration_list"
	csParameterList      = "parameter_list"
	csParameter          = "parameter"
	csModifier           = "modifier"
	csNameEquals         = "name_equals"
)

func (csharpExtractor) ExtractSymbols(tree *sitter.Tree, content []byte) []Symbol {
	var out []Symbol
	csharpExtractSymbolsRecursive(tree.RootNode(), content, "", &out)
	return out
}

func csharpExtractSymbolsRecursive(n *sitter.Node, content []byte, parentName string, out *[]Symbol) {
	if n == nil {
		return
	}
	switch n.Type() {
	case csClassDecl:
		if sym, ok := csharpExtractTypeDecl(n, content, "class"); ok {
			*out = append(*out, sym)
			csharpExtractClassMembers(n, content, sym.Name, out)
		}
		return
	case csStructDecl:
		if sym, ok := csharpExtractTypeDecl(n, content, "struct"); ok {
			*out = append(*out, sym)
			csharpExtractClassMembers(n, content, sym.Name, out)
		}
		return
	case csInterfaceDecl:
		if sym, ok := csharpExtractTypeDecl(n, content, "interface"); ok {
			*out = append(*out, sym)
			csharpExtractClassMembers(n, content, sym.Name, out)
		}
		return
	case csEnumDecl:
		if sym, ok := csharpExtractTypeDecl(n, content, "enum"); ok {
			*out = append(*out, sym)
		}
		return
	case csRecordDecl:
		// Mapped to class: tethys' symbol kinds have no dedicated record kind.
		if sym, ok := csharpExtractTypeDecl(n, content, "class"); ok {
			*out = append(*out, sym)
			csharpExtractClassMembers(n, content, sym.Name, out)
		}
		return
	case csNamespaceDecl, csFileScopedNsDecl:
		if sym, ok := csharpExtractNamespace(n, content); ok {
			*out = append(*out, sym)
			for i := 0; i < int(n.ChildCount()); i++ {
				child := n.Child(i)
				if child.Type() != csDeclarationList {
					continue
				}
				for j := 0; j < int(child.ChildCount()); j++ {
					csharpExtractSymbolsRecursive(child.Child(j), content, sym.Name, out)
				}
			}
		}
		return
	case csMethodDecl:
		if sym, ok := csharpExtractMethod(n, content, parentName); ok {
			if !csharpHasModifier(n, content, "static") {
				sym.Kind = "method"
			}
			*out = append(*out, sym)
		}
		return
	case csConstructorDecl:
		if sym, ok := csharpExtractConstructor(n, content, parentName); ok {
			*out = append(*out, sym)
		}
		return
	}

	for i := 0; i < int(n.ChildCount()); i++ {
		csharpExtractSymbolsRecursive(n.Child(i), content, parentName, out)
	}
}

func csharpExtractClassMembers(n *sitter.Node, content []byte, parentName string, out *[]Symbol) {
	for i := 0; i < int(n.ChildCount()); i++ {
		child := n.Child(i)
		if child.Type() != csDeclarationList {
			continue
		}
		for j := 0; j < int(child.ChildCount()); j++ {
			item := child.Child(j)
			switch item.Type() {
			case csMethodDecl:
				if sym, ok := csharpExtractMethod(item, content, parentName); ok {
					if !csharpHasModifier(item, content, "static") {
						sym.Kind = "method"
					}
					*out = append(*out, sym)
				}
			case csConstructorDecl:
				if sym, ok := csharpExtractConstructor(item, content, parentName); ok {
					*out = append(*out, sym)
				}
			}
		}
	}
}

func csharpExtractTypeDecl(n *sitter.Node, content []byte, kind string) (Symbol, bool) {
	nameNode := n.ChildByFieldName("name")
	if nameNode == nil {
		return Symbol{}, false
	}
	name := text(nameNode, content)
	return Symbol{
		Name:          name,
		Kind:          kind,
		Span:          nodeSpan(n),
		Visibility:    csharpVisibility(n, content),
		QualifiedName: name,
	}, true
}

func csharpExtractNamespace(n *sitter.Node, content []byte) (Symbol, bool) {
	nameNode := n.ChildByFieldName("name")
	if nameNode == nil {
		return Symbol{}, false
	}
	name := text(nameNode, content)
	return Symbol{
		Name:          name,
		Kind:          "module",
		Span:          nodeSpan(n),
		Visibility:    "public",
		QualifiedName: name,
	}, true
}

func csharpExtractMethod(n *sitter.Node, content []byte, parentName string) (Symbol, bool) {
	nameNode := n.ChildByFieldName("name")
	if nameNode == nil {
		return Symbol{}, false
	}
	name := text(nameNode, content)
	sym := Symbol{
		Name:             name,
		Kind:             "function",
		Span:             nodeSpan(n),
		Signature:        csharpMethodSignature(n, content),
		SignatureDetails: csharpSignatureDetails(n, content),
		Visibility:       csharpVisibility(n, content),
		ParentName:       parentName,
		IsTest:           csharpHasAttribute(n, content, "Test") || csharpHasAttribute(n, content, "Fact"),
	}
	if parentName != "" {
		sym.QualifiedName = parentName + "." + name
	} else {
		sym.QualifiedName = name
	}
	return sym, true
}

func csharpExtractConstructor(n *sitter.Node, content []byte, parentName string) (Symbol, bool) {
	nameNode := n.ChildByFieldName("name")
	if nameNode == nil {
		return Symbol{}, false
	}
	name := text(nameNode, content)
	params := n.ChildByFieldName("parameters")
	sig := name
	if params != nil {
		sig = name + text(params, content)
	}
	sym := Symbol{
		Name:             name,
		Kind:             "method",
		Span:             nodeSpan(n),
		Signature:        sig,
		SignatureDetails: csharpSignatureDetails(n, content),
		Visibility:       csharpVisibility(n, content),
		ParentName:       parentName,
	}
	if parentName != "" {
		sym.QualifiedName = parentName + "." + name
	} else {
		sym.QualifiedName = name
	}
	return sym, true
}

// csharpVisibility handles compound modifiers (protected internal, private
// protected) the same way the grammar's own node ordering does: public wins
// outright, then the two compound pairs, then single modifiers, default
// private.
func csharpVisibility(n *sitter.Node, content []byte) string {
	var hasPublic, hasInternal, hasProtected, hasPrivate bool
	for i := 0; i < int(n.ChildCount()); i++ {
		child := n.Child(i)
		if child.Type() != csModifier {
			continue
		}
		switch text(child, content) {
		case "public":
			hasPublic = true
		case "internal":
			hasInternal = true
		case "protected":
			hasProtected = true
		case "private":
			hasPrivate = true
		}
	}
	switch {
	case hasPublic:
		return "public"
	case hasProtected && hasInternal:
		return "crate"
	case hasProtected && hasPrivate:
		return "module"
	case hasInternal:
		return "crate"
	case hasProtected:
		return "module"
	default:
		return "private"
	}
}

// csharpSignatureDetails decomposes a method/constructor's parameters,
// return type ("returns" field; absent means void), and async modifier
// into a structured signature. C# has no unsafe/const function modifiers
// and tree-sitter-c-sharp's method_declaration carries no generics field
// worth threading through yet, so those stay at their zero values.
func csharpSignatureDetails(n *sitter.Node, content []byte) *FunctionSignature {
	paramsNode := n.ChildByFieldName("parameters")
	if paramsNode == nil {
		return nil
	}

	fs := &FunctionSignature{IsAsync: csharpHasModifier(n, content, "async")}
	if paramsNode.Type() == csParameterList {
		fs.Parameters = csharpExtractParameters(paramsNode, content)
	}
	if rt := n.ChildByFieldName("returns"); rt != nil {
		s := text(rt, content)
		fs.ReturnType = &s
	}
	return fs
}

// csharpExtractParameters walks a parameter_list node collecting each
// parameter's name and type annotation, if any.
func csharpExtractParameters(paramsNode *sitter.Node, content []byte) []Parameter {
	var params []Parameter
	for i := 0; i < int(paramsNode.ChildCount()); i++ {
		child := paramsNode.Child(i)
		if child.Type() != csParameter {
			continue
		}
		nameNode := child.ChildByFieldName("name")
		if nameNode == nil {
			continue
		}
		p := Parameter{Name: text(nameNode, content)}
		if t := child.ChildByFieldName("type"); t != nil {
			s := text(t, content)
			p.TypeAnnotation = &s
		}
		params = append(params, p)
	}
	return params
}

func csharpHasModifier(n *sitter.Node, content []byte, modifier string) bool {
	for i := 0; i < int(n.ChildCount()); i++ {
		child := n.Child(i)
		if child.Type() == csModifier && text(child, content) == modifier {
			return true
		}
	}
	return false
}

func csharpHasAttribute(n *sitter.Node, content []byte, name string) bool {
	prev := n.PrevSibling()
	for prev != nil && prev.Type() == "attribute_list" {
		if strings.Contains(text(prev, content), name) {
			return true
		}
		prev = prev.PrevSibling()
	}
	return false
}

func csharpMethodSignature(n *sitter.Node, content []byte) string {
	nameNode := n.ChildByFieldName("name")
	params := n.ChildByFieldName("parameters")
	if nameNode == nil || params == nil {
		return ""
	}
	name := text(nameNode, content)
	paramsText := text(params, content)
	if rt := n.ChildByFieldName("returns"); rt != nil {
		return fmt.Sprintf("%s %s%s", text(rt, content), name, paramsText)
	}
	return fmt.Sprintf("void %s%s", name, paramsText)
}

func (csharpExtractor) ExtractImports(tree *sitter.Tree, content []byte) []Import {
	var out []Import
	csharpExtractUsingsRecursive(tree.RootNode(), content, &out)
	return out
}

func csharpExtractUsingsRecursive(n *sitter.Node, content []byte, out *[]Import) {
	if n == nil {
		return
	}
	if n.Type() == csUsingDirective {
		if imp, ok := csharpParseUsingDirective(n, content); ok {
			*out = append(*out, imp)
		}
		return
	}
	for i := 0; i < int(n.ChildCount()); i++ {
		csharpExtractUsingsRecursive(n.Child(i), content, out)
	}
}

func csharpParseUsingDirective(n *sitter.Node, content []byte) (Import, bool) {
	line := int(n.StartPoint().Row) + 1
	fullText := text(n, content)
	isStatic := strings.Contains(fullText, "static")

	var alias string
	if strings.Contains(fullText, "=") {
		for i := 0; i < int(n.ChildCount()); i++ {
			child := n.Child(i)
			if child.Type() == csNameEquals {
				if nameNode := child.ChildByFieldName("name"); nameNode != nil {
					alias = text(nameNode, content)
				}
				break
			}
			if child.Type() == csIdentifier {
				if next := child.NextSibling(); next != nil && text(next, content) == "=" {
					alias = text(child, content)
					break
				}
			}
		}
	}

	var namespace []string
	for i := 0; i < int(n.ChildCount()); i++ {
		child := n.Child(i)
		switch child.Type() {
		case csIdentifier:
			if alias == "" && !isStatic {
				namespace = append(namespace, text(child, content))
			}
		case csQualifiedName:
			csharpCollectQualifiedPath(child, content, &namespace)
		}
	}

	if len(namespace) == 0 && alias == "" {
		return Import{}, false
	}

	imp := Import{Path: namespace, Alias: alias, Line: line}
	if len(namespace) > 0 {
		imp.ImportedName = namespace[len(namespace)-1]
		imp.Path = namespace[:len(namespace)-1]
	}
	return imp, true
}

func csharpCollectQualifiedPath(n *sitter.Node, content []byte, segments *[]string) {
	switch n.Type() {
	case csQualifiedName:
		if q := n.ChildByFieldName("qualifier"); q != nil {
			csharpCollectQualifiedPath(q, content, segments)
		}
		if nm := n.ChildByFieldName("name"); nm != nil {
			*segments = append(*segments, text(nm, content))
		}
	case csIdentifier:
		*segments = append(*segments, text(n, content))
	}
}

func (csharpExtractor) ExtractReferences(tree *sitter.Tree, content []byte) []Reference {
	var out []Reference
	csharpExtractReferencesRecursive(tree.RootNode(), content, nil, &out)
	return out
}

func csharpExtractReferencesRecursive(n *sitter.Node, content []byte, containing *Span, out *[]Reference) {
	if n == nil {
		return
	}
	switch n.Type() {
	case csUsingDirective:
		return
	case csInvocationExpr:
		if ref, ok := csharpExtractInvocation(n, content); ok {
			ref.ContainingFuncName = containingFuncName(containing)
			ref.ContainingSpan = containing
			*out = append(*out, ref)
		}
	case csObjectCreationExpr:
		if ref, ok := csharpExtractObjectCreation(n, content); ok {
			ref.ContainingFuncName = containingFuncName(containing)
			ref.ContainingSpan = containing
			*out = append(*out, ref)
		}
	case csMethodDecl, csConstructorDecl:
		methodSpan := nodeSpan(n)
		for i := 0; i < int(n.ChildCount()); i++ {
			csharpExtractReferencesRecursive(n.Child(i), content, &methodSpan, out)
		}
		return
	case csClassDecl, csStructDecl, csInterfaceDecl:
		for i := 0; i < int(n.ChildCount()); i++ {
			child := n.Child(i)
			if child.Type() != csDeclarationList {
				csharpExtractReferencesRecursive(child, content, containing, out)
				continue
			}
			for j := 0; j < int(child.ChildCount()); j++ {
				item := child.Child(j)
				switch item.Type() {
				case csMethodDecl, csConstructorDecl:
					methodSpan := nodeSpan(item)
					for k := 0; k < int(item.ChildCount()); k++ {
						csharpExtractReferencesRecursive(item.Child(k), content, &methodSpan, out)
					}
				default:
					csharpExtractReferencesRecursive(item, content, containing, out)
				}
			}
		}
		return
	}

	for i := 0; i < int(n.ChildCount()); i++ {
		csharpExtractReferencesRecursive(n.Child(i), content, containing, out)
	}
}

func csharpExtractInvocation(n *sitter.Node, content []byte) (Reference, bool) {
	if n.ChildCount() == 0 {
		return Reference{}, false
	}
	fn := n.Child(0)
	switch fn.Type() {
	case csIdentifier:
		return Reference{Name: text(fn, content), Kind: ReferenceCall, Span: nodeSpan(fn)}, true
	case csMemberAccessExpr:
		path, name := csharpParseMemberAccess(fn, content)
		return Reference{Name: name, Path: path, Kind: ReferenceCall, Span: nodeSpan(fn)}, true
	}
	return Reference{}, false
}

func csharpExtractObjectCreation(n *sitter.Node, content []byte) (Reference, bool) {
	for i := 0; i < int(n.ChildCount()); i++ {
		child := n.Child(i)
		switch child.Type() {
		case csIdentifier:
			return Reference{Name: text(child, content), Kind: ReferenceConstruct, Span: nodeSpan(child)}, true
		case csQualifiedName:
			var path []string
			csharpCollectQualifiedPath(child, content, &path)
			if len(path) == 0 {
				continue
			}
			name := path[len(path)-1]
			return Reference{Name: name, Path: path[:len(path)-1], Kind: ReferenceConstruct, Span: nodeSpan(child)}, true
		case csGenericName:
			if nameNode := child.ChildByFieldName("name"); nameNode != nil {
				return Reference{Name: text(nameNode, content), Kind: ReferenceConstruct, Span: nodeSpan(child)}, true
			}
			for j := 0; j < int(child.ChildCount()); j++ {
				inner := child.Child(j)
				if inner.Type() == csIdentifier {
					return Reference{Name: text(inner, content), Kind: ReferenceConstruct, Span: nodeSpan(inner)}, true
				}
			}
		}
	}
	return Reference{}, false
}

func csharpParseMemberAccess(n *sitter.Node, content []byte) ([]string, string) {
	var segments []string
	csharpCollectMemberAccessPath(n, content, &segments)
	if len(segments) == 0 {
		return nil, ""
	}
	name := segments[len(segments)-1]
	return segments[:len(segments)-1], name
}

func csharpCollectMemberAccessPath(n *sitter.Node, content []byte, segments *[]string) {
	switch n.Type() {
	case csMemberAccessExpr:
		if e := n.ChildByFieldName("expression"); e != nil {
			csharpCollectMemberAccessPath(e, content, segments)
		}
		if nm := n.ChildByFieldName("name"); nm != nil {
			*segments = append(*segments, text(nm, content))
		}
	case csIdentifier:
		*segments = append(*segments, text(n, content))
	}
}
