package store

import (
	"encoding/json"
	"strings"
)

// FunctionSignature is a structured decomposition of a function or method
// signature: its parameter list, return type, and modifiers. Only function
// and method symbols carry one; everything else leaves it nil.
type FunctionSignature struct {
	Parameters []Parameter
	ReturnType *string // nil for functions returning unit/void
	IsAsync    bool
	IsUnsafe   bool
	IsConst    bool
	Generics   *string // e.g. "<T: Clone, U>", nil if non-generic
}

// Parameter is one function parameter: a name and, where the source
// annotates one, its type.
type Parameter struct {
	Name           string
	TypeAnnotation *string
}

// ReturnsResult reports whether the return type looks like a Result<_, _>.
func (fs *FunctionSignature) ReturnsResult() bool {
	if fs == nil || fs.ReturnType == nil {
		return false
	}
	rt := *fs.ReturnType
	return strings.HasPrefix(rt, "Result") || strings.Contains(rt, "Result<")
}

// ReturnsOption reports whether the return type looks like an Option<_>.
func (fs *FunctionSignature) ReturnsOption() bool {
	if fs == nil || fs.ReturnType == nil {
		return false
	}
	rt := *fs.ReturnType
	return strings.HasPrefix(rt, "Option") || strings.Contains(rt, "Option<")
}

// ParamCount returns the number of non-self parameters.
func (fs *FunctionSignature) ParamCount() int {
	if fs == nil {
		return 0
	}
	n := 0
	for _, p := range fs.Parameters {
		if !isSelfParam(p.Name) {
			n++
		}
	}
	return n
}

func isSelfParam(name string) bool {
	switch name {
	case "self", "&self", "&mut self":
		return true
	default:
		return false
	}
}

// marshalSignatureDetails converts a FunctionSignature to its JSON storage
// form. A nil signature marshals to an empty string (stored as NULL).
func marshalSignatureDetails(fs *FunctionSignature) string {
	if fs == nil {
		return ""
	}
	b, _ := json.Marshal(fs)
	return string(b)
}

// unmarshalSignatureDetails is the inverse of marshalSignatureDetails. An
// unrecognized or empty payload decodes to nil rather than erroring, since
// signature_details is a supplementary field: a symbol missing or
// misencoding it is still a valid symbol.
func unmarshalSignatureDetails(s string) *FunctionSignature {
	if s == "" {
		return nil
	}
	var fs FunctionSignature
	if err := json.Unmarshal([]byte(s), &fs); err != nil {
		return nil
	}
	return &fs
}

// UnmarshalSignatureDetails converts JSON text back to a FunctionSignature.
// Exported for use by QueryBuilder's own row scanners outside this package.
func UnmarshalSignatureDetails(s string) *FunctionSignature {
	return unmarshalSignatureDetails(s)
}
