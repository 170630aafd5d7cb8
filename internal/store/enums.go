package store

import (
	"fmt"

	"github.com/tethysdb/tethys/internal/terrors"
)

// Valid enum vocabularies, mirroring what internal/extract's extractors
// ever write. Reading a row whose enum column holds anything else means
// schema drift or corruption, not a value this Tethys build produced.
var (
	validLanguages = map[string]bool{
		"rust": true, "csharp": true,
	}
	validSymbolKinds = map[string]bool{
		"function": true, "method": true, "struct": true, "class": true,
		"enum": true, "trait": true, "interface": true, "const": true,
		"static": true, "module": true, "type_alias": true, "macro": true,
	}
	validVisibilities = map[string]bool{
		"public": true, "crate": true, "module": true, "private": true,
	}
	validReferenceKinds = map[string]bool{
		"import": true, "call": true, "type": true, "inherit": true,
		"construct": true, "field_access": true,
	}
)

// ParseLanguage validates a language string read from the database,
// returning a parse error rather than silently accepting an unrecognized
// value.
func ParseLanguage(s string) (string, error) {
	if !validLanguages[s] {
		return "", terrors.New(terrors.KindParse, "parse language", fmt.Errorf("unknown language %q", s))
	}
	return s, nil
}

// ParseSymbolKind validates a symbol kind string read from the database.
func ParseSymbolKind(s string) (string, error) {
	if !validSymbolKinds[s] {
		return "", terrors.New(terrors.KindParse, "parse symbol kind", fmt.Errorf("unknown symbol kind %q", s))
	}
	return s, nil
}

// ParseVisibility validates a visibility string read from the database.
func ParseVisibility(s string) (string, error) {
	if !validVisibilities[s] {
		return "", terrors.New(terrors.KindParse, "parse visibility", fmt.Errorf("unknown visibility %q", s))
	}
	return s, nil
}

// ParseReferenceKind validates a reference kind string read from the
// database.
func ParseReferenceKind(s string) (string, error) {
	if !validReferenceKinds[s] {
		return "", terrors.New(terrors.KindParse, "parse reference kind", fmt.Errorf("unknown reference kind %q", s))
	}
	return s, nil
}
