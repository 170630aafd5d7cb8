package store

import (
	"crypto/sha256"
	"fmt"
)

// ContentHash returns the sha256 hex digest of a file's raw bytes, used to
// detect whether a file actually changed before paying for a re-extract.
func ContentHash(data []byte) string {
	sum := sha256.Sum256(data)
	return fmt.Sprintf("%x", sum)
}

// ComputeSignatureHash computes a deterministic hash from a symbol's
// semantic identity: name, kind, visibility, module path, qualified name,
// and signature text. Location (start/end line/col) never affects the
// hash, so moving a symbol within a file without changing its shape
// leaves its hash unchanged.
func ComputeSignatureHash(name, kind, visibility, modulePath, qualifiedName, signature string) string {
	h := sha256.New()
	fmt.Fprintf(h, "name:%s\n", name)
	fmt.Fprintf(h, "kind:%s\n", kind)
	fmt.Fprintf(h, "visibility:%s\n", visibility)
	fmt.Fprintf(h, "module_path:%s\n", modulePath)
	fmt.Fprintf(h, "qualified_name:%s\n", qualifiedName)
	fmt.Fprintf(h, "signature:%s\n", signature)
	return fmt.Sprintf("%x", h.Sum(nil))
}
