package resolve

import "strings"

// csharpResolver looks up an import's joined namespace path in the
// namespace→files map built from stored module-kind symbols (Phase 3, after
// the first extraction pass — namespaces don't map 1:1 to files the way
// Rust's module tree does, so there is no filesystem walk to do).
type csharpResolver struct{}

func (csharpResolver) ResolveImport(fromFile string, segs []string, roots Roots) []string {
	joined := strings.Join(segs, ".")
	files := roots.CSharpNamespace[joined]
	if len(files) == 0 {
		return nil
	}
	out := make([]string, 0, len(files))
	for _, f := range files {
		if f != fromFile {
			out = append(out, f)
		}
	}
	return out
}

func (csharpResolver) ModulePathOf(filePath string, roots Roots) string {
	for ns, files := range roots.CSharpNamespace {
		for _, f := range files {
			if f == filePath {
				return ns
			}
		}
	}
	return filePath
}
