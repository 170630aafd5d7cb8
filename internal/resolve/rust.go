package resolve

import (
	"bufio"
	"os"
	"path"
	"strings"
)

// rustResolver implements crate/self/super-style path resolution: the first
// segment names the crate root, the current module, or the parent module;
// the last remaining segment is tried first as <seg>.rs, then as
// <seg>/mod.rs. Every earlier segment is followed only as a directory with
// a mod.rs; a <seg>.rs file beside a <seg>/ directory is not followed.
type rustResolver struct{}

func (rustResolver) ResolveImport(fromFile string, segs []string, roots Roots) []string {
	if len(segs) == 0 {
		return nil
	}

	crateDir, crateRootRel := rustCrateRootFor(fromFile, roots.RustCrateRoots)
	if crateDir == "" {
		return nil
	}

	dir := path.Dir(fromFile)
	segs = append([]string(nil), segs...)

	switch segs[0] {
	case "crate":
		dir = path.Dir(joinPath(crateDir, crateRootRel))
		segs = segs[1:]
	case "self":
		segs = segs[1:]
	case "super":
		dir = path.Dir(dir)
		segs = segs[1:]
	default:
		// Unknown first segment: either an external crate, or a crate name
		// used as the leading path segment of a 2018-edition absolute
		// import. Neither resolves to a file in this workspace.
		return nil
	}

	if len(segs) == 0 {
		return []string{dir + "/mod.rs"}
	}

	for i, seg := range segs {
		last := i == len(segs)-1
		asFile := joinPath(dir, seg+".rs")
		asModDir := joinPath(dir, seg+"/mod.rs")
		if last {
			if rustFileExists(asFile) {
				return []string{asFile}
			}
			if rustFileExists(asModDir) {
				return []string{asModDir}
			}
			return nil
		}
		if rustFileExists(asModDir) {
			dir = path.Join(dir, seg)
			continue
		}
		return nil
	}
	return nil
}

func (rustResolver) ModulePathOf(filePath string, roots Roots) string {
	crateDir, crateRootRel := rustCrateRootFor(filePath, roots.RustCrateRoots)
	if crateDir == "" {
		return filePath
	}
	rootAbs := joinPath(crateDir, crateRootRel)
	rel := strings.TrimPrefix(filePath, path.Dir(rootAbs)+"/")
	rel = strings.TrimSuffix(rel, "/mod.rs")
	rel = strings.TrimSuffix(rel, ".rs")
	return "crate::" + strings.ReplaceAll(rel, "/", "::")
}

func rustCrateRootFor(filePath string, crateRoots []CrateRoot) (dir, entryRel string) {
	best := ""
	var match CrateRoot
	for _, cr := range crateRoots {
		if strings.HasPrefix(filePath, cr.Dir+"/") && len(cr.Dir) > len(best) {
			best = cr.Dir
			match = cr
		}
	}
	if best == "" {
		return "", ""
	}
	return match.Dir, match.EntryRel
}

func rustFileExists(p string) bool {
	info, err := os.Stat(p)
	return err == nil && !info.IsDir()
}

// ParseCargoToml extracts [lib] path and [[bin]] path entries from a
// Cargo.toml file. This is a small line-oriented scanner, not a general TOML
// parser: the only shapes Tethys needs are `path = "..."` lines under a
// `[lib]` or `[[bin]]` table header, which is all Cargo.toml uses for these
// fields in practice.
func ParseCargoToml(cargoTomlPath string) ([]CrateRoot, error) {
	f, err := os.Open(cargoTomlPath)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	dir := path.Dir(cargoTomlPath)
	var roots []CrateRoot
	section := ""

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if strings.HasPrefix(line, "[") {
			section = line
			continue
		}
		if section != "[lib]" && section != "[[bin]]" {
			continue
		}
		key, val, ok := strings.Cut(line, "=")
		if !ok || strings.TrimSpace(key) != "path" {
			continue
		}
		rel := strings.Trim(strings.TrimSpace(val), `"`)
		roots = append(roots, CrateRoot{Dir: dir, EntryRel: rel})
	}
	if len(roots) == 0 {
		// No explicit [lib]/[[bin]] path: Cargo's own defaults.
		if rustFileExists(joinPath(dir, "src/lib.rs")) {
			roots = append(roots, CrateRoot{Dir: dir, EntryRel: "src/lib.rs"})
		}
		if rustFileExists(joinPath(dir, "src/main.rs")) {
			roots = append(roots, CrateRoot{Dir: dir, EntryRel: "src/main.rs"})
		}
	}
	return roots, scanner.Err()
}
