package tethys

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// goldenFile is the expected-output format for a testdata/<lang>/<level>
// fixture: what extraction and resolution should produce for the sources
// under its src/ directory.
type goldenFile struct {
	Definitions []goldenDef    `json:"definitions,omitempty"`
	Imports     []goldenImport `json:"imports,omitempty"`
	Calls       []goldenCall   `json:"calls,omitempty"`
}

type goldenDef struct {
	Name string `json:"name"`
	Kind string `json:"kind"`
	File string `json:"file"`
	Line int    `json:"line"`
}

type goldenImport struct {
	File         string `json:"file"`
	Source       string `json:"source"`
	ImportedName string `json:"imported_name,omitempty"`
}

type goldenCall struct {
	Caller string `json:"caller"`
	Callee string `json:"callee"`
}

// TestGolden walks testdata/<language>/<level>/ directories and runs a
// golden test for every level that has both a src/ dir and a golden.json.
func TestGolden(t *testing.T) {
	langDirs, err := os.ReadDir("testdata")
	if err != nil {
		t.Skip("no testdata directory found")
	}

	for _, langDir := range langDirs {
		if !langDir.IsDir() {
			continue
		}
		lang := langDir.Name()
		langRoot := filepath.Join("testdata", lang)
		levels, err := os.ReadDir(langRoot)
		if err != nil {
			continue
		}

		for _, level := range levels {
			if !level.IsDir() {
				continue
			}
			testDir := filepath.Join(langRoot, level.Name())
			goldenPath := filepath.Join(testDir, "golden.json")
			srcDir := filepath.Join(testDir, "src")

			if _, err := os.Stat(goldenPath); err != nil {
				continue
			}
			if _, err := os.Stat(srcDir); err != nil {
				continue
			}

			t.Run(lang+"/"+level.Name(), func(t *testing.T) {
				runGoldenTest(t, lang, srcDir, goldenPath)
			})
		}
	}
}

func runGoldenTest(t *testing.T, lang, srcDir, goldenPath string) {
	t.Helper()

	goldenData, err := os.ReadFile(goldenPath)
	require.NoError(t, err)
	var golden goldenFile
	require.NoError(t, json.Unmarshal(goldenData, &golden))

	e := newTestEngine(t, WithLanguages(lang), WithWorkers(1))

	srcEntries, err := os.ReadDir(srcDir)
	require.NoError(t, err)
	var paths []string
	for _, entry := range srcEntries {
		if !entry.IsDir() {
			paths = append(paths, filepath.Join(srcDir, entry.Name()))
		}
	}

	report, err := e.IndexFiles(context.Background(), paths)
	require.NoError(t, err)
	require.Empty(t, report.Errors)

	if len(golden.Calls) > 0 {
		require.NoError(t, e.Resolve(context.Background()))
	}

	if len(golden.Definitions) > 0 {
		t.Run("definitions", func(t *testing.T) {
			verifyGoldenDefinitions(t, e, golden.Definitions)
		})
	}
	if len(golden.Imports) > 0 {
		t.Run("imports", func(t *testing.T) {
			verifyGoldenImports(t, e, srcDir, golden.Imports)
		})
	}
	if len(golden.Calls) > 0 {
		t.Run("calls", func(t *testing.T) {
			verifyGoldenCalls(t, e, golden.Calls)
		})
	}
}

func verifyGoldenDefinitions(t *testing.T, e *Engine, expected []goldenDef) {
	t.Helper()
	s := e.Store()

	type defKey struct {
		Name string
		Kind string
		File string
		Line int
	}
	actual := make(map[defKey]bool)

	rows, err := s.DB().Query(
		`SELECT s.name, s.kind, f.path, s.start_line
		 FROM symbols s JOIN files f ON f.id = s.file_id`)
	require.NoError(t, err)
	defer rows.Close()
	for rows.Next() {
		var name, kind, path string
		var line int
		require.NoError(t, rows.Scan(&name, &kind, &path, &line))
		actual[defKey{name, kind, filepath.Base(path), line}] = true
	}
	require.NoError(t, rows.Err())

	for _, exp := range expected {
		key := defKey{exp.Name, exp.Kind, exp.File, exp.Line}
		assert.True(t, actual[key], "missing definition: %+v", exp)
	}
}

func verifyGoldenImports(t *testing.T, e *Engine, srcDir string, expected []goldenImport) {
	t.Helper()
	s := e.Store()

	for _, exp := range expected {
		filePath := filepath.Join(srcDir, exp.File)
		f, err := s.FileByPath(filePath)
		require.NoError(t, err, "file lookup: %s", exp.File)
		require.NotNil(t, f, "file not indexed: %s", exp.File)

		imports, err := s.ImportsByFile(f.ID)
		require.NoError(t, err)

		found := false
		for _, imp := range imports {
			if imp.Source != exp.Source {
				continue
			}
			if exp.ImportedName != "" && imp.ImportedName != exp.ImportedName {
				continue
			}
			found = true
			break
		}
		assert.True(t, found, "missing import in %s: source=%s imported_name=%s",
			exp.File, exp.Source, exp.ImportedName)
	}
}

func verifyGoldenCalls(t *testing.T, e *Engine, expected []goldenCall) {
	t.Helper()
	s := e.Store()

	for _, exp := range expected {
		rows, err := s.DB().Query(
			`SELECT cr.name, ce.name FROM call_edges cg
			 JOIN symbols cr ON cr.id = cg.caller_symbol_id
			 JOIN symbols ce ON ce.id = cg.callee_symbol_id
			 WHERE cr.name = ? AND ce.name = ?`,
			exp.Caller, exp.Callee)
		require.NoError(t, err)
		found := rows.Next()
		rows.Close()
		assert.True(t, found, "missing call edge: %s -> %s", exp.Caller, exp.Callee)
	}
}
