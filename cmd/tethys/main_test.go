package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tethysdb/tethys"
)

func newTestEngineForCLI(t *testing.T) *tethys.Engine {
	t.Helper()
	e, err := tethys.New(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	return e
}

func TestFindRepoRoot_DirectGitDir(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.Mkdir(filepath.Join(root, ".git"), 0o755))

	assert.Equal(t, root, findRepoRoot(root))
}

func TestFindRepoRoot_NestedSubdirectory(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.Mkdir(filepath.Join(root, ".git"), 0o755))
	deep := filepath.Join(root, "sub", "deep")
	require.NoError(t, os.MkdirAll(deep, 0o755))

	assert.Equal(t, root, findRepoRoot(deep))
}

func TestFindRepoRoot_NoGitAncestor(t *testing.T) {
	dir := t.TempDir()
	assert.Equal(t, dir, findRepoRoot(dir))
}

func TestResolveDBPath_DefaultUnderRivets(t *testing.T) {
	old := flagDB
	flagDB = ""
	defer func() { flagDB = old }()

	repoRoot := "/home/dev/myrepo"
	got := resolveDBPath(repoRoot)
	assert.Equal(t, filepath.Join(repoRoot, ".rivets", "index", "myrepo.db"), got)
}

func TestResolveDBPath_RelativeFlagJoinsRepoRoot(t *testing.T) {
	old := flagDB
	flagDB = "custom.db"
	defer func() { flagDB = old }()

	got := resolveDBPath("/home/dev/myrepo")
	assert.Equal(t, filepath.Join("/home/dev/myrepo", "custom.db"), got)
}

func TestResolveDBPath_AbsoluteFlagIsUsedAsIs(t *testing.T) {
	old := flagDB
	flagDB = "/var/data/tethys.db"
	defer func() { flagDB = old }()

	got := resolveDBPath("/home/dev/myrepo")
	assert.Equal(t, "/var/data/tethys.db", got)
}

func TestValidateFormat(t *testing.T) {
	assert.NoError(t, validateFormat("json"))
	assert.NoError(t, validateFormat("text"))
	assert.Error(t, validateFormat("xml"))
}

func TestResolveTargetDir_RejectsNonDirectory(t *testing.T) {
	file := filepath.Join(t.TempDir(), "notadir")
	require.NoError(t, os.WriteFile(file, []byte("x"), 0o644))

	_, err := resolveTargetDir([]string{file})
	require.Error(t, err)
}

func TestResolveTargetDir_RejectsMissingPath(t *testing.T) {
	_, err := resolveTargetDir([]string{filepath.Join(t.TempDir(), "missing")})
	require.Error(t, err)
}

func TestResolveTargetDir_DefaultsToCurrentDir(t *testing.T) {
	got, err := resolveTargetDir(nil)
	require.NoError(t, err)
	assert.True(t, filepath.IsAbs(got))
}

func TestPhaseDescription(t *testing.T) {
	assert.Equal(t, "Extracting", phaseDescription("extract"))
	assert.Equal(t, "Resolving", phaseDescription("resolve"))
	assert.Equal(t, "weird", phaseDescription("weird"))
}

func TestCountRows_CountsMatchingRows(t *testing.T) {
	e := newTestEngineForCLI(t)
	defer e.Close()

	n, err := countRows(e, "files")
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}
