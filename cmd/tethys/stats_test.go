package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tethysdb/tethys/internal/store"
)

func TestRunStats_ReportsCountsFromIndex(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.Mkdir(filepath.Join(dir, ".git"), 0o755))

	oldWd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	defer os.Chdir(oldWd)

	dbPath := filepath.Join(dir, "test.db")
	oldDB := flagDB
	flagDB = dbPath
	defer func() { flagDB = oldDB }()

	s, err := store.NewStore(dbPath)
	require.NoError(t, err)
	require.NoError(t, s.Migrate())
	fID, _, err := s.UpsertFile(&store.File{Path: "/a.rs", Language: "rust", Hash: "h", LastIndexed: time.Now()}, nil)
	require.NoError(t, err)
	_, err = s.InsertSymbol(&store.Symbol{
		FileID: fID, Name: "add", Kind: "function", Visibility: "public",
		QualifiedName: "add", ModulePath: "/a.rs",
	})
	require.NoError(t, err)
	require.NoError(t, s.Close())

	oldFormat := flagFormat
	flagFormat = "json"
	defer func() { flagFormat = oldFormat }()

	stdout := captureStdout(t, func() {
		require.NoError(t, runStats(statsCmd, nil))
	})

	var result CLIResult
	require.NoError(t, json.Unmarshal([]byte(stdout), &result))
	assert.Equal(t, "stats", result.Command)
}

// captureStdout redirects os.Stdout for the duration of fn and returns what
// was written to it.
func captureStdout(t *testing.T, fn func()) string {
	t.Helper()
	old := os.Stdout
	r, w, err := os.Pipe()
	require.NoError(t, err)
	os.Stdout = w

	fn()

	require.NoError(t, w.Close())
	os.Stdout = old

	var buf bytes.Buffer
	_, err = buf.ReadFrom(r)
	require.NoError(t, err)
	return buf.String()
}
