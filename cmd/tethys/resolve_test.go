package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunResolve_ResolvesEmptyIndexWithoutError(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.Mkdir(filepath.Join(dir, ".git"), 0o755))

	oldWd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	defer os.Chdir(oldWd)

	oldDB := flagDB
	flagDB = filepath.Join(dir, "test.db")
	defer func() { flagDB = oldDB }()

	var buf bytes.Buffer
	resolveCmd.SetOut(&buf)

	err = runResolve(resolveCmd, nil)
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "Resolved in")
}
