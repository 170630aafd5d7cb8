package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tethysdb/tethys"
	"github.com/tethysdb/tethys/internal/store"
)

func newTestStoreForCLI(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.NewStore(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	require.NoError(t, s.Migrate())
	t.Cleanup(func() { s.Close() })
	return s
}

func TestResolveFilePath_AbsoluteUnchanged(t *testing.T) {
	got, err := resolveFilePath("/tmp/foo.rs")
	require.NoError(t, err)
	assert.Equal(t, "/tmp/foo.rs", got)
}

func TestResolveFilePath_RelativeBecomesAbsolute(t *testing.T) {
	got, err := resolveFilePath("foo.rs")
	require.NoError(t, err)
	assert.True(t, filepath.IsAbs(got))
	assert.Equal(t, "foo.rs", filepath.Base(got))
}

func TestParseIntArg_Valid(t *testing.T) {
	n, err := parseIntArg("42", "line")
	require.NoError(t, err)
	assert.Equal(t, 42, n)
}

func TestParseIntArg_NotANumber(t *testing.T) {
	_, err := parseIntArg("abc", "line")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "line")
}

func TestParseIntArg_Negative(t *testing.T) {
	_, err := parseIntArg("-1", "col")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "non-negative")
}

func TestResolveSymbolID_FromSymbolFlag(t *testing.T) {
	cmd := &cobra.Command{}
	cmd.Flags().Int64("symbol", 0, "")
	require.NoError(t, cmd.Flags().Set("symbol", "7"))

	s := newTestStoreForCLI(t)
	qb := tethys.NewQueryBuilder(s)

	id, err := resolveSymbolID(cmd, nil, qb)
	require.NoError(t, err)
	assert.Equal(t, tethys.SymbolID(7), id)
}

func TestResolveSymbolID_MissingArgsAndFlag(t *testing.T) {
	cmd := &cobra.Command{}
	cmd.Flags().Int64("symbol", 0, "")

	s := newTestStoreForCLI(t)
	qb := tethys.NewQueryBuilder(s)

	_, err := resolveSymbolID(cmd, nil, qb)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "requires either")
}

func TestResolveSymbolID_FromPositionLooksUpSymbol(t *testing.T) {
	s := newTestStoreForCLI(t)
	fID, _, err := s.UpsertFile(&store.File{Path: "/a.rs", Language: "rust", Hash: "h"}, nil)
	require.NoError(t, err)
	symID, err := s.InsertSymbol(&store.Symbol{
		FileID: fID, Name: "add", Kind: "function", Visibility: "public",
		QualifiedName: "add", ModulePath: "/a.rs",
		StartLine: 1, StartCol: 1, EndLine: 3, EndCol: 1,
	})
	require.NoError(t, err)

	cmd := &cobra.Command{}
	cmd.Flags().Int64("symbol", 0, "")
	qb := tethys.NewQueryBuilder(s)

	id, err := resolveSymbolID(cmd, []string{"/a.rs", "1", "1"}, qb)
	require.NoError(t, err)
	assert.Equal(t, symID, id)
}

func TestResolveSymbolID_NoSymbolAtPosition(t *testing.T) {
	s := newTestStoreForCLI(t)
	_, _, err := s.UpsertFile(&store.File{Path: "/a.rs", Language: "rust", Hash: "h"}, nil)
	require.NoError(t, err)

	cmd := &cobra.Command{}
	cmd.Flags().Int64("symbol", 0, "")
	qb := tethys.NewQueryBuilder(s)

	_, err = resolveSymbolID(cmd, []string{"/a.rs", "99", "1"}, qb)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no symbol found")
}

func TestSymbolToCLI_NilReturnsZeroValue(t *testing.T) {
	got := symbolToCLI(nil, "")
	assert.Equal(t, CLISymbol{}, got)
}

func TestSymbolToCLI_MapsFieldsAndFilePath(t *testing.T) {
	sym := &tethys.Symbol{
		ID: 5, Name: "add", Kind: "function", Visibility: "public",
		StartLine: 1, StartCol: 1, EndLine: 3, EndCol: 1,
		Signature: "fn add()", IsTest: false,
	}
	got := symbolToCLI(sym, "/a.rs")
	assert.Equal(t, int64(5), got.ID)
	assert.Equal(t, "add", got.Name)
	assert.Equal(t, "/a.rs", got.File)
	assert.Equal(t, "fn add()", got.Signature)
}

func TestSignatureToCLI_NilReturnsNil(t *testing.T) {
	assert.Nil(t, signatureToCLI(nil))
}

func TestSignatureToCLI_MapsParametersAndModifiers(t *testing.T) {
	returnType := "Option<T>"
	generics := "<T: Clone>"
	typeAnn := "T"
	fs := &store.FunctionSignature{
		Parameters: []store.Parameter{{Name: "input", TypeAnnotation: &typeAnn}, {Name: "count"}},
		ReturnType: &returnType,
		IsAsync:    true,
		Generics:   &generics,
	}

	got := signatureToCLI(fs)
	require.NotNil(t, got)
	assert.True(t, got.IsAsync)
	assert.Equal(t, "Option<T>", got.ReturnType)
	assert.Equal(t, "<T: Clone>", got.Generics)
	require.Len(t, got.Parameters, 2)
	assert.Equal(t, "input", got.Parameters[0].Name)
	assert.Equal(t, "T", got.Parameters[0].TypeAnnotation)
	assert.Equal(t, "count", got.Parameters[1].Name)
	assert.Empty(t, got.Parameters[1].TypeAnnotation)
}

func TestLocationToCLI_NilSymbolID(t *testing.T) {
	got := locationToCLI(tethys.Location{File: "/a.rs", StartLine: 1, StartCol: 1}, nil)
	assert.Nil(t, got.SymbolID)
	assert.Equal(t, "/a.rs", got.File)
}

func TestLocationToCLI_SetsSymbolID(t *testing.T) {
	id := tethys.SymbolID(3)
	got := locationToCLI(tethys.Location{File: "/a.rs"}, &id)
	require.NotNil(t, got.SymbolID)
	assert.Equal(t, int64(3), *got.SymbolID)
}

func TestLookupSymbolName_FoundAndMissing(t *testing.T) {
	s := newTestStoreForCLI(t)
	fID, _, err := s.UpsertFile(&store.File{Path: "/a.rs", Language: "rust", Hash: "h"}, nil)
	require.NoError(t, err)
	symID, err := s.InsertSymbol(&store.Symbol{
		FileID: fID, Name: "add", Kind: "function", Visibility: "public",
		QualifiedName: "add", ModulePath: "/a.rs",
	})
	require.NoError(t, err)

	assert.Equal(t, "add", lookupSymbolName(s, symID))
	assert.Equal(t, "", lookupSymbolName(s, tethys.SymbolID(999)))
}

func TestOpenStore_MissingDatabaseErrors(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.Mkdir(filepath.Join(dir, ".git"), 0o755))

	oldWd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	defer os.Chdir(oldWd)

	oldDB := flagDB
	flagDB = filepath.Join(dir, "missing.db")
	defer func() { flagDB = oldDB }()

	_, err = openStore()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "database not found")
}

func TestLookupFilePath_FoundAndMissing(t *testing.T) {
	s := newTestStoreForCLI(t)
	fID, _, err := s.UpsertFile(&store.File{Path: "/a.rs", Language: "rust", Hash: "h"}, nil)
	require.NoError(t, err)

	assert.Equal(t, "/a.rs", lookupFilePath(s, fID))
	assert.Equal(t, "", lookupFilePath(s, tethys.FileID(999)))
}
