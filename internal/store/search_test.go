package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSearchSymbols_ExactMatchRankedFirst(t *testing.T) {
	s := newTestStore(t)
	f := insertTestFile(t, s, "/lib.rs", "rust")
	insertTestSymbol(t, s, f.ID, "parse_config_extended", "function")
	insertTestSymbol(t, s, f.ID, "parse", "function")
	insertTestSymbol(t, s, f.ID, "parse_config", "function")

	got, err := s.SearchSymbols("parse", 50)
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, "parse", got[0].Name)
}

func TestSearchSymbols_FuzzyMatchIsCaseInsensitiveSubstring(t *testing.T) {
	s := newTestStore(t)
	f := insertTestFile(t, s, "/lib.rs", "rust")
	insertTestSymbol(t, s, f.ID, "HandleRequest", "function")
	insertTestSymbol(t, s, f.ID, "Unrelated", "function")

	got, err := s.SearchSymbols("request", 50)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "HandleRequest", got[0].Name)
}

func TestSearchSymbols_LimitCapsResults(t *testing.T) {
	s := newTestStore(t)
	f := insertTestFile(t, s, "/lib.rs", "rust")
	for _, name := range []string{"widget_a", "widget_b", "widget_c", "widget_d"} {
		insertTestSymbol(t, s, f.ID, name, "function")
	}

	got, err := s.SearchSymbols("widget", 2)
	require.NoError(t, err)
	assert.Len(t, got, 2)
}

func TestSearchSymbols_EscapesLikeMetacharacters(t *testing.T) {
	s := newTestStore(t)
	f := insertTestFile(t, s, "/lib.rs", "rust")
	insertTestSymbol(t, s, f.ID, "weird_name", "function")
	insertTestSymbol(t, s, f.ID, "percent%name", "function")

	got, err := s.SearchSymbols("percent%name", 50)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "percent%name", got[0].Name)
}

func TestSearchSymbols_DefaultLimitAppliesWhenNonPositive(t *testing.T) {
	s := newTestStore(t)
	f := insertTestFile(t, s, "/lib.rs", "rust")
	insertTestSymbol(t, s, f.ID, "thing", "function")

	got, err := s.SearchSymbols("thing", 0)
	require.NoError(t, err)
	require.Len(t, got, 1)
}
