package entities

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestImportKeyAndEqual(t *testing.T) {
	a := Import{Kind: ImportLibrary, Name: "Collections", Args: []string{"a"}, Alias: "C"}
	b := Import{Kind: ImportLibrary, Name: "Collections", Args: []string{"a"}, Alias: "C"}
	c := Import{Kind: ImportLibrary, Name: "Collections", Args: []string{"b"}, Alias: "C"}

	assert.True(t, a.Equal(b), "expected a and b to be equal imports")
	assert.False(t, a.Equal(c), "expected a and c to differ by args")
	assert.False(t, a.Equal(Import{Kind: ImportResource, Name: "Collections", Args: []string{"a"}, Alias: "C"}),
		"expected kind to distinguish imports")
}

func TestKeywordMapOrderAndLookup(t *testing.T) {
	m := NewKeywordMap()
	m.Set("Log Message", KeywordDoc{Name: "Log Message"})
	m.Set("Run Keyword", KeywordDoc{Name: "Run Keyword"})
	m.Set("log_message", KeywordDoc{Name: "Log Message", LibraryName: "overwritten"})

	require.Equal(t, 2, m.Len())
	got, ok := m.Get("LOG MESSAGE")
	require.True(t, ok)
	assert.Equal(t, "overwritten", got.LibraryName)

	values := m.Values()
	require.Len(t, values, 2)
	assert.Equal(t, "Log Message", values[0].Name)
	assert.Equal(t, "Run Keyword", values[1].Name)
}

func TestLibraryEntryKey(t *testing.T) {
	cases := []struct {
		entry LibraryEntry
		want  string
	}{
		{LibraryEntry{ImportName: "Collections", Name: "Collections", Alias: "C"}, "C"},
		{LibraryEntry{ImportName: "Collections", Name: "Collections"}, "Collections"},
		{LibraryEntry{ImportName: "./lib.resource"}, "./lib.resource"},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, c.entry.Key())
	}
}

func TestLibraryEntryString(t *testing.T) {
	e := LibraryEntry{ImportName: "Collections", Args: []string{"1", "2"}, Alias: "C"}
	assert.Equal(t, "Collections  1  2  WITH NAME  C", e.String())
}

func TestVariableDefinitionMatcher(t *testing.T) {
	v := VariableDefinition{Name: "${my var}"}
	m, err := v.Matcher()
	require.NoError(t, err)
	assert.Equal(t, "my_var", m.Key())

	bad := VariableDefinition{Name: "not a var"}
	_, err = bad.Matcher()
	assert.Error(t, err, "expected error for malformed variable definition name")
}
