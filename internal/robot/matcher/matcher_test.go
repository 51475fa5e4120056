package matcher

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEqKeyword(t *testing.T) {
	cases := []struct {
		a, b string
		want bool
	}{
		{"Log In", "log in", true},
		{"Log In", "LogIn", true},
		{"Log_In", "Log In", true},
		{"Log In", "Log Out", false},
		{"", "", true},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, EqKeyword(c.a, c.b), "EqKeyword(%q, %q)", c.a, c.b)
	}
}

func TestEqKeywordReflexiveSymmetricTransitive(t *testing.T) {
	names := []string{"Copy File", "copy_file", "COPYFILE", "Copy  File"}
	for _, n := range names {
		assert.True(t, EqKeyword(n, n), "EqKeyword not reflexive for %q", n)
	}
	for i := range names {
		for j := range names {
			assert.Equal(t, EqKeyword(names[i], names[j]), EqKeyword(names[j], names[i]),
				"EqKeyword not symmetric for %q, %q", names[i], names[j])
		}
	}
	assert.True(t, EqKeyword(names[0], names[1]) && EqKeyword(names[1], names[2]) && EqKeyword(names[0], names[2]),
		"EqKeyword not transitive across equivalence class")
}

func TestVariableBase(t *testing.T) {
	cases := []struct {
		name     string
		wantBase string
		wantOK   bool
	}{
		{"${my var}", "my var", true},
		{"@{LIST:int}", "LIST", true},
		{"&{DICT}", "DICT", true},
		{"%{ENV_VAR}", "ENV_VAR", true},
		{"${nested${x}}", "nested${x}", true},
		{"not a variable", "", false},
		{"$invalid", "", false},
		{"", "", false},
	}
	for _, c := range cases {
		base, ok := VariableBase(c.name)
		assert.Equal(t, c.wantOK, ok, "VariableBase(%q) ok", c.name)
		assert.Equal(t, c.wantBase, base, "VariableBase(%q) base", c.name)
	}
}

func TestEqVariable(t *testing.T) {
	cases := []struct {
		a, b string
		want bool
	}{
		{"${my var}", "${My_Var}", true},
		{"${my  var}", "${my_var}", true},
		{"${x:int}", "${x}", true},
		{"${x}", "${y}", false},
		{"not a var", "${x}", false},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, EqVariable(c.a, c.b), "EqVariable(%q, %q)", c.a, c.b)
	}
}

func TestVariableMatcherInvalid(t *testing.T) {
	_, err := NewVariableMatcher("not a var")
	require.Error(t, err, "expected error for malformed variable name")
}
