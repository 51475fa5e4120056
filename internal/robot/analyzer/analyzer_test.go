package analyzer

import (
	"context"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"

	"github.com/d-biehl/robotcode/internal/robot/imports"
	"github.com/d-biehl/robotcode/internal/robot/libdoc"
	"github.com/d-biehl/robotcode/internal/robot/namespace"
	"github.com/d-biehl/robotcode/internal/robot/parser"
)

func newTestNamespace(t *testing.T, source, text string) *namespace.Namespace {
	t.Helper()
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, source, []byte(text), 0o644))
	model, errs := parser.Parse(text, source)
	require.Empty(t, errs, "unexpected parse errors")
	provider := libdoc.NewProvider(libdoc.WithFS(fs))
	mgr := imports.NewManager(provider, imports.WithFS(fs))
	return namespace.New(source, model, mgr)
}

func diagnose(t *testing.T, ns *namespace.Namespace) []string {
	t.Helper()
	diags, err := ns.GetDiagnostics(context.Background(), Analyze)
	require.NoError(t, err)
	var codes []string
	for _, d := range diags {
		codes = append(codes, d.Code)
	}
	return codes
}

func TestAnalyzeUnknownKeywordReportsKeywordError(t *testing.T) {
	ns := newTestNamespace(t, "/work/test.robot", ""+
		"*** Test Cases ***\n"+
		"My Test\n"+
		"    Nonexistent Keyword\n")
	codes := diagnose(t, ns)
	require.Contains(t, codes, "KeywordError")
}

func TestAnalyzeKnownKeywordIsClean(t *testing.T) {
	ns := newTestNamespace(t, "/work/test.robot", ""+
		"*** Test Cases ***\n"+
		"My Test\n"+
		"    Log    hello\n")
	codes := diagnose(t, ns)
	require.NotContains(t, codes, "KeywordError")
}

func TestAnalyzeRunKeywordIfRecursesIntoBranches(t *testing.T) {
	ns := newTestNamespace(t, "/work/test.robot", ""+
		"*** Test Cases ***\n"+
		"My Test\n"+
		"    Run Keyword If    ${TRUE}    Nonexistent One    ELSE    Nonexistent Two\n")
	codes := diagnose(t, ns)
	count := 0
	for _, c := range codes {
		if c == "KeywordError" {
			count++
		}
	}
	require.GreaterOrEqual(t, count, 2, "expected both branches of Run Keyword If to report KeywordError, got %v", codes)
}

func TestAnalyzeRunKeywordUnlessUnescapesSubKeywordName(t *testing.T) {
	ns := newTestNamespace(t, "/work/test.robot", ""+
		"*** Keywords ***\n"+
		"Example Keyword\n"+
		"    Log    hi\n"+
		"*** Test Cases ***\n"+
		"My Test\n"+
		"    Run Keyword Unless    ${FALSE}    Example\\ Keyword\n")
	codes := diagnose(t, ns)
	require.NotContains(t, codes, "KeywordError", "escaped sub-keyword name must be unescaped before matching")
}

func TestAnalyzeVariableNotFoundReported(t *testing.T) {
	ns := newTestNamespace(t, "/work/test.robot", ""+
		"*** Test Cases ***\n"+
		"My Test\n"+
		"    Log    ${UNDEFINED VAR}\n")
	codes := diagnose(t, ns)
	require.Contains(t, codes, "VariableNotFound")
}

func TestAnalyzeArgumentVariableIsResolvable(t *testing.T) {
	ns := newTestNamespace(t, "/work/test.robot", ""+
		"*** Keywords ***\n"+
		"My Keyword\n"+
		"    [Arguments]    ${value}\n"+
		"    Log    ${value}\n")
	codes := diagnose(t, ns)
	require.NotContains(t, codes, "VariableNotFound")
}
