package namespace

import (
	"context"
	"testing"

	"github.com/spf13/afero"
	lsp "github.com/sourcegraph/go-lsp"
	"github.com/stretchr/testify/require"

	"github.com/d-biehl/robotcode/internal/robot/entities"
	"github.com/d-biehl/robotcode/internal/robot/imports"
	"github.com/d-biehl/robotcode/internal/robot/libdoc"
	"github.com/d-biehl/robotcode/internal/robot/parser"
)

type fixture struct {
	fs       afero.Fs
	provider *libdoc.Provider
	mgr      *imports.Manager
}

func newFixture(t *testing.T, loader libdoc.LibraryLoader) *fixture {
	t.Helper()
	fs := afero.NewMemMapFs()
	opts := []libdoc.Option{libdoc.WithFS(fs)}
	if loader != nil {
		opts = append(opts, libdoc.WithLoader(loader))
	}
	provider := libdoc.NewProvider(opts...)
	mgr := imports.NewManager(provider, imports.WithFS(fs))
	return &fixture{fs: fs, provider: provider, mgr: mgr}
}

func (f *fixture) write(t *testing.T, path, text string) {
	t.Helper()
	require.NoError(t, afero.WriteFile(f.fs, path, []byte(text), 0o644))
}

func (f *fixture) namespace(t *testing.T, path string, opts ...Option) *Namespace {
	t.Helper()
	text, err := afero.ReadFile(f.fs, path)
	require.NoError(t, err)
	model, errs := parser.Parse(string(text), path)
	require.Empty(t, errs)
	return New(path, model, f.mgr, opts...)
}

func diagCodes(diags []lsp.Diagnostic) []string {
	var codes []string
	for _, d := range diags {
		codes = append(codes, d.Code)
	}
	return codes
}

func TestScenarioBDDPrefix(t *testing.T) {
	f := newFixture(t, nil)
	f.write(t, "/work/test.robot", ""+
		"*** Keywords ***\n"+
		"Log In\n"+
		"    Log    logging in\n"+
		"*** Test Cases ***\n"+
		"Can Log In\n"+
		"    Given log in\n")
	ns := f.namespace(t, "/work/test.robot")
	require.NoError(t, ns.EnsureInitialized(context.Background()))

	finder := ns.GetFinder()
	doc, diags := finder.FindKeyword("Given log in")
	require.Empty(t, diags)
	require.NotNil(t, doc)
	require.Equal(t, "Log In", doc.Name)
}

func TestScenarioAmbiguousImplicitResolvesWithSearchOrder(t *testing.T) {
	loader := libdoc.NewRegistryLoader()
	loader.Register("A", []string{"Open"})
	loader.Register("B", []string{"Open"})
	f := newFixture(t, loader)
	f.write(t, "/work/test.robot", ""+
		"*** Settings ***\n"+
		"Library    A\n"+
		"Library    B\n"+
		"*** Test Cases ***\n"+
		"T\n"+
		"    Open\n")

	ns := f.namespace(t, "/work/test.robot")
	require.NoError(t, ns.EnsureInitialized(context.Background()))
	doc, diags := ns.GetFinder().FindKeyword("Open")
	require.Nil(t, doc)
	require.Len(t, diags, 1)
	require.Contains(t, diags[0].Message, "Multiple keywords with name 'Open' found")
	require.Contains(t, diags[0].Message, "A.Open")
	require.Contains(t, diags[0].Message, "B.Open")

	ns2 := f.namespace(t, "/work/test.robot", WithSearchOrder([]string{"B"}))
	require.NoError(t, ns2.EnsureInitialized(context.Background()))
	doc2, diags2 := ns2.GetFinder().FindKeyword("Open")
	require.Empty(t, diags2)
	require.NotNil(t, doc2)
	require.Equal(t, "B", doc2.LibraryName)
}

func TestScenarioStdlibVsCustomPrefersCustom(t *testing.T) {
	loader := libdoc.NewRegistryLoader()
	loader.Register("MyOs", []string{"Copy File"})
	f := newFixture(t, loader)
	f.write(t, "/work/test.robot", ""+
		"*** Settings ***\n"+
		"Library    MyOs\n"+
		"Library    OperatingSystem\n"+
		"*** Test Cases ***\n"+
		"T\n"+
		"    Copy File\n")

	ns := f.namespace(t, "/work/test.robot")
	require.NoError(t, ns.EnsureInitialized(context.Background()))
	doc, diags := ns.GetFinder().FindKeyword("Copy File")
	require.Len(t, diags, 1)
	require.Contains(t, diags[0].Message, "MyOs")
	require.Contains(t, diags[0].Message, "OperatingSystem")
	require.NotNil(t, doc)
	require.Equal(t, "MyOs", doc.LibraryName)
}

func TestScenarioRecursiveResourceImport(t *testing.T) {
	f := newFixture(t, nil)
	f.write(t, "/work/a.resource", ""+
		"*** Settings ***\n"+
		"Resource    a.resource\n"+
		"*** Keywords ***\n"+
		"Helper\n"+
		"    Log    hi\n")

	ns := f.namespace(t, "/work/a.resource")
	require.NoError(t, ns.EnsureInitialized(context.Background()))
	diags, err := ns.GetDiagnostics(context.Background(), func(context.Context, *Namespace) ([]lsp.Diagnostic, error) { return nil, nil })
	require.NoError(t, err)
	require.Contains(t, diagCodes(diags), "RecursiveImport")
}

// Finder side of the Run Keyword If scenario: the branch keywords resolve
// (or fail) as expected. The analyzer's recursion into the branches is
// covered by analyzer_test.go.
func TestScenarioRunKeywordIfBranchKeywordLookup(t *testing.T) {
	f := newFixture(t, nil)
	f.write(t, "/work/test.robot", ""+
		"*** Test Cases ***\n"+
		"T\n"+
		"    Run Keyword If    ${cond}    Log    hi    ELSE IF    ${c2}    Missing KW\n")

	ns := f.namespace(t, "/work/test.robot")
	require.NoError(t, ns.EnsureInitialized(context.Background()))
	finder := ns.GetFinder()
	doc, diags := finder.FindKeyword("Missing KW")
	require.Nil(t, doc)
	require.Len(t, diags, 1)
	require.Contains(t, diags[0].Message, "No keyword with name 'Missing KW' found.")

	_, logDiags := finder.FindKeyword("Log")
	require.Empty(t, logDiags)
}

func TestScenarioBuiltInOverrideIgnored(t *testing.T) {
	f := newFixture(t, nil)
	f.write(t, "/work/test.robot", ""+
		"*** Settings ***\n"+
		"Library    BuiltIn\n"+
		"*** Test Cases ***\n"+
		"T\n"+
		"    Log    hi\n")

	ns := f.namespace(t, "/work/test.robot")
	require.NoError(t, ns.EnsureInitialized(context.Background()))
	diags, err := ns.GetDiagnostics(context.Background(), func(context.Context, *Namespace) ([]lsp.Diagnostic, error) { return nil, nil })
	require.NoError(t, err)
	require.Contains(t, diagCodes(diags), "Override")

	libs := ns.GetLibraries()
	found := false
	for _, e := range libs {
		if e.Key() == "BuiltIn" {
			found = true
		}
	}
	require.True(t, found, "expected default BuiltIn entry to remain")
}

// P2: find_keyword is deterministic given a fixed namespace and search_order.
func TestFindKeywordDeterministic(t *testing.T) {
	f := newFixture(t, nil)
	f.write(t, "/work/test.robot", ""+
		"*** Test Cases ***\n"+
		"T\n"+
		"    Log    hi\n")
	ns := f.namespace(t, "/work/test.robot")
	require.NoError(t, ns.EnsureInitialized(context.Background()))
	finder := ns.GetFinder()

	doc1, diags1 := finder.FindKeyword("Log")
	doc2, diags2 := finder.FindKeyword("Log")
	require.Equal(t, doc1, doc2)
	require.Equal(t, diags1, diags2)
}

// P3: after invalidate(), the first ensure_initialized() re-runs import resolution.
func TestInvalidateReRunsResolution(t *testing.T) {
	loader := libdoc.NewRegistryLoader()
	calls := 0
	counting := countingLoaderFunc(func(name string, args []string) (*entities.LibraryDoc, error) {
		calls++
		return loader.Load(name, args)
	})
	f := newFixture(t, counting)
	f.write(t, "/work/test.robot", ""+
		"*** Settings ***\n"+
		"Library    Collections\n"+
		"*** Test Cases ***\n"+
		"T\n"+
		"    Log    hi\n")
	f.write(t, "/work", "")

	ns := f.namespace(t, "/work/test.robot")
	require.NoError(t, ns.EnsureInitialized(context.Background()))
	before := calls
	require.NoError(t, ns.EnsureInitialized(context.Background()))
	require.Equal(t, before, calls, "second call without invalidate must not re-resolve")

	ns.Invalidate()
	require.NoError(t, ns.EnsureInitialized(context.Background()))
	require.Greater(t, calls, before, "invalidate must force re-resolution on the next ensure_initialized")
}

type countingLoaderFunc func(name string, args []string) (*entities.LibraryDoc, error)

func (f countingLoaderFunc) Load(name string, args []string) (*entities.LibraryDoc, error) {
	return f(name, args)
}

// P4: a resource imported twice by path occupies only one entry.
func TestDuplicateResourceImportSingleEntry(t *testing.T) {
	f := newFixture(t, nil)
	f.write(t, "/work/common.resource", "*** Keywords ***\nHello\n    Log    hi\n")
	f.write(t, "/work/test.robot", ""+
		"*** Settings ***\n"+
		"Resource    common.resource\n"+
		"Resource    common.resource\n"+
		"*** Test Cases ***\n"+
		"T\n"+
		"    Log    hi\n")

	ns := f.namespace(t, "/work/test.robot")
	require.NoError(t, ns.EnsureInitialized(context.Background()))
	require.Len(t, ns.GetResources(), 1)
}

// P5: diagnostics list is append-only within a single analysis; invalidation resets it.
func TestDiagnosticsResetOnInvalidate(t *testing.T) {
	f := newFixture(t, nil)
	f.write(t, "/work/test.robot", ""+
		"*** Settings ***\n"+
		"Library    Unknown\n"+
		"*** Test Cases ***\n"+
		"T\n"+
		"    Log    hi\n")

	ns := f.namespace(t, "/work/test.robot")
	diags, err := ns.GetDiagnostics(context.Background(), func(context.Context, *Namespace) ([]lsp.Diagnostic, error) { return nil, nil })
	require.NoError(t, err)
	require.NotEmpty(t, diags)

	ns.Invalidate()
	ns.mu.Lock()
	reset := ns.diagnostics
	ns.mu.Unlock()
	require.Empty(t, reset)
}

// P6: insertion order of libraries/resources equals Import-node source order.
func TestInsertionOrderMatchesSourceOrder(t *testing.T) {
	f := newFixture(t, nil)
	f.write(t, "/work/test.robot", ""+
		"*** Settings ***\n"+
		"Library    Collections\n"+
		"Library    String\n"+
		"Library    DateTime\n"+
		"*** Test Cases ***\n"+
		"T\n"+
		"    Log    hi\n")

	ns := f.namespace(t, "/work/test.robot")
	require.NoError(t, ns.EnsureInitialized(context.Background()))
	// The implicit default libraries occupy the first slots, ahead of
	// every user import.
	libs := ns.GetLibraries()
	offset := len(entities.DefaultLibraries)
	require.Len(t, libs, offset+3)
	require.Equal(t, "Collections", libs[offset+0].Key())
	require.Equal(t, "String", libs[offset+1].Key())
	require.Equal(t, "DateTime", libs[offset+2].Key())
}
