package imports

import (
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"

	"github.com/d-biehl/robotcode/internal/robot/entities"
	"github.com/d-biehl/robotcode/internal/robot/libdoc"
)

func newTestManager(t *testing.T, fs afero.Fs) *Manager {
	t.Helper()
	provider := libdoc.NewProvider(libdoc.WithFS(fs))
	return NewManager(provider, WithFS(fs), WithSearchPath([]string{"/lib"}))
}

func TestFindFileBaseDirThenSearchPath(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/lib/common.resource", []byte("*** Keywords ***\n"), 0o644))
	m := newTestManager(t, fs)

	path, err := m.FindFile("common.resource", "/work")
	require.NoError(t, err, "expected search-path fallback to find the file")
	require.Equal(t, "/lib/common.resource", path)
}

func TestFindFileMissing(t *testing.T) {
	m := newTestManager(t, afero.NewMemMapFs())
	_, err := m.FindFile("missing.resource", "/work")
	require.Error(t, err)
}

func TestGetLibDocForResourceImportResolvesAbsolutePath(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/work/common.resource", []byte("*** Keywords ***\nHello\n    Log    hi\n"), 0o644))
	m := newTestManager(t, fs)

	imp := entities.Import{Kind: entities.ImportResource, Name: "common.resource"}
	doc, path, err := m.GetLibDocForResourceImport(imp, "/work", "ns-1")
	require.NoError(t, err)
	require.Equal(t, "/work/common.resource", path)
	require.Equal(t, 1, doc.Keywords.Len())
}

func TestResourceImportsRecursion(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/work/parent.resource",
		[]byte("*** Settings ***\nResource    child.resource\n"), 0o644))
	m := newTestManager(t, fs)

	imps, err := m.ResourceImports("/work/parent.resource")
	require.NoError(t, err)
	require.Len(t, imps, 1)
	require.Equal(t, "child.resource", imps[0].Name)
}

func TestGetLibDocForLibraryImportResolvesModuleStyleName(t *testing.T) {
	m := newTestManager(t, afero.NewMemMapFs())
	imp := entities.Import{Kind: entities.ImportLibrary, Name: "Collections"}
	doc := m.GetLibDocForLibraryImport(imp, "/work", "ns-1")
	require.Empty(t, doc.Errors)
	require.NotZero(t, doc.Keywords.Len())
}

func TestGetLibDocForLibraryImportFallsBackToPathLookup(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/work/my_library.py", []byte("*** Keywords ***\nDo Thing\n    Log    hi\n"), 0o644))
	m := newTestManager(t, fs)

	imp := entities.Import{Kind: entities.ImportLibrary, Name: "./my_library.py"}
	doc := m.GetLibDocForLibraryImport(imp, "/work", "ns-1")
	require.Empty(t, doc.Errors)
	require.Equal(t, 1, doc.Keywords.Len())
	_, ok := doc.Keywords.Get("do thing")
	require.True(t, ok, "expected path-resolved library file's keyword to be found")
}

func TestGetLibDocForLibraryImportUnknownNonPathNameYieldsError(t *testing.T) {
	m := newTestManager(t, afero.NewMemMapFs())
	imp := entities.Import{Kind: entities.ImportLibrary, Name: "TotallyUnknownLib"}
	doc := m.GetLibDocForLibraryImport(imp, "/work", "ns-1")
	require.Len(t, doc.Errors, 1, "non-path-like unknown names must not attempt a file lookup")
}

func TestResourceChangeStreamFiresOnInvalidate(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/work/common.resource", []byte("*** Keywords ***\n"), 0o644))
	m := newTestManager(t, fs)

	imp := entities.Import{Kind: entities.ImportResource, Name: "common.resource"}
	_, path, err := m.GetLibDocForResourceImport(imp, "/work", "ns-1")
	require.NoError(t, err)

	fired := false
	m.OnResourcesChanged(func(prior *entities.LibraryDoc) { fired = true })
	m.Invalidate(libdoc.KindResource, path, nil)

	require.True(t, fired, "expected resources-changed subscriber to fire")
}
