package libdoc

import (
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"

	"github.com/d-biehl/robotcode/internal/robot/entities"
)

type countingLoader struct {
	*RegistryLoader
	calls *int
}

func (c countingLoader) Load(name string, args []string) (*entities.LibraryDoc, error) {
	*c.calls++
	return c.RegistryLoader.Load(name, args)
}

func TestGetLibDocCachesByKey(t *testing.T) {
	calls := 0
	p := NewProvider(WithLoader(countingLoader{RegistryLoader: NewRegistryLoader(), calls: &calls}))

	d1 := p.GetLibDoc(KindLibrary, "BuiltIn", nil, "", "ns-1")
	d2 := p.GetLibDoc(KindLibrary, "BuiltIn", nil, "", "ns-2")

	require.Same(t, d1, d2, "expected cached doc to be returned by identity")
	require.Equal(t, 1, calls, "expected loader called once")
	require.NotZero(t, d1.Keywords.Len(), "expected BuiltIn to expose keywords")
}

func TestGetLibDocUnknownLibraryYieldsErrorNotFailure(t *testing.T) {
	p := NewProvider()
	doc := p.GetLibDoc(KindLibrary, "TotallyUnknownLib", nil, "", "ns-1")
	require.NotNil(t, doc, "GetLibDoc must never return nil")
	require.Len(t, doc.Errors, 1)
}

func TestGetLibDocResourceFromMemFs(t *testing.T) {
	fs := afero.NewMemMapFs()
	content := "*** Keywords ***\nHello\n    Log    hi\n"
	require.NoError(t, afero.WriteFile(fs, "/res/common.resource", []byte(content), 0o644))
	p := NewProvider(WithFS(fs))
	doc := p.GetLibDoc(KindResource, "/res/common.resource", nil, "/res", "ns-1")
	require.Equal(t, 1, doc.Keywords.Len())
	_, ok := doc.Keywords.Get("hello")
	require.True(t, ok, "expected canonical lookup of 'Hello'")
}

func TestInvalidateNotifiesSubscribers(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/res/a.resource", []byte("*** Keywords ***\nA\n    Log    hi\n"), 0o644))
	p := NewProvider(WithFS(fs))

	var notified *entities.LibraryDoc
	p.Subscribe(func(kind Kind, prior *entities.LibraryDoc) { notified = prior })

	doc := p.GetLibDoc(KindResource, "/res/a.resource", nil, "/res", "ns-1")
	p.Invalidate(KindResource, "/res/a.resource", nil)

	require.Same(t, doc, notified, "expected subscriber to receive the evicted doc by identity")
}

func TestReleaseSentinelEvictsOrphanedEntry(t *testing.T) {
	calls := 0
	p := NewProvider(WithLoader(countingLoader{RegistryLoader: NewRegistryLoader(), calls: &calls}))

	p.GetLibDoc(KindLibrary, "BuiltIn", nil, "", "owner-1")
	p.ReleaseSentinel("owner-1")
	p.GetLibDoc(KindLibrary, "BuiltIn", nil, "", "owner-2")

	require.Equal(t, 2, calls, "expected reload after sentinel release")
}
