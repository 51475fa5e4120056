// Package imports implements the Imports manager (spec §4.3): a façade
// over internal/robot/libdoc that resolves a library/resource/variables
// import statement against a base directory and a configured search
// path, and exposes three per-kind change streams so a namespace can
// subscribe to "the file backing one of my entries changed".
package imports

import (
	"path/filepath"
	"strings"
	"sync"

	"github.com/crossplane/crossplane-runtime/pkg/errors"
	"github.com/crossplane/crossplane-runtime/pkg/logging"
	"github.com/spf13/afero"

	"github.com/d-biehl/robotcode/internal/robot/entities"
	"github.com/d-biehl/robotcode/internal/robot/libdoc"
	"github.com/d-biehl/robotcode/internal/robot/parser"
)

// ChangeFunc is a per-kind invalidation callback; see Manager.OnLibrariesChanged
// and friends.
type ChangeFunc func(prior *entities.LibraryDoc)

// Manager is the Imports manager.
type Manager struct {
	fs         afero.Fs
	provider   *libdoc.Provider
	searchPath []string
	log        logging.Logger

	mu          sync.Mutex
	libChanged  []ChangeFunc
	resChanged  []ChangeFunc
	varChanged  []ChangeFunc
}

// Option configures a Manager.
type Option func(*Manager)

// WithFS overrides the filesystem consulted for path resolution and
// resource re-parsing.
func WithFS(fs afero.Fs) Option { return func(m *Manager) { m.fs = fs } }

// WithSearchPath sets the python-path-like list of directories consulted
// after baseDir when resolving resource/variables imports (spec §4.3).
func WithSearchPath(paths []string) Option {
	return func(m *Manager) { m.searchPath = paths }
}

// WithLogger sets the structured logger.
func WithLogger(log logging.Logger) Option { return func(m *Manager) { m.log = log } }

// NewManager builds a Manager wrapping provider.
func NewManager(provider *libdoc.Provider, opts ...Option) *Manager {
	m := &Manager{
		fs:       afero.NewOsFs(),
		provider: provider,
		log:      logging.NewNopLogger(),
	}
	for _, opt := range opts {
		opt(m)
	}
	provider.Subscribe(m.dispatch)
	return m
}

func (m *Manager) dispatch(kind libdoc.Kind, prior *entities.LibraryDoc) {
	m.mu.Lock()
	var list []ChangeFunc
	switch kind {
	case libdoc.KindLibrary:
		list = append(list, m.libChanged...)
	case libdoc.KindResource:
		list = append(list, m.resChanged...)
	case libdoc.KindVariables:
		list = append(list, m.varChanged...)
	}
	m.mu.Unlock()

	for _, fn := range list {
		fn(prior)
	}
}

// OnLibrariesChanged subscribes to library-file invalidations.
func (m *Manager) OnLibrariesChanged(fn ChangeFunc) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.libChanged = append(m.libChanged, fn)
}

// OnResourcesChanged subscribes to resource-file invalidations.
func (m *Manager) OnResourcesChanged(fn ChangeFunc) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.resChanged = append(m.resChanged, fn)
}

// OnVariablesChanged subscribes to variables-file invalidations.
func (m *Manager) OnVariablesChanged(fn ChangeFunc) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.varChanged = append(m.varChanged, fn)
}

// FindFile resolves name against baseDir first, then the configured
// search path, per spec §4.3. Absolute names are tried as-is first.
func (m *Manager) FindFile(name, baseDir string) (string, error) {
	var candidates []string
	if filepath.IsAbs(name) {
		candidates = append(candidates, name)
	}
	if baseDir != "" {
		candidates = append(candidates, filepath.Join(baseDir, name))
	}
	for _, sp := range m.searchPath {
		candidates = append(candidates, filepath.Join(sp, name))
	}
	for _, c := range candidates {
		clean := filepath.Clean(c)
		if ok, _ := afero.Exists(m.fs, clean); ok {
			return clean, nil
		}
	}
	return "", errors.Errorf("Data file '%s' does not exist.", name)
}

// GetLibDocForLibraryImport resolves a LibraryImport by module-style
// name first (the provider's loader's job); if that comes back
// unresolved and the name looks path-like (contains a path separator or
// ends in ".py"), falls back to a baseDir/search-path file lookup, per
// spec §4.3. The file, once found, is read through the resource loader —
// the closest this engine gets to a file-backed library without a real
// Python runtime to introspect it (see DESIGN.md).
func (m *Manager) GetLibDocForLibraryImport(imp entities.Import, baseDir string, sentinel libdoc.Sentinel) *entities.LibraryDoc {
	doc := m.provider.GetLibDoc(libdoc.KindLibrary, imp.Name, imp.Args, baseDir, sentinel)
	if len(doc.Errors) == 0 || !looksLikeLibraryPath(imp.Name) {
		return doc
	}
	path, err := m.FindFile(imp.Name, baseDir)
	if err != nil {
		return doc
	}
	return m.provider.GetLibDoc(libdoc.KindResource, path, imp.Args, baseDir, sentinel)
}

// looksLikeLibraryPath reports whether a Library setting's value names a
// file rather than an importable module, per spec §4.3's "Library
// ./my_library.py"-style import.
func looksLikeLibraryPath(name string) bool {
	return strings.ContainsAny(name, "/\\") || strings.HasSuffix(name, ".py")
}

// GetLibDocForResourceImport resolves imp.Name against baseDir/search
// path and returns the resource's LibraryDoc plus its resolved absolute
// path (which becomes the LibraryEntry's dedup key, spec §4.4.1).
func (m *Manager) GetLibDocForResourceImport(imp entities.Import, baseDir string, sentinel libdoc.Sentinel) (*entities.LibraryDoc, string, error) {
	path, err := m.FindFile(imp.Name, baseDir)
	if err != nil {
		return nil, "", err
	}
	return m.provider.GetLibDoc(libdoc.KindResource, path, nil, baseDir, sentinel), path, nil
}

// GetLibDocForVariablesImport resolves imp.Name the same way as a
// resource, but the cache key also includes imp.Args (spec Design
// Notes (b): variables files may legitimately be imported twice with
// different args).
func (m *Manager) GetLibDocForVariablesImport(imp entities.Import, baseDir string, sentinel libdoc.Sentinel) (*entities.LibraryDoc, string, error) {
	path, err := m.FindFile(imp.Name, baseDir)
	if err != nil {
		return nil, "", err
	}
	return m.provider.GetLibDoc(libdoc.KindVariables, path, imp.Args, baseDir, sentinel), path, nil
}

// ResourceImports re-parses path's own Settings section to discover the
// imports it in turn declares, so a namespace can recurse into them
// (spec §4.4.1's "after inserting a ResourceImport, recursively resolve
// its own imports"). Modeled as plain re-parsing rather than a child
// Namespace object — see DESIGN.md for why.
func (m *Manager) ResourceImports(path string) ([]entities.Import, error) {
	data, err := afero.ReadFile(m.fs, path)
	if err != nil {
		return nil, errors.Wrap(err, "read resource for nested imports")
	}
	model, _ := parser.Parse(string(data), path)
	return model.Imports(), nil
}

// Invalidate forwards to the underlying provider; exposed so
// internal/lsp/workspace's file watcher doesn't need to know about
// libdoc directly.
func (m *Manager) Invalidate(kind libdoc.Kind, source string, args []string) {
	m.provider.Invalidate(kind, source, args)
}

// ReleaseSentinel forwards to the underlying provider.
func (m *Manager) ReleaseSentinel(sentinel libdoc.Sentinel) {
	m.provider.ReleaseSentinel(sentinel)
}
