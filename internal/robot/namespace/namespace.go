// Package namespace implements the Namespace builder (spec §4.4), the
// Keyword finder (§4.5) and the Variable resolver (§4.7): the per-file
// scope that aggregates a Robot file's own definitions with everything
// visible through its imports, and answers keyword/variable lookups
// against that scope.
package namespace

import (
	"context"
	"sync"

	"github.com/crossplane/crossplane-runtime/pkg/logging"
	"github.com/google/uuid"
	lsp "github.com/sourcegraph/go-lsp"

	"github.com/d-biehl/robotcode/internal/robot/entities"
	"github.com/d-biehl/robotcode/internal/robot/imports"
	"github.com/d-biehl/robotcode/internal/robot/parser"
)

// entryMap is an alias/name/import_name-keyed, insertion-ordered map of
// LibraryEntry, matching the "search order" invariant from spec §3.
type entryMap struct {
	order []string
	byKey map[string]*entities.LibraryEntry
}

func newEntryMap() *entryMap {
	return &entryMap{byKey: make(map[string]*entities.LibraryEntry)}
}

func (m *entryMap) get(key string) (*entities.LibraryEntry, bool) {
	e, ok := m.byKey[key]
	return e, ok
}

func (m *entryMap) set(key string, e *entities.LibraryEntry) {
	if _, exists := m.byKey[key]; !exists {
		m.order = append(m.order, key)
	}
	m.byKey[key] = e
}

func (m *entryMap) values() []*entities.LibraryEntry {
	out := make([]*entities.LibraryEntry, 0, len(m.order))
	for _, k := range m.order {
		out = append(out, m.byKey[k])
	}
	return out
}

// byPath reports whether any entry's LibraryDoc.Source equals path,
// used for the resource/variables "already imported by path" dedup
// rule (spec §4.4.1, P4).
func (m *entryMap) byPath(path string) (*entities.LibraryEntry, bool) {
	for _, k := range m.order {
		e := m.byKey[k]
		if e.LibraryDoc != nil && e.LibraryDoc.Source == path {
			return e, true
		}
	}
	return nil, false
}

// Namespace is the per-file resolved scope described in spec §3/§4.4.
type Namespace struct {
	source      string
	model       *parser.Model
	mgr         *imports.Manager
	log         logging.Logger
	searchOrder []string
	cmdLineVars []entities.VariableDefinition
	sentinel    string
	onInvalidate func()

	initMu      sync.Mutex
	analyzeMu   sync.Mutex

	mu          sync.Mutex
	initialized bool
	analyzed    bool
	libraries   *entryMap
	resources   *entryMap
	variables   *entryMap
	diagnostics []lsp.Diagnostic

	ownVarsOnce sync.Once
	ownVars     []entities.VariableDefinition

	finder *Finder
}

// Option configures a Namespace.
type Option func(*Namespace)

// WithLogger sets the structured logger.
func WithLogger(log logging.Logger) Option { return func(n *Namespace) { n.log = log } }

// WithSearchOrder sets the tie-break order used by the keyword finder
// (spec §4.5 steps 4-5).
func WithSearchOrder(order []string) Option { return func(n *Namespace) { n.searchOrder = order } }

// WithCommandLineVariables seeds the variable resolver's command-line
// tier (spec §4.7 step 4).
func WithCommandLineVariables(vars []entities.VariableDefinition) Option {
	return func(n *Namespace) { n.cmdLineVars = vars }
}

// WithInvalidateCallback registers the callback Invalidate fires exactly
// once per call (spec §4.4's invalidate contract).
func WithInvalidateCallback(fn func()) Option {
	return func(n *Namespace) { n.onInvalidate = fn }
}

// New constructs a Namespace for model, sourced from source, resolving
// its imports through mgr.
func New(source string, model *parser.Model, mgr *imports.Manager, opts ...Option) *Namespace {
	n := &Namespace{
		source:    source,
		model:     model,
		mgr:       mgr,
		log:       logging.NewNopLogger(),
		sentinel:  uuid.NewString(),
		libraries: newEntryMap(),
		resources: newEntryMap(),
		variables: newEntryMap(),
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// Source returns the namespace's own file path.
func (n *Namespace) Source() string { return n.source }

// Model returns the namespace's own parsed syntax tree, for callers (the
// analyzer) that need to walk Settings/Keywords/TestCases bodies.
func (n *Namespace) Model() *parser.Model { return n.model }

// EnsureInitialized implements spec §4.4's ensure_initialized: it is
// idempotent and safe to call repeatedly; only the first call (after
// construction or after Invalidate) does any work.
//
// Lock ordering follows spec §5: init before libdoc before analyze, so
// EnsureInitialized takes initMu first and never tries to acquire
// analyzeMu itself.
func (n *Namespace) EnsureInitialized(ctx context.Context) error {
	n.initMu.Lock()
	defer n.initMu.Unlock()

	n.mu.Lock()
	already := n.initialized
	n.mu.Unlock()
	if already {
		return nil
	}

	libraries := newEntryMap()
	resources := newEntryMap()
	variables := newEntryMap()
	var diags []lsp.Diagnostic

	for _, name := range entities.DefaultLibraries {
		insertDefaultLibrary(n, libraries, name)
	}

	topImports := n.model.Imports()
	trees, err := fetchAll(ctx, n.mgr, n.source, topImports, n.sentinel)
	if err != nil {
		return err
	}
	for _, tree := range trees {
		diags = append(diags, commitImport(libraries, resources, variables, tree, true)...)
	}

	n.mu.Lock()
	n.libraries = libraries
	n.resources = resources
	n.variables = variables
	n.diagnostics = diags
	n.initialized = true
	n.analyzed = false
	n.finder = nil
	n.mu.Unlock()
	return nil
}

func insertDefaultLibrary(n *Namespace, libraries *entryMap, name string) {
	doc := n.mgr.GetLibDocForLibraryImport(entities.Import{Kind: entities.ImportLibrary, Name: name}, "", n.sentinel)
	libraries.set(name, &entities.LibraryEntry{
		Kind: entities.EntryLibrary, Name: name, ImportName: name, LibraryDoc: doc,
	})
}

// GetOwnVariables visits only the file's own `*** Variables ***` table,
// lazily and once (spec §4.4's get_own_variables).
func (n *Namespace) GetOwnVariables() []entities.VariableDefinition {
	n.ownVarsOnce.Do(func() {
		for _, st := range n.model.Variables {
			n.ownVars = append(n.ownVars, entities.VariableDefinition{
				Name: st.Name(), Range: st.Range, Source: n.source, Kind: entities.VarOwn, Resolvable: true,
			})
		}
	})
	return n.ownVars
}

// GetKeywords returns the flat merge of own, resources (source order),
// libraries (source order) — first match per canonical name wins (spec
// §4.4's get_keywords).
func (n *Namespace) GetKeywords() []entities.KeywordDoc {
	n.mu.Lock()
	resources := n.resources.values()
	libraries := n.libraries.values()
	n.mu.Unlock()

	seen := map[string]bool{}
	var out []entities.KeywordDoc
	add := func(doc entities.LibraryDoc, libName string) {
		for _, kw := range doc.Keywords.Values() {
			key := kwCanonicalKey(kw.Name)
			if seen[key] {
				continue
			}
			seen[key] = true
			out = append(out, kw)
		}
		_ = libName
	}
	for _, st := range n.model.Keywords {
		kw := entities.KeywordDoc{Name: st.Name, Range: st.Range, Source: n.source, LibraryName: n.source}
		key := kwCanonicalKey(kw.Name)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, kw)
	}
	for _, e := range resources {
		if e.LibraryDoc != nil {
			add(*e.LibraryDoc, e.Key())
		}
	}
	for _, e := range libraries {
		if e.LibraryDoc != nil {
			add(*e.LibraryDoc, e.Key())
		}
	}
	return out
}

// GetLibraries, GetResources and GetVariablesEntries expose the
// resolved, ordered import maps (spec §6 external interface).
func (n *Namespace) GetLibraries() []*entities.LibraryEntry {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.libraries.values()
}

func (n *Namespace) GetResources() []*entities.LibraryEntry {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.resources.values()
}

func (n *Namespace) GetVariablesEntries() []*entities.LibraryEntry {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.variables.values()
}

// GetDiagnostics ensures the namespace is initialized and analyzed, and
// returns the accumulated diagnostic list (spec §4.4's get_diagnostics).
// analyzeFn is supplied by the caller (internal/robot/analyzer) to avoid
// an import cycle between namespace and analyzer.
func (n *Namespace) GetDiagnostics(ctx context.Context, analyzeFn func(context.Context, *Namespace) ([]lsp.Diagnostic, error)) ([]lsp.Diagnostic, error) {
	if err := n.EnsureInitialized(ctx); err != nil {
		return nil, err
	}

	n.analyzeMu.Lock()
	defer n.analyzeMu.Unlock()

	n.mu.Lock()
	analyzed := n.analyzed
	base := append([]lsp.Diagnostic(nil), n.diagnostics...)
	n.mu.Unlock()
	if analyzed {
		return base, nil
	}

	extra, err := analyzeFn(ctx, n)
	if err != nil {
		return nil, err
	}

	n.mu.Lock()
	n.diagnostics = append(n.diagnostics, extra...)
	n.analyzed = true
	out := append([]lsp.Diagnostic(nil), n.diagnostics...)
	n.mu.Unlock()
	return out, nil
}

// Invalidate drops every cache atomically and fires the registered
// callback exactly once (spec §4.4's invalidate, and P5's "invalidation
// resets diagnostics to empty").
func (n *Namespace) Invalidate() {
	n.mgr.ReleaseSentinel(n.sentinel)

	n.mu.Lock()
	n.initialized = false
	n.analyzed = false
	n.libraries = newEntryMap()
	n.resources = newEntryMap()
	n.variables = newEntryMap()
	n.diagnostics = nil
	n.finder = nil
	n.mu.Unlock()

	n.ownVarsOnce = sync.Once{}
	n.ownVars = nil

	if n.onInvalidate != nil {
		n.onInvalidate()
	}
}

func kwCanonicalKey(name string) string {
	return canonicalKeywordKey(name)
}
