// Package libdoc implements the LibraryDoc provider (spec §4.2): a
// process-wide, fingerprint-cached factory that turns an import
// specification (library name + args, or a resource/variables path)
// into a LibraryDoc, never failing the caller — load problems are
// captured as entities.LibraryError values on the returned doc instead.
package libdoc

import (
	"fmt"
	"strings"
	"sync"

	"github.com/crossplane/crossplane-runtime/pkg/errors"
	"github.com/crossplane/crossplane-runtime/pkg/logging"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/spf13/afero"

	"github.com/d-biehl/robotcode/internal/robot/entities"
	"github.com/d-biehl/robotcode/internal/robot/parser"
)

// Kind discriminates the four ways GetLibDoc can be asked to produce a
// LibraryDoc, per spec §4.2.
type Kind int

const (
	KindLibrary Kind = iota
	KindResource
	KindVariables
	KindFromModel
)

// Sentinel is an opaque owner token recorded against a cache entry so
// the provider can garbage-collect docs whose owners have all gone away
// (spec §4.2's GC clause). Namespaces pass their own identity as the
// sentinel when requesting a doc.
type Sentinel = string

const defaultCacheSize = 512

// ChangeFunc is invoked whenever a cached LibraryDoc is invalidated: for
// library docs the prior doc is compared by identity; for
// resource/variables docs subscribers are expected to compare by source
// path, per spec §4.2. kind lets a single subscription fan out into the
// three separate change streams imports.Manager exposes.
type ChangeFunc func(kind Kind, prior *entities.LibraryDoc)

type entry struct {
	doc       *entities.LibraryDoc
	sentinels map[Sentinel]struct{}
}

// Provider is the LibraryDoc provider. It is safe for concurrent use:
// every cache lookup, load and write runs under provider.mu, so all
// GetLibDoc calls (not only those for the same key) are serialized.
type Provider struct {
	fs     afero.Fs
	loader LibraryLoader
	log    logging.Logger

	mu          sync.Mutex
	cache       *lru.Cache[string, *entry]
	subscribers []ChangeFunc
}

// Option configures a Provider, matching the functional-options idiom
// used throughout this module's long-lived components.
type Option func(*Provider)

// WithFS overrides the filesystem used to read resource/variables files
// — tests substitute afero.NewMemMapFs().
func WithFS(fs afero.Fs) Option {
	return func(p *Provider) { p.fs = fs }
}

// WithLogger sets the structured logger.
func WithLogger(log logging.Logger) Option {
	return func(p *Provider) { p.log = log }
}

// WithLoader overrides how KindLibrary specs are resolved to a
// LibraryDoc. The default is NewRegistryLoader(), a small built-in
// library registry (true Python-style introspection is not available in
// this engine; see DESIGN.md).
func WithLoader(l LibraryLoader) Option {
	return func(p *Provider) { p.loader = l }
}

// WithCacheSize overrides the LRU cache's entry capacity.
func WithCacheSize(n int) Option {
	return func(p *Provider) {
		c, _ := lru.New[string, *entry](n)
		p.cache = c
	}
}

// NewProvider constructs a Provider with sane defaults.
func NewProvider(opts ...Option) *Provider {
	cache, _ := lru.New[string, *entry](defaultCacheSize)
	p := &Provider{
		fs:     afero.NewOsFs(),
		loader: NewRegistryLoader(),
		log:    logging.NewNopLogger(),
		cache:  cache,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Subscribe registers fn to be called on every invalidation of a cached
// entry (see Invalidate).
func (p *Provider) Subscribe(fn ChangeFunc) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.subscribers = append(p.subscribers, fn)
}

func cacheKey(kind Kind, source string, args []string) string {
	return fmt.Sprintf("%d\x00%s\x00%s", kind, source, strings.Join(args, "\x01"))
}

// GetLibDoc is the provider's single entry point (spec §4.2). name is
// either a library name (KindLibrary) or a resolved absolute path
// (KindResource/KindVariables); baseDir is accepted but not used by the
// provider or passed to the loader. It never returns a Go error — load
// failures land in the returned doc's Errors.
func (p *Provider) GetLibDoc(kind Kind, name string, args []string, baseDir string, sentinel Sentinel) *entities.LibraryDoc {
	key := cacheKey(kind, name, args)

	p.mu.Lock()
	defer p.mu.Unlock()

	if e, ok := p.cache.Get(key); ok {
		if sentinel != "" {
			e.sentinels[sentinel] = struct{}{}
		}
		return e.doc
	}

	doc := p.load(kind, name, args, baseDir)
	e := &entry{doc: doc, sentinels: map[Sentinel]struct{}{}}
	if sentinel != "" {
		e.sentinels[sentinel] = struct{}{}
	}
	p.cache.Add(key, e)
	return doc
}

func (p *Provider) load(kind Kind, name string, args []string, baseDir string) *entities.LibraryDoc {
	switch kind {
	case KindLibrary:
		doc, err := p.loader.Load(name, args)
		if err != nil {
			return &entities.LibraryDoc{
				Name:   name,
				Errors: []entities.LibraryError{{Message: err.Error(), TypeName: "DataError"}},
			}
		}
		return doc
	case KindResource:
		return p.loadResource(name)
	case KindVariables:
		return p.loadVariables(name, args)
	case KindFromModel:
		return p.loadResource(name)
	default:
		return &entities.LibraryDoc{Name: name, Errors: []entities.LibraryError{{Message: "unknown import kind", TypeName: "InternalError"}}}
	}
}

func (p *Provider) loadResource(path string) *entities.LibraryDoc {
	data, err := afero.ReadFile(p.fs, path)
	if err != nil {
		return &entities.LibraryDoc{
			Source: path,
			Errors: []entities.LibraryError{{Message: errors.Wrap(err, "read resource").Error(), Source: path, TypeName: "DataError"}},
		}
	}
	model, perrs := parser.Parse(string(data), path)
	doc := &entities.LibraryDoc{
		Source:   path,
		Name:     path,
		Keywords: entities.NewKeywordMap(),
	}
	for _, e := range perrs {
		doc.Errors = append(doc.Errors, entities.LibraryError{
			Message: e.Message, Source: path, Line: e.Range.Start.Line + 1, TypeName: "DataError",
		})
	}
	for _, kw := range model.Keywords {
		doc.Keywords.Set(kw.Name, entities.KeywordDoc{
			Name: kw.Name, Range: kw.Range, Source: path, LibraryName: path,
			Args:       bodyArguments(kw.Body),
			RunKeyword: detectRunKeywordKind(kw.Name),
		})
	}
	for _, st := range model.Variables {
		doc.Variables = append(doc.Variables, entities.VariableDefinition{
			Name: st.Name(), Range: st.Range, Source: path, Kind: entities.VarImported, Resolvable: true,
		})
	}
	return doc
}

func (p *Provider) loadVariables(path string, args []string) *entities.LibraryDoc {
	data, err := afero.ReadFile(p.fs, path)
	if err != nil {
		return &entities.LibraryDoc{
			Source: path,
			Errors: []entities.LibraryError{{Message: errors.Wrap(err, "read variables file").Error(), Source: path, TypeName: "DataError"}},
		}
	}
	// A variables file (.py/.yaml/.robot-like) is out of this engine's
	// parsing scope beyond the plain-text Variables table it may define;
	// reuse the resource parser's Variables section for the common case
	// of a `*** Variables ***`-only file, as original_source's own
	// variables-file importer does for the .robot/.resource variant.
	model, _ := parser.Parse(string(data), path)
	doc := &entities.LibraryDoc{Source: path, Name: path, Keywords: entities.NewKeywordMap()}
	for _, st := range model.Variables {
		doc.Variables = append(doc.Variables, entities.VariableDefinition{
			Name: st.Name(), Range: st.Range, Source: path, Kind: entities.VarImported, Resolvable: true,
		})
	}
	return doc
}

func bodyArguments(body []parser.Statement) []string {
	for _, st := range body {
		if st.Kind != parser.StArguments {
			continue
		}
		args := st.Arguments()
		out := make([]string, len(args))
		for i, a := range args {
			out[i] = a.Value
		}
		return out
	}
	return nil
}

// detectRunKeywordKind classifies a keyword name against the "any run
// keyword" family (§4.6), purely by name since this engine has no
// reflective library introspection to read the real flag from.
func detectRunKeywordKind(name string) entities.RunKeywordKind {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "run keyword":
		return entities.RunKeyword
	case "run keyword and continue on failure", "run keyword and return", "run keyword and ignore error":
		return entities.RunKeyword
	case "run keyword if":
		return entities.RunKeywordIf
	case "run keyword unless":
		return entities.RunKeywordWithCondition
	case "run keywords":
		return entities.RunKeywords
	default:
		return entities.NotRunKeyword
	}
}

// Invalidate drops the cache entry for (kind, source, args) — if it
// exists — and notifies subscribers with the evicted doc. Called by
// internal/lsp/workspace's file watcher when a backing file changes.
func (p *Provider) Invalidate(kind Kind, source string, args []string) {
	key := cacheKey(kind, source, args)

	p.mu.Lock()
	e, ok := p.cache.Get(key)
	if ok {
		p.cache.Remove(key)
	}
	subs := append([]ChangeFunc(nil), p.subscribers...)
	p.mu.Unlock()

	if !ok {
		return
	}
	for _, fn := range subs {
		fn(kind, e.doc)
	}
}

// ReleaseSentinel removes sentinel from every cache entry's owner set.
// Entries left with no owners are evicted — the garbage-collection
// clause of spec §4.2.
func (p *Provider) ReleaseSentinel(sentinel Sentinel) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, key := range p.cache.Keys() {
		e, ok := p.cache.Peek(key)
		if !ok {
			continue
		}
		delete(e.sentinels, sentinel)
		if len(e.sentinels) == 0 {
			p.cache.Remove(key)
		}
	}
}
