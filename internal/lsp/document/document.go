// Package document is the document store: the open-editor buffers for
// every Robot file the client has told the server about, keyed by URI.
// It is the external collaborator spec.md calls "DocumentStore" — this
// module's Namespace/Analyzer operate on parser.Model, never on a
// document directly, so this package's only job is tracking the latest
// text per URI and handing it to internal/robot/parser on request.
package document

import (
	"strings"
	"sync"

	lsp "github.com/sourcegraph/go-lsp"
)

// Document is one open buffer.
type Document struct {
	URI     lsp.DocumentURI
	Text    string
	Version int
}

// Store is a concurrency-safe map of open Documents. Full text
// synchronization (spec's ambient choice: TDSKFull) keeps ApplyChanges
// simple — every change event's Text fully replaces the buffer — instead
// of tracking byte offsets the way TDSKIncremental would require.
type Store struct {
	mu   sync.RWMutex
	docs map[lsp.DocumentURI]*Document
}

// NewStore returns an empty Store.
func NewStore() *Store {
	return &Store{docs: make(map[lsp.DocumentURI]*Document)}
}

// Open records a newly opened document.
func (s *Store) Open(uri lsp.DocumentURI, text string, version int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.docs[uri] = &Document{URI: uri, Text: text, Version: version}
}

// ApplyChanges replaces a document's text with the last full-content
// change in changes (spec's TDSKFull sync: the client always resends the
// whole buffer, so only the final entry matters).
func (s *Store) ApplyChanges(uri lsp.DocumentURI, changes []lsp.TextDocumentContentChangeEvent, version int) {
	if len(changes) == 0 {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.docs[uri]
	if !ok {
		d = &Document{URI: uri}
		s.docs[uri] = d
	}
	d.Text = changes[len(changes)-1].Text
	d.Version = version
}

// Close drops a document from the store.
func (s *Store) Close(uri lsp.DocumentURI) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.docs, uri)
}

// Get returns the current text for uri, and whether it's open.
func (s *Store) Get(uri lsp.DocumentURI) (*Document, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	d, ok := s.docs[uri]
	return d, ok
}

// Path strips the "file://" scheme a DocumentURI carries, since
// internal/robot/parser and internal/robot/imports both key their
// filesystem lookups by plain path.
func Path(uri lsp.DocumentURI) string {
	return strings.TrimPrefix(string(uri), "file://")
}

// URI is Path's inverse.
func URI(path string) lsp.DocumentURI {
	return lsp.DocumentURI("file://" + path)
}
