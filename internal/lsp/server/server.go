// Package server implements the LSP-facing Server, adapted from
// upbound-up's internal/xpls/server.Server — same lifecycle shape
// (Initialize/DidOpen/DidChange/DidSave/DidChangeWatchedFiles plus a
// publishDiagnostics helper that notifies over the jsonrpc2.Conn) but
// rebuilt against sourcegraph/go-lsp types and this module's own
// document store / imports manager / namespace+analyzer pipeline
// rather than the teacher's Kubernetes-manifest snapshot/validator.
package server

import (
	"context"
	"path/filepath"
	"sync"
	"time"

	"github.com/crossplane/crossplane-runtime/pkg/logging"
	lsp "github.com/sourcegraph/go-lsp"
	"github.com/sourcegraph/jsonrpc2"
	"github.com/spf13/afero"

	robotconfig "github.com/d-biehl/robotcode/internal/config"
	"github.com/d-biehl/robotcode/internal/lsp/document"
	"github.com/d-biehl/robotcode/internal/lsp/workspace"
	"github.com/d-biehl/robotcode/internal/robot/analyzer"
	"github.com/d-biehl/robotcode/internal/robot/entities"
	"github.com/d-biehl/robotcode/internal/robot/imports"
	"github.com/d-biehl/robotcode/internal/robot/libdoc"
	"github.com/d-biehl/robotcode/internal/robot/namespace"
	"github.com/d-biehl/robotcode/internal/robot/parser"
)

// Server is one language server session: one document store and
// imports manager shared by every open file's Namespace.
type Server struct {
	log    logging.Logger
	fs     afero.Fs
	conf   *robotconfig.Config
	docs   *document.Store
	mgr    *imports.Manager
	docDir string

	watcher *workspace.Watcher

	mu  sync.Mutex
	nss map[lsp.DocumentURI]*namespace.Namespace

	conn *jsonrpc2.Conn
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the structured logger.
func WithLogger(log logging.Logger) Option { return func(s *Server) { s.log = log } }

// WithFS overrides the filesystem the server reads Robot files from.
func WithFS(fs afero.Fs) Option { return func(s *Server) { s.fs = fs } }

// New builds a Server backed by conf.
func New(conf *robotconfig.Config, opts ...Option) *Server {
	s := &Server{
		log:  logging.NewNopLogger(),
		fs:   afero.NewOsFs(),
		conf: conf,
		docs: document.NewStore(),
		nss:  make(map[lsp.DocumentURI]*namespace.Namespace),
	}
	for _, o := range opts {
		o(s)
	}

	loader := libdoc.NewRegistryLoader()
	provider := libdoc.NewProvider(
		libdoc.WithFS(s.fs),
		libdoc.WithLogger(s.log),
		libdoc.WithLoader(loader),
	)
	s.mgr = imports.NewManager(provider,
		imports.WithFS(s.fs),
		imports.WithSearchPath(conf.SearchPath),
		imports.WithLogger(s.log),
	)

	s.mgr.OnLibrariesChanged(func(*entities.LibraryDoc) { s.invalidateAll() })
	s.mgr.OnResourcesChanged(func(*entities.LibraryDoc) { s.invalidateAll() })
	s.mgr.OnVariablesChanged(func(*entities.LibraryDoc) { s.invalidateAll() })

	return s
}

// SetConn attaches the jsonrpc2 connection used for publishDiagnostics
// notifications; it is known only once the server
// loop dials in, after New.
func (s *Server) SetConn(conn *jsonrpc2.Conn) { s.conn = conn }

// Initialize implements the "initialize" request.
func (s *Server) Initialize(ctx context.Context, params lsp.InitializeParams) (lsp.InitializeResult, error) {
	if params.RootPath != "" {
		s.docDir = params.RootPath
		if s.watcher == nil {
			s.startWatching(ctx, params.RootPath)
		}
	}

	syncKind := lsp.TDSKFull
	return lsp.InitializeResult{
		Capabilities: lsp.ServerCapabilities{
			TextDocumentSync: &lsp.TextDocumentSyncOptionsOrKind{Kind: &syncKind},
		},
	}, nil
}

// Initialized implements the "initialized" notification. Nothing to do:
// dynamic watch-registration would go here, but this server registers
// its file watcher itself (startWatching) instead of asking the client.
func (s *Server) Initialized(ctx context.Context) {}

// Shutdown stops the background file watcher.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.watcher != nil {
		s.watcher.Close()
	}
	return nil
}

func (s *Server) startWatching(ctx context.Context, root string) {
	interval := robotconfig.DefaultWatchInterval
	if s.conf.WatchInterval != "" {
		interval = s.conf.WatchInterval
	}
	d, err := time.ParseDuration(interval)
	if err != nil {
		s.log.Info("invalid watch interval, using default", "value", interval, "error", err)
		d, _ = time.ParseDuration(robotconfig.DefaultWatchInterval)
	}

	s.watcher = workspace.New(s.onFileChanged, workspace.WithLogger(s.log), workspace.WithInterval(d))
	if err := s.watcher.AddRecursive(root); err != nil {
		s.log.Info("failed to watch workspace root", "root", root, "error", err)
		return
	}
	s.watcher.Start(ctx)
}

func (s *Server) onFileChanged(path string) {
	switch filepath.Ext(path) {
	case ".resource":
		s.mgr.Invalidate(libdoc.KindResource, path, nil)
	case ".robot":
		s.mgr.Invalidate(libdoc.KindResource, path, nil)
	case ".py", ".yaml", ".yml", ".json":
		s.mgr.Invalidate(libdoc.KindVariables, path, nil)
	default:
		return
	}
	s.invalidateAll()
}

func (s *Server) invalidateAll() {
	s.mu.Lock()
	nss := make([]*namespace.Namespace, 0, len(s.nss))
	for _, ns := range s.nss {
		nss = append(nss, ns)
	}
	s.mu.Unlock()

	for _, ns := range nss {
		ns.Invalidate()
	}
	s.republishAll()
}

func (s *Server) republishAll() {
	s.mu.Lock()
	uris := make([]lsp.DocumentURI, 0, len(s.nss))
	for uri := range s.nss {
		uris = append(uris, uri)
	}
	s.mu.Unlock()
	for _, uri := range uris {
		s.publishDiagnostics(context.Background(), uri)
	}
}

// DidOpen implements "textDocument/didOpen".
func (s *Server) DidOpen(ctx context.Context, params lsp.DidOpenTextDocumentParams) {
	uri := params.TextDocument.URI
	s.docs.Open(uri, params.TextDocument.Text, params.TextDocument.Version)
	s.publishDiagnostics(ctx, uri)
}

// DidChange implements "textDocument/didChange".
func (s *Server) DidChange(ctx context.Context, params lsp.DidChangeTextDocumentParams) {
	uri := params.TextDocument.URI
	s.docs.ApplyChanges(uri, params.ContentChanges, params.TextDocument.Version)
	s.dropNamespace(uri)
	s.publishDiagnostics(ctx, uri)
}

// DidSave implements "textDocument/didSave".
func (s *Server) DidSave(ctx context.Context, params lsp.DidSaveTextDocumentParams) {
	s.publishDiagnostics(ctx, params.TextDocument.URI)
}

// DidClose implements "textDocument/didClose".
func (s *Server) DidClose(ctx context.Context, params lsp.DidCloseTextDocumentParams) {
	uri := params.TextDocument.URI
	s.docs.Close(uri)
	s.dropNamespace(uri)
}

// DidChangeWatchedFiles implements "workspace/didChangeWatchedFiles",
// for clients that push change notifications themselves instead of
// relying on this server's own workspace.Watcher.
func (s *Server) DidChangeWatchedFiles(ctx context.Context, params lsp.DidChangeWatchedFilesParams) {
	for _, change := range params.Changes {
		s.onFileChanged(document.Path(change.URI))
	}
}

func (s *Server) dropNamespace(uri lsp.DocumentURI) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.nss, uri)
}

func (s *Server) namespaceFor(uri lsp.DocumentURI) (*namespace.Namespace, error) {
	s.mu.Lock()
	ns, ok := s.nss[uri]
	s.mu.Unlock()
	if ok {
		return ns, nil
	}

	doc, ok := s.docs.Get(uri)
	if !ok {
		return nil, nil
	}

	path := document.Path(uri)
	model, _ := parser.Parse(doc.Text, path)

	var cmdLineVars []entities.VariableDefinition
	for name, value := range s.conf.CommandLineVariables {
		cmdLineVars = append(cmdLineVars, entities.VariableDefinition{
			Name: name, Value: value, Kind: entities.VarCommandLine, Resolvable: true,
		})
	}

	ns = namespace.New(path, model, s.mgr,
		namespace.WithLogger(s.log),
		namespace.WithCommandLineVariables(cmdLineVars),
		namespace.WithInvalidateCallback(func() { s.dropNamespace(uri) }),
	)

	s.mu.Lock()
	s.nss[uri] = ns
	s.mu.Unlock()
	return ns, nil
}

func (s *Server) publishDiagnostics(ctx context.Context, uri lsp.DocumentURI) {
	ns, err := s.namespaceFor(uri)
	if err != nil || ns == nil {
		return
	}

	diags, err := ns.GetDiagnostics(ctx, analyzer.Analyze)
	if err != nil {
		s.log.Info("failed to compute diagnostics", "uri", uri, "error", err)
		return
	}
	if diags == nil {
		diags = []lsp.Diagnostic{}
	}

	if s.conn == nil {
		return
	}
	_ = s.conn.Notify(ctx, "textDocument/publishDiagnostics", lsp.PublishDiagnosticsParams{
		URI:         uri,
		Diagnostics: diags,
	})
}
