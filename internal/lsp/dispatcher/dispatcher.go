// Package dispatcher routes jsonrpc2 requests and notifications to a
// Server, the way upbound-up's internal/xpls/dispatcher.Dispatcher
// routes to its own Server interface. That package's Dispatch switches
// on protocol.Method-shaped method strings and unmarshals into
// golang.org/x/tools/lsp/protocol request types; this one keeps the
// same Dispatch/New/WithLogger shape but unmarshals into
// sourcegraph/go-lsp types, since protocol was never added to this
// module's dependency set.
package dispatcher

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/crossplane/crossplane-runtime/pkg/logging"
	lsp "github.com/sourcegraph/go-lsp"
	"github.com/sourcegraph/jsonrpc2"
)

// Server is everything the dispatcher routes requests to.
type Server interface {
	Initialize(ctx context.Context, params lsp.InitializeParams) (lsp.InitializeResult, error)
	Initialized(ctx context.Context)
	Shutdown(ctx context.Context) error
	DidOpen(ctx context.Context, params lsp.DidOpenTextDocumentParams)
	DidChange(ctx context.Context, params lsp.DidChangeTextDocumentParams)
	DidSave(ctx context.Context, params lsp.DidSaveTextDocumentParams)
	DidClose(ctx context.Context, params lsp.DidCloseTextDocumentParams)
	DidChangeWatchedFiles(ctx context.Context, params lsp.DidChangeWatchedFilesParams)
}

// Dispatcher decodes a jsonrpc2 request and calls the matching Server
// method.
type Dispatcher struct {
	log logging.Logger
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithLogger sets the structured logger.
func WithLogger(log logging.Logger) Option { return func(d *Dispatcher) { d.log = log } }

// New builds a Dispatcher.
func New(opts ...Option) *Dispatcher {
	d := &Dispatcher{log: logging.NewNopLogger()}
	for _, o := range opts {
		o(d)
	}
	return d
}

// Dispatch routes one incoming jsonrpc2 request to srv, replying over
// conn for requests that expect a response.
func (d *Dispatcher) Dispatch(ctx context.Context, srv Server, conn *jsonrpc2.Conn, r *jsonrpc2.Request) {
	d.log.Debug("dispatching request", "method", r.Method)

	switch r.Method {
	case "initialize":
		var params lsp.InitializeParams
		if !d.unmarshal(conn, r, &params) {
			return
		}
		result, err := srv.Initialize(ctx, params)
		d.reply(ctx, conn, r, result, err)

	case "initialized":
		srv.Initialized(ctx)

	case "shutdown":
		err := srv.Shutdown(ctx)
		d.reply(ctx, conn, r, nil, err)

	case "exit":
		_ = conn.Close()

	case "textDocument/didOpen":
		var params lsp.DidOpenTextDocumentParams
		if !d.unmarshal(conn, r, &params) {
			return
		}
		srv.DidOpen(ctx, params)

	case "textDocument/didChange":
		var params lsp.DidChangeTextDocumentParams
		if !d.unmarshal(conn, r, &params) {
			return
		}
		srv.DidChange(ctx, params)

	case "textDocument/didSave":
		var params lsp.DidSaveTextDocumentParams
		if !d.unmarshal(conn, r, &params) {
			return
		}
		srv.DidSave(ctx, params)

	case "textDocument/didClose":
		var params lsp.DidCloseTextDocumentParams
		if !d.unmarshal(conn, r, &params) {
			return
		}
		srv.DidClose(ctx, params)

	case "workspace/didChangeWatchedFiles":
		var params lsp.DidChangeWatchedFilesParams
		if !d.unmarshal(conn, r, &params) {
			return
		}
		srv.DidChangeWatchedFiles(ctx, params)

	default:
		if r.Notif {
			d.log.Debug("unhandled notification", "method", r.Method)
			return
		}
		d.reply(ctx, conn, r, nil, fmt.Errorf("method not found: %s", r.Method))
	}
}

func (d *Dispatcher) unmarshal(conn *jsonrpc2.Conn, r *jsonrpc2.Request, v interface{}) bool {
	if r.Params == nil {
		return true
	}
	if err := json.Unmarshal(*r.Params, v); err != nil {
		d.log.Info("failed to unmarshal params", "method", r.Method, "error", err)
		if !r.Notif {
			_ = conn.ReplyWithError(context.Background(), r.ID, &jsonrpc2.Error{
				Code: jsonrpc2.CodeInvalidParams, Message: err.Error(),
			})
		}
		return false
	}
	return true
}

func (d *Dispatcher) reply(ctx context.Context, conn *jsonrpc2.Conn, r *jsonrpc2.Request, result interface{}, err error) {
	if r.Notif {
		if err != nil {
			d.log.Info("notification handler failed", "method", r.Method, "error", err)
		}
		return
	}
	if err != nil {
		_ = conn.ReplyWithError(ctx, r.ID, &jsonrpc2.Error{Code: jsonrpc2.CodeInternalError, Message: err.Error()})
		return
	}
	if sendErr := conn.Reply(ctx, r.ID, result); sendErr != nil {
		d.log.Info("failed to send reply", "method", r.Method, "error", sendErr)
	}
}
