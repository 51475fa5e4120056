package main

import (
	"context"
	"io"
	"os"

	"github.com/sourcegraph/jsonrpc2"
	"github.com/spf13/cobra"

	"github.com/d-biehl/robotcode/internal/lsp/dispatcher"
	"github.com/d-biehl/robotcode/internal/lsp/server"
	"github.com/d-biehl/robotcode/internal/logging"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the language server on stdio",
	RunE:  runServe,
}

// stdrwc adapts os.Stdin/os.Stdout to the io.ReadWriteCloser a
// jsonrpc2.Stream needs, the same pairing upbound-up's xpls serve
// command reads/writes stdio through (there via raw bufio, here
// through jsonrpc2's own codec).
type stdrwc struct{}

func (stdrwc) Read(p []byte) (int, error)  { return os.Stdin.Read(p) }
func (stdrwc) Write(p []byte) (int, error) { return os.Stdout.Write(p) }
func (stdrwc) Close() error {
	if err := os.Stdin.Close(); err != nil {
		return err
	}
	return os.Stdout.Close()
}

// handler bridges jsonrpc2's Handler interface to dispatcher.Dispatch.
type handler struct {
	d   *dispatcher.Dispatcher
	srv *server.Server
}

func (h *handler) Handle(ctx context.Context, conn *jsonrpc2.Conn, r *jsonrpc2.Request) {
	h.d.Dispatch(ctx, h.srv, conn, r)
}

func runServe(cmd *cobra.Command, args []string) error {
	conf, err := loadConfig()
	if err != nil {
		return err
	}

	log, err := logging.New(conf.Debug)
	if err != nil {
		return err
	}

	srv := server.New(conf, server.WithLogger(log))
	d := dispatcher.New(dispatcher.WithLogger(log))

	stream := jsonrpc2.NewBufferedStream(stdrwc{}, jsonrpc2.VSCodeObjectCodec{})
	conn := jsonrpc2.NewConn(cmd.Context(), stream, &handler{d: d, srv: srv})
	srv.SetConn(conn)

	log.Info("robotcode language server listening on stdio")
	select {
	case <-conn.DisconnectNotify():
	case <-cmd.Context().Done():
	}
	return nil
}

var _ io.ReadWriteCloser = stdrwc{}
