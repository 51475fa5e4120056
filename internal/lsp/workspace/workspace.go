// Package workspace wires radovskyb/watcher's filesystem polling into
// the Imports manager's change streams: spec.md's "FileWatcher" external
// collaborator. It is modeled on upbound-up's internal/xpls
// dispatcher.watchCache, which polls a cache root with the same library
// on the same MaxEvents(1)/AddRecursive/Start(interval) shape.
package workspace

import (
	"context"
	"time"

	"github.com/crossplane/crossplane-runtime/pkg/logging"
	"github.com/radovskyb/watcher"
)

// ChangeFunc is invoked with the absolute path of a file the watcher saw
// change.
type ChangeFunc func(path string)

// Watcher polls one or more workspace roots and reports every file change
// under them; the ChangeFunc decides which files matter (the server
// filters by extension, invalidates namespaces and re-publishes
// diagnostics).
type Watcher struct {
	w        *watcher.Watcher
	log      logging.Logger
	interval time.Duration
	onChange ChangeFunc
}

// Option configures a Watcher.
type Option func(*Watcher)

// WithLogger sets the structured logger.
func WithLogger(l logging.Logger) Option { return func(w *Watcher) { w.log = l } }

// WithInterval overrides the poll interval (spec's ambient
// config.DefaultWatchInterval).
func WithInterval(d time.Duration) Option { return func(w *Watcher) { w.interval = d } }

// New builds a Watcher that reports Write/Create/Remove/Rename/Move events.
func New(onChange ChangeFunc, opts ...Option) *Watcher {
	w := &Watcher{
		w:        watcher.New(),
		log:      logging.NewNopLogger(),
		interval: 100 * time.Millisecond,
		onChange: onChange,
	}
	w.w.SetMaxEvents(1)
	w.w.FilterOps(watcher.Write, watcher.Create, watcher.Remove, watcher.Rename, watcher.Move)
	for _, o := range opts {
		o(w)
	}
	return w
}

// AddRecursive registers root (and everything beneath it) for watching.
func (w *Watcher) AddRecursive(root string) error {
	return w.w.AddRecursive(root)
}

// Start begins polling in the background until ctx is cancelled.
func (w *Watcher) Start(ctx context.Context) {
	go func() {
		for {
			select {
			case event := <-w.w.Event:
				w.log.Debug("workspace file event", "path", event.Path, "op", event.Op.String())
				w.onChange(event.Path)
			case err := <-w.w.Error:
				w.log.Debug(err.Error())
			case <-w.w.Closed:
				return
			case <-ctx.Done():
				w.w.Close()
				return
			}
		}
	}()

	go func() {
		if err := w.w.Start(w.interval); err != nil {
			w.log.Debug("workspace watcher stopped", "error", err)
		}
	}()
}

// Close stops the watcher.
func (w *Watcher) Close() { w.w.Close() }
