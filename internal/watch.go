package internal

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// debounce is how long the watcher waits after a write before analyzing,
// so that a burst of writes is handled once.
const debounce = 100 * time.Millisecond

// Watcher re-analyzes Go files under a set of directories whenever they
// are written.
type Watcher struct {
	engine  *Engine
	logger  *zap.Logger
	out     io.Writer
	dirs    []string
	watcher *fsnotify.Watcher

	mu       sync.Mutex
	watching bool
	done     chan struct{}
}

// NewWatcher creates a watcher printing reports to out.
func NewWatcher(engine *Engine, logger *zap.Logger, out io.Writer, dirs ...string) (*Watcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("error creating watcher: %w", err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Watcher{engine: engine, logger: logger, out: out, dirs: dirs, watcher: w}, nil
}

// Start registers every directory below the watched roots and handles
// events until ctx is done or Stop is called.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.watching {
		return fmt.Errorf("already watching")
	}

	for _, dir := range w.dirs {
		err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
			if err != nil {
				return err
			}
			if info.IsDir() {
				return w.watcher.Add(path)
			}
			return nil
		})
		if err != nil {
			return fmt.Errorf("error adding directory to watcher: %w", err)
		}
	}

	w.watching = true
	w.done = make(chan struct{})
	go w.loop(ctx)
	return nil
}

// Stop closes the watcher. The event loop exits.
func (w *Watcher) Stop() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.watching {
		return fmt.Errorf("not watching")
	}
	w.watching = false
	return w.watcher.Close()
}

// Done is closed when the event loop has exited.
func (w *Watcher) Done() <-chan struct{} { return w.done }

func (w *Watcher) loop(ctx context.Context) {
	defer close(w.done)
	for {
		select {
		case <-ctx.Done():
			_ = w.Stop()
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handleFileEvent(ctx, event)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Error("Watcher error", zap.Error(err))
		}
	}
}

func (w *Watcher) handleFileEvent(ctx context.Context, event fsnotify.Event) {
	if event.Op&fsnotify.Write != fsnotify.Write || !strings.HasSuffix(event.Name, ".go") {
		return
	}
	time.Sleep(debounce)
	report, err := w.engine.Run(ctx, event.Name)
	if err != nil {
		w.logger.Error("Error analyzing file", zap.String("file", event.Name), zap.Error(err))
		return
	}
	source, err := ReadSourceCode(event.Name)
	if err != nil {
		source = nil
	}
	fmt.Fprint(w.out, FormatReport(report, source))
}
