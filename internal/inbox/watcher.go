package inbox

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// watcher reports settled files in a single directory. A file is settled once no
// create or write event has been seen for the debounce interval.
type watcher struct {
	dir        string
	extensions []string
	debounce   time.Duration
	onFile     func(path string)
	logger     *zap.Logger

	mu      sync.Mutex
	fs      *fsnotify.Watcher
	pending map[string]*time.Timer
}

func newWatcher(dir string, extensions []string, debounce time.Duration, onFile func(string), logger *zap.Logger) *watcher {
	return &watcher{
		dir:        filepath.Clean(dir),
		extensions: extensions,
		debounce:   debounce,
		onFile:     onFile,
		logger:     logger,
		pending:    make(map[string]*time.Timer),
	}
}

// start begins watching and returns once the watch is registered. Events are handled
// until ctx is cancelled.
func (w *watcher) start(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	if err := fw.Add(w.dir); err != nil {
		_ = fw.Close()
		return err
	}
	w.mu.Lock()
	w.fs = fw
	w.mu.Unlock()
	w.logger.Debug("inbox watching", zap.String("dir", w.dir), zap.Strings("extensions", w.extensions))
	go w.run(ctx)
	return nil
}

func (w *watcher) run(ctx context.Context) {
	defer w.stop()
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-w.fs.Events:
			if !ok {
				return
			}
			w.handleEvent(ev)
		case err, ok := <-w.fs.Errors:
			if !ok {
				return
			}
			w.logger.Warn("inbox watcher error", zap.Error(err))
		}
	}
}

func (w *watcher) handleEvent(ev fsnotify.Event) {
	path := filepath.Clean(ev.Name)
	if filepath.Dir(path) != w.dir {
		return
	}
	switch {
	case ev.Has(fsnotify.Create), ev.Has(fsnotify.Write):
		if info, err := os.Stat(path); err != nil || info.IsDir() {
			return
		}
		if w.accepts(path) {
			w.schedule(path)
		}
	case ev.Has(fsnotify.Remove), ev.Has(fsnotify.Rename):
		w.cancel(path)
	}
}

// accepts reports whether path has a watched extension. Hidden and partial files are skipped.
func (w *watcher) accepts(path string) bool {
	base := filepath.Base(path)
	if strings.HasPrefix(base, ".") || strings.HasSuffix(base, ".part") || strings.HasPrefix(base, "~$") {
		return false
	}
	return matchExtension(path, w.extensions)
}

func matchExtension(path string, extensions []string) bool {
	if len(extensions) == 0 {
		return true
	}
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
	for _, e := range extensions {
		if strings.TrimPrefix(strings.ToLower(e), ".") == ext {
			return true
		}
	}
	return false
}

func (w *watcher) schedule(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if t, ok := w.pending[path]; ok {
		t.Stop()
	}
	w.pending[path] = time.AfterFunc(w.debounce, func() {
		w.mu.Lock()
		delete(w.pending, path)
		w.mu.Unlock()
		w.onFile(path)
	})
}

func (w *watcher) cancel(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if t, ok := w.pending[path]; ok {
		t.Stop()
		delete(w.pending, path)
	}
}

// existing returns the accepted files already in the directory.
func (w *watcher) existing() []string {
	entries, err := os.ReadDir(w.dir)
	if err != nil {
		w.logger.Warn("inbox listing failed", zap.String("dir", w.dir), zap.Error(err))
		return nil
	}
	var files []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		path := filepath.Join(w.dir, e.Name())
		if w.accepts(path) {
			files = append(files, path)
		}
	}
	return files
}

func (w *watcher) stop() {
	w.mu.Lock()
	defer w.mu.Unlock()
	for path, t := range w.pending {
		t.Stop()
		delete(w.pending, path)
	}
	if w.fs != nil {
		_ = w.fs.Close()
		w.fs = nil
	}
}
