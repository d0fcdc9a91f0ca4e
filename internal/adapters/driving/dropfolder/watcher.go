// Package dropfolder uploads files as they appear in a watched directory.
//
// A file is uploaded once writes to it have settled, so partially copied
// files are not sent. Hidden files, directories and common download
// temporaries are ignored. Re-saving a file uploads it again.
package dropfolder

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/custodia-labs/ragdesk/internal/core/domain"
	"github.com/custodia-labs/ragdesk/internal/logger"
)

// DefaultSettle is how long a file must go without writes before upload.
const DefaultSettle = 750 * time.Millisecond

// Documents is the part of the document service the watcher drives.
type Documents interface {
	Upload(ctx context.Context, filename string, size int64, content io.Reader) (*domain.Document, error)
	Process(ctx context.Context, id string) error
}

// Options configure a Watcher.
type Options struct {
	// Dir is the directory to watch. Subdirectories are not watched.
	Dir string

	// Process starts processing after each successful upload.
	Process bool

	// Existing uploads files already in Dir when the watcher starts.
	Existing bool

	// Settle overrides DefaultSettle.
	Settle time.Duration

	// OnResult, when set, is called after every upload attempt.
	OnResult func(Result)
}

// Result reports one upload attempt.
type Result struct {
	Path     string
	Document *domain.Document
	Err      error
}

// Watcher watches one directory.
type Watcher struct {
	docs Documents
	opts Options

	mu      sync.Mutex
	pending map[string]*time.Timer
	sent    map[string]fileStamp
	ready   chan string
	stop    chan struct{}
}

type fileStamp struct {
	size    int64
	modTime time.Time
}

// New creates a Watcher. It does not touch the filesystem until Run.
func New(docs Documents, opts Options) *Watcher {
	if opts.Settle <= 0 {
		opts.Settle = DefaultSettle
	}
	return &Watcher{
		docs:    docs,
		opts:    opts,
		pending: make(map[string]*time.Timer),
		sent:    make(map[string]fileStamp),
		ready:   make(chan string, 16),
		stop:    make(chan struct{}),
	}
}

// Run watches until ctx is cancelled. A Watcher runs at most once.
func (w *Watcher) Run(ctx context.Context) error {
	info, err := os.Stat(w.opts.Dir)
	if err != nil {
		return fmt.Errorf("watch %s: %w", w.opts.Dir, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("watch %s: not a directory", w.opts.Dir)
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer fsw.Close()

	if err := fsw.Add(w.opts.Dir); err != nil {
		return fmt.Errorf("watch %s: %w", w.opts.Dir, err)
	}
	logger.Info("watching %s", w.opts.Dir)

	if w.opts.Existing {
		w.scan()
	}
	defer func() {
		close(w.stop)
		w.cancelPending()
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-fsw.Events:
			if !ok {
				return nil
			}
			w.handle(ev)
		case err, ok := <-fsw.Errors:
			if !ok {
				return nil
			}
			logger.Warn("drop folder: %v", err)
		case path := <-w.ready:
			w.upload(ctx, path)
		}
	}
}

func (w *Watcher) scan() {
	entries, err := os.ReadDir(w.opts.Dir)
	if err != nil {
		logger.Warn("drop folder: scan %s: %v", w.opts.Dir, err)
		return
	}
	for _, e := range entries {
		if !e.IsDir() && !Ignored(e.Name()) {
			w.schedule(filepath.Join(w.opts.Dir, e.Name()))
		}
	}
}

func (w *Watcher) handle(ev fsnotify.Event) {
	if Ignored(filepath.Base(ev.Name)) {
		return
	}
	switch {
	case ev.Has(fsnotify.Create), ev.Has(fsnotify.Write):
		w.schedule(ev.Name)
	case ev.Has(fsnotify.Remove), ev.Has(fsnotify.Rename):
		w.forget(ev.Name)
	}
}

// schedule (re)arms the settle timer for path.
func (w *Watcher) schedule(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if t, ok := w.pending[path]; ok {
		t.Stop()
	}
	w.pending[path] = time.AfterFunc(w.opts.Settle, func() {
		w.mu.Lock()
		delete(w.pending, path)
		w.mu.Unlock()
		select {
		case w.ready <- path:
		case <-w.stop:
		}
	})
}

func (w *Watcher) forget(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if t, ok := w.pending[path]; ok {
		t.Stop()
		delete(w.pending, path)
	}
	delete(w.sent, path)
}

func (w *Watcher) cancelPending() {
	w.mu.Lock()
	defer w.mu.Unlock()
	for path, t := range w.pending {
		t.Stop()
		delete(w.pending, path)
	}
}

func (w *Watcher) upload(ctx context.Context, path string) {
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return
	}
	stamp := fileStamp{size: info.Size(), modTime: info.ModTime()}

	w.mu.Lock()
	prev, seen := w.sent[path]
	w.mu.Unlock()
	if seen && prev == stamp {
		return
	}

	doc, err := w.send(ctx, path, info.Size())
	if err == nil {
		w.mu.Lock()
		w.sent[path] = stamp
		w.mu.Unlock()
	}
	if w.opts.OnResult != nil {
		w.opts.OnResult(Result{Path: path, Document: doc, Err: err})
	}
}

func (w *Watcher) send(ctx context.Context, path string, size int64) (*domain.Document, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	doc, err := w.docs.Upload(ctx, filepath.Base(path), size, f)
	if err != nil {
		return nil, err
	}
	if w.opts.Process {
		if err := w.docs.Process(ctx, doc.ID); err != nil && !errors.Is(err, context.Canceled) {
			return doc, fmt.Errorf("process %s: %w", doc.Filename, err)
		}
	}
	return doc, nil
}

// Ignored reports whether a file name should never be uploaded.
func Ignored(name string) bool {
	if name == "" || strings.HasPrefix(name, ".") || strings.HasPrefix(name, "~$") {
		return true
	}
	lower := strings.ToLower(name)
	for _, suffix := range []string{"~", ".tmp", ".part", ".crdownload", ".download", ".swp"} {
		if strings.HasSuffix(lower, suffix) {
			return true
		}
	}
	return false
}
