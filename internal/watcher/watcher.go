// Package watcher submits documents dropped into a directory through the
// upload controller.
package watcher

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"rag-chat-client/internal/logging"
	"rag-chat-client/internal/models"
	"rag-chat-client/internal/session"
)

// DefaultQuiet is how long a file must go without events before it is
// submitted, so a file still being written is uploaded once.
const DefaultQuiet = 500 * time.Millisecond

// Watcher feeds new and modified files to an UploadController one at a time.
type Watcher struct {
	watcher *fsnotify.Watcher
	uploads *session.UploadController
	quiet   time.Duration
	logger  *zap.Logger

	mu      sync.Mutex
	pending map[string]*time.Timer
}

// New creates a watcher. A non-positive quiet period uses DefaultQuiet.
func New(uploads *session.UploadController, quiet time.Duration, logger *zap.Logger) (*Watcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if quiet <= 0 {
		quiet = DefaultQuiet
	}
	return &Watcher{
		watcher: w,
		uploads: uploads,
		quiet:   quiet,
		logger:  logging.OrNop(logger).Named("watcher"),
		pending: make(map[string]*time.Timer),
	}, nil
}

// Watch starts monitoring dir. Each settled upload is sent on the returned
// channel, which is closed when ctx is done or the watcher is stopped.
func (w *Watcher) Watch(ctx context.Context, dir string) (<-chan models.UploadResult, error) {
	if err := w.watcher.Add(dir); err != nil {
		return nil, err
	}

	ready := make(chan string, 100)
	done := make(chan struct{})
	results := make(chan models.UploadResult, 100)

	go w.submitLoop(ctx, ready, done, results)

	go func() {
		defer close(done)
		defer w.stopTimers()
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-w.watcher.Events:
				if !ok {
					return
				}
				if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) {
					continue
				}
				if !w.uploads.Gate().Accepts(event.Name) {
					continue
				}
				w.schedule(ctx, event.Name, ready, done)
			case err, ok := <-w.watcher.Errors:
				if !ok {
					return
				}
				w.logger.Warn("watch error", zap.Error(err))
			}
		}
	}()

	return results, nil
}

// schedule (re)starts the quiet timer for path.
func (w *Watcher) schedule(ctx context.Context, path string, ready chan<- string, done <-chan struct{}) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if t, ok := w.pending[path]; ok {
		t.Reset(w.quiet)
		return
	}
	w.pending[path] = time.AfterFunc(w.quiet, func() {
		w.mu.Lock()
		delete(w.pending, path)
		w.mu.Unlock()

		select {
		case ready <- path:
		case <-done:
		case <-ctx.Done():
		}
	})
}

func (w *Watcher) stopTimers() {
	w.mu.Lock()
	defer w.mu.Unlock()
	for path, t := range w.pending {
		t.Stop()
		delete(w.pending, path)
	}
}

// submitLoop uploads ready files sequentially so the controller is never
// asked to run two submissions at once.
func (w *Watcher) submitLoop(ctx context.Context, ready <-chan string, done <-chan struct{}, results chan<- models.UploadResult) {
	defer close(results)
	for {
		select {
		case <-ctx.Done():
			return
		case <-done:
			return
		case path := <-ready:
			result := w.submit(ctx, path)
			select {
			case results <- result:
			case <-ctx.Done():
				return
			}
		}
	}
}

func (w *Watcher) submit(ctx context.Context, path string) models.UploadResult {
	file, closer, err := session.OpenFile(path)
	if err != nil {
		w.logger.Warn("cannot open file", zap.String("path", path), zap.Error(err))
		return models.UploadFailed(filepath.Base(path), err.Error())
	}
	defer func() { _ = closer.Close() }()

	result, err := w.uploads.Submit(ctx, file)
	if err != nil {
		return models.UploadFailed(file.Name, err.Error())
	}
	w.logger.Info("file submitted", zap.String("path", path), zap.String("status", string(result.Status)))
	return result
}

// Stop stops the watcher.
func (w *Watcher) Stop() error {
	return w.watcher.Close()
}

// SubmitExisting uploads every accepted file already present in dir, in
// directory order.
func (w *Watcher) SubmitExisting(ctx context.Context, dir string) ([]models.UploadResult, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var results []models.UploadResult
	for _, e := range entries {
		if e.IsDir() || !w.uploads.Gate().Accepts(e.Name()) {
			continue
		}
		if ctx.Err() != nil {
			return results, ctx.Err()
		}
		results = append(results, w.submit(ctx, filepath.Join(dir, e.Name())))
	}
	return results, nil
}
