package watcher

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"rag-chat-client/internal/models"
	"rag-chat-client/internal/session"
)

type recordingUploader struct {
	mu    sync.Mutex
	files map[string]string
}

func (r *recordingUploader) Upload(ctx context.Context, filename string, content io.Reader) (*models.UploadResponse, error) {
	data, _ := io.ReadAll(content)
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.files == nil {
		r.files = make(map[string]string)
	}
	r.files[filename] = string(data)
	n := 1
	return &models.UploadResponse{Status: "success", Filename: filename, ChunksCount: &n}, nil
}

func TestWatcherSubmitsNewFiles(t *testing.T) {
	dir := t.TempDir()
	uploader := &recordingUploader{}
	w, err := New(session.NewUploadController(uploader, session.UploadOptions{}), 50*time.Millisecond, zaptest.NewLogger(t))
	require.NoError(t, err)
	defer w.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	results, err := w.Watch(ctx, dir)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "ignored.pdf"), []byte("%PDF"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "site.txt"), []byte("Trench 4"), 0o600))

	select {
	case result := <-results:
		assert.True(t, result.OK())
		assert.Equal(t, "site.txt", result.Filename)
	case <-ctx.Done():
		t.Fatal("timeout waiting for upload")
	}

	uploader.mu.Lock()
	defer uploader.mu.Unlock()
	assert.Equal(t, map[string]string{"site.txt": "Trench 4"}, uploader.files)
}

func TestWatcherClosesResultsOnCancel(t *testing.T) {
	w, err := New(session.NewUploadController(&recordingUploader{}, session.UploadOptions{}), 0, nil)
	require.NoError(t, err)
	defer w.Stop()
	assert.Equal(t, DefaultQuiet, w.quiet)

	ctx, cancel := context.WithCancel(context.Background())
	results, err := w.Watch(ctx, t.TempDir())
	require.NoError(t, err)
	cancel()

	select {
	case _, ok := <-results:
		assert.False(t, ok)
	case <-time.After(2 * time.Second):
		t.Fatal("results channel not closed")
	}
}

func TestWatchMissingDirectory(t *testing.T) {
	w, err := New(session.NewUploadController(&recordingUploader{}, session.UploadOptions{}), 0, nil)
	require.NoError(t, err)
	defer w.Stop()

	_, err = w.Watch(context.Background(), filepath.Join(t.TempDir(), "missing"))
	assert.Error(t, err)
}

func TestSubmitExisting(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.txt"), []byte("a"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b.md"), []byte("b"), 0o600))
	require.NoError(t, os.Mkdir(filepath.Join(dir, "sub.txt"), 0o700))

	uploader := &recordingUploader{}
	w, err := New(session.NewUploadController(uploader, session.UploadOptions{}), 0, nil)
	require.NoError(t, err)
	defer w.Stop()

	results, err := w.SubmitExisting(context.Background(), dir)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "a.txt", results[0].Filename)
	assert.Len(t, uploader.files, 1)
}
