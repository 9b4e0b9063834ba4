package session

import (
	"context"
	"io"
	"sync"
	"sync/atomic"

	"rag-chat-client/internal/models"
)

// MockBackend implements Backend with canned replies and call counters.
type MockBackend struct {
	mu sync.Mutex

	answer     string
	sources    []models.Source
	queryErr   error
	uploadResp *models.UploadResponse
	uploadErr  error

	// block, when set, holds requests until it is closed.
	block   chan struct{}
	started chan struct{}

	queries   atomic.Int32
	uploads   atomic.Int32
	questions []string
	bodies    []string
}

func NewMockBackend() *MockBackend {
	return &MockBackend{answer: "mock answer"}
}

func (m *MockBackend) SetAnswer(answer string, sources []models.Source) {
	m.answer = answer
	m.sources = sources
}

func (m *MockBackend) SetQueryError(err error) {
	m.queryErr = err
}

func (m *MockBackend) SetUpload(resp *models.UploadResponse, err error) {
	m.uploadResp = resp
	m.uploadErr = err
}

// Block makes subsequent requests wait until Release is called. Started
// receives once per request that reached the backend.
func (m *MockBackend) Block() {
	m.block = make(chan struct{})
	m.started = make(chan struct{}, 16)
}

func (m *MockBackend) Release() {
	close(m.block)
}

func (m *MockBackend) wait(ctx context.Context) {
	if m.block == nil {
		return
	}
	m.started <- struct{}{}
	select {
	case <-m.block:
	case <-ctx.Done():
	}
}

func (m *MockBackend) Query(ctx context.Context, question string) (*models.QueryResponse, error) {
	m.queries.Add(1)
	m.mu.Lock()
	m.questions = append(m.questions, question)
	m.mu.Unlock()

	m.wait(ctx)
	if m.queryErr != nil {
		return nil, m.queryErr
	}
	answer := m.answer
	return &models.QueryResponse{Answer: &answer, Sources: m.sources}, nil
}

func (m *MockBackend) Upload(ctx context.Context, filename string, content io.Reader) (*models.UploadResponse, error) {
	m.uploads.Add(1)
	data, _ := io.ReadAll(content)
	m.mu.Lock()
	m.bodies = append(m.bodies, string(data))
	m.mu.Unlock()

	m.wait(ctx)
	if m.uploadErr != nil {
		return nil, m.uploadErr
	}
	if m.uploadResp != nil {
		return m.uploadResp, nil
	}
	n := 1
	return &models.UploadResponse{Status: "success", Filename: filename, ChunksCount: &n}, nil
}
