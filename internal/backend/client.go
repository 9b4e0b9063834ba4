// Package backend is the HTTP adapter for the question-answering service.
// Every failure is returned as an *errors.StandardError whose Kind tells
// transport, protocol and application failures apart.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"rag-chat-client/internal/config"
	apperrors "rag-chat-client/internal/errors"
	"rag-chat-client/internal/logging"
	"rag-chat-client/internal/models"
	"rag-chat-client/internal/requestid"
)

// RequestIDHeader carries the ID correlating client and backend logs.
const RequestIDHeader = requestid.Header

// UploadField is the multipart field the backend reads the document from.
const UploadField = "file"

const maxErrorBody = 64 * 1024

// Client talks to the backend upload, query and health endpoints.
type Client struct {
	baseURL    string
	uploadPath string
	queryPath  string
	healthPath string
	queryField string
	httpClient *http.Client
	logger     *zap.Logger
}

// NewClient creates a backend client. Empty fields in cfg fall back to the
// defaults of the reference backend.
func NewClient(cfg config.BackendConfig, logger *zap.Logger) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		uploadPath: cfg.UploadPath,
		queryPath:  cfg.QueryPath,
		healthPath: cfg.HealthPath,
		queryField: cfg.QueryField,
		httpClient: &http.Client{Timeout: time.Duration(cfg.Timeout) * time.Second},
		logger:     logging.OrNop(logger).Named("backend"),
	}
	if c.baseURL == "" {
		c.baseURL = config.DefaultBaseURL
	}
	if c.uploadPath == "" {
		c.uploadPath = "/api/upload"
	}
	if c.queryPath == "" {
		c.queryPath = "/api/query"
	}
	if c.healthPath == "" {
		c.healthPath = "/health"
	}
	if c.queryField == "" {
		c.queryField = "q"
	}
	return c
}

// BaseURL returns the backend base URL without a trailing slash.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Upload sends a document as a multipart form under the "file" field.
func (c *Client) Upload(ctx context.Context, filename string, content io.Reader) (*models.UploadResponse, error) {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile(UploadField, filename)
	if err != nil {
		return nil, apperrors.ErrTransport.WithMessage("failed to build upload request").WithCause(err)
	}
	if _, err := io.Copy(part, content); err != nil {
		return nil, apperrors.ErrTransport.WithMessage("failed to read %s", filename).WithCause(err)
	}
	if err := mw.Close(); err != nil {
		return nil, apperrors.ErrTransport.WithMessage("failed to build upload request").WithCause(err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+c.uploadPath, &body)
	if err != nil {
		return nil, apperrors.ErrTransport.WithMessage("failed to build upload request").WithCause(err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := c.do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	if err := checkStatus(resp); err != nil {
		return nil, err
	}

	var result models.UploadResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, apperrors.ErrMalformedResponse.WithCause(err)
	}

	if result.Status != string(models.UploadSuccess) {
		msg := result.Message
		if msg == "" {
			msg = models.DefaultUploadError
		}
		return nil, apperrors.ErrUploadRejected.WithMessage("%s", msg)
	}

	if result.Filename == "" {
		result.Filename = filename
	}
	return &result, nil
}

// Query asks a question. The question is sent form-encoded in the configured
// field.
func (c *Client) Query(ctx context.Context, question string) (*models.QueryResponse, error) {
	form := url.Values{}
	form.Set(c.queryField, question)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+c.queryPath, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, apperrors.ErrTransport.WithMessage("failed to build query request").WithCause(err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	if err := checkStatus(resp); err != nil {
		return nil, err
	}

	var result models.QueryResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, apperrors.ErrMalformedResponse.WithCause(err)
	}
	if result.Answer == nil {
		return nil, apperrors.ErrMissingAnswer
	}
	if result.Sources == nil {
		result.Sources = []models.Source{}
	}
	return &result, nil
}

// Health checks whether the backend is up.
func (c *Client) Health(ctx context.Context) (*models.HealthResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+c.healthPath, nil)
	if err != nil {
		return nil, apperrors.ErrTransport.WithMessage("failed to build health request").WithCause(err)
	}

	resp, err := c.do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	if err := checkStatus(resp); err != nil {
		return nil, err
	}

	var result models.HealthResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, apperrors.ErrMalformedResponse.WithCause(err)
	}
	return &result, nil
}

// do executes req under the context's request ID, or a fresh one, and maps
// transport failures.
func (c *Client) do(req *http.Request) (*http.Response, error) {
	requestID := requestid.FromContextOrNew(req.Context())
	req.Header.Set(RequestIDHeader, requestID)
	req.Header.Set("Accept", "application/json")

	log := c.logger.With(
		zap.String("request_id", requestID),
		zap.String("method", req.Method),
		zap.String("path", req.URL.Path),
	)

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		log.Warn("backend request failed", zap.Error(err), zap.Duration("elapsed", time.Since(start)))
		return nil, apperrors.ErrTransport.WithCause(err)
	}

	log.Debug("backend responded", zap.Int("status", resp.StatusCode), zap.Duration("elapsed", time.Since(start)))
	return resp, nil
}

// checkStatus returns a protocol error for non-2xx replies, carrying the
// status code and any detail the backend put in the body.
func checkStatus(resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}

	msg := fmt.Sprintf("backend returned status %d", resp.StatusCode)
	var body models.ErrorBody
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	if json.Unmarshal(raw, &body) == nil && body.Reason() != "" {
		msg += ": " + body.Reason()
	}
	return apperrors.ErrBadStatus.WithMessage("%s", msg).WithStatus(resp.StatusCode)
}
