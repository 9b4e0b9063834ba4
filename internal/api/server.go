// Package api exposes a session over a small JSON API so browser front-ends
// can render the conversation and drive uploads and questions.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/ory/herodot"
	"go.uber.org/zap"

	apperrors "rag-chat-client/internal/errors"
	"rag-chat-client/internal/logging"
	"rag-chat-client/internal/models"
	"rag-chat-client/internal/requestid"
	"rag-chat-client/internal/session"
)

// HealthChecker reports whether the backend is reachable.
type HealthChecker interface {
	Health(ctx context.Context) (*models.HealthResponse, error)
}

// multipartSlack is the room left above the upload size limit for the
// multipart envelope, so oversize files still reach the validation gate.
const multipartSlack = 1 << 20

type Server struct {
	mux     *http.ServeMux
	session *session.Session
	health  HealthChecker
	writer  *herodot.JSONWriter
	logger  *zap.Logger

	readTimeout  time.Duration
	writeTimeout time.Duration
}

// Options configures a Server.
type Options struct {
	Logger       *zap.Logger
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

func NewServer(sess *session.Session, health HealthChecker, opts Options) *Server {
	s := &Server{
		mux:          http.NewServeMux(),
		session:      sess,
		health:       health,
		writer:       herodot.NewJSONWriter(nil),
		logger:       logging.OrNop(opts.Logger).Named("api"),
		readTimeout:  opts.ReadTimeout,
		writeTimeout: opts.WriteTimeout,
	}

	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.mux.HandleFunc("/health", s.healthCheck)
	s.mux.HandleFunc("/health/backend", s.backendHealth)
	s.mux.HandleFunc("/conversation", s.conversation)
	s.mux.HandleFunc("/query", s.query)
	s.mux.HandleFunc("/upload", s.upload)
	s.mux.HandleFunc("/status", s.status)
}

// Handler returns the routed handler wrapped in request ID assignment and
// request logging.
func (s *Server) Handler() http.Handler {
	return requestid.Middleware(s.loggingMiddleware(s.mux))
}

// Run serves on addr until ctx is cancelled.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:         addr,
		Handler:      s.Handler(),
		ReadTimeout:  s.readTimeout,
		WriteTimeout: s.writeTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("server starting", zap.String("addr", addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
}

func (s *Server) healthCheck(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, `{"error": "Method not allowed"}`, http.StatusMethodNotAllowed)
		return
	}

	s.writer.Write(w, r, &HealthResponse{Status: "healthy", SessionID: s.session.ID.String()})
}

func (s *Server) backendHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, `{"error": "Method not allowed"}`, http.StatusMethodNotAllowed)
		return
	}

	resp, err := s.health.Health(r.Context())
	if err != nil {
		s.writer.WriteError(w, r, herodot.ErrInternalServerError.
			WithReason("Backend is unavailable").
			WithDetail("kind", string(apperrors.KindOf(err))).
			WithError(err.Error()))
		return
	}
	s.writer.Write(w, r, &HealthResponse{Status: resp.Status, SessionID: s.session.ID.String()})
}

func (s *Server) conversation(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, `{"error": "Method not allowed"}`, http.StatusMethodNotAllowed)
		return
	}

	msgs := s.session.Queries.Messages()
	s.writer.Write(w, r, &ConversationResponse{
		SessionID: s.session.ID.String(),
		Messages:  msgs,
		Count:     len(msgs),
		Busy:      s.session.Queries.Busy(),
	})
}

func (s *Server) query(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, `{"error": "Method not allowed"}`, http.StatusMethodNotAllowed)
		return
	}

	var req QueryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writer.WriteError(w, r, herodot.ErrBadRequest.WithReason("Invalid request body"))
		return
	}

	reply, err := s.session.Queries.Ask(r.Context(), req.Question)
	if err != nil {
		s.writeRefusal(w, r, err)
		return
	}

	s.writer.Write(w, r, &QueryResponse{
		Message: reply,
		Failed:  !reply.HasSources(),
	})
}

func (s *Server) upload(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, `{"error": "Method not allowed"}`, http.StatusMethodNotAllowed)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, s.session.Uploads.Gate().MaxSize()+multipartSlack)
	file, header, err := r.FormFile("file")
	if isTooLarge(err) {
		// The body outgrew the limit before the file part could be read,
		// so the name is unknown.
		result := models.UploadFailed("", apperrors.Reason(s.session.Uploads.Gate().TooLarge()))
		s.logger.Info("oversize upload body rejected", zap.Int64("content_length", r.ContentLength))
		s.writer.Write(w, r, &UploadResponse{UploadResult: result, Banner: result.Banner()})
		return
	}
	if err != nil {
		s.writer.WriteError(w, r, herodot.ErrBadRequest.WithReason(uploadFormError(err)))
		return
	}
	defer func() { _ = file.Close() }()

	result, err := s.session.Uploads.Submit(r.Context(), session.File{
		Name:    header.Filename,
		Size:    header.Size,
		Content: file,
	})
	if err != nil {
		s.writeRefusal(w, r, err)
		return
	}

	s.writer.Write(w, r, &UploadResponse{UploadResult: result, Banner: result.Banner()})
}

func (s *Server) status(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, `{"error": "Method not allowed"}`, http.StatusMethodNotAllowed)
		return
	}

	resp := &StatusResponse{SessionID: s.session.ID.String()}
	resp.Upload.State = s.session.Uploads.State().String()
	resp.Upload.Busy = s.session.Uploads.Busy()
	if last, ok := s.session.Uploads.LastResult(); ok {
		resp.Upload.LastResult = &last
	}
	resp.Query.State = s.session.Queries.State().String()
	resp.Query.Busy = s.session.Queries.Busy()
	resp.Query.Messages = s.session.Queries.Len()

	s.writer.Write(w, r, resp)
}

// writeRefusal maps the errors a controller returns without starting a
// request.
func (s *Server) writeRefusal(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case apperrors.Is(err, apperrors.ErrBusy):
		s.writer.WriteError(w, r, herodot.ErrConflict.WithReason(apperrors.Reason(err)))
	case apperrors.Is(err, apperrors.ErrEmptyQuestion):
		s.writer.WriteError(w, r, herodot.ErrBadRequest.WithReason(apperrors.Reason(err)))
	default:
		s.logger.Error("unexpected controller error", zap.Error(err))
		s.writer.WriteError(w, r, herodot.ErrInternalServerError.WithReason("Request could not be processed"))
	}
}

func isTooLarge(err error) bool {
	if err == nil {
		return false
	}
	var maxBytes *http.MaxBytesError
	return errors.As(err, &maxBytes) || errors.Is(err, multipart.ErrMessageTooLarge)
}

func uploadFormError(err error) string {
	switch {
	case errors.Is(err, http.ErrMissingFile):
		return `Missing multipart field "file"`
	case strings.Contains(err.Error(), "multipart"):
		return "Expected a multipart/form-data body"
	default:
		return "Invalid upload request"
	}
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		id, _ := requestid.FromContext(r.Context())
		s.logger.Info("request",
			zap.String("request_id", id),
			zap.String("method", r.Method),
			zap.String("uri", r.RequestURI),
			zap.String("remote", r.RemoteAddr),
			zap.Duration("elapsed", time.Since(start)),
		)
	})
}
