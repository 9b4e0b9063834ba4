// Package session orchestrates one chat session: the upload controller
// submits documents, the query controller sends questions and owns the
// conversation. Both controllers allow a single request in flight and always
// return to Idle once it settles.
package session

import (
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Backend is the pair of endpoints a session needs.
type Backend interface {
	Uploader
	Querier
}

// Options configures a Session.
type Options struct {
	Logger *zap.Logger
	Upload UploadOptions
	Query  QueryOptions
}

// Session bundles the controllers of one client session.
type Session struct {
	ID      uuid.UUID
	Uploads *UploadController
	Queries *QueryController
}

// New creates a session. opts.Logger is used by controllers whose own
// options carry no logger.
func New(backend Backend, opts Options) *Session {
	id := uuid.New()
	if opts.Logger != nil {
		logger := opts.Logger.With(zap.String("session_id", id.String()))
		if opts.Upload.Logger == nil {
			opts.Upload.Logger = logger
		}
		if opts.Query.Logger == nil {
			opts.Query.Logger = logger
		}
	}
	return &Session{
		ID:      id,
		Uploads: NewUploadController(backend, opts.Upload),
		Queries: NewQueryController(backend, opts.Query),
	}
}

// Busy reports whether either controller has a request in flight.
func (s *Session) Busy() bool {
	return s.Uploads.Busy() || s.Queries.Busy()
}
