package models

// UploadResponse is the backend's reply to a document upload. Older backends
// report the chunk count as "chunks" and omit the filename.
type UploadResponse struct {
	Status      string `json:"status"`
	Filename    string `json:"filename,omitempty"`
	ChunksCount *int   `json:"chunkscount,omitempty"`
	Chunks      *int   `json:"chunks,omitempty"`
	Message     string `json:"message,omitempty"`
}

// ChunkCount returns the number of indexed segments the backend reported.
func (r *UploadResponse) ChunkCount() int {
	switch {
	case r.ChunksCount != nil:
		return *r.ChunksCount
	case r.Chunks != nil:
		return *r.Chunks
	default:
		return 0
	}
}

// QueryResponse is the backend's reply to a question. Answer is a pointer so
// a missing field can be told apart from an empty answer.
type QueryResponse struct {
	Answer  *string  `json:"answer"`
	Sources []Source `json:"sources"`
}

// ErrorBody captures the error fields backends put in non-2xx replies.
type ErrorBody struct {
	Detail  string `json:"detail,omitempty"`
	Message string `json:"message,omitempty"`
}

// Reason returns the most specific message in the body.
func (e ErrorBody) Reason() string {
	if e.Detail != "" {
		return e.Detail
	}
	return e.Message
}

// HealthResponse is the backend's liveness reply.
type HealthResponse struct {
	Status string `json:"status"`
}
