package models

import "fmt"

// UploadStatus is the outcome of a document submission.
type UploadStatus string

const (
	UploadSuccess UploadStatus = "success"
	UploadError   UploadStatus = "error"
)

// DefaultUploadError is reported when the backend rejects an upload without
// saying why.
const DefaultUploadError = "Unknown error"

// UploadResult is the one-shot outcome of a submission, consumed by the
// presentation surface to update its status banner.
type UploadResult struct {
	Status       UploadStatus `json:"status"`
	Filename     string       `json:"filename,omitempty"`
	ChunkCount   int          `json:"chunk_count,omitempty"`
	ErrorMessage string       `json:"error_message,omitempty"`

	// Rejected is set when the backend answered but refused the document,
	// as opposed to a local or transport failure.
	Rejected bool `json:"rejected,omitempty"`
}

// UploadSucceeded builds a success result.
func UploadSucceeded(filename string, chunks int) UploadResult {
	return UploadResult{Status: UploadSuccess, Filename: filename, ChunkCount: chunks}
}

// UploadFailed builds an error result for the given file.
func UploadFailed(filename, reason string) UploadResult {
	if reason == "" {
		reason = DefaultUploadError
	}
	return UploadResult{Status: UploadError, Filename: filename, ErrorMessage: reason}
}

// OK reports whether the upload succeeded.
func (r UploadResult) OK() bool {
	return r.Status == UploadSuccess
}

// Banner renders the status line shown after an upload settles.
func (r UploadResult) Banner() string {
	switch {
	case r.OK():
		return fmt.Sprintf("%s uploaded successfully! %d chunks indexed.", r.Filename, r.ChunkCount)
	case r.Rejected:
		return "Upload failed: " + r.ErrorMessage
	default:
		return "Error: " + r.ErrorMessage
	}
}
