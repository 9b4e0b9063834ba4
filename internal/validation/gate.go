// Package validation checks candidate upload files before any request is
// made. Nothing here performs I/O.
package validation

import (
	"fmt"
	"strings"

	apperrors "rag-chat-client/internal/errors"
)

// MaxFileSize is the default upload size limit (50 MiB).
const MaxFileSize int64 = 50 * 1024 * 1024

// DefaultExtensions lists the file extensions accepted by default.
var DefaultExtensions = []string{".txt"}

// FileInfo is the metadata the gate inspects.
type FileInfo struct {
	Name string
	Size int64
}

// Gate validates files against an extension allow-list and a size limit.
type Gate struct {
	extensions []string
	maxSize    int64
}

// NewGate creates a gate. Empty extensions or a non-positive size fall back
// to the defaults.
func NewGate(extensions []string, maxSize int64) *Gate {
	if len(extensions) == 0 {
		extensions = DefaultExtensions
	}
	if maxSize <= 0 {
		maxSize = MaxFileSize
	}
	normalized := make([]string, 0, len(extensions))
	for _, ext := range extensions {
		ext = strings.TrimSpace(ext)
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		normalized = append(normalized, ext)
	}
	return &Gate{extensions: normalized, maxSize: maxSize}
}

// Extensions returns the accepted extensions.
func (g *Gate) Extensions() []string {
	return append([]string{}, g.extensions...)
}

// MaxSize returns the size limit in bytes.
func (g *Gate) MaxSize() int64 {
	return g.maxSize
}

// Accepts reports whether name ends with an accepted extension. The match is
// case-sensitive, so NOTES.TXT is not a .txt file.
func (g *Gate) Accepts(name string) bool {
	for _, ext := range g.extensions {
		if strings.HasSuffix(name, ext) {
			return true
		}
	}
	return false
}

// Validate returns nil if the file may be uploaded. Rules are checked in
// order and the first failure is returned: extension, then size.
func (g *Gate) Validate(f FileInfo) error {
	if !g.Accepts(f.Name) {
		return apperrors.ErrUnsupportedFileType.WithMessage(
			"unsupported file type: only %s files are supported", strings.Join(g.extensions, ", "))
	}
	if f.Size > g.maxSize {
		return g.TooLarge()
	}
	return nil
}

// TooLarge returns the rejection for a file over the size limit.
func (g *Gate) TooLarge() error {
	return apperrors.ErrFileTooLarge.WithMessage(
		"file too large: maximum size is %s", formatSize(g.maxSize))
}

var defaultGate = NewGate(nil, 0)

// Validate checks f against the default extension list and size limit.
func Validate(f FileInfo) error {
	return defaultGate.Validate(f)
}

func formatSize(n int64) string {
	const mib = 1024 * 1024
	if n%mib == 0 {
		return fmt.Sprintf("%d MB", n/mib)
	}
	return fmt.Sprintf("%d bytes", n)
}
