package session

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// File is a candidate upload. Name and Size are inspected by the validation
// gate; Content is read only once the file has been accepted.
type File struct {
	Name    string
	Size    int64
	Content io.Reader
}

// OpenFile opens path for submission. The caller must close the returned
// closer once the upload settles.
func OpenFile(path string) (File, io.Closer, error) {
	f, err := os.Open(path)
	if err != nil {
		return File{}, nil, fmt.Errorf("opening %s: %w", path, err)
	}
	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return File{}, nil, fmt.Errorf("stat %s: %w", path, err)
	}
	if info.IsDir() {
		_ = f.Close()
		return File{}, nil, fmt.Errorf("%s is a directory", path)
	}
	return File{Name: filepath.Base(path), Size: info.Size(), Content: f}, f, nil
}
