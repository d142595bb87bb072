package capture

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// MaxFileSize is the ceiling for pre-recorded uploads (200 MiB).
const MaxFileSize int64 = 200 << 20

// AcceptedFileTypes is the accept list offered by the file picker.
var AcceptedFileTypes = []string{"video/mp4", "video/webm"}

// File is a pre-recorded clip offered in place of a live capture.
type File struct {
	Name string
	Type string // declared media type
	Size int64
	Open func() (io.ReadCloser, error)
}

// ValidateFile accepts any declared video/* type up to MaxFileSize.
func ValidateFile(f File) error {
	if !strings.HasPrefix(strings.ToLower(strings.TrimSpace(f.Type)), "video/") {
		return fmt.Errorf("%w: %q", ErrInvalidFileType, f.Type)
	}
	if f.Size > MaxFileSize {
		return fmt.Errorf("%w: %d bytes", ErrFileTooLarge, f.Size)
	}
	return nil
}

// Blob exposes the file as an already produced recording.
func (f File) Blob() *Blob {
	return NewStreamBlob(f.Type, f.Size, f.Open)
}

// FileFromPath describes a file on disk with the given declared type.
func FileFromPath(path, declaredType string) (File, error) {
	info, err := os.Stat(path)
	if err != nil {
		return File{}, fmt.Errorf("stat %s: %w", path, err)
	}
	if info.IsDir() {
		return File{}, fmt.Errorf("%s is a directory", path)
	}
	return File{
		Name: filepath.Base(path),
		Type: declaredType,
		Size: info.Size(),
		Open: func() (io.ReadCloser, error) {
			return os.Open(path)
		},
	}, nil
}
