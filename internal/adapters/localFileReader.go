package adapters

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/morgansundqvist/mbacklog/internal/domain"
	"github.com/morgansundqvist/mbacklog/internal/ports"
)

// LocalFileReader reads knowledge base files from disk. Only text-like
// extensions are accepted.
type LocalFileReader struct {
}

// NewLocalFileReader creates a new instance of LocalFileReader
func NewLocalFileReader() ports.FileReader {
	return &LocalFileReader{}
}

func (r *LocalFileReader) ReadFileContent(filePath string) (string, error) {
	if !domain.IsKnowledgeBaseFile(filePath) {
		return "", fmt.Errorf("%w: %s", domain.ErrUnsupportedFile, filepath.Base(filePath))
	}
	data, err := os.ReadFile(filePath)
	if err != nil {
		return "", err
	}
	return string(data), nil
}
