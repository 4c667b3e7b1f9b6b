package ports

import (
	"io"

	"github.com/morgansundqvist/mbacklog/internal/domain"
)

type CSVExporter interface {
	WriteCSV(w io.Writer, platform domain.Platform, stories []domain.UserStory) error
	FileName(platform domain.Platform) string
}
