package ports

import (
	"context"

	"github.com/morgansundqvist/mbacklog/internal/domain"
)

// TrackerExporter creates issues for stories in an external tracker.
type TrackerExporter interface {
	ExportStories(ctx context.Context, cfg domain.ExportConfig, stories []domain.UserStory) (domain.ExportResult, error)
}

// TrackerImporter runs a query against an external tracker and flattens the
// matching items into plain text for the knowledge base.
type TrackerImporter interface {
	ImportItems(ctx context.Context, cfg domain.ImportConfig) (string, error)
}

type Tracker interface {
	TrackerExporter
	TrackerImporter
}
