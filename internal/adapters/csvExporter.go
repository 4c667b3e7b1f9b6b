package adapters

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"

	"github.com/morgansundqvist/mbacklog/internal/domain"
)

var (
	jiraCSVHeader = []string{"Summary", "Issue Type", "Description", "Labels"}
	adoCSVHeader  = []string{"Work Item Type", "Title", "Description", "Tags"}
)

// CSVExporter renders stories in the CSV import formats of Jira and Azure DevOps.
type CSVExporter struct{}

func NewCSVExporter() *CSVExporter {
	return &CSVExporter{}
}

func (e *CSVExporter) FileName(platform domain.Platform) string {
	if platform == domain.PlatformADO {
		return "ado-export-stories.csv"
	}
	return "jira-export-stories.csv"
}

func (e *CSVExporter) WriteCSV(w io.Writer, platform domain.Platform, stories []domain.UserStory) error {
	switch platform {
	case domain.PlatformJira:
		return e.WriteJiraCSV(w, stories)
	case domain.PlatformADO:
		return e.WriteAdoCSV(w, stories)
	}
	return fmt.Errorf("%w: %q", domain.ErrUnknownPlatform, platform)
}

// WriteJiraCSV uses Jira wiki markup for the description.
func (e *CSVExporter) WriteJiraCSV(w io.Writer, stories []domain.UserStory) error {
	rows := make([][]string, 0, len(stories))
	for _, story := range stories {
		rows = append(rows, []string{
			story.Title,
			"Story",
			jiraWikiDescription(story),
			fmt.Sprintf("value:%s risk:%s", story.BusinessValue, story.RiskLevel),
		})
	}
	return writeCSV(w, jiraCSVHeader, rows)
}

// WriteAdoCSV uses HTML for the description.
func (e *CSVExporter) WriteAdoCSV(w io.Writer, stories []domain.UserStory) error {
	rows := make([][]string, 0, len(stories))
	for _, story := range stories {
		rows = append(rows, []string{
			"User Story",
			story.Title,
			storyToHTML(story),
			adoTags(story),
		})
	}
	return writeCSV(w, adoCSVHeader, rows)
}

func jiraWikiDescription(story domain.UserStory) string {
	lines := []string{"h2. Acceptance Criteria"}
	for _, ac := range story.AcceptanceCriteria {
		lines = append(lines, "* "+ac)
	}
	if len(story.Dependencies) > 0 {
		lines = append(lines, "\nh2. Dependencies")
		for _, dep := range story.Dependencies {
			lines = append(lines, "* "+dep)
		}
	}
	return strings.Join(lines, "\n")
}

func writeCSV(w io.Writer, header []string, rows [][]string) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("error writing csv header: %w", err)
	}
	for i, row := range rows {
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("error writing csv row %d: %w", i+1, err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("error flushing csv: %w", err)
	}
	return nil
}
