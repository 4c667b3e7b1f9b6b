package domain

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"
)

// BacklogDocument is the markdown form of a backlog: YAML front matter,
// the epic as a summary, then one level-2 section per story.
type BacklogDocument struct {
	Metadata map[string]interface{} `yaml:"metadata"`
	Summary  string
	Stories  []UserStory
}

func NewBacklogDocument(epic string, stories []UserStory, generatedAt time.Time) *BacklogDocument {
	return &BacklogDocument{
		Metadata: map[string]interface{}{
			"generated_at": generatedAt.UTC().Format(time.RFC3339),
			"stories":      len(stories),
		},
		Summary: strings.TrimSpace(epic),
		Stories: stories,
	}
}

const (
	sectionNone = iota
	sectionCriteria
	sectionDependencies
)

func ParseBacklogMarkdown(content string) (*BacklogDocument, error) {
	var metadata map[string]interface{}
	var summaryBuilder strings.Builder
	var stories []UserStory

	scanner := bufio.NewScanner(strings.NewReader(content))
	isReadingSummary := false
	isReadingMetadata := false
	seenContent := false
	var metadataBuffer bytes.Buffer

	var current *UserStory
	section := sectionNone

	flush := func() {
		if current != nil {
			if current.ID == "" {
				current.ID = uuid.NewString()
			}
			stories = append(stories, *current)
			current = nil
		}
	}

	for scanner.Scan() {
		line := scanner.Text()
		trimmedLine := strings.TrimSpace(line)

		if isReadingMetadata {
			if trimmedLine == "---" {
				isReadingMetadata = false
				if err := yaml.Unmarshal(metadataBuffer.Bytes(), &metadata); err != nil {
					return nil, fmt.Errorf("error parsing YAML metadata: %w", err)
				}
				continue
			}
			metadataBuffer.WriteString(line + "\n")
			continue
		}

		// front matter is only recognised before any other content
		if trimmedLine == "---" && !seenContent {
			isReadingMetadata = true
			seenContent = true
			continue
		}
		if trimmedLine != "" {
			seenContent = true
		}

		if strings.HasPrefix(trimmedLine, "# Summary") {
			isReadingSummary = true
			continue
		}

		if strings.HasPrefix(trimmedLine, "## ") {
			isReadingSummary = false
			flush()
			current = &UserStory{
				Title:              strings.TrimSpace(strings.TrimPrefix(trimmedLine, "## ")),
				AcceptanceCriteria: []string{},
				Dependencies:       []string{},
			}
			section = sectionNone
			continue
		}

		if isReadingSummary {
			if summaryBuilder.Len() > 0 {
				summaryBuilder.WriteString("\n")
			}
			summaryBuilder.WriteString(line)
			continue
		}

		if current == nil {
			continue
		}

		switch {
		case trimmedLine == "**Acceptance Criteria**":
			section = sectionCriteria
		case trimmedLine == "**Dependencies**":
			section = sectionDependencies
		case strings.HasPrefix(trimmedLine, "- "):
			item := strings.TrimPrefix(trimmedLine, "- ")
			switch section {
			case sectionCriteria:
				current.AcceptanceCriteria = append(current.AcceptanceCriteria, item)
			case sectionDependencies:
				current.Dependencies = append(current.Dependencies, item)
			default:
				parseStoryAttribute(current, item)
			}
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error reading content: %w", err)
	}
	flush()

	if stories == nil {
		stories = []UserStory{}
	}
	return &BacklogDocument{
		Metadata: metadata,
		Summary:  strings.TrimSpace(summaryBuilder.String()),
		Stories:  stories,
	}, nil
}

func parseStoryAttribute(story *UserStory, item string) {
	key, value, ok := strings.Cut(item, ":")
	if !ok {
		return
	}
	value = strings.TrimSpace(value)
	switch strings.TrimSpace(key) {
	case "ID":
		story.ID = value
	case "Business Value":
		story.BusinessValue = Level(value)
	case "Risk Level":
		story.RiskLevel = Level(value)
	}
}

func (m *BacklogDocument) Write(w io.Writer) error {
	writer := bufio.NewWriter(w)

	if len(m.Metadata) > 0 {
		if _, err := writer.WriteString("---\n"); err != nil {
			return fmt.Errorf("error writing metadata start: %w", err)
		}
		metadataBytes, err := yaml.Marshal(m.Metadata)
		if err != nil {
			return fmt.Errorf("error marshaling metadata: %w", err)
		}
		if _, err := writer.Write(metadataBytes); err != nil {
			return fmt.Errorf("error writing metadata: %w", err)
		}
		if _, err := writer.WriteString("---\n\n"); err != nil {
			return fmt.Errorf("error writing metadata end: %w", err)
		}
	}

	if m.Summary != "" {
		if _, err := writer.WriteString("# Summary\n" + m.Summary + "\n\n"); err != nil {
			return fmt.Errorf("error writing summary: %w", err)
		}
	}

	for _, story := range m.Stories {
		var b strings.Builder
		fmt.Fprintf(&b, "## %s\n", story.Title)
		if story.ID != "" {
			fmt.Fprintf(&b, "- ID: %s\n", story.ID)
		}
		fmt.Fprintf(&b, "- Business Value: %s\n", story.BusinessValue)
		fmt.Fprintf(&b, "- Risk Level: %s\n\n", story.RiskLevel)
		b.WriteString("**Acceptance Criteria**\n")
		for _, ac := range story.AcceptanceCriteria {
			fmt.Fprintf(&b, "- %s\n", ac)
		}
		if len(story.Dependencies) > 0 {
			b.WriteString("\n**Dependencies**\n")
			for _, dep := range story.Dependencies {
				fmt.Fprintf(&b, "- %s\n", dep)
			}
		}
		b.WriteString("\n")
		if _, err := writer.WriteString(b.String()); err != nil {
			return fmt.Errorf("error writing story %s: %w", story.ID, err)
		}
	}

	return writer.Flush()
}

func (m *BacklogDocument) WriteToFile(filePath string) error {
	file, err := os.OpenFile(filePath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return fmt.Errorf("error opening/creating file %s for writing: %w", filePath, err)
	}
	defer file.Close()

	return m.Write(file)
}
