package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/morgansundqvist/mbacklog/internal/domain"
)

// backlogFile is what `generate` writes and the other commands read.
type backlogFile struct {
	Epic          string             `json:"epic"`
	KnowledgeBase string             `json:"knowledgeBase,omitempty"`
	GeneratedAt   time.Time          `json:"generatedAt"`
	Stories       []domain.UserStory `json:"stories"`
}

func isMarkdownPath(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return ext == ".md" || ext == ".markdown"
}

// readBacklog loads a JSON backlog, or a rendered markdown backlog when the path ends in .md.
func readBacklog(path string) (backlogFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return backlogFile{}, fmt.Errorf("error reading backlog %s: %w", path, err)
	}

	if isMarkdownPath(path) {
		doc, err := domain.ParseBacklogMarkdown(string(data))
		if err != nil {
			return backlogFile{}, fmt.Errorf("error parsing backlog %s: %w", path, err)
		}
		return backlogFile{Epic: doc.Summary, Stories: doc.Stories}, nil
	}

	var b backlogFile
	if err := json.Unmarshal(data, &b); err != nil {
		return backlogFile{}, fmt.Errorf("%w: %s: %v", domain.ErrMalformedBacklog, path, err)
	}
	if b.Stories == nil {
		b.Stories = []domain.UserStory{}
	}
	return b, nil
}

func writeBacklog(path string, b backlogFile) error {
	if isMarkdownPath(path) {
		return domain.NewBacklogDocument(b.Epic, b.Stories, b.GeneratedAt).WriteToFile(path)
	}
	data, err := json.MarshalIndent(b, "", "  ")
	if err != nil {
		return fmt.Errorf("error encoding backlog: %w", err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0644); err != nil {
		return fmt.Errorf("error writing backlog %s: %w", path, err)
	}
	return nil
}

// appendKnowledgeBase appends imported text to a knowledge base file, creating it if needed.
func appendKnowledgeBase(path string, platform domain.Platform, text string) error {
	existing, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("error reading knowledge base %s: %w", path, err)
	}
	s := domain.CompleteImport(domain.SetKnowledgeBase(domain.NewSession("cli", time.Now()), string(existing)), platform, text, time.Now())
	if err := os.WriteFile(path, []byte(s.KnowledgeBase), 0644); err != nil {
		return fmt.Errorf("error writing knowledge base %s: %w", path, err)
	}
	return nil
}
