package domain

import (
	"path/filepath"
	"strings"
)

var KnowledgeBaseExtensions = []string{".txt", ".md", ".json", ".csv", ".html", ".js", ".ts", ".css"}

func IsKnowledgeBaseFile(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	for _, allowed := range KnowledgeBaseExtensions {
		if ext == allowed {
			return true
		}
	}
	return false
}

func IsHTMLFile(name string) bool {
	return strings.ToLower(filepath.Ext(name)) == ".html"
}
