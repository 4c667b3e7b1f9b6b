package application

import (
	"encoding/json"
	"regexp"
	"strings"
)

var (
	// fencedJSONPattern matches a JSON object or array inside a markdown code block.
	fencedJSONPattern = regexp.MustCompile("(?s)```(?:json)?\\s*\\n?([\\[{].*[\\]}])\\s*```")
	// trailingCommaPattern matches trailing commas before ] or }.
	trailingCommaPattern = regexp.MustCompile(`,\s*([}\]])`)
)

// extractJSON returns the JSON payload of a model response. Valid JSON is
// returned as is; otherwise a code fence is unwrapped and trailing commas dropped.
func extractJSON(content string) string {
	content = strings.TrimSpace(content)
	if json.Valid([]byte(content)) {
		return content
	}
	if matches := fencedJSONPattern.FindStringSubmatch(content); len(matches) > 1 {
		content = matches[1]
		if json.Valid([]byte(content)) {
			return content
		}
	}
	return trailingCommaPattern.ReplaceAllString(content, "$1")
}
