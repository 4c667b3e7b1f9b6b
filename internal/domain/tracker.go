package domain

import (
	"fmt"
	"strings"
)

type Platform string

const (
	PlatformJira Platform = "jira"
	PlatformADO  Platform = "ado"
)

func ParsePlatform(s string) (Platform, error) {
	switch Platform(strings.ToLower(strings.TrimSpace(s))) {
	case PlatformJira:
		return PlatformJira, nil
	case PlatformADO:
		return PlatformADO, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownPlatform, s)
}

func (p Platform) DisplayName() string {
	switch p {
	case PlatformJira:
		return "Jira"
	case PlatformADO:
		return "ADO"
	}
	return string(p)
}

// ExportConfig carries the credentials and target of a single export call.
type ExportConfig struct {
	Platform Platform `json:"platform"`

	// Jira
	URL        string `json:"url,omitempty"`
	Email      string `json:"email,omitempty"`
	ProjectKey string `json:"projectKey,omitempty"`
	IssueType  string `json:"issueType,omitempty"`

	// Azure DevOps
	OrgURL       string `json:"orgUrl,omitempty"`
	Project      string `json:"project,omitempty"`
	WorkItemType string `json:"workItemType,omitempty"`

	Token string `json:"token"`
}

func (c ExportConfig) Validate() error {
	switch c.Platform {
	case PlatformJira:
		return requireFields(map[string]string{
			"url": c.URL, "email": c.Email, "token": c.Token, "projectKey": c.ProjectKey, "issueType": c.IssueType,
		}, "url", "email", "token", "projectKey", "issueType")
	case PlatformADO:
		return requireFields(map[string]string{
			"orgUrl": c.OrgURL, "project": c.Project, "token": c.Token, "workItemType": c.WorkItemType,
		}, "orgUrl", "project", "token", "workItemType")
	}
	return fmt.Errorf("%w: %q", ErrUnknownPlatform, c.Platform)
}

// Target names the project the export writes into.
func (c ExportConfig) Target() string {
	if c.Platform == PlatformJira {
		return c.ProjectKey
	}
	return c.Project
}

// ImportConfig carries the credentials and query of a single import call.
type ImportConfig struct {
	Platform Platform `json:"platform"`

	URL   string `json:"url,omitempty"`
	Email string `json:"email,omitempty"`

	OrgURL  string `json:"orgUrl,omitempty"`
	Project string `json:"project,omitempty"`

	Token string `json:"token"`
	Query string `json:"query"`
}

func (c ImportConfig) Validate() error {
	switch c.Platform {
	case PlatformJira:
		return requireFields(map[string]string{
			"url": c.URL, "email": c.Email, "token": c.Token, "query": c.Query,
		}, "url", "email", "token", "query")
	case PlatformADO:
		return requireFields(map[string]string{
			"orgUrl": c.OrgURL, "project": c.Project, "token": c.Token, "query": c.Query,
		}, "orgUrl", "project", "token", "query")
	}
	return fmt.Errorf("%w: %q", ErrUnknownPlatform, c.Platform)
}

func requireFields(values map[string]string, order ...string) error {
	for _, name := range order {
		if strings.TrimSpace(values[name]) == "" {
			return &ValidationError{Index: -1, Field: name, Reason: "is required"}
		}
	}
	return nil
}

// ExportOutcome is the result of exporting one story.
type ExportOutcome struct {
	Title string `json:"title"`
	Key   string `json:"key,omitempty"`
	Error string `json:"error,omitempty"`
}

func (o ExportOutcome) Succeeded() bool {
	return o.Error == ""
}

type ExportResult struct {
	Platform Platform        `json:"platform"`
	Target   string          `json:"target"`
	Created  int             `json:"created"`
	Failed   int             `json:"failed"`
	Items    []ExportOutcome `json:"items"`
	Message  string          `json:"message"`
}

// NewExportResult tallies outcomes and builds the summary message.
func NewExportResult(platform Platform, target string, items []ExportOutcome) ExportResult {
	r := ExportResult{Platform: platform, Target: target, Items: items}
	for _, it := range items {
		if it.Succeeded() {
			r.Created++
		} else {
			r.Failed++
		}
	}
	noun := "issues"
	if platform == PlatformADO {
		noun = "work items"
	}
	switch {
	case r.Failed == 0:
		r.Message = fmt.Sprintf("Successfully created %d %s in %s project %s.", r.Created, noun, platform.DisplayName(), target)
	default:
		r.Message = fmt.Sprintf("Created %d of %d %s in %s project %s; %d failed.", r.Created, len(items), noun, platform.DisplayName(), target, r.Failed)
	}
	return r
}

// Partial reports whether some but not all stories were exported.
func (r ExportResult) Partial() bool {
	return r.Created > 0 && r.Failed > 0
}
