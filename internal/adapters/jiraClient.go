package adapters

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/morgansundqvist/mbacklog/internal/domain"
)

const jiraNoIssuesMessage = "No issues found for the given JQL query."

// JiraClient exports stories to and imports issues from Jira Cloud (REST API v3).
// Credentials are supplied per call and never stored.
type JiraClient struct {
	httpClient *http.Client
	logger     *slog.Logger
}

func NewJiraClient(httpClient *http.Client, logger *slog.Logger) *JiraClient {
	if logger == nil {
		logger = slog.Default()
	}
	return &JiraClient{
		httpClient: newTrackerHTTPClient(httpClient),
		logger:     logger,
	}
}

type jiraIssueFields struct {
	Summary     string         `json:"summary"`
	IssueType   jiraNamed      `json:"issuetype"`
	Project     jiraProjectRef `json:"project"`
	Description adfNode        `json:"description"`
	Labels      []string       `json:"labels"`
}

type jiraNamed struct {
	Name string `json:"name"`
}

type jiraProjectRef struct {
	Key string `json:"key"`
}

type jiraIssueUpdate struct {
	Fields jiraIssueFields `json:"fields"`
}

type jiraBulkRequest struct {
	IssueUpdates []jiraIssueUpdate `json:"issueUpdates"`
}

type jiraCreatedIssue struct {
	ID  string `json:"id"`
	Key string `json:"key"`
}

type jiraBulkError struct {
	Status        int `json:"status"`
	ElementErrors struct {
		ErrorMessages []string          `json:"errorMessages"`
		Errors        map[string]string `json:"errors"`
	} `json:"elementErrors"`
	FailedElementNumber int `json:"failedElementNumber"`
}

func (e jiraBulkError) messages() []string {
	messages := append([]string{}, e.ElementErrors.ErrorMessages...)
	return append(messages, sortedValues(e.ElementErrors.Errors)...)
}

type jiraBulkResponse struct {
	Issues []jiraCreatedIssue `json:"issues"`
	Errors []jiraBulkError    `json:"errors"`
}

func buildJiraBulkRequest(cfg domain.ExportConfig, stories []domain.UserStory) jiraBulkRequest {
	body := jiraBulkRequest{IssueUpdates: make([]jiraIssueUpdate, 0, len(stories))}
	for _, story := range stories {
		body.IssueUpdates = append(body.IssueUpdates, jiraIssueUpdate{
			Fields: jiraIssueFields{
				Summary:     story.Title,
				IssueType:   jiraNamed{Name: cfg.IssueType},
				Project:     jiraProjectRef{Key: cfg.ProjectKey},
				Description: storyToADF(story),
				Labels:      []string{"value-" + string(story.BusinessValue), "risk-" + string(story.RiskLevel)},
			},
		})
	}
	return body
}

// ExportStories creates all stories with a single bulk-create call.
func (c *JiraClient) ExportStories(ctx context.Context, cfg domain.ExportConfig, stories []domain.UserStory) (domain.ExportResult, error) {
	endpoint := trimBaseURL(cfg.URL) + "/rest/api/3/issue/bulk"
	c.logger.Info("jira bulk create", slog.String("project", cfg.ProjectKey), slog.Int("stories", len(stories)))

	resp, err := doJSON(ctx, c.httpClient, http.MethodPost, endpoint, "application/json",
		basicAuth(cfg.Email, cfg.Token), buildJiraBulkRequest(cfg, stories))
	if err != nil {
		return domain.ExportResult{}, err
	}
	defer resp.Body.Close()

	if !isSuccess(resp.StatusCode) {
		return domain.ExportResult{}, newTrackerError(resp, domain.PlatformJira, "")
	}

	var bulk jiraBulkResponse
	if err := json.NewDecoder(resp.Body).Decode(&bulk); err != nil {
		c.logger.Warn("jira bulk create: undecodable response", slog.String("error", err.Error()))
		return domain.ExportResult{}, fmt.Errorf("jira accepted the bulk create but its response could not be read, check project %s before retrying: %w", cfg.ProjectKey, err)
	}

	return domain.NewExportResult(domain.PlatformJira, cfg.ProjectKey, jiraOutcomes(stories, bulk)), nil
}

const jiraNotCreatedMessage = "not reported as created by Jira"

// jiraOutcomes matches the bulk response back to the request order. Jira lists
// created issues in request order, skipping the failed element numbers.
func jiraOutcomes(stories []domain.UserStory, bulk jiraBulkResponse) []domain.ExportOutcome {
	failed := make(map[int]jiraBulkError, len(bulk.Errors))
	for _, e := range bulk.Errors {
		failed[e.FailedElementNumber] = e
	}

	outcomes := make([]domain.ExportOutcome, len(stories))
	next := 0
	for i, story := range stories {
		outcomes[i].Title = story.Title
		if e, ok := failed[i]; ok {
			msg := strings.Join(e.messages(), ", ")
			if msg == "" {
				msg = fmt.Sprintf("status %d", e.Status)
			}
			outcomes[i].Error = msg
			continue
		}
		if next >= len(bulk.Issues) {
			outcomes[i].Error = jiraNotCreatedMessage
			continue
		}
		outcomes[i].Key = bulk.Issues[next].Key
		next++
	}
	return outcomes
}

type jiraSearchResponse struct {
	Issues []struct {
		Key    string `json:"key"`
		Fields struct {
			Summary     string   `json:"summary"`
			Description *adfNode `json:"description"`
			Comment     struct {
				Comments []struct {
					Body *adfNode `json:"body"`
				} `json:"comments"`
			} `json:"comment"`
		} `json:"fields"`
	} `json:"issues"`
}

// ImportItems runs a JQL search and flattens summary, description and comments of every hit.
func (c *JiraClient) ImportItems(ctx context.Context, cfg domain.ImportConfig) (string, error) {
	query := url.Values{}
	query.Set("jql", cfg.Query)
	query.Set("fields", "summary,description,comment")
	endpoint := trimBaseURL(cfg.URL) + "/rest/api/3/search?" + query.Encode()
	c.logger.Info("jira search", slog.String("jql", cfg.Query))

	resp, err := doJSON(ctx, c.httpClient, http.MethodGet, endpoint, "", basicAuth(cfg.Email, cfg.Token), nil)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if !isSuccess(resp.StatusCode) {
		return "", newTrackerError(resp, domain.PlatformJira, "")
	}

	var data jiraSearchResponse
	if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
		return "", fmt.Errorf("failed to decode Jira search response: %w", err)
	}
	if len(data.Issues) == 0 {
		return jiraNoIssuesMessage, nil
	}

	blocks := make([]string, 0, len(data.Issues))
	for _, issue := range data.Issues {
		description := "No description."
		if issue.Fields.Description != nil {
			description = adfToText(issue.Fields.Description)
		}
		lines := []string{
			"Issue: " + issue.Key,
			"Title: " + issue.Fields.Summary,
			"Description: " + description,
		}
		for _, cm := range issue.Fields.Comment.Comments {
			lines = append(lines, "Comment: "+adfToText(cm.Body))
		}
		blocks = append(blocks, strings.Join(lines, "\n"))
	}
	return strings.Join(blocks, "\n\n---\n\n"), nil
}
