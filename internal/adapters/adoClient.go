package adapters

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/morgansundqvist/mbacklog/internal/domain"
	"golang.org/x/sync/errgroup"
)

const (
	adoAPIVersion           = "7.1"
	adoNoWorkItemsMessage   = "No work items found for the given WIQL query."
	DefaultAdoExportWorkers = 4
)

// AdoClient exports stories to and imports work items from Azure DevOps.
// Authentication is a personal access token sent as the basic-auth password.
type AdoClient struct {
	httpClient *http.Client
	workers    int
	logger     *slog.Logger
}

func NewAdoClient(httpClient *http.Client, workers int, logger *slog.Logger) *AdoClient {
	if workers <= 0 {
		workers = DefaultAdoExportWorkers
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &AdoClient{
		httpClient: newTrackerHTTPClient(httpClient),
		workers:    workers,
		logger:     logger,
	}
}

type jsonPatchOp struct {
	Op    string `json:"op"`
	Path  string `json:"path"`
	Value string `json:"value"`
}

func buildAdoPatch(story domain.UserStory) []jsonPatchOp {
	return []jsonPatchOp{
		{Op: "add", Path: "/fields/System.Title", Value: story.Title},
		{Op: "add", Path: "/fields/System.Description", Value: storyToHTML(story)},
		{Op: "add", Path: "/fields/System.Tags", Value: adoTags(story)},
	}
}

func adoTags(story domain.UserStory) string {
	return fmt.Sprintf("Business Value: %s; Risk Level: %s", story.BusinessValue, story.RiskLevel)
}

type adoWorkItem struct {
	ID     int                    `json:"id"`
	Fields map[string]interface{} `json:"fields"`
}

// ExportStories creates one work item per story. Azure DevOps has no bulk
// create, so requests run on a bounded pool and every outcome is recorded; a
// failing story does not cancel its siblings. The error is non-nil only when
// no work item could be created.
func (c *AdoClient) ExportStories(ctx context.Context, cfg domain.ExportConfig, stories []domain.UserStory) (domain.ExportResult, error) {
	endpoint := fmt.Sprintf("%s/%s/_apis/wit/workitems/$%s?api-version=%s",
		trimBaseURL(cfg.OrgURL), url.PathEscape(cfg.Project), url.PathEscape(cfg.WorkItemType), adoAPIVersion)
	auth := basicAuth("", cfg.Token)

	c.logger.Info("ado create work items",
		slog.String("project", cfg.Project),
		slog.Int("stories", len(stories)),
		slog.Int("workers", c.workers))

	outcomes := make([]domain.ExportOutcome, len(stories))
	errs := make([]error, len(stories))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.workers)
	for i, story := range stories {
		g.Go(func() error {
			outcomes[i].Title = story.Title
			id, err := c.createWorkItem(gctx, endpoint, auth, story)
			if err != nil {
				c.logger.Warn("ado create work item failed", slog.String("title", story.Title), slog.String("error", err.Error()))
				outcomes[i].Error = err.Error()
				errs[i] = err
				return nil
			}
			outcomes[i].Key = strconv.Itoa(id)
			return nil
		})
	}
	_ = g.Wait()

	result := domain.NewExportResult(domain.PlatformADO, cfg.Project, outcomes)
	if result.Created == 0 && len(stories) > 0 {
		return result, errs[0]
	}
	return result, nil
}

func (c *AdoClient) createWorkItem(ctx context.Context, endpoint, auth string, story domain.UserStory) (int, error) {
	resp, err := doJSON(ctx, c.httpClient, http.MethodPost, endpoint, "application/json-patch+json", auth, buildAdoPatch(story))
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if !isSuccess(resp.StatusCode) {
		return 0, newTrackerError(resp, domain.PlatformADO, "")
	}

	var item adoWorkItem
	if err := json.NewDecoder(resp.Body).Decode(&item); err != nil {
		return 0, fmt.Errorf("failed to decode created work item: %w", err)
	}
	return item.ID, nil
}

type wiqlRequest struct {
	Query string `json:"query"`
}

type wiqlResponse struct {
	WorkItems []struct {
		ID int `json:"id"`
	} `json:"workItems"`
}

type workItemsBatchRequest struct {
	IDs    []int    `json:"ids"`
	Fields []string `json:"fields"`
}

type workItemsBatchResponse struct {
	Value []adoWorkItem `json:"value"`
}

var adoImportFields = []string{"System.Title", "System.Description", "System.History"}

// ImportItems resolves a WIQL query to ids, then batch-fetches title, description and history.
func (c *AdoClient) ImportItems(ctx context.Context, cfg domain.ImportConfig) (string, error) {
	base := trimBaseURL(cfg.OrgURL)
	auth := basicAuth("", cfg.Token)

	ids, err := c.runWIQL(ctx, base, cfg, auth)
	if err != nil {
		return "", err
	}
	if len(ids) == 0 {
		return adoNoWorkItemsMessage, nil
	}

	items, err := c.fetchWorkItems(ctx, base, auth, ids)
	if err != nil {
		return "", err
	}

	blocks := make([]string, 0, len(items))
	for _, item := range items {
		title, _ := item.Fields["System.Title"].(string)
		description := fieldText(item.Fields, "System.Description", "No description.")
		history := fieldText(item.Fields, "System.History", "No history.")
		blocks = append(blocks, fmt.Sprintf("Work Item: %d\nTitle: %s\nDescription: %s\nDiscussion: %s",
			item.ID, title, description, history))
	}
	return strings.Join(blocks, "\n\n---\n\n"), nil
}

func (c *AdoClient) runWIQL(ctx context.Context, base string, cfg domain.ImportConfig, auth string) ([]int, error) {
	endpoint := fmt.Sprintf("%s/%s/_apis/wit/wiql?api-version=%s", base, url.PathEscape(cfg.Project), adoAPIVersion)
	c.logger.Info("ado wiql", slog.String("project", cfg.Project))

	resp, err := doJSON(ctx, c.httpClient, http.MethodPost, endpoint, "application/json", auth, wiqlRequest{Query: cfg.Query})
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if !isSuccess(resp.StatusCode) {
		return nil, newTrackerError(resp, domain.PlatformADO, "executing WIQL")
	}

	var result wiqlResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to decode WIQL response: %w", err)
	}
	ids := make([]int, 0, len(result.WorkItems))
	for _, wi := range result.WorkItems {
		ids = append(ids, wi.ID)
	}
	return ids, nil
}

func (c *AdoClient) fetchWorkItems(ctx context.Context, base, auth string, ids []int) ([]adoWorkItem, error) {
	endpoint := fmt.Sprintf("%s/_apis/wit/workitemsbatch?api-version=%s", base, adoAPIVersion)

	resp, err := doJSON(ctx, c.httpClient, http.MethodPost, endpoint, "application/json", auth,
		workItemsBatchRequest{IDs: ids, Fields: adoImportFields})
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if !isSuccess(resp.StatusCode) {
		return nil, newTrackerError(resp, domain.PlatformADO, "fetching work items")
	}

	var result workItemsBatchResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to decode work items response: %w", err)
	}
	return result.Value, nil
}

func fieldText(fields map[string]interface{}, name, fallback string) string {
	raw, _ := fields[name].(string)
	if strings.TrimSpace(raw) == "" {
		return fallback
	}
	return stripHTML(raw)
}
