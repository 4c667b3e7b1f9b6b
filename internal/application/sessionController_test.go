package application

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/morgansundqvist/mbacklog/internal/adapters"
	"github.com/morgansundqvist/mbacklog/internal/domain"
	"github.com/morgansundqvist/mbacklog/internal/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2025, 3, 14, 9, 26, 53, 0, time.UTC)

type controllerFixture struct {
	controller *SessionController
	llm        *fakeLLM
	jira       *fakeTracker
	ado        *fakeTracker
	repo       *adapters.MemorySessionRepository
}

func newFixture(t *testing.T, dismiss time.Duration) *controllerFixture {
	t.Helper()
	f := &controllerFixture{
		llm:  &fakeLLM{advancedReply: twoStoryBacklog, simpleReply: "answer"},
		jira: &fakeTracker{},
		ado:  &fakeTracker{},
		repo: adapters.NewMemorySessionRepository(0, 0, nil),
	}
	f.controller = NewSessionController(
		f.repo,
		NewBacklogService(f.llm, nil),
		map[domain.Platform]ports.Tracker{domain.PlatformJira: f.jira, domain.PlatformADO: f.ado},
		adapters.NewCSVExporter(),
		adapters.NewHTMLMarkdownConverter(),
		SessionControllerConfig{
			ImportDismissAfter: dismiss,
			Now:                func() time.Time { return fixedNow },
		},
	)
	return f
}

func (f *controllerFixture) sessionWithStories(t *testing.T) domain.Session {
	t.Helper()
	s, err := f.controller.NewSession()
	require.NoError(t, err)
	_, err = f.controller.SetEpic(s.ID, "Loyalty program")
	require.NoError(t, err)
	s, err = f.controller.Generate(context.Background(), s.ID)
	require.NoError(t, err)
	require.Len(t, s.Stories, 2)
	return s
}

func TestSessionController_NewSession(t *testing.T) {
	f := newFixture(t, 0)
	s, err := f.controller.NewSession()
	require.NoError(t, err)
	assert.NotEmpty(t, s.ID)
	assert.Empty(t, s.Stories)
	assert.Equal(t, domain.StatusIdle, s.Generation.Status)

	got, err := f.controller.GetSession(s.ID)
	require.NoError(t, err)
	assert.Equal(t, s.ID, got.ID)

	require.NoError(t, f.controller.DeleteSession(s.ID))
	_, err = f.controller.GetSession(s.ID)
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)
}

func TestSessionController_Generate(t *testing.T) {
	f := newFixture(t, 0)
	s := f.sessionWithStories(t)

	assert.Equal(t, domain.StatusSuccess, s.Generation.Status)
	assert.Equal(t, "story-1741944413000-0", s.Stories[0].ID)
	assert.Equal(t, "story-1741944413000-1", s.Stories[1].ID)
	assert.Empty(t, s.Error)
	assert.Contains(t, f.llm.advanced[0].UserMessage, "Loyalty program")
}

func TestSessionController_Generate_EmptyEpic(t *testing.T) {
	f := newFixture(t, 0)
	s, err := f.controller.NewSession()
	require.NoError(t, err)

	_, err = f.controller.Generate(context.Background(), s.ID)
	assert.ErrorIs(t, err, domain.ErrEmptyEpic)
	assert.Empty(t, f.llm.advanced)
}

func TestSessionController_Generate_FailureKeepsStories(t *testing.T) {
	f := newFixture(t, 0)
	before := f.sessionWithStories(t)

	f.llm.err = errors.New("quota")
	s, err := f.controller.Generate(context.Background(), before.ID)
	require.Error(t, err)
	assert.Equal(t, "failed to generate product backlog from AI", s.Error)
	assert.Equal(t, domain.StatusError, s.Generation.Status)
	assert.Equal(t, before.Stories, s.Stories)
}

func TestSessionController_Generate_InvalidResponseKeepsStories(t *testing.T) {
	f := newFixture(t, 0)
	before := f.sessionWithStories(t)

	f.llm.advancedReply = `[{"title":"","acceptanceCriteria":["a"],"businessValue":"Low","riskLevel":"Low","dependencies":[]}]`
	s, err := f.controller.Generate(context.Background(), before.ID)
	require.Error(t, err)
	assert.True(t, domain.IsValidationError(err))
	assert.Equal(t, before.Stories, s.Stories)
}

func TestSessionController_Generate_Busy(t *testing.T) {
	f := newFixture(t, 0)
	s, err := f.controller.NewSession()
	require.NoError(t, err)
	_, err = f.controller.SetEpic(s.ID, "epic")
	require.NoError(t, err)

	f.llm.block = make(chan struct{})
	done := make(chan error, 1)
	go func() {
		_, err := f.controller.Generate(context.Background(), s.ID)
		done <- err
	}()

	require.Eventually(t, func() bool {
		got, _ := f.controller.GetSession(s.ID)
		return got.Generation.Status == domain.StatusLoading
	}, time.Second, 5*time.Millisecond)

	_, err = f.controller.Generate(context.Background(), s.ID)
	assert.ErrorIs(t, err, domain.ErrBusy)
	_, _, err = f.controller.Export(context.Background(), s.ID, domain.ExportConfig{
		Platform: domain.PlatformJira, URL: "u", Email: "e", Token: "t", ProjectKey: "K", IssueType: "Story",
	})
	assert.Error(t, err)

	close(f.llm.block)
	require.NoError(t, <-done)
}

func TestSessionController_Clarify(t *testing.T) {
	f := newFixture(t, 0)
	before := f.sessionWithStories(t)

	s, err := f.controller.Clarify(context.Background(), before.ID, "Why tiers?")
	require.NoError(t, err)
	assert.Equal(t, "answer", s.ClarificationAnswer)
	assert.Equal(t, domain.StatusSuccess, s.Clarification.Status)
	assert.Equal(t, before.Stories, s.Stories)

	_, err = f.controller.Clarify(context.Background(), before.ID, "  ")
	assert.ErrorIs(t, err, domain.ErrEmptyQuestion)

	f.llm.err = errors.New("down")
	s, err = f.controller.Clarify(context.Background(), before.ID, "Again?")
	require.Error(t, err)
	assert.Equal(t, "Error: failed to get clarification from AI", s.ClarificationAnswer)
	assert.Equal(t, before.Stories, s.Stories)
}

func TestSessionController_LoadKnowledgeBaseFile(t *testing.T) {
	f := newFixture(t, 0)
	s, err := f.controller.NewSession()
	require.NoError(t, err)

	s, err = f.controller.LoadKnowledgeBaseFile(s.ID, "notes.md", []byte("# Notes"))
	require.NoError(t, err)
	assert.Equal(t, "# Notes", s.KnowledgeBase)

	s, err = f.controller.LoadKnowledgeBaseFile(s.ID, "page.html", []byte("<h2>Guide</h2><p>Read <em>this</em></p>"))
	require.NoError(t, err)
	assert.Contains(t, s.KnowledgeBase, "## Guide")
	assert.Contains(t, s.KnowledgeBase, "Read _this_")

	s, err = f.controller.LoadKnowledgeBaseFile(s.ID, "brief.pdf", []byte("%PDF"))
	assert.ErrorIs(t, err, domain.ErrUnsupportedFile)
	assert.Empty(t, s.KnowledgeBase)
}

func TestSessionController_Import(t *testing.T) {
	f := newFixture(t, 20*time.Millisecond)
	f.jira.importText = "Issue: SHOP-1\nTitle: Points"
	s, err := f.controller.NewSession()
	require.NoError(t, err)
	_, err = f.controller.SetKnowledgeBase(s.ID, "existing")
	require.NoError(t, err)

	s, err = f.controller.Import(context.Background(), s.ID, domain.ImportConfig{
		Platform: domain.PlatformJira, URL: "https://x.atlassian.net", Email: "e", Token: "t", Query: "project = SHOP",
	})
	require.NoError(t, err)
	assert.Equal(t, "existing\n\n--- IMPORTED FROM JIRA ---\nIssue: SHOP-1\nTitle: Points", s.KnowledgeBase)
	assert.Equal(t, domain.StatusSuccess, s.Import.Status)
	assert.Equal(t, "Successfully imported data into Knowledge Base!", s.Import.Message)
	require.NotNil(t, s.Import.DismissAt)

	assert.Eventually(t, func() bool {
		got, _ := f.controller.GetSession(s.ID)
		return got.Import.Status == domain.StatusIdle
	}, time.Second, 5*time.Millisecond)

	got, err := f.controller.GetSession(s.ID)
	require.NoError(t, err)
	assert.Equal(t, s.KnowledgeBase, got.KnowledgeBase)
}

func TestSessionController_Import_Errors(t *testing.T) {
	f := newFixture(t, 0)
	s, err := f.controller.NewSession()
	require.NoError(t, err)

	_, err = f.controller.Import(context.Background(), s.ID, domain.ImportConfig{Platform: domain.PlatformADO, OrgURL: "o", Token: "t", Query: "q"})
	var ve *domain.ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "project", ve.Field)
	assert.Empty(t, f.ado.imports)

	f.ado.importErr = &domain.TrackerError{Platform: domain.PlatformADO, Op: "executing WIQL", StatusCode: 400, Messages: []string{"bad"}}
	s, err = f.controller.Import(context.Background(), s.ID, domain.ImportConfig{Platform: domain.PlatformADO, OrgURL: "o", Project: "p", Token: "t", Query: "q"})
	require.Error(t, err)
	assert.Equal(t, domain.StatusError, s.Import.Status)
	assert.Equal(t, "ADO API Error (400) executing WIQL: bad", s.Import.Message)
	assert.Empty(t, s.KnowledgeBase)
}

func TestSessionController_Export(t *testing.T) {
	f := newFixture(t, 0)
	before := f.sessionWithStories(t)
	f.ado.result = domain.NewExportResult(domain.PlatformADO, "Shop", []domain.ExportOutcome{
		{Title: "a", Key: "1"}, {Title: "b", Error: "ADO API Error (400)"},
	})

	s, result, err := f.controller.Export(context.Background(), before.ID, domain.ExportConfig{
		Platform: domain.PlatformADO, OrgURL: "o", Project: "Shop", Token: "t", WorkItemType: "User Story",
	})
	require.NoError(t, err)
	assert.True(t, result.Partial())
	assert.Equal(t, domain.StatusPartial, s.Export.Status)
	assert.Equal(t, "Created 1 of 2 work items in ADO project Shop; 1 failed.", s.Export.Message)
	assert.Equal(t, before.Stories, f.ado.exported[0])
	assert.Equal(t, before.Stories, s.Stories)
}

func TestSessionController_Export_Failure(t *testing.T) {
	f := newFixture(t, 0)
	before := f.sessionWithStories(t)
	f.jira.exportErr = &domain.TrackerError{Platform: domain.PlatformJira, StatusCode: 401, Messages: []string{"Unauthorized"}}

	s, _, err := f.controller.Export(context.Background(), before.ID, domain.ExportConfig{
		Platform: domain.PlatformJira, URL: "u", Email: "e", Token: "t", ProjectKey: "K", IssueType: "Story",
	})
	require.Error(t, err)
	assert.True(t, domain.IsTrackerError(err))
	assert.Equal(t, domain.StatusError, s.Export.Status)
	assert.Equal(t, "Jira API Error (401): Unauthorized", s.Export.Message)
}

func TestSessionController_Export_NoStories(t *testing.T) {
	f := newFixture(t, 0)
	s, err := f.controller.NewSession()
	require.NoError(t, err)

	_, _, err = f.controller.Export(context.Background(), s.ID, domain.ExportConfig{
		Platform: domain.PlatformJira, URL: "u", Email: "e", Token: "t", ProjectKey: "K", IssueType: "Story",
	})
	assert.ErrorIs(t, err, domain.ErrNoStories)
	assert.Empty(t, f.jira.exported)

	_, _, err = f.controller.ExportCSV(s.ID, domain.PlatformJira)
	assert.ErrorIs(t, err, domain.ErrNoStories)
}

func TestSessionController_ExportCSV(t *testing.T) {
	f := newFixture(t, 0)
	s := f.sessionWithStories(t)

	data, name, err := f.controller.ExportCSV(s.ID, domain.PlatformADO)
	require.NoError(t, err)
	assert.Equal(t, "ado-export-stories.csv", name)
	assert.True(t, strings.HasPrefix(string(data), "Work Item Type,Title,Description,Tags\n"))

	_, _, err = f.controller.ExportCSV(s.ID, domain.Platform("trello"))
	assert.ErrorIs(t, err, domain.ErrUnknownPlatform)
}

func TestSessionController_ExportMarkdown(t *testing.T) {
	f := newFixture(t, 0)
	s := f.sessionWithStories(t)

	data, err := f.controller.ExportMarkdown(s.ID)
	require.NoError(t, err)

	doc, err := domain.ParseBacklogMarkdown(string(data))
	require.NoError(t, err)
	assert.Equal(t, "Loyalty program", doc.Summary)
	assert.Equal(t, s.Stories, doc.Stories)
}
