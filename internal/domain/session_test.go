package domain

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func sampleStories(titles ...string) []UserStory {
	stories := make([]UserStory, 0, len(titles))
	for i, title := range titles {
		stories = append(stories, UserStory{
			ID:                 "story-" + string(rune('a'+i)),
			Title:              title,
			AcceptanceCriteria: []string{"works"},
			BusinessValue:      LevelHigh,
			RiskLevel:          LevelLow,
			Dependencies:       []string{},
		})
	}
	return stories
}

func TestBeginGeneration(t *testing.T) {
	tests := []struct {
		name    string
		session func() Session
		wantErr error
	}{
		{
			name:    "empty epic",
			session: func() Session { return NewSession("s", testNow) },
			wantErr: ErrEmptyEpic,
		},
		{
			name: "whitespace epic",
			session: func() Session {
				return SetEpic(NewSession("s", testNow), "   \n")
			},
			wantErr: ErrEmptyEpic,
		},
		{
			name: "import running",
			session: func() Session {
				s := SetEpic(NewSession("s", testNow), "epic")
				s.Import.Status = StatusLoading
				return s
			},
			wantErr: ErrBusy,
		},
		{
			name: "ok",
			session: func() Session {
				return SetEpic(NewSession("s", testNow), "Build a loyalty program")
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := BeginGeneration(tt.session())
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, StatusLoading, got.Generation.Status)
		})
	}
}

func TestGeneration_ReplacesStories(t *testing.T) {
	s := SetEpic(NewSession("s", testNow), "epic")
	s = CompleteGeneration(s, sampleStories("one", "two", "three"))
	s.ClarificationAnswer = "old answer"

	s, err := BeginGeneration(s)
	require.NoError(t, err)
	assert.Empty(t, s.ClarificationAnswer)
	assert.Len(t, s.Stories, 3, "stories stay visible while generating")

	s = CompleteGeneration(s, sampleStories("four"))
	require.Len(t, s.Stories, 1)
	assert.Equal(t, "four", s.Stories[0].Title)
	assert.Equal(t, StatusSuccess, s.Generation.Status)
}

func TestFailGeneration_KeepsStories(t *testing.T) {
	s := CompleteGeneration(SetEpic(NewSession("s", testNow), "epic"), sampleStories("one"))
	s, err := BeginGeneration(s)
	require.NoError(t, err)

	s = FailGeneration(s, errors.New("boom"))
	assert.Equal(t, StatusError, s.Generation.Status)
	assert.Equal(t, "boom", s.Error)
	require.Len(t, s.Stories, 1)
	assert.Equal(t, "one", s.Stories[0].Title)
}

func TestTransitions_DoNotAliasStories(t *testing.T) {
	orig := CompleteGeneration(NewSession("s", testNow), sampleStories("one"))
	next := CompleteGeneration(orig, sampleStories("two"))
	next.Stories[0].Title = "changed"
	assert.Equal(t, "one", orig.Stories[0].Title)
}

func TestClarification(t *testing.T) {
	s := CompleteGeneration(NewSession("s", testNow), sampleStories("one"))

	_, err := BeginClarification(s, "  ")
	assert.ErrorIs(t, err, ErrEmptyQuestion)

	s, err = BeginClarification(s, "what?")
	require.NoError(t, err)
	_, err = BeginClarification(s, "again?")
	assert.ErrorIs(t, err, ErrBusy)

	done := CompleteClarification(s, "because")
	assert.Equal(t, "because", done.ClarificationAnswer)
	assert.Equal(t, s.Stories, done.Stories)

	failed := FailClarification(s, errors.New("model down"))
	assert.Equal(t, "Error: model down", failed.ClarificationAnswer)
	assert.Equal(t, StatusError, failed.Clarification.Status)
}

func TestImport_AppendsKnowledgeBase(t *testing.T) {
	s := SetKnowledgeBase(NewSession("s", testNow), "existing notes")
	s, err := BeginImport(s)
	require.NoError(t, err)

	dismiss := testNow.Add(1500 * time.Millisecond)
	s = CompleteImport(s, PlatformJira, "Issue: P-1", dismiss)
	assert.Equal(t, "existing notes\n\n--- IMPORTED FROM JIRA ---\nIssue: P-1", s.KnowledgeBase)
	assert.Equal(t, StatusSuccess, s.Import.Status)
	require.NotNil(t, s.Import.DismissAt)
	assert.Equal(t, dismiss, *s.Import.DismissAt)

	s = DismissImport(s)
	assert.Equal(t, StatusIdle, s.Import.Status)
	assert.Contains(t, s.KnowledgeBase, "existing notes")
}

func TestDismissImport_IgnoresNonSuccess(t *testing.T) {
	s := FailImport(NewSession("s", testNow), errors.New("nope"))
	assert.Equal(t, StatusError, DismissImport(s).Import.Status)
}

func TestExportTransitions(t *testing.T) {
	_, err := BeginExport(NewSession("s", testNow))
	assert.ErrorIs(t, err, ErrNoStories)

	s := CompleteGeneration(NewSession("s", testNow), sampleStories("one", "two"))
	s, err = BeginExport(s)
	require.NoError(t, err)
	assert.Equal(t, "Exporting 2 stories...", s.Export.Message)

	_, err = BeginGeneration(SetEpic(s, "epic"))
	assert.ErrorIs(t, err, ErrBusy)

	partial := CompleteExport(s, NewExportResult(PlatformADO, "P", []ExportOutcome{
		{Title: "one", Key: "1"},
		{Title: "two", Error: "boom"},
	}))
	assert.Equal(t, StatusPartial, partial.Export.Status)

	full := CompleteExport(s, NewExportResult(PlatformJira, "KEY", []ExportOutcome{{Title: "one", Key: "KEY-1"}}))
	assert.Equal(t, StatusSuccess, full.Export.Status)
	assert.Equal(t, s.Stories, full.Stories)
}

func TestKnowledgeBaseFile(t *testing.T) {
	s := SetKnowledgeBase(NewSession("s", testNow), "notes")
	assert.Empty(t, ClearKnowledgeBase(s).KnowledgeBase)

	assert.True(t, IsKnowledgeBaseFile("notes.MD"))
	assert.True(t, IsKnowledgeBaseFile("page.html"))
	assert.True(t, IsHTMLFile("page.HTML"))
	assert.False(t, IsKnowledgeBaseFile("legacy.htm"))
	assert.False(t, IsHTMLFile("legacy.htm"), "html detection only covers accepted extensions")
	assert.False(t, IsKnowledgeBaseFile("image.png"))
	assert.False(t, IsKnowledgeBaseFile("README"))
}
