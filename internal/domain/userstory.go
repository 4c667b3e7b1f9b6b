package domain

import (
	"fmt"
	"strings"
	"time"
)

type Level string

const (
	LevelHigh   Level = "High"
	LevelMedium Level = "Medium"
	LevelLow    Level = "Low"
)

func (l Level) Valid() bool {
	switch l {
	case LevelHigh, LevelMedium, LevelLow:
		return true
	}
	return false
}

// StoryDraft is a user story as returned by the model, before it is given an id.
type StoryDraft struct {
	Title              string   `json:"title" jsonschema_description:"The user story title in the format 'As a [persona], I want [action], so that [benefit].'"`
	AcceptanceCriteria []string `json:"acceptanceCriteria" jsonschema_description:"A list of clear, testable acceptance criteria for the user story."`
	BusinessValue      Level    `json:"businessValue" jsonschema:"enum=High,enum=Medium,enum=Low" jsonschema_description:"The estimated business value of the user story."`
	RiskLevel          Level    `json:"riskLevel" jsonschema:"enum=High,enum=Medium,enum=Low" jsonschema_description:"The estimated risk level associated with implementing the user story."`
	Dependencies       []string `json:"dependencies" jsonschema_description:"A list of other user story titles that this story depends on."`
}

type UserStory struct {
	ID                 string   `json:"id"`
	Title              string   `json:"title"`
	AcceptanceCriteria []string `json:"acceptanceCriteria"`
	BusinessValue      Level    `json:"businessValue"`
	RiskLevel          Level    `json:"riskLevel"`
	Dependencies       []string `json:"dependencies"`
}

// Validate checks the draft against the backlog schema. index is used for error reporting only.
func (d StoryDraft) Validate(index int) error {
	if strings.TrimSpace(d.Title) == "" {
		return &ValidationError{Index: index, Field: "title", Reason: "must not be empty"}
	}
	if len(d.AcceptanceCriteria) == 0 {
		return &ValidationError{Index: index, Field: "acceptanceCriteria", Reason: "must contain at least one criterion"}
	}
	for i, ac := range d.AcceptanceCriteria {
		if strings.TrimSpace(ac) == "" {
			return &ValidationError{Index: index, Field: fmt.Sprintf("acceptanceCriteria[%d]", i), Reason: "must not be empty"}
		}
	}
	if !d.BusinessValue.Valid() {
		return &ValidationError{Index: index, Field: "businessValue", Reason: fmt.Sprintf("%q is not one of High, Medium, Low", d.BusinessValue)}
	}
	if !d.RiskLevel.Valid() {
		return &ValidationError{Index: index, Field: "riskLevel", Reason: fmt.Sprintf("%q is not one of High, Medium, Low", d.RiskLevel)}
	}
	return nil
}

// AssignIDs turns drafts into stories with ids of the form story-<unix millis>-<index>.
func AssignIDs(drafts []StoryDraft, now time.Time) []UserStory {
	stories := make([]UserStory, 0, len(drafts))
	ts := now.UnixMilli()
	for i, d := range drafts {
		deps := d.Dependencies
		if deps == nil {
			deps = []string{}
		}
		stories = append(stories, UserStory{
			ID:                 fmt.Sprintf("story-%d-%d", ts, i),
			Title:              d.Title,
			AcceptanceCriteria: append([]string(nil), d.AcceptanceCriteria...),
			BusinessValue:      d.BusinessValue,
			RiskLevel:          d.RiskLevel,
			Dependencies:       append([]string{}, deps...),
		})
	}
	return stories
}
