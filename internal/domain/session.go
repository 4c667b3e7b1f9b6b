package domain

import (
	"fmt"
	"strings"
	"time"
)

type OperationStatus string

const (
	StatusIdle    OperationStatus = "idle"
	StatusLoading OperationStatus = "loading"
	StatusSuccess OperationStatus = "success"
	StatusPartial OperationStatus = "partial"
	StatusError   OperationStatus = "error"
)

type OperationState struct {
	Status  OperationStatus `json:"status"`
	Message string          `json:"message"`
	// DismissAt is set when a successful state should fall back to idle on its own.
	DismissAt *time.Time `json:"dismissAt,omitempty"`
}

func idle() OperationState {
	return OperationState{Status: StatusIdle}
}

// Session is the whole transient state of one user's backlog workspace.
// The functions below are pure transitions: they return a modified copy.
type Session struct {
	ID                  string         `json:"id"`
	EpicText            string         `json:"epicText"`
	KnowledgeBase       string         `json:"knowledgeBase"`
	Stories             []UserStory    `json:"stories"`
	ClarificationAnswer string         `json:"clarificationAnswer,omitempty"`
	Error               string         `json:"error,omitempty"`
	Generation          OperationState `json:"generation"`
	Clarification       OperationState `json:"clarification"`
	Import              OperationState `json:"import"`
	Export              OperationState `json:"export"`
	CreatedAt           time.Time      `json:"createdAt"`
	UpdatedAt           time.Time      `json:"updatedAt"`
}

func NewSession(id string, now time.Time) Session {
	return Session{
		ID:            id,
		Stories:       []UserStory{},
		Generation:    idle(),
		Clarification: idle(),
		Import:        idle(),
		Export:        idle(),
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

// Busy reports whether an operation that gates the input panel is running.
func (s Session) Busy() bool {
	return s.Generation.Status == StatusLoading ||
		s.Import.Status == StatusLoading ||
		s.Export.Status == StatusLoading
}

func (s Session) clone() Session {
	c := s
	c.Stories = append([]UserStory(nil), s.Stories...)
	return c
}

func SetEpic(s Session, text string) Session {
	c := s.clone()
	c.EpicText = text
	return c
}

func SetKnowledgeBase(s Session, text string) Session {
	c := s.clone()
	c.KnowledgeBase = text
	return c
}

// ClearKnowledgeBase is applied when a knowledge base file could not be read.
func ClearKnowledgeBase(s Session) Session {
	c := s.clone()
	c.KnowledgeBase = ""
	return c
}

func BeginGeneration(s Session) (Session, error) {
	if strings.TrimSpace(s.EpicText) == "" {
		return s, ErrEmptyEpic
	}
	if s.Busy() {
		return s, ErrBusy
	}
	c := s.clone()
	c.Generation = OperationState{Status: StatusLoading, Message: "Generating backlog..."}
	c.Error = ""
	c.ClarificationAnswer = ""
	return c, nil
}

// CompleteGeneration replaces the story list wholesale.
func CompleteGeneration(s Session, stories []UserStory) Session {
	c := s.clone()
	c.Stories = append([]UserStory{}, stories...)
	c.Generation = OperationState{Status: StatusSuccess, Message: fmt.Sprintf("Generated %d stories.", len(stories))}
	c.Error = ""
	c.ClarificationAnswer = ""
	return c
}

// FailGeneration records the error and leaves the previous stories untouched.
func FailGeneration(s Session, err error) Session {
	c := s.clone()
	c.Generation = OperationState{Status: StatusError, Message: err.Error()}
	c.Error = err.Error()
	return c
}

func BeginClarification(s Session, question string) (Session, error) {
	if strings.TrimSpace(question) == "" {
		return s, ErrEmptyQuestion
	}
	if s.Clarification.Status == StatusLoading {
		return s, ErrBusy
	}
	c := s.clone()
	c.Clarification = OperationState{Status: StatusLoading}
	c.ClarificationAnswer = ""
	return c, nil
}

func CompleteClarification(s Session, answer string) Session {
	c := s.clone()
	c.Clarification = OperationState{Status: StatusSuccess}
	c.ClarificationAnswer = answer
	return c
}

// FailClarification shows the error in place of the answer.
func FailClarification(s Session, err error) Session {
	c := s.clone()
	c.Clarification = OperationState{Status: StatusError, Message: err.Error()}
	c.ClarificationAnswer = "Error: " + err.Error()
	return c
}

func BeginImport(s Session) (Session, error) {
	if s.Busy() {
		return s, ErrBusy
	}
	c := s.clone()
	c.Import = OperationState{Status: StatusLoading, Message: "Fetching data..."}
	return c, nil
}

// CompleteImport appends the imported text to the knowledge base.
func CompleteImport(s Session, platform Platform, text string, dismissAt time.Time) Session {
	c := s.clone()
	c.KnowledgeBase = fmt.Sprintf("%s\n\n--- IMPORTED FROM %s ---\n%s", s.KnowledgeBase, strings.ToUpper(string(platform)), text)
	c.Import = OperationState{
		Status:    StatusSuccess,
		Message:   "Successfully imported data into Knowledge Base!",
		DismissAt: &dismissAt,
	}
	return c
}

func FailImport(s Session, err error) Session {
	c := s.clone()
	c.Import = OperationState{Status: StatusError, Message: err.Error()}
	return c
}

// DismissImport returns a successful import to idle. Other states are left alone.
func DismissImport(s Session) Session {
	if s.Import.Status != StatusSuccess {
		return s
	}
	c := s.clone()
	c.Import = idle()
	return c
}

func BeginExport(s Session) (Session, error) {
	if len(s.Stories) == 0 {
		return s, ErrNoStories
	}
	if s.Busy() {
		return s, ErrBusy
	}
	c := s.clone()
	c.Export = OperationState{Status: StatusLoading, Message: fmt.Sprintf("Exporting %d stories...", len(s.Stories))}
	return c, nil
}

func CompleteExport(s Session, result ExportResult) Session {
	c := s.clone()
	status := StatusSuccess
	if result.Partial() {
		status = StatusPartial
	}
	c.Export = OperationState{Status: status, Message: result.Message}
	return c
}

func FailExport(s Session, err error) Session {
	c := s.clone()
	c.Export = OperationState{Status: StatusError, Message: err.Error()}
	return c
}
