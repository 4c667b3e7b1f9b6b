package domain

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrEmptyEpic        = errors.New("epic text must not be empty")
	ErrEmptyQuestion    = errors.New("question must not be empty")
	ErrBusy             = errors.New("another operation is already in progress")
	ErrNoStories        = errors.New("there are no stories to export")
	ErrSessionNotFound  = errors.New("session not found")
	ErrUnknownPlatform  = errors.New("unknown platform")
	ErrUnsupportedFile  = errors.New("unsupported knowledge base file type")
	ErrMalformedBacklog = errors.New("malformed backlog response")
)

// GenerationError is what callers of backlog generation see. The message is
// deliberately generic; the cause stays available through Unwrap.
type GenerationError struct {
	err error
}

func NewGenerationError(err error) error {
	return &GenerationError{err: err}
}

func (e *GenerationError) Error() string {
	return "failed to generate product backlog from AI"
}

func (e *GenerationError) Unwrap() error {
	return e.err
}

type ClarificationError struct {
	err error
}

func NewClarificationError(err error) error {
	return &ClarificationError{err: err}
}

func (e *ClarificationError) Error() string {
	return "failed to get clarification from AI"
}

func (e *ClarificationError) Unwrap() error {
	return e.err
}

// ValidationError reports a story draft or request that violates the expected shape.
type ValidationError struct {
	Index  int
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Index < 0 {
		return fmt.Sprintf("%s %s", e.Field, e.Reason)
	}
	return fmt.Sprintf("story %d: %s %s", e.Index, e.Field, e.Reason)
}

// TrackerError is a non-2xx answer from Jira or Azure DevOps.
type TrackerError struct {
	Platform   Platform
	Op         string
	StatusCode int
	Messages   []string
}

func (e *TrackerError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s API Error (%d)", e.Platform.DisplayName(), e.StatusCode)
	if e.Op != "" {
		b.WriteString(" ")
		b.WriteString(e.Op)
	}
	if len(e.Messages) > 0 {
		b.WriteString(": ")
		b.WriteString(strings.Join(e.Messages, ", "))
	}
	return b.String()
}

func IsTrackerError(err error) bool {
	var te *TrackerError
	return errors.As(err, &te)
}

func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
