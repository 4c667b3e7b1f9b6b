package application

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/morgansundqvist/mbacklog/internal/domain"
	"github.com/morgansundqvist/mbacklog/internal/ports"
)

const (
	backlogTemperature     = 0.2
	noKnowledgeBaseMessage = "No knowledge base provided."
)

const backlogSystemMessage = `You are an expert AI Shadow Product Owner. Your task is to break down a high-level Epic into a detailed, structured product backlog, using the provided Knowledge Base for context.`

const backlogInstructions = `**Instructions:**
1.  Analyze the Epic and Knowledge Base to understand core requirements, user personas, and business goals.
2.  Decompose the Epic into a list of specific, actionable user stories. Each story must follow the format: "As a [persona], I want [action], so that [benefit]."
3.  For each user story, create a list of clear, testable Acceptance Criteria (AC).
4.  For each user story, assess and assign a Business Value tag from one of the following options: "High", "Medium", "Low".
5.  For each user story, assess and assign a Risk Level tag from one of the following options: "High", "Medium", "Low".
6.  Analyze the generated stories and identify any dependencies between them. List the dependent story titles. If there are no dependencies, return an empty array.
7.  Return your response as a JSON object that adheres to the provided schema. The user stories go in the "stories" array.`

const clarificationSystemMessage = `You are an AI assistant helping a product team. Your role is to provide clarifications based on the existing product backlog and knowledge base.`

const clarificationInstructions = `**Instructions:**
Provide a concise and helpful answer to the user's question using ONLY the context from the product backlog and knowledge base provided above. If the information is not available in the context, clearly state that you cannot find the answer in the provided documents. Do not invent information.`

// BacklogService wraps the two model interactions: backlog generation and
// clarification questions. It holds no state between calls.
type BacklogService struct {
	llmService ports.LLMService
	logger     *slog.Logger
}

func NewBacklogService(llmService ports.LLMService, logger *slog.Logger) *BacklogService {
	if logger == nil {
		logger = slog.Default()
	}
	return &BacklogService{
		llmService: llmService,
		logger:     logger,
	}
}

func knowledgeBaseOrDefault(kb string) string {
	if kb == "" {
		return noKnowledgeBaseMessage
	}
	return kb
}

// GenerateProductBacklog asks the model to decompose the epic into story drafts.
// Every failure surfaces as a *domain.GenerationError wrapping the cause.
func (s *BacklogService) GenerateProductBacklog(ctx context.Context, epic, knowledgeBase string) ([]domain.StoryDraft, error) {
	userMessage := fmt.Sprintf("**Epic:**\n%s\n\n**Knowledge Base:**\n%s\n\n%s",
		epic, knowledgeBaseOrDefault(knowledgeBase), backlogInstructions)

	temperature := backlogTemperature
	raw, err := s.llmService.AskAdvanced(ctx, domain.LLMAdvancedInput{
		SystemMessage:     backlogSystemMessage,
		UserMessage:       userMessage,
		ModelType:         domain.ModelTypeAdvanced,
		SchemaName:        "product_backlog",
		SchemaDescription: "A product backlog of user stories derived from an epic.",
		Schema:            domain.GenerateSchema[domain.BacklogResponse](),
		Temperature:       &temperature,
	})
	if err != nil {
		s.logger.Error("backlog generation failed", slog.String("error", err.Error()))
		return nil, domain.NewGenerationError(err)
	}

	drafts, err := parseBacklog(raw)
	if err != nil {
		s.logger.Error("backlog response rejected", slog.String("error", err.Error()))
		return nil, domain.NewGenerationError(err)
	}

	s.logger.Info("backlog generated", slog.Int("stories", len(drafts)))
	return drafts, nil
}

// parseBacklog accepts either {"stories": [...]} or a bare array and validates every draft.
func parseBacklog(raw string) ([]domain.StoryDraft, error) {
	payload := bytes.TrimSpace([]byte(extractJSON(raw)))
	if len(payload) == 0 {
		return nil, fmt.Errorf("%w: empty response", domain.ErrMalformedBacklog)
	}

	var drafts []domain.StoryDraft
	switch payload[0] {
	case '[':
		if err := json.Unmarshal(payload, &drafts); err != nil {
			return nil, fmt.Errorf("%w: %v", domain.ErrMalformedBacklog, err)
		}
	case '{':
		var wrapped struct {
			Stories *[]domain.StoryDraft `json:"stories"`
		}
		if err := json.Unmarshal(payload, &wrapped); err != nil {
			return nil, fmt.Errorf("%w: %v", domain.ErrMalformedBacklog, err)
		}
		if wrapped.Stories == nil {
			return nil, fmt.Errorf("%w: response is not in the expected array format", domain.ErrMalformedBacklog)
		}
		drafts = *wrapped.Stories
	default:
		return nil, fmt.Errorf("%w: response is not JSON", domain.ErrMalformedBacklog)
	}

	for i, d := range drafts {
		if err := d.Validate(i); err != nil {
			return nil, err
		}
	}
	if drafts == nil {
		drafts = []domain.StoryDraft{}
	}
	return drafts, nil
}

// GetClarification answers a question from the current backlog and knowledge base only.
func (s *BacklogService) GetClarification(ctx context.Context, stories []domain.UserStory, knowledgeBase, question string) (string, error) {
	if stories == nil {
		stories = []domain.UserStory{}
	}
	backlog, err := json.MarshalIndent(stories, "", "  ")
	if err != nil {
		return "", domain.NewClarificationError(err)
	}

	userMessage := fmt.Sprintf("**Current Product Backlog (Generated User Stories):**\n%s\n\n**Knowledge Base:**\n%s\n\n**User's Question:**\n\"%s\"\n\n%s",
		backlog, knowledgeBaseOrDefault(knowledgeBase), question, clarificationInstructions)

	answer, err := s.llmService.AskSimple(ctx, domain.LLMSimpleInput{
		SystemMessage: clarificationSystemMessage,
		UserMessage:   userMessage,
		ModelType:     domain.ModelTypeSimple,
	})
	if err != nil {
		s.logger.Error("clarification failed", slog.String("error", err.Error()))
		return "", domain.NewClarificationError(err)
	}
	return answer, nil
}
