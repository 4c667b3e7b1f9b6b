package adapters

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/morgansundqvist/mbacklog/internal/domain"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

type OpenAIConfig struct {
	APIKey  string
	BaseURL string
	// Models overrides the model used per ModelType.
	Models     map[domain.ModelType]string
	HTTPClient *http.Client
}

// OpenAILLMService talks to an OpenAI compatible chat completions endpoint.
// Requests are never retried.
type OpenAILLMService struct {
	opts   []option.RequestOption
	models map[domain.ModelType]string
	logger *slog.Logger
}

func NewOpenAILLMService(cfg OpenAIConfig, logger *slog.Logger) *OpenAILLMService {
	if logger == nil {
		logger = slog.Default()
	}
	opts := []option.RequestOption{option.WithMaxRetries(0)}
	if cfg.APIKey != "" {
		opts = append(opts, option.WithAPIKey(cfg.APIKey))
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	if cfg.HTTPClient != nil {
		opts = append(opts, option.WithHTTPClient(cfg.HTTPClient))
	}
	return &OpenAILLMService{
		opts:   opts,
		models: cfg.Models,
		logger: logger,
	}
}

func (s *OpenAILLMService) model(t domain.ModelType) openai.ChatModel {
	if name, ok := s.models[t]; ok && name != "" {
		return openai.ChatModel(name)
	}

	model := openai.ChatModelGPT4o

	if t == domain.ModelTypeSimple {
		model = openai.ChatModelGPT4oMini
	} else if t == domain.ModelTypeAdvanced {
		model = openai.ChatModelGPT4o
	} else if t == domain.ModelTypeReasoningSimple {
		model = openai.ChatModelO3Mini
	} else if t == domain.ModelTypeReasoningAdvanced {
		model = openai.ChatModelO1
	}
	return model
}

func (s *OpenAILLMService) AskSimple(ctx context.Context, input domain.LLMSimpleInput) (string, error) {
	client := openai.NewClient(s.opts...)
	model := s.model(input.ModelType)

	s.logger.Debug("llm request", slog.String("model", string(model)), slog.String("kind", "simple"))

	chatCompletion, err := client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(input.SystemMessage),
			openai.UserMessage(input.UserMessage),
		},
		Model: model,
	})
	if err != nil {
		return "", fmt.Errorf("failed to get chat completion: %w", err)
	}
	if len(chatCompletion.Choices) == 0 {
		return "", fmt.Errorf("chat completion returned no choices")
	}

	return chatCompletion.Choices[0].Message.Content, nil
}

func (s *OpenAILLMService) AskAdvanced(ctx context.Context, input domain.LLMAdvancedInput) (string, error) {
	client := openai.NewClient(s.opts...)
	model := s.model(input.ModelType)

	s.logger.Debug("llm request", slog.String("model", string(model)), slog.String("kind", "structured"), slog.String("schema", input.SchemaName))

	schemaParam := openai.ResponseFormatJSONSchemaJSONSchemaParam{
		Name:        input.SchemaName,
		Description: openai.String(input.SchemaDescription),
		Schema:      input.Schema,
		Strict:      openai.Bool(true),
	}

	params := openai.ChatCompletionNewParams{
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(input.SystemMessage),
			openai.UserMessage(input.UserMessage),
		},
		ResponseFormat: openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONSchema: &openai.ResponseFormatJSONSchemaParam{
				JSONSchema: schemaParam,
			},
		},
		// only certain models can perform structured outputs
		Model: model,
	}
	if input.Temperature != nil {
		params.Temperature = openai.Float(*input.Temperature)
	}

	chat, err := client.Chat.Completions.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("failed to get chat completion: %w", err)
	}
	if len(chat.Choices) == 0 {
		return "", fmt.Errorf("chat completion returned no choices")
	}

	return chat.Choices[0].Message.Content, nil
}
