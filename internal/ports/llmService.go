package ports

import (
	"context"

	"github.com/morgansundqvist/mbacklog/internal/domain"
)

type LLMService interface {
	AskSimple(ctx context.Context, input domain.LLMSimpleInput) (string, error)

	AskAdvanced(ctx context.Context, input domain.LLMAdvancedInput) (string, error)
}
