package domain

import (
	"github.com/invopop/jsonschema"
)

type ModelType string

const (
	ModelTypeSimple            ModelType = "Simple"
	ModelTypeAdvanced          ModelType = "Advanced"
	ModelTypeReasoningSimple   ModelType = "ReasoningSimple"
	ModelTypeReasoningAdvanced ModelType = "ReasoningAdvanced"
)

type LLMSimpleInput struct {
	SystemMessage string
	UserMessage   string
	ModelType     ModelType
}

type LLMAdvancedInput struct {
	SystemMessage     string
	UserMessage       string
	ModelType         ModelType
	SchemaName        string
	SchemaDescription string
	Schema            interface{}
	// Temperature is left to the provider default when nil.
	Temperature *float64
}

// BacklogResponse is the structured output requested from the model.
// Strict structured outputs need an object root, so the story array is wrapped.
type BacklogResponse struct {
	Stories []StoryDraft `json:"stories" jsonschema_description:"The generated product backlog as a list of user stories."`
}

func GenerateSchema[T any]() interface{} {
	reflector := jsonschema.Reflector{
		AllowAdditionalProperties: false,
		DoNotReference:            true,
	}
	var v T
	schema := reflector.Reflect(v)
	return schema
}
