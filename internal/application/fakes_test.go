package application

import (
	"context"
	"sync"

	"github.com/morgansundqvist/mbacklog/internal/domain"
)

type fakeLLM struct {
	mu            sync.Mutex
	advancedReply string
	simpleReply   string
	err           error
	advanced      []domain.LLMAdvancedInput
	simple        []domain.LLMSimpleInput
	// block, when set, is waited on before replying.
	block chan struct{}
}

func (f *fakeLLM) AskSimple(ctx context.Context, input domain.LLMSimpleInput) (string, error) {
	f.mu.Lock()
	f.simple = append(f.simple, input)
	f.mu.Unlock()
	if f.block != nil {
		<-f.block
	}
	if f.err != nil {
		return "", f.err
	}
	return f.simpleReply, nil
}

func (f *fakeLLM) AskAdvanced(ctx context.Context, input domain.LLMAdvancedInput) (string, error) {
	f.mu.Lock()
	f.advanced = append(f.advanced, input)
	f.mu.Unlock()
	if f.block != nil {
		<-f.block
	}
	if f.err != nil {
		return "", f.err
	}
	return f.advancedReply, nil
}

type fakeTracker struct {
	mu         sync.Mutex
	importText string
	importErr  error
	result     domain.ExportResult
	exportErr  error
	exported   [][]domain.UserStory
	imports    []domain.ImportConfig
}

func (f *fakeTracker) ExportStories(ctx context.Context, cfg domain.ExportConfig, stories []domain.UserStory) (domain.ExportResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.exported = append(f.exported, stories)
	return f.result, f.exportErr
}

func (f *fakeTracker) ImportItems(ctx context.Context, cfg domain.ImportConfig) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.imports = append(f.imports, cfg)
	return f.importText, f.importErr
}

const twoStoryBacklog = `{"stories":[
	{"title":"As a member, I want points, so that I am rewarded.","acceptanceCriteria":["Points shown"],"businessValue":"High","riskLevel":"Low","dependencies":[]},
	{"title":"As a member, I want tiers, so that I level up.","acceptanceCriteria":["Tier visible","Tier badge"],"businessValue":"Medium","riskLevel":"High","dependencies":["As a member, I want points, so that I am rewarded."]}
]}`
