package gateway

import (
	"context"

	"github.com/avenirfi/conseil-gateway/internal/optimizer"
	"github.com/avenirfi/conseil-gateway/internal/types"
)

// StubAgent is the Agent wiring used when the gateway runs standalone,
// without an embedding assistant. It executes no tools and serves the
// legacy path with a single plain generation call.
type StubAgent struct {
	gen optimizer.Generator
}

func NewStubAgent(gen optimizer.Generator) *StubAgent {
	return &StubAgent{gen: gen}
}

func (a *StubAgent) ExecuteTools(_ context.Context, _ string, _ types.IntentCheck) ([]types.ToolResult, error) {
	return []types.ToolResult{}, nil
}

func (a *StubAgent) ProcessLegacy(ctx context.Context, message string, _ types.RequestContext) (string, error) {
	result, err := a.gen.Generate(ctx, message, types.GenerationParams{
		MaxTokens:       2000,
		Temperature:     0.7,
		RecencyFilter:   "month",
		ReturnCitations: true,
	})
	if err != nil {
		return "", err
	}
	return result.Content, nil
}
