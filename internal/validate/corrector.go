package validate

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/avenirfi/conseil-gateway/internal/types"
)

// Generator issues the corrective generation call.
type Generator interface {
	Generate(ctx context.Context, prompt string, params types.GenerationParams) (types.GenerationResult, error)
}

// Corrector runs the single bounded correction pass: one extra generation
// call appending only the missing metrics. It never re-validates its own
// output and never repeats.
type Corrector struct {
	gen Generator
}

func NewCorrector(gen Generator) *Corrector {
	return &Corrector{gen: gen}
}

// ShouldCorrect gates the correction: only when metrics are missing and at
// least one tool result exists — otherwise there is no data to surface.
func ShouldCorrect(result types.ValidationResult, toolResults []types.ToolResult) bool {
	return len(result.Missing) > 0 && len(toolResults) > 0
}

// Correct issues exactly one corrective call and concatenates its output to
// the original response. On failure the original response is returned
// unchanged along with the error; the caller decides whether that is fatal.
func (c *Corrector) Correct(ctx context.Context, originalResponse string, missing []string, toolResults []types.ToolResult) (string, error) {
	if len(missing) == 0 {
		return originalResponse, nil
	}

	prompt := buildCorrectionPrompt(missing, toolResults)
	params := types.GenerationParams{
		MaxTokens:     1000,
		Temperature:   0.7,
		RecencyFilter: "month",
	}

	result, err := c.gen.Generate(ctx, prompt, params)
	if err != nil {
		return originalResponse, fmt.Errorf("correction call: %w", err)
	}

	return originalResponse + "\n\n" + result.Content, nil
}

func buildCorrectionPrompt(missing []string, toolResults []types.ToolResult) string {
	var sb strings.Builder
	sb.WriteString("Ta réponse précédente manquait ces métriques importantes:\n")
	for _, m := range missing {
		fmt.Fprintf(&sb, "- %s\n", m)
	}
	sb.WriteString("\nDonnées disponibles:\n")
	if data, err := json.MarshalIndent(toolResults, "", "  "); err == nil {
		sb.Write(data)
	}
	sb.WriteString("\n\nComplète ta réponse en ajoutant UNIQUEMENT les métriques manquantes ci-dessus.\n")
	sb.WriteString("Format: court et concis, intègre naturellement dans le style existant.")
	return sb.String()
}
