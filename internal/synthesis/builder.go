// Package synthesis assembles the structured generation request: enriched
// prompt, required-metric checklist, and generation parameters. It performs
// no network calls; the only non-determinism is a wall-clock read.
package synthesis

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/avenirfi/conseil-gateway/internal/types"
)

const (
	historyTurns    = 5
	historyMaxChars = 200
)

// Input is everything the builder needs: the (possibly clarified) message,
// the intent check, the tool results supplied by the surrounding agent, and
// the conversation history it owns.
type Input struct {
	UserMessage string
	IntentCheck types.IntentCheck
	ToolResults []types.ToolResult
	OutputMode  types.OutputMode
	History     []types.Message
}

// Builder builds generation requests. The zero value is not usable; use
// NewBuilder.
type Builder struct {
	now func() time.Time
}

func NewBuilder() *Builder {
	return &Builder{now: time.Now}
}

// Build assembles the generation request for one call.
func (b *Builder) Build(in Input) types.GenerationRequest {
	mode := in.OutputMode
	if mode == "" {
		mode = types.ModeChat
	}
	organized := OrganizeToolResults(in.ToolResults)
	required := RequiredMetrics(mode, in.IntentCheck)
	params := Params(mode, in.IntentCheck)

	return types.GenerationRequest{
		UserMessage:     in.UserMessage,
		Prompt:          b.composePrompt(in, mode, organized, required),
		OrganizedData:   organized,
		RequiredMetrics: required,
		OutputMode:      mode,
		Params:          params,
	}
}

// OrganizeToolResults partitions tool results into the fixed categories by
// substring match on the tool id. Results without success and a data
// payload are dropped silently: absence of data is expected, not an error.
func OrganizeToolResults(results []types.ToolResult) map[types.Category][]types.CategoryEntry {
	organized := map[types.Category][]types.CategoryEntry{}

	for _, r := range results {
		if !r.Success || len(r.Data) == 0 {
			continue
		}
		cat := categorize(r.ToolID)
		organized[cat] = append(organized[cat], types.CategoryEntry{Tool: r.ToolID, Data: r.Data})
	}
	return organized
}

func categorize(toolID string) types.Category {
	switch {
	case strings.Contains(toolID, "quote") || strings.Contains(toolID, "price"):
		return types.CategoryPrices
	case strings.Contains(toolID, "fundamental"):
		return types.CategoryFundamentals
	case strings.Contains(toolID, "ratio"):
		return types.CategoryRatios
	case strings.Contains(toolID, "key-metric"):
		return types.CategoryKeyMetrics
	case strings.Contains(toolID, "news"):
		return types.CategoryNews
	case strings.Contains(toolID, "rating") || strings.Contains(toolID, "analyst"):
		return types.CategoryRatings
	case strings.Contains(toolID, "earning"):
		return types.CategoryEarnings
	default:
		return types.CategoryOther
	}
}

// Params selects the generation parameters for a mode.
// Citations are always requested; related questions never are — the latter
// is a cost-saving choice.
func Params(mode types.OutputMode, check types.IntentCheck) types.GenerationParams {
	maxTokens := 2000
	switch mode {
	case types.ModeBriefing:
		maxTokens = 8000
	case types.ModeComprehensive:
		maxTokens = 6000
	default:
		// High complexity overrides the chat default only.
		if check.Complexity == types.ComplexityHigh {
			maxTokens = 4000
		}
	}

	temperature := 0.7
	if mode == types.ModeBriefing {
		temperature = 0.5
	}

	recency := "month"
	switch check.Intent {
	case "news", "breaking_news":
		recency = "day"
	case "earnings", "events":
		recency = "week"
	}

	return types.GenerationParams{
		MaxTokens:              maxTokens,
		Temperature:            temperature,
		RecencyFilter:          recency,
		ReturnCitations:        true,
		ReturnRelatedQuestions: false,
	}
}

// categoryHeadings gives each data block a French heading, in a fixed order.
var categoryOrder = []struct {
	cat     types.Category
	heading string
}{
	{types.CategoryPrices, "PRIX ET COTATIONS"},
	{types.CategoryFundamentals, "DONNÉES FONDAMENTALES"},
	{types.CategoryRatios, "RATIOS FINANCIERS"},
	{types.CategoryKeyMetrics, "MÉTRIQUES CLÉS"},
	{types.CategoryNews, "ACTUALITÉS"},
	{types.CategoryRatings, "CONSENSUS ANALYSTES"},
	{types.CategoryEarnings, "RÉSULTATS ET CALENDRIER"},
	{types.CategoryOther, "AUTRES DONNÉES"},
}

func (b *Builder) composePrompt(in Input, mode types.OutputMode, organized map[types.Category][]types.CategoryEntry, required []string) string {
	now := b.now()
	var sb strings.Builder

	sb.WriteString(systemInstructions(mode))
	sb.WriteString("\n\n")
	fmt.Fprintf(&sb, "DATE ACTUELLE: %s (%s)\n", now.Format("2006-01-02"), now.Format(time.RFC3339))
	sb.WriteString("CRITIQUE: Utilise UNIQUEMENT les données les plus récentes. Si une donnée est datée, mentionne clairement la date.\n\n")

	fmt.Fprintf(&sb, "QUESTION DE L'UTILISATEUR:\n%q\n\n", in.UserMessage)

	sb.WriteString("CONTEXTE D'INTENTION:\n")
	fmt.Fprintf(&sb, "- Type de requête: %s\n", in.IntentCheck.Intent)
	fmt.Fprintf(&sb, "- Complexité: %s\n", in.IntentCheck.Complexity)
	fmt.Fprintf(&sb, "- Tickers concernés: %s\n", tickersOrNA(in.IntentCheck.Tickers))
	fmt.Fprintf(&sb, "- Mode de sortie: %s\n\n", mode)

	if len(in.History) > 0 {
		sb.WriteString("HISTORIQUE DE CONVERSATION (contexte):\n")
		sb.WriteString(formatHistory(in.History))
		sb.WriteString("\n")
	}

	sb.WriteString("DONNÉES FINANCIÈRES STRUCTURÉES (à analyser et synthétiser):\n\n")
	sb.WriteString(formatOrganizedData(organized))

	sb.WriteString("\nMÉTRIQUES OBLIGATOIRES À INCLURE DANS TA RÉPONSE:\n")
	sb.WriteString("Tu DOIS absolument mentionner les métriques suivantes (si disponibles dans les données):\n")
	for _, m := range required {
		fmt.Fprintf(&sb, "- %s\n", m)
	}
	sb.WriteString(`
SI UNE MÉTRIQUE N'EST PAS DISPONIBLE dans les données fournies:
- NE PAS inventer de chiffres
- Mentionner clairement "Donnée non disponible" ou "N/A"
- Suggérer d'autres sources si pertinent
`)

	sb.WriteString("\n")
	sb.WriteString(toneGuidance(mode))
	sb.WriteString("\nRÉPONSE:")
	return sb.String()
}

func systemInstructions(mode types.OutputMode) string {
	switch mode {
	case types.ModeBriefing:
		return "Tu es une analyste financière senior. Rédige un briefing professionnel institutionnel de haute qualité."
	case types.ModeComprehensive:
		return "Tu es une analyste financière experte. Fournis une analyse détaillée et approfondie de niveau professionnel."
	default:
		return "Tu es une assistante financière intelligente. Réponds de manière professionnelle et accessible."
	}
}

func toneGuidance(mode types.OutputMode) string {
	switch mode {
	case types.ModeBriefing:
		return "TON ET LONGUEUR: très professionnel, style rapport d'analyste, 1800-2500 mots, en français, paragraphes structurés."
	case types.ModeComprehensive:
		return "TON ET LONGUEUR: professionnel institutionnel, 1500-2000 mots (6-8 paragraphes denses), en français, comparaisons sectorielles chiffrées."
	default:
		return "TON ET LONGUEUR: professionnel mais accessible, 400-600 mots (2-3 paragraphes), en français."
	}
}

// formatHistory embeds at most the last 5 turns, each truncated to 200
// characters.
func formatHistory(history []types.Message) string {
	start := 0
	if len(history) > historyTurns {
		start = len(history) - historyTurns
	}
	var sb strings.Builder
	for _, msg := range history[start:] {
		content := msg.Content
		if r := []rune(content); len(r) > historyMaxChars {
			content = string(r[:historyMaxChars]) + "..."
		}
		fmt.Fprintf(&sb, "%s: %s\n", msg.Role, content)
	}
	return sb.String()
}

func formatOrganizedData(organized map[types.Category][]types.CategoryEntry) string {
	if len(organized) == 0 {
		return "Aucune donnée financière disponible.\n"
	}
	var sb strings.Builder
	for _, c := range categoryOrder {
		entries := organized[c.cat]
		if len(entries) == 0 {
			continue
		}
		fmt.Fprintf(&sb, "%s:\n", c.heading)
		data, err := json.MarshalIndent(entries, "", "  ")
		if err != nil {
			continue
		}
		sb.Write(data)
		sb.WriteString("\n\n")
	}
	return sb.String()
}

func tickersOrNA(tickers []string) string {
	if len(tickers) == 0 {
		return "N/A"
	}
	return strings.Join(tickers, ", ")
}
