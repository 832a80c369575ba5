package routing

import (
	"fmt"
	"strings"

	"github.com/avenirfi/conseil-gateway/internal/types"
)

// The clarification protocol is a three-state machine:
// AwaitingQuery -> AwaitingClarification -> Resolved. There is no timeout
// transition; an unanswered question simply never resolves.

// optionPhrases restates a multiple-choice selection in natural language
// when enriching the original message.
var optionPhrases = map[string]string{
	"price":          "Prix actuel et performance",
	"news":           "Dernières nouvelles",
	"analysis":       "Analyse complète avec fondamentaux et ratios",
	"recommendation": "Recommandation achat ou vente",
	"compare":        "Comparer ces tickers",
	"individual":     "Analyser chaque ticker individuellement",
	"select_one":     "Analyser un seul ticker",
}

// BuildQuestion maps a clarification reason to the question asked.
// Deterministic: the same check always yields the same question.
func BuildQuestion(check types.IntentCheck) types.ClarificationQuestion {
	var ticker string
	if len(check.Tickers) > 0 {
		ticker = check.Tickers[0]
	}

	switch check.ClarificationReason {
	case types.ReasonAmbiguousIntent:
		prompt := "Que voulez-vous savoir ?"
		if ticker != "" {
			prompt = fmt.Sprintf("Que voulez-vous savoir sur %s ?", ticker)
		}
		return types.ClarificationQuestion{
			Kind:   types.QuestionMultipleChoice,
			Prompt: prompt,
			Options: []types.Option{
				{ID: "price", Label: "Prix actuel et performance"},
				{ID: "news", Label: "Dernières nouvelles"},
				{ID: "analysis", Label: "Analyse complète (fondamentaux + ratios)"},
				{ID: "recommendation", Label: "Recommandation achat/vente"},
			},
		}

	case types.ReasonMissingTicker:
		return types.ClarificationQuestion{
			Kind:   types.QuestionOpenText,
			Prompt: "Quel ticker voulez-vous analyser ? (ex: AAPL, MSFT, GOOGL)",
			Hint:   "Vous pouvez aussi dire le nom de la compagnie (ex: Apple, Microsoft)",
		}

	case types.ReasonMultipleTickersUnclear:
		return types.ClarificationQuestion{
			Kind:   types.QuestionMultipleChoice,
			Prompt: fmt.Sprintf("Plusieurs tickers détectés (%s). Que voulez-vous faire ?", strings.Join(check.Tickers, ", ")),
			Options: []types.Option{
				{ID: "compare", Label: "Comparer ces tickers"},
				{ID: "individual", Label: "Analyser individuellement"},
				{ID: "select_one", Label: "En analyser un seul (lequel ?)"},
			},
		}
	}

	subject := "le marché"
	if ticker != "" {
		subject = ticker
	}
	return types.ClarificationQuestion{
		Kind:   types.QuestionOpenText,
		Prompt: fmt.Sprintf("Je ne suis pas sûre de comprendre. Pouvez-vous préciser votre question sur %s ?", subject),
		Hint:   `Par exemple: "Prix AAPL", "Analyse MSFT", "Nouvelles Tesla"`,
	}
}

// Resolution is the outcome of folding the user's answer back into the
// request: an enriched message and an intent check whose clarity guarantees
// the single-call path on re-submission.
type Resolution struct {
	EnrichedMessage string            `json:"enriched_message"`
	IntentCheck     types.IntentCheck `json:"intent_check"`
	TotalLLMCalls   int               `json:"total_llm_calls"`
}

// Resolve enriches the original message with the clarification answer.
// The returned check has clarity forced to 9 and NeedsClarification
// cleared, so Decide always yields the single-call path afterwards.
func Resolve(originalMessage string, answer types.ClarificationAnswer, check types.IntentCheck) Resolution {
	var enriched string
	if answer.OptionID != "" {
		phrase, ok := optionPhrases[answer.OptionID]
		if !ok {
			phrase = answer.OptionID
		}
		enriched = fmt.Sprintf("%s - L'utilisateur veut: %s", originalMessage, phrase)
	} else {
		enriched = fmt.Sprintf("%s\n\nClarification de l'utilisateur: %s", originalMessage, answer.Text)
	}

	check.Clarity = 9
	check.NeedsClarification = false
	check.ClarificationReason = ""
	check.Normalize()

	return Resolution{
		EnrichedMessage: enriched,
		IntentCheck:     check,
		// 1 clarification + 1 synthesis, even when the clarification was
		// served by the free tier.
		TotalLLMCalls: 2,
	}
}
