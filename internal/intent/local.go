package intent

import (
	"regexp"
	"strings"

	"github.com/avenirfi/conseil-gateway/internal/types"
)

var (
	tickerPattern = regexp.MustCompile(`\b([A-Z]{2,5})\b`)
	yearPattern   = regexp.MustCompile(`20\d{2}`)

	// Uppercase words that look like tickers but never are.
	tickerStopwords = map[string]bool{
		"PRIX": true, "COURS": true, "NEWS": true, "RSI": true,
		"MACD": true, "SMA": true, "EMA": true, "PE": true,
	}

	vaguePatterns = []string{
		"qu'est-ce que",
		"pourquoi",
		"comment ça",
		"explique",
		"c'est quoi",
		"ça veut dire quoi",
	}
)

// LocalClassifier is the zero-cost heuristic classifier: keyword tables and
// a clarity score. It is synchronous and always available.
type LocalClassifier struct {
	patterns       []Pattern
	toolsByIntent  map[string][]string
	companyTickers map[string]string
}

// NewLocalClassifier creates a classifier with the built-in rule tables.
func NewLocalClassifier() *LocalClassifier {
	return &LocalClassifier{
		patterns:       DefaultPatterns(),
		toolsByIntent:  DefaultToolsByIntent(),
		companyTickers: DefaultCompanyTickers(),
	}
}

// Analyze classifies a message without any network call.
// The returned check carries Source=local; the chain overwrites it when the
// local result is used as a fallback.
func (l *LocalClassifier) Analyze(message string, rctx types.RequestContext) types.IntentCheck {
	lower := strings.ToLower(message)
	tickers := l.ExtractTickers(message)

	intent, keywords, confidence := l.detectIntent(lower)
	if len(tickers) > 1 {
		intent = "comparative_analysis"
	}

	check := types.IntentCheck{
		Intent:         intent,
		Clarity:        l.AssessClarity(message, rctx),
		Tickers:        tickers,
		SuggestedTools: l.suggestedTools(intent),
		IntentKeywords: keywords,
		Complexity:     complexityFor(intent),
		Source:         types.SourceLocal,
		Confidence:     confidence,
		Parameters:     extractParameters(lower, intent),
	}

	check.ClarificationReason = l.clarificationReason(check, lower)
	check.NeedsClarification = check.ClarificationReason != ""
	check.Normalize()
	return check
}

// AssessClarity scores how unambiguous the message is on a 0-10 scale.
func (l *LocalClassifier) AssessClarity(message string, rctx types.RequestContext) int {
	score := 5
	lower := strings.ToLower(message)
	tickers := l.ExtractTickers(message)

	if len(tickers) > 0 {
		score += 2
	}

	intentMatched := false
	for _, p := range l.patterns {
		for _, kw := range p.Keywords {
			if strings.Contains(lower, kw) {
				score += 2
				intentMatched = true
				break
			}
		}
		if intentMatched {
			break
		}
	}

	if len(rctx.Tickers) > 0 {
		score++
	}

	for _, v := range vaguePatterns {
		if strings.Contains(lower, v) {
			score -= 3
			break
		}
	}

	words := len(strings.Fields(message))
	if words < 5 && len(tickers) == 0 {
		score -= 2
	}
	if words > 20 && !intentMatched {
		score--
	}

	if score < 0 {
		return 0
	}
	if score > 10 {
		return 10
	}
	return score
}

// ExtractTickers finds explicit tickers (2-5 uppercase letters minus
// stopwords) and company names from the built-in mapping.
func (l *LocalClassifier) ExtractTickers(message string) []string {
	seen := map[string]bool{}
	var tickers []string

	for _, m := range tickerPattern.FindAllString(message, -1) {
		if tickerStopwords[m] || seen[m] {
			continue
		}
		seen[m] = true
		tickers = append(tickers, m)
	}

	lower := strings.ToLower(message)
	for company, ticker := range l.companyTickers {
		if strings.Contains(lower, company) && !seen[ticker] {
			seen[ticker] = true
			tickers = append(tickers, ticker)
		}
	}
	return tickers
}

// detectIntent picks the pattern with the most keyword hits.
// Default is stock_price, the most common request.
func (l *LocalClassifier) detectIntent(lower string) (string, []string, float64) {
	detected := "stock_price"
	confidence := 0.7
	var matched []string
	maxHits := 0

	for _, p := range l.patterns {
		var hits []string
		for _, kw := range p.Keywords {
			if strings.Contains(lower, kw) {
				hits = append(hits, kw)
			}
		}
		if len(hits) > maxHits {
			maxHits = len(hits)
			detected = p.Intent
			confidence = p.Confidence
			matched = hits
		}
	}
	return detected, matched, confidence
}

func (l *LocalClassifier) suggestedTools(intent string) []string {
	if tools, ok := l.toolsByIntent[intent]; ok {
		return append([]string(nil), tools...)
	}
	return []string{"polygon-stock-price"}
}

// clarificationReason decides whether the check is ambiguous enough to ask
// the user. Evaluated in order; first match wins.
func (l *LocalClassifier) clarificationReason(check types.IntentCheck, lower string) string {
	if len(check.Tickers) == 0 && check.Intent == "stock_price" {
		return types.ReasonMissingTicker
	}
	if len(check.Tickers) > 1 && !containsAny(lower, []string{"vs", "versus", "comparer", "comparaison"}) {
		return types.ReasonMultipleTickersUnclear
	}
	if len(check.IntentKeywords) == 0 && len(check.Tickers) == 0 {
		return types.ReasonAmbiguousIntent
	}
	return ""
}

func complexityFor(intent string) types.Complexity {
	switch intent {
	case "comprehensive_analysis", "comparative_analysis", "recommendation":
		return types.ComplexityHigh
	case "stock_price", "news", "portfolio":
		return types.ComplexitySimple
	default:
		return types.ComplexityMedium
	}
}

// extractParameters pulls intent-specific knobs out of the message.
func extractParameters(lower, intent string) map[string]string {
	params := map[string]string{}

	if intent == "technical_analysis" {
		switch {
		case strings.Contains(lower, "journalier") || strings.Contains(lower, "jour"):
			params["timeframe"] = "daily"
		case strings.Contains(lower, "hebdo") || strings.Contains(lower, "semaine"):
			params["timeframe"] = "weekly"
		case strings.Contains(lower, "heure"):
			params["timeframe"] = "hourly"
		default:
			params["timeframe"] = "daily"
		}
	}

	if intent == "earnings" {
		for _, q := range []string{"q1", "q2", "q3", "q4"} {
			if strings.Contains(lower, q) {
				params["quarter"] = strings.ToUpper(q)
				break
			}
		}
		if y := yearPattern.FindString(lower); y != "" {
			params["year"] = y
		}
	}

	if len(params) == 0 {
		return nil
	}
	return params
}

func containsAny(s string, subs []string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
