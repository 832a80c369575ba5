// Package validate checks a generated answer against its required-metric
// checklist and runs the single bounded correction pass.
package validate

import (
	"strings"

	"github.com/avenirfi/conseil-gateway/internal/types"
)

// Matcher decides whether a required metric is present in a response.
// The shipped implementation is a case-insensitive substring match over a
// synonym table; fuzzier matchers can be plugged in without touching the
// validator.
type Matcher interface {
	Present(response, metric string) bool
}

// SynonymMatcher matches a metric when any of its search terms appears as a
// substring of the response. A metric without a table entry falls back to
// its own lower-cased label.
type SynonymMatcher struct {
	terms map[string][]string
}

// NewSynonymMatcher creates a matcher with the built-in term table.
func NewSynonymMatcher() *SynonymMatcher {
	return &SynonymMatcher{terms: defaultSearchTerms()}
}

func defaultSearchTerms() map[string][]string {
	return map[string][]string{
		"Prix actuel":          {"prix", "price", "se négocie", "cote"},
		"Variation %":          {"%", "variation", "hausse", "baisse", "change"},
		"Variation jour":       {"variation", "hausse", "baisse", "change"},
		"P/E Ratio":            {"p/e", "price to earnings", "ratio cours"},
		"EPS":                  {"eps", "bénéfice par action", "earnings per share"},
		"Dividende":            {"dividende", "dividend"},
		"Rendement dividende":  {"dividende", "dividend", "rendement"},
		"YTD %":                {"ytd", "year-to-date", "depuis début d'année"},
		"52 semaines high":     {"52 semaines", "52w", "52-week"},
		"52 semaines low":      {"52 semaines", "52w", "52-week"},
		"Market Cap":           {"market cap", "capitalisation"},
		"ROE":                  {"roe", "return on equity", "rendement capitaux"},
		"ROA":                  {"roa", "return on assets"},
		"Marge nette":          {"marge nette", "net margin"},
		"Marge opérationnelle": {"marge opérationnelle", "operating margin"},
		"Marge brute":          {"marge brute", "gross margin"},
		"Consensus analystes":  {"consensus", "analystes", "buy", "hold", "sell"},
		"Consensus":            {"consensus", "analystes", "buy", "hold", "sell"},
		"Prix cible moyen":     {"price target", "objectif de prix", "cible"},
		"Free Cash Flow":       {"free cash flow", "fcf", "flux de trésorerie"},
		"Debt/Equity Ratio":    {"debt/equity", "debt to equity", "dette"},
		"Current Ratio":        {"current ratio", "ratio de liquidité"},
		"Quick Ratio":          {"quick ratio"},
		"EV/EBITDA":            {"ev/ebitda", "ebitda"},
		"PEG Ratio":            {"peg"},
		"P/B Ratio":            {"p/b", "price to book"},
		"P/FCF Ratio":          {"p/fcf"},
		"Prochains résultats":  {"prochains résultats", "next earnings", "calendrier"},
	}
}

func (m *SynonymMatcher) Present(response, metric string) bool {
	lower := strings.ToLower(response)
	terms, ok := m.terms[metric]
	if !ok {
		terms = []string{strings.ToLower(metric)}
	}
	for _, term := range terms {
		if strings.Contains(lower, strings.ToLower(term)) {
			return true
		}
	}
	return false
}

// Validator checks responses against required-metric checklists.
type Validator struct {
	matcher Matcher
}

// NewValidator creates a validator. A nil matcher defaults to the synonym
// table.
func NewValidator(matcher Matcher) *Validator {
	if matcher == nil {
		matcher = NewSynonymMatcher()
	}
	return &Validator{matcher: matcher}
}

// Check collects the metrics absent from the response and computes
// coverage as 100 * (required - missing) / required.
func (v *Validator) Check(response string, requiredMetrics []string) types.ValidationResult {
	if len(requiredMetrics) == 0 {
		return types.ValidationResult{Complete: true, Missing: []string{}, CoveragePercent: 100}
	}

	missing := []string{}
	for _, metric := range requiredMetrics {
		if !v.matcher.Present(response, metric) {
			missing = append(missing, metric)
		}
	}

	total := len(requiredMetrics)
	coverage := 100 * float64(total-len(missing)) / float64(total)
	return types.ValidationResult{
		Complete:        len(missing) == 0,
		Missing:         missing,
		CoveragePercent: coverage,
	}
}
