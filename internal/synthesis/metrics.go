package synthesis

import "github.com/avenirfi/conseil-gateway/internal/types"

// Required-metric checklists per output mode. These labels are what the
// validator searches for in the generated answer.
var (
	chatMetrics = []string{
		"Prix actuel",
		"Variation %",
		"P/E Ratio",
		"EPS",
		"ROE",
		"YTD %",
		"Consensus analystes",
		"Dividende",
	}

	briefingMetrics = []string{
		"Prix actuel",
		"P/E Ratio",
		"EPS",
		"ROE",
		"YTD %",
		"Market Cap",
		"Consensus",
		"Nouvelles importantes",
		"Catalyseurs",
	}

	comprehensiveMetrics = []string{
		// Valorisation
		"Prix actuel",
		"Variation jour",
		"Market Cap",
		"P/E Ratio",
		"P/B Ratio",
		"P/FCF Ratio",
		"EV/EBITDA",
		"PEG Ratio",
		// Rentabilité
		"EPS",
		"ROE",
		"ROA",
		"Marge nette",
		"Marge opérationnelle",
		"Marge brute",
		// Performance
		"YTD %",
		"52 semaines high",
		"52 semaines low",
		"Rendement dividende",
		// Santé financière
		"Debt/Equity Ratio",
		"Current Ratio",
		"Quick Ratio",
		"Free Cash Flow",
		// Consensus et catalyseurs
		"Consensus analystes",
		"Prix cible moyen",
		"Prochains résultats",
	}
)

// RequiredMetrics selects the checklist for a mode. A comprehensive_analysis
// intent upgrades the checklist regardless of the requested mode.
func RequiredMetrics(mode types.OutputMode, check types.IntentCheck) []string {
	if check.Intent == "comprehensive_analysis" || mode == types.ModeComprehensive {
		return append([]string(nil), comprehensiveMetrics...)
	}
	if mode == types.ModeBriefing {
		return append([]string(nil), briefingMetrics...)
	}
	return append([]string(nil), chatMetrics...)
}
