package intent

// Pattern maps an intent to the keywords that signal it.
type Pattern struct {
	Intent     string
	Keywords   []string
	Confidence float64
}

// DefaultPatterns returns the built-in intent keyword patterns.
// Keywords are lower-cased French with the usual accent-free variants.
func DefaultPatterns() []Pattern {
	return []Pattern{
		{
			Intent:     "stock_price",
			Keywords:   []string{"prix", "cours", "cotation", "valeur", "combien", "coûte", "coute"},
			Confidence: 0.95,
		},
		{
			Intent:     "fundamentals",
			Keywords:   []string{"fondamentaux", "pe ratio", "p/e", "revenus", "bénéfices", "marges", "eps", "croissance", "roe"},
			Confidence: 0.9,
		},
		{
			Intent:     "technical_analysis",
			Keywords:   []string{"technique", "rsi", "macd", "support", "résistance", "resistance", "moyennes mobiles", "sma", "ema", "tendance"},
			Confidence: 0.9,
		},
		{
			Intent:     "news",
			Keywords:   []string{"actualités", "actualites", "nouvelles", "news", "qu'est-ce qui se passe", "quoi de neuf"},
			Confidence: 0.85,
		},
		{
			Intent:     "comprehensive_analysis",
			Keywords:   []string{"analyse complète", "analyse complete", "analyse", "évaluation", "evaluation", "rapport", "due diligence"},
			Confidence: 0.9,
		},
		{
			Intent:     "comparative_analysis",
			Keywords:   []string{"vs", "versus", "comparer", "comparaison", "mieux", "différence", "difference"},
			Confidence: 0.85,
		},
		{
			Intent:     "earnings",
			Keywords:   []string{"résultats", "resultats", "earnings", "trimestriels", "annuels", "rapport financier"},
			Confidence: 0.9,
		},
		{
			Intent:     "portfolio",
			Keywords:   []string{"portefeuille", "portfolio", "watchlist", "positions", "titres"},
			Confidence: 0.85,
		},
		{
			Intent:     "market_overview",
			Keywords:   []string{"marché", "marche", "indices", "secteurs", "vue globale", "situation"},
			Confidence: 0.75,
		},
		{
			Intent:     "recommendation",
			Keywords:   []string{"recommandation", "acheter", "vendre", "conserver", "avis", "suggestion"},
			Confidence: 0.8,
		},
	}
}

// DefaultToolsByIntent maps each intent to the data tools worth fetching.
func DefaultToolsByIntent() map[string][]string {
	return map[string][]string{
		"stock_price":            {"polygon-stock-price", "finnhub-news"},
		"fundamentals":           {"fmp-fundamentals", "alpha-vantage-ratios", "polygon-stock-price"},
		"technical_analysis":     {"twelve-data-technical", "polygon-stock-price"},
		"news":                   {"finnhub-news", "polygon-stock-price"},
		"comprehensive_analysis": {"fmp-fundamentals", "polygon-stock-price", "finnhub-news", "twelve-data-technical", "analyst-recommendations"},
		"comparative_analysis":   {"fmp-fundamentals", "polygon-stock-price", "finnhub-news"},
		"earnings":               {"earnings-calendar", "fmp-fundamentals", "finnhub-news"},
		"portfolio":              {"supabase-watchlist", "polygon-stock-price"},
		"market_overview":        {"polygon-stock-price", "finnhub-news", "economic-calendar"},
		"recommendation":         {"fmp-fundamentals", "analyst-recommendations", "polygon-stock-price", "finnhub-news"},
	}
}

// DefaultCompanyTickers maps well-known company names to their tickers.
func DefaultCompanyTickers() map[string]string {
	return map[string]string{
		"apple":           "AAPL",
		"microsoft":       "MSFT",
		"google":          "GOOGL",
		"alphabet":        "GOOGL",
		"amazon":          "AMZN",
		"tesla":           "TSLA",
		"meta":            "META",
		"facebook":        "META",
		"nvidia":          "NVDA",
		"amd":             "AMD",
		"intel":           "INTC",
		"netflix":         "NFLX",
		"disney":          "DIS",
		"coca-cola":       "KO",
		"coca cola":       "KO",
		"mcdonalds":       "MCD",
		"mcdonald's":      "MCD",
		"nike":            "NKE",
		"visa":            "V",
		"walmart":         "WMT",
		"boeing":          "BA",
		"jpmorgan":        "JPM",
		"johnson":         "JNJ",
		"procter":         "PG",
		"bank of america": "BAC",
	}
}
