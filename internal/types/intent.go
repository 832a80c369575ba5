package types

// Source identifies which classifier actually produced the values used downstream.
type Source string

const (
	SourceLocal         Source = "local"
	SourceSecondary     Source = "secondary"
	SourceLocalFallback Source = "local-fallback"
)

// Complexity is the classifier's estimate of how much work the answer needs.
type Complexity string

const (
	ComplexitySimple Complexity = "simple"
	ComplexityMedium Complexity = "medium"
	ComplexityHigh   Complexity = "high"
)

// IntentCheck is the normalized result of intent classification, regardless
// of which classifier produced it.
type IntentCheck struct {
	Intent              string            `json:"intent"`
	Clarity             int               `json:"clarity_score"`
	Tickers             []string          `json:"tickers"`
	NeedsClarification  bool              `json:"needs_clarification"`
	ClarificationReason string            `json:"clarification_reason,omitempty"`
	SuggestedTools      []string          `json:"suggested_tools"`
	IntentKeywords      []string          `json:"intent_keywords"`
	Complexity          Complexity        `json:"complexity"`
	Source              Source            `json:"source"`
	Confidence          float64           `json:"confidence"`
	Parameters          map[string]string `json:"parameters,omitempty"`
}

// Clarification reasons produced by the classifiers.
const (
	ReasonAmbiguousIntent        = "ambiguous_intent"
	ReasonMissingTicker          = "missing_ticker"
	ReasonMultipleTickersUnclear = "multiple_tickers_unclear"
)

// Normalize fills missing optional fields with their documented defaults.
// Clarity is clamped to [0,10]; callers that genuinely do not know the
// clarity should have set it to 5 before calling.
func (c *IntentCheck) Normalize() {
	if c.Intent == "" {
		c.Intent = "unknown"
	}
	if c.Clarity < 0 {
		c.Clarity = 0
	}
	if c.Clarity > 10 {
		c.Clarity = 10
	}
	if c.Tickers == nil {
		c.Tickers = []string{}
	}
	if c.SuggestedTools == nil {
		c.SuggestedTools = []string{}
	}
	if c.IntentKeywords == nil {
		c.IntentKeywords = []string{}
	}
	switch c.Complexity {
	case ComplexitySimple, ComplexityMedium, ComplexityHigh:
	default:
		c.Complexity = ComplexityMedium
	}
	if c.Confidence == 0 {
		c.Confidence = 0.5
	}
}

// HasExplicitTicker reports whether at least one ticker was detected.
func (c *IntentCheck) HasExplicitTicker() bool {
	return len(c.Tickers) > 0
}

// HasExplicitIntent reports whether the intent is backed by matched keywords
// or is anything more specific than "unknown".
func (c *IntentCheck) HasExplicitIntent() bool {
	return len(c.IntentKeywords) > 0 || c.Intent != "unknown"
}
