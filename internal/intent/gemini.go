package intent

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/avenirfi/conseil-gateway/internal/config"
	"github.com/avenirfi/conseil-gateway/internal/types"
)

// ErrNoJSONObject is returned when the classifier reply contains no
// parseable {...} block.
var ErrNoJSONObject = errors.New("no JSON object found in classifier response")

// SecondaryClassifier is the quota-limited classifier behind the local
// heuristic. A nil SecondaryClassifier means none is configured.
type SecondaryClassifier interface {
	Classify(ctx context.Context, message string, local types.IntentCheck) (types.IntentCheck, error)
}

// GeminiClassifier calls a Gemini-style generateContent endpoint and
// extracts a single JSON object from the free-form reply.
type GeminiClassifier struct {
	cfg    config.ClassifierConfig
	client *http.Client
}

func NewGeminiClassifier(cfg config.ClassifierConfig, client *http.Client) *GeminiClassifier {
	if client == nil {
		client = &http.Client{Timeout: cfg.Timeout}
	}
	return &GeminiClassifier{cfg: cfg, client: client}
}

func (g *GeminiClassifier) Classify(ctx context.Context, message string, local types.IntentCheck) (types.IntentCheck, error) {
	prompt := buildClassifierPrompt(message, local)

	body := geminiRequestBody{
		Contents: []geminiContent{
			{Parts: []geminiPart{{Text: prompt}}},
		},
		GenerationConfig: geminiGenerationConfig{
			Temperature:     g.cfg.Temperature,
			MaxOutputTokens: g.cfg.MaxOutputTokens,
			CandidateCount:  1,
		},
	}

	data, err := json.Marshal(body)
	if err != nil {
		return types.IntentCheck{}, fmt.Errorf("marshal classifier request: %w", err)
	}

	url := fmt.Sprintf("%s/models/%s:generateContent?key=%s", g.cfg.BaseURL, g.cfg.Model, g.cfg.APIKey)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(data))
	if err != nil {
		return types.IntentCheck{}, fmt.Errorf("create classifier request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := g.client.Do(httpReq)
	if err != nil {
		return types.IntentCheck{}, fmt.Errorf("classifier request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return types.IntentCheck{}, fmt.Errorf("read classifier response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return types.IntentCheck{}, fmt.Errorf("classifier returned status %d: %s", resp.StatusCode, string(raw))
	}

	var geminiResp geminiResponseBody
	if err := json.Unmarshal(raw, &geminiResp); err != nil {
		return types.IntentCheck{}, fmt.Errorf("unmarshal classifier response: %w", err)
	}

	text := geminiResp.text()
	obj, err := ExtractJSONObject(text)
	if err != nil {
		return types.IntentCheck{}, err
	}

	var payload secondaryPayload
	if err := json.Unmarshal([]byte(obj), &payload); err != nil {
		return types.IntentCheck{}, fmt.Errorf("parse classifier JSON: %w", err)
	}

	return mergeSecondary(local, payload), nil
}

// buildClassifierPrompt is the fixed-shape prompt; the local result is
// passed along as a hint.
func buildClassifierPrompt(message string, local types.IntentCheck) string {
	var b strings.Builder
	b.WriteString("Analyze this financial query and extract intent + clarity score.\n\n")
	fmt.Fprintf(&b, "User message: %q\n\n", message)
	b.WriteString("Local analysis suggested:\n")
	fmt.Fprintf(&b, "- Intent: %s\n", local.Intent)
	fmt.Fprintf(&b, "- Tickers: %s\n", strings.Join(local.Tickers, ", "))
	fmt.Fprintf(&b, "- Clarity: %d/10\n\n", local.Clarity)
	b.WriteString(`Respond with JSON:
{
    "intent": "stock_price|fundamentals|news|comprehensive_analysis|...",
    "clarity_score": 0-10,
    "tickers": ["AAPL", ...],
    "needs_clarification": true/false,
    "clarification_reason": "why unclear" or null,
    "suggested_tools": ["fmp-quote", "fmp-ratios", ...],
    "intent_keywords": ["prix", "analyse", ...],
    "complexity": "simple|medium|high"
}

Clarity scoring:
- 10: Crystal clear (e.g., "Prix AAPL")
- 7-9: Clear with minor ambiguity
- 4-6: Ambiguous, needs clarification
- 1-3: Very unclear

Return ONLY valid JSON, no markdown.`)
	return b.String()
}

// secondaryPayload is the wire shape the secondary classifier must return.
// Pointer fields distinguish "absent" from zero so normalization can apply
// the documented defaults.
type secondaryPayload struct {
	Intent              string   `json:"intent"`
	ClarityScore        *int     `json:"clarity_score"`
	Tickers             []string `json:"tickers"`
	NeedsClarification  bool     `json:"needs_clarification"`
	ClarificationReason string   `json:"clarification_reason"`
	SuggestedTools      []string `json:"suggested_tools"`
	IntentKeywords      []string `json:"intent_keywords"`
	Complexity          string   `json:"complexity"`
	Confidence          *float64 `json:"confidence"`
}

// mergeSecondary builds the canonical IntentCheck from the secondary reply,
// keeping local values for anything the reply omits.
func mergeSecondary(local types.IntentCheck, p secondaryPayload) types.IntentCheck {
	check := local
	check.Source = types.SourceSecondary

	if p.Intent != "" {
		check.Intent = p.Intent
	}
	if p.ClarityScore != nil {
		check.Clarity = *p.ClarityScore
	} else {
		check.Clarity = 5
	}
	if p.Tickers != nil {
		check.Tickers = p.Tickers
	}
	check.NeedsClarification = p.NeedsClarification
	check.ClarificationReason = p.ClarificationReason
	if p.SuggestedTools != nil {
		check.SuggestedTools = p.SuggestedTools
	}
	if p.IntentKeywords != nil {
		check.IntentKeywords = p.IntentKeywords
	}
	if p.Complexity != "" {
		check.Complexity = types.Complexity(p.Complexity)
	}
	if p.Confidence != nil {
		check.Confidence = *p.Confidence
	}

	check.Normalize()
	return check
}

// ExtractJSONObject returns the first balanced {...} block in text.
// The scan is string- and escape-aware so braces inside values do not
// terminate the block early.
func ExtractJSONObject(text string) (string, error) {
	start := strings.IndexByte(text, '{')
	if start < 0 {
		return "", ErrNoJSONObject
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(text); i++ {
		c := text[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return text[start : i+1], nil
			}
		}
	}
	return "", ErrNoJSONObject
}

type geminiRequestBody struct {
	Contents         []geminiContent        `json:"contents"`
	GenerationConfig geminiGenerationConfig `json:"generationConfig"`
}

type geminiContent struct {
	Parts []geminiPart `json:"parts"`
}

type geminiPart struct {
	Text string `json:"text"`
}

type geminiGenerationConfig struct {
	Temperature     float64 `json:"temperature"`
	MaxOutputTokens int     `json:"maxOutputTokens"`
	CandidateCount  int     `json:"candidateCount"`
}

type geminiResponseBody struct {
	Candidates []struct {
		Content struct {
			Parts []geminiPart `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
}

func (r *geminiResponseBody) text() string {
	if len(r.Candidates) == 0 || len(r.Candidates[0].Content.Parts) == 0 {
		return ""
	}
	return r.Candidates[0].Content.Parts[0].Text
}
