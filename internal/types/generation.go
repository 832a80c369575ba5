package types

import "encoding/json"

// OutputMode selects the answer format and its required-metric checklist.
type OutputMode string

const (
	ModeChat          OutputMode = "chat"
	ModeComprehensive OutputMode = "comprehensive_analysis"
	ModeBriefing      OutputMode = "briefing"
)

// Message is one conversation turn, OpenAI wire shape.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ToolResult is one entry produced by the surrounding agent's tool executor.
// Entries with Success=false or no data are expected and silently skipped.
type ToolResult struct {
	ToolID  string          `json:"tool_id"`
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// Category buckets tool results for prompt composition.
type Category string

const (
	CategoryPrices       Category = "prices"
	CategoryFundamentals Category = "fundamentals"
	CategoryRatios       Category = "ratios"
	CategoryKeyMetrics   Category = "key_metrics"
	CategoryNews         Category = "news"
	CategoryRatings      Category = "ratings"
	CategoryEarnings     Category = "earnings"
	CategoryOther        Category = "other"
)

// CategoryEntry is one successful tool result within a category.
type CategoryEntry struct {
	Tool string          `json:"tool"`
	Data json.RawMessage `json:"data"`
}

// GenerationParams are the tuning knobs sent with a generation call.
type GenerationParams struct {
	MaxTokens              int     `json:"max_tokens"`
	Temperature            float64 `json:"temperature"`
	RecencyFilter          string  `json:"recency_filter"`
	ReturnCitations        bool    `json:"return_citations"`
	ReturnRelatedQuestions bool    `json:"return_related_questions"`
}

// GenerationRequest is the fully assembled input for one generation call.
type GenerationRequest struct {
	UserMessage     string                       `json:"user_message"`
	Prompt          string                       `json:"prompt"`
	OrganizedData   map[Category][]CategoryEntry `json:"organized_data"`
	RequiredMetrics []string                     `json:"required_metrics"`
	OutputMode      OutputMode                   `json:"output_mode"`
	Params          GenerationParams             `json:"params"`
}

// GenerationResult is the canonical outcome of one generation call.
type GenerationResult struct {
	Content   string   `json:"content"`
	Citations []string `json:"citations,omitempty"`
	Usage     Usage    `json:"usage"`
}

// Usage reports token consumption of one generation call.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// ValidationResult is the outcome of checking a generated answer against
// its required-metric checklist.
type ValidationResult struct {
	Complete        bool     `json:"complete"`
	Missing         []string `json:"missing"`
	CoveragePercent float64  `json:"coverage_percent"`
	Corrected       bool     `json:"corrected,omitempty"`
}
