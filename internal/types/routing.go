package types

// Path is the routing outcome for a request.
type Path string

const (
	PathSingleCall    Path = "single-call"
	PathClarifiedCall Path = "clarified-call"
)

// RoutingDecision is the output of the routing decision engine.
// ClarificationQuestion is non-nil iff Path is PathClarifiedCall.
type RoutingDecision struct {
	Path                  Path                   `json:"path"`
	Reason                string                 `json:"reason"`
	EstimatedCostUSD      float64                `json:"estimated_cost_usd"`
	EstimatedTimeMs       int64                  `json:"estimated_time_ms"`
	LLMCallCount          int                    `json:"llm_call_count"`
	ClarificationQuestion *ClarificationQuestion `json:"clarification_question,omitempty"`
	BestEffort            bool                   `json:"best_effort,omitempty"`
}

// QuestionKind distinguishes the two clarification question shapes.
type QuestionKind string

const (
	QuestionMultipleChoice QuestionKind = "multiple_choice"
	QuestionOpenText       QuestionKind = "open_text"
)

// Option is one selectable answer of a multiple-choice question.
type Option struct {
	ID    string `json:"id"`
	Label string `json:"label"`
}

// ClarificationQuestion is the single question asked on the clarified-call path.
type ClarificationQuestion struct {
	Kind    QuestionKind `json:"kind"`
	Prompt  string       `json:"prompt"`
	Options []Option     `json:"options,omitempty"`
	Hint    string       `json:"hint,omitempty"`
}

// ClarificationAnswer carries the user's reply to a clarification question.
// OptionID is set for multiple-choice selections, Text for free text.
type ClarificationAnswer struct {
	OptionID string `json:"option_id,omitempty"`
	Text     string `json:"text,omitempty"`
}
