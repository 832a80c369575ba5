package types

// RequestContext is read-only session state supplied by the surrounding
// agent: tickers already in scope, recent conversation turns, and the
// desired output mode.
type RequestContext struct {
	Tickers    []string   `json:"tickers,omitempty"`
	History    []Message  `json:"history,omitempty"`
	OutputMode OutputMode `json:"output_mode,omitempty"`
}
