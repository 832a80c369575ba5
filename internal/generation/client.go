// Package generation is the client for the answer-generation API
// (Perplexity-compatible chat completions with search recency filters).
package generation

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/avenirfi/conseil-gateway/internal/config"
	"github.com/avenirfi/conseil-gateway/internal/types"
)

// APIError is a non-2xx reply from the generation API. It is a hard
// failure: the facade reacts with a full pipeline bypass, never a retry.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("generation API returned status %d: %s", e.StatusCode, e.Body)
}

// Client calls the generation API.
type Client struct {
	cfg    config.GenerationConfig
	client *http.Client
}

func NewClient(cfg config.GenerationConfig, client *http.Client) *Client {
	if client == nil {
		client = &http.Client{Timeout: cfg.Timeout}
	}
	return &Client{cfg: cfg, client: client}
}

// Model returns the configured model name, for result metadata.
func (c *Client) Model() string { return c.cfg.Model }

// Generate sends one prompt and returns the generated content with
// citations and usage.
func (c *Client) Generate(ctx context.Context, prompt string, params types.GenerationParams) (types.GenerationResult, error) {
	body := requestBody{
		Model: c.cfg.Model,
		Messages: []types.Message{
			{Role: "user", Content: prompt},
		},
		MaxTokens:              params.MaxTokens,
		Temperature:            params.Temperature,
		ReturnCitations:        params.ReturnCitations,
		ReturnRelatedQuestions: params.ReturnRelatedQuestions,
	}
	if params.RecencyFilter != "" {
		body.SearchRecencyFilter = params.RecencyFilter
	}

	data, err := json.Marshal(body)
	if err != nil {
		return types.GenerationResult{}, fmt.Errorf("marshal generation request: %w", err)
	}

	url := c.cfg.BaseURL + "/chat/completions"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(data))
	if err != nil {
		return types.GenerationResult{}, fmt.Errorf("create generation request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return types.GenerationResult{}, fmt.Errorf("generation request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return types.GenerationResult{}, fmt.Errorf("read generation response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return types.GenerationResult{}, &APIError{StatusCode: resp.StatusCode, Body: string(raw)}
	}

	var genResp responseBody
	if err := json.Unmarshal(raw, &genResp); err != nil {
		return types.GenerationResult{}, fmt.Errorf("unmarshal generation response: %w", err)
	}
	if len(genResp.Choices) == 0 {
		return types.GenerationResult{}, fmt.Errorf("generation response has no choices")
	}

	return types.GenerationResult{
		Content:   genResp.Choices[0].Message.Content,
		Citations: genResp.Citations,
		Usage: types.Usage{
			PromptTokens:     genResp.Usage.PromptTokens,
			CompletionTokens: genResp.Usage.CompletionTokens,
			TotalTokens:      genResp.Usage.TotalTokens,
		},
	}, nil
}

type requestBody struct {
	Model                  string          `json:"model"`
	Messages               []types.Message `json:"messages"`
	MaxTokens              int             `json:"max_tokens,omitempty"`
	Temperature            float64         `json:"temperature"`
	SearchRecencyFilter    string          `json:"search_recency_filter,omitempty"`
	ReturnCitations        bool            `json:"return_citations"`
	ReturnRelatedQuestions bool            `json:"return_related_questions"`
}

type responseBody struct {
	ID      string `json:"id"`
	Model   string `json:"model"`
	Choices []struct {
		Index        int           `json:"index"`
		Message      types.Message `json:"message"`
		FinishReason string        `json:"finish_reason"`
	} `json:"choices"`
	Citations []string `json:"citations"`
	Usage     struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage"`
}
