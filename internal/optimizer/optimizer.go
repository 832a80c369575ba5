// Package optimizer orchestrates the full pipeline: classification,
// routing, clarification, synthesis, generation, and validation. Any
// failure past routing bypasses the optimized path entirely and defers to
// the surrounding agent's unoptimized processing.
package optimizer

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/avenirfi/conseil-gateway/internal/audit"
	"github.com/avenirfi/conseil-gateway/internal/intent"
	"github.com/avenirfi/conseil-gateway/internal/routing"
	"github.com/avenirfi/conseil-gateway/internal/synthesis"
	"github.com/avenirfi/conseil-gateway/internal/telemetry"
	"github.com/avenirfi/conseil-gateway/internal/types"
	"github.com/avenirfi/conseil-gateway/internal/validate"
)

// Agent is the surrounding assistant. It owns tool selection and
// execution, and the original unoptimized processing path used as the
// full fallback.
type Agent interface {
	// ExecuteTools selects and runs the data tools for a classified
	// request and returns their raw results.
	ExecuteTools(ctx context.Context, message string, check types.IntentCheck) ([]types.ToolResult, error)
	// ProcessLegacy runs the agent's original multi-call flow. It is the
	// escape hatch when the optimized pipeline fails for any reason.
	ProcessLegacy(ctx context.Context, message string, rctx types.RequestContext) (string, error)
}

// Generator issues generation calls and reports the model serving them.
type Generator interface {
	validate.Generator
	Model() string
}

// legacyCostUSD is the baseline cost of the agent's original two-call
// flow, used for the savings note.
const legacyCostUSD = 0.042

// Result is the outcome of one optimized request.
type Result struct {
	NeedsClarification bool                         `json:"needs_clarification"`
	Question           *types.ClarificationQuestion `json:"question,omitempty"`
	IntentCheck        types.IntentCheck            `json:"intent_check"`

	Content   string      `json:"content,omitempty"`
	Citations []string    `json:"citations,omitempty"`
	Model     string      `json:"model,omitempty"`
	Usage     types.Usage `json:"usage"`

	Path             types.Path              `json:"path,omitempty"`
	ToolsUsed        []string                `json:"tools_used,omitempty"`
	ToolResults      []types.ToolResult      `json:"tool_results,omitempty"`
	EstimatedCostUSD float64                 `json:"estimated_cost_usd"`
	SavingsNote      string                  `json:"savings_note,omitempty"`
	Validation       *types.ValidationResult `json:"validation,omitempty"`
	TotalLLMCalls    int                     `json:"total_llm_calls"`
	FallbackUsed     bool                    `json:"fallback_used,omitempty"`
	DurationMs       int64                   `json:"duration_ms"`
}

// Optimizer is the top-level facade.
type Optimizer struct {
	chain     *intent.Chain
	engine    *routing.Engine
	builder   *synthesis.Builder
	validator *validate.Validator
	corrector *validate.Corrector
	gen       Generator
	metrics   *telemetry.Metrics
	audit     *audit.Store
	logger    *slog.Logger
}

func New(chain *intent.Chain, engine *routing.Engine, builder *synthesis.Builder, validator *validate.Validator, gen Generator, metrics *telemetry.Metrics, auditStore *audit.Store, logger *slog.Logger) *Optimizer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Optimizer{
		chain:     chain,
		engine:    engine,
		builder:   builder,
		validator: validator,
		corrector: validate.NewCorrector(gen),
		gen:       gen,
		metrics:   metrics,
		audit:     auditStore,
		logger:    logger,
	}
}

// Optimize runs the full pipeline for one message. Any panic or error in
// the optimized path defers to the agent's legacy processing; the caller
// sees an error only when the legacy path itself fails.
func (o *Optimizer) Optimize(ctx context.Context, agent Agent, requestID, message string, rctx types.RequestContext) (res Result, err error) {
	start := time.Now()

	defer func() {
		if r := recover(); r != nil {
			o.logger.Error("pipeline panic, falling back to legacy processing",
				"request_id", requestID, "panic", r)
			res, err = o.legacyFallback(ctx, agent, requestID, message, rctx, start, "panic")
		}
	}()

	check := o.chain.Analyze(ctx, message, rctx)

	decision, decideErr := o.engine.Decide(check)
	if decideErr != nil {
		o.logger.Warn("routing failed, using fallback decision",
			"request_id", requestID, "error", decideErr)
		decision = routing.FallbackDecision()
		check = routing.FallbackIntentCheck()
		if o.metrics != nil {
			o.metrics.RecordFallback("routing")
		}
	}

	if o.metrics != nil {
		o.metrics.RecordDecision(string(decision.Path), decision.BestEffort, string(check.Source), check.Intent)
	}

	if decision.Path == types.PathClarifiedCall {
		if o.metrics != nil {
			o.metrics.RecordClarification(check.ClarificationReason)
		}
		o.logger.Info("clarification required",
			"request_id", requestID,
			"reason", check.ClarificationReason,
			"clarity", check.Clarity,
			"source", check.Source,
		)
		return Result{
			NeedsClarification: true,
			Question:           decision.ClarificationQuestion,
			IntentCheck:        check,
			Path:               decision.Path,
			EstimatedCostUSD:   decision.EstimatedCostUSD,
			TotalLLMCalls:      0, // nothing spent yet; the answer restarts the count
			DurationMs:         time.Since(start).Milliseconds(),
		}, nil
	}

	res, runErr := o.runSingleCall(ctx, agent, requestID, message, check, decision, rctx, start)
	if runErr != nil {
		o.logger.Warn("optimized pipeline failed, falling back to legacy processing",
			"request_id", requestID, "error", runErr)
		return o.legacyFallback(ctx, agent, requestID, message, rctx, start, "pipeline")
	}
	return res, nil
}

// HandleClarification folds the user's answer back in and re-enters the
// single-call path with the enriched message.
func (o *Optimizer) HandleClarification(ctx context.Context, agent Agent, requestID, message string, answer types.ClarificationAnswer, check types.IntentCheck, rctx types.RequestContext) (res Result, err error) {
	start := time.Now()

	defer func() {
		if r := recover(); r != nil {
			o.logger.Error("pipeline panic during clarification, falling back to legacy processing",
				"request_id", requestID, "panic", r)
			res, err = o.legacyFallback(ctx, agent, requestID, message, rctx, start, "panic")
		}
	}()

	resolution := routing.Resolve(message, answer, check)

	decision, decideErr := o.engine.Decide(resolution.IntentCheck)
	if decideErr != nil {
		decision = routing.FallbackDecision()
	}

	res, runErr := o.runSingleCall(ctx, agent, requestID, resolution.EnrichedMessage, resolution.IntentCheck, decision, rctx, start)
	if runErr != nil {
		o.logger.Warn("clarified pipeline failed, falling back to legacy processing",
			"request_id", requestID, "error", runErr)
		return o.legacyFallback(ctx, agent, requestID, resolution.EnrichedMessage, rctx, start, "pipeline")
	}
	res.TotalLLMCalls = resolution.TotalLLMCalls
	return res, nil
}

func (o *Optimizer) runSingleCall(ctx context.Context, agent Agent, requestID, message string, check types.IntentCheck, decision types.RoutingDecision, rctx types.RequestContext, start time.Time) (Result, error) {
	toolResults, err := agent.ExecuteTools(ctx, message, check)
	if err != nil {
		return Result{}, fmt.Errorf("tool execution: %w", err)
	}

	req := o.builder.Build(synthesis.Input{
		UserMessage: message,
		IntentCheck: check,
		ToolResults: toolResults,
		OutputMode:  rctx.OutputMode,
		History:     rctx.History,
	})

	genStart := time.Now()
	genResult, err := o.gen.Generate(ctx, req.Prompt, req.Params)
	if err != nil {
		return Result{}, fmt.Errorf("generation: %w", err)
	}
	if o.metrics != nil {
		o.metrics.RecordGeneration(o.gen.Model(), string(req.OutputMode), float64(time.Since(genStart).Milliseconds()))
	}

	content := genResult.Content
	validation := o.validator.Check(content, req.RequiredMetrics)

	var correctionErr error
	if validate.ShouldCorrect(validation, toolResults) {
		corrected, corrErr := o.corrector.Correct(ctx, content, validation.Missing, toolResults)
		correctionErr = corrErr
		if corrErr != nil {
			// The uncorrected answer is still an answer.
			o.logger.Warn("correction pass failed, keeping original response",
				"request_id", requestID, "error", corrErr)
		} else {
			content = corrected
			validation.Corrected = true
		}
	}
	if o.metrics != nil {
		o.metrics.RecordValidation(validation.CoveragePercent, validation.Corrected, correctionErr)
	}

	toolIDs := make([]string, 0, len(toolResults))
	for _, tr := range toolResults {
		toolIDs = append(toolIDs, tr.ToolID)
	}

	durationMs := time.Since(start).Milliseconds()
	res := Result{
		IntentCheck:      check,
		Content:          content,
		Citations:        genResult.Citations,
		Model:            o.gen.Model(),
		Usage:            genResult.Usage,
		Path:             decision.Path,
		ToolsUsed:        toolIDs,
		ToolResults:      toolResults,
		EstimatedCostUSD: decision.EstimatedCostUSD,
		SavingsNote:      savingsNote(decision.EstimatedCostUSD),
		Validation:       &validation,
		TotalLLMCalls:    decision.LLMCallCount,
		DurationMs:       durationMs,
	}

	o.logger.Info("request optimized",
		"request_id", requestID,
		"path", decision.Path,
		"intent", check.Intent,
		"source", check.Source,
		"clarity", check.Clarity,
		"coverage_percent", validation.CoveragePercent,
		"corrected", validation.Corrected,
		"total_tokens", genResult.Usage.TotalTokens,
		"duration_ms", durationMs,
	)

	o.audit.Log(audit.Record{
		RequestID:       requestID,
		Path:            decision.Path,
		Reason:          decision.Reason,
		IntentSource:    check.Source,
		Intent:          check.Intent,
		Clarity:         check.Clarity,
		BestEffort:      decision.BestEffort,
		LLMCallCount:    decision.LLMCallCount,
		CostUSD:         decision.EstimatedCostUSD,
		CoveragePercent: validation.CoveragePercent,
		Corrected:       validation.Corrected,
		DurationMs:      durationMs,
	})

	return res, nil
}

func (o *Optimizer) legacyFallback(ctx context.Context, agent Agent, requestID, message string, rctx types.RequestContext, start time.Time, stage string) (Result, error) {
	if o.metrics != nil {
		o.metrics.RecordFallback(stage)
	}

	content, err := agent.ProcessLegacy(ctx, message, rctx)
	if err != nil {
		return Result{}, fmt.Errorf("legacy processing: %w", err)
	}

	durationMs := time.Since(start).Milliseconds()
	o.audit.Log(audit.Record{
		RequestID:    requestID,
		Path:         types.PathSingleCall,
		Reason:       "full fallback to legacy processing",
		IntentSource: types.SourceLocalFallback,
		Intent:       "unknown",
		FallbackUsed: true,
		CostUSD:      legacyCostUSD,
		DurationMs:   durationMs,
	})

	return Result{
		Content:          content,
		IntentCheck:      routing.FallbackIntentCheck(),
		EstimatedCostUSD: legacyCostUSD,
		SavingsNote:      "aucune économie: pipeline optimisé contourné",
		FallbackUsed:     true,
		TotalLLMCalls:    2,
		DurationMs:       durationMs,
	}, nil
}

func savingsNote(costUSD float64) string {
	saved := legacyCostUSD - costUSD
	if saved <= 0 {
		return "aucune économie par rapport au flux classique"
	}
	return fmt.Sprintf("économie estimée de $%.3f par rapport au flux classique à deux appels ($%.3f vs $%.3f)", saved, costUSD, legacyCostUSD)
}
