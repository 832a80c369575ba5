// Package routing maps a normalized intent check to a routing decision and
// owns the clarification round-trip protocol.
package routing

import (
	"fmt"

	"github.com/avenirfi/conseil-gateway/internal/types"
)

// Cost and latency baselines for one generation call.
const (
	singleCallCostUSD = 0.021
	singleCallTimeMs  = 1500
	clarifiedTimeMs   = 3000
	bestEffortTimeMs  = 2000
)

// Engine is the pure routing decision function. No I/O.
type Engine struct {
	clarityHigh   int
	clarityMedium int
}

// NewEngine creates an engine with the given clarity thresholds.
func NewEngine(clarityHigh, clarityMedium int) *Engine {
	if clarityHigh <= 0 {
		clarityHigh = 7
	}
	if clarityMedium <= 0 {
		clarityMedium = 4
	}
	return &Engine{clarityHigh: clarityHigh, clarityMedium: clarityMedium}
}

// Decide maps an intent check to a routing decision. The branches are
// evaluated in order; first match wins, so an explicit ticker+intent pair
// forces a single call even at clarity 0 — a terse request can still be
// structurally unambiguous.
func (e *Engine) Decide(check types.IntentCheck) (types.RoutingDecision, error) {
	if check.Clarity < 0 || check.Clarity > 10 {
		return types.RoutingDecision{}, fmt.Errorf("clarity %d out of range [0,10]", check.Clarity)
	}

	if check.Clarity >= e.clarityHigh || (check.HasExplicitTicker() && check.HasExplicitIntent()) {
		return types.RoutingDecision{
			Path:             types.PathSingleCall,
			Reason:           fmt.Sprintf("high clarity (%d/10) or explicit ticker+intent", check.Clarity),
			EstimatedCostUSD: singleCallCostUSD,
			EstimatedTimeMs:  singleCallTimeMs,
			LLMCallCount:     1,
		}, nil
	}

	if check.Clarity >= e.clarityMedium && check.Clarity < e.clarityHigh && check.NeedsClarification {
		question := BuildQuestion(check)
		return types.RoutingDecision{
			Path:                  types.PathClarifiedCall,
			Reason:                fmt.Sprintf("medium clarity (%d/10), needs clarification: %s", check.Clarity, check.ClarificationReason),
			EstimatedCostUSD:      singleCallCostUSD, // clarification itself is served by the free tier
			EstimatedTimeMs:       clarifiedTimeMs,
			LLMCallCount:          2,
			ClarificationQuestion: &question,
		}, nil
	}

	return types.RoutingDecision{
		Path:             types.PathSingleCall,
		Reason:           fmt.Sprintf("low clarity (%d/10), attempting best-effort single call", check.Clarity),
		EstimatedCostUSD: singleCallCostUSD,
		EstimatedTimeMs:  bestEffortTimeMs,
		LLMCallCount:     1,
		BestEffort:       true,
	}, nil
}

// FallbackDecision is the canonical decision substituted when the engine
// itself fails on malformed input.
func FallbackDecision() types.RoutingDecision {
	return types.RoutingDecision{
		Path:             types.PathSingleCall,
		Reason:           "router error fallback",
		EstimatedCostUSD: singleCallCostUSD,
		EstimatedTimeMs:  bestEffortTimeMs,
		LLMCallCount:     1,
		BestEffort:       true,
	}
}

// FallbackIntentCheck pairs with FallbackDecision when no usable check
// survived the failure.
func FallbackIntentCheck() types.IntentCheck {
	check := types.IntentCheck{
		Intent:  "unknown",
		Clarity: 5,
		Source:  types.SourceLocalFallback,
	}
	check.Normalize()
	return check
}
