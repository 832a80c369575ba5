package intent

import (
	"context"
	"log/slog"

	"github.com/avenirfi/conseil-gateway/internal/quota"
	"github.com/avenirfi/conseil-gateway/internal/types"
)

// Chain runs the local heuristic first and escalates to the quota-limited
// secondary classifier only when the local result is not clear enough.
// Analyze never fails: every degradation path falls back to the local
// result.
type Chain struct {
	local              *LocalClassifier
	secondary          SecondaryClassifier
	quota              quota.Store
	breaker            *CircuitBreaker
	localClarityCutoff int
	logger             *slog.Logger
}

// NewChain wires the classification chain. secondary may be nil (not
// configured) and breaker may be nil (no circuit breaking).
func NewChain(local *LocalClassifier, secondary SecondaryClassifier, store quota.Store, breaker *CircuitBreaker, localClarityCutoff int, logger *slog.Logger) *Chain {
	if logger == nil {
		logger = slog.Default()
	}
	if localClarityCutoff <= 0 {
		localClarityCutoff = 9
	}
	return &Chain{
		local:              local,
		secondary:          secondary,
		quota:              store,
		breaker:            breaker,
		localClarityCutoff: localClarityCutoff,
		logger:             logger,
	}
}

// Analyze classifies the message. The Source field of the result reflects
// which classifier actually produced the values used downstream.
func (c *Chain) Analyze(ctx context.Context, message string, rctx types.RequestContext) types.IntentCheck {
	localCheck := c.local.Analyze(message, rctx)

	// Clear enough locally: the secondary round-trip buys nothing.
	if localCheck.Clarity >= c.localClarityCutoff {
		return localCheck
	}

	if c.secondary == nil {
		localCheck.Source = types.SourceLocalFallback
		return localCheck
	}

	if c.breaker != nil && !c.breaker.Allow() {
		c.logger.Warn("secondary classifier circuit open, using local result")
		localCheck.Source = types.SourceLocalFallback
		return localCheck
	}

	reserved, err := c.quota.Reserve(ctx)
	if err != nil {
		c.logger.Warn("quota reserve failed, using local result", "error", err)
		localCheck.Source = types.SourceLocalFallback
		return localCheck
	}
	if !reserved {
		state, _ := c.quota.Usage(ctx)
		c.logger.Info("secondary classifier quota exhausted, using local result",
			"used_today", state.UsedToday,
			"daily_limit", state.DailyLimit,
		)
		return localCheck
	}

	secondaryCheck, err := c.secondary.Classify(ctx, message, localCheck)
	if err != nil {
		// The failed round-trip must not consume quota.
		if relErr := c.quota.Release(ctx); relErr != nil {
			c.logger.Warn("quota release failed", "error", relErr)
		}
		if c.breaker != nil {
			c.breaker.RecordFailure()
		}
		c.logger.Warn("secondary classifier failed, falling back to local", "error", err)
		localCheck.Source = types.SourceLocalFallback
		return localCheck
	}

	if c.breaker != nil {
		c.breaker.RecordSuccess()
	}
	return secondaryCheck
}
