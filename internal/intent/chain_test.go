package intent

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/avenirfi/conseil-gateway/internal/quota"
	"github.com/avenirfi/conseil-gateway/internal/types"
)

type fakeSecondary struct {
	check types.IntentCheck
	err   error
	calls int
}

func (f *fakeSecondary) Classify(_ context.Context, _ string, _ types.IntentCheck) (types.IntentCheck, error) {
	f.calls++
	if f.err != nil {
		return types.IntentCheck{}, f.err
	}
	return f.check, nil
}

func secondaryCheck(clarity int) types.IntentCheck {
	check := types.IntentCheck{
		Intent:  "fundamentals",
		Clarity: clarity,
		Source:  types.SourceSecondary,
	}
	check.Normalize()
	return check
}

// A vague message the local heuristic cannot score above the cutoff.
const vagueMessage = "Dis-moi quelque chose"

func TestChainSkipsSecondaryWhenLocalIsClear(t *testing.T) {
	sec := &fakeSecondary{check: secondaryCheck(8)}
	chain := NewChain(NewLocalClassifier(), sec, quota.NewCounter(10), nil, 9, nil)

	// Ticker + keyword + context ticker scores 10 locally.
	check := chain.Analyze(context.Background(), "Quel est le prix de AAPL ?", types.RequestContext{Tickers: []string{"MSFT"}})
	if check.Source != types.SourceLocal {
		t.Errorf("expected local source, got %q", check.Source)
	}
	if sec.calls != 0 {
		t.Errorf("secondary should not be called for clear messages, got %d calls", sec.calls)
	}
}

func TestChainUsesSecondaryWhenLocalIsUnclear(t *testing.T) {
	sec := &fakeSecondary{check: secondaryCheck(8)}
	store := quota.NewCounter(10)
	chain := NewChain(NewLocalClassifier(), sec, store, nil, 9, nil)

	check := chain.Analyze(context.Background(), vagueMessage, types.RequestContext{})
	if check.Source != types.SourceSecondary {
		t.Errorf("expected secondary source, got %q", check.Source)
	}
	if sec.calls != 1 {
		t.Errorf("expected 1 secondary call, got %d", sec.calls)
	}

	state, _ := store.Usage(context.Background())
	if state.UsedToday != 1 {
		t.Errorf("successful call should consume quota, got %d used", state.UsedToday)
	}
}

func TestChainNoSecondaryConfigured(t *testing.T) {
	chain := NewChain(NewLocalClassifier(), nil, quota.NewCounter(10), nil, 9, nil)

	check := chain.Analyze(context.Background(), vagueMessage, types.RequestContext{})
	if check.Source != types.SourceLocalFallback {
		t.Errorf("expected local-fallback source, got %q", check.Source)
	}
}

func TestChainQuotaExhaustedUsesLocal(t *testing.T) {
	sec := &fakeSecondary{check: secondaryCheck(8)}
	store := quota.NewCounter(0)
	chain := NewChain(NewLocalClassifier(), sec, store, nil, 9, nil)

	check := chain.Analyze(context.Background(), vagueMessage, types.RequestContext{})
	if sec.calls != 0 {
		t.Errorf("secondary should not be called when quota is exhausted, got %d calls", sec.calls)
	}
	// Exhausted quota is normal operation, not a failure: the source stays local.
	if check.Source != types.SourceLocal {
		t.Errorf("expected local source, got %q", check.Source)
	}
}

func TestChainSecondaryFailureRefundsQuota(t *testing.T) {
	sec := &fakeSecondary{err: errors.New("boom")}
	store := quota.NewCounter(10)
	chain := NewChain(NewLocalClassifier(), sec, store, nil, 9, nil)

	check := chain.Analyze(context.Background(), vagueMessage, types.RequestContext{})
	if check.Source != types.SourceLocalFallback {
		t.Errorf("expected local-fallback source, got %q", check.Source)
	}

	state, _ := store.Usage(context.Background())
	if state.UsedToday != 0 {
		t.Errorf("failed call must not consume quota, got %d used", state.UsedToday)
	}
}

func TestChainOpenBreakerSkipsSecondary(t *testing.T) {
	sec := &fakeSecondary{err: errors.New("boom")}
	breaker := NewCircuitBreaker(2, time.Hour)
	chain := NewChain(NewLocalClassifier(), sec, quota.NewCounter(10), breaker, 9, nil)

	ctx := context.Background()
	chain.Analyze(ctx, vagueMessage, types.RequestContext{})
	chain.Analyze(ctx, vagueMessage, types.RequestContext{})

	if breaker.State() != StateOpen {
		t.Fatalf("expected open breaker after 2 failures, got %v", breaker.State())
	}

	before := sec.calls
	check := chain.Analyze(ctx, vagueMessage, types.RequestContext{})
	if sec.calls != before {
		t.Error("secondary should be skipped while the breaker is open")
	}
	if check.Source != types.SourceLocalFallback {
		t.Errorf("expected local-fallback source, got %q", check.Source)
	}
}

func TestChainNeverFails(t *testing.T) {
	// Every degradation combination still yields a usable check.
	sec := &fakeSecondary{err: errors.New("boom")}
	chain := NewChain(NewLocalClassifier(), sec, quota.NewCounter(10), NewCircuitBreaker(1, time.Hour), 9, nil)

	for i := 0; i < 5; i++ {
		check := chain.Analyze(context.Background(), vagueMessage, types.RequestContext{})
		if check.Intent == "" {
			t.Fatal("Analyze must always return a normalized check")
		}
		if check.Clarity < 0 || check.Clarity > 10 {
			t.Fatalf("clarity %d out of range", check.Clarity)
		}
	}
}

func TestCircuitBreakerRecovery(t *testing.T) {
	cb := NewCircuitBreaker(1, 10*time.Millisecond)
	cb.RecordFailure()
	if cb.Allow() {
		t.Fatal("breaker should be open after threshold failures")
	}

	time.Sleep(20 * time.Millisecond)
	if !cb.Allow() {
		t.Fatal("breaker should allow a probe after the interval")
	}

	cb.RecordSuccess()
	if cb.State() != StateClosed {
		t.Errorf("expected closed after successful probe, got %v", cb.State())
	}
}
