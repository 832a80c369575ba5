package optimizer

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/avenirfi/conseil-gateway/internal/intent"
	"github.com/avenirfi/conseil-gateway/internal/quota"
	"github.com/avenirfi/conseil-gateway/internal/routing"
	"github.com/avenirfi/conseil-gateway/internal/synthesis"
	"github.com/avenirfi/conseil-gateway/internal/types"
	"github.com/avenirfi/conseil-gateway/internal/validate"
)

// completeAnswer covers the whole chat checklist so no correction runs.
const completeAnswer = "Le prix est 245$, variation +1%, P/E 28, EPS 6,42$, ROE 147%, YTD +12%, consensus buy, dividende 0,96$"

type fakeAgent struct {
	toolResults []types.ToolResult
	toolErr     error
	toolPanic   bool

	legacyContent string
	legacyErr     error
	legacyCalls   int
}

func (a *fakeAgent) ExecuteTools(_ context.Context, _ string, _ types.IntentCheck) ([]types.ToolResult, error) {
	if a.toolPanic {
		panic("tool executor exploded")
	}
	return a.toolResults, a.toolErr
}

func (a *fakeAgent) ProcessLegacy(_ context.Context, _ string, _ types.RequestContext) (string, error) {
	a.legacyCalls++
	return a.legacyContent, a.legacyErr
}

type fakeGen struct {
	replies []string
	errs    []error
	calls   int
	prompts []string
}

func (g *fakeGen) Generate(_ context.Context, prompt string, _ types.GenerationParams) (types.GenerationResult, error) {
	i := g.calls
	g.calls++
	g.prompts = append(g.prompts, prompt)
	if i < len(g.errs) && g.errs[i] != nil {
		return types.GenerationResult{}, g.errs[i]
	}
	reply := "ok"
	if i < len(g.replies) {
		reply = g.replies[i]
	}
	return types.GenerationResult{
		Content: reply,
		Usage:   types.Usage{PromptTokens: 100, CompletionTokens: 50, TotalTokens: 150},
	}, nil
}

func (g *fakeGen) Model() string { return "sonar-pro" }

type fakeSecondary struct {
	check types.IntentCheck
}

func (f *fakeSecondary) Classify(_ context.Context, _ string, _ types.IntentCheck) (types.IntentCheck, error) {
	return f.check, nil
}

func newTestOptimizer(gen Generator, secondary intent.SecondaryClassifier) *Optimizer {
	chain := intent.NewChain(intent.NewLocalClassifier(), secondary, quota.NewCounter(100), nil, 9, nil)
	return New(
		chain,
		routing.NewEngine(7, 4),
		synthesis.NewBuilder(),
		validate.NewValidator(nil),
		gen,
		nil,
		nil,
		nil,
	)
}

func priceToolResults() []types.ToolResult {
	return []types.ToolResult{
		{ToolID: "polygon-stock-price", Success: true, Data: []byte(`{"price":245.5}`)},
	}
}

func TestOptimizeSingleCall(t *testing.T) {
	gen := &fakeGen{replies: []string{completeAnswer}}
	agent := &fakeAgent{toolResults: priceToolResults()}
	o := newTestOptimizer(gen, nil)

	res, err := o.Optimize(context.Background(), agent, "req-1", "Quel est le prix de AAPL ?", types.RequestContext{})
	if err != nil {
		t.Fatalf("optimize: %v", err)
	}

	if res.NeedsClarification {
		t.Fatal("clear request should not need clarification")
	}
	if res.Path != types.PathSingleCall {
		t.Errorf("expected single-call, got %s", res.Path)
	}
	if res.Content != completeAnswer {
		t.Errorf("unexpected content %q", res.Content)
	}
	if gen.calls != 1 {
		t.Errorf("complete answer should need exactly 1 generation call, got %d", gen.calls)
	}
	if res.Validation == nil || !res.Validation.Complete {
		t.Errorf("expected complete validation, got %+v", res.Validation)
	}
	if res.Model != "sonar-pro" {
		t.Errorf("expected model name in result, got %q", res.Model)
	}
	if len(res.ToolsUsed) != 1 || res.ToolsUsed[0] != "polygon-stock-price" {
		t.Errorf("expected tools used, got %v", res.ToolsUsed)
	}
	if res.TotalLLMCalls != 1 {
		t.Errorf("expected 1 LLM call, got %d", res.TotalLLMCalls)
	}
	if res.EstimatedCostUSD != 0.021 {
		t.Errorf("expected cost 0.021, got %v", res.EstimatedCostUSD)
	}
	if !strings.Contains(res.SavingsNote, "économie") {
		t.Errorf("expected a savings note, got %q", res.SavingsNote)
	}
	if res.FallbackUsed {
		t.Error("no fallback should be reported")
	}
}

func TestOptimizeRunsCorrectionOnce(t *testing.T) {
	gen := &fakeGen{replies: []string{
		"Le prix est 245$", // misses most of the checklist
		"EPS 6,42$, ROE 147%",
	}}
	agent := &fakeAgent{toolResults: priceToolResults()}
	o := newTestOptimizer(gen, nil)

	res, err := o.Optimize(context.Background(), agent, "req-2", "Quel est le prix de AAPL ?", types.RequestContext{})
	if err != nil {
		t.Fatalf("optimize: %v", err)
	}

	if gen.calls != 2 {
		t.Fatalf("expected generation + one correction, got %d calls", gen.calls)
	}
	if !strings.HasPrefix(res.Content, "Le prix est 245$") {
		t.Errorf("corrected content should keep the original first: %q", res.Content)
	}
	if !strings.Contains(res.Content, "EPS 6,42$") {
		t.Errorf("corrected content should append the correction: %q", res.Content)
	}
	if res.Validation == nil || !res.Validation.Corrected {
		t.Error("validation should record the correction")
	}
}

func TestOptimizeCorrectionFailureKeepsOriginal(t *testing.T) {
	gen := &fakeGen{
		replies: []string{"Le prix est 245$"},
		errs:    []error{nil, errors.New("correction api down")},
	}
	agent := &fakeAgent{toolResults: priceToolResults()}
	o := newTestOptimizer(gen, nil)

	res, err := o.Optimize(context.Background(), agent, "req-3", "Quel est le prix de AAPL ?", types.RequestContext{})
	if err != nil {
		t.Fatalf("optimize: %v", err)
	}
	if res.FallbackUsed {
		t.Error("a failed correction is not a pipeline failure")
	}
	if res.Content != "Le prix est 245$" {
		t.Errorf("original answer should be kept, got %q", res.Content)
	}
	if res.Validation.Corrected {
		t.Error("failed correction must not be recorded as corrected")
	}
}

func TestOptimizeClarifiedCall(t *testing.T) {
	secondaryCheck := types.IntentCheck{
		Intent:              "stock_price",
		Clarity:             5,
		NeedsClarification:  true,
		ClarificationReason: types.ReasonMissingTicker,
		Source:              types.SourceSecondary,
	}
	secondaryCheck.Normalize()

	gen := &fakeGen{replies: []string{completeAnswer}}
	agent := &fakeAgent{toolResults: priceToolResults()}
	o := newTestOptimizer(gen, &fakeSecondary{check: secondaryCheck})

	res, err := o.Optimize(context.Background(), agent, "req-4", "Dis-moi sur la compagnie", types.RequestContext{})
	if err != nil {
		t.Fatalf("optimize: %v", err)
	}

	if !res.NeedsClarification {
		t.Fatal("expected a clarification request")
	}
	if res.Question == nil {
		t.Fatal("clarification result must carry the question")
	}
	if res.Question.Kind != types.QuestionOpenText {
		t.Errorf("missing ticker should ask open text, got %s", res.Question.Kind)
	}
	if !strings.Contains(res.Question.Prompt, "AAPL") {
		t.Errorf("question should give ticker examples: %q", res.Question.Prompt)
	}
	if gen.calls != 0 {
		t.Errorf("no generation before the answer arrives, got %d calls", gen.calls)
	}

	// Fold the answer back in.
	final, err := o.HandleClarification(context.Background(), agent, "req-4", "Dis-moi sur la compagnie",
		types.ClarificationAnswer{Text: "AAPL"}, res.IntentCheck, types.RequestContext{})
	if err != nil {
		t.Fatalf("handle clarification: %v", err)
	}

	if final.NeedsClarification {
		t.Error("clarified request should produce an answer")
	}
	if final.Path != types.PathSingleCall {
		t.Errorf("expected single-call after clarification, got %s", final.Path)
	}
	if final.TotalLLMCalls != 2 {
		t.Errorf("clarified flow counts 2 LLM calls, got %d", final.TotalLLMCalls)
	}
	if !strings.Contains(gen.prompts[0], "Clarification de l'utilisateur: AAPL") {
		t.Error("generation prompt should embed the enriched message")
	}
}

func TestOptimizeGenerationFailureFallsBackToLegacy(t *testing.T) {
	gen := &fakeGen{errs: []error{errors.New("generation api down")}}
	agent := &fakeAgent{toolResults: priceToolResults(), legacyContent: "réponse du flux classique"}
	o := newTestOptimizer(gen, nil)

	res, err := o.Optimize(context.Background(), agent, "req-5", "Quel est le prix de AAPL ?", types.RequestContext{})
	if err != nil {
		t.Fatalf("optimize should absorb the failure: %v", err)
	}

	if !res.FallbackUsed {
		t.Fatal("expected the legacy fallback")
	}
	if res.Content != "réponse du flux classique" {
		t.Errorf("expected legacy content, got %q", res.Content)
	}
	if agent.legacyCalls != 1 {
		t.Errorf("expected 1 legacy call, got %d", agent.legacyCalls)
	}
}

func TestOptimizeToolFailureFallsBackToLegacy(t *testing.T) {
	gen := &fakeGen{replies: []string{completeAnswer}}
	agent := &fakeAgent{toolErr: errors.New("tools down"), legacyContent: "legacy"}
	o := newTestOptimizer(gen, nil)

	res, err := o.Optimize(context.Background(), agent, "req-6", "Quel est le prix de AAPL ?", types.RequestContext{})
	if err != nil {
		t.Fatalf("optimize: %v", err)
	}
	if !res.FallbackUsed || res.Content != "legacy" {
		t.Errorf("expected legacy fallback, got %+v", res)
	}
}

func TestOptimizeRecoversFromPanic(t *testing.T) {
	gen := &fakeGen{}
	agent := &fakeAgent{toolPanic: true, legacyContent: "legacy"}
	o := newTestOptimizer(gen, nil)

	res, err := o.Optimize(context.Background(), agent, "req-7", "Quel est le prix de AAPL ?", types.RequestContext{})
	if err != nil {
		t.Fatalf("panic must not escape: %v", err)
	}
	if !res.FallbackUsed || res.Content != "legacy" {
		t.Errorf("expected legacy fallback after panic, got %+v", res)
	}
}

func TestOptimizeLegacyFailureSurfaces(t *testing.T) {
	gen := &fakeGen{errs: []error{errors.New("generation down")}}
	agent := &fakeAgent{toolResults: priceToolResults(), legacyErr: errors.New("legacy down too")}
	o := newTestOptimizer(gen, nil)

	_, err := o.Optimize(context.Background(), agent, "req-8", "Quel est le prix de AAPL ?", types.RequestContext{})
	if err == nil {
		t.Fatal("when both paths fail, the error must surface")
	}
}
