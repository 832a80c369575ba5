package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/avenirfi/conseil-gateway/internal/audit"
	"github.com/avenirfi/conseil-gateway/internal/config"
	"github.com/avenirfi/conseil-gateway/internal/intent"
	"github.com/avenirfi/conseil-gateway/internal/optimizer"
	"github.com/avenirfi/conseil-gateway/internal/quota"
	"github.com/avenirfi/conseil-gateway/internal/routing"
	"github.com/avenirfi/conseil-gateway/internal/synthesis"
	"github.com/avenirfi/conseil-gateway/internal/types"
	"github.com/avenirfi/conseil-gateway/internal/validate"
)

const completeAnswer = "Le prix est 245$, variation +1%, P/E 28, EPS 6,42$, ROE 147%, YTD +12%, consensus buy, dividende 0,96$"

type fakeAgent struct{}

func (fakeAgent) ExecuteTools(_ context.Context, _ string, _ types.IntentCheck) ([]types.ToolResult, error) {
	return []types.ToolResult{
		{ToolID: "polygon-stock-price", Success: true, Data: []byte(`{"price":245.5}`)},
	}, nil
}

func (fakeAgent) ProcessLegacy(_ context.Context, _ string, _ types.RequestContext) (string, error) {
	return "legacy", nil
}

type fakeGen struct{}

func (fakeGen) Generate(_ context.Context, _ string, _ types.GenerationParams) (types.GenerationResult, error) {
	return types.GenerationResult{Content: completeAnswer}, nil
}

func (fakeGen) Model() string { return "sonar-pro" }

func newTestHandler(store quota.Store) *Handler {
	chain := intent.NewChain(intent.NewLocalClassifier(), nil, store, nil, 9, nil)
	opt := optimizer.New(
		chain,
		routing.NewEngine(7, 4),
		synthesis.NewBuilder(),
		validate.NewValidator(nil),
		fakeGen{},
		nil,
		nil,
		nil,
	)
	cfg := config.DefaultConfig()
	return NewHandler(opt, fakeAgent{}, store, audit.NewStore(nil, nil), func() *config.Config { return cfg }, nil)
}

func TestQueryReturnsAnswer(t *testing.T) {
	h := newTestHandler(quota.NewCounter(10))

	body := `{"message": "Quel est le prix de AAPL ?"}`
	r := httptest.NewRequest(http.MethodPost, "/v1/advisor/query", strings.NewReader(body))
	w := httptest.NewRecorder()
	w.Header().Set("X-Request-ID", "req_test")

	h.Query(w, r)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var res optimizer.Result
	if err := json.Unmarshal(w.Body.Bytes(), &res); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if res.NeedsClarification {
		t.Error("clear request should not need clarification")
	}
	if res.Content != completeAnswer {
		t.Errorf("unexpected content %q", res.Content)
	}
	if res.Path != types.PathSingleCall {
		t.Errorf("expected single-call, got %s", res.Path)
	}
}

func TestQueryRequiresMessage(t *testing.T) {
	h := newTestHandler(quota.NewCounter(10))

	r := httptest.NewRequest(http.MethodPost, "/v1/advisor/query", strings.NewReader(`{}`))
	w := httptest.NewRecorder()
	h.Query(w, r)

	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", w.Code)
	}
}

func TestQueryRejectsInvalidJSON(t *testing.T) {
	h := newTestHandler(quota.NewCounter(10))

	r := httptest.NewRequest(http.MethodPost, "/v1/advisor/query", strings.NewReader(`{not json`))
	w := httptest.NewRecorder()
	h.Query(w, r)

	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", w.Code)
	}
}

func TestClarifyRequiresAnswer(t *testing.T) {
	h := newTestHandler(quota.NewCounter(10))

	body := `{"message": "Quel est le prix ?", "answer": {}}`
	r := httptest.NewRequest(http.MethodPost, "/v1/advisor/clarify", strings.NewReader(body))
	w := httptest.NewRecorder()
	h.Clarify(w, r)

	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", w.Code)
	}
}

func TestClarifyProducesAnswer(t *testing.T) {
	h := newTestHandler(quota.NewCounter(10))

	body := `{
		"message": "Quel est le prix ?",
		"answer": {"text": "AAPL"},
		"intent_check": {"intent": "stock_price", "clarity_score": 5, "needs_clarification": true, "clarification_reason": "missing_ticker"}
	}`
	r := httptest.NewRequest(http.MethodPost, "/v1/advisor/clarify", strings.NewReader(body))
	w := httptest.NewRecorder()
	h.Clarify(w, r)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var res optimizer.Result
	if err := json.Unmarshal(w.Body.Bytes(), &res); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if res.Content != completeAnswer {
		t.Errorf("unexpected content %q", res.Content)
	}
	if res.TotalLLMCalls != 2 {
		t.Errorf("clarified flow counts 2 LLM calls, got %d", res.TotalLLMCalls)
	}
}

func TestStats(t *testing.T) {
	store := quota.NewCounter(1500)
	store.Reserve(context.Background())
	h := newTestHandler(store)

	r := httptest.NewRequest(http.MethodGet, "/v1/advisor/stats", nil)
	w := httptest.NewRecorder()
	h.Stats(w, r)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}

	var res statsResponse
	if err := json.Unmarshal(w.Body.Bytes(), &res); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if res.Quota.UsedToday != 1 || res.Quota.DailyLimit != 1500 {
		t.Errorf("unexpected quota state %+v", res.Quota)
	}
	if res.ClarityHigh != 7 || res.ClarityMedium != 4 {
		t.Errorf("unexpected thresholds %d/%d", res.ClarityHigh, res.ClarityMedium)
	}
}

func TestQuotaReset(t *testing.T) {
	store := quota.NewCounter(10)
	store.Reserve(context.Background())
	h := newTestHandler(store)

	r := httptest.NewRequest(http.MethodPost, "/admin/quota/reset", nil)
	w := httptest.NewRecorder()
	h.QuotaReset(w, r)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}

	state, _ := store.Usage(context.Background())
	if state.UsedToday != 0 {
		t.Errorf("expected quota reset to 0, got %d", state.UsedToday)
	}
}
