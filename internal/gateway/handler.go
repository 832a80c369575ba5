// Package gateway exposes the optimizer over HTTP.
package gateway

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/avenirfi/conseil-gateway/internal/audit"
	"github.com/avenirfi/conseil-gateway/internal/config"
	"github.com/avenirfi/conseil-gateway/internal/httputil"
	"github.com/avenirfi/conseil-gateway/internal/optimizer"
	"github.com/avenirfi/conseil-gateway/internal/quota"
	"github.com/avenirfi/conseil-gateway/internal/telemetry"
	"github.com/avenirfi/conseil-gateway/internal/types"
)

// Handler holds dependencies for the advisor HTTP handlers.
type Handler struct {
	opt     *optimizer.Optimizer
	agent   optimizer.Agent
	quota   quota.Store
	audit   *audit.Store
	cfg     func() *config.Config
	metrics *telemetry.Metrics
}

func NewHandler(opt *optimizer.Optimizer, agent optimizer.Agent, store quota.Store, auditStore *audit.Store, cfg func() *config.Config, metrics *telemetry.Metrics) *Handler {
	return &Handler{
		opt:     opt,
		agent:   agent,
		quota:   store,
		audit:   auditStore,
		cfg:     cfg,
		metrics: metrics,
	}
}

type queryRequest struct {
	Message string               `json:"message"`
	Context types.RequestContext `json:"context"`
}

// Query handles POST /v1/advisor/query.
func (h *Handler) Query(w http.ResponseWriter, r *http.Request) {
	reqID := w.Header().Get("X-Request-ID")

	body, err := io.ReadAll(r.Body)
	if err != nil {
		httputil.WriteBadRequestError(w, reqID, "Failed to read request body")
		return
	}
	defer r.Body.Close()

	var req queryRequest
	if err := json.Unmarshal(body, &req); err != nil {
		httputil.WriteBadRequestError(w, reqID, "Invalid JSON: "+err.Error())
		return
	}
	if req.Message == "" {
		httputil.WriteBadRequestError(w, reqID, "message is required")
		return
	}

	result, err := h.opt.Optimize(r.Context(), h.agent, reqID, req.Message, req.Context)
	if err != nil {
		slog.Error("request failed beyond legacy fallback", "request_id", reqID, "error", err)
		httputil.WriteServiceUnavailableError(w, reqID, "Assistant unavailable")
		return
	}

	h.publishQuotaGauge(r)
	httputil.WriteJSON(w, reqID, result)
}

type clarifyRequest struct {
	Message     string                    `json:"message"`
	Answer      types.ClarificationAnswer `json:"answer"`
	IntentCheck types.IntentCheck         `json:"intent_check"`
	Context     types.RequestContext      `json:"context"`
}

// Clarify handles POST /v1/advisor/clarify.
func (h *Handler) Clarify(w http.ResponseWriter, r *http.Request) {
	reqID := w.Header().Get("X-Request-ID")

	body, err := io.ReadAll(r.Body)
	if err != nil {
		httputil.WriteBadRequestError(w, reqID, "Failed to read request body")
		return
	}
	defer r.Body.Close()

	var req clarifyRequest
	if err := json.Unmarshal(body, &req); err != nil {
		httputil.WriteBadRequestError(w, reqID, "Invalid JSON: "+err.Error())
		return
	}
	if req.Message == "" {
		httputil.WriteBadRequestError(w, reqID, "message is required")
		return
	}
	if req.Answer.OptionID == "" && req.Answer.Text == "" {
		httputil.WriteBadRequestError(w, reqID, "answer requires option_id or text")
		return
	}

	result, err := h.opt.HandleClarification(r.Context(), h.agent, reqID, req.Message, req.Answer, req.IntentCheck, req.Context)
	if err != nil {
		slog.Error("clarified request failed beyond legacy fallback", "request_id", reqID, "error", err)
		httputil.WriteServiceUnavailableError(w, reqID, "Assistant unavailable")
		return
	}

	h.publishQuotaGauge(r)
	httputil.WriteJSON(w, reqID, result)
}

type statsResponse struct {
	Quota         quota.State    `json:"quota"`
	ClarityHigh   int            `json:"clarity_high"`
	ClarityMedium int            `json:"clarity_medium"`
	Recent        []audit.Record `json:"recent_decisions"`
}

// Stats handles GET /v1/advisor/stats.
func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	reqID := w.Header().Get("X-Request-ID")

	state, err := h.quota.Usage(r.Context())
	if err != nil {
		slog.Warn("quota usage lookup failed", "request_id", reqID, "error", err)
	}

	limit := 20
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 && n <= 200 {
			limit = n
		}
	}
	recent, err := h.audit.RecentDecisions(r.Context(), limit)
	if err != nil {
		slog.Warn("recent decisions lookup failed", "request_id", reqID, "error", err)
		recent = []audit.Record{}
	}

	cfg := h.cfg()
	httputil.WriteJSON(w, reqID, statsResponse{
		Quota:         state,
		ClarityHigh:   cfg.Router.ClarityHigh,
		ClarityMedium: cfg.Router.ClarityMedium,
		Recent:        recent,
	})
}

// QuotaReset handles POST /admin/quota/reset. Nothing resets the counter
// internally; this is the explicit external trigger.
func (h *Handler) QuotaReset(w http.ResponseWriter, r *http.Request) {
	reqID := w.Header().Get("X-Request-ID")

	if err := h.quota.Reset(r.Context()); err != nil {
		slog.Error("quota reset failed", "request_id", reqID, "error", err)
		httputil.WriteInternalError(w, reqID, "Failed to reset quota")
		return
	}

	state, _ := h.quota.Usage(r.Context())
	slog.Info("quota reset", "request_id", reqID, "daily_limit", state.DailyLimit)
	h.publishQuotaGauge(r)
	httputil.WriteJSON(w, reqID, map[string]any{"status": "reset", "quota": state})
}

func (h *Handler) publishQuotaGauge(r *http.Request) {
	if h.metrics == nil {
		return
	}
	if state, err := h.quota.Usage(r.Context()); err == nil {
		h.metrics.SetQuotaUsed(state.UsedToday)
	}
}
