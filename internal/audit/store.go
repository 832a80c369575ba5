// Package audit persists routing decisions to PostgreSQL for later cost
// and quality analysis. Writes are fire-and-forget: an unreachable
// database never blocks or fails a request.
package audit

import (
	"context"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/avenirfi/conseil-gateway/internal/types"
)

// Record is one routing decision with its outcome.
type Record struct {
	RequestID       string       `json:"request_id"`
	Path            types.Path   `json:"path"`
	Reason          string       `json:"reason"`
	IntentSource    types.Source `json:"intent_source"`
	Intent          string       `json:"intent"`
	Clarity         int          `json:"clarity"`
	BestEffort      bool         `json:"best_effort"`
	LLMCallCount    int          `json:"llm_call_count"`
	CostUSD         float64      `json:"cost_usd"`
	CoveragePercent float64      `json:"coverage_percent"`
	Corrected       bool         `json:"corrected"`
	FallbackUsed    bool         `json:"fallback_used"`
	DurationMs      int64        `json:"duration_ms"`
}

// Store writes audit records. A nil pool disables persistence entirely.
type Store struct {
	db     *pgxpool.Pool
	logger *slog.Logger
}

func NewStore(db *pgxpool.Pool, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{db: db, logger: logger}
}

// Log inserts the record in the background. The caller's context is not
// used: the request should not wait on, or be cancelled with, the insert.
func (s *Store) Log(rec Record) {
	if s == nil || s.db == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()

		_, err := s.db.Exec(ctx, `
			INSERT INTO routing_decisions (
				request_id, path, reason, intent_source, intent, clarity,
				best_effort, llm_call_count, cost_usd, coverage_percent,
				corrected, fallback_used, duration_ms
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		`,
			rec.RequestID, string(rec.Path), rec.Reason, string(rec.IntentSource),
			rec.Intent, rec.Clarity, rec.BestEffort, rec.LLMCallCount,
			rec.CostUSD, rec.CoveragePercent, rec.Corrected, rec.FallbackUsed,
			rec.DurationMs,
		)
		if err != nil {
			s.logger.Warn("audit insert failed", "error", err, "request_id", rec.RequestID)
		}
	}()
}

// RecentDecisions returns the latest decisions, newest first. Used by the
// stats endpoint; a nil pool yields an empty slice.
func (s *Store) RecentDecisions(ctx context.Context, limit int) ([]Record, error) {
	if s == nil || s.db == nil {
		return []Record{}, nil
	}
	if limit <= 0 {
		limit = 50
	}

	rows, err := s.db.Query(ctx, `
		SELECT request_id, path, reason, intent_source, intent, clarity,
		       best_effort, llm_call_count, cost_usd, coverage_percent,
		       corrected, fallback_used, duration_ms
		FROM routing_decisions
		ORDER BY created_at DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		var rec Record
		var path, source string
		if err := rows.Scan(
			&rec.RequestID, &path, &rec.Reason, &source, &rec.Intent,
			&rec.Clarity, &rec.BestEffort, &rec.LLMCallCount, &rec.CostUSD,
			&rec.CoveragePercent, &rec.Corrected, &rec.FallbackUsed,
			&rec.DurationMs,
		); err != nil {
			return nil, err
		}
		rec.Path = types.Path(path)
		rec.IntentSource = types.Source(source)
		records = append(records, rec)
	}
	return records, rows.Err()
}
