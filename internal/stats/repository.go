package stats

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"voicedesk/internal/calls"
)

// PostgresRepo computes aggregates directly in SQL so the rollup stays a
// single pass regardless of history size.
type PostgresRepo struct {
	db *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo { return &PostgresRepo{db: db} }

func (r *PostgresRepo) AgentTotals(ctx context.Context, scope calls.Scope, agentID string) (Totals, error) {
	const q = `
SELECT
  COUNT(*),
  COUNT(*) FILTER (WHERE status = 'completed'),
  COUNT(*) FILTER (WHERE status = 'missed'),
  COALESCE(SUM(duration), 0),
  COALESCE(SUM(cost_minor), 0)
FROM call_records
WHERE user_id = $1 AND org_id = $2 AND agent_id = $3
`
	var t Totals
	err := r.db.QueryRowContext(ctx, q, scope.UserID, scope.OrgID, agentID).Scan(
		&t.TotalCalls,
		&t.CompletedCalls,
		&t.MissedCalls,
		&t.TotalDurationSeconds,
		&t.TotalCostMinor,
	)
	if err != nil {
		return Totals{}, err
	}
	return t, nil
}

func (r *PostgresRepo) AgentCalls(ctx context.Context, scope calls.Scope, agentID string, f HistoryFilter) ([]calls.CallRecord, int, error) {
	where, args := historyWhere(scope, agentID, f)

	countQ := "SELECT COUNT(*) FROM call_records " + where
	var total int
	if err := r.db.QueryRowContext(ctx, countQ, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	pageQ := `
SELECT id, user_id, org_id, agent_id, provider_call_id, direction, from_number,
       caller_name, status, duration, recording_url, transcript, sentiment, topics,
       summary, notes, collected_data, cost_minor, started_at, ended_at,
       last_event_at, created_at, updated_at
FROM call_records ` + where + `
ORDER BY started_at DESC
LIMIT $` + strconv.Itoa(len(args)+1) + ` OFFSET $` + strconv.Itoa(len(args)+2)
	rows, err := r.db.QueryContext(ctx, pageQ, append(args, f.Limit, f.Skip)...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	out := make([]calls.CallRecord, 0, f.Limit)
	for rows.Next() {
		var (
			rec       calls.CallRecord
			topics    []byte
			collected []byte
			endedAt   sql.NullTime
		)
		if err := rows.Scan(
			&rec.ID,
			&rec.Scope.UserID,
			&rec.Scope.OrgID,
			&rec.AgentID,
			&rec.ProviderCallID,
			&rec.Direction,
			&rec.FromNumber,
			&rec.CallerName,
			&rec.Status,
			&rec.DurationSeconds,
			&rec.RecordingURL,
			&rec.Transcript,
			&rec.Sentiment,
			&topics,
			&rec.Summary,
			&rec.Notes,
			&collected,
			&rec.CostMinor,
			&rec.StartedAt,
			&endedAt,
			&rec.LastEventAt,
			&rec.CreatedAt,
			&rec.UpdatedAt,
		); err != nil {
			return nil, 0, err
		}
		if endedAt.Valid {
			t := endedAt.Time
			rec.EndedAt = &t
		}
		if len(topics) > 0 {
			if err := json.Unmarshal(topics, &rec.Topics); err != nil {
				return nil, 0, fmt.Errorf("decode topics: %w", err)
			}
		}
		if len(collected) > 0 {
			if err := json.Unmarshal(collected, &rec.CollectedData); err != nil {
				return nil, 0, fmt.Errorf("decode collected_data: %w", err)
			}
		}
		out = append(out, rec)
	}
	return out, total, rows.Err()
}

func historyWhere(scope calls.Scope, agentID string, f HistoryFilter) (string, []any) {
	var b strings.Builder
	args := []any{scope.UserID, scope.OrgID, agentID}
	b.WriteString("WHERE user_id = $1 AND org_id = $2 AND agent_id = $3")
	if f.Status != "" {
		args = append(args, f.Status)
		b.WriteString(" AND status = $" + strconv.Itoa(len(args)))
	}
	if f.Direction != "" {
		args = append(args, f.Direction)
		b.WriteString(" AND direction = $" + strconv.Itoa(len(args)))
	}
	return b.String(), args
}
