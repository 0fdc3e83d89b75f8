package calls

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"voicedesk/pkg/utils"
)

// PostgresRepo persists call records in the call_records table.
//
// Assumed schema constraints:
// - PRIMARY KEY (id)
// - UNIQUE (provider_call_id) WHERE provider_call_id <> ''
// - org_id TEXT NOT NULL DEFAULT '' ('' = personal scope)
// - topics/collected_data stored as JSONB, ended_at nullable
type PostgresRepo struct {
	db *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo { return &PostgresRepo{db: db} }

const callColumns = `
id, user_id, org_id, agent_id, provider_call_id, direction, from_number,
caller_name, status, duration, recording_url, transcript, sentiment, topics,
summary, notes, collected_data, cost_minor, started_at, ended_at,
last_event_at, created_at, updated_at`

func (r *PostgresRepo) Create(ctx context.Context, rec CallRecord) error {
	const q = `
INSERT INTO call_records (` + callColumns + `)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21,$22,$23)
`
	topics, collected, err := marshalJSONFields(rec)
	if err != nil {
		return err
	}
	_, err = r.db.ExecContext(ctx, q,
		rec.ID,
		rec.Scope.UserID,
		rec.Scope.OrgID,
		rec.AgentID,
		rec.ProviderCallID,
		rec.Direction,
		rec.FromNumber,
		rec.CallerName,
		rec.Status,
		rec.DurationSeconds,
		rec.RecordingURL,
		rec.Transcript,
		rec.Sentiment,
		topics,
		rec.Summary,
		rec.Notes,
		collected,
		rec.CostMinor,
		rec.StartedAt,
		rec.EndedAt,
		rec.LastEventAt,
		rec.CreatedAt,
		rec.UpdatedAt,
	)
	return err
}

func (r *PostgresRepo) Get(ctx context.Context, scope Scope, id string) (CallRecord, error) {
	const q = `
SELECT ` + callColumns + `
FROM call_records
WHERE user_id = $1 AND org_id = $2 AND id = $3
`
	return scanCall(r.db.QueryRowContext(ctx, q, scope.UserID, scope.OrgID, id))
}

func (r *PostgresRepo) GetByProviderCallID(ctx context.Context, scope Scope, providerCallID string) (CallRecord, error) {
	const q = `
SELECT ` + callColumns + `
FROM call_records
WHERE user_id = $1 AND org_id = $2 AND provider_call_id = $3
LIMIT 1
`
	return scanCall(r.db.QueryRowContext(ctx, q, scope.UserID, scope.OrgID, providerCallID))
}

// Mutate serializes concurrent lifecycle mutations per record: the row is
// locked for the duration of the transaction, so two webhook deliveries for
// the same call cannot interleave their read-modify-write cycles.
func (r *PostgresRepo) Mutate(ctx context.Context, scope Scope, id string, fn func(rec *CallRecord) error) (CallRecord, error) {
	var out CallRecord
	err := utils.WithTx(ctx, r.db, &sql.TxOptions{}, func(ctx context.Context, tx *sql.Tx) error {
		const lockQ = `
SELECT ` + callColumns + `
FROM call_records
WHERE user_id = $1 AND org_id = $2 AND id = $3
FOR UPDATE
`
		rec, err := scanCall(tx.QueryRowContext(ctx, lockQ, scope.UserID, scope.OrgID, id))
		if err != nil {
			return err
		}
		if err := fn(&rec); err != nil {
			return err
		}

		topics, collected, err := marshalJSONFields(rec)
		if err != nil {
			return err
		}
		const updQ = `
UPDATE call_records SET
  status = $4, duration = $5, recording_url = $6, transcript = $7,
  sentiment = $8, topics = $9, summary = $10, notes = $11,
  collected_data = $12, cost_minor = $13, ended_at = $14,
  last_event_at = $15, updated_at = $16
WHERE user_id = $1 AND org_id = $2 AND id = $3
`
		if _, err := tx.ExecContext(ctx, updQ,
			scope.UserID,
			scope.OrgID,
			id,
			rec.Status,
			rec.DurationSeconds,
			rec.RecordingURL,
			rec.Transcript,
			rec.Sentiment,
			topics,
			rec.Summary,
			rec.Notes,
			collected,
			rec.CostMinor,
			rec.EndedAt,
			rec.LastEventAt,
			rec.UpdatedAt,
		); err != nil {
			return err
		}
		out = rec
		return nil
	})
	if err != nil {
		return CallRecord{}, err
	}
	return out, nil
}

func (r *PostgresRepo) Delete(ctx context.Context, scope Scope, id string) error {
	const q = `
DELETE FROM call_records
WHERE user_id = $1 AND org_id = $2 AND id = $3
`
	res, err := r.db.ExecContext(ctx, q, scope.UserID, scope.OrgID, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCall(row rowScanner) (CallRecord, error) {
	var (
		rec       CallRecord
		topics    []byte
		collected []byte
		endedAt   sql.NullTime
	)
	err := row.Scan(
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
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return CallRecord{}, ErrNotFound
		}
		return CallRecord{}, err
	}
	if endedAt.Valid {
		t := endedAt.Time
		rec.EndedAt = &t
	}
	if len(topics) > 0 {
		if err := json.Unmarshal(topics, &rec.Topics); err != nil {
			return CallRecord{}, fmt.Errorf("decode topics: %w", err)
		}
	}
	if len(collected) > 0 {
		if err := json.Unmarshal(collected, &rec.CollectedData); err != nil {
			return CallRecord{}, fmt.Errorf("decode collected_data: %w", err)
		}
	}
	return rec, nil
}

func marshalJSONFields(rec CallRecord) (topics, collected []byte, err error) {
	if rec.Topics == nil {
		topics = []byte("[]")
	} else if topics, err = json.Marshal(rec.Topics); err != nil {
		return nil, nil, fmt.Errorf("encode topics: %w", err)
	}
	if rec.CollectedData == nil {
		collected = []byte("{}")
	} else if collected, err = json.Marshal(rec.CollectedData); err != nil {
		return nil, nil, fmt.Errorf("encode collected_data: %w", err)
	}
	return topics, collected, nil
}
