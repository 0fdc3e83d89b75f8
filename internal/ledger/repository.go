package ledger

import (
	"context"
	"database/sql"
	"fmt"

	"voicedesk/internal/calls"
	"voicedesk/pkg/utils"
)

// PostgresRepo stores ledger entries in the usage_ledger table.
//
// Expected schema:
//
//	CREATE TABLE usage_ledger (
//	    id              TEXT PRIMARY KEY,
//	    user_id         TEXT NOT NULL,
//	    org_id          TEXT NOT NULL DEFAULT '',
//	    agent_id        TEXT NOT NULL,
//	    call_id         TEXT NOT NULL,
//	    amount_minor    BIGINT NOT NULL,
//	    currency        TEXT NOT NULL,
//	    idempotency_key TEXT NOT NULL,
//	    created_at      TIMESTAMPTZ NOT NULL,
//	    UNIQUE (user_id, org_id, idempotency_key)
//	);
type PostgresRepo struct {
	db *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo {
	return &PostgresRepo{db: db}
}

func (r *PostgresRepo) Record(ctx context.Context, e Entry) (Entry, bool, error) {
	var (
		out     Entry
		created bool
	)
	err := utils.WithTx(ctx, r.db, &sql.TxOptions{}, func(ctx context.Context, tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
			INSERT INTO usage_ledger
				(id, user_id, org_id, agent_id, call_id, amount_minor, currency, idempotency_key, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
			ON CONFLICT (user_id, org_id, idempotency_key) DO NOTHING`,
			e.ID, e.Scope.UserID, e.Scope.OrgID, e.AgentID, e.CallID,
			e.AmountMinor, e.Currency, e.IdempotencyKey, e.CreatedAt,
		)
		if err != nil {
			return fmt.Errorf("insert ledger entry: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("rows affected: %w", err)
		}
		created = n > 0

		row := tx.QueryRowContext(ctx, `
			SELECT id, user_id, org_id, agent_id, call_id, amount_minor, currency, idempotency_key, created_at
			FROM usage_ledger
			WHERE user_id = $1 AND org_id = $2 AND idempotency_key = $3`,
			e.Scope.UserID, e.Scope.OrgID, e.IdempotencyKey,
		)
		if err := row.Scan(
			&out.ID, &out.Scope.UserID, &out.Scope.OrgID, &out.AgentID, &out.CallID,
			&out.AmountMinor, &out.Currency, &out.IdempotencyKey, &out.CreatedAt,
		); err != nil {
			return fmt.Errorf("read ledger entry: %w", err)
		}
		return nil
	})
	if err != nil {
		return Entry{}, false, err
	}
	return out, created, nil
}

func (r *PostgresRepo) AgentTotalMinor(ctx context.Context, scope calls.Scope, agentID string) (int64, error) {
	var total int64
	err := r.db.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(amount_minor), 0)
		FROM usage_ledger
		WHERE user_id = $1 AND org_id = $2 AND agent_id = $3`,
		scope.UserID, scope.OrgID, agentID,
	).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("sum agent usage: %w", err)
	}
	return total, nil
}
