package audit

import (
	"context"
	"database/sql"
	"fmt"
)

// PostgresRepo appends events to the audit_events table.
//
// Expected schema:
//
//	CREATE TABLE audit_events (
//	    id            TEXT PRIMARY KEY,
//	    user_id       TEXT NOT NULL,
//	    org_id        TEXT NOT NULL DEFAULT '',
//	    type          TEXT NOT NULL,
//	    actor_user_id TEXT NOT NULL DEFAULT '',
//	    call_id       TEXT NOT NULL DEFAULT '',
//	    agent_id      TEXT NOT NULL DEFAULT '',
//	    message       TEXT NOT NULL DEFAULT '',
//	    created_at    TIMESTAMPTZ NOT NULL
//	);
type PostgresRepo struct {
	db *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo {
	return &PostgresRepo{db: db}
}

func (r *PostgresRepo) Append(ctx context.Context, e Event) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO audit_events
			(id, user_id, org_id, type, actor_user_id, call_id, agent_id, message, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		e.ID, e.Scope.UserID, e.Scope.OrgID, string(e.Type),
		e.ActorUserID, e.CallID, e.AgentID, e.Message, e.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert audit event: %w", err)
	}
	return nil
}
