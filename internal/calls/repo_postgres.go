package calls

import (
	"context"
	"database/sql"
	"errors"
)

// PostgresRepo stores call history.
//
//	voice_agents (agent_id TEXT, user_id TEXT, workspace_id TEXT, created_at TIMESTAMPTZ)
//	call_history (
//	  user_id TEXT, workspace_id TEXT, call_id TEXT, agent_id TEXT,
//	  direction TEXT, from_number TEXT, to_number TEXT, call_status TEXT,
//	  started_at TIMESTAMPTZ, ended_at TIMESTAMPTZ, combined_cost DOUBLE PRECISION,
//	  raw JSONB, created_at TIMESTAMPTZ, updated_at TIMESTAMPTZ,
//	  PRIMARY KEY (user_id, workspace_id, call_id)
//	)
type PostgresRepo struct {
	db *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo { return &PostgresRepo{db: db} }

func (r *PostgresRepo) ResolveAgentOwner(ctx context.Context, agentID string) (Owner, error) {
	const q = `
SELECT user_id, workspace_id
FROM voice_agents
WHERE agent_id = $1
ORDER BY created_at DESC
LIMIT 1
`
	var o Owner
	if err := r.db.QueryRowContext(ctx, q, agentID).Scan(&o.UserID, &o.WorkspaceID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Owner{}, ErrAgentNotFound
		}
		return Owner{}, err
	}
	return o, nil
}

func (r *PostgresRepo) Upsert(ctx context.Context, c Call) error {
	const q = `
INSERT INTO call_history (
  user_id, workspace_id, call_id, agent_id, direction, from_number, to_number,
  call_status, started_at, ended_at, combined_cost, raw, created_at, updated_at
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12::jsonb,$13,$14)
ON CONFLICT (user_id, workspace_id, call_id) DO UPDATE SET
  agent_id = EXCLUDED.agent_id,
  direction = EXCLUDED.direction,
  from_number = EXCLUDED.from_number,
  to_number = EXCLUDED.to_number,
  call_status = EXCLUDED.call_status,
  started_at = EXCLUDED.started_at,
  ended_at = EXCLUDED.ended_at,
  combined_cost = EXCLUDED.combined_cost,
  raw = EXCLUDED.raw,
  updated_at = EXCLUDED.updated_at
`
	var ended sql.NullTime
	if !c.EndedAt.IsZero() {
		ended = sql.NullTime{Time: c.EndedAt, Valid: true}
	}
	raw := c.Raw
	if len(raw) == 0 {
		raw = []byte("{}")
	}
	_, err := r.db.ExecContext(ctx, q,
		c.UserID,
		c.WorkspaceID,
		c.CallID,
		c.AgentID,
		c.Direction,
		c.From,
		c.To,
		string(c.Status),
		c.StartedAt,
		ended,
		c.CombinedCost,
		string(raw),
		c.CreatedAt,
		c.UpdatedAt,
	)
	return err
}
