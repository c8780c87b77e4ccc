package workspace

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"

	"voice-routing/pkg/utils"
)

// Store is the workspace configuration store.
type Store interface {
	GetWorkspace(ctx context.Context, userID, workspaceID string) (Workspace, error)
}

// AgentAdmin is the write side used by the admin endpoints only.
type AgentAdmin interface {
	ListRoutingAgents(ctx context.Context, userID, workspaceID string) ([]RoutingAgent, error)
	ReplaceRoutingAgents(ctx context.Context, userID, workspaceID string, agents []RoutingAgent) error
}

// PostgresStore reads workspaces from Postgres.
//
// Assumed table:
//
//	workspaces (
//	  user_id        TEXT NOT NULL,
//	  workspace_id   TEXT NOT NULL,
//	  location_id    TEXT NOT NULL,
//	  routing_agents JSONB NOT NULL DEFAULT '[]',
//	  updated_at     TIMESTAMPTZ NOT NULL DEFAULT now(),
//	  PRIMARY KEY (user_id, workspace_id)
//	)
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) GetWorkspace(ctx context.Context, userID, workspaceID string) (Workspace, error) {
	if userID == "" || workspaceID == "" {
		return Workspace{}, ErrInvalidArgument
	}
	const q = `
SELECT user_id, workspace_id, location_id, routing_agents
FROM workspaces
WHERE user_id = $1 AND workspace_id = $2
`
	var (
		w   Workspace
		raw []byte
	)
	if err := s.db.QueryRowContext(ctx, q, userID, workspaceID).Scan(
		&w.UserID,
		&w.WorkspaceID,
		&w.LocationID,
		&raw,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Workspace{}, ErrNotFound
		}
		return Workspace{}, err
	}
	agents, err := decodeAgents(raw)
	if err != nil {
		return Workspace{}, err
	}
	w.RoutingAgents = agents
	return w, nil
}

func (s *PostgresStore) ListRoutingAgents(ctx context.Context, userID, workspaceID string) ([]RoutingAgent, error) {
	if userID == "" || workspaceID == "" {
		return nil, ErrInvalidArgument
	}
	const q = `
SELECT routing_agents
FROM workspaces
WHERE user_id = $1 AND workspace_id = $2
`
	var raw []byte
	if err := s.db.QueryRowContext(ctx, q, userID, workspaceID).Scan(&raw); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return decodeAgents(raw)
}

func (s *PostgresStore) ReplaceRoutingAgents(ctx context.Context, userID, workspaceID string, agents []RoutingAgent) error {
	if userID == "" || workspaceID == "" {
		return ErrInvalidArgument
	}
	if err := ValidateAgents(agents); err != nil {
		return err
	}
	if agents == nil {
		agents = []RoutingAgent{}
	}
	raw, err := json.Marshal(agents)
	if err != nil {
		return err
	}
	return utils.WithTx(ctx, s.db, func(ctx context.Context, tx *sql.Tx) error {
		// Row lock so concurrent admin writes to one workspace serialize.
		var locked string
		err := tx.QueryRowContext(ctx, `
SELECT workspace_id FROM workspaces
WHERE user_id = $1 AND workspace_id = $2
FOR UPDATE
`, userID, workspaceID).Scan(&locked)
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}

		_, err = tx.ExecContext(ctx, `
UPDATE workspaces
SET routing_agents = $3::jsonb, updated_at = now()
WHERE user_id = $1 AND workspace_id = $2
`, userID, workspaceID, string(raw))
		return err
	})
}

func decodeAgents(raw []byte) ([]RoutingAgent, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var agents []RoutingAgent
	if err := json.Unmarshal(raw, &agents); err != nil {
		return nil, err
	}
	return agents, nil
}
