package calls

import (
	"context"
	"errors"
	"fmt"
	"time"
)

var (
	ErrInvalidCall   = errors.New("calls: invalid call")
	ErrAgentNotFound = errors.New("calls: voice agent not found")
)

// Repository stores call history.
type Repository interface {
	// ResolveAgentOwner returns the workspace of the most recently created agent
	// with this id, or ErrAgentNotFound.
	ResolveAgentOwner(ctx context.Context, agentID string) (Owner, error)
	// Upsert writes the call keyed by (user_id, workspace_id, call_id). Redelivery overwrites.
	Upsert(ctx context.Context, c Call) error
}

type Service struct {
	repo  Repository
	clock func() time.Time
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo, clock: time.Now}
}

// RecordAnalyzed stores an analyzed call under the workspace owning its agent.
// c.UserID and c.WorkspaceID are ignored and filled from the agent.
func (s *Service) RecordAnalyzed(ctx context.Context, c Call) (Call, error) {
	if c.AgentID == "" || c.CallID == "" || c.StartedAt.IsZero() {
		return Call{}, fmt.Errorf("%w: agent_id, call_id and start_timestamp required", ErrInvalidCall)
	}

	owner, err := s.repo.ResolveAgentOwner(ctx, c.AgentID)
	if err != nil {
		return Call{}, err
	}
	c.UserID, c.WorkspaceID = owner.UserID, owner.WorkspaceID

	now := s.clock().UTC()
	if c.CreatedAt.IsZero() {
		c.CreatedAt = now
	}
	c.UpdatedAt = now

	if err := s.repo.Upsert(ctx, c); err != nil {
		return Call{}, fmt.Errorf("calls: store %s: %w", c.CallID, err)
	}
	return c, nil
}
