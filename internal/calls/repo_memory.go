package calls

import (
	"context"
	"sync"
)

// MemoryRepo is an in-memory Repository for tests.
type MemoryRepo struct {
	mu     sync.Mutex
	agents map[string]Owner
	calls  map[string]Call // key: user|workspace|call
}

func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{agents: map[string]Owner{}, calls: map[string]Call{}}
}

// RegisterAgent maps a voice agent id to its owning workspace.
func (r *MemoryRepo) RegisterAgent(agentID string, o Owner) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.agents[agentID] = o
}

func (r *MemoryRepo) ResolveAgentOwner(ctx context.Context, agentID string) (Owner, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.agents[agentID]
	if !ok {
		return Owner{}, ErrAgentNotFound
	}
	return o, nil
}

func (r *MemoryRepo) Upsert(ctx context.Context, c Call) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	k := c.UserID + "|" + c.WorkspaceID + "|" + c.CallID
	if prev, ok := r.calls[k]; ok {
		c.CreatedAt = prev.CreatedAt
	}
	r.calls[k] = c
	return nil
}

func (r *MemoryRepo) Get(userID, workspaceID, callID string) (Call, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.calls[userID+"|"+workspaceID+"|"+callID]
	return c, ok
}

func (r *MemoryRepo) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.calls)
}
