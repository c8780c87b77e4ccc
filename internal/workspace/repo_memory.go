package workspace

import (
	"context"
	"sync"
)

// MemoryStore is an in-memory workspace store for tests and local development.
type MemoryStore struct {
	mu         sync.RWMutex
	workspaces map[string]Workspace // key: user_id|workspace_id
}

func NewMemoryStore(ws ...Workspace) *MemoryStore {
	s := &MemoryStore{workspaces: map[string]Workspace{}}
	for _, w := range ws {
		s.Put(w)
	}
	return s
}

func (s *MemoryStore) Put(w Workspace) {
	s.mu.Lock()
	defer s.mu.Unlock()
	w.RoutingAgents = append([]RoutingAgent(nil), w.RoutingAgents...)
	s.workspaces[w.UserID+"|"+w.WorkspaceID] = w
}

func (s *MemoryStore) GetWorkspace(ctx context.Context, userID, workspaceID string) (Workspace, error) {
	if userID == "" || workspaceID == "" {
		return Workspace{}, ErrInvalidArgument
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	w, ok := s.workspaces[userID+"|"+workspaceID]
	if !ok {
		return Workspace{}, ErrNotFound
	}
	w.RoutingAgents = append([]RoutingAgent(nil), w.RoutingAgents...)
	return w, nil
}

func (s *MemoryStore) ListRoutingAgents(ctx context.Context, userID, workspaceID string) ([]RoutingAgent, error) {
	w, err := s.GetWorkspace(ctx, userID, workspaceID)
	if err != nil {
		return nil, err
	}
	return w.RoutingAgents, nil
}

func (s *MemoryStore) ReplaceRoutingAgents(ctx context.Context, userID, workspaceID string, agents []RoutingAgent) error {
	if userID == "" || workspaceID == "" {
		return ErrInvalidArgument
	}
	if err := ValidateAgents(agents); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	k := userID + "|" + workspaceID
	w, ok := s.workspaces[k]
	if !ok {
		return ErrNotFound
	}
	w.RoutingAgents = append([]RoutingAgent(nil), agents...)
	s.workspaces[k] = w
	return nil
}
