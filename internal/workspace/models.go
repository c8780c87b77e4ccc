package workspace

import (
	"errors"
	"fmt"
	"strings"
)

// RoutingAgent is a field agent that can be matched to a caller.
// It is owned by the workspace configuration and read-only to routing.
type RoutingAgent struct {
	ID         string `json:"id,omitempty"`
	CalendarID string `json:"calendar_id"`
	// ZipCode is the agent's service-location identifier used for distance lookups.
	ZipCode string `json:"zipcode"`
	Address string `json:"address,omitempty"`
}

// Workspace is the tenant configuration routing needs.
//
// Tenancy: a workspace is addressed by (user_id, workspace_id).
type Workspace struct {
	UserID      string `json:"user_id"`
	WorkspaceID string `json:"workspace_id"`

	// LocationID is the CRM sub-account that owns contacts and calendars.
	LocationID string `json:"location_id"`

	RoutingAgents []RoutingAgent `json:"routing_agents"`
}

var (
	ErrNotFound        = errors.New("workspace: not found")
	ErrInvalidArgument = errors.New("workspace: invalid argument")
)

// ValidateAgents checks the fields routing depends on.
func ValidateAgents(agents []RoutingAgent) error {
	for i, a := range agents {
		if strings.TrimSpace(a.CalendarID) == "" {
			return fmt.Errorf("%w: routing_agents[%d].calendar_id required", ErrInvalidArgument, i)
		}
		if strings.TrimSpace(a.ZipCode) == "" {
			return fmt.Errorf("%w: routing_agents[%d].zipcode required", ErrInvalidArgument, i)
		}
	}
	return nil
}
