package calls

import (
	"encoding/json"
	"time"
)

// Call is one voice-agent call stored in a workspace's call history.
//
// Tenancy: (UserID, WorkspaceID) is always set; it is resolved from the voice agent
// that handled the call, never taken from the webhook body.
type Call struct {
	CallID      string `json:"call_id" db:"call_id"`
	UserID      string `json:"user_id" db:"user_id"`
	WorkspaceID string `json:"workspace_id" db:"workspace_id"`
	AgentID     string `json:"agent_id" db:"agent_id"`

	Direction string     `json:"direction,omitempty" db:"direction"`
	From      string     `json:"from_number,omitempty" db:"from_number"`
	To        string     `json:"to_number,omitempty" db:"to_number"`
	Status    CallStatus `json:"call_status,omitempty" db:"call_status"`

	StartedAt time.Time `json:"start_timestamp" db:"started_at"`
	EndedAt   time.Time `json:"end_timestamp,omitempty" db:"ended_at"`

	// CombinedCost is the provider's total cost in cents, 0 when not reported.
	CombinedCost float64 `json:"combined_cost,omitempty" db:"combined_cost"`

	// Raw is the full call object from the webhook.
	Raw json.RawMessage `json:"raw,omitempty" db:"raw"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// Duration is zero when the end time is unknown.
func (c Call) Duration() time.Duration {
	if c.EndedAt.IsZero() || c.EndedAt.Before(c.StartedAt) {
		return 0
	}
	return c.EndedAt.Sub(c.StartedAt)
}

type CallStatus string

const (
	CallStatusRegistered CallStatus = "registered"
	CallStatusOngoing    CallStatus = "ongoing"
	CallStatusEnded      CallStatus = "ended"
	CallStatusError      CallStatus = "error"
)

// Owner is the tenant a voice agent belongs to.
type Owner struct {
	UserID      string
	WorkspaceID string
}
