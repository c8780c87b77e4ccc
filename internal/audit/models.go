package audit

import "time"

// Event is an immutable, append-only audit record.
//
// Invariants:
// - Events are never updated or deleted.
// - workspace_id is required for tenancy isolation.
// - Audit is best-effort; routing never fails because an event could not be written.
//
// Postgres table: audit_events, INSERT-only.

type Event struct {
	ID          string `json:"id" db:"id"`
	WorkspaceID string `json:"workspace_id" db:"workspace_id"`
	UserID      string `json:"user_id,omitempty" db:"user_id"`

	Type EventType `json:"type" db:"type"`

	// Actor fields are set for admin actions only.
	ActorUserID string `json:"actor_user_id,omitempty" db:"actor_user_id"`
	ActorRole   string `json:"actor_role,omitempty" db:"actor_role"`

	// IPAddress is the resolved client IP of the webhook or admin request.
	IPAddress string `json:"ip_address,omitempty" db:"ip_address"`

	CallID        string `json:"call_id,omitempty" db:"call_id"`
	CalendarID    string `json:"calendar_id,omitempty" db:"calendar_id"`
	ContactID     string `json:"contact_id,omitempty" db:"contact_id"`
	AppointmentID string `json:"appointment_id,omitempty" db:"appointment_id"`

	// Stage is the workflow state a failure happened in.
	Stage string `json:"stage,omitempty" db:"stage"`

	Message  string `json:"message,omitempty" db:"message"`
	Metadata string `json:"metadata,omitempty" db:"metadata"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

type EventType string

const (
	EventTypeAdminAction    EventType = "admin_action"
	EventTypeRoutingBooked  EventType = "routing_booked"
	EventTypeRoutingFailed  EventType = "routing_failed"
	EventTypeContactCreated EventType = "contact_created"
)
