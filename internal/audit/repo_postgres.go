package audit

import (
	"context"
	"database/sql"
)

// PostgresRepo appends to audit_events.
//
//	audit_events (
//	  id TEXT PRIMARY KEY, workspace_id TEXT NOT NULL, user_id TEXT, type TEXT NOT NULL,
//	  actor_user_id TEXT, actor_role TEXT, ip_address TEXT, call_id TEXT, calendar_id TEXT,
//	  contact_id TEXT, appointment_id TEXT, stage TEXT, message TEXT, metadata JSONB,
//	  created_at TIMESTAMPTZ NOT NULL
//	)
type PostgresRepo struct {
	db *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo { return &PostgresRepo{db: db} }

func (r *PostgresRepo) Append(ctx context.Context, e Event) error {
	const q = `
INSERT INTO audit_events (
  id, workspace_id, user_id, type, actor_user_id, actor_role, ip_address,
  call_id, calendar_id, contact_id, appointment_id, stage, message, metadata, created_at
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14::jsonb,$15)
`
	_, err := r.db.ExecContext(ctx, q,
		e.ID,
		e.WorkspaceID,
		nullable(e.UserID),
		string(e.Type),
		nullable(e.ActorUserID),
		nullable(e.ActorRole),
		nullable(e.IPAddress),
		nullable(e.CallID),
		nullable(e.CalendarID),
		nullable(e.ContactID),
		nullable(e.AppointmentID),
		nullable(e.Stage),
		nullable(e.Message),
		nullable(e.Metadata),
		e.CreatedAt,
	)
	return err
}

func nullable(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
