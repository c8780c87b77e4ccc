package routing

import (
	"context"
	"encoding/json"

	"voice-routing/internal/audit"
	"voice-routing/pkg/logger"
)

// AuditAdapter writes routing outcomes to the shared audit.Service.
// Audit failures are logged and never surface to the caller.
type AuditAdapter struct {
	Audit *audit.Service
}

func (a AuditAdapter) RecordOutcome(ctx context.Context, o Outcome) {
	if a.Audit == nil || o.Input.WorkspaceID == "" {
		return
	}
	in := o.Input

	var events []audit.Event
	if o.Result.ContactCreated {
		events = append(events, audit.Event{
			WorkspaceID: in.WorkspaceID,
			UserID:      in.UserID,
			Type:        audit.EventTypeContactCreated,
			IPAddress:   in.ClientIP,
			CallID:      in.CallID,
			ContactID:   o.Result.ContactID,
			Message:     "contact created for routed call",
		})
	}

	if o.Err == nil {
		meta, _ := json.Marshal(map[string]any{
			"distance_m": o.Result.Distance,
			"zipcode":    o.Result.Agent.ZipCode,
			"start_time": o.Result.Appointment.StartTime,
		})
		events = append(events, audit.Event{
			WorkspaceID:   in.WorkspaceID,
			UserID:        in.UserID,
			Type:          audit.EventTypeRoutingBooked,
			IPAddress:     in.ClientIP,
			CallID:        in.CallID,
			CalendarID:    o.Result.Agent.CalendarID,
			ContactID:     o.Result.ContactID,
			AppointmentID: o.Result.Appointment.ID,
			Message:       "appointment booked",
			Metadata:      string(meta),
		})
	} else {
		events = append(events, audit.Event{
			WorkspaceID: in.WorkspaceID,
			UserID:      in.UserID,
			Type:        audit.EventTypeRoutingFailed,
			IPAddress:   in.ClientIP,
			CallID:      in.CallID,
			CalendarID:  o.Result.Agent.CalendarID,
			ContactID:   o.Result.ContactID,
			Stage:       string(FailedState(o.Err)),
			Message:     o.Err.Error(),
		})
	}

	for _, e := range events {
		if err := a.Audit.Append(ctx, e); err != nil {
			logger.From(ctx).Warn("routing: audit append failed", "type", string(e.Type), "err", err)
		}
	}
}
