package routing

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"voice-routing/internal/calendar"
	"voice-routing/internal/workspace"
	"voice-routing/pkg/logger"
)

// Input is one routing webhook invocation. It is not modified by the workflow.
type Input struct {
	UserID      string
	WorkspaceID string

	CallID     string
	Direction  string // inbound | outbound
	FromNumber string
	ToNumber   string

	// Time is the requested start, ISO-8601 with offset.
	Time     string
	Location string

	ClientIP string
}

const (
	DirectionInbound  = "inbound"
	DirectionOutbound = "outbound"
)

// PhoneNumber is the counterpart number for the call direction.
func (in Input) PhoneNumber() string {
	switch in.Direction {
	case DirectionInbound:
		return strings.TrimSpace(in.FromNumber)
	case DirectionOutbound:
		return strings.TrimSpace(in.ToNumber)
	default:
		return ""
	}
}

// Result is a successful routing.
type Result struct {
	Agent          workspace.RoutingAgent
	Distance       int
	PhoneNumber    string
	LocationID     string
	ContactID      string
	ContactCreated bool
	Appointment    calendar.Appointment
}

type ContactResolver interface {
	Resolve(ctx context.Context, phone, locationID string) (id string, created bool, err error)
}

type AppointmentBooker interface {
	Book(ctx context.Context, calendarID, locationID string, start time.Time, contactID string) (calendar.Appointment, error)
}

type AgentSelector interface {
	Select(ctx context.Context, requested time.Time, location string, agents []workspace.RoutingAgent) (Candidate, error)
}

// CallGuard prevents two deliveries of the same call from routing concurrently.
// Acquire returns ErrDuplicateDelivery when another run holds the call.
type CallGuard interface {
	Acquire(ctx context.Context, callID string) (release func(), err error)
}

// Outcome is reported once per run after it reaches a terminal state.
type Outcome struct {
	Input  Input
	Result Result
	// Err is nil on success, otherwise a *Failure.
	Err error
}

type OutcomeRecorder interface {
	RecordOutcome(ctx context.Context, o Outcome)
}

type OutcomeCounter interface {
	RoutingOutcome(result string)
}

// Workflow sequences selection, contact resolution and booking.
//
// Order: validate, load agents, select, resolve contact, book. No contact is
// created for a call that cannot be routed. Nothing is retried.
type Workflow struct {
	Workspaces workspace.Store
	Selector   AgentSelector
	Contacts   ContactResolver
	Booker     AppointmentBooker

	// Optional.
	Guard    CallGuard
	Recorder OutcomeRecorder
	Counter  OutcomeCounter
}

func (w *Workflow) Handle(ctx context.Context, in Input) (res Result, err error) {
	log := logger.From(ctx).With(
		"user_id", in.UserID,
		"workspace_id", in.WorkspaceID,
		"call_id", in.CallID,
	)
	ctx = logger.With(ctx, log)

	defer func() {
		w.finish(ctx, in, res, err)
	}()

	// ReceivedRequest -> ValidatingInput
	phone, requested, err := validate(in)
	if err != nil {
		return Result{}, fail(StateValidatingInput, err)
	}

	if w.Guard != nil && in.CallID != "" {
		release, err := w.Guard.Acquire(ctx, in.CallID)
		if err != nil {
			return Result{}, fail(StateValidatingInput, err)
		}
		defer release()
	}

	ws, err := w.Workspaces.GetWorkspace(ctx, in.UserID, in.WorkspaceID)
	if err != nil {
		if errors.Is(err, workspace.ErrNotFound) {
			return Result{}, fail(StateValidatingInput, ErrWorkspaceNotFound)
		}
		return Result{}, fail(StateValidatingInput, fmt.Errorf("routing: load workspace: %w", err))
	}
	if len(ws.RoutingAgents) == 0 {
		return Result{}, fail(StateValidatingInput, ErrNoRoutingAgents)
	}

	// SelectingAgent
	cand, err := w.Selector.Select(ctx, requested, in.Location, ws.RoutingAgents)
	if err != nil {
		return Result{}, fail(StateSelectingAgent, err)
	}
	log.Info("routing: agent selected", "calendar_id", cand.Agent.CalendarID, "distance_m", cand.Distance)

	res = Result{
		Agent:       cand.Agent,
		Distance:    cand.Distance,
		PhoneNumber: phone,
		LocationID:  ws.LocationID,
	}

	// ResolvingContact
	contactID, created, err := w.Contacts.Resolve(ctx, phone, ws.LocationID)
	if err != nil {
		return res, fail(StateResolvingContact, err)
	}
	res.ContactID, res.ContactCreated = contactID, created

	// Booking
	appt, err := w.Booker.Book(ctx, cand.Agent.CalendarID, ws.LocationID, requested, contactID)
	if err != nil {
		log.Error("routing: booking failed after contact resolution",
			"contact_id", contactID,
			"contact_created", created,
			"calendar_id", cand.Agent.CalendarID,
			"err", err,
		)
		if !errors.Is(err, ErrBookingFailed) {
			err = fmt.Errorf("%w: %v", ErrBookingFailed, err)
		}
		return res, fail(StateBooking, err)
	}
	res.Appointment = appt
	return res, nil
}

func (w *Workflow) finish(ctx context.Context, in Input, res Result, err error) {
	log := logger.From(ctx)
	label := outcomeLabel(err)
	if err != nil {
		log.Warn("routing: failed", "state", string(FailedState(err)), "result", label, "err", err)
	} else {
		log.Info("routing: booked", "appointment_id", res.Appointment.ID, "contact_id", res.ContactID)
	}
	if w.Counter != nil {
		w.Counter.RoutingOutcome(label)
	}
	if w.Recorder != nil {
		w.Recorder.RecordOutcome(ctx, Outcome{Input: in, Result: res, Err: err})
	}
}

func validate(in Input) (phone string, requested time.Time, err error) {
	if in.UserID == "" || in.WorkspaceID == "" {
		return "", time.Time{}, ErrMissingWorkspace
	}
	phone = in.PhoneNumber()
	if phone == "" {
		return "", time.Time{}, ErrMissingPhone
	}
	if strings.TrimSpace(in.Time) == "" || strings.TrimSpace(in.Location) == "" {
		return "", time.Time{}, ErrMissingArgs
	}
	requested, err = time.Parse(time.RFC3339Nano, strings.TrimSpace(in.Time))
	if err != nil {
		return "", time.Time{}, ErrInvalidTime
	}
	return phone, requested, nil
}

func outcomeLabel(err error) string {
	switch {
	case err == nil:
		return "booked"
	case errors.Is(err, ErrInvalidInput):
		return "invalid_input"
	case errors.Is(err, ErrDuplicateDelivery):
		return "duplicate"
	case errors.Is(err, ErrWorkspaceNotFound):
		return "workspace_not_found"
	case errors.Is(err, ErrNoRoutingAgents):
		return "no_routing_agents"
	case errors.Is(err, ErrNoAgentAvailable):
		return "no_agent_available"
	case errors.Is(err, ErrBookingFailed):
		return "booking_failed"
	default:
		return "error"
	}
}
