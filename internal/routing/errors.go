package routing

import (
	"errors"
	"fmt"

	"voice-routing/internal/calendar"
)

var (
	ErrInvalidInput      = errors.New("routing: invalid input")
	ErrMissingPhone      = fmt.Errorf("%w: no phone number for call direction", ErrInvalidInput)
	ErrMissingArgs       = fmt.Errorf("%w: time and location required", ErrInvalidInput)
	ErrInvalidTime       = fmt.Errorf("%w: time must be ISO-8601 with offset", ErrInvalidInput)
	ErrMissingWorkspace  = fmt.Errorf("%w: user_id and workspace_id required", ErrInvalidInput)
	ErrWorkspaceNotFound = errors.New("routing: workspace not found")
	ErrNoRoutingAgents   = errors.New("routing: no routing agents configured")
	ErrNoAgentAvailable  = errors.New("routing: no agent available")
	ErrDuplicateDelivery = errors.New("routing: call already being routed")

	// ErrBookingFailed is returned after a contact was resolved; the contact is not rolled back.
	ErrBookingFailed = calendar.ErrBookingFailed
)

// State is a routing workflow state.
type State string

const (
	StateReceivedRequest  State = "received_request"
	StateValidatingInput  State = "validating_input"
	StateSelectingAgent   State = "selecting_agent"
	StateResolvingContact State = "resolving_contact"
	StateBooking          State = "booking"
	StateSucceeded        State = "succeeded"
	StateFailed           State = "failed"
)

// Failure is a terminal workflow failure and the state it happened in.
type Failure struct {
	State State
	Err   error
}

func (f *Failure) Error() string {
	return fmt.Sprintf("routing failed in %s: %v", f.State, f.Err)
}

func (f *Failure) Unwrap() error { return f.Err }

func fail(state State, err error) *Failure {
	return &Failure{State: state, Err: err}
}

// FailedState returns the state a workflow error happened in, or "" if err is not a *Failure.
func FailedState(err error) State {
	var f *Failure
	if errors.As(err, &f) {
		return f.State
	}
	return ""
}
