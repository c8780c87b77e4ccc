package routing

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"voice-routing/internal/audit"
	"voice-routing/internal/calendar"
	"voice-routing/internal/contacts"
	"voice-routing/internal/workspace"
)

type recordingCreator struct {
	mu    sync.Mutex
	reqs  []calendar.AppointmentRequest
	err   error
	block chan struct{}
}

func (r *recordingCreator) CreateAppointment(ctx context.Context, req calendar.AppointmentRequest) (calendar.Appointment, error) {
	if r.block != nil {
		<-r.block
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.reqs = append(r.reqs, req)
	if r.err != nil {
		return calendar.Appointment{}, r.err
	}
	return calendar.Appointment{ID: "appt-1"}, nil
}

func (r *recordingCreator) requests() []calendar.AppointmentRequest {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]calendar.AppointmentRequest(nil), r.reqs...)
}

type outcomeCounter struct {
	mu     sync.Mutex
	counts map[string]int
}

func (o *outcomeCounter) RoutingOutcome(result string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.counts == nil {
		o.counts = map[string]int{}
	}
	o.counts[result]++
}

type harness struct {
	wf      *Workflow
	slots   *slotTable
	dist    *distanceTable
	dir     *contacts.MemoryDirectory
	creator *recordingCreator
	audit   *audit.MemoryRepo
	counter *outcomeCounter
}

func newHarness(agentList ...workspace.RoutingAgent) *harness {
	h := &harness{
		slots:   newSlotTable(),
		dist:    &distanceTable{meters: map[string]int{}},
		dir:     contacts.NewMemoryDirectory(),
		creator: &recordingCreator{},
		audit:   audit.NewMemoryRepo(),
		counter: &outcomeCounter{},
	}
	store := workspace.NewMemoryStore(workspace.Workspace{
		UserID: "u1", WorkspaceID: "w1", LocationID: "loc-1", RoutingAgents: agentList,
	})
	h.wf = &Workflow{
		Workspaces: store,
		Selector:   NewSelector(h.slots, h.dist),
		Contacts:   contacts.NewResolver(h.dir, time.Second),
		Booker:     calendar.NewBooker(h.creator, time.Second),
		Guard:      NewMemoryCallGuard(),
		Recorder:   AuditAdapter{Audit: audit.NewService(h.audit)},
		Counter:    h.counter,
	}
	return h
}

func inboundInput(at string) Input {
	return Input{
		UserID: "u1", WorkspaceID: "w1", CallID: "call-1",
		Direction: DirectionInbound, FromNumber: "5551234", ToNumber: "5550000",
		Time: at, Location: "10001",
	}
}

func TestWorkflow_ScenarioA_ClosestAgentBooked(t *testing.T) {
	h := newHarness(agents()...)
	h.slots.free("cal-1", at1400, at1330).free("cal-2", at1400, at1330)
	h.dist.meters["11111"] = 5000
	h.dist.meters["22222"] = 2000

	res, err := h.wf.Handle(context.Background(), inboundInput("2025-03-10T14:00:00Z"))
	require.NoError(t, err)
	assert.Equal(t, "a2", res.Agent.ID)
	assert.Equal(t, 2000, res.Distance)
	assert.Equal(t, "5551234", res.PhoneNumber)

	reqs := h.creator.requests()
	require.Len(t, reqs, 1)
	assert.Equal(t, "cal-2", reqs[0].CalendarID)
	assert.Equal(t, "loc-1", reqs[0].LocationID)
	assert.Equal(t, res.ContactID, reqs[0].ContactID)

	require.Len(t, h.audit.OfType(audit.EventTypeRoutingBooked), 1)
	assert.Equal(t, 1, h.counter.counts["booked"])
}

func TestWorkflow_ScenarioB_NoBufferNoSideEffects(t *testing.T) {
	h := newHarness(agents()[0])
	h.slots.free("cal-1", at1400)
	h.dist.meters["11111"] = 1

	_, err := h.wf.Handle(context.Background(), inboundInput("2025-03-10T14:00:00Z"))
	require.ErrorIs(t, err, ErrNoAgentAvailable)
	assert.Equal(t, StateSelectingAgent, FailedState(err))

	searches, creates := h.dir.Calls()
	assert.Zero(t, searches)
	assert.Zero(t, creates)
	assert.Empty(t, h.creator.requests())

	failed := h.audit.OfType(audit.EventTypeRoutingFailed)
	require.Len(t, failed, 1)
	assert.Equal(t, string(StateSelectingAgent), failed[0].Stage)
}

func TestWorkflow_ScenarioC_CreatesContactForUnknownPhone(t *testing.T) {
	h := newHarness(agents()[0])
	h.slots.free("cal-1", at1400, at1330)
	h.dist.meters["11111"] = 10

	res, err := h.wf.Handle(context.Background(), inboundInput("2025-03-10T14:00:00Z"))
	require.NoError(t, err)
	assert.True(t, res.ContactCreated)

	all := h.dir.Contacts()
	require.Len(t, all, 1)
	assert.Equal(t, "5551234", all[0].Phone)
	assert.Equal(t, "loc-1", all[0].LocationID)
	assert.Equal(t, all[0].ID, h.creator.requests()[0].ContactID)
	assert.Len(t, h.audit.OfType(audit.EventTypeContactCreated), 1)
}

func TestWorkflow_ScenarioD_DistanceFailureExcludesOnlyAgent(t *testing.T) {
	h := newHarness(agents()[0])
	h.slots.free("cal-1", at1400, at1330)

	_, err := h.wf.Handle(context.Background(), inboundInput("2025-03-10T14:00:00Z"))
	require.ErrorIs(t, err, ErrNoAgentAvailable)
	_, creates := h.dir.Calls()
	assert.Zero(t, creates)
}

func TestWorkflow_AppointmentIsUTCAndThirtyMinutes(t *testing.T) {
	requested := mustTime("2025-03-10T18:30:00+04:30")
	h := newHarness(agents()[0])
	h.slots.free("cal-1", requested, requested.Add(-30*time.Minute))
	h.dist.meters["11111"] = 10

	res, err := h.wf.Handle(context.Background(), inboundInput("2025-03-10T18:30:00+04:30"))
	require.NoError(t, err)

	req := h.creator.requests()[0]
	assert.Equal(t, time.UTC, req.StartTime.Location())
	assert.Equal(t, mustTime("2025-03-10T14:00:00Z"), req.StartTime)
	assert.Equal(t, 30*time.Minute, req.EndTime.Sub(req.StartTime))
	assert.Equal(t, 30*time.Minute, res.Appointment.EndTime.Sub(res.Appointment.StartTime))
}

func TestWorkflow_BookingFailureKeepsContact(t *testing.T) {
	h := newHarness(agents()[0])
	h.slots.free("cal-1", at1400, at1330)
	h.dist.meters["11111"] = 10
	h.creator.err = errors.New("slot taken")

	res, err := h.wf.Handle(context.Background(), inboundInput("2025-03-10T14:00:00Z"))
	require.ErrorIs(t, err, ErrBookingFailed)
	assert.Equal(t, StateBooking, FailedState(err))
	assert.NotEmpty(t, res.ContactID)
	assert.Len(t, h.dir.Contacts(), 1, "contact is not rolled back")
	assert.Len(t, h.creator.requests(), 1, "booking is attempted once")
	assert.Equal(t, 1, h.counter.counts["booking_failed"])
}

func TestWorkflow_SequentialCallsReuseContact(t *testing.T) {
	h := newHarness(agents()[0])
	h.slots.free("cal-1", at1400, at1330)
	h.dist.meters["11111"] = 10

	first, err := h.wf.Handle(context.Background(), inboundInput("2025-03-10T14:00:00Z"))
	require.NoError(t, err)
	second, err := h.wf.Handle(context.Background(), inboundInput("2025-03-10T14:00:00Z"))
	require.NoError(t, err)
	assert.Equal(t, first.ContactID, second.ContactID)
	assert.False(t, second.ContactCreated)
}

func TestWorkflow_OutboundUsesToNumber(t *testing.T) {
	h := newHarness(agents()[0])
	h.slots.free("cal-1", at1400, at1330)
	h.dist.meters["11111"] = 10

	in := inboundInput("2025-03-10T14:00:00Z")
	in.Direction = DirectionOutbound
	res, err := h.wf.Handle(context.Background(), in)
	require.NoError(t, err)
	assert.Equal(t, "5550000", res.PhoneNumber)
}

func TestWorkflow_ValidationAndLookupFailures(t *testing.T) {
	h := newHarness(agents()...)

	cases := []struct {
		name string
		in   func() Input
		want error
	}{
		{"unknown direction", func() Input { in := inboundInput("2025-03-10T14:00:00Z"); in.Direction = "sideways"; return in }, ErrMissingPhone},
		{"missing time", func() Input { return inboundInput("") }, ErrMissingArgs},
		{"missing location", func() Input { in := inboundInput("2025-03-10T14:00:00Z"); in.Location = ""; return in }, ErrMissingArgs},
		{"time without offset", func() Input { return inboundInput("2025-03-10T14:00:00") }, ErrInvalidTime},
		{"unknown workspace", func() Input { in := inboundInput("2025-03-10T14:00:00Z"); in.WorkspaceID = "nope"; return in }, ErrWorkspaceNotFound},
	}
	for _, tc := range cases {
		_, err := h.wf.Handle(context.Background(), tc.in())
		assert.ErrorIs(t, err, tc.want, tc.name)
		assert.Equal(t, StateValidatingInput, FailedState(err), tc.name)
	}
	searches, _ := h.dir.Calls()
	assert.Zero(t, searches)
	assert.Empty(t, h.slots.queried)
}

func TestWorkflow_EmptyAgentList(t *testing.T) {
	h := newHarness()
	_, err := h.wf.Handle(context.Background(), inboundInput("2025-03-10T14:00:00Z"))
	assert.ErrorIs(t, err, ErrNoRoutingAgents)
}

func TestWorkflow_ConcurrentDuplicateIsRejected(t *testing.T) {
	h := newHarness(agents()[0])
	h.slots.free("cal-1", at1400, at1330)
	h.dist.meters["11111"] = 10
	h.creator.block = make(chan struct{})

	firstDone := make(chan error, 1)
	go func() {
		_, err := h.wf.Handle(context.Background(), inboundInput("2025-03-10T14:00:00Z"))
		firstDone <- err
	}()

	// Wait until the first run holds the guard and is blocked in booking.
	require.Eventually(t, func() bool {
		searches, _ := h.dir.Calls()
		return searches == 1
	}, time.Second, 5*time.Millisecond)

	_, err := h.wf.Handle(context.Background(), inboundInput("2025-03-10T14:00:00Z"))
	assert.ErrorIs(t, err, ErrDuplicateDelivery)

	close(h.creator.block)
	require.NoError(t, <-firstDone)

	// Released: a later redelivery routes again.
	h.creator.block = nil
	_, err = h.wf.Handle(context.Background(), inboundInput("2025-03-10T14:00:00Z"))
	assert.NoError(t, err)
}
