package routing

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"voice-routing/internal/calendar"
	"voice-routing/internal/distance"
	"voice-routing/internal/workspace"
	"voice-routing/pkg/logger"
)

// DefaultBuffer is the travel lead time that must also be free before the requested slot.
const DefaultBuffer = 30 * time.Minute

// AvailabilityChecker returns a calendar's free instants for one day.
// Failures come back as an empty set.
type AvailabilityChecker interface {
	FreeSlots(ctx context.Context, calendarID string, day calendar.Day) calendar.SlotSet
}

// Candidate is an eligible agent with a known travel distance.
type Candidate struct {
	Agent    workspace.RoutingAgent
	Distance int // meters
}

// Exclusion reasons, also used as metric labels.
const (
	ExcludedUnavailable     = "unavailable"
	ExcludedDistanceUnknown = "distance_unknown"
)

// ExclusionRecorder is told why an agent dropped out. It may be nil.
type ExclusionRecorder interface {
	CandidateExcluded(reason string)
}

// Selector picks the closest agent that is free at the requested instant and
// at requested-Buffer on the same day's slot set.
//
// Availability filters first; distance is only queried for agents that pass it.
// Ties on distance go to the agent listed first in the workspace configuration.
type Selector struct {
	Availability AvailabilityChecker
	Distances    distance.Estimator
	Buffer       time.Duration

	Exclusions ExclusionRecorder
}

func NewSelector(avail AvailabilityChecker, dist distance.Estimator) *Selector {
	return &Selector{Availability: avail, Distances: dist, Buffer: DefaultBuffer}
}

type agentResult struct {
	eligible bool
	distance int
	known    bool
}

// Select returns ErrNoAgentAvailable when no agent is both free and has a known distance.
//
// The slot query uses the requested instant's own calendar date. A buffer instant
// that falls on the previous date is never in that set, so the agent is ineligible.
func (s *Selector) Select(ctx context.Context, requested time.Time, location string, agents []workspace.RoutingAgent) (Candidate, error) {
	if len(agents) == 0 {
		return Candidate{}, ErrNoAgentAvailable
	}
	buffer := s.Buffer
	if buffer <= 0 {
		buffer = DefaultBuffer
	}
	day := calendar.DayOf(requested)
	travel := requested.Add(-buffer)

	results := make([]agentResult, len(agents))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(len(agents))
	for i, agent := range agents {
		g.Go(func() error {
			results[i] = s.evaluate(gctx, agent, day, requested, travel, location)
			return nil
		})
	}
	// Workers never return errors; absorbed failures show up as ineligible results.
	_ = g.Wait()

	best := -1
	for i, r := range results {
		if !r.eligible {
			s.exclude(ExcludedUnavailable)
			continue
		}
		if !r.known {
			s.exclude(ExcludedDistanceUnknown)
			continue
		}
		if best < 0 || r.distance < results[best].distance {
			best = i
		}
	}
	if best < 0 {
		return Candidate{}, ErrNoAgentAvailable
	}
	return Candidate{Agent: agents[best], Distance: results[best].distance}, nil
}

func (s *Selector) evaluate(ctx context.Context, agent workspace.RoutingAgent, day calendar.Day, requested, travel time.Time, location string) agentResult {
	log := logger.From(ctx).With("calendar_id", agent.CalendarID)

	slots := s.Availability.FreeSlots(ctx, agent.CalendarID, day)
	if !slots.Contains(requested) || !slots.Contains(travel) {
		log.Debug("routing: agent not free",
			"requested_free", slots.Contains(requested),
			"buffer_free", slots.Contains(travel),
		)
		return agentResult{}
	}

	meters, ok := s.Distances.Distance(ctx, location, agent.ZipCode)
	if !ok {
		log.Warn("routing: distance unknown, excluding agent", "zipcode", agent.ZipCode)
		return agentResult{eligible: true}
	}
	return agentResult{eligible: true, known: true, distance: meters}
}

func (s *Selector) exclude(reason string) {
	if s.Exclusions != nil {
		s.Exclusions.CandidateExcluded(reason)
	}
}
