package routing

import (
	"context"
	"sync"
	"time"

	"voice-routing/internal/calendar"
)

// slotTable is an AvailabilityChecker backed by per-calendar instants.
type slotTable struct {
	mu      sync.Mutex
	slots   map[string][]time.Time
	queried []string
	days    []calendar.Day
}

func newSlotTable() *slotTable { return &slotTable{slots: map[string][]time.Time{}} }

func (s *slotTable) free(calendarID string, at ...time.Time) *slotTable {
	s.slots[calendarID] = append(s.slots[calendarID], at...)
	return s
}

func (s *slotTable) FreeSlots(ctx context.Context, calendarID string, day calendar.Day) calendar.SlotSet {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.queried = append(s.queried, calendarID)
	s.days = append(s.days, day)
	return calendar.NewSlotSet(s.slots[calendarID]...)
}

// distanceTable counts lookups; missing zip codes are unknown.
type distanceTable struct {
	mu     sync.Mutex
	meters map[string]int
	calls  []string
}

func (d *distanceTable) Distance(ctx context.Context, origin, destination string) (int, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls = append(d.calls, destination)
	m, ok := d.meters[destination]
	return m, ok
}

func (d *distanceTable) lookups() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.calls...)
}

type exclusionCounter struct {
	mu      sync.Mutex
	reasons map[string]int
}

func (e *exclusionCounter) CandidateExcluded(reason string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.reasons == nil {
		e.reasons = map[string]int{}
	}
	e.reasons[reason]++
}

func mustTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		panic(err)
	}
	return t
}
