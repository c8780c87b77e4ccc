package calendar

import (
	"context"
	"time"

	"voice-routing/pkg/logger"
)

// SlotSet is the set of free instants a calendar reported for one day.
// Membership is exact epoch equality; there is no tolerance window.
type SlotSet struct {
	instants map[int64]struct{}
}

func NewSlotSet(instants ...time.Time) SlotSet {
	s := SlotSet{instants: make(map[int64]struct{}, len(instants))}
	for _, t := range instants {
		s.instants[t.UnixNano()] = struct{}{}
	}
	return s
}

// ParseSlotSet builds a set from RFC 3339 slot strings.
// Unparseable entries are skipped and counted.
func ParseSlotSet(raw []string) (SlotSet, int) {
	s := SlotSet{instants: make(map[int64]struct{}, len(raw))}
	skipped := 0
	for _, v := range raw {
		t, err := time.Parse(time.RFC3339Nano, v)
		if err != nil {
			skipped++
			continue
		}
		s.instants[t.UnixNano()] = struct{}{}
	}
	return s, skipped
}

func (s SlotSet) Contains(t time.Time) bool {
	if s.instants == nil {
		return false
	}
	_, ok := s.instants[t.UnixNano()]
	return ok
}

func (s SlotSet) Len() int { return len(s.instants) }

// SlotSource is the calendar service's free-slot query.
//
// start and end are the UTC day window. dayKey is the YYYY-MM-DD key the service
// groups the returned slots under.
type SlotSource interface {
	FreeSlots(ctx context.Context, calendarID string, start, end time.Time, dayKey string) ([]string, error)
}

// Observer receives the outcome of every upstream call. It may be nil.
type Observer interface {
	ObserveUpstream(service, operation string, err error, elapsed time.Duration)
}

// Checker answers availability questions for one calendar and day.
type Checker struct {
	Source  SlotSource
	Timeout time.Duration

	Observer Observer
}

func NewChecker(src SlotSource, timeout time.Duration) *Checker {
	return &Checker{Source: src, Timeout: timeout}
}

// FreeSlots returns the calendar's free instants for the UTC window of day.
//
// It never fails: an upstream error or timeout is logged and reported as an empty
// set, which callers must read as "no availability".
func (c *Checker) FreeSlots(ctx context.Context, calendarID string, day Day) SlotSet {
	log := logger.From(ctx).With("calendar_id", calendarID, "day", day.Key())
	if c == nil || c.Source == nil {
		log.Warn("calendar: slot source not configured")
		return SlotSet{}
	}

	if c.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.Timeout)
		defer cancel()
	}

	start, end := day.Window()
	began := time.Now()
	raw, err := c.Source.FreeSlots(ctx, calendarID, start, end, day.Key())
	if c.Observer != nil {
		c.Observer.ObserveUpstream("calendar", "free_slots", err, time.Since(began))
	}
	if err != nil {
		log.Warn("calendar: free slots query failed", "err", err)
		return SlotSet{}
	}

	set, skipped := ParseSlotSet(raw)
	if skipped > 0 {
		log.Warn("calendar: skipped unparseable slots", "skipped", skipped)
	}
	return set
}
