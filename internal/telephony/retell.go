package telephony

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"voice-routing/internal/calls"
	"voice-routing/internal/routing"
)

// RetellCall is the "call" object the voice platform sends with every webhook.
type RetellCall struct {
	CallID     string `json:"call_id"`
	AgentID    string `json:"agent_id"`
	Direction  string `json:"direction"`
	FromNumber string `json:"from_number"`
	ToNumber   string `json:"to_number"`
	CallStatus string `json:"call_status"`

	// Timestamps are epoch milliseconds.
	StartTimestamp int64 `json:"start_timestamp"`
	EndTimestamp   int64 `json:"end_timestamp"`

	CallCost *struct {
		CombinedCost float64 `json:"combined_cost"`
	} `json:"call_cost,omitempty"`
}

// RoutingArgs are the function-call arguments the voice agent collected.
type RoutingArgs struct {
	Time     string `json:"time"`
	Location string `json:"location"`
	// ZipCode is the older name for Location.
	ZipCode string `json:"zipcode"`
}

// RoutingWebhook is the body of the appointment-routing function call.
type RoutingWebhook struct {
	Call RetellCall  `json:"call"`
	Args RoutingArgs `json:"args"`
}

// ToInput builds the workflow input for the tenant in the route path.
func (w RoutingWebhook) ToInput(userID, workspaceID, clientIP string) routing.Input {
	loc := w.Args.Location
	if loc == "" {
		loc = w.Args.ZipCode
	}
	return routing.Input{
		UserID:      userID,
		WorkspaceID: workspaceID,
		CallID:      w.Call.CallID,
		Direction:   w.Call.Direction,
		FromNumber:  w.Call.FromNumber,
		ToNumber:    w.Call.ToNumber,
		Time:        w.Args.Time,
		Location:    loc,
		ClientIP:    clientIP,
	}
}

const EventCallAnalyzed = "call_analyzed"

var ErrMalformedPayload = errors.New("telephony: malformed payload")

// CallEvent is a call lifecycle webhook. Call keeps the raw object for storage.
type CallEvent struct {
	Event string          `json:"event"`
	Call  json.RawMessage `json:"call"`
}

// ParseCallEvent decodes the envelope and the call object.
func ParseCallEvent(body []byte) (CallEvent, RetellCall, error) {
	var ev CallEvent
	if err := json.Unmarshal(body, &ev); err != nil {
		return CallEvent{}, RetellCall{}, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	var rc RetellCall
	if len(ev.Call) > 0 && string(ev.Call) != "null" {
		if err := json.Unmarshal(ev.Call, &rc); err != nil {
			return CallEvent{}, RetellCall{}, fmt.Errorf("%w: call: %v", ErrMalformedPayload, err)
		}
	}
	return ev, rc, nil
}

// ToCall maps the platform call to a call history record. Owner fields are left empty.
func (rc RetellCall) ToCall(raw json.RawMessage) calls.Call {
	c := calls.Call{
		CallID:    rc.CallID,
		AgentID:   rc.AgentID,
		Direction: rc.Direction,
		From:      rc.FromNumber,
		To:        rc.ToNumber,
		Status:    calls.CallStatus(rc.CallStatus),
		Raw:       raw,
	}
	if rc.StartTimestamp > 0 {
		c.StartedAt = time.UnixMilli(rc.StartTimestamp).UTC()
	}
	if rc.EndTimestamp > 0 {
		c.EndedAt = time.UnixMilli(rc.EndTimestamp).UTC()
	}
	if rc.CallCost != nil {
		c.CombinedCost = rc.CallCost.CombinedCost
	}
	return c
}
