package telephony

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"voice-routing/internal/calendar"
	"voice-routing/internal/calls"
	"voice-routing/internal/routing"
	"voice-routing/internal/workspace"
)

type stubWorkflow struct {
	got routing.Input
	res routing.Result
	err error
}

func (s *stubWorkflow) Handle(ctx context.Context, in routing.Input) (routing.Result, error) {
	s.got = in
	return s.res, s.err
}

func newRoutingRouter(h RoutingWebhookHandler) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.POST("/webhook/routing/:user_id/:workspace_id", h.Handle)
	return r
}

func postJSON(r http.Handler, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func TestRoutingWebhook_Success(t *testing.T) {
	wf := &stubWorkflow{res: routing.Result{
		Agent:       workspace.RoutingAgent{CalendarID: "cal-2", Address: "2 Side St"},
		Distance:    2000,
		PhoneNumber: "+15551234567",
		Appointment: calendar.Appointment{ID: "appt-1", Raw: json.RawMessage(`{"id":"appt-1","status":"booked"}`)},
	}}
	r := newRoutingRouter(RoutingWebhookHandler{Workflow: wf})

	rec := postJSON(r, "/webhook/routing/u1/w1", `{
		"call": {"call_id": "c1", "direction": "inbound", "from_number": "+15551234567", "to_number": "+15550000000"},
		"args": {"time": "2025-03-10T14:00:00+04:30", "zipcode": "10001"}
	}`)
	require.Equal(t, http.StatusOK, rec.Code)

	assert.Equal(t, routing.Input{
		UserID: "u1", WorkspaceID: "w1", CallID: "c1", Direction: "inbound",
		FromNumber: "+15551234567", ToNumber: "+15550000000",
		Time: "2025-03-10T14:00:00+04:30", Location: "10001", ClientIP: "192.0.2.1",
	}, wf.got)

	var body struct {
		Success     bool `json:"success"`
		Appointment struct {
			Agent struct {
				Address  string `json:"address"`
				Distance int    `json:"distance"`
			} `json:"agent"`
			PhoneNumberUsed    string          `json:"phoneNumberUsed"`
			AppointmentDetails json.RawMessage `json:"appointmentDetails"`
		} `json:"appointment"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.True(t, body.Success)
	assert.Equal(t, "2 Side St", body.Appointment.Agent.Address)
	assert.Equal(t, 2000, body.Appointment.Agent.Distance)
	assert.Equal(t, "+15551234567", body.Appointment.PhoneNumberUsed)
	assert.JSONEq(t, `{"id":"appt-1","status":"booked"}`, string(body.Appointment.AppointmentDetails))
}

func TestRoutingWebhook_LocationTakesPrecedenceOverZipcode(t *testing.T) {
	wf := &stubWorkflow{}
	r := newRoutingRouter(RoutingWebhookHandler{Workflow: wf})
	postJSON(r, "/webhook/routing/u1/w1", `{"call":{"direction":"outbound","to_number":"1"},"args":{"time":"t","location":"20002","zipcode":"10001"}}`)
	assert.Equal(t, "20002", wf.got.Location)
}

func TestRoutingWebhook_ErrorMapping(t *testing.T) {
	cases := []struct {
		err    error
		status int
		msg    string
	}{
		{&routing.Failure{State: routing.StateValidatingInput, Err: routing.ErrMissingPhone}, http.StatusBadRequest, "No valid phone number"},
		{&routing.Failure{State: routing.StateValidatingInput, Err: routing.ErrMissingArgs}, http.StatusBadRequest, "Missing required fields"},
		{&routing.Failure{State: routing.StateValidatingInput, Err: routing.ErrWorkspaceNotFound}, http.StatusNotFound, "User or workspace not found"},
		{&routing.Failure{State: routing.StateValidatingInput, Err: routing.ErrNoRoutingAgents}, http.StatusNotFound, "No routing agents found"},
		{&routing.Failure{State: routing.StateSelectingAgent, Err: routing.ErrNoAgentAvailable}, http.StatusNotFound, "No agents available"},
		{&routing.Failure{State: routing.StateValidatingInput, Err: routing.ErrDuplicateDelivery}, http.StatusConflict, "already being routed"},
		{&routing.Failure{State: routing.StateBooking, Err: fmt.Errorf("%w: 422", routing.ErrBookingFailed)}, http.StatusInternalServerError, "Failed to create appointment"},
		{&routing.Failure{State: routing.StateResolvingContact, Err: fmt.Errorf("crm down: secret-token")}, http.StatusInternalServerError, "Internal server error"},
	}
	for _, tc := range cases {
		r := newRoutingRouter(RoutingWebhookHandler{Workflow: &stubWorkflow{err: tc.err}})
		rec := postJSON(r, "/webhook/routing/u1/w1", `{"call":{},"args":{}}`)
		assert.Equal(t, tc.status, rec.Code, tc.err.Error())
		assert.Contains(t, rec.Body.String(), tc.msg)
		assert.Contains(t, rec.Body.String(), `"success":false`)
		assert.NotContains(t, rec.Body.String(), "secret-token")
	}
}

func TestRoutingWebhook_BadJSON(t *testing.T) {
	r := newRoutingRouter(RoutingWebhookHandler{Workflow: &stubWorkflow{}})
	rec := postJSON(r, "/webhook/routing/u1/w1", `{"call":`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

type countRecorder struct{ results []string }

func (c *countRecorder) CallRecorded(result string) { c.results = append(c.results, result) }

func newCallsRouter(h CallAnalyzedHandler) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.POST("/api/webhook", h.Handle)
	return r
}

func TestCallAnalyzed_StoresCall(t *testing.T) {
	repo := calls.NewMemoryRepo()
	repo.RegisterAgent("agent-1", calls.Owner{UserID: "u1", WorkspaceID: "w1"})
	counter := &countRecorder{}
	r := newCallsRouter(CallAnalyzedHandler{Calls: calls.NewService(repo), Counter: counter})

	rec := postJSON(r, "/api/webhook", `{
		"event": "call_analyzed",
		"call": {"call_id": "call-1", "agent_id": "agent-1", "call_status": "ended",
		         "start_timestamp": 1741597200000, "end_timestamp": 1741597290000,
		         "call_cost": {"combined_cost": 12.5}, "transcript": "hello"}
	}`)
	require.Equal(t, http.StatusOK, rec.Code)

	stored, ok := repo.Get("u1", "w1", "call-1")
	require.True(t, ok)
	assert.Equal(t, calls.CallStatusEnded, stored.Status)
	assert.Equal(t, 12.5, stored.CombinedCost)
	assert.Equal(t, 90*time.Second, stored.Duration())
	assert.Contains(t, string(stored.Raw), "transcript")
	assert.Equal(t, []string{"stored"}, counter.results)
}

func TestCallAnalyzed_Acknowledgements(t *testing.T) {
	repo := calls.NewMemoryRepo()
	r := newCallsRouter(CallAnalyzedHandler{Calls: calls.NewService(repo)})

	rec := postJSON(r, "/api/webhook", `{"event":"call_started","call":{"call_id":"x"}}`)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = postJSON(r, "/api/webhook", `{"event":"call_analyzed","call":{"call_id":"x","agent_id":"nobody","start_timestamp":1}}`)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = postJSON(r, "/api/webhook", `{"event":"call_analyzed","call":{"call_id":"x"}}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = postJSON(r, "/api/webhook", `not json`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	assert.Equal(t, 0, repo.Len())
}
