package telephony

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"voice-routing/internal/calls"
	"voice-routing/internal/routing"
	"voice-routing/pkg/logger"
)

type RoutingService interface {
	Handle(ctx context.Context, in routing.Input) (routing.Result, error)
}

// RoutingWebhookHandler serves the appointment-routing function call.
// It only translates between JSON and the workflow.
type RoutingWebhookHandler struct {
	Workflow RoutingService
}

type agentView struct {
	Address  string `json:"address"`
	Distance int    `json:"distance"`
}

type appointmentView struct {
	Agent              agentView `json:"agent"`
	PhoneNumberUsed    string    `json:"phoneNumberUsed"`
	AppointmentDetails any       `json:"appointmentDetails"`
}

func (h RoutingWebhookHandler) Handle(c *gin.Context) {
	log := logger.FromGin(c)

	if h.Workflow == nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, errorBody("Internal server error"))
		return
	}

	var body RoutingWebhook
	if err := c.ShouldBindJSON(&body); err != nil {
		log.Warn("routing webhook: bad body", "err", err)
		c.AbortWithStatusJSON(http.StatusBadRequest, errorBody("Invalid JSON body"))
		return
	}

	in := body.ToInput(c.Param("user_id"), c.Param("workspace_id"), c.ClientIP())
	res, err := h.Workflow.Handle(c.Request.Context(), in)
	if err != nil {
		status, msg := routingErrorResponse(err)
		c.AbortWithStatusJSON(status, errorBody(msg))
		return
	}

	var details any = res.Appointment
	if len(res.Appointment.Raw) > 0 {
		details = res.Appointment.Raw
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"appointment": appointmentView{
			Agent:              agentView{Address: res.Agent.Address, Distance: res.Distance},
			PhoneNumberUsed:    res.PhoneNumber,
			AppointmentDetails: details,
		},
	})
}

// routingErrorResponse maps workflow errors to status and caller-facing message.
// Unknown errors never leak detail.
func routingErrorResponse(err error) (int, string) {
	switch {
	case errors.Is(err, routing.ErrMissingPhone):
		return http.StatusBadRequest, "No valid phone number found. Check 'direction' and corresponding number fields."
	case errors.Is(err, routing.ErrMissingArgs):
		return http.StatusBadRequest, "Missing required fields in 'args': time or location."
	case errors.Is(err, routing.ErrInvalidTime):
		return http.StatusBadRequest, "Invalid 'time' in 'args': expected ISO-8601 with offset."
	case errors.Is(err, routing.ErrInvalidInput):
		return http.StatusBadRequest, "Invalid request"
	case errors.Is(err, routing.ErrWorkspaceNotFound):
		return http.StatusNotFound, "User or workspace not found"
	case errors.Is(err, routing.ErrNoRoutingAgents):
		return http.StatusNotFound, "No routing agents found"
	case errors.Is(err, routing.ErrNoAgentAvailable):
		return http.StatusNotFound, "No agents available at the specified time (including 30-min buffer)"
	case errors.Is(err, routing.ErrDuplicateDelivery):
		return http.StatusConflict, "Call is already being routed"
	case errors.Is(err, routing.ErrBookingFailed):
		return http.StatusInternalServerError, "Failed to create appointment"
	default:
		return http.StatusInternalServerError, "Internal server error"
	}
}

func errorBody(msg string) gin.H {
	return gin.H{"success": false, "error": msg}
}

type CallRecorder interface {
	RecordAnalyzed(ctx context.Context, c calls.Call) (calls.Call, error)
}

type CallEventCounter interface {
	CallRecorded(result string)
}

// CallAnalyzedHandler stores analyzed calls in the owning workspace's call history.
// Every event other than call_analyzed is acknowledged and dropped.
type CallAnalyzedHandler struct {
	Calls   CallRecorder
	Counter CallEventCounter
}

// maxEventBody bounds the stored payload; transcripts make these large.
const maxEventBody = 4 << 20

func (h CallAnalyzedHandler) Handle(c *gin.Context) {
	log := logger.FromGin(c)

	raw, err := io.ReadAll(io.LimitReader(c.Request.Body, maxEventBody))
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, errorBody("unreadable body"))
		return
	}
	ev, rc, err := ParseCallEvent(raw)
	if err != nil {
		log.Warn("call webhook: bad body", "err", err)
		h.count("malformed")
		c.AbortWithStatusJSON(http.StatusBadRequest, errorBody("Invalid JSON body"))
		return
	}
	if ev.Event != EventCallAnalyzed {
		log.Debug("call webhook: ignoring event", "event", ev.Event)
		h.count("ignored")
		c.Status(http.StatusOK)
		return
	}
	if rc.AgentID == "" || rc.CallID == "" || rc.StartTimestamp == 0 {
		h.count("invalid")
		c.AbortWithStatusJSON(http.StatusBadRequest, errorBody("Missing agent_id, call_id, or start_timestamp."))
		return
	}
	if h.Calls == nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, errorBody("Internal server error"))
		return
	}

	stored, err := h.Calls.RecordAnalyzed(c.Request.Context(), rc.ToCall(ev.Call))
	switch {
	case errors.Is(err, calls.ErrAgentNotFound):
		log.Warn("call webhook: unknown agent", "agent_id", rc.AgentID, "call_id", rc.CallID)
		h.count("unknown_agent")
		c.Status(http.StatusOK)
	case errors.Is(err, calls.ErrInvalidCall):
		h.count("invalid")
		c.AbortWithStatusJSON(http.StatusBadRequest, errorBody("Missing agent_id, call_id, or start_timestamp."))
	case err != nil:
		log.Error("call webhook: store failed", "call_id", rc.CallID, "err", err)
		h.count("error")
		c.AbortWithStatusJSON(http.StatusInternalServerError, errorBody("Internal server error"))
	default:
		log.Info("call webhook: stored",
			"call_id", stored.CallID,
			"user_id", stored.UserID,
			"workspace_id", stored.WorkspaceID,
		)
		h.count("stored")
		c.Status(http.StatusOK)
	}
}

func (h CallAnalyzedHandler) count(result string) {
	if h.Counter != nil {
		h.Counter.CallRecorded(result)
	}
}
