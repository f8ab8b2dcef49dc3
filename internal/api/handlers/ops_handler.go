package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/jafarov01/property-management-bot/internal/commands"
	"github.com/jafarov01/property-management-bot/internal/failure"
	"github.com/jafarov01/property-management-bot/internal/services"
	"github.com/jafarov01/property-management-bot/internal/tracing"
)

// OpsHandler handles chat events, operator commands and alert actions.
type OpsHandler struct {
	service  *services.Service
	registry *commands.Registry
	tracer   tracing.Tracer
}

// NewOpsHandler creates the operations handler.
func NewOpsHandler(service *services.Service, registry *commands.Registry, tracer tracing.Tracer) *OpsHandler {
	return &OpsHandler{
		service:  service,
		registry: registry,
		tracer:   tracer,
	}
}

// RegisterRoutes registers the handler routes.
func (h *OpsHandler) RegisterRoutes(router *gin.Engine) {
	router.POST("/chat/events", h.HandleChatEvent)
	router.POST("/commands", h.HandleCommand)
	router.POST("/alerts/:id/handle", h.HandleAlert)
}

// ChatEventRequest is a free-text message from one of the operator
// channels.
type ChatEventRequest struct {
	SenderAuthorized bool   `json:"sender_authorized"`
	ChannelRole      string `json:"channel_role" binding:"required"`
	RawText          string `json:"raw_text" binding:"required"`
}

// HandleChatEvent routes channel text by role: check-in lists drive
// arrivals, cleaning lists drive departures. Unauthorized senders are
// dropped without a reply.
func (h *OpsHandler) HandleChatEvent(c *gin.Context) {
	txn := h.tracer.StartTransaction("chat-event")
	defer h.tracer.EndTransaction(txn)

	var req ChatEventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	if !req.SenderAuthorized {
		log.Warn().Str("channel_role", req.ChannelRole).Msg("dropping message from unauthorized sender")
		c.JSON(http.StatusOK, gin.H{"dropped": true})
		return
	}

	role := strings.ToUpper(req.ChannelRole)
	h.tracer.AddAttribute(txn, "channel_role", role)

	var receipt string
	var err error
	switch role {
	case "CHECKIN":
		receipt, err = h.service.ProcessCheckinList(c.Request.Context(), req.RawText)
	case "CLEANING":
		receipt, err = h.service.ProcessCleaningList(c.Request.Context(), req.RawText)
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown channel role"})
		return
	}
	if err != nil {
		h.tracer.RecordError(txn, err)
		status := statusForError(err)
		c.JSON(status, gin.H{"error": errorMessage(err)})
		return
	}

	c.JSON(http.StatusOK, gin.H{"receipt": receipt})
}

// CommandRequest is one operator command invocation.
type CommandRequest struct {
	Command string   `json:"command" binding:"required"`
	Args    []string `json:"args"`
}

// HandleCommand executes a registered command and returns the rendered
// reply. Command-level failures come back as replies, not HTTP errors: the
// operator reads them in chat.
func (h *OpsHandler) HandleCommand(c *gin.Context) {
	txn := h.tracer.StartTransaction("command")
	defer h.tracer.EndTransaction(txn)

	var req CommandRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	h.tracer.AddAttribute(txn, "command", req.Command)

	reply := h.registry.Execute(c.Request.Context(), req.Command, req.Args)
	c.JSON(http.StatusOK, gin.H{"reply": reply})
}

// HandleAlertRequest identifies the operator settling an alert.
type HandleAlertRequest struct {
	Operator string `json:"operator" binding:"required"`
}

// HandleAlert marks an email alert handled.
func (h *OpsHandler) HandleAlert(c *gin.Context) {
	txn := h.tracer.StartTransaction("handle-alert")
	defer h.tracer.EndTransaction(txn)

	alertID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid alert id"})
		return
	}

	var req HandleAlertRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	alert, err := h.service.MarkAlertHandled(c.Request.Context(), alertID, req.Operator)
	if err != nil {
		h.tracer.RecordError(txn, err)
		c.JSON(statusForError(err), gin.H{"error": errorMessage(err)})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"id":         alert.ID,
		"status":     alert.Status,
		"handled_by": alert.HandledBy,
		"handled_at": alert.HandledAt,
	})
}

func statusForError(err error) int {
	switch failure.KindOf(err) {
	case failure.Validation:
		return http.StatusBadRequest
	case failure.NotFound:
		return http.StatusNotFound
	case failure.StateConflict, failure.InvalidTransition:
		return http.StatusConflict
	case failure.ExternalService:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func errorMessage(err error) string {
	if kind := failure.KindOf(err); kind != 0 && kind != failure.Integrity {
		var f *failure.Failure
		if errors.As(err, &f) {
			return f.UserMessage()
		}
	}
	log.Error().Err(err).Msg("request failed")
	return "internal error"
}
