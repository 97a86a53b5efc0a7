package http

import (
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/GriffinCanCode/webharvest/internal/domain/container"
	"github.com/GriffinCanCode/webharvest/internal/domain/dom"
	"github.com/GriffinCanCode/webharvest/internal/domain/operation"
	"github.com/GriffinCanCode/webharvest/internal/domain/session"
	"github.com/GriffinCanCode/webharvest/internal/shared/utils"
)

// DefaultEventLimit caps the events returned without ?limit=
const DefaultEventLimit = 100

// CreateSession creates a session from a site/page pair or a url
func (h *Handlers) CreateSession(c *gin.Context) {
	var req session.CreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request format"})
		return
	}
	if err := utils.ValidateID(req.Site, "site", false); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := utils.ValidateID(req.Page, "page", false); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.PollMs < 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "pollMs must not be negative"})
		return
	}

	s, err := h.sessions.Create(c.Request.Context(), req)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, s.Info())
}

// ListSessions returns every live session
func (h *Handlers) ListSessions(c *gin.Context) {
	sessions := h.sessions.List()
	c.JSON(http.StatusOK, gin.H{
		"sessions": sessions,
		"count":    len(sessions),
	})
}

// GetSession returns one session
func (h *Handlers) GetSession(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, s.Info())
}

// CloseSession tears a session down
func (h *Handlers) CloseSession(c *gin.Context) {
	sid, ok := sessionID(c)
	if !ok {
		return
	}
	if err := h.sessions.Close(sid); err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "id": sid})
}

// IngestSnapshot matches a caller-supplied snapshot
func (h *Handlers) IngestSnapshot(c *gin.Context) {
	sid, ok := sessionID(c)
	if !ok {
		return
	}

	body, err := io.ReadAll(io.LimitReader(c.Request.Body, utils.MaxSnapshotSize+1))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Failed to read snapshot"})
		return
	}
	if err := utils.ValidateSize(body, utils.MaxSnapshotSize); err != nil {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": err.Error()})
		return
	}
	snapshot, err := dom.Decode(body)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	graph, err := h.sessions.Ingest(c.Request.Context(), sid, snapshot)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, graph)
}

// Refresh captures and matches a snapshot from the session's page
func (h *Handlers) Refresh(c *gin.Context) {
	sid, ok := sessionID(c)
	if !ok {
		return
	}
	graph, err := h.sessions.Refresh(c.Request.Context(), sid)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, graph)
}

// GetGraph returns the current container graph
func (h *Handlers) GetGraph(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, s.Controller.CurrentGraph())
}

// GetFocus returns the focused container, null when there is none
func (h *Handlers) GetFocus(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"state": s.Controller.State().String(),
		"focus": s.Controller.CurrentFocus(),
	})
}

// MessageRequest is a message fired at the session's message rules
type MessageRequest struct {
	Type    string         `json:"type" binding:"required"`
	Payload map[string]any `json:"payload,omitempty"`
}

// HandleMessage dispatches the message rules matching the message type
func (h *Handlers) HandleMessage(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}

	var req MessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request format"})
		return
	}
	if err := utils.ValidatePattern(req.Type, "type", true); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := utils.ValidateJSONDepth(req.Payload, utils.MaxConfigDepth); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	dispatches := s.Controller.HandleMessage(c.Request.Context(), req.Type, req.Payload)
	c.JSON(http.StatusOK, gin.H{
		"type":       req.Type,
		"dispatches": dispatches,
		"count":      len(dispatches),
	})
}

func validateRequest(req operation.Request) error {
	if err := utils.ValidateID(req.OperationID, "operationId", true); err != nil {
		return err
	}
	if err := utils.ValidateID(req.ContainerID, "containerId", false); err != nil {
		return err
	}
	return utils.ValidateJSONDepth(req.Config, utils.MaxConfigDepth)
}

// ExecuteOperation runs one operation. Failures are reported in the result,
// so the status is 200 whenever the request itself was valid.
func (h *Handlers) ExecuteOperation(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}

	var req operation.Request
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request format"})
		return
	}
	if err := validateRequest(req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, s.Execute(c.Request.Context(), req))
}

// BatchRequest is a list of independent operation calls
type BatchRequest struct {
	Requests []operation.Request `json:"requests" binding:"required"`
}

// ExecuteBatch runs several operations, results in request order
func (h *Handlers) ExecuteBatch(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}

	var req BatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request format"})
		return
	}
	if len(req.Requests) > utils.MaxBatchSize {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Too many requests in batch"})
		return
	}
	for i, r := range req.Requests {
		if err := validateRequest(r); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error(), "index": i})
			return
		}
	}

	results := s.ExecuteBatch(c.Request.Context(), req.Requests)
	c.JSON(http.StatusOK, gin.H{
		"results": results,
		"count":   len(results),
	})
}

// ListRules returns the session's binding rules
func (h *Handlers) ListRules(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}
	rules := s.Bindings.Rules()
	c.JSON(http.StatusOK, gin.H{
		"rules": rules,
		"count": len(rules),
	})
}

// AddRule registers a rule on a running session
func (h *Handlers) AddRule(c *gin.Context) {
	sid, ok := sessionID(c)
	if !ok {
		return
	}

	var spec container.RuleSpec
	if err := c.ShouldBindJSON(&spec); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request format"})
		return
	}
	if err := utils.ValidateID(spec.ID, "id", false); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if len(spec.Target.Script) > utils.MaxScriptSize {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Target script too large"})
		return
	}

	rule, err := h.sessions.AddRule(sid, spec)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, rule)
}

// RemoveRule unregisters a rule
func (h *Handlers) RemoveRule(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}
	ruleID := c.Param("ruleId")
	if !s.Bindings.Unregister(ruleID) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Rule not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "id": ruleID})
}

// ListEvents returns the newest retained events, oldest first
func (h *Handlers) ListEvents(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}

	limit := DefaultEventLimit
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a positive integer"})
			return
		}
		limit = n
	}

	events := s.Bus.History()
	if len(events) > limit {
		events = events[len(events)-limit:]
	}
	c.JSON(http.StatusOK, gin.H{
		"events": events,
		"count":  len(events),
	})
}

// EventStats returns emit counts per topic
func (h *Handlers) EventStats(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"topics":   s.Bus.Stats(),
		"handlers": s.Bus.HandlerCount(),
	})
}
