package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/webharvest/internal/domain/binding"
	"github.com/GriffinCanCode/webharvest/internal/domain/container"
	"github.com/GriffinCanCode/webharvest/internal/domain/dom"
	"github.com/GriffinCanCode/webharvest/internal/domain/session"
	"github.com/GriffinCanCode/webharvest/internal/shared/id"
)

// statusOf maps runtime errors to HTTP status codes
func statusOf(err error) int {
	switch {
	case errors.Is(err, session.ErrSessionNotFound),
		errors.Is(err, container.ErrSiteNotFound),
		errors.Is(err, container.ErrPageNotFound):
		return http.StatusNotFound
	case errors.Is(err, session.ErrInvalidRequest),
		errors.Is(err, binding.ErrInvalidRule),
		errors.Is(err, dom.ErrEmptySnapshot):
		return http.StatusBadRequest
	case errors.Is(err, binding.ErrDuplicateRule),
		errors.Is(err, session.ErrNoPage):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func (h *Handlers) fail(c *gin.Context, err error) {
	status := statusOf(err)
	if status >= http.StatusInternalServerError {
		h.logger.Error("Request failed",
			zap.String("path", c.FullPath()),
			zap.Error(err))
	}
	_ = c.Error(err)
	c.JSON(status, gin.H{"error": err.Error()})
}

// sessionID reads and validates the :id parameter, answering 400 when it
// is malformed
func sessionID(c *gin.Context) (id.SessionID, bool) {
	raw := c.Param("id")
	if !id.IsValidPrefixed(raw, id.SessionPrefix) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid session ID"})
		return "", false
	}
	return id.SessionID(raw), true
}

// session resolves the :id parameter to a live session
func (h *Handlers) session(c *gin.Context) (*session.Session, bool) {
	sid, ok := sessionID(c)
	if !ok {
		return nil, false
	}
	s, err := h.sessions.Get(sid)
	if err != nil {
		h.fail(c, err)
		return nil, false
	}
	return s, true
}
