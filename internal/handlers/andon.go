package handlers

import (
	"errors"
	"net/http"

	"floordash/internal/andon"

	"github.com/gin-gonic/gin"
)

// Common response/status constants to avoid magic strings and typos.
const (
	statusOK           = "ok"
	statusAcknowledged = "acknowledged"
	statusResolved     = "resolved"

	errAcknowledge     = "failed to acknowledge andon event"
	errResolve         = "failed to resolve andon event"
	errInvalidBodyPref = "invalid body: "
)

// Centralized error logging and response.
func (h *Handler) logAndJSONError(c *gin.Context, httpCode int, userMsg, logKey string, err error, kv ...interface{}) {
	if h.log != nil && err != nil {
		fields := append([]interface{}{"err", err}, kv...)
		h.log.Errorw(logKey, fields...)
	}
	c.JSON(httpCode, gin.H{"error": userMsg})
}

// statusForAndonError maps the engine's expected results onto HTTP codes:
// conflicts are 409, unknown events 404, everything else 500.
func statusForAndonError(err error) int {
	switch {
	case errors.Is(err, andon.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, andon.ErrNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// ActorRequest carries the human actor behind an acknowledge/resolve call.
type ActorRequest struct {
	// Operator or responder performing the action
	Actor string `json:"actor" binding:"required" example:"shift-lead-2"`
}

// @Summary      Health check
// @Tags         system
// @Produce      json
// @Success      200  {object}  map[string]string
// @Router       /health [get]
func (h *Handler) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": statusOK,
	})
}

// @Summary      List active andon events
// @Tags         andon
// @Produce      json
// @Param        line  query  string  false  "Filter by line id"
// @Success      200  {object}  map[string]interface{}
// @Router       /api/v1/andon/active [get]
func (h *Handler) activeAndonEvents(c *gin.Context) {
	events := h.services.Andon.Active(c.Request.Context(), c.Query("line"))
	c.JSON(http.StatusOK, gin.H{"events": events, "count": len(events)})
}

// @Summary      Get one live andon event
// @Tags         andon
// @Produce      json
// @Param        id  path  string  true  "Event id"
// @Success      200  {object}  map[string]interface{}
// @Failure      404  {object}  map[string]string
// @Router       /api/v1/andon/{id} [get]
func (h *Handler) getAndonEvent(c *gin.Context) {
	ev, err := h.services.Andon.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.JSON(statusForAndonError(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, ev)
}

// @Summary      Acknowledge an andon event
// @Description  Valid only while the event is open; cancels the pending escalation.
// @Tags         andon
// @Accept       json
// @Produce      json
// @Param        id    path  string        true  "Event id"
// @Param        body  body  ActorRequest  true  "Acting responder"
// @Success      200   {object}  map[string]interface{}
// @Failure      400   {object}  map[string]string
// @Failure      404   {object}  map[string]string
// @Failure      409   {object}  map[string]string
// @Router       /api/v1/andon/{id}/acknowledge [post]
func (h *Handler) acknowledgeAndonEvent(c *gin.Context) {
	var req ActorRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": errInvalidBodyPref + err.Error()})
		return
	}

	ev, err := h.services.Andon.Acknowledge(c.Request.Context(), c.Param("id"), req.Actor)
	if err != nil {
		code := statusForAndonError(err)
		if code == http.StatusInternalServerError {
			h.logAndJSONError(c, code, errAcknowledge, "andon_acknowledge_failed", err, "event", c.Param("id"))
			return
		}
		c.JSON(code, gin.H{"error": err.Error(), "event": ev})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": statusAcknowledged, "event": ev})
}

// @Summary      Resolve an andon event
// @Description  Valid from open or acknowledged; emits the downtime record.
// @Tags         andon
// @Accept       json
// @Produce      json
// @Param        id    path  string        true  "Event id"
// @Param        body  body  ActorRequest  true  "Acting responder"
// @Success      200   {object}  map[string]interface{}
// @Failure      400   {object}  map[string]string
// @Failure      404   {object}  map[string]string
// @Failure      409   {object}  map[string]string
// @Router       /api/v1/andon/{id}/resolve [post]
func (h *Handler) resolveAndonEvent(c *gin.Context) {
	var req ActorRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": errInvalidBodyPref + err.Error()})
		return
	}

	ev, err := h.services.Andon.Resolve(c.Request.Context(), c.Param("id"), req.Actor)
	if err != nil {
		code := statusForAndonError(err)
		if code == http.StatusInternalServerError {
			h.logAndJSONError(c, code, errResolve, "andon_resolve_failed", err, "event", c.Param("id"))
			return
		}
		c.JSON(code, gin.H{"error": err.Error(), "event": ev})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": statusResolved, "event": ev})
}

// @Summary      Andon event archive
// @Tags         andon
// @Produce      json
// @Param        line  query  string  false  "Filter by line id"
// @Param        from  query  string  false  "RFC3339 lower bound"
// @Param        to    query  string  false  "RFC3339 upper bound"
// @Success      200  {object}  map[string]interface{}
// @Failure      400  {object}  map[string]string
// @Router       /api/v1/andon/history [get]
func (h *Handler) andonHistory(c *gin.Context) {
	filter, err := parseRangeFilter(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	events, err := h.services.History.ListAndon(c.Request.Context(), c.Query("line"), filter)
	if err != nil {
		h.logAndJSONError(c, http.StatusInternalServerError, "failed to list andon history", "andon_history_failed", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"events": events, "count": len(events)})
}
