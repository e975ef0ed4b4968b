package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"floordash"
	"floordash/internal/oee"
	"floordash/internal/service"

	"github.com/gin-gonic/gin"
)

const errOeeHistory = "failed to list oee history"

// parseRangeFilter reads optional ?from / ?to RFC3339 bounds.
func parseRangeFilter(c *gin.Context) (service.RangeFilter, error) {
	var f service.RangeFilter
	if s := c.Query("from"); s != "" {
		t, err := time.Parse(time.RFC3339, s)
		if err != nil {
			return f, fmt.Errorf("invalid from: %w", err)
		}
		f.From = t
	}
	if s := c.Query("to"); s != "" {
		t, err := time.Parse(time.RFC3339, s)
		if err != nil {
			return f, fmt.Errorf("invalid to: %w", err)
		}
		f.To = t
	}
	return f, nil
}

var errUnknownLine = errors.New("no closed window for line yet")

// @Summary      Current OEE for a line
// @Description  Latest closed window; tier=current (default) or summary.
// @Tags         oee
// @Produce      json
// @Param        line  path   string  true   "Line id"
// @Param        tier  query  string  false  "current | summary"
// @Success      200  {object}  floordash.OeeSnapshot
// @Failure      404  {object}  map[string]string
// @Router       /api/v1/oee/{line}/current [get]
func (h *Handler) currentOee(c *gin.Context) {
	snap, ok := h.services.Monitoring.CurrentOee(c.Request.Context(), c.Param("line"), c.Query("tier"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": errUnknownLine.Error()})
		return
	}
	c.JSON(http.StatusOK, snap)
}

// @Summary      OEE snapshot history for a line
// @Tags         oee
// @Produce      json
// @Param        line  path   string  true   "Line id"
// @Param        tier  query  string  false  "current | summary"
// @Param        from  query  string  false  "RFC3339 lower bound"
// @Param        to    query  string  false  "RFC3339 upper bound"
// @Success      200  {object}  map[string]interface{}
// @Failure      400  {object}  map[string]string
// @Router       /api/v1/oee/{line}/history [get]
func (h *Handler) oeeHistory(c *gin.Context) {
	filter, err := parseRangeFilter(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	snaps, err := h.services.History.ListOee(c.Request.Context(), c.Param("line"), c.Query("tier"), filter)
	if err != nil {
		h.logAndJSONError(c, http.StatusInternalServerError, errOeeHistory, "oee_history_failed", err, "line", c.Param("line"))
		return
	}
	c.JSON(http.StatusOK, gin.H{"snapshots": snaps, "count": len(snaps)})
}

// @Summary      Downtime history
// @Tags         downtime
// @Produce      json
// @Param        line  query  string  false  "Filter by line id"
// @Param        from  query  string  false  "RFC3339 lower bound"
// @Param        to    query  string  false  "RFC3339 upper bound"
// @Success      200  {object}  map[string]interface{}
// @Failure      400  {object}  map[string]string
// @Router       /api/v1/downtime [get]
func (h *Handler) downtimeHistory(c *gin.Context) {
	filter, err := parseRangeFilter(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	events, err := h.services.History.ListDowntime(c.Request.Context(), c.Query("line"), filter)
	if err != nil {
		h.logAndJSONError(c, http.StatusInternalServerError, "failed to list downtime", "downtime_history_failed", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"events": events, "count": len(events)})
}

// @Summary      Fan-out hub and pipeline stats
// @Description  Per-client queue depth and drop counters plus sample-drop totals.
// @Tags         system
// @Produce      json
// @Success      200  {object}  service.PipelineStats
// @Router       /api/v1/hub/stats [get]
func (h *Handler) hubStats(c *gin.Context) {
	c.JSON(http.StatusOK, h.services.Monitoring.PipelineStats(c.Request.Context()))
}

// SampleRequest is the ingest payload for one equipment sample.
type SampleRequest struct {
	EquipmentID    string    `json:"equipment_id" binding:"required"`
	LineID         string    `json:"line_id" binding:"required"`
	Timestamp      time.Time `json:"timestamp" binding:"required"`
	Running        bool      `json:"running"`
	GoodCount      int64     `json:"good_count"`
	TotalCount     int64     `json:"total_count"`
	IdealCycleTime float64   `json:"ideal_cycle_time"`
	Planned        bool      `json:"planned"`
}

// @Summary      Ingest one equipment sample
// @Description  Push endpoint for the telemetry adapter. Rejected samples return 202 with the rejection reason; ingest never fails the pipeline.
// @Tags         telemetry
// @Accept       json
// @Produce      json
// @Param        body  body  SampleRequest  true  "Sample"
// @Success      200  {object}  map[string]string
// @Success      202  {object}  map[string]string
// @Failure      400  {object}  map[string]string
// @Router       /api/v1/telemetry/samples [post]
func (h *Handler) ingestSample(c *gin.Context) {
	var req SampleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": errInvalidBodyPref + err.Error()})
		return
	}

	res := h.services.Ingest.Ingest(c.Request.Context(), floordash.EquipmentSample{
		EquipmentID:    req.EquipmentID,
		LineID:         req.LineID,
		Timestamp:      req.Timestamp,
		Running:        req.Running,
		GoodCount:      req.GoodCount,
		TotalCount:     req.TotalCount,
		IdealCycleTime: req.IdealCycleTime,
		Planned:        req.Planned,
	})

	code := http.StatusOK
	if res != oee.Accepted {
		code = http.StatusAccepted
	}
	c.JSON(code, gin.H{"result": res.String()})
}
