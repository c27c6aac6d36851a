package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stwalsh4118/livetv/internal/db"
	"github.com/stwalsh4118/livetv/internal/dvr"
)

// DVRStatus reports how reachable the upstream DVR currently is
type DVRStatus interface {
	Configured() bool
	BreakerState() dvr.BreakerState
}

// DVRHealth is the DVR section of a health report
type DVRHealth struct {
	Configured bool   `json:"configured"`
	Breaker    string `json:"breaker,omitempty"`
}

// HealthResponse represents the response from the health check endpoint
type HealthResponse struct {
	Status   string                 `json:"status"`
	Database string                 `json:"database"`
	DVR      DVRHealth              `json:"dvr"`
	Time     string                 `json:"time"`
	Details  map[string]interface{} `json:"details,omitempty"`
}

// HealthHandler handles health check requests
type HealthHandler struct {
	db  *db.DB
	dvr DVRStatus
}

// NewHealthHandler creates a new health check handler. A nil status reports the DVR as unconfigured.
func NewHealthHandler(database *db.DB, status DVRStatus) *HealthHandler {
	return &HealthHandler{db: database, dvr: status}
}

// Check handles the health check endpoint.
// A failing database is fatal (503); an unconfigured or tripped DVR only degrades the report.
func (h *HealthHandler) Check(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	response := HealthResponse{
		Status:  "ok",
		Time:    time.Now().UTC().Format(time.RFC3339),
		Details: make(map[string]interface{}),
	}

	if h.dvr != nil && h.dvr.Configured() {
		state := h.dvr.BreakerState()
		response.DVR = DVRHealth{Configured: true, Breaker: state.String()}
		if state != dvr.BreakerClosed {
			response.Status = "degraded"
			response.Details["dvr_error"] = dvr.ErrCircuitOpen.Error()
		}
	} else {
		response.Status = "degraded"
		response.Details["dvr_error"] = dvr.ErrNotConfigured.Error()
	}

	if err := h.db.Health(ctx); err != nil {
		response.Status = "degraded"
		response.Database = "unhealthy"
		response.Details["database_error"] = err.Error()
		c.JSON(http.StatusServiceUnavailable, response)
		return
	}

	response.Database = "healthy"
	c.JSON(http.StatusOK, response)
}

// SetupHealthRoutes registers health check routes
func SetupHealthRoutes(apiGroup *gin.RouterGroup, database *db.DB, status DVRStatus) {
	handler := NewHealthHandler(database, status)
	apiGroup.GET("/health", handler.Check)
}
