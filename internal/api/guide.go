package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stwalsh4118/livetv/internal/guide"
	"github.com/stwalsh4118/livetv/internal/logger"
)

const (
	guideCacheControl = "max-age=900"
	guideCacheTTL     = 15 * time.Minute
)

// GuideHandler serves guide data
type GuideHandler struct {
	source guide.Source
	now    func() time.Time
}

// NewGuideHandler creates a new guide handler instance
func NewGuideHandler(source guide.Source) *GuideHandler {
	return &GuideHandler{source: source, now: time.Now}
}

// GetGuideData handles POST /api/guide/data. Any failure answers with an
// empty object so the player keeps its cached guide.
func (h *GuideHandler) GetGuideData(c *gin.Context) {
	var req guide.Request
	if err := c.ShouldBindJSON(&req); err != nil {
		logger.Log.Warn().Err(err).Msg("Invalid guide data request")
		c.JSON(http.StatusOK, gin.H{})
		return
	}
	if len(req.Channels) == 0 {
		logger.Log.Warn().Msg("No channels requested for guide data")
		c.JSON(http.StatusOK, gin.H{})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 30*time.Second)
	defer cancel()

	data, err := h.source.FetchGuide(ctx, req)
	if err != nil {
		logger.Log.Error().Err(err).Int("channels", len(req.Channels)).Msg("Failed to fetch guide data")
		c.JSON(http.StatusOK, gin.H{})
		return
	}

	c.Header("Cache-Control", guideCacheControl)
	c.Header("Expires", h.now().UTC().Add(guideCacheTTL).Format(http.TimeFormat))
	c.JSON(http.StatusOK, data)
}

// SetupGuideRoutes registers guide routes
func SetupGuideRoutes(apiGroup *gin.RouterGroup, source guide.Source) {
	handler := NewGuideHandler(source)
	apiGroup.POST("/guide/data", handler.GetGuideData)
}
