package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stwalsh4118/livetv/internal/channel"
	"github.com/stwalsh4118/livetv/internal/dvr"
	"github.com/stwalsh4118/livetv/internal/logger"
	"github.com/stwalsh4118/livetv/internal/models"
)

// Request/Response DTOs

// ChannelListResponse represents a list of channels
type ChannelListResponse struct {
	Success  bool              `json:"success"`
	Channels []*models.Channel `json:"channels"`
}

// ChannelDetailResponse wraps a single channel
type ChannelDetailResponse struct {
	Success bool            `json:"success"`
	Channel *models.Channel `json:"channel"`
}

// ToggleResponse reports a channel's new enabled flag
type ToggleResponse struct {
	Success   bool  `json:"success"`
	ChannelID int64 `json:"channel_id"`
	IsEnabled bool  `json:"is_enabled"`
}

// SyncRequest controls a channel sync
type SyncRequest struct {
	ReplaceExisting bool `json:"replace_existing"`
}

// SyncResponse summarizes a channel sync
type SyncResponse struct {
	Success bool `json:"success"`
	*channel.SyncResult
}

// BulkToggleRequest enables or disables every channel
type BulkToggleRequest struct {
	Enable *bool `json:"enable,omitempty"`
}

// BulkToggleResponse summarizes a bulk toggle
type BulkToggleResponse struct {
	Success bool `json:"success"`
	*channel.BulkResult
}

// StatsResponse reports catalog counts
type StatsResponse struct {
	TotalChannels    int64    `json:"total_channels"`
	EnabledChannels  int64    `json:"enabled_channels"`
	DisabledChannels int64    `json:"disabled_channels"`
	Groups           []string `json:"groups"`
	GroupCount       int      `json:"group_count"`
}

// ChannelHandler handles channel-related API requests
type ChannelHandler struct {
	channelService *channel.ChannelService
}

// NewChannelHandler creates a new channel handler instance
func NewChannelHandler(channelService *channel.ChannelService) *ChannelHandler {
	return &ChannelHandler{channelService: channelService}
}

// ListChannels handles GET /api/channels
func (h *ChannelHandler) ListChannels(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	enabledOnly := c.Query("enabled") == "true"
	channels, err := h.channelService.List(ctx, enabledOnly)
	if err != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:   "list_failed",
			Message: "Failed to retrieve channels",
		})
		return
	}

	c.JSON(http.StatusOK, ChannelListResponse{Success: true, Channels: channels})
}

// GetChannel handles GET /api/channels/:id
func (h *ChannelHandler) GetChannel(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_id",
			Message: "Invalid channel ID format",
		})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	ch, err := h.channelService.GetByID(ctx, id)
	if err != nil {
		if channel.IsChannelNotFound(err) {
			c.JSON(http.StatusNotFound, gin.H{
				"success": false,
				"error":   "Channel not found",
			})
			return
		}
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:   "retrieval_failed",
			Message: "Failed to retrieve channel",
		})
		return
	}

	c.JSON(http.StatusOK, ChannelDetailResponse{Success: true, Channel: ch})
}

// ToggleChannel handles POST /api/channels/:id/toggle
func (h *ChannelHandler) ToggleChannel(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_id",
			Message: "Invalid channel ID format",
		})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	enabled, err := h.channelService.Toggle(ctx, id)
	if err != nil {
		if channel.IsChannelNotFound(err) {
			c.JSON(http.StatusNotFound, ErrorResponse{
				Error:   "not_found",
				Message: "Channel not found",
			})
			return
		}
		logger.Log.Error().Err(err).Int64("channel_id", id).Msg("Failed to toggle channel")
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:   "toggle_failed",
			Message: "Failed to toggle channel",
		})
		return
	}

	c.JSON(http.StatusOK, ToggleResponse{Success: true, ChannelID: id, IsEnabled: enabled})
}

// BulkToggle handles POST /api/channels/bulk-toggle
func (h *ChannelHandler) BulkToggle(c *gin.Context) {
	var req BulkToggleRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, ErrorResponse{
				Error:   "invalid_request",
				Message: "Invalid request body: " + err.Error(),
			})
			return
		}
	}
	enable := true
	if req.Enable != nil {
		enable = *req.Enable
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 10*time.Second)
	defer cancel()

	result, err := h.channelService.SetAllEnabled(ctx, enable)
	if err != nil {
		logger.Log.Error().Err(err).Bool("enable", enable).Msg("Failed to bulk toggle channels")
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:   "toggle_failed",
			Message: "Failed to update channels",
		})
		return
	}

	c.JSON(http.StatusOK, BulkToggleResponse{Success: true, BulkResult: result})
}

// SyncChannels handles POST /api/channels/sync
func (h *ChannelHandler) SyncChannels(c *gin.Context) {
	var req SyncRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, ErrorResponse{
				Error:   "invalid_request",
				Message: "Invalid request body: " + err.Error(),
			})
			return
		}
	}

	// Downloads can be slow on large DVR line-ups
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Minute)
	defer cancel()

	result, err := h.channelService.Sync(ctx, req.ReplaceExisting)
	if err != nil {
		switch {
		case errors.Is(err, channel.ErrSyncUnavailable), dvr.IsNotConfigured(err):
			c.JSON(http.StatusServiceUnavailable, ErrorResponse{
				Error:   "dvr_not_configured",
				Message: "No DVR server is configured",
			})
		case channel.IsNoChannelsFound(err):
			c.JSON(http.StatusBadGateway, ErrorResponse{
				Error:   "no_channels",
				Message: "No channels found in the DVR channel list",
			})
		default:
			c.JSON(http.StatusBadGateway, ErrorResponse{
				Error:   "sync_failed",
				Message: "Failed to sync channels from DVR",
			})
		}
		return
	}

	c.JSON(http.StatusOK, SyncResponse{Success: true, SyncResult: result})
}

// GetStats handles GET /api/channels/stats
func (h *ChannelHandler) GetStats(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	stats, err := h.channelService.Stats(ctx)
	if err != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:   "stats_failed",
			Message: "Failed to retrieve channel stats",
		})
		return
	}

	c.JSON(http.StatusOK, StatsResponse{
		TotalChannels:    stats.Total,
		EnabledChannels:  stats.Enabled,
		DisabledChannels: stats.Disabled,
		Groups:           stats.Groups,
		GroupCount:       len(stats.Groups),
	})
}

// Search handles GET /api/search
func (h *ChannelHandler) Search(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	channels, err := h.channelService.Search(ctx, c.Query("q"))
	if err != nil {
		logger.Log.Error().Err(err).Str("query", c.Query("q")).Msg("Channel search failed")
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:   "search_failed",
			Message: "Failed to search channels",
		})
		return
	}

	c.JSON(http.StatusOK, ChannelListResponse{Success: true, Channels: channels})
}

// SetupChannelRoutes registers channel and search routes
func SetupChannelRoutes(apiGroup *gin.RouterGroup, channelService *channel.ChannelService) {
	handler := NewChannelHandler(channelService)

	apiGroup.GET("/channels", handler.ListChannels)
	apiGroup.GET("/channels/stats", handler.GetStats)
	apiGroup.POST("/channels/sync", handler.SyncChannels)
	apiGroup.POST("/channels/bulk-toggle", handler.BulkToggle)
	apiGroup.GET("/channels/:id", handler.GetChannel)
	apiGroup.POST("/channels/:id/toggle", handler.ToggleChannel)

	apiGroup.GET("/search", handler.Search)
}
