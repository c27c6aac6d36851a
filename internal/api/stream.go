package api

import (
	"bytes"
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stwalsh4118/livetv/internal/channel"
	"github.com/stwalsh4118/livetv/internal/logger"
)

const hlsContentType = "application/vnd.apple.mpegurl"

// ManifestSource fetches playable HLS manifests for channel streams
type ManifestSource interface {
	FetchManifest(ctx context.Context, streamURL string) ([]byte, error)
}

// StreamHandler proxies channel streams so players never talk to the DVR directly
type StreamHandler struct {
	channelService *channel.ChannelService
	manifests      ManifestSource
}

// NewStreamHandler creates a new stream proxy handler
func NewStreamHandler(channelService *channel.ChannelService, manifests ManifestSource) *StreamHandler {
	return &StreamHandler{channelService: channelService, manifests: manifests}
}

// ProxyStream handles GET /proxy/stream/:id
func (h *StreamHandler) ProxyStream(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_id",
			Message: "Invalid channel ID format",
		})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 15*time.Second)
	defer cancel()

	ch, err := h.channelService.GetByID(ctx, id)
	if err != nil {
		if channel.IsChannelNotFound(err) {
			c.JSON(http.StatusNotFound, ErrorResponse{Error: "Channel not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:   "retrieval_failed",
			Message: "Failed to retrieve channel",
		})
		return
	}

	manifest, err := h.manifests.FetchManifest(ctx, ch.StreamURL)
	if err != nil {
		logger.Log.Error().Err(err).Int64("channel_id", id).Msg("Failed to proxy channel stream")
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:   "stream_failed",
			Message: err.Error(),
		})
		return
	}

	c.DataFromReader(http.StatusOK, int64(len(manifest)), hlsContentType, bytes.NewReader(manifest), map[string]string{
		"Cache-Control": "no-cache, no-store, must-revalidate",
		"Pragma":        "no-cache",
		"Expires":       "0",
	})
}

// SetupStreamRoutes registers the stream proxy on the router root
func SetupStreamRoutes(router gin.IRouter, channelService *channel.ChannelService, manifests ManifestSource) {
	handler := NewStreamHandler(channelService, manifests)
	router.GET("/proxy/stream/:id", handler.ProxyStream)
}
