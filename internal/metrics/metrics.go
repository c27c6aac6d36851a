// Package metrics defines the prometheus collectors shared by the server and player.
package metrics

import (
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Guide fetch outcomes as recorded in GuideFetches
const (
	OutcomeApplied = "applied"
	OutcomeEmpty   = "empty"
	OutcomeFailed  = "failed"
	OutcomeStale   = "stale"
)

var (
	// GuideFetches counts guide refreshes by outcome
	GuideFetches = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "livetv_guide_fetch_total",
			Help: "Guide data fetches by outcome",
		},
		[]string{"outcome"},
	)

	// GuideFetchDuration observes guide source latency
	GuideFetchDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "livetv_guide_fetch_duration_seconds",
			Help:    "Time spent fetching guide data",
			Buckets: prometheus.DefBuckets,
		},
	)

	// OnDemandRefreshes counts refreshes triggered by a missing current program
	OnDemandRefreshes = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "livetv_guide_on_demand_refresh_total",
			Help: "Guide refreshes triggered because no current program was found",
		},
	)

	// HTTPRequests counts API requests
	HTTPRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "livetv_http_requests_total",
			Help: "HTTP requests by method, route and status",
		},
		[]string{"method", "path", "status"},
	)

	// ChannelSyncs counts M3U channel syncs by result
	ChannelSyncs = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "livetv_channel_sync_total",
			Help: "Channel syncs from the DVR by result",
		},
		[]string{"result"},
	)

	registerOnce sync.Once
)

// Register adds every collector to the default registry. Safe to call more than once.
func Register() {
	registerOnce.Do(func() {
		prometheus.MustRegister(GuideFetches, GuideFetchDuration, OnDemandRefreshes, HTTPRequests, ChannelSyncs)
	})
}

// Handler serves the default registry in the prometheus exposition format
func Handler() gin.HandlerFunc {
	h := promhttp.Handler()
	return func(c *gin.Context) {
		h.ServeHTTP(c.Writer, c.Request)
	}
}
