package guide

import (
	"time"

	"github.com/stwalsh4118/livetv/internal/models"
)

// Progress returns the percentage of p that has elapsed at now, clamped to
// [0, 100]. A nil program, an unparseable interval, or one with end <= start
// yields 0.
func Progress(p *models.Program, now time.Time) float64 {
	if p == nil {
		return 0
	}
	start, end, err := Interval(p)
	if err != nil {
		return 0
	}

	duration := end.Sub(start)
	if duration <= 0 {
		return 0
	}

	pct := 100 * float64(now.Sub(start)) / float64(duration)
	switch {
	case pct < 0:
		return 0
	case pct > 100:
		return 100
	default:
		return pct
	}
}
