package guide

import (
	"time"

	"github.com/stwalsh4118/livetv/internal/logger"
	"github.com/stwalsh4118/livetv/internal/models"
)

const (
	timeOfDayLayout = "3:04 PM"
	unknownRange    = "--:-- - --:--"
)

// FindCurrent returns the first program whose interval contains now, using
// half-open [start, end) bounds. Programs with unparseable times are skipped.
// The returned program is a copy.
func FindCurrent(programs []models.Program, now time.Time) (*models.Program, bool) {
	for i := range programs {
		start, end, err := Interval(&programs[i])
		if err != nil {
			logger.Log.Debug().
				Err(err).
				Str("title", programs[i].Title).
				Msg("Skipping guide interval with invalid time")
			continue
		}
		if !now.Before(start) && now.Before(end) {
			p := programs[i]
			return &p, true
		}
	}
	return nil, false
}

// FormatTimeRange renders a program's interval as "3:04 PM - 4:00 PM" in loc.
// A nil or unparseable program renders as "--:-- - --:--".
func FormatTimeRange(p *models.Program, loc *time.Location) string {
	start, end, err := Interval(p)
	if err != nil {
		return unknownRange
	}
	if loc == nil {
		loc = time.Local
	}
	return start.In(loc).Format(timeOfDayLayout) + " - " + end.In(loc).Format(timeOfDayLayout)
}
