// Package guide reconciles the live programming guide with the wall clock:
// current-program lookup, progress, and the guide data cache with its
// refresh policy.
package guide

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/stwalsh4118/livetv/internal/models"
)

// ErrInvalidTimestamp indicates a guide timestamp could not be parsed
var ErrInvalidTimestamp = errors.New("invalid guide timestamp")

// secondsLen is the length of "2006-01-02T15:04:05"
const secondsLen = 19

var (
	zonedLayouts = []string{
		time.RFC3339Nano,
		"2006-01-02T15:04:05.999999999Z0700",
	}
	bareLayouts = []string{
		"2006-01-02T15:04:05",
		"2006-01-02 15:04:05",
	}
)

// ParseTimestamp parses a guide timestamp. Values carrying a zone designator
// (a trailing Z or a numeric offset) are read as RFC 3339. Values without one
// are wall-clock times in UTC.
//
// Upstream sources are not consistent about emitting the designator, so a
// bare value that was meant as local time is misread. Producers should always
// emit UTC with a trailing Z.
func ParseTimestamp(raw string) (time.Time, error) {
	s := strings.TrimSpace(raw)
	if len(s) < secondsLen {
		return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidTimestamp, raw)
	}

	if hasZone(s) {
		s = strings.Replace(s, " ", "T", 1)
		if strings.HasSuffix(s, "z") {
			s = s[:len(s)-1] + "Z"
		}
		for _, layout := range zonedLayouts {
			if t, err := time.Parse(layout, s); err == nil {
				return t.UTC(), nil
			}
		}
		return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidTimestamp, raw)
	}

	for _, layout := range bareLayouts {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidTimestamp, raw)
}

// hasZone reports whether anything after the seconds field marks a zone
func hasZone(s string) bool {
	return strings.ContainsAny(s[secondsLen:], "Zz+-")
}

// Interval returns the parsed [start, end) of a program
func Interval(p *models.Program) (start, end time.Time, err error) {
	if p == nil {
		return time.Time{}, time.Time{}, fmt.Errorf("%w: no program", ErrInvalidTimestamp)
	}
	start, err = ParseTimestamp(p.StartTime)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	end, err = ParseTimestamp(p.EndTime)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	return start, end, nil
}
