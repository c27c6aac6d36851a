package guide

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stwalsh4118/livetv/internal/models"
)

func at(hh, mm int) time.Time {
	return time.Date(2024, 1, 1, hh, mm, 0, 0, time.UTC)
}

func TestFindCurrent_HalfOpenBoundaries(t *testing.T) {
	programs := []models.Program{
		{Title: "A", StartTime: "2024-01-01T00:00:00Z", EndTime: "2024-01-01T01:00:00Z"},
		{Title: "B", StartTime: "2024-01-01T01:00:00Z", EndTime: "2024-01-01T02:00:00Z"},
	}

	tests := []struct {
		name  string
		now   time.Time
		want  string
		found bool
	}{
		{"before first", at(0, 0).Add(-time.Second), "", false},
		{"at start is inside", at(0, 0), "A", true},
		{"middle", at(0, 30), "A", true},
		{"at end belongs to next", at(1, 0), "B", true},
		{"at last end is outside", at(2, 0), "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := FindCurrent(programs, tt.now)
			assert.Equal(t, tt.found, ok)
			if tt.found {
				require.NotNil(t, got)
				assert.Equal(t, tt.want, got.Title)
			} else {
				assert.Nil(t, got)
			}
		})
	}
}

func TestFindCurrent_SingleProgramScenario(t *testing.T) {
	programs := []models.Program{
		{Title: "A", StartTime: "2024-01-01T00:00:00Z", EndTime: "2024-01-01T01:00:00Z"},
	}

	got, ok := FindCurrent(programs, at(0, 30))
	require.True(t, ok)
	assert.Equal(t, "A", got.Title)
	assert.InDelta(t, 50.0, Progress(got, at(0, 30)), 1e-9)

	got, ok = FindCurrent(programs, at(1, 0))
	assert.False(t, ok)
	assert.Equal(t, 0.0, Progress(got, at(1, 0)))
}

func TestFindCurrent_ReturnsFirstMatchInDeliveryOrder(t *testing.T) {
	programs := []models.Program{
		{Title: "Later", StartTime: "2024-01-01T02:00:00Z", EndTime: "2024-01-01T03:00:00Z"},
		{Title: "Overlap 1", StartTime: "2024-01-01T00:00:00Z", EndTime: "2024-01-01T02:00:00Z"},
		{Title: "Overlap 2", StartTime: "2024-01-01T00:30:00Z", EndTime: "2024-01-01T01:30:00Z"},
	}

	got, ok := FindCurrent(programs, at(1, 0))
	require.True(t, ok)
	assert.Equal(t, "Overlap 1", got.Title)
}

func TestFindCurrent_SkipsUnparseableIntervals(t *testing.T) {
	programs := []models.Program{
		{Title: "Broken", StartTime: "whenever", EndTime: "2024-01-01T01:00:00Z"},
		{Title: "Good", StartTime: "2024-01-01 00:00:00", EndTime: "2024-01-01 01:00:00"},
	}

	got, ok := FindCurrent(programs, at(0, 15))
	require.True(t, ok)
	assert.Equal(t, "Good", got.Title)
}

func TestFindCurrent_ReturnsCopy(t *testing.T) {
	programs := []models.Program{
		{Title: "A", StartTime: "2024-01-01T00:00:00Z", EndTime: "2024-01-01T01:00:00Z"},
	}

	got, ok := FindCurrent(programs, at(0, 10))
	require.True(t, ok)
	got.Title = "changed"
	assert.Equal(t, "A", programs[0].Title)
}

func TestFindCurrent_Empty(t *testing.T) {
	got, ok := FindCurrent(nil, at(0, 0))
	assert.False(t, ok)
	assert.Nil(t, got)
}

func TestFormatTimeRange(t *testing.T) {
	p := &models.Program{StartTime: "2024-01-01T15:00:00Z", EndTime: "2024-01-01T16:30:00Z"}
	assert.Equal(t, "3:00 PM - 4:30 PM", FormatTimeRange(p, time.UTC))

	est := time.FixedZone("EST", -5*3600)
	assert.Equal(t, "10:00 AM - 11:30 AM", FormatTimeRange(p, est))

	assert.Equal(t, "--:-- - --:--", FormatTimeRange(nil, time.UTC))
	assert.Equal(t, "--:-- - --:--", FormatTimeRange(&models.Program{StartTime: "bad", EndTime: "bad"}, time.UTC))
}
