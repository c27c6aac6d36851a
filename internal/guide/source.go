package guide

import (
	"context"
	"time"
)

// Request asks a Source for the intervals of channels overlapping [StartTime, EndTime]
type Request struct {
	Channels  []int64   `json:"channels"`
	StartTime time.Time `json:"start_time"`
	EndTime   time.Time `json:"end_time"`
}

// Source fetches guide data. An empty result with a nil error is a valid
// response meaning no data is available.
type Source interface {
	FetchGuide(ctx context.Context, req Request) (Data, error)
}

// SourceFunc adapts a function to the Source interface
type SourceFunc func(ctx context.Context, req Request) (Data, error)

// FetchGuide calls f
func (f SourceFunc) FetchGuide(ctx context.Context, req Request) (Data, error) {
	return f(ctx, req)
}
