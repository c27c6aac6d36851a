package guide

import (
	"context"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
	"github.com/stwalsh4118/livetv/internal/logger"
	"github.com/stwalsh4118/livetv/internal/metrics"
)

const (
	// DefaultLookahead is how far past now a refresh requests data
	DefaultLookahead = 8 * time.Hour

	// DefaultCooldown is the minimum spacing of on-demand refreshes
	DefaultCooldown = 5 * time.Minute
)

// Outcome describes what a refresh did to the cache
type Outcome int

const (
	// OutcomeSkipped means there were no channels to fetch for
	OutcomeSkipped Outcome = iota
	// OutcomeApplied means non-empty data replaced the cache
	OutcomeApplied
	// OutcomeEmpty means the source returned no data and the cache was kept
	OutcomeEmpty
	// OutcomeFailed means the fetch failed and the cache was kept
	OutcomeFailed
	// OutcomeStale means a newer fetch started after this one, so its result was discarded
	OutcomeStale
)

func (o Outcome) String() string {
	switch o {
	case OutcomeApplied:
		return metrics.OutcomeApplied
	case OutcomeEmpty:
		return metrics.OutcomeEmpty
	case OutcomeFailed:
		return metrics.OutcomeFailed
	case OutcomeStale:
		return metrics.OutcomeStale
	default:
		return "skipped"
	}
}

// Options configures a Refresher
type Options struct {
	Lookahead time.Duration
	Cooldown  time.Duration
	Clock     clockwork.Clock
}

// Refresher fetches guide data into a Cache and tracks when the last
// successful fetch happened
type Refresher struct {
	source    Source
	cache     *Cache
	lookahead time.Duration
	cooldown  time.Duration
	clock     clockwork.Clock

	mu        sync.Mutex
	lastFetch time.Time
}

// NewRefresher creates a Refresher. Zero options fall back to the defaults.
func NewRefresher(source Source, cache *Cache, opts Options) *Refresher {
	if opts.Lookahead <= 0 {
		opts.Lookahead = DefaultLookahead
	}
	if opts.Cooldown <= 0 {
		opts.Cooldown = DefaultCooldown
	}
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}
	if cache == nil {
		cache = NewCache()
	}
	return &Refresher{
		source:    source,
		cache:     cache,
		lookahead: opts.Lookahead,
		cooldown:  opts.Cooldown,
		clock:     opts.Clock,
	}
}

// Cache returns the cache the refresher writes to
func (r *Refresher) Cache() *Cache {
	return r.cache
}

// LastFetch returns when the last successful fetch started; zero if none has succeeded
func (r *Refresher) LastFetch() time.Time {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lastFetch
}

// ShouldRefreshOnDemand reports whether the cooldown since the last
// successful fetch has elapsed at now, or no fetch has succeeded yet
func (r *Refresher) ShouldRefreshOnDemand(now time.Time) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lastFetch.IsZero() || now.Sub(r.lastFetch) >= r.cooldown
}

// Refresh fetches [now, now+lookahead] for channelIDs. Non-empty data replaces
// the cache wholesale. Empty data and failures keep the cache. Only a
// successful response from the most recently started fetch is stamped as the
// last fetch. Failures are logged and not retried.
func (r *Refresher) Refresh(ctx context.Context, channelIDs []int64) Outcome {
	if len(channelIDs) == 0 {
		return OutcomeSkipped
	}

	gen := r.cache.begin()
	start := r.clock.Now()
	req := Request{
		Channels:  append([]int64(nil), channelIDs...),
		StartTime: start.UTC(),
		EndTime:   start.Add(r.lookahead).UTC(),
	}

	data, err := r.source.FetchGuide(ctx, req)
	metrics.GuideFetchDuration.Observe(r.clock.Since(start).Seconds())

	outcome := r.apply(gen, start, data, err)
	metrics.GuideFetches.WithLabelValues(outcome.String()).Inc()

	var event *zerolog.Event
	switch outcome {
	case OutcomeFailed:
		event = logger.Log.Error().Err(err)
	case OutcomeEmpty:
		event = logger.Log.Warn()
	default:
		event = logger.Log.Debug()
	}
	event.
		Str("outcome", outcome.String()).
		Uint64("generation", gen).
		Int("channels", len(channelIDs)).
		Int("cached_channels", r.cache.Len()).
		Msg("Guide refresh finished")

	return outcome
}

func (r *Refresher) apply(gen uint64, started time.Time, data Data, err error) Outcome {
	if err != nil {
		return OutcomeFailed
	}

	if len(data) == 0 {
		if !r.cache.latest(gen) {
			return OutcomeStale
		}
		r.stamp(started)
		return OutcomeEmpty
	}

	if !r.cache.replace(gen, data) {
		return OutcomeStale
	}
	r.stamp(started)
	return OutcomeApplied
}

func (r *Refresher) stamp(at time.Time) {
	r.mu.Lock()
	r.lastFetch = at
	r.mu.Unlock()
}
