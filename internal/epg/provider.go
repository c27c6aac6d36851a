// Package epg serves guide data for catalog channels from the DVR's XMLTV feed.
package epg

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stwalsh4118/livetv/internal/guide"
	"github.com/stwalsh4118/livetv/internal/logger"
	"github.com/stwalsh4118/livetv/internal/models"
	"golang.org/x/sync/singleflight"
)

const (
	// OutputTimeLayout is the UTC layout of emitted start_time and end_time values
	OutputTimeLayout = "2006-01-02T15:04:05Z"

	defaultTitle     = "Unknown Program"
	defaultLookahead = 8 * time.Hour
	downloadTimeout  = 2 * time.Minute
	episodeSeparator = " • "
)

// Fetcher downloads the raw XMLTV document
type Fetcher interface {
	FetchXMLTV(ctx context.Context) ([]byte, error)
}

// ChannelLookup resolves catalog channels by id
type ChannelLookup interface {
	ListByIDs(ctx context.Context, ids []int64) ([]*models.Channel, error)
}

// Provider implements guide.Source over an XMLTV feed. Concurrent requests
// share a single download.
type Provider struct {
	fetcher  Fetcher
	channels ChannelLookup
	clock    clockwork.Clock
	group    singleflight.Group
}

// NewProvider creates a Provider. A nil clock uses the real clock.
func NewProvider(fetcher Fetcher, channels ChannelLookup, clock clockwork.Clock) *Provider {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Provider{fetcher: fetcher, channels: channels, clock: clock}
}

// FetchGuide returns programmes for the requested channels keyed by catalog
// id. Channels without a guide id are ignored. Programmes whose stop precedes
// their start, or that start after the window end, are dropped. Each channel's
// programmes are sorted by start.
func (p *Provider) FetchGuide(ctx context.Context, req guide.Request) (guide.Data, error) {
	if len(req.Channels) == 0 {
		return guide.Data{}, nil
	}

	channels, err := p.channels.ListByIDs(ctx, req.Channels)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve channels: %w", err)
	}

	byTvgID := make(map[string]int64, len(channels))
	for _, ch := range channels {
		if ch.TvgID != "" {
			byTvgID[ch.TvgID] = ch.ID
		}
	}
	if len(byTvgID) == 0 {
		logger.Log.Warn().
			Int("requested", len(req.Channels)).
			Msg("No guide ids found for requested channels")
		return guide.Data{}, nil
	}

	doc, err := p.document(ctx)
	if err != nil {
		return nil, err
	}

	windowEnd := req.EndTime
	if windowEnd.IsZero() {
		windowEnd = p.clock.Now().Add(defaultLookahead)
	}

	return buildData(doc, byTvgID, windowEnd), nil
}

// document returns the parsed guide, joining an in-flight download when there
// is one. The download is detached from the caller that started it so a
// short-lived caller cannot cancel it for everyone else.
func (p *Provider) document(ctx context.Context) (*document, error) {
	results := p.group.DoChan("xmltv", func() (interface{}, error) {
		fetchCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), downloadTimeout)
		defer cancel()

		content, err := p.fetcher.FetchXMLTV(fetchCtx)
		if err != nil {
			return nil, fmt.Errorf("failed to fetch xmltv: %w", err)
		}
		return parseDocument(content)
	})

	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("failed to fetch xmltv: %w", ctx.Err())
	case res := <-results:
		if res.Err != nil {
			return nil, res.Err
		}
		if res.Shared {
			logger.Log.Debug().Msg("Shared in-flight XMLTV download")
		}
		return res.Val.(*document), nil
	}
}

func buildData(doc *document, byTvgID map[string]int64, windowEnd time.Time) guide.Data {
	displayNames := make(map[string]string, len(doc.Channels))
	for _, ch := range doc.Channels {
		displayNames[ch.ID] = first(ch.DisplayNames)
	}

	data := guide.Data{}
	skipped := 0
	for _, prog := range doc.Programmes {
		channelID, ok := byTvgID[prog.Channel]
		if !ok {
			continue
		}

		start, err := parseTime(prog.Start)
		if err != nil {
			skipped++
			continue
		}
		stop, err := parseTime(prog.Stop)
		if err != nil {
			skipped++
			continue
		}
		if stop.Before(start) || start.After(windowEnd) {
			continue
		}

		data[channelID] = append(data[channelID], toProgram(prog, start, stop, displayNames[prog.Channel]))
	}

	for id := range data {
		programs := data[id]
		sort.SliceStable(programs, func(i, j int) bool {
			return programs[i].StartTime < programs[j].StartTime
		})
	}

	if skipped > 0 {
		logger.Log.Warn().Int("skipped", skipped).Msg("Skipped programmes with invalid times")
	}
	return data
}

func toProgram(prog programme, start, stop time.Time, displayName string) models.Program {
	title := first(prog.Titles)
	if title == "" {
		title = defaultTitle
	}

	var episode []string
	if num := first(prog.EpisodeNums); num != "" {
		episode = append(episode, num)
	}
	if sub := first(prog.SubTitles); sub != "" {
		episode = append(episode, sub)
	}

	var artwork string
	if prog.Icon != nil {
		artwork = prog.Icon.Src
	}
	if artwork == "" && prog.Image != nil {
		artwork = strings.TrimSpace(prog.Image.Text)
		if artwork == "" {
			artwork = prog.Image.Src
		}
	}

	return models.Program{
		Title:              title,
		StartTime:          start.UTC().Format(OutputTimeLayout),
		EndTime:            stop.UTC().Format(OutputTimeLayout),
		Description:        first(prog.Descs),
		Episode:            strings.Join(episode, episodeSeparator),
		ArtworkURL:         artwork,
		ChannelDisplayName: displayName,
	}
}
