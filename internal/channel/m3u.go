package channel

import (
	"bufio"
	"bytes"
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/stwalsh4118/livetv/internal/models"
)

const extinfPrefix = "#EXTINF:"

var attrPattern = regexp.MustCompile(`([^=\s]+)="([^"]*)"`)

// Entry is one channel parsed from an M3U playlist
type Entry struct {
	Name          string
	TvgID         string
	LogoURL       string
	ChannelNumber string
	GroupTitle    string
	StreamURL     string
	Attributes    models.Attributes
}

// ParseM3U extracts channel entries from an extended M3U document. Each
// #EXTINF line is paired with the next non-comment line as its stream URL.
func ParseM3U(content []byte) ([]Entry, error) {
	scanner := bufio.NewScanner(bytes.NewReader(content))
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)

	var entries []Entry
	var current *Entry
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		switch {
		case strings.HasPrefix(line, extinfPrefix):
			entry := parseExtinf(line)
			current = &entry
		case line == "" || strings.HasPrefix(line, "#"):
			continue
		case current != nil:
			current.StreamURL = NormalizeStreamURL(line)
			entries = append(entries, *current)
			current = nil
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read M3U content: %w", err)
	}
	return entries, nil
}

// parseExtinf reads `#EXTINF:<duration> key="value" ...,<title>`
func parseExtinf(line string) Entry {
	entry := Entry{Attributes: models.Attributes{}}

	head, title, ok := splitExtinf(strings.TrimPrefix(line, extinfPrefix))
	if !ok {
		return entry
	}
	entry.Name = strings.TrimSpace(title)

	for _, m := range attrPattern.FindAllStringSubmatch(head, -1) {
		key, value := m[1], m[2]
		switch key {
		case "tvg-id":
			entry.TvgID = value
		case "tvg-logo":
			entry.LogoURL = value
		case "tvg-chno":
			entry.ChannelNumber = value
		case "group-title":
			entry.GroupTitle = value
		default:
			entry.Attributes[key] = value
		}
	}
	return entry
}

// splitExtinf splits at the first comma outside a quoted attribute value
func splitExtinf(rest string) (head, title string, ok bool) {
	inQuote := false
	for i, r := range rest {
		switch r {
		case '"':
			inQuote = !inQuote
		case ',':
			if !inQuote {
				return rest[:i], rest[i+1:], true
			}
		}
	}
	return "", "", false
}

// NormalizeStreamURL forces Channels DVR device streams to HLS passthrough so
// players receive a playlist they can decode
func NormalizeStreamURL(raw string) string {
	if !strings.Contains(strings.ToLower(raw), "channels") || !strings.Contains(raw, "/devices/") {
		return raw
	}
	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	q := u.Query()
	q.Set("format", "hls")
	q.Set("codec", "copy")
	u.RawQuery = q.Encode()
	return u.String()
}
