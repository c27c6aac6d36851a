package epg

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"golang.org/x/text/encoding/charmap"
)

// ErrInvalidXMLTVTime indicates a programme start or stop attribute could not be parsed
var ErrInvalidXMLTVTime = errors.New("invalid xmltv time")

type document struct {
	Channels   []channel   `xml:"channel"`
	Programmes []programme `xml:"programme"`
}

type channel struct {
	ID           string   `xml:"id,attr"`
	DisplayNames []string `xml:"display-name"`
}

type programme struct {
	Channel     string   `xml:"channel,attr"`
	Start       string   `xml:"start,attr"`
	Stop        string   `xml:"stop,attr"`
	Titles      []string `xml:"title"`
	SubTitles   []string `xml:"sub-title"`
	Descs       []string `xml:"desc"`
	EpisodeNums []string `xml:"episode-num"`
	Icon        *struct {
		Src string `xml:"src,attr"`
	} `xml:"icon"`
	Image *struct {
		Src  string `xml:"src,attr"`
		Text string `xml:",chardata"`
	} `xml:"image"`
}

// parseDocument decodes an XMLTV document, transcoding legacy single-byte charsets
func parseDocument(content []byte) (*document, error) {
	dec := xml.NewDecoder(bytes.NewReader(content))
	dec.CharsetReader = charsetReader

	var doc document
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("failed to decode xmltv: %w", err)
	}
	return &doc, nil
}

func charsetReader(label string, input io.Reader) (io.Reader, error) {
	switch strings.ToLower(strings.TrimSpace(label)) {
	case "", "utf-8", "utf8", "us-ascii":
		return input, nil
	case "iso-8859-1", "iso8859-1", "latin1":
		return charmap.ISO8859_1.NewDecoder().Reader(input), nil
	case "iso-8859-15", "latin9":
		return charmap.ISO8859_15.NewDecoder().Reader(input), nil
	case "windows-1252", "cp1252":
		return charmap.Windows1252.NewDecoder().Reader(input), nil
	default:
		return nil, fmt.Errorf("unsupported xmltv charset %q", label)
	}
}

// parseTime reads "YYYYMMDDHHMMSS [+-]ZZZZ". The offset is optional; without it the value is UTC.
func parseTime(raw string) (time.Time, error) {
	s := strings.TrimSpace(raw)
	if len(s) < 14 {
		return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidXMLTVTime, raw)
	}

	if offset := strings.TrimSpace(s[14:]); offset != "" {
		t, err := time.Parse("20060102150405 -0700", s[:14]+" "+offset)
		if err != nil {
			return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidXMLTVTime, raw)
		}
		return t.UTC(), nil
	}

	t, err := time.ParseInLocation("20060102150405", s[:14], time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidXMLTVTime, raw)
	}
	return t, nil
}

func first(values []string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
