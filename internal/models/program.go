package models

// Program is one guide interval for a channel as served by the guide endpoint.
// StartTime and EndTime are kept as raw strings because upstream sources are
// inconsistent about timezone markers; see guide.ParseTimestamp.
type Program struct {
	Title              string `json:"title"`
	StartTime          string `json:"start_time"`
	EndTime            string `json:"end_time"`
	Description        string `json:"description,omitempty"`
	Episode            string `json:"episode,omitempty"`
	ArtworkURL         string `json:"artwork_url,omitempty"`
	ChannelDisplayName string `json:"channel_display_name,omitempty"`
}

// DisplayTitle returns the title, falling back to a generic label
func (p *Program) DisplayTitle() string {
	if p.Title == "" {
		return "Current Program"
	}
	return p.Title
}
