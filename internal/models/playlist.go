package models

import (
	"strconv"
	"time"
)

// PlaylistKind discriminates user playlists from the synthesized read-only ones
type PlaylistKind string

const (
	// PlaylistKindUser is a playlist created and persisted by the user
	PlaylistKindUser PlaylistKind = "user"

	// PlaylistKindEphemeralSearch holds a single channel reached through search or a deep link.
	// It is never persisted.
	PlaylistKindEphemeralSearch PlaylistKind = "ephemeral-search"

	// PlaylistKindHistory is the server-side search history presented as a playlist
	PlaylistKindHistory PlaylistKind = "history"
)

// Stable keys for the synthesized playlists
const (
	EphemeralSearchPlaylistKey  = "temp-search"
	SearchHistoryPlaylistKey    = "search-history"
	UnsavedPlaylistKeyPrefix    = "unsaved:"
	EphemeralSearchPlaylistName = "Search Results"
	SearchHistoryPlaylistName   = "Search History"
)

// Valid reports whether k is a known playlist kind
func (k PlaylistKind) Valid() bool {
	switch k {
	case PlaylistKindUser, PlaylistKindEphemeralSearch, PlaylistKindHistory:
		return true
	default:
		return false
	}
}

// Playlist is an ordered set of channels
type Playlist struct {
	ID          int64        `json:"id" gorm:"primaryKey;autoIncrement;column:id"`
	Kind        PlaylistKind `json:"kind" gorm:"-"`
	Name        string       `json:"name" gorm:"type:text;not null;column:name" validate:"required,min=1,max=100"`
	Description string       `json:"description" gorm:"type:text;column:description"`
	CreatedAt   time.Time    `json:"created_at" gorm:"type:datetime;default:CURRENT_TIMESTAMP;column:created_at"`
	UpdatedAt   time.Time    `json:"updated_at" gorm:"type:datetime;default:CURRENT_TIMESTAMP;column:updated_at"`

	// Populated by joins, not stored on the playlists table
	Channels []*Channel `json:"channels" gorm:"-"`
}

// EffectiveKind returns the playlist kind, treating an unset kind as a user playlist
func (p *Playlist) EffectiveKind() PlaylistKind {
	if p.Kind == "" {
		return PlaylistKindUser
	}
	return p.Kind
}

// ReadOnly reports whether the playlist may not be edited or persisted
func (p *Playlist) ReadOnly() bool {
	return p.EffectiveKind() != PlaylistKindUser
}

// Key returns a stable identifier that is unique across persisted and synthesized playlists.
// User playlists that have not been saved yet have no id and are keyed by name.
func (p *Playlist) Key() string {
	switch p.EffectiveKind() {
	case PlaylistKindEphemeralSearch:
		return EphemeralSearchPlaylistKey
	case PlaylistKindHistory:
		return SearchHistoryPlaylistKey
	default:
		if p.ID == 0 {
			return UnsavedPlaylistKeyPrefix + p.Name
		}
		return strconv.FormatInt(p.ID, 10)
	}
}

// ChannelIDs returns the ids of the playlist's channels in order
func (p *Playlist) ChannelIDs() []int64 {
	ids := make([]int64, 0, len(p.Channels))
	for _, ch := range p.Channels {
		ids = append(ids, ch.ID)
	}
	return ids
}

// FindChannel returns the channel with the given id, if present
func (p *Playlist) FindChannel(id int64) (*Channel, bool) {
	for _, ch := range p.Channels {
		if ch.ID == id {
			return ch, true
		}
	}
	return nil, false
}

// NewEphemeralSearchPlaylist wraps a single channel in a read-only search playlist
func NewEphemeralSearchPlaylist(ch *Channel) *Playlist {
	return &Playlist{
		Kind:     PlaylistKindEphemeralSearch,
		Name:     EphemeralSearchPlaylistName,
		Channels: []*Channel{ch},
	}
}

// NewHistoryPlaylist presents search history channels as a read-only playlist
func NewHistoryPlaylist(channels []*Channel) *Playlist {
	return &Playlist{
		Kind:        PlaylistKindHistory,
		Name:        SearchHistoryPlaylistName,
		Description: "Recently searched channels",
		Channels:    channels,
	}
}

// PlaylistChannel links a channel to a playlist with a sort order
type PlaylistChannel struct {
	PlaylistID int64 `json:"playlist_id" gorm:"primaryKey;column:playlist_id"`
	ChannelID  int64 `json:"channel_id" gorm:"primaryKey;column:channel_id"`
	SortOrder  int   `json:"sort_order" gorm:"type:integer;column:sort_order"`
}
