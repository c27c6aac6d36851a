package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// Attributes holds extra M3U attributes that have no dedicated column
type Attributes map[string]string

// Value implements driver.Valuer by encoding the map as JSON text
func (a Attributes) Value() (driver.Value, error) {
	if len(a) == 0 {
		return "{}", nil
	}
	data, err := json.Marshal(map[string]string(a))
	if err != nil {
		return nil, fmt.Errorf("failed to encode attributes: %w", err)
	}
	return string(data), nil
}

// Scan implements sql.Scanner. Malformed JSON decodes to an empty map.
func (a *Attributes) Scan(value interface{}) error {
	var raw []byte
	switch v := value.(type) {
	case nil:
		*a = Attributes{}
		return nil
	case string:
		raw = []byte(v)
	case []byte:
		raw = v
	default:
		return fmt.Errorf("unsupported attributes type %T", value)
	}

	decoded := Attributes{}
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &decoded); err != nil {
			decoded = Attributes{}
		}
	}
	*a = decoded
	return nil
}

// Channel represents a live TV channel imported from the DVR's M3U list
type Channel struct {
	ID            int64      `json:"id" gorm:"primaryKey;autoIncrement;column:id"`
	Name          string     `json:"name" gorm:"type:text;not null;column:name" validate:"required,min=1,max=255"`
	TvgID         string     `json:"tvg_id,omitempty" gorm:"type:text;column:tvg_id"`
	StreamURL     string     `json:"stream_url,omitempty" gorm:"type:text;not null;column:stream_url"`
	LogoURL       string     `json:"logo_url,omitempty" gorm:"type:text;column:logo_url"`
	ChannelNumber string     `json:"channel_number,omitempty" gorm:"type:text;column:channel_number"`
	GroupTitle    string     `json:"group_title,omitempty" gorm:"type:text;column:group_title"`
	IsEnabled     bool       `json:"is_enabled" gorm:"not null;column:is_enabled"`
	Attributes    Attributes `json:"attributes,omitempty" gorm:"type:text;column:attributes"`
	CreatedAt     time.Time  `json:"created_at" gorm:"type:datetime;default:CURRENT_TIMESTAMP;column:created_at"`
	UpdatedAt     time.Time  `json:"updated_at" gorm:"type:datetime;default:CURRENT_TIMESTAMP;column:updated_at"`
}

// NewChannel creates an enabled Channel with timestamps set
func NewChannel(name, streamURL string) *Channel {
	now := time.Now().UTC()
	return &Channel{
		Name:       name,
		StreamURL:  streamURL,
		IsEnabled:  true,
		Attributes: Attributes{},
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}
