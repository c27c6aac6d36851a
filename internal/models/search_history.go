package models

import "time"

// MaxSearchHistory caps the number of channels kept in search history
const MaxSearchHistory = 12

// SearchHistoryEntry records a channel reached through search or a deep link
type SearchHistoryEntry struct {
	ID         int64     `json:"id" gorm:"primaryKey;autoIncrement;column:id"`
	ChannelID  int64     `json:"channel_id" gorm:"not null;column:channel_id"`
	SearchedAt time.Time `json:"searched_at" gorm:"type:datetime;column:searched_at"`
}

// TableName overrides the pluralized default
func (SearchHistoryEntry) TableName() string {
	return "search_history"
}
