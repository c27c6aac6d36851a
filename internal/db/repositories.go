package db

// Repositories provides access to all database repositories
type Repositories struct {
	Channels      *ChannelRepository
	Playlists     *PlaylistRepository
	SearchHistory *SearchHistoryRepository
}

// NewRepositories creates a new repository collection
func NewRepositories(db *DB) *Repositories {
	return &Repositories{
		Channels:      NewChannelRepository(db),
		Playlists:     NewPlaylistRepository(db),
		SearchHistory: NewSearchHistoryRepository(db),
	}
}
