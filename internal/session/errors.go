package session

import "errors"

var (
	// ErrChannelUnavailable is returned when a requested channel is in no
	// known playlist and cannot be looked up
	ErrChannelUnavailable = errors.New("channel not available")

	// ErrNoPlaylists is returned when there is no playlist to select
	ErrNoPlaylists = errors.New("no playlists available")
)

// IsChannelUnavailable checks if an error is ErrChannelUnavailable
func IsChannelUnavailable(err error) bool {
	return errors.Is(err, ErrChannelUnavailable)
}
