package channel

import "errors"

// Custom channel service errors
var (
	// ErrChannelNotFound indicates the requested channel does not exist
	ErrChannelNotFound = errors.New("channel not found")

	// ErrNoChannelsFound indicates the DVR channel list contained no usable entries
	ErrNoChannelsFound = errors.New("no channels found in M3U content")

	// ErrSyncUnavailable indicates the service has no DVR source to sync from
	ErrSyncUnavailable = errors.New("channel sync source not configured")
)

// IsChannelNotFound checks if the error is a channel not found error
func IsChannelNotFound(err error) bool {
	return errors.Is(err, ErrChannelNotFound)
}

// IsNoChannelsFound checks if the error is an empty channel list error
func IsNoChannelsFound(err error) bool {
	return errors.Is(err, ErrNoChannelsFound)
}
