package playlist

import "errors"

var (
	// ErrNameRequired indicates a playlist was saved without a name
	ErrNameRequired = errors.New("playlist name is required")

	// ErrNameTooLong indicates a playlist name exceeds MaxNameLength
	ErrNameTooLong = errors.New("playlist name is too long")

	// ErrUnknownChannel indicates a referenced channel does not exist
	ErrUnknownChannel = errors.New("channel does not exist")

	// ErrPlaylistNotFound indicates the requested playlist does not exist
	ErrPlaylistNotFound = errors.New("playlist not found")
)

// IsValidation checks if the error is a rejected playlist payload
func IsValidation(err error) bool {
	return errors.Is(err, ErrNameRequired) || errors.Is(err, ErrNameTooLong) || errors.Is(err, ErrUnknownChannel)
}
