package playback

import (
	"errors"
	"net"
)

var (
	// ErrNoStreamURL is returned when a channel has no stream to load
	ErrNoStreamURL = errors.New("no stream url")

	// ErrUnexpectedStatus wraps a non-2xx manifest response
	ErrUnexpectedStatus = errors.New("unexpected manifest status")

	// ErrInvalidManifest is returned when a manifest cannot be decoded
	ErrInvalidManifest = errors.New("invalid hls manifest")

	// ErrNoVariants is returned for a master playlist without usable variants
	ErrNoVariants = errors.New("master playlist has no variants")

	// ErrFallbackExhausted is returned when both codec variants of a stream failed
	ErrFallbackExhausted = errors.New("stream failed with both codec options")
)

// User-facing playback error messages
const (
	MessageFallbackExhausted = "Stream failed with both codec options. The stream may be unavailable or use an unsupported format."
	MessageUnsupported       = "Media could not be loaded, either because the server or network failed or because the format is not supported."
	MessageNetwork           = "Network error - please check your connection and try again."
	MessageStatus            = "Network error while loading video - please check your connection."
	MessageStalled           = "Stream stalled - waiting for new segments."
	MessageGeneric           = "Unable to load video stream. Please try selecting a different channel."
)

// ErrorMessage maps a playback error to a message suitable for display
func ErrorMessage(err error) string {
	var netErr net.Error
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrFallbackExhausted):
		return MessageFallbackExhausted
	case errors.Is(err, ErrInvalidManifest), errors.Is(err, ErrNoVariants):
		return MessageUnsupported
	case errors.Is(err, ErrUnexpectedStatus):
		return MessageStatus
	case errors.As(err, &netErr):
		return MessageNetwork
	default:
		return MessageGeneric
	}
}
