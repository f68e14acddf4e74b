package bluos

import "errors"

// Domain errors for the BluOS bridge package.
var (
	// ErrDeviceUnreachable is returned when a player cannot be contacted.
	ErrDeviceUnreachable = errors.New("bluos: device unreachable")

	// ErrUnexpectedStatus is returned when a player answers with a non-2xx code.
	ErrUnexpectedStatus = errors.New("bluos: unexpected HTTP status")

	// ErrUnknownCommand is returned for a playback command the player does not support.
	ErrUnknownCommand = errors.New("bluos: unknown playback command")

	// ErrEmptyAddress is returned when a device has no IP address.
	ErrEmptyAddress = errors.New("bluos: empty device address")

	// ErrMalformedConfig is returned when a configuration entry does not parse.
	ErrMalformedConfig = errors.New("bluos: malformed configuration")
)
