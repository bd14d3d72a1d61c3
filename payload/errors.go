package payload

import "errors"

var (
	// ErrNotFinite is returned when encoding a NaN reading.
	ErrNotFinite = errors.New("current reading is not a number")

	// ErrShortPayload is returned when an uplink has fewer than two bytes.
	ErrShortPayload = errors.New("payload too short, expected at least 2 bytes")

	// ErrUnknownCommand is returned when a downlink command name has no
	// byte encoding.
	ErrUnknownCommand = errors.New("unknown downlink command")
)
