package session

import "errors"

var (
	// ErrReadinessFailed is returned when the modem never answered the
	// readiness probe.
	ErrReadinessFailed = errors.New("modem not responding to AT commands")
	// ErrConfigurationFailed is returned when a provisioning command was
	// not acknowledged.
	ErrConfigurationFailed = errors.New("modem configuration failed")
	// ErrJoinFailed is returned when the join command was not acknowledged.
	ErrJoinFailed = errors.New("network join failed")
	// ErrInvalidProvisioning is returned by Validate for unusable parameters.
	ErrInvalidProvisioning = errors.New("invalid provisioning")
)
